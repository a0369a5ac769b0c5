package hyperopt

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/pkg/log"
	"github.com/YuminosukeSato/featurelab/sklearn/model_selection"
)

// DefaultMaxEvals is the number of trials Tuner runs when MaxEvals is 0.
const DefaultMaxEvals = 250

// EvalContext carries everything an Objective needs to score a point.
type EvalContext struct {
	X, Y     mat.Matrix
	Splitter model_selection.Splitter
	Seed     int64
}

// Objective returns the loss of params. Lower is better.
type Objective func(evalCtx EvalContext, params Params) (float64, error)

// Trial is one evaluated point.
type Trial struct {
	Number   int
	Params   Params
	Loss     float64
	Duration time.Duration
}

// TuningResult is the outcome of Tuner.Optimize.
type TuningResult struct {
	BestParams Params
	BestLoss   float64
	Trials     []Trial
}

// Tuner minimizes an Objective over Space with goptuna's TPE sampler.
type Tuner struct {
	Space    Space
	MaxEvals int
	Seed     int64
	Name     string
	Logger   log.Logger
}

// NewTuner creates a Tuner with DefaultMaxEvals.
func NewTuner(space Space, seed int64) *Tuner {
	return &Tuner{Space: space, MaxEvals: DefaultMaxEvals, Seed: seed}
}

// Optimize runs MaxEvals trials one after another and returns the trial
// with the lowest loss (the earliest on ties). Cancelling ctx stops the
// search before the next trial starts and returns ctx.Err(). An objective
// error stops the search and is returned with the trial number.
func (t *Tuner) Optimize(ctx context.Context, evalCtx EvalContext, objective Objective) (*TuningResult, error) {
	if err := t.Space.Validate(); err != nil {
		return nil, err
	}
	if objective == nil {
		return nil, errors.NewValueError("Tuner.Optimize", "objective is nil")
	}
	maxEvals := t.MaxEvals
	if maxEvals == 0 {
		maxEvals = DefaultMaxEvals
	}
	if maxEvals < 0 {
		return nil, errors.NewValidationError("max_evals", "must be positive", maxEvals)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := t.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("hyperopt")
	}
	name := t.Name
	if name == "" {
		name = "featurelab"
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	study, err := goptuna.CreateStudy(name,
		goptuna.StudyOptionSampler(tpe.NewSampler(tpe.SamplerOptionSeed(t.Seed))),
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionLogger(logger),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create study")
	}
	study.WithContext(runCtx)

	result := &TuningResult{BestLoss: math.Inf(1)}
	var objErr error
	number := 0

	err = study.Optimize(func(trial goptuna.Trial) (float64, error) {
		n := number
		number++
		params, err := t.Space.sample(trial)
		if err != nil {
			objErr = err
			cancel()
			return 0, err
		}

		start := time.Now()
		loss, err := objective(evalCtx, params)
		if err == nil && math.IsNaN(loss) {
			err = errors.NewNumericDomainError("Tuner.Optimize", "loss", "objective returned NaN", loss)
		}
		if err != nil {
			objErr = errors.Wrapf(err, "trial %d", n)
			cancel()
			return 0, err
		}
		elapsed := time.Since(start)

		result.Trials = append(result.Trials, Trial{Number: n, Params: params, Loss: loss, Duration: elapsed})
		if loss < result.BestLoss {
			result.BestLoss = loss
			result.BestParams = params
		}
		logger.Info("trial finished",
			log.TrialKey, n,
			log.LossKey, loss,
			log.HyperParamsKey, params,
			log.DurationMsKey, elapsed.Milliseconds(),
		)
		return loss, nil
	}, maxEvals)

	switch {
	case objErr != nil:
		return nil, objErr
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		return nil, errors.Wrap(err, "optimize")
	}
	if len(result.Trials) == 0 {
		return nil, errors.NewValueError("Tuner.Optimize", "no trial completed")
	}

	logger.Info("tuning finished",
		log.LossKey, result.BestLoss,
		log.HyperParamsKey, result.BestParams,
		"trials", len(result.Trials),
	)
	return result, nil
}

// String summarizes the best trial.
func (r *TuningResult) String() string {
	return fmt.Sprintf("best loss %.6f after %d trials: %v", r.BestLoss, len(r.Trials), r.BestParams)
}
