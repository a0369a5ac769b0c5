package model_selection

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/featurelab/core/model"
	"github.com/YuminosukeSato/featurelab/metrics"
	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/pkg/log"
)

// DefaultCVFolds is the number of folds CVLoop uses.
const DefaultCVFolds = 3

// Metric scores held-out class probabilities.
type Metric int

const (
	// MetricLogLoss is the multi-class cross entropy. Lower is better.
	MetricLogLoss Metric = iota
	// MetricAUC is the ROC AUC of the larger class. Binary labels only.
	MetricAUC
)

func (m Metric) String() string {
	switch m {
	case MetricLogLoss:
		return "logloss"
	case MetricAUC:
		return "auc"
	}
	return fmt.Sprintf("Metric(%d)", int(m))
}

// HigherIsBetter reports the direction of the metric.
func (m Metric) HigherIsBetter() bool { return m == MetricAUC }

// ParseMetric maps "logloss" or "auc" to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "logloss", "log_loss", "mlogloss":
		return MetricLogLoss, nil
	case "auc", "roc_auc":
		return MetricAUC, nil
	}
	return 0, errors.NewValidationError("metric", "unknown metric", s)
}

// Score evaluates proba, whose columns follow classes, against yTrue.
func (m Metric) Score(yTrue []float64, proba mat.Matrix, classes []float64) (float64, error) {
	switch m {
	case MetricLogLoss:
		return metrics.LogLoss(yTrue, proba, classes)
	case MetricAUC:
		score, positive, err := metrics.PositiveColumn(proba, classes)
		if err != nil {
			return 0, err
		}
		return metrics.ROCAUC(yTrue, score, positive)
	}
	return 0, errors.NewValidationError("metric", "unknown metric", int(m))
}

// CVResult stores cross-validation results
type CVResult struct {
	Metric     Metric
	TestScores []float64
	FitTimes   []time.Duration
}

// Mean returns the mean held-out score.
func (cv *CVResult) Mean() float64 {
	if len(cv.TestScores) == 0 {
		return 0
	}
	return stat.Mean(cv.TestScores, nil)
}

// Std returns the sample standard deviation of the held-out scores.
func (cv *CVResult) Std() float64 {
	if len(cv.TestScores) <= 1 {
		return 0
	}
	return stat.StdDev(cv.TestScores, nil)
}

// CVLoop scores model with 3 stratified folds shuffled by seed and returns
// one score per fold.
func CVLoop(X, y mat.Matrix, clf model.Classifier, metric Metric, seed int64) ([]float64, error) {
	res, err := CrossValidate(X, y, clf, NewStratifiedKFold(DefaultCVFolds, true, seed), metric)
	if err != nil {
		return nil, err
	}
	return res.TestScores, nil
}

// CrossValidate fits clf on every training split, predicts probabilities
// for the held-out rows and scores them with metric. Folds run one after
// another on the same clf.
//
// A fold whose fit or predict fails (or panics) stops the run with a
// FitError carrying the fold index. There is no retry.
func CrossValidate(X, y mat.Matrix, clf model.Classifier, splitter Splitter, metric Metric) (*CVResult, error) {
	const op = "CrossValidate"
	n, _ := X.Dims()
	if n == 0 {
		return nil, errors.ErrEmptyData
	}

	folds, err := splitter.Split(X, y)
	if err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("model_selection")
	result := &CVResult{
		Metric:     metric,
		TestScores: make([]float64, len(folds)),
		FitTimes:   make([]time.Duration, len(folds)),
	}

	for idx, fold := range folds {
		trainX, trainY := Subset(X, y, fold.TrainIndices)
		testX, testY := Subset(X, y, fold.TestIndices)

		var proba mat.Matrix
		start := time.Now()
		err := errors.SafeExecute(fmt.Sprintf("fold %d", idx), func() error {
			if err := clf.Fit(trainX, trainY); err != nil {
				return err
			}
			var err error
			proba, err = clf.PredictProba(testX)
			return err
		})
		result.FitTimes[idx] = time.Since(start)
		if err != nil {
			return nil, errors.NewFitError(op, idx, err)
		}

		score, err := metric.Score(mat.Col(nil, 0, testY), proba, clf.Classes())
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", idx)
		}
		result.TestScores[idx] = score

		logger.Debug("fold scored",
			log.FoldKey, idx,
			log.MetricKey, metric.String(),
			log.ScoreKey, score,
			log.DurationMsKey, result.FitTimes[idx].Milliseconds(),
		)
	}
	return result, nil
}
