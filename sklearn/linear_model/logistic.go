// Package linear_model provides linear classifiers usable as the model
// behind cross-validation, greedy feature selection and tuning.
package linear_model

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/featurelab/core/model"
	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/pkg/log"
)

// LogisticRegression implements logistic regression for classification.
// Two classes use a single sigmoid output; more classes use a multinomial
// softmax. Both are trained with full-batch gradient descent and an L2
// penalty of strength 1/C.
type LogisticRegression struct {
	state *model.StateManager

	// Hyperparameters
	C            float64 // Inverse regularization strength
	FitIntercept bool
	MaxIter      int
	Tol          float64 // 勾配の最大絶対値がこれを下回れば停止
	LearningRate float64 // 初期学習率。iter ごとに 1/(1+0.1*iter) で減衰

	// Model parameters
	Coef      [][]float64 // 二値は 1×p、多クラスは k×p
	Intercept []float64
	ClassList []float64
	NIter     int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		C:            1.0,
		FitIntercept: true,
		MaxIter:      300,
		Tol:          1e-4,
		LearningRate: 1.0,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.FitIntercept = fit }
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.MaxIter = maxIter }
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.Tol = tol }
}

// WithLRLearningRate sets the initial step size
func WithLRLearningRate(eta float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.LearningRate = eta }
}

func (lr *LogisticRegression) validate() error {
	if lr.C <= 0 || math.IsNaN(lr.C) {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.MaxIter < 1 {
		return errors.NewValidationError("max_iter", "must be at least 1", lr.MaxIter)
	}
	if lr.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", lr.LearningRate)
	}
	return nil
}

// Fit trains the model from scratch on X (n×p) and y (n×1).
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	const op = "LogisticRegression.Fit"
	if err := lr.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 {
		return errors.ErrEmptyData
	}
	if nSamples != yRows {
		return errors.NewDimensionError(op, nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError(op, 1, yCols, 1)
	}

	lr.state.Reset()
	lr.ClassList = extractClasses(y)
	if len(lr.ClassList) < 2 {
		return errors.NewValidationError("y", "needs at least two classes", len(lr.ClassList))
	}

	// 二値は陽性クラスの 1 出力、多クラスはクラスごとの出力
	k := len(lr.ClassList)
	if k == 2 {
		k = 1
	}
	target := mat.NewDense(nSamples, k, nil)
	index := make(map[float64]int, len(lr.ClassList))
	for i, c := range lr.ClassList {
		index[c] = i
	}
	for i := 0; i < nSamples; i++ {
		c := index[y.At(i, 0)]
		if k == 1 {
			if c == 1 {
				target.Set(i, 0, 1)
			}
		} else {
			target.Set(i, c, 1)
		}
	}

	W := mat.NewDense(k, nFeatures, nil)
	b := make([]float64, k)
	lambda := 1.0 / (lr.C * float64(nSamples))

	var Z, G mat.Dense
	P := mat.NewDense(nSamples, k, nil)
	gradB := make([]float64, k)
	row := make([]float64, k)
	converged := false
	iter := 0
	for ; iter < lr.MaxIter; iter++ {
		// Z = X·Wᵀ + b
		Z.Mul(X, W.T())
		for i := 0; i < nSamples; i++ {
			for c := 0; c < k; c++ {
				row[c] = Z.At(i, c) + b[c]
			}
			if k == 1 {
				P.Set(i, 0, errors.Sigmoid(row[0]))
			} else {
				P.SetRow(i, errors.Softmax(row, nil))
			}
		}
		P.Sub(P, target)

		// G = (P-Y)ᵀ·X / n + λW
		G.Mul(P.T(), X)
		G.Scale(1/float64(nSamples), &G)
		G.Add(&G, scaled(lambda, W))
		for c := 0; c < k; c++ {
			gradB[c] = mat.Sum(P.ColView(c)) / float64(nSamples)
		}

		maxGrad := maxAbs(G.RawMatrix().Data)
		if lr.FitIntercept {
			maxGrad = math.Max(maxGrad, maxAbs(gradB))
		}
		if maxGrad < lr.Tol {
			converged = true
			break
		}

		eta := lr.LearningRate / (1.0 + 0.1*float64(iter))
		W.Sub(W, scaled(eta, &G))
		if lr.FitIntercept {
			for c := range b {
				b[c] -= eta * gradB[c]
			}
		}
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.MaxIter,
			"gradient did not fall below tol; increase max_iter or scale the features"))
	}

	lr.Coef = make([][]float64, k)
	for c := 0; c < k; c++ {
		lr.Coef[c] = mat.Row(nil, c, W)
	}
	lr.Intercept = b
	lr.NIter = iter
	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()

	log.GetLoggerWithName("linear_model").Debug("logistic regression fitted",
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.IterationKey, iter,
		"converged", converged,
	)
	return nil
}

func scaled(alpha float64, m mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Scale(alpha, m)
	return &out
}

func maxAbs(v []float64) float64 {
	return floats.Norm(v, math.Inf(1))
}

// extractClasses returns the sorted distinct labels of y.
func extractClasses(y mat.Matrix) []float64 {
	rows, _ := y.Dims()
	seen := make(map[float64]bool)
	var classes []float64
	for i := 0; i < rows; i++ {
		label := y.At(i, 0)
		if !seen[label] {
			seen[label] = true
			classes = append(classes, label)
		}
	}
	sort.Float64s(classes)
	return classes
}

// PredictProba returns an n×k matrix of class probabilities whose columns
// follow Classes().
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := lr.state.RequireFeatures("LogisticRegression.PredictProba", nFeatures); err != nil {
		return nil, err
	}

	k := len(lr.ClassList)
	out := mat.NewDense(nSamples, k, nil)
	scores := make([]float64, len(lr.Coef))
	probs := make([]float64, k)
	for i := 0; i < nSamples; i++ {
		for c, w := range lr.Coef {
			z := lr.Intercept[c]
			for j, wj := range w {
				z += X.At(i, j) * wj
			}
			scores[c] = z
		}
		if len(lr.Coef) == 1 {
			p := errors.Sigmoid(scores[0])
			probs[0], probs[1] = 1-p, p
		} else {
			errors.Softmax(scores, probs)
		}
		out.SetRow(i, probs)
	}
	return out, nil
}

// Predict returns the most probable class for each row as an n×1 matrix.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, k := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for c := 1; c < k; c++ {
			if proba.At(i, c) > proba.At(i, best) {
				best = c
			}
		}
		out.Set(i, 0, lr.ClassList[best])
	}
	return out, nil
}

// Classes returns the sorted labels seen during Fit.
func (lr *LogisticRegression) Classes() []float64 { return lr.ClassList }

// IsFitted reports whether Fit has completed.
func (lr *LogisticRegression) IsFitted() bool { return lr.state.IsFitted() }

// GetParams returns the hyperparameters.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":             lr.C,
		"fit_intercept": lr.FitIntercept,
		"max_iter":      lr.MaxIter,
		"tol":           lr.Tol,
		"learning_rate": lr.LearningRate,
	}
}

// String returns a string representation of the model
func (lr *LogisticRegression) String() string {
	if !lr.state.IsFitted() {
		return fmt.Sprintf("LogisticRegression(C=%.4g, max_iter=%d)", lr.C, lr.MaxIter)
	}
	return fmt.Sprintf("LogisticRegression(C=%.4g, max_iter=%d, n_classes=%d, n_iter=%d)",
		lr.C, lr.MaxIter, len(lr.ClassList), lr.NIter)
}
