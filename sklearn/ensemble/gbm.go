// Package ensemble implements gradient boosted trees with a second-order
// (Newton) objective for binary and multi-class classification.
package ensemble

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/featurelab/core/model"
	"github.com/YuminosukeSato/featurelab/core/parallel"
	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/pkg/log"
)

// hessFloor keeps leaf values finite when probabilities saturate.
const hessFloor = 1e-16

// GradientBoostingClassifier boosts depth-limited regression trees on the
// logistic (two classes) or softmax (more classes) loss.
type GradientBoostingClassifier struct {
	state *model.StateManager

	// Hyperparameters
	NEstimators     int
	LearningRate    float64 // eta
	MaxDepth        int
	MinChildWeight  float64 // 子ノードに必要なヘッシアン和の下限
	Subsample       float64 // 木ごとの行サンプリング率
	ColsampleByTree float64 // 木ごとの列サンプリング率
	Gamma           float64 // 分割に必要な最小ゲイン
	Lambda          float64 // 葉の値に対する L2 正則化
	Seed            uint64

	// Model parameters. Trees[round][k] は出力 k の木
	Trees     [][]*Tree
	BaseScore []float64
	ClassList []float64
}

// GBMOption is a functional option for GradientBoostingClassifier
type GBMOption func(*GradientBoostingClassifier)

// NewGradientBoostingClassifier creates a classifier with xgboost-like
// defaults.
func NewGradientBoostingClassifier(opts ...GBMOption) *GradientBoostingClassifier {
	g := &GradientBoostingClassifier{
		state:           model.NewStateManager(),
		NEstimators:     100,
		LearningRate:    0.3,
		MaxDepth:        6,
		MinChildWeight:  1,
		Subsample:       1,
		ColsampleByTree: 1,
		Gamma:           0,
		Lambda:          1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithNEstimators sets the number of boosting rounds
func WithNEstimators(n int) GBMOption {
	return func(g *GradientBoostingClassifier) { g.NEstimators = n }
}

// WithLearningRate sets eta
func WithLearningRate(eta float64) GBMOption {
	return func(g *GradientBoostingClassifier) { g.LearningRate = eta }
}

// WithMaxDepth sets the maximum tree depth
func WithMaxDepth(depth int) GBMOption {
	return func(g *GradientBoostingClassifier) { g.MaxDepth = depth }
}

// WithMinChildWeight sets the minimum hessian sum per child
func WithMinChildWeight(w float64) GBMOption {
	return func(g *GradientBoostingClassifier) { g.MinChildWeight = w }
}

// WithSubsample sets the row sampling ratio per tree
func WithSubsample(ratio float64) GBMOption {
	return func(g *GradientBoostingClassifier) { g.Subsample = ratio }
}

// WithColsampleByTree sets the column sampling ratio per tree
func WithColsampleByTree(ratio float64) GBMOption {
	return func(g *GradientBoostingClassifier) { g.ColsampleByTree = ratio }
}

// WithGamma sets the minimum split gain
func WithGamma(gamma float64) GBMOption {
	return func(g *GradientBoostingClassifier) { g.Gamma = gamma }
}

// WithLambda sets the L2 regularization on leaf values
func WithLambda(lambda float64) GBMOption {
	return func(g *GradientBoostingClassifier) { g.Lambda = lambda }
}

// WithSeed sets the sampling seed
func WithSeed(seed uint64) GBMOption {
	return func(g *GradientBoostingClassifier) { g.Seed = seed }
}

func (g *GradientBoostingClassifier) validate() error {
	switch {
	case g.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be at least 1", g.NEstimators)
	case g.LearningRate <= 0 || math.IsNaN(g.LearningRate):
		return errors.NewValidationError("eta", "must be positive", g.LearningRate)
	case g.MaxDepth < 1:
		return errors.NewValidationError("max_depth", "must be at least 1", g.MaxDepth)
	case g.MinChildWeight < 0:
		return errors.NewValidationError("min_child_weight", "must be non-negative", g.MinChildWeight)
	case g.Subsample <= 0 || g.Subsample > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", g.Subsample)
	case g.ColsampleByTree <= 0 || g.ColsampleByTree > 1:
		return errors.NewValidationError("colsample_bytree", "must be in (0, 1]", g.ColsampleByTree)
	case g.Gamma < 0:
		return errors.NewValidationError("gamma", "must be non-negative", g.Gamma)
	case g.Lambda < 0:
		return errors.NewValidationError("lambda", "must be non-negative", g.Lambda)
	}
	return nil
}

// outputs is 1 for binary problems and the class count otherwise.
func (g *GradientBoostingClassifier) outputs() int {
	if len(g.ClassList) == 2 {
		return 1
	}
	return len(g.ClassList)
}

// Fit trains the ensemble from scratch.
func (g *GradientBoostingClassifier) Fit(X, y mat.Matrix) error {
	const op = "GradientBoostingClassifier.Fit"
	if err := g.validate(); err != nil {
		return err
	}
	n, p := X.Dims()
	if n == 0 {
		return errors.ErrEmptyData
	}
	if yr, yc := y.Dims(); yr != n || yc != 1 {
		return errors.NewDimensionError(op, n, yr, 0)
	}

	g.state.Reset()
	g.ClassList = uniqueLabels(y)
	if len(g.ClassList) < 2 {
		return errors.NewValidationError("y", "needs at least two classes", len(g.ClassList))
	}
	k := g.outputs()

	label := make([]int, n)
	counts := make([]float64, len(g.ClassList))
	for i := 0; i < n; i++ {
		label[i] = sort.SearchFloat64s(g.ClassList, y.At(i, 0))
		counts[label[i]]++
	}

	// 初期スコアは事前確率の logit / log
	g.BaseScore = make([]float64, k)
	if k == 1 {
		prior := counts[1] / float64(n)
		g.BaseScore[0] = math.Log(prior / (1 - prior))
	} else {
		for c := range g.BaseScore {
			g.BaseScore[c] = math.Log(counts[c] / float64(n))
		}
	}

	raw := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		raw.SetRow(i, g.BaseScore)
	}

	rng := rand.New(rand.NewPCG(g.Seed, g.Seed^0x9e3779b97f4a7c15))
	grad := make([][]float64, k)
	hess := make([][]float64, k)
	for c := 0; c < k; c++ {
		grad[c] = make([]float64, n)
		hess[c] = make([]float64, n)
	}
	params := treeParams{
		maxDepth:       g.MaxDepth,
		minChildWeight: g.MinChildWeight,
		gamma:          g.Gamma,
		lambda:         g.Lambda,
	}
	logger := log.GetLoggerWithName("ensemble")

	g.Trees = make([][]*Tree, 0, g.NEstimators)
	for round := 0; round < g.NEstimators; round++ {
		computeGradients(raw, label, grad, hess)

		rows := sampleIndices(rng, n, g.Subsample)
		features := sampleIndices(rng, p, g.ColsampleByTree)

		trees := make([]*Tree, k)
		for c := 0; c < k; c++ {
			b := treeBuilder{X: X, grad: grad[c], hess: hess[c], features: features, params: params}
			trees[c] = b.build(rows)
		}
		g.Trees = append(g.Trees, trees)

		parallel.ParallelizeWithThreshold(n, parallel.DefaultThreshold, func(start, end int) {
			for i := start; i < end; i++ {
				for c, t := range trees {
					raw.Set(i, c, raw.At(i, c)+g.LearningRate*t.Predict(X, i))
				}
			}
		})

		if logger.Enabled(context.Background(), log.LevelDebug) {
			logger.Debug("boosting round",
				log.IterationKey, round,
				log.LossKey, trainLoss(raw, label),
			)
		}
	}

	g.state.SetDimensions(p, n)
	g.state.SetFitted()
	logger.Debug("gradient boosting fitted",
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.HyperParamsKey, g.GetParams(),
	)
	return nil
}

// computeGradients fills the first and second derivatives of the loss with
// respect to the raw scores. Rows are split across cores.
func computeGradients(raw *mat.Dense, label []int, grad, hess [][]float64) {
	n, k := raw.Dims()
	parallel.ParallelizeWithThreshold(n, parallel.DefaultThreshold, func(start, end int) {
		scores := make([]float64, k)
		prob := make([]float64, k)
		for i := start; i < end; i++ {
			if k == 1 {
				pr := errors.Sigmoid(raw.At(i, 0))
				target := 0.0
				if label[i] == 1 {
					target = 1
				}
				grad[0][i] = pr - target
				hess[0][i] = math.Max(pr*(1-pr), hessFloor)
				continue
			}
			mat.Row(scores, i, raw)
			errors.Softmax(scores, prob)
			for c := 0; c < k; c++ {
				target := 0.0
				if label[i] == c {
					target = 1
				}
				grad[c][i] = prob[c] - target
				hess[c][i] = math.Max(prob[c]*(1-prob[c]), hessFloor)
			}
		}
	})
}

// trainLoss is the mean cross entropy of the current raw scores.
func trainLoss(raw *mat.Dense, label []int) float64 {
	n, k := raw.Dims()
	loss := 0.0
	scores := make([]float64, k)
	for i := 0; i < n; i++ {
		if k == 1 {
			pr := errors.Sigmoid(raw.At(i, 0))
			if label[i] == 0 {
				pr = 1 - pr
			}
			loss -= math.Log(errors.ClipProbability(pr, 1e-15))
			continue
		}
		mat.Row(scores, i, raw)
		loss -= scores[label[i]] - errors.LogSumExp(scores)
	}
	return loss / float64(n)
}

// sampleIndices draws ceil(ratio*n) indices without replacement and returns
// them sorted. ratio 1 returns every index without consuming randomness.
func sampleIndices(rng *rand.Rand, n int, ratio float64) []int {
	if ratio >= 1 {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	m := int(math.Ceil(ratio * float64(n)))
	if m < 1 {
		m = 1
	}
	out := rng.Perm(n)[:m]
	sort.Ints(out)
	return out
}

func uniqueLabels(y mat.Matrix) []float64 {
	n, _ := y.Dims()
	seen := make(map[float64]bool)
	var out []float64
	for i := 0; i < n; i++ {
		v := y.At(i, 0)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// rawScores returns base score plus eta times the sum of tree outputs.
func (g *GradientBoostingClassifier) rawScores(X mat.Matrix) *mat.Dense {
	n, _ := X.Dims()
	k := g.outputs()
	raw := mat.NewDense(n, k, nil)
	parallel.ParallelizeWithThreshold(n, parallel.DefaultThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for c := 0; c < k; c++ {
				s := g.BaseScore[c]
				for _, trees := range g.Trees {
					s += g.LearningRate * trees[c].Predict(X, i)
				}
				raw.Set(i, c, s)
			}
		}
	})
	return raw
}

// PredictProba returns an n×k matrix of class probabilities whose columns
// follow Classes().
func (g *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := g.state.RequireFitted("GradientBoostingClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if err := g.state.RequireFeatures("GradientBoostingClassifier.PredictProba", p); err != nil {
		return nil, err
	}

	raw := g.rawScores(X)
	out := mat.NewDense(n, len(g.ClassList), nil)
	row := make([]float64, g.outputs())
	prob := make([]float64, len(g.ClassList))
	for i := 0; i < n; i++ {
		if len(row) == 1 {
			pr := errors.Sigmoid(raw.At(i, 0))
			prob[0], prob[1] = 1-pr, pr
		} else {
			mat.Row(row, i, raw)
			errors.Softmax(row, prob)
		}
		out.SetRow(i, prob)
	}
	return out, nil
}

// Predict returns the most probable class per row as an n×1 matrix.
func (g *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := g.PredictProba(X)
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
		out.Set(i, 0, g.ClassList[best])
	}
	return out, nil
}

// Classes returns the sorted labels seen during Fit.
func (g *GradientBoostingClassifier) Classes() []float64 { return g.ClassList }

// IsFitted reports whether Fit has completed.
func (g *GradientBoostingClassifier) IsFitted() bool { return g.state.IsFitted() }

// FeatureImportance returns the total split gain per feature, normalized to
// sum to one. All zeros when no tree split.
func (g *GradientBoostingClassifier) FeatureImportance() []float64 {
	nFeatures, _ := g.state.GetDimensions()
	imp := make([]float64, nFeatures)
	total := 0.0
	for _, trees := range g.Trees {
		for _, t := range trees {
			for _, node := range t.Nodes {
				if !node.IsLeaf() {
					imp[node.Feature] += node.Gain
					total += node.Gain
				}
			}
		}
	}
	if total > 0 {
		for j := range imp {
			imp[j] /= total
		}
	}
	return imp
}

// GetParams returns the hyperparameters using xgboost names.
func (g *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     g.NEstimators,
		"eta":              g.LearningRate,
		"max_depth":        g.MaxDepth,
		"min_child_weight": g.MinChildWeight,
		"subsample":        g.Subsample,
		"colsample_bytree": g.ColsampleByTree,
		"gamma":            g.Gamma,
		"lambda":           g.Lambda,
		"seed":             g.Seed,
	}
}

// String returns a string representation of the model
func (g *GradientBoostingClassifier) String() string {
	return fmt.Sprintf("GradientBoostingClassifier(n_estimators=%d, eta=%.4g, max_depth=%d)",
		g.NEstimators, g.LearningRate, g.MaxDepth)
}
