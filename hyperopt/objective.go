package hyperopt

import (
	"github.com/YuminosukeSato/featurelab/sklearn/ensemble"
	"github.com/YuminosukeSato/featurelab/sklearn/model_selection"
)

// GBMFolds is the number of stratified folds GBMObjective uses when the
// EvalContext has no Splitter.
const GBMFolds = 10

// NewGBMFromParams builds a GradientBoostingClassifier. Names missing from
// params keep the classifier defaults.
func NewGBMFromParams(params Params, seed int64) *ensemble.GradientBoostingClassifier {
	d := ensemble.NewGradientBoostingClassifier()
	return ensemble.NewGradientBoostingClassifier(
		ensemble.WithNEstimators(params.Int("n_estimators", d.NEstimators)),
		ensemble.WithLearningRate(params.Get("eta", d.LearningRate)),
		ensemble.WithMaxDepth(params.Int("max_depth", d.MaxDepth)),
		ensemble.WithMinChildWeight(params.Get("min_child_weight", d.MinChildWeight)),
		ensemble.WithSubsample(params.Get("subsample", d.Subsample)),
		ensemble.WithColsampleByTree(params.Get("colsample_bytree", d.ColsampleByTree)),
		ensemble.WithGamma(params.Get("gamma", d.Gamma)),
		ensemble.WithLambda(params.Get("lambda", d.Lambda)),
		ensemble.WithSeed(uint64(seed)),
	)
}

// GBMObjective scores params by the mean multi-class log-loss of a
// GradientBoostingClassifier over shuffled stratified folds.
func GBMObjective(evalCtx EvalContext, params Params) (float64, error) {
	splitter := evalCtx.Splitter
	if splitter == nil {
		splitter = model_selection.NewStratifiedKFold(GBMFolds, true, evalCtx.Seed)
	}
	clf := NewGBMFromParams(params, evalCtx.Seed)
	res, err := model_selection.CrossValidate(evalCtx.X, evalCtx.Y, clf, splitter, model_selection.MetricLogLoss)
	if err != nil {
		return 0, err
	}
	return res.Mean(), nil
}
