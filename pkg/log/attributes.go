// Attribute keys shared by every pipeline stage. Keys are hierarchical
// ("data.samples", "cv.fold") so that log processors can group them.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator, e.g. "LogisticRegression".
	ModelNameKey = "model.name"

	// OperationKey is the operation being performed.
	// Standard values: the Operation* constants below.
	OperationKey = "ml.operation"

	// ComponentKey identifies the package doing the work.
	ComponentKey = "ml.component"

	// PhaseKey indicates the pipeline phase, see the Phase* constants.
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ColumnKey   = "data.column"
	PathKey     = "data.path"
	FormatKey   = "data.format"
)

// Metrics and iteration.
const (
	DurationMsKey = "perf.duration_ms"
	LossKey       = "metrics.loss"
	MetricKey     = "metrics.name"
	ScoreKey      = "metrics.score"
	IterationKey  = "training.iteration"
)

// Cross-validation, selection and tuning.
const (
	FoldKey        = "cv.fold"
	NFoldsKey      = "cv.n_folds"
	FeatureKey     = "selection.feature"
	SelectedKey    = "selection.features"
	RoundKey       = "selection.round"
	TrialKey       = "tuning.trial"
	HyperParamsKey = "model.hyperparams"
	RandomSeedKey  = "config.random_seed"
	InfoValueKey   = "woe.information_value"
	CategoriesKey  = "woe.categories"
	ErrorCodeKey   = "error.code"
	ErrorTypeKey   = "error.type"
	SuggestionKey  = "error.suggestion"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredictProba = "predict_proba"
	OperationTransform    = "transform"
	OperationScore        = "score"
	OperationSelect       = "select"
	OperationTune         = "tune"

	PhaseLoading       = "loading"
	PhasePreprocessing = "preprocessing"
	PhaseValidation    = "validation"
	PhaseSelection     = "selection"
	PhaseTuning        = "tuning"
)
