// Package app wires the featurelab stages behind the CLI: prepare, woe,
// select and tune. Every stage reads and writes checkpoints under the
// configured output directory.
package app

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/featurelab/core/model"
	"github.com/YuminosukeSato/featurelab/dataset"
	"github.com/YuminosukeSato/featurelab/features"
	"github.com/YuminosukeSato/featurelab/hyperopt"
	"github.com/YuminosukeSato/featurelab/internal/config"
	"github.com/YuminosukeSato/featurelab/metrics"
	"github.com/YuminosukeSato/featurelab/pipeline"
	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/pkg/log"
	"github.com/YuminosukeSato/featurelab/preprocessing"
	"github.com/YuminosukeSato/featurelab/report"
	"github.com/YuminosukeSato/featurelab/sklearn/ensemble"
	"github.com/YuminosukeSato/featurelab/sklearn/linear_model"
	"github.com/YuminosukeSato/featurelab/sklearn/model_selection"
)

// Checkpoint file names inside the output directory.
const (
	PreparedFile   = "prepared.feather"
	TrainWOEFile   = "train_woe.parquet"
	TestWOEFile    = "test_woe.parquet"
	EncoderFile    = "woe.gob"
	IVTableFile    = "iv.txt"
	IVPlotFile     = "iv.png"
	SelectionFile  = "selection.txt"
	SelectionPlot  = "selection.png"
	BestParamsFile = "best_params.yaml"
	TuningPlotFile = "tuning.png"
)

// App runs stages against one configuration.
type App struct {
	cfg    *config.Config
	logger log.Logger
}

// New creates an App and makes sure the output directory exists.
func New(cfg *config.Config) (*App, error) {
	if err := os.MkdirAll(cfg.Data.OutputDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create output dir %s", cfg.Data.OutputDir)
	}
	return &App{cfg: cfg, logger: log.GetLoggerWithName("app")}, nil
}

func (a *App) out(name string) string { return filepath.Join(a.cfg.Data.OutputDir, name) }

// PrepareResult is the merged, feature-engineered table.
type PrepareResult struct {
	Table   *dataset.Table
	Mask    []bool
	Added   []string
	Classes []string
}

// Prepare loads both partitions, merges them, derives count features,
// clusters the configured multi-valued columns, encodes a text label and
// writes the feather checkpoint.
func (a *App) Prepare() (*PrepareResult, error) {
	train, err := dataset.LoadFile(a.cfg.Data.Train)
	if err != nil {
		return nil, err
	}
	test, err := dataset.LoadFile(a.cfg.Data.Test)
	if err != nil {
		return nil, err
	}
	merged, mask, err := dataset.Merge(train, test, a.cfg.Data.Label)
	if err != nil {
		return nil, err
	}

	// 件数系の特徴量はクラスタリングで ":count" が消える前に作る
	added, err := features.Build(merged, a.cfg.FeatureSpec())
	if err != nil {
		return nil, errors.Wrap(err, "build count features")
	}
	dummies, err := preprocessing.PrepareOneHot(merged, a.cfg.Features.OneHot)
	if err != nil {
		return nil, errors.Wrap(err, "one-hot encode")
	}
	added = append(added, dummies...)
	for _, cl := range a.cfg.Clusterers() {
		if err := cl.ClusterColumn(merged); err != nil {
			return nil, errors.Wrapf(err, "cluster %s", cl.Column)
		}
	}

	res := &PrepareResult{Table: merged, Mask: mask, Added: added}
	labelCol, err := merged.Column(a.cfg.Data.Label)
	if err != nil {
		return nil, err
	}
	if labelCol.Kind == dataset.String {
		enc := preprocessing.NewLabelEncoder()
		if err := enc.EncodeColumn(merged, a.cfg.Data.Label); err != nil {
			return nil, err
		}
		res.Classes = enc.Classes()
	}

	if err := dataset.SaveFile(merged, a.out(PreparedFile)); err != nil {
		return nil, err
	}
	a.logger.Info("prepare finished",
		log.SamplesKey, merged.NumRows(),
		log.FeaturesKey, merged.NumCols(),
		"derived", added,
	)
	return res, nil
}

// split returns the train and test partitions of the prepared checkpoint.
func (a *App) split() (train, test *dataset.Table, err error) {
	t, err := dataset.LoadFile(a.out(PreparedFile))
	if err != nil {
		return nil, nil, err
	}
	mask, err := dataset.TrainMask(t, a.cfg.Data.Label)
	if err != nil {
		return nil, nil, err
	}
	inverse := make([]bool, len(mask))
	for i, m := range mask {
		inverse[i] = !m
	}
	if train, err = t.Filter(mask); err != nil {
		return nil, nil, err
	}
	if test, err = t.Filter(inverse); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

// woeFeatures is the configured list, or every text column apart from the
// row id and the label.
func (a *App) woeFeatures(t *dataset.Table) preprocessing.FeatureSelection {
	if len(a.cfg.WOE.Features) > 0 {
		return a.cfg.WOEFeatures()
	}
	var names []string
	for _, name := range t.StringColumns() {
		if name != a.cfg.Data.IDColumn && name != a.cfg.Data.Label {
			names = append(names, name)
		}
	}
	return preprocessing.Only(names...)
}

// EncodeWOE fits a WOE encoder on the train rows, encodes both partitions
// and writes the parquet checkpoints, the encoder, the IV table and chart.
func (a *App) EncodeWOE() (preprocessing.IVReport, error) {
	train, test, err := a.split()
	if err != nil {
		return nil, err
	}
	y, err := train.Numeric(a.cfg.Data.Label)
	if err != nil {
		return nil, err
	}

	enc := preprocessing.NewWOEEncoder(a.cfg.WOEOptions()...)
	if err := enc.Fit(train, y, a.woeFeatures(train)); err != nil {
		return nil, err
	}
	if err := enc.Transform(train); err != nil {
		return nil, err
	}
	if err := enc.Transform(test); err != nil {
		return nil, err
	}
	if err := model.SaveModel(enc, a.out(EncoderFile)); err != nil {
		return nil, err
	}
	if err := dataset.SaveFile(train, a.out(TrainWOEFile)); err != nil {
		return nil, err
	}
	if err := dataset.SaveFile(test, a.out(TestWOEFile)); err != nil {
		return nil, err
	}

	iv := enc.Report()
	f, err := os.Create(a.out(IVTableFile))
	if err != nil {
		return nil, errors.Wrap(err, "create IV table")
	}
	defer f.Close()
	if err := report.WriteIVTable(f, iv); err != nil {
		return nil, err
	}
	if len(iv) > 0 {
		p, err := report.IVPlot(iv)
		if err != nil {
			return nil, err
		}
		if err := report.Save(p, a.out(IVPlotFile)); err != nil {
			return nil, err
		}
	}
	for _, e := range iv {
		a.logger.Info("information value", log.FeatureKey, e.Feature, log.InfoValueKey, e.IV)
	}
	return iv, nil
}

// Design is the numeric matrix handed to the models.
type Design struct {
	X     *mat.Dense
	Y     *mat.Dense
	Names []string
}

// design loads the encoded train rows and keeps every numeric column apart
// from the label. Columns with missing values are skipped with a warning.
func (a *App) design(only []string) (*Design, error) {
	t, err := dataset.LoadFile(a.out(TrainWOEFile))
	if err != nil {
		return nil, err
	}
	y, err := t.Numeric(a.cfg.Data.Label)
	if err != nil {
		return nil, err
	}

	names := only
	if len(names) == 0 {
		for _, name := range t.Names() {
			col, _ := t.Column(name)
			if name == a.cfg.Data.Label || col.Kind != dataset.Numeric {
				continue
			}
			if hasNaN(col.Num) {
				a.logger.Warn("feature skipped: missing values", log.FeatureKey, name)
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)
	}
	X, err := t.Matrix(names)
	if err != nil {
		return nil, err
	}
	return &Design{X: X, Y: mat.NewDense(len(y), 1, append([]float64(nil), y...)), Names: names}, nil
}

func hasNaN(v []float64) bool {
	for _, x := range v {
		if x != x {
			return true
		}
	}
	return false
}

// classifier builds the configured selection model.
func (a *App) classifier() model.Classifier {
	if a.cfg.Selection.Model == "gbm" {
		return ensemble.NewGradientBoostingClassifier(
			ensemble.WithNEstimators(50),
			ensemble.WithMaxDepth(3),
			ensemble.WithSeed(uint64(a.cfg.Seed)),
		)
	}
	return pipeline.NewScaledClassifier(linear_model.NewLogisticRegression())
}

// SelectResult names the selected features.
type SelectResult struct {
	*model_selection.SelectionResult
	Names         []string
	SelectedNames []string
}

// Select runs greedy forward selection on the encoded train rows.
func (a *App) Select() (*SelectResult, error) {
	metric, err := a.cfg.Metric()
	if err != nil {
		return nil, err
	}
	d, err := a.design(nil)
	if err != nil {
		return nil, err
	}
	res, err := model_selection.GreedyFeatureSearch(d.X, d.Y, a.classifier(),
		model_selection.WithSelectionSeed(a.cfg.Seed),
		model_selection.WithSelectionMetric(metric),
	)
	if err != nil {
		return nil, err
	}

	out := &SelectResult{SelectionResult: res, Names: d.Names}
	for _, f := range res.Selected {
		out.SelectedNames = append(out.SelectedNames, d.Names[f])
	}

	f, err := os.Create(a.out(SelectionFile))
	if err != nil {
		return nil, errors.Wrap(err, "create selection table")
	}
	defer f.Close()
	if err := report.WriteSelectionTable(f, res, d.Names); err != nil {
		return nil, err
	}
	p, err := report.SelectionPlot(res, metric.String())
	if err != nil {
		return nil, err
	}
	if err := report.Save(p, a.out(SelectionPlot)); err != nil {
		return nil, err
	}
	a.logger.Info("selection finished", log.SelectedKey, out.SelectedNames)
	return out, nil
}

// TuneResult is the best trial plus its score on the held-out split.
type TuneResult struct {
	*hyperopt.TuningResult
	Features    []string
	HoldoutLoss float64
}

// Tune searches space (DefaultGBMSpace when nil) on a stratified train
// split of the given features (all numeric ones when empty), refits the
// best model and scores it on the held-out split.
func (a *App) Tune(ctx context.Context, featureNames []string, space hyperopt.Space) (*TuneResult, error) {
	d, err := a.design(featureNames)
	if err != nil {
		return nil, err
	}
	if space == nil {
		space = hyperopt.DefaultGBMSpace()
	}
	xTr, xTe, yTr, yTe, err := model_selection.TrainTestSplit(d.X, d.Y, a.cfg.Tuning.TestSize, a.cfg.Seed, true)
	if err != nil {
		return nil, err
	}

	tuner := hyperopt.NewTuner(space, a.cfg.Seed)
	tuner.MaxEvals = a.cfg.Tuning.MaxEvals
	evalCtx := hyperopt.EvalContext{
		X:        xTr,
		Y:        yTr,
		Splitter: model_selection.NewStratifiedKFold(a.cfg.Tuning.Folds, true, a.cfg.Seed),
		Seed:     a.cfg.Seed,
	}
	res, err := tuner.Optimize(ctx, evalCtx, hyperopt.GBMObjective)
	if err != nil {
		return nil, err
	}

	clf := hyperopt.NewGBMFromParams(res.BestParams, a.cfg.Seed)
	if err := clf.Fit(xTr, yTr); err != nil {
		return nil, err
	}
	proba, err := clf.PredictProba(xTe)
	if err != nil {
		return nil, err
	}
	holdout, err := metrics.LogLoss(mat.Col(nil, 0, yTe), proba, clf.Classes())
	if err != nil {
		return nil, err
	}

	data, err := yaml.Marshal(map[string]interface{}{
		"features":     d.Names,
		"params":       map[string]float64(res.BestParams),
		"cv_loss":      res.BestLoss,
		"holdout_loss": holdout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal best params")
	}
	if err := os.WriteFile(a.out(BestParamsFile), data, 0o644); err != nil {
		return nil, errors.Wrap(err, "write best params")
	}
	p, err := report.TuningPlot(res)
	if err != nil {
		return nil, err
	}
	if err := report.Save(p, a.out(TuningPlotFile)); err != nil {
		return nil, err
	}

	a.logger.Info("tuning finished",
		log.LossKey, res.BestLoss,
		"holdout_loss", holdout,
		log.HyperParamsKey, res.BestParams,
	)
	return &TuneResult{TuningResult: res, Features: d.Names, HoldoutLoss: holdout}, nil
}
