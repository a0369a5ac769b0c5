package preprocessing

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/YuminosukeSato/featurelab/core/model"
	"github.com/YuminosukeSato/featurelab/dataset"
	"github.com/YuminosukeSato/featurelab/metrics"
	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/pkg/log"
)

// SingularityPolicy decides how a category seen in only one label class is
// encoded. The zero value rejects such categories.
type SingularityPolicy struct {
	// Alpha is the Laplace pseudo-count. 0 means reject.
	Alpha float64
}

// SingularityReject fails with a NumericDomainError naming the feature and
// category whose weight of evidence would be infinite.
var SingularityReject = SingularityPolicy{}

// LaplaceSmoothing adds alpha to every category count:
//
//	P(v|class) = (n_class(v) + alpha) / (n_class + alpha*K)
//
// where K is the number of distinct training categories of the feature.
func LaplaceSmoothing(alpha float64) SingularityPolicy {
	return SingularityPolicy{Alpha: alpha}
}

// UnseenPolicy decides how a category absent from training is encoded.
// The zero value rejects it.
type UnseenPolicy struct {
	Fill    float64
	FillSet bool
}

// UnseenReject fails with an UnseenCategoryError.
var UnseenReject = UnseenPolicy{}

// UnseenFill encodes unseen categories as value.
func UnseenFill(value float64) UnseenPolicy {
	return UnseenPolicy{Fill: value, FillSet: true}
}

// FeatureSelection names the columns to encode: every shared text column
// (AllFeatures) or an explicit list (Only).
type FeatureSelection struct {
	all   bool
	names []string
}

// AllFeatures selects every text column shared by train and test.
var AllFeatures = FeatureSelection{all: true}

// Only selects an explicit, non-empty list of columns.
func Only(names ...string) FeatureSelection {
	return FeatureSelection{names: append([]string(nil), names...)}
}

// WOEOption configures WOE encoding.
type WOEOption func(*WOEEncoder)

// WithSingularity sets the singularity policy.
func WithSingularity(p SingularityPolicy) WOEOption {
	return func(e *WOEEncoder) { e.Singularity = p }
}

// WithUnseen sets the unseen-category policy.
func WithUnseen(p UnseenPolicy) WOEOption {
	return func(e *WOEEncoder) { e.Unseen = p }
}

// IVEntry is the information value of one feature.
type IVEntry struct {
	Feature string
	IV      float64
}

// IVReport lists features by information value, highest first.
type IVReport []IVEntry

// Map returns the report keyed by feature.
func (r IVReport) Map() map[string]float64 {
	out := make(map[string]float64, len(r))
	for _, e := range r {
		out[e.Feature] = e.IV
	}
	return out
}

// WOEEncoder は二値ラベルに対する Weight of Evidence エンコーダ
//
// 各カテゴリ v を ln(P(v|good) / P(v|bad)) に置き換え、特徴量ごとに
// IV = Σ (P(v|good) - P(v|bad)) * woe を計算する。
// good は小さい方のラベル、bad は大きい方のラベル。
type WOEEncoder struct {
	State *model.StateManager

	Singularity SingularityPolicy
	Unseen      UnseenPolicy

	// Features はエンコード対象の列 (ソート済み)
	Features []string
	// Weights は列ごとのカテゴリ→WOE
	Weights map[string]map[string]float64
	// IV は列ごとの information value
	IV map[string]float64
	// Labels は [good, bad]
	Labels [2]float64
}

// NewWOEEncoder creates an encoder that rejects singular and unseen
// categories unless options say otherwise.
func NewWOEEncoder(opts ...WOEOption) *WOEEncoder {
	e := &WOEEncoder{State: model.NewStateManager()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fit learns a weight table per selected feature from the training rows.
func (e *WOEEncoder) Fit(train *dataset.Table, y []float64, features FeatureSelection) error {
	const op = "WOEEncoder.Fit"
	if e.Singularity.Alpha < 0 || math.IsNaN(e.Singularity.Alpha) {
		return errors.NewValidationError("alpha", "Laplace pseudo-count must be positive", e.Singularity.Alpha)
	}
	if len(y) != train.NumRows() {
		return errors.NewDimensionError(op, train.NumRows(), len(y), 0)
	}
	labels := metrics.UniqueSorted(y)
	if len(labels) != 2 {
		return errors.NewValidationError("y", "weight of evidence needs exactly two label values", len(labels))
	}
	names, err := resolveFeatures(train.StringColumns(), features)
	if err != nil {
		return err
	}

	e.State.Reset()
	e.Labels = [2]float64{labels[0], labels[1]}
	e.Features = names
	e.Weights = make(map[string]map[string]float64, len(names))
	e.IV = make(map[string]float64, len(names))

	var good, bad float64
	for _, v := range y {
		if v == labels[0] {
			good++
		} else {
			bad++
		}
	}

	logger := log.GetLoggerWithName("preprocessing")
	for _, name := range names {
		col, _ := train.Column(name)
		weights, iv, err := e.fitColumn(col, y, good, bad)
		if err != nil {
			return err
		}
		e.Weights[name] = weights
		e.IV[name] = iv
		logger.Debug("woe fitted",
			log.FeatureKey, name,
			log.CategoriesKey, len(weights),
			log.InfoValueKey, iv,
		)
	}

	e.State.SetDimensions(len(names), train.NumRows())
	e.State.SetFitted()
	return nil
}

func (e *WOEEncoder) fitColumn(col *dataset.Column, y []float64, good, bad float64) (map[string]float64, float64, error) {
	// counts[v] = [n_good(v), n_bad(v)]
	counts := make(map[string]*[2]float64)
	for i := 0; i < col.Len(); i++ {
		v := col.StringAt(i)
		c, ok := counts[v]
		if !ok {
			c = &[2]float64{}
			counts[v] = c
		}
		if y[i] == e.Labels[0] {
			c[0]++
		} else {
			c[1]++
		}
	}

	categories := make([]string, 0, len(counts))
	for v := range counts {
		categories = append(categories, v)
	}
	sort.Strings(categories)

	alpha := e.Singularity.Alpha
	k := float64(len(categories))
	weights := make(map[string]float64, len(categories))
	var iv float64
	for _, v := range categories {
		nGood, nBad := counts[v][0], counts[v][1]
		if alpha == 0 && (nGood == 0 || nBad == 0) {
			class := "bad"
			if nGood == 0 {
				class = "good"
			}
			return nil, 0, errors.NewNumericDomainError("WOE", col.Name,
				fmt.Sprintf("category %q never occurs in the %s class", v, class), 0)
		}
		countGood := (nGood + alpha) / (good + alpha*k)
		countBad := (nBad + alpha) / (bad + alpha*k)
		w := math.Log(countGood / countBad)
		weights[v] = w
		iv += (countGood - countBad) * w
	}
	return weights, iv, nil
}

// Lookup returns Recoded(woe) for a category seen during Fit and Unmapped
// otherwise, without applying the unseen policy.
func (e *WOEEncoder) Lookup(feature, value string) (Result[float64], error) {
	if err := e.State.RequireFitted("WOEEncoder", "Lookup"); err != nil {
		return Result[float64]{}, err
	}
	weights, ok := e.Weights[feature]
	if !ok {
		return Result[float64]{}, errors.Wrapf(errors.ErrColumnNotFound, "feature %q was not fitted", feature)
	}
	if w, ok := weights[value]; ok {
		return Recoded(value, w), nil
	}
	return Unmapped[float64](value), nil
}

// Transform replaces every fitted feature of t with its numeric WOE column.
// Unseen categories follow the unseen policy.
func (e *WOEEncoder) Transform(t *dataset.Table) error {
	if err := e.State.RequireFitted("WOEEncoder", "Transform"); err != nil {
		return err
	}
	encoded := make(map[string][]float64, len(e.Features))
	for _, name := range e.Features {
		col, err := t.Column(name)
		if err != nil {
			return err
		}
		if col.Kind != dataset.String {
			return errors.NewValidationError(name, "weight of evidence needs a text column", col.Kind.String())
		}
		values := make([]float64, col.Len())
		for i := range values {
			r, _ := e.Lookup(name, col.StringAt(i))
			switch {
			case r.Mapped:
				values[i] = r.Value
			case e.Unseen.FillSet:
				values[i] = e.Unseen.Fill
			default:
				return errors.NewUnseenCategoryError("WOEEncoder.Transform", name, r.Original)
			}
		}
		encoded[name] = values
	}
	// 全列の検証が通ってから書き換える
	for _, name := range e.Features {
		if err := t.SetNumeric(name, encoded[name]); err != nil {
			return err
		}
	}
	return nil
}

// Report returns the information values sorted descending, ties by name.
func (e *WOEEncoder) Report() IVReport {
	report := make(IVReport, 0, len(e.IV))
	for name, iv := range e.IV {
		report = append(report, IVEntry{Feature: name, IV: iv})
	}
	sort.Slice(report, func(i, j int) bool {
		if report[i].IV != report[j].IV {
			return report[i].IV > report[j].IV
		}
		return report[i].Feature < report[j].Feature
	})
	return report
}

// WOE encodes copies of train and test and returns them with the IV
// report. The inputs are left untouched.
func WOE(train, test *dataset.Table, y []float64, features FeatureSelection, opts ...WOEOption) (*dataset.Table, *dataset.Table, IVReport, error) {
	newTrain, newTest := train.Clone(), test.Clone()
	report, err := WOEInPlace(newTrain, newTest, y, features, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	return newTrain, newTest, report, nil
}

// WOEInPlace encodes train and test in place and returns the IV report.
// On error neither table has been modified.
//
// train and test must expose the same text columns; y holds one binary
// label per training row.
func WOEInPlace(train, test *dataset.Table, y []float64, features FeatureSelection, opts ...WOEOption) (IVReport, error) {
	trainCols, testCols := train.StringColumns(), test.StringColumns()
	if strings.Join(trainCols, "\x00") != strings.Join(testCols, "\x00") {
		return nil, errors.NewSchemaMismatchError("WOE", trainCols, testCols)
	}

	enc := NewWOEEncoder(opts...)
	if err := enc.Fit(train, y, features); err != nil {
		return nil, err
	}

	// test を先に検証・変換し、失敗時に train を変更しない
	testCopy := test.Clone()
	if err := enc.Transform(testCopy); err != nil {
		return nil, err
	}
	if err := enc.Transform(train); err != nil {
		return nil, err
	}
	for _, name := range enc.Features {
		c, _ := testCopy.Column(name)
		if err := test.SetNumeric(name, c.Num); err != nil {
			return nil, err
		}
	}

	report := enc.Report()
	logger := log.GetLoggerWithName("preprocessing")
	for _, entry := range report {
		logger.Info("information value", log.FeatureKey, entry.Feature, log.InfoValueKey, entry.IV)
	}
	return report, nil
}

func resolveFeatures(available []string, sel FeatureSelection) ([]string, error) {
	if sel.all {
		if len(available) == 0 {
			return nil, errors.NewValidationError("features", "no text columns to encode", 0)
		}
		return available, nil
	}
	if len(sel.names) == 0 {
		return nil, errors.NewValidationError("features", "at least one feature is required", 0)
	}

	known := make(map[string]bool, len(available))
	for _, n := range available {
		known[n] = true
	}
	var missing []string
	seen := make(map[string]bool, len(sel.names))
	names := make([]string, 0, len(sel.names))
	for _, n := range sel.names {
		if !known[n] {
			missing = append(missing, n)
			continue
		}
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewValidationError("features", "not text columns of the data: "+strings.Join(missing, ","), missing)
	}
	sort.Strings(names)
	return names, nil
}
