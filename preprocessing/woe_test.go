package preprocessing

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/featurelab/core/model"
	"github.com/YuminosukeSato/featurelab/dataset"
	"github.com/YuminosukeSato/featurelab/pkg/errors"
)

func textTable(t *testing.T, cols map[string][]string) *dataset.Table {
	t.Helper()
	tbl := dataset.NewTable()
	for _, name := range []string{"genres", "cities", "dow"} {
		if values, ok := cols[name]; ok {
			require.NoError(t, tbl.SetString(name, values, nil))
		}
	}
	return tbl
}

func TestWOEKnownValues(t *testing.T) {
	train := textTable(t, map[string][]string{"genres": {"A", "A", "B", "B", "A", "B"}})
	test := textTable(t, map[string][]string{"genres": {"B", "A"}})
	y := []float64{0, 0, 1, 1, 1, 0}

	newTrain, newTest, report, err := WOE(train, test, y, AllFeatures)
	require.NoError(t, err)

	ln2 := math.Log(2)
	got, _ := newTrain.Numeric("genres")
	assert.InDeltaSlice(t, []float64{ln2, ln2, -ln2, -ln2, ln2, -ln2}, got, 1e-12)
	got, _ = newTest.Numeric("genres")
	assert.InDeltaSlice(t, []float64{-ln2, ln2}, got, 1e-12)

	require.Len(t, report, 1)
	assert.Equal(t, "genres", report[0].Feature)
	assert.InDelta(t, 2.0/3.0*ln2, report[0].IV, 1e-12)
}

func TestWOELaplaceOnPerfectSeparation(t *testing.T) {
	train := textTable(t, map[string][]string{"genres": {"catA", "catA", "catB", "catB"}})
	test := textTable(t, map[string][]string{"genres": {"catA"}})
	y := []float64{0, 0, 1, 1}

	newTrain, _, report, err := WOE(train, test, y, Only("genres"), WithSingularity(LaplaceSmoothing(1)))
	require.NoError(t, err)

	// P(catA|good) = (2+1)/(2+2), P(catA|bad) = (0+1)/(2+2)
	ln3 := math.Log(3)
	got, _ := newTrain.Numeric("genres")
	assert.InDeltaSlice(t, []float64{ln3, ln3, -ln3, -ln3}, got, 1e-12)
	assert.InDelta(t, ln3, report[0].IV, 1e-12)
}

func TestWOERejectsSingularCategoryByDefault(t *testing.T) {
	train := textTable(t, map[string][]string{"genres": {"catA", "catA", "catB", "catB"}})
	test := textTable(t, map[string][]string{"genres": {"catA"}})

	_, _, _, err := WOE(train, test, []float64{0, 0, 1, 1}, AllFeatures)
	var domainErr *errors.NumericDomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "genres", domainErr.Feature)
	assert.Contains(t, domainErr.Reason, "catA")
}

func TestWOEPureAndInPlaceAgree(t *testing.T) {
	cols := map[string][]string{
		"genres": {"A", "B", "A", "C", "B", "C", "A", "B"},
		"cities": {"x", "x", "y", "y", "x", "y", "y", "x"},
	}
	y := []float64{0, 1, 0, 1, 1, 0, 1, 0}
	opts := []WOEOption{WithSingularity(LaplaceSmoothing(0.5))}

	train := textTable(t, cols)
	test := textTable(t, map[string][]string{"genres": {"A", "C"}, "cities": {"y", "x"}})
	_, _, pure, err := WOE(train, test, y, AllFeatures, opts...)
	require.NoError(t, err)

	// 純粋版は入力を変更しない
	c, _ := train.Column("genres")
	assert.Equal(t, dataset.String, c.Kind)
	c, _ = test.Column("cities")
	assert.Equal(t, dataset.String, c.Kind)

	inPlace, err := WOEInPlace(train, test, y, AllFeatures, opts...)
	require.NoError(t, err)
	assert.Equal(t, pure, inPlace)

	c, _ = train.Column("genres")
	assert.Equal(t, dataset.Numeric, c.Kind)
}

func TestWOEValidation(t *testing.T) {
	train := textTable(t, map[string][]string{"genres": {"A", "B", "A"}, "cities": {"x", "y", "x"}})
	test := textTable(t, map[string][]string{"genres": {"A"}, "cities": {"x"}})
	y := []float64{0, 1, 1}

	tests := []struct {
		name     string
		test     *dataset.Table
		y        []float64
		features FeatureSelection
		check    func(t *testing.T, err error)
	}{
		{
			name: "three label values", test: test, y: []float64{0, 1, 2}, features: AllFeatures,
			check: func(t *testing.T, err error) {
				var v *errors.ValidationError
				assert.ErrorAs(t, err, &v)
			},
		},
		{
			name: "one label value", test: test, y: []float64{1, 1, 1}, features: AllFeatures,
			check: func(t *testing.T, err error) {
				var v *errors.ValidationError
				assert.ErrorAs(t, err, &v)
			},
		},
		{
			name: "different text columns", y: y, features: AllFeatures,
			test: textTable(t, map[string][]string{"genres": {"A"}, "dow": {"1"}}),
			check: func(t *testing.T, err error) {
				var s *errors.SchemaMismatchError
				require.ErrorAs(t, err, &s)
				assert.Equal(t, []string{"cities"}, s.OnlyLeft)
				assert.Equal(t, []string{"dow"}, s.OnlyRight)
			},
		},
		{
			name: "empty feature list", test: test, y: y, features: Only(),
			check: func(t *testing.T, err error) {
				var v *errors.ValidationError
				assert.ErrorAs(t, err, &v)
			},
		},
		{
			name: "unknown features", test: test, y: y, features: Only("genres", "titles", "tod"),
			check: func(t *testing.T, err error) {
				var v *errors.ValidationError
				require.ErrorAs(t, err, &v)
				assert.Contains(t, v.Reason, "titles,tod")
			},
		},
		{
			name: "label length", test: test, y: []float64{0, 1}, features: AllFeatures,
			check: func(t *testing.T, err error) {
				var d *errors.DimensionError
				assert.ErrorAs(t, err, &d)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := WOE(train, tt.test, tt.y, tt.features, WithSingularity(LaplaceSmoothing(1)))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestWOEUnseenPolicy(t *testing.T) {
	train := textTable(t, map[string][]string{"genres": {"A", "B", "A", "B"}})
	y := []float64{0, 1, 1, 0}

	test := textTable(t, map[string][]string{"genres": {"A", "Z"}})
	_, err := WOEInPlace(train.Clone(), test, y, AllFeatures)
	var unseen *errors.UnseenCategoryError
	require.ErrorAs(t, err, &unseen)
	assert.Equal(t, "Z", unseen.Value)
	c, _ := test.Column("genres")
	assert.Equal(t, dataset.String, c.Kind, "test must be untouched on error")

	_, newTest, _, err := WOE(train, test, y, AllFeatures, WithUnseen(UnseenFill(0)))
	require.NoError(t, err)
	got, _ := newTest.Numeric("genres")
	assert.Equal(t, []float64{0, 0}, got)
}

func TestWOEEncoderLookupAndPersistence(t *testing.T) {
	train := textTable(t, map[string][]string{"genres": {"A", "B", "A", "B"}})
	enc := NewWOEEncoder()

	_, err := enc.Lookup("genres", "A")
	var nf *errors.NotFittedError
	require.ErrorAs(t, err, &nf)

	require.NoError(t, enc.Fit(train, []float64{0, 1, 1, 0}, AllFeatures))

	r, err := enc.Lookup("genres", "A")
	require.NoError(t, err)
	assert.True(t, r.Mapped)
	assert.InDelta(t, 0, r.Value, 1e-12)

	r, err = enc.Lookup("genres", "Q")
	require.NoError(t, err)
	assert.False(t, r.Mapped)
	assert.Equal(t, "Q", r.Original)

	_, err = enc.Lookup("cities", "A")
	assert.ErrorIs(t, err, errors.ErrColumnNotFound)

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(enc, &buf))
	restored := NewWOEEncoder()
	require.NoError(t, model.LoadModelFromReader(restored, &buf))
	assert.Equal(t, enc.Weights, restored.Weights)
	assert.True(t, restored.State.IsFitted())
}

func TestIVReportOrdering(t *testing.T) {
	enc := NewWOEEncoder()
	enc.IV = map[string]float64{"dow": 0.1, "cities": 0.4, "genres": 0.4, "titles": 0.02}
	report := enc.Report()

	names := make([]string, len(report))
	for i, e := range report {
		names[i] = e.Feature
	}
	assert.Equal(t, []string{"cities", "genres", "dow", "titles"}, names)
	assert.Equal(t, 0.1, report.Map()["dow"])
}
