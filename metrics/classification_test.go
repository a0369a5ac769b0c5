package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/featurelab/pkg/errors"
)

func vec(v []float64) *mat.VecDense {
	if len(v) == 0 {
		return nil
	}
	return mat.NewVecDense(len(v), v)
}

func TestAUC(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yScore  []float64
		want    float64
		wantErr bool
	}{
		{"perfect ranking", []float64{0, 0, 0, 1, 1, 1}, []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9}, 1.0, false},
		{"reversed ranking", []float64{0, 0, 0, 1, 1, 1}, []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1}, 0.0, false},
		{"constant scores", []float64{0, 1, 0, 1}, []float64{0.5, 0.5, 0.5, 0.5}, 0.5, false},
		{"one discordant pair", []float64{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8}, 0.75, false},
		{"partial ties", []float64{0, 1, 0, 1}, []float64{0.2, 0.2, 0.1, 0.9}, 0.875, false},
		{"only positives", []float64{1, 1, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8}, 0.5, false},
		{"only negatives", []float64{0, 0, 0, 0}, []float64{0.1, 0.4, 0.35, 0.8}, 0.5, false},
		{"labels outside 0/1", []float64{0, 0.5, 1}, []float64{0.1, 0.5, 0.9}, 0, true},
		{"length mismatch", []float64{0, 1}, []float64{0.5}, 0, true},
		{"empty", nil, nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AUC(vec(tt.yTrue), vec(tt.yScore))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestAUCSingleClassWarns(t *testing.T) {
	var warned error
	prev := errors.SetWarningHandler(func(w error) { warned = w })
	defer errors.SetWarningHandler(prev)

	got, err := AUC(vec([]float64{1, 1}), vec([]float64{0.2, 0.7}))
	require.NoError(t, err)
	assert.Equal(t, 0.5, got)

	var undefined *errors.UndefinedMetricWarning
	assert.ErrorAs(t, warned, &undefined)
}

func TestROCAUCIsStrict(t *testing.T) {
	_, err := ROCAUC([]float64{3, 3, 3}, []float64{0.1, 0.2, 0.3}, 3)
	var domainErr *errors.NumericDomainError
	assert.ErrorAs(t, err, &domainErr)

	got, err := ROCAUC([]float64{2, 2, 5, 5}, []float64{0.1, 0.4, 0.35, 0.8}, 5)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got, 1e-9)
}

func TestAUCMatrix(t *testing.T) {
	got, err := AUCMatrix(mat.NewDense(4, 2, []float64{0, 9, 0, 9, 1, 9, 1, 9}),
		mat.NewDense(4, 2, []float64{0.1, 9, 0.4, 9, 0.35, 9, 0.8, 9}))
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got, 1e-9)

	_, err = AUCMatrix(nil, mat.NewDense(1, 1, []float64{0.5}))
	assert.Error(t, err)
	_, err = AUCMatrix(&mat.Dense{}, &mat.Dense{})
	assert.Error(t, err)
}

func TestBinaryLogLoss(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yProb   []float64
		want    float64
		wantErr bool
	}{
		{"confident and right", []float64{0, 0, 1, 1}, []float64{0, 0, 1, 1}, 0, false},
		{"typical", []float64{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9}, 0.164252, false},
		{"confident and wrong", []float64{0, 0, 1, 1}, []float64{0.9, 0.9, 0.1, 0.1}, 2.3025851, false},
		{"labels outside 0/1", []float64{0, 0.5, 1}, []float64{0.1, 0.5, 0.9}, 0, true},
		{"empty", nil, nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BinaryLogLoss(vec(tt.yTrue), vec(tt.yProb))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-4)
		})
	}
}

func TestLogLoss(t *testing.T) {
	proba := mat.NewDense(3, 3, []float64{
		0.7, 0.2, 0.1,
		0.1, 0.8, 0.1,
		0.2, 0.2, 0.6,
	})
	classes := []float64{1, 2, 3}

	got, err := LogLoss([]float64{1, 2, 3}, proba, classes)
	require.NoError(t, err)
	want := -(math.Log(0.7) + math.Log(0.8) + math.Log(0.6)) / 3
	assert.InDelta(t, want, got, 1e-9)

	// 二値の場合は BinaryLogLoss と一致する
	binary := mat.NewDense(4, 2, []float64{0.9, 0.1, 0.8, 0.2, 0.2, 0.8, 0.1, 0.9})
	got, err = LogLoss([]float64{0, 0, 1, 1}, binary, []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.164252, got, 1e-4)

	_, err = LogLoss([]float64{1, 4, 3}, proba, classes)
	var validation *errors.ValidationError
	assert.ErrorAs(t, err, &validation)

	_, err = LogLoss([]float64{1, 2}, proba, classes)
	var dim *errors.DimensionError
	assert.ErrorAs(t, err, &dim)
}

func TestAccuracyAndClassificationError(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []float64
		yPred []float64
		acc   float64
	}{
		{"all correct", []float64{0, 1, 2, 1, 0}, []float64{0, 1, 2, 1, 0}, 1.0},
		{"one wrong", []float64{0, 1, 2, 1, 0}, []float64{0, 1, 1, 1, 0}, 0.8},
		{"all wrong", []float64{0, 0, 0}, []float64{1, 1, 1}, 0.0},
		{"half", []float64{0, 0, 1, 1}, []float64{0, 1, 1, 0}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := Accuracy(vec(tt.yTrue), vec(tt.yPred))
			require.NoError(t, err)
			assert.InDelta(t, tt.acc, acc, 1e-12)

			e, err := ClassificationError(vec(tt.yTrue), vec(tt.yPred))
			require.NoError(t, err)
			assert.InDelta(t, 1-tt.acc, e, 1e-12)
		})
	}

	_, err := Accuracy(vec([]float64{0, 1}), vec([]float64{0}))
	assert.Error(t, err)
	_, err = ClassificationError(nil, nil)
	assert.Error(t, err)
}

func TestPositiveColumn(t *testing.T) {
	proba := mat.NewDense(2, 2, []float64{0.3, 0.7, 0.6, 0.4})
	col, positive, err := PositiveColumn(proba, []float64{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, positive)
	assert.Equal(t, []float64{0.7, 0.4}, col)

	_, _, err = PositiveColumn(proba, []float64{0, 1, 2})
	assert.Error(t, err)
}

func TestUniqueSorted(t *testing.T) {
	assert.Equal(t, []float64{-1, 0, 2.5}, UniqueSorted([]float64{2.5, 0, -1, 0, 2.5}))
	assert.Empty(t, UniqueSorted(nil))
}

func BenchmarkAUC(b *testing.B) {
	n := 1000
	yTrue := make([]float64, n)
	yScore := make([]float64, n)
	for i := 0; i < n; i++ {
		if i%3 == 0 {
			yTrue[i] = 1
		}
		yScore[i] = float64((i*7919)%n) / float64(n)
	}
	yt, ys := vec(yTrue), vec(yScore)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = AUC(yt, ys)
	}
}
