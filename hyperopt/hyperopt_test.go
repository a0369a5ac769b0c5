package hyperopt

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/pkg/log"
	"github.com/YuminosukeSato/featurelab/sklearn/model_selection"
)

func quietTuner(space Space, maxEvals int) *Tuner {
	logger, _ := log.NewTestLogger(log.LevelError)
	return &Tuner{Space: space, MaxEvals: maxEvals, Seed: 1, Logger: logger}
}

func TestTunerRespectsMaxEvals(t *testing.T) {
	calls := 0
	obj := func(_ EvalContext, p Params) (float64, error) {
		calls++
		return (p["x"] - 2) * (p["x"] - 2), nil
	}
	res, err := quietTuner(Space{"x": Uniform{Low: -5, High: 5}}, 15).Optimize(context.Background(), EvalContext{}, obj)
	require.NoError(t, err)

	assert.Equal(t, 15, calls)
	assert.Len(t, res.Trials, 15)

	// 最良の試行が返る
	best := math.Inf(1)
	for i, tr := range res.Trials {
		assert.Equal(t, i, tr.Number)
		assert.GreaterOrEqual(t, tr.Params["x"], -5.0)
		assert.LessOrEqual(t, tr.Params["x"], 5.0)
		best = math.Min(best, tr.Loss)
	}
	assert.Equal(t, best, res.BestLoss)
	assert.InDelta(t, (res.BestParams["x"]-2)*(res.BestParams["x"]-2), res.BestLoss, 1e-12)
}

func TestSpaceDistributions(t *testing.T) {
	space := Space{
		"depth": IntRange{Low: 1, High: 3},
		"eta":   QUniform{Low: 0.025, High: 0.5, Q: 0.025},
		"kind":  Choice{Values: []float64{0.5, 2}},
		"fixed": Const{Value: 7},
	}
	var seen []Params
	obj := func(_ EvalContext, p Params) (float64, error) {
		seen = append(seen, p)
		return p["depth"], nil
	}
	_, err := quietTuner(space, 12).Optimize(context.Background(), EvalContext{}, obj)
	require.NoError(t, err)

	for _, p := range seen {
		assert.Equal(t, math.Round(p["depth"]), p["depth"])
		assert.GreaterOrEqual(t, p["depth"], 1.0)
		assert.LessOrEqual(t, p["depth"], 3.0)
		steps := (p["eta"] - 0.025) / 0.025
		assert.InDelta(t, math.Round(steps), steps, 1e-9)
		assert.Contains(t, []float64{0.5, 2}, p["kind"])
		assert.Equal(t, 7.0, p["fixed"])
		assert.Equal(t, []string{"depth", "eta", "fixed", "kind"}, p.Names())
	}
}

func TestDefaultGBMSpaceSamplesOnGrid(t *testing.T) {
	grids := map[string][3]float64{
		"eta":              {0.025, 0.5, 0.025},
		"min_child_weight": {1, 6, 1},
		"subsample":        {0.5, 1, 0.05},
		"gamma":            {0.5, 1, 0.05},
		"colsample_bytree": {0.5, 1, 0.05},
	}
	obj := func(_ EvalContext, p Params) (float64, error) { return p["eta"], nil }
	res, err := quietTuner(DefaultGBMSpace(), 15).Optimize(context.Background(), EvalContext{}, obj)
	require.NoError(t, err)
	require.Len(t, res.Trials, 15)

	for _, tr := range res.Trials {
		for name, g := range grids {
			v := tr.Params[name]
			assert.GreaterOrEqual(t, v, g[0], name)
			assert.LessOrEqual(t, v, g[1]+1e-9, name)
			steps := (v - g[0]) / g[2]
			assert.InDelta(t, math.Round(steps), steps, 1e-9, name)
		}
		assert.Equal(t, math.Round(tr.Params["n_estimators"]), tr.Params["n_estimators"])
	}
}

func TestTunerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	obj := func(_ EvalContext, _ Params) (float64, error) {
		calls++
		if calls == 3 {
			cancel()
		}
		return float64(calls), nil
	}
	_, err := quietTuner(Space{"x": Uniform{Low: 0, High: 1}}, 50).Optimize(ctx, EvalContext{}, obj)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, calls)
}

func TestTunerObjectiveError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	obj := func(_ EvalContext, _ Params) (float64, error) {
		calls++
		if calls == 2 {
			return 0, boom
		}
		return 1, nil
	}
	_, err := quietTuner(Space{"x": Uniform{Low: 0, High: 1}}, 10).Optimize(context.Background(), EvalContext{}, obj)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "trial 1")
	assert.Equal(t, 2, calls)
}

func TestSpaceValidate(t *testing.T) {
	tests := []struct {
		name  string
		space Space
	}{
		{"empty", Space{}},
		{"uniform", Space{"x": Uniform{Low: 1, High: 1}}},
		{"quniform", Space{"x": QUniform{Low: 0, High: 1, Q: 0}}},
		{"int", Space{"x": IntRange{Low: 3, High: 1}}},
		{"choice", Space{"x": Choice{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.space.Validate())
		})
	}
	assert.NoError(t, DefaultGBMSpace().Validate())
}

func TestNewGBMFromParams(t *testing.T) {
	clf := NewGBMFromParams(Params{"n_estimators": 120.0000001, "max_depth": 4, "eta": 0.05}, 3)
	assert.Equal(t, 120, clf.NEstimators)
	assert.Equal(t, 4, clf.MaxDepth)
	assert.Equal(t, 0.05, clf.LearningRate)
	assert.Equal(t, 1.0, clf.Subsample)
	assert.Equal(t, uint64(3), clf.Seed)
}

func TestGBMObjective(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 1))
	n := 60
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		c := float64(i % 3)
		y.Set(i, 0, c)
		X.Set(i, 0, 2*c+r.NormFloat64()*0.3)
		X.Set(i, 1, r.NormFloat64())
	}
	evalCtx := EvalContext{X: X, Y: y, Splitter: model_selection.NewStratifiedKFold(3, true, 5), Seed: 5}

	good, err := GBMObjective(evalCtx, Params{"n_estimators": 20, "max_depth": 2, "eta": 0.3})
	require.NoError(t, err)
	weak, err := GBMObjective(evalCtx, Params{"n_estimators": 1, "max_depth": 1, "eta": 0.025})
	require.NoError(t, err)

	assert.Less(t, good, weak)
	// 事前分布だけの損失 ln 3 より良い
	assert.Less(t, good, math.Log(3))
}
