package model_selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/featurelab/pkg/log"
)

func TestGreedyFeatureSearchFindsInformativeFeature(t *testing.T) {
	// 列 1..3 はラベルと無関係な定数列
	X, y := selectionData(60, 4, 11)
	for i := 0; i < 60; i++ {
		X.Set(i, 1, 0.05)
		X.Set(i, 2, 0)
		X.Set(i, 3, -0.05)
	}
	logger, _ := log.NewTestLogger(log.LevelInfo)

	res, err := GreedyFeatureSearch(X, y, &sumClassifier{}, WithSelectionLogger(logger))
	require.NoError(t, err)

	assert.Equal(t, []int{0}, res.Selected)
	require.Len(t, res.History, 2)
	assert.Equal(t, 0, res.History[0].Feature)
	assert.InDelta(t, 1.0, res.History[0].Score, 1e-12)
	// 2 巡目は全候補が AUC 1 で同点になり最後の列が選ばれてから外される
	assert.Equal(t, 3, res.History[1].Feature)
	assert.False(t, res.Exhausted)

	require.Len(t, res.Rounds, 2)
	assert.Len(t, res.Rounds[0], 4)
	for _, c := range res.Rounds[0][1:] {
		assert.InDelta(t, 0.5, c.Score, 1e-12)
	}
	assert.Len(t, res.Rounds[1], 3)

	assert.True(t, logger.ContainsMessage("feature added"))
	assert.True(t, logger.ContainsMessage("selection finished"))
}

func TestGreedyFeatureSearchTieBreak(t *testing.T) {
	// f0 は定数、f1 と f2 は同一の完全な特徴量
	n := 30
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		label := float64(i % 2)
		y.Set(i, 0, label)
		X.Set(i, 0, 0.5)
		X.Set(i, 1, label)
		X.Set(i, 2, label)
	}

	res, err := GreedyFeatureSearch(X, y, &sumClassifier{}, WithSelectionLogger(quietLogger()))
	require.NoError(t, err)

	require.Len(t, res.History, 2)
	assert.Equal(t, 2, res.History[0].Feature)
	assert.Equal(t, 1, res.History[1].Feature)
	assert.Equal(t, []int{2}, res.Selected)
}

func TestGreedyFeatureSearchExhausted(t *testing.T) {
	X, y := selectionData(30, 1, 2)

	res, err := GreedyFeatureSearch(X, y, &sumClassifier{}, WithSelectionLogger(quietLogger()))
	require.NoError(t, err)

	assert.True(t, res.Exhausted)
	assert.Equal(t, []int{0}, res.Selected)
	assert.Len(t, res.History, 1)
}

func TestGreedyFeatureSearchLogLoss(t *testing.T) {
	X, y := selectionData(60, 3, 4)

	res, err := GreedyFeatureSearch(X, y, &sumClassifier{},
		WithSelectionMetric(MetricLogLoss),
		WithSelectionSeed(3),
		WithSelectionLogger(quietLogger()),
	)
	require.NoError(t, err)
	assert.Contains(t, res.Selected, 0)
	assert.Equal(t, 0, res.History[0].Feature)
}

func TestGreedyFeatureSearchPropagatesFoldErrors(t *testing.T) {
	X, y := selectionData(30, 2, 2)
	_, err := GreedyFeatureSearch(X, y, &panicClassifier{}, WithSelectionLogger(quietLogger()))
	assert.Error(t, err)
}

func quietLogger() log.Logger {
	logger, _ := log.NewTestLogger(log.LevelWarn)
	return logger
}
