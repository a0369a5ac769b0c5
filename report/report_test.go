package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/featurelab/hyperopt"
	"github.com/YuminosukeSato/featurelab/preprocessing"
	"github.com/YuminosukeSato/featurelab/sklearn/model_selection"
)

func selection() *model_selection.SelectionResult {
	return &model_selection.SelectionResult{
		Selected: []int{0},
		History:  []model_selection.SelectionStep{{Score: 0.9, Feature: 0}, {Score: 0.9, Feature: 2}},
		Rounds: [][]model_selection.CandidateScore{
			{{Feature: 0, Score: 0.9}, {Feature: 1, Score: 0.5}, {Feature: 2, Score: 0.6}},
			{{Feature: 1, Score: 0.88}, {Feature: 2, Score: 0.9}},
		},
	}
}

func TestPlotsSaveAsPNG(t *testing.T) {
	dir := t.TempDir()

	sel, err := SelectionPlot(selection(), "auc")
	require.NoError(t, err)
	require.NoError(t, Save(sel, filepath.Join(dir, "selection.png")))

	tuning, err := TuningPlot(&hyperopt.TuningResult{
		BestLoss: 0.4,
		Trials: []hyperopt.Trial{
			{Number: 0, Loss: 0.7},
			{Number: 1, Loss: 0.4},
			{Number: 2, Loss: 0.5},
		},
	})
	require.NoError(t, err)
	require.NoError(t, Save(tuning, filepath.Join(dir, "tuning.png")))

	iv, err := IVPlot(preprocessing.IVReport{{Feature: "cities", IV: 0.4}, {Feature: "dow", IV: 0.01}})
	require.NoError(t, err)
	require.NoError(t, Save(iv, filepath.Join(dir, "iv.svg")))

	for _, name := range []string{"selection.png", "tuning.png", "iv.svg"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0), name)
	}
}

func TestEmptyInputs(t *testing.T) {
	_, err := SelectionPlot(&model_selection.SelectionResult{}, "auc")
	assert.Error(t, err)
	_, err = TuningPlot(&hyperopt.TuningResult{})
	assert.Error(t, err)
	_, err = IVPlot(nil)
	assert.Error(t, err)
}

func TestWriteIVTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteIVTable(&buf, preprocessing.IVReport{
		{Feature: "genres", IV: 0.35},
		{Feature: "dow", IV: 0.015},
	}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "genres"))
	assert.Contains(t, lines[1], "strong")
	assert.Contains(t, lines[2], "useless")
}

func TestStrength(t *testing.T) {
	tests := []struct {
		iv   float64
		want string
	}{
		{0, "useless"},
		{0.05, "weak"},
		{0.2, "medium"},
		{0.4, "strong"},
		{0.9, "suspicious"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Strength(tt.iv))
	}
}

func TestWriteSelectionTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSelectionTable(&buf, selection(), []string{"a", "b", "c"}))
	out := buf.String()
	assert.Contains(t, out, "a")
	assert.Regexp(t, `2\s+c\s+0\.900000\s+false`, out)
}
