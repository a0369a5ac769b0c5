package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/preprocessing"
	"github.com/YuminosukeSato/featurelab/sklearn/model_selection"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(12313), cfg.Seed)
	assert.Equal(t, 250, cfg.Tuning.MaxEvals)
	m, err := cfg.Metric()
	require.NoError(t, err)
	assert.Equal(t, model_selection.MetricAUC, m)
	assert.Empty(t, cfg.WOEOptions())
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cfg.yaml", `
data:
  label: target
cluster:
  genres:
    unmapped: reject
    map: {Drama: d, Kids: k}
woe:
  features: [genres]
  singularity: laplace
  alpha: 1
  unseen: fill
  fill_value: -1
features:
  counts: [titles]
  flags:
    tod: ["20"]
selection:
  metric: logloss
  model: gbm
`)
	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "target", cfg.Data.Label)
	assert.Equal(t, "ID", cfg.Data.IDColumn, "unset fields keep defaults")
	m, err := cfg.Metric()
	require.NoError(t, err)
	assert.Equal(t, model_selection.MetricLogLoss, m)
	assert.Len(t, cfg.WOEOptions(), 2)

	cl := cfg.Clusterers()
	require.Len(t, cl, 1)
	assert.Equal(t, "genres", cl[0].Column)
	assert.Equal(t, preprocessing.UnmappedReject, cl[0].Unmapped)

	spec := cfg.FeatureSpec()
	assert.Equal(t, []string{"titles"}, spec.Counts)
	assert.Equal(t, []string{"20"}, spec.Flags["tod"])
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"FEATURELAB_LABEL":     "y",
		"FEATURELAB_SEED":      "7",
		"FEATURELAB_MAX_EVALS": "20",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "y", cfg.Data.Label)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 20, cfg.Tuning.MaxEvals)

	env["FEATURELAB_SEED"] = "seven"
	err := Default().ApplyEnv(lookup)
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "FEATURELAB_OUTPUT_DIR=from-env-file\n")
	t.Setenv("FEATURELAB_OUTPUT_DIR", "")
	os.Unsetenv("FEATURELAB_OUTPUT_DIR")

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-env-file", cfg.Data.OutputDir)

	// 存在しない .env は無視する
	_, err = Load("", filepath.Join(dir, "missing.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{"label", func(c *Config) { c.Data.Label = "" }, "data.label"},
		{"metric", func(c *Config) { c.Selection.Metric = "rmse" }, "metric"},
		{"model", func(c *Config) { c.Selection.Model = "svm" }, "selection.model"},
		{"singularity", func(c *Config) { c.WOE.Singularity = "ignore" }, "woe.singularity"},
		{"alpha", func(c *Config) { c.WOE.Singularity = "laplace"; c.WOE.Alpha = 0 }, "woe.alpha"},
		{"unseen", func(c *Config) { c.WOE.Unseen = "zero" }, "woe.unseen"},
		{"unmapped", func(c *Config) {
			c.Cluster = map[string]ClusterConfig{"genres": {Unmapped: "drop"}}
		}, "cluster.genres.unmapped"},
		{"max_evals", func(c *Config) { c.Tuning.MaxEvals = 0 }, "tuning.max_evals"},
		{"folds", func(c *Config) { c.Tuning.Folds = 1 }, "tuning.folds"},
		{"test_size", func(c *Config) { c.Tuning.TestSize = 1 }, "tuning.test_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var valErr *errors.ValidationError
			require.True(t, errors.As(err, &valErr), "got %v", err)
			assert.Equal(t, tt.param, valErr.ParamName)
		})
	}
}

func TestMetricRejectsUnknownName(t *testing.T) {
	cfg := Default()
	cfg.Selection.Metric = "rmse"

	_, err := cfg.Metric()
	require.Error(t, err)
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "featurelab.yaml"), "")
	require.NoError(t, err)
	assert.Len(t, cfg.Clusterers(), 2)
}
