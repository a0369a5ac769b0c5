// Package config loads featurelab run settings from YAML, a .env file and
// FEATURELAB_* environment variables, in increasing precedence.
package config

import (
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/featurelab/dataset"
	"github.com/YuminosukeSato/featurelab/features"
	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/preprocessing"
	"github.com/YuminosukeSato/featurelab/sklearn/model_selection"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FEATURELAB_"

// Config is the full run configuration.
type Config struct {
	Data      DataConfig               `yaml:"data"`
	Seed      int64                    `yaml:"seed"`
	LogLevel  string                   `yaml:"log_level"`
	Cluster   map[string]ClusterConfig `yaml:"cluster"`
	WOE       WOEConfig                `yaml:"woe"`
	Features  FeaturesConfig           `yaml:"features"`
	Selection SelectionConfig          `yaml:"selection"`
	Tuning    TuningConfig             `yaml:"tuning"`
}

// DataConfig locates the input tables and the output directory.
type DataConfig struct {
	Train     string `yaml:"train"`
	Test      string `yaml:"test"`
	Label     string `yaml:"label"`
	IDColumn  string `yaml:"id_column"`
	OutputDir string `yaml:"output_dir"`
}

// ClusterConfig is the token map of one multi-valued column.
type ClusterConfig struct {
	Map      map[string]string `yaml:"map"`
	Unmapped string            `yaml:"unmapped"` // pass | reject
}

// WOEConfig selects the columns and policies of WOE encoding.
type WOEConfig struct {
	Features    []string `yaml:"features"`    // 空なら共通の文字列列すべて
	Singularity string   `yaml:"singularity"` // reject | laplace
	Alpha       float64  `yaml:"alpha"`
	Unseen      string   `yaml:"unseen"` // reject | fill
	FillValue   float64  `yaml:"fill_value"`
}

// FeaturesConfig lists the derived count features.
type FeaturesConfig struct {
	Counts    []string            `yaml:"counts"`
	WatchTime []string            `yaml:"watch_time"`
	Frequency []string            `yaml:"frequency"`
	Flags     map[string][]string `yaml:"flags"`
	OneHot    []string            `yaml:"one_hot"`
}

// SelectionConfig configures greedy forward selection.
type SelectionConfig struct {
	Metric string `yaml:"metric"`
	Model  string `yaml:"model"` // logistic | gbm
}

// TuningConfig configures the hyperparameter search.
type TuningConfig struct {
	MaxEvals int     `yaml:"max_evals"`
	Folds    int     `yaml:"folds"`
	TestSize float64 `yaml:"test_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Train:     "data/train.json",
			Test:      "data/test.json",
			Label:     "segment",
			IDColumn:  dataset.IDColumn,
			OutputDir: "out",
		},
		Seed:     model_selection.DefaultSelectionSeed,
		LogLevel: "info",
		WOE: WOEConfig{
			Singularity: "reject",
			Alpha:       0.5,
			Unseen:      "reject",
		},
		Selection: SelectionConfig{Metric: "auc", Model: "logistic"},
		Tuning:    TuningConfig{MaxEvals: 250, Folds: 10, TestSize: 0.2},
	}
}

// Load reads path (optional when empty) on top of Default, loads envFile
// when it exists, applies FEATURELAB_* overrides and validates the result.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "load env file %s", envFile)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides scalar settings from lookup, which is normally
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	str("TRAIN", &c.Data.Train)
	str("TEST", &c.Data.Test)
	str("LABEL", &c.Data.Label)
	str("ID_COLUMN", &c.Data.IDColumn)
	str("OUTPUT_DIR", &c.Data.OutputDir)
	str("LOG_LEVEL", &c.LogLevel)
	str("METRIC", &c.Selection.Metric)
	str("MODEL", &c.Selection.Model)
	str("WOE_SINGULARITY", &c.WOE.Singularity)
	str("WOE_UNSEEN", &c.WOE.Unseen)

	if v, ok := lookup(EnvPrefix + "SEED"); ok && v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.NewValidationError(EnvPrefix+"SEED", "not an integer", v)
		}
		c.Seed = seed
	}
	if v, ok := lookup(EnvPrefix + "MAX_EVALS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.NewValidationError(EnvPrefix+"MAX_EVALS", "not an integer", v)
		}
		c.Tuning.MaxEvals = n
	}
	return nil
}

// Validate fails fast on the first invalid setting.
func (c *Config) Validate() error {
	if c.Data.Label == "" {
		return errors.NewValidationError("data.label", "must not be empty", c.Data.Label)
	}
	if _, err := model_selection.ParseMetric(c.Selection.Metric); err != nil {
		return err
	}
	switch c.Selection.Model {
	case "logistic", "gbm":
	default:
		return errors.NewValidationError("selection.model", "must be logistic or gbm", c.Selection.Model)
	}
	switch strings.ToLower(c.WOE.Singularity) {
	case "reject":
	case "laplace":
		if c.WOE.Alpha <= 0 {
			return errors.NewValidationError("woe.alpha", "must be positive with laplace smoothing", c.WOE.Alpha)
		}
	default:
		return errors.NewValidationError("woe.singularity", "must be reject or laplace", c.WOE.Singularity)
	}
	switch strings.ToLower(c.WOE.Unseen) {
	case "reject", "fill":
	default:
		return errors.NewValidationError("woe.unseen", "must be reject or fill", c.WOE.Unseen)
	}
	for _, name := range c.clusterNames() {
		switch c.Cluster[name].Unmapped {
		case "", "pass", "reject":
		default:
			return errors.NewValidationError("cluster."+name+".unmapped", "must be pass or reject", c.Cluster[name].Unmapped)
		}
	}
	if c.Tuning.MaxEvals < 1 {
		return errors.NewValidationError("tuning.max_evals", "must be at least 1", c.Tuning.MaxEvals)
	}
	if c.Tuning.Folds < 2 {
		return errors.NewValidationError("tuning.folds", "must be at least 2", c.Tuning.Folds)
	}
	if c.Tuning.TestSize <= 0 || c.Tuning.TestSize >= 1 {
		return errors.NewValidationError("tuning.test_size", "must be in (0, 1)", c.Tuning.TestSize)
	}
	return nil
}

func (c *Config) clusterNames() []string {
	names := make([]string, 0, len(c.Cluster))
	for name := range c.Cluster {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clusterers builds one Clusterer per configured column, sorted by column.
func (c *Config) Clusterers() []*preprocessing.Clusterer {
	out := make([]*preprocessing.Clusterer, 0, len(c.Cluster))
	for _, name := range c.clusterNames() {
		cc := c.Cluster[name]
		cl := preprocessing.NewClusterer(name, preprocessing.FeatureMap(cc.Map))
		if cc.Unmapped == "reject" {
			cl.Unmapped = preprocessing.UnmappedReject
		}
		out = append(out, cl)
	}
	return out
}

// WOEOptions translates the configured policies.
func (c *Config) WOEOptions() []preprocessing.WOEOption {
	var opts []preprocessing.WOEOption
	if strings.EqualFold(c.WOE.Singularity, "laplace") {
		opts = append(opts, preprocessing.WithSingularity(preprocessing.LaplaceSmoothing(c.WOE.Alpha)))
	}
	if strings.EqualFold(c.WOE.Unseen, "fill") {
		opts = append(opts, preprocessing.WithUnseen(preprocessing.UnseenFill(c.WOE.FillValue)))
	}
	return opts
}

// WOEFeatures returns the configured column selection.
func (c *Config) WOEFeatures() preprocessing.FeatureSelection {
	if len(c.WOE.Features) == 0 {
		return preprocessing.AllFeatures
	}
	return preprocessing.Only(c.WOE.Features...)
}

// FeatureSpec returns the derived feature specification.
func (c *Config) FeatureSpec() features.Spec {
	return features.Spec{
		Counts:    c.Features.Counts,
		WatchTime: c.Features.WatchTime,
		Frequency: c.Features.Frequency,
		Flags:     c.Features.Flags,
	}
}

// Metric returns the parsed selection metric.
func (c *Config) Metric() (model_selection.Metric, error) {
	m, err := model_selection.ParseMetric(c.Selection.Metric)
	if err != nil {
		return m, errors.Wrap(err, "selection.metric")
	}
	return m, nil
}
