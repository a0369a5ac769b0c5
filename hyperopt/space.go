// Package hyperopt searches hyperparameter spaces with goptuna's TPE
// sampler and cross-validated objectives.
package hyperopt

import (
	"math"
	"sort"
	"strconv"

	"github.com/c-bata/goptuna"

	"github.com/YuminosukeSato/featurelab/pkg/errors"
)

// Params is one point of a search space.
type Params map[string]float64

// Get returns the value of name, or dflt when it is absent.
func (p Params) Get(name string, dflt float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return dflt
}

// Int returns the value of name rounded to the nearest integer.
func (p Params) Int(name string, dflt int) int {
	if v, ok := p[name]; ok {
		return int(math.Round(v))
	}
	return dflt
}

// Names returns the parameter names in sorted order.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Distribution draws one parameter value for a trial.
type Distribution interface {
	suggest(trial goptuna.Trial, name string) (float64, error)
	validate(name string) error
}

// Uniform is a continuous range [Low, High].
type Uniform struct {
	Low, High float64
}

func (d Uniform) suggest(trial goptuna.Trial, name string) (float64, error) {
	return trial.SuggestFloat(name, d.Low, d.High)
}

func (d Uniform) validate(name string) error {
	if !(d.Low < d.High) {
		return errors.NewValidationError(name, "low must be below high", d)
	}
	return nil
}

// QUniform is the grid Low, Low+Q, ..., High.
type QUniform struct {
	Low, High, Q float64
}

func (d QUniform) suggest(trial goptuna.Trial, name string) (float64, error) {
	v, err := trial.SuggestDiscreteFloat(name, d.Low, d.High, d.Q)
	if err != nil {
		return 0, err
	}
	// 刻みの浮動小数点誤差を丸める
	steps := math.Round((v - d.Low) / d.Q)
	return d.Low + steps*d.Q, nil
}

func (d QUniform) validate(name string) error {
	if !(d.Low < d.High) || d.Q <= 0 {
		return errors.NewValidationError(name, "needs low < high and q > 0", d)
	}
	return nil
}

// IntRange is the integer range [Low, High].
type IntRange struct {
	Low, High int
}

func (d IntRange) suggest(trial goptuna.Trial, name string) (float64, error) {
	v, err := trial.SuggestInt(name, d.Low, d.High)
	return float64(v), err
}

func (d IntRange) validate(name string) error {
	if d.Low > d.High {
		return errors.NewValidationError(name, "low must not exceed high", d)
	}
	return nil
}

// Choice picks one of Values.
type Choice struct {
	Values []float64
}

func (d Choice) suggest(trial goptuna.Trial, name string) (float64, error) {
	choices := make([]string, len(d.Values))
	for i, v := range d.Values {
		choices[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	s, err := trial.SuggestCategorical(name, choices)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}

func (d Choice) validate(name string) error {
	if len(d.Values) == 0 {
		return errors.NewValidationError(name, "choice needs at least one value", d)
	}
	return nil
}

// Const is a fixed value that is passed to every trial.
type Const struct {
	Value float64
}

func (d Const) suggest(goptuna.Trial, string) (float64, error) { return d.Value, nil }

func (d Const) validate(string) error { return nil }

// Space maps parameter names to distributions.
type Space map[string]Distribution

// Validate checks every distribution.
func (s Space) Validate() error {
	if len(s) == 0 {
		return errors.NewValidationError("space", "is empty", 0)
	}
	for _, name := range s.names() {
		if err := s[name].validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (s Space) names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// sample draws one Params from trial, visiting names in sorted order.
func (s Space) sample(trial goptuna.Trial) (Params, error) {
	params := make(Params, len(s))
	for _, name := range s.names() {
		v, err := s[name].suggest(trial, name)
		if err != nil {
			return nil, errors.Wrapf(err, "suggest %s", name)
		}
		params[name] = v
	}
	return params, nil
}

// DefaultGBMSpace is the search space for GradientBoostingClassifier.
func DefaultGBMSpace() Space {
	return Space{
		"n_estimators":     IntRange{Low: 100, High: 1000},
		"eta":              QUniform{Low: 0.025, High: 0.5, Q: 0.025},
		"max_depth":        IntRange{Low: 1, High: 13},
		"min_child_weight": QUniform{Low: 1, High: 6, Q: 1},
		"subsample":        QUniform{Low: 0.5, High: 1, Q: 0.05},
		"gamma":            QUniform{Low: 0.5, High: 1, Q: 0.05},
		"colsample_bytree": QUniform{Low: 0.5, High: 1, Q: 0.05},
	}
}
