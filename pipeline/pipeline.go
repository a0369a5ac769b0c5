// Package pipeline chains transformers in front of a classifier.
package pipeline

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/featurelab/core/model"
	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/preprocessing"
)

// Pipeline fits its steps in order and passes the transformed matrix to the
// final classifier. A Pipeline is itself a model.Classifier.
type Pipeline struct {
	Steps []model.Transformer
	Final model.Classifier
}

// NewPipeline creates a pipeline that applies steps before final.
func NewPipeline(final model.Classifier, steps ...model.Transformer) *Pipeline {
	return &Pipeline{Steps: steps, Final: final}
}

// NewScaledClassifier standardizes every feature before clf.
func NewScaledClassifier(clf model.Classifier) *Pipeline {
	return NewPipeline(clf, preprocessing.NewStandardScalerDefault())
}

// Fit refits every step and then the classifier.
func (p *Pipeline) Fit(X, y mat.Matrix) error {
	if p.Final == nil {
		return errors.NewValueError("Pipeline.Fit", "final classifier is nil")
	}
	cur := X
	for i, step := range p.Steps {
		out, err := step.FitTransform(cur)
		if err != nil {
			return errors.Wrapf(err, "pipeline step %d", i)
		}
		cur = out
	}
	return p.Final.Fit(cur, y)
}

func (p *Pipeline) transform(X mat.Matrix) (mat.Matrix, error) {
	cur := X
	for i, step := range p.Steps {
		out, err := step.Transform(cur)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline step %d", i)
		}
		cur = out
	}
	return cur, nil
}

// PredictProba transforms X through the fitted steps and delegates to the
// classifier.
func (p *Pipeline) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	Xt, err := p.transform(X)
	if err != nil {
		return nil, err
	}
	return p.Final.PredictProba(Xt)
}

// Classes returns the classifier's labels.
func (p *Pipeline) Classes() []float64 { return p.Final.Classes() }

// GetParams returns the classifier's parameters when it exposes them.
func (p *Pipeline) GetParams() map[string]interface{} {
	if pg, ok := p.Final.(model.ParameterGetter); ok {
		return pg.GetParams()
	}
	return map[string]interface{}{}
}

func (p *Pipeline) String() string {
	parts := make([]string, 0, len(p.Steps)+1)
	for _, s := range p.Steps {
		parts = append(parts, fmt.Sprint(s))
	}
	parts = append(parts, fmt.Sprint(p.Final))
	return "Pipeline(" + strings.Join(parts, " -> ") + ")"
}
