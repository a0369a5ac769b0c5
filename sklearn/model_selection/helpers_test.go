package model_selection

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/featurelab/pkg/errors"
)

// sumClassifier scores each row by the sum of its columns. It is enough to
// rank rows for AUC and keeps the selection tests independent of any solver.
type sumClassifier struct {
	classes []float64
	fits    int
}

func (s *sumClassifier) Fit(X, y mat.Matrix) error {
	s.fits++
	n, _ := y.Dims()
	seen := map[float64]bool{}
	s.classes = s.classes[:0]
	for i := 0; i < n; i++ {
		v := y.At(i, 0)
		if !seen[v] {
			seen[v] = true
			s.classes = append(s.classes, v)
		}
	}
	sort.Float64s(s.classes)
	if len(s.classes) < 2 {
		return errors.NewValidationError("y", "needs at least two classes", len(s.classes))
	}
	return nil
}

func (s *sumClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	n, p := X.Dims()
	out := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		z := 0.0
		for j := 0; j < p; j++ {
			z += X.At(i, j)
		}
		pos := errors.Sigmoid(z)
		out.Set(i, 0, 1-pos)
		out.Set(i, 1, pos)
	}
	return out, nil
}

func (s *sumClassifier) Classes() []float64 { return s.classes }

// panicClassifier panics on its second fit.
type panicClassifier struct {
	sumClassifier
}

func (p *panicClassifier) Fit(X, y mat.Matrix) error {
	if p.fits == 1 {
		panic("solver blew up")
	}
	return p.sumClassifier.Fit(X, y)
}

// selectionData returns n rows whose column 0 equals the label and whose
// other columns are uniform noise in [-0.1, 0.1).
func selectionData(n, p int, seed uint64) (*mat.Dense, *mat.Dense) {
	r := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, p, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		label := float64(i % 2)
		y.Set(i, 0, label)
		X.Set(i, 0, label)
		for j := 1; j < p; j++ {
			X.Set(i, j, r.Float64()*0.2-0.1)
		}
	}
	return X, y
}
