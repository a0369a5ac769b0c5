package errors

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// CheckScalar returns a NumericDomainError when value is NaN or Inf.
func CheckScalar(op, feature string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericDomainError(op, feature, "non-finite value", value)
	}
	return nil
}

// CheckFinite checks every value of a slice and reports the first non-finite one.
func CheckFinite(op, feature string, values []float64) error {
	for _, v := range values {
		if err := CheckScalar(op, feature, v); err != nil {
			return err
		}
	}
	return nil
}

// ClipProbability clips p to [eps, 1-eps] so that log(p) stays finite.
func ClipProbability(p, eps float64) float64 {
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return p
}

// Sigmoid computes 1/(1+exp(-z)) without overflowing for large |z|.
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	ez := math.Exp(z)
	return ez / (1 + ez)
}

// LogSumExp computes log(sum(exp(values))) in a numerically stable way.
// Empty input or all -Inf values give -Inf.
func LogSumExp(values []float64) float64 {
	if len(values) == 0 || math.IsInf(floats.Max(values), -1) {
		return math.Inf(-1)
	}
	return floats.LogSumExp(values)
}

// Softmax writes the softmax of scores into out (allocated when nil) and returns it.
func Softmax(scores, out []float64) []float64 {
	if out == nil {
		out = make([]float64, len(scores))
	}
	lse := LogSumExp(scores)
	for i, s := range scores {
		out[i] = math.Exp(s - lse)
	}
	return out
}
