// Package features derives per-row numeric features from multi-valued
// "token:count" text columns and from plain categorical columns.
package features

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/featurelab/dataset"
	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/preprocessing"
)

// CountInstances returns the number of tokens per row. Empty and null
// cells count 0.
func CountInstances(col *dataset.Column) ([]float64, error) {
	if col.Kind != dataset.String {
		return nil, errors.NewValidationError(col.Name, "instance counts need a text column", col.Kind.String())
	}
	out := make([]float64, col.Len())
	for i := range out {
		out[i] = float64(len(preprocessing.Tokens(col.StringAt(i))))
	}
	return out, nil
}

// WatchTime sums the ":count" suffixes of every token per row, so
// "Cricket:130,Drama:20" gives 150. A token without an integer count is an
// error naming the row.
func WatchTime(col *dataset.Column) ([]float64, error) {
	if col.Kind != dataset.String {
		return nil, errors.NewValidationError(col.Name, "watch time needs a text column", col.Kind.String())
	}
	out := make([]float64, col.Len())
	for i := range out {
		var total int64
		for _, part := range strings.Split(col.StringAt(i), ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			idx := strings.LastIndexByte(part, ':')
			if idx < 0 {
				return nil, errors.NewValidationError(col.Name, "token has no count at row "+strconv.Itoa(i), part)
			}
			n, err := strconv.ParseInt(part[idx+1:], 10, 64)
			if err != nil {
				return nil, errors.NewValidationError(col.Name, "count is not an integer at row "+strconv.Itoa(i), part)
			}
			total += n
		}
		out[i] = float64(total)
	}
	return out, nil
}

// CountMatrix stacks CountInstances of each feature into an
// n×len(features) matrix.
func CountMatrix(t *dataset.Table, features []string) (*mat.Dense, error) {
	if len(features) == 0 || t.NumRows() == 0 {
		return nil, errors.ErrEmptyData
	}
	m := mat.NewDense(t.NumRows(), len(features), nil)
	for j, name := range features {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		counts, err := CountInstances(col)
		if err != nil {
			return nil, err
		}
		m.SetCol(j, counts)
	}
	return m, nil
}

// FrequencyCount replaces each row with the number of rows sharing its
// value. Missing values are counted as one group.
func FrequencyCount(col *dataset.Column) []float64 {
	keys := make([]string, col.Len())
	for i := range keys {
		keys[i] = cellKey(col, i)
	}
	freq := make(map[string]float64, len(keys))
	for _, k := range keys {
		freq[k]++
	}
	out := make([]float64, len(keys))
	for i, k := range keys {
		out[i] = freq[k]
	}
	return out
}

// MembershipFlag returns 1 where the cell equals one of values, else 0.
// Numeric cells are compared by their shortest decimal form.
func MembershipFlag(col *dataset.Column, values []string) []float64 {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	out := make([]float64, col.Len())
	for i := range out {
		if !col.IsNull(i) && set[cellKey(col, i)] {
			out[i] = 1
		}
	}
	return out
}

func cellKey(col *dataset.Column, i int) string {
	if col.IsNull(i) {
		return "\x00null"
	}
	if col.Kind == dataset.Numeric {
		v := col.Num[i]
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return col.Str[i]
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
