// Package dataset holds the in-memory column table used across featurelab,
// together with its CSV/JSON loaders and Arrow IPC / Parquet checkpoints.
package dataset

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/featurelab/pkg/errors"
)

// Kind is the storage type of a column.
type Kind int

const (
	// Numeric columns store float64 with NaN as missing.
	Numeric Kind = iota
	// String columns store text with a validity mask.
	String
)

func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "string"
}

// Column is a named, typed sequence of values aligned by row.
type Column struct {
	Name string
	Kind Kind

	// Num holds values of a Numeric column. NaN marks a missing cell.
	Num []float64
	// Str holds values of a String column.
	Str []string
	// Valid marks non-null cells of a String column. nil means all valid.
	Valid []bool
}

// Len returns the number of rows.
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Num)
	}
	return len(c.Str)
}

// IsNull reports whether row i is missing.
func (c *Column) IsNull(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.Num[i])
	}
	return c.Valid != nil && !c.Valid[i]
}

// StringAt returns the string value of row i. Null cells read as "".
func (c *Column) StringAt(i int) string {
	if c.IsNull(i) {
		return ""
	}
	return c.Str[i]
}

func (c *Column) clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Num != nil {
		out.Num = append([]float64(nil), c.Num...)
	}
	if c.Str != nil {
		out.Str = append([]string(nil), c.Str...)
	}
	if c.Valid != nil {
		out.Valid = append([]bool(nil), c.Valid...)
	}
	return out
}

func (c *Column) take(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case Numeric:
		out.Num = make([]float64, len(rows))
		for i, r := range rows {
			out.Num[i] = c.Num[r]
		}
	case String:
		out.Str = make([]string, len(rows))
		if c.Valid != nil {
			out.Valid = make([]bool, len(rows))
		}
		for i, r := range rows {
			out.Str[i] = c.Str[r]
			if c.Valid != nil {
				out.Valid[i] = c.Valid[r]
			}
		}
	}
	return out
}

// Table is an ordered set of equally long columns.
// The zero value is an empty table ready to use.
type Table struct {
	cols  []*Column
	index map[string]int
	nrows int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.nrows }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.cols) }

// Names returns the column names in table order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether a column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column. The column is shared with the table.
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrColumnNotFound, "column %q", name)
	}
	return t.cols[i], nil
}

// StringColumns returns the sorted names of all String columns.
func (t *Table) StringColumns() []string {
	var names []string
	for _, c := range t.cols {
		if c.Kind == String {
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	return names
}

// AddColumn appends c, or replaces the column with the same name in place.
func (t *Table) AddColumn(c *Column) error {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if c.Kind == String && c.Valid != nil && len(c.Valid) != len(c.Str) {
		return errors.NewDimensionError("AddColumn", len(c.Str), len(c.Valid), 0)
	}
	if len(t.cols) > 0 && c.Len() != t.nrows {
		return errors.NewDimensionError("AddColumn", t.nrows, c.Len(), 0)
	}
	if i, ok := t.index[c.Name]; ok {
		t.cols[i] = c
		return nil
	}
	if len(t.cols) == 0 {
		t.nrows = c.Len()
	}
	t.index[c.Name] = len(t.cols)
	t.cols = append(t.cols, c)
	return nil
}

// SetNumeric adds or replaces name with a Numeric column.
func (t *Table) SetNumeric(name string, values []float64) error {
	return t.AddColumn(&Column{Name: name, Kind: Numeric, Num: values})
}

// SetString adds or replaces name with a String column. valid may be nil.
func (t *Table) SetString(name string, values []string, valid []bool) error {
	return t.AddColumn(&Column{Name: name, Kind: String, Str: values, Valid: valid})
}

// Drop removes the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := t.cols[:0]
	for _, c := range t.cols {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	t.cols = kept
	t.reindex()
	if len(t.cols) == 0 {
		t.nrows = 0
	}
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.cols))
	for i, c := range t.cols {
		t.index[c.Name] = i
	}
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{cols: make([]*Column, len(t.cols)), nrows: t.nrows}
	for i, c := range t.cols {
		out.cols[i] = c.clone()
	}
	out.reindex()
	return out
}

// Rows returns a new table holding the given rows in the given order.
func (t *Table) Rows(rows []int) (*Table, error) {
	for _, r := range rows {
		if r < 0 || r >= t.nrows {
			return nil, errors.NewValidationError("rows", "row index out of range", r)
		}
	}
	out := &Table{cols: make([]*Column, len(t.cols)), nrows: len(rows)}
	for i, c := range t.cols {
		out.cols[i] = c.take(rows)
	}
	out.reindex()
	return out, nil
}

// Filter returns the rows where mask is true.
func (t *Table) Filter(mask []bool) (*Table, error) {
	if len(mask) != t.nrows {
		return nil, errors.NewDimensionError("Filter", t.nrows, len(mask), 0)
	}
	rows := make([]int, 0, len(mask))
	for i, keep := range mask {
		if keep {
			rows = append(rows, i)
		}
	}
	return t.Rows(rows)
}

// Numeric returns the values of a Numeric column.
func (t *Table) Numeric(name string) ([]float64, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != Numeric {
		return nil, errors.NewValidationError(name, "column is not numeric", c.Kind.String())
	}
	return c.Num, nil
}

// Matrix builds an n×len(features) matrix from Numeric columns in the order
// given. String columns or NaN cells are rejected.
func (t *Table) Matrix(features []string) (*mat.Dense, error) {
	if t.nrows == 0 || len(features) == 0 {
		return nil, errors.ErrEmptyData
	}
	data := make([]float64, t.nrows*len(features))
	for j, name := range features {
		values, err := t.Numeric(name)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			if math.IsNaN(v) {
				return nil, errors.NewNumericDomainError("Matrix", name, "missing value in feature matrix", v)
			}
			data[i*len(features)+j] = v
		}
	}
	return mat.NewDense(t.nrows, len(features), data), nil
}

// Vector returns a Numeric column as an n×1 vector.
func (t *Table) Vector(name string) (*mat.VecDense, error) {
	values, err := t.Numeric(name)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errors.ErrEmptyData
	}
	return mat.NewVecDense(len(values), append([]float64(nil), values...)), nil
}

func nan() float64 { return math.NaN() }
