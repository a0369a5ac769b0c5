package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/pkg/log"
)

// IDColumn is the name given to the row key of JSON object-of-objects input.
const IDColumn = "ID"

// cell is one parsed input value before the column type is decided.
type cell struct {
	num    float64
	str    string
	isNum  bool
	isNull bool
}

// builder accumulates cells per column in first-seen column order.
type builder struct {
	order []string
	cells map[string][]cell
	rows  int
}

func newBuilder() *builder {
	return &builder{cells: make(map[string][]cell)}
}

func (b *builder) set(col string, row int, c cell) {
	values, ok := b.cells[col]
	if !ok {
		b.order = append(b.order, col)
	}
	for len(values) < row {
		values = append(values, cell{isNull: true, num: math.NaN()})
	}
	b.cells[col] = append(values, c)
}

// build decides each column's kind. A column is Numeric when every non-null
// cell is a number, otherwise String with numbers formatted back to text.
func (b *builder) build(op string) (*Table, error) {
	t := NewTable()
	logger := log.GetLoggerWithName("dataset")
	for _, name := range b.order {
		values := b.cells[name]
		for len(values) < b.rows {
			values = append(values, cell{isNull: true, num: math.NaN()})
		}

		numeric := true
		mixed := false
		for _, c := range values {
			if c.isNull {
				continue
			}
			if !c.isNum {
				numeric = false
			} else {
				mixed = true
			}
		}

		if numeric {
			col := make([]float64, len(values))
			for i, c := range values {
				if c.isNull {
					col[i] = math.NaN()
				} else {
					col[i] = c.num
				}
			}
			if err := t.SetNumeric(name, col); err != nil {
				return nil, errors.Wrapf(err, "%s: column %q", op, name)
			}
			continue
		}

		if mixed {
			errors.Warn(errors.NewDataConversionWarning(name, "number", "string", "column mixes numbers and strings"))
			logger.Debug("mixed column read as string", log.ColumnKey, name)
		}
		col := make([]string, len(values))
		valid := make([]bool, len(values))
		for i, c := range values {
			switch {
			case c.isNull:
			case c.isNum:
				col[i] = strconv.FormatFloat(c.num, 'g', -1, 64)
				valid[i] = true
			default:
				col[i] = c.str
				valid[i] = true
			}
		}
		if err := t.SetString(name, col, valid); err != nil {
			return nil, errors.Wrapf(err, "%s: column %q", op, name)
		}
	}
	return t, nil
}

// LoadCSV reads a CSV document with a header row. Cells that parse as
// numbers in every row make a Numeric column; empty cells are missing.
func LoadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.ErrEmptyData
	}
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}

	b := newBuilder()
	for _, name := range header {
		b.order = append(b.order, name)
		b.cells[name] = nil
	}
	for row := 0; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read csv row %d", row+1)
		}
		for j, raw := range record {
			b.set(header[j], row, parseCSVCell(raw))
		}
		b.rows = row + 1
	}
	return b.build("LoadCSV")
}

func parseCSVCell(raw string) cell {
	s := strings.TrimSpace(raw)
	if s == "" {
		return cell{isNull: true, num: math.NaN()}
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return cell{num: v, isNum: true}
	}
	return cell{str: raw}
}

// LoadJSON reads a JSON object whose keys are row ids and whose values are
// objects mapping column name to value. Row order and first-seen column
// order follow the document. The row key becomes the String column ID.
func LoadJSON(r io.Reader) (*Table, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	b := newBuilder()
	b.order = append(b.order, IDColumn)
	b.cells[IDColumn] = nil

	for row := 0; dec.More(); row++ {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "read row id")
		}
		id, _ := keyTok.(string)
		b.set(IDColumn, row, cell{str: id})

		if err := expectDelim(dec, '{'); err != nil {
			return nil, errors.Wrapf(err, "row %q", id)
		}
		for dec.More() {
			colTok, err := dec.Token()
			if err != nil {
				return nil, errors.Wrapf(err, "row %q", id)
			}
			col, _ := colTok.(string)
			if col == IDColumn {
				return nil, errors.NewValidationError(col, "column name is reserved for the row id", id)
			}
			var raw interface{}
			if err := dec.Decode(&raw); err != nil {
				return nil, errors.Wrapf(err, "row %q column %q", id, col)
			}
			c, err := jsonCell(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "row %q column %q", id, col)
			}
			b.set(col, row, c)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, errors.Wrapf(err, "row %q", id)
		}
		b.rows = row + 1
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if b.rows == 0 {
		return nil, errors.ErrEmptyData
	}
	return b.build("LoadJSON")
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return errors.Wrap(err, "read json")
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return errors.Newf("expected %q, got %v", want, tok)
	}
	return nil
}

func jsonCell(raw interface{}) (cell, error) {
	switch v := raw.(type) {
	case nil:
		return cell{isNull: true, num: math.NaN()}, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return cell{}, errors.Wrap(err, "parse number")
		}
		return cell{num: f, isNum: true}, nil
	case bool:
		if v {
			return cell{num: 1, isNum: true}, nil
		}
		return cell{num: 0, isNum: true}, nil
	case string:
		return cell{str: v}, nil
	default:
		return cell{}, errors.NewValidationError("value", "nested values are not supported", v)
	}
}

// LoadFile dispatches on the file extension: .csv, .json, .feather/.arrow
// or .parquet.
func LoadFile(path string) (*Table, error) {
	logger := log.GetLoggerWithName("dataset")
	format := formatOf(path)

	var (
		t   *Table
		err error
	)
	switch format {
	case "feather":
		t, err = ReadFeather(path)
	case "parquet":
		t, err = ReadParquet(path)
	case "csv", "json":
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", path)
		}
		defer f.Close()
		if format == "csv" {
			t, err = LoadCSV(f)
		} else {
			t, err = LoadJSON(f)
		}
	default:
		return nil, errors.NewValidationError("path", "unsupported file extension", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}

	logger.Info("table loaded",
		log.PathKey, path,
		log.FormatKey, format,
		log.SamplesKey, t.NumRows(),
		log.FeaturesKey, t.NumCols(),
	)
	return t, nil
}

// SaveFile writes t as feather or parquet depending on the extension.
func SaveFile(t *Table, path string) error {
	switch formatOf(path) {
	case "feather":
		return WriteFeather(t, path)
	case "parquet":
		return WriteParquet(t, path)
	default:
		return errors.NewValidationError("path", "checkpoints must be .feather, .arrow or .parquet", path)
	}
}

func formatOf(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return "csv"
	case strings.HasSuffix(lower, ".json"):
		return "json"
	case strings.HasSuffix(lower, ".feather"), strings.HasSuffix(lower, ".arrow"):
		return "feather"
	case strings.HasSuffix(lower, ".parquet"):
		return "parquet"
	}
	return ""
}

// Merge stacks test below train into one working table and returns it with
// the train mask (true where label is not null).
//
// Both partitions must expose the same column names apart from label,
// otherwise a SchemaMismatchError lists the difference. The label is
// missing on every test row. When a column is numeric on one side and text
// on the other, the merged column is text.
func Merge(train, test *Table, label string) (*Table, []bool, error) {
	if !train.Has(label) {
		return nil, nil, errors.Wrapf(errors.ErrColumnNotFound, "label column %q", label)
	}
	left := without(train.Names(), label)
	right := without(test.Names(), label)
	if !sameSet(left, right) {
		return nil, nil, errors.NewSchemaMismatchError("Merge", left, right)
	}

	n := train.NumRows() + test.NumRows()
	out := NewTable()
	for _, name := range train.Names() {
		a, _ := train.Column(name)
		b, err := test.Column(name)
		if err != nil {
			b = nullColumn(name, a.Kind, test.NumRows())
		}
		merged := concat(a, b, n)
		if err := out.AddColumn(merged); err != nil {
			return nil, nil, err
		}
	}

	mask, err := TrainMask(out, label)
	if err != nil {
		return nil, nil, err
	}
	log.GetLoggerWithName("dataset").Info("partitions merged",
		log.SamplesKey, n,
		log.FeaturesKey, out.NumCols(),
		"train_rows", train.NumRows(),
		"test_rows", test.NumRows(),
	)
	return out, mask, nil
}

// TrainMask returns true for rows whose label is present.
func TrainMask(t *Table, label string) ([]bool, error) {
	c, err := t.Column(label)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, c.Len())
	for i := range mask {
		mask[i] = !c.IsNull(i)
	}
	return mask, nil
}

func nullColumn(name string, kind Kind, n int) *Column {
	if kind == Numeric {
		num := make([]float64, n)
		for i := range num {
			num[i] = math.NaN()
		}
		return &Column{Name: name, Kind: Numeric, Num: num}
	}
	return &Column{Name: name, Kind: String, Str: make([]string, n), Valid: make([]bool, n)}
}

func concat(a, b *Column, n int) *Column {
	if a.Kind == Numeric && b.Kind == Numeric {
		num := make([]float64, 0, n)
		num = append(num, a.Num...)
		num = append(num, b.Num...)
		return &Column{Name: a.Name, Kind: Numeric, Num: num}
	}
	if a.Kind != b.Kind {
		errors.Warn(errors.NewDataConversionWarning(a.Name, "number", "string", "partitions disagree on column type"))
	}
	out := &Column{Name: a.Name, Kind: String, Str: make([]string, 0, n), Valid: make([]bool, 0, n)}
	for _, c := range []*Column{a, b} {
		for i := 0; i < c.Len(); i++ {
			if c.IsNull(i) {
				out.Str = append(out.Str, "")
				out.Valid = append(out.Valid, false)
				continue
			}
			if c.Kind == Numeric {
				out.Str = append(out.Str, strconv.FormatFloat(c.Num[i], 'g', -1, 64))
			} else {
				out.Str = append(out.Str, c.Str[i])
			}
			out.Valid = append(out.Valid, true)
		}
	}
	return out
}

func without(names []string, drop string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != drop {
			out = append(out, n)
		}
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, n := range a {
		seen[n] = true
	}
	for _, n := range b {
		if !seen[n] {
			return false
		}
	}
	return true
}
