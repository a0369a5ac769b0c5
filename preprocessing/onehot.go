package preprocessing

import (
	"sort"

	"github.com/YuminosukeSato/featurelab/dataset"
	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/pkg/log"
)

// OneHot adds one 0/1 column per distinct token of the multi-valued text
// column name, named "<name>_<token>" in sorted token order. Counts are
// stripped first. Null cells get 0 everywhere. The source column is kept.
func OneHot(t *dataset.Table, name string) ([]string, error) {
	col, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	if col.Kind != dataset.String {
		return nil, errors.NewValidationError(name, "one-hot encoding needs a text column", col.Kind.String())
	}

	rows := make([][]string, col.Len())
	vocab := make(map[string]struct{})
	for i := range rows {
		rows[i] = Tokens(col.StringAt(i))
		for _, tok := range rows[i] {
			vocab[tok] = struct{}{}
		}
	}
	tokens := make([]string, 0, len(vocab))
	for tok := range vocab {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)

	position := make(map[string]int, len(tokens))
	dummies := make([][]float64, len(tokens))
	for j, tok := range tokens {
		position[tok] = j
		dummies[j] = make([]float64, col.Len())
	}
	for i, toks := range rows {
		for _, tok := range toks {
			dummies[position[tok]][i] = 1
		}
	}

	names := make([]string, len(tokens))
	for j, tok := range tokens {
		names[j] = name + "_" + tok
		if err := t.SetNumeric(names[j], dummies[j]); err != nil {
			return nil, err
		}
	}
	log.GetLoggerWithName("preprocessing").Debug("one-hot columns added",
		log.ColumnKey, name, log.CategoriesKey, len(names))
	return names, nil
}

// PrepareOneHot applies OneHot to each feature and returns all new column
// names in order.
func PrepareOneHot(t *dataset.Table, features []string) ([]string, error) {
	var added []string
	for _, f := range features {
		names, err := OneHot(t, f)
		if err != nil {
			return nil, err
		}
		added = append(added, names...)
	}
	return added, nil
}
