package preprocessing

import (
	"sort"
	"strings"

	"github.com/maruel/natural"

	"github.com/YuminosukeSato/featurelab/dataset"
	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/pkg/log"
)

// FeatureMap maps raw tokens of one column to cluster codes.
type FeatureMap map[string]string

// Lookup returns Recoded(code) for a known token and Unmapped otherwise.
func (m FeatureMap) Lookup(token string) Result[string] {
	if code, ok := m[token]; ok {
		return Recoded(token, code)
	}
	return Unmapped[string](token)
}

// UnmappedPolicy decides what happens to tokens missing from a FeatureMap.
type UnmappedPolicy int

const (
	// UnmappedPassThrough keeps the raw token; its characters join the signature.
	UnmappedPassThrough UnmappedPolicy = iota
	// UnmappedReject fails with an UnseenCategoryError.
	UnmappedReject
)

// Clusterer reduces multi-valued "token:count" strings to low-cardinality
// cluster signatures.
//
// 各トークンを FeatureMap で置換し、文字の集合を自然順ソートして連結する。
// トークンの順序や重複には依存せず、出力に再適用しても変わらない
// (コード自体が FeatureMap のキーでない限り)。
type Clusterer struct {
	Column   string
	Map      FeatureMap
	Unmapped UnmappedPolicy
}

// NewClusterer creates a Clusterer with the pass-through policy.
func NewClusterer(column string, fmap FeatureMap) *Clusterer {
	return &Clusterer{Column: column, Map: fmap, Unmapped: UnmappedPassThrough}
}

// Recode maps each token of value through the FeatureMap without applying
// the unmapped policy.
func (c *Clusterer) Recode(value string) []Result[string] {
	tokens := Tokens(value)
	out := make([]Result[string], len(tokens))
	for i, tok := range tokens {
		out[i] = c.Map.Lookup(tok)
	}
	return out
}

// Signature returns the cluster signature of one value. Empty input gives
// the empty signature.
func (c *Clusterer) Signature(value string) (string, error) {
	var b strings.Builder
	for _, r := range c.Recode(value) {
		switch {
		case r.Mapped:
			b.WriteString(r.Value)
		case c.Unmapped == UnmappedReject:
			return "", errors.NewUnseenCategoryError("Clusterer.Signature", c.Column, r.Original)
		default:
			b.WriteString(r.Original)
		}
	}
	return canonical(b.String()), nil
}

// canonical deduplicates the characters of s and joins them in natural order.
func canonical(s string) string {
	seen := make(map[rune]struct{}, len(s))
	chars := make([]string, 0, len(s))
	for _, r := range s {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		chars = append(chars, string(r))
	}
	sort.Sort(natural.StringSlice(chars))
	return strings.Join(chars, "")
}

// ClusterColumn replaces column c.Column of t with its signatures. Null
// cells become the empty signature.
func (c *Clusterer) ClusterColumn(t *dataset.Table) error {
	col, err := t.Column(c.Column)
	if err != nil {
		return err
	}
	if col.Kind != dataset.String {
		return errors.NewValidationError(c.Column, "clustering needs a text column", col.Kind.String())
	}

	out := make([]string, col.Len())
	clusters := make(map[string]struct{})
	for i := range out {
		sig, err := c.Signature(col.StringAt(i))
		if err != nil {
			return err
		}
		out[i] = sig
		clusters[sig] = struct{}{}
	}

	log.GetLoggerWithName("preprocessing").Debug("column clustered",
		log.ColumnKey, c.Column,
		log.CategoriesKey, len(clusters),
	)
	return t.SetString(c.Column, out, nil)
}
