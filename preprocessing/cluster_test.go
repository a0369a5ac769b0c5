package preprocessing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/featurelab/dataset"
	"github.com/YuminosukeSato/featurelab/pkg/errors"
)

var genreMap = FeatureMap{
	"Cricket":  "1",
	"Football": "1",
	"Drama":    "2",
	"Romance":  "2",
	"Kids":     "3",
	"Action":   "a",
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"Drama", "Cricket"}, Tokens("Drama:20,Cricket:3"))
	assert.Equal(t, []string{"Kids"}, Tokens(" Kids:1 , "))
	assert.Empty(t, Tokens(""))
	assert.Equal(t, "Drama,Cricket", StripCounts("Drama:20,Cricket:3"))
}

func TestClustererSignature(t *testing.T) {
	c := NewClusterer("genres", genreMap)

	tests := []struct {
		in   string
		want string
	}{
		{"Drama:20,Cricket:3", "12"},
		{"Cricket:3,Football:1", "1"},
		{"Action:5,Kids:2,Romance:7", "23a"},
		{"", ""},
		{"Unknown:4", "Uknow"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := c.Signature(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClustererIsIdempotent(t *testing.T) {
	c := NewClusterer("genres", genreMap)
	for _, in := range []string{"Drama:20,Cricket:3", "Action:5,Kids:2,Romance:7", "", "Kids:1"} {
		once, err := c.Signature(in)
		require.NoError(t, err)
		twice, err := c.Signature(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, in)
	}
}

func TestClustererIgnoresTokenOrder(t *testing.T) {
	c := NewClusterer("genres", genreMap)
	tokens := []string{"Action:5", "Kids:2", "Romance:7", "Cricket:1"}

	want, err := c.Signature(strings.Join(tokens, ","))
	require.NoError(t, err)

	perms := [][]int{{3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}}
	for _, p := range perms {
		permuted := make([]string, len(p))
		for i, j := range p {
			permuted[i] = tokens[j]
		}
		got, err := c.Signature(strings.Join(permuted, ","))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestClustererRecodeAndReject(t *testing.T) {
	c := NewClusterer("genres", genreMap)
	results := c.Recode("Drama:1,Horror:2")
	require.Len(t, results, 2)
	assert.Equal(t, Recoded("Drama", "2"), results[0])
	assert.Equal(t, Unmapped[string]("Horror"), results[1])

	c.Unmapped = UnmappedReject
	_, err := c.Signature("Drama:1,Horror:2")
	var unseen *errors.UnseenCategoryError
	require.ErrorAs(t, err, &unseen)
	assert.Equal(t, "Horror", unseen.Value)
}

func TestClusterColumn(t *testing.T) {
	tbl := dataset.NewTable()
	require.NoError(t, tbl.SetString("genres",
		[]string{"Drama:20,Cricket:3", "Romance:1", "x"},
		[]bool{true, true, false}))

	require.NoError(t, NewClusterer("genres", genreMap).ClusterColumn(tbl))
	col, _ := tbl.Column("genres")
	assert.Equal(t, []string{"12", "2", ""}, col.Str)

	require.NoError(t, tbl.SetNumeric("age", []float64{1, 2, 3}))
	assert.Error(t, NewClusterer("age", genreMap).ClusterColumn(tbl))
}
