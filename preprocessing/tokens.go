package preprocessing

import (
	"regexp"
	"strings"
)

var countSuffix = regexp.MustCompile(`:\d+`)

// StripCounts removes every ":<digits>" suffix, so "Drama:20,Cricket:3"
// becomes "Drama,Cricket".
func StripCounts(s string) string {
	return countSuffix.ReplaceAllString(s, "")
}

// Tokens strips counts and splits s on commas. Blank tokens are dropped,
// so the empty string has no tokens.
func Tokens(s string) []string {
	parts := strings.Split(StripCounts(s), ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Result is the outcome of looking a value up in a fitted mapping: Recoded
// with the mapped Value, or Unmapped carrying only the Original.
type Result[T any] struct {
	Original string
	Value    T
	Mapped   bool
}

// Recoded builds a mapped Result.
func Recoded[T any](original string, value T) Result[T] {
	return Result[T]{Original: original, Value: value, Mapped: true}
}

// Unmapped builds a Result for a value the mapping does not know.
func Unmapped[T any](original string) Result[T] {
	return Result[T]{Original: original}
}
