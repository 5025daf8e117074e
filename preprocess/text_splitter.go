// Package preprocess implements the fit/transform preprocessor pipeline
// (C10): text-field splitting, numerical imputation, and join-key
// synthesis. Each stage records its fitted parameters once and replays
// them at transform, never re-deriving them from new data.
package preprocess

import (
	"strings"
	"unicode"

	"github.com/relfeat/engine/column"
)

// Token is one (parent_rowid, token) pair produced by splitting a text
// column.
type Token struct {
	ParentRow int
	Token     string
}

// SplitTextColumn tokenizes col per the fixed policy: lowercase, keep
// Unicode letters/digits, split on everything else. The parent loses
// col and gains a synthesized row_id join key (callers attach it to the
// parent frame; this function only produces the derived rows).
func SplitTextColumn(col *column.String) []Token {
	var out []Token
	for row, text := range col.Data() {
		for _, tok := range tokenize(text) {
			out = append(out, Token{ParentRow: row, Token: tok})
		}
	}
	return out
}

func tokenize(text string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()
	return toks
}

// DerivedFrameName returns the name of the synthesized token frame for
// parentFrame's column colName ("parent#col", §4.8).
func DerivedFrameName(parentFrame, colName string) string {
	return parentFrame + "#" + colName
}

// InvertedIndex builds a token -> sorted derived-row-index map from
// split tokens, for tree.TextTokenPresenceCandidates (condition kind 7).
func InvertedIndex(tokens []Token) map[string][]int {
	idx := make(map[string][]int)
	for i, t := range tokens {
		idx[t.Token] = append(idx[t.Token], i)
	}
	return idx
}
