// Package parser turns raw question text into a flat disjunction of analyzed
// terms against one field.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/analyzer"
	apperrors "github.com/Adithya-Monish-Kumar-K/passage-search/pkg/errors"
)

// reserved holds characters that carry meaning in classic query syntaxes.
// They are treated as plain separators so user text never becomes an
// operator.
const reserved = `+-&|!(){}[]^"~*?:\/`

type Query struct {
	Field string
	Terms []string
	Raw   string
}

// Parse analyzes raw with a, keeping each distinct term once in order of
// first occurrence. A question with no searchable term is a query syntax
// error.
func Parse(raw, field string, a analyzer.Analyzer) (*Query, error) {
	q := &Query{Field: field, Raw: raw}
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(reserved, r) {
			return ' '
		}
		return r
	}, strings.TrimSpace(raw))

	seen := make(map[string]struct{})
	for _, tok := range a.Tokenize(cleaned) {
		if _, dup := seen[tok.Term]; dup {
			continue
		}
		seen[tok.Term] = struct{}{}
		q.Terms = append(q.Terms, tok.Term)
	}
	if len(q.Terms) == 0 {
		return nil, apperrors.Newf(apperrors.ErrQuerySyntax, "query %q has no searchable terms", raw)
	}
	return q, nil
}
