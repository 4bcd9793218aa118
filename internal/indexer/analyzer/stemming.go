package analyzer

import (
	"github.com/kljensen/snowball/english"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Stemming handles Latin-script text: lower-cased words with stop-words
// removed and, unless disabled, Snowball English stems.
type Stemming struct {
	tag      string
	stemming bool
}

func NewStemming(tag string, opts ...Option) Analyzer {
	o := options{stemming: true}
	for _, opt := range opts {
		opt(&o)
	}
	return &Stemming{tag: tag, stemming: o.stemming}
}

func (s *Stemming) Language() string { return s.tag }

func (s *Stemming) Signature() string {
	if s.stemming {
		return s.tag + "+snowball"
	}
	return s.tag + "+plain"
}

func (s *Stemming) Tokenize(text string) []Token {
	segs := segments(normalize(text))
	tokens := make([]Token, 0, len(segs))
	pos := 0
	for _, word := range segs {
		if len(word) < 2 {
			continue
		}
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		term := word
		if s.stemming {
			term = english.Stem(word, false)
		}
		if term == "" {
			continue
		}
		tokens = append(tokens, Token{
			Term:     term,
			Position: pos,
		})
		pos++
	}
	return tokens
}
