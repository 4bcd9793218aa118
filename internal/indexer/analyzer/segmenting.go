package analyzer

import (
	"unicode"
)

// Segmenting handles CJK text. Ideographic and kana runs become one term per
// character; embedded Latin words and numbers stay whole.
type Segmenting struct {
	tag string
}

// NewSegmenting returns the CJK variant. Options are accepted for registry
// compatibility; there is nothing to stem.
func NewSegmenting(tag string, _ ...Option) Analyzer {
	return &Segmenting{tag: tag}
}

func (s *Segmenting) Language() string  { return s.tag }
func (s *Segmenting) Signature() string { return s.tag + "+unigram" }

func (s *Segmenting) Tokenize(text string) []Token {
	segs := segments(normalize(text))
	tokens := make([]Token, 0, len(segs))
	pos := 0
	emit := func(term string) {
		tokens = append(tokens, Token{Term: term, Position: pos})
		pos++
	}
	for _, seg := range segs {
		if !hasIdeograph(seg) {
			emit(seg)
			continue
		}
		start := -1
		for i, r := range seg {
			if isIdeograph(r) {
				if start >= 0 {
					emit(seg[start:i])
					start = -1
				}
				emit(string(r))
				continue
			}
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				if start >= 0 {
					emit(seg[start:i])
					start = -1
				}
				continue
			}
			if start < 0 {
				start = i
			}
		}
		if start >= 0 {
			emit(seg[start:])
		}
	}
	return tokens
}

func isIdeograph(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

func hasIdeograph(s string) bool {
	for _, r := range s {
		if isIdeograph(r) {
			return true
		}
	}
	return false
}
