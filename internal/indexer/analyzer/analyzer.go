// Package analyzer turns raw text into normalised terms for indexing and
// querying. Variants are selected by language tag through a registry; the same
// Analyzer value must be used at index and query time.
package analyzer

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/Adithya-Monish-Kumar-K/passage-search/pkg/errors"
)

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Analyzer produces a deterministic term sequence for a piece of text.
// Signature names the language and every option that changes the terms, such
// as "en+snowball"; two analyzers with equal signatures tokenize alike.
type Analyzer interface {
	Language() string
	Signature() string
	Tokenize(text string) []Token
}

type options struct {
	stemming bool
}

// Option adjusts a variant at construction.
type Option func(*options)

// WithoutStemming disables stemming on variants that support it.
func WithoutStemming() Option {
	return func(o *options) { o.stemming = false }
}

// WithStemming sets stemming explicitly, for callers driven by config.
func WithStemming(enabled bool) Option {
	return func(o *options) { o.stemming = enabled }
}

// Factory builds an Analyzer for the given tag.
type Factory func(tag string, opts ...Option) Analyzer

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"zh":  NewSegmenting,
		"ja":  NewSegmenting,
		"ko":  NewSegmenting,
		"cjk": NewSegmenting,
		"en":  NewStemming,
	}
)

// Register adds or replaces the factory for a language tag.
func Register(tag string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(tag)] = f
}

// Languages returns the registered tags in sorted order.
func Languages() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	tags := make([]string, 0, len(registry))
	for tag := range registry {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// New returns the Analyzer registered for tag. An unknown tag fails here with
// a configuration error rather than on first use.
func New(tag string, opts ...Option) (Analyzer, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	registryMu.RLock()
	f, ok := registry[tag]
	registryMu.RUnlock()
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrConfiguration,
			"unsupported language tag %q (supported: %s)", tag, strings.Join(Languages(), ", "))
	}
	return f(tag, opts...), nil
}

func normalize(text string) string {
	return strings.ToLower(norm.NFKC.String(text))
}

// segments splits normalised text on UAX#29 word boundaries and drops
// segments that carry no letter or digit (spaces, punctuation).
func segments(text string) []string {
	iter := words.FromString(text)
	out := make([]string, 0, len(text)/3)
	for iter.Next() {
		seg := iter.Value()
		if hasWordRune(seg) {
			out = append(out, seg)
		}
	}
	return out
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
