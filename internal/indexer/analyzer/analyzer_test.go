package analyzer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/passage-search/pkg/errors"
)

func terms(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Term
	}
	return out
}

func TestNewUnknownTag(t *testing.T) {
	a, err := New("xx")
	require.Error(t, err)
	assert.Nil(t, a)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
}

func TestNewIsCaseInsensitive(t *testing.T) {
	a, err := New(" ZH ")
	require.NoError(t, err)
	assert.Equal(t, "zh", a.Language())
}

func TestSegmentingTokenize(t *testing.T) {
	a, err := New("zh")
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", []string{}},
		{"sentence with full stop", "猫坐在垫子上。", []string{"猫", "坐", "在", "垫", "子", "上"}},
		{"no whitespace needed", "狗跑进花园", []string{"狗", "跑", "进", "花", "园"}},
		{"mixed latin", "我用Go写BM25。", []string{"我", "用", "go", "写", "bm25"}},
		{"fullwidth folded", "ＡＢＣ１２３", []string{"abc123"}},
		{"punctuation only", "。！？，", []string{}},
		{"kana", "ねこ", []string{"ね", "こ"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, terms(a.Tokenize(tt.input)))
		})
	}
}

func TestSegmentingPositionsAreSequential(t *testing.T) {
	a, _ := New("zh")
	tokens := a.Tokenize("猫 坐，在垫子上")
	for i, tok := range tokens {
		assert.Equal(t, i, tok.Position)
	}
}

func TestStemmingTokenize(t *testing.T) {
	a, err := New("en")
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"stop words removed", "The cat is on the mat", []string{"cat", "mat"}},
		{"stemmed", "Running dogs jumped", []string{"run", "dog", "jump"}},
		{"punctuation split", "hello, world!", []string{"hello", "world"}},
		{"single letters dropped", "a b c dogs", []string{"dog"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, terms(a.Tokenize(tt.input)))
		})
	}
}

func TestStemmingCanBeDisabled(t *testing.T) {
	a, err := New("en", WithoutStemming())
	require.NoError(t, err)
	assert.Equal(t, []string{"running", "dogs"}, terms(a.Tokenize("Running dogs")))
}

func TestTokenizeIsDeterministic(t *testing.T) {
	for _, tag := range []string{"zh", "en"} {
		a, err := New(tag)
		require.NoError(t, err)
		text := "Search engines 搜索引擎 rank passages by BM25 相关性。"
		first := a.Tokenize(text)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, a.Tokenize(text))
		}
	}
}

type upperAnalyzer struct{ tag string }

func (u upperAnalyzer) Language() string        { return u.tag }
func (u upperAnalyzer) Signature() string       { return u.tag + "+upper" }
func (u upperAnalyzer) Tokenize(string) []Token { return []Token{{Term: "X"}} }

func TestRegisterExtendsDispatch(t *testing.T) {
	Register("test-upper", func(tag string, _ ...Option) Analyzer { return upperAnalyzer{tag: tag} })
	a, err := New("test-upper")
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, terms(a.Tokenize("anything")))
	assert.Contains(t, Languages(), "test-upper")
}
