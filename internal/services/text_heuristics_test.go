package services

import (
	"strings"
	"testing"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signalNames(v Verdict) []string {
	names := make([]string, 0, len(v.Signals))
	for _, s := range v.Signals {
		names = append(names, s.Name)
	}
	return names
}

func TestAnalyzeShortText(t *testing.T) {
	assert := assert.New(t)
	policy := testPolicy(t)
	policy.Text.ContentTypes[config.ContentPost] = config.TextThresholds{MinChars: 10, MinWords: 2, ScoreThreshold: 0.1}

	v, err := NewTextScorer(policy).Analyze("Hi", config.ContentPost)
	require.NoError(t, err)
	assert.True(v.Flagged)
	assert.Equal(TextStatusFlagged, v.Status)
	require.NotEmpty(t, v.Signals)
	assert.Equal(SignalTooShort, v.Signals[0].Name)
	assert.GreaterOrEqual(v.Score, 0.1)
}

func TestAnalyzeEmptyTextIsTooShort(t *testing.T) {
	assert := assert.New(t)
	v, err := NewTextScorer(testPolicy(t)).Analyze("", config.ContentPost)
	require.NoError(t, err)
	assert.True(v.Flagged)
	assert.Equal([]string{SignalTooShort}, signalNames(v))
}

func TestAnalyzeDisabled(t *testing.T) {
	assert := assert.New(t)
	policy := testPolicy(t)
	policy.Text.Enabled = false

	v, err := NewTextScorer(policy).Analyze("Hi", config.ContentPost)
	require.NoError(t, err)
	assert.False(v.Flagged)
	assert.Equal(TextStatusSkipped, v.Status)
	assert.Empty(v.Signals)
	assert.Zero(v.Score)
}

func TestAnalyzeUnknownContentType(t *testing.T) {
	_, err := NewTextScorer(testPolicy(t)).Analyze("some text", "poll")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAnalyzeCleanText(t *testing.T) {
	assert := assert.New(t)
	text := "We spent the weekend testing three espresso grinders and wrote down what we liked about each one."
	v, err := NewTextScorer(testPolicy(t)).Analyze(text, config.ContentPost)
	require.NoError(t, err)
	assert.False(v.Flagged)
	assert.Equal(TextStatusOK, v.Status)
	assert.Empty(v.Signals)
}

func TestAnalyzeShouting(t *testing.T) {
	assert := assert.New(t)
	v, err := NewTextScorer(testPolicy(t)).Analyze("THIS IS ABSOLUTELY THE BEST PRODUCT EVER MADE BY ANYONE", config.ContentPost)
	require.NoError(t, err)
	assert.Contains(signalNames(v), SignalUppercaseRatio)
}

func TestAnalyzeLinkCountIsStrict(t *testing.T) {
	assert := assert.New(t)
	s := NewTextScorer(testPolicy(t))

	three := "see http://a.io and http://b.io and also http://c.io for the full details"
	v, err := s.Analyze(three, config.ContentPost)
	require.NoError(t, err)
	assert.NotContains(signalNames(v), SignalLinkCount)

	four := three + " or www.d.example.com"
	v, err = s.Analyze(four, config.ContentPost)
	require.NoError(t, err)
	assert.Contains(signalNames(v), SignalLinkCount)
}

func TestAnalyzeRepeatedCharRuns(t *testing.T) {
	assert := assert.New(t)
	s := NewTextScorer(testPolicy(t))

	v, err := s.Analyze("this is sooooo good, reallyyyyy worth reading today", config.ContentPost)
	require.NoError(t, err)
	assert.Contains(signalNames(v), SignalRepeatedCharRuns)

	v, err = s.Analyze("this is sooooo good and worth reading today friends", config.ContentPost)
	require.NoError(t, err)
	assert.NotContains(signalNames(v), SignalRepeatedCharRuns)
}

func TestAnalyzeTruncatesSignalsButNotScore(t *testing.T) {
	assert := assert.New(t)
	text := "AAAAAA!!!!!! http://a.io http://b.io http://c.io http://d.io"

	wide := testPolicy(t)
	wide.Text.DetailsLimit = 10
	full, err := NewTextScorer(wide).Analyze(text, config.ContentPost)
	require.NoError(t, err)
	require.Greater(t, len(full.Signals), 2)

	narrow := testPolicy(t)
	narrow.Text.DetailsLimit = 2
	short, err := NewTextScorer(narrow).Analyze(text, config.ContentPost)
	require.NoError(t, err)

	assert.Len(short.Signals, 2)
	assert.Equal(full.Signals[:2], short.Signals)
	assert.InDelta(full.Score, short.Score, 1e-12)

	sum := 0.0
	for _, s := range full.Signals {
		sum += s.Contribution
	}
	assert.InDelta(sum, full.Score, 1e-12)
	for i := 1; i < len(full.Signals); i++ {
		assert.GreaterOrEqual(full.Signals[i-1].Contribution, full.Signals[i].Contribution)
	}
	for _, s := range full.Signals {
		assert.GreaterOrEqual(s.Contribution, s.Weight)
	}
}

func TestAnalyzeArbitraryInput(t *testing.T) {
	s := NewTextScorer(testPolicy(t))
	inputs := []string{
		"Ça été très apprécié par tout le monde ici, merci beaucoup",
		"日本語のテキストです。とても良い記事でした。",
		"\x00\x01\x02",
		string([]byte{0xff, 0xfe, 0xfd}),
		strings.Repeat("word ", 100_000),
		strings.Repeat("x", 50_000),
		"\n\n\n",
	}
	for _, in := range inputs {
		for _, ct := range config.ContentTypes {
			v, err := s.Analyze(in, ct)
			require.NoError(t, err)
			assert.Contains(t, []string{TextStatusFlagged, TextStatusOK}, v.Status)
			assert.NotNil(t, v.Signals)
			assert.GreaterOrEqual(t, v.Score, 0.0)
		}
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	s := NewTextScorer(testPolicy(t))
	text := "BUY NOW!!! cheap cheap cheap cheap cheap cheap deals at http://spam.example"
	first, err := s.Analyze(text, config.ContentComment)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := s.Analyze(text, config.ContentComment)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestTokenizeFoldsDiacritics(t *testing.T) {
	assert.Equal(t, []string{"cafe", "creme", "brulee", "42"}, tokenize("Café CRÈME-brûlée, 42!"))
}
