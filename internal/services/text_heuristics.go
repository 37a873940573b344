package services

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/config"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	SignalTooShort         = "too_short"
	SignalLowUniqueWords   = "low_unique_words_ratio"
	SignalRepeatedWords    = "repeated_words_ratio"
	SignalRepeatedCharRuns = "repeated_char_runs"
	SignalUppercaseRatio   = "uppercase_ratio"
	SignalSymbolRatio      = "symbol_ratio"
	SignalLinkCount        = "link_count"
	SignalLongestLine      = "longest_line"
)

const (
	TextStatusFlagged = "flagged"
	TextStatusOK      = "ok"
	TextStatusSkipped = "skipped"
)

var urlPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+\.\S+)`)

// Signal is one fired heuristic.
type Signal struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Threshold    float64 `json:"threshold"`
	Weight       float64 `json:"weight"`
	Severity     float64 `json:"severity"`
	Contribution float64 `json:"contribution"`
}

// Verdict is the outcome of Analyze. Score is always the full sum even when
// Signals is truncated.
type Verdict struct {
	ContentType    string   `json:"content_type"`
	Flagged        bool     `json:"flagged"`
	Status         string   `json:"status"`
	Score          float64  `json:"score"`
	ScoreThreshold float64  `json:"score_threshold"`
	Signals        []Signal `json:"signals"`
}

// TextScorer is a deterministic rule-based scorer over raw text.
type TextScorer struct {
	policy *config.TextPolicy
}

func NewTextScorer(policy *config.Policy) *TextScorer {
	return &TextScorer{policy: &policy.Text}
}

type textStats struct {
	chars        int
	words        int
	uniqueWords  int
	topWordCount int
	letters      int
	upper        int
	symbols      int
	charRuns     int
	links        int
	longestLine  int
}

// Analyze never fails on the text itself; only an unknown content type is an
// error.
func (s *TextScorer) Analyze(text, contentType string) (Verdict, error) {
	if !s.policy.Enabled {
		return Verdict{ContentType: contentType, Status: TextStatusSkipped, Signals: []Signal{}}, nil
	}
	th, ok := s.policy.Thresholds(contentType)
	if !ok {
		return Verdict{}, validationErr("no text thresholds for content type %q", contentType)
	}

	sig := s.policy.Signals
	st := measure(text, sig.RepeatedCharRuns.RunLength)
	var fired []Signal
	fire := func(name string, sp config.SignalPolicy, value, threshold, severity float64) {
		if sp.Weight <= 0 {
			return
		}
		fired = append(fired, Signal{
			Name:         name,
			Value:        value,
			Threshold:    threshold,
			Weight:       sp.Weight,
			Severity:     severity,
			Contribution: sp.Weight * severity,
		})
	}

	if st.chars < th.MinChars || st.words < th.MinWords {
		fire(SignalTooShort, sig.TooShort, float64(st.chars), float64(th.MinChars), 1)
	}

	if sp := sig.LowUniqueWords; st.words > 0 && st.words >= sp.MinWords {
		ratio := float64(st.uniqueWords) / float64(st.words)
		if ratio < sp.Threshold {
			fire(SignalLowUniqueWords, sp, ratio, sp.Threshold, severity((sp.Threshold-ratio)/sp.Threshold))
		}
	}

	if sp := sig.RepeatedWords; st.words > 0 && st.words >= sp.MinWords {
		ratio := float64(st.topWordCount) / float64(st.words)
		if ratio > sp.Threshold {
			fire(SignalRepeatedWords, sp, ratio, sp.Threshold, severity((ratio-sp.Threshold)/sp.Threshold))
		}
	}

	if sp := sig.RepeatedCharRuns; st.charRuns > 0 && st.charRuns >= max(sp.MinRuns, 1) {
		minRuns := float64(max(sp.MinRuns, 1))
		fire(SignalRepeatedCharRuns, sp, float64(st.charRuns), minRuns, severity((float64(st.charRuns)-minRuns)/minRuns))
	}

	if sp := sig.UppercaseRatio; st.letters > 0 && st.letters >= sp.MinLetters {
		ratio := float64(st.upper) / float64(st.letters)
		if ratio > sp.Threshold {
			fire(SignalUppercaseRatio, sp, ratio, sp.Threshold, severity((ratio-sp.Threshold)/sp.Threshold))
		}
	}

	if sp := sig.SymbolRatio; st.chars > 0 && st.letters >= sp.MinLetters {
		ratio := float64(st.symbols) / float64(st.chars)
		if ratio > sp.Threshold {
			fire(SignalSymbolRatio, sp, ratio, sp.Threshold, severity((ratio-sp.Threshold)/sp.Threshold))
		}
	}

	if sp := sig.LinkCount; float64(st.links) > sp.Threshold {
		fire(SignalLinkCount, sp, float64(st.links), sp.Threshold, severity((float64(st.links)-sp.Threshold)/math.Max(sp.Threshold, 1)))
	}

	if sp := sig.LongestLine; float64(st.longestLine) > sp.Threshold {
		fire(SignalLongestLine, sp, float64(st.longestLine), sp.Threshold, severity((float64(st.longestLine)-sp.Threshold)/sp.Threshold))
	}

	score := 0.0
	for _, f := range fired {
		score += f.Contribution
	}

	sort.SliceStable(fired, func(i, j int) bool {
		return fired[i].Contribution > fired[j].Contribution
	})
	if limit := s.policy.DetailsLimit; len(fired) > limit {
		fired = fired[:limit]
	}
	if fired == nil {
		fired = []Signal{}
	}

	v := Verdict{
		ContentType:    contentType,
		Score:          score,
		ScoreThreshold: th.ScoreThreshold,
		Signals:        fired,
		Status:         TextStatusOK,
	}
	if score >= th.ScoreThreshold {
		v.Flagged = true
		v.Status = TextStatusFlagged
	}
	return v, nil
}

// severity grows with the relative distance past the threshold, from 1 up to
// 2, so a fired signal never contributes less than its weight.
func severity(excess float64) float64 {
	return 1 + clamp(excess, 0, 1)
}

func measure(text string, runLength int) textStats {
	st := textStats{
		chars: utf8.RuneCountInString(text),
		links: len(urlPattern.FindAllStringIndex(text, -1)),
	}

	tokens := tokenize(text)
	st.words = len(tokens)
	freq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freq[tok]++
		if freq[tok] > st.topWordCount {
			st.topWordCount = freq[tok]
		}
	}
	st.uniqueWords = len(freq)

	var prev rune
	run := 0
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			st.letters++
			if unicode.IsUpper(r) {
				st.upper++
			}
		case unicode.IsNumber(r), unicode.IsSpace(r):
		default:
			st.symbols++
		}

		if run > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run == runLength && runLength > 1 && !unicode.IsSpace(r) {
			st.charRuns++
		}
		prev = r
	}

	for _, line := range strings.Split(text, "\n") {
		if n := utf8.RuneCountInString(strings.TrimRight(line, "\r")); n > st.longestLine {
			st.longestLine = n
		}
	}
	return st
}

// tokenize lower-cases, strips diacritics and splits on anything that is not a
// letter or digit.
func tokenize(text string) []string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, text)
	if err != nil {
		folded = text
	}
	return strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
