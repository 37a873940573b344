package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfiguration marks a missing or invalid moderation constant. Callers must
// fail closed on it.
var ErrConfiguration = errors.New("invalid moderation configuration")

//go:embed policy.yaml
var defaultPolicyYAML []byte

// Content types the engine scores.
const (
	ContentPost     = "post"
	ContentComment  = "comment"
	ContentReview   = "review"
	ContentQuestion = "question"
)

var ContentTypes = []string{ContentPost, ContentComment, ContentReview, ContentQuestion}

// Policy holds every numeric constant of the moderation engine. It is loaded
// once at startup and passed by pointer into each component constructor.
type Policy struct {
	Roles     map[string]float64 `yaml:"roles" json:"roles"`
	Trust     TrustPolicy        `yaml:"trust" json:"trust"`
	Weight    WeightPolicy       `yaml:"weight" json:"weight"`
	SiteScale SiteScalePolicy    `yaml:"site_scale" json:"site_scale"`
	AutoHide  AutoHidePolicy     `yaml:"auto_hide" json:"auto_hide"`
	Reports   ReportsPolicy      `yaml:"reports" json:"reports"`
	Text      TextPolicy         `yaml:"text" json:"text"`
}

type ActivityPoints struct {
	Post      float64 `yaml:"post" json:"post"`
	Comment   float64 `yaml:"comment" json:"comment"`
	Review    float64 `yaml:"review" json:"review"`
	Follow    float64 `yaml:"follow" json:"follow"`
	Upvote    float64 `yaml:"upvote" json:"upvote"`
	Save      float64 `yaml:"save" json:"save"`
	AgePerDay float64 `yaml:"age_per_day" json:"age_per_day"`
}

type TrustPolicy struct {
	Points             ActivityPoints `yaml:"points" json:"points"`
	AgeDaysCap         float64        `yaml:"age_days_cap" json:"age_days_cap"`
	ActivityCap        float64        `yaml:"activity_cap" json:"activity_cap"`
	ActivityDivisor    float64        `yaml:"activity_divisor" json:"activity_divisor"`
	AccuracyBoostMax   float64        `yaml:"accuracy_boost_max" json:"accuracy_boost_max"`
	AccuracyPenaltyMax float64        `yaml:"accuracy_penalty_max" json:"accuracy_penalty_max"`
	MinTrust           float64        `yaml:"min_trust" json:"min_trust"`
	MaxTrust           float64        `yaml:"max_trust" json:"max_trust"`
	// RefreshAfter is how old a profile may get before a submission
	// recomputes it, e.g. "1h". "0s" recomputes on every report.
	RefreshAfter string `yaml:"refresh_after" json:"refresh_after"`
}

// RefreshInterval parses RefreshAfter; Validate guarantees it parses.
func (t TrustPolicy) RefreshInterval() time.Duration {
	return parseDuration(t.RefreshAfter, 0)
}

type WeightPolicy struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

type SiteScalePolicy struct {
	WindowDays        int     `yaml:"window_days" json:"window_days"`
	BaseReportsPerDay float64 `yaml:"base_reports_per_day" json:"base_reports_per_day"`
	Sensitivity       float64 `yaml:"sensitivity" json:"sensitivity"`
	MinScale          float64 `yaml:"min_scale" json:"min_scale"`
	MaxScale          float64 `yaml:"max_scale" json:"max_scale"`
	CacheSeconds      int     `yaml:"cache_seconds" json:"cache_seconds"`
}

func (s SiteScalePolicy) CacheTTL() time.Duration {
	return time.Duration(s.CacheSeconds) * time.Second
}

type AutoHidePolicy struct {
	BaseThreshold      float64 `yaml:"base_threshold" json:"base_threshold"`
	QuestionMultiplier float64 `yaml:"question_multiplier" json:"question_multiplier"`
	MinimumReports     int     `yaml:"minimum_reports" json:"minimum_reports"`
}

type ReportsPolicy struct {
	AllowDuplicates bool `yaml:"allow_duplicates" json:"allow_duplicates"`
}

type TextThresholds struct {
	MinChars       int     `yaml:"min_chars" json:"min_chars"`
	MinWords       int     `yaml:"min_words" json:"min_words"`
	ScoreThreshold float64 `yaml:"score_threshold" json:"score_threshold"`
}

// SignalPolicy is the union of the knobs used by the text signals; each
// signal reads only the fields that apply to it.
type SignalPolicy struct {
	Weight     float64 `yaml:"weight" json:"weight"`
	Threshold  float64 `yaml:"threshold" json:"threshold"`
	MinWords   int     `yaml:"min_words" json:"min_words"`
	MinLetters int     `yaml:"min_letters" json:"min_letters"`
	RunLength  int     `yaml:"run_length" json:"run_length"`
	MinRuns    int     `yaml:"min_runs" json:"min_runs"`
}

type TextSignals struct {
	TooShort         SignalPolicy `yaml:"too_short" json:"too_short"`
	LowUniqueWords   SignalPolicy `yaml:"low_unique_words_ratio" json:"low_unique_words_ratio"`
	RepeatedWords    SignalPolicy `yaml:"repeated_words_ratio" json:"repeated_words_ratio"`
	RepeatedCharRuns SignalPolicy `yaml:"repeated_char_runs" json:"repeated_char_runs"`
	UppercaseRatio   SignalPolicy `yaml:"uppercase_ratio" json:"uppercase_ratio"`
	SymbolRatio      SignalPolicy `yaml:"symbol_ratio" json:"symbol_ratio"`
	LinkCount        SignalPolicy `yaml:"link_count" json:"link_count"`
	LongestLine      SignalPolicy `yaml:"longest_line" json:"longest_line"`
}

type TextPolicy struct {
	Enabled      bool                      `yaml:"enabled" json:"enabled"`
	DetailsLimit int                       `yaml:"details_limit" json:"details_limit"`
	ContentTypes map[string]TextThresholds `yaml:"content_types" json:"content_types"`
	Signals      TextSignals               `yaml:"signals" json:"signals"`
}

// DefaultPolicy returns the embedded policy. It panics if the embedded file is
// broken, which is a build defect.
func DefaultPolicy() *Policy {
	p, err := ParsePolicy(defaultPolicyYAML, "yaml")
	if err != nil {
		panic(err)
	}
	return p
}

// LoadPolicy reads a policy file. An empty path yields the embedded default.
// The file must be complete: nothing is merged from the default.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return ParsePolicy(defaultPolicyYAML, "yaml")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read policy %s: %v", ErrConfiguration, path, err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	return ParsePolicy(data, format)
}

func ParsePolicy(data []byte, format string) (*Policy, error) {
	var p Policy
	var err error
	switch format {
	case "json":
		err = json.Unmarshal(data, &p)
	default:
		err = yaml.Unmarshal(data, &p)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse policy: %v", ErrConfiguration, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// RoleWeight returns the configured base influence of a role. An empty role is
// a plain user; an unknown role is a configuration error.
func (p *Policy) RoleWeight(role string) (float64, error) {
	if role == "" {
		role = "user"
	}
	w, ok := p.Roles[role]
	if !ok {
		return 0, fmt.Errorf("%w: no weight for role %q", ErrConfiguration, role)
	}
	return w, nil
}

// Thresholds returns the text thresholds of a content type.
func (t *TextPolicy) Thresholds(contentType string) (TextThresholds, bool) {
	th, ok := t.ContentTypes[contentType]
	return th, ok
}

// Validate rejects any value that would silently disable or invert moderation.
func (p *Policy) Validate() error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if _, ok := p.Roles["user"]; !ok {
		bad("roles.user is required")
	}
	for role, w := range p.Roles {
		if w <= 0 {
			bad("roles.%s must be > 0", role)
		}
	}

	t := p.Trust
	if t.ActivityCap <= 0 {
		bad("trust.activity_cap must be > 0")
	}
	if t.ActivityDivisor <= 0 {
		bad("trust.activity_divisor must be > 0")
	}
	if t.AgeDaysCap < 0 {
		bad("trust.age_days_cap must be >= 0")
	}
	if t.AccuracyBoostMax < 0 || t.AccuracyPenaltyMax < 0 {
		bad("trust accuracy bounds must be >= 0")
	}
	if t.MinTrust <= 0 || t.MaxTrust < t.MinTrust {
		bad("trust.min_trust must be > 0 and <= trust.max_trust")
	}
	if _, err := time.ParseDuration(t.RefreshAfter); err != nil {
		bad("trust.refresh_after: %v", err)
	}

	if p.Weight.Min <= 0 || p.Weight.Max < p.Weight.Min {
		bad("weight.min must be > 0 and <= weight.max")
	}

	s := p.SiteScale
	if s.WindowDays <= 0 {
		bad("site_scale.window_days must be > 0")
	}
	if s.BaseReportsPerDay <= 0 {
		bad("site_scale.base_reports_per_day must be > 0")
	}
	if s.Sensitivity < 0 {
		bad("site_scale.sensitivity must be >= 0")
	}
	if s.MinScale <= 0 || s.MaxScale < s.MinScale {
		bad("site_scale.min_scale must be > 0 and <= site_scale.max_scale")
	}
	if s.CacheSeconds < 0 {
		bad("site_scale.cache_seconds must be >= 0")
	}

	a := p.AutoHide
	if a.BaseThreshold <= 0 {
		bad("auto_hide.base_threshold must be > 0")
	}
	if a.QuestionMultiplier <= 0 {
		bad("auto_hide.question_multiplier must be > 0")
	}
	if a.MinimumReports < 1 {
		bad("auto_hide.minimum_reports must be >= 1")
	}

	if p.Text.DetailsLimit < 0 {
		bad("text.details_limit must be >= 0")
	}
	for _, ct := range ContentTypes {
		th, ok := p.Text.ContentTypes[ct]
		if !ok {
			bad("text.content_types.%s is required", ct)
			continue
		}
		if th.ScoreThreshold <= 0 {
			bad("text.content_types.%s.score_threshold must be > 0", ct)
		}
		if th.MinChars < 0 || th.MinWords < 0 {
			bad("text.content_types.%s minimums must be >= 0", ct)
		}
	}
	sig := p.Text.Signals
	for name, sp := range map[string]SignalPolicy{
		"too_short":              sig.TooShort,
		"low_unique_words_ratio": sig.LowUniqueWords,
		"repeated_words_ratio":   sig.RepeatedWords,
		"repeated_char_runs":     sig.RepeatedCharRuns,
		"uppercase_ratio":        sig.UppercaseRatio,
		"symbol_ratio":           sig.SymbolRatio,
		"link_count":             sig.LinkCount,
		"longest_line":           sig.LongestLine,
	} {
		if sp.Weight < 0 {
			bad("text.signals.%s.weight must be >= 0", name)
		}
	}
	for name, th := range map[string]float64{
		"low_unique_words_ratio": sig.LowUniqueWords.Threshold,
		"repeated_words_ratio":   sig.RepeatedWords.Threshold,
		"uppercase_ratio":        sig.UppercaseRatio.Threshold,
		"symbol_ratio":           sig.SymbolRatio.Threshold,
	} {
		if th <= 0 || th >= 1 {
			bad("text.signals.%s.threshold must be in (0, 1)", name)
		}
	}
	if sig.RepeatedCharRuns.RunLength < 2 {
		bad("text.signals.repeated_char_runs.run_length must be >= 2")
	}
	if sig.LongestLine.Threshold <= 0 {
		bad("text.signals.longest_line.threshold must be > 0")
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}
