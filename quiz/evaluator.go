package quiz

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// FoldRule maps every spelling in From to the single representative To.
type FoldRule struct {
	To   string   `yaml:"to"`
	From []string `yaml:"from"`
}

// FoldConfig is the letter-variant folding policy of the question language.
type FoldConfig struct {
	CaseSensitive bool       `yaml:"caseSensitive"`
	Rules         []FoldRule `yaml:"rules"`
}

// DefaultFoldConfig folds the Arabic alef variants and ta marbuta used by
// the bundled catalog.
func DefaultFoldConfig() FoldConfig {
	return FoldConfig{
		Rules: []FoldRule{
			{To: "ا", From: []string{"إ", "أ", "آ"}},
			{To: "ه", From: []string{"ة"}},
		},
	}
}

// LoadFoldConfig reads fold rules from a YAML file. An empty path returns
// the defaults.
func LoadFoldConfig(path string) (FoldConfig, error) {
	if path == "" {
		return DefaultFoldConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return FoldConfig{}, fmt.Errorf("read fold rules: %w", err)
	}
	var cfg FoldConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FoldConfig{}, fmt.Errorf("parse fold rules %s: %w", path, err)
	}
	return cfg, nil
}

// Evaluator normalizes and compares submitted answers.
type Evaluator struct {
	caseSensitive bool
	folder        *strings.Replacer
}

// NewEvaluator validates cfg and builds an evaluator. Rule spellings go
// through the same steps as submitted text, and a rule set whose output
// would fold again on a second pass is rejected.
func NewEvaluator(cfg FoldConfig) (*Evaluator, error) {
	e := &Evaluator{caseSensitive: cfg.CaseSensitive}

	var pairs, targets, sources []string
	for i, rule := range cfg.Rules {
		if len(rule.From) == 0 {
			return nil, fmt.Errorf("fold rule %d: no source spellings", i+1)
		}
		to := e.prepare(rule.To)
		targets = append(targets, to)
		for _, from := range rule.From {
			from = e.prepare(from)
			if from == "" {
				return nil, fmt.Errorf("fold rule %d: empty source spelling", i+1)
			}
			pairs = append(pairs, from, to)
			sources = append(sources, from)
		}
	}
	e.folder = strings.NewReplacer(pairs...)

	for i, to := range targets {
		if folded := e.folder.Replace(to); folded != to {
			return nil, fmt.Errorf("fold target %q of rule %d folds again to %q", cfg.Rules[i].To, i+1, folded)
		}
	}
	if err := e.checkStable(append(targets, sources...)); err != nil {
		return nil, err
	}
	return e, nil
}

// checkStable normalizes every spelling and every pair of spellings twice.
// Pairs catch a replacement that forms another source with its neighbour.
func (e *Evaluator) checkStable(spellings []string) error {
	samples := append([]string{}, spellings...)
	for _, a := range spellings {
		for _, b := range spellings {
			samples = append(samples, a+b)
		}
	}
	for _, s := range samples {
		once := e.Normalize(s)
		if twice := e.Normalize(once); twice != once {
			return fmt.Errorf("fold rules are not stable: %q folds to %q, then to %q", s, once, twice)
		}
	}
	return nil
}

// prepare collapses whitespace, applies NFC and folds case unless
// configured otherwise.
func (e *Evaluator) prepare(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	s = norm.NFC.String(s)
	if !e.caseSensitive {
		s = cases.Fold().String(s)
	}
	return s
}

// Normalize prepares text and then folds the configured letter variants.
func (e *Evaluator) Normalize(text string) string {
	return e.folder.Replace(e.prepare(text))
}

// Matches reports whether a free-text answer equals the expected answer.
func (e *Evaluator) Matches(userText, correctText string) bool {
	return e.Normalize(userText) == e.Normalize(correctText)
}

// MatchesChoice reports whether index is the question's correct option.
func (e *Evaluator) MatchesChoice(q Question, index int) bool {
	want := q.AnswerIndex(e)
	return want >= 0 && index == want
}
