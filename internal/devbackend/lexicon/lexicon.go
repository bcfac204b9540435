// Package lexicon loads the keyword lists the development backend extracts with.
package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Term maps a canonical value to the words that signal it.
type Term struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Config is the top-level YAML structure.
type Config struct {
	InteractionTypes       []Term              `yaml:"interaction_types"`
	DefaultInteractionType string              `yaml:"default_interaction_type"`
	Sentiments             []Term              `yaml:"sentiments"`
	FieldAliases           map[string][]string `yaml:"field_aliases"`
	EditVerbs              []string            `yaml:"edit_verbs"`
	QuestionWords          []string            `yaml:"question_words"`
	FollowUpSuggestions    []string            `yaml:"follow_up_suggestions"`
}

type matcher struct {
	name string
	re   *regexp.Regexp
}

type alias struct {
	phrase string
	field  string
}

// Lexicon is a compiled Config.
type Lexicon struct {
	types       []matcher
	sentiments  []matcher
	aliases     []alias
	edit        *regexp.Regexp
	question    *regexp.Regexp
	defaultType string
	suggestions []string
}

// Default returns the built-in lexicon.
func Default() *Lexicon {
	lx, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("lexicon: built-in lexicon is invalid: %v", err))
	}
	return lx
}

// Load reads the YAML file at path. An empty path or a missing file yields the built-in lexicon.
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse compiles a YAML lexicon.
func Parse(data []byte) (*Lexicon, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	return Compile(cfg)
}

// Compile builds a Lexicon from cfg.
func Compile(cfg Config) (*Lexicon, error) {
	lx := &Lexicon{
		defaultType: cfg.DefaultInteractionType,
		suggestions: append([]string(nil), cfg.FollowUpSuggestions...),
	}

	var err error
	if lx.types, err = compileTerms(cfg.InteractionTypes); err != nil {
		return nil, fmt.Errorf("interaction_types: %w", err)
	}
	if lx.sentiments, err = compileTerms(cfg.Sentiments); err != nil {
		return nil, fmt.Errorf("sentiments: %w", err)
	}
	if lx.edit, err = wordsRegexp(cfg.EditVerbs, true); err != nil {
		return nil, fmt.Errorf("edit_verbs: %w", err)
	}
	if lx.question, err = wordsRegexp(cfg.QuestionWords, true); err != nil {
		return nil, fmt.Errorf("question_words: %w", err)
	}

	for field, phrases := range cfg.FieldAliases {
		for _, p := range phrases {
			lx.aliases = append(lx.aliases, alias{phrase: strings.ToLower(strings.TrimSpace(p)), field: field})
		}
	}
	// Longest phrase first so "follow up actions" beats "follow up".
	sort.SliceStable(lx.aliases, func(i, j int) bool {
		if len(lx.aliases[i].phrase) != len(lx.aliases[j].phrase) {
			return len(lx.aliases[i].phrase) > len(lx.aliases[j].phrase)
		}
		return lx.aliases[i].phrase < lx.aliases[j].phrase
	})
	return lx, nil
}

func compileTerms(terms []Term) ([]matcher, error) {
	out := make([]matcher, 0, len(terms))
	for _, t := range terms {
		if t.Name == "" {
			return nil, fmt.Errorf("term without name")
		}
		re, err := wordsRegexp(t.Keywords, false)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Name, err)
		}
		if re != nil {
			out = append(out, matcher{name: t.Name, re: re})
		}
	}
	return out, nil
}

// wordsRegexp matches any of words as whole words. Anchored patterns only match the
// first word of the text, optionally preceded by "please".
func wordsRegexp(words []string, anchored bool) (*regexp.Regexp, error) {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		quoted = append(quoted, strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`))
	}
	if len(quoted) == 0 {
		return nil, nil
	}
	prefix := `\b`
	if anchored {
		prefix = `^\s*(?:please\s+)?`
	}
	return regexp.Compile(`(?i)` + prefix + `(?:` + strings.Join(quoted, "|") + `)\b`)
}

func firstMatch(ms []matcher, text string) (string, bool) {
	for _, m := range ms {
		if m.re.MatchString(text) {
			return m.name, true
		}
	}
	return "", false
}

// InteractionType returns the first interaction type mentioned in text.
func (lx *Lexicon) InteractionType(text string) (string, bool) {
	return firstMatch(lx.types, text)
}

// DefaultInteractionType is used when text names no interaction type.
func (lx *Lexicon) DefaultInteractionType() string {
	return lx.defaultType
}

// Sentiment returns the first sentiment signalled in text.
func (lx *Lexicon) Sentiment(text string) (string, bool) {
	return firstMatch(lx.sentiments, text)
}

// Field resolves a phrase such as "follow-ups" to a backend field name.
func (lx *Lexicon) Field(phrase string) (string, bool) {
	phrase = strings.ToLower(strings.Join(strings.Fields(phrase), " "))
	phrase = strings.TrimPrefix(phrase, "the ")
	for _, a := range lx.aliases {
		if phrase == a.phrase {
			return a.field, true
		}
	}
	return "", false
}

// IsEdit reports whether text starts with an edit verb.
func (lx *Lexicon) IsEdit(text string) bool {
	return lx.edit != nil && lx.edit.MatchString(text)
}

// IsQuestion reports whether text asks something: it ends with a question mark or
// opens with a question word.
func (lx *Lexicon) IsQuestion(text string) bool {
	text = strings.TrimSpace(text)
	if strings.HasSuffix(text, "?") {
		return true
	}
	return lx.question != nil && lx.question.MatchString(text)
}

// Suggestions returns the follow-up suggestions.
func (lx *Lexicon) Suggestions() []string {
	return append([]string(nil), lx.suggestions...)
}
