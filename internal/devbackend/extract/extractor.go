package extract

import (
	"regexp"
	"strings"

	"github.com/thebtf/hcplog/internal/devbackend/lexicon"
)

var (
	titledNameRegex = regexp.MustCompile(`\b(Dr|Doctor|Prof|Professor)\.?\s+([A-Z][A-Za-z'\-]+(?:\s+[A-Z][A-Za-z'\-]+)?)`)
	withNameRegex   = regexp.MustCompile(`\bwith\s+([A-Z][a-z'\-]+\s+[A-Z][A-Za-z'\-]+)`)
	topicsRegex     = regexp.MustCompile(`(?i)\bdiscuss(?:ed|ing)?\s+(?:about\s+)?([^.;]+)`)
	materialsRegex  = regexp.MustCompile(`(?i)\b(?:shared|provided|handed over|left behind)\s+(?:the\s+|a\s+|an\s+)?([^.;]+)`)
	samplesRegex    = regexp.MustCompile(`(?i)([^.;,]*\bsamples?\b[^.;,]*)`)
	outcomesRegex   = regexp.MustCompile(`(?i)\b((?:agreed|committed|decided|will prescribe|plans? to)\b[^.;,]*)`)
	followUpRegex   = regexp.MustCompile(`(?i)\b((?:follow(?:ing)?[- ]up|schedule[d]?|send|next step)\b[^.;]*)`)
	editRegex       = regexp.MustCompile(`(?i)^\s*(?:please\s+)?\w+\s+(.+?)\s+(?:to|as|=|:)\s+(.+?)\s*[.!]?\s*$`)

	// trailingClauseRegex cuts a capture where the next reported action starts.
	trailingClauseRegex = regexp.MustCompile(`(?i),?\s*(?:\band\s+)?\b(?:shared|provided|left|gave|distributed|dropped|agreed|committed|will|follow(?:ing)?[- ]up|schedule|send)\b.*$`)
	leadingVerbRegex    = regexp.MustCompile(`(?i)^\s*(?:and\s+)?(?:gave|distributed|dropped off|left|provided|handed over)\s+`)
)

// Extractor pulls interaction fields out of text with a keyword lexicon.
type Extractor struct {
	lex *lexicon.Lexicon
}

// New creates an Extractor. A nil lexicon uses the built-in one.
func New(lex *lexicon.Lexicon) *Extractor {
	if lex == nil {
		lex = lexicon.Default()
	}
	return &Extractor{lex: lex}
}

// Lexicon returns the lexicon in use.
func (e *Extractor) Lexicon() *lexicon.Lexicon {
	return e.lex
}

// Extract reads every field it can find in text.
// The interaction type falls back to the lexicon default.
func (e *Extractor) Extract(text string) Fields {
	var f Fields

	if name, ok := HCPName(text); ok {
		f.HCPName = &name
	}

	if t, ok := e.lex.InteractionType(text); ok {
		f.InteractionType = &t
	} else if d := e.lex.DefaultInteractionType(); d != "" {
		f.InteractionType = &d
	}

	if s, ok := e.lex.Sentiment(text); ok {
		f.Sentiment = &s
	}

	if m := topicsRegex.FindStringSubmatch(text); m != nil {
		setTrimmed(&f.TopicsDiscussed, trailingClauseRegex.ReplaceAllString(m[1], ""))
	}

	if m := samplesRegex.FindStringSubmatch(text); m != nil {
		setTrimmed(&f.SamplesDistributed, leadingVerbRegex.ReplaceAllString(m[1], ""))
	}

	if m := materialsRegex.FindStringSubmatch(text); m != nil {
		material := trailingClauseRegex.ReplaceAllString(m[1], "")
		if !strings.Contains(strings.ToLower(material), "sample") {
			setTrimmed(&f.MaterialsShared, material)
		}
	}

	if m := outcomesRegex.FindStringSubmatch(text); m != nil {
		setTrimmed(&f.Outcomes, m[1])
	}

	if m := followUpRegex.FindStringSubmatch(text); m != nil {
		setTrimmed(&f.FollowUpActions, m[1])
	}

	return f
}

// Edit is a single-field change requested in text such as "Update the sentiment to Negative".
type Edit struct {
	Field string
	Value string
}

// ParseEdit recognises an edit request. It needs an edit verb, a known field and a value.
func (e *Extractor) ParseEdit(text string) (Edit, bool) {
	if !e.lex.IsEdit(text) {
		return Edit{}, false
	}
	m := editRegex.FindStringSubmatch(text)
	if m == nil {
		return Edit{}, false
	}
	field, ok := e.lex.Field(m[1])
	if !ok {
		return Edit{}, false
	}
	value := strings.Trim(strings.TrimSpace(m[2]), `"'`)
	if value == "" {
		return Edit{}, false
	}
	if field == "sentiment" {
		if s, ok := e.lex.Sentiment(value); ok {
			value = s
		}
	}
	return Edit{Field: field, Value: value}, true
}

// HCPName finds a titled name ("Dr. Evans") or, failing that, a full name after "with".
func HCPName(text string) (string, bool) {
	if m := titledNameRegex.FindStringSubmatch(text); m != nil {
		title := m[1]
		switch strings.ToLower(title) {
		case "doctor":
			title = "Dr"
		case "professor":
			title = "Prof"
		}
		return title + ". " + m[2], true
	}
	if m := withNameRegex.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

func setTrimmed(dst **string, v string) {
	v = strings.Trim(strings.TrimSpace(v), ",")
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	*dst = &v
}
