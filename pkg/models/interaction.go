// Package models contains domain models for hcplog.
package models

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// LogID is the backend-assigned identifier of a saved interaction.
// The zero value means "not saved yet".
type LogID string

// IsZero reports whether the id is unset.
func (id LogID) IsZero() bool {
	return id == ""
}

func (id LogID) String() string {
	return string(id)
}

// MarshalJSON emits null for an unset id, a bare number for ids in canonical
// integer form and a string otherwise, so "007" stays "007" on the wire.
func (id LogID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts a JSON string, a JSON number or null.
func (id *LogID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = LogID(strings.TrimSpace(s))
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("log id: %w", err)
		}
		*id = LogID(n.String())
		return nil
	}
}

// Sentiment is the inferred tone of an interaction.
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentNegative Sentiment = "Negative"
)

// ParseSentiment matches a sentiment case-insensitively.
func ParseSentiment(s string) (Sentiment, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return SentimentPositive, true
	case "neutral":
		return SentimentNeutral, true
	case "negative":
		return SentimentNegative, true
	}
	return "", false
}

// NormalizeSentiment is ParseSentiment with a Neutral fallback, used for backend payloads.
func NormalizeSentiment(s string) Sentiment {
	if v, ok := ParseSentiment(s); ok {
		return v
	}
	return SentimentNeutral
}

// Field names one editable attribute of an InteractionRecord.
type Field string

const (
	FieldHCPName            Field = "hcpName"
	FieldInteractionType    Field = "interactionType"
	FieldSentiment          Field = "sentiment"
	FieldTopicsDiscussed    Field = "topicsDiscussed"
	FieldOutcomes           Field = "outcomes"
	FieldFollowUpActions    Field = "followUpActions"
	FieldMaterialsShared    Field = "materialsShared"
	FieldSamplesDistributed Field = "samplesDistributed"
)

// Fields lists the editable fields in form order.
var Fields = []Field{
	FieldHCPName,
	FieldInteractionType,
	FieldSentiment,
	FieldTopicsDiscussed,
	FieldOutcomes,
	FieldFollowUpActions,
	FieldMaterialsShared,
	FieldSamplesDistributed,
}

var wireNames = map[Field]string{
	FieldHCPName:            "hcp_name",
	FieldInteractionType:    "interaction_type",
	FieldSentiment:          "sentiment",
	FieldTopicsDiscussed:    "topics_discussed",
	FieldOutcomes:           "outcomes",
	FieldFollowUpActions:    "follow_up_actions",
	FieldMaterialsShared:    "materials_shared",
	FieldSamplesDistributed: "samples_distributed",
}

// WireName returns the backend (snake_case) name of the field.
func (f Field) WireName() string {
	return wireNames[f]
}

// ParseField resolves either the internal or the wire name of a field.
func ParseField(name string) (Field, bool) {
	name = strings.TrimSpace(name)
	for _, f := range Fields {
		if string(f) == name || wireNames[f] == name {
			return f, true
		}
	}
	return "", false
}

// InteractionRecord is one logged interaction with a healthcare professional.
type InteractionRecord struct {
	LoggedAt           time.Time `json:"logged_at,omitempty"`
	LogID              LogID     `json:"log_id"`
	HCPName            string    `json:"hcp_name"`
	InteractionType    string    `json:"interaction_type"`
	Sentiment          Sentiment `json:"sentiment"`
	TopicsDiscussed    string    `json:"topics_discussed"`
	Outcomes           string    `json:"outcomes"`
	FollowUpActions    string    `json:"follow_up_actions"`
	MaterialsShared    string    `json:"materials_shared"`
	SamplesDistributed string    `json:"samples_distributed"`
}

// NewDraft returns an unsaved record with default values.
func NewDraft() InteractionRecord {
	return InteractionRecord{Sentiment: SentimentNeutral}
}

// Get returns the value of a field.
func (r *InteractionRecord) Get(f Field) string {
	switch f {
	case FieldHCPName:
		return r.HCPName
	case FieldInteractionType:
		return r.InteractionType
	case FieldSentiment:
		return string(r.Sentiment)
	case FieldTopicsDiscussed:
		return r.TopicsDiscussed
	case FieldOutcomes:
		return r.Outcomes
	case FieldFollowUpActions:
		return r.FollowUpActions
	case FieldMaterialsShared:
		return r.MaterialsShared
	case FieldSamplesDistributed:
		return r.SamplesDistributed
	}
	return ""
}

// Set assigns a field. It fails for unknown fields and unknown sentiments.
func (r *InteractionRecord) Set(f Field, value string) error {
	switch f {
	case FieldHCPName:
		r.HCPName = value
	case FieldInteractionType:
		r.InteractionType = value
	case FieldSentiment:
		s, ok := ParseSentiment(value)
		if !ok {
			return fmt.Errorf("sentiment must be one of Positive, Neutral, Negative, got %q", value)
		}
		r.Sentiment = s
	case FieldTopicsDiscussed:
		r.TopicsDiscussed = value
	case FieldOutcomes:
		r.Outcomes = value
	case FieldFollowUpActions:
		r.FollowUpActions = value
	case FieldMaterialsShared:
		r.MaterialsShared = value
	case FieldSamplesDistributed:
		r.SamplesDistributed = value
	default:
		return fmt.Errorf("unknown field %q", f)
	}
	return nil
}

// DisplayName is the HCP name or a placeholder for history listings.
func (r *InteractionRecord) DisplayName() string {
	if strings.TrimSpace(r.HCPName) == "" {
		return "Unknown HCP"
	}
	return r.HCPName
}
