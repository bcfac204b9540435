package store

import (
	"strings"
	"time"

	"github.com/thebtf/hcplog/internal/devbackend/extract"
)

// NA is stored for fields that are empty or missing.
const NA = "NA"

// InteractionLog is the raw text a representative submitted.
type InteractionLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"index;not null"`
	RawText   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index"`
}

func (InteractionLog) TableName() string { return "interaction_logs" }

// Fields are the structured columns of an interaction.
type Fields struct {
	HCPName            string `gorm:"size:255;index" json:"hcp_name"`
	InteractionType    string `gorm:"size:100" json:"interaction_type"`
	Sentiment          string `gorm:"size:50" json:"sentiment"`
	TopicsDiscussed    string `gorm:"type:text" json:"topics_discussed"`
	Outcomes           string `gorm:"type:text" json:"outcomes"`
	FollowUpActions    string `gorm:"type:text" json:"follow_up_actions"`
	MaterialsShared    string `gorm:"type:text" json:"materials_shared"`
	SamplesDistributed string `gorm:"type:text" json:"samples_distributed"`
}

// ExtractedData holds the fields of one logged interaction.
type ExtractedData struct {
	ID    int64 `gorm:"primaryKey;autoIncrement"`
	LogID int64 `gorm:"uniqueIndex;not null"`

	Fields `gorm:"embedded"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (ExtractedData) TableName() string { return "extracted_data" }

// Interaction is a stored interaction as returned to callers.
type Interaction struct {
	LogID     int64     `json:"log_id"`
	UserID    int64     `json:"user_id"`
	RawText   string    `json:"raw_text"`
	CreatedAt time.Time `json:"created_at"`
	Fields
}

// Sanitize replaces nil and blank fields with NA.
func Sanitize(f extract.Fields) Fields {
	value := func(p *string) string {
		if p == nil || strings.TrimSpace(*p) == "" {
			return NA
		}
		return *p
	}
	return Fields{
		HCPName:            value(f.HCPName),
		InteractionType:    value(f.InteractionType),
		Sentiment:          value(f.Sentiment),
		TopicsDiscussed:    value(f.TopicsDiscussed),
		Outcomes:           value(f.Outcomes),
		FollowUpActions:    value(f.FollowUpActions),
		MaterialsShared:    value(f.MaterialsShared),
		SamplesDistributed: value(f.SamplesDistributed),
	}
}

// Extracted converts stored fields back to the extraction form. NA becomes nil.
func (f Fields) Extracted() extract.Fields {
	value := func(s string) *string {
		if s == NA || s == "" {
			return nil
		}
		v := s
		return &v
	}
	return extract.Fields{
		HCPName:            value(f.HCPName),
		InteractionType:    value(f.InteractionType),
		Sentiment:          value(f.Sentiment),
		TopicsDiscussed:    value(f.TopicsDiscussed),
		Outcomes:           value(f.Outcomes),
		FollowUpActions:    value(f.FollowUpActions),
		MaterialsShared:    value(f.MaterialsShared),
		SamplesDistributed: value(f.SamplesDistributed),
	}
}
