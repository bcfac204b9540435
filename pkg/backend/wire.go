package backend

import (
	"github.com/thebtf/hcplog/pkg/models"
)

// recordFields is the egress form of an interaction, in the backend naming convention.
type recordFields struct {
	HCPName            string `json:"hcp_name"`
	InteractionType    string `json:"interaction_type"`
	Sentiment          string `json:"sentiment"`
	TopicsDiscussed    string `json:"topics_discussed"`
	Outcomes           string `json:"outcomes"`
	FollowUpActions    string `json:"follow_up_actions"`
	MaterialsShared    string `json:"materials_shared"`
	SamplesDistributed string `json:"samples_distributed"`
}

func toFields(r models.InteractionRecord) recordFields {
	return recordFields{
		HCPName:            r.HCPName,
		InteractionType:    r.InteractionType,
		Sentiment:          string(r.Sentiment),
		TopicsDiscussed:    r.TopicsDiscussed,
		Outcomes:           r.Outcomes,
		FollowUpActions:    r.FollowUpActions,
		MaterialsShared:    r.MaterialsShared,
		SamplesDistributed: r.SamplesDistributed,
	}
}

// recordData is the ingress form. Extraction may leave any field null.
type recordData struct {
	HCPName            *string `json:"hcp_name"`
	InteractionType    *string `json:"interaction_type"`
	Sentiment          *string `json:"sentiment"`
	TopicsDiscussed    *string `json:"topics_discussed"`
	Outcomes           *string `json:"outcomes"`
	FollowUpActions    *string `json:"follow_up_actions"`
	MaterialsShared    *string `json:"materials_shared"`
	SamplesDistributed *string `json:"samples_distributed"`
}

// empty reports whether no field was sent at all.
func (d *recordData) empty() bool {
	return d.HCPName == nil && d.InteractionType == nil && d.Sentiment == nil &&
		d.TopicsDiscussed == nil && d.Outcomes == nil && d.FollowUpActions == nil &&
		d.MaterialsShared == nil && d.SamplesDistributed == nil
}

func (d *recordData) toRecord(id models.LogID) models.InteractionRecord {
	return models.InteractionRecord{
		LogID:              id,
		HCPName:            deref(d.HCPName),
		InteractionType:    deref(d.InteractionType),
		Sentiment:          models.NormalizeSentiment(deref(d.Sentiment)),
		TopicsDiscussed:    deref(d.TopicsDiscussed),
		Outcomes:           deref(d.Outcomes),
		FollowUpActions:    deref(d.FollowUpActions),
		MaterialsShared:    deref(d.MaterialsShared),
		SamplesDistributed: deref(d.SamplesDistributed),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type textRequest struct {
	Text   string `json:"text"`
	UserID int    `json:"user_id"`
}

type chatRequest struct {
	Text         string       `json:"text"`
	CurrentLogID models.LogID `json:"current_log_id"`
	UserID       int          `json:"user_id"`
}

type saveManualRequest struct {
	recordFields
	LogID  models.LogID `json:"log_id"`
	UserID int          `json:"user_id"`
}

// envelope covers every response shape the backend produces.
// The update endpoint may echo the fields at top level instead of under data_sent_to_db.
type envelope struct {
	recordData
	Data        *recordData  `json:"data_sent_to_db"`
	IsNew       *bool        `json:"is_new"`
	AIMessage   *string      `json:"ai_message"`
	LogID       models.LogID `json:"log_id"`
	Message     string       `json:"message"`
	Suggestions []string     `json:"suggested_follow_ups"`
}

// record returns the record payload, preferring data_sent_to_db over top-level fields.
func (e *envelope) record() *recordData {
	if e.Data != nil {
		return e.Data
	}
	if !e.recordData.empty() {
		return &e.recordData
	}
	return nil
}
