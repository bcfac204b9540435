package session

import "github.com/thebtf/hcplog/pkg/models"

// Snapshot is an immutable view of the session at one point in time.
// Version increases with every state change; consumers may drop older versions.
type Snapshot struct {
	Draft            *models.InteractionRecord  `json:"draft,omitempty"`
	CurrentLogID     models.LogID               `json:"current_log_id"`
	Status           models.Status              `json:"status"`
	Error            string                     `json:"error,omitempty"`
	TransientMessage string                     `json:"transient_message,omitempty"`
	History          []models.InteractionRecord `json:"history"`
	Suggestions      []string                   `json:"suggestions,omitempty"`
	Version          uint64                     `json:"version"`
}

// Current returns the selected entry of the snapshot.
func (s Snapshot) Current() (models.InteractionRecord, bool) {
	if s.CurrentLogID.IsZero() {
		return models.InteractionRecord{}, false
	}
	for _, r := range s.History {
		if r.LogID == s.CurrentLogID {
			return r, true
		}
	}
	return models.InteractionRecord{}, false
}

// Active returns the selected entry, or the draft when nothing is selected.
func (s Snapshot) Active() (models.InteractionRecord, bool) {
	if rec, ok := s.Current(); ok {
		return rec, true
	}
	if s.Draft != nil {
		return *s.Draft, true
	}
	return models.InteractionRecord{}, false
}
