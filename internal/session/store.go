// Package session keeps the client-side state of an interaction logging session
// in sync with the backend.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/thebtf/hcplog/pkg/models"
)

// Store holds the interactions known in this session, the current selection and the draft.
// It is safe for concurrent use; every read returns a copy.
type Store struct {
	now          func() time.Time
	draft        *models.InteractionRecord
	index        map[models.LogID]int
	currentLogID models.LogID
	history      []models.InteractionRecord
	mu           sync.RWMutex
}

// NewStore creates an empty store with a fresh draft.
func NewStore() *Store {
	draft := models.NewDraft()
	return &Store{
		now:   time.Now,
		index: make(map[models.LogID]int),
		draft: &draft,
	}
}

// Upsert replaces the entry with the same log id in place, or appends a new one.
// LoggedAt of an existing entry survives the replacement.
func (s *Store) Upsert(rec models.InteractionRecord) (models.InteractionRecord, error) {
	if rec.LogID.IsZero() {
		return models.InteractionRecord{}, ErrMissingLogID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[rec.LogID]; ok {
		if rec.LoggedAt.IsZero() {
			rec.LoggedAt = s.history[i].LoggedAt
		}
		s.history[i] = rec
		return rec, nil
	}

	if rec.LoggedAt.IsZero() {
		rec.LoggedAt = s.now()
	}
	s.index[rec.LogID] = len(s.history)
	s.history = append(s.history, rec)
	return rec, nil
}

// Select makes id current. Unknown ids leave the selection unchanged and return false.
func (s *Store) Select(id models.LogID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; !ok {
		return false
	}
	s.currentLogID = id
	return true
}

// EditField sets one field of the selected entry, or of the draft when nothing is selected.
func (s *Store) EditField(name, value string) error {
	field, ok := models.ParseField(name)
	if !ok {
		return &InvalidFieldError{Field: name, Reason: "unknown field"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.activeLocked()
	if target == nil {
		return ErrNoActiveRecord
	}
	if err := target.Set(field, value); err != nil {
		return &InvalidFieldError{Field: name, Reason: err.Error()}
	}
	return nil
}

// Clear empties history, drops the selection and starts a fresh draft.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = nil
	s.index = make(map[models.LogID]int)
	s.currentLogID = ""
	draft := models.NewDraft()
	s.draft = &draft
}

// ResetDraft clears the selection and starts a fresh draft. History is untouched.
func (s *Store) ResetDraft() {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := models.NewDraft()
	s.draft = &draft
	s.currentLogID = ""
}

// Active returns the record edits and saves apply to.
func (s *Store) Active() (models.InteractionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	target := s.activeLocked()
	if target == nil {
		return models.InteractionRecord{}, ErrNoActiveRecord
	}
	return *target, nil
}

// activeLocked must be called with s.mu held.
func (s *Store) activeLocked() *models.InteractionRecord {
	if !s.currentLogID.IsZero() {
		if i, ok := s.index[s.currentLogID]; ok {
			return &s.history[i]
		}
		return nil
	}
	return s.draft
}

// Current returns the selected entry.
func (s *Store) Current() (models.InteractionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[s.currentLogID]
	if !ok {
		return models.InteractionRecord{}, false
	}
	return s.history[i], true
}

// CurrentLogID returns the selected id, zero when a draft is being composed.
func (s *Store) CurrentLogID() models.LogID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentLogID
}

// History returns the entries in arrival order.
func (s *Store) History() []models.InteractionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneHistory(s.history)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// FindByHCP returns the entry whose HCP name best matches name.
// Substring matches win; otherwise the closest name within a small edit distance.
// Ties go to the most recent entry.
func (s *Store) FindByHCP(name string) (models.InteractionRecord, bool) {
	query := strings.ToLower(strings.TrimSpace(name))
	if query == "" {
		return models.InteractionRecord{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	maxDist := len(query) / 3
	if maxDist < 2 {
		maxDist = 2
	}

	best, bestDist := -1, maxDist+1
	for i := len(s.history) - 1; i >= 0; i-- {
		candidate := strings.ToLower(s.history[i].HCPName)
		if candidate == "" {
			continue
		}
		dist := levenshtein.ComputeDistance(query, candidate)
		if strings.Contains(candidate, query) {
			dist = 0
		}
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return models.InteractionRecord{}, false
	}
	return s.history[best], true
}

// fill copies the store part of a snapshot.
func (s *Store) fill(snap *Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap.History = cloneHistory(s.history)
	snap.CurrentLogID = s.currentLogID
	if s.draft != nil && s.currentLogID.IsZero() {
		d := *s.draft
		snap.Draft = &d
	}
}

func cloneHistory(h []models.InteractionRecord) []models.InteractionRecord {
	out := make([]models.InteractionRecord, len(h))
	copy(out, h)
	return out
}
