package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned when no interaction has the requested log id.
var ErrNotFound = errors.New("interaction not found")

// interactionColumns selects the joined view used by every read.
const interactionColumns = "interaction_logs.id AS log_id, interaction_logs.user_id, interaction_logs.raw_text, " +
	"interaction_logs.created_at, extracted_data.hcp_name, extracted_data.interaction_type, " +
	"extracted_data.sentiment, extracted_data.topics_discussed, extracted_data.outcomes, " +
	"extracted_data.follow_up_actions, extracted_data.materials_shared, extracted_data.samples_distributed"

func (s *Store) interactions(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx).
		Table("interaction_logs").
		Select(interactionColumns).
		Joins("JOIN extracted_data ON extracted_data.log_id = interaction_logs.id")
}

// Create stores the raw text and its fields in one transaction and returns the new log id.
func (s *Store) Create(ctx context.Context, userID int64, rawText string, fields Fields) (int64, error) {
	var logID int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := &InteractionLog{UserID: userID, RawText: rawText, CreatedAt: time.Now()}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		data := &ExtractedData{LogID: entry.ID, Fields: fields}
		if err := tx.Create(data).Error; err != nil {
			return err
		}
		logID = entry.ID
		return nil
	})
	return logID, err
}

// Update overwrites every field of an interaction.
func (s *Store) Update(ctx context.Context, logID int64, fields Fields) error {
	res := s.DB.WithContext(ctx).
		Model(&ExtractedData{}).
		Where("log_id = ?", logID).
		Updates(map[string]any{
			"hcp_name":            fields.HCPName,
			"interaction_type":    fields.InteractionType,
			"sentiment":           fields.Sentiment,
			"topics_discussed":    fields.TopicsDiscussed,
			"outcomes":            fields.Outcomes,
			"follow_up_actions":   fields.FollowUpActions,
			"materials_shared":    fields.MaterialsShared,
			"samples_distributed": fields.SamplesDistributed,
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns one interaction.
func (s *Store) Get(ctx context.Context, logID int64) (*Interaction, error) {
	var out []Interaction
	if err := s.interactions(ctx).Where("interaction_logs.id = ?", logID).Limit(1).Scan(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// List returns the most recent interactions first. A non-positive limit returns all.
func (s *Store) List(ctx context.Context, userID int64, limit int) ([]Interaction, error) {
	q := s.interactions(ctx).Order("interaction_logs.id DESC")
	if userID > 0 {
		q = q.Where("interaction_logs.user_id = ?", userID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Interaction
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Latest returns the most recent interaction of userID.
func (s *Store) Latest(ctx context.Context, userID int64) (*Interaction, error) {
	list, err := s.List(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

// Count returns how many interactions userID logged.
func (s *Store) Count(ctx context.Context, userID int64) (int64, error) {
	var n int64
	q := s.DB.WithContext(ctx).Model(&InteractionLog{})
	if userID > 0 {
		q = q.Where("user_id = ?", userID)
	}
	err := q.Count(&n).Error
	return n, err
}

// FindByHCP returns interactions whose HCP name contains name, most recent first.
func (s *Store) FindByHCP(ctx context.Context, userID int64, name string) ([]Interaction, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	q := s.interactions(ctx).
		Where("LOWER(extracted_data.hcp_name) LIKE ?", "%"+strings.ToLower(name)+"%").
		Order("interaction_logs.id DESC")
	if userID > 0 {
		q = q.Where("interaction_logs.user_id = ?", userID)
	}
	var out []Interaction
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes an interaction and its raw log.
func (s *Store) Delete(ctx context.Context, logID int64) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("log_id = ?", logID).Delete(&ExtractedData{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&InteractionLog{}, logID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
