// Package templates is the back-office layer for template creators, loop
// templates, their tasks and reviews, plus library instantiation.
package templates

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/myerscreative/doloop-sub000/internal/apperr"
	"github.com/myerscreative/doloop-sub000/internal/models"
	"github.com/myerscreative/doloop-sub000/internal/store"
	"github.com/myerscreative/doloop-sub000/internal/streak"
)

// Service wraps the store with template business rules.
type Service struct {
	store  *store.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a template service.
func NewService(s *store.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  s,
		logger: logger.With().Str("component", "templates").Logger(),
		now:    time.Now,
	}
}

// NewTemplateTask is the input shape for a template's task on creation.
type NewTemplateTask struct {
	Description string `json:"description"`
	Notes       string `json:"notes,omitempty"`
	IsRecurring bool   `json:"is_recurring"`
}

// CreateTemplate inserts a template and its tasks. The write is two-step:
// the template row first, then its tasks. When a task insert fails the
// template row is deleted again so no orphan remains.
func (s *Service) CreateTemplate(tpl *models.LoopTemplate, tasks []NewTemplateTask) (*models.LoopTemplate, error) {
	if tpl.Name == "" {
		return nil, apperr.NewValidationError("name", "must not be empty")
	}
	if !models.ValidResetRule(string(tpl.ResetRule)) {
		return nil, apperr.NewValidationError("reset_rule", "must be manual, daily or weekly")
	}
	if creator, err := s.store.GetCreator(tpl.CreatorID); err != nil {
		return nil, err
	} else if creator == nil {
		return nil, fmt.Errorf("creator %s: %w", tpl.CreatorID, apperr.ErrNotFound)
	}

	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	if err := s.store.SaveTemplate(tpl); err != nil {
		s.logger.Error().Err(err).Str("template", tpl.Name).Msg("template insert failed")
		return nil, err
	}

	for i, nt := range tasks {
		task := &models.TemplateTask{
			ID:          uuid.New().String(),
			TemplateID:  tpl.ID,
			Description: nt.Description,
			Notes:       nt.Notes,
			IsRecurring: nt.IsRecurring,
			Order:       i,
		}
		if err := s.store.SaveTemplateTask(task); err != nil {
			// Compensate: remove the template row just inserted.
			if delErr := s.store.DeleteTemplate(tpl.ID); delErr != nil {
				s.logger.Error().Err(delErr).Str("template_id", tpl.ID).
					Msg("rollback of template after task insert failure also failed")
			}
			s.logger.Error().Err(err).Str("template_id", tpl.ID).Msg("task insert failed, template rolled back")
			return nil, fmt.Errorf("inserting template task: %w", err)
		}
	}

	return tpl, nil
}

// UpdateTemplate replaces a template's row.
func (s *Service) UpdateTemplate(tpl *models.LoopTemplate) (*models.LoopTemplate, error) {
	existing, err := s.store.GetTemplate(tpl.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("template %s: %w", tpl.ID, apperr.ErrNotFound)
	}
	tpl.CreatedAt = existing.CreatedAt
	tpl.UseCount = existing.UseCount
	if err := s.store.SaveTemplate(tpl); err != nil {
		s.logger.Error().Err(err).Str("template_id", tpl.ID).Msg("template update failed")
		return nil, err
	}
	return tpl, nil
}

// DeleteTemplate removes a template with its tasks and reviews.
func (s *Service) DeleteTemplate(id string) error {
	if err := s.store.DeleteTemplate(id); err != nil {
		s.logger.Error().Err(err).Str("template_id", id).Msg("template delete failed")
		return err
	}
	return nil
}

// AddReview validates and stores a review.
func (s *Service) AddReview(r *models.TemplateReview) (*models.TemplateReview, error) {
	if r.Rating < 1 || r.Rating > 5 {
		return nil, apperr.NewValidationError("rating", "must be between 1 and 5")
	}
	if tpl, err := s.store.GetTemplate(r.TemplateID); err != nil {
		return nil, err
	} else if tpl == nil {
		return nil, fmt.Errorf("template %s: %w", r.TemplateID, apperr.ErrNotFound)
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if err := s.store.SaveReview(r); err != nil {
		s.logger.Error().Err(err).Str("template_id", r.TemplateID).Msg("review insert failed")
		return nil, err
	}
	return r, nil
}

// UseTemplate copies a template into a new loop for the user, inserts the
// template's tasks, bumps the use counter and records the usage.
func (s *Service) UseTemplate(templateID, userID string) (*models.LoopRow, error) {
	tpl, err := s.store.GetTemplate(templateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, fmt.Errorf("template %s: %w", templateID, apperr.ErrNotFound)
	}

	now := s.now()
	l := &models.LoopRow{
		ID:          uuid.New().String(),
		OwnerID:     userID,
		Title:       tpl.Name,
		Description: tpl.Description,
		Color:       tpl.Color,
		ResetRule:   tpl.ResetRule,
		NextResetAt: streak.NextResetAt(tpl.ResetRule, now),
		CreatedAt:   now.UnixMilli(),
		UpdatedAt:   now.UnixMilli(),
	}
	if err := s.store.SaveLoop(l); err != nil {
		return nil, err
	}

	tasks, err := s.store.ListTemplateTasks(templateID)
	if err != nil {
		return nil, err
	}
	for _, tt := range tasks {
		task := &models.TaskRow{
			ID:          uuid.New().String(),
			LoopID:      l.ID,
			Description: tt.Description,
			Notes:       tt.Notes,
			Status:      models.TaskPending,
			IsRecurring: tt.IsRecurring,
			IsOneTime:   !tt.IsRecurring,
			Priority:    len(tasks) - tt.Order,
			CreatedAt:   now.UnixMilli(),
			UpdatedAt:   now.UnixMilli(),
		}
		if err := s.store.SaveTask(task); err != nil {
			if delErr := s.store.DeleteLoop(l.ID); delErr != nil {
				s.logger.Error().Err(delErr).Str("loop_id", l.ID).
					Msg("rollback of instantiated loop also failed")
			}
			return nil, fmt.Errorf("copying template task: %w", err)
		}
	}

	if err := s.store.IncrementTemplateUse(templateID); err != nil {
		s.logger.Warn().Err(err).Str("template_id", templateID).Msg("use counter bump failed")
	}
	if err := s.store.RecordTemplateUsage(uuid.New().String(), userID, templateID, l.ID); err != nil {
		s.logger.Warn().Err(err).Str("template_id", templateID).Msg("usage record failed")
	}

	return l, nil
}
