package aigen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/myerscreative/doloop-sub000/internal/apperr"
	"github.com/myerscreative/doloop-sub000/internal/models"
	"github.com/myerscreative/doloop-sub000/internal/store"
	"github.com/myerscreative/doloop-sub000/internal/streak"
)

// GenerateResult is the envelope handed back to the API layer. Every failure
// mode lands here as Success=false with a human-readable Error rather than
// propagating as a transport error, except rate limiting which carries its
// own status.
type GenerateResult struct {
	Success bool             `json:"success"`
	Error   string           `json:"error,omitempty"`
	Loop    *models.LoopRow  `json:"loop,omitempty"`
	Tasks   []models.TaskRow `json:"tasks,omitempty"`
	Usage   *Usage           `json:"usage,omitempty"`
	Limits  *Limits          `json:"limits,omitempty"`
}

// Service runs the generation pipeline: prompt vetting, quota check,
// provider call, response validation, and persistence.
type Service struct {
	store    *store.Store
	provider Provider
	rules    *PromptRules
	limits   Limits
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService wires a generation service. provider may not be nil.
func NewService(st *store.Store, provider Provider, rules *PromptRules, limits Limits, logger zerolog.Logger) *Service {
	return &Service{
		store:    st,
		provider: provider,
		rules:    rules,
		limits:   limits,
		logger:   logger.With().Str("component", "aigen").Logger(),
		now:      time.Now,
	}
}

// Generate turns a free-text prompt into a persisted loop plus tasks for the
// given user. Validation and quota failures return a populated result with
// Success=false and a nil error; ErrRateLimit is returned as an error so the
// API layer can answer 429 with the limits object.
func (s *Service) Generate(ctx context.Context, userID, prompt string) (*GenerateResult, error) {
	if userID == "" {
		return &GenerateResult{Success: false, Error: "missing user id"}, nil
	}

	if err := s.rules.Validate(prompt); err != nil {
		s.logger.Warn().Str("user_id", userID).Err(err).Msg("prompt rejected")
		return &GenerateResult{Success: false, Error: err.Error()}, nil
	}
	clean := s.rules.Sanitize(prompt)

	usage, err := checkQuota(s.store, userID, s.limits, s.now())
	if err != nil {
		if errors.Is(err, apperr.ErrRateLimit) {
			limits := s.limits
			return &GenerateResult{
				Success: false,
				Error:   "generation limit reached",
				Usage:   &usage,
				Limits:  &limits,
			}, apperr.ErrRateLimit
		}
		return nil, err
	}

	raw, err := s.provider.GenerateLoopJSON(ctx, clean)
	if err != nil {
		s.logger.Error().Str("user_id", userID).Err(err).Msg("provider call failed")
		return &GenerateResult{Success: false, Error: "generation service unavailable"}, nil
	}

	gl, err := ParseGeneratedLoop(raw)
	if err != nil {
		s.logger.Warn().Str("user_id", userID).Err(err).Msg("rejecting malformed generation")
		return &GenerateResult{Success: false, Error: fmt.Sprintf("could not understand the generated loop: %v", err)}, nil
	}

	loop, tasks, err := s.materialize(userID, gl)
	if err != nil {
		return nil, err
	}

	if err := s.store.RecordGeneration(uuid.NewString(), userID, clean, loop.ID); err != nil {
		s.logger.Warn().Str("loop_id", loop.ID).Err(err).Msg("recording generation failed")
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("loop_id", loop.ID).
		Int("tasks", len(tasks)).
		Msg("loop generated")

	return &GenerateResult{Success: true, Loop: loop, Tasks: tasks, Usage: &usage}, nil
}

// materialize persists the validated generation as a loop with tasks. A task
// insert failure rolls the loop back so no half-written loop survives.
func (s *Service) materialize(userID string, gl *GeneratedLoop) (*models.LoopRow, []models.TaskRow, error) {
	now := s.now().UnixMilli()

	loop := &models.LoopRow{
		ID:          uuid.NewString(),
		OwnerID:     userID,
		Title:       gl.Name,
		Description: gl.Description,
		Color:       gl.Color,
		ResetRule:   models.ResetRule(gl.ResetRule),
		NextResetAt: streak.NextResetAt(models.ResetRule(gl.ResetRule), s.now()),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SaveLoop(loop); err != nil {
		return nil, nil, fmt.Errorf("saving generated loop: %w", err)
	}

	tasks := make([]models.TaskRow, 0, len(gl.Tasks))
	for i, gt := range gl.Tasks {
		task := models.TaskRow{
			ID:          uuid.NewString(),
			LoopID:      loop.ID,
			Description: gt.Description,
			Notes:       gt.Notes,
			Status:      models.TaskPending,
			IsRecurring: gt.IsRecurring,
			IsOneTime:   !gt.IsRecurring,
			Priority:    len(gl.Tasks) - i,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.SaveTask(&task); err != nil {
			if delErr := s.store.DeleteLoop(loop.ID); delErr != nil {
				s.logger.Error().Str("loop_id", loop.ID).Err(delErr).Msg("rollback of generated loop failed")
			}
			return nil, nil, fmt.Errorf("saving generated task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return loop, tasks, nil
}
