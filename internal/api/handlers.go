package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/myerscreative/doloop-sub000/internal/aigen"
	"github.com/myerscreative/doloop-sub000/internal/apperr"
	"github.com/myerscreative/doloop-sub000/internal/appstate"
	"github.com/myerscreative/doloop-sub000/internal/health"
	"github.com/myerscreative/doloop-sub000/internal/metrics"
	"github.com/myerscreative/doloop-sub000/internal/models"
	"github.com/myerscreative/doloop-sub000/internal/store"
	"github.com/myerscreative/doloop-sub000/internal/streak"
	"github.com/myerscreative/doloop-sub000/internal/templates"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	store     *store.Store
	streaks   *streak.Service
	templates *templates.Service
	generator *aigen.Service // nil when AI generation is not configured
	sessions  *appstate.Manager
	checker   *health.Checker
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	startTime time.Time
}

// NewHandlers creates a new Handlers instance. generator may be nil.
func NewHandlers(
	st *store.Store,
	streaks *streak.Service,
	tpls *templates.Service,
	generator *aigen.Service,
	sessions *appstate.Manager,
	checker *health.Checker,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		store:     st,
		streaks:   streaks,
		templates: tpls,
		generator: generator,
		sessions:  sessions,
		checker:   checker,
		metrics:   m,
		logger:    logger.With().Str("component", "handlers").Logger(),
		startTime: time.Now(),
	}
}

// ---- loops ----

// CreateLoop handles POST /api/v1/loops.
func (h *Handlers) CreateLoop(c *fiber.Ctx) error {
	var req CreateLoopRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	if req.Title == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_title", "Bad Request",
			"Loop title is required")
	}
	if !models.ValidResetRule(req.ResetRule) {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_reset_rule", "Bad Request",
			"Unknown reset rule: "+req.ResetRule)
	}

	now := time.Now()
	loop := &models.LoopRow{
		ID:          uuid.NewString(),
		OwnerID:     userID(c),
		Title:       req.Title,
		Description: req.Description,
		Color:       req.Color,
		ResetRule:   models.ResetRule(req.ResetRule),
		NextResetAt: streak.NextResetAt(models.ResetRule(req.ResetRule), now),
		CreatedAt:   now.UnixMilli(),
		UpdatedAt:   now.UnixMilli(),
	}
	if err := h.store.SaveLoop(loop); err != nil {
		return h.storeError(c, err, "saving loop")
	}

	for i, tr := range req.Tasks {
		task := &models.TaskRow{
			ID:          uuid.NewString(),
			LoopID:      loop.ID,
			Description: tr.Description,
			Notes:       tr.Notes,
			Status:      models.TaskPending,
			IsRecurring: tr.IsRecurring,
			IsOneTime:   !tr.IsRecurring,
			Priority:    len(req.Tasks) - i,
			DueDate:     tr.DueDate,
			CreatedAt:   now.UnixMilli(),
			UpdatedAt:   now.UnixMilli(),
		}
		if err := h.store.SaveTask(task); err != nil {
			return h.storeError(c, err, "saving loop task")
		}
	}

	h.metrics.LoopsCreated.Inc()
	return c.Status(fiber.StatusCreated).JSON(loop)
}

// ListLoops handles GET /api/v1/loops.
func (h *Handlers) ListLoops(c *fiber.Ctx) error {
	loops, err := h.store.ListLoops(userID(c))
	if err != nil {
		return h.storeError(c, err, "listing loops")
	}
	if loops == nil {
		loops = []*models.LoopRow{}
	}
	return c.JSON(fiber.Map{"loops": loops, "total": len(loops)})
}

// GetLoop handles GET /api/v1/loops/:id.
func (h *Handlers) GetLoop(c *fiber.Ctx) error {
	loop, err := h.loadOwnedLoop(c)
	if err != nil {
		return err
	}

	tasks, err := h.store.ListTasks(loop.ID)
	if err != nil {
		return h.storeError(c, err, "listing tasks")
	}
	if tasks == nil {
		tasks = []*models.TaskRow{}
	}
	total, done, err := h.store.CountTasks(loop.ID)
	if err != nil {
		return h.storeError(c, err, "counting tasks")
	}

	return c.JSON(LoopResponse{Loop: loop, Tasks: tasks, Total: total, Completed: done})
}

// UpdateLoop handles PATCH /api/v1/loops/:id.
func (h *Handlers) UpdateLoop(c *fiber.Ctx) error {
	loop, err := h.loadOwnedLoop(c)
	if err != nil {
		return err
	}

	var req UpdateLoopRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	if req.Title != nil {
		if *req.Title == "" {
			return problemResponse(c, fiber.StatusBadRequest,
				"missing_title", "Bad Request",
				"Loop title must not be empty")
		}
		loop.Title = *req.Title
	}
	if req.Description != nil {
		loop.Description = *req.Description
	}
	if req.Color != nil {
		loop.Color = *req.Color
	}
	if req.ResetRule != nil {
		if !models.ValidResetRule(*req.ResetRule) {
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_reset_rule", "Bad Request",
				"Unknown reset rule: "+*req.ResetRule)
		}
		loop.ResetRule = models.ResetRule(*req.ResetRule)
		loop.NextResetAt = streak.NextResetAt(loop.ResetRule, time.Now())
	}
	loop.UpdatedAt = time.Now().UnixMilli()

	if err := h.store.SaveLoop(loop); err != nil {
		return h.storeError(c, err, "updating loop")
	}
	return c.JSON(loop)
}

// DeleteLoop handles DELETE /api/v1/loops/:id.
func (h *Handlers) DeleteLoop(c *fiber.Ctx) error {
	loop, err := h.loadOwnedLoop(c)
	if err != nil {
		return err
	}
	if err := h.store.DeleteLoop(loop.ID); err != nil {
		return h.storeError(c, err, "deleting loop")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Reloop handles POST /api/v1/loops/:id/reloop.
func (h *Handlers) Reloop(c *fiber.Ctx) error {
	loop, err := h.loadOwnedLoop(c)
	if err != nil {
		return err
	}

	var req ReloopRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_body", "Bad Request",
				"Invalid request body: "+err.Error())
		}
	}

	outcome, err := h.streaks.RequestReloop(c.Context(), loop.ID, req.Force)
	if err != nil {
		return h.storeError(c, err, "relooping")
	}

	if outcome.Executed {
		h.metrics.RecordReloop(string(loop.ResetRule), "executed")
	} else {
		h.metrics.RecordReloop(string(loop.ResetRule), "skipped")
	}
	return c.JSON(outcome)
}

// ResetLoop handles POST /api/v1/loops/:id/reset. Unlike reloop it only
// clears completion state: nothing is archived or removed and the streak is
// untouched.
func (h *Handlers) ResetLoop(c *fiber.Ctx) error {
	loop, err := h.loadOwnedLoop(c)
	if err != nil {
		return err
	}
	if err := h.store.ResetLoopTasks(loop.ID); err != nil {
		return h.storeError(c, err, "resetting loop")
	}
	return c.JSON(fiber.Map{"reset": true})
}

// ---- tasks ----

// AddTask handles POST /api/v1/loops/:id/tasks.
func (h *Handlers) AddTask(c *fiber.Ctx) error {
	loop, err := h.loadOwnedLoop(c)
	if err != nil {
		return err
	}

	var req CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.Description == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_description", "Bad Request",
			"Task description is required")
	}

	now := time.Now().UnixMilli()
	task := &models.TaskRow{
		ID:          uuid.NewString(),
		LoopID:      loop.ID,
		Description: req.Description,
		Notes:       req.Notes,
		Status:      models.TaskPending,
		IsRecurring: req.IsRecurring,
		IsOneTime:   !req.IsRecurring,
		DueDate:     req.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.store.SaveTask(task); err != nil {
		return h.storeError(c, err, "saving task")
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

// ToggleTask handles POST /api/v1/tasks/:id/toggle.
func (h *Handlers) ToggleTask(c *fiber.Ctx) error {
	task, err := h.store.GetTask(c.Params("id"))
	if err != nil {
		return h.storeError(c, err, "loading task")
	}
	if task == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"task_not_found", "Not Found",
			"No task with id "+c.Params("id"))
	}
	if err := h.checkLoopOwner(c, task.LoopID); err != nil {
		return err
	}

	var req ToggleTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	status := models.TaskPending
	if req.Done {
		status = models.TaskDone
	}
	if err := h.store.UpdateTaskStatus(task.ID, status); err != nil {
		return h.storeError(c, err, "updating task status")
	}
	task.Status = status
	return c.JSON(task)
}

// DeleteTask handles DELETE /api/v1/tasks/:id.
func (h *Handlers) DeleteTask(c *fiber.Ctx) error {
	task, err := h.store.GetTask(c.Params("id"))
	if err != nil {
		return h.storeError(c, err, "loading task")
	}
	if task == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"task_not_found", "Not Found",
			"No task with id "+c.Params("id"))
	}
	if err := h.checkLoopOwner(c, task.LoopID); err != nil {
		return err
	}
	if err := h.store.DeleteTask(task.ID); err != nil {
		return h.storeError(c, err, "deleting task")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ---- streak & profile ----

// GetStreak handles GET /api/v1/streak.
func (h *Handlers) GetStreak(c *fiber.Ctx) error {
	us, err := h.store.GetUserStreak(userID(c))
	if err != nil {
		return h.storeError(c, err, "loading streak")
	}
	if us == nil {
		us = &models.UserStreak{UserID: userID(c)}
	}
	return c.JSON(us)
}

// GetProfile handles GET /api/v1/profile.
func (h *Handlers) GetProfile(c *fiber.Ctx) error {
	s, err := h.sessions.Init(userID(c))
	if err != nil {
		return h.storeError(c, err, "loading session")
	}
	return c.JSON(fiber.Map{
		"user_id":    s.UserID,
		"is_admin":   s.IsAdmin,
		"theme_vibe": s.ThemeVibe,
	})
}

// SetThemeVibe handles PUT /api/v1/profile/theme_vibe.
func (h *Handlers) SetThemeVibe(c *fiber.Ctx) error {
	var req ThemeVibeRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.ThemeVibe == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_theme_vibe", "Bad Request",
			"theme_vibe is required")
	}
	if err := h.sessions.SetThemeVibe(userID(c), req.ThemeVibe); err != nil {
		return h.storeError(c, err, "saving theme vibe")
	}
	return c.JSON(fiber.Map{"theme_vibe": req.ThemeVibe})
}

// ---- probes ----

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "uptime": time.Since(h.startTime).String()})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	if !h.checker.IsReady(c.Context()) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not_ready",
		})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

// ---- helpers ----

// loadOwnedLoop resolves the :id param to a loop the caller may act on.
// The returned error, when non-nil, is already a written problem response.
func (h *Handlers) loadOwnedLoop(c *fiber.Ctx) (*models.LoopRow, error) {
	loop, err := h.store.GetLoop(c.Params("id"))
	if err != nil {
		return nil, h.storeError(c, err, "loading loop")
	}
	if loop == nil {
		return nil, problemResponse(c, fiber.StatusNotFound,
			"loop_not_found", "Not Found",
			"No loop with id "+c.Params("id"))
	}
	if admin, _ := c.Locals(localsAdmin).(bool); !admin && loop.OwnerID != userID(c) {
		return nil, problemResponse(c, fiber.StatusForbidden,
			"not_owner", "Forbidden",
			"Loop belongs to another user")
	}
	return loop, nil
}

func (h *Handlers) checkLoopOwner(c *fiber.Ctx, loopID string) error {
	loop, err := h.store.GetLoop(loopID)
	if err != nil {
		return h.storeError(c, err, "loading loop")
	}
	if loop == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"loop_not_found", "Not Found",
			"No loop with id "+loopID)
	}
	if admin, _ := c.Locals(localsAdmin).(bool); !admin && loop.OwnerID != userID(c) {
		return problemResponse(c, fiber.StatusForbidden,
			"not_owner", "Forbidden",
			"Loop belongs to another user")
	}
	return nil
}

// storeError maps service errors onto problem responses.
func (h *Handlers) storeError(c *fiber.Ctx, err error, action string) error {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found", err.Error())
	case errors.Is(err, apperr.ErrInvalidInput):
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_input", "Bad Request", err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		return problemResponse(c, fiber.StatusForbidden,
			"forbidden", "Forbidden", err.Error())
	}

	h.logger.Error().Err(err).Str("action", action).Msg("store operation failed")
	h.metrics.RecordError("api", "store")
	return problemResponse(c, fiber.StatusInternalServerError,
		"store_error", "Internal Server Error",
		"The operation could not be completed")
}
