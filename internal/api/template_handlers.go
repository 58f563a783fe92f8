package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/myerscreative/doloop-sub000/internal/apperr"
	"github.com/myerscreative/doloop-sub000/internal/models"
)

// ---- template creators ----

// ListCreators handles GET /api/v1/creators.
func (h *Handlers) ListCreators(c *fiber.Ctx) error {
	creators, err := h.store.ListCreators()
	if err != nil {
		return h.storeError(c, err, "listing creators")
	}
	if creators == nil {
		creators = []*models.TemplateCreator{}
	}
	return c.JSON(fiber.Map{"creators": creators})
}

// CreateCreator handles POST /api/v1/creators (admin).
func (h *Handlers) CreateCreator(c *fiber.Ctx) error {
	var creator models.TemplateCreator
	if err := c.BodyParser(&creator); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if creator.Name == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_name", "Bad Request",
			"Creator name is required")
	}
	if creator.ID == "" {
		creator.ID = uuid.NewString()
	}
	creator.CreatedAt = time.Now().UnixMilli()
	if err := h.store.SaveCreator(&creator); err != nil {
		return h.storeError(c, err, "saving creator")
	}
	return c.Status(fiber.StatusCreated).JSON(creator)
}

// DeleteCreator handles DELETE /api/v1/creators/:id (admin).
func (h *Handlers) DeleteCreator(c *fiber.Ctx) error {
	if err := h.store.DeleteCreator(c.Params("id")); err != nil {
		return h.storeError(c, err, "deleting creator")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ---- loop templates ----

// ListTemplates handles GET /api/v1/templates. Non-admins only see
// published templates.
func (h *Handlers) ListTemplates(c *fiber.Ctx) error {
	admin, _ := c.Locals(localsAdmin).(bool)
	publishedOnly := !admin || !c.QueryBool("all", false)

	tpls, err := h.store.ListTemplates(publishedOnly)
	if err != nil {
		return h.storeError(c, err, "listing templates")
	}
	if tpls == nil {
		tpls = []*models.LoopTemplate{}
	}
	return c.JSON(fiber.Map{"templates": tpls})
}

// GetTemplate handles GET /api/v1/templates/:id.
func (h *Handlers) GetTemplate(c *fiber.Ctx) error {
	tpl, err := h.store.GetTemplate(c.Params("id"))
	if err != nil {
		return h.storeError(c, err, "loading template")
	}
	if tpl == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"template_not_found", "Not Found",
			"No template with id "+c.Params("id"))
	}
	if admin, _ := c.Locals(localsAdmin).(bool); !tpl.Published && !admin {
		return problemResponse(c, fiber.StatusNotFound,
			"template_not_found", "Not Found",
			"No template with id "+c.Params("id"))
	}

	tasks, err := h.store.ListTemplateTasks(tpl.ID)
	if err != nil {
		return h.storeError(c, err, "listing template tasks")
	}
	if tasks == nil {
		tasks = []*models.TemplateTask{}
	}
	return c.JSON(fiber.Map{"template": tpl, "tasks": tasks})
}

// CreateTemplate handles POST /api/v1/templates (admin).
func (h *Handlers) CreateTemplate(c *fiber.Ctx) error {
	var req CreateTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	tpl := &models.LoopTemplate{
		CreatorID:   req.CreatorID,
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Category:    req.Category,
		ResetRule:   models.ResetRule(req.ResetRule),
		Published:   req.Published,
	}
	created, err := h.templates.CreateTemplate(tpl, req.Tasks)
	if err != nil {
		return h.storeError(c, err, "creating template")
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateTemplate handles PATCH /api/v1/templates/:id (admin).
func (h *Handlers) UpdateTemplate(c *fiber.Ctx) error {
	var tpl models.LoopTemplate
	if err := c.BodyParser(&tpl); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	tpl.ID = c.Params("id")

	updated, err := h.templates.UpdateTemplate(&tpl)
	if err != nil {
		return h.storeError(c, err, "updating template")
	}
	return c.JSON(updated)
}

// DeleteTemplate handles DELETE /api/v1/templates/:id (admin).
func (h *Handlers) DeleteTemplate(c *fiber.Ctx) error {
	if err := h.templates.DeleteTemplate(c.Params("id")); err != nil {
		return h.storeError(c, err, "deleting template")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UseTemplate handles POST /api/v1/templates/:id/use. Copies the template
// into a new loop owned by the caller.
func (h *Handlers) UseTemplate(c *fiber.Ctx) error {
	loop, err := h.templates.UseTemplate(c.Params("id"), userID(c))
	if err != nil {
		return h.storeError(c, err, "using template")
	}
	h.metrics.LoopsCreated.Inc()
	return c.Status(fiber.StatusCreated).JSON(loop)
}

// ---- reviews ----

// ListReviews handles GET /api/v1/templates/:id/reviews.
func (h *Handlers) ListReviews(c *fiber.Ctx) error {
	reviews, err := h.store.ListReviews(c.Params("id"))
	if err != nil {
		return h.storeError(c, err, "listing reviews")
	}
	if reviews == nil {
		reviews = []*models.TemplateReview{}
	}
	return c.JSON(fiber.Map{"reviews": reviews})
}

// AddReview handles POST /api/v1/templates/:id/reviews.
func (h *Handlers) AddReview(c *fiber.Ctx) error {
	var req ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	review := &models.TemplateReview{
		TemplateID: c.Params("id"),
		UserID:     userID(c),
		Rating:     req.Rating,
		Comment:    req.Comment,
	}
	created, err := h.templates.AddReview(review)
	if err != nil {
		return h.storeError(c, err, "adding review")
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// ---- analytics (admin) ----

// Dashboard handles GET /api/v1/analytics/dashboard.
func (h *Handlers) Dashboard(c *fiber.Ctx) error {
	stats, err := h.store.GetDashboardStats()
	if err != nil {
		return h.storeError(c, err, "loading dashboard stats")
	}
	return c.JSON(stats)
}

// TemplatePerformance handles GET /api/v1/analytics/templates.
func (h *Handlers) TemplatePerformance(c *fiber.Ctx) error {
	perf, err := h.store.GetTemplatePerformance()
	if err != nil {
		return h.storeError(c, err, "loading template performance")
	}
	return c.JSON(fiber.Map{"templates": perf})
}

// UserSummary handles GET /api/v1/analytics/users/:id.
func (h *Handlers) UserSummary(c *fiber.Ctx) error {
	summary, err := h.store.GetUserSummary(c.Params("id"))
	if err != nil {
		return h.storeError(c, err, "loading user summary")
	}
	return c.JSON(summary)
}

// ---- affiliates ----

// TrackAffiliateClick handles POST /api/v1/affiliate/track_affiliate_click.
func (h *Handlers) TrackAffiliateClick(c *fiber.Ctx) error {
	var req AffiliateClickRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.RefCode == "" || req.VisitorID == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_fields", "Bad Request",
			"ref_code and visitor_id are required")
	}
	if err := h.store.TrackAffiliateClick(uuid.NewString(), req.CreatorID, req.RefCode, req.VisitorID); err != nil {
		return h.storeError(c, err, "tracking affiliate click")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"tracked": true})
}

// MarkAffiliateConversion handles POST /api/v1/affiliate/mark_affiliate_conversion.
func (h *Handlers) MarkAffiliateConversion(c *fiber.Ctx) error {
	var req AffiliateConversionRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	converted, err := h.store.MarkAffiliateConversion(req.RefCode, req.VisitorID)
	if err != nil {
		return h.storeError(c, err, "marking affiliate conversion")
	}
	return c.JSON(fiber.Map{"converted": converted})
}

// AffiliateStats handles GET /api/v1/affiliate/stats/:creatorID (admin).
func (h *Handlers) AffiliateStats(c *fiber.Ctx) error {
	clicks, conversions, err := h.store.AffiliateStats(c.Params("creatorID"))
	if err != nil {
		return h.storeError(c, err, "loading affiliate stats")
	}
	return c.JSON(fiber.Map{"clicks": clicks, "conversions": conversions})
}

// ---- AI generation ----

// GenerateAILoop handles POST /functions/v1/generate_ai_loop.
func (h *Handlers) GenerateAILoop(c *fiber.Ctx) error {
	if h.generator == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"error":   "AI generation is not configured",
		})
	}

	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}

	// The token is authoritative for identity; the body field is only
	// accepted when auth is disabled.
	uid := userID(c)
	if uid == "" {
		uid = req.UserID
	}

	res, err := h.generator.Generate(c.Context(), uid, req.Prompt)
	switch {
	case errors.Is(err, apperr.ErrRateLimit):
		h.metrics.RecordGeneration("rate_limited")
		return c.Status(fiber.StatusTooManyRequests).JSON(res)
	case err != nil:
		h.logger.Error().Err(err).Msg("generation failed")
		h.metrics.RecordGeneration("error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "generation failed",
		})
	}

	// Soft failures keep the 200 envelope so clients branch on the
	// success flag, not the status code.
	if res.Success {
		h.metrics.RecordGeneration("success")
		h.metrics.LoopsCreated.Inc()
	} else {
		h.metrics.RecordGeneration("rejected")
	}
	return c.JSON(res)
}
