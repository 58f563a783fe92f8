package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/myerscreative/doloop-sub000/internal/models"
	"github.com/myerscreative/doloop-sub000/internal/templates"
)

// ProblemDetail is an RFC 7807 problem response body.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// problemResponse writes an RFC 7807 Problem Detail error response.
func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}

// CreateLoopRequest is the body of POST /api/v1/loops.
type CreateLoopRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Color       string              `json:"color"`
	ResetRule   string              `json:"reset_rule"`
	Tasks       []CreateTaskRequest `json:"tasks,omitempty"`
}

// CreateTaskRequest is one task in a loop create or POST .../tasks body.
type CreateTaskRequest struct {
	Description string `json:"description"`
	Notes       string `json:"notes,omitempty"`
	IsRecurring bool   `json:"is_recurring"`
	DueDate     *int64 `json:"due_date,omitempty"`
}

// UpdateLoopRequest is the body of PATCH /api/v1/loops/:id. Nil fields are
// left unchanged.
type UpdateLoopRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
	ResetRule   *string `json:"reset_rule,omitempty"`
}

// LoopResponse bundles a loop with its tasks and completion counters.
type LoopResponse struct {
	Loop      *models.LoopRow   `json:"loop"`
	Tasks     []*models.TaskRow `json:"tasks"`
	Total     int               `json:"total_tasks"`
	Completed int               `json:"completed_tasks"`
}

// ReloopRequest is the body of POST /api/v1/loops/:id/reloop.
type ReloopRequest struct {
	Force bool `json:"force"`
}

// ToggleTaskRequest is the body of POST /api/v1/tasks/:id/toggle.
type ToggleTaskRequest struct {
	Done bool `json:"done"`
}

// CreateTemplateRequest is the body of POST /api/v1/templates.
type CreateTemplateRequest struct {
	CreatorID   string                      `json:"creator_id"`
	Name        string                      `json:"name"`
	Description string                      `json:"description,omitempty"`
	Color       string                      `json:"color"`
	Category    string                      `json:"category,omitempty"`
	ResetRule   string                      `json:"reset_rule"`
	Published   bool                        `json:"published"`
	Tasks       []templates.NewTemplateTask `json:"tasks"`
}

// ReviewRequest is the body of POST /api/v1/templates/:id/reviews.
type ReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// AffiliateClickRequest is the body of POST /api/v1/affiliate/track_affiliate_click.
type AffiliateClickRequest struct {
	CreatorID string `json:"creator_id"`
	RefCode   string `json:"ref_code"`
	VisitorID string `json:"visitor_id"`
}

// AffiliateConversionRequest is the body of POST /api/v1/affiliate/mark_affiliate_conversion.
type AffiliateConversionRequest struct {
	RefCode   string `json:"ref_code"`
	VisitorID string `json:"visitor_id"`
}

// GenerateRequest is the body of POST /functions/v1/generate_ai_loop.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	UserID string `json:"userId"`
}

// ThemeVibeRequest is the body of PUT /api/v1/profile/theme_vibe.
type ThemeVibeRequest struct {
	ThemeVibe string `json:"theme_vibe"`
}
