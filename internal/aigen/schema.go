package aigen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/myerscreative/doloop-sub000/internal/models"
)

// GeneratedLoop is the JSON shape the completion API is instructed to emit.
type GeneratedLoop struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Color       string          `json:"color"`
	ResetRule   string          `json:"resetRule"`
	Tasks       []GeneratedTask `json:"tasks"`
}

// GeneratedTask is one task of a generated loop.
type GeneratedTask struct {
	Description string `json:"description"`
	Notes       string `json:"notes,omitempty"`
	IsRecurring bool   `json:"isRecurring"`
}

// knownColors are the palette values the app renders.
var knownColors = map[string]bool{
	"teal": true, "coral": true, "indigo": true, "gold": true, "sage": true,
}

const maxGeneratedTasks = 25

// ParseGeneratedLoop decodes and validates the model's output. The model is
// an uncontrolled source, so the shape is checked structurally before
// anything touches the store.
func ParseGeneratedLoop(raw string) (*GeneratedLoop, error) {
	raw = stripCodeFences(raw)

	var gl GeneratedLoop
	if err := json.Unmarshal([]byte(raw), &gl); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}

	gl.Name = strings.TrimSpace(gl.Name)
	if gl.Name == "" {
		return nil, fmt.Errorf("response is missing a loop name")
	}
	if !models.ValidResetRule(gl.ResetRule) {
		return nil, fmt.Errorf("response has invalid resetRule %q", gl.ResetRule)
	}
	if len(gl.Tasks) == 0 {
		return nil, fmt.Errorf("response contains no tasks")
	}
	if len(gl.Tasks) > maxGeneratedTasks {
		gl.Tasks = gl.Tasks[:maxGeneratedTasks]
	}

	kept := gl.Tasks[:0]
	for _, t := range gl.Tasks {
		t.Description = strings.TrimSpace(t.Description)
		if t.Description == "" {
			continue
		}
		kept = append(kept, t)
	}
	gl.Tasks = kept
	if len(gl.Tasks) == 0 {
		return nil, fmt.Errorf("response tasks are all empty")
	}

	if !knownColors[gl.Color] {
		gl.Color = "teal"
	}
	return &gl, nil
}

// stripCodeFences removes a surrounding markdown code fence if the model
// ignored the no-fences instruction.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
