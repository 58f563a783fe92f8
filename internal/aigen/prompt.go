// Package aigen turns a free-text prompt into a materialized loop via a
// third-party completion API, with validation on both sides of the trust
// boundary.
package aigen

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/myerscreative/doloop-sub000/internal/apperr"
)

// MaxPromptLen is the longest accepted prompt, in runes.
const MaxPromptLen = 500

// defaultBlocklist rejects prompts that try to steer the model away from
// loop generation. Matching is case-insensitive substring.
var defaultBlocklist = []string{
	"ignore previous instructions",
	"ignore all previous",
	"system prompt",
	"jailbreak",
	"<script",
	"javascript:",
	"drop table",
}

// PromptRules validates and sanitizes generation prompts.
type PromptRules struct {
	blocklist []string
}

// NewPromptRules returns rules with the built-in block-list.
func NewPromptRules() *PromptRules {
	return &PromptRules{blocklist: append([]string(nil), defaultBlocklist...)}
}

// blocklistFile is the YAML shape of an external block-list extension.
type blocklistFile struct {
	Blocked []string `yaml:"blocked"`
}

// LoadBlocklist extends the rules with entries from a YAML file.
func (r *PromptRules) LoadBlocklist(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading blocklist: %w", err)
	}
	var f blocklistFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parsing blocklist: %w", err)
	}
	for _, entry := range f.Blocked {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			r.blocklist = append(r.blocklist, strings.ToLower(entry))
		}
	}
	return nil
}

// Validate checks a raw prompt. Returning nil means the prompt may be
// sanitized and submitted.
func (r *PromptRules) Validate(prompt string) error {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return apperr.NewValidationError("prompt", "must not be empty")
	}
	if len([]rune(trimmed)) > MaxPromptLen {
		return apperr.NewValidationError("prompt", fmt.Sprintf("must be at most %d characters", MaxPromptLen))
	}
	lower := strings.ToLower(trimmed)
	for _, blocked := range r.blocklist {
		if strings.Contains(lower, blocked) {
			return apperr.NewValidationError("prompt", "contains a blocked phrase")
		}
	}
	return nil
}

// Sanitize strips angle brackets and quote characters and truncates to the
// maximum length. Run after Validate.
func (r *PromptRules) Sanitize(prompt string) string {
	replacer := strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", "`", "")
	out := replacer.Replace(strings.TrimSpace(prompt))
	runes := []rune(out)
	if len(runes) > MaxPromptLen {
		out = string(runes[:MaxPromptLen])
	}
	return out
}
