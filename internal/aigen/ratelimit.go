package aigen

import (
	"fmt"
	"time"

	"github.com/myerscreative/doloop-sub000/internal/apperr"
)

// Limits describes the per-user generation quotas. Zero disables a window.
type Limits struct {
	Hourly  int `json:"hourly"`
	Daily   int `json:"daily"`
	Monthly int `json:"monthly"`
}

// Usage reports consumption against each quota window. It is returned to
// the caller alongside a rate limit rejection so clients can show retry
// guidance.
type Usage struct {
	Hourly  int `json:"hourly"`
	Daily   int `json:"daily"`
	Monthly int `json:"monthly"`
}

type generationCounter interface {
	CountGenerationsSince(userID string, since time.Time) (int, error)
}

// checkQuota counts recorded generations per window and returns
// apperr.ErrRateLimit when any window is exhausted.
func checkQuota(counter generationCounter, userID string, limits Limits, now time.Time) (Usage, error) {
	var usage Usage

	windows := []struct {
		name  string
		since time.Time
		limit int
		dst   *int
	}{
		{"hourly", now.Add(-time.Hour), limits.Hourly, &usage.Hourly},
		{"daily", now.Add(-24 * time.Hour), limits.Daily, &usage.Daily},
		{"monthly", now.Add(-30 * 24 * time.Hour), limits.Monthly, &usage.Monthly},
	}

	for _, w := range windows {
		if w.limit <= 0 {
			continue
		}
		n, err := counter.CountGenerationsSince(userID, w.since)
		if err != nil {
			return usage, fmt.Errorf("counting %s generations: %w", w.name, err)
		}
		*w.dst = n
		if n >= w.limit {
			return usage, fmt.Errorf("%s generation limit reached (%d/%d): %w", w.name, n, w.limit, apperr.ErrRateLimit)
		}
	}
	return usage, nil
}
