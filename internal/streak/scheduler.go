// Package streak implements the reset scheduler for remote loops and the
// global per-user daily streak.
package streak

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/myerscreative/doloop-sub000/internal/apperr"
	"github.com/myerscreative/doloop-sub000/internal/models"
	"github.com/myerscreative/doloop-sub000/internal/store"
)

// ManualResetSentinel is the far-future next_reset_at for manual loops:
// they only reset on explicit user action.
var ManualResetSentinel = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// NextResetAt computes the next reset timestamp for a rule.
func NextResetAt(rule models.ResetRule, now time.Time) int64 {
	switch rule {
	case models.ResetDaily:
		return now.Add(24 * time.Hour).UnixMilli()
	case models.ResetWeekly:
		return now.Add(7 * 24 * time.Hour).UnixMilli()
	default:
		return ManualResetSentinel
	}
}

// ReloopOutcome reports what a reloop request did.
type ReloopOutcome struct {
	Executed      bool   `json:"executed"`
	Reason        string `json:"reason,omitempty"` // set when not executed
	NextResetAt   int64  `json:"next_reset_at,omitempty"`
	ArchivedTasks int    `json:"archived_tasks"`
	StreakUpdated bool   `json:"streak_updated"`
}

// Service coordinates reloop requests against the remote store.
type Service struct {
	store  *store.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a reloop service.
func NewService(s *store.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  s,
		logger: logger.With().Str("component", "streak").Logger(),
		now:    time.Now,
	}
}

// RequestReloop executes a loop reset if the loop is eligible. Manual loops
// are always eligible; daily/weekly loops only once now has passed
// next_reset_at, unless force is set (the long-press override). An
// ineligible request reports "not yet eligible" and touches nothing.
func (s *Service) RequestReloop(ctx context.Context, loopID string, force bool) (*ReloopOutcome, error) {
	l, err := s.store.GetLoop(loopID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("loop %s: %w", loopID, apperr.ErrNotFound)
	}

	now := s.now()
	if l.ResetRule != models.ResetManual && !force && now.UnixMilli() < l.NextResetAt {
		return &ReloopOutcome{
			Executed:    false,
			Reason:      "not yet eligible",
			NextResetAt: l.NextResetAt,
		}, nil
	}

	// Completion must be read before the reset clears it.
	total, done, err := s.store.CountTasks(loopID)
	if err != nil {
		return nil, err
	}
	wasComplete := total > 0 && done == total

	archived, err := s.store.ArchiveDoneOneTimeTasks(loopID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.DeleteDueOneTimeTasks(loopID, now.UnixMilli()); err != nil {
		return nil, err
	}
	if err := s.store.ResetLoopTasks(loopID); err != nil {
		return nil, err
	}

	next := NextResetAt(l.ResetRule, now)
	if err := s.store.UpdateLoopNextReset(loopID, next); err != nil {
		return nil, err
	}

	outcome := &ReloopOutcome{
		Executed:      true,
		NextResetAt:   next,
		ArchivedTasks: archived,
	}

	if l.ResetRule == models.ResetDaily && wasComplete {
		updated, err := s.updateDailyStreak(ctx, l.OwnerID, loopID, now)
		if err != nil {
			// The reset itself succeeded; streak bookkeeping failure is
			// logged and surfaced through the outcome, not as a request
			// failure.
			s.logger.Error().Err(err).Str("user", l.OwnerID).Msg("streak update failed")
		} else {
			outcome.StreakUpdated = updated
		}
	}

	s.logger.Info().
		Str("loop", loopID).
		Str("rule", string(l.ResetRule)).
		Bool("force", force).
		Int("archived", archived).
		Msg("loop relooped")

	return outcome, nil
}

// updateDailyStreak advances the user's global streak when every daily loop
// is complete for the day. The loop that triggered the update has just been
// reset, so it is excluded from the completion scan; its own completion was
// the precondition for getting here.
//
// This is a read-then-write sequence with no transaction. Two loops
// finishing "last" at the same instant can both read the same prior streak,
// matching the source behavior.
func (s *Service) updateDailyStreak(ctx context.Context, userID, triggerLoopID string, now time.Time) (bool, error) {
	daily, err := s.store.ListDailyLoops(userID)
	if err != nil {
		return false, err
	}
	for _, l := range daily {
		if l.ID == triggerLoopID {
			continue
		}
		total, done, err := s.store.CountTasks(l.ID)
		if err != nil {
			return false, err
		}
		if total > 0 && done < total {
			return false, nil // another daily loop is still incomplete
		}
	}

	today := now.Format("2006-01-02")
	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")

	us, err := s.store.GetUserStreak(userID)
	if err != nil {
		return false, err
	}
	if us == nil {
		us = &models.UserStreak{UserID: userID}
	}

	switch us.LastCompletedDate {
	case today:
		return false, nil // already counted today
	case yesterday:
		us.CurrentStreak++
	default:
		us.CurrentStreak = 1
	}
	us.LastCompletedDate = today
	if us.CurrentStreak > us.LongestStreak {
		us.LongestStreak = us.CurrentStreak
	}

	if err := s.store.SaveUserStreak(us); err != nil {
		return false, err
	}

	s.logger.Info().
		Str("user", userID).
		Int("current", us.CurrentStreak).
		Int("longest", us.LongestStreak).
		Msg("daily streak updated")
	return true, nil
}
