// Package loop implements the pure lifecycle transforms applied to a loop's
// checklist: reloop (scheduled reset) and reset (unconditional clear).
// Both return a new Loop value; the caller persists the result.
package loop

import (
	"time"

	"github.com/myerscreative/doloop-sub000/internal/models"
)

// Reloop resets a loop for its next cycle. Recurring items are retained and
// marked incomplete. One-time items are dropped when completed or past their
// due date; the rest are retained as-is. The streak counter advances and
// LastCompletedAt is stamped with now.
func Reloop(l models.Loop, now time.Time) models.Loop {
	out := clone(l)

	kept := make([]models.LoopItem, 0, len(out.Items))
	for _, it := range out.Items {
		if it.IsRecurring {
			it.Completed = false
			kept = append(kept, it)
			continue
		}
		if it.Completed {
			continue // completed one-time items are removed, not archived
		}
		if it.DueDate != nil && it.DueDate.Before(now) {
			continue // expired one-time items are removed too
		}
		kept = append(kept, it)
	}
	out.Items = kept

	models.RecountLoop(&out)
	out.CurrentStreak++
	if out.CurrentStreak > out.LongestStreak {
		out.LongestStreak = out.CurrentStreak
	}
	completedAt := now
	out.LastCompletedAt = &completedAt
	out.CompletionDates = append(out.CompletionDates, now.Format("2006-01-02"))
	out.UpdatedAt = now
	return out
}

// Reset marks every item incomplete without removing any item. Streak
// counters are untouched.
func Reset(l models.Loop, now time.Time) models.Loop {
	out := clone(l)
	for i := range out.Items {
		out.Items[i].Completed = false
	}
	models.RecountLoop(&out)
	out.UpdatedAt = now
	return out
}

// ToggleItem flips the completion flag of the item with the given id and
// recounts. Unknown ids leave the loop unchanged apart from the recount.
func ToggleItem(l models.Loop, itemID string, now time.Time) models.Loop {
	out := clone(l)
	for i := range out.Items {
		if out.Items[i].ID == itemID {
			out.Items[i].Completed = !out.Items[i].Completed
			out.UpdatedAt = now
			break
		}
	}
	models.RecountLoop(&out)
	return out
}

// IsComplete reports whether every item of the loop is completed. A loop
// with no items is not considered complete.
func IsComplete(l models.Loop) bool {
	if len(l.Items) == 0 {
		return false
	}
	for _, it := range l.Items {
		if !it.Completed {
			return false
		}
	}
	return true
}

// clone deep-copies the loop so transforms never mutate the caller's value.
func clone(l models.Loop) models.Loop {
	out := l
	out.Items = make([]models.LoopItem, len(l.Items))
	copy(out.Items, l.Items)
	for i, it := range l.Items {
		if it.DueDate != nil {
			d := *it.DueDate
			out.Items[i].DueDate = &d
		}
		if len(it.Tags) > 0 {
			out.Items[i].Tags = append([]string(nil), it.Tags...)
		}
		if len(it.SubTasks) > 0 {
			out.Items[i].SubTasks = append([]models.SubTask(nil), it.SubTasks...)
		}
	}
	if l.LastCompletedAt != nil {
		t := *l.LastCompletedAt
		out.LastCompletedAt = &t
	}
	if len(l.CompletionDates) > 0 {
		out.CompletionDates = append([]string(nil), l.CompletionDates...)
	}
	return out
}
