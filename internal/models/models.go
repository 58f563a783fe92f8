// Package models defines the core DoLoop data types shared between the
// local persistence adapter and the remote (hosted) store.
package models

import "time"

// LoopType categorizes a loop for filtering.
type LoopType string

const (
	LoopTypePersonal LoopType = "personal"
	LoopTypeWork     LoopType = "work"
	LoopTypeDaily    LoopType = "daily"
	LoopTypeShared   LoopType = "shared"
)

// ResetRule controls when a loop becomes eligible for reloop.
type ResetRule string

const (
	ResetManual ResetRule = "manual"
	ResetDaily  ResetRule = "daily"
	ResetWeekly ResetRule = "weekly"
)

// ValidResetRule reports whether s is a known reset rule.
func ValidResetRule(s string) bool {
	switch ResetRule(s) {
	case ResetManual, ResetDaily, ResetWeekly:
		return true
	}
	return false
}

// ValidLoopType reports whether s is a known loop type.
func ValidLoopType(s string) bool {
	switch LoopType(s) {
	case LoopTypePersonal, LoopTypeWork, LoopTypeDaily, LoopTypeShared:
		return true
	}
	return false
}

// LoopItem is a single checklist entry within a loop.
type LoopItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Completed   bool       `json:"completed"`
	Order       int        `json:"order"`
	IsRecurring bool       `json:"isRecurring"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	SubTasks    []SubTask  `json:"subTasks,omitempty"`
}

// SubTask is a nested checklist entry under a loop item.
type SubTask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Loop is a named, colored, recurring checklist.
type Loop struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Type            LoopType   `json:"type"`
	Color           string     `json:"color"`
	Favorite        bool       `json:"favorite"`
	Items           []LoopItem `json:"items"`
	TotalTasks      int        `json:"totalTasks"`
	CompletedTasks  int        `json:"completedTasks"`
	CurrentStreak   int        `json:"currentStreak"`
	LongestStreak   int        `json:"longestStreak"`
	CompletionDates []string   `json:"completionDates,omitempty"` // YYYY-MM-DD history
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	LastCompletedAt *time.Time `json:"lastCompletedAt,omitempty"`
}

// FolderFilter is the saved-filter kind a library folder applies over loops.
type FolderFilter string

const (
	FilterAll       FolderFilter = "all"
	FilterFavorites FolderFilter = "favorites"
	FilterPersonal  FolderFilter = "personal"
	FilterWork      FolderFilter = "work"
	FilterDaily     FolderFilter = "daily"
	FilterShared    FolderFilter = "shared"
)

// LibraryFolder is a saved filter over the loop set. Folders do not own
// loops.
type LibraryFolder struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Color      string       `json:"color"`
	Order      int          `json:"order"`
	IsDefault  bool         `json:"isDefault"`
	FilterType FolderFilter `json:"filterType,omitempty"`
}

// Matches reports whether the loop belongs in the folder's derived view.
func (f LibraryFolder) Matches(l Loop) bool {
	switch f.FilterType {
	case FilterFavorites:
		return l.Favorite
	case FilterPersonal:
		return l.Type == LoopTypePersonal
	case FilterWork:
		return l.Type == LoopTypeWork
	case FilterDaily:
		return l.Type == LoopTypeDaily
	case FilterShared:
		return l.Type == LoopTypeShared
	default:
		return true
	}
}

// TaskStatus is the remote-variant task state.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskDone    TaskStatus = "done"
)

// LoopRow is the remote-variant loop record.
type LoopRow struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color"`
	ResetRule   ResetRule `json:"reset_rule"`
	NextResetAt int64     `json:"next_reset_at"` // unix millis; far-future sentinel for manual
	CreatedAt   int64     `json:"created_at"`
	UpdatedAt   int64     `json:"updated_at"`
}

// TaskRow is the remote-variant task record.
type TaskRow struct {
	ID          string     `json:"id"`
	LoopID      string     `json:"loop_id"`
	Description string     `json:"description"`
	Notes       string     `json:"notes,omitempty"`
	Status      TaskStatus `json:"status"`
	IsRecurring bool       `json:"is_recurring"`
	IsOneTime   bool       `json:"is_one_time"`
	Priority    int        `json:"priority"`
	DueDate     *int64     `json:"due_date,omitempty"`
	ReminderAt  *int64     `json:"reminder_at,omitempty"`
	CreatedAt   int64      `json:"created_at"`
	UpdatedAt   int64      `json:"updated_at"`
}

// UserStreak is the single global per-user streak row, aggregated across all
// of the user's daily loops.
type UserStreak struct {
	UserID            string `json:"user_id"`
	CurrentStreak     int    `json:"current_streak"`
	LongestStreak     int    `json:"longest_streak"`
	LastCompletedDate string `json:"last_completed_date"` // YYYY-MM-DD, empty if never
}

// TemplateCreator authors reusable loop templates.
type TemplateCreator struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Bio       string `json:"bio,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Verified  bool   `json:"verified"`
	CreatedAt int64  `json:"created_at"`
}

// LoopTemplate is a creator-authored, reusable loop definition.
type LoopTemplate struct {
	ID          string    `json:"id"`
	CreatorID   string    `json:"creator_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color"`
	Category    string    `json:"category,omitempty"`
	ResetRule   ResetRule `json:"reset_rule"`
	Published   bool      `json:"published"`
	UseCount    int       `json:"use_count"`
	CreatedAt   int64     `json:"created_at"`
	UpdatedAt   int64     `json:"updated_at"`
}

// TemplateTask is one task of a loop template.
type TemplateTask struct {
	ID          string `json:"id"`
	TemplateID  string `json:"template_id"`
	Description string `json:"description"`
	Notes       string `json:"notes,omitempty"`
	IsRecurring bool   `json:"is_recurring"`
	Order       int    `json:"order"`
}

// TemplateReview is a user review of a template.
type TemplateReview struct {
	ID         string `json:"id"`
	TemplateID string `json:"template_id"`
	UserID     string `json:"user_id"`
	Rating     int    `json:"rating"` // 1..5
	Comment    string `json:"comment,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// UserProfile carries back-office attributes of a user.
type UserProfile struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email,omitempty"`
	IsAdmin   bool   `json:"is_admin"`
	ThemeVibe string `json:"theme_vibe,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// RecountLoop recomputes the aggregate counters from the item list. Every
// mutation of Items must be followed by a recount so CompletedTasks never
// drifts from the actual completed count.
func RecountLoop(l *Loop) {
	l.TotalTasks = len(l.Items)
	completed := 0
	for _, it := range l.Items {
		if it.Completed {
			completed++
		}
	}
	l.CompletedTasks = completed
}
