package localstore

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/myerscreative/doloop-sub000/internal/models"
)

// Adapter reads and writes loop and folder collections through a KV store,
// handling date (de)serialization and defensive parsing of malformed
// entries.
type Adapter struct {
	kv     KV
	logger zerolog.Logger
	now    func() time.Time
}

// NewAdapter returns an adapter over the given KV store.
func NewAdapter(kv KV, logger zerolog.Logger) *Adapter {
	return &Adapter{
		kv:     kv,
		logger: logger.With().Str("component", "localstore").Logger(),
		now:    time.Now,
	}
}

// loopRecord is the wire shape of a stored loop. Date fields are ISO-8601
// strings and parsed leniently on read.
type loopRecord struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Type            string       `json:"type"`
	Color           string       `json:"color"`
	Favorite        bool         `json:"favorite"`
	Items           []itemRecord `json:"items"`
	TotalTasks      int          `json:"totalTasks"`
	CompletedTasks  int          `json:"completedTasks"`
	CurrentStreak   int          `json:"currentStreak"`
	LongestStreak   int          `json:"longestStreak"`
	CompletionDates []string     `json:"completionDates,omitempty"`
	CreatedAt       string       `json:"createdAt"`
	UpdatedAt       string       `json:"updatedAt"`
	LastCompletedAt string       `json:"lastCompletedAt,omitempty"`
}

type itemRecord struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Completed   bool             `json:"completed"`
	Order       int              `json:"order"`
	IsRecurring bool             `json:"isRecurring"`
	DueDate     string           `json:"dueDate,omitempty"`
	Assignee    string           `json:"assignee,omitempty"`
	Notes       string           `json:"notes,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	ImageURL    string           `json:"imageUrl,omitempty"`
	SubTasks    []models.SubTask `json:"subTasks,omitempty"`
}

// Loops returns every readable loop. A record that fails to decode is
// skipped so one corrupt entry cannot hide the valid ones; a corrupt
// collection blob degrades to an empty result.
func (a *Adapter) Loops() ([]models.Loop, error) {
	blob, ok, err := a.kv.Get(KeyLoops)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.Loop{}, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(blob, &raws); err != nil {
		a.logger.Error().Err(err).Msg("loop collection is not valid JSON, returning empty set")
		return []models.Loop{}, nil
	}

	loops := make([]models.Loop, 0, len(raws))
	for i, raw := range raws {
		var rec loopRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			a.logger.Warn().Err(err).Int("index", i).Msg("skipping malformed loop record")
			continue
		}
		if rec.ID == "" {
			a.logger.Warn().Int("index", i).Msg("skipping loop record without id")
			continue
		}
		loops = append(loops, a.decodeLoop(rec))
	}
	return loops, nil
}

// LoopByID returns the loop with the given id, or ok=false.
func (a *Adapter) LoopByID(id string) (models.Loop, bool, error) {
	loops, err := a.Loops()
	if err != nil {
		return models.Loop{}, false, err
	}
	for _, l := range loops {
		if l.ID == id {
			return l, true, nil
		}
	}
	return models.Loop{}, false, nil
}

// AddLoop appends the loop and rewrites the collection.
func (a *Adapter) AddLoop(l models.Loop) error {
	loops, err := a.Loops()
	if err != nil {
		return err
	}
	return a.writeLoops(append(loops, l))
}

// UpdateLoop replaces the stored loop with the same id. Unknown ids are a
// silent no-op, matching replace-by-id semantics.
func (a *Adapter) UpdateLoop(l models.Loop) error {
	loops, err := a.Loops()
	if err != nil {
		return err
	}
	for i := range loops {
		if loops[i].ID == l.ID {
			loops[i] = l
		}
	}
	return a.writeLoops(loops)
}

// DeleteLoop removes the loop with the given id.
func (a *Adapter) DeleteLoop(id string) error {
	loops, err := a.Loops()
	if err != nil {
		return err
	}
	kept := loops[:0]
	for _, l := range loops {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	return a.writeLoops(kept)
}

func (a *Adapter) writeLoops(loops []models.Loop) error {
	recs := make([]loopRecord, 0, len(loops))
	for _, l := range loops {
		recs = append(recs, encodeLoop(l))
	}
	blob, err := json.Marshal(recs)
	if err != nil {
		return err
	}
	return a.kv.Set(KeyLoops, blob)
}

// NavState returns the opaque navigation-state blob, if any.
func (a *Adapter) NavState() ([]byte, bool, error) {
	return a.kv.Get(KeyNavState)
}

// SetNavState replaces the navigation-state blob.
func (a *Adapter) SetNavState(blob []byte) error {
	return a.kv.Set(KeyNavState, blob)
}

func encodeLoop(l models.Loop) loopRecord {
	rec := loopRecord{
		ID:              l.ID,
		Title:           l.Title,
		Type:            string(l.Type),
		Color:           l.Color,
		Favorite:        l.Favorite,
		TotalTasks:      l.TotalTasks,
		CompletedTasks:  l.CompletedTasks,
		CurrentStreak:   l.CurrentStreak,
		LongestStreak:   l.LongestStreak,
		CompletionDates: l.CompletionDates,
		CreatedAt:       l.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:       l.UpdatedAt.Format(time.RFC3339Nano),
	}
	if l.LastCompletedAt != nil {
		rec.LastCompletedAt = l.LastCompletedAt.Format(time.RFC3339Nano)
	}
	rec.Items = make([]itemRecord, 0, len(l.Items))
	for _, it := range l.Items {
		ir := itemRecord{
			ID:          it.ID,
			Title:       it.Title,
			Completed:   it.Completed,
			Order:       it.Order,
			IsRecurring: it.IsRecurring,
			Assignee:    it.Assignee,
			Notes:       it.Notes,
			Tags:        it.Tags,
			ImageURL:    it.ImageURL,
			SubTasks:    it.SubTasks,
		}
		if it.DueDate != nil {
			ir.DueDate = it.DueDate.Format(time.RFC3339Nano)
		}
		rec.Items = append(rec.Items, ir)
	}
	return rec
}

// decodeLoop converts a wire record back to a Loop. An unparsable
// createdAt/updatedAt is replaced with the current time so an invalid date
// never reaches the caller; an unparsable lastCompletedAt or dueDate is
// dropped to absent.
func (a *Adapter) decodeLoop(rec loopRecord) models.Loop {
	now := a.now()

	l := models.Loop{
		ID:              rec.ID,
		Title:           rec.Title,
		Type:            models.LoopType(rec.Type),
		Color:           rec.Color,
		Favorite:        rec.Favorite,
		TotalTasks:      rec.TotalTasks,
		CompletedTasks:  rec.CompletedTasks,
		CurrentStreak:   rec.CurrentStreak,
		LongestStreak:   rec.LongestStreak,
		CompletionDates: rec.CompletionDates,
		CreatedAt:       parseTimeOr(rec.CreatedAt, now),
		UpdatedAt:       parseTimeOr(rec.UpdatedAt, now),
	}
	if t, ok := parseTime(rec.LastCompletedAt); ok {
		l.LastCompletedAt = &t
	}

	l.Items = make([]models.LoopItem, 0, len(rec.Items))
	for _, ir := range rec.Items {
		it := models.LoopItem{
			ID:          ir.ID,
			Title:       ir.Title,
			Completed:   ir.Completed,
			Order:       ir.Order,
			IsRecurring: ir.IsRecurring,
			Assignee:    ir.Assignee,
			Notes:       ir.Notes,
			Tags:        ir.Tags,
			ImageURL:    ir.ImageURL,
			SubTasks:    ir.SubTasks,
		}
		if t, ok := parseTime(ir.DueDate); ok {
			it.DueDate = &t
		}
		l.Items = append(l.Items, it)
	}
	return l
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseTimeOr(s string, fallback time.Time) time.Time {
	if t, ok := parseTime(s); ok {
		return t
	}
	return fallback
}
