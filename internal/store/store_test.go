package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myerscreative/doloop-sub000/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "doloop-test.db")
	store, err := New(dbPath, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew_CreatesSchema(t *testing.T) {
	store := newTestStore(t)

	tables := []string{
		"loops", "tasks", "archived_tasks", "user_streaks", "user_profiles",
		"template_creators", "loop_templates", "template_tasks",
		"template_reviews", "user_template_usage", "affiliate_clicks",
		"ai_generations", "meta",
	}
	for _, table := range tables {
		var count int
		err := store.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
}

func TestLoop_CRUD(t *testing.T) {
	store := newTestStore(t)

	l := &models.LoopRow{
		ID:          "loop-1",
		OwnerID:     "user-1",
		Title:       "Morning",
		Color:       "teal",
		ResetRule:   models.ResetDaily,
		NextResetAt: time.Now().Add(24 * time.Hour).UnixMilli(),
	}
	require.NoError(t, store.SaveLoop(l))
	assert.Greater(t, l.CreatedAt, int64(0))

	got, err := store.GetLoop("loop-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Morning", got.Title)
	assert.Equal(t, models.ResetDaily, got.ResetRule)

	loops, err := store.ListLoops("user-1")
	require.NoError(t, err)
	assert.Len(t, loops, 1)

	require.NoError(t, store.DeleteLoop("loop-1"))
	got, err = store.GetLoop("loop-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Error(t, store.DeleteLoop("loop-1"))
}

func saveLoop(t *testing.T, store *Store, id, owner string, rule models.ResetRule) {
	t.Helper()
	require.NoError(t, store.SaveLoop(&models.LoopRow{
		ID: id, OwnerID: owner, Title: id, Color: "teal",
		ResetRule: rule, NextResetAt: time.Now().UnixMilli(),
	}))
}

func saveTask(t *testing.T, store *Store, id, loopID string, oneTime bool, status models.TaskStatus) {
	t.Helper()
	require.NoError(t, store.SaveTask(&models.TaskRow{
		ID: id, LoopID: loopID, Description: id,
		IsRecurring: !oneTime, IsOneTime: oneTime, Status: status,
	}))
}

func TestTask_CountAndReset(t *testing.T) {
	store := newTestStore(t)
	saveLoop(t, store, "loop-1", "user-1", models.ResetDaily)
	saveTask(t, store, "t1", "loop-1", false, models.TaskDone)
	saveTask(t, store, "t2", "loop-1", false, models.TaskPending)

	total, done, err := store.CountTasks("loop-1")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, done)

	require.NoError(t, store.ResetLoopTasks("loop-1"))
	_, done, err = store.CountTasks("loop-1")
	require.NoError(t, err)
	assert.Equal(t, 0, done)
}

func TestTask_ArchiveDoneOneTime(t *testing.T) {
	store := newTestStore(t)
	saveLoop(t, store, "loop-1", "user-1", models.ResetDaily)
	saveTask(t, store, "keep-recurring", "loop-1", false, models.TaskDone)
	saveTask(t, store, "archive-me", "loop-1", true, models.TaskDone)
	saveTask(t, store, "keep-pending", "loop-1", true, models.TaskPending)

	n, err := store.ArchiveDoneOneTimeTasks("loop-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tasks, err := store.ListTasks("loop-1")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	var archived int
	require.NoError(t, store.db.QueryRow(
		`SELECT COUNT(*) FROM archived_tasks WHERE loop_id = 'loop-1'`).Scan(&archived))
	assert.Equal(t, 1, archived)
}

func TestLoop_DeleteCascadesTasks(t *testing.T) {
	store := newTestStore(t)
	saveLoop(t, store, "loop-1", "user-1", models.ResetManual)
	saveTask(t, store, "t1", "loop-1", false, models.TaskPending)

	require.NoError(t, store.DeleteLoop("loop-1"))
	tasks, err := store.ListTasks("loop-1")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestListOverdueLoops(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	require.NoError(t, store.SaveLoop(&models.LoopRow{
		ID: "overdue", OwnerID: "u", Title: "o", Color: "teal",
		ResetRule: models.ResetDaily, NextResetAt: now.Add(-time.Hour).UnixMilli(),
	}))
	require.NoError(t, store.SaveLoop(&models.LoopRow{
		ID: "future", OwnerID: "u", Title: "f", Color: "teal",
		ResetRule: models.ResetDaily, NextResetAt: now.Add(time.Hour).UnixMilli(),
	}))
	require.NoError(t, store.SaveLoop(&models.LoopRow{
		ID: "manual", OwnerID: "u", Title: "m", Color: "teal",
		ResetRule: models.ResetManual, NextResetAt: 0,
	}))

	overdue, err := store.ListOverdueLoops(now.UnixMilli())
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "overdue", overdue[0].ID)
}

func TestUserStreak_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetUserStreak("user-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	us := &models.UserStreak{UserID: "user-1", CurrentStreak: 3, LongestStreak: 7, LastCompletedDate: "2026-08-30"}
	require.NoError(t, store.SaveUserStreak(us))

	got, err = store.GetUserStreak("user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.CurrentStreak)
	assert.Equal(t, "2026-08-30", got.LastCompletedDate)
}

func TestTemplates_CRUDAndUsage(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveCreator(&models.TemplateCreator{ID: "c1", Name: "Ana", Verified: true}))
	require.NoError(t, store.SaveTemplate(&models.LoopTemplate{
		ID: "tpl-1", CreatorID: "c1", Name: "Morning Routine", Color: "teal",
		ResetRule: models.ResetDaily, Published: true,
	}))
	require.NoError(t, store.SaveTemplateTask(&models.TemplateTask{
		ID: "tt-1", TemplateID: "tpl-1", Description: "Stretch", IsRecurring: true, Order: 0,
	}))

	tpl, err := store.GetTemplate("tpl-1")
	require.NoError(t, err)
	require.NotNil(t, tpl)

	tasks, err := store.ListTemplateTasks("tpl-1")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	require.NoError(t, store.IncrementTemplateUse("tpl-1"))
	tpl, err = store.GetTemplate("tpl-1")
	require.NoError(t, err)
	assert.Equal(t, 1, tpl.UseCount)

	require.NoError(t, store.SaveReview(&models.TemplateReview{
		ID: "r1", TemplateID: "tpl-1", UserID: "u1", Rating: 5,
	}))
	reviews, err := store.ListReviews("tpl-1")
	require.NoError(t, err)
	assert.Len(t, reviews, 1)

	require.NoError(t, store.RecordTemplateUsage("usage-1", "u1", "tpl-1", "loop-1"))

	// Delete cascades tasks and reviews.
	require.NoError(t, store.DeleteTemplate("tpl-1"))
	tasks, err = store.ListTemplateTasks("tpl-1")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestListTemplates_PublishedFilter(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveCreator(&models.TemplateCreator{ID: "c1", Name: "Ana"}))
	require.NoError(t, store.SaveTemplate(&models.LoopTemplate{
		ID: "pub", CreatorID: "c1", Name: "Pub", Color: "teal", ResetRule: models.ResetManual, Published: true,
	}))
	require.NoError(t, store.SaveTemplate(&models.LoopTemplate{
		ID: "draft", CreatorID: "c1", Name: "Draft", Color: "teal", ResetRule: models.ResetManual,
	}))

	all, err := store.ListTemplates(false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	published, err := store.ListTemplates(true)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, "pub", published[0].ID)
}

func TestAffiliate_ClickAndConversion(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.TrackAffiliateClick("click-1", "c1", "ref-ana", "visitor-9"))

	ok, err := store.MarkAffiliateConversion("ref-ana", "visitor-9")
	require.NoError(t, err)
	assert.True(t, ok)

	// Already converted, nothing left to convert.
	ok, err = store.MarkAffiliateConversion("ref-ana", "visitor-9")
	require.NoError(t, err)
	assert.False(t, ok)

	clicks, conversions, err := store.AffiliateStats("c1")
	require.NoError(t, err)
	assert.Equal(t, 1, clicks)
	assert.Equal(t, 1, conversions)
}

func TestProfiles_ThemeVibe(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveProfile(&models.UserProfile{UserID: "u1", Email: "a@b.c", IsAdmin: true}))
	require.NoError(t, store.SetThemeVibe("u1", "sunset"))

	p, err := store.GetProfile("u1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.IsAdmin)
	assert.Equal(t, "sunset", p.ThemeVibe)
}

func TestGenerations_Counting(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.RecordGeneration("g1", "u1", "a morning loop", ""))
	require.NoError(t, store.RecordGeneration("g2", "u1", "a gym loop", "loop-1"))

	n, err := store.CountGenerationsSince("u1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.CountGenerationsSince("u1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAnalytics_Dashboard(t *testing.T) {
	store := newTestStore(t)
	saveLoop(t, store, "loop-1", "user-1", models.ResetDaily)
	saveTask(t, store, "t1", "loop-1", false, models.TaskPending)
	require.NoError(t, store.SaveCreator(&models.TemplateCreator{ID: "c1", Name: "Ana"}))

	stats, err := store.GetDashboardStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Loops)
	assert.Equal(t, 1, stats.Tasks)
	assert.Equal(t, 1, stats.Creators)

	sum, err := store.GetUserSummary("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Loops)
}

func TestSchemaVersion_OrdersNumerically(t *testing.T) {
	store := newTestStore(t)

	v, err := store.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	// a double-digit version must still read as greater than 2
	_, err = store.db.Exec(`INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '10')`)
	require.NoError(t, err)

	v, err = store.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.NoError(t, store.migrateV2())

	v, err = store.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 10, v, "migrateV2 must not rewind a newer schema")
}

func TestMigrateV2_PropagatesVersionReadFailure(t *testing.T) {
	store := newTestStore(t)

	_, err := store.db.Exec(`DELETE FROM meta WHERE key = 'schema_version'`)
	require.NoError(t, err)

	assert.Error(t, store.migrateV2())
}
