package localstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myerscreative/doloop-sub000/internal/models"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	return NewAdapter(NewMemKV(), zerolog.Nop())
}

func sampleLoop(id string) models.Loop {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	due := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	return models.Loop{
		ID:    id,
		Title: "Morning",
		Type:  models.LoopTypeDaily,
		Color: "teal",
		Items: []models.LoopItem{
			{ID: "1", Title: "Stretch", IsRecurring: true},
			{ID: "2", Title: "Buy filters", DueDate: &due},
		},
		TotalTasks: 2,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func TestLoops_EmptyStore(t *testing.T) {
	a := newTestAdapter(t)
	loops, err := a.Loops()
	require.NoError(t, err)
	assert.Empty(t, loops)
}

func TestLoop_RoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	in := sampleLoop("loop-1")
	require.NoError(t, a.AddLoop(in))

	got, ok, err := a.LoopByID("loop-1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, in.Title, got.Title)
	assert.Equal(t, in.Type, got.Type)
	assert.True(t, in.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, in.UpdatedAt.Equal(got.UpdatedAt))
	require.Len(t, got.Items, 2)
	require.NotNil(t, got.Items[1].DueDate)
	assert.True(t, in.Items[1].DueDate.Equal(*got.Items[1].DueDate))
	assert.Nil(t, got.LastCompletedAt)
}

func TestUpdateLoop_ReplacesByID(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.AddLoop(sampleLoop("loop-1")))
	require.NoError(t, a.AddLoop(sampleLoop("loop-2")))

	updated := sampleLoop("loop-1")
	updated.Title = "Evening"
	require.NoError(t, a.UpdateLoop(updated))

	got, ok, err := a.LoopByID("loop-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Evening", got.Title)

	other, ok, err := a.LoopByID("loop-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Morning", other.Title)
}

func TestDeleteLoop(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.AddLoop(sampleLoop("loop-1")))
	require.NoError(t, a.AddLoop(sampleLoop("loop-2")))
	require.NoError(t, a.DeleteLoop("loop-1"))

	loops, err := a.Loops()
	require.NoError(t, err)
	require.Len(t, loops, 1)
	assert.Equal(t, "loop-2", loops[0].ID)
}

func TestLoops_InvalidDatesAreRepaired(t *testing.T) {
	kv := NewMemKV()
	a := NewAdapter(kv, zerolog.Nop())
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	blob := `[{"id":"loop-1","title":"Morning","type":"daily",
		"createdAt":"not-a-date","updatedAt":"also bad",
		"lastCompletedAt":"garbage","items":[]}]`
	require.NoError(t, kv.Set(KeyLoops, []byte(blob)))

	loops, err := a.Loops()
	require.NoError(t, err)
	require.Len(t, loops, 1)
	assert.True(t, fixed.Equal(loops[0].CreatedAt))
	assert.True(t, fixed.Equal(loops[0].UpdatedAt))
	assert.Nil(t, loops[0].LastCompletedAt)
}

func TestLoops_MalformedRecordDoesNotHideOthers(t *testing.T) {
	kv := NewMemKV()
	a := NewAdapter(kv, zerolog.Nop())

	good, err := json.Marshal(encodeLoop(sampleLoop("loop-ok")))
	require.NoError(t, err)
	blob := `[` + string(good) + `, 42, {"title":"no id"}]`
	require.NoError(t, kv.Set(KeyLoops, []byte(blob)))

	loops, err := a.Loops()
	require.NoError(t, err)
	require.Len(t, loops, 1)
	assert.Equal(t, "loop-ok", loops[0].ID)
}

func TestLoops_CorruptCollectionDegradesToEmpty(t *testing.T) {
	kv := NewMemKV()
	a := NewAdapter(kv, zerolog.Nop())
	require.NoError(t, kv.Set(KeyLoops, []byte(`{not json`)))

	loops, err := a.Loops()
	require.NoError(t, err)
	assert.Empty(t, loops)
}

func TestFolders_SeedsDefaultsOnFirstRead(t *testing.T) {
	a := newTestAdapter(t)
	folders, err := a.Folders()
	require.NoError(t, err)
	require.Len(t, folders, 4)

	names := make([]string, 0, 4)
	for _, f := range folders {
		assert.True(t, f.IsDefault)
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Favorites", "Personal", "Work", "Shared"}, names)

	// Second read returns the persisted seed, not a fresh one.
	again, err := a.Folders()
	require.NoError(t, err)
	assert.Equal(t, folders, again)
}

func TestDeleteFolder_DefaultIsProtected(t *testing.T) {
	a := newTestAdapter(t)
	folders, err := a.Folders()
	require.NoError(t, err)

	err = a.DeleteFolder(folders[0].ID)
	assert.Error(t, err)

	custom := models.LibraryFolder{ID: "folder-x", Name: "Gym", Order: 4}
	require.NoError(t, a.AddFolder(custom))
	require.NoError(t, a.DeleteFolder("folder-x"))

	_, ok, err := a.FolderByID("folder-x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoopsInFolder_AppliesFilter(t *testing.T) {
	a := newTestAdapter(t)

	work := sampleLoop("loop-work")
	work.Type = models.LoopTypeWork
	fav := sampleLoop("loop-fav")
	fav.Favorite = true
	require.NoError(t, a.AddLoop(work))
	require.NoError(t, a.AddLoop(fav))

	got, err := a.LoopsInFolder("folder-work")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "loop-work", got[0].ID)

	got, err = a.LoopsInFolder("folder-favorites")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "loop-fav", got[0].ID)
}

func TestFileKV_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	require.NoError(t, err)

	_, ok, err := kv.Get(KeyLoops)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(KeyLoops, []byte(`[]`)))
	b, ok, err := kv.Get(KeyLoops)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`[]`), b)

	require.NoError(t, kv.Delete(KeyLoops))
	require.NoError(t, kv.Delete(KeyLoops)) // absent delete is fine
}
