package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdash/internal/codec"
	"taskdash/internal/logging"
	"taskdash/internal/storage"
	"taskdash/internal/task"
)

var fixedNow = time.Date(2025, time.December, 10, 9, 0, 0, 0, time.UTC)

type memKV struct {
	data   map[string][]byte
	putErr error
	getErr error
	puts   int
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Put(_ context.Context, key string, value []byte) error {
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func newStore(t *testing.T, kv KV) *Store {
	t.Helper()
	return New(context.Background(), kv, WithClock(func() time.Time { return fixedNow }))
}

func form(title, due string) task.FormData {
	return task.FormData{Title: title, Description: "desc " + title, Priority: task.PriorityMedium, DueDate: due}
}

func persisted(t *testing.T, kv *memKV) []task.Task {
	t.Helper()
	raw, ok := kv.data[TasksKey]
	require.True(t, ok, "collection should be persisted")
	tasks, err := codec.Unmarshal(raw)
	require.NoError(t, err)
	return tasks
}

func TestNew_EmptyWhenKeyAbsent(t *testing.T) {
	s := newStore(t, newMemKV())
	assert.Empty(t, s.Tasks())
	assert.NotNil(t, s.Tasks())
}

func TestNew_EmptyWhenMalformed(t *testing.T) {
	kv := newMemKV()
	kv.data[TasksKey] = []byte(`{"broken":`)

	var logs bytes.Buffer
	s := New(context.Background(), kv, WithLogger(logging.New(&logs, logging.DefaultOptions())))

	assert.Empty(t, s.Tasks())
	assert.Contains(t, logs.String(), "discarding malformed tasks")
}

func TestNew_EmptyWhenStorageFails(t *testing.T) {
	kv := newMemKV()
	kv.getErr = errors.New("disk on fire")
	s := newStore(t, kv)
	assert.Empty(t, s.Tasks())
}

func TestCreate(t *testing.T) {
	kv := newMemKV()
	s := newStore(t, kv)
	ctx := context.Background()

	first, err := s.Create(ctx, form("Buy gifts", "2025-12-20"))
	require.NoError(t, err)
	second, err := s.Create(ctx, form("Bake cookies", "2025-12-15"))
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, task.StatusPending, first.Status)
	assert.Equal(t, fixedNow, first.CreatedAt)
	assert.Equal(t, task.NewDate(2025, 12, 20), first.DueDate)

	got := s.Tasks()
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID, "new tasks are prepended")
	assert.Equal(t, first.ID, got[1].ID)

	assert.Len(t, persisted(t, kv), 2)
	assert.Equal(t, 2, kv.puts)
}

func TestCreate_RejectsInvalidForm(t *testing.T) {
	kv := newMemKV()
	s := newStore(t, kv)

	_, err := s.Create(context.Background(), form("ab", "2025-12-01"))
	require.Error(t, err)
	assert.ErrorIs(t, err, task.ErrValidation)

	fields := task.FieldErrors(err)
	assert.ErrorIs(t, fields[task.FieldTitle], task.ErrTitleTooShort)
	assert.ErrorIs(t, fields[task.FieldDueDate], task.ErrPastDate)

	assert.Empty(t, s.Tasks())
	assert.Zero(t, kv.puts)
}

func TestUpdate(t *testing.T) {
	kv := newMemKV()
	s := newStore(t, kv)
	ctx := context.Background()

	created, err := s.Create(ctx, form("Buy gifts", "2025-12-20"))
	require.NoError(t, err)
	_, err = s.SetStatus(ctx, created.ID, task.StatusInProgress)
	require.NoError(t, err)

	updated, err := s.Update(ctx, created.ID, task.FormData{
		Title: "Buy more gifts", Description: "", Priority: task.PriorityHigh, DueDate: "2025-12-22",
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, task.StatusInProgress, updated.Status)
	assert.Equal(t, "Buy more gifts", updated.Title)
	assert.Equal(t, task.PriorityHigh, updated.Priority)

	got, ok := s.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, updated, got)
	assert.Equal(t, "Buy more gifts", persisted(t, kv)[0].Title)
}

func TestUpdate_Errors(t *testing.T) {
	s := newStore(t, newMemKV())
	ctx := context.Background()

	_, err := s.Update(ctx, "missing", form("Buy gifts", "2025-12-20"))
	assert.ErrorIs(t, err, ErrNotFound)

	created, err := s.Create(ctx, form("Buy gifts", "2025-12-20"))
	require.NoError(t, err)
	_, err = s.Update(ctx, created.ID, form("", "2025-12-20"))
	assert.ErrorIs(t, err, task.ErrEmptyTitle)

	got, _ := s.Get(created.ID)
	assert.Equal(t, "Buy gifts", got.Title)
}

func TestAdvanceStatus_Cycles(t *testing.T) {
	s := newStore(t, newMemKV())
	ctx := context.Background()
	created, err := s.Create(ctx, form("Buy gifts", "2025-12-20"))
	require.NoError(t, err)

	want := []task.Status{task.StatusInProgress, task.StatusCompleted, task.StatusPending}
	for _, w := range want {
		got, err := s.AdvanceStatus(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, w, got.Status)
	}

	_, err = s.AdvanceStatus(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetStatus_Direct(t *testing.T) {
	kv := newMemKV()
	s := newStore(t, kv)
	ctx := context.Background()
	created, err := s.Create(ctx, form("Buy gifts", "2025-12-20"))
	require.NoError(t, err)

	got, err := s.SetStatus(ctx, created.ID, task.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, task.StatusCompleted, persisted(t, kv)[0].Status)

	_, err = s.SetStatus(ctx, created.ID, task.Status("archived"))
	assert.Error(t, err)
	_, err = s.SetStatus(ctx, "missing", task.StatusPending)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	kv := newMemKV()
	s := newStore(t, kv)
	ctx := context.Background()
	a, err := s.Create(ctx, form("Buy gifts", "2025-12-20"))
	require.NoError(t, err)
	b, err := s.Create(ctx, form("Bake cookies", "2025-12-20"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, a.ID))
	got := s.Tasks()
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].ID)
	assert.Len(t, persisted(t, kv), 1)

	assert.ErrorIs(t, s.Delete(ctx, a.ID), ErrNotFound)
}

func TestSaveFailureIsNotFatal(t *testing.T) {
	kv := newMemKV()
	kv.putErr = errors.New("read-only")

	var logs bytes.Buffer
	s := New(context.Background(), kv,
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(logging.New(&logs, logging.DefaultOptions())))

	created, err := s.Create(context.Background(), form("Buy gifts", "2025-12-20"))
	require.NoError(t, err)

	got, ok := s.Get(created.ID)
	assert.True(t, ok)
	assert.Equal(t, created, got)
	assert.Contains(t, logs.String(), "save tasks")
	assert.Contains(t, logs.String(), "read-only")
}

func TestTasks_ReturnsCopy(t *testing.T) {
	s := newStore(t, newMemKV())
	_, err := s.Create(context.Background(), form("Buy gifts", "2025-12-20"))
	require.NoError(t, err)

	got := s.Tasks()
	got[0].Title = "tampered"
	assert.Equal(t, "Buy gifts", s.Tasks()[0].Title)
}

func TestQueries(t *testing.T) {
	s := newStore(t, newMemKV())
	ctx := context.Background()

	a, err := s.Create(ctx, task.FormData{Title: "Buy gifts", Priority: task.PriorityHigh, DueDate: "2025-12-20"})
	require.NoError(t, err)
	b, err := s.Create(ctx, task.FormData{Title: "Bake cookies", Priority: task.PriorityLow, DueDate: "2025-12-12"})
	require.NoError(t, err)
	_, err = s.SetStatus(ctx, b.ID, task.StatusCompleted)
	require.NoError(t, err)

	filtered := s.GetFiltered(task.FilterSpec{Status: task.StatusPending})
	require.Len(t, filtered, 1)
	assert.Equal(t, a.ID, filtered[0].ID)

	sorted := s.GetSorted(s.Tasks(), task.SortSpec{Field: task.SortByPriority, Order: task.Desc})
	assert.Equal(t, a.ID, sorted[0].ID)

	stats := s.GetStats()
	assert.Equal(t, task.Stats{Total: 2, Pending: 1, Completed: 1, HighPriority: 1}, stats)
}

func TestGetStats_CountsOverdueFromClock(t *testing.T) {
	current := fixedNow
	s := New(context.Background(), newMemKV(), WithClock(func() time.Time { return current }))
	_, err := s.Create(context.Background(), form("Buy gifts", "2025-12-11"))
	require.NoError(t, err)

	assert.Equal(t, 0, s.GetStats().Overdue)
	current = fixedNow.AddDate(0, 0, 2)
	assert.Equal(t, 1, s.GetStats().Overdue)
}

func TestView_MemoizedUntilMutation(t *testing.T) {
	s := newStore(t, newMemKV())
	ctx := context.Background()
	_, err := s.Create(ctx, form("Buy gifts", "2025-12-20"))
	require.NoError(t, err)

	spec := task.SortSpec{Field: task.SortByTitle, Order: task.Asc}
	first := s.View(task.FilterSpec{}, spec)
	require.Len(t, first, 1)
	assert.True(t, s.cached)
	v := s.Version()

	first[0].Title = "tampered"
	again := s.View(task.FilterSpec{}, spec)
	assert.Equal(t, "Buy gifts", again[0].Title, "cached view is not aliased")

	_, err = s.Create(ctx, form("Apples", "2025-12-20"))
	require.NoError(t, err)
	assert.Greater(t, s.Version(), v)

	after := s.View(task.FilterSpec{}, spec)
	require.Len(t, after, 2)
	assert.Equal(t, "Apples", after[0].Title)

	narrowed := s.View(task.FilterSpec{SearchQuery: "gift"}, spec)
	require.Len(t, narrowed, 1)
}

func TestExport_MatchesPersistedBytes(t *testing.T) {
	kv := newMemKV()
	s := newStore(t, kv)
	_, err := s.Create(context.Background(), form("Buy gifts", "2025-12-20"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.Export(&buf))
	assert.Equal(t, kv.data[TasksKey], buf.Bytes())

	path := filepath.Join(t.TempDir(), "out", DefaultExportName(fixedNow))
	require.NoError(t, s.ExportToFile(context.Background(), path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, kv.data[TasksKey], raw)
}

func TestImportFromFile_ReplacesCollection(t *testing.T) {
	src := newStore(t, newMemKV())
	ctx := context.Background()
	_, err := src.Create(ctx, form("Imported one", "2025-12-20"))
	require.NoError(t, err)
	_, err = src.Create(ctx, form("Imported two", "2025-12-21"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "import.json")
	require.NoError(t, src.ExportToFile(ctx, path))

	kv := newMemKV()
	dst := newStore(t, kv)
	_, err = dst.Create(ctx, form("Local only", "2025-12-20"))
	require.NoError(t, err)
	v := dst.Version()

	require.NoError(t, dst.ImportFromFile(ctx, path))

	assert.Equal(t, src.Tasks(), dst.Tasks())
	assert.Greater(t, dst.Version(), v)
	assert.Equal(t, src.Tasks(), persisted(t, kv))
}

func TestImportFromFile_MalformedKeepsCollection(t *testing.T) {
	kv := newMemKV()
	s := newStore(t, kv)
	ctx := context.Background()
	_, err := s.Create(ctx, form("Keep me", "2025-12-20"))
	require.NoError(t, err)
	before := s.Tasks()
	v := s.Version()
	puts := kv.puts

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": 1}]`), 0o644))

	err = s.ImportFromFile(ctx, path)
	var pe *codec.ImportParseError
	require.ErrorAs(t, err, &pe)

	assert.Equal(t, before, s.Tasks())
	assert.Equal(t, v, s.Version())
	assert.Equal(t, puts, kv.puts)
}

func TestRoundTrip_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	db, err := storage.Open(path)
	require.NoError(t, err)
	ctx := context.Background()

	today := task.DateOf(time.Now())
	s := New(ctx, db)
	_, err = s.Create(ctx, form("Buy gifts", today.AddDays(10).String()))
	require.NoError(t, err)
	b, err := s.Create(ctx, form("Bake cookies", today.String()))
	require.NoError(t, err)
	_, err = s.AdvanceStatus(ctx, b.ID)
	require.NoError(t, err)
	want := s.Tasks()
	require.NoError(t, db.Close())

	db, err = storage.Open(path)
	require.NoError(t, err)
	defer db.Close()

	reloaded := New(ctx, db)
	assert.Equal(t, want, reloaded.Tasks())

	saved, ok := reloaded.LastSaved(ctx)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), saved, time.Minute)
}

func TestLastSaved_UnsupportedMedium(t *testing.T) {
	s := newStore(t, newMemKV())
	_, ok := s.LastSaved(context.Background())
	assert.False(t, ok)
}

func TestImportFromFile_RejectsInvalidTitle(t *testing.T) {
	kv := newMemKV()
	s := newStore(t, kv)
	ctx := context.Background()
	_, err := s.Create(ctx, form("Keep me", "2025-12-20"))
	require.NoError(t, err)
	before := s.Tasks()
	puts := kv.puts

	path := filepath.Join(t.TempDir(), "empty-title.json")
	data := `[{"id":"x","title":"","description":"","status":"pending","priority":"low","dueDate":"2025-12-24","createdAt":"2025-12-12T10:40:00Z"}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	err = s.ImportFromFile(ctx, path)
	var pe *codec.ImportParseError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, task.ErrEmptyTitle)

	assert.Equal(t, before, s.Tasks())
	assert.Equal(t, before, persisted(t, kv))
	assert.Equal(t, puts, kv.puts)
}

func TestImportFromFile_CancelledContext(t *testing.T) {
	s := newStore(t, newMemKV())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.ImportFromFile(ctx, filepath.Join(t.TempDir(), "never-read.json"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Len())
}

func TestDefaultExportName(t *testing.T) {
	assert.Equal(t, "tasks-export-2025-12-10.json", DefaultExportName(fixedNow))
}
