// Package store owns the in-memory task collection. Every mutation is
// persisted through the codec to a durable key/value store.
//
// A Store has a single owner and is not safe for concurrent use.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"taskdash/internal/codec"
	"taskdash/internal/logging"
	"taskdash/internal/task"
)

// TasksKey is the durable-store key holding the serialized collection.
const TasksKey = "task-dashboard-tasks"

const ioTimeout = 5 * time.Second

var ErrNotFound = errors.New("task not found")

// KV is the durable key/value medium.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// stamper is implemented by media that record when a key was last written.
type stamper interface {
	UpdatedAt(ctx context.Context, key string) (time.Time, bool, error)
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithLocale sets the collation locale used for title sorting.
func WithLocale(locale string) Option {
	return func(s *Store) { s.sorter = task.NewSorter(locale) }
}

type viewKey struct {
	version uint64
	filter  task.FilterSpec
	sort    task.SortSpec
}

type Store struct {
	kv     KV
	log    *log.Logger
	now    func() time.Time
	sorter task.Sorter

	tasks   []task.Task
	version uint64

	cached   bool
	cacheKey viewKey
	cacheVal []task.Task
}

// New builds a store and loads the persisted collection. Load failures are
// logged and leave the store empty.
func New(ctx context.Context, kv KV, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		log:    logging.Discard(),
		now:    time.Now,
		sorter: task.NewSorter("en"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tasks = s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) []task.Task {
	ctx, cancel := context.WithTimeout(ctx, ioTimeout)
	defer cancel()

	data, ok, err := s.kv.Get(ctx, TasksKey)
	if err != nil {
		s.log.Error("load tasks", "key", TasksKey, "err", err)
		return []task.Task{}
	}
	if !ok {
		return []task.Task{}
	}
	tasks, err := codec.Unmarshal(data)
	if err != nil {
		s.log.Warn("discarding malformed tasks", "key", TasksKey, "err", err)
		return []task.Task{}
	}
	s.log.Debug("loaded tasks", "count", len(tasks))
	return tasks
}

// save writes the collection. Failures are logged only; the in-memory
// collection stays authoritative for the session.
func (s *Store) save(ctx context.Context) {
	data, err := codec.Marshal(s.tasks)
	if err != nil {
		s.log.Error("serialize tasks", "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, ioTimeout)
	defer cancel()
	if err := s.kv.Put(ctx, TasksKey, data); err != nil {
		s.log.Error("save tasks", "key", TasksKey, "err", err)
	}
}

func (s *Store) commit(ctx context.Context) {
	s.version++
	s.save(ctx)
}

// Version increases with every change to the collection.
func (s *Store) Version() uint64 {
	return s.version
}

// Tasks returns a copy of the full collection.
func (s *Store) Tasks() []task.Task {
	return slices.Clone(s.tasks)
}

func (s *Store) Len() int {
	return len(s.tasks)
}

func (s *Store) Get(id string) (task.Task, bool) {
	i := s.index(id)
	if i < 0 {
		return task.Task{}, false
	}
	return s.tasks[i], true
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.tasks, func(t task.Task) bool { return t.ID == id })
}

// Create validates form and prepends a new pending task.
func (s *Store) Create(ctx context.Context, form task.FormData) (task.Task, error) {
	now := s.now()
	if err := task.ValidateForm(form, now); err != nil {
		return task.Task{}, err
	}
	t := form.Apply(task.Task{
		ID:        task.NewID(func(id string) bool { return s.index(id) >= 0 }),
		Status:    task.StatusPending,
		CreatedAt: now.UTC().Round(0),
	})
	s.tasks = slices.Insert(s.tasks, 0, t)
	s.commit(ctx)
	s.log.Debug("created task", "id", t.ID)
	return t, nil
}

// Update replaces the editable fields of the task with the given id.
func (s *Store) Update(ctx context.Context, id string, form task.FormData) (task.Task, error) {
	i := s.index(id)
	if i < 0 {
		return task.Task{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	if err := task.ValidateForm(form, s.now()); err != nil {
		return task.Task{}, err
	}
	t := form.Apply(s.tasks[i])
	s.tasks[i] = t
	s.commit(ctx)
	return t, nil
}

// SetStatus assigns status directly.
func (s *Store) SetStatus(ctx context.Context, id string, status task.Status) (task.Task, error) {
	if !status.Valid() {
		return task.Task{}, fmt.Errorf("set status %q: unknown status", status)
	}
	i := s.index(id)
	if i < 0 {
		return task.Task{}, fmt.Errorf("set status %s: %w", id, ErrNotFound)
	}
	t := s.tasks[i]
	t.Status = status
	s.tasks[i] = t
	s.commit(ctx)
	return t, nil
}

// AdvanceStatus moves the task one step along pending, in-progress,
// completed and back to pending.
func (s *Store) AdvanceStatus(ctx context.Context, id string) (task.Task, error) {
	t, ok := s.Get(id)
	if !ok {
		return task.Task{}, fmt.Errorf("advance %s: %w", id, ErrNotFound)
	}
	return s.SetStatus(ctx, id, t.Status.Next())
}

func (s *Store) Delete(ctx context.Context, id string) error {
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	s.tasks = slices.Delete(s.tasks, i, i+1)
	s.commit(ctx)
	return nil
}

// Replace swaps the whole collection for tasks, which must already be
// decoded by the codec.
func (s *Store) Replace(ctx context.Context, tasks []task.Task) {
	s.tasks = slices.Clone(tasks)
	if s.tasks == nil {
		s.tasks = []task.Task{}
	}
	s.commit(ctx)
	s.log.Info("replaced tasks", "count", len(s.tasks))
}

func (s *Store) GetFiltered(spec task.FilterSpec) []task.Task {
	return task.Filter(s.tasks, spec)
}

func (s *Store) GetSorted(tasks []task.Task, spec task.SortSpec) []task.Task {
	return s.sorter.Sort(tasks, spec)
}

func (s *Store) GetStats() task.Stats {
	return task.CalculateStats(s.tasks, s.now())
}

// View filters then sorts the collection. The last result is reused while
// the collection and both specs are unchanged.
func (s *Store) View(filter task.FilterSpec, sort task.SortSpec) []task.Task {
	key := viewKey{version: s.version, filter: filter, sort: sort}
	if !s.cached || s.cacheKey != key {
		s.cacheVal = s.GetSorted(s.GetFiltered(filter), sort)
		s.cacheKey = key
		s.cached = true
	}
	return slices.Clone(s.cacheVal)
}

// LastSaved reports when the collection was last written, if the medium
// records it.
func (s *Store) LastSaved(ctx context.Context) (time.Time, bool) {
	st, ok := s.kv.(stamper)
	if !ok {
		return time.Time{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, ioTimeout)
	defer cancel()
	ts, ok, err := st.UpdatedAt(ctx, TasksKey)
	if err != nil {
		s.log.Warn("read save time", "key", TasksKey, "err", err)
		return time.Time{}, false
	}
	return ts, ok
}

// Now is the store's clock, shared with callers that render overdue state.
func (s *Store) Now() time.Time {
	return s.now()
}

// Export writes the same bytes the store persists.
func (s *Store) Export(w io.Writer) error {
	data, err := codec.Marshal(s.tasks)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

func (s *Store) ExportToFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := codec.WriteFile(path, s.tasks); err != nil {
		return err
	}
	s.log.Info("exported tasks", "path", path, "count", len(s.tasks))
	return nil
}

// ImportFromFile replaces the collection with the content of path. Read and
// parse failures are *codec.ImportParseError; a done ctx returns ctx.Err().
// On any error the collection is left as it was.
func (s *Store) ImportFromFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tasks, err := codec.ReadFile(path)
	if err != nil {
		s.log.Warn("import rejected", "path", path, "err", err)
		return err
	}
	s.Replace(ctx, tasks)
	return nil
}

// DefaultExportName names an export file after the day it was taken.
func DefaultExportName(now time.Time) string {
	return fmt.Sprintf("tasks-export-%s.json", task.DateOf(now))
}
