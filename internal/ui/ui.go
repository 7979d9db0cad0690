package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"taskdash/internal/codec"
	"taskdash/internal/config"
	"taskdash/internal/store"
	"taskdash/internal/task"
)

type mode int

const (
	modeList mode = iota
	modeForm
	modeSearch
	modePath
)

type pathAction int

const (
	pathExport pathAction = iota
	pathImport
)

type exportDoneMsg struct {
	path  string
	count int
	err   error
}

type importLoadedMsg struct {
	path  string
	tasks []task.Task
	err   error
}

type Model struct {
	ctx        context.Context
	store      *store.Store
	cfg        config.Config
	log        *log.Logger
	tasks      []task.Task
	stats      task.Stats
	filter     task.FilterSpec
	sort       task.SortSpec
	cursor     int
	mode       mode
	input      textinput.Model
	status     string
	prevQuery  string
	path       pathAction
	confirmDel bool
	pendingDel *task.Task
	form       *formState
}

// New builds the dashboard over st using the view defaults from cfg.
func New(ctx context.Context, st *store.Store, cfg config.Config, logger *log.Logger) Model {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 40

	sort, ok := task.ParseSortSpec(cfg.DefaultSort.Field, cfg.DefaultSort.Order)
	if !ok {
		logger.Warn("unknown default sort, using due date", "field", cfg.DefaultSort.Field, "order", cfg.DefaultSort.Order)
	}

	m := Model{
		ctx:    ctx,
		store:  st,
		cfg:    cfg,
		log:    logger,
		filter: defaultFilter(cfg.DefaultFilter, logger),
		sort:   sort,
		input:  ti,
		mode:   modeList,
		status: fmt.Sprintf("Press '%s' to add, space to advance, '%s' to delete.", cfg.Keys.Add, cfg.Keys.Delete),
	}
	m.refresh()
	return m
}

func Run(ctx context.Context, st *store.Store, cfg config.Config, logger *log.Logger) error {
	program := tea.NewProgram(New(ctx, st, cfg, logger), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

func defaultFilter(fc config.FilterConfig, logger *log.Logger) task.FilterSpec {
	var spec task.FilterSpec
	if strings.TrimSpace(fc.Status) != "" {
		if s, err := task.ParseStatus(fc.Status); err == nil {
			spec.Status = s
		} else {
			logger.Warn("ignoring default status filter", "err", err)
		}
	}
	if strings.TrimSpace(fc.Priority) != "" {
		if p, err := task.ParsePriority(fc.Priority); err == nil {
			spec.Priority = p
		} else {
			logger.Warn("ignoring default priority filter", "err", err)
		}
	}
	return spec
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.form != nil {
			return m.updateFormMode(msg.String(), msg)
		}
		if m.confirmDel {
			return m.updateDeleteConfirm(msg.String())
		}
		return m.handleKey(msg)
	case exportDoneMsg:
		return m.exportDone(msg), nil
	case importLoadedMsg:
		return m.importLoaded(msg), nil
	case tea.WindowSizeMsg:
		m.input.Width = msg.Width - 10
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch m.mode {
	case modeSearch:
		return m.updateSearchMode(key, msg)
	case modePath:
		return m.updatePathMode(key, msg)
	}
	return m.updateListMode(key)
}

// refresh recomputes the visible slice and the header counters.
func (m *Model) refresh() {
	m.tasks = m.store.View(m.filter, m.sort)
	m.stats = m.store.GetStats()
	m.cursor = clampCursor(m.cursor, len(m.tasks))
}

func (m *Model) selectID(id string) {
	if i := slices.IndexFunc(m.tasks, func(t task.Task) bool { return t.ID == id }); i >= 0 {
		m.cursor = i
	}
}

func (m Model) current() (task.Task, bool) {
	if len(m.tasks) == 0 {
		return task.Task{}, false
	}
	return m.tasks[clampCursor(m.cursor, len(m.tasks))], true
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	k := m.cfg.Keys
	switch key {
	case "ctrl+c", k.Quit:
		return m, tea.Quit
	case k.Down, "down":
		if len(m.tasks) == 0 {
			return m, nil
		}
		m.cursor = clampCursor(m.cursor+1, len(m.tasks))
	case k.Up, "up":
		if m.cursor > 0 {
			m.cursor = clampCursor(m.cursor-1, len(m.tasks))
		}
	case k.Add:
		return m.startForm(nil)
	case k.Edit:
		t, ok := m.current()
		if !ok {
			m.status = "No tasks to edit"
			return m, nil
		}
		return m.startForm(&t)
	case k.Advance:
		t, ok := m.current()
		if !ok {
			return m, nil
		}
		updated, err := m.store.AdvanceStatus(m.ctx, t.ID)
		if err != nil {
			m.status = fmt.Sprintf("status change failed: %v", err)
			return m, nil
		}
		m.afterStatusChange(updated)
	case k.StatusPending:
		return m.assignStatus(task.StatusPending)
	case k.StatusProgress:
		return m.assignStatus(task.StatusInProgress)
	case k.StatusDone:
		return m.assignStatus(task.StatusCompleted)
	case k.Delete:
		t, ok := m.current()
		if !ok {
			return m, nil
		}
		m.confirmDel = true
		m.pendingDel = &t
		m.status = fmt.Sprintf("Delete \"%s\"? y/n", t.Title)
	case k.Detail:
		t, ok := m.current()
		if !ok {
			m.status = "No tasks"
			return m, nil
		}
		info := fmt.Sprintf("%s • %s • %s priority • due %s", t.Title, t.Status.Label(), t.Priority, t.DueDate.Display())
		if t.Overdue(m.store.Now()) {
			info += " • overdue"
		}
		if strings.TrimSpace(t.Description) != "" {
			info += " • " + t.Description
		}
		m.status = info
	case k.Filter:
		m.filter.Status = cycle(task.Statuses, m.filter.Status)
		m.refresh()
		m.status = "Status filter: " + orAll(string(m.filter.Status))
	case k.FilterPriority:
		m.filter.Priority = cycle(task.Priorities, m.filter.Priority)
		m.refresh()
		m.status = "Priority filter: " + orAll(string(m.filter.Priority))
	case k.Search:
		m.mode = modeSearch
		m.prevQuery = m.filter.SearchQuery
		m.setInput(m.filter.SearchQuery)
		m.input.Placeholder = "Search title or description"
		m.input.Focus()
		m.status = "Type to search, Enter to keep, Esc to cancel"
	case k.ClearFilter:
		m.filter = task.FilterSpec{}
		m.refresh()
		m.status = "Filters cleared"
	case k.SortDue:
		return m.sortBy(task.SortByDueDate)
	case k.SortPriority:
		return m.sortBy(task.SortByPriority)
	case k.SortCreated:
		return m.sortBy(task.SortByCreatedAt)
	case k.SortTitle:
		return m.sortBy(task.SortByTitle)
	case k.Reverse:
		m.sort = m.sort.Reversed()
		m.refresh()
		m.status = fmt.Sprintf("Sorted by %s (%s)", m.sort.Field, m.sort.Order)
	case k.Export:
		return m.startPath(pathExport)
	case k.Import:
		return m.startPath(pathImport)
	}
	return m, nil
}

func (m Model) assignStatus(status task.Status) (tea.Model, tea.Cmd) {
	t, ok := m.current()
	if !ok {
		return m, nil
	}
	updated, err := m.store.SetStatus(m.ctx, t.ID, status)
	if err != nil {
		m.status = fmt.Sprintf("status change failed: %v", err)
		return m, nil
	}
	m.afterStatusChange(updated)
	return m, nil
}

func (m *Model) afterStatusChange(t task.Task) {
	m.refresh()
	m.selectID(t.ID)
	m.status = fmt.Sprintf("\"%s\" is now %s", t.Title, t.Status.Label())
}

// sortBy switches the sort field; choosing the active field flips the order.
func (m Model) sortBy(field task.SortField) (tea.Model, tea.Cmd) {
	if m.sort.Field == field {
		m.sort = m.sort.Reversed()
	} else {
		m.sort = task.SortSpec{Field: field, Order: task.Asc}
	}
	m.refresh()
	m.status = fmt.Sprintf("Sorted by %s (%s)", m.sort.Field, m.sort.Order)
	return m, nil
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "n", "N", "esc":
		m.status = "Delete cancelled"
		m.confirmDel = false
		m.pendingDel = nil
		return m, nil
	case "y", "Y":
		if m.pendingDel == nil {
			m.status = "Nothing to delete"
			m.confirmDel = false
			return m, nil
		}
		if err := m.store.Delete(m.ctx, m.pendingDel.ID); err != nil {
			m.status = fmt.Sprintf("delete failed: %v", err)
		} else {
			m.refresh()
			m.status = "Deleted task"
		}
		m.confirmDel = false
		m.pendingDel = nil
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) updateSearchMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel, "esc":
		m.filter.SearchQuery = m.prevQuery
		m.refresh()
		m.mode = modeList
		m.input.Blur()
		m.status = "Search cancelled"
		return m, nil
	case m.cfg.Keys.Confirm, "enter":
		m.filter.SearchQuery = strings.TrimSpace(m.input.Value())
		m.refresh()
		m.mode = modeList
		m.input.Blur()
		if m.filter.SearchQuery == "" {
			m.status = "Search cleared"
		} else {
			m.status = fmt.Sprintf("%d tasks match \"%s\"", len(m.tasks), m.filter.SearchQuery)
		}
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.filter.SearchQuery = m.input.Value()
		m.refresh()
		return m, cmd
	}
}

func (m Model) startPath(action pathAction) (tea.Model, tea.Cmd) {
	m.mode = modePath
	m.path = action
	switch action {
	case pathExport:
		m.setInput(filepath.Join(m.cfg.ExportPath, store.DefaultExportName(m.store.Now())))
		m.input.Placeholder = "Export file"
		m.status = "Export to file: Enter to write, Esc to cancel"
	case pathImport:
		m.setInput("")
		m.input.Placeholder = "Import file"
		m.status = "Import replaces all tasks. Enter a file, Esc to cancel"
	}
	m.input.Focus()
	return m, nil
}

func (m Model) updatePathMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel, "esc":
		m.mode = modeList
		m.input.Blur()
		m.status = "Cancelled"
		return m, nil
	case m.cfg.Keys.Confirm, "enter":
		path := strings.TrimSpace(m.input.Value())
		if path == "" {
			m.status = "File path is required"
			return m, nil
		}
		m.mode = modeList
		m.input.Blur()
		if m.path == pathImport {
			m.status = "Importing " + path
			return m, importCmd(path)
		}
		m.status = "Exporting to " + path
		return m, exportCmd(path, m.store.Tasks())
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

// exportCmd writes a snapshot taken on the update loop, so the store itself
// is never touched off it.
func exportCmd(path string, tasks []task.Task) tea.Cmd {
	return func() tea.Msg {
		err := codec.WriteFile(path, tasks)
		return exportDoneMsg{path: path, count: len(tasks), err: err}
	}
}

func importCmd(path string) tea.Cmd {
	return func() tea.Msg {
		tasks, err := codec.ReadFile(path)
		return importLoadedMsg{path: path, tasks: tasks, err: err}
	}
}

func (m Model) exportDone(msg exportDoneMsg) Model {
	if msg.err != nil {
		m.log.Error("export tasks", "path", msg.path, "err", msg.err)
		m.status = fmt.Sprintf("export failed: %v", msg.err)
		return m
	}
	m.log.Info("exported tasks", "path", msg.path, "count", msg.count)
	m.status = fmt.Sprintf("Exported %d tasks to %s", msg.count, msg.path)
	return m
}

func (m Model) importLoaded(msg importLoadedMsg) Model {
	if msg.err != nil {
		m.log.Warn("import rejected", "path", msg.path, "err", msg.err)
		m.status = fmt.Sprintf("import failed: %v", msg.err)
		return m
	}
	m.store.Replace(m.ctx, msg.tasks)
	m.cursor = 0
	m.refresh()
	m.status = fmt.Sprintf("Imported %d tasks from %s", len(msg.tasks), msg.path)
	return m
}

func (m *Model) setInput(v string) {
	m.input.SetValue(v)
	m.input.CursorEnd()
}

// cycle steps through all and back to the zero value, which means no
// constraint.
func cycle[T comparable](all []T, cur T) T {
	var zero T
	if cur == zero {
		return all[0]
	}
	i := slices.Index(all, cur)
	if i < 0 || i == len(all)-1 {
		return zero
	}
	return all[i+1]
}

func orAll(v string) string {
	if v == "" {
		return "all"
	}
	return v
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}
