package ui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"taskdash/internal/task"
)

// formState backs the add and edit form. An empty taskID means a new task.
type formState struct {
	taskID      string
	title       string
	description string
	priority    string
	due         string
	index       int
	touched     map[task.Field]bool
	errs        map[task.Field]error
}

func formFields() []string {
	return []string{"title", "description", "priority (low/medium/high)", "due date (YYYY-MM-DD)"}
}

func (fs formState) currentLabel() string {
	return formFields()[fs.index]
}

func (fs formState) currentValue() string {
	switch fs.index {
	case 0:
		return fs.title
	case 1:
		return fs.description
	case 2:
		return fs.priority
	case 3:
		return fs.due
	default:
		return ""
	}
}

func (fs *formState) setCurrentValue(v string) {
	switch fs.index {
	case 0:
		fs.title = v
	case 1:
		fs.description = v
	case 2:
		fs.priority = v
	case 3:
		fs.due = v
	}
}

// validatedField maps the focused row to the field validation knows about.
func (fs formState) validatedField() (task.Field, bool) {
	switch fs.index {
	case 0:
		return task.FieldTitle, true
	case 3:
		return task.FieldDueDate, true
	}
	return 0, false
}

func fieldIndex(f task.Field) int {
	if f == task.FieldDueDate {
		return 3
	}
	return 0
}

func (m Model) startForm(t *task.Task) (tea.Model, tea.Cmd) {
	fs := &formState{
		priority: string(task.PriorityMedium),
		touched:  map[task.Field]bool{},
		errs:     map[task.Field]error{},
	}
	m.status = "New task: tab to move, enter to save/next, esc to cancel"
	if t != nil {
		form := task.FormFrom(*t)
		fs.taskID = t.ID
		fs.title = form.Title
		fs.description = form.Description
		fs.priority = string(form.Priority)
		fs.due = form.DueDate
		m.status = "Edit task: tab to move, enter to save/next, esc to cancel"
	}
	m.form = fs
	m.mode = modeForm
	m.setInput(fs.currentValue())
	m.input.Placeholder = fs.currentLabel()
	m.input.Focus()
	return m, nil
}

func (m Model) updateFormMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel, "esc":
		m.form = nil
		m.mode = modeList
		m.input.Blur()
		m.status = "Edit cancelled"
		return m, nil
	case "tab", "down":
		m.leaveField()
		m.focusField(wrapIndex(m.form.index+1, len(formFields())))
		return m, nil
	case "shift+tab", "up":
		m.leaveField()
		m.focusField(wrapIndex(m.form.index-1, len(formFields())))
		return m, nil
	case m.cfg.Keys.Confirm, "enter":
		m.leaveField()
		if m.form.index >= len(formFields())-1 {
			return m.saveForm()
		}
		m.focusField(m.form.index + 1)
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.form.setCurrentValue(m.input.Value())
		if f, ok := m.form.validatedField(); ok && m.form.touched[f] {
			m.validateField(f)
		}
		return m, cmd
	}
}

// leaveField stores the input and validates the field being left.
func (m *Model) leaveField() {
	m.form.setCurrentValue(m.input.Value())
	if f, ok := m.form.validatedField(); ok {
		m.form.touched[f] = true
		m.validateField(f)
	}
}

func (m *Model) validateField(f task.Field) {
	value := m.form.title
	if f == task.FieldDueDate {
		value = m.form.due
	}
	if err := task.ValidateField(f, value, m.store.Now()); err != nil {
		m.form.errs[f] = err
	} else {
		delete(m.form.errs, f)
	}
}

func (m *Model) focusField(idx int) {
	m.form.index = idx
	m.setInput(m.form.currentValue())
	m.input.Placeholder = m.form.currentLabel()
	m.status = m.formPrompt()
}

func (m Model) saveForm() (tea.Model, tea.Cmd) {
	fs := m.form
	priority := task.PriorityMedium
	if strings.TrimSpace(fs.priority) != "" {
		p, err := task.ParsePriority(fs.priority)
		if err != nil {
			m.status = fmt.Sprintf("priority invalid: %v", err)
			m.focusField(2)
			return m, nil
		}
		priority = p
	}
	form := task.FormData{
		Title:       fs.title,
		Description: fs.description,
		Priority:    priority,
		DueDate:     strings.TrimSpace(fs.due),
	}

	var (
		saved task.Task
		err   error
	)
	if fs.taskID == "" {
		saved, err = m.store.Create(m.ctx, form)
	} else {
		saved, err = m.store.Update(m.ctx, fs.taskID, form)
	}
	if err != nil {
		if !errors.Is(err, task.ErrValidation) {
			m.status = fmt.Sprintf("save failed: %v", err)
			return m, nil
		}
		fs.errs = task.FieldErrors(err)
		first := -1
		for f := range fs.errs {
			fs.touched[f] = true
			if i := fieldIndex(f); first < 0 || i < first {
				first = i
			}
		}
		m.focusField(max(first, 0))
		m.status = "Fix the highlighted fields"
		return m, nil
	}

	verb := "Added task"
	if fs.taskID != "" {
		verb = "Task updated"
	}
	m.form = nil
	m.mode = modeList
	m.input.Blur()
	m.refresh()
	m.selectID(saved.ID)
	m.status = verb
	return m, nil
}

func (m Model) formPrompt() string {
	if m.form == nil {
		return ""
	}
	return fmt.Sprintf("Editing %s (field %d of %d). Enter to advance, Esc to cancel, tab to move.",
		m.form.currentLabel(), m.form.index+1, len(formFields()))
}

func wrapIndex(idx, n int) int {
	if n <= 0 {
		return 0
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}
