package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"taskdash/internal/config"
	"taskdash/internal/task"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	statsStyle   = lipgloss.NewStyle().Faint(true)
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	doneStyle    = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	priorityStyles = map[task.Priority]lipgloss.Style{
		task.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		task.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		task.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	}
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Task Dashboard"))
	b.WriteString("\n")
	b.WriteString(statsStyle.Render(renderStats(m.stats)))
	b.WriteString("\n")
	b.WriteString(m.renderQuery())
	b.WriteString("\n\n")

	switch {
	case m.store.Len() == 0:
		b.WriteString(fmt.Sprintf("No tasks yet. Press '%s' to add one.", m.cfg.Keys.Add))
	case len(m.tasks) == 0:
		b.WriteString("No tasks match the current filters.")
	default:
		b.WriteString(m.renderTaskList())
	}

	b.WriteString("\n---\n")

	switch {
	case m.form != nil:
		b.WriteString(boxStyle.Render(strings.TrimRight(m.renderFormBox(), "\n")))
		b.WriteString("\n")
		b.WriteString("Field: " + m.form.currentLabel())
		b.WriteString("\n")
		b.WriteString(m.input.View())
	case m.mode == modeSearch:
		b.WriteString("Search: ")
		b.WriteString(m.input.View())
	case m.mode == modePath:
		label := "Export to: "
		if m.path == pathImport {
			label = "Import from: "
		}
		b.WriteString(label)
		b.WriteString(m.input.View())
	default:
		b.WriteString(m.renderDetailPanel())
	}

	b.WriteString("\n\n")
	b.WriteString(m.status)
	b.WriteString("\n")
	b.WriteString(renderHelp(m.cfg.Keys))

	return b.String()
}

func renderStats(s task.Stats) string {
	return fmt.Sprintf("Total %d • Pending %d • In progress %d • Completed %d • High %d • Overdue %d",
		s.Total, s.Pending, s.InProgress, s.Completed, s.HighPriority, s.Overdue)
}

func (m Model) renderQuery() string {
	q := fmt.Sprintf("Status: %s • Priority: %s", orAll(string(m.filter.Status)), orAll(string(m.filter.Priority)))
	if s := strings.TrimSpace(m.filter.SearchQuery); s != "" {
		q += fmt.Sprintf(" • Search: \"%s\"", s)
	}
	q += fmt.Sprintf(" • Sort: %s %s", m.sort.Field, m.sort.Order)
	return q
}

func renderHelp(k config.Keymap) string {
	return fmt.Sprintf("%s/%s move • %s add • %s edit • space advance • %s/%s/%s set status • %s delete • %s detail\n"+
		"%s status • %s priority • %s search • %s clear • %s/%s/%s/%s sort • %s reverse • %s export • %s import • %s quit",
		k.Up, k.Down, k.Add, k.Edit, k.StatusPending, k.StatusProgress, k.StatusDone, k.Delete, k.Detail,
		k.Filter, k.FilterPriority, k.Search, k.ClearFilter, k.SortDue, k.SortPriority, k.SortCreated, k.SortTitle,
		k.Reverse, k.Export, k.Import, k.Quit)
}

func (m Model) renderTaskList() string {
	now := m.store.Now()
	var b strings.Builder
	for i, t := range m.tasks {
		cursor := " "
		if m.cursor == i && m.mode == modeList {
			cursor = ">"
		}

		title := t.Title
		if t.Status == task.StatusCompleted {
			title = doneStyle.Render(title)
		}
		due := "due " + t.DueDate.Display()
		if t.Overdue(now) {
			due = overdueStyle.Render(due + " (overdue)")
		}

		b.WriteString(fmt.Sprintf("%s %s %s %s  %s\n", cursor, statusBox(t.Status), priorityTag(t.Priority), title, due))
	}
	return b.String()
}

func statusBox(s task.Status) string {
	switch s {
	case task.StatusInProgress:
		return "[~]"
	case task.StatusCompleted:
		return "[x]"
	default:
		return "[ ]"
	}
}

func priorityTag(p task.Priority) string {
	tag := fmt.Sprintf("%-6s", p)
	if style, ok := priorityStyles[p]; ok {
		return style.Render(tag)
	}
	return tag
}

func (m Model) renderFormBox() string {
	if m.form == nil {
		return ""
	}
	header := "New task"
	if m.form.taskID != "" {
		header = "Edit task"
	}
	values := []string{
		m.form.title,
		m.form.description,
		m.form.priority,
		m.form.due,
	}
	var b strings.Builder
	b.WriteString(header + "\n")
	for i, name := range formFields() {
		prefix := " "
		if i == m.form.index {
			prefix = ">"
		}
		val := values[i]
		if strings.TrimSpace(val) == "" {
			val = "(empty)"
		}
		b.WriteString(fmt.Sprintf("%s %-26s : %s\n", prefix, name, val))
		if f, ok := (formState{index: i}).validatedField(); ok {
			if err := m.form.errs[f]; err != nil {
				b.WriteString(errorStyle.Render("    " + err.Error()))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func (m Model) renderDetailPanel() string {
	t, ok := m.current()
	if !ok {
		return "No task selected"
	}
	var b strings.Builder
	b.WriteString("Details\n")
	b.WriteString(fmt.Sprintf("Title       : %s\n", t.Title))
	b.WriteString(fmt.Sprintf("Status      : %s\n", t.Status.Label()))
	b.WriteString(fmt.Sprintf("Priority    : %s\n", t.Priority))
	b.WriteString(fmt.Sprintf("Due         : %s\n", t.DueDate.Display()))
	b.WriteString(fmt.Sprintf("Created     : %s\n", t.CreatedAt.Local().Format("Jan 2, 2006 15:04")))
	b.WriteString(fmt.Sprintf("Description : %s\n", emptyPlaceholder(t.Description)))
	return b.String()
}

func emptyPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(empty)"
	}
	return v
}
