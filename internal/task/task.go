// Package task holds the task model and the pure query functions over it:
// validation, filtering, sorting and statistics.
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Next returns the status that follows s in the advance cycle
// pending -> in-progress -> completed -> pending.
func (s Status) Next() Status {
	switch s {
	case StatusPending:
		return StatusInProgress
	case StatusInProgress:
		return StatusCompleted
	default:
		return StatusPending
	}
}

func (s Status) Label() string {
	switch s {
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	default:
		return "Pending"
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Rank maps a priority onto its sort weight. Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", v)
	}
	return s, nil
}

func ParsePriority(v string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(v)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", v)
	}
	return p, nil
}

// Task is a single trackable item. Values are replaced, not mutated, by the
// store.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	DueDate     Date      `json:"dueDate"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FormData carries the caller-editable fields of a task.
type FormData struct {
	Title       string
	Description string
	Priority    Priority
	DueDate     string
}

// FormFrom fills a form with the editable fields of t.
func FormFrom(t Task) FormData {
	return FormData{
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		DueDate:     t.DueDate.String(),
	}
}

// Apply copies the form onto t. The form must already be validated.
func (f FormData) Apply(t Task) Task {
	t.Title = f.Title
	t.Description = f.Description
	t.Priority = f.Priority
	if !t.Priority.Valid() {
		t.Priority = PriorityMedium
	}
	if d, err := ParseDate(f.DueDate); err == nil {
		t.DueDate = d
	}
	return t
}

// NewID returns a time-ordered identifier. taken reports ids already in use.
func NewID(taken func(string) bool) string {
	for {
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		s := id.String()
		if taken == nil || !taken(s) {
			return s
		}
	}
}
