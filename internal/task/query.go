package task

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// FilterSpec narrows a collection. Zero-valued fields impose no constraint.
type FilterSpec struct {
	Status      Status
	Priority    Priority
	SearchQuery string
}

func (f FilterSpec) IsEmpty() bool {
	return f.Status == "" && f.Priority == "" && strings.TrimSpace(f.SearchQuery) == ""
}

// Match reports whether t passes every active constraint of f.
func (f FilterSpec) Match(t Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if q := strings.TrimSpace(f.SearchQuery); q != "" {
		q = strings.ToLower(q)
		if !strings.Contains(strings.ToLower(t.Title), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}
	return true
}

// Filter returns the tasks matching spec in their original order. The
// result never aliases tasks.
func Filter(tasks []Task, spec FilterSpec) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if spec.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

type SortField string

const (
	SortByDueDate   SortField = "dueDate"
	SortByPriority  SortField = "priority"
	SortByCreatedAt SortField = "createdAt"
	SortByTitle     SortField = "title"
)

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

type SortSpec struct {
	Field SortField
	Order SortOrder
}

// DefaultSort orders by due date, soonest first.
var DefaultSort = SortSpec{Field: SortByDueDate, Order: Asc}

func (s SortSpec) Reversed() SortSpec {
	if s.Order == Desc {
		s.Order = Asc
	} else {
		s.Order = Desc
	}
	return s
}

func ParseSortSpec(field, order string) (SortSpec, bool) {
	spec := SortSpec{Field: SortField(strings.TrimSpace(field)), Order: SortOrder(strings.ToLower(strings.TrimSpace(order)))}
	switch spec.Field {
	case SortByDueDate, SortByPriority, SortByCreatedAt, SortByTitle:
	default:
		return DefaultSort, false
	}
	switch spec.Order {
	case Asc, Desc:
	default:
		return DefaultSort, false
	}
	return spec, true
}

// Sorter orders tasks. Titles are compared with the collation rules of its
// locale.
type Sorter struct {
	tag language.Tag
}

func NewSorter(locale string) Sorter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return Sorter{tag: tag}
}

// Sort returns a stably sorted copy of tasks.
func (s Sorter) Sort(tasks []Task, spec SortSpec) []Task {
	out := slices.Clone(tasks)
	if out == nil {
		out = []Task{}
	}
	var col *collate.Collator
	if spec.Field == SortByTitle {
		col = collate.New(s.tag)
	}
	cmp := func(a, b Task) int {
		var c int
		switch spec.Field {
		case SortByDueDate:
			c = a.DueDate.Compare(b.DueDate)
		case SortByCreatedAt:
			c = a.CreatedAt.Compare(b.CreatedAt)
		case SortByPriority:
			c = a.Priority.Rank() - b.Priority.Rank()
		case SortByTitle:
			c = col.CompareString(a.Title, b.Title)
		}
		if spec.Order == Desc {
			return -c
		}
		return c
	}
	slices.SortStableFunc(out, cmp)
	return out
}

// Sort orders tasks with English collation for titles.
func Sort(tasks []Task, spec SortSpec) []Task {
	return NewSorter("en").Sort(tasks, spec)
}
