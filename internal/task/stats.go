package task

import "time"

type Stats struct {
	Total        int
	Pending      int
	InProgress   int
	Completed    int
	HighPriority int
	Overdue      int
}

// IsOverdue reports whether a task due on dueDate with the given status is
// past due at now. Completed tasks and unset dates are never overdue.
func IsOverdue(dueDate Date, status Status, now time.Time) bool {
	if status == StatusCompleted || dueDate.IsZero() {
		return false
	}
	return dueDate.Before(DateOf(now))
}

func (t Task) Overdue(now time.Time) bool {
	return IsOverdue(t.DueDate, t.Status, now)
}

// CalculateStats summarizes the full collection in one pass.
func CalculateStats(tasks []Task, now time.Time) Stats {
	st := Stats{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case StatusPending:
			st.Pending++
		case StatusInProgress:
			st.InProgress++
		case StatusCompleted:
			st.Completed++
		}
		if t.Priority == PriorityHigh {
			st.HighPriority++
		}
		if t.Overdue(now) {
			st.Overdue++
		}
	}
	return st
}
