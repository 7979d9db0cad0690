package task

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.December, 10, 15, 30, 0, 0, time.Local)

func TestStatusNext_Cycles(t *testing.T) {
	assert.Equal(t, StatusInProgress, StatusPending.Next())
	assert.Equal(t, StatusCompleted, StatusInProgress.Next())
	assert.Equal(t, StatusPending, StatusCompleted.Next())
}

func TestPriorityRank(t *testing.T) {
	assert.Equal(t, 3, PriorityHigh.Rank())
	assert.Equal(t, 2, PriorityMedium.Rank())
	assert.Equal(t, 1, PriorityLow.Rank())
	assert.Equal(t, 0, Priority("urgent").Rank())
	assert.False(t, Priority("").Valid())
}

func TestParseStatusAndPriority(t *testing.T) {
	s, err := ParseStatus(" In-Progress ")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, s)

	_, err = ParseStatus("done")
	assert.Error(t, err)

	p, err := ParsePriority("HIGH")
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, p)
}

func TestDate_JSON(t *testing.T) {
	d := NewDate(2025, time.December, 25)
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2025-12-25"`, string(b))

	var got Date
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, d, got)

	assert.Error(t, json.Unmarshal([]byte(`20251225`), &got))
	assert.Error(t, json.Unmarshal([]byte(`"25/12/2025"`), &got))
}

func TestDate_Display(t *testing.T) {
	assert.Equal(t, "Dec 25, 2025", NewDate(2025, time.December, 25).Display())
	assert.Equal(t, "", Date{}.Display())
}

func TestDateOf_DropsTimeOfDay(t *testing.T) {
	assert.Equal(t, NewDate(2025, time.December, 10), DateOf(now))
	assert.Equal(t, 0, DateOf(now).Compare(DateOf(now.Add(-15*time.Hour))))
}

func TestFormApply_KeepsIdentity(t *testing.T) {
	created := now.Add(-time.Hour)
	orig := Task{ID: "x", Title: "Old", Status: StatusInProgress, Priority: PriorityLow, CreatedAt: created}

	got := FormData{Title: "New title", Description: "d", Priority: PriorityHigh, DueDate: "2025-12-31"}.Apply(orig)

	assert.Equal(t, "x", got.ID)
	assert.Equal(t, StatusInProgress, got.Status)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, "New title", got.Title)
	assert.Equal(t, PriorityHigh, got.Priority)
	assert.Equal(t, NewDate(2025, time.December, 31), got.DueDate)
	assert.Equal(t, "Old", orig.Title)
}

func TestFormApply_DefaultsPriority(t *testing.T) {
	got := FormData{Title: "abc", DueDate: "2025-12-31"}.Apply(Task{})
	assert.Equal(t, PriorityMedium, got.Priority)
}

func TestNewID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for range 200 {
		id := NewID(func(s string) bool { return seen[s] })
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestNewID_RetriesOnCollision(t *testing.T) {
	calls := 0
	id := NewID(func(string) bool {
		calls++
		return calls == 1
	})
	assert.NotEmpty(t, id)
	assert.Equal(t, 2, calls)
}
