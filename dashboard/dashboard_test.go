package dashboard

import (
	"context"
	"errors"
	"testing"

	"eaiser/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	issues []models.Issue
	err    error
	calls  int
}

func (l *fakeLister) ListIssues(context.Context) ([]models.Issue, error) {
	l.calls++
	return l.issues, l.err
}

type event struct {
	topic, eventType string
	data             interface{}
}

type fakeBroadcaster struct {
	events []event
}

func (b *fakeBroadcaster) Broadcast(topic, eventType string, data interface{}) {
	b.events = append(b.events, event{topic, eventType, data})
}

func TestLoadFallsBackOnError(t *testing.T) {
	lister := &fakeLister{err: errors.New("dial tcp: connection refused")}
	s := NewService(lister, nil, "issues")

	v := s.Load(context.Background())
	assert.True(t, v.Fallback)
	require.Len(t, v.Issues, 4)
	assert.Equal(t, Summary{
		Total:      4,
		Resolved:   1,
		InProgress: 2,
		Rejected:   1,
		Recent:     v.Summary.Recent,
	}, v.Summary)
	assert.Len(t, v.Summary.Recent, 4)
	assert.Equal(t, "demo-3", v.Summary.Recent[0].ID)
}

func TestLoadFetchesOnce(t *testing.T) {
	lister := &fakeLister{issues: []models.Issue{{ID: "1", Status: "Resolved", Date: "2024-01-01"}}}
	s := NewService(lister, nil, "issues")

	first := s.Load(context.Background())
	second := s.Load(context.Background())
	assert.Equal(t, 1, lister.calls)
	assert.Equal(t, first, second)
	assert.False(t, first.Fallback)
	assert.Equal(t, 1, first.Summary.Resolved)
}

func TestRefreshBroadcasts(t *testing.T) {
	lister := &fakeLister{}
	b := &fakeBroadcaster{}
	s := NewService(lister, b, "issues")

	s.Load(context.Background())
	lister.issues = []models.Issue{{ID: "new", Status: "pending"}}
	v := s.Refresh(context.Background())

	assert.Equal(t, 2, lister.calls)
	assert.Equal(t, 1, v.Summary.Total)
	require.Len(t, b.events, 1)
	assert.Equal(t, "issues", b.events[0].topic)
	assert.Equal(t, EventRefresh, b.events[0].eventType)
}

func TestSummarizeRecentOrder(t *testing.T) {
	var issues []models.Issue
	for i, d := range []string{"2024-01-03", "2024-01-07", "bad date", "2024-01-01", "2024-01-05", "2024-01-06", "2024-01-02T10:00:00Z"} {
		issues = append(issues, models.Issue{ID: string(rune('a' + i)), Date: d, Status: "in_progress"})
	}

	sum := Summarize(issues)
	assert.Equal(t, 7, sum.Total)
	assert.Equal(t, 7, sum.InProgress)
	require.Len(t, sum.Recent, RecentLimit)

	var ids []string
	for _, issue := range sum.Recent {
		ids = append(ids, issue.ID)
	}
	assert.Equal(t, []string{"b", "f", "e", "a", "g"}, ids)
	assert.Equal(t, "c", issues[2].ID, "input must not be reordered")
}

func TestSummarizeEmpty(t *testing.T) {
	sum := Summarize(nil)
	assert.Equal(t, 0, sum.Total)
	assert.Empty(t, sum.Recent)
}
