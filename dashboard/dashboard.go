package dashboard

import (
	"context"
	"sort"
	"sync"

	"eaiser/metrics"
	"eaiser/models"

	"github.com/apex/log"
)

// RecentLimit is the length of the recent-activity feed.
const RecentLimit = 5

// EventRefresh is broadcast after every refresh.
const EventRefresh = "issues.refresh"

// Lister fetches the issue list.
type Lister interface {
	ListIssues(ctx context.Context) ([]models.Issue, error)
}

// Broadcaster publishes dashboard events to live viewers.
type Broadcaster interface {
	Broadcast(topic, eventType string, data interface{})
}

// Summary holds the derived dashboard figures.
type Summary struct {
	Total      int            `json:"total"`
	Resolved   int            `json:"resolved"`
	InProgress int            `json:"in_progress"`
	Rejected   int            `json:"rejected"`
	Recent     []models.Issue `json:"recent"`
}

// View is what the dashboard renders.
type View struct {
	Issues   []models.Issue `json:"issues"`
	Summary  Summary        `json:"summary"`
	Fallback bool           `json:"fallback"`
}

type Service struct {
	lister      Lister
	broadcaster Broadcaster
	topic       string

	mu     sync.Mutex
	loaded bool
	view   View
}

func NewService(lister Lister, broadcaster Broadcaster, topic string) *Service {
	return &Service{lister: lister, broadcaster: broadcaster, topic: topic}
}

// Load fetches the list the first time it is called and returns the cached
// view afterwards.
func (s *Service) Load(ctx context.Context) View {
	s.mu.Lock()
	if s.loaded {
		v := s.view
		s.mu.Unlock()
		return v
	}
	s.mu.Unlock()

	return s.fetch(ctx)
}

// Refresh refetches and notifies live viewers.
func (s *Service) Refresh(ctx context.Context) View {
	v := s.fetch(ctx)
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(s.topic, EventRefresh, v)
	}
	return v
}

func (s *Service) fetch(ctx context.Context) View {
	issues, err := s.lister.ListIssues(ctx)
	metrics.DashboardLoadsTotal.WithLabelValues(metrics.Result(err)).Inc()

	v := View{Issues: issues}
	if err != nil {
		log.Warnf("Failed to fetch issues, showing demonstration data: %v", err)
		v = View{Issues: FallbackIssues(), Fallback: true}
	}
	v.Summary = Summarize(v.Issues)

	s.mu.Lock()
	s.loaded = true
	s.view = v
	s.mu.Unlock()
	return v
}

// Summarize derives counts and the recent feed from issues.
func Summarize(issues []models.Issue) Summary {
	sum := Summary{Total: len(issues)}
	for _, issue := range issues {
		switch issue.NormalizedStatus() {
		case models.StatusResolved:
			sum.Resolved++
		case models.StatusInProgress:
			sum.InProgress++
		case models.StatusRejected:
			sum.Rejected++
		}
	}

	recent := append([]models.Issue(nil), issues...)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].ParsedDate().After(recent[j].ParsedDate())
	})
	if len(recent) > RecentLimit {
		recent = recent[:RecentLimit]
	}
	sum.Recent = recent
	return sum
}

// FallbackIssues is the demonstration set shown when the backend is unreachable.
func FallbackIssues() []models.Issue {
	return []models.Issue{
		{ID: "demo-1", Title: "Pothole on Main Street", Status: "resolved", Priority: "high", Location: "Main St & 5th Ave", Date: "2024-03-12"},
		{ID: "demo-2", Title: "Broken streetlight", Status: "in-progress", Priority: "medium", Location: "Oak Avenue", Date: "2024-03-15"},
		{ID: "demo-3", Title: "Overflowing trash bin", Status: "in-progress", Priority: "low", Location: "Central Park entrance", Date: "2024-03-18"},
		{ID: "demo-4", Title: "Graffiti on bus stop", Status: "rejected", Priority: "low", Location: "Elm Street stop", Date: "2024-03-10"},
	}
}
