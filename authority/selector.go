package authority

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"eaiser/api"
	"eaiser/backendclient"
	"eaiser/metrics"
	"eaiser/models"

	"github.com/apex/log"
)

var (
	ErrEmptySelection = errors.New("Select at least one authority before sending")
	ErrNoIssue        = errors.New("the report has not been submitted yet")
)

// Backend is the part of the backend client the selector needs.
type Backend interface {
	FetchAuthorities(ctx context.Context, zipCode string) (models.AuthorityGroups, error)
	SendAuthorityEmails(ctx context.Context, args api.SendEmailsArgs) error
}

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Status is the observable state of one selector operation.
type Status struct {
	State State  `json:"state"`
	Text  string `json:"text"`
}

// Selector holds the fetched candidates for a postal code and the user's
// selection, keyed by name and type.
type Selector struct {
	backend Backend

	mu         sync.Mutex
	zipCode    string
	groups     models.AuthorityGroups
	candidates []models.Authority
	selected   map[models.AuthorityKey]models.Authority
	order      []models.AuthorityKey
	fetchSeq   uint64
	fetch      Status
	send       Status
	open       bool
}

func NewSelector(backend Backend) *Selector {
	return &Selector{
		backend:  backend,
		selected: make(map[models.AuthorityKey]models.Authority),
		fetch:    Status{State: StateIdle},
		send:     Status{State: StateIdle},
	}
}

// Load fetches candidates for zip. When loads overlap, the most recently
// started one owns the candidate list.
func (s *Selector) Load(ctx context.Context, zipCode string) error {
	zipCode = strings.TrimSpace(zipCode)

	s.mu.Lock()
	s.fetchSeq++
	seq := s.fetchSeq
	s.zipCode = zipCode
	s.fetch = Status{State: StateLoading, Text: "Loading authorities..."}
	s.mu.Unlock()

	groups, err := s.backend.FetchAuthorities(ctx, zipCode)
	metrics.AuthorityRequestsTotal.WithLabelValues("fetch", metrics.Result(err)).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.fetchSeq {
		log.Debugf("Discarding authorities for %s, a newer fetch started", zipCode)
		return err
	}
	if err != nil {
		s.fetch = Status{State: StateFailed, Text: "Failed to load authorities: " + detail(err)}
		return err
	}

	s.groups = groups
	s.candidates = groups.Flatten()
	if len(s.candidates) == 0 {
		s.fetch = Status{State: StateDone, Text: "No authorities found for this zip code"}
	} else {
		s.fetch = Status{State: StateDone, Text: fmt.Sprintf("Found %d authorities", len(s.candidates))}
	}
	return nil
}

func (s *Selector) ZipCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zipCode
}

// Candidates returns the fetched authorities, types in lexical order.
func (s *Selector) Candidates() []models.Authority {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Authority(nil), s.candidates...)
}

func (s *Selector) Groups() models.AuthorityGroups {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(models.AuthorityGroups, len(s.groups))
	for t, list := range s.groups {
		out[t] = append([]models.Authority(nil), list...)
	}
	return out
}

// Toggle flips membership of a and reports whether it is now selected.
func (s *Selector) Toggle(a models.Authority) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := a.Key()
	if _, ok := s.selected[key]; ok {
		delete(s.selected, key)
		for i, k := range s.order {
			if k == key {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return false
	}
	s.selected[key] = a
	s.order = append(s.order, key)
	return true
}

func (s *Selector) IsSelected(a models.Authority) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.selected[a.Key()]
	return ok
}

// Selected returns the selection in the order it was made.
func (s *Selector) Selected() []models.Authority {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Authority, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.selected[k])
	}
	return out
}

// SetSelected replaces the selection, dropping duplicate keys.
func (s *Selector) SetSelected(list []models.Authority) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[models.AuthorityKey]models.Authority, len(list))
	s.order = s.order[:0]
	for _, a := range list {
		key := a.Key()
		if _, ok := s.selected[key]; ok {
			continue
		}
		s.selected[key] = a
		s.order = append(s.order, key)
	}
}

func (s *Selector) Open() {
	s.mu.Lock()
	s.open = true
	s.mu.Unlock()
}

func (s *Selector) Close() {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
}

func (s *Selector) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Save writes the selection into the report's authorities and closes the selector.
func (s *Selector) Save(report *models.Report) {
	selected := s.Selected()
	if report != nil {
		report.ResponsibleAuthorities = selected
	}
	s.Close()
}

// Send asks the backend to notify the selected authorities.
func (s *Selector) Send(ctx context.Context, issueID string, report *models.Report, zipCode string) error {
	selected := s.Selected()
	if len(selected) == 0 {
		s.setSend(Status{State: StateFailed, Text: ErrEmptySelection.Error()})
		return ErrEmptySelection
	}
	if issueID == "" {
		s.setSend(Status{State: StateFailed, Text: "Submit the report before notifying authorities"})
		return ErrNoIssue
	}

	s.setSend(Status{State: StateLoading, Text: "Sending emails..."})
	err := s.backend.SendAuthorityEmails(ctx, api.SendEmailsArgs{
		IssueID:     issueID,
		Authorities: selected,
		ReportData:  report,
		ZipCode:     strings.TrimSpace(zipCode),
	})
	metrics.AuthorityRequestsTotal.WithLabelValues("send", metrics.Result(err)).Inc()
	if err != nil {
		s.setSend(Status{State: StateFailed, Text: "Failed to send emails: " + detail(err)})
		return err
	}
	s.setSend(Status{State: StateDone, Text: fmt.Sprintf("Emails sent to %d authorities", len(selected))})
	return nil
}

func (s *Selector) FetchStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetch
}

func (s *Selector) SendStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send
}

func (s *Selector) setSend(st Status) {
	s.mu.Lock()
	s.send = st
	s.mu.Unlock()
}

func detail(err error) string {
	var apiErr *backendclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return err.Error()
}
