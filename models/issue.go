package models

import (
	"strings"
	"time"
)

type IssueStatus string

const (
	StatusResolved   IssueStatus = "resolved"
	StatusInProgress IssueStatus = "in-progress"
	StatusRejected   IssueStatus = "rejected"
	StatusPending    IssueStatus = "pending"
)

// Issue is a dashboard row. Read-only on the client.
type Issue struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Location string `json:"location"`
	Date     string `json:"date"`
}

var issueDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizedStatus folds the backend's status spellings into the four
// dashboard buckets. Anything unknown is pending.
func (i Issue) NormalizedStatus() IssueStatus {
	s := strings.ToLower(strings.TrimSpace(i.Status))
	s = strings.NewReplacer("_", "-", " ", "-").Replace(s)
	switch s {
	case "resolved", "completed", "closed":
		return StatusResolved
	case "in-progress", "inprogress", "accepted", "assigned":
		return StatusInProgress
	case "rejected", "declined":
		return StatusRejected
	default:
		return StatusPending
	}
}

// ParsedDate returns the issue date, or the zero time when it cannot be parsed.
func (i Issue) ParsedDate() time.Time {
	d := strings.TrimSpace(i.Date)
	for _, layout := range issueDateLayouts {
		if t, err := time.Parse(layout, d); err == nil {
			return t
		}
	}
	return time.Time{}
}
