package workflow

import (
	"errors"
	"strings"

	"eaiser/backendclient"
)

// FailureClass groups submission rejections by what the user should fix.
type FailureClass string

const (
	FailureIntegrity FailureClass = "integrity"
	FailureQuality   FailureClass = "quality"
	FailureGeneric   FailureClass = "generic"
)

var (
	integrityKeywords = []string{"fake", "ai-generated", "manipulated"}
	qualityKeywords   = []string{"blurry", "unclear"}
)

func (c FailureClass) Title() string {
	switch c {
	case FailureIntegrity:
		return "Image Authenticity Check Failed"
	case FailureQuality:
		return "Image Quality Too Low"
	}
	return "Submission Failed"
}

// Failure is a classified submission error. The user can always retry from
// the location step.
type Failure struct {
	Class   FailureClass `json:"class"`
	Title   string       `json:"title"`
	Message string       `json:"message"`
}

func (f *Failure) Error() string {
	return f.Title + ": " + f.Message
}

// Classify turns a backend error into a Failure.
func Classify(err error) *Failure {
	msg := DetailOf(err)
	class := ClassifyMessage(msg)
	return &Failure{Class: class, Title: class.Title(), Message: msg}
}

func ClassifyMessage(msg string) FailureClass {
	lower := strings.ToLower(msg)
	for _, k := range integrityKeywords {
		if strings.Contains(lower, k) {
			return FailureIntegrity
		}
	}
	for _, k := range qualityKeywords {
		if strings.Contains(lower, k) {
			return FailureQuality
		}
	}
	return FailureGeneric
}

// DetailOf returns the server detail message when err carries one.
func DetailOf(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *backendclient.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}
