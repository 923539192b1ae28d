package workflow

import (
	"errors"
	"fmt"

	"eaiser/models"
)

// Step of the three-step wizard.
type Step int

const (
	StepEvidence Step = iota
	StepLocation
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepEvidence:
		return "evidence"
	case StepLocation:
		return "location"
	case StepReview:
		return "review"
	}
	return "unknown"
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(text []byte) error {
	for _, step := range []Step{StepEvidence, StepLocation, StepReview} {
		if step.String() == string(text) {
			*s = step
			return nil
		}
	}
	return fmt.Errorf("unknown step %q", text)
}

// MinZipLength is the zip length at which candidate authorities are fetched.
const MinZipLength = 5

var (
	ErrImageRequired    = errors.New("Upload a photo or switch to a manual report")
	ErrLocationRequired = errors.New("Enter an address, a zip code or drop a pin on the map")
	ErrBusy             = errors.New("A request is already in progress")
	ErrWrongStep        = errors.New("operation is not available at this step")
	ErrNotEditing       = errors.New("Turn on editing to change the report")
	ErrReasonRequired   = errors.New("Please provide a reason for declining")
	ErrNoReport         = errors.New("The server returned no report")
	ErrStale            = errors.New("the wizard has moved on, response discarded")
)

// review exists only while the wizard is on StepReview, so editing cannot be
// set anywhere else.
type review struct {
	issueID      string
	pristine     *models.Report
	editable     *models.Report
	editing      bool
	imageContent string
}

type state struct {
	step   Step
	manual bool
	draft  models.Draft
	review *review

	// busy names the backend call in flight: submit, accept or decline.
	busy string

	imageError  string
	failure     *Failure
	actionError string
	notice      string

	fetchedZip string
}
