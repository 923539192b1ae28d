package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"eaiser/authority"
	"eaiser/backendclient"
	eimage "eaiser/image"
	"eaiser/location"
	"eaiser/metrics"
	"eaiser/models"

	"github.com/apex/log"
)

const (
	thankYouNotice      = "Thank you! Your report has been submitted to the authorities."
	authorityFetchLimit = 30 * time.Second
)

// Backend is the part of the backend client the wizard drives.
type Backend interface {
	authority.Backend
	SubmitIssue(ctx context.Context, s backendclient.Submission) (*backendclient.SubmitResult, error)
	AcceptIssue(ctx context.Context, issueID string, report *models.Report, selected []models.Authority) (string, error)
	DeclineIssue(ctx context.Context, issueID, reason string, report *models.Report) (*models.Report, error)
}

type Option func(*Controller)

func WithAcquirer(a *eimage.Acquirer) Option {
	return func(c *Controller) { c.acquirer = a }
}

// WithRefresher sets the callback run once after every successful accept.
func WithRefresher(fn func(ctx context.Context)) Option {
	return func(c *Controller) { c.refresh = fn }
}

func WithObserver(fn func(Snapshot)) Option {
	return func(c *Controller) { c.observers = append(c.observers, fn) }
}

// Controller is the report wizard: evidence, location, review.
type Controller struct {
	backend  Backend
	acquirer *eimage.Acquirer
	refresh  func(ctx context.Context)

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	obsMu     sync.Mutex
	observers []func(Snapshot)

	mu       sync.Mutex
	st       state
	epoch    uint64
	selector *authority.Selector
}

func New(backend Backend, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend:  backend,
		baseCtx:  ctx,
		cancel:   cancel,
		selector: authority.NewSelector(backend),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.acquirer == nil {
		c.acquirer = eimage.NewAcquirer()
	}
	return c
}

// Subscribe registers an observer and returns a function removing it.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observers = append(c.observers, fn)
	idx := len(c.observers) - 1
	return func() {
		c.obsMu.Lock()
		defer c.obsMu.Unlock()
		if idx < len(c.observers) {
			c.observers[idx] = nil
		}
	}
}

// AttachImage runs a picked file through acquisition and, on success,
// advances to the location step. On failure the previous image is kept.
func (c *Controller) AttachImage(ctx context.Context, name string, data []byte) error {
	if err := c.requireBefore(StepReview); err != nil {
		return err
	}
	acquired, err := c.acquirer.FromFile(ctx, name, data)
	if err != nil {
		c.mu.Lock()
		c.st.imageError = err.Error()
		c.mu.Unlock()
		c.notify()
		return err
	}
	return c.AttachAcquired(acquired)
}

// AttachAcquired stores an already acquired image, e.g. a camera capture.
func (c *Controller) AttachAcquired(a *eimage.Acquired) error {
	if a == nil || len(a.Data) == 0 {
		return ErrImageRequired
	}

	c.mu.Lock()
	if c.st.step == StepReview {
		c.mu.Unlock()
		return ErrWrongStep
	}
	c.st.draft.Image = a.Data
	c.st.draft.ImageName = a.Name
	c.st.draft.ImageType = a.ContentType
	c.st.manual = false
	c.st.imageError = ""
	c.st.notice = ""
	c.st.step = StepLocation
	c.mu.Unlock()

	log.Infof("Image attached: %s (%d bytes)", a.Name, len(a.Data))
	c.notify()
	return nil
}

// SetManual switches manual mode. Entering it discards any acquired image.
func (c *Controller) SetManual(enabled bool) error {
	c.mu.Lock()
	if c.st.step == StepReview {
		c.mu.Unlock()
		return ErrWrongStep
	}
	c.st.manual = enabled
	if enabled {
		c.st.draft.ClearImage()
		c.st.imageError = ""
	} else if c.st.step == StepLocation && !c.st.draft.HasImage() {
		c.st.step = StepEvidence
	}
	c.st.notice = ""
	c.mu.Unlock()

	c.notify()
	return nil
}

// Next moves from evidence to location.
func (c *Controller) Next() error {
	c.mu.Lock()
	if c.st.step != StepEvidence {
		c.mu.Unlock()
		return ErrWrongStep
	}
	if !c.st.draft.HasImage() && !c.st.manual {
		c.st.imageError = ErrImageRequired.Error()
		c.mu.Unlock()
		c.notify()
		return ErrImageRequired
	}
	c.st.step = StepLocation
	c.st.imageError = ""
	c.mu.Unlock()

	c.notify()
	return nil
}

// Back moves from location to evidence.
func (c *Controller) Back() error {
	c.mu.Lock()
	if c.st.step != StepLocation || c.st.busy != "" {
		c.mu.Unlock()
		return ErrWrongStep
	}
	c.st.step = StepEvidence
	c.mu.Unlock()

	c.notify()
	return nil
}

// SetLocation stores a resolved location record in the draft.
func (c *Controller) SetLocation(rec location.Record) error {
	c.mu.Lock()
	if c.st.step == StepReview {
		c.mu.Unlock()
		return ErrWrongStep
	}
	c.st.draft.Address = rec.Address
	c.st.draft.ZipCode = strings.TrimSpace(rec.ZipCode)
	c.st.draft.Coordinates = nil
	if rec.Coordinates != nil {
		coords := *rec.Coordinates
		c.st.draft.Coordinates = &coords
	}
	c.maybeFetchAuthoritiesLocked(c.st.draft.ZipCode)
	c.mu.Unlock()

	c.notify()
	return nil
}

func (c *Controller) SetAddress(address string) error {
	return c.updateDraft(func(d *models.Draft) { d.Address = address })
}

func (c *Controller) SetZip(zip string) error {
	return c.updateDraft(func(d *models.Draft) { d.ZipCode = strings.TrimSpace(zip) })
}

func (c *Controller) updateDraft(fn func(*models.Draft)) error {
	c.mu.Lock()
	if c.st.step == StepReview {
		c.mu.Unlock()
		return ErrWrongStep
	}
	fn(&c.st.draft)
	c.maybeFetchAuthoritiesLocked(c.st.draft.ZipCode)
	c.mu.Unlock()

	c.notify()
	return nil
}

// Submit posts the draft. Only one submission may be in flight.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.st.busy != "" {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.st.step != StepLocation {
		c.mu.Unlock()
		return ErrWrongStep
	}
	if !c.st.draft.HasImage() && !c.st.manual {
		c.mu.Unlock()
		return ErrImageRequired
	}
	if !c.st.draft.HasLocation() {
		c.mu.Unlock()
		return ErrLocationRequired
	}

	c.epoch++
	epoch := c.epoch
	c.st.busy = "submit"
	c.st.failure = nil
	c.st.notice = ""
	manual := c.st.manual
	draft := c.st.draft
	c.mu.Unlock()
	c.notify()

	log.Infof("Submitting report (manual=%v, image=%d bytes)", manual, len(draft.Image))
	result, err := c.backend.SubmitIssue(ctx, backendclient.Submission{
		Image:       draft.Image,
		ImageName:   draft.ImageName,
		ImageType:   draft.ImageType,
		Address:     draft.Address,
		ZipCode:     draft.ZipCode,
		Coordinates: draft.Coordinates,
	})

	var report *models.Report
	if err == nil {
		report = result.Report
		if report == nil && manual {
			report = models.BlankReport(draft.Address, draft.ZipCode)
		}
		if report == nil {
			err = ErrNoReport
		}
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		log.Warnf("Discarding submit response for a wizard that has moved on")
		return ErrStale
	}
	c.st.busy = ""

	if err != nil {
		failure := Classify(err)
		metrics.SubmissionsTotal.WithLabelValues(string(failure.Class)).Inc()
		c.st.failure = failure
		c.mu.Unlock()
		log.Warnf("Submission rejected (%s): %s", failure.Class, failure.Message)
		c.notify()
		return failure
	}

	metrics.SubmissionsTotal.WithLabelValues("ok").Inc()
	if manual {
		report.IssueOverview.Confidence = 0
	}
	c.st.step = StepReview
	c.st.review = &review{
		issueID:      result.ID,
		pristine:     report,
		editable:     report.Clone(),
		editing:      manual,
		imageContent: result.ImageContent,
	}
	c.st.draft = models.Draft{}
	c.st.fetchedZip = ""
	c.maybeFetchAuthoritiesLocked(report.ZipCode())
	c.mu.Unlock()

	log.Infof("Report %s ready for review", result.ID)
	c.notify()
	return nil
}

// ToggleEditing flips between read-only and editable rendering of the report.
func (c *Controller) ToggleEditing() error {
	c.mu.Lock()
	r := c.st.review
	if r == nil {
		c.mu.Unlock()
		return ErrWrongStep
	}
	return c.setEditingLocked(r, !r.editing)
}

func (c *Controller) SetEditing(editing bool) error {
	c.mu.Lock()
	r := c.st.review
	if r == nil {
		c.mu.Unlock()
		return ErrWrongStep
	}
	return c.setEditingLocked(r, editing)
}

func (c *Controller) setEditingLocked(r *review, editing bool) error {
	r.editing = editing
	c.mu.Unlock()
	c.notify()
	return nil
}

// EditReport applies fn to a copy of the editable report and keeps it if the
// result passes the length caps.
func (c *Controller) EditReport(fn func(r *models.Report)) error {
	c.mu.Lock()
	r := c.st.review
	if r == nil {
		c.mu.Unlock()
		return ErrWrongStep
	}
	edited := r.editable.Clone()
	c.mu.Unlock()

	fn(edited)
	return c.ReplaceReport(edited)
}

// ReplaceReport swaps in a new editable copy. The pristine copy is untouched.
func (c *Controller) ReplaceReport(edited *models.Report) error {
	if edited == nil {
		return ErrNoReport
	}
	edited = edited.Clone()
	edited.Truncate()
	if err := edited.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	r := c.st.review
	if r == nil {
		c.mu.Unlock()
		return ErrWrongStep
	}
	if !r.editing {
		c.mu.Unlock()
		return ErrNotEditing
	}
	if c.st.busy != "" {
		c.mu.Unlock()
		return ErrBusy
	}
	r.editable = edited
	c.maybeFetchAuthoritiesLocked(edited.ZipCode())
	c.mu.Unlock()

	c.notify()
	return nil
}

// SaveSelection writes the selector's selection into the editable report.
func (c *Controller) SaveSelection() error {
	c.mu.Lock()
	defer c.notify()
	defer c.mu.Unlock()

	r := c.st.review
	if r == nil {
		return ErrWrongStep
	}
	c.selector.Save(r.editable)
	return nil
}

// SendAuthorityEmails notifies the selected authorities about the current report.
func (c *Controller) SendAuthorityEmails(ctx context.Context) error {
	c.mu.Lock()
	r := c.st.review
	if r == nil {
		c.mu.Unlock()
		return ErrWrongStep
	}
	issueID := r.issueID
	report := r.editable.Clone()
	selector := c.selector
	c.mu.Unlock()

	err := selector.Send(ctx, issueID, report, report.ZipCode())
	c.notify()
	return err
}

// Accept sends the editable report and the selection. On success the wizard
// resets and the refresher runs once.
func (c *Controller) Accept(ctx context.Context) error {
	c.mu.Lock()
	r := c.st.review
	if r == nil {
		c.mu.Unlock()
		return ErrWrongStep
	}
	if c.st.busy != "" {
		c.mu.Unlock()
		return ErrBusy
	}
	c.st.busy = "accept"
	c.st.actionError = ""
	epoch := c.epoch
	issueID := r.issueID
	report := r.editable.Clone()
	selected := c.selector.Selected()
	c.mu.Unlock()
	c.notify()

	_, err := c.backend.AcceptIssue(ctx, issueID, report, selected)
	metrics.DecisionsTotal.WithLabelValues("accept", metrics.Result(err)).Inc()

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return ErrStale
	}
	c.st.busy = ""
	if err != nil {
		c.st.actionError = DetailOf(err)
		c.mu.Unlock()
		log.Warnf("Accept of %s failed: %v", issueID, err)
		c.notify()
		return err
	}
	c.resetLocked()
	c.st.notice = thankYouNotice
	c.mu.Unlock()

	log.Infof("Report %s accepted", issueID)
	c.notify()
	if c.refresh != nil {
		c.refresh(ctx)
	}
	return nil
}

// Decline asks the backend to regenerate the report.
func (c *Controller) Decline(ctx context.Context, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}

	c.mu.Lock()
	r := c.st.review
	if r == nil {
		c.mu.Unlock()
		return ErrWrongStep
	}
	if c.st.busy != "" {
		c.mu.Unlock()
		return ErrBusy
	}
	c.st.busy = "decline"
	c.st.actionError = ""
	epoch := c.epoch
	issueID := r.issueID
	report := r.editable.Clone()
	c.mu.Unlock()
	c.notify()

	regenerated, err := c.backend.DeclineIssue(ctx, issueID, reason, report)
	metrics.DecisionsTotal.WithLabelValues("decline", metrics.Result(err)).Inc()

	c.mu.Lock()
	if epoch != c.epoch || c.st.review != r {
		c.mu.Unlock()
		return ErrStale
	}
	c.st.busy = ""
	if err != nil {
		c.st.actionError = DetailOf(err)
		c.mu.Unlock()
		log.Warnf("Decline of %s failed: %v", issueID, err)
		c.notify()
		return err
	}
	if c.st.manual {
		regenerated.IssueOverview.Confidence = 0
	}
	r.pristine = regenerated
	r.editable = regenerated.Clone()
	r.editing = c.st.manual
	c.maybeFetchAuthoritiesLocked(regenerated.ZipCode())
	c.mu.Unlock()

	log.Infof("Report %s regenerated after decline", issueID)
	c.notify()
	return nil
}

// Reset returns to the evidence step. Responses to requests already in
// flight are discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) resetLocked() {
	c.epoch++
	c.st = state{step: StepEvidence}
	c.selector = authority.NewSelector(c.backend)
}

// Selector returns the authority selector of the current pass.
func (c *Controller) Selector() *authority.Selector {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selector
}

// AuthorityPanel applies the confidence policy to the current report.
func (c *Controller) AuthorityPanel() AuthorityPanel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.panelLocked()
}

func (c *Controller) panelLocked() AuthorityPanel {
	panel := AuthorityPanel{
		Mode:       PanelNone,
		Candidates: c.selector.Candidates(),
		Selected:   c.selector.Selected(),
	}
	r := c.st.review
	if r == nil {
		return panel
	}
	if LowConfidence(r.editable.Confidence(), c.st.manual) {
		panel.Mode = PanelManualPrompt
		return panel
	}
	panel.Mode = PanelRecommended
	panel.Recommended = append([]models.Authority(nil), r.editable.ResponsibleAuthorities...)
	return panel
}

// Wait blocks until background authority fetches have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels background work and waits for it.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

// maybeFetchAuthoritiesLocked starts a background fetch once zip is long
// enough and differs from the last fetched one. Dropping below the minimum
// length or a failed fetch makes the same zip fetchable again.
func (c *Controller) maybeFetchAuthoritiesLocked(zip string) {
	zip = strings.TrimSpace(zip)
	if len(zip) < MinZipLength {
		c.st.fetchedZip = ""
		return
	}
	if zip == c.st.fetchedZip {
		return
	}
	if c.baseCtx.Err() != nil {
		return
	}
	c.st.fetchedZip = zip
	selector := c.selector

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(c.baseCtx, authorityFetchLimit)
		defer cancel()

		if err := selector.Load(ctx, zip); err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Warnf("Authority fetch for %s failed: %v", zip, err)
			}
			c.mu.Lock()
			if c.selector == selector && c.st.fetchedZip == zip {
				c.st.fetchedZip = ""
			}
			c.mu.Unlock()
		}
		c.notify()
	}()
}

func (c *Controller) requireBefore(step Step) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st.step >= step {
		return ErrWrongStep
	}
	return nil
}

func (c *Controller) notify() {
	snap := c.Snapshot()

	c.obsMu.Lock()
	observers := make([]func(Snapshot), len(c.observers))
	copy(observers, c.observers)
	c.obsMu.Unlock()

	for _, fn := range observers {
		if fn != nil {
			fn(snap)
		}
	}
}
