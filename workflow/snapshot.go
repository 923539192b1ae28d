package workflow

import (
	"eaiser/authority"
	"eaiser/models"
)

// Snapshot is a read-only copy of the wizard state handed to observers.
type Snapshot struct {
	Step        Step                `json:"step"`
	Manual      bool                `json:"manual"`
	Editing     bool                `json:"editing"`
	Busy        string              `json:"busy,omitempty"`
	HasImage    bool                `json:"has_image"`
	ImageName   string              `json:"image_name,omitempty"`
	ImageBytes  int                 `json:"image_bytes,omitempty"`
	Address     string              `json:"address"`
	ZipCode     string              `json:"zip_code"`
	Coordinates *models.Coordinates `json:"coordinates,omitempty"`

	IssueID       string         `json:"issue_id,omitempty"`
	Report        *models.Report `json:"report,omitempty"`
	Pristine      *models.Report `json:"pristine,omitempty"`
	ImageContent  string         `json:"image_content,omitempty"`
	LowConfidence bool           `json:"low_confidence"`

	Panel       AuthorityPanel   `json:"authority_panel"`
	FetchStatus authority.Status `json:"authority_fetch_status"`
	SendStatus  authority.Status `json:"authority_send_status"`

	ImageError  string   `json:"image_error,omitempty"`
	Failure     *Failure `json:"failure,omitempty"`
	ActionError string   `json:"action_error,omitempty"`
	Notice      string   `json:"notice,omitempty"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := &c.st
	snap := Snapshot{
		Step:        st.step,
		Manual:      st.manual,
		Busy:        st.busy,
		HasImage:    st.draft.HasImage(),
		ImageName:   st.draft.ImageName,
		ImageBytes:  len(st.draft.Image),
		Address:     st.draft.Address,
		ZipCode:     st.draft.ZipCode,
		Panel:       c.panelLocked(),
		FetchStatus: c.selector.FetchStatus(),
		SendStatus:  c.selector.SendStatus(),
		ImageError:  st.imageError,
		ActionError: st.actionError,
		Notice:      st.notice,
	}
	if st.draft.Coordinates != nil {
		coords := *st.draft.Coordinates
		snap.Coordinates = &coords
	}
	if st.failure != nil {
		f := *st.failure
		snap.Failure = &f
	}
	if r := st.review; r != nil {
		snap.Editing = r.editing
		snap.IssueID = r.issueID
		snap.Report = r.editable.Clone()
		snap.Pristine = r.pristine.Clone()
		snap.ImageContent = r.imageContent
		snap.LowConfidence = LowConfidence(r.editable.Confidence(), st.manual)
	}
	return snap
}
