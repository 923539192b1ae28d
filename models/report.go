package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Severity of an issue as assessed by the backend or the user.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Length caps of the free-text fields.
const (
	MaxSummaryLength  = 200
	MaxAnalysisLength = 2000
	MaxLabelLength    = 100
	MaxAddressLength  = 300
	MaxZipLength      = 20
)

var (
	validate = validator.New()

	ErrInvalidReport = errors.New("invalid report")
)

type IssueOverview struct {
	IssueType          string   `json:"issue_type" validate:"max=100"`
	Severity           Severity `json:"severity"`
	Confidence         float64  `json:"confidence"`
	Category           string   `json:"category" validate:"max=100"`
	SummaryExplanation string   `json:"summary_explanation" validate:"max=200"`
}

type ReportLocation struct {
	Address string `json:"address" validate:"max=300"`
	ZipCode string `json:"zip_code" validate:"max=20"`
}

type DetailedAnalysis struct {
	PotentialImpact     string `json:"potential_impact" validate:"max=2000"`
	PublicSafetyRisk    string `json:"public_safety_risk" validate:"max=2000"`
	RootCauses          string `json:"root_causes,omitempty" validate:"max=2000"`
	EnvironmentalImpact string `json:"environmental_impact,omitempty" validate:"max=2000"`
}

// Report is the structured assessment of a submitted issue.
type Report struct {
	IssueOverview          IssueOverview     `json:"issue_overview"`
	Location               ReportLocation    `json:"location"`
	RecommendedActions     []string          `json:"recommended_actions"`
	DetailedAnalysis       DetailedAnalysis  `json:"detailed_analysis"`
	ResponsibleAuthorities []Authority       `json:"responsible_authorities_or_parties"`
	TemplateFields         map[string]string `json:"template_fields,omitempty"`

	// Extra keeps keys the backend sent that are not declared above, so
	// they survive an edit round trip.
	Extra map[string]json.RawMessage `json:"-"`
}

var reportKeys = []string{
	"issue_overview",
	"location",
	"recommended_actions",
	"detailed_analysis",
	"responsible_authorities_or_parties",
	"template_fields",
}

type reportFields Report

func (r *Report) UnmarshalJSON(data []byte) error {
	var fields reportFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range reportKeys {
		delete(all, k)
	}
	fields.Extra = nil
	if len(all) > 0 {
		fields.Extra = all
	}
	*r = Report(fields)
	return nil
}

func (r Report) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(reportFields(r))
	if err != nil || len(r.Extra) == 0 {
		return data, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if _, declared := all[k]; !declared {
			all[k] = v
		}
	}
	return json.Marshal(all)
}

// BlankReport is the template a manual report starts from.
func BlankReport(address, zipCode string) *Report {
	return &Report{
		IssueOverview: IssueOverview{
			IssueType:  "",
			Severity:   SeverityMedium,
			Confidence: 0,
			Category:   "public",
		},
		Location: ReportLocation{
			Address: address,
			ZipCode: zipCode,
		},
		RecommendedActions:     []string{},
		ResponsibleAuthorities: []Authority{},
	}
}

// Clone returns a deep copy of the report.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	c := *r
	if r.RecommendedActions != nil {
		c.RecommendedActions = append([]string{}, r.RecommendedActions...)
	}
	if r.ResponsibleAuthorities != nil {
		c.ResponsibleAuthorities = append([]Authority{}, r.ResponsibleAuthorities...)
	}
	if r.TemplateFields != nil {
		c.TemplateFields = make(map[string]string, len(r.TemplateFields))
		for k, v := range r.TemplateFields {
			c.TemplateFields[k] = v
		}
	}
	if r.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}

// Confidence returns the overview confidence score (0-100).
func (r *Report) Confidence() float64 {
	if r == nil {
		return 0
	}
	return r.IssueOverview.Confidence
}

// ZipCode returns the report's postal code, trimmed.
func (r *Report) ZipCode() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.Location.ZipCode)
}

// Truncate cuts every capped free-text field to its cap.
func (r *Report) Truncate() {
	o := &r.IssueOverview
	o.IssueType = truncate(o.IssueType, MaxLabelLength)
	o.Category = truncate(o.Category, MaxLabelLength)
	o.SummaryExplanation = truncate(o.SummaryExplanation, MaxSummaryLength)
	r.Location.Address = truncate(r.Location.Address, MaxAddressLength)
	r.Location.ZipCode = truncate(r.Location.ZipCode, MaxZipLength)
	a := &r.DetailedAnalysis
	a.PotentialImpact = truncate(a.PotentialImpact, MaxAnalysisLength)
	a.PublicSafetyRisk = truncate(a.PublicSafetyRisk, MaxAnalysisLength)
	a.RootCauses = truncate(a.RootCauses, MaxAnalysisLength)
	a.EnvironmentalImpact = truncate(a.EnvironmentalImpact, MaxAnalysisLength)
}

// truncate caps s at max characters.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// Validate checks the free-text length caps. Severity and confidence are
// whatever the backend sent and are not checked.
func (r *Report) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s failed %q", ErrInvalidReport, verrs[0].Namespace(), verrs[0].Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidReport, err)
}
