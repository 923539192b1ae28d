package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *Report {
	return &Report{
		IssueOverview: IssueOverview{
			IssueType:          "pothole",
			Severity:           SeverityHigh,
			Confidence:         87,
			Category:           "road",
			SummaryExplanation: "Large pothole in the right lane.",
		},
		Location:           ReportLocation{Address: "1 Main St", ZipCode: "10001"},
		RecommendedActions: []string{"Fill the pothole", "Add warning signs"},
		DetailedAnalysis: DetailedAnalysis{
			PotentialImpact:  "Vehicle damage",
			PublicSafetyRisk: "medium",
		},
		ResponsibleAuthorities: []Authority{{Name: "City Dept A", Type: "city"}},
		TemplateFields:         map[string]string{"zip_code": "10001"},
	}
}

func TestCloneIsDeep(t *testing.T) {
	r := sampleReport()
	c := r.Clone()
	require.Equal(t, r, c)

	c.RecommendedActions[0] = "changed"
	c.ResponsibleAuthorities[0].Name = "changed"
	c.TemplateFields["zip_code"] = "changed"
	c.IssueOverview.Severity = SeverityLow

	assert.Equal(t, "Fill the pothole", r.RecommendedActions[0])
	assert.Equal(t, "City Dept A", r.ResponsibleAuthorities[0].Name)
	assert.Equal(t, "10001", r.TemplateFields["zip_code"])
	assert.Equal(t, SeverityHigh, r.IssueOverview.Severity)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(r *Report)
		wantErr bool
	}{
		{name: "Valid report", mutate: func(r *Report) {}},
		{name: "Summary at cap", mutate: func(r *Report) {
			r.IssueOverview.SummaryExplanation = strings.Repeat("a", MaxSummaryLength)
		}},
		{name: "Summary over cap", mutate: func(r *Report) {
			r.IssueOverview.SummaryExplanation = strings.Repeat("a", MaxSummaryLength+1)
		}, wantErr: true},
		{name: "Severity is not an enum", mutate: func(r *Report) {
			r.IssueOverview.Severity = "Medium"
		}},
		{name: "Confidence is not range checked", mutate: func(r *Report) {
			r.IssueOverview.Confidence = 101
		}},
		{name: "Address over cap", mutate: func(r *Report) {
			r.Location.Address = strings.Repeat("a", MaxAddressLength+1)
		}, wantErr: true},
		{name: "Analysis over cap", mutate: func(r *Report) {
			r.DetailedAnalysis.PotentialImpact = strings.Repeat("x", MaxAnalysisLength+1)
		}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := sampleReport()
			tc.mutate(r)
			err := r.Validate()
			if tc.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidReport), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTruncateCapsEveryFreeTextField(t *testing.T) {
	r := sampleReport()
	r.IssueOverview.IssueType = strings.Repeat("t", MaxLabelLength+5)
	r.IssueOverview.Category = strings.Repeat("c", MaxLabelLength+5)
	r.IssueOverview.SummaryExplanation = strings.Repeat("é", MaxSummaryLength+5)
	r.Location.Address = strings.Repeat("a", MaxAddressLength+5)
	r.Location.ZipCode = strings.Repeat("1", MaxZipLength+5)
	r.DetailedAnalysis.RootCauses = strings.Repeat("r", MaxAnalysisLength+5)

	require.Error(t, r.Validate())
	r.Truncate()
	require.NoError(t, r.Validate())

	assert.Len(t, r.IssueOverview.IssueType, MaxLabelLength)
	assert.Len(t, []rune(r.IssueOverview.SummaryExplanation), MaxSummaryLength)
	assert.Len(t, r.Location.ZipCode, MaxZipLength)
	assert.Equal(t, "Vehicle damage", r.DetailedAnalysis.PotentialImpact)
}

func TestUnknownReportKeysSurviveRoundTrip(t *testing.T) {
	in := `{
		"issue_overview": {"issue_type": "pothole", "severity": "Medium", "confidence": 72},
		"location": {"address": "1 Main St", "zip_code": "10001"},
		"recommended_actions": ["Fill it"],
		"detailed_analysis": {"potential_impact": "", "public_safety_risk": ""},
		"responsible_authorities_or_parties": [],
		"ai_tag": "v2",
		"estimated_cost": {"amount": 1200, "currency": "USD"}
	}`

	var r Report
	require.NoError(t, json.Unmarshal([]byte(in), &r))
	assert.Equal(t, Severity("Medium"), r.IssueOverview.Severity)
	require.Len(t, r.Extra, 2)

	edited := r.Clone()
	edited.IssueOverview.SummaryExplanation = "Edited"
	out, err := json.Marshal(edited)
	require.NoError(t, err)

	var back map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, "v2", back["ai_tag"])
	assert.Equal(t, map[string]interface{}{"amount": float64(1200), "currency": "USD"}, back["estimated_cost"])
	assert.Equal(t, "Edited", back["issue_overview"].(map[string]interface{})["summary_explanation"])

	plain, err := json.Marshal(sampleReport())
	require.NoError(t, err)
	assert.NotContains(t, string(plain), "ai_tag")
}

func TestBlankReportHasZeroConfidence(t *testing.T) {
	r := BlankReport("1 Main St", "10001")
	assert.Equal(t, float64(0), r.Confidence())
	assert.Equal(t, "10001", r.ZipCode())
	assert.NoError(t, r.Validate())
}

func TestAuthorityKeyIgnoresContactFields(t *testing.T) {
	a := Authority{Name: "City Dept A", Type: "city", Email: "a@city.gov"}
	b := Authority{Name: " City Dept A", Type: "city ", Phone: "555-0100"}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), Authority{Name: "City Dept A", Type: "county"}.Key())
}

func TestAuthorityGroupsFlatten(t *testing.T) {
	g := AuthorityGroups{
		"state": {{Name: "DOT"}},
		"city":  {{Name: "Public Works", Type: "city"}, {Name: "Parks"}},
	}
	flat := g.Flatten()
	require.Len(t, flat, 3)
	assert.Equal(t, Authority{Name: "Public Works", Type: "city"}, flat[0])
	assert.Equal(t, Authority{Name: "Parks", Type: "city"}, flat[1])
	assert.Equal(t, Authority{Name: "DOT", Type: "state"}, flat[2])
}

func TestIssueNormalizedStatus(t *testing.T) {
	testCases := map[string]IssueStatus{
		"Resolved":    StatusResolved,
		"in progress": StatusInProgress,
		"IN_PROGRESS": StatusInProgress,
		"in-progress": StatusInProgress,
		"rejected":    StatusRejected,
		"pending":     StatusPending,
		"":            StatusPending,
		"weird":       StatusPending,
	}
	for status, expected := range testCases {
		assert.Equal(t, expected, Issue{Status: status}.NormalizedStatus(), status)
	}
}

func TestIssueParsedDate(t *testing.T) {
	assert.Equal(t, 2024, Issue{Date: "2024-03-01"}.ParsedDate().Year())
	assert.Equal(t, 15, Issue{Date: "2024-03-01T15:04:05Z"}.ParsedDate().Hour())
	assert.True(t, Issue{Date: "yesterday"}.ParsedDate().IsZero())
}

func TestDraftHasLocation(t *testing.T) {
	d := &Draft{}
	assert.False(t, d.HasLocation())
	d.ZipCode = "10001"
	assert.True(t, d.HasLocation())
	d = &Draft{Coordinates: &Coordinates{Lat: 40.75, Lng: -73.99}}
	assert.True(t, d.HasLocation())
}

func TestCoordinates(t *testing.T) {
	assert.True(t, Coordinates{Lat: 40.75, Lng: -73.99}.Valid())
	assert.False(t, Coordinates{Lat: 91, Lng: 0}.Valid())

	a := Coordinates{Lat: 40.7500, Lng: -73.9900}
	b := Coordinates{Lat: 40.7510, Lng: -73.9900}
	d := a.DistanceMeters(b)
	assert.InDelta(t, 111.2, d, 1.0)
}
