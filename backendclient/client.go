package backendclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"eaiser/api"
	"eaiser/common"
	"eaiser/metrics"
	"eaiser/models"

	"github.com/apex/log"
	"github.com/shopspring/decimal"
)

const coordinatePrecision = 7

// Client talks to the reporting backend's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a backend client with the given request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Submission is the payload of POST /issues.
type Submission struct {
	Image       []byte
	ImageName   string
	ImageType   string
	Address     string
	ZipCode     string
	Coordinates *models.Coordinates
}

// SubmitResult is the backend's answer to a submission.
type SubmitResult struct {
	ID           string
	Report       *models.Report
	ImageContent string
}

// FetchAuthorities returns the candidate authorities for a postal code, grouped by type.
func (c *Client) FetchAuthorities(ctx context.Context, zipCode string) (models.AuthorityGroups, error) {
	var groups models.AuthorityGroups
	path := api.AuthoritiesEndpoint + url.PathEscape(strings.TrimSpace(zipCode))
	if err := c.do(ctx, "authorities", http.MethodGet, path, nil, "", &groups); err != nil {
		return nil, err
	}
	if groups == nil {
		groups = models.AuthorityGroups{}
	}
	return groups, nil
}

// SubmitIssue posts the multipart submission.
func (c *Client) SubmitIssue(ctx context.Context, s Submission) (*SubmitResult, error) {
	body, contentType, err := encodeSubmission(s)
	if err != nil {
		return nil, err
	}

	var resp api.SubmitResponse
	if err := c.do(ctx, "submit", http.MethodPost, api.IssuesEndpoint, body, contentType, &resp); err != nil {
		return nil, err
	}

	result := &SubmitResult{ID: resp.ID}
	if resp.Report != nil {
		result.Report = resp.Report.Report
		result.ImageContent = resp.Report.ImageContent
	}
	return result, nil
}

// AcceptIssue sends the edited report and the selected authorities.
func (c *Client) AcceptIssue(ctx context.Context, issueID string, report *models.Report, selected []models.Authority) (string, error) {
	if selected == nil {
		selected = []models.Authority{}
	}
	args := api.AcceptArgs{EditedReport: report, SelectedAuthorities: selected}
	var resp api.AcceptResponse
	path := api.IssuesEndpoint + "/" + url.PathEscape(issueID) + api.AcceptEndpointSuffix
	if err := c.doJSON(ctx, "accept", path, args, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		resp.ID = issueID
	}
	return resp.ID, nil
}

// DeclineIssue sends the decline reason and returns the regenerated report.
func (c *Client) DeclineIssue(ctx context.Context, issueID, reason string, report *models.Report) (*models.Report, error) {
	args := api.DeclineArgs{DeclineReason: reason, EditedReport: report}
	var resp api.DeclineResponse
	path := api.IssuesEndpoint + "/" + url.PathEscape(issueID) + api.DeclineEndpointSuffix
	if err := c.doJSON(ctx, "decline", path, args, &resp); err != nil {
		return nil, err
	}
	if resp.Report == nil || resp.Report.Report == nil {
		return nil, fmt.Errorf("decline response for issue %s carried no report", issueID)
	}
	return resp.Report.Report, nil
}

// SendAuthorityEmails asks the backend to notify the selected authorities.
func (c *Client) SendAuthorityEmails(ctx context.Context, args api.SendEmailsArgs) error {
	var resp api.SendEmailsResponse
	return c.doJSON(ctx, "send_emails", api.SendAuthorityEmailsEndpoint, args, &resp)
}

// ListIssues returns the dashboard issue list. Both a bare array and an
// {"issues": [...]} wrapper are accepted.
func (c *Client) ListIssues(ctx context.Context) ([]models.Issue, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "issues", http.MethodGet, api.IssuesEndpoint, nil, "", &raw); err != nil {
		return nil, err
	}
	var issues []models.Issue
	if err := json.Unmarshal(raw, &issues); err == nil {
		return issues, nil
	}
	var wrapped struct {
		Issues []models.Issue `json:"issues"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode issue list: %w", err)
	}
	return wrapped.Issues, nil
}

func (c *Client) doJSON(ctx context.Context, name, path string, args, out interface{}) error {
	reqBody, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", name, err)
	}
	return c.do(ctx, name, http.MethodPost, path, bytes.NewReader(reqBody), "application/json", out)
}

func (c *Client) do(ctx context.Context, name, method, path string, body io.Reader, contentType string, out interface{}) (err error) {
	start := time.Now()
	status := 0
	defer func() {
		metrics.ObserveBackend(name, start, err)
		common.LogResult(fmt.Sprintf("%s %s", method, path), status, err)
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", name, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", name, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode %s response: %w", name, err)
	}
	return nil
}

func encodeSubmission(s Submission) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if len(s.Image) > 0 {
		name := s.ImageName
		if name == "" {
			name = "image.jpg"
		}
		ctype := s.ImageType
		if ctype == "" {
			ctype = "image/jpeg"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, api.FieldImage, escapeQuotes(name)))
		h.Set("Content-Type", ctype)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create image part: %w", err)
		}
		if _, err := part.Write(s.Image); err != nil {
			return nil, "", fmt.Errorf("failed to write image part: %w", err)
		}
	}

	fields := [][2]string{
		{api.FieldAddress, strings.TrimSpace(s.Address)},
		{api.FieldZipCode, strings.TrimSpace(s.ZipCode)},
	}
	if s.Coordinates != nil {
		fields = append(fields,
			[2]string{api.FieldLatitude, FormatCoordinate(s.Coordinates.Lat)},
			[2]string{api.FieldLongitude, FormatCoordinate(s.Coordinates.Lng)},
		)
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	log.Debugf("Encoded submission: %d bytes, image=%t", buf.Len(), len(s.Image) > 0)
	return &buf, w.FormDataContentType(), nil
}

// FormatCoordinate renders a degree value rounded to 7 decimal places (~1cm).
func FormatCoordinate(v float64) string {
	return decimal.NewFromFloat(v).Round(coordinatePrecision).String()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
