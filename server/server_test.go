package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"eaiser/api"
	"eaiser/backendclient"
	"eaiser/config"
	eimage "eaiser/image"
	"eaiser/location"
	"eaiser/models"
	"eaiser/workflow"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu        sync.Mutex
	submits   []backendclient.Submission
	accepts   int
	lists     int
	listErr   error
	submitErr error
}

func (b *fakeBackend) SubmitIssue(ctx context.Context, s backendclient.Submission) (*backendclient.SubmitResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submits = append(b.submits, s)
	if b.submitErr != nil {
		return nil, b.submitErr
	}
	return &backendclient.SubmitResult{ID: "issue-7"}, nil
}

func (b *fakeBackend) AcceptIssue(ctx context.Context, id string, r *models.Report, sel []models.Authority) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accepts++
	return id, nil
}

func (b *fakeBackend) DeclineIssue(ctx context.Context, id, reason string, r *models.Report) (*models.Report, error) {
	return r, nil
}

func (b *fakeBackend) FetchAuthorities(ctx context.Context, zip string) (models.AuthorityGroups, error) {
	return models.AuthorityGroups{"city": {{Name: "City Dept A", Type: "city"}}}, nil
}

func (b *fakeBackend) SendAuthorityEmails(ctx context.Context, args api.SendEmailsArgs) error {
	return nil
}

func (b *fakeBackend) ListIssues(ctx context.Context) ([]models.Issue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lists++
	return nil, b.listErr
}

func (b *fakeBackend) listCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lists
}

func testConfig() *config.Config {
	return &config.Config{
		BuildMode:      config.BuildModeDevelopment,
		BackendURL:     "http://backend.test",
		GeocodeRPS:     5,
		AllowedOrigins: []string{"*"},
		SessionTTL:     time.Minute,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *fakeBackend, http.Handler) {
	gin.SetMode(gin.TestMode)
	backend := &fakeBackend{}
	s := New(cfg, backend, nil, location.ProviderKeyMissing)
	t.Cleanup(func() { s.sessions.closeAll() })
	return s, backend, s.Router()
}

type wizardResponse struct {
	ID      string            `json:"id"`
	State   workflow.Snapshot `json:"state"`
	Error   string            `json:"error"`
	Failure *workflow.Failure `json:"failure"`
}

func call(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, wizardResponse) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp wizardResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestHealthAndConfig(t *testing.T) {
	_, _, h := newTestServer(t, testConfig())

	w, _ := call(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, float64(0), health["last_event_seq"])

	w, _ = call(t, h, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, "key_missing", cfg["maps_status"])
	assert.Equal(t, "Google Maps API key is missing. Enter the address manually.", cfg["maps_message"])
	assert.Equal(t, false, cfg["social_sign_in"])

	w, _ = call(t, h, http.MethodGet, "/help", nil)
	assert.Contains(t, w.Body.String(), "eaiser reporting gateway")
}

func TestManualWizardFlow(t *testing.T) {
	_, backend, h := newTestServer(t, testConfig())

	w, resp := call(t, h, http.MethodPost, "/api/wizard", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := resp.ID
	base := "/api/wizard/" + id

	w, _ = call(t, h, http.MethodPost, base+"/next", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = call(t, h, http.MethodPost, base+"/manual", gin.H{"enabled": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.State.Manual)

	w, resp = call(t, h, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, workflow.StepLocation, resp.State.Step)

	w, _ = call(t, h, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = call(t, h, http.MethodPost, base+"/location", gin.H{"address": "5 Elm St", "zip_code": "10001", "latitude": 40.7, "longitude": -74.0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5 Elm St", resp.State.Address)
	require.NotNil(t, resp.State.Coordinates)

	w, resp = call(t, h, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, workflow.StepReview, resp.State.Step)
	assert.True(t, resp.State.Editing)
	assert.Equal(t, "issue-7", resp.State.IssueID)
	require.Len(t, backend.submits, 1)
	assert.Equal(t, 40.7, backend.submits[0].Coordinates.Lat)

	report := resp.State.Report
	report.IssueOverview.IssueType = "Fallen tree"
	w, resp = call(t, h, http.MethodPut, base+"/report", report)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Fallen tree", resp.State.Report.IssueOverview.IssueType)
	assert.Equal(t, "", resp.State.Pristine.IssueOverview.IssueType)

	w, _ = call(t, h, http.MethodPost, base+"/decline", gin.H{"reason": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = call(t, h, http.MethodPost, base+"/accept", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, workflow.StepEvidence, resp.State.Step)
	assert.NotEmpty(t, resp.State.Notice)
	assert.Equal(t, 1, backend.accepts)
	require.Eventually(t, func() bool { return backend.listCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSubmitFailureIsClassified(t *testing.T) {
	_, backend, h := newTestServer(t, testConfig())
	backend.submitErr = &backendclient.APIError{Status: 400, Detail: "The image looks AI-generated"}

	_, resp := call(t, h, http.MethodPost, "/api/wizard", nil)
	base := "/api/wizard/" + resp.ID
	call(t, h, http.MethodPost, base+"/manual", gin.H{"enabled": true})
	call(t, h, http.MethodPost, base+"/next", nil)
	call(t, h, http.MethodPost, base+"/location", gin.H{"zip_code": "10001"})

	w, resp := call(t, h, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotNil(t, resp.Failure)
	assert.Equal(t, workflow.FailureIntegrity, resp.Failure.Class)
	assert.Equal(t, workflow.StepLocation, resp.State.Step)
}

func TestUploadImage(t *testing.T) {
	_, _, h := newTestServer(t, testConfig())
	_, resp := call(t, h, http.MethodPost, "/api/wizard", nil)
	path := "/api/wizard/" + resp.ID + "/image"

	upload := func(name string, data []byte) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile("image", name)
		require.NoError(t, err)
		fw.Write(data)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, path, &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	jpegHeader := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	big := append(append([]byte{}, jpegHeader...), make([]byte, eimage.MaxImageBytes)...)
	w := upload("big.jpg", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = upload("notes.txt", []byte("just text"))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	overCap := append(append([]byte{}, jpegHeader...), make([]byte, maxUploadBytes)...)
	w = upload("huge.jpg", overCap)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	small := append(append([]byte{}, jpegHeader...), make([]byte, 1024)...)
	w = upload("small.jpg", small)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ok wizardResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ok))
	assert.Equal(t, workflow.StepLocation, ok.State.Step)
	assert.True(t, ok.State.HasImage)
}

func TestUnknownSession(t *testing.T) {
	_, _, h := newTestServer(t, testConfig())
	w, _ := call(t, h, http.MethodGet, "/api/wizard/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = call(t, h, http.MethodDelete, "/api/wizard/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCameraRoutesWithoutCamera(t *testing.T) {
	_, _, h := newTestServer(t, testConfig())
	_, resp := call(t, h, http.MethodPost, "/api/wizard", nil)
	w, _ := call(t, h, http.MethodPost, "/api/wizard/"+resp.ID+"/camera/start", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthorityRoutes(t *testing.T) {
	_, _, h := newTestServer(t, testConfig())
	_, resp := call(t, h, http.MethodPost, "/api/wizard", nil)
	base := "/api/wizard/" + resp.ID

	w, _ := call(t, h, http.MethodGet, base+"/authorities?zip=10001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state struct {
		Candidates []models.Authority `json:"candidates"`
		Selected   []models.Authority `json:"selected"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	require.Len(t, state.Candidates, 1)

	w, _ = call(t, h, http.MethodPost, base+"/authorities/toggle", models.Authority{Name: "City Dept A", Type: "city"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Len(t, state.Selected, 1)

	// No report yet
	w, _ = call(t, h, http.MethodPost, base+"/authorities/email", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDashboardFallback(t *testing.T) {
	_, backend, h := newTestServer(t, testConfig())
	backend.listErr = errors.New("connection refused")

	w, _ := call(t, h, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view struct {
		Issues   []models.Issue `json:"issues"`
		Fallback bool           `json:"fallback"`
		Summary  struct {
			Total      int `json:"total"`
			Resolved   int `json:"resolved"`
			InProgress int `json:"in_progress"`
			Rejected   int `json:"rejected"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.True(t, view.Fallback)
	assert.Len(t, view.Issues, 4)
	assert.Equal(t, 1, view.Summary.Resolved)
	assert.Equal(t, 2, view.Summary.InProgress)
	assert.Equal(t, 1, view.Summary.Rejected)
}

func TestSessionExpiry(t *testing.T) {
	s, _, _ := newTestServer(t, testConfig())
	now := time.Now()
	s.sessions.now = func() time.Time { return now }

	sess := s.newSession()
	s.sessions.Add(sess)
	assert.Equal(t, 0, s.sessions.ExpireIdle())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, s.sessions.ExpireIdle())
	_, ok := s.sessions.Get(sess.ID)
	assert.False(t, ok)
}

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		err    error
		status int
	}{
		{workflow.ErrBusy, http.StatusConflict},
		{workflow.ErrLocationRequired, http.StatusBadRequest},
		{&workflow.Failure{Class: workflow.FailureQuality}, http.StatusUnprocessableEntity},
		{eimage.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{location.ErrNoAddressFound, http.StatusNotFound},
		{&backendclient.APIError{Status: 500, Detail: "boom"}, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.status, statusFor(tc.err), "%v", tc.err)
	}
}
