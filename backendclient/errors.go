package backendclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"eaiser/api"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
}

const maxErrorBody = 64 << 10

// errorFromResponse reads the body of a failed response. The JSON "detail"
// field wins; otherwise the raw text is used.
func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		Status: resp.StatusCode,
		Detail: DetailMessage(body, resp.StatusCode),
	}
}

// DetailMessage extracts a user-facing message from an error body.
func DetailMessage(body []byte, status int) string {
	var payload api.ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := detailText(payload.Detail); msg != "" {
			return msg
		}
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(status)
}

// detailText handles both a plain string and a list of validation errors
// ({"detail": [{"msg": "..."}]}).
func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		var msgs []string
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return strings.TrimSpace(string(raw))
}
