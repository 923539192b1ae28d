package api

import (
	"encoding/json"

	"eaiser/models"
)

const (
	AuthoritiesEndpoint         = "/authorities/" // + {zip}
	IssuesEndpoint              = "/issues"
	AcceptEndpointSuffix        = "/accept"
	DeclineEndpointSuffix       = "/decline"
	SendAuthorityEmailsEndpoint = "/send-authority-emails"
)

// Multipart field names of POST /issues.
const (
	FieldImage     = "image"
	FieldAddress   = "address"
	FieldZipCode   = "zip_code"
	FieldLatitude  = "latitude"
	FieldLongitude = "longitude"
)

type ReportEnvelope struct {
	Report       *models.Report `json:"report"`
	ImageContent string         `json:"image_content,omitempty"` // base64
}

type SubmitResponse struct {
	ID     string          `json:"id"`
	Report *ReportEnvelope `json:"report"`
}

type AcceptArgs struct {
	EditedReport        *models.Report     `json:"edited_report"`
	SelectedAuthorities []models.Authority `json:"selected_authorities"`
}

type AcceptResponse struct {
	ID     string `json:"id"`
	Detail string `json:"detail,omitempty"`
}

type DeclineArgs struct {
	DeclineReason string         `json:"decline_reason"`
	EditedReport  *models.Report `json:"edited_report"`
}

type DeclineResponse struct {
	Report *ReportEnvelope `json:"report"`
	Detail string          `json:"detail,omitempty"`
}

type SendEmailsArgs struct {
	IssueID     string             `json:"issue_id"`
	Authorities []models.Authority `json:"authorities"`
	ReportData  *models.Report     `json:"report_data"`
	ZipCode     string             `json:"zip_code"`
}

type SendEmailsResponse struct {
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// ErrorResponse is the body of a failed backend call. Detail is either a
// string or a list of {"msg": ...} validation errors.
type ErrorResponse struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}
