package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Field length limits for operation inputs. They keep a single request from
// filling TEXT columns with caller-controlled garbage.
const (
	MaxValueLen    = 1024
	MaxCommentLen  = 4 * 1024
	MaxSites       = 500
	MaxQuestionLen = 2 * 1024
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the envelope for list endpoints. Count is the number of
// items in Data; there is no server-side pagination.
type ListResponse struct {
	Data  any          `json:"data"`
	Count int          `json:"count"`
	Meta  ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// SiteList decodes either a JSON array of site ids or a single
// comma-separated string, the form older clients submit.
type SiteList []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *SiteList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*s = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(b, &joined); err != nil {
		return fmt.Errorf("sites must be a list of strings or a comma-separated string")
	}
	*s = SplitSites(joined)
	return nil
}

// SplitSites splits a comma-separated site string. Blank items are kept so
// validation can reject them with a precise message.
func SplitSites(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

// CreateOperationRequest is the request body for POST /v1/operations.
type CreateOperationRequest struct {
	Feature        string   `json:"feature"`
	Parameter      string   `json:"parameter"`
	Value          string   `json:"value"`
	Zone           string   `json:"zone"`
	Sites          SiteList `json:"sites"`
	DesiredDate    string   `json:"desired_date,omitempty"`
	Priority       string   `json:"priority"`
	InitialComment string   `json:"initial_comment,omitempty"`
	CreatedByName  string   `json:"created_by_name"`
	CreatedByEmail string   `json:"created_by_email,omitempty"`
}

// TransitionRequest is the request body for POST /v1/operations/{op_id}/transitions.
type TransitionRequest struct {
	Department  string `json:"department"`
	ToStatus    string `json:"to_status"`
	Comment     string `json:"comment"`
	ActorName   string `json:"actor_name"`
	ActorEmail  string `json:"actor_email,omitempty"`
	PlannedDate string `json:"planned_date,omitempty"`
}

// AskRequest is the request body for POST /v1/assistant.
type AskRequest struct {
	Question string `json:"question"`
}

// CatalogResponse describes the configured features, zones and enumerations,
// and the active transition policy spelled out per status.
type CatalogResponse struct {
	Features         map[string][]string `json:"features"`
	Zones            []string            `json:"zones"`
	Statuses         []Status            `json:"statuses"`
	Priorities       []Priority          `json:"priorities"`
	Departments      []Department        `json:"departments"`
	TransitionPolicy string              `json:"transition_policy"`
	Transitions      []TransitionRule    `json:"transitions"`
}

// TransitionRule lists the statuses an operation in From may move to, and
// the one a client should offer by default.
type TransitionRule struct {
	From      Status   `json:"from"`
	Allowed   []Status `json:"allowed"`
	Suggested Status   `json:"suggested,omitempty"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Store   string `json:"store"`
	Backend string `json:"backend"`
	Uptime  int64  `json:"uptime_seconds"`
}
