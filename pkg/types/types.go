package types

import (
	"github.com/veltrix/chatgate/pkg/provider"
)

// Error codes returned to clients.
const (
	CodeSpamDetected  = "SPAM_DETECTED"
	CodeRateLimited   = "RATE_LIMITED"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeUpstreamError = "UPSTREAM_ERROR"
)

// ChatRequest is the inbound payload on the proxy surface.
type ChatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type ChatResponse struct {
	RequestID string         `json:"request_id"`
	Reply     string         `json:"reply"`
	Model     string         `json:"model"`
	Usage     provider.Usage `json:"usage"`
}

// AdmissionError carries the transport mapping for a denial: status
// code, machine-readable code and the Retry-After value in seconds.
type AdmissionError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

func (e *AdmissionError) Error() string {
	return e.Message
}
