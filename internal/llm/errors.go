package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a completion failure for the caller. The raw provider
// message never reaches end users; callers switch on the kind and write
// their own text.
type Kind int

const (
	KindTransient Kind = iota
	KindQuota
	KindContentFiltered
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindQuota:
		return "quota"
	case KindContentFiltered:
		return "content_filtered"
	case KindConfiguration:
		return "configuration"
	default:
		return "transient"
	}
}

// Error is a classified provider failure.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when not an HTTP failure
	APIType string // provider error type string, if any
	Message string
}

func (e *Error) Error() string {
	if e.APIType != "" {
		return fmt.Sprintf("anthropic: %s (%s): %s", e.Kind, e.APIType, e.Message)
	}
	return fmt.Sprintf("anthropic: %s: %s", e.Kind, e.Message)
}

// KindOf extracts the failure kind from any error returned by this
// package. Unclassified errors (network failures, cancelled contexts)
// count as transient.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindTransient
}

// classify maps an HTTP status and provider error type to a Kind. This is
// the single place the provider's error vocabulary is interpreted.
func classify(status int, apiType string) Kind {
	switch apiType {
	case "rate_limit_error":
		return KindQuota
	case "authentication_error", "permission_error", "invalid_request_error", "not_found_error":
		return KindConfiguration
	case "overloaded_error", "api_error", "timeout_error":
		return KindTransient
	}

	switch status {
	case http.StatusTooManyRequests:
		return KindQuota
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest, http.StatusNotFound:
		return KindConfiguration
	}
	return KindTransient
}

func newAPIError(status int, apiType, message string) *Error {
	return &Error{Kind: classify(status, apiType), Status: status, APIType: apiType, Message: message}
}

// errRefusal is returned when the model declines to answer; the user's
// turn stays in history but no assistant turn is recorded.
func errRefusal(stopReason string) *Error {
	return &Error{Kind: KindContentFiltered, APIType: stopReason, Message: "response blocked by the provider"}
}
