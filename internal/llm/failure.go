package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// FailureKind classifies a failed completion.
type FailureKind string

const (
	// FailureNone means the completion succeeded.
	FailureNone FailureKind = ""
	// FailureQuotaExceeded means the provider account is out of quota or
	// billing is not active. Retrying will not help until that is fixed.
	FailureQuotaExceeded FailureKind = "quota_exceeded"
	// FailureServiceUnavailable covers every other failure.
	FailureServiceUnavailable FailureKind = "service_unavailable"
)

// quotaIndicators are the machine-readable provider codes and types that mean
// the account has no quota left. Matching is on codes only, never on
// human-readable message text.
var quotaIndicators = map[string]struct{}{
	"insufficient_quota":         {},
	"billing_hard_limit_reached": {},
	"quota_exceeded":             {},
	"billing_not_active":         {},
	"billing_error":              {},
}

// IsQuotaIndicator reports whether code is a known quota code.
func IsQuotaIndicator(code string) bool {
	_, ok := quotaIndicators[strings.ToLower(strings.TrimSpace(code))]
	return ok
}

// ProviderError is a provider failure normalized to its status and codes.
type ProviderError struct {
	Provider   string
	StatusCode int
	Code       string
	Type       string
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: status %d, code %s: %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Classify maps a provider error to a failure kind. A nil error is
// FailureNone. Only errors carrying a known quota code or type are
// FailureQuotaExceeded; timeouts, transport errors, 5xx and plain rate limits
// are FailureServiceUnavailable.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	var fe *FailureError
	if errors.As(err, &fe) {
		return fe.Kind
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if IsQuotaIndicator(codeString(apiErr.Code)) || IsQuotaIndicator(apiErr.Type) {
			return FailureQuotaExceeded
		}
		return FailureServiceUnavailable
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		if IsQuotaIndicator(provErr.Code) || IsQuotaIndicator(provErr.Type) {
			return FailureQuotaExceeded
		}
		return FailureServiceUnavailable
	}

	return FailureServiceUnavailable
}

// codeString normalizes the loosely typed openai error code.
func codeString(code any) string {
	switch c := code.(type) {
	case nil:
		return ""
	case string:
		return c
	default:
		return fmt.Sprint(c)
	}
}

// FailureError carries a classified failure through plain error returns.
type FailureError struct {
	Kind FailureKind
	Err  error
}

func (e *FailureError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FailureError) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind wrapped in err, or FailureNone when err does
// not carry a classified failure.
func KindOf(err error) FailureKind {
	var fe *FailureError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return FailureNone
}
