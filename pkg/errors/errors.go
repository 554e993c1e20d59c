package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents transport failures, timeouts and non-2xx statuses
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRateLimit represents 429/430 responses and active block markers
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeBlocked represents a URL disallowed by robots.txt
	ErrorTypeBlocked ErrorType = "blocked"
	// ErrorTypeParsing represents an unusable document
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeReconciliation represents a failed store lookup during reconciliation
	ErrorTypeReconciliation ErrorType = "reconciliation"
	// ErrorTypePersistence represents failed store or snapshot writes
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypePublisher represents change feed errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// HarvestError is the error carried through the harvesting and reconciliation pipeline.
// Source names what failed: a URL for fetches, a brand, a store key or a component.
type HarvestError struct {
	Type       ErrorType
	Source     string
	Message    string
	StatusCode int
	Err        error
	Time       time.Time
}

// Error implements the error interface
func (e *HarvestError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, msg)
}

// Unwrap returns the underlying error
func (e *HarvestError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *HarvestError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork:
		return e.StatusCode == 0 || e.StatusCode >= 500
	case ErrorTypePersistence:
		return true
	default:
		return false
	}
}

// New creates a new HarvestError
func New(errType ErrorType, source, message string, err error) *HarvestError {
	return &HarvestError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(source, message string, err error) *HarvestError {
	return New(ErrorTypeNetwork, source, message, err)
}

// NewStatus creates a network error for an unexpected HTTP status
func NewStatus(source string, statusCode int) *HarvestError {
	e := New(ErrorTypeNetwork, source, "unexpected status code", nil)
	e.StatusCode = statusCode
	return e
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(source string, statusCode int, retryAfter string) *HarvestError {
	message := "rate limited"
	if retryAfter != "" {
		message = fmt.Sprintf("rate limited; retry after %s", retryAfter)
	}
	e := New(ErrorTypeRateLimit, source, message, nil)
	e.StatusCode = statusCode
	return e
}

// NewBlocked creates an error for a host currently under a block marker
// or a path disallowed by robots.txt
func NewBlocked(source, message string) *HarvestError {
	return New(ErrorTypeBlocked, source, message, nil)
}

// NewParsing creates a new parsing error
func NewParsing(source, message string, err error) *HarvestError {
	return New(ErrorTypeParsing, source, message, err)
}

// NewReconciliation creates a new reconciliation error
func NewReconciliation(source, message string, err error) *HarvestError {
	return New(ErrorTypeReconciliation, source, message, err)
}

// NewPersistence creates a new persistence error
func NewPersistence(source, message string, err error) *HarvestError {
	return New(ErrorTypePersistence, source, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(source, message string, err error) *HarvestError {
	return New(ErrorTypePublisher, source, message, err)
}

// NewValidation creates a new validation error
func NewValidation(source, message string) *HarvestError {
	return New(ErrorTypeValidation, source, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *HarvestError {
	return New(ErrorTypeConfiguration, "config", message, err)
}

// TypeOf returns the ErrorType of the first HarvestError in err's chain,
// or an empty type when there is none.
func TypeOf(err error) ErrorType {
	var he *HarvestError
	if stderrors.As(err, &he) {
		return he.Type
	}
	return ""
}

// Is reports whether err carries a HarvestError of the given type.
func Is(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}
