package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypePersistence represents failures of the underlying key-value store
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypeParsing represents page or interchange parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeBrowser represents errors talking to a browsing context
	ErrorTypeBrowser ErrorType = "browser"
)

// TrackerError represents a component-scoped error
type TrackerError struct {
	Type      ErrorType
	Component string
	Message   string
	Err       error
	Time      time.Time
}

// Error implements the error interface
func (e *TrackerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Component, e.Message)
}

// Unwrap returns the underlying error
func (e *TrackerError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *TrackerError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypePersistence, ErrorTypeBrowser:
		return true
	default:
		return false
	}
}

// New creates a new TrackerError
func New(errType ErrorType, component, message string, err error) *TrackerError {
	return &TrackerError{
		Type:      errType,
		Component: component,
		Message:   message,
		Err:       err,
		Time:      time.Now(),
	}
}

// NewPersistence creates a new persistence error
func NewPersistence(component, message string, err error) *TrackerError {
	return New(ErrorTypePersistence, component, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(component, message string, err error) *TrackerError {
	return New(ErrorTypeParsing, component, message, err)
}

// NewValidation creates a new validation error
func NewValidation(component, message string) *TrackerError {
	return New(ErrorTypeValidation, component, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *TrackerError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(component, message string, err error) *TrackerError {
	return New(ErrorTypePublisher, component, message, err)
}

// NewBrowser creates a new browser error
func NewBrowser(component, message string, err error) *TrackerError {
	return New(ErrorTypeBrowser, component, message, err)
}

// HasType reports whether the first TrackerError in err's tree has the given type
func HasType(err error, errType ErrorType) bool {
	var te *TrackerError
	return stderrors.As(err, &te) && te.Type == errType
}

// IsRetryable reports whether the first TrackerError in err's tree is retryable
func IsRetryable(err error) bool {
	var te *TrackerError
	return stderrors.As(err, &te) && te.IsRetryable()
}
