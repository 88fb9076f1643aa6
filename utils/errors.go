package utils

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType classifies ingestion failures.
type ErrorType string

const (
	ErrorTypeNavigation     ErrorType = "navigation"
	ErrorTypeSelector       ErrorType = "selector"
	ErrorTypeExtraction     ErrorType = "extraction"
	ErrorTypeLayout         ErrorType = "layout"
	ErrorTypeCaptcha        ErrorType = "captcha"
	ErrorTypeStorage        ErrorType = "storage"
	ErrorTypeVendorNotFound ErrorType = "vendor_not_found"
	ErrorTypeConfiguration  ErrorType = "configuration"
)

// IngestError is a classified error raised while crawling or writing a vendor.
type IngestError struct {
	Type    ErrorType
	Vendor  string
	Message string
	Err     error
	Time    time.Time
}

func (e *IngestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Type, e.Vendor, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Vendor, e.Message)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether repeating the failed operation can help.
func (e *IngestError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNavigation, ErrorTypeSelector, ErrorTypeExtraction, ErrorTypeStorage:
		return true
	default:
		return false
	}
}

// NewError creates a new IngestError.
func NewError(errType ErrorType, vendor, message string, err error) *IngestError {
	return &IngestError{
		Type:    errType,
		Vendor:  vendor,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

func NewNavigation(vendor, message string, err error) *IngestError {
	return NewError(ErrorTypeNavigation, vendor, message, err)
}

func NewExtraction(vendor, message string, err error) *IngestError {
	return NewError(ErrorTypeExtraction, vendor, message, err)
}

// NewLayout reports that the expected listing container is missing from a page,
// which usually means the vendor changed its markup.
func NewLayout(vendor, message string) *IngestError {
	return NewError(ErrorTypeLayout, vendor, message, nil)
}

func NewVendorNotFound(vendor string, err error) *IngestError {
	return NewError(ErrorTypeVendorNotFound, vendor, "vendor is not provisioned", err)
}

func NewConfiguration(message string, err error) *IngestError {
	return NewError(ErrorTypeConfiguration, "", message, err)
}

// IsType reports whether err wraps an IngestError of the given type.
func IsType(err error, errType ErrorType) bool {
	var ie *IngestError
	return errors.As(err, &ie) && ie.Type == errType
}

// IsRetryable reports whether err may succeed on another attempt. Errors that
// are not classified are treated as transient.
func IsRetryable(err error) bool {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.IsRetryable()
	}
	return true
}
