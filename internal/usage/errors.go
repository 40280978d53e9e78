package usage

import (
	"errors"
	"fmt"
)

// LoadFailedCode is the error code reported when the activity report cannot be loaded.
const LoadFailedCode = "E_LOAD_FAILED"

var (
	ErrProviderUnavailable = errors.New("usage provider unavailable")
	ErrLoadFailed          = errors.New("activity report failed to load")
)

// UnavailableError is returned when no provider is bound under Name.
type UnavailableError struct {
	Name string
}

func (e *UnavailableError) Error() string {
	if e.Name == "" {
		return ErrProviderUnavailable.Error()
	}
	return fmt.Sprintf("%s: %q is not bound", ErrProviderUnavailable, e.Name)
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrProviderUnavailable
}

// LoadError carries the backend diagnostic, when there is one.
type LoadError struct {
	Code       string
	Message    string
	Diagnostic error
}

func newLoadError(diagnostic error) *LoadError {
	return &LoadError{
		Code:       LoadFailedCode,
		Message:    "failed to load activity report",
		Diagnostic: diagnostic,
	}
}

func (e *LoadError) Error() string {
	if e.Diagnostic == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Diagnostic)
}

func (e *LoadError) Unwrap() error {
	return e.Diagnostic
}

func (e *LoadError) Is(target error) bool {
	return target == ErrLoadFailed
}
