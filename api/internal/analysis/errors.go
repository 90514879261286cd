package analysis

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidImage             = errors.New("invalid image")
	ErrEmptyCredential          = errors.New("credential is empty")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrMissingImagePayload      = errors.New("image payload is missing")
	ErrUnexpectedResponseFormat = errors.New("unexpected response format")
	// ErrMisconfigured marks server configuration problems, as opposed to
	// transient provider failures.
	ErrMisconfigured = errors.New("server misconfigured")
)

// TransportError means no response was received at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderHTTPError is a response with a non-success status. Details is the
// decoded error body, or an empty object when the body was not JSON.
type ProviderHTTPError struct {
	Status  int
	Details map[string]any
}

func (e *ProviderHTTPError) Error() string {
	return fmt.Sprintf("provider returned HTTP %d", e.Status)
}

// Retryable reports whether err is worth retrying by the user. Configuration
// and request errors are not.
func Retryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var pe *ProviderHTTPError
	if errors.As(err, &pe) {
		return pe.Status == http.StatusTooManyRequests || pe.Status >= 500
	}
	return errors.Is(err, ErrUnexpectedResponseFormat)
}

// Describe renders err as a message fit for the user.
func Describe(err error) string {
	var (
		te *TransportError
		pe *ProviderHTTPError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized: the password was rejected. Set it again and retry."
	case errors.Is(err, ErrMissingImagePayload):
		return "No image was sent. Pick a photo first."
	case errors.Is(err, ErrInvalidImage):
		return "This file could not be read as an image."
	case errors.Is(err, ErrEmptyCredential):
		return "The password cannot be empty."
	case errors.Is(err, ErrUnexpectedResponseFormat):
		return "The analysis service answered in an unexpected format."
	case errors.Is(err, ErrMisconfigured):
		return "The analysis service is not configured correctly."
	case errors.As(err, &te):
		return "Could not reach the analysis service. Check your connection."
	case errors.As(err, &pe):
		if msg, ok := pe.Details["error"].(string); ok && msg != "" {
			return fmt.Sprintf("Analysis failed (HTTP %d): %s", pe.Status, msg)
		}
		return fmt.Sprintf("Analysis failed (HTTP %d).", pe.Status)
	default:
		return "Analysis failed: " + err.Error()
	}
}
