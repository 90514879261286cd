package gemini

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"

	"calorie-lens/api/internal/analysis"
)

// classify maps SDK errors onto the analysis error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var (
		blocked *genai.BlockedError
		gerr    *googleapi.Error
		aerr    *apierror.APIError
	)
	switch {
	case errors.As(err, &blocked):
		return fmt.Errorf("gemini: %w: %v", analysis.ErrUnexpectedResponseFormat, err)
	case errors.As(err, &gerr):
		return &analysis.ProviderHTTPError{Status: gerr.Code, Details: googleDetails(gerr.Code, gerr.Message)}
	case errors.As(err, &aerr):
		if status := aerr.HTTPCode(); status > 0 {
			return &analysis.ProviderHTTPError{Status: status, Details: googleDetails(status, aerr.Error())}
		}
		switch aerr.GRPCStatus().Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
			return &analysis.TransportError{Err: err}
		}
		status := httpStatusFromCode(aerr.GRPCStatus().Code())
		return &analysis.ProviderHTTPError{Status: status, Details: googleDetails(status, aerr.GRPCStatus().Message())}
	default:
		return &analysis.TransportError{Err: err}
	}
}

func googleDetails(status int, msg string) map[string]any {
	d := map[string]any{"code": status}
	if msg != "" {
		d["error"] = msg
	}
	return d
}

func httpStatusFromCode(c codes.Code) int {
	switch c {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
