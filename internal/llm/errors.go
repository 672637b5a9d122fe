package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/Jj0520/FileWise-sub000/pkg/types"
)

// Status text emitted by Google APIs and gRPC when a quota or upstream limit is hit
var transientMarkers = []string{
	"RESOURCE_EXHAUSTED",
	"code = ResourceExhausted",
	"UNAVAILABLE",
	"code = Unavailable",
	"Error 429",
	"Error 503",
}

var authMarkers = []string{
	"PERMISSION_DENIED",
	"code = PermissionDenied",
	"UNAUTHENTICATED",
	"code = Unauthenticated",
	"API_KEY_INVALID",
	"API key not valid",
}

// ClassifyError maps a provider error onto types.ErrTransientProvider or
// types.ErrAuth. Errors that match neither, and context errors, are returned
// unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, types.ErrTransientProvider) || errors.Is(err, types.ErrAuth) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if sentinel := sentinelForStatus(gerr.Code); sentinel != nil {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
	}

	msg := err.Error()
	for _, m := range authMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %w", types.ErrAuth, err)
		}
	}
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %w", types.ErrTransientProvider, err)
		}
	}
	return err
}

// ClassifyStatus builds the error for a non-200 HTTP response
func ClassifyStatus(code int, body string) error {
	base := fmt.Errorf("api error %d: %s", code, strings.TrimSpace(body))
	if sentinel := sentinelForStatus(code); sentinel != nil {
		return fmt.Errorf("%w: %w", sentinel, base)
	}
	return base
}

func sentinelForStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return types.ErrAuth
	case code == http.StatusTooManyRequests, code >= 500:
		return types.ErrTransientProvider
	}
	return nil
}

// IsRetryable reports whether err is worth one more attempt after a backoff
func IsRetryable(err error) bool {
	return errors.Is(err, types.ErrTransientProvider)
}
