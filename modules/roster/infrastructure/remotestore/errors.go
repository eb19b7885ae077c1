package remotestore

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
	"github.com/iota-uz/roster-sync/pkg/httpapi"
)

type transportError struct {
	err error
}

func (e *transportError) Error() string { return "http do: " + e.err.Error() }

func (e *transportError) Unwrap() error { return e.err }

// responseError is a non-2xx answer, with the decoded envelope when the body had one.
type responseError struct {
	status   int
	body     string
	envelope *httpapi.ErrorEnvelope
}

func (e *responseError) Error() string {
	if e.envelope != nil {
		return fmt.Sprintf("http status=%d: %s", e.status, e.envelope.Error())
	}
	return fmt.Sprintf("http status=%d body=%s", e.status, e.body)
}

func (e *responseError) code() string {
	if e.envelope == nil {
		return ""
	}
	return e.envelope.Code
}

// isTransient reports failures that count against the circuit breaker.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var re *responseError
	if errors.As(err, &re) {
		return re.status >= 500 || re.status == http.StatusTooManyRequests
	}
	var te *transportError
	return errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded)
}

// classify attaches the roster error kind while keeping the cause in the chain.
func classify(op string, err error) error {
	var re *responseError
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %s: store unavailable: %w", roster.ErrRemote, op, err)
	case errors.As(err, &re) && re.status == http.StatusNotFound:
		return fmt.Errorf("%w: %s: %w", roster.ErrNotFound, op, err)
	case errors.As(err, &re) && (re.status == http.StatusBadRequest || re.status == http.StatusUnprocessableEntity):
		return fmt.Errorf("%w: %s rejected: %w", roster.ErrInput, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", roster.ErrRemote, op, err)
	}
}
