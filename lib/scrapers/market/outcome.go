package market

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound marks a 404: the listing or page no longer exists.
// Terminal for that listing within a sweep, never retried inline.
var ErrNotFound = errors.New("not found")

// ErrAuth marks a rejected session: the server bounced the request to
// the login page. The credential may be refreshed externally, so
// automations keep attempting on later sweeps.
var ErrAuth = errors.New("session rejected")

// HTTPError is any non-2xx status other than 404.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// NetworkError wraps transport-level failures (timeout, DNS, reset) so
// the scheduler can keep running across transient blips.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %s", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeFailure
	OutcomeMustWait
)

// Outcome is the tagged result of one mutation attempt. MustWait is
// scheduling information, not a defect: the server told us when to
// come back.
type Outcome struct {
	Kind    OutcomeKind
	Message string
	Wait    time.Duration
}

func Success(message string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Message: message}
}

func Failure(message string) Outcome {
	return Outcome{Kind: OutcomeFailure, Message: message}
}

func MustWait(d time.Duration, message string) Outcome {
	return Outcome{Kind: OutcomeMustWait, Wait: d, Message: message}
}

// FailureFromErr converts a fetch/submit error into a Failure outcome
// with a reason string that keeps the taxonomy visible in the log:
// "site changed" reads differently from "network broke".
func FailureFromErr(err error) Outcome {
	switch {
	case errors.Is(err, ErrNotFound):
		return Failure("listing no longer exists")
	case errors.Is(err, ErrAuth):
		return Failure("auth: " + ErrAuth.Error())
	default:
		return Failure(err.Error())
	}
}
