// internal/api/errors.go
// Error taxonomy shared by every component that talks to the backend

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a failure by how the UI should present it
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindAuth       Kind = "auth"
	KindQuota      Kind = "quota"
	KindTransient  Kind = "transient"
	KindNotFound   Kind = "not_found"
	KindUnknown    Kind = "unknown"
)

const genericReason = "Something went wrong. Please try again."

// Error is a classified failure. Used and Limit are populated for quota
// failures when the server reports them.
type Error struct {
	Kind   Kind
	Status int
	Reason string
	Used   *int
	Limit  *int
	Err    error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return genericReason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation builds a locally detected error; no network call is made for these
func Validation(reason string) *Error {
	return &Error{Kind: KindValidation, Reason: reason}
}

func Conflict(reason string) *Error {
	return &Error{Kind: KindConflict, Reason: reason}
}

func NotFound(reason string) *Error {
	return &Error{Kind: KindNotFound, Reason: reason}
}

// KindOf returns the kind of err, KindUnknown when err is not classified
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if isTimeout(err) {
		return KindTransient
	}
	return KindUnknown
}

// IsRetryable reports whether the user may simply try the action again
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// IsInformational reports whether err should be shown as a notice instead of a failure banner
func IsInformational(err error) bool {
	return KindOf(err) == KindConflict
}

// Describe converts err into the title/message pair shown to the user
func Describe(err error) (string, string) {
	if err == nil {
		return "", ""
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		if isTimeout(err) {
			return "Connection problem", "The request timed out. Please try again."
		}
		return "Something went wrong", genericReason
	}

	reason := apiErr.Error()
	switch apiErr.Kind {
	case KindValidation:
		return "Invalid request", reason
	case KindConflict:
		return "Heads up", reason
	case KindAuth:
		return "Session expired", "Please sign in again. " + reason
	case KindQuota:
		if apiErr.Used != nil && apiErr.Limit != nil {
			return "Limit reached", fmt.Sprintf("%s (used %d of %d). Upgrade your plan for more.", reason, *apiErr.Used, *apiErr.Limit)
		}
		return "Limit reached", reason
	case KindTransient:
		return "Connection problem", reason
	case KindNotFound:
		return "Not found", reason
	default:
		return "Something went wrong", reason
	}
}

// fromResponse classifies a non-2xx backend response
func fromResponse(status int, body []byte) *Error {
	var env envelope
	_ = json.Unmarshal(body, &env)

	reason := env.Error
	if reason == "" {
		reason = env.Message
	}
	if reason == "" {
		reason = genericReason
	}

	e := &Error{Status: status, Reason: reason, Used: env.Used, Limit: env.Limit}

	switch {
	case status == http.StatusPaymentRequired || status == http.StatusTooManyRequests:
		e.Kind = KindQuota
	case env.Used != nil || env.Limit != nil:
		e.Kind = KindQuota
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Kind = KindValidation
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindAuth
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusConflict:
		e.Kind = KindConflict
	case status >= 500:
		e.Kind = KindTransient
	default:
		e.Kind = KindUnknown
	}
	return e
}

// fromTransport classifies a failure that never produced a response
func fromTransport(err error) *Error {
	if isTimeout(err) {
		return &Error{Kind: KindTransient, Reason: "The request timed out. Please try again.", Err: err}
	}
	return &Error{Kind: KindTransient, Reason: "Network error. Please check your connection and try again.", Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
