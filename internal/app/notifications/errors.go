package notifications

import (
	"errors"
	"fmt"

	"github.com/Overland-East-Bay/trip-notifier/internal/platform/actiontoken"
	participantrepoport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/participantrepo"
	triprepoport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/triprepo"
	userrepoport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/userrepo"
)

// Kind classifies why a notification could not be sent.
type Kind string

const (
	KindConfigurationMissing Kind = "configuration_missing"
	KindTemplateUnavailable  Kind = "template_unavailable"
	KindEntityNotFound       Kind = "entity_not_found"
	KindDispatchFailure      Kind = "dispatch_failure"
	// KindLookupFailed is an accessor failure other than absence.
	KindLookupFailed Kind = "lookup_failed"
	KindInvalidInput Kind = "invalid_input"
)

// Error is the typed failure returned by notification operations.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var ne *Error
	if errors.As(err, &ne) {
		return ne.Kind
	}
	return ""
}

func newError(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func templateError(op string, err error) *Error {
	return newError(op, KindTemplateUnavailable, err)
}

func tokenError(op string, err error) *Error {
	if errors.Is(err, actiontoken.ErrSecretMissing) {
		return newError(op, KindConfigurationMissing, err)
	}
	return newError(op, KindInvalidInput, fmt.Errorf("issue action token: %w", err))
}

func lookupError(op string, err error) *Error {
	if isNotFound(err) {
		return newError(op, KindEntityNotFound, err)
	}
	return newError(op, KindLookupFailed, err)
}

func dispatchError(op string, err error) *Error {
	return newError(op, KindDispatchFailure, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, userrepoport.ErrNotFound) ||
		errors.Is(err, triprepoport.ErrNotFound) ||
		errors.Is(err, participantrepoport.ErrNotFound)
}
