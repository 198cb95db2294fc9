package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// Access & entitlement errors.
// Handlers map them to HTTP responses; services return them as is (or wrapped).
var (
	ErrUnauthenticated        = errors.New("user not authenticated")
	ErrInsufficientPermission = errors.New("permission denied")
	ErrCrossTenantAccess      = errors.New("cross-tenant access denied")
	ErrNoActiveSubscription   = errors.New("no active subscription")
	ErrUnknownFeature         = errors.New("unknown feature")
	ErrUnknownLimit           = errors.New("unknown limit")
	ErrConcurrentModification = errors.New("resource was modified concurrently")
	ErrDataUnavailable        = errors.New("data unavailable")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return "validation failed"
	}
	return err.Err.Error()
}

// UpgradeRequiredError is returned when the school's plan does not allow an action.
// It is rendered as an upgrade prompt rather than a failure.
type UpgradeRequiredError struct {
	Reason  string // no_active_subscription | feature_unavailable | limit_reached
	Feature string
	Limit   string
}

const (
	UpgradeReasonNoSubscription = "no_active_subscription"
	UpgradeReasonFeature        = "feature_unavailable"
	UpgradeReasonLimit          = "limit_reached"
)

func NewUpgradeRequiredError(reason, feature, limit string) error {
	return &UpgradeRequiredError{Reason: reason, Feature: feature, Limit: limit}
}

func (err UpgradeRequiredError) Error() string {
	switch {
	case err.Feature != "":
		return fmt.Sprintf("upgrade required: %s (%s)", err.Reason, err.Feature)
	case err.Limit != "":
		return fmt.Sprintf("upgrade required: %s (%s)", err.Reason, err.Limit)
	default:
		return "upgrade required: " + err.Reason
	}
}

// unavailable marks a transient storage failure. It matches ErrDataUnavailable.
type unavailable struct {
	err error
}

// NewUnavailableError wraps a storage failure so that callers may retry it.
func NewUnavailableError(err error, msg string) error {
	return &unavailable{err: errors.Wrap(err, msg)}
}

func (u *unavailable) Error() string        { return u.err.Error() }
func (u *unavailable) Unwrap() error        { return u.err }
func (u *unavailable) Is(target error) bool { return target == ErrDataUnavailable }

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrDataUnavailable)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
