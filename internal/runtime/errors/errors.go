package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrSchemaViolation      = sterrors.New("outagewire: schema violation")
	ErrTransportUnavailable = sterrors.New("outagewire: transport unavailable")
	ErrHandlerFailure       = sterrors.New("outagewire: handler failure")

	ErrConfigRequired        = sterrors.New("outagewire: configuration is required")
	ErrLoggerRequired        = sterrors.New("outagewire: logger is required")
	ErrHandlerRequired       = sterrors.New("outagewire: handler function is required")
	ErrCodecRequired         = sterrors.New("outagewire: codec is required")
	ErrTransportRequired     = sterrors.New("outagewire: transport is required")
	ErrExchangeNameRequired  = sterrors.New("outagewire: exchange name is required")
	ErrSubscriberIDRequired  = sterrors.New("outagewire: subscriber id is required")
	ErrSubscriptionClosed    = sterrors.New("outagewire: subscription is closed")
	ErrUnknownCodec          = sterrors.New("outagewire: unknown codec")
	ErrDuplicateSubscriberID = sterrors.New("outagewire: subscriber id already registered")
	ErrServiceRequired       = sterrors.New("outagewire: service is required")
	ErrServiceStarted        = sterrors.New("outagewire: service already started")
)

// SchemaViolationError reports a payload or record that does not match the
// outage event schema. Path names the offending field, for example
// "outageEvent[2].status".
type SchemaViolationError struct {
	Path   string
	Reason string
	Err    error
}

// NewSchemaViolation builds a SchemaViolationError for path.
func NewSchemaViolation(path, reason string, cause error) *SchemaViolationError {
	return &SchemaViolationError{Path: path, Reason: reason, Err: cause}
}

func (e *SchemaViolationError) Error() string {
	msg := ErrSchemaViolation.Error()
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaViolationError) Unwrap() error { return e.Err }

func (e *SchemaViolationError) Is(target error) bool { return target == ErrSchemaViolation }

// TransportUnavailableError is returned when the broker cannot be reached
// while declaring, binding or publishing. Nothing is retried internally.
type TransportUnavailableError struct {
	Op       string
	Exchange string
	Err      error
}

// NewTransportUnavailable wraps cause, returning nil when cause is nil.
func NewTransportUnavailable(op, exchange string, cause error) error {
	if cause == nil {
		return nil
	}
	return &TransportUnavailableError{Op: op, Exchange: exchange, Err: cause}
}

func (e *TransportUnavailableError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrTransportUnavailable.Error(), e.Op)
	if e.Exchange != "" {
		msg += " " + e.Exchange
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportUnavailableError) Unwrap() error { return e.Err }

func (e *TransportUnavailableError) Is(target error) bool { return target == ErrTransportUnavailable }

// HandlerFailureError wraps an error or panic raised by an application handler.
type HandlerFailureError struct {
	Subscriber  string
	MessageUUID string
	Err         error
}

func (e *HandlerFailureError) Error() string {
	msg := fmt.Sprintf("%s: subscriber %q message %s", ErrHandlerFailure.Error(), e.Subscriber, e.MessageUUID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *HandlerFailureError) Unwrap() error { return e.Err }

func (e *HandlerFailureError) Is(target error) bool { return target == ErrHandlerFailure }

// ConfigValidationError wraps the joined problems reported by Config.Validate.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "outagewire: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// NewConfigValidationError returns nil for a nil error.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
