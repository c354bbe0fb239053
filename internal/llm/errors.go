package llm

import (
	"errors"
	"fmt"
)

// Kind categorizes provider failures so callers can react without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfiguration: no provider selected, or a required key is missing.
	KindConfiguration
	// KindBackendUnavailable: client could not be built or the local daemon is unreachable.
	KindBackendUnavailable
	// KindTransient: network error, timeout or non-success response during a call.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindBackendUnavailable:
		return "backend_unavailable"
	case KindTransient:
		return "transient_call_failure"
	default:
		return "unknown"
	}
}

// Error is the error type returned by providers and the factory.
type Error struct {
	Kind     Kind
	Provider string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	prefix := e.Kind.String()
	if e.Provider != "" {
		prefix = e.Provider + ": " + prefix
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Sentinel errors. Callers check with errors.Is(err, ErrMissingKey).
var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrMissingKey      = errors.New("API key required")
	ErrNotConfigured   = errors.New("no AI provider connected")
)

// KindOf extracts the Kind from any error in the chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrUnknownProvider) || errors.Is(err, ErrMissingKey) || errors.Is(err, ErrNotConfigured) {
		return KindConfiguration
	}
	return KindUnknown
}
