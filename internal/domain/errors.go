package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures by how the run reacts to them.
type ErrorKind string

const (
	// ConfigurationError is fatal: bad credentials, dates or flag combinations.
	ConfigurationError ErrorKind = "configuration"
	// AuthenticationError is fatal: the provider rejected the credential.
	AuthenticationError ErrorKind = "authentication"
	// RateLimitError is recovered: the guard gave up waiting for quota.
	RateLimitError ErrorKind = "rate_limit"
	// TransientProviderError is recovered: retries were exhausted.
	TransientProviderError ErrorKind = "transient"
	// SummarizationError is recovered: the AI summary could not be produced.
	SummarizationError ErrorKind = "summarization"
)

// Error is a classified failure, optionally tied to a unit of work such as
// a repository or a sub-window.
type Error struct {
	Kind ErrorKind
	Unit string
	Err  error
}

func (e *Error) Error() string {
	if e.Unit != "" {
		return fmt.Sprintf("%s error for %s: %v", e.Kind, e.Unit, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Fatal reports whether the run must stop.
func (e *Error) Fatal() bool {
	return e.Kind == ConfigurationError || e.Kind == AuthenticationError
}

// Sentinels for errors.Is checks.
var (
	ErrConfiguration  = &Error{Kind: ConfigurationError}
	ErrAuthentication = &Error{Kind: AuthenticationError}
	ErrRateLimit      = &Error{Kind: RateLimitError}
	ErrTransient      = &Error{Kind: TransientProviderError}
	ErrSummarization  = &Error{Kind: SummarizationError}
)

func NewConfigurationError(err error) error {
	return &Error{Kind: ConfigurationError, Err: err}
}

func NewAuthenticationError(err error) error {
	return &Error{Kind: AuthenticationError, Err: err}
}

func NewRateLimitError(unit string, err error) error {
	return &Error{Kind: RateLimitError, Unit: unit, Err: err}
}

func NewTransientError(unit string, err error) error {
	return &Error{Kind: TransientProviderError, Unit: unit, Err: err}
}

func NewSummarizationError(err error) error {
	return &Error{Kind: SummarizationError, Err: err}
}

// IsFatal reports whether err, or anything it wraps, must abort the run.
func IsFatal(err error) bool {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Fatal()
	}
	return false
}

// KindOf returns the classification of err, or "" when unclassified.
func KindOf(err error) ErrorKind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return ""
}

// Warning is a recovered failure reported at the end of the run.
type Warning struct {
	Unit    string    `json:"unit" yaml:"unit"`
	Kind    ErrorKind `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`
}

// WarningFrom turns a recovered error into a warning for unit.
func WarningFrom(unit string, err error) Warning {
	kind := KindOf(err)
	if kind == "" {
		kind = TransientProviderError
	}
	return Warning{Unit: unit, Kind: kind, Message: err.Error()}
}

func (w Warning) String() string {
	if w.Unit == "" {
		return fmt.Sprintf("[%s] %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", w.Kind, w.Unit, w.Message)
}
