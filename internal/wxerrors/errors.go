// Package wxerrors defines the error taxonomy shared across the pipeline.
//
// Components never propagate raw errors across a worker-task boundary;
// they classify into one of these kinds first (see scheduler.TaskOutcome).
package wxerrors

import (
	"errors"
	"fmt"
)

// Kind identifies which taxonomy bucket an error belongs to.
type Kind int

const (
	// KindUnknown is the zero value; KindOf reports it for an error that
	// was never classified, and Recoverable treats such an error as recoverable.
	KindUnknown Kind = iota
	KindConfig
	KindFetch
	KindDataDecode
	KindMissingField
	KindRegionMismatch
	KindRender
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindFetch:
		return "FetchError"
	case KindDataDecode:
		return "DataDecodeError"
	case KindMissingField:
		return "MissingFieldError"
	case KindRegionMismatch:
		return "RegionMismatchError"
	case KindRender:
		return "RenderError"
	case KindCancelled:
		return "CancelledError"
	default:
		return "UnknownError"
	}
}

// Error wraps an underlying cause with a taxonomy Kind and the
// model/run/forecast-hour/variable context the scheduler logs alongside it.
type Error struct {
	Kind     Kind
	Model    string
	RunTime  string
	Forecast int
	Variable string
	Cause    error
}

func (e *Error) Error() string {
	ctx := e.Model
	if e.RunTime != "" {
		ctx += " " + e.RunTime
	}
	if e.Variable != "" {
		ctx += " " + e.Variable
	}
	if e.Forecast >= 0 {
		ctx = fmt.Sprintf("%s fh=%03d", ctx, e.Forecast)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s[%s]: %v", e.Kind, ctx, e.Cause)
	}
	return fmt.Sprintf("%s[%s]", e.Kind, ctx)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified error with context for logging and outcome reporting.
func New(kind Kind, model, runTime string, forecastHour int, variable string, cause error) *Error {
	return &Error{
		Kind:     kind,
		Model:    model,
		RunTime:  runTime,
		Forecast: forecastHour,
		Variable: variable,
		Cause:    cause,
	}
}

// Config wraps a registry lookup failure.
func Config(cause error) *Error { return &Error{Kind: KindConfig, Forecast: -1, Cause: cause} }

// KindOf extracts the Kind from err, or KindUnknown if err was never classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Recoverable reports whether the scheduler should retry this (variable, fh)
// on a later poll or a later run, versus treat it as a fatal configuration bug.
func Recoverable(err error) bool {
	switch KindOf(err) {
	case KindFetch, KindMissingField, KindDataDecode, KindRender:
		return true
	case KindConfig, KindRegionMismatch:
		return false
	case KindCancelled:
		return false
	default:
		return true
	}
}
