package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for consistent error handling across the engine.

// ErrInsufficientData is returned when a computation needs history and
// none is available. It is distinct from a zero-valued result.
var ErrInsufficientData = errors.New("insufficient data")

// ErrRateUnavailable is returned when no provider, including the static
// table, can supply an exchange rate.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInvalidDateRange indicates a filter interval whose start is after its end.
type ErrInvalidDateRange struct {
	Start Date
	End   Date
}

func (e *ErrInvalidDateRange) Error() string {
	return fmt.Sprintf("invalid date range: start %s is after end %s", e.Start, e.End)
}

// ErrSchema indicates tabular input is missing required columns.
type ErrSchema struct {
	Missing []string
}

func (e *ErrSchema) Error() string {
	return fmt.Sprintf("schema error: missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ErrData indicates a malformed value in tabular input.
type ErrData struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ErrData) Error() string {
	return fmt.Sprintf("data error at row %d column '%s' (%q): %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *ErrData) Unwrap() error {
	return e.Err
}

// ErrTranslation indicates a question could not be turned into a query.
type ErrTranslation struct {
	Reason string
}

func (e *ErrTranslation) Error() string {
	return TranslationErrorMarker + " " + e.Reason
}

// ErrExecution indicates a query failed to prepare or run in the sandbox.
type ErrExecution struct {
	Query string
	Err   error
}

func (e *ErrExecution) Error() string {
	return fmt.Sprintf("query execution error: %v", e.Err)
}

func (e *ErrExecution) Unwrap() error {
	return e.Err
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}
