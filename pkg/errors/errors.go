// Package errors provides custom error types for zotsync.
// These errors enable programmatic error checking (errors.Is / errors.As)
// and let the sync orchestrator decide which failures are local to one
// record and which abort the whole command.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is, As and Join mirror the standard library so callers need one import.
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)

// Common sentinel errors for zotsync
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrAPIKeyInvalid indicates that the provided API key is invalid
	ErrAPIKeyInvalid = errors.New("API key invalid")

	// ErrBackendUnavailable indicates that the library backend cannot be reached or used
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrConflict indicates a stale version token on update or delete
	ErrConflict = errors.New("version conflict")

	// ErrMalformedRow indicates an input row that cannot be mapped to a record
	ErrMalformedRow = errors.New("malformed row")

	// ErrInvalidThreshold indicates a similarity threshold outside [0,100]
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrRateLimited indicates that the API rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrReadOnly indicates an attempt to modify a read-only backend
	ErrReadOnly = errors.New("read only")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// MalformedRowError reports an input row that could not be mapped.
// Row counts data rows from 1; the header line is not counted.
type MalformedRowError struct {
	Row     int
	Column  string
	Message string
}

// Error implements the error interface
func (e *MalformedRowError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("malformed row %d: column %s: %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("malformed row %d: missing column %s", e.Row, e.Column)
}

// Is implements errors.Is support
func (e *MalformedRowError) Is(target error) bool {
	return target == ErrMalformedRow
}

// NewMalformedRowError creates a new MalformedRowError
func NewMalformedRowError(row int, column, message string) *MalformedRowError {
	return &MalformedRowError{Row: row, Column: column, Message: message}
}

// InvalidThresholdError reports a similarity threshold outside [0,100].
type InvalidThresholdError struct {
	Threshold int
}

// Error implements the error interface
func (e *InvalidThresholdError) Error() string {
	return fmt.Sprintf("invalid similarity threshold %d: must be between 0 and 100", e.Threshold)
}

// Is implements errors.Is support
func (e *InvalidThresholdError) Is(target error) bool {
	return target == ErrInvalidThreshold || target == ErrInvalidInput
}

// NewInvalidThresholdError creates a new InvalidThresholdError
func NewInvalidThresholdError(threshold int) *InvalidThresholdError {
	return &InvalidThresholdError{Threshold: threshold}
}

// ConflictError reports a stale version token on update or delete.
type ConflictError struct {
	Resource string
	ID       string
	Version  string
	Err      error
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("conflict on %s %s: version %s is stale", e.Resource, e.ID, e.Version)
	}
	return fmt.Sprintf("conflict on %s %s", e.Resource, e.ID)
}

// Unwrap implements errors.Unwrap
func (e *ConflictError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// NewConflictError creates a new ConflictError
func NewConflictError(resource, id, version string) *ConflictError {
	return &ConflictError{Resource: resource, ID: id, Version: version}
}

// BackendUnavailableError reports a connectivity or authentication failure
// of the library backend. It is always fatal for the running command.
type BackendUnavailableError struct {
	Backend   string
	Operation string
	Err       error
}

// Error implements the error interface
func (e *BackendUnavailableError) Error() string {
	msg := fmt.Sprintf("backend %s unavailable", e.Backend)
	if e.Operation != "" {
		msg += " during " + e.Operation
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements errors.Unwrap
func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *BackendUnavailableError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

// NewBackendUnavailableError creates a new BackendUnavailableError
func NewBackendUnavailableError(backend, operation string, err error) *BackendUnavailableError {
	return &BackendUnavailableError{Backend: backend, Operation: operation, Err: err}
}

// StageError reports the orchestrator state in which a command failed.
type StageError struct {
	Command string
	Stage   string
	Err     error
}

// Error implements the error interface
func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed while %s: %v", e.Command, e.Stage, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a new StageError
func NewStageError(command, stage string, err error) *StageError {
	return &StageError{Command: command, Stage: stage, Err: err}
}

// APIError represents an error response from a backend HTTP API
type APIError struct {
	Backend    string
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.Backend, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.Backend, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	switch {
	case e.StatusCode == 429:
		return target == ErrRateLimited
	case e.StatusCode == 412:
		return target == ErrConflict
	case e.StatusCode == 404:
		return target == ErrNotFound
	case e.StatusCode >= 500:
		return target == ErrBackendUnavailable
	}
	return false
}

// NewAPIError creates a new APIError
func NewAPIError(backend string, statusCode int, message string) *APIError {
	return &APIError{
		Backend:    backend,
		StatusCode: statusCode,
		Message:    message,
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "csv", "json", "yaml"
	File    string
	Line    int
	Column  int
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("parse error in %s at %s:%d:%d: %s", e.Format, e.File, e.Line, e.Column, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "delete", "open", "close"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// ResourceError represents an error during resource operations
type ResourceError struct {
	Operation string // "create", "update", "delete", "fetch"
	Resource  string // "record", "config", "request"
	ID        string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %s", e.Operation, e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Resource, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ResourceError{
		Operation: operation,
		Resource:  resource,
		ID:        id,
		Message:   message,
		Err:       err,
	}
}

// AuthenticationError represents an authentication/authorization error
type AuthenticationError struct {
	Backend string
	Method  string // "api_key", "bearer", "query"
	Message string
	Err     error
}

// Error implements the error interface
func (e *AuthenticationError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("authentication error for %s (%s): %s", e.Backend, e.Method, e.Message)
	}
	return fmt.Sprintf("authentication error (%s): %s", e.Method, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAPIKeyInvalid
}

// NewAuthenticationError creates a new AuthenticationError
func NewAuthenticationError(backend, method, message string, err error) *AuthenticationError {
	return &AuthenticationError{
		Backend: backend,
		Method:  method,
		Message: message,
		Err:     err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsConflict checks if an error is a version conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsBackendUnavailable checks if an error indicates backend unavailability
func IsBackendUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

// IsMalformedRow checks if an error is a malformed row error
func IsMalformedRow(err error) bool {
	return errors.Is(err, ErrMalformedRow)
}

// IsInvalidThreshold checks if an error is an invalid threshold error
func IsInvalidThreshold(err error) bool {
	return errors.Is(err, ErrInvalidThreshold)
}

// IsReadOnly checks if an error is a read-only backend error
func IsReadOnly(err error) bool {
	return errors.Is(err, ErrReadOnly)
}

// Helper wrapping functions for common patterns

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapResource wraps an error as a ResourceError
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}
