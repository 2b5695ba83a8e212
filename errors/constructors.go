package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *Error {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *Error {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// Cancelled marks a load or count refresh that was superseded before completion.
func Cancelled(operation string) *Error {
	return New(ErrCodeCancelled, fmt.Sprintf("%s was superseded", operation)).
		WithDetail("operation", operation)
}

// BackendUnavailable wraps a failed search or metadata call.
func BackendUnavailable(operation string, err error) *Error {
	return Wrap(err, ErrCodeBackendUnavailable, fmt.Sprintf("backend call failed: %s", operation)).
		WithDetail("operation", operation)
}

// ActionFailed wraps an error returned by an install, uninstall or update operation.
func ActionFailed(action string, err error) *Error {
	return Wrap(err, ErrCodeActionFailed, fmt.Sprintf("action failed: %s", action)).
		WithDetail("action", action)
}

// ActionInProgress is returned when an action is started while another is executing.
func ActionInProgress() *Error {
	return New(ErrCodeActionInProgress, "another action is already executing")
}

// EngineClosed is returned when work is submitted to a closed engine.
func EngineClosed() *Error {
	return New(ErrCodeEngineClosed, "engine is closed")
}

// PackageNotFound creates a package not found error
func PackageNotFound(id string) *Error {
	return New(ErrCodePackageNotFound, fmt.Sprintf("package '%s' not found", id)).
		WithDetail("package", id)
}

// ProjectNotFound creates a project not found error
func ProjectNotFound(id string) *Error {
	return New(ErrCodeProjectNotFound, fmt.Sprintf("project '%s' not found", id)).
		WithDetail("project", id)
}

// IsCancellation reports whether err stems from context cancellation or a superseded operation.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, ErrCodeCancelled) ||
		stderrors.Is(err, context.Canceled) ||
		stderrors.Is(err, context.DeadlineExceeded)
}
