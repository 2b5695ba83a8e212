package errors

import (
	"context"
	"fmt"
	"testing"
)

func TestError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodePackageNotFound, "package not found")
	if err.Code != ErrCodePackageNotFound {
		t.Errorf("expected code %s, got %s", ErrCodePackageNotFound, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodeActionFailed, "install failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	// Test Is function
	if !Is(wrapped, ErrCodeActionFailed) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodePackageNotFound) {
		t.Error("Is should return false for non-matching code")
	}

	// Test WithDetail
	detailed := err.WithDetail("package", "left-pad").WithDetail("version", "1.0.0")
	if detailed.Details["package"] != "left-pad" {
		t.Error("WithDetail should add details")
	}
}

func TestIsLooksThroughNestedCodes(t *testing.T) {
	inner := BackendUnavailable("search", fmt.Errorf("connection refused"))
	outer := ActionFailed("install", inner)

	if GetCode(outer) != ErrCodeActionFailed {
		t.Errorf("expected outer code %s, got %s", ErrCodeActionFailed, GetCode(outer))
	}
	if !Is(outer, ErrCodeBackendUnavailable) {
		t.Error("Is should find a nested code")
	}

	stdWrapped := fmt.Errorf("context: %w", inner)
	if GetCode(stdWrapped) != ErrCodeBackendUnavailable {
		t.Error("GetCode should unwrap fmt.Errorf wrappers")
	}
}

func TestIsCancellation(t *testing.T) {
	if !IsCancellation(Cancelled("load")) {
		t.Error("Cancelled should be a cancellation")
	}
	if !IsCancellation(fmt.Errorf("search: %w", context.Canceled)) {
		t.Error("context.Canceled should be a cancellation")
	}
	if IsCancellation(BackendUnavailable("search", fmt.Errorf("boom"))) {
		t.Error("backend failure is not a cancellation")
	}
	if IsCancellation(nil) {
		t.Error("nil is not a cancellation")
	}
}

func TestErrorConstructors(t *testing.T) {
	err := PackageNotFound("left-pad")
	if err.Code != ErrCodePackageNotFound {
		t.Errorf("expected code %s, got %s", ErrCodePackageNotFound, err.Code)
	}
	if err.Details["package"] != "left-pad" {
		t.Error("PackageNotFound should include package detail")
	}

	err = ActionFailed("uninstall", fmt.Errorf("locked"))
	if err.Details["action"] != "uninstall" {
		t.Error("ActionFailed should include action detail")
	}
}
