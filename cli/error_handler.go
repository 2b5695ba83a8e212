package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/grovetools/pkgview/errors"
	"github.com/grovetools/pkgview/tui/theme"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints a message for err based on its code and returns err.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	var pvErr *errors.Error
	stderrors.As(err, &pvErr)
	detail := func(key string) interface{} {
		if pvErr == nil {
			return ""
		}
		return pvErr.Details[key]
	}
	fail := theme.DefaultTheme.Error.Render(theme.IconError)

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "%s Configuration not found. Create a pkgview.yml or pass --config.\n", fail)

	case errors.ErrCodeConfigInvalid:
		fmt.Fprintf(h.Out, "%s %v\n", fail, err)
		if path := detail("path"); path != "" {
			fmt.Fprintf(h.Out, "Fix the configuration in %v\n", path)
		}

	case errors.ErrCodeActionInProgress:
		fmt.Fprintf(h.Out, "%s Another install, uninstall or update is still running. Try again when it finishes.\n", fail)

	case errors.ErrCodeActionFailed:
		fmt.Fprintf(h.Out, "%s '%v' failed: %v\n", fail, detail("action"), stderrors.Unwrap(err))

	case errors.ErrCodePackageNotFound:
		fmt.Fprintf(h.Out, "%s Package '%v' is not in the catalog\n", fail, detail("package"))
		fmt.Fprintf(h.Out, "Run 'pkgview search' to see available packages.\n")

	case errors.ErrCodeProjectNotFound:
		fmt.Fprintf(h.Out, "%s Project '%v' is not part of the solution\n", fail, detail("project"))

	case errors.ErrCodeBackendUnavailable:
		fmt.Fprintf(h.Out, "%s The package backend did not respond (%v)\n", fail, detail("operation"))

	default:
		fmt.Fprintf(h.Out, "%s Error: %v\n", fail, err)
	}

	if h.Verbose && pvErr != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", pvErr.ToJSON())
	}
	return err
}
