// Package errs defines the error taxonomy shared by the workflow runtime.
//
// Every concrete error type matches one sentinel kind through errors.Is, so
// callers can branch on the kind without caring about the concrete type:
//
//	if errors.Is(err, errs.ErrUsage) { ... }
//
// Typed errors carry the details (command, exit code, stderr, field name)
// and are retrieved with errors.As.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds.
var (
	ErrUsage                = errors.New("usage error")
	ErrRemoteCommand        = errors.New("remote command failed")
	ErrMaterialization      = errors.New("materialization failed")
	ErrWhiteboard           = errors.New("whiteboard violation")
	ErrDependencyResolution = errors.New("dependency resolution failed")
)

// UsageError reports a misuse of the API: wrong lifecycle state, nested
// workflows, waiting on an execution that was never started.
type UsageError struct {
	Msg string
}

// Usage builds a UsageError from a format string.
func Usage(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUsage, e.Msg)
}

func (e *UsageError) Is(target error) bool { return target == ErrUsage }

// RemoteCommandError is returned when a control command exits non-zero or
// writes to stderr. Such commands are never retried.
type RemoteCommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *RemoteCommandError) Error() string {
	msg := fmt.Sprintf("%s: %q exited with code %d", ErrRemoteCommand, e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *RemoteCommandError) Is(target error) bool { return target == ErrRemoteCommand }

// MaterializationError wraps the failure of a single operation. Stderr is set
// when the failure happened on a remote servant.
type MaterializationError struct {
	Operation string
	Stderr    string
	Err       error
}

func (e *MaterializationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "operation %s: %s", e.Operation, ErrMaterialization)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, ": stderr: %s", s)
	}
	return b.String()
}

func (e *MaterializationError) Unwrap() error { return e.Err }

func (e *MaterializationError) Is(target error) bool { return target == ErrMaterialization }

// WhiteboardViolation reports a rejected whiteboard write.
type WhiteboardViolation struct {
	Field  string
	Reason string
}

func (e *WhiteboardViolation) Error() string {
	return fmt.Sprintf("%s: field %q: %s", ErrWhiteboard, e.Field, e.Reason)
}

func (e *WhiteboardViolation) Is(target error) bool { return target == ErrWhiteboard }

// DependencyResolutionError names the packages the environment explorer
// could neither locate nor ship.
type DependencyResolutionError struct {
	Modules []string
	Reason  string
}

func (e *DependencyResolutionError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrDependencyResolution, e.Reason, strings.Join(e.Modules, ", "))
}

func (e *DependencyResolutionError) Is(target error) bool {
	return target == ErrDependencyResolution
}
