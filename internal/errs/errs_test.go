package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKinds(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		kind error
	}{
		{"usage", Usage("workflow %s already closed", "wf"), ErrUsage},
		{"remote", &RemoteCommandError{Command: "touch", ExitCode: 1, Stderr: "boom"}, ErrRemoteCommand},
		{"materialization", &MaterializationError{Operation: "f#1", Err: errors.New("x")}, ErrMaterialization},
		{"whiteboard", &WhiteboardViolation{Field: "A", Reason: "already written"}, ErrWhiteboard},
		{"dependency", &DependencyResolutionError{Modules: []string{"a", "b"}, Reason: "not found"}, ErrDependencyResolution},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", tc.err)
			assert.ErrorIs(t, wrapped, tc.kind)
			for _, other := range []error{ErrUsage, ErrRemoteCommand, ErrMaterialization, ErrWhiteboard, ErrDependencyResolution} {
				if other != tc.kind {
					assert.NotErrorIs(t, wrapped, other)
				}
			}
		})
	}
}

func TestMaterializationError_UnwrapsCause(t *testing.T) {
	cause := &RemoteCommandError{Command: "wait", ExitCode: 3}
	err := &MaterializationError{Operation: "f#1", Stderr: "traceback", Err: cause}

	var rce *RemoteCommandError
	require.ErrorAs(t, err, &rce)
	assert.Equal(t, 3, rce.ExitCode)
	assert.Contains(t, err.Error(), "stderr: traceback")
}

func TestRemoteCommandError_Message(t *testing.T) {
	err := &RemoteCommandError{Command: "channel create", ExitCode: 2, Stderr: "exists\n"}
	assert.Equal(t, `remote command failed: "channel create" exited with code 2: exists`, err.Error())
}
