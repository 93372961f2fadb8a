package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/lazyflow/internal/cli"
)

func TestRun_Version(t *testing.T) {
	out := &bytes.Buffer{}
	err := run(context.Background(), []string{"version"}, strings.NewReader(""), out, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "lazyflow")
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("LAZYFLOW_MOUNT", "")
	t.Setenv("LAZYFLOW_PORT", "")
	t.Setenv("LAZYFLOW_SERVER", "")

	// --- Arrange ---
	invalidHCL := `
		servant {
			mount = "/tmp/lzy"
		// Missing closing brace here
	`
	filePath := filepath.Join(t.TempDir(), "lazyflow.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(invalidHCL), 0o600))

	// --- Act ---
	err := run(context.Background(), []string{"--config", filePath, "wait", "x"}, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})

	// --- Assert ---
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, exitErr.Message, "failed to parse HCL file")
}
