package env_vars

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvVars_FiltersByPrefix(t *testing.T) {
	t.Setenv("LAZYFLOW_TEST_A", "1")
	t.Setenv("OTHER_TEST_B", "2")

	got := EnvVars(context.Background(), "LAZYFLOW_TEST_")
	assert.Equal(t, map[string]string{"LAZYFLOW_TEST_A": "1"}, got)
}
