package app

import (
	"bytes"
	"context"
	"os"
	"sync"
	"testing"

	"github.com/vk/lazyflow/internal/config"
	"github.com/vk/lazyflow/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupAppTest creates a new app instance with debug logging into a buffer.
// The mount point is a fresh temporary directory.
func SetupAppTest(t *testing.T, cfg *config.Config, modules ...registry.Module) (*App, *SafeBuffer) {
	t.Helper()

	if cfg == nil {
		cfg = config.Default()
	}
	cfg.LogLevel = "debug"
	cfg.Mount = t.TempDir()
	logBuffer := &SafeBuffer{}
	testApp := NewApp(context.Background(), logBuffer, cfg, modules...)

	t.Cleanup(func() {
		if os.Getenv("LAZYFLOW_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
