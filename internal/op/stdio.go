package op

import (
	"context"
	"io"
	"os"
)

type stdoutKey struct{}

// WithStdout routes Stdout(ctx) to w. The servant uses it to capture what a
// function prints while it runs remotely.
func WithStdout(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, stdoutKey{}, w)
}

// Stdout is where a marked function should write user-visible output.
func Stdout(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(stdoutKey{}).(io.Writer); ok {
		return w
	}
	return os.Stdout
}
