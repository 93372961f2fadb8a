package localexecutor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/lazyflow/internal/op"
)

func TestExecute(t *testing.T) {
	add := op.MustDefine("add", func(a, b int) int { return a + b })
	o := op.New("add#1", add, []any{1, 2}, nil, "wf", nil)

	out, err := New().Execute(context.Background(), o, []any{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 3, out)
}

func TestExecute_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	fail := op.MustDefine("fail", func(ctx context.Context) (string, error) { return "", boom })
	o := op.New("fail#1", fail, nil, nil, "wf", nil)

	_, err := New().Execute(context.Background(), o, nil)
	assert.ErrorIs(t, err, boom)
}
