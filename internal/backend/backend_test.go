package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLIBackendRunsCommand(t *testing.T) {
	b := NewCLIBackend("sh", "-c", "cat")
	res, err := b.Invoke(context.Background(), "hello backend", Options{Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello backend", res.Text)
	assert.Greater(t, res.Duration, time.Duration(0))
}

func TestCLIBackendNonZeroExitIsNotAnError(t *testing.T) {
	b := NewCLIBackend("sh", "-c", "echo boom >&2; exit 3")
	res, err := b.Invoke(context.Background(), "", Options{Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "boom", res.Text)
}

func TestCLIBackendTimeout(t *testing.T) {
	b := NewCLIBackend("sh", "-c", "sleep 5")
	_, err := b.Invoke(context.Background(), "", Options{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timed out")
}

func TestCLIBackendMissingCommand(t *testing.T) {
	b := NewCLIBackend("")
	_, err := b.Invoke(context.Background(), "", Options{})
	assert.Error(t, err)
}

func TestCombineOutput(t *testing.T) {
	assert.Equal(t, "out", combineOutput("out\n", ""))
	assert.Equal(t, "err", combineOutput("", "err\n"))
	assert.Equal(t, "out\nerr", combineOutput("out", "err"))
}

func TestScriptedInvokerReplaysAndRepeats(t *testing.T) {
	s := NewScriptedInvoker(
		ScriptStep{Text: "first"},
		ScriptStep{Text: "second", ExitCode: 1},
	)
	ctx := context.Background()

	res, err := s.Invoke(ctx, "a", Options{})
	require.NoError(t, err)
	assert.Equal(t, "first", res.Text)

	res, err = s.Invoke(ctx, "b", Options{})
	require.NoError(t, err)
	assert.Equal(t, "second", res.Text)
	assert.Equal(t, 1, res.ExitCode)

	// Script exhausted, last step repeats.
	res, err = s.Invoke(ctx, "c", Options{})
	require.NoError(t, err)
	assert.Equal(t, "second", res.Text)

	assert.Equal(t, 3, s.Calls())
	assert.Equal(t, []string{"a", "b", "c"}, s.Prompts)
}

func TestScriptedInvokerError(t *testing.T) {
	boom := errors.New("connection reset")
	s := NewScriptedInvoker(ScriptStep{Err: boom})
	_, err := s.Invoke(context.Background(), "x", Options{})
	assert.ErrorIs(t, err, boom)
}
