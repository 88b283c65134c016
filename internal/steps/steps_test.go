package steps

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driven"
)

func input(stepType string, cfg map[string]any) *domain.StepInput {
	return &domain.StepInput{
		ExecutionID: "exec-1",
		WorkflowID:  "wf",
		StepIndex:   1,
		Spec:        domain.StepSpec{Name: "s", Type: stepType, Config: cfg},
		Trigger:     &domain.VaultEvent{Path: "notes/a.md", ChangeKind: domain.ChangeModified, Sequence: 7},
		Attempt:     1,
	}
}

func TestCatalog(t *testing.T) {
	t.Run("default registers built-ins", func(t *testing.T) {
		c := Default(nil)
		assert.Equal(t, []string{"delay", "fail", "http", "log"}, c.Types())

		s, err := c.Get("log")
		require.NoError(t, err)
		assert.IsType(t, &Log{}, s)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewCatalog().Get("teleport")
		assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	})

	t.Run("rejects duplicates and empty registrations", func(t *testing.T) {
		c := NewCatalog()
		require.NoError(t, c.Register("x", NewFail()))
		dup := c.Register("x", NewFail())
		assert.ErrorIs(t, dup, domain.ErrDuplicateStepType)
		assert.NotErrorIs(t, dup, domain.ErrDuplicateID)
		assert.EqualError(t, dup, `step type already registered: "x"`)
		assert.ErrorIs(t, c.Register("", NewFail()), domain.ErrInvalidInput)
		assert.ErrorIs(t, c.Register("y", nil), domain.ErrInvalidInput)
		assert.Panics(t, func() { c.MustRegister("x", NewFail()) })
	})

	t.Run("accepts step funcs", func(t *testing.T) {
		c := NewCatalog()
		c.MustRegister("noop", driven.StepFunc(func(context.Context, *domain.StepInput) (domain.StepOutput, error) {
			return domain.StepOutput{"ok": true}, nil
		}))
		s, err := c.Get("noop")
		require.NoError(t, err)
		out, err := s.Execute(context.Background(), input("noop", nil))
		require.NoError(t, err)
		assert.Equal(t, true, out["ok"])
	})
}

func TestLog(t *testing.T) {
	t.Run("expands placeholders", func(t *testing.T) {
		out, err := NewLog().Execute(context.Background(), input("log", map[string]any{
			"message": "{kind} {path} in {workflow}/{execution}/{step}",
		}))
		require.NoError(t, err)
		assert.Equal(t, "modified notes/a.md in wf/exec-1/s", out["message"])
	})

	t.Run("default message without trigger", func(t *testing.T) {
		in := input("log", nil)
		in.Trigger = nil
		out, err := NewLog().Execute(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, "workflow wf step s ran for ", out["message"])
	})

	t.Run("invalid config is permanent", func(t *testing.T) {
		for _, cfg := range []map[string]any{
			{"level": "shout"},
			{"message": 12},
		} {
			_, err := NewLog().Execute(context.Background(), input("log", cfg))
			require.Error(t, err)
			assert.False(t, domain.IsRetryable(err))
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		}
	})
}

func TestDelay(t *testing.T) {
	t.Run("waits for the duration", func(t *testing.T) {
		start := time.Now()
		out, err := NewDelay().Execute(context.Background(), input("delay", map[string]any{"duration": "20ms"}))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
		assert.Equal(t, int64(20), out["waited_ms"])
	})

	t.Run("accepts numeric seconds", func(t *testing.T) {
		out, err := NewDelay().Execute(context.Background(), input("delay", map[string]any{"duration": 0.01}))
		require.NoError(t, err)
		assert.Equal(t, int64(10), out["waited_ms"])
	})

	t.Run("cancellation interrupts", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := NewDelay().Execute(ctx, input("delay", map[string]any{"duration": "1h"}))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("rejects bad durations", func(t *testing.T) {
		for _, d := range []any{"soon", "-1s", "48h", true} {
			_, err := NewDelay().Execute(context.Background(), input("delay", map[string]any{"duration": d}))
			require.Error(t, err, d)
			assert.False(t, domain.IsRetryable(err), d)
		}
	})
}

func TestFail(t *testing.T) {
	t.Run("retryable by default", func(t *testing.T) {
		_, err := NewFail().Execute(context.Background(), input("fail", map[string]any{"message": "boom {path}"}))
		require.Error(t, err)
		assert.True(t, domain.IsRetryable(err))
		assert.Equal(t, "boom notes/a.md", err.Error())
	})

	t.Run("permanent", func(t *testing.T) {
		_, err := NewFail().Execute(context.Background(), input("fail", map[string]any{"permanent": true}))
		require.Error(t, err)
		assert.False(t, domain.IsRetryable(err))
	})

	t.Run("succeeds after attempts", func(t *testing.T) {
		in := input("fail", map[string]any{"succeed_after": int64(3)})
		for attempt := 1; attempt <= 2; attempt++ {
			in.Attempt = attempt
			_, err := NewFail().Execute(context.Background(), in)
			assert.Error(t, err)
		}
		in.Attempt = 3
		out, err := NewFail().Execute(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, 3, out["attempts"])
	})

	t.Run("bad config", func(t *testing.T) {
		_, err := NewFail().Execute(context.Background(), input("fail", map[string]any{"succeed_after": 1.5}))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
