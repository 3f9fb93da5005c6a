package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownRunsHooksInReverseOnce(t *testing.T) {
	m := New(time.Second, nil)
	var order []string
	m.Register("postgres", func(context.Context) error { order = append(order, "postgres"); return nil })
	m.Register("scheduler", func(context.Context) error { order = append(order, "scheduler"); return nil })
	m.Register("ignored", nil)

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"scheduler", "postgres"}, order)
}

func TestShutdownJoinsErrorsAndContinues(t *testing.T) {
	m := New(time.Second, nil)
	first, second := errors.New("first"), errors.New("second")
	ran := false
	m.Register("a", func(context.Context) error { ran = true; return nil })
	m.Register("b", func(context.Context) error { return first })
	m.Register("c", func(context.Context) error { return second })

	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
	assert.True(t, ran)
}

func TestGoReportsFailureAndShutdownWaits(t *testing.T) {
	m := New(time.Second, nil)
	stop := make(chan struct{})
	boom := errors.New("listen: address in use")

	m.Go("http", func() error { return boom })
	m.Go("worker", func() error { <-stop; return nil })
	m.Register("worker", func(context.Context) error { close(stop); return nil })

	select {
	case err := <-m.Failures():
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("failure not reported")
	}
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestShutdownTimesOutOnStuckComponent(t *testing.T) {
	m := New(20*time.Millisecond, nil)
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	m.Go("stuck", func() error { <-block; return nil })

	assert.ErrorIs(t, m.Shutdown(context.Background()), context.DeadlineExceeded)
}
