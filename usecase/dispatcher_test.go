package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/planner/domain"
)

func TestDispatcherExecutesRegisteredCommand(t *testing.T) {
	d := NewDispatcher()
	d.RegisterCommand("echo", func(ctx context.Context, payload interface{}) (interface{}, error) {
		return payload, nil
	})

	out, err := d.ExecuteCommand(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestDispatcherUnknownCommandIsNotFound(t *testing.T) {
	d := NewDispatcher()

	_, err := d.ExecuteCommand(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))

	_, err = d.ExecuteQuery(context.Background(), "missing", nil)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestDispatcherRejectsDuplicates(t *testing.T) {
	d := NewDispatcher()
	noop := func(ctx context.Context, payload interface{}) (interface{}, error) { return nil, nil }
	d.RegisterCommand("job", noop)

	assert.Panics(t, func() { d.RegisterCommand("job", noop) })
}

func TestDispatcherCommandsAreSorted(t *testing.T) {
	d := NewDispatcher()
	noop := func(ctx context.Context, payload interface{}) (interface{}, error) { return nil, nil }
	d.RegisterCommand("sweep.all", noop)
	d.RegisterCommand("materialize.all", noop)
	d.RegisterCommand("materialize.user", noop)

	assert.Equal(t, []string{"materialize.all", "materialize.user", "sweep.all"}, d.Commands())
}
