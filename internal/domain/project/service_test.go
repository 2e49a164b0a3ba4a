package project

import (
	"context"
	"testing"

	"github.com/cazayus/wshub/internal/service"
	"github.com/cazayus/wshub/internal/shared/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ws := id.NewWorkspaceID()

	svc, err := New(context.Background(), ws)
	require.NoError(t, err)
	assert.Equal(t, ws, svc.Workspace())
	assert.False(t, svc.CreatedAt().IsZero())

	_, err = New(context.Background(), "")
	assert.ErrorIs(t, err, id.ErrInvalidWorkspaceID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(ctx, ws)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAttributesAndClose(t *testing.T) {
	svc, err := New(context.Background(), id.NewWorkspaceID())
	require.NoError(t, err)

	require.NoError(t, svc.Set("formatter", "properties"))
	v, ok := svc.Get("formatter")
	assert.True(t, ok)
	assert.Equal(t, "properties", v)

	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close())
	assert.True(t, svc.Disposed())
	assert.ErrorIs(t, svc.Set("x", "y"), ErrDisposed)

	_, ok = svc.Get("formatter")
	assert.False(t, ok)
}

func TestRegistryDisposal(t *testing.T) {
	r := service.NewRegistry().WithDisposal(true)
	ws := id.NewWorkspaceID()

	svc, err := service.Get(context.Background(), r, ws, Tag, New)
	require.NoError(t, err)

	via, err := r.GetOrCreate(context.Background(), ws, Tag, Factory)
	require.NoError(t, err)
	assert.Same(t, svc, via)

	_, err = r.EvictAll(ws)
	require.NoError(t, err)
	assert.True(t, svc.Disposed())
}
