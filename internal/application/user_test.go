package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"chip-counter/internal/domain/entity"
	"chip-counter/internal/infrastructure/storage"
)

func TestUserService_BeginCountAndCancel(t *testing.T) {
	repo := storage.NewMemoryUserRepository()
	svc := NewUserService(repo)
	ctx := context.Background()

	user, err := svc.BeginCount(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingPhoto, user.State)

	user, err = svc.Cancel(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateIdle, user.State)
}

func TestUserService_FinishCount(t *testing.T) {
	repo := storage.NewMemoryUserRepository()
	svc := NewUserService(repo)
	ctx := context.Background()

	_, err := svc.SetState(ctx, 2, 20, entity.StateCounting)
	require.NoError(t, err)

	user, err := svc.FinishCount(ctx, 2, 20, 12)
	require.NoError(t, err)
	require.Equal(t, entity.StateIdle, user.State)
	require.Equal(t, 1, user.Scans)
	require.Equal(t, 12, user.LastCount)
}
