package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUser_DefaultState(t *testing.T) {
	u := NewUser(1, 10)
	require.Equal(t, StateIdle, u.State)
	require.Equal(t, int64(1), u.ID)
	require.Equal(t, int64(10), u.ChatID)
	require.Zero(t, u.Scans)
}

func TestUser_RecordScan(t *testing.T) {
	u := NewUser(1, 10)
	u.SetState(StateCounting)
	u.RecordScan(7)
	u.RecordScan(3)

	require.Equal(t, StateIdle, u.State)
	require.Equal(t, 2, u.Scans)
	require.Equal(t, 3, u.LastCount)
}
