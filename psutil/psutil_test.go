package psutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInfo(t *testing.T) {
	u, err := New()
	require.NoError(t, err)

	info, err := u.Info(context.Background())
	require.NoError(t, err)

	require.GreaterOrEqual(t, info.NCPU, 1.0)
	require.NotZero(t, info.MemTotal)
	require.NotZero(t, info.MemProc)
	require.LessOrEqual(t, info.MemUsed, info.MemTotal)
}
