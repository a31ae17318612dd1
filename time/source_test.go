package time

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMillis(t *testing.T) {
	ts := &TestSource{}
	ts.Set(100, 0)

	epoch := ts.Now()

	ts.Add(1500 * time.Millisecond)
	require.Equal(t, uint32(1500), Millis(ts, epoch))
}
