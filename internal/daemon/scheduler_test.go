package daemon

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsJobsUntilStopped(t *testing.T) {
	s, err := NewScheduler()
	require.NoError(t, err)

	var runs atomic.Int32
	id, err := s.Every("resync", 20*time.Millisecond, func() { runs.Add(1) })
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, 1, s.Jobs())

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	stopped := runs.Load()
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, stopped, runs.Load())
}
