package output

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkerRunsJobsInOrderOneAtATime(t *testing.T) {
	w := NewWorker()
	defer w.Close()

	var running atomic.Int32
	var order []int
	for i := 0; i < 20; i++ {
		err := w.Do(context.Background(), func(context.Context) {
			require.Equal(t, int32(1), running.Add(1))
			order = append(order, i)
			running.Add(-1)
		})
		require.NoError(t, err)
	}

	want := make([]int, 20)
	for i := range want {
		want[i] = i
	}
	require.Equal(t, want, order)
}

func TestWorkerStartedJobIgnoresCancellation(t *testing.T) {
	w := NewWorker()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var jobCtxErr error
	err := w.Do(ctx, func(jobCtx context.Context) {
		cancel()
		time.Sleep(5 * time.Millisecond)
		jobCtxErr = jobCtx.Err()
	})
	require.NoError(t, err)
	require.NoError(t, jobCtxErr)
}

func TestWorkerClosedRejectsJobs(t *testing.T) {
	w := NewWorker()
	w.Close()
	w.Close()

	err := w.Do(context.Background(), func(context.Context) {
		t.Fatal("job ran after close")
	})
	require.ErrorIs(t, err, ErrWorkerClosed)
}
