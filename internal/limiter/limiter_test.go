package limiter

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNeverExceedsBoundAndDeliversAllResults(t *testing.T) {
	t.Parallel()

	const bound = 3
	const tasks = 10

	l := New(bound)
	var active, peak int32
	var chans []<-chan error

	for i := 0; i < tasks; i++ {
		chans = append(chans, l.Submit(context.Background(), func(context.Context) error {
			cur := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
					break
				}
			}
			time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return nil
		}))
	}

	for _, ch := range chans {
		require.NoError(t, <-ch)
	}
	require.LessOrEqual(t, atomic.LoadInt32(&peak), int32(bound))
	require.Equal(t, 0, l.Active())
}

func TestErrorsDeliveredIndependently(t *testing.T) {
	t.Parallel()

	l := New(2)
	boom := errors.New("boom")

	okCh := l.Submit(context.Background(), func(context.Context) error { return nil })
	errCh := l.Submit(context.Background(), func(context.Context) error { return boom })

	require.NoError(t, <-okCh)
	require.ErrorIs(t, <-errCh, boom)
}

func TestFIFOOrderWithSingleSlot(t *testing.T) {
	t.Parallel()

	l := New(1)
	var mu sync.Mutex
	var order []int
	var chans []<-chan error

	for i := 0; i < 5; i++ {
		n := i
		chans = append(chans, l.Submit(context.Background(), func(context.Context) error {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			return nil
		}))
	}
	for _, ch := range chans {
		<-ch
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestDoRespectsCallerContext(t *testing.T) {
	t.Parallel()

	l := New(1)
	release := make(chan struct{})
	// Occupy the only slot.
	busy := l.Submit(context.Background(), func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Do(ctx, func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-busy)
}
