package worker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsDispatchedJobs(t *testing.T) {
	p := NewPool(3, 10)
	p.Start()
	defer p.Stop()

	var wg sync.WaitGroup
	var ran atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		p.Dispatch(func() {
			defer wg.Done()
			ran.Add(1)
		})
	}
	wg.Wait()
	assert.Equal(t, int32(20), ran.Load())
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(2, 10)
	p.Start()
	defer p.Stop()

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		p.Dispatch(func() {
			defer wg.Done()
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
		})
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPool_SurvivesPanickingJob(t *testing.T) {
	p := NewPool(1, 1)
	p.Start()
	defer p.Stop()

	p.Dispatch(func() { panic("boom") })

	done := make(chan struct{})
	p.Dispatch(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not recover from panic")
	}
}

func TestPool_DispatchAfterStopIsDropped(t *testing.T) {
	p := NewPool(1, 0)
	p.Start()
	p.Stop()

	returned := make(chan struct{})
	go func() {
		p.Dispatch(func() { t.Error("job ran after stop") })
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		require.Fail(t, "Dispatch blocked after Stop")
	}
}

func TestPool_StopRunsQueuedJobs(t *testing.T) {
	p := NewPool(1, 4)

	// Queue before the worker starts so every job is still waiting at Stop.
	var ran atomic.Int32
	for i := 0; i < 4; i++ {
		p.Dispatch(func() { ran.Add(1) })
	}
	p.Start()
	p.Stop()
	assert.Equal(t, int32(4), ran.Load())
}
