package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_RunsEachJobOnce(t *testing.T) {
	p := NewPool(PoolConfig{Workers: 3, QueueSize: 50})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	wg.Add(len(ids))
	for _, id := range ids {
		if err := p.Enqueue(id); err != nil {
			t.Fatal(err)
		}
	}

	go p.Run(ctx, func(ctx context.Context, id string) {
		mu.Lock()
		seen[id]++
		mu.Unlock()
		wg.Done()
	})

	waitGroup(t, &wg, 5*time.Second)
	for _, id := range ids {
		if seen[id] != 1 {
			t.Errorf("job %s handled %d times", id, seen[id])
		}
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(PoolConfig{Workers: 2, QueueSize: 10})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		current, peak atomic.Int32
		wg            sync.WaitGroup
	)
	wg.Add(6)
	for i := 0; i < 6; i++ {
		_ = p.Enqueue(string(rune('a' + i)))
	}
	go p.Run(ctx, func(ctx context.Context, id string) {
		n := current.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		wg.Done()
	})

	waitGroup(t, &wg, 5*time.Second)
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestPool_EnqueueFull(t *testing.T) {
	p := NewPool(PoolConfig{Workers: 1, QueueSize: 2})
	_ = p.Enqueue("a")
	_ = p.Enqueue("b")
	if err := p.Enqueue("c"); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Enqueue() error = %v, want ErrQueueFull", err)
	}
	if s := p.Status(); s.QueueDepth != 2 || s.Workers != 1 {
		t.Errorf("Status() = %+v", s)
	}
}

func TestPool_RunReturnsAfterCancel(t *testing.T) {
	p := NewPool(PoolConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, func(context.Context, string) {})
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if p.Status().Workers != 2 {
		t.Errorf("default workers = %d, want 2", p.Status().Workers)
	}
}

func TestPool_CancelledPoolSkipsQueuedJobs(t *testing.T) {
	p := NewPool(PoolConfig{Workers: 4, QueueSize: 64})
	for i := 0; i < 64; i++ {
		if err := p.Enqueue(fmt.Sprintf("job-%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	p.Run(ctx, func(context.Context, string) { calls.Add(1) })

	if n := calls.Load(); n != 0 {
		t.Errorf("handler ran %d times after cancel, want 0", n)
	}
	if s := p.Status(); s.InFlight != 0 {
		t.Errorf("InFlight = %d, want 0", s.InFlight)
	}
}

func waitGroup(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for handlers")
	}
}
