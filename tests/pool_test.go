//go:build integration

package e2ekit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/studytab/e2ekit"
	"github.com/studytab/e2ekit/tests/internal/testutil"
)

// TestSharedPoolIsSingleton verifies every SharedPool call observes the same
// pool state.
func TestSharedPoolIsSingleton(t *testing.T) {
	t.Parallel()

	worker := testutil.WorkerID()
	id, ok := sharedPool.Acquire(worker)
	if !ok {
		t.Fatal("shared pool exhausted; pool size should match test parallelism")
	}
	defer sharedPool.Release(id.ID)

	other := e2ekit.SharedPool()
	status := other.Status()
	if status.InUse == 0 {
		t.Error("second SharedPool handle does not see the lease; expected the same singleton")
	}
	if status.Total != status.Available+status.InUse {
		t.Errorf("status accounting broken: %+v", status)
	}
}

// TestPoolLeaseExclusive hammers a small pool from many workers and verifies
// no identity is ever held by two workers at once.
func TestPoolLeaseExclusive(t *testing.T) {
	t.Parallel()

	pool := e2ekit.NewUserPool(e2ekit.WithPoolSize(3))

	var (
		mu      sync.Mutex
		holders = make(map[string]int) // identity ID -> current holder
	)

	const workers = 12
	const iterations = 50

	var wg sync.WaitGroup
	for range workers {
		worker := testutil.WorkerID()
		wg.Go(func() {
			for range iterations {
				id, ok := pool.Acquire(worker)
				if !ok {
					continue // pool exhausted, expected under contention
				}

				mu.Lock()
				if prev, held := holders[id.ID]; held {
					t.Errorf("identity %s acquired by worker %d while held by worker %d", id.ID, worker, prev)
				}
				holders[id.ID] = worker
				mu.Unlock()

				mu.Lock()
				delete(holders, id.ID)
				mu.Unlock()
				pool.Release(id.ID)
			}
		})
	}
	wg.Wait()

	status := pool.Status()
	if status.Available != status.Total {
		t.Errorf("pool not fully released after stress: %+v", status)
	}
}

// TestWaitAcquireBlocksUntilRelease verifies WaitAcquire picks up an identity
// freed while it is polling.
func TestWaitAcquireBlocksUntilRelease(t *testing.T) {
	t.Parallel()

	pool := e2ekit.NewUserPool(e2ekit.WithPoolSize(1))
	holder := testutil.WorkerID()
	waiter := testutil.WorkerID()

	held, ok := pool.Acquire(holder)
	if !ok {
		t.Fatal("fresh pool should not be exhausted")
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		pool.Release(held.ID)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := e2ekit.WaitAcquire(ctx, pool, waiter, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitAcquire() error: %v", err)
	}
	if id.ID != held.ID {
		t.Errorf("WaitAcquire() = %s, want the released identity %s", id.ID, held.ID)
	}
}

// TestWaitAcquireExhausted verifies WaitAcquire reports exhaustion when no
// identity frees up before the context expires.
func TestWaitAcquireExhausted(t *testing.T) {
	t.Parallel()

	pool := e2ekit.NewUserPool(e2ekit.WithPoolSize(1))
	if _, ok := pool.Acquire(testutil.WorkerID()); !ok {
		t.Fatal("fresh pool should not be exhausted")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := e2ekit.WaitAcquire(ctx, pool, testutil.WorkerID(), 10*time.Millisecond)
	if !errors.Is(err, e2ekit.ErrPoolExhausted) {
		t.Fatalf("WaitAcquire() error = %v, want %v", err, e2ekit.ErrPoolExhausted)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("WaitAcquire() error = %v, want wrapped %v", err, context.DeadlineExceeded)
	}
}

// TestReleaseByOwner verifies worker teardown frees exactly the worker's
// leases.
func TestReleaseByOwner(t *testing.T) {
	t.Parallel()

	pool := e2ekit.NewUserPool(e2ekit.WithPoolSize(3))
	worker := testutil.WorkerID()
	other := testutil.WorkerID()

	for range 2 {
		if _, ok := pool.Acquire(worker); !ok {
			t.Fatal("pool exhausted during setup")
		}
	}
	if _, ok := pool.Acquire(other); !ok {
		t.Fatal("pool exhausted during setup")
	}

	if freed := pool.ReleaseByOwner(worker); freed != 2 {
		t.Errorf("ReleaseByOwner() = %d, want 2", freed)
	}

	status := pool.Status()
	if status.Available != 2 || status.InUse != 1 {
		t.Errorf("status after ReleaseByOwner = %+v, want 2 available, 1 in use", status)
	}
}

// TestResetFreesEverything verifies Reset returns the pool to its initial
// occupancy without recreating identities.
func TestResetFreesEverything(t *testing.T) {
	t.Parallel()

	pool := e2ekit.NewUserPool(e2ekit.WithPoolSize(2), e2ekit.WithEmailPattern("reset{n}@example.com"))
	worker := testutil.WorkerID()

	first, _ := pool.Acquire(worker)
	if _, ok := pool.Acquire(worker); !ok {
		t.Fatal("pool exhausted during setup")
	}

	pool.Reset()

	status := pool.Status()
	if status.Available != status.Total {
		t.Errorf("status after Reset = %+v, want everything available", status)
	}

	// The same identities come back after Reset.
	again, ok := pool.Acquire(worker)
	if !ok {
		t.Fatal("pool exhausted after Reset")
	}
	if again.ID != first.ID || again.Email != first.Email {
		t.Errorf("identity after Reset = %+v, want the original %+v", again, first)
	}
}
