package netutil

import (
	"net"
	"strconv"
	"sync"
	"testing"
)

// TestNewPortRegistry verifies a registry built with a nil logger is usable.
func TestNewPortRegistry(t *testing.T) {
	t.Parallel()

	r := NewPortRegistry(nil)
	if r == nil {
		t.Fatal("expected non-nil registry")
	}
	// Verify the registry is functional by reserving and releasing a port.
	if !r.reserve(8080) {
		t.Fatal("expected reserve to succeed on new registry")
	}
	r.Release(8080)
}

// TestPortRegistryReserve verifies reservation semantics for new, duplicate,
// and distinct ports.
func TestPortRegistryReserve(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		setup  func(r *PortRegistry)
		port   int
		wantOK bool
	}{
		"reserve new port": {
			setup:  func(_ *PortRegistry) {},
			port:   8080,
			wantOK: true,
		},
		"reserve duplicate port": {
			setup: func(r *PortRegistry) {
				r.reserve(9090)
			},
			port:   9090,
			wantOK: false,
		},
		"reserve different ports": {
			setup: func(r *PortRegistry) {
				r.reserve(8080)
			},
			port:   9090,
			wantOK: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := NewPortRegistry(nil)
			tc.setup(r)

			got := r.reserve(tc.port)
			if got != tc.wantOK {
				t.Errorf("reserve(%d) = %v, want %v", tc.port, got, tc.wantOK)
			}
			// Whatever the outcome, the port must be held afterwards:
			// a second reserve always fails.
			if r.reserve(tc.port) {
				t.Errorf("port %d should be reserved, but second reserve succeeded", tc.port)
			}
		})
	}
}

// TestPortRegistryRelease verifies released ports become reservable again
// while unrelated reservations stay intact.
func TestPortRegistryRelease(t *testing.T) {
	t.Parallel()

	t.Run("release existing port", func(t *testing.T) {
		t.Parallel()
		r := NewPortRegistry(nil)
		r.reserve(8080)

		r.Release(8080)
		if !r.reserve(8080) {
			t.Error("port should be available after release, but reserve failed")
		}
	})

	t.Run("release unknown port is a no-op", func(t *testing.T) {
		t.Parallel()
		r := NewPortRegistry(nil)

		r.Release(8080)
		if !r.reserve(8080) {
			t.Error("port was never reserved, reserve should succeed")
		}
	})

	t.Run("release leaves other reservations intact", func(t *testing.T) {
		t.Parallel()
		r := NewPortRegistry(nil)
		r.reserve(8080)
		r.reserve(9090)

		r.Release(8080)
		if r.reserve(9090) {
			t.Error("port 9090 should still be reserved, but reserve succeeded")
		}
	})
}

// TestPortRegistryReserveReleaseCycle verifies a port can cycle through
// reserve, release, and reserve again.
func TestPortRegistryReserveReleaseCycle(t *testing.T) {
	t.Parallel()

	r := NewPortRegistry(nil)

	if !r.reserve(8080) {
		t.Fatal("first reserve should succeed")
	}

	if r.reserve(8080) {
		t.Fatal("duplicate reserve should fail")
	}

	r.Release(8080)
	if !r.reserve(8080) {
		t.Fatal("reserve after release should succeed")
	}
}

// TestPortRegistryConcurrentReserve verifies distinct ports can be reserved
// concurrently without losing reservations.
func TestPortRegistryConcurrentReserve(t *testing.T) {
	t.Parallel()

	r := NewPortRegistry(nil)
	const goroutines = 50

	var wg sync.WaitGroup
	reserved := make(chan int, goroutines)

	for i := range goroutines {
		port := 10000 + i
		wg.Go(func() {
			if r.reserve(port) {
				reserved <- port
			}
		})
	}

	wg.Wait()
	close(reserved)

	count := 0
	for range reserved {
		count++
	}
	if count != goroutines {
		t.Errorf("expected %d reservations, got %d", goroutines, count)
	}
}

// TestPortRegistryConcurrentDuplicateReserve verifies exactly one of many
// concurrent reservations of the same port wins.
func TestPortRegistryConcurrentDuplicateReserve(t *testing.T) {
	t.Parallel()

	r := NewPortRegistry(nil)
	const goroutines = 100
	const targetPort = 12345

	var wg sync.WaitGroup
	successes := make(chan bool, goroutines)

	for range goroutines {
		wg.Go(func() {
			successes <- r.reserve(targetPort)
		})
	}

	wg.Wait()
	close(successes)

	successCount := 0
	for ok := range successes {
		if ok {
			successCount++
		}
	}
	if successCount != 1 {
		t.Errorf("expected exactly 1 successful reserve, got %d", successCount)
	}
}

// TestPortRegistryAllocate verifies an allocated port is bindable, stays
// registered, and becomes reusable after Release.
func TestPortRegistryAllocate(t *testing.T) {
	t.Parallel()

	r := NewPortRegistry(nil)

	port, err := r.Allocate()
	if err != nil {
		t.Fatalf("Allocate() error: %v", err)
	}
	if port == 0 {
		t.Fatal("port should be non-zero")
	}

	// The listener used for allocation is closed, so the port must be
	// bindable by the caller (this is how the application under test
	// claims it).
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("allocated port %d not bindable: %v", port, err)
	}
	_ = l.Close()

	// Verify the port is registered by attempting to reserve it again.
	if r.reserve(port) {
		t.Errorf("port %d should already be registered, but reserve succeeded", port)
	}

	r.Release(port)
	if !r.reserve(port) {
		t.Errorf("port %d should be available after release, but reserve failed", port)
	}
}

// TestPortRegistryAllocateMany verifies consecutive allocations never hand
// out the same port while reservations are held.
func TestPortRegistryAllocateMany(t *testing.T) {
	t.Parallel()

	r := NewPortRegistry(nil)

	seen := make(map[int]bool)
	const allocations = 10

	for i := range allocations {
		port, err := r.Allocate()
		if err != nil {
			t.Fatalf("allocation %d: Allocate() error: %v", i, err)
		}
		if seen[port] {
			t.Errorf("allocation %d: port %d already seen", i, port)
		}
		seen[port] = true
	}

	for port := range seen {
		r.Release(port)
	}
}
