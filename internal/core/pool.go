package core

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Identity is a pre-provisioned test-user account of the application under
// test. Pool methods hand out copies, never pointers into the pool's own
// state, so callers can pass identities around freely without racing the
// pool.
type Identity struct {
	// ID is the pool-assigned identifier, "user-1" through "user-N".
	ID string
	// Email is the login email, derived from the pool's email pattern.
	Email string
	// Password is the shared login password for pool identities.
	Password string
	// InUse reports whether the identity was leased at copy time.
	InUse bool
	// Owner is the worker holding the lease. Meaningful only when InUse
	// is true; a released identity keeps Owner zeroed.
	Owner int
}

// PoolStatus is a point-in-time summary of pool occupancy.
// Total == Available + InUse always holds.
type PoolStatus struct {
	Total     int
	Available int
	InUse     int
}

// Pool hands out exclusive leases on a fixed set of identities so parallel
// test workers never share a login session. The set is created once at
// construction; Acquire never creates identities and never blocks. When
// everything is leased it reports failure and lets the caller decide whether
// to wait or fail the test.
//
// It is safe for concurrent use by multiple goroutines.
type Pool struct {
	// mu protects identities from concurrent access. Every method takes it;
	// the scan-and-mark in Acquire is atomic under it, which is what keeps
	// an identity from ever carrying two owners.
	mu sync.Mutex

	// identities is the fixed backing array. Acquire scans it in index
	// order and leases the first free entry, so after a release the lowest
	// released identity is handed out again first.
	identities []Identity
}

// NewPool creates a Pool of cfg.PoolSize identities with emails derived from
// cfg.EmailPattern and the shared cfg.DefaultPassword.
// Panics if cfg is invalid, since invalid config is a programmer error.
func NewPool(cfg PoolConfig) *Pool {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("e2ekit: invalid pool config: %v", err))
	}

	identities := make([]Identity, cfg.PoolSize)
	for i := range identities {
		n := strconv.Itoa(i + 1)
		identities[i] = Identity{
			ID:       "user-" + n,
			Email:    strings.ReplaceAll(cfg.EmailPattern, EmailPlaceholder, n),
			Password: cfg.DefaultPassword,
		}
	}

	return &Pool{identities: identities}
}

// Acquire leases the first free identity to workerID and returns a copy of
// it with the lease already reflected. The second return value is false when
// every identity is leased; exhaustion is an expected state for the caller
// to handle, not an error.
//
// Acquire never blocks. Callers that prefer to wait for a free identity poll
// it, e.g. via the root package's WaitAcquire helper.
func (p *Pool) Acquire(workerID int) (Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.identities {
		if p.identities[i].InUse {
			continue
		}
		p.identities[i].InUse = true
		p.identities[i].Owner = workerID
		Logger().Debug("identity acquired",
			"id", p.identities[i].ID, "email", p.identities[i].Email, "worker", workerID)
		return p.identities[i], true
	}

	Logger().Warn("user pool exhausted", "worker", workerID, "total", len(p.identities))
	return Identity{}, false
}

// Release frees the identity with the given ID. Releasing an identity that
// is already free, or an ID the pool does not know, is a no-op: release runs
// in test teardown paths that must never fail, and releasing twice is not
// worth distinguishing from releasing late.
func (p *Pool) Release(identityID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.identities {
		if p.identities[i].ID != identityID {
			continue
		}
		if p.identities[i].InUse {
			Logger().Debug("identity released",
				"id", identityID, "worker", p.identities[i].Owner)
			p.identities[i].InUse = false
			p.identities[i].Owner = 0
		}
		return
	}

	Logger().Debug("release of unknown identity ignored", "id", identityID)
}

// ReleaseByOwner frees every identity leased to workerID and returns how
// many it freed. Workers call this in teardown so a test that acquired
// several identities, or panicked before releasing, cannot leak leases.
func (p *Pool) ReleaseByOwner(workerID int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	freed := 0
	for i := range p.identities {
		if !p.identities[i].InUse || p.identities[i].Owner != workerID {
			continue
		}
		p.identities[i].InUse = false
		p.identities[i].Owner = 0
		freed++
	}
	if freed > 0 {
		Logger().Debug("identities released by owner", "worker", workerID, "count", freed)
	}
	return freed
}

// Status returns a point-in-time occupancy summary. The counts are derived
// from the same lock-protected state as Acquire, so Total is always the sum
// of Available and InUse.
func (p *Pool) Status() PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := PoolStatus{Total: len(p.identities)}
	for i := range p.identities {
		if p.identities[i].InUse {
			s.InUse++
		}
	}
	s.Available = s.Total - s.InUse
	return s
}

// Reset frees every identity without recreating them. Intended for suite
// teardown or between test phases; calling it while workers still hold
// leases silently invalidates those leases, so don't.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.identities {
		p.identities[i].InUse = false
		p.identities[i].Owner = 0
	}
	Logger().Debug("pool reset", "total", len(p.identities))
}
