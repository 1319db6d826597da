// Package e2ekit provides test-isolation primitives for end-to-end suites
// that drive a web application with parallel workers: a fixed pool of
// pre-provisioned test-user identities leased exclusively to one worker at a
// time, and a cleanup tracker that deletes everything tests created and
// keeps a ledger of what would not die.
//
// # Basic Usage
//
//	import "github.com/studytab/e2ekit"
//
//	pool := e2ekit.NewUserPool(
//	    e2ekit.WithPoolSize(4),
//	    e2ekit.WithEmailPattern("testuser{n}@example.com"),
//	)
//
//	user, ok := pool.Acquire(workerID)
//	if !ok {
//	    t.Fatal("no free test user")
//	}
//	defer pool.Release(user.ID)
//
//	tracker := e2ekit.NewTracker()
//	tracker.Track(e2ekit.TrackedResource{
//	    Kind: "deck",
//	    ID:   deckID,
//	    Via:  e2ekit.DeleteViaAPI,
//	    Path: "/api/decks/" + deckID,
//	})
//	defer func() {
//	    if failed := tracker.Cleanup(ctx, api, nil); len(failed) > 0 {
//	        t.Log(tracker.FailureReport())
//	    }
//	}()
//
// Acquire never blocks: a false result means every identity is leased, and
// the caller decides whether to fail or wait. WaitAcquire wraps the waiting
// case with context-bounded polling.
//
// # Parallel Testing
//
// Test binaries that spread one suite across packages can share a single
// pool via SharedPool, a process-level singleton. The first call creates the
// pool with the given options; later calls return the same pool and ignore
// their options:
//
//	pool := e2ekit.SharedPool(e2ekit.WithPoolSize(8))
//
//	func TestSomething(t *testing.T) {
//	    t.Parallel()
//	    user, err := e2ekit.WaitAcquire(ctx, pool, workerID, e2ekit.DefaultWaitPollInterval)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer pool.Release(user.ID)
//	    // Log in as user, run the scenario...
//	}
//
// # Companion Packages
//
// The harness concerns around the core live in their own packages:
//
//   - apphost: boots the application under test as a local process and waits
//     for it to become ready.
//   - apiclient: retrying HTTP client for the application's API, pluggable
//     into Tracker.Cleanup as the API deletion channel.
//   - contract: JSON-Schema validation of API response bodies.
//   - dbsnap: database snapshot and restore for resetting application state
//     between suites (PostgreSQL and SQLite).
//   - perfbudget: duration budgets for user-visible operations.
//   - browserfix: Playwright browser fixture and a UI deletion adapter for
//     resources that expose no deletion endpoint.
package e2ekit
