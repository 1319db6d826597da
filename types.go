package e2ekit

import "github.com/studytab/e2ekit/internal/core"

// The data types below are aliases (not named types) for their internal/core
// counterparts. Pool and tracker methods pass these values across the package
// boundary constantly; aliasing keeps e2ekit.Identity and core.Identity the
// same type so no conversion layer is needed and the field sets cannot drift.
// Field documentation lives on the core declarations.

// Identity is one test-user credential set managed by a UserPool. Acquire
// returns a copy; mutating it has no effect on the pool's internal state.
type Identity = core.Identity

// PoolStatus is a point-in-time occupancy summary of a UserPool, as returned
// by Status. Total is fixed at construction; Available + InUse == Total.
type PoolStatus = core.PoolStatus

// TrackedResource describes one resource registered with a Tracker for
// cleanup. Kind and ID identify it, Via selects the delete channel, and
// TrackedAt is stamped by Track.
type TrackedResource = core.TrackedResource

// FailedCleanup records one resource whose deletion did not succeed during
// Cleanup, together with the final error and the number of attempts made.
type FailedCleanup = core.FailedCleanup
