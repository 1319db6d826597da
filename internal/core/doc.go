// Package core provides the internal implementation of the e2ekit test
// isolation library. It contains the Pool (a fixed set of test-user
// identities leased exclusively to parallel workers under a single mutex)
// and the Tracker (a cleanup registry that deletes tracked resources newest
// first with bounded retries and records exhausted deletions in a failure
// ledger instead of aborting).
package core
