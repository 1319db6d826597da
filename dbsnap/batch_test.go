package dbsnap_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/studytab/e2ekit/dbsnap"
)

// TestSnapshotAllAndRestoreAll verifies the batch operations against two
// SQLite targets: both are captured, both are mutated, and both come back to
// their captured state after RestoreAll.
func TestSnapshotAllAndRestoreAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := newStore(t)
	ordersDB := newWidgetDB(t, 2)
	billingDB := newWidgetDB(t, 3)

	targets := []dbsnap.Target{
		{Name: "orders", Engine: dbsnap.EngineSQLite, DSN: ordersDB},
		{Name: "billing", Engine: dbsnap.EngineSQLite, DSN: billingDB},
	}

	if err := store.SnapshotAll(ctx, targets); err != nil {
		t.Fatalf("SnapshotAll: %v", err)
	}

	execSQL(t, ordersDB, "INSERT INTO widgets (name) VALUES ('rogue-order')")
	execSQL(t, billingDB, "DELETE FROM widgets")

	if err := store.RestoreAll(ctx, targets); err != nil {
		t.Fatalf("RestoreAll: %v", err)
	}
	if got := countWidgets(t, ordersDB); got != 2 {
		t.Errorf("orders widgets after restore = %d, want 2", got)
	}
	if got := countWidgets(t, billingDB); got != 3 {
		t.Errorf("billing widgets after restore = %d, want 3", got)
	}
}

// TestSnapshotAllNoTargets verifies that an empty target list is a no-op.
func TestSnapshotAllNoTargets(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	if err := store.SnapshotAll(context.Background(), nil); err != nil {
		t.Errorf("SnapshotAll(nil) = %v, want nil", err)
	}
}

// TestSnapshotAllRejectsUnknownEngine verifies that the error names the
// failing target.
func TestSnapshotAllRejectsUnknownEngine(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	targets := []dbsnap.Target{
		{Name: "bogus", Engine: dbsnap.Engine(42), DSN: "whatever"},
	}

	err := store.SnapshotAll(context.Background(), targets)
	if err == nil {
		t.Fatal("SnapshotAll should fail for an unknown engine")
	}
	if !strings.Contains(err.Error(), `target "bogus"`) {
		t.Errorf("error = %v, want mention of the failing target", err)
	}
	if !strings.Contains(err.Error(), "unsupported engine") {
		t.Errorf("error = %v, want mention of the unsupported engine", err)
	}
}

// TestRestoreAllUnknownSnapshot verifies that a missing snapshot surfaces
// through the batch wrapper with its sentinel intact.
func TestRestoreAllUnknownSnapshot(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	dbPath := newWidgetDB(t, 1)
	targets := []dbsnap.Target{
		{Name: "never-captured", Engine: dbsnap.EngineSQLite, DSN: dbPath},
	}

	err := store.RestoreAll(context.Background(), targets)
	if !errors.Is(err, dbsnap.ErrSnapshotNotFound) {
		t.Errorf("RestoreAll error = %v, want ErrSnapshotNotFound", err)
	}
}
