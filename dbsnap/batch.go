package dbsnap

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// batchConcurrency bounds how many databases are captured or restored at
// once. Dumps are I/O heavy; running every target unbounded would contend
// for disk bandwidth rather than finish sooner.
const batchConcurrency = 4

// SnapshotAll captures a snapshot of every target concurrently. The first
// failure cancels the context shared by the remaining targets and is
// returned, wrapped with the failing target's name; snapshots that already
// finished stay in the store.
func (s *Store) SnapshotAll(ctx context.Context, targets []Target) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for _, target := range targets {
		g.Go(func() error {
			if err := s.snapshotTarget(ctx, target); err != nil {
				return fmt.Errorf("snapshot target %q: %w", target.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// RestoreAll restores every target concurrently. The first failure cancels
// the context shared by the remaining targets and is returned, wrapped with
// the failing target's name. Targets restored before the failure keep their
// restored state; a returned error therefore means the fleet of databases is
// in a mixed state and the suite should not proceed.
func (s *Store) RestoreAll(ctx context.Context, targets []Target) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for _, target := range targets {
		g.Go(func() error {
			if err := s.restoreTarget(ctx, target); err != nil {
				return fmt.Errorf("restore target %q: %w", target.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Store) snapshotTarget(ctx context.Context, target Target) error {
	switch target.Engine {
	case EnginePostgres:
		return s.SnapshotPostgres(ctx, target.Name, target.DSN)
	case EngineSQLite:
		return s.SnapshotSQLite(ctx, target.Name, target.DSN)
	default:
		return fmt.Errorf("unsupported engine %v", target.Engine)
	}
}

func (s *Store) restoreTarget(ctx context.Context, target Target) error {
	switch target.Engine {
	case EnginePostgres:
		return s.RestorePostgres(ctx, target.Name, target.DSN)
	case EngineSQLite:
		return s.RestoreSQLite(ctx, target.Name, target.DSN)
	default:
		return fmt.Errorf("unsupported engine %v", target.Engine)
	}
}
