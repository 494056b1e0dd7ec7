package application

import (
	"context"
	"log/slog"
	"sync"
)

// SafetyClass declares whether a mutation may be applied locally before
// the remote confirms it. Every mutation must declare its class; there
// is no implicit default path.
type SafetyClass string

const (
	// SafetyOptimistic mutations are applied to the local snapshot
	// immediately and rolled back from the server on failure.
	SafetyOptimistic SafetyClass = "optimistic"
	// SafetyServerValidated mutations wait for remote confirmation
	// before any local state changes, e.g. reactivating a one-shot
	// reminder whose scheduled time may have already elapsed.
	SafetyServerValidated SafetyClass = "server_validated"
)

// Mutation describes one state-changing operation on a single record of
// a synced collection.
type Mutation[T any] struct {
	// Name identifies the operation in logs.
	Name string
	// Safety selects the apply strategy.
	Safety SafetyClass
	// Match selects the record the mutation targets.
	Match func(T) bool
	// Transform returns the updated record and whether it remains in
	// the collection; returning false removes it.
	Transform func(T) (T, bool)
	// Remote performs the confirming call against the remote store.
	Remote func(ctx context.Context) error
}

// MutationGuard wraps toggle/delete-style mutations around a
// coordinator: local-first apply for optimistic operations, remote
// confirmation, and remote-wins rollback on failure. Mutations and their
// reconciliation fetches are serialized per owner so the UI never
// observes interleaved, contradictory states.
type MutationGuard[T any] struct {
	coord  *Coordinator[T]
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMutationGuard creates a guard over the given coordinator.
func NewMutationGuard[T any](coord *Coordinator[T], logger *slog.Logger) *MutationGuard[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &MutationGuard[T]{
		coord:  coord,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Apply executes the mutation for one owner.
//
// Optimistic mutations transform the published snapshot first, then call
// the remote; on rejection the snapshot is reverted to server state via
// a forced refresh and the error is returned verbatim so callers can
// render domain-specific copy. Server-validated mutations call the
// remote first and refresh afterwards either way.
func (g *MutationGuard[T]) Apply(ctx context.Context, ownerID string, m Mutation[T]) error {
	lock := g.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	if m.Safety == SafetyOptimistic {
		var removed bool
		g.coord.ApplyLocal(ownerID, func(records []T) []T {
			out := records[:0]
			for _, rec := range records {
				if m.Match != nil && m.Match(rec) {
					updated, keep := m.Transform(rec)
					if !keep {
						removed = true
						continue
					}
					out = append(out, updated)
					continue
				}
				out = append(out, rec)
			}
			return out
		})

		if err := m.Remote(ctx); err != nil {
			g.logger.Warn("mutation rejected, reverting to server state",
				"mutation", m.Name,
				"owner", ownerID,
				"error", err,
			)
			g.reconcile(ctx, ownerID, m.Name)
			return err
		}

		if removed {
			// Destructive mutations force the next read to re-fetch.
			g.coord.Invalidate(ownerID)
		}
		return nil
	}

	if err := m.Remote(ctx); err != nil {
		g.reconcile(ctx, ownerID, m.Name)
		return err
	}

	g.reconcile(ctx, ownerID, m.Name)
	return nil
}

// reconcile forces a refresh so the published snapshot matches the
// server. Remote wins on refresh, which covers rollback of any
// optimistic state.
func (g *MutationGuard[T]) reconcile(ctx context.Context, ownerID, name string) {
	if _, err := g.coord.Load(ctx, ownerID, true); err != nil {
		g.logger.Warn("reconciliation fetch failed",
			"mutation", name,
			"owner", ownerID,
			"error", err,
		)
	}
}

func (g *MutationGuard[T]) ownerLock(ownerID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()

	lock, ok := g.locks[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[ownerID] = lock
	}
	return lock
}
