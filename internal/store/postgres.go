// Package store composes the per-entity repositories into the transactional
// unit of work the request dispatcher runs against.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hubatlas/backend/internal/events"
	"github.com/hubatlas/backend/internal/locations"
	"github.com/hubatlas/backend/internal/orgs"
	"github.com/hubatlas/backend/internal/requests"
	"github.com/hubatlas/backend/pkg/database"
)

// Postgres implements requests.Store over a pgx pool. InTx hands callers a
// copy whose repositories are bound to one pgx.Tx.
type Postgres struct {
	pool *pgxpool.Pool

	orgRepo      *orgs.Repository
	locationRepo *locations.Repository
	eventRepo    *events.Repository
	requestRepo  *requests.Repository

	inTx bool
}

// New creates the store over a pool.
func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{
		pool:         pool,
		orgRepo:      orgs.NewRepository(pool),
		locationRepo: locations.NewRepository(pool),
		eventRepo:    events.NewRepository(pool),
		requestRepo:  requests.NewRepository(pool),
	}
}

// Orgs returns the org surface.
func (s *Postgres) Orgs() requests.OrgStore { return s.orgRepo }

// Locations returns the location surface.
func (s *Postgres) Locations() requests.LocationStore { return s.locationRepo }

// Events returns the event surface.
func (s *Postgres) Events() requests.EventStore { return s.eventRepo }

// Requests returns the update request surface.
func (s *Postgres) Requests() requests.RequestStore { return s.requestRepo }

func (s *Postgres) bind(q database.Querier) *Postgres {
	return &Postgres{
		pool:         s.pool,
		orgRepo:      s.orgRepo.WithQuerier(q),
		locationRepo: s.locationRepo.WithQuerier(q),
		eventRepo:    s.eventRepo.WithQuerier(q),
		requestRepo:  s.requestRepo.WithQuerier(q),
		inTx:         true,
	}
}

// InTx runs fn against a transaction-bound store, committing only when fn
// returns nil. Nested calls reuse the enclosing transaction.
func (s *Postgres) InTx(ctx context.Context, fn func(requests.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(s.bind(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
