package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parlay-labs/poolroom/internal/domain"
)

// querier is the subset of pgx operations the stores need. Both
// *pgxpool.Pool and pgx.Tx satisfy it, so the same store code serves direct
// reads and transactional writes.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements domain.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	q    querier
}

// NewStore creates a Store over the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (s *Store) Rooms() domain.RoomStore             { return &RoomStore{q: s.q} }
func (s *Store) Players() domain.PlayerStore         { return &PlayerStore{q: s.q} }
func (s *Store) Bets() domain.BetStore               { return &BetStore{q: s.q} }
func (s *Store) Oracles() domain.OracleStore         { return &OracleStore{q: s.q} }
func (s *Store) Authorizers() domain.AuthorizerStore { return &AuthorizerStore{q: s.q} }
func (s *Store) Accounts() domain.TokenAccountStore  { return &TokenAccountStore{q: s.q} }
func (s *Store) Audit() domain.AuditStore            { return &AuditStore{q: s.q} }

// Atomically runs fn inside a single database transaction. A nested call
// reuses the enclosing transaction.
func (s *Store) Atomically(ctx context.Context, fn func(domain.Store) error) error {
	if _, ok := s.q.(pgx.Tx); ok {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}

	if err := fn(&Store{pool: s.pool, q: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a primary-key or unique
// constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Compile-time interface check.
var _ domain.Store = (*Store)(nil)
