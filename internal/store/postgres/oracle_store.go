package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/parlay-labs/poolroom/internal/domain"
)

// OracleStore implements domain.OracleStore using PostgreSQL.
type OracleStore struct {
	q querier
}

// Create inserts an oracle record.
func (s *OracleStore) Create(ctx context.Context, o domain.Oracle) error {
	const query = `
		INSERT INTO oracles (address, authorizer, result_a, result_b, finished)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.q.Exec(ctx, query,
		string(o.Address), string(o.Authorizer),
		int16(o.Results.A), int16(o.Results.B), o.Finished,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: create oracle %s: %w", o.Address, err)
	}
	return nil
}

// Get returns the oracle at addr.
func (s *OracleStore) Get(ctx context.Context, addr domain.Address) (domain.Oracle, error) {
	const query = `
		SELECT address, authorizer, result_a, result_b, finished, created_at, updated_at
		FROM oracles WHERE address = $1`

	var o domain.Oracle
	var oAddr, auth string
	var a, b int16
	err := s.q.QueryRow(ctx, query, string(addr)).Scan(
		&oAddr, &auth, &a, &b, &o.Finished, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Oracle{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Oracle{}, fmt.Errorf("postgres: get oracle %s: %w", addr, err)
	}
	o.Address = domain.Address(oAddr)
	o.Authorizer = domain.Address(auth)
	o.Results = domain.BetPair{A: byte(a), B: byte(b)}
	return o, nil
}

// PublishResult finalizes the oracle with the given result pair. A second
// publication fails with domain.ErrResultPublished; results are immutable.
func (s *OracleStore) PublishResult(ctx context.Context, addr domain.Address, result domain.BetPair) error {
	const query = `
		UPDATE oracles
		SET result_a = $2, result_b = $3, finished = TRUE, updated_at = NOW()
		WHERE address = $1 AND NOT finished`

	tag, err := s.q.Exec(ctx, query, string(addr), int16(result.A), int16(result.B))
	if err != nil {
		return fmt.Errorf("postgres: publish result %s: %w", addr, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing oracle from an already-final one.
		if _, getErr := s.Get(ctx, addr); getErr != nil {
			return getErr
		}
		return domain.ErrResultPublished
	}
	return nil
}

// AuthorizerStore implements domain.AuthorizerStore using PostgreSQL.
type AuthorizerStore struct {
	q querier
}

// Create inserts an authorizer record.
func (s *AuthorizerStore) Create(ctx context.Context, a domain.Authorizer) error {
	const query = `
		INSERT INTO authorizers (address, mint, fee_vault, fee_bps, rent_per_byte)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.q.Exec(ctx, query,
		string(a.Address), a.Mint, string(a.FeeVault),
		int32(a.FeeBps), int64(a.RentPerByte),
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: create authorizer %s: %w", a.Address, err)
	}
	return nil
}

// Get returns the authorizer at addr.
func (s *AuthorizerStore) Get(ctx context.Context, addr domain.Address) (domain.Authorizer, error) {
	const query = `
		SELECT address, mint, fee_vault, fee_bps, rent_per_byte, created_at
		FROM authorizers WHERE address = $1`

	var a domain.Authorizer
	var aAddr, feeVault string
	var feeBps int32
	var rent int64
	err := s.q.QueryRow(ctx, query, string(addr)).Scan(
		&aAddr, &a.Mint, &feeVault, &feeBps, &rent, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Authorizer{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Authorizer{}, fmt.Errorf("postgres: get authorizer %s: %w", addr, err)
	}
	a.Address = domain.Address(aAddr)
	a.FeeVault = domain.Address(feeVault)
	a.FeeBps = uint32(feeBps)
	a.RentPerByte = uint64(rent)
	return a, nil
}
