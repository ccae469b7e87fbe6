package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/parlay-labs/poolroom/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL. Each room's bet list
// is one row holding the packed entries and the allocated byte size.
type BetStore struct {
	q querier
}

// Create inserts a bet list record.
func (s *BetStore) Create(ctx context.Context, addr domain.Address, list domain.BetList) error {
	_, err := s.q.Exec(ctx,
		"INSERT INTO room_bets (address, entries, space) VALUES ($1, $2, $3)",
		string(addr), list.Bytes(), int64(list.Space),
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: create bet list %s: %w", addr, err)
	}
	return nil
}

// Get returns the bet list at addr.
func (s *BetStore) Get(ctx context.Context, addr domain.Address) (domain.BetList, error) {
	var data []byte
	var space int64
	err := s.q.QueryRow(ctx,
		"SELECT entries, space FROM room_bets WHERE address = $1", string(addr),
	).Scan(&data, &space)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BetList{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.BetList{}, fmt.Errorf("postgres: get bet list %s: %w", addr, err)
	}
	return domain.BetListFromBytes(data, int(space)), nil
}

// Update rewrites a bet list record after an append and growth.
func (s *BetStore) Update(ctx context.Context, addr domain.Address, list domain.BetList) error {
	tag, err := s.q.Exec(ctx,
		"UPDATE room_bets SET entries = $2, space = $3 WHERE address = $1",
		string(addr), list.Bytes(), int64(list.Space),
	)
	if err != nil {
		return fmt.Errorf("postgres: update bet list %s: %w", addr, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
