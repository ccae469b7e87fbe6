package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/parlay-labs/poolroom/internal/domain"
)

// PlayerStore implements domain.PlayerStore using PostgreSQL.
type PlayerStore struct {
	q querier
}

// Create inserts a player metadata record. A conflict on the derived slot
// address maps to domain.ErrSlotTaken.
func (s *PlayerStore) Create(ctx context.Context, meta domain.PlayerMetadata) error {
	const query = `
		INSERT INTO room_players (address, room, version, room_key, created_by, payout_account, slot, withdrawn)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.q.Exec(ctx, query,
		string(meta.Address), string(meta.Room), meta.Version, meta.RoomKey,
		meta.CreatedBy, string(meta.PayoutAccount), int16(meta.Slot), meta.Withdrawn,
	)
	if isUniqueViolation(err) {
		return domain.ErrSlotTaken
	}
	if err != nil {
		return fmt.Errorf("postgres: create player slot %d: %w", meta.Slot, err)
	}
	return nil
}

// Get returns the metadata record at addr.
func (s *PlayerStore) Get(ctx context.Context, addr domain.Address) (domain.PlayerMetadata, error) {
	const query = `
		SELECT address, room, version, room_key, created_by, payout_account, slot, withdrawn, created_at
		FROM room_players WHERE address = $1`

	meta, err := scanPlayer(s.q.QueryRow(ctx, query, string(addr)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PlayerMetadata{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PlayerMetadata{}, fmt.Errorf("postgres: get player %s: %w", addr, err)
	}
	return meta, nil
}

// SetWithdrawn marks a metadata record as withdrawn. The flag never resets.
func (s *PlayerStore) SetWithdrawn(ctx context.Context, addr domain.Address) error {
	tag, err := s.q.Exec(ctx,
		"UPDATE room_players SET withdrawn = TRUE WHERE address = $1", string(addr))
	if err != nil {
		return fmt.Errorf("postgres: set withdrawn %s: %w", addr, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByRoom returns a room's players ordered by slot.
func (s *PlayerStore) ListByRoom(ctx context.Context, room domain.Address) ([]domain.PlayerMetadata, error) {
	const query = `
		SELECT address, room, version, room_key, created_by, payout_account, slot, withdrawn, created_at
		FROM room_players WHERE room = $1 ORDER BY slot`

	rows, err := s.q.Query(ctx, query, string(room))
	if err != nil {
		return nil, fmt.Errorf("postgres: list players %s: %w", room, err)
	}
	defer rows.Close()

	var players []domain.PlayerMetadata
	for rows.Next() {
		meta, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan player: %w", err)
		}
		players = append(players, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list players rows: %w", err)
	}
	return players, nil
}

func scanPlayer(row pgx.Row) (domain.PlayerMetadata, error) {
	var meta domain.PlayerMetadata
	var addr, room, payout string
	var slot int16
	err := row.Scan(&addr, &room, &meta.Version, &meta.RoomKey,
		&meta.CreatedBy, &payout, &slot, &meta.Withdrawn, &meta.CreatedAt)
	if err != nil {
		return domain.PlayerMetadata{}, err
	}
	meta.Address = domain.Address(addr)
	meta.Room = domain.Address(room)
	meta.PayoutAccount = domain.Address(payout)
	meta.Slot = uint8(slot)
	return meta, nil
}
