package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/parlay-labs/poolroom/internal/domain"
)

// RoomStore implements domain.RoomStore using PostgreSQL.
type RoomStore struct {
	q querier
}

// Create inserts a room. A primary-key conflict on the derived address maps
// to domain.ErrDuplicateRoom.
func (s *RoomStore) Create(ctx context.Context, room domain.Room) error {
	const query = `
		INSERT INTO rooms (address, oracle, key, finished, init_amount, players_count)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.q.Exec(ctx, query,
		string(room.Address), string(room.Oracle), room.Key,
		room.Finished, int64(room.InitAmount), int16(room.PlayersCount),
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateRoom
	}
	if err != nil {
		return fmt.Errorf("postgres: create room %d: %w", room.Key, err)
	}
	return nil
}

// Get returns the room at addr.
func (s *RoomStore) Get(ctx context.Context, addr domain.Address) (domain.Room, error) {
	const query = `
		SELECT address, oracle, key, finished, init_amount, players_count, created_at, updated_at
		FROM rooms WHERE address = $1`

	room, err := scanRoom(s.q.QueryRow(ctx, query, string(addr)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Room{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("postgres: get room %s: %w", addr, err)
	}
	return room, nil
}

// Update rewrites a room's mutable fields.
func (s *RoomStore) Update(ctx context.Context, room domain.Room) error {
	const query = `
		UPDATE rooms
		SET finished = $2, players_count = $3, updated_at = NOW()
		WHERE address = $1`

	tag, err := s.q.Exec(ctx, query,
		string(room.Address), room.Finished, int16(room.PlayersCount),
	)
	if err != nil {
		return fmt.Errorf("postgres: update room %s: %w", room.Address, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns rooms, newest first.
func (s *RoomStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Room, error) {
	query := `
		SELECT address, oracle, key, finished, init_amount, players_count, created_at, updated_at
		FROM rooms`
	args := []any{}
	if opts.OpenOnly {
		query += " WHERE NOT finished"
	}
	query += " ORDER BY created_at DESC"
	argIdx := 1
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list rooms rows: %w", err)
	}
	return rooms, nil
}

func scanRoom(row pgx.Row) (domain.Room, error) {
	var room domain.Room
	var addr, oracle string
	var initAmount int64
	var playersCount int16
	err := row.Scan(&addr, &oracle, &room.Key, &room.Finished,
		&initAmount, &playersCount, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return domain.Room{}, err
	}
	room.Address = domain.Address(addr)
	room.Oracle = domain.Address(oracle)
	room.InitAmount = uint64(initAmount)
	room.PlayersCount = uint8(playersCount)
	return room, nil
}
