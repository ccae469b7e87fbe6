package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit    int
	Offset   int
	OpenOnly bool
}

// RoomStore persists rooms.
type RoomStore interface {
	// Create inserts a room. It returns ErrDuplicateRoom when the derived
	// address already exists.
	Create(ctx context.Context, room Room) error
	Get(ctx context.Context, addr Address) (Room, error)
	Update(ctx context.Context, room Room) error
	List(ctx context.Context, opts ListOpts) ([]Room, error)
}

// PlayerStore persists per-participant room metadata.
type PlayerStore interface {
	// Create inserts a metadata record. It returns ErrSlotTaken when the
	// derived slot address already exists.
	Create(ctx context.Context, meta PlayerMetadata) error
	Get(ctx context.Context, addr Address) (PlayerMetadata, error)
	SetWithdrawn(ctx context.Context, addr Address) error
	ListByRoom(ctx context.Context, room Address) ([]PlayerMetadata, error)
}

// BetStore persists each room's bet list as a single record.
type BetStore interface {
	Create(ctx context.Context, addr Address, list BetList) error
	Get(ctx context.Context, addr Address) (BetList, error)
	Update(ctx context.Context, addr Address, list BetList) error
}

// OracleStore persists oracle records. The settlement engine only reads
// them; writes happen through the oracle admin surface.
type OracleStore interface {
	Create(ctx context.Context, o Oracle) error
	Get(ctx context.Context, addr Address) (Oracle, error)
	// PublishResult finalizes the oracle with the given result pair. It
	// returns ErrResultPublished if a result is already final.
	PublishResult(ctx context.Context, addr Address, result BetPair) error
}

// AuthorizerStore persists authorizer records.
type AuthorizerStore interface {
	Create(ctx context.Context, a Authorizer) error
	Get(ctx context.Context, addr Address) (Authorizer, error)
}

// TokenAccountStore persists token accounts and implements the fungible
// asset transfer primitive.
type TokenAccountStore interface {
	Create(ctx context.Context, acct TokenAccount) error
	Get(ctx context.Context, addr Address) (TokenAccount, error)
	// Transfer moves amount between two distinct accounts of the same mint.
	// It returns ErrInsufficientFunds when the source balance is too low,
	// ErrAssetMismatch when the mints differ, and ErrInvalidAmount when from
	// and to are the same account. Callers verify the acting identity owns
	// the source account before debiting it.
	Transfer(ctx context.Context, from, to Address, amount uint64) error
	// Credit mints amount into an account. Only the dev-mode faucet uses it.
	Credit(ctx context.Context, addr Address, amount uint64) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// Store aggregates every persistent collection behind one transactional
// boundary.
type Store interface {
	Rooms() RoomStore
	Players() PlayerStore
	Bets() BetStore
	Oracles() OracleStore
	Authorizers() AuthorizerStore
	Accounts() TokenAccountStore
	Audit() AuditStore

	// Atomically runs fn against a store view whose writes either all
	// persist or all roll back. Every settlement operation runs inside one
	// Atomically call; a precondition failure inside fn persists nothing.
	// Calls nest: inside a transaction, Atomically runs fn directly.
	Atomically(ctx context.Context, fn func(Store) error) error
}
