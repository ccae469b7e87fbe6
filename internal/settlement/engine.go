// Package settlement implements the wagering-pool settlement engine: room
// creation, bet admission, winner resolution, and the withdrawal/fee-split
// flow. Every mutating operation runs under the room's lock and inside one
// store transaction, so it either fully completes or persists nothing.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/parlay-labs/poolroom/internal/domain"
)

// Engine orchestrates all settlement operations over the domain stores.
type Engine struct {
	store   domain.Store
	locks   domain.LockManager
	bus     domain.SignalBus
	logger  *slog.Logger
	lockTTL time.Duration
}

// New creates an Engine. The bus may be nil, in which case no events are
// published.
func New(store domain.Store, locks domain.LockManager, bus domain.SignalBus, lockTTL time.Duration, logger *slog.Logger) *Engine {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &Engine{
		store:   store,
		locks:   locks,
		bus:     bus,
		logger:  logger.With(slog.String("component", "settlement")),
		lockTTL: lockTTL,
	}
}

// CreateRoomParams are the inputs to CreateRoom. Caller is an already
// authenticated identity; signature verification happens upstream.
type CreateRoomParams struct {
	Oracle     domain.Address
	Authorizer domain.Address
	Mint       string
	RoomKey    int64
	Bet        domain.BetPair
	Stake      uint64
	Caller     string
	Funding    domain.Address
	Payout     domain.Address
}

// JoinRoomParams are the inputs to JoinRoom. Slot is the slot index the
// joiner claims; it must be the next free one.
type JoinRoomParams struct {
	Room       domain.Address
	Authorizer domain.Address
	Mint       string
	Bet        domain.BetPair
	Slot       uint8
	Caller     string
	Funding    domain.Address
	Payout     domain.Address
}

// WithdrawParams are the inputs to Withdraw.
type WithdrawParams struct {
	Room       domain.Address
	Authorizer domain.Address
	Slot       uint8
	Caller     string
}

// WithdrawResult reports how the vault balance was split.
type WithdrawResult struct {
	WinnerAmount uint64
	FeeAmount    uint64
}

// RoomDetail is a read-only snapshot of a room and its dependent records.
type RoomDetail struct {
	Room    domain.Room
	Players []domain.PlayerMetadata
	Bets    []domain.Bet
	Vault   domain.TokenAccount
}

// CreateRoom allocates a room, its bet list, the creator's slot-0 metadata,
// and the pool vault, then moves the creator's stake into the vault. The
// room address is derived from (oracle, room key); recreating an existing
// room fails with domain.ErrDuplicateRoom.
func (e *Engine) CreateRoom(ctx context.Context, p CreateRoomParams) (domain.Room, error) {
	if p.Stake == 0 {
		return domain.Room{}, fmt.Errorf("settlement: create room: %w", domain.ErrInvalidAmount)
	}

	roomAddr := domain.RoomAddress(p.Oracle, p.RoomKey)

	unlock, err := e.locks.Acquire(ctx, lockKey(roomAddr), e.lockTTL)
	if err != nil {
		return domain.Room{}, fmt.Errorf("settlement: create room: %w", err)
	}
	defer unlock()

	var room domain.Room
	err = e.store.Atomically(ctx, func(s domain.Store) error {
		auth, oracle, err := e.checkAsset(ctx, s, p.Oracle, p.Authorizer, p.Mint)
		if err != nil {
			return err
		}
		if err := e.checkFunding(ctx, s, p.Funding, p.Caller, p.Mint); err != nil {
			return err
		}

		room = domain.Room{
			Address:      roomAddr,
			Oracle:       oracle.Address,
			Key:          p.RoomKey,
			InitAmount:   p.Stake,
			PlayersCount: 1,
		}
		if err := s.Rooms().Create(ctx, room); err != nil {
			return err
		}

		// The creator's bet routes through the same validation as joins,
		// including the payer-funded ledger growth.
		list := domain.NewBetList()
		if err := e.admitBet(ctx, s, &list, domain.Bet{Pair: p.Bet, Slot: 0}, auth, p.Funding); err != nil {
			return err
		}
		if err := s.Bets().Create(ctx, domain.BetsAddress(roomAddr), list); err != nil {
			return err
		}

		if err := s.Players().Create(ctx, domain.PlayerMetadata{
			Address:       domain.PlayerAddress(roomAddr, 0),
			Version:       domain.PlayerMetadataVersion,
			Room:          roomAddr,
			RoomKey:       p.RoomKey,
			CreatedBy:     p.Caller,
			PayoutAccount: p.Payout,
			Slot:          0,
		}); err != nil {
			return err
		}

		vault := domain.TokenAccount{
			Address: domain.VaultAddress(roomAddr),
			Mint:    p.Mint,
			Owner:   string(roomAddr),
		}
		if err := s.Accounts().Create(ctx, vault); err != nil {
			return err
		}
		if err := s.Accounts().Transfer(ctx, p.Funding, vault.Address, p.Stake); err != nil {
			return err
		}

		return s.Audit().Log(ctx, domain.EventRoomCreated, map[string]any{
			"room":   string(roomAddr),
			"key":    p.RoomKey,
			"oracle": string(p.Oracle),
			"caller": p.Caller,
			"stake":  p.Stake,
		})
	})
	if err != nil {
		return domain.Room{}, fmt.Errorf("settlement: create room %d: %w", p.RoomKey, err)
	}

	e.logger.Info("room created",
		slog.String("room", string(roomAddr)),
		slog.Int64("key", p.RoomKey),
		slog.Uint64("stake", p.Stake),
	)
	slot := uint8(0)
	e.publish(ctx, domain.RoomEvent{
		Event:   domain.EventRoomCreated,
		Room:    roomAddr,
		RoomKey: p.RoomKey,
		Slot:    &slot,
		Pair:    &p.Bet,
		Amount:  p.Stake,
	})
	return room, nil
}

// JoinRoom admits one more bet into an existing room: the predicted pair
// must be free, the claimed slot must be the next one, and the joiner funds
// both the stake and the incremental ledger storage.
func (e *Engine) JoinRoom(ctx context.Context, p JoinRoomParams) (domain.PlayerMetadata, error) {
	unlock, err := e.locks.Acquire(ctx, lockKey(p.Room), e.lockTTL)
	if err != nil {
		return domain.PlayerMetadata{}, fmt.Errorf("settlement: join room: %w", err)
	}
	defer unlock()

	var meta domain.PlayerMetadata
	err = e.store.Atomically(ctx, func(s domain.Store) error {
		room, err := s.Rooms().Get(ctx, p.Room)
		if err != nil {
			return err
		}
		if room.Finished {
			return domain.ErrRoomFinished
		}

		auth, _, err := e.checkAsset(ctx, s, room.Oracle, p.Authorizer, p.Mint)
		if err != nil {
			return err
		}
		if err := e.checkFunding(ctx, s, p.Funding, p.Caller, p.Mint); err != nil {
			return err
		}

		// The claimed slot must be the next dense index. A stale claim is
		// the retryable contention failure: the caller re-reads the room
		// and resubmits with the next slot.
		if p.Slot != room.PlayersCount {
			return domain.ErrSlotTaken
		}

		betsAddr := domain.BetsAddress(p.Room)
		list, err := s.Bets().Get(ctx, betsAddr)
		if err != nil {
			return err
		}
		if err := e.admitBet(ctx, s, &list, domain.Bet{Pair: p.Bet, Slot: p.Slot}, auth, p.Funding); err != nil {
			return err
		}
		if err := s.Bets().Update(ctx, betsAddr, list); err != nil {
			return err
		}

		meta = domain.PlayerMetadata{
			Address:       domain.PlayerAddress(p.Room, p.Slot),
			Version:       domain.PlayerMetadataVersion,
			Room:          p.Room,
			RoomKey:       room.Key,
			CreatedBy:     p.Caller,
			PayoutAccount: p.Payout,
			Slot:          p.Slot,
		}
		if err := s.Players().Create(ctx, meta); err != nil {
			return err
		}

		room.PlayersCount++
		if err := s.Rooms().Update(ctx, room); err != nil {
			return err
		}

		if err := s.Accounts().Transfer(ctx, p.Funding, domain.VaultAddress(p.Room), room.InitAmount); err != nil {
			return err
		}

		return s.Audit().Log(ctx, domain.EventPlayerJoined, map[string]any{
			"room":   string(p.Room),
			"slot":   p.Slot,
			"caller": p.Caller,
			"stake":  room.InitAmount,
		})
	})
	if err != nil {
		return domain.PlayerMetadata{}, fmt.Errorf("settlement: join room: %w", err)
	}

	e.logger.Info("player joined",
		slog.String("room", string(p.Room)),
		slog.Int("slot", int(p.Slot)),
	)
	slot := p.Slot
	e.publish(ctx, domain.RoomEvent{
		Event:   domain.EventPlayerJoined,
		Room:    p.Room,
		RoomKey: meta.RoomKey,
		Slot:    &slot,
		Pair:    &p.Bet,
	})
	return meta, nil
}

// WinnerSlot resolves the winning slot for a room against the published
// oracle result. It returns domain.ErrRoomNotSettled before publication and
// domain.ErrNoWinner when nobody bet the published pair.
func (e *Engine) WinnerSlot(ctx context.Context, room domain.Address) (uint8, error) {
	r, err := e.store.Rooms().Get(ctx, room)
	if err != nil {
		return 0, fmt.Errorf("settlement: winner: %w", err)
	}
	oracle, err := e.store.Oracles().Get(ctx, r.Oracle)
	if err != nil {
		return 0, fmt.Errorf("settlement: winner: %w", err)
	}
	if !oracle.Finished {
		return 0, domain.ErrRoomNotSettled
	}
	list, err := e.store.Bets().Get(ctx, domain.BetsAddress(room))
	if err != nil {
		return 0, fmt.Errorf("settlement: winner: %w", err)
	}
	slot, ok := list.Winner(oracle.Results)
	if !ok {
		return 0, domain.ErrNoWinner
	}
	return slot, nil
}

// Withdraw releases the pooled funds to the winning participant, splitting
// the vault balance between the winner's payout account and the
// authorizer's fee vault. It is the only path that moves funds out of a
// vault after settlement, and it succeeds at most once per room.
func (e *Engine) Withdraw(ctx context.Context, p WithdrawParams) (WithdrawResult, error) {
	unlock, err := e.locks.Acquire(ctx, lockKey(p.Room), e.lockTTL)
	if err != nil {
		return WithdrawResult{}, fmt.Errorf("settlement: withdraw: %w", err)
	}
	defer unlock()

	var (
		res     WithdrawResult
		roomKey int64
	)
	err = e.store.Atomically(ctx, func(s domain.Store) error {
		room, err := s.Rooms().Get(ctx, p.Room)
		if err != nil {
			return err
		}
		roomKey = room.Key

		oracle, err := s.Oracles().Get(ctx, room.Oracle)
		if err != nil {
			return err
		}
		if !oracle.Finished {
			return domain.ErrRoomNotSettled
		}

		vaultAddr := domain.VaultAddress(p.Room)
		vault, err := s.Accounts().Get(ctx, vaultAddr)
		if err != nil {
			return err
		}
		auth, _, err := e.checkAsset(ctx, s, room.Oracle, p.Authorizer, vault.Mint)
		if err != nil {
			return err
		}

		list, err := s.Bets().Get(ctx, domain.BetsAddress(p.Room))
		if err != nil {
			return err
		}
		winner, ok := list.Winner(oracle.Results)
		if !ok || winner != p.Slot {
			return domain.ErrNotWinner
		}

		meta, err := s.Players().Get(ctx, domain.PlayerAddress(p.Room, p.Slot))
		if err != nil {
			return err
		}
		if meta.CreatedBy != p.Caller {
			return domain.ErrUnauthorized
		}
		if meta.Withdrawn {
			return domain.ErrAlreadyWithdrawn
		}

		res.FeeAmount = feeAmount(vault.Balance, auth.FeeBps)
		res.WinnerAmount = vault.Balance - res.FeeAmount

		if res.FeeAmount > 0 {
			if err := s.Accounts().Transfer(ctx, vaultAddr, auth.FeeVault, res.FeeAmount); err != nil {
				return err
			}
		}
		if err := s.Accounts().Transfer(ctx, vaultAddr, meta.PayoutAccount, res.WinnerAmount); err != nil {
			return err
		}

		// Flag updates come after the transfers; the transaction makes the
		// whole step all-or-nothing.
		if err := s.Players().SetWithdrawn(ctx, meta.Address); err != nil {
			return err
		}
		room.Finished = true
		if err := s.Rooms().Update(ctx, room); err != nil {
			return err
		}

		return s.Audit().Log(ctx, domain.EventRoomSettled, map[string]any{
			"room":   string(p.Room),
			"slot":   p.Slot,
			"caller": p.Caller,
			"amount": res.WinnerAmount,
			"fee":    res.FeeAmount,
		})
	})
	if err != nil {
		return WithdrawResult{}, fmt.Errorf("settlement: withdraw: %w", err)
	}

	e.logger.Info("room settled",
		slog.String("room", string(p.Room)),
		slog.Int("slot", int(p.Slot)),
		slog.Uint64("winner_amount", res.WinnerAmount),
		slog.Uint64("fee_amount", res.FeeAmount),
	)
	slot := p.Slot
	e.publish(ctx, domain.RoomEvent{
		Event:     domain.EventRoomSettled,
		Room:      p.Room,
		RoomKey:   roomKey,
		Slot:      &slot,
		Amount:    res.WinnerAmount,
		FeeAmount: res.FeeAmount,
	})
	return res, nil
}

// Refund returns a participant's original stake when the published result
// matches no bet in the room, so the pool can never be claimed. Each
// participant refunds independently; the withdrawn flag guards doubles.
func (e *Engine) Refund(ctx context.Context, p WithdrawParams) (uint64, error) {
	unlock, err := e.locks.Acquire(ctx, lockKey(p.Room), e.lockTTL)
	if err != nil {
		return 0, fmt.Errorf("settlement: refund: %w", err)
	}
	defer unlock()

	var (
		amount  uint64
		roomKey int64
	)
	err = e.store.Atomically(ctx, func(s domain.Store) error {
		room, err := s.Rooms().Get(ctx, p.Room)
		if err != nil {
			return err
		}
		roomKey = room.Key

		oracle, err := s.Oracles().Get(ctx, room.Oracle)
		if err != nil {
			return err
		}
		if !oracle.Finished {
			return domain.ErrRoomNotSettled
		}

		list, err := s.Bets().Get(ctx, domain.BetsAddress(p.Room))
		if err != nil {
			return err
		}
		if _, ok := list.Winner(oracle.Results); ok {
			return domain.ErrWinnerExists
		}

		meta, err := s.Players().Get(ctx, domain.PlayerAddress(p.Room, p.Slot))
		if err != nil {
			return err
		}
		if meta.CreatedBy != p.Caller {
			return domain.ErrUnauthorized
		}
		if meta.Withdrawn {
			return domain.ErrAlreadyWithdrawn
		}

		amount = room.InitAmount
		if err := s.Accounts().Transfer(ctx, domain.VaultAddress(p.Room), meta.PayoutAccount, amount); err != nil {
			return err
		}
		if err := s.Players().SetWithdrawn(ctx, meta.Address); err != nil {
			return err
		}
		if !room.Finished {
			room.Finished = true
			if err := s.Rooms().Update(ctx, room); err != nil {
				return err
			}
		}

		return s.Audit().Log(ctx, domain.EventStakeRefunded, map[string]any{
			"room":   string(p.Room),
			"slot":   p.Slot,
			"caller": p.Caller,
			"amount": amount,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("settlement: refund: %w", err)
	}

	e.logger.Info("stake refunded",
		slog.String("room", string(p.Room)),
		slog.Int("slot", int(p.Slot)),
		slog.Uint64("amount", amount),
	)
	slot := p.Slot
	e.publish(ctx, domain.RoomEvent{
		Event:   domain.EventStakeRefunded,
		Room:    p.Room,
		RoomKey: roomKey,
		Slot:    &slot,
		Amount:  amount,
	})
	return amount, nil
}

// Room returns a read-only snapshot of a room and its dependent records.
func (e *Engine) Room(ctx context.Context, addr domain.Address) (RoomDetail, error) {
	room, err := e.store.Rooms().Get(ctx, addr)
	if err != nil {
		return RoomDetail{}, fmt.Errorf("settlement: room: %w", err)
	}
	players, err := e.store.Players().ListByRoom(ctx, addr)
	if err != nil {
		return RoomDetail{}, fmt.Errorf("settlement: room players: %w", err)
	}
	list, err := e.store.Bets().Get(ctx, domain.BetsAddress(addr))
	if err != nil {
		return RoomDetail{}, fmt.Errorf("settlement: room bets: %w", err)
	}
	vault, err := e.store.Accounts().Get(ctx, domain.VaultAddress(addr))
	if err != nil {
		return RoomDetail{}, fmt.Errorf("settlement: room vault: %w", err)
	}
	return RoomDetail{Room: room, Players: players, Bets: list.Entries, Vault: vault}, nil
}

// Rooms lists rooms.
func (e *Engine) Rooms(ctx context.Context, opts domain.ListOpts) ([]domain.Room, error) {
	rooms, err := e.store.Rooms().List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("settlement: list rooms: %w", err)
	}
	return rooms, nil
}

// checkAsset performs the asset-type cross-checks shared by every
// operation: the mint must be the one the authorizer sanctions, and the
// oracle must reference that same authorizer.
func (e *Engine) checkAsset(ctx context.Context, s domain.Store, oracleAddr, authAddr domain.Address, mint string) (domain.Authorizer, domain.Oracle, error) {
	auth, err := s.Authorizers().Get(ctx, authAddr)
	if err != nil {
		return domain.Authorizer{}, domain.Oracle{}, err
	}
	oracle, err := s.Oracles().Get(ctx, oracleAddr)
	if err != nil {
		return domain.Authorizer{}, domain.Oracle{}, err
	}
	if auth.Mint != mint || oracle.Authorizer != auth.Address {
		return domain.Authorizer{}, domain.Oracle{}, domain.ErrAssetMismatch
	}
	return auth, oracle, nil
}

// checkFunding verifies the caller controls the funding account it named.
// Vault addresses are derivable, so a debit from any account the caller does
// not own must be refused before funds move.
func (e *Engine) checkFunding(ctx context.Context, s domain.Store, funding domain.Address, caller, mint string) error {
	acct, err := s.Accounts().Get(ctx, funding)
	if err != nil {
		return fmt.Errorf("funding account: %w", err)
	}
	if acct.Owner != caller {
		return fmt.Errorf("funding account: %w", domain.ErrUnauthorized)
	}
	if acct.Mint != mint {
		return fmt.Errorf("funding account: %w", domain.ErrAssetMismatch)
	}
	return nil
}

// admitBet grows the bet list by one entry, charges the actor causing the
// growth for the extra storage, and validates pair uniqueness.
func (e *Engine) admitBet(ctx context.Context, s domain.Store, list *domain.BetList, bet domain.Bet, auth domain.Authorizer, funding domain.Address) error {
	if err := list.Add(bet); err != nil {
		return err
	}
	grown := list.Grow()
	if rent := uint64(grown) * auth.RentPerByte; rent > 0 {
		if err := s.Accounts().Transfer(ctx, funding, auth.FeeVault, rent); err != nil {
			return fmt.Errorf("ledger rent: %w", err)
		}
	}
	return nil
}

// publish emits a room event on the shared channel, the per-room channel,
// and the durable stream. Event delivery is best-effort; failures are
// logged, never propagated into the settlement result.
func (e *Engine) publish(ctx context.Context, ev domain.RoomEvent) {
	if e.bus == nil {
		return
	}
	ev.OccurredAt = time.Now().UTC()

	payload, err := json.Marshal(ev)
	if err != nil {
		e.logger.Warn("marshal room event", slog.String("error", err.Error()))
		return
	}
	channels := []string{domain.RoomChannel, domain.RoomChannel + ":" + string(ev.Room)}
	for _, ch := range channels {
		if err := e.bus.Publish(ctx, ch, payload); err != nil {
			e.logger.Warn("publish room event",
				slog.String("channel", ch),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := e.bus.StreamAppend(ctx, "stream:rooms", payload); err != nil {
		e.logger.Warn("append room event stream", slog.String("error", err.Error()))
	}
}

func lockKey(room domain.Address) string {
	return "room:" + string(room)
}

// feeAmount computes floor(balance * bps / 10000) on quotient and remainder
// separately, so the product cannot overflow uint64 for large pool balances.
func feeAmount(balance uint64, bps uint32) uint64 {
	return balance/10_000*uint64(bps) + balance%10_000*uint64(bps)/10_000
}

// IsRetryable reports whether an operation failure is worth resubmitting
// with corrected inputs, which is only the case for slot contention.
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrSlotTaken) || errors.Is(err, domain.ErrLockHeld)
}
