// Package memory implements domain.Store in process. It backs dev mode and
// the engine tests; the postgres package is the production backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/parlay-labs/poolroom/internal/domain"
)

// state holds every collection. Atomically clones it, runs the mutation
// against the clone, and swaps it in on success, so a failed operation
// leaves nothing behind.
type state struct {
	rooms       map[domain.Address]domain.Room
	players     map[domain.Address]domain.PlayerMetadata
	bets        map[domain.Address]domain.BetList
	oracles     map[domain.Address]domain.Oracle
	authorizers map[domain.Address]domain.Authorizer
	accounts    map[domain.Address]domain.TokenAccount
	audit       []domain.AuditEntry
}

func newState() *state {
	return &state{
		rooms:       make(map[domain.Address]domain.Room),
		players:     make(map[domain.Address]domain.PlayerMetadata),
		bets:        make(map[domain.Address]domain.BetList),
		oracles:     make(map[domain.Address]domain.Oracle),
		authorizers: make(map[domain.Address]domain.Authorizer),
		accounts:    make(map[domain.Address]domain.TokenAccount),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.rooms {
		c.rooms[k] = v
	}
	for k, v := range st.players {
		c.players[k] = v
	}
	for k, v := range st.bets {
		entries := make([]domain.Bet, len(v.Entries))
		copy(entries, v.Entries)
		c.bets[k] = domain.BetList{Entries: entries, Space: v.Space}
	}
	for k, v := range st.oracles {
		c.oracles[k] = v
	}
	for k, v := range st.authorizers {
		c.authorizers[k] = v
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	c.audit = append(c.audit, st.audit...)
	return c
}

// Store is the in-process domain.Store implementation.
type Store struct {
	mu sync.Mutex
	st *state
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{st: newState()}
}

// view is a store bound to a particular state, used both for direct reads
// and as the transactional handle inside Atomically.
type view struct {
	store *Store
	st    *state
	inTx  bool
}

func (s *Store) root() *view { return &view{store: s, st: s.st} }

func (s *Store) Rooms() domain.RoomStore             { return roomStore{s.root()} }
func (s *Store) Players() domain.PlayerStore         { return playerStore{s.root()} }
func (s *Store) Bets() domain.BetStore               { return betStore{s.root()} }
func (s *Store) Oracles() domain.OracleStore         { return oracleStore{s.root()} }
func (s *Store) Authorizers() domain.AuthorizerStore { return authorizerStore{s.root()} }
func (s *Store) Accounts() domain.TokenAccountStore  { return accountStore{s.root()} }
func (s *Store) Audit() domain.AuditStore            { return auditStore{s.root()} }

// Atomically clones the current state, applies fn to the clone, and commits
// the clone only when fn succeeds. The store lock is held for the duration,
// which also serializes transactions.
func (s *Store) Atomically(ctx context.Context, fn func(domain.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.st.clone()
	if err := fn(&view{store: s, st: c, inTx: true}); err != nil {
		return err
	}
	s.st = c
	return nil
}

func (v *view) Rooms() domain.RoomStore             { return roomStore{v} }
func (v *view) Players() domain.PlayerStore         { return playerStore{v} }
func (v *view) Bets() domain.BetStore               { return betStore{v} }
func (v *view) Oracles() domain.OracleStore         { return oracleStore{v} }
func (v *view) Authorizers() domain.AuthorizerStore { return authorizerStore{v} }
func (v *view) Accounts() domain.TokenAccountStore  { return accountStore{v} }
func (v *view) Audit() domain.AuditStore            { return auditStore{v} }

// Atomically on a transactional view runs fn directly; the enclosing
// transaction already provides the boundary.
func (v *view) Atomically(ctx context.Context, fn func(domain.Store) error) error {
	if v.inTx {
		return fn(v)
	}
	return v.store.Atomically(ctx, fn)
}

// lock guards direct (non-transactional) access through the root view.
func (v *view) lock() func() {
	if v.inTx {
		return func() {}
	}
	v.store.mu.Lock()
	return v.store.mu.Unlock
}

// current returns the state to operate on. Direct views always read the
// store's latest state; transactional views read their clone.
func (v *view) current() *state {
	if v.inTx {
		return v.st
	}
	return v.store.st
}

type roomStore struct{ v *view }

func (s roomStore) Create(ctx context.Context, room domain.Room) error {
	defer s.v.lock()()
	st := s.v.current()
	if _, ok := st.rooms[room.Address]; ok {
		return domain.ErrDuplicateRoom
	}
	now := time.Now().UTC()
	room.CreatedAt, room.UpdatedAt = now, now
	st.rooms[room.Address] = room
	return nil
}

func (s roomStore) Get(ctx context.Context, addr domain.Address) (domain.Room, error) {
	defer s.v.lock()()
	room, ok := s.v.current().rooms[addr]
	if !ok {
		return domain.Room{}, domain.ErrNotFound
	}
	return room, nil
}

func (s roomStore) Update(ctx context.Context, room domain.Room) error {
	defer s.v.lock()()
	st := s.v.current()
	if _, ok := st.rooms[room.Address]; !ok {
		return domain.ErrNotFound
	}
	room.UpdatedAt = time.Now().UTC()
	st.rooms[room.Address] = room
	return nil
}

func (s roomStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Room, error) {
	defer s.v.lock()()
	var rooms []domain.Room
	for _, r := range s.v.current().rooms {
		if opts.OpenOnly && r.Finished {
			continue
		}
		rooms = append(rooms, r)
	}
	// Iteration order is unstable; newest first keeps the API predictable.
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	if opts.Offset > 0 {
		if opts.Offset >= len(rooms) {
			return nil, nil
		}
		rooms = rooms[opts.Offset:]
	}
	if opts.Limit > 0 && len(rooms) > opts.Limit {
		rooms = rooms[:opts.Limit]
	}
	return rooms, nil
}

type playerStore struct{ v *view }

func (s playerStore) Create(ctx context.Context, meta domain.PlayerMetadata) error {
	defer s.v.lock()()
	st := s.v.current()
	if _, ok := st.players[meta.Address]; ok {
		return domain.ErrSlotTaken
	}
	meta.CreatedAt = time.Now().UTC()
	st.players[meta.Address] = meta
	return nil
}

func (s playerStore) Get(ctx context.Context, addr domain.Address) (domain.PlayerMetadata, error) {
	defer s.v.lock()()
	meta, ok := s.v.current().players[addr]
	if !ok {
		return domain.PlayerMetadata{}, domain.ErrNotFound
	}
	return meta, nil
}

func (s playerStore) SetWithdrawn(ctx context.Context, addr domain.Address) error {
	defer s.v.lock()()
	st := s.v.current()
	meta, ok := st.players[addr]
	if !ok {
		return domain.ErrNotFound
	}
	meta.Withdrawn = true
	st.players[addr] = meta
	return nil
}

func (s playerStore) ListByRoom(ctx context.Context, room domain.Address) ([]domain.PlayerMetadata, error) {
	defer s.v.lock()()
	var out []domain.PlayerMetadata
	for _, m := range s.v.current().players {
		if m.Room == room {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

type betStore struct{ v *view }

func (s betStore) Create(ctx context.Context, addr domain.Address, list domain.BetList) error {
	defer s.v.lock()()
	st := s.v.current()
	if _, ok := st.bets[addr]; ok {
		return domain.ErrAlreadyExists
	}
	st.bets[addr] = list
	return nil
}

func (s betStore) Get(ctx context.Context, addr domain.Address) (domain.BetList, error) {
	defer s.v.lock()()
	list, ok := s.v.current().bets[addr]
	if !ok {
		return domain.BetList{}, domain.ErrNotFound
	}
	entries := make([]domain.Bet, len(list.Entries))
	copy(entries, list.Entries)
	return domain.BetList{Entries: entries, Space: list.Space}, nil
}

func (s betStore) Update(ctx context.Context, addr domain.Address, list domain.BetList) error {
	defer s.v.lock()()
	st := s.v.current()
	if _, ok := st.bets[addr]; !ok {
		return domain.ErrNotFound
	}
	st.bets[addr] = list
	return nil
}

type oracleStore struct{ v *view }

func (s oracleStore) Create(ctx context.Context, o domain.Oracle) error {
	defer s.v.lock()()
	st := s.v.current()
	if _, ok := st.oracles[o.Address]; ok {
		return domain.ErrAlreadyExists
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	st.oracles[o.Address] = o
	return nil
}

func (s oracleStore) Get(ctx context.Context, addr domain.Address) (domain.Oracle, error) {
	defer s.v.lock()()
	o, ok := s.v.current().oracles[addr]
	if !ok {
		return domain.Oracle{}, domain.ErrNotFound
	}
	return o, nil
}

func (s oracleStore) PublishResult(ctx context.Context, addr domain.Address, result domain.BetPair) error {
	defer s.v.lock()()
	st := s.v.current()
	o, ok := st.oracles[addr]
	if !ok {
		return domain.ErrNotFound
	}
	if o.Finished {
		return domain.ErrResultPublished
	}
	o.Results = result
	o.Finished = true
	o.UpdatedAt = time.Now().UTC()
	st.oracles[addr] = o
	return nil
}

type authorizerStore struct{ v *view }

func (s authorizerStore) Create(ctx context.Context, a domain.Authorizer) error {
	defer s.v.lock()()
	st := s.v.current()
	if _, ok := st.authorizers[a.Address]; ok {
		return domain.ErrAlreadyExists
	}
	a.CreatedAt = time.Now().UTC()
	st.authorizers[a.Address] = a
	return nil
}

func (s authorizerStore) Get(ctx context.Context, addr domain.Address) (domain.Authorizer, error) {
	defer s.v.lock()()
	a, ok := s.v.current().authorizers[addr]
	if !ok {
		return domain.Authorizer{}, domain.ErrNotFound
	}
	return a, nil
}

type accountStore struct{ v *view }

func (s accountStore) Create(ctx context.Context, acct domain.TokenAccount) error {
	defer s.v.lock()()
	st := s.v.current()
	if _, ok := st.accounts[acct.Address]; ok {
		return domain.ErrAlreadyExists
	}
	acct.CreatedAt = time.Now().UTC()
	st.accounts[acct.Address] = acct
	return nil
}

func (s accountStore) Get(ctx context.Context, addr domain.Address) (domain.TokenAccount, error) {
	defer s.v.lock()()
	acct, ok := s.v.current().accounts[addr]
	if !ok {
		return domain.TokenAccount{}, domain.ErrNotFound
	}
	return acct, nil
}

func (s accountStore) Transfer(ctx context.Context, from, to domain.Address, amount uint64) error {
	if from == to {
		return domain.ErrInvalidAmount
	}
	defer s.v.lock()()
	st := s.v.current()
	src, ok := st.accounts[from]
	if !ok {
		return domain.ErrNotFound
	}
	dst, ok := st.accounts[to]
	if !ok {
		return domain.ErrNotFound
	}
	if src.Mint != dst.Mint {
		return domain.ErrAssetMismatch
	}
	if src.Balance < amount {
		return domain.ErrInsufficientFunds
	}
	src.Balance -= amount
	dst.Balance += amount
	st.accounts[from] = src
	st.accounts[to] = dst
	return nil
}

func (s accountStore) Credit(ctx context.Context, addr domain.Address, amount uint64) error {
	defer s.v.lock()()
	st := s.v.current()
	acct, ok := st.accounts[addr]
	if !ok {
		return domain.ErrNotFound
	}
	acct.Balance += amount
	st.accounts[addr] = acct
	return nil
}

type auditStore struct{ v *view }

func (s auditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	defer s.v.lock()()
	st := s.v.current()
	st.audit = append(st.audit, domain.AuditEntry{
		ID:        int64(len(st.audit) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s auditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	defer s.v.lock()()
	st := s.v.current()
	out := make([]domain.AuditEntry, 0, len(st.audit))
	for i := len(st.audit) - 1; i >= 0; i-- {
		out = append(out, st.audit[i])
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.Store = (*Store)(nil)
