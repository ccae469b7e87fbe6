package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/parlay-labs/poolroom/internal/cache/local"
	"github.com/parlay-labs/poolroom/internal/domain"
	"github.com/parlay-labs/poolroom/internal/settlement"
	"github.com/parlay-labs/poolroom/internal/store/memory"
)

type apiFixture struct {
	engine *settlement.Engine
	srv    *httptest.Server

	authorizer domain.Address
	oracle     domain.Address
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := settlement.New(memory.New(), local.NewLockManager(), local.NewSignalBus(), time.Second, logger)

	mux := http.NewServeMux()
	rooms := NewRoomHandler(eng, logger)
	oracles := NewOracleHandler(eng, logger)
	accounts := NewAccountHandler(eng, logger)

	mux.HandleFunc("POST /api/rooms", rooms.CreateRoom)
	mux.HandleFunc("GET /api/rooms", rooms.ListRooms)
	mux.HandleFunc("GET /api/rooms/{address}", rooms.GetRoom)
	mux.HandleFunc("POST /api/rooms/{address}/join", rooms.JoinRoom)
	mux.HandleFunc("GET /api/rooms/{address}/winner", rooms.GetWinner)
	mux.HandleFunc("POST /api/rooms/{address}/withdraw", rooms.Withdraw)
	mux.HandleFunc("POST /api/rooms/{address}/refund", rooms.Refund)
	mux.HandleFunc("POST /api/oracles/{address}/result", oracles.PublishResult)
	mux.HandleFunc("GET /api/accounts/{address}", accounts.GetAccount)

	f := &apiFixture{
		engine: eng,
		srv:    httptest.NewServer(mux),
	}
	t.Cleanup(f.srv.Close)

	auth, err := eng.CreateAuthorizer(ctx, settlement.CreateAuthorizerParams{
		ID: "season-1", Mint: "USDV", FeeBps: 500, RentPerByte: 1,
	})
	if err != nil {
		t.Fatalf("create authorizer: %v", err)
	}
	f.authorizer = auth.Address

	oracle, err := eng.CreateOracle(ctx, settlement.CreateOracleParams{
		Authorizer: auth.Address, ID: "match-1",
	})
	if err != nil {
		t.Fatalf("create oracle: %v", err)
	}
	f.oracle = oracle.Address

	for _, owner := range []string{"alice", "bob"} {
		acct, err := eng.CreateAccount(ctx, owner, "USDV")
		if err != nil {
			t.Fatalf("create account %s: %v", owner, err)
		}
		if err := eng.Faucet(ctx, acct.Address, 1000); err != nil {
			t.Fatalf("fund account %s: %v", owner, err)
		}
	}

	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func (f *apiFixture) createRoom(t *testing.T, key int64, pair domain.BetPair, stake uint64) domain.Room {
	t.Helper()
	resp, data := f.do(t, http.MethodPost, "/api/rooms", map[string]any{
		"oracle":     string(f.oracle),
		"authorizer": string(f.authorizer),
		"mint":       "USDV",
		"room_key":   key,
		"bet":        pair,
		"stake":      stake,
		"caller":     "alice",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create room: status %d: %s", resp.StatusCode, data)
	}
	var room domain.Room
	if err := json.Unmarshal(data, &room); err != nil {
		t.Fatalf("decode room: %v", err)
	}
	return room
}

func TestRoomLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	room := f.createRoom(t, 7, domain.BetPair{A: 1, B: 0}, 100)
	if room.PlayersCount != 1 {
		t.Fatalf("players_count = %d, want 1", room.PlayersCount)
	}

	// Bob joins slot 1 with a different prediction.
	resp, data := f.do(t, http.MethodPost, "/api/rooms/"+string(room.Address)+"/join", map[string]any{
		"authorizer": string(f.authorizer),
		"mint":       "USDV",
		"bet":        domain.BetPair{A: 2, B: 1},
		"slot":       1,
		"caller":     "bob",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("join: status %d: %s", resp.StatusCode, data)
	}

	// Winner is unknown before the result is published.
	resp, _ = f.do(t, http.MethodGet, "/api/rooms/"+string(room.Address)+"/winner", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("winner before result: status %d, want 409", resp.StatusCode)
	}

	resp, data = f.do(t, http.MethodPost, "/api/oracles/"+string(f.oracle)+"/result", map[string]any{
		"result": domain.BetPair{A: 2, B: 1},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("publish result: status %d: %s", resp.StatusCode, data)
	}

	resp, data = f.do(t, http.MethodGet, "/api/rooms/"+string(room.Address)+"/winner", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("winner: status %d: %s", resp.StatusCode, data)
	}
	var winner struct {
		Slot uint8 `json:"slot"`
	}
	if err := json.Unmarshal(data, &winner); err != nil {
		t.Fatalf("decode winner: %v", err)
	}
	if winner.Slot != 1 {
		t.Fatalf("winner slot = %d, want 1", winner.Slot)
	}

	// Alice cannot withdraw bob's winning slot.
	resp, _ = f.do(t, http.MethodPost, "/api/rooms/"+string(room.Address)+"/withdraw", map[string]any{
		"authorizer": string(f.authorizer),
		"slot":       1,
		"caller":     "alice",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign withdraw: status %d, want 403", resp.StatusCode)
	}

	resp, data = f.do(t, http.MethodPost, "/api/rooms/"+string(room.Address)+"/withdraw", map[string]any{
		"authorizer": string(f.authorizer),
		"slot":       1,
		"caller":     "bob",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("withdraw: status %d: %s", resp.StatusCode, data)
	}
	var settled struct {
		WinnerAmount string `json:"winner_amount"`
		FeeAmount    string `json:"fee_amount"`
	}
	if err := json.Unmarshal(data, &settled); err != nil {
		t.Fatalf("decode withdraw: %v", err)
	}
	// Vault held 200; 5% fee is 10.
	if settled.WinnerAmount != "190" || settled.FeeAmount != "10" {
		t.Fatalf("split = %s/%s, want 190/10", settled.WinnerAmount, settled.FeeAmount)
	}

	// A second withdraw is rejected.
	resp, _ = f.do(t, http.MethodPost, "/api/rooms/"+string(room.Address)+"/withdraw", map[string]any{
		"authorizer": string(f.authorizer),
		"slot":       1,
		"caller":     "bob",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second withdraw: status %d, want 409", resp.StatusCode)
	}

	// Bob's account picked up the winnings: 1000 - 100 stake - 8 rent + 190.
	bobAcct := domain.TokenAddress("bob", "USDV")
	resp, data = f.do(t, http.MethodGet, "/api/accounts/"+string(bobAcct), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get account: status %d: %s", resp.StatusCode, data)
	}
	var acct domain.TokenAccount
	if err := json.Unmarshal(data, &acct); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if acct.Balance != 1082 {
		t.Fatalf("bob balance = %d, want 1082", acct.Balance)
	}
}

func TestJoinConflictsOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	room := f.createRoom(t, 11, domain.BetPair{A: 1, B: 0}, 100)

	// Same pair as the creator.
	resp, _ := f.do(t, http.MethodPost, "/api/rooms/"+string(room.Address)+"/join", map[string]any{
		"authorizer": string(f.authorizer),
		"mint":       "USDV",
		"bet":        domain.BetPair{A: 1, B: 0},
		"slot":       1,
		"caller":     "bob",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate pair: status %d, want 409", resp.StatusCode)
	}

	// Stale slot claim.
	resp, _ = f.do(t, http.MethodPost, "/api/rooms/"+string(room.Address)+"/join", map[string]any{
		"authorizer": string(f.authorizer),
		"mint":       "USDV",
		"bet":        domain.BetPair{A: 0, B: 0},
		"slot":       5,
		"caller":     "bob",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("stale slot: status %d, want 409", resp.StatusCode)
	}

	// Wrong mint.
	resp, _ = f.do(t, http.MethodPost, "/api/rooms/"+string(room.Address)+"/join", map[string]any{
		"authorizer": string(f.authorizer),
		"mint":       "WRONG",
		"bet":        domain.BetPair{A: 0, B: 0},
		"slot":       1,
		"caller":     "bob",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("wrong mint: status %d, want 400", resp.StatusCode)
	}
}

func TestGetRoomDetailOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	room := f.createRoom(t, 13, domain.BetPair{A: 3, B: 2}, 250)

	resp, data := f.do(t, http.MethodGet, "/api/rooms/"+string(room.Address), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get room: status %d: %s", resp.StatusCode, data)
	}

	var detail struct {
		Room    domain.Room             `json:"room"`
		Players []domain.PlayerMetadata `json:"players"`
		Bets    []domain.Bet            `json:"bets"`
		Vault   domain.TokenAccount     `json:"vault"`
	}
	if err := json.Unmarshal(data, &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if len(detail.Players) != 1 || len(detail.Bets) != 1 {
		t.Fatalf("players/bets = %d/%d, want 1/1", len(detail.Players), len(detail.Bets))
	}
	if detail.Vault.Balance != 250 {
		t.Fatalf("vault balance = %d, want 250", detail.Vault.Balance)
	}
	if detail.Bets[0].Pair != (domain.BetPair{A: 3, B: 2}) {
		t.Fatalf("bet pair = %+v", detail.Bets[0].Pair)
	}

	// Unknown room address.
	resp, _ = f.do(t, http.MethodGet, "/api/rooms/"+string(domain.RoomAddress(f.oracle, 999)), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown room: status %d, want 404", resp.StatusCode)
	}
}

func TestListRoomsFiltersOpenOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	for i := int64(1); i <= 3; i++ {
		f.createRoom(t, i, domain.BetPair{A: byte(i), B: 0}, 100)
	}

	resp, data := f.do(t, http.MethodGet, "/api/rooms?limit=2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list rooms: status %d: %s", resp.StatusCode, data)
	}
	var list struct {
		Rooms []domain.Room `json:"rooms"`
		Limit int           `json:"limit"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Rooms) != 2 || list.Limit != 2 {
		t.Fatalf("got %d rooms (limit %d), want 2", len(list.Rooms), list.Limit)
	}
}

func TestRefundOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	room := f.createRoom(t, 21, domain.BetPair{A: 1, B: 0}, 100)

	// Publish a result nobody bet on.
	resp, data := f.do(t, http.MethodPost, "/api/oracles/"+string(f.oracle)+"/result", map[string]any{
		"result": domain.BetPair{A: 9, B: 9},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("publish result: status %d: %s", resp.StatusCode, data)
	}

	resp, data = f.do(t, http.MethodPost, "/api/rooms/"+string(room.Address)+"/refund", map[string]any{
		"authorizer": string(f.authorizer),
		"slot":       0,
		"caller":     "alice",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refund: status %d: %s", resp.StatusCode, data)
	}
	var refunded struct {
		Amount string `json:"amount"`
	}
	if err := json.Unmarshal(data, &refunded); err != nil {
		t.Fatalf("decode refund: %v", err)
	}
	if refunded.Amount != "100" {
		t.Fatalf("refund amount = %s, want 100", refunded.Amount)
	}
}

func TestRecreateRoomConflictsOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	f.createRoom(t, 31, domain.BetPair{A: 1, B: 0}, 100)

	resp, _ := f.do(t, http.MethodPost, "/api/rooms", map[string]any{
		"oracle":     string(f.oracle),
		"authorizer": string(f.authorizer),
		"mint":       "USDV",
		"room_key":   31,
		"bet":        domain.BetPair{A: 2, B: 2},
		"stake":      100,
		"caller":     "bob",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("recreate room: status %d, want 409", resp.StatusCode)
	}
}

func TestBadRequestBodies(t *testing.T) {
	f := newAPIFixture(t)

	for _, tc := range []struct {
		method, path string
		body         string
	}{
		{http.MethodPost, "/api/rooms", `{"unknown_field":1}`},
		{http.MethodPost, "/api/rooms", `not json`},
	} {
		req, err := http.NewRequest(tc.method, f.srv.URL+tc.path, bytes.NewReader([]byte(tc.body)))
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		resp, err := f.srv.Client().Do(req)
		if err != nil {
			t.Fatalf("do: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s with body %q: status %d, want 400", tc.path, tc.body, resp.StatusCode)
		}
	}
}
