package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/parlay-labs/poolroom/internal/domain"
	"github.com/parlay-labs/poolroom/internal/settlement"
)

// RoomService defines the settlement operations the room handler requires.
// It is declared locally so the handler package does not depend on the
// concrete engine beyond its parameter types.
type RoomService interface {
	CreateRoom(ctx context.Context, p settlement.CreateRoomParams) (domain.Room, error)
	JoinRoom(ctx context.Context, p settlement.JoinRoomParams) (domain.PlayerMetadata, error)
	Withdraw(ctx context.Context, p settlement.WithdrawParams) (settlement.WithdrawResult, error)
	Refund(ctx context.Context, p settlement.WithdrawParams) (uint64, error)
	WinnerSlot(ctx context.Context, room domain.Address) (uint8, error)
	Room(ctx context.Context, addr domain.Address) (settlement.RoomDetail, error)
	Rooms(ctx context.Context, opts domain.ListOpts) ([]domain.Room, error)
}

// RoomHandler serves the room lifecycle HTTP endpoints.
type RoomHandler struct {
	rooms  RoomService
	logger *slog.Logger
}

// NewRoomHandler creates a RoomHandler with the given service and logger.
func NewRoomHandler(rooms RoomService, logger *slog.Logger) *RoomHandler {
	return &RoomHandler{
		rooms:  rooms,
		logger: logger,
	}
}

// createRoomRequest is the body for room creation. Funding and payout
// accounts default to the caller's token account for the given mint.
type createRoomRequest struct {
	Oracle     string         `json:"oracle"`
	Authorizer string         `json:"authorizer"`
	Mint       string         `json:"mint"`
	RoomKey    int64          `json:"room_key"`
	Bet        domain.BetPair `json:"bet"`
	Stake      uint64         `json:"stake"`
	Caller     string         `json:"caller"`
	Funding    string         `json:"funding,omitempty"`
	Payout     string         `json:"payout,omitempty"`
}

// CreateRoom opens a new wagering pool with the creator's bet and stake.
// POST /api/rooms
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Oracle == "" || req.Authorizer == "" || req.Mint == "" || req.Caller == "" {
		writeError(w, http.StatusBadRequest, "oracle, authorizer, mint, and caller are required")
		return
	}

	room, err := h.rooms.CreateRoom(r.Context(), settlement.CreateRoomParams{
		Oracle:     domain.Address(req.Oracle),
		Authorizer: domain.Address(req.Authorizer),
		Mint:       req.Mint,
		RoomKey:    req.RoomKey,
		Bet:        req.Bet,
		Stake:      req.Stake,
		Caller:     req.Caller,
		Funding:    callerAccount(req.Funding, req.Caller, req.Mint),
		Payout:     callerAccount(req.Payout, req.Caller, req.Mint),
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: create room failed",
			slog.Int64("room_key", req.RoomKey),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, room)
}

// listRoomsResponse wraps the list endpoint output with paging metadata.
type listRoomsResponse struct {
	Rooms  []domain.Room `json:"rooms"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// ListRooms returns rooms with pagination. Pass open=true to filter out
// finished rooms.
// GET /api/rooms?limit=50&offset=0&open=true
func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	rooms, err := h.rooms.Rooms(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list rooms failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}

	writeJSON(w, http.StatusOK, listRoomsResponse{
		Rooms:  rooms,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// roomDetailResponse is the full snapshot of one room.
type roomDetailResponse struct {
	Room    domain.Room             `json:"room"`
	Players []domain.PlayerMetadata `json:"players"`
	Bets    []domain.Bet            `json:"bets"`
	Vault   domain.TokenAccount     `json:"vault"`
}

// GetRoom returns a room with its players, bet list, and vault.
// GET /api/rooms/{address}
func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	addr := pathParam(r, "address")
	if addr == "" {
		writeError(w, http.StatusBadRequest, "missing room address")
		return
	}

	detail, err := h.rooms.Room(r.Context(), domain.Address(addr))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, roomDetailResponse{
		Room:    detail.Room,
		Players: detail.Players,
		Bets:    detail.Bets,
		Vault:   detail.Vault,
	})
}

// joinRoomRequest is the body for joining a room. Slot must be the next
// free index; stale claims come back as a 409 and the client resubmits.
type joinRoomRequest struct {
	Authorizer string         `json:"authorizer"`
	Mint       string         `json:"mint"`
	Bet        domain.BetPair `json:"bet"`
	Slot       uint8          `json:"slot"`
	Caller     string         `json:"caller"`
	Funding    string         `json:"funding,omitempty"`
	Payout     string         `json:"payout,omitempty"`
}

// JoinRoom admits one more bet into an existing room.
// POST /api/rooms/{address}/join
func (h *RoomHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	addr := pathParam(r, "address")
	if addr == "" {
		writeError(w, http.StatusBadRequest, "missing room address")
		return
	}

	var req joinRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Authorizer == "" || req.Mint == "" || req.Caller == "" {
		writeError(w, http.StatusBadRequest, "authorizer, mint, and caller are required")
		return
	}

	meta, err := h.rooms.JoinRoom(r.Context(), settlement.JoinRoomParams{
		Room:       domain.Address(addr),
		Authorizer: domain.Address(req.Authorizer),
		Mint:       req.Mint,
		Bet:        req.Bet,
		Slot:       req.Slot,
		Caller:     req.Caller,
		Funding:    callerAccount(req.Funding, req.Caller, req.Mint),
		Payout:     callerAccount(req.Payout, req.Caller, req.Mint),
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: join room failed",
			slog.String("room", addr),
			slog.Int("slot", int(req.Slot)),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, meta)
}

// GetWinner resolves the winning slot for a settled room.
// GET /api/rooms/{address}/winner
func (h *RoomHandler) GetWinner(w http.ResponseWriter, r *http.Request) {
	addr := pathParam(r, "address")
	if addr == "" {
		writeError(w, http.StatusBadRequest, "missing room address")
		return
	}

	slot, err := h.rooms.WinnerSlot(r.Context(), domain.Address(addr))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"room": addr,
		"slot": slot,
	})
}

// settleRequest is the shared body for withdraw and refund.
type settleRequest struct {
	Authorizer string `json:"authorizer"`
	Slot       uint8  `json:"slot"`
	Caller     string `json:"caller"`
}

// Withdraw releases the pooled funds to the winning participant.
// POST /api/rooms/{address}/withdraw
func (h *RoomHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	addr := pathParam(r, "address")
	if addr == "" {
		writeError(w, http.StatusBadRequest, "missing room address")
		return
	}

	var req settleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Authorizer == "" || req.Caller == "" {
		writeError(w, http.StatusBadRequest, "authorizer and caller are required")
		return
	}

	res, err := h.rooms.Withdraw(r.Context(), settlement.WithdrawParams{
		Room:       domain.Address(addr),
		Authorizer: domain.Address(req.Authorizer),
		Slot:       req.Slot,
		Caller:     req.Caller,
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: withdraw failed",
			slog.String("room", addr),
			slog.Int("slot", int(req.Slot)),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"room":          addr,
		"slot":          req.Slot,
		"winner_amount": strconv.FormatUint(res.WinnerAmount, 10),
		"fee_amount":    strconv.FormatUint(res.FeeAmount, 10),
	})
}

// Refund returns a participant's stake when no bet matched the published
// result.
// POST /api/rooms/{address}/refund
func (h *RoomHandler) Refund(w http.ResponseWriter, r *http.Request) {
	addr := pathParam(r, "address")
	if addr == "" {
		writeError(w, http.StatusBadRequest, "missing room address")
		return
	}

	var req settleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Authorizer == "" || req.Caller == "" {
		writeError(w, http.StatusBadRequest, "authorizer and caller are required")
		return
	}

	amount, err := h.rooms.Refund(r.Context(), settlement.WithdrawParams{
		Room:       domain.Address(addr),
		Authorizer: domain.Address(req.Authorizer),
		Slot:       req.Slot,
		Caller:     req.Caller,
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: refund failed",
			slog.String("room", addr),
			slog.Int("slot", int(req.Slot)),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"room":   addr,
		"slot":   req.Slot,
		"amount": strconv.FormatUint(amount, 10),
	})
}

// callerAccount resolves an explicit account address, falling back to the
// caller's derived token account for the mint.
func callerAccount(explicit, caller, mint string) domain.Address {
	if explicit != "" {
		return domain.Address(explicit)
	}
	return domain.TokenAddress(caller, mint)
}
