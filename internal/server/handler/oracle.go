package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/parlay-labs/poolroom/internal/domain"
	"github.com/parlay-labs/poolroom/internal/settlement"
)

// OracleService defines the admin operations the oracle handler requires.
type OracleService interface {
	CreateAuthorizer(ctx context.Context, p settlement.CreateAuthorizerParams) (domain.Authorizer, error)
	Authorizer(ctx context.Context, addr domain.Address) (domain.Authorizer, error)
	CreateOracle(ctx context.Context, p settlement.CreateOracleParams) (domain.Oracle, error)
	Oracle(ctx context.Context, addr domain.Address) (domain.Oracle, error)
	PublishResult(ctx context.Context, addr domain.Address, result domain.BetPair) error
}

// OracleHandler serves the authorizer and oracle admin endpoints.
type OracleHandler struct {
	oracles OracleService
	logger  *slog.Logger
}

// NewOracleHandler creates an OracleHandler with the given service and logger.
func NewOracleHandler(oracles OracleService, logger *slog.Logger) *OracleHandler {
	return &OracleHandler{
		oracles: oracles,
		logger:  logger,
	}
}

type createAuthorizerRequest struct {
	ID          string `json:"id"`
	Mint        string `json:"mint"`
	FeeBps      uint32 `json:"fee_bps"`
	RentPerByte uint64 `json:"rent_per_byte"`
}

// CreateAuthorizer registers an authorizer and its fee vault.
// POST /api/authorizers
func (h *OracleHandler) CreateAuthorizer(w http.ResponseWriter, r *http.Request) {
	var req createAuthorizerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" || req.Mint == "" {
		writeError(w, http.StatusBadRequest, "id and mint are required")
		return
	}

	auth, err := h.oracles.CreateAuthorizer(r.Context(), settlement.CreateAuthorizerParams{
		ID:          req.ID,
		Mint:        req.Mint,
		FeeBps:      req.FeeBps,
		RentPerByte: req.RentPerByte,
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: create authorizer failed",
			slog.String("id", req.ID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, auth)
}

// GetAuthorizer returns an authorizer record.
// GET /api/authorizers/{address}
func (h *OracleHandler) GetAuthorizer(w http.ResponseWriter, r *http.Request) {
	addr := pathParam(r, "address")
	if addr == "" {
		writeError(w, http.StatusBadRequest, "missing authorizer address")
		return
	}

	auth, err := h.oracles.Authorizer(r.Context(), domain.Address(addr))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, auth)
}

type createOracleRequest struct {
	Authorizer string `json:"authorizer"`
	ID         string `json:"id"`
}

// CreateOracle registers an oracle under an authorizer.
// POST /api/oracles
func (h *OracleHandler) CreateOracle(w http.ResponseWriter, r *http.Request) {
	var req createOracleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Authorizer == "" || req.ID == "" {
		writeError(w, http.StatusBadRequest, "authorizer and id are required")
		return
	}

	oracle, err := h.oracles.CreateOracle(r.Context(), settlement.CreateOracleParams{
		Authorizer: domain.Address(req.Authorizer),
		ID:         req.ID,
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: create oracle failed",
			slog.String("id", req.ID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, oracle)
}

// GetOracle returns an oracle record, including its published result.
// GET /api/oracles/{address}
func (h *OracleHandler) GetOracle(w http.ResponseWriter, r *http.Request) {
	addr := pathParam(r, "address")
	if addr == "" {
		writeError(w, http.StatusBadRequest, "missing oracle address")
		return
	}

	oracle, err := h.oracles.Oracle(r.Context(), domain.Address(addr))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, oracle)
}

type publishResultRequest struct {
	Result domain.BetPair `json:"result"`
}

// PublishResult finalizes an oracle with the outcome pair. One shot: a
// second publication fails with 409.
// POST /api/oracles/{address}/result
func (h *OracleHandler) PublishResult(w http.ResponseWriter, r *http.Request) {
	addr := pathParam(r, "address")
	if addr == "" {
		writeError(w, http.StatusBadRequest, "missing oracle address")
		return
	}

	var req publishResultRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.oracles.PublishResult(r.Context(), domain.Address(addr), req.Result); err != nil {
		h.logger.WarnContext(r.Context(), "handler: publish result failed",
			slog.String("oracle", addr),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"oracle": addr,
		"result": req.Result,
	})
}
