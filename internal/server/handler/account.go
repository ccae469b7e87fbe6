package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/parlay-labs/poolroom/internal/domain"
)

// AccountService defines the token account operations the account handler
// requires.
type AccountService interface {
	CreateAccount(ctx context.Context, owner, mint string) (domain.TokenAccount, error)
	Account(ctx context.Context, addr domain.Address) (domain.TokenAccount, error)
	Faucet(ctx context.Context, addr domain.Address, amount uint64) error
}

// AccountHandler serves the token account endpoints. The faucet endpoint is
// only registered when enabled in dev mode.
type AccountHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler with the given service and
// logger.
func NewAccountHandler(accounts AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		logger:   logger,
	}
}

type createAccountRequest struct {
	Owner string `json:"owner"`
	Mint  string `json:"mint"`
}

// CreateAccount allocates a token account for an owner and asset type.
// POST /api/accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Owner == "" || req.Mint == "" {
		writeError(w, http.StatusBadRequest, "owner and mint are required")
		return
	}

	acct, err := h.accounts.CreateAccount(r.Context(), req.Owner, req.Mint)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: create account failed",
			slog.String("owner", req.Owner),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, acct)
}

// GetAccount returns a token account and its balance.
// GET /api/accounts/{address}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	addr := pathParam(r, "address")
	if addr == "" {
		writeError(w, http.StatusBadRequest, "missing account address")
		return
	}

	acct, err := h.accounts.Account(r.Context(), domain.Address(addr))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, acct)
}

type faucetRequest struct {
	Amount uint64 `json:"amount"`
}

// Faucet credits an account with test funds. Dev mode only.
// POST /api/accounts/{address}/faucet
func (h *AccountHandler) Faucet(w http.ResponseWriter, r *http.Request) {
	addr := pathParam(r, "address")
	if addr == "" {
		writeError(w, http.StatusBadRequest, "missing account address")
		return
	}

	var req faucetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.accounts.Faucet(r.Context(), domain.Address(addr), req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}

	acct, err := h.accounts.Account(r.Context(), domain.Address(addr))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, acct)
}
