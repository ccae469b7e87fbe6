package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/parlay-labs/poolroom/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a domain error to its HTTP status and writes the
// JSON error body. Unknown errors become a generic 500 so internal detail
// never leaks to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "caller does not own this record")
	case errors.Is(err, domain.ErrNotWinner):
		writeError(w, http.StatusForbidden, "slot did not win")
	case errors.Is(err, domain.ErrAssetMismatch):
		writeError(w, http.StatusBadRequest, "asset type does not match the authorizer")
	case errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "amount must be positive")
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, "insufficient funds")
	case errors.Is(err, domain.ErrDuplicateRoom):
		writeError(w, http.StatusConflict, "room already exists")
	case errors.Is(err, domain.ErrBetDuplicated):
		writeError(w, http.StatusConflict, "predicted pair already taken")
	case errors.Is(err, domain.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot already claimed, re-read the room and retry")
	case errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, "room busy, retry")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "record already exists")
	case errors.Is(err, domain.ErrAlreadyWithdrawn):
		writeError(w, http.StatusConflict, "already withdrawn")
	case errors.Is(err, domain.ErrRoomFinished):
		writeError(w, http.StatusConflict, "room is finished")
	case errors.Is(err, domain.ErrRoomNotSettled):
		writeError(w, http.StatusConflict, "oracle result not published yet")
	case errors.Is(err, domain.ErrWinnerExists):
		writeError(w, http.StatusConflict, "room has a winner, refund unavailable")
	case errors.Is(err, domain.ErrResultPublished):
		writeError(w, http.StatusConflict, "result already published")
	case errors.Is(err, domain.ErrNoWinner):
		writeError(w, http.StatusNotFound, "no bet matches the published result")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeBody decodes a JSON request body into dst, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// parseListOpts extracts standard pagination parameters from the query
// string. Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:    limit,
		Offset:   offset,
		OpenOnly: q.Get("open") == "true",
	}
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}
