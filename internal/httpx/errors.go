package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-supplier-orders/internal/orders"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorKinds = []struct {
	err    error
	status int
	code   string
}{
	{orders.ErrValidation, http.StatusBadRequest, "validation_error"},
	{orders.ErrStock, http.StatusConflict, "stock_error"},
	{orders.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{orders.ErrIllegalTransition, http.StatusConflict, "illegal_transition"},
	{orders.ErrMinimumOrder, http.StatusUnprocessableEntity, "minimum_order"},
	{orders.ErrConflict, http.StatusConflict, "conflict"},
	{orders.ErrMessagingClosed, http.StatusForbidden, "messaging_closed"},
	{orders.ErrDuplicateRating, http.StatusConflict, "duplicate_rating"},
	{orders.ErrNotFound, http.StatusNotFound, "not_found"},
	{orders.ErrForbidden, http.StatusForbidden, "forbidden"},
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors to their status; the message is user-facing.
// Anything unrecognised is a storage/infra failure and is only logged.
func writeError(w http.ResponseWriter, log *slog.Logger, r *http.Request, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			writeJSON(w, k.status, errorBody{Error: err.Error(), Code: k.code})
			return
		}
	}
	log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"})
}
