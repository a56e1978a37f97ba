package handlers

import (
	"net/http"

	"abode/internal/httpkit"
	"abode/internal/pkg/errors"
	"abode/internal/render"
)

// GetCredits returns the caller org's balance and transaction history.
func (h *Handler) GetCredits(w http.ResponseWriter, r *http.Request) {
	caller, ok := render.IdentityFrom(r.Context())
	if !ok {
		httpkit.WriteError(w, errors.Unauthorized("Unauthorized"))
		return
	}

	balance, err := h.ledger.Balance(r.Context(), caller.OrgID)
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}

	txs, err := h.ledger.Transactions(r.Context(), caller.OrgID)
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"credits":      balance,
		"transactions": txs,
	})
}
