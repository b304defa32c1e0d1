package httpapi

import (
	"net/http"
	"strings"
	"time"

	"sufragio.org/internal/audit"
	"sufragio.org/internal/auth"
	"sufragio.org/internal/ledger"
)

type tokenRequest struct {
	Address string `json:"address"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenTTL = 15 * time.Minute

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	raw := strings.TrimSpace(req.Address)
	if raw == "" {
		writeError(w, r, http.StatusBadRequest, "address is required")
		return
	}
	account, err := ledger.ParseAccountID(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "address is not a valid account")
		return
	}

	token, err := auth.GenerateToken(account, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(tokenTTL)
	fields := map[string]any{
		"account":    account.Hex(),
		"expires_at": expiresAt.Format(time.RFC3339),
	}
	_ = audit.LogEvent(r.Context(), "auth.token.issued", fields)

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
