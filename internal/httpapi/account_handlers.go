package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"notedrive.org/internal/retention"
)

type closeAccountResponse struct {
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

type retentionStatusResponse struct {
	State     retention.State `json:"state"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// handleAccountClose soft-deletes the caller's own account. The data
// stays recoverable until the retention window runs out.
func (a *API) handleAccountClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	authz, err := a.guard.RequireAuth(a.identity(r))
	if err != nil {
		writeDenied(w, r, err)
		return
	}

	rec, err := a.retention.CloseAccount(r.Context(), authz.UserID, authz.Email)
	if err != nil {
		handleRetentionError(w, r, err)
		return
	}

	a.audit(r.Context(), "account.close", "user", authz.UserID, map[string]string{
		"expires_at": rec.ExpiresAt.UTC().Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, closeAccountResponse{
		Status:    "closed",
		ExpiresAt: rec.ExpiresAt,
	})
}

// handleRetentionStatus reports whether an address sits in the retention
// window. Callers may only ask about their own address; administrators
// may ask about any.
func (a *API) handleRetentionStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}

	identity := a.identity(r)
	if _, err := a.guard.RequireEmailMatch(identity, email); err != nil {
		if _, adminErr := a.guard.RequireAdmin(identity); adminErr != nil {
			writeDenied(w, r, err)
			return
		}
	}

	status, err := a.retention.Check(r.Context(), email)
	if err != nil {
		handleRetentionError(w, r, err)
		return
	}

	resp := retentionStatusResponse{State: status.State}
	if status.State == retention.StatePending {
		expires := status.ExpiresAt
		resp.ExpiresAt = &expires
	}
	writeJSON(w, http.StatusOK, resp)
}

func handleRetentionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, retention.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, retention.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
