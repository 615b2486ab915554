package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"notedrive.org/internal/notification"
)

type listNotificationsResponse struct {
	Items []notification.Notification `json:"items"`
	AsOf  time.Time                   `json:"as_of"`
}

func (a *API) handleNotificationsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity := a.identity(r)
	authz, err := a.guard.RequireAuth(identity)
	if err != nil {
		writeDenied(w, r, err)
		return
	}

	// An explicit user_id addresses another inbox; only that user or an
	// administrator may read it.
	receiverID := authz.UserID
	if target := strings.TrimSpace(r.URL.Query().Get("user_id")); target != "" {
		if _, err := a.guard.RequireUserMatch(identity, target); err != nil {
			if _, adminErr := a.guard.RequireAdmin(identity); adminErr != nil {
				writeDenied(w, r, err)
				return
			}
		}
		receiverID = target
	}

	items, err := a.notifications.List(r.Context(), receiverID)
	if err != nil {
		handleNotificationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listNotificationsResponse{Items: items, AsOf: time.Now().UTC()})
}

func (a *API) handleNotificationResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/notifications/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		a.deleteNotification(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "read":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.markNotificationRead(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) markNotificationRead(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := a.guard.RequireNotificationOwnership(r.Context(), a.identity(r), id); err != nil {
		writeDenied(w, r, err)
		return
	}
	if err := a.notifications.MarkRead(r.Context(), id); err != nil {
		handleNotificationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteNotification(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := a.guard.RequireNotificationOwnership(r.Context(), a.identity(r), id); err != nil {
		writeDenied(w, r, err)
		return
	}
	if err := a.notifications.Delete(r.Context(), id); err != nil {
		handleNotificationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleNotificationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, notification.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, notification.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
