package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"notedrive.org/internal/access"
	"notedrive.org/internal/document"
	"notedrive.org/internal/share"
)

type createDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type updateDocumentRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type shareDocumentRequest struct {
	Email      string `json:"email"`
	Permission string `json:"permission"`
}

type redeemRequest struct {
	Token string `json:"token"`
}

type listDocumentsResponse struct {
	Items []document.Document `json:"items"`
	AsOf  time.Time           `json:"as_of"`
}

func (a *API) handleDocumentsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createDocument(w, r)
	case http.MethodGet:
		a.listOwnedDocuments(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleDocumentResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if path == "shared" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listSharedDocuments(w, r)
		return
	}

	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		a.documentByID(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "share":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.shareDocument(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createDocument(w http.ResponseWriter, r *http.Request) {
	authz, err := a.guard.RequireAuth(a.identity(r))
	if err != nil {
		writeDenied(w, r, err)
		return
	}

	var req createDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := a.docs.Create(r.Context(), authz.UserID, req.Title, req.Content)
	if err != nil {
		handleDocumentError(w, r, err)
		return
	}

	a.audit(r.Context(), "document.create", "document", doc.ID, nil)
	w.Header().Set("Location", "/v1/documents/"+doc.ID)
	writeJSON(w, http.StatusCreated, doc)
}

func (a *API) listOwnedDocuments(w http.ResponseWriter, r *http.Request) {
	authz, err := a.guard.RequireAuth(a.identity(r))
	if err != nil {
		writeDenied(w, r, err)
		return
	}
	docs, err := a.docs.ListOwned(r.Context(), authz.UserID)
	if err != nil {
		handleDocumentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listDocumentsResponse{Items: docs, AsOf: time.Now().UTC()})
}

// listSharedDocuments returns documents shared with the caller. The
// optional email parameter addresses the listing by address; the guard
// only lets callers name their own.
func (a *API) listSharedDocuments(w http.ResponseWriter, r *http.Request) {
	identity := a.identity(r)
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email != "" {
		authz, err := a.guard.RequireEmailMatch(identity, email)
		if err != nil {
			writeDenied(w, r, err)
			return
		}
		docs, err := a.docs.ListSharedWithEmail(r.Context(), authz.Email)
		if err != nil {
			handleDocumentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listDocumentsResponse{Items: docs, AsOf: time.Now().UTC()})
		return
	}

	authz, err := a.guard.RequireAuth(identity)
	if err != nil {
		writeDenied(w, r, err)
		return
	}
	docs, err := a.docs.ListSharedWith(r.Context(), authz.UserID)
	if err != nil {
		handleDocumentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listDocumentsResponse{Items: docs, AsOf: time.Now().UTC()})
}

func (a *API) documentByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		a.getDocument(w, r, id)
	case http.MethodPatch:
		a.updateDocument(w, r, id)
	case http.MethodDelete:
		a.deleteDocument(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) getDocument(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := a.guard.RequireDocumentAccess(r.Context(), a.identity(r), id); err != nil {
		writeDenied(w, r, err)
		return
	}
	doc, err := a.docs.Get(r.Context(), id)
	if err != nil {
		handleDocumentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) updateDocument(w http.ResponseWriter, r *http.Request, id string) {
	authz, err := a.guard.RequireDocumentAccess(r.Context(), a.identity(r), id)
	if err != nil {
		writeDenied(w, r, err)
		return
	}
	if !authz.Level.AtLeast(access.LevelEdit) {
		writeDenied(w, r, errors.New("access denied"))
		return
	}

	var req updateDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := a.docs.Update(r.Context(), id, document.Update{Title: req.Title, Content: req.Content})
	if err != nil {
		handleDocumentError(w, r, err)
		return
	}
	a.audit(r.Context(), "document.update", "document", doc.ID, nil)
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) deleteDocument(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := a.guard.RequireDocumentOwnership(r.Context(), a.identity(r), id); err != nil {
		writeDenied(w, r, err)
		return
	}
	if err := a.docs.Delete(r.Context(), id); err != nil {
		handleDocumentError(w, r, err)
		return
	}
	a.audit(r.Context(), "document.delete", "document", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) shareDocument(w http.ResponseWriter, r *http.Request, id string) {
	authz, err := a.guard.RequireDocumentOwnership(r.Context(), a.identity(r), id)
	if err != nil {
		writeDenied(w, r, err)
		return
	}

	var req shareDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	level, err := access.ParseLevel(req.Permission)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	inv, err := a.shares.Issue(r.Context(), authz, id, req.Email, level)
	if err != nil {
		handleShareError(w, r, err)
		return
	}

	a.audit(r.Context(), "share.invitation.issue", "document", id, map[string]string{
		"permission": string(level),
	})
	writeJSON(w, http.StatusCreated, inv)
}

func (a *API) handleShareRedeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	// Token-bearing public endpoint: the signed token itself is the
	// capability, and the grantee comes from the token, not the caller.
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		var req redeemRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		token = strings.TrimSpace(req.Token)
	}
	if token == "" {
		writeError(w, r, http.StatusBadRequest, "token is required")
		return
	}

	grant, err := a.shares.Redeem(r.Context(), token)
	if err != nil {
		handleShareError(w, r, err)
		return
	}

	a.audit(r.Context(), "share.invitation.redeem", "document", grant.DocumentID, map[string]string{
		"permission": string(grant.Level),
	})
	writeJSON(w, http.StatusOK, grant)
}

func handleDocumentError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, document.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, document.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, document.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func handleShareError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, share.ErrInvitationInvalid):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, share.ErrSelfInvite):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, share.ErrInviteeNotFound), errors.Is(err, share.ErrUnavailable):
		// Both collapse into the generic denial: a share link must not
		// confirm which accounts or documents exist.
		writeError(w, r, http.StatusForbidden, "access denied")
	case errors.Is(err, document.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, document.ErrNotFound):
		writeError(w, r, http.StatusForbidden, "access denied")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
