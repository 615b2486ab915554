package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"notedrive.org/internal/access"
	"notedrive.org/internal/audit"
	"notedrive.org/internal/auth"
	"notedrive.org/internal/document"
	"notedrive.org/internal/notification"
	"notedrive.org/internal/obs"
	"notedrive.org/internal/retention"
	"notedrive.org/internal/share"
)

// ReadyProbe reports readiness (DB ping when a pool is attached).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config collects the services the HTTP layer exposes.
type Config struct {
	Ready         ReadyProbe
	Version       string
	Auth          *auth.Service
	Guard         *access.Guard
	Documents     *document.Service
	Notifications *notification.Service
	Shares        *share.Protocol
	Retention     *retention.Lifecycle
}

// API is the HTTP layer.
type API struct {
	mux           *http.ServeMux
	readyProbe    ReadyProbe
	version       string
	auth          *auth.Service
	guard         *access.Guard
	docs          *document.Service
	notifications *notification.Service
	shares        *share.Protocol
	retention     *retention.Lifecycle
	rateBurst     int
	ratePerSec    int
}

func New(cfg Config) *API {
	a := &API{
		rateBurst:     50,
		ratePerSec:    25,
		mux:           http.NewServeMux(),
		readyProbe:    cfg.Ready,
		version:       cfg.Version,
		auth:          cfg.Auth,
		guard:         cfg.Guard,
		docs:          cfg.Documents,
		notifications: cfg.Notifications,
		shares:        cfg.Shares,
		retention:     cfg.Retention,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// sessions
	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)

	// documents and sharing
	a.mux.HandleFunc("/v1/documents", a.handleDocumentsCollection)
	a.mux.HandleFunc("/v1/documents/", a.handleDocumentResource)
	a.mux.HandleFunc("/v1/share/redeem", a.handleShareRedeem)

	// notifications
	a.mux.HandleFunc("/v1/notifications", a.handleNotificationsCollection)
	a.mux.HandleFunc("/v1/notifications/", a.handleNotificationResource)

	// account lifecycle
	a.mux.HandleFunc("/v1/account/close", a.handleAccountClose)
	a.mux.HandleFunc("/v1/account/retention", a.handleRetentionStatus)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- service handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "notedrive-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "notedrive-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) audit(ctx context.Context, event, entity, entityID string, meta map[string]string) {
	fields := map[string]any{
		"entity":    entity,
		"entity_id": entityID,
	}
	for k, v := range meta {
		fields[k] = v
	}
	_ = audit.LogEvent(ctx, event, fields)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// writeDenied maps guard denials onto the wire without widening them.
func writeDenied(w http.ResponseWriter, r *http.Request, err error) {
	var de *access.DeniedError
	if errors.As(err, &de) {
		writeError(w, r, de.Status, de.Error())
		return
	}
	writeError(w, r, http.StatusForbidden, "access denied")
}
