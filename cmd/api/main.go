package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notedrive.org/internal/access"
	"notedrive.org/internal/auth"
	"notedrive.org/internal/document"
	"notedrive.org/internal/httpapi"
	"notedrive.org/internal/mail"
	"notedrive.org/internal/notification"
	"notedrive.org/internal/obs"
	"notedrive.org/internal/retention"
	"notedrive.org/internal/share"
	"notedrive.org/internal/store/memory"
	"notedrive.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

// stores is the storage surface main needs to wire the services. Both
// the Postgres store and the in-memory store satisfy it.
type stores interface {
	auth.UserStore
	document.Store
	notification.Store
	retention.Store
	access.Query
}

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	secret := os.Getenv("NOTEDRIVE_AUTH_SECRET")
	if secret == "" {
		log.Fatal("NOTEDRIVE_AUTH_SECRET is required")
	}
	addr := os.Getenv("NOTEDRIVE_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	baseURL := os.Getenv("NOTEDRIVE_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	var (
		st    stores
		probe httpapi.ReadyProbe
	)
	if dsn := os.Getenv("NOTEDRIVE_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pgStore.Close()
		st = pgStore
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		// No DSN: volatile in-memory store, dev only.
		log.Println("NOTEDRIVE_PG_DSN not set, using in-memory store")
		st = memory.NewStore()
	}

	var mailer mail.Mailer = mail.LogMailer{}
	if smtpAddr := os.Getenv("NOTEDRIVE_SMTP_ADDR"); smtpAddr != "" {
		mailer = &mail.SMTPMailer{
			Addr: smtpAddr,
			From: os.Getenv("NOTEDRIVE_SMTP_FROM"),
		}
	}

	tokens, err := auth.NewTokens(secret, "notedrive")
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	lifecycle, err := retention.NewLifecycle(st)
	if err != nil {
		log.Fatalf("retention: %v", err)
	}
	authSvc, err := auth.NewService(st, tokens, lifecycle)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}
	docSvc, err := document.NewService(st)
	if err != nil {
		log.Fatalf("documents: %v", err)
	}
	noteSvc, err := notification.NewService(st)
	if err != nil {
		log.Fatalf("notifications: %v", err)
	}
	protocol, err := share.NewProtocol(secret, "notedrive", baseURL, docSvc, st, mailer, noteSvc)
	if err != nil {
		log.Fatalf("share: %v", err)
	}

	api := httpapi.New(httpapi.Config{
		Ready:         probe,
		Version:       version,
		Auth:          authSvc,
		Guard:         access.NewGuard(st),
		Documents:     docSvc,
		Notifications: noteSvc,
		Shares:        protocol,
		Retention:     lifecycle,
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting notedrive-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
