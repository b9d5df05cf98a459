package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"lexora.io/internal/auth"
	"lexora.io/internal/catalog"
	"lexora.io/internal/config"
	"lexora.io/internal/httpapi"
	"lexora.io/internal/mail"
	"lexora.io/internal/oauth"
	"lexora.io/internal/obs"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	store := auth.NewPGStore(db)
	catalogStore := catalog.NewPGStore(db)

	var mailer auth.Mailer
	if cfg.Email.Host != "" {
		mailer, err = mail.NewSMTPMailer(mail.Config{
			From:     cfg.Email.From,
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
		})
		if err != nil {
			log.Fatalf("mailer: %v", err)
		}
	}

	opts := []auth.Option{
		auth.WithBaseURL(cfg.Server.BaseURL),
		auth.WithAccessTTL(cfg.Auth.AccessTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL),
		auth.WithMagicLinkTTL(cfg.Auth.MagicLinkTTL),
		auth.WithSessionTTL(cfg.Session.TTL),
		auth.WithDedupeWindow(cfg.Auth.DedupeWindow),
	}
	if mailer != nil {
		opts = append(opts, auth.WithMailer(mailer))
	}
	svc, err := auth.NewService(store, cfg.Auth.JWTSecret, opts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	ctx := context.Background()
	descriptors := []oauth.Descriptor{
		oauth.GoogleDescriptor(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Server.BaseURL),
	}
	if cfg.Microsoft.ClientID != "" || cfg.Microsoft.ClientSecret != "" || cfg.Microsoft.Tenant != "" {
		descriptors = append(descriptors, oauth.MicrosoftDescriptor(
			cfg.Microsoft.ClientID, cfg.Microsoft.ClientSecret,
			cfg.Microsoft.Tenant, cfg.Server.BaseURL))
	}
	providers, err := oauth.NewRegistry(ctx, descriptors)
	if err != nil {
		log.Fatalf("oauth providers: %v", err)
	}

	api := httpapi.New(svc, providers, store, catalogStore,
		httpapi.ReadyProbe{DB: db}, httpapi.Config{
			Version:         version,
			FrontendURL:     cfg.Server.FrontendURL,
			RedirectPath:    cfg.Auth.RedirectURL,
			CookieName:      cfg.Session.CookieName,
			CookieTTL:       cfg.Session.TTL,
			CookieSecure:    cfg.Session.Secure,
			RateLimitPerSec: cfg.Server.RateLimitPerSec,
			RateLimitBurst:  cfg.Server.RateLimitBurst,
		})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	log.Printf("Starting lexora-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	_ = db.Close()
	log.Println("Stopped")
}
