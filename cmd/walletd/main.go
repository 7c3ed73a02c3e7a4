package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fetchai/wallet-browser-extension-sub000/internal/api"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/autolock"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/config"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/keeper"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/keyring"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/logger"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/popup"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/router"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/signer"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/storage"
)

const uiTokenTTL = 12 * time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx := context.Background()

	// Initialize storage
	var kv keyring.KV
	if cfg.PostgresDSN != "" {
		store, err := storage.New(cfg.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer store.Close()

		repo := storage.NewKVRepository(store)
		if err := repo.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure database schema", "error", err)
			os.Exit(1)
		}
		kv = repo

		slog.Info("connected to database")
	} else {
		kv = storage.NewMemoryKV()
		slog.Warn("POSTGRES_DSN not set, using in-memory storage; state will not survive restarts")
	}

	// Initialize remote signer backend (nil when signing is local only)
	remote, err := signer.New(&signer.Config{
		Backend:      cfg.SignerBackend,
		AWSKMSKeyID:  cfg.AWSKMSKeyID,
		AWSKMSRegion: cfg.AWSKMSRegion,
		VaultAddress: cfg.VaultAddress,
		VaultToken:   cfg.VaultToken,
		VaultSignKey: cfg.VaultSignKey,
	})
	if err != nil {
		slog.Error("failed to initialize remote signer", "error", err)
		os.Exit(1)
	}
	if remote != nil {
		slog.Info("initialized remote signer", "backend", remote.Backend())
	}

	// Popup surface
	var opener keeper.PopupOpener = popup.LogOpener{}
	if cfg.PopupWebhookURL != "" {
		opener = popup.NewWebhookOpener(cfg.PopupWebhookURL)
	}

	// Core wiring
	ring := keyring.New(kv)
	kpr := keeper.New(ring, kv, remote, opener, cfg.ApprovalTimeout)

	if err := kpr.Restore(ctx); err != nil {
		slog.Error("failed to restore wallet state", "error", err)
		os.Exit(1)
	}
	slog.Info("wallet state restored", "status", kpr.Status().String())

	// Inactivity auto-lock
	sup := autolock.New(kpr, kv, cfg.LockTimeout, cfg.LockPollInterval)
	if err := sup.Restore(ctx); err != nil {
		slog.Error("failed to restore auto-lock state", "error", err)
		os.Exit(1)
	}
	kpr.AttachSupervisor(sup)
	sup.Start()
	defer sup.Stop()

	// Message routing
	rtr := router.New()
	keeper.RegisterRoutes(rtr, kpr)
	signer.RegisterRoutes(rtr, remote)

	// HTTP surface
	tokens := api.NewTokenManager(cfg.UITokenSecret, uiTokenTTL)
	server := api.NewServer(cfg, rtr, tokens)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("received shutdown signal", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during shutdown", "error", err)
			slog.Warn("forcing shutdown")
		}

		slog.Info("server stopped")
	}
}
