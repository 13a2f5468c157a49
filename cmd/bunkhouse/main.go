package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bunkhouselabs/bunkhouse/internal/config"
	"github.com/bunkhouselabs/bunkhouse/internal/database"
	"github.com/bunkhouselabs/bunkhouse/internal/email"
	"github.com/bunkhouselabs/bunkhouse/internal/logging"
	"github.com/bunkhouselabs/bunkhouse/internal/oauth"
	"github.com/bunkhouselabs/bunkhouse/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	emailClient := email.NewClient(cfg.PostmarkToken, cfg.EmailFrom)
	if !emailClient.Configured() {
		logger.Warn("email delivery not configured, one-time codes will not be sent")
	}

	googleClient := oauth.NewClient(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI)
	if !googleClient.Configured() {
		logger.Info("google sign-in not configured")
	}

	srv := server.New(db, emailClient, googleClient, cfg, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Periodic cleanup of expired sessions, stale one-time codes, and rate
	// limiter entries.
	cleanupDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupDone:
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().SweepExpired(); err != nil {
					logger.Error("sweep sessions", "error", err)
				} else if n > 0 {
					logger.Info("swept expired sessions", "count", n)
				}
				if _, err := srv.MFACodeStore().DeleteExpired(); err != nil {
					logger.Error("sweep mfa codes", "error", err)
				}
				if _, err := srv.ResetCodeStore().DeleteExpired(); err != nil {
					logger.Error("sweep reset codes", "error", err)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	go func() {
		logger.Info("bunkhouse listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	close(cleanupDone)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
