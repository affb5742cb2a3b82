package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/openboard/server/internal/auth"
	"github.com/openboard/server/internal/board"
	"github.com/openboard/server/internal/config"
	"github.com/openboard/server/internal/db"
	httphandler "github.com/openboard/server/internal/http"
	"github.com/openboard/server/internal/http/handlers"
	"github.com/openboard/server/internal/mail"
	"github.com/openboard/server/internal/qq"
	"github.com/openboard/server/internal/repo"
	"github.com/pressly/goose/v3"

	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	log.Printf("DB DSN (masked): %s", db.RedactDSN(cfg.DatabaseURL))
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if err := runMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	userRepo := repo.NewUserRepo(database)
	otpRepo := repo.NewOTPRepo(database)
	messageRepo := repo.NewMessageRepo(database)

	// Services
	hasher := auth.NewHasher()
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL)
	mailer := mail.NewSMTPSender(cfg.SMTPRelays)
	otpService := auth.NewOTPService(otpRepo, hasher, mailer, cfg.OTPExpiry)
	authService := auth.NewAuthService(otpService, tokens, userRepo, hasher)
	boardService := board.NewService(messageRepo, userRepo, cfg.GuestDailyLimit)
	qqClient := qq.NewClient()

	// Handlers
	cookies := handlers.Cookies{Secure: cfg.Production, SessionTTL: cfg.SessionTTL}
	h := httphandler.Handlers{
		Auth:    handlers.NewAuthHandler(authService, otpService, userRepo, cookies),
		Guest:   handlers.NewGuestHandler(messageRepo, cookies),
		Message: handlers.NewMessageHandler(boardService, tokens),
		Admin:   handlers.NewAdminHandler(userRepo),
		QQ:      handlers.NewQQHandler(userRepo, qqClient),
	}

	router := httphandler.NewRouter(h, tokens, userRepo)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from repo root)")
	}

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
