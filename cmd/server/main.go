package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // Loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/skillwise/auth/internal/config"
	"github.com/skillwise/auth/internal/database"
	"github.com/skillwise/auth/internal/handler"
	"github.com/skillwise/auth/internal/queue"
	"github.com/skillwise/auth/internal/repository"
	"github.com/skillwise/auth/internal/router"
	"github.com/skillwise/auth/internal/service"
	"github.com/skillwise/auth/internal/utils"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() {
		// Best-effort close on shutdown; a failure here is logged, not fatal.
		if err := db.Close(); err != nil {
			log.Printf("database: close failed: %v", err)
		}
	}()

	// Redis is optional: a nil client disables rate limiting and caching.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis: unavailable, rate limiting and caching disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	stats := repository.NewStatsRepo(db)

	issuer := utils.NewIssuer(
		cfg.AccessSecret, cfg.RefreshSecret, cfg.ResetSecret,
		cfg.AccessTTLMin, cfg.RefreshTTLDays, cfg.ResetTTLMin,
	)
	events := queue.NewPublisherFromEnv()
	auth := service.NewAuth(issuer, users, tokens, stats, events, cfg.BcryptCost)

	// The refresh cookie only goes Secure outside of dev so local HTTP
	// testing keeps working.
	h := handler.NewAuthHandler(auth, cfg.Env != "dev")

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, h, issuer, users, rdb)

	// Audit/mailer worker: consumes auth.events and appends logs/auth.log.
	go func() {
		if err := queue.StartAuthEventsConsumer(); err != nil {
			log.Printf("auth-consumer: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
