/**
 * @description
 * This is the main entry point for the rewards-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, the Telegram membership client, the RabbitMQ producer, the
 * repository, the core application service, and the HTTP server. It wires
 * everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Redis client for distributed rate limiting.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/rabbitmq: Producer for notification events.
 * - pkg/telegramclient: Client for Telegram Bot API membership checks.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/taskpoints/rewards-service/internal/api"
	"github.com/taskpoints/rewards-service/internal/app"
	"github.com/taskpoints/rewards-service/internal/config"
	"github.com/taskpoints/rewards-service/internal/store"
	rmrabbit "github.com/taskpoints/rewards-service/pkg/rabbitmq"
	"github.com/taskpoints/rewards-service/pkg/telegramclient"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}
	if strings.TrimSpace(cfg.AdminJWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"admin jwt secret must be configured\" env=ADMIN_JWT_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting rewards-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// Every earn and spend path takes a short row lock, so the pool is sized
	// for many small concurrent transactions.
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts behind pgbouncer.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish notification events.
	// This service only publishes; a broker outage degrades to no-op.
	var producer rmrabbit.Publisher
	rabbitProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rmrabbit.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		producer = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the Telegram Bot API client used to verify channel and group
	// membership before join tasks are credited. Without a bot token the
	// verification step is skipped and join tasks are credited on trust.
	var membershipClient *telegramclient.Client
	if strings.TrimSpace(cfg.TelegramBotToken) == "" {
		log.Println("level=warn component=bootstrap msg=\"telegram bot token missing; membership verification disabled\" env=TELEGRAM_BOT_TOKEN")
	} else {
		membershipClient = telegramclient.NewClient(cfg.TelegramAPIBaseURL, cfg.TelegramBotToken)
	}

	var redisClient *redis.Client
	rateLimitingEnabled := cfg.ClaimRateLimitPerMinute > 0 || cfg.CreditRateLimitPerMinute > 0
	if rateLimitingEnabled {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient = redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
					redisClient = nil
				} else {
					defer redisClient.Close()
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	rewardsService := app.NewService(repository, producer, app.Economics{
		TaskDailyLimit:         cfg.TaskDailyLimit,
		ClaimBaseLimit:         cfg.ClaimBaseLimit,
		ReferralsPerBonusBlock: cfg.ReferralsPerBonusBlock,
		BonusClaimsPerBlock:    cfg.BonusClaimsPerBlock,
		ClaimDelay:             time.Duration(cfg.ClaimDelayMinutes) * time.Minute,
		ClaimMinPoints:         cfg.ClaimMinPoints,
		ClaimMaxPoints:         cfg.ClaimMaxPoints,
		ReferralPoints:         cfg.ReferralPoints,
		WithdrawalMin:          cfg.WithdrawalMinPoints,
		WithdrawalMax:          cfg.WithdrawalMaxPoints,
	})
	rewardsService.ConfigureRateLimits(cfg.ClaimRateLimitPerMinute, cfg.CreditRateLimitPerMinute)
	if redisClient != nil {
		rewardsService.SetRateLimiter(app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix))
	}

	// Initialize the API handlers.
	rewardHandlers := api.NewRewardHandlers(rewardsService, membershipClient)

	// Set up the HTTP router and define the API routes.
	router := chi.NewRouter()
	router.Mount("/rewards", api.RewardRoutes(rewardHandlers, cfg.InternalAPIKey, cfg.AdminJWTSecret))

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
