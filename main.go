package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Anomaliszt/HiddenDeal/internal/config"
	"github.com/Anomaliszt/HiddenDeal/internal/database/db_client"
	"github.com/Anomaliszt/HiddenDeal/internal/http/http_server"
	"github.com/Anomaliszt/HiddenDeal/internal/ledger"
	"github.com/Anomaliszt/HiddenDeal/internal/redis/redis_client"
	"github.com/Anomaliszt/HiddenDeal/internal/redis/watcher/expirywatcher"
	"github.com/Anomaliszt/HiddenDeal/internal/services/auction"
	"github.com/Anomaliszt/HiddenDeal/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client
	var auctionService auction.IAuctionService

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis (expiry timers + event fanout)
	redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	// 4. Postgres db client, authoritative store
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	if err := db_client.EnsureSchema(ctx, pgDb); err != nil {
		Log.Fatal("pg-schema", zap.Error(err))
	}

	// 5. Wallet ledger + auction settlement engine
	ldg := ledger.New(pgDb, decimal.NewFromFloat(cfg.WalletStartingBalance))
	auctionService = auction.NewAuctionService(pgDb, redisClient, ldg)

	// 6. Background: expiry-timer watcher -> settle in DB
	go expirywatcher.Run(ctx, redisClient, auctionService)

	// 7. WebSockets hub + Redis fan-out
	hub := ws.NewHub()
	go ws.SubscribeAuctionEvents(ctx, redisClient, hub)
	wsSrv := ws.NewWsServer(hub, auctionService)

	// 8. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, auctionService, ldg)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
