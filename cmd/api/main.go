package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bookstore/internal/config"
	"bookstore/internal/handler"
	"bookstore/internal/infra/cache"
	"bookstore/internal/infra/db"
	"bookstore/internal/infra/messaging"
	infraRepo "bookstore/internal/infra/repository"
	"bookstore/internal/server"
	"bookstore/internal/usecase"
	"bookstore/internal/validator"
	"bookstore/internal/worker"

	"github.com/redis/go-redis/v9"
)

func main() {
	config.LoadDotEnv(".env", "../.env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	//DB接続
	gormDB, err := db.Connect(cfg.DSN(), !cfg.IsProd())
	if err != nil {
		logger.Error("connect db", "err", err)
		os.Exit(1)
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Error("migrate", "err", err)
		os.Exit(1)
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	wishlistRepo := infraRepo.NewWishlistGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//会話履歴はRedis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	sessions := cache.NewChatSessionRedisStore(rdb, cache.ChatSessionConfig{
		TTL:          cfg.ChatSessionTTL,
		HistoryLimit: cfg.ChatHistoryLimit,
		MaxSessions:  cfg.ChatMaxSessions,
	})

	//予約イベント
	publisher := messaging.New(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	defer publisher.Close()

	//Usecase生成
	cartUC := usecase.NewCartUsecase(txm, publisher, logger, usecase.CartConfig{
		DefaultTTL:     cfg.ReservationTTL,
		MaxTTL:         cfg.ReservationMaxTTL,
		PublishTimeout: cfg.EventPublishTimeout,
	})
	productUC := usecase.NewProductUsecase(productRepo, inventoryRepo, txm)
	authUC := usecase.NewAuthUsecase(cfg.JWTSecret, userRepo, validator.NewAuthValidator(userRepo), usecase.WithAccessTTL(cfg.JWTAccessTTL))
	wishlistUC := usecase.NewWishlistUsecase(wishlistRepo, productRepo)
	chatUC := usecase.NewChatUsecase(sessions, usecase.NewCatalogAssistant(productRepo))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	//期限切れの定期掃除（間隔0なら何もしない）
	go worker.NewSweeper(cartUC, cfg.SweepInterval, cfg.SweepBatch, logger).Run(ctx)

	e := server.New(logger)
	server.RegisterRoutes(e, server.Handlers{
		Auth:         handler.NewAuthHandler(authUC),
		Product:      handler.NewProductHandler(productUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		AdminUser:    handler.NewAdminUserHandler(cfg, userRepo, authUC),
		Cart:         handler.NewCartHandler(cartUC),
		Wishlist:     handler.NewWishlistHandler(wishlistUC),
		Chat:         handler.NewChatHandler(chatUC),
	}, cfg, userRepo)

	//Server起動
	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}
	if err := server.Run(ctx, e, addr, cfg.ShutdownTimeout, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

// prodはJSON、それ以外はテキスト
func newLogger(cfg config.Config) *slog.Logger {
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
