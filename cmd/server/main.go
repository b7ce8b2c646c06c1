package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eggbot/internal/catalog"
	"eggbot/internal/config"
	"eggbot/internal/draw"
	"eggbot/internal/handler"
	"eggbot/internal/infrastructure/cache"
	"eggbot/internal/infrastructure/database"
	"eggbot/internal/infrastructure/lock"
	"eggbot/internal/infrastructure/logger"
	"eggbot/internal/infrastructure/mq"
	"eggbot/internal/job"
	"eggbot/internal/service"
	"eggbot/pkg/idgen"

	"go.uber.org/zap"
)

func main() {
	configPath := os.Getenv("EGGBOT_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	// 加载配置
	cfg := config.MustLoad(configPath)

	// 初始化日志
	if _, err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// 初始化 ID 生成器
	if err := idgen.Init(1); err != nil {
		logger.L().Fatal("初始化ID生成器失败", zap.Error(err))
	}

	// 初始化数据库
	db, err := database.Open(&cfg.Database, cfg.Log.Development)
	if err != nil {
		logger.L().Fatal("初始化数据库失败", zap.Error(err))
	}

	// 分布式锁：Redis 不可用时退化为进程内锁
	var locks lock.Provider = lock.NewLocalProvider()
	if cfg.Redis.Enabled {
		redisClient, err := cache.InitRedis(&cfg.Redis)
		if err != nil {
			logger.L().Fatal("初始化 Redis 失败", zap.Error(err))
		}
		defer redisClient.Close()
		locks = lock.NewRedisProvider(redisClient)
	}

	// 事件投递：未启用 Kafka 时只打日志
	var publisher mq.Publisher = mq.LogPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(&cfg.Kafka)
		if err != nil {
			logger.L().Fatal("初始化 Kafka 失败", zap.Error(err))
		}
		publisher = mq.NewKafkaPublisher(producer)
	}
	defer publisher.Close()

	// 目录与抽取
	cat, err := catalog.Default(cfg.Catalog.Rare, cfg.Catalog.MediaBaseURL)
	if err != nil {
		logger.L().Fatal("加载手办目录失败", zap.Error(err))
	}
	engine := draw.New(cat)

	// 服务
	ledger := service.NewLedgerService(db, cfg)
	collection := service.NewCollectionService(db, cfg, cat)
	invoices := service.NewInvoiceService(db, cfg, locks)
	settlement := service.NewSettlementService(db, cfg, ledger)
	game := service.NewGameService(db, cfg, engine, ledger, collection, invoices)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	go job.NewOutboxSender(db, publisher, cfg).Start(ctx)
	go job.NewInvoiceTimeoutJob(invoices).Start(ctx)
	go job.NewPaymentReconcileJob(settlement, cfg).Start(ctx)

	router := handler.SetupRouter(handler.NewHandler(cfg, game, ledger, settlement, invoices))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("服务启动",
			zap.Int("port", cfg.Server.Port),
			zap.String("db", cfg.Database.Driver),
			zap.Int("catalog_items", cat.Len()),
			zap.Bool("redis", cfg.Redis.Enabled),
			zap.Bool("kafka", cfg.Kafka.Enabled))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("服务启动失败", zap.Error(err))
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务关闭异常", zap.Error(err))
	}

	logger.Info("服务已关闭")
}
