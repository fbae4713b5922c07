package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"booking-server/internal/clients"
	"booking-server/internal/config"
	"booking-server/internal/engine"
	"booking-server/internal/handler"
	"booking-server/internal/messaging"
	"booking-server/internal/offline"
	"booking-server/internal/repository"
	"booking-server/internal/service"
	sharedLogger "booking-server/shared/logger"
	sharedMiddleware "booking-server/shared/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	log.Println("Запуск Booking Server...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// --- Инициализация логгера ---
	logger, err := sharedLogger.New(sharedLogger.Config{
		Level: cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	logger.Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	// Подключение к Redis (черновики + кэш котировок)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			cancel()
			logger.Fatal("Не удалось подключиться к Redis", zap.Error(err))
		}
		cancel()
	}
	logger.Info("Успешное подключение к Redis")

	// Подключение к RabbitMQ
	rabbitConn, err := connectRabbitMQ(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Fatal("Не удалось подключиться к RabbitMQ", zap.Error(err))
	}
	defer rabbitConn.Close()
	logger.Info("Успешное подключение к RabbitMQ")

	replayPublisher, err := messaging.NewRabbitMQReplayPublisher(rabbitConn, cfg.OfflineReplayQueue)
	if err != nil {
		logger.Fatal("Не удалось создать ReplayPublisher", zap.Error(err))
	}
	defer replayPublisher.Close()

	// Диспетчер отложенных отправок
	dispatcher := offline.NewDispatcher(replayPublisher, cfg.ReplayTimeout, logger)

	// Межсервисные клиенты
	deps := engine.Collaborators{
		Availability: clients.NewHTTPAvailabilityClient(cfg.CalendarServiceURL, cfg.InterServiceToken, cfg.HTTPClientTimeout, logger),
		Catalog:      clients.NewHTTPCatalogClient(cfg.CatalogServiceURL, cfg.InterServiceToken, cfg.HTTPClientTimeout, logger),
		Travel:       clients.NewHTTPTravelClient(cfg.GeoServiceURL, cfg.InterServiceToken, cfg.HTTPClientTimeout, logger),
		Sound:        clients.NewHTTPSoundPricingClient(cfg.SoundServiceURL, cfg.InterServiceToken, cfg.HTTPClientTimeout, logger),
		QuoteAPI:     clients.NewHTTPQuoteAPIClient(cfg.PricingServiceURL, cfg.InterServiceToken, cfg.HTTPClientTimeout, logger),
		BookingAPI:   clients.NewHTTPBookingAPIClient(cfg.BookingAPIURL, cfg.InterServiceToken, cfg.HTTPClientTimeout, logger),
		Drafts:       repository.NewRedisDraftStore(redisClient, cfg.DraftTTL, logger),
		QuoteCache:   repository.NewRedisQuoteCache(redisClient, cfg.QuoteCacheTTL, logger),
		Offline:      dispatcher,
	}

	sessionService := service.NewSessionService(deps, logger)

	// Консьюмер durable-очереди реплеев: после рестарта процесса заявки,
	// отложенные в офлайне, доотправляются по живым сессиям.
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()
	replayConsumer, err := messaging.NewRabbitMQReplayConsumer(rabbitConn, cfg.OfflineReplayQueue, sessionService.ResolveReplay, dispatcher.IsOffline)
	if err != nil {
		logger.Fatal("Не удалось создать ReplayConsumer", zap.Error(err))
	}
	defer replayConsumer.Close()
	go func() {
		logger.Info("Запуск горутины консьюмера реплеев...")
		if err := replayConsumer.StartConsuming(consumerCtx); err != nil && consumerCtx.Err() == nil {
			logger.Error("Консьюмер реплеев завершился с ошибкой", zap.Error(err))
		}
	}()

	bookingHandler := handler.NewBookingHandler(sessionService, dispatcher, cfg.JWTSecret, logger)

	// Настройка Gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(sharedMiddleware.ZapLoggingMiddlewareForGin(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Prometheus метрики на /metrics
	prom := ginprometheus.NewPrometheus("booking_server")
	prom.Use(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	bookingHandler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Booking сервер слушает", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Ошибка запуска HTTP сервера", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Получен сигнал завершения, начинаем graceful shutdown...")

	consumerCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Ошибка при graceful shutdown HTTP сервера", zap.Error(err))
	}

	log.Println("Booking Server успешно остановлен")
}

// connectRabbitMQ пытается подключиться к RabbitMQ с несколькими попытками
func connectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 5
	retryDelay := 5 * time.Second
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("Не удалось подключиться к RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, err
}
