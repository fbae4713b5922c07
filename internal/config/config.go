package config

import (
	"fmt"
	"log"
	"time"

	"booking-server/shared/utils"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию Booking Server
type Config struct {
	// Настройки сервера
	Port     string `envconfig:"BOOKING_SERVER_PORT" default:"8085"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Настройки Redis (черновики и кэш котировок)
	RedisAddr     string        `envconfig:"REDIS_ADDR" required:"true"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	DraftTTL      time.Duration `envconfig:"DRAFT_TTL" default:"168h"`
	QuoteCacheTTL time.Duration `envconfig:"QUOTE_CACHE_TTL" default:"10m"`
	// Секретное поле БЕЗ envconfig тега
	RedisPassword string

	// Настройки RabbitMQ (durable-очередь отложенных отправок)
	RabbitMQURL        string        `envconfig:"RABBITMQ_URL" required:"true"`
	OfflineReplayQueue string        `envconfig:"OFFLINE_REPLAY_QUEUE" default:"booking_offline_replays"`
	ReplayTimeout      time.Duration `envconfig:"REPLAY_TIMEOUT" default:"30s"`

	// Базовые URL внешних сервисов
	CalendarServiceURL string `envconfig:"CALENDAR_SERVICE_URL" required:"true"`
	CatalogServiceURL  string `envconfig:"CATALOG_SERVICE_URL" required:"true"`
	GeoServiceURL      string `envconfig:"GEO_SERVICE_URL" required:"true"`
	SoundServiceURL    string `envconfig:"SOUND_SERVICE_URL" required:"true"`
	PricingServiceURL  string `envconfig:"PRICING_SERVICE_URL" required:"true"`
	BookingAPIURL      string `envconfig:"BOOKING_API_URL" required:"true"`

	HTTPClientTimeout time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" default:"5s"`

	// CORS
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Секретные поля БЕЗ envconfig тегов
	JWTSecret         string
	InterServiceToken string
}

// LoadConfig загружает конфигурацию из переменных окружения и секретов
func LoadConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации booking-server: %w", err)
	}

	// Загружаем ОБЯЗАТЕЛЬНЫЕ секреты
	var loadErr error
	cfg.JWTSecret, loadErr = utils.ReadSecret("jwt_secret")
	if loadErr != nil {
		return nil, loadErr
	}

	cfg.InterServiceToken, loadErr = utils.ReadSecret("inter_service_secret")
	if loadErr != nil {
		return nil, loadErr
	}

	// Redis без пароля - штатная локальная конфигурация.
	cfg.RedisPassword, loadErr = utils.ReadSecret("redis_password")
	if loadErr != nil {
		log.Printf("Секрет redis_password не найден, подключаемся без пароля")
		cfg.RedisPassword = ""
	}

	log.Printf("Конфигурация Booking Server загружена (секреты из файлов):")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  Redis Addr: %s (db %d)", cfg.RedisAddr, cfg.RedisDB)
	log.Printf("  Draft TTL: %v, Quote Cache TTL: %v", cfg.DraftTTL, cfg.QuoteCacheTTL)
	log.Printf("  RabbitMQ URL: %s", cfg.RabbitMQURL)
	log.Printf("  Offline Replay Queue: %s", cfg.OfflineReplayQueue)
	log.Printf("  Calendar Service URL: %s", cfg.CalendarServiceURL)
	log.Printf("  Catalog Service URL: %s", cfg.CatalogServiceURL)
	log.Printf("  Geo Service URL: %s", cfg.GeoServiceURL)
	log.Printf("  Sound Service URL: %s", cfg.SoundServiceURL)
	log.Printf("  Pricing Service URL: %s", cfg.PricingServiceURL)
	log.Printf("  Booking API URL: %s", cfg.BookingAPIURL)
	log.Println("  JWT Secret: [ЗАГРУЖЕН]")
	log.Println("  Inter-Service Token: [ЗАГРУЖЕН]")

	return &cfg, nil
}
