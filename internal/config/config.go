package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config содержит конфигурацию приложения.
type Config struct {
	RunAddress      string
	DatabaseURI     string
	BotToken        string
	TelegramBaseURL string
	WebhookSecret   string
	AdminChatID     int64
	GeocoderBaseURL string
	GeocodeTimeout  time.Duration
	SessionMaxIdle  time.Duration
	SweepInterval   time.Duration
	JWTSecret       string
	TokenExpiration time.Duration
	AdminLogin      string
	AdminPassword   string
	ShopOpen        bool
}

// Load загружает конфигурацию из флагов командной строки и переменных окружения.
// Приоритет: переменные окружения > флаги > значения по умолчанию.
func Load() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "адрес и порт запуска сервиса")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "строка подключения к PostgreSQL (пусто - хранение в памяти)")
	flag.StringVar(&cfg.BotToken, "t", "", "токен чат-бота")
	flag.Int64Var(&cfg.AdminChatID, "c", 0, "идентификатор админского чата")
	flag.StringVar(&cfg.GeocoderBaseURL, "g", "https://nominatim.openstreetmap.org", "адрес сервиса обратного геокодирования")
	flag.Parse()

	if envRunAddr := os.Getenv("RUN_ADDRESS"); envRunAddr != "" {
		cfg.RunAddress = envRunAddr
	}
	if envDBURI := os.Getenv("DATABASE_URI"); envDBURI != "" {
		cfg.DatabaseURI = envDBURI
	}
	if envToken := os.Getenv("BOT_TOKEN"); envToken != "" {
		cfg.BotToken = envToken
	}
	if envAdmin := os.Getenv("ADMIN_CHAT_ID"); envAdmin != "" {
		if id, err := strconv.ParseInt(envAdmin, 10, 64); err == nil {
			cfg.AdminChatID = id
		}
	}
	if envGeo := os.Getenv("GEOCODER_ADDRESS"); envGeo != "" {
		cfg.GeocoderBaseURL = envGeo
	}

	cfg.TelegramBaseURL = os.Getenv("TELEGRAM_API_ADDRESS")
	if cfg.TelegramBaseURL == "" {
		cfg.TelegramBaseURL = "https://api.telegram.org"
	}

	cfg.WebhookSecret = os.Getenv("WEBHOOK_SECRET")

	// JWT секрет для админского API
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "default-secret-change-in-production"
	}
	cfg.TokenExpiration = 24 * time.Hour

	cfg.AdminLogin = os.Getenv("ADMIN_LOGIN")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")

	cfg.GeocodeTimeout = durationEnv("GEOCODE_TIMEOUT", 4*time.Second)
	cfg.SessionMaxIdle = durationEnv("SESSION_MAX_IDLE", 2*time.Hour)
	cfg.SweepInterval = durationEnv("SWEEP_INTERVAL", 10*time.Minute)

	// Магазин открыт по умолчанию; SHOP_OPEN=false закрывает приём заказов на старте.
	cfg.ShopOpen = true
	if envOpen := os.Getenv("SHOP_OPEN"); envOpen != "" {
		if open, err := strconv.ParseBool(envOpen); err == nil {
			cfg.ShopOpen = open
		}
	}

	return cfg
}

// durationEnv читает длительность из переменной окружения с запасным значением.
func durationEnv(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
