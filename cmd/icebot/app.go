package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mrseyes/icebot/internal/auth"
	"github.com/mrseyes/icebot/internal/bridge"
	"github.com/mrseyes/icebot/internal/config"
	"github.com/mrseyes/icebot/internal/geocode"
	"github.com/mrseyes/icebot/internal/handlers"
	"github.com/mrseyes/icebot/internal/migrations"
	"github.com/mrseyes/icebot/internal/services"
	"github.com/mrseyes/icebot/internal/session"
	"github.com/mrseyes/icebot/internal/storage"
	"github.com/mrseyes/icebot/internal/telegram"
)

// App структура для управления приложением и его зависимостями.
type App struct {
	cfg     *config.Config
	dbPool  *pgxpool.Pool
	echo    *echo.Echo
	sweeper *services.SessionSweeper

	// Storage
	orderStorage    storage.OrderStorage
	customerStorage storage.CustomerStorage
	messageStorage  storage.MessageStorage
	adminStorage    storage.AdminStorage

	// Handlers
	webhookHandler *handlers.WebhookHandler
	adminHandler   *handlers.AdminHandler

	accountService *services.AccountService
}

// NewApp создаёт и инициализирует новое приложение.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		cfg: cfg,
	}

	if err := app.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initDependencies(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	app.initServer()

	return app, nil
}

// initStorage подключает PostgreSQL и применяет миграции либо
// откатывается к хранению в памяти, если база не настроена.
func (app *App) initStorage(ctx context.Context) error {
	if app.cfg.DatabaseURI == "" {
		log.Println("WARNING: DATABASE_URI is not set, using in-memory storage. Orders will be lost on restart!")
		app.orderStorage = storage.NewMemoryOrderStorage()
		app.customerStorage = storage.NewMemoryCustomerStorage()
		app.messageStorage = storage.NewMemoryMessageStorage()
		app.adminStorage = storage.NewMemoryAdminStorage()
		return nil
	}

	// Применение миграций
	log.Println("Running database migrations...")
	sqlDB, err := sql.Open("pgx", app.cfg.DatabaseURI)
	if err != nil {
		return fmt.Errorf("unable to open database connection: %w", err)
	}
	defer sqlDB.Close()

	if err := migrations.Run(sqlDB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Println("Migrations completed successfully")

	// Подключение к базе данных через pgxpool
	dbPool, err := pgxpool.New(ctx, app.cfg.DatabaseURI)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		return fmt.Errorf("unable to ping database: %w", err)
	}

	app.dbPool = dbPool
	log.Println("Successfully connected to database")

	app.orderStorage = storage.NewPostgresOrderStorage(dbPool)
	app.customerStorage = storage.NewPostgresCustomerStorage(dbPool)
	app.messageStorage = storage.NewPostgresMessageStorage(dbPool)
	app.adminStorage = storage.NewPostgresAdminStorage(dbPool)

	return nil
}

// initDependencies инициализирует все зависимости приложения (services, handlers).
func (app *App) initDependencies(ctx context.Context) error {
	cfg := app.cfg

	sessions := session.NewStore()
	gate := services.NewShopGate(cfg.ShopOpen)
	replyBridge := bridge.New(10000)

	tgClient := telegram.NewBotClient(cfg.TelegramBaseURL, cfg.BotToken, 10*time.Second)
	geocoder := geocode.NewNominatimClient(cfg.GeocoderBaseURL, cfg.GeocodeTimeout)

	orderService := services.NewOrderService(app.orderStorage)

	flowService := services.NewFlowService(
		sessions, gate, orderService,
		app.customerStorage, app.messageStorage, replyBridge,
		tgClient, geocoder,
		cfg.AdminChatID, cfg.GeocodeTimeout, log.Default(),
	)
	adminService := services.NewAdminService(
		gate, orderService,
		app.customerStorage, app.messageStorage, replyBridge,
		tgClient, cfg.AdminChatID, log.Default(),
	)

	app.accountService = services.NewAccountService(app.adminStorage, cfg.JWTSecret, cfg.TokenExpiration)
	if err := app.accountService.Bootstrap(ctx, cfg.AdminLogin, cfg.AdminPassword); err != nil {
		return fmt.Errorf("failed to bootstrap admin account: %w", err)
	}

	app.webhookHandler = handlers.NewWebhookHandler(flowService, adminService, cfg.AdminChatID, cfg.WebhookSecret)
	app.adminHandler = handlers.NewAdminHandler(app.accountService, orderService, app.messageStorage)

	// Чистильщик простаивающих сессий
	app.sweeper = services.NewSessionSweeper(sessions, cfg.SessionMaxIdle, cfg.SweepInterval, log.Default())

	if cfg.AdminChatID == 0 {
		log.Println("WARNING: ADMIN_CHAT_ID is not configured. New orders will not be announced!")
	}

	return nil
}

// initServer инициализирует HTTP-сервер и настраивает маршруты.
func (app *App) initServer() {
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Gzip())

	// Вебхук чат-транспорта
	e.POST("/webhook", app.webhookHandler.Handle)

	// Админское мини-приложение
	e.POST("/api/admin/login", app.adminHandler.Login)

	protected := e.Group("/api/admin")
	protected.Use(auth.JWTMiddleware(app.cfg.JWTSecret))
	protected.GET("/orders", app.adminHandler.ListOrders)
	protected.GET("/orders/:id/messages", app.adminHandler.ListMessages)
	protected.POST("/orders/:id/stage", app.adminHandler.UpdateStage)
	protected.POST("/orders/:id/link", app.adminHandler.SetDeliveryLink)

	app.echo = e
}

// Start запускает приложение.
func (app *App) Start(ctx context.Context) error {
	// Запуск чистильщика сессий
	app.sweeper.Start(ctx)

	// Запуск сервера
	log.Printf("Starting server on %s", app.cfg.RunAddress)
	if err := app.echo.Start(app.cfg.RunAddress); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}

	return nil
}

// Shutdown корректно завершает работу приложения.
func (app *App) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	if err := app.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	if app.dbPool != nil {
		app.dbPool.Close()
	}

	log.Println("Server gracefully stopped")
	return nil
}
