package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/printpoint/print-shop-backend/internal/address"
	"github.com/printpoint/print-shop-backend/internal/cart"
	"github.com/printpoint/print-shop-backend/internal/catalog"
	"github.com/printpoint/print-shop-backend/internal/checkout"
	"github.com/printpoint/print-shop-backend/internal/config"
	"github.com/printpoint/print-shop-backend/internal/events"
	"github.com/printpoint/print-shop-backend/internal/infrastructure/database/postgres"
	"github.com/printpoint/print-shop-backend/internal/logger"
	"github.com/printpoint/print-shop-backend/internal/order"
	"github.com/printpoint/print-shop-backend/internal/payment"
	"github.com/printpoint/print-shop-backend/internal/user"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type repositories struct {
	users     user.Repository
	addresses address.Repository
	orders    order.Repository
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, closeDB, err := openRepositories(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	storage, closeRedis, err := openCartStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRedis()

	publisher, closeBroker, err := openPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer closeBroker()

	notifier := cart.NewNotifier()
	notifier.Subscribe(func(e cart.Event) {
		log.Debug("cart changed", zap.String("key", e.Key), zap.String("op", string(e.Op)), zap.Int("count", e.Count))
	})

	shop := catalog.Default()
	carts := cart.NewService(storage, notifier, log)
	users := user.NewService(repos.users)
	addresses := address.NewService(repos.addresses)
	orders := order.NewManager(repos.orders, publisher, log, cfg.Payment.Currency)
	gateway := payment.NewRazorpay(payment.Config{
		BaseURL:   cfg.Payment.BaseURL,
		KeyID:     cfg.Payment.KeyID,
		KeySecret: cfg.Payment.KeySecret,
		Timeout:   cfg.Payment.Timeout,
	}, log)
	checkouts := checkout.NewService(checkout.Deps{
		Orders:    orders,
		Addresses: addresses,
		Gateway:   gateway,
		Events:    publisher,
		Log:       log,
		KeyID:     cfg.Payment.KeyID,
	})

	app := fiber.New(fiber.Config{DisableStartupMessage: cfg.Env == "prod"})
	setupCORS(app)
	app.Use(logger.Middleware(log))

	// public routes
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	catalog.NewHandler(shop).RegisterPublicRoutes(app)
	cart.NewHandler(carts, shop).RegisterPublicRoutes(app)
	userHandler := user.NewHandler(users, []byte(cfg.JWTSecret), log)
	userHandler.RegisterPublicRoutes(app)

	app.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(cfg.JWTSecret),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
		},
	}))

	userHandler.RegisterProtectedRoutes(app)
	address.NewHandler(addresses).RegisterProtectedRoutes(app)
	order.NewHandler(orders).RegisterProtectedRoutes(app)
	checkout.NewHandler(checkouts, carts).RegisterProtectedRoutes(app)

	sweeper := order.NewSweeper(orders, cfg.Orders.PendingTTL, cfg.Orders.SweepInterval, log)
	go sweeper.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", cfg.HTTPAddr))
		errCh <- app.Listen(cfg.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}

func setupCORS(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + cart.SessionHeader,
		ExposeHeaders: cart.SessionHeader,
	}))
}

// openRepositories uses Postgres when configured and in-memory storage
// otherwise, which keeps local runs dependency free.
func openRepositories(ctx context.Context, cfg config.Config, log *zap.Logger) (repositories, func(), error) {
	if cfg.PostgresURL == "" {
		log.Warn("postgres.url not set, using in-memory repositories")
		return repositories{
			users:     user.NewInMemoryRepository(nil),
			addresses: address.NewInMemoryRepository(nil),
			orders:    order.NewInMemoryRepository(nil),
		}, func() {}, nil
	}

	client, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		return repositories{}, nil, err
	}
	if err := postgres.Migrate(client.DB(), log); err != nil {
		client.Close()
		return repositories{}, nil, err
	}
	return postgresRepositories(client.DB()), client.Close, nil
}

func postgresRepositories(db *sql.DB) repositories {
	return repositories{
		users:     user.NewPostgresRepository(db),
		addresses: address.NewPostgresRepository(db),
		orders:    order.NewPostgresRepository(db),
	}
}

func openCartStorage(ctx context.Context, cfg config.Config, log *zap.Logger) (cart.Storage, func(), error) {
	if cfg.RedisAddr == "" {
		log.Warn("redis.addr not set, carts are kept in memory")
		return cart.NewMemoryStorage(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return cart.NewRedisStorage(client, cfg.CartTTL), func() { _ = client.Close() }, nil
}

func openPublisher(cfg config.Config, log *zap.Logger) (events.Publisher, func(), error) {
	if cfg.RabbitMQURL == "" {
		log.Warn("rabbitmq.url not set, order events are only logged")
		return events.NewLogPublisher(log), func() {}, nil
	}

	client, err := events.Dial(cfg.RabbitMQURL, log)
	if err != nil {
		return nil, nil, err
	}
	return events.NewAMQPPublisher(client), func() { _ = client.Close() }, nil
}
