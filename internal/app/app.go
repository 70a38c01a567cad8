package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/adapter/auth"
	"github.com/sm8ta/webike_rental_nikita/internal/adapter/events"
	"github.com/sm8ta/webike_rental_nikita/internal/adapter/handler/http"
	"github.com/sm8ta/webike_rental_nikita/internal/adapter/logger"
	"github.com/sm8ta/webike_rental_nikita/internal/adapter/memory"
	"github.com/sm8ta/webike_rental_nikita/internal/adapter/notify"
	"github.com/sm8ta/webike_rental_nikita/internal/adapter/payment"
	"github.com/sm8ta/webike_rental_nikita/internal/adapter/postgres"
	"github.com/sm8ta/webike_rental_nikita/internal/adapter/prometheus"
	"github.com/sm8ta/webike_rental_nikita/internal/adapter/redis"
	"github.com/sm8ta/webike_rental_nikita/internal/config"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"
	"github.com/sm8ta/webike_rental_nikita/internal/core/repository"
	"github.com/sm8ta/webike_rental_nikita/internal/core/services"

	"github.com/go-playground/validator/v10"
	"github.com/pressly/goose"
	redisClient "github.com/redis/go-redis/v9"
)

type App struct {
	Config      *config.Container
	Logger      ports.LoggerPort
	DB          *sql.DB
	RedisClient *redisClient.Client
	Publisher   ports.EventPublisher
	HTTPRouter  *http.Router

	relay      *redis.ChangeRelay
	stopRelay  context.CancelFunc
	httpServer *nethttp.Server
}

func New(ctx context.Context, cfg *config.Container) (*App, error) {
	// Set logger
	loggerAdapter := logger.NewLoggerAdapter(cfg.App.Env)
	loggerAdapter.Info("Starting the application", map[string]interface{}{
		"app":    cfg.App.Name,
		"env":    cfg.App.Env,
		"store":  cfg.Store.Driver,
		"events": cfg.Events.Driver,
	})

	a := &App{Config: cfg, Logger: loggerAdapter}

	// Set redis
	if cfg.UsesRedis() {
		redisConn := redisClient.NewClient(&redisClient.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       0,
		})
		if _, err := redisConn.Ping(ctx).Result(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.RedisClient = redisConn
	}

	// Record store
	var store ports.RecordStore
	switch cfg.Store.Driver {
	case "memory":
		store = memory.NewStore()
	case "redis":
		store = redis.NewStore(a.RedisClient, cfg.Store.Prefix)
	case "postgres":
		db, err := openPostgres(cfg.DB)
		if err != nil {
			a.close()
			return nil, err
		}
		a.DB = db
		store = postgres.NewRecordStore(db)
	default:
		a.close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	// Cache and bike holds
	cache, locker := newCoordination(cfg, a.RedisClient)
	if cfg.Store.Driver == "postgres" && a.RedisClient == nil {
		loggerAdapter.Warn("Postgres store without redis: bike cache disabled, bike holds are per instance", nil)
	}

	// Change notification
	hub := notify.NewHub(loggerAdapter)
	var notifier ports.ChangeNotifier = hub
	if a.RedisClient != nil {
		a.relay = redis.NewChangeRelay(a.RedisClient, hub, loggerAdapter)
		notifier = a.relay
	}

	// Event publisher
	publisher, err := newPublisher(cfg.Events, a.RedisClient)
	if err != nil {
		a.close()
		return nil, err
	}
	a.Publisher = publisher

	// Validate
	validate := validator.New()

	// Observability
	metrics := prometheus.NewPrometheusAdapter()

	// Repositories
	records := repository.New(store, notifier, loggerAdapter)
	ids := services.NewIDAllocator()

	// Services
	tokenService := http.NewJWTTokenService(cfg.Token.Secret, cfg.Token.Duration, loggerAdapter)
	hasher := auth.NewBcryptHasher(cfg.Token.BcryptCost)
	gateway := payment.NewSimulator(records, ids, loggerAdapter, cfg.Payment.Delay)

	bikeService := services.NewBikeService(records, ids, loggerAdapter, validate, cache)
	userService := services.NewUserService(records, ids, hasher, tokenService, loggerAdapter, validate)
	adminService := services.NewAdminService(records, ids, hasher, tokenService, loggerAdapter, validate)
	messageService := services.NewMessageService(records, ids, loggerAdapter, validate)
	rentalService := services.NewRentalService(records, gateway, locker, ids, loggerAdapter, validate, cache, metrics, publisher)

	if err := bikeService.Seed(ctx); err != nil {
		a.close()
		return nil, err
	}

	// HTTP Handlers
	bikeHandler := http.NewBikeHandler(bikeService, loggerAdapter, metrics)
	rentalHandler := http.NewRentalHandler(rentalService, userService, loggerAdapter, metrics, cfg.Rental.Timeout)
	authHandler := http.NewAuthHandler(userService, loggerAdapter, metrics)
	adminHandler := http.NewAdminHandler(adminService, loggerAdapter, metrics)
	messageHandler := http.NewMessageHandler(messageService, loggerAdapter, metrics)
	changesHandler := http.NewChangesHandler(records, hub.HandleWS, metrics)

	// Init HTTP router
	router, err := http.NewRouter(
		cfg.HTTP,
		tokenService,
		adminService,
		bikeHandler,
		rentalHandler,
		authHandler,
		adminHandler,
		messageHandler,
		changesHandler,
	)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize router: %w", err)
	}
	a.HTTPRouter = router

	return a, nil
}

func openPostgres(cfg *config.DB) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Migrate DB
	if err := goose.Up(db, "./internal/adapter/postgres/migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// newCoordination picks the bike cache and the hold locker. Both must be
// shared whenever the store is, or one instance serves bikes another has
// already rented.
func newCoordination(cfg *config.Container, client *redisClient.Client) (ports.CachePort, ports.BikeLocker) {
	switch {
	case client != nil:
		return redis.NewRedisAdapter(client), redis.NewLocker(client, cfg.Rental.HoldTTL)
	case cfg.Store.Driver == "memory":
		return memory.NewCache(), memory.NewLocker()
	default:
		return memory.NoCache{}, memory.NewLocker()
	}
}

func newPublisher(cfg *config.Events, client *redisClient.Client) (ports.EventPublisher, error) {
	switch cfg.Driver {
	case "", "none":
		return events.Nop{}, nil
	case "redis":
		return redis.NewStreamPublisher(client, redis.RentalsStream), nil
	case "rabbitmq":
		return events.NewRabbitPublisher(cfg.RabbitURL)
	case "kafka":
		return events.NewKafkaPublisher(cfg.KafkaBrokers), nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

// Runs all services
func (a *App) Run() error {
	if a.relay != nil {
		ctx, cancel := context.WithCancel(context.Background())
		a.stopRelay = cancel
		go func() {
			if err := a.relay.Run(ctx); err != nil {
				a.Logger.Error("Change relay stopped", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}()
	}

	listenAddr := fmt.Sprintf("%s:%s", a.Config.HTTP.URL, a.Config.HTTP.Port)
	a.Logger.Info("Starting HTTP server", map[string]interface{}{
		"addr": listenAddr,
	})

	a.httpServer = &nethttp.Server{
		Addr:              listenAddr,
		Handler:           a.HTTPRouter.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		a.Logger.Error("HTTP server error", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	return nil
}

// Stops all services
func (a *App) Stop(ctx context.Context) error {
	a.Logger.Info("Shutting down gracefully...", nil)

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTP server shutdown error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	if a.stopRelay != nil {
		a.stopRelay()
	}

	a.close()
	a.Logger.Info("Application stopped successfully", nil)
	return nil
}

func (a *App) close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Error("Event publisher close error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	// Close database
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("Database close error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	// Close Redis
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Redis close error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}
