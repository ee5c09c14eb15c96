package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/equipment-rental/internal/config" // Internal config loader
	"github.com/iliyamo/equipment-rental/internal/database"
	"github.com/iliyamo/equipment-rental/internal/handler"
	"github.com/iliyamo/equipment-rental/internal/lib/sl"
	"github.com/iliyamo/equipment-rental/internal/middleware"
	"github.com/iliyamo/equipment-rental/internal/queue"
	"github.com/iliyamo/equipment-rental/internal/repository"
	"github.com/iliyamo/equipment-rental/internal/repository/memory"
	"github.com/iliyamo/equipment-rental/internal/router" // Internal router setup
	"github.com/iliyamo/equipment-rental/internal/seed"
	"github.com/iliyamo/equipment-rental/internal/service"
)

// stores groups the persistence backends selected by APP_STORE.
type stores struct {
	products service.ProductStore
	rentals  service.RentalStore
	users    handler.UserStore
	tokens   handler.TokenStore
	health   handler.Pinger // nil for the memory store
	close    func()
}

func main() {
	_ = godotenv.Load() // a missing .env is fine; the environment wins
	cfg := config.Load()
	log := newLogger(cfg.LogLevel)
	log.Info("starting equipment rental api", slog.String("env", cfg.Env), slog.String("store", cfg.Store))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open stores", sl.Err(err))
		os.Exit(1)
	}
	defer st.close()

	var publisher service.EventPublisher = service.NopPublisher{}
	if cfg.Queue.Enabled {
		publisher = queue.NewPublisher(cfg.Queue.URL, cfg.Queue.Queue, log)
		if cfg.Queue.ConsumerEnabled {
			consumer := queue.NewConsumer(cfg.Queue.URL, cfg.Queue.Queue, cfg.Queue.LogPath, log)
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("event consumer stopped", sl.Err(err))
				}
			}()
		}
	}

	catalog := service.NewCatalogService(st.products, log)
	rentals := service.NewRentalService(st.rentals, log, service.WithPublisher(publisher))

	if cfg.Store == config.StoreMemory && envTrue("APP_SEED") {
		res, err := seed.Run(ctx, catalog, st.users, seed.Admin{
			Email:      os.Getenv("ADMIN_EMAIL"),
			Password:   os.Getenv("ADMIN_PASSWORD"),
			BcryptCost: cfg.BcryptCost,
		}, log)
		if err != nil {
			log.Error("seeding memory store failed", sl.Err(err))
			os.Exit(1)
		}
		log.Info("memory store seeded", slog.Int("products", res.Created), slog.Bool("admin", res.Admin))
	}

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		log.Warn("redis unavailable: response cache off, rate limits are per process")
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()
	limits := config.LoadRateLimitConfig()

	e := echo.New()
	router.RegisterMiddlewares(e, log)
	router.RegisterRoutes(e, st.health)

	apiLimit := middleware.NewTokenBucket(limits.API, rdb, log)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, st.users, st.tokens, log), cfg.JWTSecret,
		middleware.NewTokenBucket(limits.Auth, rdb, log))
	products := handler.NewProductHandler(catalog, middleware.NewCacheInvalidator(cacheCfg, rdb), log)
	router.RegisterCatalog(e, products, cfg.JWTSecret, apiLimit, middleware.NewRedisCache(cacheCfg, rdb, log))
	router.RegisterAdmin(e, products, cfg.JWTSecret, apiLimit)
	router.RegisterRentals(e, handler.NewRentalHandler(rentals, log), cfg.JWTSecret, apiLimit)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", sl.Err(err))
	}
	log.Info("stopped")
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, error) {
	if cfg.Store == config.StoreMemory {
		db := memory.New()
		return stores{
			products: memory.NewProductRepo(db),
			rentals:  memory.NewRentalRepo(db),
			users:    memory.NewUserRepo(db),
			tokens:   memory.NewTokenRepo(db),
			close:    func() {},
		}, nil
	}

	db, err := database.Open(ctx, database.Params{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		return stores{}, err
	}
	if cfg.MigrateOnStart {
		if err := database.Migrate(db); err != nil {
			_ = db.Close()
			return stores{}, err
		}
		log.Info("migrations applied")
	}
	return stores{
		products: repository.NewProductRepo(db),
		rentals:  repository.NewRentalRepo(db),
		users:    repository.NewUserRepo(db),
		tokens:   repository.NewTokenRepo(db),
		health:   db,
		close:    func() { _ = db.Close() },
	}, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func envTrue(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
