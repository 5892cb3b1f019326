package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/restaurant/pkg/db"
	"github.com/Skotchmaster/restaurant/pkg/directory"
	"github.com/Skotchmaster/restaurant/pkg/events"
	"github.com/Skotchmaster/restaurant/pkg/hash"
	"github.com/Skotchmaster/restaurant/pkg/logging"
	authmw "github.com/Skotchmaster/restaurant/pkg/middleware/auth"
	"github.com/Skotchmaster/restaurant/pkg/tokens"
	"github.com/Skotchmaster/restaurant/services/auth/internal/config"
	"github.com/Skotchmaster/restaurant/services/auth/internal/httpserver"
	"github.com/Skotchmaster/restaurant/services/auth/internal/middleware"
	"github.com/Skotchmaster/restaurant/services/auth/internal/repo"
	"github.com/Skotchmaster/restaurant/services/auth/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := openDB(initCtx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	store := repo.New(gdb)
	if err := store.Migrate(context.Background()); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	tok, err := tokens.NewService(cfg.TokenConfig())
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	notifier := service.Notifier{Events: events.Discard{}, Topic: cfg.UserTopic}
	if len(cfg.KafkaBrokers) > 0 {
		prod, err := events.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("kafka producer: %v", err)
		}
		defer func() {
			if err := prod.Close(); err != nil {
				logger.Error("kafka close error", "error", err)
			}
		}()
		notifier.Events = prod
	}
	if cfg.ESURL != "" {
		esCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		es, err := directory.NewClient(esCtx, directory.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
		cancel()
		if err != nil {
			logger.Warn("elasticsearch unavailable, search falls back to the database", "error", err)
		} else {
			notifier.Directory = directory.New(es, cfg.ESUsersIndex)
		}
	}

	hasher := hash.Bcrypt{Cost: cfg.BcryptCost}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.HTTPErrorHandler = httpserver.ErrorHandler
	e.Use(httpserver.Common(logger, cfg.CORSOrigins)...)

	httpserver.Register(e, &httpserver.Deps{
		Prefix: cfg.APIPrefix,
		AuthHandler: &httpserver.AuthHTTP{
			Svc: &service.AuthService{
				Store:                    store,
				Tokens:                   tok,
				Hasher:                   hasher,
				Notifier:                 notifier,
				RestrictPrivilegedSignup: !cfg.SignupAllowPrivileged,
			},
			Cookies: httpserver.CookieConfig{Path: cfg.RefreshCookiePath(), MaxAge: tok.RefreshTTL()},
		},
		UsersHandler: &httpserver.UsersHTTP{
			Svc: &service.UsersService{Store: store, Hasher: hasher, Notifier: notifier},
		},
		AccessGuard:  authmw.NewAccessGuard(tok),
		RefreshGuard: middleware.NewRefreshGuard(tok, store),
		Ready:        func(ctx context.Context) error { return db.Ping(ctx, gdb) },
	})

	go func() {
		logger.Info("listening", "addr", cfg.Addr(), "prefix", cfg.APIPrefix, "db_driver", cfg.DBDriver)
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown", "error", err)
	}
}

func openDB(ctx context.Context, cfg config.ServiceConfig) (*gorm.DB, error) {
	if cfg.DBDriver == config.DriverSQLite {
		return db.OpenSQLite(ctx, cfg.SQLitePath)
	}
	return db.Open(ctx, cfg.DatabaseURL)
}
