package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/time/rate"

	"image-review/backend/internal/api"
	"image-review/backend/internal/auth"
	"image-review/backend/internal/backend"
	"image-review/backend/internal/config"
	"image-review/backend/internal/dropbox"
	"image-review/backend/internal/logging"
	"image-review/backend/internal/mcp"
	"image-review/backend/internal/metrics"
	"image-review/backend/internal/notify"
	"image-review/backend/internal/reservation"
	"image-review/backend/internal/review"
	"image-review/backend/internal/tls"
)

const (
	serviceName = "image-review"
	version     = "1.0.0"
)

func main() {
	ctx := context.Background()

	// Parse command line flags
	configFile := flag.String("config", "", "Path to config.yaml")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Configuration loading failed: %v", err)
	}

	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"backend", cfg.Backend.Driver,
		"pending", cfg.Folders.Pending,
		"issuer", cfg.Auth.Issuer,
		"reservation", cfg.Reservation.Enabled,
		"mail", cfg.Mail.Enabled,
	)
	if cfg.AuthBypassed() {
		logger.Warn("Bearer verification is disabled, every request is accepted as the dev user")
	}

	logger.Info("Starting Image Review Service")

	folders, err := review.NewFolders(cfg.Folders.Pending, cfg.Folders.Approved, cfg.Folders.Deleted, cfg.Folders.Rework)
	if err != nil {
		log.Fatalf("Invalid folder mapping: %v", err)
	}

	// Initialize storage backend
	client, err := newBackend(ctx, cfg, folders)
	if err != nil {
		log.Fatalf("Backend initialization failed: %v", err)
	}
	logger.Info("Backend initialized", "driver", cfg.Backend.Driver)

	var recorder *metrics.Metrics
	if cfg.Metrics.Enabled {
		recorder = metrics.New()
	}

	// Initialize service layer
	selectorOpts, closeClaims, err := newClaims(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Reservation store initialization failed: %v", err)
	}
	defer closeClaims()

	var machineOpts []review.MachineOption
	if cfg.Folders.DisambiguateCollisions {
		machineOpts = append(machineOpts, review.WithCollisionSuffix())
	}

	deps := review.Deps{
		Folders:  folders,
		Selector: review.NewSelector(client, folders, selectorOpts...),
		Resolver: review.NewLinkResolver(client, logger),
		Machine:  review.NewMachine(client, folders, logger, machineOpts...),
		Logger:   logger,
	}
	if recorder != nil {
		deps.Recorder = recorder
	}

	var mailer *notify.Mailer
	if cfg.Mail.Enabled {
		mailer = newMailer(cfg, logger, recorder)
		deps.Notifier = mailer
	}
	reviews := review.NewService(deps)

	logger.Info("Service layer initialized")

	// Initialize authentication
	authz, err := auth.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize auth", "error", err)
		log.Fatalf("auth initialization failed: %v", err)
	}
	protect := echo.WrapMiddleware(authz.RequireAuth)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler(logger)

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(otelecho.Middleware(serviceName))
	e.Use(requestLogger(logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))
	if cfg.Server.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit))))
	}

	// Mount REST API handlers
	api.Register(e, api.NewHandler(reviews, cfg.APITitle, logger), protect)

	logger.Info("REST API handlers mounted")

	// Mount MCP protocol handlers
	mcpServer := mcp.NewServer(reviews, version)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers), protect)

	logger.Info("MCP protocol handlers mounted")

	// expose OpenAPI spec (with runtime substitution) and Swagger UI
	e.GET("/openapi.yaml", echo.WrapHandler(api.SpecHandler(cfg.APITitle)))
	e.GET("/docs", echo.WrapHandler(api.SwaggerHandler(cfg.APITitle)))
	if recorder != nil {
		e.GET("/metrics", echo.WrapHandler(recorder.Handler()))
	}

	if cfg.TLS.Enable && len(cfg.TLS.Hostnames) > 0 {
		created, err := tls.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
		if err != nil {
			log.Fatalf("failed to prepare self-signed cert: %v", err)
		}
		if created {
			logger.Info("Generated self-signed certificate", "cert", cfg.TLS.CertFile, "hosts", cfg.TLS.Hostnames)
		}
	}

	// Create HTTP server. WriteTimeout stays off so MCP SSE streams survive.
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", server.Addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig.String())

		// Create shutdown context with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}
	}

	if mailer != nil {
		mailer.Close()
	}
	logger.Info("Server stopped gracefully")
}

// newBackend returns the Dropbox client, or an in-process store seeded from
// backend.seed. Relative seed paths are placed in the pending folder.
func newBackend(ctx context.Context, cfg *config.Config, folders review.Folders) (backend.Client, error) {
	switch cfg.Backend.Driver {
	case "dropbox":
		conf := dropbox.OAuthConfig(cfg.Dropbox.AppKey, cfg.Dropbox.AppSecret)
		httpClient := dropbox.NewHTTPClient(ctx, conf, cfg.Dropbox.RefreshToken, cfg.Dropbox.Timeout)
		return dropbox.NewClient(httpClient, cfg.Dropbox.APIURL), nil
	case "memory":
		store := backend.NewMemory("")
		for _, s := range review.States {
			store.AddFolder(folders.Dir(s))
		}
		for _, p := range cfg.Backend.Seed {
			if !path.IsAbs(p) {
				p = path.Join(folders.Dir(review.Pending), p)
			}
			store.Put("", p)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown backend driver %q", cfg.Backend.Driver)
	}
}

// newClaims builds the reservation store when reservations are enabled.
func newClaims(ctx context.Context, cfg *config.Config, logger *logging.Logger) ([]review.SelectorOption, func(), error) {
	noop := func() {}
	if !cfg.Reservation.Enabled {
		return nil, noop, nil
	}
	if cfg.Reservation.RedisAddr == "" {
		logger.Info("Reservations held in memory", "ttl", cfg.Reservation.TTL)
		return []review.SelectorOption{review.WithClaims(reservation.NewMemoryStore(cfg.Reservation.TTL))}, noop, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Reservation.RedisAddr})
	store := reservation.NewRedisStore(rdb, reservation.WithTTL(cfg.Reservation.TTL))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = rdb.Close()
		return nil, noop, fmt.Errorf("ping redis %s: %w", cfg.Reservation.RedisAddr, err)
	}
	logger.Info("Reservations held in redis", "addr", cfg.Reservation.RedisAddr, "ttl", cfg.Reservation.TTL)
	return []review.SelectorOption{review.WithClaims(store)}, func() { _ = rdb.Close() }, nil
}

func newMailer(cfg *config.Config, logger *logging.Logger, recorder *metrics.Metrics) *notify.Mailer {
	var opts []notify.Option
	if recorder != nil {
		opts = append(opts, notify.WithRecorder(recorder))
	}
	return notify.NewMailer(notify.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		To:       cfg.Mail.To,
		Subject:  cfg.Mail.Subject,
		Cooldown: cfg.Mail.Cooldown,
		Retries:  cfg.Mail.Retries,
	}, logger.With("component", "notify"), opts...)
}

func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				logger.Warn("request", append(args, "error", v.Error)...)
				return nil
			}
			logger.Info("request", args...)
			return nil
		},
	})
}
