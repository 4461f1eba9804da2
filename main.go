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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vemana-jayanti/registration-portal/pkg/api"
	"github.com/vemana-jayanti/registration-portal/pkg/clients/backend"
	"github.com/vemana-jayanti/registration-portal/pkg/clients/nominatim"
	"github.com/vemana-jayanti/registration-portal/pkg/config"
	"github.com/vemana-jayanti/registration-portal/pkg/logger"
	"github.com/vemana-jayanti/registration-portal/pkg/metrics"
	"github.com/vemana-jayanti/registration-portal/pkg/middleware"
	"github.com/vemana-jayanti/registration-portal/pkg/services"
	"github.com/vemana-jayanti/registration-portal/pkg/session"
)

const sessionCapacity = 10000

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded")
	}

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	zlog, err := logger.New(logger.Config{
		Environment: cfg.Environment,
		LogLevel:    cfg.LogLevel,
		ServiceName: "registration-portal",
	})
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, zlog *zap.Logger) error {
	store, err := newSessionStore(ctx, cfg, zlog)
	if err != nil {
		return err
	}

	// Initialize API clients
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	backendClient := backend.NewClient(cfg.BackendURL, httpClient, zlog)
	geocoder := nominatim.NewClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, httpClient, zlog)

	// Initialize services
	provider := services.NewLocationProvider(store, geocoder, cfg.LocationTimeout, cfg.SessionTTL, zlog)
	defer func() {
		if err := provider.Close(); err != nil {
			zlog.Warn("error closing location provider", zap.Error(err))
		}
	}()

	roster := services.NewRoster(backendClient, services.RosterConfig{
		EventSlug:       cfg.EventSlug,
		EventFilePrefix: cfg.EventFilePrefix,
	}, zlog)
	defer roster.Close()

	handlers := api.NewHandlers(api.Deps{
		EventName:    cfg.EventName,
		Location:     provider,
		Submissions:  services.NewSubmissionService(services.NewValidator(), backendClient, zlog),
		Roster:       roster,
		Verification: services.NewVerificationService(backendClient, services.VerificationConfig{
			Prefix: cfg.CertificatePrefix,
			Year:   cfg.EventYear,
		}, zlog),
		Renderer: services.NewCertificateRenderer(services.CertificateConfig{
			EventName: cfg.EventName,
			Prefix:    cfg.CertificatePrefix,
			Year:      cfg.EventYear,
		}, zlog),
		Log: zlog,
	})

	tmpl, err := api.LoadTemplates(time.Local)
	if err != nil {
		return err
	}

	// Set Gin to release mode in production
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.SetHTMLTemplate(tmpl)
	router.Use(
		middleware.Recovery(zlog),
		middleware.RequestID(),
		middleware.Logger(zlog),
		middleware.Metrics(),
		middleware.CORS(),
		middleware.Session(cfg.SessionTTL, cfg.IsProduction()),
	)

	handlers.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server starting", zap.String("port", cfg.Port), zap.String("backend", cfg.BackendURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newSessionStore uses Redis when REDIS_ADDR is set and memory otherwise.
func newSessionStore(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (session.Store, error) {
	if cfg.RedisAddr == "" {
		zlog.Info("using in-memory session store")
		return session.NewMemoryStore(sessionCapacity, cfg.SessionTTL), nil
	}
	return session.NewRedisStore(ctx, session.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, cfg.SessionTTL, zlog)
}
