package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	_ "github.com/franciscosanchezn/gin-forms-api/docs" // Import generated docs
	"github.com/franciscosanchezn/gin-forms-api/internal/auth"
	"github.com/franciscosanchezn/gin-forms-api/internal/config"
	"github.com/franciscosanchezn/gin-forms-api/internal/controllers"
	"github.com/franciscosanchezn/gin-forms-api/internal/database"
	"github.com/franciscosanchezn/gin-forms-api/internal/events"
	"github.com/franciscosanchezn/gin-forms-api/internal/observability"
	"github.com/franciscosanchezn/gin-forms-api/internal/services"
)

const (
	serviceName     = "gin-forms-api"
	serviceVersion  = "1.0.0"
	shutdownTimeout = 15 * time.Second
	tokenPurgeJob   = "@every 1h"
)

// @title Forms API
// @version 1.0
// @description Form builder API: templates, questions, access grants, form submissions and user administration
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// Load environment variables
	loadDotenvFile()

	// Initialize logger
	setUpLogger()

	// Load configuration
	configuration := loadConfig()
	controllers.SetDiagnostics(configuration.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Endpoint:       configuration.OTLPEndpoint,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
	})
	checkPanicErr(err)

	// Initialize database connection
	db := setupDatabase(ctx, configuration)

	// Token revocation lives in Redis when configured
	redisClient := setupRedis(ctx, configuration)
	var revocations auth.RevocationStore = auth.NoopRevocationStore{}
	if redisClient != nil {
		revocations = auth.NewRedisRevocationStore(redisClient)
	}

	bus := events.NewBus()
	audit := events.NewAuditSubscriber(bus, log.StandardLogger())

	metrics := observability.NewMetrics(observability.NewDefaultRegistry())
	issuer := auth.NewTokenIssuer(configuration.JWTSecret, configuration.JWTIssuer, configuration.TokenTTL)
	oauth := auth.NewOAuthService(db, issuer)

	// Initialize services
	limits := services.Limits{
		MaxTemplatesPerUser: configuration.MaxTemplatesPerUser,
		MaxAnswersPerForm:   configuration.MaxAnswersPerForm,
		AmendWindow:         configuration.FormAmendWindow,
	}
	users := services.NewUserService(db)
	checkPanicErr(users.EnsureAdmin(ctx, configuration.BootstrapAdminEmail,
		configuration.BootstrapAdminPassword, configuration.BootstrapAdminName))

	sqlDB, err := db.DB()
	checkPanicErr(err)

	router := controllers.NewRouter(controllers.RouterDeps{
		Issuer:            issuer,
		Revocations:       revocations,
		Users:             users,
		Templates:         services.NewTemplateService(db, limits, bus),
		Access:            services.NewAccessService(db, bus),
		Forms:             services.NewFormService(db, limits, bus),
		Directory:         services.NewDirectoryService(db, bus),
		Clients:           services.NewClientService(db),
		OAuth:             oauth,
		Health:            observability.NewHealthChecker(sqlDB, redisClient, serviceVersion),
		Metrics:           metrics,
		Logger:            log.StandardLogger(),
		CORSAllowedOrigin: configuration.CORSAllowedOrigin,
		EnableSwagger:     !configuration.IsProduction(),
	})

	stats := observability.NewStatsCollector(db, metrics)
	checkPanicErr(stats.AddJob(tokenPurgeJob, "oauth_token_purge", func(ctx context.Context) error {
		purged, err := oauth.Tokens().PurgeExpired(ctx, time.Now())
		if err == nil && purged > 0 {
			log.WithField("purged", purged).Info("Expired OAuth tokens removed")
		}
		return err
	}))
	checkPanicErr(stats.Start(ctx, configuration.StatsSchedule))

	server := &http.Server{
		Addr:              configuration.Address(),
		Handler:           observability.WrapHandler(router, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return audit.Run(groupCtx)
	})
	group.Go(func() error {
		// Start the server
		log.Infof("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.WithError(err).Error("Server stopped with error")
	}

	cleanup(db, redisClient, bus, stats, shutdownTracing)
	log.Info("Server stopped")
}

// checkPanicErr checks if an error occurred and panics if it did
func checkPanicErr(err error) {
	if err != nil {
		panic(err)
	}
}

// loadDotenvFile loads environment variables from a .env file
// If the file is not found, it will log a warning and use system environment variables
func loadDotenvFile() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using system environment variables")
	}
}

// setUpLogger initializes the logger with a JSON formatter and sets the log level based on the environment.
// LOG_LEVEL overrides the environment default.
func setUpLogger() {
	log.SetFormatter(&log.JSONFormatter{})
	environment := config.GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(log.DebugLevel)
	case "production":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
	if raw := config.GetEnvWithDefault("LOG_LEVEL", ""); raw != "" {
		level, err := log.ParseLevel(raw)
		if err != nil {
			log.WithField("log_level", raw).Warn("Ignoring invalid LOG_LEVEL")
			return
		}
		log.SetLevel(level)
	}
}

// loadConfig loads the application configuration from environment variables
// It returns a Config struct or panics if there is an error
func loadConfig() *config.Config {
	log.Info("Loading configuration from environment variables")
	conf, err := config.LoadConfig()
	checkPanicErr(err)
	log.Infof("Configuration loaded: %s", conf)
	return conf
}

// setupDatabase connects with retries and migrates the schema
func setupDatabase(ctx context.Context, conf *config.Config) *gorm.DB {
	db, err := database.InitDatabase(ctx, conf.DatabaseConfig())
	checkPanicErr(err)
	checkPanicErr(database.Migrate(db))
	return db
}

// setupRedis returns nil when REDIS_URL is unset. Logout then only ends
// the session client side.
func setupRedis(ctx context.Context, conf *config.Config) *redis.Client {
	if conf.RedisURL == "" {
		log.Warn("REDIS_URL not set, token revocation is disabled")
		return nil
	}
	client, err := auth.NewRedisClient(ctx, conf.RedisURL)
	checkPanicErr(err)
	return client
}

func cleanup(db *gorm.DB, redisClient *redis.Client, bus *events.Bus, stats *observability.StatsCollector, shutdownTracing observability.ShutdownFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	stats.Stop(ctx)
	if err := bus.Close(); err != nil {
		log.WithError(err).Warn("Failed to close event bus")
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.WithError(err).Warn("Failed to close Redis client")
		}
	}
	if err := database.Close(db); err != nil {
		log.WithError(err).Warn("Failed to close database")
	}
	if err := shutdownTracing(ctx); err != nil {
		log.WithError(err).Warn("Failed to flush traces")
	}
}
