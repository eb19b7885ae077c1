package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
	"github.com/iota-uz/roster-sync/modules/roster/infrastructure/jobstore"
	"github.com/iota-uz/roster-sync/modules/roster/infrastructure/memstore"
	"github.com/iota-uz/roster-sync/modules/roster/infrastructure/remotestore"
	"github.com/iota-uz/roster-sync/modules/roster/presentation/controllers"
	"github.com/iota-uz/roster-sync/modules/roster/services"
	"github.com/iota-uz/roster-sync/pkg/application"
	"github.com/iota-uz/roster-sync/pkg/configuration"
	"github.com/iota-uz/roster-sync/pkg/eventbus"
	"github.com/iota-uz/roster-sync/pkg/httpapi"
	"github.com/iota-uz/roster-sync/pkg/logging"
	"github.com/iota-uz/roster-sync/pkg/metrics"
	"github.com/iota-uz/roster-sync/pkg/middleware"
	"github.com/iota-uz/roster-sync/pkg/server"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	defer conf.Unload()
	logger := conf.Logger()

	if conf.OpenTelemetry.Enabled {
		tracingCleanup := logging.SetupTracing(
			context.Background(),
			conf.OpenTelemetry.ServiceName,
			conf.OpenTelemetry.TempoURL,
		)
		defer tracingCleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to Tempo at " + conf.OpenTelemetry.TempoURL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(redisOptions(conf.RedisURL))
	defer redisClient.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatalf("failed to connect to redis at %s: %v", conf.RedisURL, err)
	}
	cancel()

	store, err := remotestore.New(conf.Store,
		remotestore.WithRequestIDHeader(conf.RequestIDHeader),
		remotestore.WithLogger(logger.WithField("component", "remotestore")),
	)
	if err != nil {
		log.Fatalf("failed to create store client: %v", err)
	}

	jobs := services.NewImportJobService(store, jobstore.NewJobRepository(redisClient, conf.Import.JobTTL), services.ImportJobOptions{
		Import: services.ImportOptions{
			Concurrency:  conf.Import.Concurrency,
			CallTimeout:  conf.Import.CallTimeout,
			StrictLevels: conf.Import.StrictLevels,
			DefaultYear:  conf.Import.DefaultYear,
		},
		JobTimeout: conf.Import.JobTimeout,
		DryRun: func(base roster.Store) roster.Store {
			return memstore.NewDryRun(base)
		},
		Logger: logger,
	})

	app := application.New(&application.ApplicationOptions{
		Logger:   logger,
		EventBus: eventbus.NewEventPublisher(logger),
	})
	loggerOpts := middleware.DefaultLoggerOptions()
	loggerOpts.RequestIDHeader = conf.RequestIDHeader
	loggerOpts.RealIPHeader = conf.RealIPHeader
	app.RegisterMiddleware(
		middleware.WithLogger(logger, loggerOpts),
		middleware.Cors(conf.CorsOrigins...),
	)
	if conf.RateLimit.Enabled {
		app.RegisterMiddleware(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerPeriod: conf.RateLimit.PerMinute,
			Period:            time.Minute,
			Store:             rateLimitStore(conf, redisClient, logger),
			RealIPHeader:      conf.RealIPHeader,
			Methods:           []string{http.MethodPost},
			Logger:            logger,
		}))
	}
	app.RegisterServices(jobs)
	app.RegisterControllers(controllers.NewImportAPIController(jobs, conf.Import.MaxUploadSize))
	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path, prometheus.DefaultGatherer))
	}

	srv := server.NewHTTPServer(app, http.HandlerFunc(notFound), nil)
	log.Printf("Listening on: %s\n", conf.SocketAddress)
	if err := srv.Start(ctx, conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := jobs.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("import jobs did not stop in time")
	}
}

// redisOptions accepts either a redis:// URL or a bare host:port.
func redisOptions(raw string) *redis.Options {
	if strings.Contains(raw, "://") {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		return opts
	}
	return &redis.Options{Addr: raw}
}

func rateLimitStore(conf *configuration.Configuration, client *redis.Client, logger *logrus.Logger) limiter.Store {
	if conf.RateLimit.Storage != "redis" {
		return middleware.NewMemoryStore()
	}
	store, err := middleware.NewRedisStore(client)
	if err != nil {
		logger.WithError(err).Warn("Failed to create Redis store for rate limiting, falling back to memory")
		return middleware.NewMemoryStore()
	}
	return store
}

func notFound(w http.ResponseWriter, r *http.Request) {
	_ = httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "no route for "+r.Method+" "+r.URL.Path, nil)
}
