package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/roster-sync/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if fs.FileExists(file) {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

// StoreOptions configure the HTTP client of the canonical remote store.
type StoreOptions struct {
	BaseURL         string        `env:"ROSTER_STORE_URL" envDefault:"http://localhost:8090"`
	Token           string        `env:"ROSTER_STORE_TOKEN"`
	Timeout         time.Duration `env:"ROSTER_STORE_TIMEOUT" envDefault:"15s"`
	PageSize        int           `env:"ROSTER_STORE_PAGE_SIZE" envDefault:"500"`
	RPS             float64       `env:"ROSTER_STORE_RPS" envDefault:"50"`
	Burst           int           `env:"ROSTER_STORE_BURST" envDefault:"10"`
	BreakerFailures uint32        `env:"ROSTER_STORE_BREAKER_FAILURES" envDefault:"5"`
	BreakerCooldown time.Duration `env:"ROSTER_STORE_BREAKER_COOLDOWN" envDefault:"30s"`
}

func (s *StoreOptions) Validate() error {
	if strings.TrimSpace(s.BaseURL) == "" {
		return fmt.Errorf("ROSTER_STORE_URL is required")
	}
	if s.PageSize <= 0 || s.PageSize > 10000 {
		return fmt.Errorf("ROSTER_STORE_PAGE_SIZE must be in [1,10000], got %d", s.PageSize)
	}
	if s.RPS < 0 {
		return fmt.Errorf("ROSTER_STORE_RPS must be non-negative, got %v", s.RPS)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("ROSTER_STORE_TIMEOUT must be positive, got %s", s.Timeout)
	}
	return nil
}

type ImportOptions struct {
	Concurrency   int           `env:"ROSTER_IMPORT_CONCURRENCY" envDefault:"8"`
	CallTimeout   time.Duration `env:"ROSTER_IMPORT_CALL_TIMEOUT" envDefault:"20s"`
	StrictLevels  bool          `env:"ROSTER_IMPORT_STRICT_LEVELS" envDefault:"false"`
	DefaultYear   int           `env:"ROSTER_IMPORT_DEFAULT_YEAR" envDefault:"0"`
	JobTimeout    time.Duration `env:"ROSTER_IMPORT_JOB_TIMEOUT" envDefault:"30m"`
	JobTTL        time.Duration `env:"ROSTER_IMPORT_JOB_TTL" envDefault:"168h"`
	MaxUploadSize int64         `env:"ROSTER_IMPORT_MAX_UPLOAD_SIZE" envDefault:"33554432"`
}

func (i *ImportOptions) Validate() error {
	if i.Concurrency < 1 || i.Concurrency > 64 {
		return fmt.Errorf("ROSTER_IMPORT_CONCURRENCY must be in [1,64], got %d", i.Concurrency)
	}
	if i.CallTimeout <= 0 {
		return fmt.Errorf("ROSTER_IMPORT_CALL_TIMEOUT must be positive, got %s", i.CallTimeout)
	}
	if i.DefaultYear != 0 && (i.DefaultYear < 1900 || i.DefaultYear > 2200) {
		return fmt.Errorf("ROSTER_IMPORT_DEFAULT_YEAR out of range: %d", i.DefaultYear)
	}
	return nil
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"roster-sync"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

// RateLimitOptions throttle import submissions per client.
type RateLimitOptions struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"false"`
	// POSTs allowed per client per minute.
	PerMinute int64 `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	// "memory" or "redis"; redis shares REDIS_URL with the job store.
	Storage string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"`
}

type Configuration struct {
	Store         StoreOptions
	Import        ImportOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	RateLimit     RateLimitOptions
	// Browser origins allowed to call the import API; empty disables CORS.
	CorsOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	RedisURL         string `env:"REDIS_URL" envDefault:"localhost:6379"`
	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	// Empty means console output only.
	LogPath string `env:"LOG_PATH"`
	// Looked up on incoming requests; a random uuidv4 is generated when absent.
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	// Looked up on incoming requests; request.RemoteAddr is used when absent.
	RealIPHeader string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

// Load builds a configuration outside of the process-wide singleton.
func Load(envFiles []string) (*Configuration, error) {
	c := &Configuration{}
	if err := c.load(envFiles); err != nil {
		c.Unload()
		return nil, err
	}
	return c, nil
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store configuration error: %w", err)
	}
	if err := c.Import.Validate(); err != nil {
		return fmt.Errorf("import configuration error: %w", err)
	}
	if c.RateLimit.Enabled && c.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimit.PerMinute)
	}

	if strings.TrimSpace(c.LogPath) == "" {
		c.logger = logging.ConsoleLogger(c.LogrusLogLevel())
	} else {
		f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
		if err != nil {
			return err
		}
		c.logFile = f
		c.logger = logger
	}

	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
