package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"dayplanner/internal/core"
	"dayplanner/internal/engine"
)

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Addr      string
	AuthToken string
	// Mode selects which surfaces the daemon serves: http, mcp or both.
	Mode string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// ScheduleConfig holds the engine and planner settings.
type ScheduleConfig struct {
	DefaultSleep        core.SleepWindow
	BufferMinutes       int
	SlotStepMinutes     int
	MissingDependencies engine.MissingDependencyPolicy
	// RefreshCron is the 5-field expression of the daily precompute job.
	// Empty disables the job.
	RefreshCron string
	CacheSize   int
}

// BarkConfig holds Bark notification settings.
type BarkConfig struct {
	URL     string
	Enabled bool
}

// NotificationConfig holds all notification settings.
type NotificationConfig struct {
	Bark BarkConfig
}

// Config holds all runtime configuration options for the daemon.
type Config struct {
	Server       ServerConfig
	Log          LogConfig
	Schedule     ScheduleConfig
	Notification NotificationConfig

	StateDir      string
	UseUTC        bool
	ShutdownGrace time.Duration
}

const (
	envPrefix = "DAYPLAN_"

	defaultAddr          = "127.0.0.1:7171"
	defaultMode          = "http"
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
	defaultWake          = "06:00"
	defaultSleep         = "23:00"
	defaultRefreshCron   = "5 0 * * *"
	defaultCacheSize     = 256
	defaultShutdownGrace = 5 * time.Second
)

func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(envPrefix + key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(envPrefix + key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(envPrefix + key); ok {
		lower := strings.ToLower(val)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(envPrefix + key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// Parse reads the process arguments and environment into Config.
func Parse() (*Config, error) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs builds a Config from args and the environment.
// Priority: CLI flags > environment variables > .env file > defaults.
func ParseArgs(args []string) (*Config, error) {
	envFiles := []string{".env"}
	if configDir, err := os.UserConfigDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(configDir, "dayplanner", ".env"))
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f) // optional
	}

	wake := getEnvString("WAKE_TIME", defaultWake)
	sleep := getEnvString("SLEEP_TIME", defaultSleep)
	policy := getEnvString("MISSING_DEPS", string(engine.MissingDependencySatisfied))

	cfg := &Config{
		Server: ServerConfig{
			Addr:      getEnvString("ADDR", defaultAddr),
			AuthToken: getEnvString("AUTH_TOKEN", ""),
			Mode:      getEnvString("MODE", defaultMode),
		},
		Log: LogConfig{
			Level:  getEnvString("LOG_LEVEL", defaultLogLevel),
			Format: getEnvString("LOG_FORMAT", defaultLogFormat),
		},
		Schedule: ScheduleConfig{
			BufferMinutes:   getEnvInt("BUFFER_MINUTES", engine.DefaultBufferMinutes),
			SlotStepMinutes: getEnvInt("SLOT_STEP_MINUTES", engine.DefaultSlotStepMinutes),
			RefreshCron:     getEnvString("REFRESH_CRON", defaultRefreshCron),
			CacheSize:       getEnvInt("CACHE_SIZE", defaultCacheSize),
		},
		Notification: NotificationConfig{
			Bark: BarkConfig{
				URL:     getEnvString("BARK_URL", ""),
				Enabled: getEnvBool("BARK_ENABLED", false),
			},
		},
		StateDir:      getEnvString("STATE_DIR", ""),
		UseUTC:        getEnvBool("USE_UTC", false),
		ShutdownGrace: getEnvDuration("SHUTDOWN_GRACE", defaultShutdownGrace),
	}

	fs := flag.NewFlagSet("dayplannerd", flag.ContinueOnError)
	fs.StringVar(&cfg.Server.Addr, "addr", cfg.Server.Addr, "HTTP listen address")
	fs.StringVar(&cfg.Server.Mode, "mode", cfg.Server.Mode, "Serve mode: http, mcp or both")
	fs.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "Directory holding the database")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "Log format (text, json)")
	fs.BoolVar(&cfg.UseUTC, "use-utc", cfg.UseUTC, "Use UTC for today and the refresh job instead of local time")
	fs.DurationVar(&cfg.ShutdownGrace, "shutdown-grace", cfg.ShutdownGrace, "Grace period when shutting down")
	fs.StringVar(&wake, "wake", wake, "Default wake time (HH:MM)")
	fs.StringVar(&sleep, "sleep", sleep, "Default sleep time (HH:MM)")
	fs.IntVar(&cfg.Schedule.BufferMinutes, "buffer", cfg.Schedule.BufferMinutes, "Minutes between a prerequisite and its dependent")
	fs.IntVar(&cfg.Schedule.SlotStepMinutes, "slot-step", cfg.Schedule.SlotStepMinutes, "Slot grid step in minutes")
	fs.StringVar(&policy, "missing-deps", policy, "Missing dependency policy (satisfied, blocking)")
	fs.StringVar(&cfg.Schedule.RefreshCron, "refresh-cron", cfg.Schedule.RefreshCron, "Cron expression of the daily refresh job, empty to disable")
	fs.IntVar(&cfg.Schedule.CacheSize, "cache-size", cfg.Schedule.CacheSize, "Number of computed days kept in memory")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch cfg.Server.Mode {
	case "http", "mcp", "both":
	default:
		return nil, fmt.Errorf("invalid mode %q: want http, mcp or both", cfg.Server.Mode)
	}

	wakeAt, err := core.ParseTimeOfDay(wake)
	if err != nil {
		return nil, fmt.Errorf("wake time: %w", err)
	}
	sleepAt, err := core.ParseTimeOfDay(sleep)
	if err != nil {
		return nil, fmt.Errorf("sleep time: %w", err)
	}
	if wakeAt >= core.MinutesPerDay {
		return nil, fmt.Errorf("wake time %s must be before 24:00", wakeAt)
	}
	cfg.Schedule.DefaultSleep = core.SleepWindow{WakeTime: wakeAt, SleepTime: sleepAt}

	if cfg.Schedule.MissingDependencies, err = engine.ParseMissingDependencyPolicy(policy); err != nil {
		return nil, err
	}
	if cfg.Schedule.BufferMinutes < 0 {
		return nil, fmt.Errorf("buffer must not be negative, got %d", cfg.Schedule.BufferMinutes)
	}
	if cfg.Schedule.SlotStepMinutes <= 0 {
		cfg.Schedule.SlotStepMinutes = engine.DefaultSlotStepMinutes
	}
	if cfg.Schedule.CacheSize < 1 {
		cfg.Schedule.CacheSize = defaultCacheSize
	}

	if cfg.StateDir == "" {
		dir, err := defaultStateDir()
		if err != nil {
			return nil, fmt.Errorf("resolve default state dir: %w", err)
		}
		cfg.StateDir = dir
	}

	return cfg, nil
}

// EngineOptions returns the engine configuration described by cfg.
func (c *Config) EngineOptions() engine.Options {
	opts := engine.DefaultOptions()
	opts.BufferMinutes = c.Schedule.BufferMinutes
	opts.SlotStepMinutes = c.Schedule.SlotStepMinutes
	opts.MissingDependencies = c.Schedule.MissingDependencies
	return opts
}

// Location returns the time zone used to decide what "today" is.
func (c *Config) Location() *time.Location {
	if c.UseUTC {
		return time.UTC
	}
	return time.Local
}

func defaultStateDir() (string, error) {
	baseDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(baseDir, "dayplanner")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}
