package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

const (
	DefaultPort            = 3000
	DefaultAppName         = "Nodejs Application"
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds the process settings resolved from the environment.
type Config struct {
	Host            string
	Port            int
	AppName         string
	LogLevel        zapcore.Level
	ShutdownTimeout time.Duration
	ProjectID       string
}

// FieldError reports an environment variable holding an unusable value.
type FieldError struct {
	Key   string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: invalid %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

var errPortRange = errors.New("port must be between 0 and 65535")

// Load seeds the environment from the given dotenv files and resolves Config.
// Missing files are ignored and variables already present in the process
// environment take precedence over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup resolves Config using lookup for every variable.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Config{
		Port:            DefaultPort,
		AppName:         DefaultAppName,
		LogLevel:        zapcore.InfoLevel,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("HOST"); ok {
		cfg.Host = v
	}
	if v, ok := get("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, &FieldError{Key: "PORT", Value: v, Err: err}
		}
		if port < 0 || port > 65535 {
			return Config{}, &FieldError{Key: "PORT", Value: v, Err: errPortRange}
		}
		cfg.Port = port
	}
	if v, ok := get("APP_NAME"); ok {
		cfg.AppName = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		level, err := zapcore.ParseLevel(v)
		if err != nil {
			return Config{}, &FieldError{Key: "LOG_LEVEL", Value: v, Err: err}
		}
		cfg.LogLevel = level
	}
	if v, ok := get("SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, &FieldError{Key: "SHUTDOWN_TIMEOUT", Value: v, Err: err}
		}
		cfg.ShutdownTimeout = d
	}
	cfg.ProjectID = firstSet(get, "GOOGLE_CLOUD_PROJECT", "GCP_PROJECT", "GCLOUD_PROJECT", "PROJECT_ID")
	return cfg, nil
}

// Addr returns the host:port listen address.
func (c Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

func firstSet(get func(string) (string, bool), keys ...string) string {
	for _, k := range keys {
		if v, ok := get(k); ok {
			return v
		}
	}
	return ""
}
