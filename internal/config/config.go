// Package config loads the server configuration from the environment.
package config

import (
	"fmt"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/samber/oops"
)

// MinSecretLength is the shortest signing secret the server accepts.
const MinSecretLength = 32

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	JWTSecret      string        `env:"JWT_SECRET"`
	JWTExpiration  time.Duration `env:"JWT_EXPIRATION"  envDefault:"24h"`
	Port           int           `env:"PORT"            envDefault:"4000"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	CORSOrigins    []string      `env:"CORS_ORIGIN"     envDefault:"*" envSeparator:","`
	LogFormat      string        `env:"LOG_FORMAT"      envDefault:"json"`
	LogLevel       string        `env:"LOG_LEVEL"       envDefault:"info"`
	RedisAddr      string        `env:"REDIS_ADDR"`
	Store          string        `env:"STORE"           envDefault:"postgres"`
	MetricsEnabled bool          `env:"METRICS_ENABLED" envDefault:"true"`
	BcryptCost     int           `env:"BCRYPT_COST"     envDefault:"10"`
}

// Load reads the process environment.
func Load() (Config, error) {
	return LoadFrom(envMap())
}

// LoadFrom reads configuration from vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{
		Environment: vars,
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): func(v string) (any, error) { return ParseDuration(v) },
		},
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return cfg, nil
}

var dayUnits = map[string]time.Duration{
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// ParseDuration reads a Go duration ("90m", "1h30m"), a day or week count
// ("7d", "1.5d", "2w") or a bare number of seconds ("3600").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > math.MaxInt64/int64(time.Second) || n < math.MinInt64/int64(time.Second) {
			return 0, fmt.Errorf("duration %q out of range", s)
		}
		return time.Duration(n) * time.Second, nil
	}
	if len(s) > 1 {
		if unit, ok := dayUnits[s[len(s)-1:]]; ok {
			f, err := strconv.ParseFloat(s[:len(s)-1], 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return 0, fmt.Errorf("invalid duration %q", s)
			}
			d := f * float64(unit)
			if d >= math.MaxInt64 || d <= math.MinInt64 {
				return 0, fmt.Errorf("duration %q out of range", s)
			}
			return time.Duration(d), nil
		}
	}
	return time.ParseDuration(s)
}

func envMap() map[string]string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return vars
}

// Validate fails fast on configuration the server cannot run with.
func (c Config) Validate() error {
	switch {
	case c.JWTSecret == "":
		return oops.Code("CONFIG_INVALID").With("field", "JWT_SECRET").Errorf("JWT_SECRET is required")
	case len(c.JWTSecret) < MinSecretLength:
		return oops.Code("CONFIG_INVALID").With("field", "JWT_SECRET").
			Errorf("JWT_SECRET must be at least %d characters", MinSecretLength)
	case c.JWTExpiration <= 0:
		return oops.Code("CONFIG_INVALID").With("field", "JWT_EXPIRATION").Errorf("JWT_EXPIRATION must be positive")
	case c.Port <= 0 || c.Port > 65535:
		return oops.Code("CONFIG_INVALID").With("field", "PORT").Errorf("PORT %d out of range", c.Port)
	}

	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return oops.Code("CONFIG_INVALID").With("field", "DATABASE_URL").Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreMemory:
	default:
		return oops.Code("CONFIG_INVALID").With("field", "STORE").Errorf("unknown store %q", c.Store)
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").With("field", "LOG_FORMAT").Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}
