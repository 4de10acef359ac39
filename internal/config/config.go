// Package config loads CLI and server settings from a YAML file and
// BLUEPRINT_* environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/blueprint"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. It may be absent.
const DefaultPath = ".blueprint/config.yaml"

// Config is the root configuration document.
type Config struct {
	LogLevel   string     `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	LogFormat  string     `yaml:"log_format" validate:"omitempty,oneof=text json"`
	Gateway    Gateway    `yaml:"gateway"`
	Middleware Middleware `yaml:"middleware"`
	Engine     Engine     `yaml:"engine"`
	Serve      Serve      `yaml:"serve"`

	// Source is the file the document was read from, empty for defaults only.
	Source string `yaml:"-"`
}

// Gateway selects the store of record.
type Gateway struct {
	Kind  string `yaml:"kind" validate:"required,oneof=memory file redis http"`
	Path  string `yaml:"path" validate:"required_if=Kind file"`
	URL   string `yaml:"url" validate:"required_if=Kind http,omitempty,url"`
	Redis Redis  `yaml:"redis"`
}

// Redis configures the redis gateway and the session locker.
type Redis struct {
	Addr     string        `yaml:"addr" validate:"omitempty,hostname_port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0,lte=15"`
	Prefix   string        `yaml:"prefix"`
	LeaseTTL time.Duration `yaml:"lease_ttl" validate:"gte=0"`
}

// Middleware toggles the gateway decorators.
type Middleware struct {
	Log           bool     `yaml:"log"`
	Breaker       bool     `yaml:"breaker"`
	EncryptionKey string   `yaml:"encryption_key" validate:"omitempty,base64"`
	FallbackKeys  []string `yaml:"fallback_keys" validate:"dive,base64"`
	PIIPatterns   []string `yaml:"pii_patterns"`
}

// Engine holds the editor timings. Zero values keep the library defaults.
type Engine struct {
	HistoryDebounce  time.Duration `yaml:"history_debounce" validate:"gte=0"`
	HistoryLimit     int           `yaml:"history_limit" validate:"gte=0"`
	AutosaveDebounce time.Duration `yaml:"autosave_debounce" validate:"gte=0"`
	AutosaveAttempts int           `yaml:"autosave_attempts" validate:"gte=0"`
	ManualAttempts   int           `yaml:"manual_attempts" validate:"gte=0"`
	BackoffBase      time.Duration `yaml:"backoff_base" validate:"gte=0"`
	BackoffMax       time.Duration `yaml:"backoff_max" validate:"gte=0"`
	CallTimeout      time.Duration `yaml:"call_timeout" validate:"gte=0"`
}

// Serve configures the REST server.
type Serve struct {
	Addr            string        `yaml:"addr" validate:"required"`
	Metrics         bool          `yaml:"metrics"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// Default returns a configuration that runs without any file.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Gateway: Gateway{
			Kind: "file",
			Path: ".blueprint/data",
			Redis: Redis{
				Addr:     "localhost:6379",
				Prefix:   "blueprint:",
				LeaseTTL: 10 * time.Minute,
			},
		},
		Serve: Serve{
			Addr:            ":8080",
			Metrics:         true,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, then path, then the environment.
// A missing file is only an error when path was named explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		cfg.Source = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok {
			*dst = nil
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					*dst = append(*dst, item)
				}
			}
		}
	}

	str("BLUEPRINT_LOG_LEVEL", &c.LogLevel)
	str("BLUEPRINT_LOG_FORMAT", &c.LogFormat)

	str("BLUEPRINT_GATEWAY", &c.Gateway.Kind)
	str("BLUEPRINT_DATA_DIR", &c.Gateway.Path)
	str("BLUEPRINT_URL", &c.Gateway.URL)
	str("BLUEPRINT_REDIS_ADDR", &c.Gateway.Redis.Addr)
	str("BLUEPRINT_REDIS_PASSWORD", &c.Gateway.Redis.Password)
	integer("BLUEPRINT_REDIS_DB", &c.Gateway.Redis.DB)
	str("BLUEPRINT_REDIS_PREFIX", &c.Gateway.Redis.Prefix)

	boolean("BLUEPRINT_LOG_GATEWAY", &c.Middleware.Log)
	boolean("BLUEPRINT_BREAKER", &c.Middleware.Breaker)
	str("BLUEPRINT_ENCRYPTION_KEY", &c.Middleware.EncryptionKey)
	list("BLUEPRINT_PII_PATTERNS", &c.Middleware.PIIPatterns)

	duration("BLUEPRINT_AUTOSAVE_DEBOUNCE", &c.Engine.AutosaveDebounce)
	integer("BLUEPRINT_AUTOSAVE_ATTEMPTS", &c.Engine.AutosaveAttempts)
	duration("BLUEPRINT_CALL_TIMEOUT", &c.Engine.CallTimeout)

	str("BLUEPRINT_ADDR", &c.Serve.Addr)
	boolean("BLUEPRINT_METRICS", &c.Serve.Metrics)

	return errors.Join(errs...)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		gw := sl.Current().Interface().(Gateway)
		if gw.Kind == "redis" && gw.Redis.Addr == "" {
			sl.ReportError(gw.Redis.Addr, "redis.addr", "Addr", "required_with_redis", "")
		}
	}, Gateway{})
	return v
}

// Validate checks field rules and decodes the encryption keys.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("invalid config: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			field := strings.TrimPrefix(fe.Namespace(), "Config.")
			msgs = append(msgs, fmt.Sprintf("%s fails %q", field, fe.Tag()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	if c.Middleware.EncryptionKey != "" {
		key, _ := base64.StdEncoding.DecodeString(c.Middleware.EncryptionKey)
		if len(key) != 32 {
			return fmt.Errorf("invalid config: middleware.encryption_key must decode to 32 bytes, got %d", len(key))
		}
	}
	return nil
}

// Settings maps the engine section onto library settings.
func (c *Config) Settings() blueprint.Settings {
	return blueprint.Settings{
		HistoryDebounce:  c.Engine.HistoryDebounce,
		HistoryLimit:     c.Engine.HistoryLimit,
		AutosaveDebounce: c.Engine.AutosaveDebounce,
		AutosaveAttempts: c.Engine.AutosaveAttempts,
		ManualAttempts:   c.Engine.ManualAttempts,
		Backoff: blueprint.Backoff{
			Base: c.Engine.BackoffBase,
			Max:  c.Engine.BackoffMax,
		},
		CallTimeout: c.Engine.CallTimeout,
	}
}

// EncryptionKeys returns the decoded active key and fallback keys.
// The active key is nil when encryption is off.
func (c *Config) EncryptionKeys() ([]byte, [][]byte, error) {
	if c.Middleware.EncryptionKey == "" {
		return nil, nil, nil
	}
	active, err := base64.StdEncoding.DecodeString(c.Middleware.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("encryption_key: %w", err)
	}
	fallback := make([][]byte, 0, len(c.Middleware.FallbackKeys))
	for i, s := range c.Middleware.FallbackKeys {
		k, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, nil, fmt.Errorf("fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, k)
	}
	return active, fallback, nil
}
