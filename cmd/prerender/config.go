package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
)

// envPrefix marks environment overrides, where `__` maps to `.`, e.g.
// PRERENDER_HTTP__LISTEN_ADDR -> http.listen_addr.
const envPrefix = `PRERENDER_`

type (
	Config struct {
		Log    LogConfig    `koanf:"log"`
		HTTP   HTTPConfig   `koanf:"http"`
		Render RenderConfig `koanf:"render"`
	}

	LogConfig struct {
		Level string `koanf:"level" validate:"oneof=disabled emerg alert crit err warning notice info debug trace"`
	}

	HTTPConfig struct {
		ListenAddr        string        `koanf:"listen_addr" validate:"required,hostname_port"`
		MaxBodyBytes      int64         `koanf:"max_body_bytes" validate:"gte=0"`
		RateLimit         float64       `koanf:"rate_limit" validate:"gte=0"`
		RateBurst         int           `koanf:"rate_burst" validate:"gte=0"`
		ClientRateLimits  []RateLimit   `koanf:"client_rate_limits" validate:"dive"`
		ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gte=0"`
		ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	}

	// RateLimit allows Limit requests per Window.
	RateLimit struct {
		Window time.Duration `koanf:"window" validate:"gt=0"`
		Limit  int           `koanf:"limit" validate:"gt=0"`
	}

	RenderConfig struct {
		// ApplicationBasePath is used when a request does not specify one.
		ApplicationBasePath string        `koanf:"application_base_path"`
		ModuleNames         []string      `koanf:"module_names" validate:"dive,required"`
		DefaultTimeout      time.Duration `koanf:"default_timeout"`
		FetchTimeout        time.Duration `koanf:"fetch_timeout" validate:"gte=0"`
		MaxResponseBytes    int64         `koanf:"max_response_bytes" validate:"gte=0"`
	}
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultConfig returns the configuration used for anything not set by the
// config file or environment.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: `info`,
		},
		HTTP: HTTPConfig{
			ListenAddr:        `127.0.0.1:8080`,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Render: RenderConfig{
			DefaultTimeout: 30 * time.Second,
			FetchTimeout:   30 * time.Second,
		},
	}
}

// LoadConfig layers, in increasing precedence: defaults, the YAML file at
// path (if not empty), and PRERENDER_ environment variables. The result is
// validated.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(`.`)

	if path != `` {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf(`failed to load config file %q: %w`, path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, `.`, func(s string) string {
		return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(s, envPrefix), `__`, `.`))
	}), nil); err != nil {
		return nil, fmt.Errorf(`failed to load config from environment: %w`, err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal(``, cfg); err != nil {
		return nil, fmt.Errorf(`failed to decode config: %w`, err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf(`invalid config: %w`, err)
	}

	if rates := cfg.HTTP.ClientRates(); rates != nil {
		if err := checkRates(rates); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// ClientRates converts ClientRateLimits to the form accepted by
// prerenderhttp.WithClientRateLimits.
func (c *HTTPConfig) ClientRates() map[time.Duration]int {
	if len(c.ClientRateLimits) == 0 {
		return nil
	}
	rates := make(map[time.Duration]int, len(c.ClientRateLimits))
	for _, r := range c.ClientRateLimits {
		rates[r.Window] = r.Limit
	}
	return rates
}

func checkRates(rates map[time.Duration]int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf(`invalid config: http.client_rate_limits: %v`, r)
		}
	}()
	catrate.NewLimiter(rates)
	return nil
}

func parseLevel(s string) (logiface.Level, error) {
	for _, level := range [...]logiface.Level{
		logiface.LevelDisabled,
		logiface.LevelEmergency,
		logiface.LevelAlert,
		logiface.LevelCritical,
		logiface.LevelError,
		logiface.LevelWarning,
		logiface.LevelNotice,
		logiface.LevelInformational,
		logiface.LevelDebug,
		logiface.LevelTrace,
	} {
		if strings.EqualFold(s, level.String()) {
			return level, nil
		}
	}
	return 0, fmt.Errorf(`unknown log level %q`, s)
}
