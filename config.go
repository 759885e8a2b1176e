package datatable

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/hugr-lab/datatable-go/engine"
	"github.com/hugr-lab/datatable-go/sqlexpr"
)

// Config contains engine defaults shared by every request.
type Config struct {
	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	// Note: If LogLevel is specified, a new logger will be created with that level.
	Logger *slog.Logger

	// LogLevel sets the logging level.
	// OPTIONAL: If nil, the default logger is used as is.
	// If Logger is also provided, LogLevel is ignored (use pre-configured logger).
	LogLevel *slog.Level

	// DefaultDisplayLength is the page size used when iDisplayLength is
	// missing a usable value.
	// OPTIONAL: If 0, uses 10. MUST NOT be negative.
	DefaultDisplayLength int

	// ExactWordSearch makes the global search match whole values.
	// OPTIONAL: Default false.
	ExactWordSearch bool

	// EnableDisplayAll lets iDisplayLength=-1 return every row.
	// OPTIONAL: Default false.
	EnableDisplayAll bool

	// OutputFormat is "legacy" or "modern".
	// OPTIONAL: If empty, uses "legacy".
	OutputFormat string
}

// Standard errors returned by the datatable package.
var (
	// ErrInvalidConfig indicates Config validation failed.
	ErrInvalidConfig = errors.New("invalid datatable config")

	// ErrInvalidArgument indicates an out-of-range configuration value
	// (output format, option key).
	ErrInvalidArgument = engine.ErrInvalidArgument

	// ErrUsage indicates an API call with an unsupported shape.
	ErrUsage = engine.ErrUsage

	// ErrFinalized is returned by a second Output call.
	ErrFinalized = engine.ErrFinalized

	// ErrUnsafeExpression indicates a field spec that cannot be rendered as
	// SQL without interpolating unchecked text.
	ErrUnsafeExpression = sqlexpr.ErrUnsafeExpression
)

// validateConfig checks Config field values.
func validateConfig(config Config) error {
	if config.DefaultDisplayLength < 0 {
		return fmt.Errorf("default display length must not be negative, got %d", config.DefaultDisplayLength)
	}
	switch engine.OutputFormat(config.OutputFormat) {
	case "", engine.Legacy, engine.Modern:
	default:
		return fmt.Errorf("unknown output format %q", config.OutputFormat)
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	if c.LogLevel != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: *c.LogLevel}))
	}
	return slog.Default()
}

func (c Config) engineOptions() engine.Options {
	return engine.Options{
		DefaultDisplayLength: c.DefaultDisplayLength,
		ExactWordSearch:      c.ExactWordSearch,
		EnableDisplayAll:     c.EnableDisplayAll,
		Logger:               c.logger(),
	}
}

// Configuration keys read by ConfigFromViper.
const (
	KeyExactWordSearch      = "datatable.engine.exactWordSearch"
	KeyEnableDisplayAll     = "datatable.engine.enableDisplayAll"
	KeyDefaultDisplayLength = "datatable.engine.defaultDisplayLength"
	KeyOutputFormat         = "datatable.engine.outputFormat"
	KeyLogLevel             = "datatable.logLevel"
)

// ConfigFromViper reads engine defaults from v:
//
//	datatable:
//	  logLevel: debug
//	  engine:
//	    exactWordSearch: false
//	    enableDisplayAll: true
//	    defaultDisplayLength: 25
//	    outputFormat: modern
//
// Missing keys keep their zero values. The result is validated.
func ConfigFromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		ExactWordSearch:      v.GetBool(KeyExactWordSearch),
		EnableDisplayAll:     v.GetBool(KeyEnableDisplayAll),
		DefaultDisplayLength: v.GetInt(KeyDefaultDisplayLength),
		OutputFormat:         v.GetString(KeyOutputFormat),
	}

	if s := v.GetString(KeyLogLevel); s != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(s)); err != nil {
			return Config{}, fmt.Errorf("%w: log level %q", ErrInvalidConfig, s)
		}
		cfg.LogLevel = &level
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}
