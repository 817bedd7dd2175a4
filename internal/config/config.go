// Package config loads calcpool configuration from files, environment and flags
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/jzx17/calcpool/pkg/types"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Config is the server configuration
type Config struct {
	Server  Server  `mapstructure:"server"`
	Pool    Pool    `mapstructure:"pool"`
	Log     Log     `mapstructure:"log"`
	Metrics Metrics `mapstructure:"metrics"`
}

type Server struct {
	Listen       Listen        `mapstructure:"listen"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" validate:"min=0"`
}

type Listen struct {
	Type      string `mapstructure:"type" validate:"oneof=tcp unix"`
	Address   string `mapstructure:"address" validate:"required"`
	Port      int    `mapstructure:"port" validate:"min=0,max=65535"`
	ReusePort bool   `mapstructure:"reuse_port"`
	Mode      string `mapstructure:"mode" validate:"omitempty,octal_mode"`
}

// Pool configures the worker pool
type Pool struct {
	Size          int           `mapstructure:"size" validate:"min=1,max=16"`
	QueueCapacity int           `mapstructure:"queue_capacity" validate:"min=0"`
	SpawnTimeout  time.Duration `mapstructure:"spawn_timeout" validate:"gt=0"`
	LockOSThread  bool          `mapstructure:"lock_os_thread"`
}

// Log configures the process logger
type Log struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON       bool   `mapstructure:"json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"min=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"min=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"min=0"`
	Compress   bool   `mapstructure:"compress"`
}

// SlogLevel maps Level onto slog; unknown values fall back to info
func (l Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type Metrics struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address" validate:"required_if=Enabled true"`
	Path    string `mapstructure:"path" validate:"startswith=/"`
}

// Client is the client configuration
type Client struct {
	ServerAddress string        `mapstructure:"server_address" validate:"required"`
	Network       string        `mapstructure:"network" validate:"oneof=tcp unix"`
	InputPath     string        `mapstructure:"input_filepath" validate:"required"`
	OutputPath    string        `mapstructure:"output_filepath" validate:"required"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout" validate:"gt=0"`
	IOTimeout     time.Duration `mapstructure:"io_timeout" validate:"gt=0"`
	Retry         Retry         `mapstructure:"retry"`
	Log           Log           `mapstructure:"log"`
}

type Retry struct {
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"min=1,max=20"`
	InitialDelay time.Duration `mapstructure:"initial_delay" validate:"gte=0"`
	MaxDelay     time.Duration `mapstructure:"max_delay" validate:"gtefield=InitialDelay"`
}

// DefaultPoolSize is the logical CPU count clamped into the valid pool size range
func DefaultPoolSize() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}
	return min(max(n, types.MinPoolSize), types.MaxPoolSize)
}

// Validate checks struct tags and cross-field rules
func (cfg *Config) Validate() error {
	if err := validateStruct(cfg); err != nil {
		return err
	}
	if cfg.Server.Listen.Type == "tcp" && cfg.Server.Listen.Port == 0 {
		return fmt.Errorf("%w: field 'port' is required for tcp listeners", ErrInvalid)
	}
	return nil
}

// Validate checks struct tags
func (cfg *Client) Validate() error {
	return validateStruct(cfg)
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("octal_mode", func(fl validator.FieldLevel) bool {
		mode := fl.Field().String()
		if len(mode) < 3 || len(mode) > 4 {
			return false
		}
		for _, r := range mode {
			if r < '0' || r > '7' {
				return false
			}
		}
		return true
	})

	return validate
}

func validateStruct(s any) error {
	err := newValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		msgs = append(msgs, fmt.Sprintf("field '%s' (struct field: '%s') failed on the '%s' validation rule",
			fe.Field(), fe.StructField(), fe.Tag()))
	}

	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}
