package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "CALCPOOL"

// Loader merges defaults, an optional YAML file, CALCPOOL_* environment
// variables and command-line flags, in increasing order of precedence.
type Loader struct {
	v     *viper.Viper
	flags *pflag.FlagSet
	name  string
}

func newLoader(name string) *Loader {
	v := viper.New()

	v.SetConfigName(name)
	v.SetConfigType("yaml")

	v.AddConfigPath("/usr/local/etc/calcpool/")
	v.AddConfigPath("/etc/calcpool/")
	v.AddConfigPath("$HOME/.calcpool")
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.StringP("config", "c", "", "path to the configuration file")

	return &Loader{v: v, flags: flags, name: name}
}

// NewServerLoader creates a loader for the server binary
func NewServerLoader() *Loader {
	l := newLoader("calcpool")

	l.v.SetDefault("server.listen.type", "tcp")
	l.v.SetDefault("server.listen.address", "127.0.0.1")
	l.v.SetDefault("server.listen.port", 7878)
	l.v.SetDefault("server.listen.reuse_port", false)
	l.v.SetDefault("server.listen.mode", "")
	l.v.SetDefault("server.read_timeout", 10*time.Second)
	l.v.SetDefault("server.write_timeout", 10*time.Second)
	l.v.SetDefault("server.max_body_bytes", 64*1024)
	l.v.SetDefault("pool.size", DefaultPoolSize())
	l.v.SetDefault("pool.queue_capacity", 0)
	l.v.SetDefault("pool.spawn_timeout", 5*time.Second)
	l.v.SetDefault("pool.lock_os_thread", false)
	l.v.SetDefault("metrics.enabled", false)
	l.v.SetDefault("metrics.address", "127.0.0.1:9464")
	l.v.SetDefault("metrics.path", "/metrics")
	setLogDefaults(l.v)

	fs := l.flags
	fs.String("server.listen.type", "tcp", "listener network: tcp or unix")
	fs.String("server.listen.address", "127.0.0.1", "listen address or unix socket path")
	fs.Int("server.listen.port", 7878, "tcp port")
	fs.Bool("server.listen.reuse_port", false, "bind with SO_REUSEPORT")
	fs.Int("pool.size", DefaultPoolSize(), "number of workers (1-16)")
	fs.Int("pool.queue_capacity", 0, "maximum queued connections, 0 for unbounded")
	fs.String("log.level", "info", "log level: debug, info, warn or error")
	fs.Bool("log.json", false, "log in JSON format")
	fs.Bool("metrics.enabled", false, "serve Prometheus metrics")
	fs.String("metrics.address", "127.0.0.1:9464", "metrics listen address")

	return l
}

// NewClientLoader creates a loader for the client binary.
// Input and output paths come from INPUT_FILEPATH and OUTPUT_FILEPATH.
func NewClientLoader() *Loader {
	l := newLoader("calcpool-client")

	_ = l.v.BindEnv("input_filepath", "INPUT_FILEPATH")
	_ = l.v.BindEnv("output_filepath", "OUTPUT_FILEPATH")

	l.v.SetDefault("server_address", "")
	l.v.SetDefault("network", "tcp")
	l.v.SetDefault("dial_timeout", 5*time.Second)
	l.v.SetDefault("io_timeout", 10*time.Second)
	l.v.SetDefault("retry.max_attempts", 3)
	l.v.SetDefault("retry.initial_delay", 100*time.Millisecond)
	l.v.SetDefault("retry.max_delay", 2*time.Second)
	setLogDefaults(l.v)

	fs := l.flags
	fs.String("network", "tcp", "server network: tcp or unix")
	fs.Duration("dial_timeout", 5*time.Second, "connection timeout")
	fs.Int("retry.max_attempts", 3, "attempts per request")
	fs.Duration("retry.initial_delay", 100*time.Millisecond, "delay before the first retry")
	fs.String("log.level", "info", "log level: debug, info, warn or error")

	return l
}

func setLogDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", false)
}

// ConfigFileUsed returns the configuration file that was read, if any
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// parse parses args, binds the flags and reads the configuration file
func (l *Loader) parse(args []string) error {
	if err := l.flags.Parse(args); err != nil {
		return err
	}

	if err := l.v.BindPFlags(l.flags); err != nil {
		return err
	}

	if path, _ := l.flags.GetString("config"); path != "" {
		l.v.SetConfigFile(path)
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	return nil
}

// LoadServer parses args and returns the validated server configuration
func (l *Loader) LoadServer(args []string) (*Config, error) {
	if err := l.parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadClient parses args and returns the validated client configuration.
// The first positional argument is the server address.
func (l *Loader) LoadClient(args []string) (*Client, error) {
	if err := l.parse(args); err != nil {
		return nil, err
	}

	if addr := l.flags.Arg(0); addr != "" {
		l.v.Set("server_address", addr)
	}

	cfg := &Client{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	switch {
	case cfg.InputPath == "":
		return nil, fmt.Errorf("%w: must set INPUT_FILEPATH", ErrInvalid)
	case cfg.OutputPath == "":
		return nil, fmt.Errorf("%w: must set OUTPUT_FILEPATH", ErrInvalid)
	case cfg.ServerAddress == "":
		return nil, fmt.Errorf("%w: failed to get server address argument", ErrInvalid)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
