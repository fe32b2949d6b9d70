// Package config
package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	TransportExec   = "exec"
	TransportNative = "native"

	// GB10 unified memory ceiling, 128 GiB.
	DefaultGPUPoolMiB = 128 * 1024
)

type Config struct {
	Port int    `yaml:"port" validate:"min=1,max=65535"`
	Bind string `yaml:"bind" validate:"required"`

	RemoteHost           string        `yaml:"remote_host"`
	RemoteTransport      string        `yaml:"remote_transport" validate:"oneof=exec native"`
	RemoteConnectTimeout time.Duration `yaml:"remote_connect_timeout" validate:"min=1s"`
	RemoteTimeout        time.Duration `yaml:"remote_timeout" validate:"gtfield=RemoteConnectTimeout"`
	SSHKeyFile           string        `yaml:"ssh_key_file" validate:"omitempty,file"`
	SSHKnownHosts        string        `yaml:"ssh_known_hosts"`

	PollInterval    time.Duration `yaml:"poll_interval" validate:"min=1s"`
	CPUSampleWindow time.Duration `yaml:"cpu_sample_window" validate:"min=500ms"`
	CommandTimeout  time.Duration `yaml:"command_timeout" validate:"min=100ms"`
	GPUPoolMiB      uint64        `yaml:"gpu_pool_mib" validate:"min=1"`
	CPUSensor       string        `yaml:"cpu_sensor" validate:"required"`

	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`
}

func Default() *Config {
	knownHosts := ""
	if home, err := os.UserHomeDir(); err == nil {
		knownHosts = filepath.Join(home, ".ssh", "known_hosts")
	}

	return &Config{
		Port: 8090,
		Bind: "0.0.0.0",

		RemoteTransport:      TransportExec,
		RemoteConnectTimeout: 3 * time.Second,
		RemoteTimeout:        8 * time.Second,
		SSHKnownHosts:        knownHosts,

		PollInterval:    5 * time.Second,
		CPUSampleWindow: 500 * time.Millisecond,
		CommandTimeout:  5 * time.Second,
		GPUPoolMiB:      DefaultGPUPoolMiB,
		CPUSensor:       "acpitz",

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// the environment (including a .env file) and finally command line flags.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("metricsd", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	port := fs.Int("port", 0, "HTTP port to listen on")
	remoteHost := fs.String("linux-host", "", "SSH alias of the remote Linux host (optional)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	_ = godotenv.Load()

	cfg := Default()

	path := *configPath
	if path == "" {
		path = os.Getenv("METRICSD_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "linux-host":
			cfg.RemoteHost = *remoteHost
		}
	})

	cfg.RemoteHost = strings.TrimSpace(cfg.RemoteHost)
	cfg.RemoteTransport = strings.ToLower(cfg.RemoteTransport)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Address() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

func (c *Config) RemoteEnabled() bool {
	return c.RemoteHost != ""
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return nil
}

func (c *Config) loadEnv() error {
	var errs []error

	c.Bind = getEnv("METRICSD_BIND", c.Bind)
	c.RemoteHost = getEnv("METRICSD_REMOTE_HOST", c.RemoteHost)
	c.RemoteTransport = getEnv("METRICSD_REMOTE_TRANSPORT", c.RemoteTransport)
	c.SSHKeyFile = getEnv("METRICSD_SSH_KEY_FILE", c.SSHKeyFile)
	c.SSHKnownHosts = getEnv("METRICSD_SSH_KNOWN_HOSTS", c.SSHKnownHosts)
	c.CPUSensor = getEnv("METRICSD_CPU_SENSOR", c.CPUSensor)

	// Logs
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	if raw := os.Getenv("METRICSD_PORT"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("METRICSD_PORT: %w", err))
		} else {
			c.Port = v
		}
	}

	if raw := os.Getenv("METRICSD_GPU_POOL_MIB"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("METRICSD_GPU_POOL_MIB: %w", err))
		} else {
			c.GPUPoolMiB = v
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"METRICSD_POLL_INTERVAL", &c.PollInterval},
		{"METRICSD_CPU_SAMPLE_WINDOW", &c.CPUSampleWindow},
		{"METRICSD_COMMAND_TIMEOUT", &c.CommandTimeout},
		{"METRICSD_REMOTE_CONNECT_TIMEOUT", &c.RemoteConnectTimeout},
		{"METRICSD_REMOTE_TIMEOUT", &c.RemoteTimeout},
	}
	for _, d := range durations {
		raw := os.Getenv(d.key)
		if raw == "" {
			continue
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.key, err))
			continue
		}
		*d.dst = v
	}

	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
