package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/iaserrat/netdiag/internal/health"
	"github.com/iaserrat/netdiag/internal/probe"
)

type Config struct {
	TimeoutMS  int              `toml:"timeout_ms" yaml:"timeout_ms"`
	Attempts   int              `toml:"attempts" yaml:"attempts"`
	Resolver   string           `toml:"resolver" yaml:"resolver"`
	Nameserver string           `toml:"nameserver" yaml:"nameserver"`
	Network    string           `toml:"network" yaml:"network"`
	DNSQuery   string           `toml:"dns_query" yaml:"dns_query"`
	Battery    []TargetConfig   `toml:"battery" yaml:"battery"`
	Custom     CustomConfig     `toml:"custom" yaml:"custom"`
	Logging    LoggingConfig    `toml:"logging" yaml:"logging"`
	Traceroute TracerouteConfig `toml:"traceroute" yaml:"traceroute"`
}

type TargetConfig struct {
	Name  string `toml:"name" yaml:"name"`
	Host  string `toml:"host" yaml:"host"`
	Probe string `toml:"probe" yaml:"probe"`
	Port  int    `toml:"port" yaml:"port"`
}

type CustomConfig struct {
	Probe string `toml:"probe" yaml:"probe"`
	Port  int    `toml:"port" yaml:"port"`
}

type LoggingConfig struct {
	Dir      string `toml:"dir" yaml:"dir"`
	MaxMB    int    `toml:"max_mb" yaml:"max_mb"`
	MaxFiles int    `toml:"max_files" yaml:"max_files"`
	Level    string `toml:"level" yaml:"level"`
}

type TracerouteConfig struct {
	Enabled   bool `toml:"enabled" yaml:"enabled"`
	MaxHops   int  `toml:"max_hops" yaml:"max_hops"`
	TimeoutMS int  `toml:"timeout_ms" yaml:"timeout_ms"`
}

// DefaultConfig is the fixed configuration used when no file is given.
//
// Battery, probed in this order:
//  1. Google DNS, 8.8.8.8, DNS query on port 53 (no name resolution needed)
//  2. Google, google.com, TCP connect on port 443
//  3. Cloudflare, cloudflare.com, TCP connect on port 443
//
// Every probe gets 5 seconds and a single attempt. Custom targets are
// probed with a TCP connect on port 443.
func DefaultConfig() Config {
	return Config{
		TimeoutMS: 5000,
		Attempts:  1,
		Resolver:  "system",
		Network:   "ip4",
		DNSQuery:  "example.com",
		Battery: []TargetConfig{
			{Name: "Google DNS", Host: "8.8.8.8", Probe: string(probe.KindDNS), Port: 53},
			{Name: "Google", Host: "google.com", Probe: string(probe.KindTCP), Port: 443},
			{Name: "Cloudflare", Host: "cloudflare.com", Probe: string(probe.KindTCP), Port: 443},
		},
		Custom: CustomConfig{Probe: string(probe.KindTCP), Port: 443},
		Logging: LoggingConfig{
			Dir:      "logs",
			MaxMB:    10,
			MaxFiles: 5,
			Level:    "info",
		},
		Traceroute: TracerouteConfig{
			Enabled:   false,
			MaxHops:   20,
			TimeoutMS: 2000,
		},
	}
}

// Load overlays the file at path on DefaultConfig. An empty path returns
// the defaults. Files ending in .yaml or .yml are read as YAML, anything
// else as TOML. A battery in the file replaces the default one.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("config file not found: %w", err)
	}

	cfg.Battery = nil
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	default:
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	}
	if cfg.Battery == nil {
		cfg.Battery = DefaultConfig().Battery
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

var validProbes = map[string]bool{
	string(probe.KindTCP):  true,
	string(probe.KindICMP): true,
	string(probe.KindDNS):  true,
	string(probe.KindHTTP): true,
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var err error

	if c.TimeoutMS <= 0 {
		err = multierr.Append(err, errors.New("timeout_ms must be > 0"))
	}
	if c.Attempts <= 0 {
		err = multierr.Append(err, errors.New("attempts must be > 0"))
	}
	switch c.Resolver {
	case "system":
	case "dns":
		if strings.TrimSpace(c.Nameserver) == "" {
			err = multierr.Append(err, errors.New("nameserver is required when resolver is dns"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("resolver must be system or dns, got %q", c.Resolver))
	}
	switch c.Network {
	case "ip", "ip4", "ip6":
	default:
		err = multierr.Append(err, fmt.Errorf("network must be ip, ip4 or ip6, got %q", c.Network))
	}
	if strings.TrimSpace(c.Logging.Dir) == "" {
		err = multierr.Append(err, errors.New("logging.dir is required"))
	}
	if c.Logging.MaxMB <= 0 {
		err = multierr.Append(err, errors.New("logging.max_mb must be > 0"))
	}
	if c.Logging.MaxFiles <= 0 {
		err = multierr.Append(err, errors.New("logging.max_files must be > 0"))
	}
	if c.Traceroute.Enabled {
		if c.Traceroute.MaxHops <= 0 {
			err = multierr.Append(err, errors.New("traceroute.max_hops must be > 0"))
		}
		if c.Traceroute.TimeoutMS <= 0 {
			err = multierr.Append(err, errors.New("traceroute.timeout_ms must be > 0"))
		}
	}
	if !validProbes[c.Custom.Probe] {
		err = multierr.Append(err, fmt.Errorf("custom.probe %q is not one of tcp, icmp, dns, http", c.Custom.Probe))
	}
	if !validPort(c.Custom.Probe, c.Custom.Port) {
		err = multierr.Append(err, fmt.Errorf("custom.port %d out of range for probe %q", c.Custom.Port, c.Custom.Probe))
	}
	if len(c.Battery) == 0 {
		err = multierr.Append(err, errors.New("battery must not be empty"))
	}
	for i, t := range c.Battery {
		if strings.TrimSpace(t.Name) == "" {
			err = multierr.Append(err, fmt.Errorf("battery[%d].name is required", i))
		}
		if strings.TrimSpace(t.Host) == "" {
			err = multierr.Append(err, fmt.Errorf("battery[%d].host is required", i))
		}
		if !validProbes[t.Probe] {
			err = multierr.Append(err, fmt.Errorf("battery[%d].probe %q is not one of tcp, icmp, dns, http", i, t.Probe))
		}
		if !validPort(t.Probe, t.Port) {
			err = multierr.Append(err, fmt.Errorf("battery[%d].port %d out of range for probe %q", i, t.Port, t.Probe))
		}
	}

	return err
}

// validPort allows 0 only for probes that default or ignore the port.
func validPort(kind string, port int) bool {
	if kind == string(probe.KindTCP) {
		return port >= 1 && port <= 65535
	}
	return port >= 0 && port <= 65535
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// HealthConfig converts the file layout into runner configuration.
func (c Config) HealthConfig() health.Config {
	battery := make([]health.Target, 0, len(c.Battery))
	for _, t := range c.Battery {
		battery = append(battery, health.Target{
			Name: t.Name,
			Host: t.Host,
			Kind: probe.Kind(t.Probe),
			Port: t.Port,
		})
	}

	return health.Config{
		Battery:  battery,
		Custom:   health.Target{Kind: probe.Kind(c.Custom.Probe), Port: c.Custom.Port},
		Timeout:  c.Timeout(),
		Attempts: c.Attempts,
	}
}
