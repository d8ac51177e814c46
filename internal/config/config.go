// Package config loads nattransfer settings from YAML.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// GatewayConfig controls port mapping on the NAT gateway.
type GatewayConfig struct {
	MapPort bool `yaml:"map_port"` // Ask the gateway for a mapping at all
	UPnP    bool `yaml:"upnp"`
	NATPMP  bool `yaml:"natpmp"`
}

// PublicAddrConfig controls discovery of the host's public address.
type PublicAddrConfig struct {
	Enabled     bool     `yaml:"enabled"`
	DNSServer   string   `yaml:"dns_server"`   // OpenDNS resolver, host:port
	STUNServers []string `yaml:"stun_servers"` // Tried in order after DNS
}

// Config holds every setting of a nattransfer run.
type Config struct {
	Output             string           `yaml:"output"`
	Port               int              `yaml:"port"`                // 0 picks a free port
	NegotiationTimeout string           `yaml:"negotiation_timeout"` // Duration string, e.g. "30s"
	Lease              string           `yaml:"lease"`               // Duration string, e.g. "1h"
	LogLevel           string           `yaml:"log_level"`
	Gateway            GatewayConfig    `yaml:"gateway"`
	PublicAddr         PublicAddrConfig `yaml:"public_addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Output:             "out.bin",
		NegotiationTimeout: "30s",
		Lease:              "1h",
		LogLevel:           "info",
		Gateway: GatewayConfig{
			MapPort: true,
			UPnP:    true,
			NATPMP:  true,
		},
		PublicAddr: PublicAddrConfig{
			Enabled:     true,
			DNSServer:   "208.67.222.222:53",
			STUNServers: []string{"stun.l.google.com:19302"},
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their default;
// an empty path yields the defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if cfg.Output == "" {
		cfg.Output = "out.bin"
	}
	if cfg.NegotiationTimeout == "" {
		cfg.NegotiationTimeout = "30s"
	}
	if cfg.Lease == "" {
		cfg.Lease = "1h"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and formats.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	timeout, err := time.ParseDuration(c.NegotiationTimeout)
	if err != nil {
		return fmt.Errorf("invalid negotiation_timeout: %w", err)
	}
	if timeout <= 0 {
		return errors.New("negotiation_timeout must be positive")
	}
	lease, err := time.ParseDuration(c.Lease)
	if err != nil {
		return fmt.Errorf("invalid lease: %w", err)
	}
	if lease < time.Second || lease%time.Second != 0 {
		return fmt.Errorf("lease %v must be a whole number of seconds", lease)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if c.PublicAddr.DNSServer != "" {
		if _, _, err := net.SplitHostPort(c.PublicAddr.DNSServer); err != nil {
			return fmt.Errorf("invalid public_addr.dns_server: %w", err)
		}
	}
	for _, s := range c.PublicAddr.STUNServers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			return fmt.Errorf("invalid public_addr.stun_servers entry %q: %w", s, err)
		}
	}
	return nil
}

// Timeout returns the parsed negotiation timeout. Call after Validate.
func (c *Config) Timeout() time.Duration {
	d, _ := time.ParseDuration(c.NegotiationTimeout)
	return d
}

// LeaseDuration returns the parsed mapping lease. Call after Validate.
func (c *Config) LeaseDuration() time.Duration {
	d, _ := time.ParseDuration(c.Lease)
	return d
}
