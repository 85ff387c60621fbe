package registry

import (
	"errors"
	"fmt"
	"os"
	"strings"

	yaml "github.com/goccy/go-yaml"
	"github.com/rs/zerolog"
)

var (
	errConfigPathEmpty     = errors.New("config path is empty")
	errDeviceNameEmpty     = errors.New("device name cannot be empty")
	errDuplicateDeviceName = errors.New("duplicate device name")
	errNoBackends          = errors.New("device must list at least one backend")
	errSelectedNotListed   = errors.New("selected backend is not among the listed backends")
)

// DeviceConfig is one device entry in the registry YAML.
type DeviceConfig struct {
	Name     string   `yaml:"name"`
	Backends []string `yaml:"backends"`
	Selected string   `yaml:"selected"`
}

// NetworkConfig carries the defaults for the network-virtual device.
type NetworkConfig struct {
	IP         string `yaml:"ip"`
	ServerPort int    `yaml:"server_port"`
	ClientPort int    `yaml:"client_port"`
}

// Config is the on-disk registry format.
type Config struct {
	Devices []DeviceConfig `yaml:"devices"`
	Network NetworkConfig  `yaml:"network"`
}

func parseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "streaming", "grc":
		return KindStreaming, nil
	case "native":
		return KindNative, nil
	case "network":
		return KindNetwork, nil
	default:
		return 0, fmt.Errorf("unknown backend kind %q", s)
	}
}

// Validate checks structural constraints before the config is applied.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Devices))
	for _, dev := range c.Devices {
		if strings.TrimSpace(dev.Name) == "" {
			return errDeviceNameEmpty
		}
		key := strings.ToLower(dev.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", errDuplicateDeviceName, dev.Name)
		}
		seen[key] = struct{}{}

		if len(dev.Backends) == 0 {
			return fmt.Errorf("%w: %s", errNoBackends, dev.Name)
		}
		listed := false
		for _, b := range dev.Backends {
			if _, err := parseKind(b); err != nil {
				return fmt.Errorf("device %s: %w", dev.Name, err)
			}
			if strings.EqualFold(b, dev.Selected) {
				listed = true
			}
		}
		if dev.Selected != "" && !listed {
			return fmt.Errorf("%w: %s", errSelectedNotListed, dev.Name)
		}
	}
	return nil
}

// Load reads and validates a registry config file.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errConfigPathEmpty
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse registry config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Apply builds a Handler from a validated config.
func (c *Config) Apply(log zerolog.Logger) *Handler {
	h := NewHandler(log)
	for _, dev := range c.Devices {
		entry := &Entry{}
		for _, b := range dev.Backends {
			kind, err := parseKind(b)
			if err != nil {
				continue // Validate already rejected these
			}
			entry.Available = append(entry.Available, kind)
		}
		entry.Selected = entry.Available[0]
		if dev.Selected != "" {
			if kind, err := parseKind(dev.Selected); err == nil {
				entry.Selected = kind
			}
		}
		h.Register(dev.Name, entry)
	}
	return h
}
