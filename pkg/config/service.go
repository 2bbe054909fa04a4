package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/pathing"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/telegram"
)

var ErrInvalidConfig = errors.New("invalid config")

func DefaultInterpreterAPIConfig() *InterpreterAPIConfig {
	return &InterpreterAPIConfig{
		SerialDevice:         "/dev/ttyUSB0",
		Baudrate:             115200,
		ListenAddress:        "0.0.0.0",
		ListenPort:           9039,
		LogLevel:             "info",
		UpdateIntervalMs:     1000,
		FullUpdateIntervalMs: 3600000,
		LinkCheckIntervalMs:  60000,
		WlanConnectionId:     "preconfigured", // Check with `nmcli device status`
		Mqtt: MqttConfig{
			Enabled:     false,
			Host:        "localhost",
			Port:        1883,
			ClientID:    "p1meter",
			RootTopic:   "sensors/power/p1meter",
			StatusTopic: "hass/status",
		},
	}
}

func DefaultMeterCollectorConfig() *MeterCollectorConfig {
	return &MeterCollectorConfig{
		InterpreterAPIHost: "localhost:9039",
		TLSEnabled:         false,
		LogLevel:           "info",
	}
}

// LoadInterpreterAPIConfig reads the config at path. When the file does not
// exist a default one is written there and returned.
func LoadInterpreterAPIConfig(path string) (*InterpreterAPIConfig, error) {
	if path == "" {
		path = pathing.GetInterpreterAPIConfigPath()
	}
	cfg := DefaultInterpreterAPIConfig()
	if err := loadOrCreate(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func LoadMeterCollectorConfig(path string) (*MeterCollectorConfig, error) {
	if path == "" {
		path = pathing.GetMeterCollectorConfigPath()
	}
	cfg := DefaultMeterCollectorConfig()
	if err := loadOrCreate(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// loadOrCreate decodes path over the defaults already held in cfg, so keys
// missing from the file keep their default value.
func loadOrCreate(path string, cfg any) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := pathing.EnsureDir(filepath.Dir(path)); err != nil {
			return err
		}
		cfgFile, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create default config: %w", err)
		}
		defer cfgFile.Close()
		if err := toml.NewEncoder(cfgFile).Encode(cfg); err != nil {
			return fmt.Errorf("failed to write default config: %w", err)
		}
		return nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *InterpreterAPIConfig) Validate() error {
	switch {
	case c.SerialDevice == "":
		return fmt.Errorf("%w: serial_device is empty", ErrInvalidConfig)
	case c.Baudrate == 0:
		return fmt.Errorf("%w: baudrate is zero", ErrInvalidConfig)
	case c.ListenPort <= 0 || c.ListenPort > 65535:
		return fmt.Errorf("%w: listen_port %d out of range", ErrInvalidConfig, c.ListenPort)
	case c.UpdateIntervalMs <= 0:
		return fmt.Errorf("%w: update_interval_ms must be positive", ErrInvalidConfig)
	case c.FullUpdateIntervalMs <= 0:
		return fmt.Errorf("%w: full_update_interval_ms must be positive", ErrInvalidConfig)
	case c.LinkCheckHost != "" && c.LinkCheckIntervalMs <= 0:
		return fmt.Errorf("%w: link_check_interval_ms must be positive", ErrInvalidConfig)
	}

	if c.Mqtt.Enabled {
		switch {
		case c.Mqtt.Host == "":
			return fmt.Errorf("%w: mqtt.host is empty", ErrInvalidConfig)
		case c.Mqtt.Port <= 0 || c.Mqtt.Port > 65535:
			return fmt.Errorf("%w: mqtt.port %d out of range", ErrInvalidConfig, c.Mqtt.Port)
		case c.Mqtt.ClientID == "":
			return fmt.Errorf("%w: mqtt.client_id is empty", ErrInvalidConfig)
		case c.Mqtt.RootTopic == "":
			return fmt.Errorf("%w: mqtt.root_topic is empty", ErrInvalidConfig)
		}
	}

	if _, err := c.Registry(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *MeterCollectorConfig) Validate() error {
	if c.InterpreterAPIHost == "" {
		return fmt.Errorf("%w: interpreter_api_host is empty", ErrInvalidConfig)
	}
	return nil
}

// Registry builds the field registry from the [[fields]] tables, or the
// built-in defaults when none are configured.
func (c *InterpreterAPIConfig) Registry() (*telegram.Registry, error) {
	if len(c.Fields) == 0 {
		return telegram.NewRegistry(telegram.DefaultFields())
	}

	defs := make([]telegram.FieldDefinition, 0, len(c.Fields))
	for i, f := range c.Fields {
		start, err := delimiter(f.StartChar)
		if err != nil {
			return nil, fmt.Errorf("fields[%d] start_char: %w", i, err)
		}
		end, err := delimiter(f.EndChar)
		if err != nil {
			return nil, fmt.Errorf("fields[%d] end_char: %w", i, err)
		}
		defs = append(defs, telegram.FieldDefinition{
			Name:      f.Name,
			Code:      f.Code,
			StartChar: start,
			EndChar:   end,
		})
	}
	return telegram.NewRegistry(defs)
}

func delimiter(s string) (byte, error) {
	switch len(s) {
	case 0:
		return 0, nil
	case 1:
		return s[0], nil
	default:
		return 0, fmt.Errorf("%q is not a single character", s)
	}
}

func (c *InterpreterAPIConfig) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMs) * time.Millisecond
}

func (c *InterpreterAPIConfig) FullUpdateInterval() time.Duration {
	return time.Duration(c.FullUpdateIntervalMs) * time.Millisecond
}

func (c *InterpreterAPIConfig) LinkCheckInterval() time.Duration {
	return time.Duration(c.LinkCheckIntervalMs) * time.Millisecond
}

func (c *InterpreterAPIConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenAddress, c.ListenPort)
}

func (c *MqttConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

func (c *MeterCollectorConfig) DbPath() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return pathing.GetMeterDbPath()
}
