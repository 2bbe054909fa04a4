package pathing

import (
	"fmt"
	"os"
	"path/filepath"
)

func GetMeterDbPath() string {
	return filepath.Join(GetDataDir(), "p1-meter.db")
}

func GetDataDir() string {
	return "/var/lib/p1_meter_bridge"
}

func GetConfigDir() string {
	return "/etc/p1_meter_bridge"
}

func GetInterpreterAPIConfigPath() string {
	return filepath.Join(GetConfigDir(), "interpreter_api.toml")
}

func GetMeterCollectorConfigPath() string {
	return filepath.Join(GetConfigDir(), "meter_collector.toml")
}

// EnsureDir creates dir and its parents when missing.
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
