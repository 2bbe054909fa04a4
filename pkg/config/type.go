package config

type MeterCollectorConfig struct {
	InterpreterAPIHost string `toml:"interpreter_api_host"`
	TLSEnabled         bool   `toml:"tls_enabled"`
	// Empty means the default under the data dir.
	DatabasePath string `toml:"database_path"`
	LogLevel     string `toml:"log_level"`
}

type InterpreterAPIConfig struct {
	SerialDevice  string `toml:"serial_device"`
	Baudrate      uint   `toml:"baudrate"`
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`
	LogLevel      string `toml:"log_level"`

	UpdateIntervalMs     int64 `toml:"update_interval_ms"`
	FullUpdateIntervalMs int64 `toml:"full_update_interval_ms"`

	// Host pinged to detect a dropped network link. Empty disables the check.
	LinkCheckHost       string `toml:"link_check_host"`
	LinkCheckIntervalMs int64  `toml:"link_check_interval_ms"`
	// Should be named `preconfigured`
	// Check with `nmcli device status`
	WlanConnectionId string `toml:"wlan_connection_id"`

	Mqtt MqttConfig `toml:"mqtt"`
	// Overrides the built-in field list when set.
	Fields []FieldConfig `toml:"fields,omitempty"`
}

type MqttConfig struct {
	Enabled     bool   `toml:"enabled"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	ClientID    string `toml:"client_id"`
	RootTopic   string `toml:"root_topic"`
	StatusTopic string `toml:"status_topic"`
}

// FieldConfig is a telegram field as written in the config file.
// Delimiters are single characters, empty means '(' and ')'.
type FieldConfig struct {
	Name      string `toml:"name"`
	Code      string `toml:"code"`
	StartChar string `toml:"start_char"`
	EndChar   string `toml:"end_char"`
}
