package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "ticksync.cfg.json"

// ErrNotFound is returned by Load when no config file exists. Defaults
// still apply, so callers usually log it and carry on.
var ErrNotFound = errors.New("config file not found")

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage settings. An empty Path keeps the
// database in memory; DumpPath then receives a copy when the session ends.
type SQLiteConfig struct {
	Path     string `json:"path" mapstructure:"path"`
	DumpPath string `json:"dumpPath" mapstructure:"dumpPath"`
}

// StorageConfig selects and configures the recorder backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// TransportConfig holds connection settings for the simulation socket
type TransportConfig struct {
	Address     string
	Backoff     time.Duration
	BackoffMode string
	MaxBackoff  time.Duration
	WriteWait   time.Duration
	InboxSize   int
}

// GameConfig holds the inputs that bound a session
type GameConfig struct {
	Steps        int
	MapPath      string
	ScenarioPath string
	LoopInterval time.Duration
}

// ControlConfig holds settings for the HTTP control surface
type ControlConfig struct {
	Enabled bool
	Listen  string
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// APIConfig holds recording server settings
type APIConfig struct {
	Enabled   bool
	ServerURL string
	APIKey    string
}

// InfluxConfig holds InfluxDB settings
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("server.address", "ws://127.0.0.1:8181")

	viper.SetDefault("transport.backoff", "2s")
	viper.SetDefault("transport.backoffMode", "constant")
	viper.SetDefault("transport.maxBackoff", "30s")
	viper.SetDefault("transport.writeWait", "10s")
	viper.SetDefault("transport.inboxSize", 1024)

	viper.SetDefault("loop.interval", "16ms")

	viper.SetDefault("game.steps", 0)
	viper.SetDefault("game.mapPath", "")
	viper.SetDefault("scenario.configPath", "")

	viper.SetDefault("control.enabled", true)
	viper.SetDefault("control.listen", "127.0.0.1:8282")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "ticksync")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "ticksync")
	viper.SetDefault("influx.bucket", "ticksync")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "ticksync")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.interval", "10s")

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetEnvPrefix("TICKSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w in %s", ErrNotFound, configDir)
		}
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:     viper.GetString("storage.sqlite.path"),
			DumpPath: viper.GetString("storage.sqlite.dumpPath"),
		},
	}
}

// GetTransportConfig returns the server and transport sections.
func GetTransportConfig() TransportConfig {
	return TransportConfig{
		Address:     viper.GetString("server.address"),
		Backoff:     viper.GetDuration("transport.backoff"),
		BackoffMode: viper.GetString("transport.backoffMode"),
		MaxBackoff:  viper.GetDuration("transport.maxBackoff"),
		WriteWait:   viper.GetDuration("transport.writeWait"),
		InboxSize:   viper.GetInt("transport.inboxSize"),
	}
}

// GetGameConfig returns the game, scenario and loop settings.
func GetGameConfig() GameConfig {
	return GameConfig{
		Steps:        viper.GetInt("game.steps"),
		MapPath:      viper.GetString("game.mapPath"),
		ScenarioPath: viper.GetString("scenario.configPath"),
		LoopInterval: viper.GetDuration("loop.interval"),
	}
}

// GetControlConfig returns the control section.
func GetControlConfig() ControlConfig {
	return ControlConfig{
		Enabled: viper.GetBool("control.enabled"),
		Listen:  viper.GetString("control.listen"),
	}
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetAPIConfig returns the recording server settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		Enabled:   viper.GetBool("api.enabled"),
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
	}
}
