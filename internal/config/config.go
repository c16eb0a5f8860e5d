package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileName is the name of the JSON config file looked up in the config dir.
const FileName = "geomemo.cfg.json"

// EnvPrefix prefixes environment overrides, e.g. GEOMEMO_STORAGE_TYPE.
const EnvPrefix = "GEOMEMO"

// MemoryConfig holds in-memory storage backend settings
type MemoryConfig struct {
	SnapshotPath   string `json:"snapshotPath" mapstructure:"snapshotPath"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds sqlite storage backend settings
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
}

// ProximityConfig holds watcher settings
type ProximityConfig struct {
	ThresholdKm float64 `json:"thresholdKm" mapstructure:"thresholdKm"`
	Title       string  `json:"title" mapstructure:"title"`
}

// LocationConfig holds location subscription options
type LocationConfig struct {
	Accuracy     string        `json:"accuracy" mapstructure:"accuracy"`
	MinInterval  time.Duration `json:"minInterval" mapstructure:"minInterval"`
	MinDistanceM float64       `json:"minDistanceM" mapstructure:"minDistanceM"`
}

// InfluxConfig holds transition recorder settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// GraylogConfig holds GELF log sink settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// SetDefaults registers default values. Load calls it; it is exported so
// commands can run without a config file.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")
	viper.SetDefault("ids.format", "millis")

	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./geomemo.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "0s")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.memory.snapshotPath", "")
	viper.SetDefault("storage.memory.compressOutput", false)

	viper.SetDefault("proximity.thresholdKm", 0.1)
	viper.SetDefault("proximity.title", "Nearby marker")

	viper.SetDefault("location.accuracy", "high")
	viper.SetDefault("location.minInterval", "0s")
	viper.SetDefault("location.minDistanceM", 0.0)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "geomemo")
	viper.SetDefault("influx.bucket", "proximity")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A .env file in the
// same directory is loaded into the environment first; variables that are
// already set keep their value. GEOMEMO_* variables override the file.
func Load(configDir string) error {
	SetDefaults()

	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetStorageConfig returns the storage backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
		Memory: MemoryConfig{
			SnapshotPath:   viper.GetString("storage.memory.snapshotPath"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
	}
}

// GetProximityConfig returns the watcher configuration.
func GetProximityConfig() ProximityConfig {
	return ProximityConfig{
		ThresholdKm: viper.GetFloat64("proximity.thresholdKm"),
		Title:       viper.GetString("proximity.title"),
	}
}

// GetLocationConfig returns the location subscription options.
func GetLocationConfig() LocationConfig {
	return LocationConfig{
		Accuracy:     viper.GetString("location.accuracy"),
		MinInterval:  viper.GetDuration("location.minInterval"),
		MinDistanceM: viper.GetFloat64("location.minDistanceM"),
	}
}

// GetInfluxConfig returns the InfluxDB recorder configuration.
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

// GetGraylogConfig returns the GELF sink configuration.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
