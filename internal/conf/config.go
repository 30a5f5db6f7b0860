// config.go: settings struct and functions to load and save the reachsync configuration.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig contains settings for a rotating service log file.
type LogConfig struct {
	Enabled bool   // true to enable file logging
	Path    string // path to log file
}

// MainSettings contains top level application settings.
type MainSettings struct {
	Name string    // name of this node, used in notifications
	Log  LogConfig // main log settings
}

// SourceSettings configures the whitewater database client that serves as
// the authoritative reach source.
type SourceSettings struct {
	BaseURL        string        // base URL of the reach detail JSON endpoint
	TraceURL       string        // base URL of the hydrology tracing services
	Timeout        time.Duration // per-request timeout
	MaxRetries     int           // bounded retries per fetch
	RequestsPerSec float64       // rate limit against the source site
	Debug          bool          // true to enable debug mode
}

// LayerSettings configures one hosted target feature layer.
type LayerSettings struct {
	URL string // feature service layer endpoint
}

// TargetSettings configures the hosted feature services holding the line and
// centroid datasets.
type TargetSettings struct {
	Token     string        // feature service access token
	Line      LayerSettings // reach line layer
	Centroid  LayerSettings // reach centroid layer
	Timeout   time.Duration // per-request timeout
	SchemaTTL time.Duration // how long cached layer schemas stay valid
	Debug     bool          // true to enable debug mode
}

// SyncSettings configures the batch orchestrator.
type SyncSettings struct {
	Concurrency int      // worker pool size
	StageOnly   bool     // narrow payloads to gauge stage fields
	NotifyURLs  []string // shoutrrr URLs notified on batch completion
}

// OutputSettings configures the run-history datastore.
type OutputSettings struct {
	SQLite struct {
		Enabled bool   // true to persist batch reports
		Path    string // path to sqlite database
	}
}

// Settings contains all runtime settings for reachsync.
type Settings struct {
	Debug bool // true to enable debug output

	Main   MainSettings
	Source SourceSettings
	Target TargetSettings
	Sync   SyncSettings
	Output OutputSettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a new
// Settings instance and stores it as the active configuration.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AddConfigPath(".")
	if configDir, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(filepath.Join(configDir, "reachsync"))
	}

	viper.SetEnvPrefix("reachsync")
	viper.AutomaticEnv()

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return fmt.Errorf("error getting user config dir: %w", err)
	}
	configPath := filepath.Join(configDir, "reachsync", "config.yaml")

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(getDefaultConfig()), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes the settings to a YAML configuration file. It
// overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write through a temporary file so a crash mid-write cannot leave a
	// truncated config behind.
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
