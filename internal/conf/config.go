// config.go: settings struct for optix-bridge and the functions that load it.
package conf

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/optix-bridge/optix-bridge/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// LogFileSettings controls the JSON log file.
type LogFileSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Level   string `yaml:"level"`
}

// LoggingSettings controls the central logger.
type LoggingSettings struct {
	Level        string            `yaml:"level"`    // default level for all modules
	Timezone     string            `yaml:"timezone"` // "Local", "UTC" or IANA name
	File         LogFileSettings   `yaml:"file"`
	ModuleLevels map[string]string `yaml:"modulelevels"` // per-module overrides, e.g. ingest: debug
}

// AppSrcSettings describes the raw frames pushed into the pipeline's appsrc element.
type AppSrcSettings struct {
	Pipeline  string `yaml:"pipeline"` // gst-launch description, must contain an appsrc named "src"
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Framerate int    `yaml:"framerate"`
}

// IngestSettings configures the frame ingest RPC server.
type IngestSettings struct {
	Enabled      bool           `yaml:"enabled"`
	Listen       string         `yaml:"listen"`
	QueueSize    int            `yaml:"queuesize"`
	PutTimeout   time.Duration  `yaml:"puttimeout"`
	MaxMessageMB int            `yaml:"maxmessagemb"`
	Injector     string         `yaml:"injector"` // appsrc or discard
	AppSrc       AppSrcSettings `yaml:"appsrc"`
}

// EmitterSettings configures the downstream ResultReceiver client.
type EmitterSettings struct {
	Target  string        `yaml:"target"`
	Timeout time.Duration `yaml:"timeout"`
}

// IdentitySettings configures the reference embedding store.
type IdentitySettings struct {
	DBPath     string  `yaml:"dbpath"`
	Threshold  float64 `yaml:"threshold"`
	Backend    string  `yaml:"backend"` // json or sqlite
	SQLitePath string  `yaml:"sqlitepath"`
}

// TrackingSettings configures the per-track identity cache.
type TrackingSettings struct {
	TTL             time.Duration `yaml:"ttl"` // 0 keeps entries for the life of the process
	CleanupInterval time.Duration `yaml:"cleanupinterval"`
}

// AnnotateSettings selects the object class that gets annotated.
type AnnotateSettings struct {
	ClassID    int    `yaml:"classid"`
	ClassLabel string `yaml:"classlabel"`
}

// ProcessorSettings configures the detection batch processor.
type ProcessorSettings struct {
	QueueSize int `yaml:"queuesize"`
}

// MQTTSettings configures the optional metadata mirror.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"clientid"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
}

// APISettings configures the admin HTTP API.
type APISettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Settings contains all configuration options for optix-bridge.
type Settings struct {
	Debug     bool              `yaml:"debug"`
	Logging   LoggingSettings   `yaml:"logging"`
	Ingest    IngestSettings    `yaml:"ingest"`
	Emitter   EmitterSettings   `yaml:"emitter"`
	Identity  IdentitySettings  `yaml:"identity"`
	Tracking  TrackingSettings  `yaml:"tracking"`
	Annotate  AnnotateSettings  `yaml:"annotate"`
	Processor ProcessorSettings `yaml:"processor"`
	MQTT      MQTTSettings      `yaml:"mqtt"`
	API       APISettings       `yaml:"api"`
}

// LoggingConfig converts the logging section for logger.NewCentralLogger.
func (s *Settings) LoggingConfig() *logger.LoggingConfig {
	level := s.Logging.Level
	if s.Debug {
		level = string(logger.LogLevelDebug)
	}

	cfg := &logger.LoggingConfig{
		Timezone:     s.Logging.Timezone,
		DefaultLevel: level,
		Console:      &logger.ConsoleOutput{Enabled: true, Level: level},
		ModuleLevels: s.Logging.ModuleLevels,
	}
	if s.Logging.File.Enabled {
		fileLevel := s.Logging.File.Level
		if fileLevel == "" {
			fileLevel = level
		}
		cfg.FileOutput = &logger.FileOutput{
			Enabled: true,
			Path:    s.Logging.File.Path,
			Level:   fileLevel,
		}
	}
	return cfg
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configFile (or the first config.yaml found in the default paths, or the
// embedded defaults) plus OPTIX_* environment variables, then validates the result.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(configFile); err != nil {
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

// initViper sets defaults and environment bindings, then reads the configuration file.
func initViper(configFile string) error {
	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		// Bad environment values are reported but the process can still start;
		// validation below catches anything that would break the bridge.
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	for _, path := range GetDefaultConfigPaths() {
		viper.AddConfigPath(path)
	}

	err := viper.ReadInConfig()
	if err == nil {
		return nil
	}

	var configFileNotFoundError viper.ConfigFileNotFoundError
	if !errors.As(err, &configFileNotFoundError) {
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	GetLogger().Info("no config.yaml found, using built-in defaults",
		logger.Any("search_paths", GetDefaultConfigPaths()))
	return viper.ReadConfig(bytes.NewReader(DefaultConfig()))
}

// DefaultConfig returns the embedded config.yaml.
func DefaultConfig() []byte {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		// embedded at build time; missing means a broken build
		panic(fmt.Sprintf("embedded config.yaml missing: %v", err))
	}
	return data
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// RedactedYAML renders settings as YAML with credentials masked.
func RedactedYAML(settings *Settings) ([]byte, error) {
	redacted := *settings
	if redacted.MQTT.Password != "" {
		redacted.MQTT.Password = "********"
	}

	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return nil, fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return data, nil
}
