// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "OPTIX_DEBUG", validateEnvBool},
		{"logging.level", "OPTIX_LOGGING_LEVEL", validateEnvLogLevel},

		// Ingest
		{"ingest.enabled", "OPTIX_INGEST_ENABLED", validateEnvBool},
		{"ingest.listen", "OPTIX_INGEST_LISTEN", validateEnvHostPort},
		{"ingest.queuesize", "OPTIX_INGEST_QUEUESIZE", validateEnvPositiveInt},
		{"ingest.puttimeout", "OPTIX_INGEST_PUTTIMEOUT", validateEnvDuration},
		{"ingest.injector", "OPTIX_INGEST_INJECTOR", nil},
		{"ingest.appsrc.pipeline", "OPTIX_INGEST_APPSRC_PIPELINE", nil},

		// Emitter
		{"emitter.target", "OPTIX_EMITTER_TARGET", validateEnvHostPort},
		{"emitter.timeout", "OPTIX_EMITTER_TIMEOUT", validateEnvDuration},

		// Identity
		{"identity.dbpath", "OPTIX_IDENTITY_DBPATH", nil},
		{"identity.threshold", "OPTIX_IDENTITY_THRESHOLD", validateEnvThreshold},
		{"identity.backend", "OPTIX_IDENTITY_BACKEND", nil},

		// Tracking
		{"tracking.ttl", "OPTIX_TRACKING_TTL", validateEnvDuration},

		// MQTT
		{"mqtt.enabled", "OPTIX_MQTT_ENABLED", validateEnvBool},
		{"mqtt.broker", "OPTIX_MQTT_BROKER", nil},
		{"mqtt.username", "OPTIX_MQTT_USERNAME", nil},
		{"mqtt.password", "OPTIX_MQTT_PASSWORD", nil},

		// API
		{"api.enabled", "OPTIX_API_ENABLED", validateEnvBool},
		{"api.listen", "OPTIX_API_LISTEN", validateEnvHostPort},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	bindings := getEnvBindings()
	var warnings []string

	for _, binding := range bindings {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// Environment variable validation functions

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "trace", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("log level must be one of trace, debug, info, warn, error, got '%s'", value)
	}
}

func validateEnvHostPort(value string) error {
	if _, _, err := net.SplitHostPort(value); err != nil {
		return fmt.Errorf("expected host:port: %w", err)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("must be greater than 0, got %d", n)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("duration must not be negative, got %s", d)
	}
	return nil
}

func validateEnvThreshold(value string) error {
	threshold, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid threshold: %w", err)
	}
	if threshold < -1 || threshold > 1 {
		return fmt.Errorf("threshold must be between -1 and 1, got %g", threshold)
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars()
}
