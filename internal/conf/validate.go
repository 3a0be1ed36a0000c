// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		func(s *Settings) error { return validateIngestSettings(&s.Ingest) },
		func(s *Settings) error { return validateEmitterSettings(&s.Emitter) },
		func(s *Settings) error { return validateIdentitySettings(&s.Identity) },
		func(s *Settings) error { return validateTrackingSettings(&s.Tracking) },
		func(s *Settings) error { return validateProcessorSettings(&s.Processor) },
		func(s *Settings) error { return validateMQTTSettings(&s.MQTT) },
		func(s *Settings) error { return validateAPISettings(&s.API) },
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateIngestSettings(settings *IngestSettings) error {
	var errs []string

	if !settings.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		errs = append(errs, fmt.Sprintf("invalid listen address %q", settings.Listen))
	}
	if settings.QueueSize <= 0 {
		errs = append(errs, "queue size must be greater than 0")
	}
	if settings.PutTimeout <= 0 {
		errs = append(errs, "put timeout must be greater than 0")
	}
	if settings.MaxMessageMB <= 0 {
		errs = append(errs, "max message size must be greater than 0")
	}
	switch settings.Injector {
	case InjectorAppSrc:
		if settings.AppSrc.Width <= 0 || settings.AppSrc.Height <= 0 || settings.AppSrc.Framerate <= 0 {
			errs = append(errs, "appsrc width, height and framerate must be greater than 0")
		}
	case InjectorDiscard:
	default:
		errs = append(errs, fmt.Sprintf("unknown injector %q (want %s or %s)", settings.Injector, InjectorAppSrc, InjectorDiscard))
	}

	if len(errs) > 0 {
		return fmt.Errorf("ingest settings errors: %s", strings.Join(errs, ", "))
	}
	return nil
}

func validateEmitterSettings(settings *EmitterSettings) error {
	var errs []string

	if settings.Target == "" {
		errs = append(errs, "target must not be empty")
	}
	if settings.Timeout <= 0 {
		errs = append(errs, "timeout must be greater than 0")
	}
	if settings.Timeout > time.Minute {
		errs = append(errs, fmt.Sprintf("timeout %s is too long for a per-frame call", settings.Timeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("emitter settings errors: %s", strings.Join(errs, ", "))
	}
	return nil
}

func validateIdentitySettings(settings *IdentitySettings) error {
	var errs []string

	if settings.Threshold < -1 || settings.Threshold > 1 {
		errs = append(errs, fmt.Sprintf("threshold must be between -1 and 1, got %g", settings.Threshold))
	}
	switch settings.Backend {
	case BackendJSON:
		if settings.DBPath == "" {
			errs = append(errs, "dbpath must not be empty for the json backend")
		}
	case BackendSQLite:
		if settings.SQLitePath == "" {
			errs = append(errs, "sqlitepath must not be empty for the sqlite backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown backend %q (want %s or %s)", settings.Backend, BackendJSON, BackendSQLite))
	}

	if len(errs) > 0 {
		return fmt.Errorf("identity settings errors: %s", strings.Join(errs, ", "))
	}
	return nil
}

func validateTrackingSettings(settings *TrackingSettings) error {
	if settings.TTL < 0 {
		return fmt.Errorf("tracking ttl must not be negative")
	}
	if settings.TTL > 0 && settings.CleanupInterval <= 0 {
		return fmt.Errorf("tracking cleanup interval must be greater than 0 when ttl is set")
	}
	return nil
}

func validateProcessorSettings(settings *ProcessorSettings) error {
	if settings.QueueSize <= 0 {
		return fmt.Errorf("processor queue size must be greater than 0")
	}
	return nil
}

func validateMQTTSettings(settings *MQTTSettings) error {
	if !settings.Enabled {
		return nil
	}

	var errs []string
	if settings.Broker == "" {
		errs = append(errs, "broker must not be empty")
	}
	if settings.Topic == "" {
		errs = append(errs, "topic must not be empty")
	}
	if settings.QoS > 2 {
		errs = append(errs, fmt.Sprintf("qos must be 0, 1 or 2, got %d", settings.QoS))
	}

	if len(errs) > 0 {
		return fmt.Errorf("mqtt settings errors: %s", strings.Join(errs, ", "))
	}
	return nil
}

func validateAPISettings(settings *APISettings) error {
	if !settings.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		return fmt.Errorf("api settings errors: invalid listen address %q", settings.Listen)
	}
	return nil
}
