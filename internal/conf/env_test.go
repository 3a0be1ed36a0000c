package conf

import (
	"bytes"
	"io"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

func TestEnvValidators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		validate func(string) error
		value    string
		wantErr  bool
	}{
		{"bool true", validateEnvBool, "true", false},
		{"bool padded", validateEnvBool, " 0 ", false},
		{"bool yes", validateEnvBool, "yes", true},
		{"level debug", validateEnvLogLevel, "DEBUG", false},
		{"level verbose", validateEnvLogLevel, "verbose", true},
		{"hostport", validateEnvHostPort, "localhost:50052", false},
		{"hostport listen", validateEnvHostPort, ":50051", false},
		{"hostport missing port", validateEnvHostPort, "localhost", true},
		{"int positive", validateEnvPositiveInt, "30", false},
		{"int zero", validateEnvPositiveInt, "0", true},
		{"duration", validateEnvDuration, "1s", false},
		{"duration negative", validateEnvDuration, "-1s", true},
		{"duration bare number", validateEnvDuration, "5", true},
		{"threshold", validateEnvThreshold, "0.6", false},
		{"threshold high", validateEnvThreshold, "1.5", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.validate(tt.value)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvBindingsReportInvalidValues(t *testing.T) {
	t.Setenv("OPTIX_INGEST_QUEUESIZE", "-3")
	t.Cleanup(viper.Reset)

	err := bindEnvVars()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPTIX_INGEST_QUEUESIZE")
}

func TestEnvBindingsUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for _, b := range getEnvBindings() {
		assert.False(t, seen[b.EnvVar], "duplicate binding %s", b.EnvVar)
		seen[b.EnvVar] = true
	}
}
