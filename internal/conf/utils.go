package conf

import (
	"os"
	"path/filepath"
)

const (
	// InjectorAppSrc pushes frames into a GStreamer appsrc element.
	InjectorAppSrc = "appsrc"
	// InjectorDiscard validates and counts frames without a pipeline.
	InjectorDiscard = "discard"

	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml, most specific first.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "optix-bridge"))
	}

	return append(paths, "/etc/optix-bridge")
}
