package observability

import "github.com/optix-bridge/optix-bridge/internal/logger"

// GetLogger returns the observability module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("observability")
}
