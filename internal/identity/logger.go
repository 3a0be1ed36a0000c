package identity

import "github.com/optix-bridge/optix-bridge/internal/logger"

// GetLogger returns the identity module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("identity")
}
