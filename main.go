package main

import (
	"fmt"
	"os"

	"github.com/optix-bridge/optix-bridge/cmd"
	"github.com/optix-bridge/optix-bridge/internal/conf"
	"github.com/optix-bridge/optix-bridge/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	settings := &conf.Settings{}
	rootCmd := cmd.RootCommand(settings)

	err := rootCmd.Execute()
	if closeErr := logger.Global().Close(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", closeErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
