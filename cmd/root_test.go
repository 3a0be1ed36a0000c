package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optix-bridge/optix-bridge/internal/conf"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	root := RootCommand(&conf.Settings{})

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "replay", "identity", "version"})
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("debug"))
}

func TestVersionSkipsInitialization(t *testing.T) {
	settings := &conf.Settings{}
	root := RootCommand(settings)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", "/nonexistent/config.yaml", "version"})

	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "optix-bridge "))
	assert.Empty(t, settings.Ingest.Listen)
}
