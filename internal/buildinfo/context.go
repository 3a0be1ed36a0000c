// Package buildinfo contains build-time metadata separate from user configuration
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// Set with -ldflags "-X github.com/optix-bridge/optix-bridge/internal/buildinfo.version=v1.2.3".
var (
	version   string
	buildDate string
	gitCommit string
)

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string

	// GitCommit is the VCS revision the binary was built from
	GitCommit string
}

// NewContext creates a new build context
func NewContext(version, buildDate, gitCommit string) *Context {
	return &Context{
		Version:   version,
		BuildDate: buildDate,
		GitCommit: gitCommit,
	}
}

// Current returns the metadata linked into this binary. The commit falls back to
// the VCS revision recorded by the Go toolchain.
func Current() *Context {
	ctx := NewContext(version, buildDate, gitCommit)
	if ctx.GitCommit != "" {
		return ctx
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				ctx.GitCommit = s.Value
			case "vcs.time":
				if ctx.BuildDate == "" {
					ctx.BuildDate = s.Value
				}
			}
		}
	}
	return ctx
}

// GetVersion returns the version or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// GetGitCommit returns the commit, shortened to 12 characters, or UnknownValue.
func (c *Context) GetGitCommit() string {
	if c == nil || c.GitCommit == "" {
		return UnknownValue
	}
	if len(c.GitCommit) > 12 {
		return c.GitCommit[:12]
	}
	return c.GitCommit
}

// String renders a single version line.
func (c *Context) String() string {
	return fmt.Sprintf("optix-bridge %s (commit %s, built %s, %s %s/%s)",
		c.GetVersion(), c.GetGitCommit(), c.GetBuildDate(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
