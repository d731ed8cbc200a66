// Package version reports the build version of the spoc binary.
package version

import (
	"runtime/debug"
	"strings"
)

// version is set at build time:
//
//	go build -ldflags "-X github.com/jayasaisrikar/spoc-agent/internal/version.version=v1.2.3"
var version = ""

// Get returns the current version, with whitespace trimmed. Without an
// ldflags override it falls back to the module version recorded in the
// build info, then to "dev".
func Get() string {
	if v := strings.TrimSpace(version); v != "" {
		return v
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return "dev"
}
