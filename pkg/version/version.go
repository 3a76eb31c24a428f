package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var Version string

// Get returns the release version baked into the binaries
func Get() string {
	return strings.TrimSpace(Version)
}
