// Package version exposes build metadata for the codepulse binary.
package version

import (
	"runtime/debug"
)

// Set at build time via -ldflags, e.g.
//
//	-X github.com/Sumatoshi-tech/codepulse/pkg/version.Version=v1.2.3
var (
	// Version is the release tag of the running binary.
	Version = "dev"

	// Commit is the VCS revision the binary was built from.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// InitBinaryVersion fills in metadata from the embedded build info when the
// ldflags were not set, so go-install'ed binaries still report a revision.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	if Commit != "unknown" {
		return
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			Commit = setting.Value
		case "vcs.time":
			Date = setting.Value
		}
	}
}
