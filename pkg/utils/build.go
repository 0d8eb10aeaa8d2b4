// Build information is injected through -ldflags, e.g.
//   go build -ldflags "-X github.com/nobletooth/parrot/pkg/utils.Version=v1.2.0" ./cmd/parrot
// CAUTION: This file shouldn't be removed or else the linker flags would have nothing to set.

package utils

import (
	"log/slog"
	"strconv"
	"time"
)

// devVersion is reported when the binary was built without a version, e.g. by `go test`.
const devVersion = "v0.0.0-dev"

var (
	TestMode   string // Should be true when running tests.
	IsTestMode bool
	Version    string
	Commit     string
	BuildTime  string
	StartTime  time.Time
)

func init() {
	StartTime = time.Now()

	// If build info is not set, make that clear.
	if Version == "" {
		Version = devVersion
	}
	if Commit == "" {
		Commit = "unknown"
	}
	if BuildTime == "" {
		BuildTime = "unknown"
	}
	if len(TestMode) > 0 {
		if isTestMode, err := strconv.ParseBool(TestMode); err == nil {
			IsTestMode = isTestMode
		} else {
			slog.Warn("Failed to parse TestMode build flag, defaulting to false.", "error", err)
		}
	}
}

// Uptime returns how long the process has been running.
func Uptime() time.Duration {
	return time.Since(StartTime)
}
