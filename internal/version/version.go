package version

import (
	"fmt"
	"runtime"

	"github.com/smazurov/smartcam/internal/device"
)

var (
	// Version is the application version, set via ldflags during build.
	Version = "dev"
	// GitCommit is the git commit hash, set via ldflags during build.
	GitCommit = "unknown"
	// BuildDate is the build timestamp, set via ldflags during build.
	BuildDate = "unknown"
)

// Info contains version and build metadata.
type Info struct {
	Version       string `json:"version"`
	GitCommit     string `json:"git_commit"`
	BuildDate     string `json:"build_date"`
	Driver        string `json:"driver"`
	DriverVersion string `json:"driver_version"`
	GoVersion     string `json:"go_version"`
	Platform      string `json:"platform"`
}

// Get returns version and build information.
func Get() Info {
	return Info{
		Version:       Version,
		GitCommit:     GitCommit,
		BuildDate:     BuildDate,
		Driver:        device.DriverName,
		DriverVersion: FormatDriverVersion(device.DriverVersion),
		GoVersion:     runtime.Version(),
		Platform:      fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// FormatDriverVersion renders a packed capability version as major.minor.patch.
func FormatDriverVersion(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>16, (v>>8)&0xff, v&0xff)
}

// String returns the application version string.
func String() string {
	return Version + " (" + GitCommit + ")"
}
