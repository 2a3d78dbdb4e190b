// Package buildinfo carries build-time metadata injected at link time,
// kept separate from user configuration.
package buildinfo

import (
	"fmt"
	"runtime"
)

// Version and BuildDate are overridden via -ldflags on release builds:
//
//	go build -ldflags "-X .../internal/buildinfo.Version=v1.2.0 -X .../internal/buildinfo.BuildDate=2026-08-25"
//
// Development builds report the defaults.
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// Info is a snapshot of the running binary's build metadata.
type Info struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// Current returns the build metadata for the running binary.
func Current() Info {
	return Info{
		Version:   Version,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// String renders the info on one line, the shape --version prints.
func (i Info) String() string {
	return fmt.Sprintf("%s (built %s, %s %s/%s)", i.Version, i.BuildDate, i.GoVersion, i.OS, i.Arch)
}
