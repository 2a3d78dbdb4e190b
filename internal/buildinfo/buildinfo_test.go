package buildinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrent(t *testing.T) {
	t.Parallel()

	info := Current()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, BuildDate, info.BuildDate)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
}

func TestInfoString(t *testing.T) {
	t.Parallel()

	info := Info{
		Version:   "v1.2.0",
		BuildDate: "2026-08-25",
		GoVersion: "go1.26",
		OS:        "linux",
		Arch:      "amd64",
	}
	assert.Equal(t, "v1.2.0 (built 2026-08-25, go1.26 linux/amd64)", info.String())
}
