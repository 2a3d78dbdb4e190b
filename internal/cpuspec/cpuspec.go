// Package cpuspec sizes the ingest worker pool from CPU topology.
// On hybrid architectures checksum workers should stay on performance
// cores; efficiency cores roughly halve hashing throughput per worker.
package cpuspec

import (
	"regexp"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// CPUSpec contains information about CPU specifications.
type CPUSpec struct {
	BrandName        string
	PerformanceCores int
}

// intelPCores maps Intel hybrid desktop model numbers to their
// performance core counts (12th-14th gen and Core Ultra).
var intelPCores = map[string]int{
	// 12th gen
	"12900": 8, "12700": 8, "12600": 6, "12400": 6, "12100": 4,
	// 13th gen
	"13900": 8, "13700": 8, "13600": 6, "13500": 6, "13400": 6, "13100": 4,
	// 14th gen
	"14900": 8, "14700": 8, "14600": 6, "14400": 6, "14100": 4,
	// Core Ultra
	"285": 8, "265": 8, "255": 8, "235": 6, "225": 4,
}

// applePCores maps Apple Silicon chips to their performance core counts.
var applePCores = map[string]int{
	"m1": 4, "m1 pro": 8, "m1 max": 8, "m1 ultra": 16,
	"m2": 4, "m2 pro": 8, "m2 max": 12, "m2 ultra": 24,
	"m3": 4, "m3 pro": 8, "m3 max": 12, "m3 ultra": 24,
	"m4": 6, "m4 pro": 8, "m4 max": 12,
}

var (
	intelBrandRegex = regexp.MustCompile(`intel.*(?:core.*i[3579]-(\d{5})|core.*ultra\s+[579]\s+(?:processor\s+)?(\d{3}))`)
	appleBrandRegex = regexp.MustCompile(`(?i)apple\s+(m[1234]\s*(?:pro|max|ultra)?)\s*`)
)

// GetCPUSpec returns CPU specifications including the number of
// performance cores, or zero P-cores when the topology is unknown.
func GetCPUSpec() CPUSpec {
	brandName := cpuid.CPU.BrandName
	return CPUSpec{
		BrandName:        brandName,
		PerformanceCores: determinePerformanceCores(brandName),
	}
}

// usableCores returns how many cores checksum workers should occupy:
// performance cores on hybrid parts, all logical cores otherwise,
// never more than the CPUs actually available (VMs, cgroup limits).
func (c CPUSpec) usableCores() int {
	available := runtime.NumCPU()

	if c.PerformanceCores > 0 && c.PerformanceCores < available {
		return c.PerformanceCores
	}
	return available
}

// IngestWorkers returns the worker count for an ingest run over
// fileCount files: one core is left for the batching and commit path,
// and there is never more than one worker per file.
func (c CPUSpec) IngestWorkers(fileCount int) int {
	workers := c.usableCores() - 1
	if workers < 1 {
		workers = 1
	}
	if fileCount > 0 && fileCount < workers {
		workers = fileCount
	}
	return workers
}

func determinePerformanceCores(brandName string) int {
	brandName = strings.ToLower(brandName)

	if matches := intelBrandRegex.FindStringSubmatch(brandName); len(matches) > 1 {
		model := matches[1]
		if model == "" {
			model = matches[2]
		}
		if cores, ok := intelPCores[model]; ok {
			return cores
		}
	}

	if matches := appleBrandRegex.FindStringSubmatch(brandName); len(matches) > 1 {
		chip := strings.ToLower(strings.TrimSpace(matches[1]))
		if cores, ok := applePCores[chip]; ok {
			return cores
		}
	}

	return 0
}
