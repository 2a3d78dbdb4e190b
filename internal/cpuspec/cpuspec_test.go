package cpuspec

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterminePerformanceCores(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		brandName string
		want      int
	}{
		{"intel 12th gen i9", "12th Gen Intel(R) Core(TM) i9-12900K", 8},
		{"intel 13th gen i5", "13th Gen Intel(R) Core(TM) i5-13600KF", 6},
		{"intel 14th gen i3", "Intel(R) Core(TM) i3-14100", 4},
		{"intel core ultra", "Intel(R) Core(TM) Ultra 7 Processor 265K", 8},
		{"apple m1", "Apple M1", 4},
		{"apple m2 max", "Apple M2 Max", 12},
		{"apple m4 pro", "Apple M4 Pro", 8},
		{"older intel", "Intel(R) Core(TM) i7-9700K CPU @ 3.60GHz", 0},
		{"amd", "AMD Ryzen 9 5950X 16-Core Processor", 0},
		{"empty", "", 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, determinePerformanceCores(tc.brandName))
		})
	}
}

func TestIngestWorkersLeavesOneCoreFree(t *testing.T) {
	t.Parallel()

	spec := CPUSpec{BrandName: "test"}
	workers := spec.IngestWorkers(0)

	assert.GreaterOrEqual(t, workers, 1)
	assert.LessOrEqual(t, workers, runtime.NumCPU())
	if runtime.NumCPU() > 1 {
		assert.Equal(t, runtime.NumCPU()-1, workers)
	}
}

func TestIngestWorkersBoundedByFileCount(t *testing.T) {
	t.Parallel()

	spec := CPUSpec{BrandName: "test"}
	assert.Equal(t, 1, spec.IngestWorkers(1), "one file needs one worker")
	if runtime.NumCPU() >= 4 {
		assert.Equal(t, 2, spec.IngestWorkers(2))
	}
}

func TestIngestWorkersHonorsPerformanceCores(t *testing.T) {
	t.Parallel()

	spec := CPUSpec{BrandName: "Apple M2 Max", PerformanceCores: 12}
	workers := spec.IngestWorkers(1000)

	// Either P-cores-1 on a big machine or NumCPU-1 when the test host
	// has fewer cores than the brand string claims.
	assert.GreaterOrEqual(t, workers, 1)
	assert.LessOrEqual(t, workers, 11)
}
