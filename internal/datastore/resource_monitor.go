// Package datastore - host resource checks for the embedded backend.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/syrinxlabs/syrinx/internal/errors"
)

// Free-space floors per operation class, in MB. Ingest runs in WAL mode,
// so headroom covers the WAL growing alongside the main file.
const (
	MinDiskSpaceMigration = 200 // schema migration may rewrite tables
	MinDiskSpaceBulk      = 100 // bulk batches plus WAL growth
	MinDiskSpaceDefault   = 50
)

var operationDiskRequirements = map[string]uint64{
	"migration":   MinDiskSpaceMigration,
	"bulk_insert": MinDiskSpaceBulk,
	"ingest":      MinDiskSpaceBulk,
}

// ResourceSnapshot is a point-in-time view of the host resources the
// catalog depends on.
type ResourceSnapshot struct {
	Timestamp    time.Time        `json:"timestamp"`
	DiskSpace    DiskSpaceInfo    `json:"disk_space"`
	DatabaseFile DatabaseFileInfo `json:"database_file"`
	SystemMemory MemoryInfo       `json:"system_memory"`
	ProcessInfo  ProcessInfo      `json:"process_info"`
}

// DiskSpaceInfo reports free space on the partition holding the catalog.
type DiskSpaceInfo struct {
	Path           string `json:"path"`
	AvailableBytes uint64 `json:"available_bytes"`
}

// DatabaseFileInfo reports the catalog file and its sqlite sidecars.
type DatabaseFileInfo struct {
	Path          string    `json:"path"`
	SizeBytes     int64     `json:"size_bytes"`
	Permissions   string    `json:"permissions"`
	LastModified  time.Time `json:"last_modified"`
	JournalExists bool      `json:"journal_exists"`
	JournalSize   int64     `json:"journal_size"`
	WALExists     bool      `json:"wal_exists"`
	WALSize       int64     `json:"wal_size"`
	SHMExists     bool      `json:"shm_exists"`
	SHMSize       int64     `json:"shm_size"`
}

// MemoryInfo reports system memory.
type MemoryInfo struct {
	TotalBytes     uint64  `json:"total_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsedBytes      uint64  `json:"used_bytes"`
	UsedPercent    float64 `json:"used_percent"`
}

// ProcessInfo reports this process's own footprint.
type ProcessInfo struct {
	PID              int   `json:"pid"`
	ResidentMemoryMB int64 `json:"resident_memory_mb"`
	VirtualMemoryMB  int64 `json:"virtual_memory_mb"`
	GoroutineCount   int   `json:"goroutine_count"`
	HeapAllocMB      int64 `json:"heap_alloc_mb"`
	HeapSysMB        int64 `json:"heap_sys_mb"`
}

// CaptureResourceSnapshot creates a best-effort snapshot of system resources.
// Individual probes that fail are logged and left zeroed rather than failing
// the whole snapshot.
func CaptureResourceSnapshot(dbPath string) *ResourceSnapshot {
	snapshot := &ResourceSnapshot{
		Timestamp: time.Now(),
	}

	dir := filepath.Dir(dbPath)
	if free, err := getDiskFreeSpace(dir); err == nil {
		snapshot.DiskSpace = DiskSpaceInfo{Path: dir, AvailableBytes: free}
	} else {
		getLogger().Warn("Failed to capture disk space info", "path", dir, "error", err)
	}

	if dbInfo, err := captureDatabaseFileInfo(dbPath); err == nil {
		snapshot.DatabaseFile = dbInfo
	} else {
		getLogger().Warn("Failed to capture database file info", "error", err)
	}

	if memInfo, err := captureMemoryInfo(); err == nil {
		snapshot.SystemMemory = memInfo
	} else {
		getLogger().Warn("Failed to capture memory info", "error", err)
	}

	snapshot.ProcessInfo = captureProcessInfo()

	return snapshot
}

// captureDatabaseFileInfo stats the catalog file and its sidecars. A
// missing main file is fine; the store creates it on open.
func captureDatabaseFileInfo(dbPath string) (DatabaseFileInfo, error) {
	info := DatabaseFileInfo{
		Path: dbPath,
	}

	if stat, err := os.Stat(dbPath); err == nil {
		info.SizeBytes = stat.Size()
		info.LastModified = stat.ModTime()
		info.Permissions = stat.Mode().String()
	} else if !os.IsNotExist(err) {
		return info, errors.New(err).
			Component("datastore").
			Category(errors.CategoryFileIO).
			Context("operation", "stat_database_file").
			Context("db_path", dbPath).
			Build()
	}

	info.JournalExists, info.JournalSize = statSidecar(dbPath + "-journal")
	info.WALExists, info.WALSize = statSidecar(dbPath + "-wal")
	info.SHMExists, info.SHMSize = statSidecar(dbPath + "-shm")

	return info, nil
}

func statSidecar(path string) (exists bool, size int64) {
	if stat, err := os.Stat(path); err == nil {
		return true, stat.Size()
	}
	return false, 0
}

func captureMemoryInfo() (MemoryInfo, error) {
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		return MemoryInfo{}, fmt.Errorf("virtual memory stats: %w", err)
	}

	return MemoryInfo{
		TotalBytes:     vmStat.Total,
		AvailableBytes: vmStat.Available,
		UsedBytes:      vmStat.Used,
		UsedPercent:    vmStat.UsedPercent,
	}, nil
}

func captureProcessInfo() ProcessInfo {
	info := ProcessInfo{
		PID:            os.Getpid(),
		GoroutineCount: runtime.NumGoroutine(),
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	info.HeapAllocMB = int64(memStats.HeapAlloc / 1024 / 1024)
	info.HeapSysMB = int64(memStats.HeapSys / 1024 / 1024)

	// Platform memory info via gopsutil; best effort
	if proc, err := process.NewProcess(int32(info.PID)); err == nil { //nolint:gosec // G115: PIDs fit int32 on all supported platforms
		if procMem, err := proc.MemoryInfo(); err == nil && procMem != nil {
			info.ResidentMemoryMB = int64(procMem.RSS / 1024 / 1024) //nolint:gosec // G115: memory in MB always fits int64
			info.VirtualMemoryMB = int64(procMem.VMS / 1024 / 1024)  //nolint:gosec // G115: memory in MB always fits int64
		}
	}

	return info
}

// ValidateResourceAvailability rejects the named operation when the
// catalog's partition is below the operation's free-space floor. Only
// used for the embedded backend; remote databases manage their own
// storage. An unreadable free-space probe does not block the operation.
func ValidateResourceAvailability(dbPath, operation string) error {
	snapshot := CaptureResourceSnapshot(dbPath)

	minFreeMB := minimumDiskSpaceFor(operation)
	freeSpaceMB := snapshot.DiskSpace.AvailableBytes / 1024 / 1024

	if snapshot.DiskSpace.AvailableBytes > 0 && freeSpaceMB < minFreeMB {
		return errors.Newf("insufficient disk space for operation '%s': %dMB free (minimum: %dMB required)",
			operation, freeSpaceMB, minFreeMB).
			Component("datastore").
			Category(errors.CategoryDiskUsage).
			Priority(errors.PriorityCritical).
			Context("operation", operation).
			Context("disk_free_mb", freeSpaceMB).
			Context("disk_required_mb", minFreeMB).
			Context("path", snapshot.DiskSpace.Path).
			Build()
	}

	return nil
}

func minimumDiskSpaceFor(operation string) uint64 {
	if minSpace, ok := operationDiskRequirements[strings.ToLower(operation)]; ok {
		return minSpace
	}
	return MinDiskSpaceDefault
}

// FormatResourceSummary renders the snapshot as one log-friendly line.
func (r *ResourceSnapshot) FormatResourceSummary() string {
	return fmt.Sprintf("Resources: Disk=%dMB free, Memory=%dMB free, DB=%dMB, Process=%dMB heap",
		r.DiskSpace.AvailableBytes/1024/1024,
		r.SystemMemory.AvailableBytes/1024/1024,
		r.DatabaseFile.SizeBytes/1024/1024,
		r.ProcessInfo.HeapAllocMB,
	)
}
