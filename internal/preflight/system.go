package preflight

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

const (
	// MinDiskSpaceBytes is the free space below which indexing refuses to start.
	MinDiskSpaceBytes = 100 << 20

	// LowDiskSpaceBytes is the free space below which a growing index with
	// its WAL may fill the disk.
	LowDiskSpaceBytes = 1 << 30

	// MinFileDescriptors is the limit below which watching a large Maildir
	// may run out of descriptors.
	MinFileDescriptors = 1024
)

// CheckDiskSpace reports free space on the filesystem holding the data directory.
func (c *Checker) CheckDiskSpace(dataDir string) CheckResult {
	result := CheckResult{Name: "disk_space", Required: true}

	var fs unix.Statfs_t
	if err := unix.Statfs(dataDir, &fs); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot stat %s: %v", dataDir, err)
		return result
	}

	free := fs.Bavail * uint64(fs.Bsize)
	result.Message = humanize.IBytes(free) + " free"
	switch {
	case free < MinDiskSpaceBytes:
		result.Status = StatusFail
		result.Details = "at least " + humanize.IBytes(MinDiskSpaceBytes) + " is needed to build the index"
	case free < LowDiskSpaceBytes:
		result.Status = StatusWarn
		result.Details = "the index grows with the mailbox; free space before indexing large folders"
	default:
		result.Status = StatusPass
	}
	return result
}

// CheckFileDescriptors warns when the descriptor limit is low. Watch mode
// falls back to polling, so a low limit is never fatal.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{Name: "file_descriptors"}

	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot read descriptor limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("soft limit %d", limit.Cur)
	if limit.Cur < MinFileDescriptors {
		result.Status = StatusWarn
		result.Details = fmt.Sprintf("watch may fall back to polling; raise it with 'ulimit -n %d'", limit.Max)
		return result
	}
	result.Status = StatusPass
	return result
}
