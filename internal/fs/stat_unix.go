//go:build unix

package fs

import (
	"fmt"
	"io/fs"
	"syscall"
	"time"

	"github.com/JesseWaas/fs-audit/internal/audit"
)

// fillStatData copies the Unix-specific stat attributes into record.
// Ctime here is the inode change time; the platform divergence (creation
// time on windows) is deliberately preserved in the record, not normalized.
func fillStatData(record *audit.FileRecord, info fs.FileInfo) error {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fmt.Errorf("cannot extract stat data: expected *syscall.Stat_t, got %T", info.Sys())
	}

	record.UID = uint32(stat.Uid)
	record.GID = uint32(stat.Gid)
	record.Atime = time.Unix(stat.Atim.Sec, stat.Atim.Nsec)
	record.Ctime = time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec)
	return nil
}
