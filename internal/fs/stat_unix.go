//go:build unix

package fs

import (
	"fmt"
	"io/fs"
	"syscall"

	"ustar-go/internal/ustar"
)

// ExtractStatData extracts Unix ownership from a FileInfo.
func (m *OSFilesystem) ExtractStatData(info fs.FileInfo) (*ustar.StatData, error) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil, fmt.Errorf("cannot extract stat data: expected *syscall.Stat_t, got %T", info.Sys())
	}

	return &ustar.StatData{
		UID: int64(stat.Uid),
		GID: int64(stat.Gid),
	}, nil
}
