//go:build !unix

package fs

import (
	"io/fs"

	"ustar-go/internal/ustar"
)

// ExtractStatData reports root ownership on platforms without Unix stat data.
func (m *OSFilesystem) ExtractStatData(info fs.FileInfo) (*ustar.StatData, error) {
	return &ustar.StatData{}, nil
}
