package ustar

import (
	"fmt"
	"strconv"
)

// Size constants of the UStar record format.
const (
	BlockSize = 512 // size of every header, content and trailer block
	NameSize  = 100 // width of the path and link_target fields
)

// field is a fixed-width region of a header block.
type field struct {
	name   string
	offset int
	size   int
}

// Header layout. Bytes from 257 to the end of the block are left zero.
var (
	fieldPath       = field{"path", 0, NameSize}
	fieldMode       = field{"mode", 100, 8}
	fieldUID        = field{"owner_id", 108, 8}
	fieldGID        = field{"group_id", 116, 8}
	fieldSize       = field{"size", 124, 12}
	fieldModTime    = field{"mtime", 136, 12}
	fieldChecksum   = field{"checksum", 148, 8}
	fieldTypeFlag   = field{"type_flag", 156, 1}
	fieldLinkTarget = field{"link_target", 157, NameSize}
)

// maxOctal returns the largest value that fits in f: width-1 octal digits,
// the last byte being reserved for the terminator.
func (f field) maxOctal() int64 {
	return 1<<(3*(f.size-1)) - 1
}

// Limits of the numeric fields.
var (
	MaxMode    = fieldMode.maxOctal()    // 07777777
	MaxID      = fieldUID.maxOctal()     // 07777777
	MaxSize    = fieldSize.maxOctal()    // 077777777777, just under 8 GiB
	MaxModTime = fieldModTime.maxOctal() // 077777777777
)

// HeaderBlock is the on-wire form of a Metadata value.
type HeaderBlock [BlockSize]byte

// Encode renders m into a finalized header block. It fails with a
// *PathTooLongError or *FieldOverflowError when a value does not fit,
// and never truncates.
func Encode(m *Metadata) (HeaderBlock, error) {
	var h HeaderBlock

	if !m.Type.Valid() {
		return h, &InvalidFieldError{Path: m.Path, Field: fieldTypeFlag.name, Reason: fmt.Sprintf("unknown type flag %q", byte(m.Type))}
	}
	if m.LinkTarget != "" && m.Type != TypeLink && m.Type != TypeSymlink {
		return h, &InvalidFieldError{Path: m.Path, Field: fieldLinkTarget.name, Reason: fmt.Sprintf("set on %s entry", m.Type)}
	}

	if err := h.putString(fieldPath, m.Path); err != nil {
		return h, err
	}
	numeric := []struct {
		f field
		v int64
	}{
		{fieldMode, m.Mode},
		{fieldUID, m.UID},
		{fieldGID, m.GID},
		{fieldSize, m.Size},
		{fieldModTime, m.ModTime},
	}
	for _, n := range numeric {
		if err := h.putOctal(n.f, n.v, m.Path); err != nil {
			return h, err
		}
	}
	h[fieldTypeFlag.offset] = byte(m.Type)
	if err := h.putString(fieldLinkTarget, m.LinkTarget); err != nil {
		return h, err
	}

	// The checksum covers the whole block with its own field read as spaces,
	// so it is rendered last.
	blank := h.slice(fieldChecksum)
	for i := range blank {
		blank[i] = ' '
	}
	sum := h.sum()
	copy(blank, fmt.Sprintf("%06o\x00 ", sum))

	return h, nil
}

// Bytes returns the block as a slice.
func (h *HeaderBlock) Bytes() []byte { return h[:] }

// Type returns the stored type flag.
func (h *HeaderBlock) Type() TypeFlag { return TypeFlag(h[fieldTypeFlag.offset]) }

// Checksum computes the header checksum: the unsigned sum of all bytes
// with the checksum field counted as eight ASCII spaces.
func (h *HeaderBlock) Checksum() int64 {
	var sum int64
	for i, b := range h {
		if i >= fieldChecksum.offset && i < fieldChecksum.offset+fieldChecksum.size {
			b = ' '
		}
		sum += int64(b)
	}
	return sum
}

// StoredChecksum parses the value held in the checksum field.
func (h *HeaderBlock) StoredChecksum() (int64, error) {
	return parseOctal(fieldChecksum, h.slice(fieldChecksum))
}

func (h *HeaderBlock) sum() int64 {
	var sum int64
	for _, b := range h {
		sum += int64(b)
	}
	return sum
}

func (h *HeaderBlock) slice(f field) []byte {
	return h[f.offset : f.offset+f.size]
}

// putString writes s left-justified and NUL-padded. A value using the full
// width carries no terminator.
func (h *HeaderBlock) putString(f field, s string) error {
	if len(s) > f.size {
		return &PathTooLongError{Field: f.name, Path: s, Limit: f.size}
	}
	copy(h.slice(f), s)
	return nil
}

// putOctal writes v as width-1 zero-padded octal digits followed by NUL.
func (h *HeaderBlock) putOctal(f field, v int64, path string) error {
	if v < 0 || v > f.maxOctal() {
		return &FieldOverflowError{Path: path, Field: f.name, Value: v, Max: f.maxOctal()}
	}
	digits := strconv.FormatInt(v, 8)
	dst := h.slice(f)
	pad := f.size - 1 - len(digits)
	for i := 0; i < pad; i++ {
		dst[i] = '0'
	}
	copy(dst[pad:], digits)
	dst[f.size-1] = 0
	return nil
}
