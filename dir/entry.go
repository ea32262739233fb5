// Package dir implements the fixed-width directory entry record and the
// one-block, 32-slot directory built from it.
package dir

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/noxer/bytewriter"

	"github.com/gabrielcbarbosa01/blockfs"
)

// Kind is the one-byte tag describing what a directory entry names.
type Kind uint8

const (
	KindEmpty     Kind = 0x00
	KindFile      Kind = 0x01
	KindDirectory Kind = 0x02
)

const (
	// MaxNameLength is the longest name an entry can store.
	MaxNameLength = 25

	// EntrySize is the size of one encoded entry: 25 bytes blank-padded name,
	// 1 byte kind, 2 bytes first block, 4 bytes size. Chosen so that entries
	// tile evenly into a block.
	EntrySize = 32
)

// Entry describes one file or subdirectory: its name, what it is, the block
// its chain starts at, and its content length in bytes. FirstBlock and Size
// are meaningless when Kind is KindEmpty.
type Entry struct {
	Name       string
	Kind       Kind
	FirstBlock uint16
	Size       uint32
}

// IsEmpty reports whether the entry slot is unoccupied.
func (e Entry) IsEmpty() bool {
	return e.Kind == KindEmpty
}

// IsDir reports whether the entry names a subdirectory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDirectory
}

// Encode renders the entry in its on-disk form. Names longer than
// [MaxNameLength] bytes are truncated; callers wanting an error instead must
// check the length first.
func (e Entry) Encode() []byte {
	record := make([]byte, EntrySize)
	writer := bytewriter.New(record)

	var name [MaxNameLength]byte
	copy(name[:], bytes.Repeat([]byte{' '}, MaxNameLength))
	copy(name[:], e.Name)

	writer.Write(name[:])
	binary.Write(writer, binary.LittleEndian, uint8(e.Kind))
	binary.Write(writer, binary.LittleEndian, e.FirstBlock)
	binary.Write(writer, binary.LittleEndian, e.Size)
	return record
}

// DecodeEntry is the inverse of [Entry.Encode]. The input must be exactly
// [EntrySize] bytes and carry a known kind tag. Trailing name padding is
// trimmed; zero-filled blocks decode as empty entries.
func DecodeEntry(data []byte) (Entry, error) {
	if len(data) != EntrySize {
		return Entry{}, blockfs.ErrMalformedRecord.WithMessage(
			fmt.Sprintf("directory entry must be %d bytes, got %d",
				EntrySize, len(data)))
	}

	kind := Kind(data[MaxNameLength])
	switch kind {
	case KindEmpty, KindFile, KindDirectory:
	default:
		return Entry{}, blockfs.ErrMalformedRecord.WithMessage(
			fmt.Sprintf("unknown entry kind tag 0x%02X", uint8(kind)))
	}

	name := bytes.TrimRight(data[:MaxNameLength], " \x00")
	return Entry{
		Name:       string(name),
		Kind:       kind,
		FirstBlock: binary.LittleEndian.Uint16(data[MaxNameLength+1:]),
		Size:       binary.LittleEndian.Uint32(data[MaxNameLength+3:]),
	}, nil
}
