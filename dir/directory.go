package dir

import (
	"fmt"

	"github.com/gabrielcbarbosa01/blockfs"
)

// SlotsPerDirectory is the fixed number of entries in every directory. A
// directory occupies exactly one block.
const SlotsPerDirectory = blockfs.BytesPerBlock / EntrySize

// Directory is one directory's contents: an ordered, fixed-capacity array of
// entries backed by exactly one block. The zero value is an empty directory.
type Directory [SlotsPerDirectory]Entry

// Find returns the slot index of the non-empty entry with the given name.
// Names compare byte-exact and case-sensitively.
func (d *Directory) Find(name string) (int, bool) {
	for i, entry := range d {
		if !entry.IsEmpty() && entry.Name == name {
			return i, true
		}
	}
	return -1, false
}

// FirstEmptySlot returns the index of the first unoccupied slot, or
// ErrDirectoryFull when every slot is taken.
func (d *Directory) FirstEmptySlot() (int, error) {
	for i, entry := range d {
		if entry.IsEmpty() {
			return i, nil
		}
	}
	return -1, blockfs.ErrDirectoryFull
}

// IsEmpty reports whether every slot is unoccupied.
func (d *Directory) IsEmpty() bool {
	for _, entry := range d {
		if !entry.IsEmpty() {
			return false
		}
	}
	return true
}

// Entries returns a snapshot of the non-empty entries in slot order.
func (d *Directory) Entries() []Entry {
	var entries []Entry
	for _, entry := range d {
		if !entry.IsEmpty() {
			entries = append(entries, entry)
		}
	}
	return entries
}

// Serialize renders the directory in its on-disk form: all slots encoded back
// to back, filling one block.
func (d *Directory) Serialize() []byte {
	block := make([]byte, 0, blockfs.BytesPerBlock)
	for _, entry := range d {
		block = append(block, entry.Encode()...)
	}
	return block
}

// DecodeDirectory is the inverse of [Directory.Serialize]. The input must be
// exactly one block.
func DecodeDirectory(data []byte) (*Directory, error) {
	if len(data) != blockfs.BytesPerBlock {
		return nil, blockfs.ErrMalformedRecord.WithMessage(
			fmt.Sprintf("directory block must be %d bytes, got %d",
				blockfs.BytesPerBlock, len(data)))
	}

	var directory Directory
	for i := range directory {
		entry, err := DecodeEntry(data[i*EntrySize : (i+1)*EntrySize])
		if err != nil {
			return nil, err
		}
		directory[i] = entry
	}
	return &directory, nil
}
