// Package fat implements the allocation table: one 16-bit entry per block,
// tracking whether the block is free, reserved for metadata, the end of a
// chain, or pointing at the next block of a chain.
package fat

import (
	"encoding/binary"
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/noxer/bytewriter"

	"github.com/gabrielcbarbosa01/blockfs"
)

const (
	// Free marks an unused block.
	Free = uint16(0x0000)
	// Reserved marks a block permanently owned by filesystem metadata (the
	// table's own blocks).
	Reserved = uint16(0x7FFE)
	// EndOfChain marks the last block of a file or directory's chain.
	EndOfChain = uint16(0x7FFF)
)

// SerializedSize is the size of the table as stored at the front of the
// image: one little-endian uint16 per block.
const SerializedSize = blockfs.TotalBlocks * 2

// Table is the in-memory allocation table, an owned fixed-length arena
// indexed by block number. Entries are either one of the marker values above
// or the index of the next block in a chain.
type Table []uint16

// NewTable returns an all-free table with one entry per block.
func NewTable() Table {
	return make(Table, blockfs.TotalBlocks)
}

// Initialize resets the table for a fresh image: the table's own blocks are
// marked reserved, everything else free.
func (t Table) Initialize() {
	for i := range t {
		if i < blockfs.TableBlocks {
			t[i] = Reserved
		} else {
			t[i] = Free
		}
	}
}

// FindFreeBlock returns the lowest-numbered free block. The ascending
// first-fit scan is part of the contract: it determines which block each
// successive allocation receives.
func (t Table) FindFreeBlock() (uint16, error) {
	for i, entry := range t {
		if entry == Free {
			return uint16(i), nil
		}
	}
	return 0, blockfs.ErrNoSpace
}

// FreeChain walks the chain starting at `first` and marks every visited block
// free, including the terminating end-of-chain block. It returns the number
// of blocks freed.
//
// The walk is validated before anything is freed: a pointer outside the
// table, a hop into a free or reserved entry, or a cycle fails with
// ErrCorruptChain and leaves the table untouched.
func (t Table) FreeChain(first uint16) (int, error) {
	visited := bitmap.Bitmap(bitmap.NewSlice(len(t)))

	count := 0
	current := first
	for {
		if int(current) >= len(t) {
			return 0, blockfs.ErrCorruptChain.WithMessage(
				fmt.Sprintf("block %d not in [0, %d)", current, len(t)))
		}
		if visited.Get(int(current)) {
			return 0, blockfs.ErrCorruptChain.WithMessage(
				fmt.Sprintf("cycle detected at block %d", current))
		}
		visited.Set(int(current), true)
		count++

		next := t[current]
		if next == EndOfChain {
			break
		}
		if next == Free || next == Reserved {
			return 0, blockfs.ErrCorruptChain.WithMessage(
				fmt.Sprintf("block %d points at a %s entry",
					current, entryStateName(next)))
		}
		current = next
	}

	current = first
	for i := 0; i < count; i++ {
		next := t[current]
		t[current] = Free
		current = next
	}
	return count, nil
}

// Serialize renders the table in its on-disk form: entries written in block
// order as little-endian uint16.
func (t Table) Serialize() []byte {
	buffer := make([]byte, SerializedSize)
	writer := bytewriter.New(buffer)
	for _, entry := range t {
		binary.Write(writer, binary.LittleEndian, entry)
	}
	return buffer
}

// DeserializeTable is the inverse of [Table.Serialize]. The input must be
// exactly [SerializedSize] bytes.
func DeserializeTable(data []byte) (Table, error) {
	if len(data) != SerializedSize {
		return nil, blockfs.ErrMalformedRecord.WithMessage(
			fmt.Sprintf("allocation table must be %d bytes, got %d",
				SerializedSize, len(data)))
	}

	table := NewTable()
	for i := range table {
		table[i] = binary.LittleEndian.Uint16(data[i*2:])
	}
	return table, nil
}

// Stats holds per-category block counts. Reserved + Used + Free == Total.
type Stats struct {
	Total    int
	Reserved int
	// Used counts blocks belonging to some chain, i.e. end-of-chain entries
	// plus next-pointer entries.
	Used int
	Free int
}

// Stats computes category counts from the in-memory table.
func (t Table) Stats() Stats {
	stats := Stats{Total: len(t)}
	for _, entry := range t {
		switch entry {
		case Free:
			stats.Free++
		case Reserved:
			stats.Reserved++
		default:
			stats.Used++
		}
	}
	return stats
}

func entryStateName(entry uint16) string {
	switch entry {
	case Free:
		return "free"
	case Reserved:
		return "reserved"
	case EndOfChain:
		return "end-of-chain"
	}
	return "chained"
}
