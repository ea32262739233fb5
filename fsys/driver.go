// Package fsys implements the filesystem operations: formatting and loading
// the backing image, path resolution, and the mkdir/create/unlink/list
// operations that keep the in-memory allocation table and directory state in
// step with the image.
package fsys

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/gabrielcbarbosa01/blockfs"
	"github.com/gabrielcbarbosa01/blockfs/dir"
	"github.com/gabrielcbarbosa01/blockfs/fat"
	"github.com/gabrielcbarbosa01/blockfs/image"
)

// Driver owns the in-memory mirror of the allocation table and the root
// directory, and keeps it consistent with the backing image. Every mutating
// operation loads the mirror if needed, applies all checks before touching
// any state, and flushes the changed blocks before returning success.
//
// A Driver is single-threaded by design: one logical client drives
// operations sequentially, and no two operations are ever in flight against
// the same image.
type Driver struct {
	img    *image.Image
	table  fat.Table
	root   *dir.Directory
	loaded bool
}

// New creates a driver over an image. No IO happens until the first
// operation.
func New(img *image.Image) *Driver {
	return &Driver{img: img}
}

// Format writes a fresh, empty filesystem: the table's own blocks reserved,
// the root block holding an empty directory and marked as a one-block chain,
// and every data block zero-filled. The driver is left loaded.
//
// Formatting an image that already holds a filesystem is destructive, so it
// fails with ErrExists unless `force` is set.
func (d *Driver) Format(force bool) error {
	if !force {
		formatted, err := d.imageLooksFormatted()
		if err != nil {
			return err
		}
		if formatted {
			return blockfs.ErrExists.WithMessage(
				"backing image already holds a filesystem; formatting would destroy it")
		}
	}

	table := fat.NewTable()
	table.Initialize()
	// The root directory is a well-formed one-block chain, same as any
	// subdirectory. Leaving its block free would let the allocator hand it
	// out.
	table[blockfs.RootDirBlock] = fat.EndOfChain

	root := &dir.Directory{}
	if err := d.img.Format(table, root); err != nil {
		d.loaded = false
		return err
	}

	d.table = table
	d.root = root
	d.loaded = true
	return nil
}

// imageLooksFormatted reports whether the backing image plausibly holds a
// filesystem already: it has the exact image size and the first table entry
// carries the reserved marker.
func (d *Driver) imageLooksFormatted() (bool, error) {
	size, err := d.img.Size()
	if err != nil {
		return false, err
	}
	if size != blockfs.ImageSize {
		return false, nil
	}

	raw := make([]byte, blockfs.BytesPerBlock)
	if err := d.img.ReadBlock(0, raw); err != nil {
		return false, err
	}
	return binary.LittleEndian.Uint16(raw) == fat.Reserved, nil
}

// Load mirrors the allocation table and root directory from the backing
// image. It fails with ErrNotInitialized if the image was never formatted and
// ErrMalformedRecord if the image is the wrong size or its metadata doesn't
// decode.
func (d *Driver) Load() error {
	size, err := d.img.Size()
	if err != nil {
		return err
	}
	if size == 0 {
		return blockfs.ErrNotInitialized
	}
	if size != blockfs.ImageSize {
		return blockfs.ErrMalformedRecord.WithMessage(
			fmt.Sprintf("backing image is %d bytes, want %d", size, blockfs.ImageSize))
	}

	table, err := d.img.ReadTable()
	if err != nil {
		return err
	}
	root, err := d.img.ReadDirectory(blockfs.RootDirBlock)
	if err != nil {
		return err
	}

	d.table = table
	d.root = root
	d.loaded = true
	return nil
}

// ensureLoaded performs the implicit load every operation requires.
func (d *Driver) ensureLoaded() error {
	if d.loaded {
		return nil
	}
	return d.Load()
}

// commit is the standard persistence step after a mutation. If the flush
// fails the mirror may diverge from the image, so the driver drops back to
// unloaded and the next operation re-mirrors from disk.
func (d *Driver) commit() error {
	if err := d.img.Flush(); err != nil {
		d.loaded = false
		return err
	}
	return nil
}

// resolve splits a path into the directory that contains its leaf, the block
// that directory lives in, and the leaf name. The path must be absolute;
// every intermediate segment must name an existing subdirectory. The root
// path "/" resolves to the root directory with an empty leaf.
//
// The same walk serves every operation; the root is not a special case
// beyond being the directory stored at a well-known block.
func (d *Driver) resolve(path string) (*dir.Directory, uint16, string, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, 0, "", blockfs.ErrInvalidPath.WithMessage(
			fmt.Sprintf("%q must start with '/'", path))
	}

	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return d.root, blockfs.RootDirBlock, "", nil
	}

	segments := strings.Split(trimmed, "/")
	for _, segment := range segments {
		if segment == "" {
			return nil, 0, "", blockfs.ErrInvalidPath.WithMessage(
				fmt.Sprintf("%q has an empty segment", path))
		}
	}

	current := d.root
	currentBlock := uint16(blockfs.RootDirBlock)
	for _, segment := range segments[:len(segments)-1] {
		slot, found := current.Find(segment)
		if !found || !current[slot].IsDir() {
			return nil, 0, "", blockfs.ErrNotFound.WithMessage(
				fmt.Sprintf("no directory %q in path %q", segment, path))
		}

		nextBlock := current[slot].FirstBlock
		next, err := d.img.ReadDirectory(nextBlock)
		if err != nil {
			return nil, 0, "", err
		}
		current = next
		currentBlock = nextBlock
	}

	return current, currentBlock, segments[len(segments)-1], nil
}

// Mkdir creates an empty subdirectory at the given path. The parent chain
// must already exist.
func (d *Driver) Mkdir(path string) error {
	return d.createEntry(path, dir.KindDirectory)
}

// Create creates an empty file at the given path. The allocated block is
// reserved for future content writes; nothing is stored in it.
func (d *Driver) Create(path string) error {
	return d.createEntry(path, dir.KindFile)
}

func (d *Driver) createEntry(path string, kind dir.Kind) error {
	if err := d.ensureLoaded(); err != nil {
		return err
	}

	parent, parentBlock, leaf, err := d.resolve(path)
	if err != nil {
		return err
	}
	if leaf == "" {
		return blockfs.ErrInvalidPath.WithMessage(
			fmt.Sprintf("%q has no name to create", path))
	}
	if len(leaf) > dir.MaxNameLength {
		return blockfs.ErrNameTooLong.WithMessage(
			fmt.Sprintf("%q is %d bytes; the limit is %d",
				leaf, len(leaf), dir.MaxNameLength))
	}
	if _, found := parent.Find(leaf); found {
		return blockfs.ErrExists.WithMessage(strconv.Quote(path))
	}

	slot, err := parent.FirstEmptySlot()
	if err != nil {
		return err
	}
	freeBlock, err := d.table.FindFreeBlock()
	if err != nil {
		return err
	}

	// All checks passed; mutate the mirror, then persist the changed
	// regions.
	d.table[freeBlock] = fat.EndOfChain
	parent[slot] = dir.Entry{Name: leaf, Kind: kind, FirstBlock: freeBlock}

	if err := d.img.WriteTable(d.table); err != nil {
		d.loaded = false
		return err
	}
	if err := d.img.WriteDirectory(parentBlock, parent); err != nil {
		d.loaded = false
		return err
	}
	if kind == dir.KindDirectory {
		// Zero-fill the new block as 32 empty entries.
		if err := d.img.WriteDirectory(freeBlock, &dir.Directory{}); err != nil {
			d.loaded = false
			return err
		}
	}
	return d.commit()
}

// Unlink removes the file or subdirectory at the given path, freeing its
// block chain. A subdirectory must be empty.
func (d *Driver) Unlink(path string) error {
	if err := d.ensureLoaded(); err != nil {
		return err
	}

	parent, parentBlock, leaf, err := d.resolve(path)
	if err != nil {
		return err
	}
	if leaf == "" {
		return blockfs.ErrInvalidPath.WithMessage("cannot unlink the root directory")
	}

	slot, found := parent.Find(leaf)
	if !found {
		return blockfs.ErrNotFound.WithMessage(strconv.Quote(path))
	}
	entry := parent[slot]

	if entry.IsDir() {
		child, err := d.img.ReadDirectory(entry.FirstBlock)
		if err != nil {
			return err
		}
		if !child.IsEmpty() {
			return blockfs.ErrNotEmpty.WithMessage(strconv.Quote(path))
		}
	}

	// FreeChain validates the whole chain before freeing anything, so a
	// corrupt chain fails here with the table untouched.
	if _, err := d.table.FreeChain(entry.FirstBlock); err != nil {
		return err
	}
	parent[slot] = dir.Entry{}

	if err := d.img.WriteTable(d.table); err != nil {
		d.loaded = false
		return err
	}
	if err := d.img.WriteDirectory(parentBlock, parent); err != nil {
		d.loaded = false
		return err
	}
	return d.commit()
}

// List returns a snapshot of the non-empty entries of the directory at the
// given path, in slot order. "/" lists the root. Read-only.
func (d *Driver) List(path string) ([]dir.Entry, error) {
	if err := d.ensureLoaded(); err != nil {
		return nil, err
	}

	parent, _, leaf, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	if leaf == "" {
		return parent.Entries(), nil
	}

	slot, found := parent.Find(leaf)
	if !found || !parent[slot].IsDir() {
		return nil, blockfs.ErrNotFound.WithMessage(
			fmt.Sprintf("no directory %s", strconv.Quote(path)))
	}

	directory, err := d.img.ReadDirectory(parent[slot].FirstBlock)
	if err != nil {
		return nil, err
	}
	return directory.Entries(), nil
}

// TableStats returns block counts per allocation table category, computed
// from the in-memory table. Read-only.
func (d *Driver) TableStats() (fat.Stats, error) {
	if err := d.ensureLoaded(); err != nil {
		return fat.Stats{}, err
	}
	return d.table.Stats(), nil
}
