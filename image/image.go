// Package image reads and writes the backing image: the persistent byte
// layout holding the serialized allocation table, the root directory, and all
// data blocks.
//
// The image sits on any io.ReadWriteSeeker and caches blocks in memory:
// reads load blocks on demand, writes land in the cache and are marked dirty,
// and Flush persists exactly the dirty blocks. Every operation in the fsys
// package brackets its mutations with a Flush, which is the commit step.
package image

import (
	"fmt"
	"io"

	"github.com/boljen/go-bitmap"

	"github.com/gabrielcbarbosa01/blockfs"
	"github.com/gabrielcbarbosa01/blockfs/dir"
	"github.com/gabrielcbarbosa01/blockfs/fat"
)

// Image is a block-addressed view of the backing storage.
type Image struct {
	stream io.ReadWriteSeeker
	data   []byte
	loaded bitmap.Bitmap
	dirty  bitmap.Bitmap
}

// Wrap creates an Image over existing storage. No IO happens until a block is
// read or flushed.
func Wrap(stream io.ReadWriteSeeker) *Image {
	return &Image{
		stream: stream,
		data:   make([]byte, blockfs.ImageSize),
		loaded: bitmap.Bitmap(bitmap.NewSlice(blockfs.TotalBlocks)),
		dirty:  bitmap.Bitmap(bitmap.NewSlice(blockfs.TotalBlocks)),
	}
}

// Size returns the current size of the backing stream in bytes. A fresh,
// never-formatted file is 0 bytes; a valid image is exactly
// [blockfs.ImageSize] bytes.
func (img *Image) Size() (int64, error) {
	end, err := img.stream.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, blockfs.ErrIOFailed.Wrap(err)
	}
	return end, nil
}

func checkBlockNumber(block uint16) error {
	if int(block) >= blockfs.TotalBlocks {
		return blockfs.ErrIOFailed.WithMessage(
			fmt.Sprintf("block %d not in [0, %d)", block, blockfs.TotalBlocks))
	}
	return nil
}

func (img *Image) blockSlice(block uint16) []byte {
	start := int(block) * blockfs.BytesPerBlock
	return img.data[start : start+blockfs.BytesPerBlock]
}

// ReadBlock fills `buffer` with the contents of one block, loading it from
// the stream if it isn't cached yet. `buffer` must be one block long.
func (img *Image) ReadBlock(block uint16, buffer []byte) error {
	if err := checkBlockNumber(block); err != nil {
		return err
	}
	if len(buffer) != blockfs.BytesPerBlock {
		return blockfs.ErrIOFailed.WithMessage(
			fmt.Sprintf("buffer must be %d bytes, got %d",
				blockfs.BytesPerBlock, len(buffer)))
	}

	if !img.loaded.Get(int(block)) {
		if err := img.fetch(block); err != nil {
			return err
		}
	}
	copy(buffer, img.blockSlice(block))
	return nil
}

// WriteBlock replaces the contents of one block in the cache and marks it
// dirty. The change reaches the stream on the next Flush.
func (img *Image) WriteBlock(block uint16, data []byte) error {
	if err := checkBlockNumber(block); err != nil {
		return err
	}
	if len(data) != blockfs.BytesPerBlock {
		return blockfs.ErrIOFailed.WithMessage(
			fmt.Sprintf("block write must be %d bytes, got %d",
				blockfs.BytesPerBlock, len(data)))
	}

	copy(img.blockSlice(block), data)
	img.loaded.Set(int(block), true)
	img.dirty.Set(int(block), true)
	return nil
}

// fetch loads one block from the stream into the cache and marks it clean.
func (img *Image) fetch(block uint16) error {
	offset := int64(block) * blockfs.BytesPerBlock
	if _, err := img.stream.Seek(offset, io.SeekStart); err != nil {
		return blockfs.ErrIOFailed.Wrap(err)
	}
	if _, err := io.ReadFull(img.stream, img.blockSlice(block)); err != nil {
		return blockfs.ErrIOFailed.WithMessage(
			fmt.Sprintf("failed to load block %d: %s", block, err.Error()))
	}
	img.loaded.Set(int(block), true)
	img.dirty.Set(int(block), false)
	return nil
}

// Flush writes every dirty block to the stream and marks it clean. Blocks
// are written in ascending order.
func (img *Image) Flush() error {
	for block := 0; block < blockfs.TotalBlocks; block++ {
		if !img.dirty.Get(block) {
			continue
		}

		offset := int64(block) * blockfs.BytesPerBlock
		if _, err := img.stream.Seek(offset, io.SeekStart); err != nil {
			return blockfs.ErrIOFailed.Wrap(err)
		}
		if _, err := img.stream.Write(img.blockSlice(uint16(block))); err != nil {
			return blockfs.ErrIOFailed.WithMessage(
				fmt.Sprintf("failed to flush block %d: %s", block, err.Error()))
		}
		img.dirty.Set(block, false)
	}
	return nil
}

// ReadTable reads and decodes the allocation table region.
func (img *Image) ReadTable() (fat.Table, error) {
	raw := make([]byte, fat.SerializedSize)
	for i := 0; i < blockfs.TableBlocks; i++ {
		start := i * blockfs.BytesPerBlock
		err := img.ReadBlock(uint16(i), raw[start:start+blockfs.BytesPerBlock])
		if err != nil {
			return nil, err
		}
	}
	return fat.DeserializeTable(raw)
}

// WriteTable serializes the table into the allocation table region.
func (img *Image) WriteTable(table fat.Table) error {
	raw := table.Serialize()
	for i := 0; i < blockfs.TableBlocks; i++ {
		start := i * blockfs.BytesPerBlock
		err := img.WriteBlock(uint16(i), raw[start:start+blockfs.BytesPerBlock])
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadDirectory reads one block and decodes it as a directory. The root
// directory lives at [blockfs.RootDirBlock] and is read the same way as any
// subdirectory block.
func (img *Image) ReadDirectory(block uint16) (*dir.Directory, error) {
	raw := make([]byte, blockfs.BytesPerBlock)
	if err := img.ReadBlock(block, raw); err != nil {
		return nil, err
	}
	return dir.DecodeDirectory(raw)
}

// WriteDirectory encodes a directory into one block, overwriting it in place.
func (img *Image) WriteDirectory(block uint16, directory *dir.Directory) error {
	return img.WriteBlock(block, directory.Serialize())
}

// Format writes a complete fresh image: the given table, the given root
// directory, and zero-filled data blocks. This is the only way to create the
// backing image from nothing. Formatting is destructive; callers are
// responsible for refusing to clobber an existing image.
func (img *Image) Format(table fat.Table, root *dir.Directory) error {
	if err := img.WriteTable(table); err != nil {
		return err
	}
	if err := img.WriteDirectory(blockfs.RootDirBlock, root); err != nil {
		return err
	}

	zeroes := make([]byte, blockfs.BytesPerBlock)
	for block := blockfs.FirstDataBlock; block < blockfs.TotalBlocks; block++ {
		if err := img.WriteBlock(uint16(block), zeroes); err != nil {
			return err
		}
	}
	return img.Flush()
}
