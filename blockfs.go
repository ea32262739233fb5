// Package blockfs models a FAT-style file system stored inside a single host
// file. The image is a fixed grid of 1024-byte blocks: the first four hold the
// allocation table, the fifth holds the root directory, and the rest hold file
// data or subdirectory blocks.
package blockfs

const (
	// BytesPerBlock is the size of every block in the image.
	BytesPerBlock = 1024

	// TotalBlocks is the number of blocks in the image.
	TotalBlocks = 2048

	// TableBlocks is the number of blocks at the start of the image reserved
	// for the serialized allocation table: 2048 entries of two bytes each.
	TableBlocks = 4

	// RootDirBlock is the block holding the root directory.
	RootDirBlock = TableBlocks

	// FirstDataBlock is the first block available for file data and
	// subdirectories.
	FirstDataBlock = RootDirBlock + 1

	// ImageSize is the exact size of a valid backing image, in bytes.
	ImageSize = BytesPerBlock * TotalBlocks
)
