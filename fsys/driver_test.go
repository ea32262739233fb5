package fsys_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/gabrielcbarbosa01/blockfs"
	"github.com/gabrielcbarbosa01/blockfs/dir"
	"github.com/gabrielcbarbosa01/blockfs/fsys"
	"github.com/gabrielcbarbosa01/blockfs/image"
	blockfstest "github.com/gabrielcbarbosa01/blockfs/testing"
)

func TestFormatFreshImage(t *testing.T) {
	driver := blockfstest.NewFormattedDriver(t)

	entries, err := driver.List("/")
	require.NoError(t, err)
	assert.Empty(t, entries, "a fresh filesystem must list nothing")

	stats, err := driver.TableStats()
	require.NoError(t, err)
	assert.Equal(t, blockfs.TotalBlocks, stats.Total)
	assert.Equal(t, blockfs.TableBlocks, stats.Reserved)
	// The root directory's own one-block chain is the only used block.
	assert.Equal(t, 1, stats.Used)
	assert.Equal(t, blockfs.TotalBlocks-blockfs.TableBlocks-1, stats.Free)
}

func TestFormatRefusesExistingImage(t *testing.T) {
	driver := blockfstest.NewFormattedDriver(t)
	require.NoError(t, driver.Create("/keep"))

	err := driver.Format(false)
	assert.ErrorIs(t, err, blockfs.ErrExists)

	// The filesystem is untouched after the refusal.
	entries, err := driver.List("/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep", entries[0].Name)

	// Forcing wipes it.
	require.NoError(t, driver.Format(true))
	entries, err = driver.List("/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadUnformattedImage(t *testing.T) {
	driver := fsys.New(image.Wrap(blockfstest.NewEmptyStream(t)))
	assert.ErrorIs(t, driver.Load(), blockfs.ErrNotInitialized)
}

func TestLoadWrongSizeImage(t *testing.T) {
	stream := bytesextra.NewReadWriteSeeker(make([]byte, blockfs.ImageSize/2))
	driver := fsys.New(image.Wrap(stream))
	assert.ErrorIs(t, driver.Load(), blockfs.ErrMalformedRecord)
}

// The first-fit allocator hands out the lowest data blocks in order.
func TestCreateAllocatesAscendingBlocks(t *testing.T) {
	driver := blockfstest.NewFormattedDriver(t)

	require.NoError(t, driver.Create("/first"))
	require.NoError(t, driver.Create("/second"))
	require.NoError(t, driver.Mkdir("/third"))

	entries, err := driver.List("/")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.EqualValues(t, blockfs.FirstDataBlock, entries[0].FirstBlock)
	assert.EqualValues(t, blockfs.FirstDataBlock+1, entries[1].FirstBlock)
	assert.EqualValues(t, blockfs.FirstDataBlock+2, entries[2].FirstBlock)
}

// Freed blocks are reused, lowest first.
func TestUnlinkMakesBlockReusable(t *testing.T) {
	driver := blockfstest.NewFormattedDriver(t)

	require.NoError(t, driver.Create("/a"))
	require.NoError(t, driver.Create("/b"))
	require.NoError(t, driver.Unlink("/a"))
	require.NoError(t, driver.Create("/c"))

	entries, err := driver.List("/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// "/c" got "/a"'s old slot and old block.
	assert.Equal(t, "c", entries[0].Name)
	assert.EqualValues(t, blockfs.FirstDataBlock, entries[0].FirstBlock)
	assert.Equal(t, "b", entries[1].Name)
}

func TestCreateDuplicate(t *testing.T) {
	driver := blockfstest.NewFormattedDriver(t)

	require.NoError(t, driver.Create("/a"))
	assert.ErrorIs(t, driver.Create("/a"), blockfs.ErrExists)
	// A directory with the same name collides too.
	assert.ErrorIs(t, driver.Mkdir("/a"), blockfs.ErrExists)
}

func TestCreateMissingIntermediate(t *testing.T) {
	driver := blockfstest.NewFormattedDriver(t)
	assert.ErrorIs(t, driver.Create("/b/c"), blockfs.ErrNotFound)
	assert.ErrorIs(t, driver.Mkdir("/b/c"), blockfs.ErrNotFound)
}

// A file in the middle of a path is not a directory to descend into.
func TestCreateIntermediateIsFile(t *testing.T) {
	driver := blockfstest.NewFormattedDriver(t)
	require.NoError(t, driver.Create("/f"))
	assert.ErrorIs(t, driver.Create("/f/x"), blockfs.ErrNotFound)
}

func TestInvalidPaths(t *testing.T) {
	driver := blockfstest.NewFormattedDriver(t)

	assert.ErrorIs(t, driver.Mkdir("relative"), blockfs.ErrInvalidPath)
	assert.ErrorIs(t, driver.Create(""), blockfs.ErrInvalidPath)
	assert.ErrorIs(t, driver.Mkdir("/"), blockfs.ErrInvalidPath)
	assert.ErrorIs(t, driver.Mkdir("/a//b"), blockfs.ErrInvalidPath)
	assert.ErrorIs(t, driver.Unlink("/"), blockfs.ErrInvalidPath)
}

func TestNameLengthLimit(t *testing.T) {
	driver := blockfstest.NewFormattedDriver(t)

	longest := strings.Repeat("n", dir.MaxNameLength)
	require.NoError(t, driver.Create("/"+longest))

	tooLong := strings.Repeat("n", dir.MaxNameLength+1)
	assert.ErrorIs(t, driver.Create("/"+tooLong), blockfs.ErrNameTooLong)
	assert.ErrorIs(t, driver.Mkdir("/"+tooLong), blockfs.ErrNameTooLong)
}

func TestMkdirNestedDescent(t *testing.T) {
	driver := blockfstest.NewFormattedDriver(t)

	require.NoError(t, driver.Mkdir("/docs"))
	require.NoError(t, driver.Mkdir("/docs/work"))
	require.NoError(t, driver.Create("/docs/work/todo"))

	entries, err := driver.List("/docs/work")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "todo", entries[0].Name)
	assert.Equal(t, dir.KindFile, entries[0].Kind)

	entries, err = driver.List("/docs")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "work", entries[0].Name)
	assert.Equal(t, dir.KindDirectory, entries[0].Kind)

	// The same name is fine in a different directory.
	require.NoError(t, driver.Create("/todo"))
}

func TestUnlinkNonEmptyDirectory(t *testing.T) {
	driver := blockfstest.NewFormattedDriver(t)

	require.NoError(t, driver.Mkdir("/d"))
	require.NoError(t, driver.Create("/d/f"))

	assert.ErrorIs(t, driver.Unlink("/d"), blockfs.ErrNotEmpty)

	require.NoError(t, driver.Unlink("/d/f"))
	require.NoError(t, driver.Unlink("/d"))

	entries, err := driver.List("/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnlinkMissing(t *testing.T) {
	driver := blockfstest.NewFormattedDriver(t)
	assert.ErrorIs(t, driver.Unlink("/nope"), blockfs.ErrNotFound)
	assert.ErrorIs(t, driver.Unlink("/a/b"), blockfs.ErrNotFound)
}

func TestListFileFails(t *testing.T) {
	driver := blockfstest.NewFormattedDriver(t)
	require.NoError(t, driver.Create("/f"))
	_, err := driver.List("/f")
	assert.ErrorIs(t, err, blockfs.ErrNotFound)
}

func TestListMissingDirectory(t *testing.T) {
	driver := blockfstest.NewFormattedDriver(t)
	_, err := driver.List("/nope")
	assert.ErrorIs(t, err, blockfs.ErrNotFound)
}

// Reserved + Used + Free == Total holds across every successful mutation, and
// Used moves by exactly one block per operation (every chain here is one
// block long).
func TestSpaceAccounting(t *testing.T) {
	driver := blockfstest.NewFormattedDriver(t)

	usedBlocks := func() int {
		stats, err := driver.TableStats()
		require.NoError(t, err)
		assert.Equal(t, stats.Total, stats.Reserved+stats.Used+stats.Free)
		assert.Equal(t, blockfs.TableBlocks, stats.Reserved)
		return stats.Used
	}

	baseline := usedBlocks()

	require.NoError(t, driver.Mkdir("/d"))
	assert.Equal(t, baseline+1, usedBlocks())

	require.NoError(t, driver.Create("/d/a"))
	require.NoError(t, driver.Create("/d/b"))
	assert.Equal(t, baseline+3, usedBlocks())

	require.NoError(t, driver.Unlink("/d/a"))
	assert.Equal(t, baseline+2, usedBlocks())

	require.NoError(t, driver.Unlink("/d/b"))
	require.NoError(t, driver.Unlink("/d"))
	assert.Equal(t, baseline, usedBlocks())
}

func TestDirectoryFillsUp(t *testing.T) {
	driver := blockfstest.NewFormattedDriver(t)

	require.NoError(t, driver.Mkdir("/d"))
	for i := 0; i < dir.SlotsPerDirectory; i++ {
		require.NoError(t, driver.Create(fmt.Sprintf("/d/file%02d", i)))
	}

	assert.ErrorIs(t, driver.Create("/d/one-more"), blockfs.ErrDirectoryFull)
	assert.ErrorIs(t, driver.Mkdir("/d/one-more"), blockfs.ErrDirectoryFull)

	// Freeing a slot makes room again.
	require.NoError(t, driver.Unlink("/d/file00"))
	require.NoError(t, driver.Create("/d/one-more"))
}

// Everything a driver persisted must be reproduced by a fresh load from the
// same backing image.
func TestPersistenceDurability(t *testing.T) {
	first, stream := blockfstest.NewFormattedDriverWithStream(t)

	require.NoError(t, first.Mkdir("/home"))
	require.NoError(t, first.Mkdir("/home/docs"))
	require.NoError(t, first.Create("/home/docs/a"))
	require.NoError(t, first.Create("/top"))
	require.NoError(t, first.Unlink("/top"))

	second := fsys.New(image.Wrap(stream))
	require.NoError(t, second.Load())

	for _, path := range []string{"/", "/home", "/home/docs"} {
		want, err := first.List(path)
		require.NoError(t, err)
		got, err := second.List(path)
		require.NoError(t, err)
		assert.Equalf(t, want, got, "listing of %q differs after reload", path)
	}

	wantStats, err := first.TableStats()
	require.NoError(t, err)
	gotStats, err := second.TableStats()
	require.NoError(t, err)
	assert.Equal(t, wantStats, gotStats)
}

// Operations trigger the load implicitly; no explicit Load call is needed.
func TestImplicitLoad(t *testing.T) {
	_, stream := blockfstest.NewFormattedDriverWithStream(t)

	driver := fsys.New(image.Wrap(stream))
	require.NoError(t, driver.Mkdir("/implicit"))

	entries, err := driver.List("/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "implicit", entries[0].Name)
}

// An operation on a never-formatted image surfaces the load failure.
func TestImplicitLoadFailure(t *testing.T) {
	driver := fsys.New(image.Wrap(blockfstest.NewEmptyStream(t)))
	assert.ErrorIs(t, driver.Mkdir("/x"), blockfs.ErrNotInitialized)
	_, err := driver.List("/")
	assert.ErrorIs(t, err, blockfs.ErrNotInitialized)
}

// A failed operation leaves no trace: the reloaded image matches the state
// before the attempt.
func TestFailedOperationPersistsNothing(t *testing.T) {
	first, stream := blockfstest.NewFormattedDriverWithStream(t)

	require.NoError(t, first.Mkdir("/d"))
	require.NoError(t, first.Create("/d/f"))

	assert.ErrorIs(t, first.Unlink("/d"), blockfs.ErrNotEmpty)
	assert.ErrorIs(t, first.Create("/d/f"), blockfs.ErrExists)
	assert.ErrorIs(t, first.Create("/missing/f"), blockfs.ErrNotFound)

	second := fsys.New(image.Wrap(stream))
	require.NoError(t, second.Load())

	entries, err := second.List("/d")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "f", entries[0].Name)

	stats, err := second.TableStats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Used, "root + /d + /d/f, nothing else")
}
