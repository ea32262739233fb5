// Package blockfstest holds reusable fixtures for tests that need a backing
// image without touching the real filesystem.
package blockfstest

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/gabrielcbarbosa01/blockfs"
	"github.com/gabrielcbarbosa01/blockfs/fsys"
	"github.com/gabrielcbarbosa01/blockfs/image"
)

// NewImageStream returns an in-memory stream of exactly one image, zero
// filled. The stream is fixed-size: writes past the end fail, same as a real
// image opened without truncation.
func NewImageStream(t *testing.T) io.ReadWriteSeeker {
	t.Helper()
	return bytesextra.NewReadWriteSeeker(make([]byte, blockfs.ImageSize))
}

// NewEmptyStream returns an in-memory stream of a file that was never
// formatted: zero bytes long.
func NewEmptyStream(t *testing.T) io.ReadWriteSeeker {
	t.Helper()
	return bytesextra.NewReadWriteSeeker(nil)
}

// NewFormattedDriver returns a driver over a freshly formatted in-memory
// image. Setup failures abort the test.
func NewFormattedDriver(t *testing.T) *fsys.Driver {
	t.Helper()

	driver := fsys.New(image.Wrap(NewImageStream(t)))
	require.NoError(t, driver.Format(false), "failed to format blank image")
	return driver
}

// NewFormattedDriverWithStream is like [NewFormattedDriver] but also returns
// the backing stream, for tests that reload the image through a second
// driver.
func NewFormattedDriverWithStream(t *testing.T) (*fsys.Driver, io.ReadWriteSeeker) {
	t.Helper()

	stream := NewImageStream(t)
	driver := fsys.New(image.Wrap(stream))
	require.NoError(t, driver.Format(false), "failed to format blank image")
	return driver, stream
}
