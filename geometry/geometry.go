// Package geometry is the catalog of image profiles: the block size, block
// count, and directory shape an image can be formatted with. The catalog is
// an embedded CSV so profiles can be listed and documented in one place.
//
// Only the default profile can be mounted; other rows exist as documented
// shapes for tooling to inspect.
package geometry

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/gocarina/gocsv"
)

//go:embed geometries.csv
var rawCatalog []byte

type Geometry struct {
	Name string `csv:"name"`
	Slug string `csv:"slug"`

	// BytesPerBlock is the size of one block.
	BytesPerBlock uint `csv:"bytes_per_block"`
	// TotalBlocks is the number of blocks in the image.
	TotalBlocks uint `csv:"total_blocks"`
	// TableBlocks is the number of leading blocks holding the serialized
	// allocation table.
	TableBlocks uint `csv:"table_blocks"`
	// DirectorySlots is the number of entries in every directory block.
	DirectorySlots uint `csv:"directory_slots"`
}

// ImageSize gives the exact size of an image with this geometry, in bytes.
func (g Geometry) ImageSize() int64 {
	return int64(g.BytesPerBlock) * int64(g.TotalBlocks)
}

// DefaultSlug names the one geometry images are formatted and mounted with.
const DefaultSlug = "standard-2m"

var (
	loadOnce sync.Once
	catalog  []Geometry
	loadErr  error
)

func loadCatalog() ([]Geometry, error) {
	loadOnce.Do(func() {
		loadErr = gocsv.UnmarshalBytes(rawCatalog, &catalog)
	})
	return catalog, loadErr
}

// List returns every profile in the catalog, in file order.
func List() ([]Geometry, error) {
	return loadCatalog()
}

// Lookup finds a profile by slug.
func Lookup(slug string) (Geometry, error) {
	all, err := loadCatalog()
	if err != nil {
		return Geometry{}, err
	}
	for _, geo := range all {
		if geo.Slug == slug {
			return geo, nil
		}
	}
	return Geometry{}, fmt.Errorf("no geometry with slug %q", slug)
}

// Default returns the standard profile. The catalog is embedded, so a
// missing default is a build defect and panics rather than returning an
// error.
func Default() Geometry {
	geo, err := Lookup(DefaultSlug)
	if err != nil {
		panic(err)
	}
	return geo
}
