package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/gabrielcbarbosa01/blockfs/dir"
	"github.com/gabrielcbarbosa01/blockfs/fat"
	"github.com/gabrielcbarbosa01/blockfs/fsys"
	"github.com/gabrielcbarbosa01/blockfs/geometry"
	"github.com/gabrielcbarbosa01/blockfs/image"
)

func main() {
	app := cli.App{
		Name:  "blockfs",
		Usage: "Manage a simulated FAT-style filesystem inside a single image file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "image",
				Usage: "path of the backing image file",
				Value: "filesystem.dat",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "format",
				Usage:  "Create a fresh, empty filesystem in the image",
				Action: formatImage,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "overwrite an image that already holds a filesystem",
					},
				},
			},
			{
				Name:      "ls",
				Usage:     "List the contents of a directory",
				Action:    listDirectory,
				ArgsUsage: "[PATH]",
			},
			{
				Name:      "mkdir",
				Usage:     "Create a subdirectory",
				Action:    makeDirectory,
				ArgsUsage: "PATH",
			},
			{
				Name:      "create",
				Usage:     "Create an empty file",
				Action:    createFile,
				ArgsUsage: "PATH",
			},
			{
				Name:      "unlink",
				Usage:     "Remove a file or empty subdirectory",
				Action:    unlinkPath,
				ArgsUsage: "PATH",
			},
			{
				Name:   "fatinfo",
				Usage:  "Show allocation table usage",
				Action: showTableInfo,
			},
			{
				Name:   "geometries",
				Usage:  "List the known image geometry profiles",
				Action: listGeometries,
			},
			{
				Name:   "shell",
				Usage:  "Run an interactive command loop against the image",
				Action: runShell,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

// openDriver opens the backing image file and builds a driver over it. With
// `create` set the file is created if missing (used by format and shell).
// The returned closer must be called on every exit path.
func openDriver(context *cli.Context, create bool) (*fsys.Driver, func() error, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}

	file, err := os.OpenFile(context.String("image"), flags, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf(
				"image %q does not exist; run `blockfs format` first",
				context.String("image"))
		}
		return nil, nil, err
	}
	return fsys.New(image.Wrap(file)), file.Close, nil
}

func formatImage(context *cli.Context) error {
	driver, closeImage, err := openDriver(context, true)
	if err != nil {
		return err
	}
	defer closeImage()

	if err := driver.Format(context.Bool("force")); err != nil {
		return err
	}
	fmt.Printf("formatted %s\n", context.String("image"))
	return nil
}

func requirePathArg(context *cli.Context) (string, error) {
	path := context.Args().First()
	if path == "" {
		return "", fmt.Errorf("usage: blockfs %s PATH", context.Command.Name)
	}
	return path, nil
}

func listDirectory(context *cli.Context) error {
	driver, closeImage, err := openDriver(context, false)
	if err != nil {
		return err
	}
	defer closeImage()

	path := context.Args().First()
	if path == "" {
		path = "/"
	}

	entries, err := driver.List(path)
	if err != nil {
		return err
	}
	printEntries(path, entries)
	return nil
}

func printEntries(path string, entries []dir.Entry) {
	fmt.Printf("contents of %s:\n", path)
	for _, entry := range entries {
		kind := "file"
		if entry.IsDir() {
			kind = "directory"
		}
		fmt.Printf("%-25s  %-9s  %d bytes\n", entry.Name, kind, entry.Size)
	}
}

func makeDirectory(context *cli.Context) error {
	return runMutation(context, func(driver *fsys.Driver, path string) error {
		return driver.Mkdir(path)
	})
}

func createFile(context *cli.Context) error {
	return runMutation(context, func(driver *fsys.Driver, path string) error {
		return driver.Create(path)
	})
}

func unlinkPath(context *cli.Context) error {
	return runMutation(context, func(driver *fsys.Driver, path string) error {
		return driver.Unlink(path)
	})
}

func runMutation(context *cli.Context, op func(*fsys.Driver, string) error) error {
	path, err := requirePathArg(context)
	if err != nil {
		return err
	}

	driver, closeImage, err := openDriver(context, false)
	if err != nil {
		return err
	}
	defer closeImage()

	return op(driver, path)
}

func showTableInfo(context *cli.Context) error {
	driver, closeImage, err := openDriver(context, false)
	if err != nil {
		return err
	}
	defer closeImage()

	stats, err := driver.TableStats()
	if err != nil {
		return err
	}
	printTableStats(stats)
	return nil
}

func printTableStats(stats fat.Stats) {
	percent := func(count int) float64 {
		return float64(count) / float64(stats.Total) * 100
	}
	fmt.Printf("total blocks:    %d\n", stats.Total)
	fmt.Printf("reserved blocks: %d (%.2f%%)\n", stats.Reserved, percent(stats.Reserved))
	fmt.Printf("used blocks:     %d (%.2f%%)\n", stats.Used, percent(stats.Used))
	fmt.Printf("free blocks:     %d (%.2f%%)\n", stats.Free, percent(stats.Free))
}

func listGeometries(context *cli.Context) error {
	profiles, err := geometry.List()
	if err != nil {
		return err
	}
	for _, geo := range profiles {
		fmt.Printf(
			"%-14s %s: %d blocks of %d bytes (%d table blocks, %d directory slots), %d bytes total\n",
			geo.Slug,
			geo.Name,
			geo.TotalBlocks,
			geo.BytesPerBlock,
			geo.TableBlocks,
			geo.DirectorySlots,
			geo.ImageSize(),
		)
	}
	return nil
}
