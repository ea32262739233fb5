package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/gabrielcbarbosa01/blockfs/dir"
	"github.com/gabrielcbarbosa01/blockfs/fat"
)

// shellDriver is the slice of the operations layer the shell needs. The
// command loop holds no filesystem state of its own.
type shellDriver interface {
	Format(force bool) error
	Load() error
	List(path string) ([]dir.Entry, error)
	Mkdir(path string) error
	Create(path string) error
	Unlink(path string) error
	TableStats() (fat.Stats, error)
}

// runShell drives the interactive command loop. One driver serves the whole
// session; every verb maps to exactly one operation call, and the loop only
// formats results — filesystem invariants live below it.
func runShell(context *cli.Context) error {
	driver, closeImage, err := openDriver(context, true)
	if err != nil {
		return err
	}
	defer closeImage()

	fmt.Println("blockfs shell; type `help` for commands, `exit` to quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("fs> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		verb, arg := splitCommand(scanner.Text())
		if verb == "" {
			continue
		}
		if verb == "exit" {
			return nil
		}

		if err := runShellCommand(driver, verb, arg); err != nil {
			fmt.Printf("error: %s\n", err.Error())
		}
	}
}

func splitCommand(line string) (string, string) {
	fields := strings.Fields(line)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	}
	return fields[0], fields[1]
}

func runShellCommand(driver shellDriver, verb, arg string) error {
	switch verb {
	case "help":
		fmt.Println("commands: init | load | ls [path] | mkdir path | create path | unlink path | fatinfo | exit")
		return nil

	case "init":
		// Destructive re-initialization must be asked for explicitly.
		return driver.Format(arg == "force")

	case "load":
		return driver.Load()

	case "ls":
		path := arg
		if path == "" {
			path = "/"
		}
		entries, err := driver.List(path)
		if err != nil {
			return err
		}
		printEntries(path, entries)
		return nil

	case "mkdir":
		if arg == "" {
			return fmt.Errorf("usage: mkdir /path/to/directory")
		}
		return driver.Mkdir(arg)

	case "create":
		if arg == "" {
			return fmt.Errorf("usage: create /path/to/file")
		}
		return driver.Create(arg)

	case "unlink":
		if arg == "" {
			return fmt.Errorf("usage: unlink /path/to/file_or_directory")
		}
		return driver.Unlink(arg)

	case "fatinfo":
		stats, err := driver.TableStats()
		if err != nil {
			return err
		}
		printTableStats(stats)
		return nil
	}

	return fmt.Errorf("unknown command %q", verb)
}
