//go:build mage

// Package main contains Mage build targets for pagescribe developer tooling.
package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// projectDirs lists the working directories the CLI writes to by default.
var projectDirs = []string{
	".secrets",
	"output",
	"data",
}

// Init creates the local directories used by pagescribe runs.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Project directories initialized.")
	return nil
}

// buildTags compiles FTS5 into mattn/go-sqlite3; internal/store needs it.
const buildTags = "sqlite_fts5"

const (
	binDir  = "bin"
	binName = "pagescribe"
	cmdPkg  = "./cmd/pagescribe"
)

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil {
		version = "dev"
	}
	if err := sh.RunV("go", "build", "-tags", buildTags, "-ldflags", "-X main.version="+version, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-tags", buildTags, "-race", "./...")
}

// Check vets and tests the module, then builds the CLI.
func Check() error {
	if err := sh.RunV("go", "vet", "-tags", buildTags, "./..."); err != nil {
		return err
	}
	mg.SerialDeps(Test, Build)
	return nil
}

// Convert builds the CLI and converts the document named by $PAGESCRIBE_FILE
// into output/.
func Convert() error {
	mg.Deps(Build, Init)
	file := os.Getenv("PAGESCRIBE_FILE")
	if file == "" {
		return fmt.Errorf("set PAGESCRIBE_FILE to a PDF path or URL")
	}
	return sh.RunV(filepath.Join(binDir, binName), "convert", file,
		"--output-dir", "output", "--db", filepath.Join("data", "pagescribe.db"))
}

// Stats prints non-blank Go lines per top-level directory, split into
// production and test code.
func Stats() error {
	type counts struct{ prod, test int }
	byDir := map[string]*counts{}
	var order []string

	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != "." && (strings.HasPrefix(d.Name(), "_") || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		n, err := nonBlankLines(path)
		if err != nil {
			return err
		}
		top := strings.SplitN(filepath.ToSlash(path), "/", 2)[0]
		c, ok := byDir[top]
		if !ok {
			c = &counts{}
			byDir[top] = c
			order = append(order, top)
		}
		if strings.HasSuffix(path, "_test.go") {
			c.test += n
		} else {
			c.prod += n
		}
		return nil
	})
	if err != nil {
		return err
	}

	var total counts
	fmt.Printf("%-12s  %8s  %8s\n", "Directory", "Prod", "Test")
	for _, dir := range order {
		c := byDir[dir]
		fmt.Printf("%-12s  %8d  %8d\n", dir, c.prod, c.test)
		total.prod += c.prod
		total.test += c.test
	}
	fmt.Printf("%-12s  %8d  %8d\n", "total", total.prod, total.test)
	return nil
}

func nonBlankLines(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	n := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n, nil
}
