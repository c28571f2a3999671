package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/webstorage/storectl/internal/constants"
	"github.com/webstorage/storectl/internal/diskspace"
	"github.com/webstorage/storectl/internal/util/paths"
	"github.com/webstorage/storectl/internal/validation"
)

// Saver receives downloads as they stream in.
type Saver interface {
	// Create prepares a destination for name. size is the declared length,
	// or -1 when unknown.
	Create(name string, size int64) (PartialFile, error)
}

// PartialFile is a download being written. Exactly one of Commit or Abort
// must be called.
type PartialFile interface {
	Write(p []byte) (int, error)
	// Commit makes the file visible and returns its final path.
	Commit() (string, error)
	// Abort discards everything written.
	Abort()
}

// DirSaver writes downloads into a directory. Existing files are never
// overwritten: a numbered suffix is added the way browsers do, "a (1).txt".
// Content lands in a hidden .part file until the download completes.
type DirSaver struct {
	Dir string
}

// Create checks the declared size against free space and opens the .part file.
func (s DirSaver) Create(name string, size int64) (PartialFile, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}
	if size > 0 {
		if err := diskspace.CheckAvailableSpace(dir, size, constants.DownloadSpaceMargin); err != nil {
			return nil, err
		}
	}

	tmp, err := os.CreateTemp(dir, ".storectl-*.part")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &partFile{file: tmp, dir: dir, name: name}, nil
}

type partFile struct {
	file *os.File
	dir  string
	name string
}

func (p *partFile) Write(b []byte) (int, error) {
	n, err := p.file.Write(b)
	if err != nil {
		return n, fmt.Errorf("write %s: %w", p.name, err)
	}
	return n, nil
}

func (p *partFile) Abort() {
	p.file.Close()
	os.Remove(p.file.Name())
}

func (p *partFile) Commit() (string, error) {
	tmpPath := p.file.Name()
	if err := p.file.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("write %s: %w", p.name, err)
	}

	target, err := paths.NextFree(p.dir, safeName(p.name))
	if err == nil {
		err = validation.ValidatePathInDirectory(target, p.dir)
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("save %s: %w", p.name, err)
	}
	return target, nil
}

// safeName strips any directory components the server-side name may carry.
func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if validation.ValidateFilename(name) != nil {
		return "download"
	}
	return name
}
