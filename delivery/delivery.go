// Package delivery turns an assembled document payload into a retrievable
// artifact: a file on disk for the CLI, or a one-shot download for HTTP clients.
package delivery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/coolboyler/md2word/document"
)

const (
	// ExportFilename uses .doc so Word opens the HTML payload as a native document.
	ExportFilename = "document_export.doc"
	// ExportMediaType pairs with ExportFilename.
	ExportMediaType = "application/msword"
)

var (
	ErrBadFilename = errors.New("invalid filename")
	ErrNotFound    = errors.New("artifact not found")
)

// Deliverer hands a finished payload to the user.
type Deliverer interface {
	Deliver(payload document.Payload, filename, mediaType string) error
}

// Artifact is the byte form of a payload, tagged with its media type.
type Artifact struct {
	Filename  string
	MediaType string
	Data      []byte
}

func checkFilename(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrBadFilename, name)
	}
	return nil
}

// DirDeliverer writes artifacts into a directory.
type DirDeliverer struct {
	Dir string
}

// NewDirDeliverer creates dir if needed. An empty dir means the working directory.
func NewDirDeliverer(dir string) (*DirDeliverer, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		dir = wd
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &DirDeliverer{Dir: dir}, nil
}

// Deliver writes the payload to a temp file and renames it into place.
// The temp file never survives the call.
func (d *DirDeliverer) Deliver(payload document.Payload, filename, mediaType string) error {
	if err := checkFilename(filename); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.Dir, "."+filename+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(string(payload)); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filename, err)
	}

	dst := filepath.Join(d.Dir, filename)
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("writing file %s: %w", dst, err)
	}
	return nil
}

// Path returns where Deliver puts filename.
func (d *DirDeliverer) Path(filename string) string {
	return filepath.Join(d.Dir, filename)
}
