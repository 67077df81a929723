// Package romload reads a ROM or boot ROM file from disk, transparently
// decompressing it if it arrives inside a .zip, .7z, or .gz archive.
package romload

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bodgit/sevenzip"
)

// LoadFile reads filename and returns its contents, decompressing first
// if its extension names a supported archive format. A plain .gb/.gbc ROM
// or .bin boot ROM is returned as-is without inspecting its contents.
func LoadFile(filename string) ([]byte, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	switch filepath.Ext(filename) {
	case ".gz":
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("romload: open gzip stream: %w", err)
		}
		defer gz.Close()
		return io.ReadAll(gz)

	case ".zip":
		zr, err := zip.NewReader(f, int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("romload: open zip archive: %w", err)
		}
		return readFirstArchiveMember(zr.File)

	case ".7z":
		zr, err := sevenzip.NewReader(f, int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("romload: open 7z archive: %w", err)
		}
		return readFirstArchiveMember(zr.File)

	default:
		return data, nil
	}
}

// archiveFile is satisfied by both *zip.File and *sevenzip.File.
type archiveFile interface {
	Open() (io.ReadCloser, error)
}

func readFirstArchiveMember[T archiveFile](files []T) ([]byte, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("romload: archive contains no files")
	}
	rc, err := files[0].Open()
	if err != nil {
		return nil, fmt.Errorf("romload: open archive member: %w", err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
