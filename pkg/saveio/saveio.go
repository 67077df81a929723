// Package saveio writes .sav files atomically: the new contents land in a
// .tmp file first, any existing .sav is moved aside to .bak, then the
// .tmp is renamed onto the target path. A crash between those renames
// never leaves the caller without either the old or the new save, unlike
// writing the target path directly (https://stackoverflow.com/a/2333872).
package saveio

import (
	"fmt"
	"os"
)

// WriteFile durably replaces path's contents with data.
func WriteFile(path string, data []byte) (err error) {
	tmp := path + ".tmp"
	if werr := os.WriteFile(tmp, data, 0644); werr != nil {
		return fmt.Errorf("saveio: write temp file: %w", werr)
	}
	info, serr := os.Stat(tmp)
	if serr != nil || info.Size() != int64(len(data)) {
		os.Remove(tmp)
		return fmt.Errorf("saveio: temp file verification failed")
	}

	bak := path + ".bak"
	hadExisting := false
	if _, err := os.Stat(path); err == nil {
		hadExisting = true
		if err := os.Rename(path, bak); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("saveio: backup existing save: %w", err)
		}
	}

	if err := os.Rename(tmp, path); err != nil {
		if hadExisting {
			os.Rename(bak, path) // best-effort restore
		}
		return fmt.Errorf("saveio: promote temp file: %w", err)
	}

	if hadExisting {
		os.Remove(bak)
	}
	return nil
}

// ReadFile reads path, falling back to its .bak copy if the primary file
// is missing (a crash between the backup rename and the promote rename
// in WriteFile leaves only the .bak).
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	return os.ReadFile(path + ".bak")
}
