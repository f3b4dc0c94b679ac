package config

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// writeFileAtomic writes data to a temp file in the same directory as path
// and renames it into place, so readers never observe a partially written
// file. Used for the config record, the passphrase side-file, and (by the
// control plane, out of scope here) the API token file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// lockContext returns a context bounded to d, used to cap how long Save
// waits for the directory advisory lock before giving up.
func lockContext(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
