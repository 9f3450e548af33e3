package duckdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrUploadChanged is returned when the file behind a provisional upload was
// modified or removed after it was registered.
var ErrUploadChanged = errors.New("upload file changed since registration")

// Fingerprint holds stat-based identity for an uploaded file.
type Fingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// FingerprintFile stats the file at path. Path is made absolute and ModTime
// is truncated to the precision of a DuckDB TIMESTAMP.
func FingerprintFile(path string) (Fingerprint, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Fingerprint{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{
		Path:    abs,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC().Truncate(time.Microsecond),
	}, nil
}

// Verify checks that the file behind u still matches its registered
// fingerprint.
func (u *Upload) Verify() error {
	fp, err := FingerprintFile(u.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadChanged, err)
	}
	if fp.Size != u.Size || !fp.ModTime.Equal(u.ModTime) {
		return fmt.Errorf("%w: %s", ErrUploadChanged, u.Path)
	}
	return nil
}
