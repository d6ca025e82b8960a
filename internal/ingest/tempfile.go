package ingest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// tempName keeps the upload's stem and extension and adds a random hex id so
// concurrent or repeated uploads with the same name never collide.
func tempName(original string) string {
	base := filepath.Base(original)
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	id := uuid.New()
	return fmt.Sprintf("%s_%s%s", stem, hex.EncodeToString(id[:]), ext)
}

// writeTemp writes f to a fresh file under dir and returns its path. The file
// is created exclusively; a partially written file is removed before returning.
func writeTemp(dir string, f UploadedFile) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, tempName(f.Name))

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", &TempFileError{Op: "create", Path: path, Err: err}
	}
	if _, err := file.Write(f.Data); err != nil {
		file.Close()
		os.Remove(path)
		return "", &TempFileError{Op: "write", Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", &TempFileError{Op: "write", Path: path, Err: err}
	}
	return path, nil
}

// removeTemp deletes path. A file that is already gone is not an error.
func removeTemp(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &TempFileError{Op: "remove", Path: path, Err: err}
	}
	return nil
}
