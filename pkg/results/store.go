// Package results persists batch result files and serves them back by name.
package results

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"

	"github.com/zpam/spam-detect/pkg/apperr"
)

const namePrefix = "spam_detection_results_"

var validName = regexp.MustCompile(`^[A-Za-z0-9_.-]+\.csv$`)

// FileStore writes result files into a single directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the storage directory
func (s *FileStore) Dir() string {
	return s.dir
}

// Save streams a new result file under a generated name. The file only becomes
// visible once write has succeeded.
func (s *FileStore) Save(ctx context.Context, write func(w io.Writer) error) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := namePrefix + uuid.NewString() + ".csv"

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+namePrefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close results: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return "", fmt.Errorf("failed to set results permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("failed to publish results: %w", err)
	}

	return name, nil
}

// Open returns a stored file. Unknown or malformed names are NotFound.
func (s *FileStore) Open(name string) (*os.File, error) {
	if !validName.MatchString(name) {
		return nil, apperr.NotFound("File")
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.NotFound("File")
	}
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, apperr.NotFound("File")
	}
	return f, nil
}
