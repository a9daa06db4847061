package results

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zpam/spam-detect/pkg/apperr"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return s
}

func TestSaveAndOpen(t *testing.T) {
	s := newStore(t)

	name, err := s.Save(context.Background(), func(w io.Writer) error {
		_, err := io.WriteString(w, "message,predicted_label\nhi,ham\n")
		return err
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "spam_detection_results_"))
	assert.True(t, strings.HasSuffix(name, ".csv"))

	f, err := s.Open(name)
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "message,predicted_label\nhi,ham\n", string(data))
}

func TestSaveGeneratesUniqueNames(t *testing.T) {
	s := newStore(t)
	noop := func(io.Writer) error { return nil }

	a, err := s.Save(context.Background(), noop)
	require.NoError(t, err)
	b, err := s.Save(context.Background(), noop)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSaveFailureLeavesNothingBehind(t *testing.T) {
	s := newStore(t)

	_, err := s.Save(context.Background(), func(w io.Writer) error {
		io.WriteString(w, "partial")
		return errors.New("disk full")
	})
	require.Error(t, err)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpenRejectsBadNames(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(s.Dir()), "secret.csv"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "dir.csv"), 0755))

	for _, name := range []string{
		"../secret.csv",
		"..%2Fsecret.csv",
		"/etc/passwd",
		"results.txt",
		"missing.csv",
		".csv",
		"dir.csv",
		"",
	} {
		_, err := s.Open(name)
		assert.ErrorIs(t, err, apperr.ErrNotFound, name)
	}
}

func TestSaveCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newStore(t).Save(ctx, func(io.Writer) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
