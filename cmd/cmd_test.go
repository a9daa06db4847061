package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zpam/spam-detect/pkg/batch"
	"github.com/zpam/spam-detect/pkg/config"
)

func TestValidateConfigLogic(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Model.Dir = dir
	cfg.Server.AllowedOrigins = "https://mail.example.com"
	for _, name := range []string{cfg.Model.Vectorizer, cfg.Model.Scaler, cfg.Model.Classifier} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644))
	}

	assert.Empty(t, validateConfigLogic(cfg))

	cfg.Model.Dir = filepath.Join(dir, "missing")
	cfg.Server.AllowedOrigins = "*"
	cfg.Milter.RejectConfidence = 0.3
	cfg.Cache.Enabled = true
	cfg.Cache.RedisURL = ""
	cfg.Batch.PreviewRows = 500

	warnings := validateConfigLogic(cfg)
	assert.Len(t, warnings, 7)
	assert.Contains(t, warnings, "CORS allows any origin")
	assert.Contains(t, warnings, "Cache is enabled but no redis_url is set")
}

func TestPathStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	name, err := pathStore(path).Save(context.Background(), func(w io.Writer) error {
		_, err := io.WriteString(w, "prediction\nspam\n")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, path, name)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "prediction\nspam\n", string(data))
}

func TestPathStoreCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "out.csv")
	_, err := pathStore(path).Save(ctx, func(w io.Writer) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, path)
}

func TestColumnLabel(t *testing.T) {
	cols := batch.Columns{Text: 1, Subject: -1, Label: 0, Names: []string{"label", "message"}}

	assert.Equal(t, "message", columnLabel(cols, cols.Text))
	assert.Equal(t, "", columnLabel(cols, cols.Subject))
	assert.Equal(t, "label", columnLabel(cols, cols.Label))
}

func TestPredictInput(t *testing.T) {
	t.Cleanup(func() { predictFile = "" })

	text, source, err := predictInput([]string{"win a prize"})
	require.NoError(t, err)
	assert.Equal(t, "win a prize", text)
	assert.Equal(t, "argument", source)

	_, _, err = predictInput(nil)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "msg.eml")
	raw := strings.Join([]string{
		"From: alice@example.com",
		"To: bob@example.com",
		"Subject: Lunch",
		"",
		"See you at noon",
		"",
	}, "\r\n")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	predictFile = path
	text, source, err = predictInput(nil)
	require.NoError(t, err)
	assert.Equal(t, "Lunch See you at noon", text)
	assert.Equal(t, path, source)
}

func TestRootCommandWiring(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "predict", "batch", "milter", "benchmark", "config"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
