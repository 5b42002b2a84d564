package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalPublic = `
boards:
  - name: tech
    display_name: /t/
    description: Technology
storage:
  images_path: data/images
`

const fullPublic = `
boards:
  - name: tech
    display_name: /t/
    description: Technology
  - name: random
    display_name: /r/
    description: Random
thread:
  page_size: 20
  preview_replies: 5
pruning:
  memory_threshold: 0.5
  check_interval: 2m
  prune_count: 4
  avg_thread_bytes: 2048
  capacity_bytes: 1048576
rate_limit:
  enabled: true
storage:
  images_path: data/images
  thumbnails_subdir: thumbs
max_text_length: 500
store_timeout: 3s
log_level: debug
log_json: true
`

const validPrivate = `
pg:
  host: localhost
  port: 5432
  user: lthread
  password: secret
  dbname: lthread
`

func writeConfigFolder(t *testing.T, public, private string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "public.yaml"), []byte(public), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "private.yaml"), []byte(private), 0644))
	return dir
}

func TestMustLoad(t *testing.T) {
	t.Run("parses full config", func(t *testing.T) {
		cfg := MustLoad(writeConfigFolder(t, fullPublic, validPrivate))

		assert.Len(t, cfg.Public.Boards, 2)
		assert.Equal(t, "/t/", cfg.Public.Boards[0].DisplayName)
		assert.Equal(t, 20, cfg.Public.Thread.PageSize)
		assert.Equal(t, 5, cfg.Public.Thread.PreviewReplies)
		assert.Equal(t, 0.5, cfg.Public.Pruning.MemoryThreshold)
		assert.Equal(t, 2*time.Minute, cfg.Public.Pruning.CheckInterval)
		assert.Equal(t, 4, cfg.Public.Pruning.PruneCount)
		assert.Equal(t, int64(2048), cfg.Public.Pruning.AvgThreadBytes)
		assert.True(t, cfg.Public.RateLimit.Enabled)
		assert.Equal(t, "thumbs", cfg.Public.Storage.ThumbnailsSubdir)
		assert.Equal(t, 500, cfg.Public.MaxTextLength)
		assert.Equal(t, 3*time.Second, cfg.Public.StoreTimeout)
		assert.Equal(t, "debug", cfg.Public.LogLevel)
		assert.True(t, cfg.Public.LogJSON)
		assert.Equal(t, "secret", cfg.Private.Pg.Password)
	})

	t.Run("fills defaults for omitted fields", func(t *testing.T) {
		cfg := MustLoad(writeConfigFolder(t, minimalPublic, validPrivate))

		assert.Equal(t, 15, cfg.Public.Thread.PageSize)
		assert.Equal(t, 3, cfg.Public.Thread.PreviewReplies)
		assert.Equal(t, 0.8, cfg.Public.Pruning.MemoryThreshold)
		assert.Equal(t, 5*time.Minute, cfg.Public.Pruning.CheckInterval)
		assert.Equal(t, 10, cfg.Public.Pruning.PruneCount)
		assert.Equal(t, int64(100*1024), cfg.Public.Pruning.AvgThreadBytes)
		assert.Equal(t, int64(2<<30), cfg.Public.Pruning.CapacityBytes)
		assert.Equal(t, 20000, cfg.Public.MaxTextLength)
		assert.Equal(t, 5*time.Second, cfg.Public.StoreTimeout)
		assert.Equal(t, "thumbnails", cfg.Public.Storage.ThumbnailsSubdir)
		assert.Equal(t, "info", cfg.Public.LogLevel)
	})

	t.Run("panics on missing file", func(t *testing.T) {
		assert.Panics(t, func() { MustLoad(t.TempDir()) })
	})

	t.Run("panics without boards", func(t *testing.T) {
		public := "storage:\n  images_path: data/images\n"
		assert.Panics(t, func() { MustLoad(writeConfigFolder(t, public, validPrivate)) })
	})

	t.Run("panics on incomplete pg settings", func(t *testing.T) {
		private := "pg:\n  host: localhost\n"
		assert.Panics(t, func() { MustLoad(writeConfigFolder(t, minimalPublic, private)) })
	})
}

func TestBoardLookups(t *testing.T) {
	cfg := MustLoad(writeConfigFolder(t, fullPublic, validPrivate))

	assert.True(t, cfg.BoardExists("tech"))
	assert.True(t, cfg.BoardExists("random"))
	assert.False(t, cfg.BoardExists("nosuch"))

	assert.Equal(t, []string{"tech", "random"}, cfg.BoardNames())
}
