package processor

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeh74/imgop/internal/config"
	"github.com/mikeh74/imgop/internal/resolver"
	"github.com/mikeh74/imgop/internal/statistics"
	"github.com/mikeh74/imgop/internal/transform"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Processing.MaxDimension = 120
	cfg.Processing.ThumbnailSize = 30
	return cfg
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func newProcessor(t *testing.T, cfg *config.Config, opts Options) *DefaultProcessor {
	t.Helper()
	proc, err := New(cfg, opts, statistics.NewStatistics(), testLogger())
	require.NoError(t, err)
	return proc
}

// writeImage writes a real JPEG of the given size and returns its path.
func writeImage(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(imaging.New(w, h, color.NRGBA{R: 120, G: 80, B: 40, A: 255}), path))
	return path
}

func dims(t *testing.T, path string) (int, int) {
	t.Helper()
	img, err := imaging.Open(path)
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestNewRejectsBadQuality(t *testing.T) {
	cfg := testConfig()
	cfg.Processing.Quality = 0
	_, err := New(cfg, Options{}, nil, testLogger())
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Processing.ThumbnailQuality = 101
	_, err = New(cfg, Options{}, nil, testLogger())
	assert.Error(t, err)
}

func TestNewRejectsInvalidTransform(t *testing.T) {
	spec := &transform.Spec{Scale: 50, Width: 800}
	_, err := New(testConfig(), Options{Transform: spec}, nil, testLogger())
	assert.Error(t, err)
}

func TestProcessImageDefaultMode(t *testing.T) {
	dir := t.TempDir()
	input := writeImage(t, dir, "photo.jpg", 400, 300)

	proc := newProcessor(t, testConfig(), Options{})
	res := proc.ProcessImage(context.Background(), input, "")

	require.True(t, res.Success, res.Message)
	assert.Equal(t, filepath.Join(dir, "photo_md.jpg"), res.ResizedPath)
	assert.Equal(t, filepath.Join(dir, "photo_sq_thumb.jpg"), res.ThumbnailPath)

	// Longer side equals the bound, aspect preserved.
	w, h := dims(t, res.ResizedPath)
	assert.Equal(t, 120, w)
	assert.Equal(t, 90, h)

	// Thumbnail is exactly square at the configured edge length.
	tw, th := dims(t, res.ThumbnailPath)
	assert.Equal(t, 30, tw)
	assert.Equal(t, 30, th)

	// Input untouched.
	iw, ih := dims(t, input)
	assert.Equal(t, 400, iw)
	assert.Equal(t, 300, ih)
}

func TestProcessImagePortraitOrientation(t *testing.T) {
	dir := t.TempDir()
	input := writeImage(t, dir, "tall.jpg", 300, 400)

	proc := newProcessor(t, testConfig(), Options{})
	res := proc.ProcessImage(context.Background(), input, "")

	require.True(t, res.Success, res.Message)
	w, h := dims(t, res.ResizedPath)
	assert.Equal(t, 90, w)
	assert.Equal(t, 120, h)
}

func TestProcessImageNoUpscale(t *testing.T) {
	dir := t.TempDir()
	input := writeImage(t, dir, "small.jpg", 120, 90)

	proc := newProcessor(t, testConfig(), Options{})
	res := proc.ProcessImage(context.Background(), input, "")

	require.True(t, res.Success, res.Message)
	w, h := dims(t, res.ResizedPath)
	assert.Equal(t, 120, w)
	assert.Equal(t, 90, h)
}

func TestProcessImageExplicitOutputDir(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	input := writeImage(t, dir, "photo.jpg", 400, 300)

	proc := newProcessor(t, testConfig(), Options{})
	res := proc.ProcessImage(context.Background(), input, outDir)

	require.True(t, res.Success, res.Message)
	assert.Equal(t, filepath.Join(outDir, "photo_md.jpg"), res.ResizedPath)
	_, err := os.Stat(res.ThumbnailPath)
	assert.NoError(t, err)
}

func TestProcessImageUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "broken.jpg")
	require.NoError(t, os.WriteFile(input, []byte("not an image at all"), 0644))

	proc := newProcessor(t, testConfig(), Options{})
	res := proc.ProcessImage(context.Background(), input, "")

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Error, ErrUnsupportedFormat)
}

func TestProcessImageThumbnailOnly(t *testing.T) {
	dir := t.TempDir()
	input := writeImage(t, dir, "photo.jpg", 400, 300)

	proc := newProcessor(t, testConfig(), Options{ThumbnailOnly: true})
	res := proc.ProcessImage(context.Background(), input, "")

	require.True(t, res.Success, res.Message)
	assert.Empty(t, res.ResizedPath)
	assert.Equal(t, filepath.Join(dir, "photo_sm.jpg"), res.ThumbnailPath)

	w, h := dims(t, res.ThumbnailPath)
	assert.Equal(t, 30, w)
	assert.Equal(t, 30, h)
}

func TestProcessImageCustomTransform(t *testing.T) {
	dir := t.TempDir()
	input := writeImage(t, dir, "photo.jpg", 400, 300)

	spec := &transform.Spec{Scale: 50}
	proc := newProcessor(t, testConfig(), Options{Transform: spec})
	res := proc.ProcessImage(context.Background(), input, "")

	require.True(t, res.Success, res.Message)
	assert.Equal(t, filepath.Join(dir, "photo_scale_50.jpg"), res.ResizedPath)

	w, h := dims(t, res.ResizedPath)
	assert.Equal(t, 200, w)
	assert.Equal(t, 150, h)
}

func TestProcessDirectoryIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.jpg", 400, 300)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.jpg"), []byte("corrupt"), 0644))
	writeImage(t, dir, "c.jpg", 400, 300)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("x"), 0644))

	proc := newProcessor(t, testConfig(), Options{})
	results, err := proc.ProcessDirectory(context.Background(), dir, "")
	require.NoError(t, err)

	// Three matching files, three results, in path order.
	require.Len(t, results, 3)
	assert.Equal(t, filepath.Join(dir, "a.jpg"), results[0].InputPath)
	assert.Equal(t, filepath.Join(dir, "b.jpg"), results[1].InputPath)
	assert.Equal(t, filepath.Join(dir, "c.jpg"), results[2].InputPath)

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.True(t, results[2].Success)
}

func TestProcessDirectoryParallelOrdering(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"e.jpg", "a.jpg", "c.jpg", "b.jpg", "d.jpg"} {
		writeImage(t, dir, name, 200, 150)
	}

	cfg := testConfig()
	cfg.Performance.WorkerThreads = 4
	proc := newProcessor(t, cfg, Options{})

	results, err := proc.ProcessDirectory(context.Background(), dir, "")
	require.NoError(t, err)
	require.Len(t, results, 5)

	for i, name := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"} {
		assert.Equal(t, filepath.Join(dir, name), results[i].InputPath)
		assert.True(t, results[i].Success)
	}
}

func TestProcessDirectoryCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.jpg", 200, 150)
	writeImage(t, dir, "b.jpg", 200, 150)
	writeImage(t, dir, "c.jpg", 200, 150)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proc := newProcessor(t, testConfig(), Options{})
	results, err := proc.ProcessDirectory(ctx, dir, "")
	require.NoError(t, err)

	// Every task still yields a result carrying its input path.
	require.Len(t, results, 3)
	for i, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		assert.Equal(t, filepath.Join(dir, name), results[i].InputPath)
		assert.False(t, results[i].Success)
		assert.ErrorIs(t, results[i].Error, context.Canceled)
		assert.Equal(t, "cancelled", results[i].Action)
	}
}

func TestProcessDirectoryEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0644))

	proc := newProcessor(t, testConfig(), Options{})
	_, err := proc.ProcessDirectory(context.Background(), dir, "")
	assert.ErrorIs(t, err, resolver.ErrNoImagesFound)
}

func TestProcessPathNotFound(t *testing.T) {
	proc := newProcessor(t, testConfig(), Options{})
	_, err := proc.ProcessPath(context.Background(), "/nonexistent", "")
	assert.ErrorIs(t, err, resolver.ErrNotFound)
}

func TestProcessPathNamedNonImageFails(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(input, []byte("plain text"), 0644))

	proc := newProcessor(t, testConfig(), Options{})
	results, err := proc.ProcessPath(context.Background(), input, "")

	// A file named explicitly is attempted and reported as a failed
	// result, not skipped as if the directory had no images.
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.ErrorIs(t, results[0].Error, ErrUnsupportedFormat)
}

func TestProcessPathSingleFile(t *testing.T) {
	dir := t.TempDir()
	input := writeImage(t, dir, "one.jpg", 400, 300)

	proc := newProcessor(t, testConfig(), Options{})
	results, err := proc.ProcessPath(context.Background(), input, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
}

func TestStatsRecorded(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.jpg", 400, 300)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.jpg"), []byte("corrupt"), 0644))

	stats := statistics.NewStatistics()
	proc, err := New(testConfig(), Options{}, stats, testLogger())
	require.NoError(t, err)

	_, err = proc.ProcessDirectory(context.Background(), dir, "")
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.TotalFilesFound)
	assert.Equal(t, int64(2), stats.TotalFilesProcessed)
	assert.Equal(t, int64(1), stats.FilesSucceeded)
	assert.Equal(t, int64(1), stats.GetFilesFailed())
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, filepath.Join(dir, "b.jpg"), stats.Errors[0].FilePath)
}
