package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extract/constants"
	"github.com/joseph-ayodele/invoice-extract/internal/async"
	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/ocr"
	"github.com/joseph-ayodele/invoice-extract/internal/repository"
)

type fakeOCR struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (f *fakeOCR) Recognize(_ context.Context, engine string, image []byte) (ocr.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return ocr.Result{Engine: engine, Text: f.text + " " + string(image), Confidence: 0.9}, f.err
}

type fakeSubmitter struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeSubmitter) Submit(_ context.Context, text string) (*repository.ExtractJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return &repository.ExtractJob{ID: uuid.New(), Status: constants.JobStatusQueued, InputText: text}, nil
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []async.Job
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Shutdown(context.Context) {}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestIngestPath(t *testing.T) {
	dir := t.TempDir()
	rec, sub, q := &fakeOCR{text: "INVOICE"}, &fakeSubmitter{}, &recordingQueue{}
	ing := NewIngestor(rec, sub, q, "", nil)

	a := writeFile(t, dir, "a.png", "one")
	res, err := ing.IngestPath(context.Background(), a)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, res.JobID)
	assert.Len(t, res.HashHex, 64)
	assert.False(t, res.Deduplicated)
	assert.Equal(t, []string{"INVOICE one"}, sub.texts)
	require.Equal(t, 1, q.count())
	assert.Equal(t, res.JobID, q.jobs[0].ID)

	// same bytes under another name
	b := writeFile(t, dir, "copy.PNG", "one")
	dup, err := ing.IngestPath(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, dup.Deduplicated)
	assert.Equal(t, res.JobID, dup.JobID)
	assert.Equal(t, 1, rec.calls)

	_, err = ing.IngestPath(context.Background(), writeFile(t, dir, "notes.txt", "x"))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestIngestPathFailures(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.jpg", "img")

	ing := NewIngestor(&fakeOCR{err: errors.New("tesseract missing")}, &fakeSubmitter{}, &recordingQueue{}, "tesseract", nil)
	_, err := ing.IngestPath(context.Background(), p)
	assert.ErrorContains(t, err, "tesseract missing")

	q := &recordingQueue{err: async.ErrQueueFull}
	ing = NewIngestor(&fakeOCR{text: "INVOICE"}, &fakeSubmitter{}, q, "tesseract", nil)
	_, err = ing.IngestPath(context.Background(), p)
	assert.ErrorIs(t, err, async.ErrQueueFull)

	// a failed enqueue must not mark the content as seen
	q.err = nil
	res, err := ing.IngestPath(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, res.Deduplicated)
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.png", "one")
	writeFile(t, dir, "nested/b.jpeg", "two")
	writeFile(t, dir, "nested/dup.png", "one")
	writeFile(t, dir, "readme.md", "skip")
	writeFile(t, dir, ".hidden/c.png", "three")

	q := &recordingQueue{}
	ing := NewIngestor(&fakeOCR{text: "INVOICE"}, &fakeSubmitter{}, q, "tesseract", nil)
	results, stats, err := ing.IngestDirectory(context.Background(), dir, true)
	require.NoError(t, err)

	assert.EqualValues(t, 3, stats.Matched)
	assert.EqualValues(t, 3, stats.Succeeded)
	assert.EqualValues(t, 1, stats.Deduplicated)
	assert.Zero(t, stats.Failed)
	assert.Len(t, results, 3)
	assert.Equal(t, 2, q.count())

	_, _, err = ing.IngestDirectory(context.Background(), " ", true)
	assert.Error(t, err)
}

func TestWatcherEmitsNewImages(t *testing.T) {
	dir := t.TempDir()
	existing := writeFile(t, dir, "old.png", "old")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	paths, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{dir}, InitialScan: true, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	select {
	case p := <-paths:
		assert.Equal(t, existing, p)
	case <-time.After(2 * time.Second):
		t.Fatal("initial scan did not emit")
	}

	writeFile(t, dir, "skip.txt", "x")
	fresh := writeFile(t, dir, "new.jpg", "new")
	select {
	case p := <-paths:
		assert.Equal(t, fresh, p)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not emit new file")
	}

	cancel()
	for range paths {
	}
}

func TestRunStopsWhenChannelCloses(t *testing.T) {
	dir := t.TempDir()
	q := &recordingQueue{}
	ing := NewIngestor(&fakeOCR{text: "INVOICE"}, &fakeSubmitter{}, q, "tesseract", nil)

	ch := make(chan string, 2)
	ch <- writeFile(t, dir, "a.png", "a")
	ch <- filepath.Join(dir, "missing.png")
	close(ch)

	ing.Run(context.Background(), ch)
	assert.Equal(t, 1, q.count())
}

func TestAllowedExt(t *testing.T) {
	assert.True(t, AllowedExt(".JPG"))
	assert.True(t, AllowedExt("webp"))
	assert.False(t, AllowedExt(".pdf"))
	assert.True(t, IsHidden("/x/.cache"))
}
