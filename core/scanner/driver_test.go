package scanner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MeloFM/model"
	"MeloFM/repository"
)

// stubExtractor fails on a single configured path and fabricates records for
// the rest, so the driver's fault isolation can be exercised without ffprobe.
type stubExtractor struct {
	failOn string
}

func (s *stubExtractor) Extract(ctx context.Context, path string) (*model.SongRecord, error) {
	if path == s.failOn {
		return nil, errors.New("corrupt header")
	}
	return &model.SongRecord{
		Path:   path,
		Title:  fileStem(path),
		Artist: UnknownArtist,
		Album:  UnknownAlbum,
		Format: model.FormatMP3,
		Mp3URL: "/api/music/stream?path=" + fileStem(path) + ".mp3",
	}, nil
}

type fakeRepository struct {
	outcome    repository.ReconcileOutcome
	err        error
	reconciled []string
}

func (f *fakeRepository) Reconcile(ctx context.Context, conn *sql.Conn, record *model.SongRecord) (repository.ReconcileOutcome, error) {
	f.reconciled = append(f.reconciled, record.Title)
	return f.outcome, f.err
}

func (f *fakeRepository) EnsureArtist(ctx context.Context, conn *sql.Conn, name string) (int64, error) {
	return 1, nil
}

func (f *fakeRepository) EnsureAlbum(ctx context.Context, conn *sql.Conn, title string) (int64, error) {
	return 1, nil
}

func (f *fakeRepository) AllSongs(ctx context.Context) ([]*model.Song, error) {
	return nil, nil
}

func newMockDB(t *testing.T) *sql.DB {
	t.Helper()
	database, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestDriverRunSkipsFailedFiles(t *testing.T) {
	root := t.TempDir()
	for i := 1; i <= 10; i++ {
		writeEmptyFile(t, filepath.Join(root, fmt.Sprintf("track%02d.mp3", i)))
	}

	failing := filepath.Join(root, "track05.mp3")
	repo := &fakeRepository{outcome: repository.OutcomeCreated}
	driver := NewDriver(newMockDB(t), repo, &stubExtractor{failOn: failing}, nil)

	summary, err := driver.Run(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 10, summary.Total)
	assert.Equal(t, 9, summary.Created)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, failing, summary.Failures[0].Path)
	assert.Equal(t, StageExtract, summary.Failures[0].Stage)
	assert.NotEmpty(t, summary.RunID)
	assert.Len(t, repo.reconciled, 9)
}

func TestDriverRunCountsOutcomes(t *testing.T) {
	root := t.TempDir()
	writeEmptyFile(t, filepath.Join(root, "a.mp3"))
	writeEmptyFile(t, filepath.Join(root, "b.mp3"))

	repo := &fakeRepository{outcome: repository.OutcomeDuplicate}
	driver := NewDriver(newMockDB(t), repo, &stubExtractor{}, nil)

	summary, err := driver.Run(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Duplicates)
	assert.Equal(t, 0, summary.Created)
	assert.Equal(t, 0, summary.Failed)
}

func TestDriverRunReconcileFailureSkips(t *testing.T) {
	root := t.TempDir()
	writeEmptyFile(t, filepath.Join(root, "a.mp3"))

	repo := &fakeRepository{err: errors.New("deadlock")}
	driver := NewDriver(newMockDB(t), repo, &stubExtractor{}, nil)

	summary, err := driver.Run(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, StageReconcile, summary.Failures[0].Stage)
}

func TestDriverRunRejectsConcurrentBatch(t *testing.T) {
	driver := NewDriver(newMockDB(t), &fakeRepository{}, &stubExtractor{}, nil)
	driver.running = true

	_, err := driver.Run(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrScanInProgress)
}

func TestDriverRunBadRootFails(t *testing.T) {
	driver := NewDriver(newMockDB(t), &fakeRepository{}, &stubExtractor{}, nil)

	_, err := driver.Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestDriverRunCancelled(t *testing.T) {
	root := t.TempDir()
	writeEmptyFile(t, filepath.Join(root, "a.mp3"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	driver := NewDriver(newMockDB(t), &fakeRepository{}, &stubExtractor{}, nil)
	_, err := driver.Run(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}
