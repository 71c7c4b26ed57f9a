package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MeloFM/model"
)

func newMockConn(t *testing.T) (*sql.DB, *sql.Conn, sqlmock.Sqlmock) {
	t.Helper()
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	conn, err := database.Conn(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return database, conn, mock
}

func lookupColumns() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "mp3_url", "flac_url"})
}

func TestReconcileInsertsNewSong(t *testing.T) {
	database, conn, mock := newMockConn(t)
	repo := NewMySQLSongRepository(database)

	record := &model.SongRecord{
		Title:     "七里香",
		Artist:    "周杰伦",
		CoArtists: []string{"温岚"},
		Album:     "七里香",
		Year:      2004,
		Duration:  298.6,
		Format:    model.FormatMP3,
		Mp3URL:    "/api/music/stream?path=qlx.mp3",
		CoverURL:  "/api/cover?path=qlx.jpeg",
	}

	mock.ExpectQuery("SELECT s.id, s.mp3_url, s.flac_url FROM song_own").
		WithArgs(record.Title, record.Artist).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO artist").
		WithArgs(record.Artist).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec("INSERT INTO album").
		WithArgs(record.Album).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec("INSERT INTO song_own").
		WithArgs(record.Title, int64(3), `["温岚"]`, int64(5),
			sqlmock.AnyArg(), sqlmock.AnyArg(), record.Duration,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(11, 1))

	outcome, err := repo.Reconcile(context.Background(), conn, record)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileBackfillsFlacSlot(t *testing.T) {
	database, conn, mock := newMockConn(t)
	repo := NewMySQLSongRepository(database)

	record := &model.SongRecord{
		Title:   "Track",
		Artist:  "A",
		Album:   "Al",
		Format:  model.FormatFLAC,
		FlacURL: "/api/music/stream?path=track.flac",
	}

	mock.ExpectQuery("SELECT s.id, s.mp3_url, s.flac_url FROM song_own").
		WithArgs(record.Title, record.Artist).
		WillReturnRows(lookupColumns().AddRow(7, "/api/music/stream?path=track.mp3", nil))
	mock.ExpectExec("UPDATE song_own SET flac_url").
		WithArgs(record.FlacURL, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	outcome, err := repo.Reconcile(context.Background(), conn, record)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBackfilled, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileBackfillsMp3Slot(t *testing.T) {
	database, conn, mock := newMockConn(t)
	repo := NewMySQLSongRepository(database)

	record := &model.SongRecord{
		Title:  "Track",
		Artist: "A",
		Album:  "Al",
		Format: model.FormatMP3,
		Mp3URL: "/api/music/stream?path=track.mp3",
	}

	mock.ExpectQuery("SELECT s.id, s.mp3_url, s.flac_url FROM song_own").
		WithArgs(record.Title, record.Artist).
		WillReturnRows(lookupColumns().AddRow(7, nil, "/api/music/stream?path=track.flac"))
	mock.ExpectExec("UPDATE song_own SET mp3_url").
		WithArgs(record.Mp3URL, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	outcome, err := repo.Reconcile(context.Background(), conn, record)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBackfilled, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileSkipsExactDuplicate(t *testing.T) {
	database, conn, mock := newMockConn(t)
	repo := NewMySQLSongRepository(database)

	record := &model.SongRecord{
		Title:  "Track",
		Artist: "A",
		Format: model.FormatMP3,
		Mp3URL: "/api/music/stream?path=track.mp3",
	}

	mock.ExpectQuery("SELECT s.id, s.mp3_url, s.flac_url FROM song_own").
		WithArgs(record.Title, record.Artist).
		WillReturnRows(lookupColumns().AddRow(7, "/api/music/stream?path=old.mp3", nil))

	outcome, err := repo.Reconcile(context.Background(), conn, record)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// wav 等无专属槽位的格式与 mp3 共用 mp3_url
func TestReconcileOtherFormatSharesMp3Slot(t *testing.T) {
	database, conn, mock := newMockConn(t)
	repo := NewMySQLSongRepository(database)

	record := &model.SongRecord{
		Title:  "Track",
		Artist: "A",
		Format: model.FormatOther,
		Mp3URL: "/api/music/stream?path=track.wav",
	}

	mock.ExpectQuery("SELECT s.id, s.mp3_url, s.flac_url FROM song_own").
		WithArgs(record.Title, record.Artist).
		WillReturnRows(lookupColumns().AddRow(7, "/api/music/stream?path=track.mp3", nil))

	outcome, err := repo.Reconcile(context.Background(), conn, record)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
}

func TestEnsureArtistReturnsExistingID(t *testing.T) {
	database, conn, mock := newMockConn(t)
	repo := NewMySQLSongRepository(database)

	mock.ExpectExec("INSERT INTO artist").
		WithArgs("周杰伦").
		WillReturnResult(sqlmock.NewResult(42, 0))

	id, err := repo.EnsureArtist(context.Background(), conn, "周杰伦")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestAllSongs(t *testing.T) {
	database, _, mock := newMockConn(t)
	repo := NewMySQLSongRepository(database)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "title", "artist_id", "name", "artists", "album_id", "al.title",
		"mp3_url", "flac_url", "duration", "cover", "lyric", "year", "created_at", "updated_at",
	}).
		AddRow(1, "七里香", 3, "周杰伦", `["温岚"]`, 5, "七里香",
			"/api/music/stream?path=qlx.mp3", nil, 298.6, "/api/cover?path=qlx.jpeg", nil, 2004, now, now).
		AddRow(2, "song7", 4, "未知艺术家", nil, 6, "未知专辑",
			nil, "/api/music/stream?path=song7.flac", 180.0, nil, nil, nil, now, now)

	mock.ExpectQuery("SELECT s.id, s.title").WillReturnRows(rows)

	songs, err := repo.AllSongs(context.Background())
	require.NoError(t, err)
	require.Len(t, songs, 2)

	assert.Equal(t, "七里香", songs[0].Title)
	assert.Equal(t, []string{"温岚"}, songs[0].CoArtists)
	assert.Equal(t, 2004, songs[0].Year)

	assert.Equal(t, "未知艺术家", songs[1].Artist)
	assert.Empty(t, songs[1].CoArtists)
	assert.Equal(t, "", songs[1].Mp3URL)
	assert.Equal(t, "/api/music/stream?path=song7.flac", songs[1].FlacURL)
	assert.Equal(t, 0, songs[1].Year)
}
