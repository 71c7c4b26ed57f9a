package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"MeloFM/logger"
	"MeloFM/model"
)

// ReconcileOutcome 单条记录对账的结果
type ReconcileOutcome int

const (
	// OutcomeCreated: no row existed for the (title, artist) pair, a full
	// insert was performed, creating dimension rows as needed.
	OutcomeCreated ReconcileOutcome = iota
	// OutcomeBackfilled: the pair existed but the incoming format's locator
	// column was empty; only that column was updated.
	OutcomeBackfilled
	// OutcomeDuplicate: the pair existed and its locator was already set.
	OutcomeDuplicate
)

func (o ReconcileOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeBackfilled:
		return "backfilled"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// SongRepository defines the reconciliation and read operations for songs.
//
// Reconcile, EnsureArtist and EnsureAlbum run against an explicitly borrowed
// connection: the batch driver holds one *sql.Conn for a whole run and the
// engine's read-then-write sequences must not interleave with another writer
// on a different pooled connection.
type SongRepository interface {
	Reconcile(ctx context.Context, conn *sql.Conn, record *model.SongRecord) (ReconcileOutcome, error)
	EnsureArtist(ctx context.Context, conn *sql.Conn, name string) (int64, error)
	EnsureAlbum(ctx context.Context, conn *sql.Conn, title string) (int64, error)
	AllSongs(ctx context.Context) ([]*model.Song, error)
}

// mysqlSongRepository implements SongRepository for MySQL.
type mysqlSongRepository struct {
	db *sql.DB
}

// NewMySQLSongRepository creates a new instance of mysqlSongRepository.
func NewMySQLSongRepository(database *sql.DB) SongRepository {
	return &mysqlSongRepository{db: database}
}

// Reconcile resolves one incoming record against the existing rows, keyed on
// the (title, artist) pair, and applies the minimal mutation: insert, single
// locator backfill, or nothing.
func (r *mysqlSongRepository) Reconcile(ctx context.Context, conn *sql.Conn, record *model.SongRecord) (ReconcileOutcome, error) {
	query := `SELECT s.id, s.mp3_url, s.flac_url FROM song_own s
	           JOIN artist a ON a.id = s.artist_id
	           WHERE s.title = ? AND a.name = ? LIMIT 1`

	var (
		songID  int64
		mp3URL  sql.NullString
		flacURL sql.NullString
	)
	err := conn.QueryRowContext(ctx, query, record.Title, record.Artist).Scan(&songID, &mp3URL, &flacURL)
	switch {
	case err == sql.ErrNoRows:
		if err := r.insertSong(ctx, conn, record); err != nil {
			return 0, err
		}
		return OutcomeCreated, nil
	case err != nil:
		return 0, fmt.Errorf("failed to look up song %q by %q: %w", record.Title, record.Artist, err)
	}

	// Same logical song: fill the empty format slot or skip.
	if record.Format == model.FormatFLAC {
		if flacURL.Valid {
			return OutcomeDuplicate, nil
		}
		if err := r.backfillLocator(ctx, conn, songID, "flac_url", record.FlacURL); err != nil {
			return 0, err
		}
		return OutcomeBackfilled, nil
	}

	if mp3URL.Valid {
		return OutcomeDuplicate, nil
	}
	if err := r.backfillLocator(ctx, conn, songID, "mp3_url", record.Mp3URL); err != nil {
		return 0, err
	}
	return OutcomeBackfilled, nil
}

func (r *mysqlSongRepository) backfillLocator(ctx context.Context, conn *sql.Conn, songID int64, column, locator string) error {
	query := fmt.Sprintf("UPDATE song_own SET %s = ? WHERE id = ?", column)
	if _, err := conn.ExecContext(ctx, query, locator, songID); err != nil {
		return fmt.Errorf("failed to backfill %s for song ID %d: %w", column, songID, err)
	}
	logger.Debug("补充歌曲格式地址",
		logger.Int64("songId", songID),
		logger.String("column", column))
	return nil
}

func (r *mysqlSongRepository) insertSong(ctx context.Context, conn *sql.Conn, record *model.SongRecord) error {
	artistID, err := r.EnsureArtist(ctx, conn, record.Artist)
	if err != nil {
		return err
	}
	albumID, err := r.EnsureAlbum(ctx, conn, record.Album)
	if err != nil {
		return err
	}

	var coArtists interface{}
	if len(record.CoArtists) > 0 {
		encoded, err := json.Marshal(record.CoArtists)
		if err != nil {
			return fmt.Errorf("failed to encode co-artists for %q: %w", record.Title, err)
		}
		coArtists = string(encoded)
	}

	query := `INSERT INTO song_own (title, artist_id, artists, album_id, mp3_url, flac_url, duration, cover, lyric, year)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := conn.ExecContext(ctx, query,
		record.Title, artistID, coArtists, albumID,
		nullString(record.Mp3URL), nullString(record.FlacURL),
		record.Duration,
		nullString(record.CoverURL), nullString(record.LyricURL),
		nullInt(record.Year))
	if err != nil {
		return fmt.Errorf("failed to insert song %q: %w", record.Title, err)
	}

	songID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID for song %q: %w", record.Title, err)
	}
	logger.Debug("新增歌曲",
		logger.Int64("songId", songID),
		logger.String("title", record.Title),
		logger.String("artist", record.Artist))
	return nil
}

// EnsureArtist resolves or creates the artist row for name and returns its id.
// The ON DUPLICATE KEY form rides on the unique name key, so a concurrent
// writer cannot mint a second row; LAST_INSERT_ID(id) surfaces the existing
// id through LastInsertId on conflict.
func (r *mysqlSongRepository) EnsureArtist(ctx context.Context, conn *sql.Conn, name string) (int64, error) {
	res, err := conn.ExecContext(ctx,
		`INSERT INTO artist (name) VALUES (?) ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to ensure artist %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get artist ID for %q: %w", name, err)
	}
	return id, nil
}

// EnsureAlbum resolves or creates the album row for title and returns its id.
func (r *mysqlSongRepository) EnsureAlbum(ctx context.Context, conn *sql.Conn, title string) (int64, error) {
	res, err := conn.ExecContext(ctx,
		`INSERT INTO album (title) VALUES (?) ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`, title)
	if err != nil {
		return 0, fmt.Errorf("failed to ensure album %q: %w", title, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get album ID for %q: %w", title, err)
	}
	return id, nil
}

// AllSongs retrieves every song with its artist and album names resolved.
func (r *mysqlSongRepository) AllSongs(ctx context.Context) ([]*model.Song, error) {
	query := `SELECT s.id, s.title, s.artist_id, a.name, s.artists, s.album_id, al.title,
	                  s.mp3_url, s.flac_url, s.duration, s.cover, s.lyric, s.year, s.created_at, s.updated_at
	           FROM song_own s
	           JOIN artist a ON a.id = s.artist_id
	           JOIN album al ON al.id = s.album_id
	           ORDER BY s.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	songs := make([]*model.Song, 0)
	for rows.Next() {
		song := &model.Song{}
		var (
			coArtists sql.NullString
			mp3URL    sql.NullString
			flacURL   sql.NullString
			duration  sql.NullFloat64
			coverURL  sql.NullString
			lyricURL  sql.NullString
			year      sql.NullInt64
		)
		err := rows.Scan(&song.ID, &song.Title, &song.ArtistID, &song.Artist, &coArtists,
			&song.AlbumID, &song.Album, &mp3URL, &flacURL, &duration, &coverURL, &lyricURL,
			&year, &song.CreatedAt, &song.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan song in AllSongs: %w", err)
		}

		if coArtists.Valid && coArtists.String != "" {
			if err := json.Unmarshal([]byte(coArtists.String), &song.CoArtists); err != nil {
				logger.Warn("无法解析歌曲的合作艺术家列表",
					logger.Int64("songId", song.ID),
					logger.ErrorField(err))
			}
		}
		song.Mp3URL = mp3URL.String
		song.FlacURL = flacURL.String
		song.Duration = duration.Float64
		song.CoverURL = coverURL.String
		song.LyricURL = lyricURL.String
		song.Year = int(year.Int64)

		songs = append(songs, song)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in AllSongs: %w", err)
	}

	return songs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}
