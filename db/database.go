package db

import (
	"database/sql"
	"fmt"

	"MeloFM/config"
	"MeloFM/logger"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// ConnectDB establishes a connection pool to the database. The pool handle is
// returned to the caller and threaded through constructors; there is no
// package-level database state.
func ConnectDB(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	database, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Successfully connected to the database",
		logger.String("host", cfg.DBHost),
		logger.String("database", cfg.DBName))
	return database, nil
}

// InitDB initializes the database schema, creating tables if they don't exist.
// The unique keys on artist.name and album.title back the idempotent
// ensure-dimension operations in the repository.
func InitDB(database *sql.DB) error {
	if err := createArtistTable(database); err != nil {
		return err
	}
	if err := createAlbumTable(database); err != nil {
		return err
	}
	if err := createSongTable(database); err != nil {
		return err
	}

	logger.Info("Database initialization completed")
	return nil
}

func createArtistTable(database *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS artist (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT uq_artist_name UNIQUE (name)
	);
	`
	if _, err := database.Exec(query); err != nil {
		return fmt.Errorf("failed to create artist table: %w", err)
	}
	return nil
}

func createAlbumTable(database *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS album (
		id INT AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT uq_album_title UNIQUE (title)
	);
	`
	if _, err := database.Exec(query); err != nil {
		return fmt.Errorf("failed to create album table: %w", err)
	}
	return nil
}

func createSongTable(database *sql.DB) error {
	// artists holds the co-artist list JSON-encoded; mp3_url and flac_url are
	// the two format slots backfilled independently.
	query := `
	CREATE TABLE IF NOT EXISTS song_own (
		id INT AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		artist_id INT NOT NULL,
		artists TEXT,
		album_id INT NOT NULL,
		mp3_url VARCHAR(1024),
		flac_url VARCHAR(1024),
		duration FLOAT,
		cover VARCHAR(1024),
		lyric VARCHAR(1024),
		year INT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_song_artist FOREIGN KEY (artist_id) REFERENCES artist(id),
		CONSTRAINT fk_song_album FOREIGN KEY (album_id) REFERENCES album(id),
		KEY idx_song_title_artist (title, artist_id)
	);
	`
	if _, err := database.Exec(query); err != nil {
		return fmt.Errorf("failed to create song_own table: %w", err)
	}
	return nil
}
