package model

import "time"

// FormatKind 标识歌曲文件占用的格式槽位
type FormatKind int

const (
	// FormatOther covers every supported extension without a dedicated column;
	// it shares the mp3_url slot.
	FormatOther FormatKind = iota
	FormatMP3
	FormatFLAC
)

func (k FormatKind) String() string {
	switch k {
	case FormatMP3:
		return "mp3"
	case FormatFLAC:
		return "flac"
	default:
		return "other"
	}
}

// Artist is a dimension row, created lazily on first encounter and never
// updated by the ingestion pipeline.
type Artist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Album is a dimension row, same lifecycle as Artist.
type Album struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Song represents a logical song in the library. A single row may carry both
// an MP3 and a FLAC locator when format variants of the same (title, artist)
// pair were ingested.
type Song struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	ArtistID  int64     `json:"artistId"`
	Artist    string    `json:"artist"`
	CoArtists []string  `json:"artists,omitempty"`
	AlbumID   int64     `json:"albumId"`
	Album     string    `json:"album"`
	Mp3URL    string    `json:"mp3Url,omitempty"`
	FlacURL   string    `json:"flacUrl,omitempty"`
	Duration  float64   `json:"duration"`
	CoverURL  string    `json:"cover,omitempty"`
	LyricURL  string    `json:"lyric,omitempty"`
	Year      int       `json:"year,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SongRecord is the transient record produced by the extractor for one audio
// file and consumed by the reconciliation engine. Exactly one of Mp3URL /
// FlacURL is populated, selected by Format.
type SongRecord struct {
	Path       string
	Title      string
	Artist     string
	CoArtists  []string
	Album      string
	Year       int // 0 when the tag is absent
	Genre      string
	Duration   float64
	SampleRate int
	BitDepth   int // meaningful for lossless formats only
	FileSize   int64
	Format     FormatKind
	Mp3URL     string
	FlacURL    string
	CoverURL   string
	LyricURL   string

	// Features holds the optional external analyzer result. It is logged but
	// not persisted.
	Features *AudioFeatures
}

// StreamURL returns the locator populated for this record's format slot.
func (r *SongRecord) StreamURL() string {
	if r.Format == FormatFLAC {
		return r.FlacURL
	}
	return r.Mp3URL
}

// AudioFeatures is the payload returned by the external feature analyzer.
type AudioFeatures struct {
	Data map[string]interface{} `json:"data"`
}
