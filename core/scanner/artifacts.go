package scanner

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ArtifactWriter persists embedded cover art and lyric text extracted from
// audio files into two flat directories, keyed by the audio file's stem.
//
// Known limitation: two files sharing a stem in different subdirectories
// overwrite each other's artifacts. The refs handed out are API locators, not
// filesystem paths.
type ArtifactWriter struct {
	coverDir string
	lyricDir string
}

// NewArtifactWriter creates a writer over the configured artifact directories.
func NewArtifactWriter(coverDir, lyricDir string) *ArtifactWriter {
	return &ArtifactWriter{coverDir: coverDir, lyricDir: lyricDir}
}

// WriteCover writes embedded cover bytes as <stem>.<subtype> where the
// subtype comes from the picture's MIME type, and returns the cover ref.
func (w *ArtifactWriter) WriteCover(stem string, data []byte, mimeType string) (string, error) {
	subtype := mimeType
	if idx := strings.Index(mimeType, "/"); idx >= 0 {
		subtype = mimeType[idx+1:]
	}
	name := fmt.Sprintf("%s.%s", stem, subtype)

	if err := os.WriteFile(filepath.Join(w.coverDir, name), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write cover %s: %w", name, err)
	}

	return "/api/cover?path=" + url.QueryEscape(name), nil
}

// WriteLyric writes embedded lyric text as <stem>.lrc and returns the lyric
// ref. The text is normalized to NFC and prefixed with a UTF-8 BOM; an
// existing file at that path is overwritten.
func (w *ArtifactWriter) WriteLyric(stem, text string) (string, error) {
	name := stem + ".lrc"
	content := "\uFEFF" + norm.NFC.String(text)

	if err := os.WriteFile(filepath.Join(w.lyricDir, name), []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write lyric %s: %w", name, err)
	}

	return "/api/lyric?path=" + url.QueryEscape(name), nil
}
