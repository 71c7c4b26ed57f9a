package scanner

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"MeloFM/config"
	"MeloFM/logger"
	"MeloFM/model"

	"github.com/dhowden/tag"
)

// 标签缺失时的占位值，下游去重逻辑依赖非空键
const (
	UnknownArtist = "未知艺术家"
	UnknownAlbum  = "未知专辑"
)

// Extractor produces one SongRecord per audio file: the tag block comes from
// the embedded metadata, the format block from ffprobe, embedded artifacts
// are written out as a side effect.
type Extractor struct {
	musicDir    string
	ffprobePath string
	artifacts   *ArtifactWriter
	analyzer    *FeatureAnalyzer
}

// NewExtractor creates an extractor rooted at the configured music directory.
// analyzer may be nil.
func NewExtractor(cfg *config.Config, artifacts *ArtifactWriter, analyzer *FeatureAnalyzer) *Extractor {
	return &Extractor{
		musicDir:    cfg.MusicDir,
		ffprobePath: cfg.FFprobePath,
		artifacts:   artifacts,
		analyzer:    analyzer,
	}
}

// tagBlock 音频容器内嵌的标签元数据
type tagBlock struct {
	Title  string
	Artist string
	Album  string
	Genre  string
	Year   int
	Lyrics string

	Picture *tag.Picture
}

// formatBlock 容器的结构化音频属性
type formatBlock struct {
	Duration      float64
	SampleRate    int
	BitsPerSample int
}

// Extract parses one audio file into a SongRecord. Any returned error is a
// per-file extraction failure; the caller skips the file and continues.
func (e *Extractor) Extract(ctx context.Context, path string) (*model.SongRecord, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	// A missing or corrupt tag block is tolerated and falls back to defaults;
	// the format block is required.
	tags := e.readTagBlock(path)
	format, err := e.readFormatBlock(path)
	if err != nil {
		return nil, err
	}

	stem := fileStem(path)
	coverURL := ""
	if tags.Picture != nil && len(tags.Picture.Data) > 0 {
		coverURL, err = e.artifacts.WriteCover(stem, tags.Picture.Data, tags.Picture.MIMEType)
		if err != nil {
			return nil, err
		}
	}

	lyricURL := ""
	if tags.Lyrics != "" {
		lyricURL, err = e.artifacts.WriteLyric(stem, tags.Lyrics)
		if err != nil {
			return nil, err
		}
	}

	relPath, err := filepath.Rel(e.musicDir, path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s against music root: %w", path, err)
	}

	record := buildRecord(path, relPath, tags, format, fileInfo.Size(), coverURL, lyricURL)

	if e.analyzer != nil {
		features, err := e.analyzer.Analyze(ctx, path)
		if err != nil {
			logger.Warn("特征分析失败", logger.String("path", path), logger.ErrorField(err))
		} else {
			record.Features = features
			logger.Debug("音频特征分析成功", logger.String("path", path))
		}
	}

	return record, nil
}

// readTagBlock reads the embedded tag metadata. Failures yield a zero block;
// the record then falls back to filename and sentinel defaults.
func (e *Extractor) readTagBlock(path string) tagBlock {
	f, err := os.Open(path)
	if err != nil {
		logger.Debug("无法打开文件读取标签", logger.String("path", path), logger.ErrorField(err))
		return tagBlock{}
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		logger.Debug("标签读取失败，使用回退值", logger.String("path", path), logger.ErrorField(err))
		return tagBlock{}
	}

	return tagBlock{
		Title:   m.Title(),
		Artist:  m.Artist(),
		Album:   m.Album(),
		Genre:   m.Genre(),
		Year:    m.Year(),
		Lyrics:  m.Lyrics(),
		Picture: m.Picture(),
	}
}

func (e *Extractor) readFormatBlock(path string) (formatBlock, error) {
	info, err := runFFprobe(e.ffprobePath, path)
	if err != nil {
		return formatBlock{}, err
	}

	var format formatBlock
	if info.Format != nil && info.Format.Duration != "" {
		format.Duration, _ = strconv.ParseFloat(info.Format.Duration, 64)
	}
	if stream := info.audioStream(); stream != nil {
		if stream.SampleRate != "" {
			format.SampleRate, _ = strconv.Atoi(stream.SampleRate)
		}
		format.BitsPerSample = stream.BitsPerSample.Value
		if format.Duration == 0 && stream.Duration != "" {
			format.Duration, _ = strconv.ParseFloat(stream.Duration, 64)
		}
	}

	return format, nil
}

// buildRecord applies the field derivation rules. It is pure so the rules can
// be tested without real audio files.
func buildRecord(path, relPath string, tags tagBlock, format formatBlock, fileSize int64, coverURL, lyricURL string) *model.SongRecord {
	title := strings.TrimSpace(tags.Title)
	if title == "" {
		title = fileStem(path)
	}

	artist, coArtists := splitArtistTag(tags.Artist)

	album := strings.TrimSpace(tags.Album)
	if album == "" {
		album = UnknownAlbum
	}

	record := &model.SongRecord{
		Path:       path,
		Title:      title,
		Artist:     artist,
		CoArtists:  coArtists,
		Album:      album,
		Year:       tags.Year,
		Genre:      tags.Genre,
		Duration:   format.Duration,
		SampleRate: format.SampleRate,
		FileSize:   fileSize,
		CoverURL:   coverURL,
		LyricURL:   lyricURL,
	}

	streamURL := "/api/music/stream?path=" + escapePathSegments(relPath)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		record.Format = model.FormatMP3
		record.Mp3URL = streamURL
	case ".flac":
		record.Format = model.FormatFLAC
		record.FlacURL = streamURL
		record.BitDepth = format.BitsPerSample
		if record.BitDepth == 0 {
			record.BitDepth = 16
		}
	default:
		// Other audio formats share the generic (mp3) locator slot.
		record.Format = model.FormatOther
		record.Mp3URL = streamURL
	}

	return record
}

// splitArtistTag splits a raw artist tag on "&": the first trimmed segment is
// the primary artist, the rest become co-artists. An absent tag yields the
// sentinel and no co-artists.
func splitArtistTag(raw string) (string, []string) {
	if strings.TrimSpace(raw) == "" {
		return UnknownArtist, nil
	}

	parts := strings.Split(raw, "&")
	artist := strings.TrimSpace(parts[0])

	var coArtists []string
	for _, part := range parts[1:] {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			coArtists = append(coArtists, trimmed)
		}
	}
	return artist, coArtists
}

// fileStem returns the base name without its extension.
func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// escapePathSegments escapes each segment of a relative path for use in a
// query parameter, keeping the slashes readable.
func escapePathSegments(relPath string) string {
	segments := strings.Split(filepath.ToSlash(relPath), "/")
	for i, segment := range segments {
		segments[i] = url.QueryEscape(segment)
	}
	return strings.Join(segments, "/")
}
