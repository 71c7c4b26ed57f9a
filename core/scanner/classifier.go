package scanner

import (
	"path/filepath"
	"strings"
)

// FileKind 文件分类结果
type FileKind int

const (
	KindUnrecognized FileKind = iota
	KindAudio
	KindImage
	KindText
)

func (k FileKind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindImage:
		return "image"
	case KindText:
		return "text"
	default:
		return "unrecognized"
	}
}

var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".ogg":  {},
	".flac": {},
	".m4a":  {},
}

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

var textExtensions = map[string]struct{}{
	".lrc": {},
	".txt": {},
}

// Classify maps a path to a content kind by its extension, case-insensitively.
// It performs no I/O.
func Classify(path string) FileKind {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := audioExtensions[ext]; ok {
		return KindAudio
	}
	if _, ok := imageExtensions[ext]; ok {
		return KindImage
	}
	if _, ok := textExtensions[ext]; ok {
		return KindText
	}
	return KindUnrecognized
}
