package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"MeloFM/config"
	"MeloFM/core/scanner"
	"MeloFM/logger"
	"MeloFM/repository"
)

// MusicHandler 处理音乐库相关的API请求
type MusicHandler struct {
	cfg    *config.Config
	driver *scanner.Driver
	repo   repository.SongRepository
	status *scanner.StatusPublisher // may be nil
}

// NewMusicHandler 创建新的音乐库处理器
func NewMusicHandler(cfg *config.Config, driver *scanner.Driver, repo repository.SongRepository, status *scanner.StatusPublisher) *MusicHandler {
	return &MusicHandler{cfg: cfg, driver: driver, repo: repo, status: status}
}

var audioMimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("写入响应失败", logger.ErrorField(err))
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// ParseHandler triggers one ingestion batch over a folder below the music
// root and responds after the whole batch completes.
func (h *MusicHandler) ParseHandler(w http.ResponseWriter, r *http.Request) {
	folder := r.URL.Query().Get("folder")
	if folder == "" {
		respondWithError(w, http.StatusBadRequest, "缺少folder参数")
		return
	}

	normalized, err := validateFolderParam(folder)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "非法路径参数")
		return
	}

	fullPath := filepath.Join(h.cfg.MusicDir, normalized)
	info, err := os.Stat(fullPath)
	if err != nil || !info.IsDir() {
		respondWithError(w, http.StatusNotFound, fullPath+"路径不存在")
		return
	}

	summary, err := h.driver.Run(r.Context(), fullPath)
	if errors.Is(err, scanner.ErrScanInProgress) {
		respondWithError(w, http.StatusConflict, "已有扫描任务在运行")
		return
	}
	if err != nil {
		logger.Error("解析歌曲文件夹失败",
			logger.String("folder", fullPath),
			logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "无法解析歌曲文件夹")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": "解析歌曲文件夹成功",
		"summary": summary,
	})
}

// validateFolderParam rejects absolute paths and any path that points above
// the music root.
func validateFolderParam(folder string) (string, error) {
	if filepath.IsAbs(folder) {
		return "", errors.New("absolute path not allowed")
	}
	normalized := filepath.Clean(folder)
	for _, segment := range strings.Split(filepath.ToSlash(normalized), "/") {
		if segment == ".." {
			return "", errors.New("path escapes the music root")
		}
	}
	return normalized, nil
}

// ParseStatusHandler serves the latest batch progress from the Redis cache.
func (h *MusicHandler) ParseStatusHandler(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		respondWithError(w, http.StatusServiceUnavailable, "扫描进度缓存不可用")
		return
	}

	status, err := h.status.Latest(r.Context())
	if err != nil {
		logger.Error("读取扫描进度失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "读取扫描进度失败")
		return
	}
	if status == nil {
		respondWithError(w, http.StatusNotFound, "暂无扫描记录")
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}

// ListSongsHandler returns every reconciled song with artist and album names.
func (h *MusicHandler) ListSongsHandler(w http.ResponseWriter, r *http.Request) {
	songs, err := h.repo.AllSongs(r.Context())
	if err != nil {
		logger.Error("查询歌曲列表失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "数据库查询失败")
		return
	}

	respondWithJSON(w, http.StatusOK, songs)
}

// StreamHandler streams raw audio bytes for a path relative to the music
// root, with Content-Type derived from the extension.
func (h *MusicHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	if rel == "" {
		respondWithError(w, http.StatusBadRequest, "缺少path参数")
		return
	}

	fullPath, ok := resolveWithin(h.cfg.MusicDir, rel)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "无效的文件路径")
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		respondWithError(w, http.StatusNotFound, "文件未找到")
		return
	}

	f, err := os.Open(fullPath)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "文件未找到")
		return
	}
	defer f.Close()

	contentType := audioMimeTypes[strings.ToLower(filepath.Ext(fullPath))]
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		logger.Warn("音频流传输中断",
			logger.String("path", fullPath),
			logger.ErrorField(err))
	}
}

// CoverHandler serves extracted cover images from the flat cover directory.
func (h *MusicHandler) CoverHandler(w http.ResponseWriter, r *http.Request) {
	h.serveArtifact(w, r, h.cfg.CoverDir, coverContentType, "封面文件不存在")
}

// LyricHandler serves extracted lyric files from the flat lyric directory.
func (h *MusicHandler) LyricHandler(w http.ResponseWriter, r *http.Request) {
	h.serveArtifact(w, r, h.cfg.LyricDir, func(string) string { return "text/plain; charset=utf-8" }, "歌词文件不存在")
}

func coverContentType(ext string) string {
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (h *MusicHandler) serveArtifact(w http.ResponseWriter, r *http.Request, dir string, contentType func(string) string, notFound string) {
	rel := r.URL.Query().Get("path")
	if rel == "" {
		respondWithError(w, http.StatusBadRequest, "缺少path参数")
		return
	}

	fullPath, ok := resolveWithin(dir, rel)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "非法文件路径")
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		respondWithError(w, http.StatusNotFound, notFound)
		return
	}

	f, err := os.Open(fullPath)
	if err != nil {
		respondWithError(w, http.StatusNotFound, notFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType(strings.ToLower(filepath.Ext(fullPath))))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		logger.Warn("文件传输中断",
			logger.String("path", fullPath),
			logger.ErrorField(err))
	}
}

// resolveWithin joins an untrusted relative path onto dir and rejects any
// result that escapes dir.
func resolveWithin(dir, requested string) (string, bool) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	fullPath := filepath.Join(absDir, requested)
	if fullPath != absDir && !strings.HasPrefix(fullPath, absDir+string(os.PathSeparator)) {
		return "", false
	}
	return fullPath, true
}
