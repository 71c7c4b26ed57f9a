package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MeloFM/config"
	"MeloFM/core/scanner"
	"MeloFM/db"
	"MeloFM/logger"
	"MeloFM/repository"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	// Connect to the database
	database, err := db.ConnectDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer database.Close()

	// Initialize database schema
	if err := db.InitDB(database); err != nil {
		logger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}

	// Redis is optional: without it only the live scan-status endpoint degrades.
	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		logger.Warn("Redis不可用，扫描进度接口降级", logger.ErrorField(err))
		redisClient = nil
	} else {
		defer db.CloseRedis(redisClient)
	}

	// Create necessary directories if they don't exist
	ensureDirExists(cfg.CoverDir)
	ensureDirExists(cfg.LyricDir)

	artifacts := scanner.NewArtifactWriter(cfg.CoverDir, cfg.LyricDir)
	analyzer := scanner.NewFeatureAnalyzer(cfg.AnalyzerPython, cfg.AnalyzerScript)
	extractor := scanner.NewExtractor(cfg, artifacts, analyzer)
	songRepo := repository.NewMySQLSongRepository(database)
	status := scanner.NewStatusPublisher(redisClient)
	driver := scanner.NewDriver(database, songRepo, extractor, status)

	musicHandler := NewMusicHandler(cfg, driver, songRepo, status)

	// 使用 gorilla/mux 创建路由器
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Range")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// API Endpoints
	router.HandleFunc("/api/music/parse", musicHandler.ParseHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/music/parse/status", musicHandler.ParseStatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/music", musicHandler.ListSongsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/music/stream", musicHandler.StreamHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/cover", musicHandler.CoverHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/lyric", musicHandler.LyricHandler).Methods(http.MethodGet)

	// 解析请求会同步跑完整个批次，WriteTimeout 不能按普通请求设置
	server := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 在goroutine中启动服务器
	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.ServerAddr))
		logger.Info("Trigger a scan via POST /api/music/parse?folder=<relative path>")
		logger.Info("List songs via GET /api/music")
		logger.Info("Stream tracks via GET /api/music/stream?path=<relative path>")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	// 等待中断信号
	<-stop
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("Server stopped")
}

func ensureDirExists(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("Creating directory", logger.String("path", path))
		if err := os.MkdirAll(path, 0755); err != nil {
			logger.Fatal("Failed to create directory",
				logger.String("path", path),
				logger.ErrorField(err))
		}
	} else if err != nil {
		logger.Fatal("Failed to check directory",
			logger.String("path", path),
			logger.ErrorField(err))
	}
}
