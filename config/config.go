package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	ServerAddr string

	MusicDir string // Root directory of the music library
	CoverDir string // Flat directory for extracted cover images
	LyricDir string // Flat directory for extracted lyric files

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置（扫描进度缓存）
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// 可选的音频特征分析脚本
	AnalyzerPython string
	AnalyzerScript string

	FFprobePath string

	LogPath  string
	LogLevel string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	musicDir := getEnv("MUSIC_DIR", "music")

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":3000"),
		MusicDir:   musicDir,
		CoverDir:   getEnv("COVER_DIR", filepath.Join("public", "covers")),
		LyricDir:   getEnv("LYRIC_DIR", filepath.Join("public", "lyrics")),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for the password
		DBName:     getEnv("DB_NAME", "sample_music"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AnalyzerPython: getEnv("ANALYZER_PYTHON", "python3"),
		AnalyzerScript: os.Getenv("ANALYZER_SCRIPT"), // empty disables feature analysis

		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),

		LogPath:  getEnv("LOG_PATH", ""),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}
