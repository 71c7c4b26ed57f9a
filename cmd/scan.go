package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"MeloFM/config"
	"MeloFM/core/scanner"
	"MeloFM/db"
	"MeloFM/logger"
	"MeloFM/repository"

	"github.com/spf13/cobra"
)

var scanFolder string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "扫描音乐文件夹并写入数据库",
	Long:  `对音乐库根目录（或 --folder 指定的子目录）执行一次完整的解析入库批次，不启动HTTP服务器`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogPath,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		})

		database, err := db.ConnectDB(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := db.InitDB(database); err != nil {
			return err
		}

		for _, dir := range []string{cfg.CoverDir, cfg.LyricDir} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}

		root := cfg.MusicDir
		if scanFolder != "" {
			root = filepath.Join(cfg.MusicDir, filepath.Clean(scanFolder))
		}

		artifacts := scanner.NewArtifactWriter(cfg.CoverDir, cfg.LyricDir)
		analyzer := scanner.NewFeatureAnalyzer(cfg.AnalyzerPython, cfg.AnalyzerScript)
		extractor := scanner.NewExtractor(cfg, artifacts, analyzer)
		songRepo := repository.NewMySQLSongRepository(database)
		driver := scanner.NewDriver(database, songRepo, extractor, nil)

		summary, err := driver.Run(cmd.Context(), root)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVarP(&scanFolder, "folder", "f", "", "music根目录下要扫描的子目录")
	rootCmd.AddCommand(scanCmd)
}
