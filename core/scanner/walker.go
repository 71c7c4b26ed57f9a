package scanner

import (
	"fmt"
	"os"
	"path/filepath"

	"MeloFM/logger"
)

// Walk enumerates every audio file under root, depth-first, using an explicit
// worklist so deep trees don't pile up file handles. Sibling order follows
// platform directory order and is stable within a single run.
//
// Non-audio entries are classified for diagnostics and skipped. The walk
// fails if root itself cannot be listed; unreadable subdirectories propagate
// their error as well.
func Walk(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open scan root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", root)
	}

	var audioFiles []string
	stack := []string{root}

	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to list directory %s: %w", dir, err)
		}

		// Push subdirectories in reverse so they pop in directory order.
		var subdirs []string
		for _, entry := range entries {
			fullPath := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				subdirs = append(subdirs, fullPath)
				continue
			}

			switch Classify(fullPath) {
			case KindAudio:
				audioFiles = append(audioFiles, fullPath)
			case KindImage:
				logger.Debug("跳过图片文件", logger.String("path", fullPath))
			case KindText:
				logger.Debug("跳过歌词文件", logger.String("path", fullPath))
			default:
				logger.Info("无法识别该文件", logger.String("path", fullPath))
			}
		}
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}

	return audioFiles, nil
}
