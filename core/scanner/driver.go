package scanner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"MeloFM/logger"
	"MeloFM/model"
	"MeloFM/repository"

	"github.com/google/uuid"
)

// ErrScanInProgress is returned when a batch is triggered while another one
// is still running. At most one batch runs at a time; the flat artifact
// directories are unsynchronized.
var ErrScanInProgress = errors.New("scan already in progress")

// 单个文件失败发生的阶段
const (
	StageExtract   = "extract"
	StageReconcile = "reconcile"
)

// RecordExtractor produces one SongRecord per audio file path.
type RecordExtractor interface {
	Extract(ctx context.Context, path string) (*model.SongRecord, error)
}

// FileFailure records one skipped file and why.
type FileFailure struct {
	Path  string `json:"path"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// Summary aggregates the result of one ingestion batch.
type Summary struct {
	RunID          string        `json:"runId"`
	Root           string        `json:"root"`
	Total          int           `json:"total"`
	Created        int           `json:"created"`
	Backfilled     int           `json:"backfilled"`
	Duplicates     int           `json:"duplicates"`
	Failed         int           `json:"failed"`
	Failures       []FileFailure `json:"failures,omitempty"`
	ElapsedSeconds float64       `json:"elapsedSeconds"`
}

// Driver orchestrates walker, extractor and reconciliation over one folder.
// It borrows exactly one pooled connection for the whole batch and processes
// files strictly sequentially, so the engine's read-then-write sequences
// never interleave.
type Driver struct {
	db        *sql.DB
	repo      repository.SongRepository
	extractor RecordExtractor
	status    *StatusPublisher // may be nil

	mu      sync.Mutex
	running bool
}

// NewDriver creates a batch driver. status may be nil when Redis is absent.
func NewDriver(database *sql.DB, repo repository.SongRepository, extractor RecordExtractor, status *StatusPublisher) *Driver {
	return &Driver{
		db:        database,
		repo:      repo,
		extractor: extractor,
		status:    status,
	}
}

// Run ingests every audio file under root. A single file's failure at any
// stage is logged and skipped; only connection acquisition and root listing
// abort the batch. Cancellation is checked between files.
func (d *Driver) Run(ctx context.Context, root string) (*Summary, error) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil, ErrScanInProgress
	}
	d.running = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	runID := uuid.NewString()

	// 整个批次只借用一个连接，无论中途如何失败都归还一次
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire database connection: %w", err)
	}
	defer conn.Close()

	files, err := Walk(root)
	if err != nil {
		return nil, err
	}

	summary := &Summary{RunID: runID, Root: root, Total: len(files)}
	start := time.Now()
	logger.Info("开始解析歌曲文件夹",
		logger.String("runId", runID),
		logger.String("root", root),
		logger.Int("total", summary.Total))

	processed := 0
	for _, path := range files {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("scan cancelled after %d/%d files: %w", processed, summary.Total, ctx.Err())
		default:
		}

		processed++

		record, err := d.extractor.Extract(ctx, path)
		if err != nil {
			logger.Warn("处理文件失败，跳过",
				logger.String("path", path),
				logger.ErrorField(err))
			summary.Failed++
			summary.Failures = append(summary.Failures, FileFailure{Path: path, Stage: StageExtract, Error: err.Error()})
			d.reportProgress(ctx, runID, root, processed, summary.Total, start, false)
			continue
		}

		outcome, err := d.repo.Reconcile(ctx, conn, record)
		if err != nil {
			logger.Error("数据库保存失败，跳过",
				logger.String("path", path),
				logger.ErrorField(err))
			summary.Failed++
			summary.Failures = append(summary.Failures, FileFailure{Path: path, Stage: StageReconcile, Error: err.Error()})
			d.reportProgress(ctx, runID, root, processed, summary.Total, start, false)
			continue
		}

		switch outcome {
		case repository.OutcomeCreated:
			summary.Created++
		case repository.OutcomeBackfilled:
			summary.Backfilled++
		case repository.OutcomeDuplicate:
			summary.Duplicates++
			logger.Debug("跳过重复歌曲",
				logger.String("title", record.Title),
				logger.String("artist", record.Artist))
		}

		d.reportProgress(ctx, runID, root, processed, summary.Total, start, false)
	}

	summary.ElapsedSeconds = time.Since(start).Seconds()
	d.reportProgress(ctx, runID, root, processed, summary.Total, start, true)
	logger.Info("解析歌曲文件夹完成",
		logger.String("runId", runID),
		logger.Int("total", summary.Total),
		logger.Int("created", summary.Created),
		logger.Int("backfilled", summary.Backfilled),
		logger.Int("duplicates", summary.Duplicates),
		logger.Int("failed", summary.Failed),
		logger.Float64("elapsedSeconds", summary.ElapsedSeconds))

	return summary, nil
}

// reportProgress logs and publishes progress at every 10th file and at
// completion, with a simple linear ETA.
func (d *Driver) reportProgress(ctx context.Context, runID, root string, processed, total int, start time.Time, done bool) {
	if !done && processed%10 != 0 && processed != total {
		return
	}

	elapsed := time.Since(start).Seconds()
	percent := 0.0
	remaining := 0.0
	if total > 0 {
		percent = float64(processed) / float64(total) * 100
	}
	if processed > 0 {
		remaining = elapsed / float64(processed) * float64(total-processed)
	}

	logger.Info("扫描进度",
		logger.String("runId", runID),
		logger.Int("processed", processed),
		logger.Int("total", total),
		logger.Float64("percent", percent),
		logger.Float64("elapsedSeconds", elapsed),
		logger.Float64("remainingSeconds", remaining))

	if d.status != nil {
		d.status.Publish(ctx, &ScanStatus{
			RunID:            runID,
			Root:             root,
			Total:            total,
			Processed:        processed,
			Percent:          percent,
			ElapsedSeconds:   elapsed,
			RemainingSeconds: remaining,
			Done:             done,
			UpdatedAt:        time.Now(),
		})
	}
}
