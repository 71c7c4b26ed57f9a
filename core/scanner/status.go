package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MeloFM/logger"

	"github.com/redis/go-redis/v9"
)

const (
	statusKey = "scan:status:latest"
	statusTTL = time.Hour
)

// ScanStatus 当前扫描批次的进度快照
type ScanStatus struct {
	RunID            string    `json:"runId"`
	Root             string    `json:"root"`
	Total            int       `json:"total"`
	Processed        int       `json:"processed"`
	Percent          float64   `json:"percent"`
	ElapsedSeconds   float64   `json:"elapsedSeconds"`
	RemainingSeconds float64   `json:"remainingSeconds"`
	Done             bool      `json:"done"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// StatusPublisher caches batch progress in Redis so the HTTP layer can serve
// it while a scan is running. Publishing is best-effort; the batch never
// fails because of the cache.
type StatusPublisher struct {
	client *redis.Client
}

// NewStatusPublisher returns nil when no Redis client is available.
func NewStatusPublisher(client *redis.Client) *StatusPublisher {
	if client == nil {
		return nil
	}
	return &StatusPublisher{client: client}
}

// Publish stores the snapshot under the latest-status key.
func (p *StatusPublisher) Publish(ctx context.Context, status *ScanStatus) {
	payload, err := json.Marshal(status)
	if err != nil {
		return
	}
	if err := p.client.Set(ctx, statusKey, payload, statusTTL).Err(); err != nil {
		logger.Debug("扫描进度写入Redis失败", logger.ErrorField(err))
	}
}

// Latest returns the most recent snapshot, or nil when none is cached.
func (p *StatusPublisher) Latest(ctx context.Context) (*ScanStatus, error) {
	raw, err := p.client.Get(ctx, statusKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read scan status: %w", err)
	}

	var status ScanStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("failed to decode scan status: %w", err)
	}
	return &status, nil
}
