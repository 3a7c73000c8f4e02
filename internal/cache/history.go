package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/webpulse/webpulse/internal/history"
	"github.com/webpulse/webpulse/internal/model"
)

const (
	historyKeyPrefix = keyPrefix + "history:"

	// DefaultHistoryTTL is how long an idle session's history is kept.
	DefaultHistoryTTL = 24 * time.Hour
)

// HistoryStore is a history.Store backed by one Redis list per session.
// Every append refreshes the session's TTL.
type HistoryStore struct {
	cache *Cache
	ttl   time.Duration
}

var _ history.Store = (*HistoryStore)(nil)

// NewHistoryStore creates a Redis history store.
func NewHistoryStore(c *Cache, ttl time.Duration) *HistoryStore {
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	return &HistoryStore{cache: c, ttl: ttl}
}

func historyKey(sessionID string) string {
	return historyKeyPrefix + sessionID
}

// Append pushes report onto the session list.
func (s *HistoryStore) Append(ctx context.Context, sessionID string, report *model.AnalysisReport) error {
	if report == nil {
		return errors.New("nil report")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	key := historyKey(sessionID)
	pipe := s.cache.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis rpush failed: %w", err)
	}
	return nil
}

// List returns the session's reports, oldest first.
func (s *HistoryStore) List(ctx context.Context, sessionID string) ([]*model.AnalysisReport, error) {
	items, err := s.cache.rdb.LRange(ctx, historyKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange failed: %w", err)
	}

	reports := make([]*model.AnalysisReport, 0, len(items))
	for _, item := range items {
		report, err := decodeReport(item)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Get scans the session list for reportID.
func (s *HistoryStore) Get(ctx context.Context, sessionID, reportID string) (*model.AnalysisReport, error) {
	reports, err := s.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, r := range reports {
		if r.ID == reportID {
			return r, nil
		}
	}
	return nil, history.ErrNotFound
}

func decodeReport(item string) (*model.AnalysisReport, error) {
	var report model.AnalysisReport
	if err := json.Unmarshal([]byte(item), &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &report, nil
}
