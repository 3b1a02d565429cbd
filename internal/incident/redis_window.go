package incident

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/geo"
)

// DefaultWindowKey is the sorted set holding recent reports.
const DefaultWindowKey = "safewalk:reports:recent"

// ErrWindowReset is returned by FindRecent when the window's marker key is
// gone, which means Redis lost the window (restart, flush or eviction).
var ErrWindowReset = errors.New("report window was reset")

// RedisWindowConfig configures a RedisWindow.
type RedisWindowConfig struct {
	// Key overrides DefaultWindowKey.
	Key string

	// Retention is how long reports stay in the window (default: 2 hours).
	Retention time.Duration

	Logger zerolog.Logger
}

// RedisWindow keeps recent reports in a Redis sorted set scored by creation
// time in unix milliseconds. Members are the JSON-encoded reports.
//
// The window only vouches for reports created after completeFrom: the time
// it was created, last failed a write, or found its marker key missing.
// A persistent marker key next to the set detects Redis losing data.
type RedisWindow struct {
	client    redis.UniversalClient
	key       string
	markerKey string
	retention time.Duration
	logger    zerolog.Logger
	now       func() time.Time

	completeFrom atomic.Int64 // UnixNano
}

// NewRedisWindow creates a RedisWindow on client.
func NewRedisWindow(client redis.UniversalClient, cfg RedisWindowConfig) *RedisWindow {
	key := cfg.Key
	if key == "" {
		key = DefaultWindowKey
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = 2 * time.Hour
	}
	w := &RedisWindow{
		client:    client,
		key:       key,
		markerKey: key + ":marker",
		retention: retention,
		logger:    cfg.Logger,
		now:       time.Now,
	}
	w.completeFrom.Store(w.now().UnixNano())
	return w
}

// Add inserts report and trims entries older than the retention.
func (w *RedisWindow) Add(ctx context.Context, report *Report) error {
	member, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	cutoff := w.now().Add(-w.retention).UnixMilli()

	pipe := w.client.TxPipeline()
	marker := pipe.SetNX(ctx, w.markerKey, w.now().UnixMilli(), 0)
	pipe.ZAdd(ctx, w.key, redis.Z{Score: float64(report.CreatedAt.UnixMilli()), Member: member})
	pipe.ZRemRangeByScore(ctx, w.key, "-inf", "("+strconv.FormatInt(cutoff, 10))
	pipe.Expire(ctx, w.key, w.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		w.markIncomplete(w.now())
		return fmt.Errorf("writing report window: %w", err)
	}

	// A fresh marker means the window started over just now.
	if marker.Val() {
		w.markIncomplete(report.CreatedAt)
	}
	return nil
}

// FindRecent returns windowed reports inside box created at or after since,
// newest first.
func (w *RedisWindow) FindRecent(ctx context.Context, since time.Time, box geo.BoundingBox) ([]Report, error) {
	pipe := w.client.Pipeline()
	exists := pipe.Exists(ctx, w.markerKey)
	rng := pipe.ZRevRangeByScore(ctx, w.key, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("reading report window: %w", err)
	}

	if exists.Val() == 0 {
		now := w.now()
		w.markIncomplete(now)
		if err := w.client.SetNX(ctx, w.markerKey, now.UnixMilli(), 0).Err(); err != nil {
			w.logger.Warn().Err(err).Str("key", w.markerKey).Msg("failed to restore window marker")
		}
		w.logger.Warn().Str("key", w.key).Msg("report window marker missing, window restarted")
		return nil, ErrWindowReset
	}
	members := rng.Val()

	var out []Report
	for _, m := range members {
		var report Report
		if err := json.Unmarshal([]byte(m), &report); err != nil {
			w.logger.Warn().Err(err).Str("key", w.key).Msg("skipping undecodable window member")
			continue
		}
		if box.Contains(report.Location) {
			out = append(out, report)
		}
	}
	return out, nil
}

// Covers reports whether t is inside the retention and not before the
// window last became complete.
func (w *RedisWindow) Covers(t time.Time) bool {
	if t.Before(w.now().Add(-w.retention)) {
		return false
	}
	return t.After(time.Unix(0, w.completeFrom.Load()))
}

func (w *RedisWindow) markIncomplete(at time.Time) {
	ns := at.UnixNano()
	for {
		prev := w.completeFrom.Load()
		if ns <= prev || w.completeFrom.CompareAndSwap(prev, ns) {
			return
		}
	}
}

// Ping checks the Redis connection.
func (w *RedisWindow) Ping(ctx context.Context) error {
	return w.client.Ping(ctx).Err()
}

var _ HotWindow = (*RedisWindow)(nil)
