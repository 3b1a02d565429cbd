package incident

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safewalk/safewalk/internal/geo"
)

// getTestRedisClient connects to a local Redis or skips the test.
func getTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for integration tests: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisWindow_AddAndFindRecent(t *testing.T) {
	client := getTestRedisClient(t)
	ctx := context.Background()
	key := "test:reports:" + t.Name()
	defer client.Del(ctx, key, key+":marker")

	w := NewRedisWindow(client, RedisWindowConfig{Key: key, Retention: time.Hour, Logger: zerolog.New(io.Discard)})
	now := time.Now()
	loc := geo.Coordinate{Lat: 52.37, Lon: 4.89}

	require.NoError(t, w.Add(ctx, &Report{ID: "old", Location: loc, CreatedAt: now.Add(-40 * time.Minute)}))
	require.NoError(t, w.Add(ctx, &Report{ID: "new", Location: loc, CreatedAt: now.Add(-time.Minute)}))
	require.NoError(t, w.Add(ctx, &Report{ID: "elsewhere", Location: geo.Coordinate{Lat: 0, Lon: 0}, CreatedAt: now}))

	got, err := w.FindRecent(ctx, now.Add(-30*time.Minute), geo.Around(loc, 0.001))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)
}

func TestRedisWindow_TrimsPastRetention(t *testing.T) {
	client := getTestRedisClient(t)
	ctx := context.Background()
	key := "test:reports:" + t.Name()
	defer client.Del(ctx, key, key+":marker")

	w := NewRedisWindow(client, RedisWindowConfig{Key: key, Retention: time.Hour})
	now := time.Now()

	require.NoError(t, w.Add(ctx, &Report{ID: "stale", CreatedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, w.Add(ctx, &Report{ID: "fresh", CreatedAt: now}))

	n, err := client.ZCard(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisWindow_DetectsLostMarker(t *testing.T) {
	client := getTestRedisClient(t)
	ctx := context.Background()
	key := "test:reports:" + t.Name()
	defer client.Del(ctx, key, key+":marker")

	w := NewRedisWindow(client, RedisWindowConfig{Key: key, Retention: time.Hour, Logger: zerolog.New(io.Discard)})
	loc := geo.Coordinate{Lat: 52.37, Lon: 4.89}
	require.NoError(t, w.Add(ctx, &Report{ID: "r1", Location: loc, CreatedAt: time.Now()}))
	// Pretend the window has been complete for longer than the retention.
	w.completeFrom.Store(time.Now().Add(-2 * time.Hour).UnixNano())

	since := time.Now().Add(-30 * time.Minute)
	assert.True(t, w.Covers(since))

	// Simulates a Redis restart or flush.
	require.NoError(t, client.Del(ctx, key, key+":marker").Err())

	_, err := w.FindRecent(ctx, since, geo.Around(loc, 0.001))
	require.ErrorIs(t, err, ErrWindowReset)
	assert.False(t, w.Covers(since))
	assert.Equal(t, int64(1), client.Exists(ctx, key+":marker").Val())
}

func TestRedisWindow_Covers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		completeFrom time.Time
		since        time.Time
		want         bool
	}{
		{name: "inside retention", completeFrom: now.Add(-2 * time.Hour), since: now.Add(-30 * time.Minute), want: true},
		{name: "retention edge", completeFrom: now.Add(-2 * time.Hour), since: now.Add(-time.Hour), want: true},
		{name: "past retention", completeFrom: now.Add(-2 * time.Hour), since: now.Add(-61 * time.Minute), want: false},
		{name: "window younger than query", completeFrom: now.Add(-10 * time.Minute), since: now.Add(-30 * time.Minute), want: false},
		{name: "query after window start", completeFrom: now.Add(-10 * time.Minute), since: now.Add(-5 * time.Minute), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewRedisWindow(nil, RedisWindowConfig{Retention: time.Hour})
			w.now = func() time.Time { return now }
			w.completeFrom.Store(tt.completeFrom.UnixNano())

			assert.Equal(t, tt.want, w.Covers(tt.since))
		})
	}
}

func TestRedisWindow_NotCompleteAtStartup(t *testing.T) {
	w := NewRedisWindow(nil, RedisWindowConfig{Retention: time.Hour})

	assert.False(t, w.Covers(time.Now().Add(-30*time.Minute)))
}

func TestRedisWindow_MarkIncompleteOnlyMovesForward(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := NewRedisWindow(nil, RedisWindowConfig{Retention: time.Hour})
	w.now = func() time.Time { return now }
	w.completeFrom.Store(now.Add(-2 * time.Hour).UnixNano())

	w.markIncomplete(now.Add(-20 * time.Minute))
	w.markIncomplete(now.Add(-50 * time.Minute))

	assert.False(t, w.Covers(now.Add(-30*time.Minute)))
	assert.True(t, w.Covers(now.Add(-10*time.Minute)))
}
