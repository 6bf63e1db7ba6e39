package redis

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T, retention int) (*repo, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	return NewRepo(rc, retention, time.Hour, slog.Default()), s
}

func at(hour, min, sec int) time.Time {
	return time.Date(2026, 10, 17, hour, min, sec, 0, time.UTC)
}

func TestAppendAndRecentWindow(t *testing.T) {
	ctx := context.Background()
	repo, s := newTestRepo(t, 0)

	userID := "u1"
	arrivals := []time.Time{at(10, 0, 0), at(10, 0, 2), at(10, 0, 1)}
	for i, rt := range arrivals {
		ev, err := repo.Append(ctx, domain.LogEvent{
			ID:           string(rune('a' + i)),
			RoomID:       "room",
			Type:         domain.EventMessage,
			Content:      "hello",
			RealTime:     rt,
			EventTimeSec: float64(i),
			UserID:       &userID,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), ev.Sequence)
	}

	window, err := repo.RecentWindow(ctx, "room", 50)
	require.NoError(t, err)
	require.Len(t, window, 3)
	assert.Equal(t, "a", window[0].ID)
	assert.Equal(t, "b", window[1].ID)
	assert.Equal(t, "c", window[2].ID)
	assert.Equal(t, at(10, 0, 2), window[2].RealTime)
	assert.Equal(t, "u1", *window[2].UserID)
	for i := 1; i < len(window); i++ {
		assert.True(t, window[i-1].Before(window[i]))
	}

	last, err := repo.RecentWindow(ctx, "room", 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "c", last[0].ID)

	assert.True(t, s.Exists("room:room:log"))
	assert.Greater(t, s.TTL("room:room:log"), time.Duration(0))
}

func TestSinceRetentionAndDrop(t *testing.T) {
	ctx := context.Background()
	repo, s := newTestRepo(t, 3)

	for i := 0; i < 6; i++ {
		_, err := repo.Append(ctx, domain.LogEvent{RoomID: "room", Type: domain.EventSeek, RealTime: at(10, 0, i)})
		require.NoError(t, err)
	}

	all, err := repo.RecentWindow(ctx, "room", 100)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(4), all[0].Sequence)

	since, err := repo.Since(ctx, "room", 4, 10)
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, int64(5), since[0].Sequence)
	assert.Equal(t, int64(6), since[1].Sequence)

	require.NoError(t, repo.Drop(ctx, "room"))
	assert.False(t, s.Exists("room:room:log"))
	assert.False(t, s.Exists("room:room:log:seq"))

	empty, err := repo.RecentWindow(ctx, "room", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
