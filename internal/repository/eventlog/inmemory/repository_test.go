package inmemory

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/repository/eventlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, min, sec int) time.Time {
	return time.Date(2026, 10, 17, hour, min, sec, 0, time.UTC)
}

func TestAppendAssignsSequenceAndKeepsAppendOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(0, slog.Default())

	arrivals := []time.Time{at(10, 0, 0), at(10, 0, 2), at(10, 0, 1)}
	for i, rt := range arrivals {
		ev, err := repo.Append(ctx, domain.LogEvent{
			RoomID:   "room",
			Type:     domain.EventMessage,
			Content:  string(rune('a' + i)),
			RealTime: rt,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), ev.Sequence)
	}

	window, err := repo.RecentWindow(ctx, "room", 50)
	require.NoError(t, err)
	require.Len(t, window, 3)

	assert.Equal(t, []string{"a", "b", "c"}, []string{window[0].Content, window[1].Content, window[2].Content})
	// the late real time is raised to its predecessor so (real time, sequence) never disagrees with append order
	assert.Equal(t, at(10, 0, 2), window[2].RealTime)
	for i := 1; i < len(window); i++ {
		assert.True(t, window[i-1].Before(window[i]))
	}
}

func TestRecentWindowLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(0, slog.Default())

	for i := 0; i < 10; i++ {
		_, err := repo.Append(ctx, domain.LogEvent{RoomID: "room", Type: domain.EventJoin, RealTime: time.Now()})
		require.NoError(t, err)
	}

	window, err := repo.RecentWindow(ctx, "room", 4)
	require.NoError(t, err)
	require.Len(t, window, 4)
	assert.Equal(t, int64(7), window[0].Sequence)
	assert.Equal(t, int64(10), window[3].Sequence)

	empty, err := repo.RecentWindow(ctx, "other", 4)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSinceAndRetention(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(5, slog.Default())

	for i := 0; i < 8; i++ {
		_, err := repo.Append(ctx, domain.LogEvent{RoomID: "room", Type: domain.EventSeek, RealTime: time.Now()})
		require.NoError(t, err)
	}

	all, err := repo.RecentWindow(ctx, "room", 100)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, int64(4), all[0].Sequence)

	since, err := repo.Since(ctx, "room", 6, 100)
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, int64(7), since[0].Sequence)

	limited, err := repo.Since(ctx, "room", 0, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, int64(4), limited[0].Sequence)

	require.NoError(t, repo.Drop(ctx, "room"))
	dropped, err := repo.RecentWindow(ctx, "room", 100)
	require.NoError(t, err)
	assert.Empty(t, dropped)
}

func TestAppendValidates(t *testing.T) {
	repo := NewRepo(0, slog.Default())

	_, err := repo.Append(context.Background(), domain.LogEvent{Type: domain.EventJoin})
	assert.ErrorIs(t, err, eventlog.ErrInvalidEvent)
}

func TestConcurrentReadersSeePrefix(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(0, slog.Default())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			repo.Append(ctx, domain.LogEvent{RoomID: "room", Type: domain.EventMessage, RealTime: time.Now()})
		}
	}()

	for i := 0; i < 50; i++ {
		window, err := repo.RecentWindow(ctx, "room", 1000)
		require.NoError(t, err)
		for j, ev := range window {
			assert.Equal(t, int64(j+1), ev.Sequence)
		}
	}
	wg.Wait()
}
