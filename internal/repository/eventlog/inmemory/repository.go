package inmemory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/repository/eventlog"
)

type roomLog struct {
	mu       sync.RWMutex
	events   []domain.LogEvent
	seq      int64
	lastTime time.Time
}

type repo struct {
	mu        sync.Mutex
	logs      map[string]*roomLog
	retention int
	logger    *slog.Logger
}

func NewRepo(retention int, logger *slog.Logger) *repo {
	return &repo{
		logs:      make(map[string]*roomLog),
		retention: retention,
		logger:    logger,
	}
}

func (r *repo) roomLog(roomID string, create bool) *roomLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.logs[roomID]
	if !ok && create {
		l = &roomLog{}
		r.logs[roomID] = l
	}

	return l
}

func (r *repo) Append(ctx context.Context, event domain.LogEvent) (domain.LogEvent, error) {
	if err := eventlog.Validate(&event); err != nil {
		return domain.LogEvent{}, err
	}

	l := r.roomLog(event.RoomID, true)
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	event.Sequence = l.seq
	// keep (real time, sequence) order equal to append order
	event.RealTime = event.RealTime.UTC().Truncate(time.Millisecond)
	if event.RealTime.Before(l.lastTime) {
		event.RealTime = l.lastTime
	}
	l.lastTime = event.RealTime

	l.events = append(l.events, event)
	if r.retention > 0 && len(l.events) > r.retention {
		trimmed := make([]domain.LogEvent, r.retention)
		copy(trimmed, l.events[len(l.events)-r.retention:])
		l.events = trimmed
	}

	r.logger.DebugContext(ctx, "event appended", "room_id", event.RoomID, "sequence", event.Sequence, "type", event.Type)
	return event, nil
}

func (r *repo) RecentWindow(_ context.Context, roomID string, limit int) ([]domain.LogEvent, error) {
	l := r.roomLog(roomID, false)
	if l == nil || limit <= 0 {
		return []domain.LogEvent{}, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	start := len(l.events) - limit
	if start < 0 {
		start = 0
	}

	window := make([]domain.LogEvent, len(l.events)-start)
	copy(window, l.events[start:])
	return window, nil
}

func (r *repo) Since(_ context.Context, roomID string, afterSeq int64, limit int) ([]domain.LogEvent, error) {
	l := r.roomLog(roomID, false)
	if l == nil || limit <= 0 {
		return []domain.LogEvent{}, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	start := sort.Search(len(l.events), func(i int) bool {
		return l.events[i].Sequence > afterSeq
	})

	end := start + limit
	if end > len(l.events) {
		end = len(l.events)
	}

	events := make([]domain.LogEvent, end-start)
	copy(events, l.events[start:end])
	return events, nil
}

func (r *repo) Drop(_ context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.logs, roomID)
	return nil
}
