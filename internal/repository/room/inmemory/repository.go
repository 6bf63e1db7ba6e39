package inmemory

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/sharetube/watchparty/internal/repository/room"
	"golang.org/x/exp/maps"
)

type entry struct {
	room         room.Room
	participants map[string]room.Participant
	likes        map[string]int
}

type repo struct {
	rooms  map[string]*entry
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		rooms:  make(map[string]*entry),
		logger: logger,
	}
}

func (r *repo) SetRoom(ctx context.Context, params *room.SetRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms[params.RoomID] = &entry{
		room: room.Room{
			MovieID:         params.MovieID,
			Title:           params.Title,
			StreamURL:       params.StreamURL,
			Status:          params.Status,
			HostID:          params.HostID,
			MaxParticipants: params.MaxParticipants,
			CreatedAtMs:     params.CreatedAtMs,
		},
		participants: make(map[string]room.Participant),
		likes:        make(map[string]int),
	}

	return nil
}

func (r *repo) GetRoom(ctx context.Context, roomID string) (room.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.rooms[roomID]
	if !ok {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.Room{}, room.ErrRoomNotFound
	}

	return e.room, nil
}

func (r *repo) UpdatePlayback(ctx context.Context, params *room.UpdatePlaybackParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rooms[params.RoomID]
	if !ok {
		return room.ErrRoomNotFound
	}

	e.room.IsPlaying = params.StartTimeMs != nil
	e.room.StartTimeMs = 0
	if params.StartTimeMs != nil {
		e.room.StartTimeMs = *params.StartTimeMs
	}
	e.room.BasePositionSec = params.BasePositionSec

	return nil
}

func (r *repo) UpdateStatus(ctx context.Context, params *room.UpdateStatusParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rooms[params.RoomID]
	if !ok {
		return room.ErrRoomNotFound
	}

	e.room.Status = params.Status
	return nil
}

func (r *repo) SetParticipant(ctx context.Context, params *room.SetParticipantParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rooms[params.RoomID]
	if !ok {
		return room.ErrRoomNotFound
	}

	e.participants[params.UserID] = room.Participant{
		UserID:     params.UserID,
		Username:   params.Username,
		AvatarURL:  params.AvatarURL,
		JoinedAtMs: params.JoinedAtMs,
	}

	return nil
}

func (r *repo) RemoveParticipant(ctx context.Context, params *room.RemoveParticipantParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rooms[params.RoomID]
	if !ok {
		return room.ErrParticipantNotFound
	}

	if _, ok := e.participants[params.UserID]; !ok {
		return room.ErrParticipantNotFound
	}

	delete(e.participants, params.UserID)
	return nil
}

// GetParticipants returns participants ordered by join time.
func (r *repo) GetParticipants(_ context.Context, roomID string) ([]room.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.rooms[roomID]
	if !ok {
		return []room.Participant{}, nil
	}

	participants := maps.Values(e.participants)
	sort.Slice(participants, func(i, j int) bool {
		if participants[i].JoinedAtMs != participants[j].JoinedAtMs {
			return participants[i].JoinedAtMs < participants[j].JoinedAtMs
		}
		return participants[i].UserID < participants[j].UserID
	})

	return participants, nil
}

func (r *repo) IncrLikes(ctx context.Context, params *room.IncrLikesParams) (int, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rooms[params.RoomID]
	if !ok {
		return 0, room.ErrRoomNotFound
	}

	e.likes[params.UserID]++
	return e.likes[params.UserID], nil
}

func (r *repo) GetLikes(_ context.Context, roomID string) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.rooms[roomID]
	if !ok {
		return map[string]int{}, nil
	}

	return maps.Clone(e.likes), nil
}

func (r *repo) ListRoomIDs(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := maps.Keys(r.rooms)
	sort.Strings(ids)
	return ids, nil
}

func (r *repo) RemoveRoom(ctx context.Context, roomID string) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomID,
	})
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rooms, roomID)
	return nil
}
