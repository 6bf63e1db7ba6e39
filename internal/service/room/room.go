package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/repository/room"
)

func (s *service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	status := params.Status
	if status == "" {
		status = domain.StatusUpcoming
	}
	if status == domain.StatusFinished || !status.Valid() {
		return CreateRoomResponse{}, domain.ErrInvalidState
	}

	maxParticipants := params.MaxParticipants
	if maxParticipants <= 0 || maxParticipants > s.config.MembersLimit {
		maxParticipants = s.config.MembersLimit
	}

	movie, err := s.catalog.GetMovie(ctx, params.MovieID)
	if err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to get movie: %w", err)
	}

	roomID := params.RoomID
	if roomID == "" {
		roomID = uuid.NewString()
	}
	if !domain.ValidID(roomID) || !domain.ValidID(params.HostID) {
		return CreateRoomResponse{}, domain.ErrInvalidID
	}

	s.mu.Lock()
	_, loaded := s.rooms[roomID]
	_, finished := s.finished[roomID]
	s.mu.Unlock()
	if loaded || finished {
		return CreateRoomResponse{}, domain.ErrRoomAlreadyExists
	}
	if _, err := s.roomRepo.GetRoom(ctx, roomID); err == nil {
		return CreateRoomResponse{}, domain.ErrRoomAlreadyExists
	} else if !errors.Is(err, room.ErrRoomNotFound) {
		return CreateRoomResponse{}, fmt.Errorf("failed to check room: %w", err)
	}

	r := domain.Room{
		ID:              roomID,
		MovieID:         movie.ID,
		Title:           movie.Title,
		StreamURL:       movie.StreamURL,
		Status:          status,
		HostID:          params.HostID,
		MaxParticipants: maxParticipants,
		Participants:    []domain.Participant{},
		LikeCounts:      make(map[string]int),
		CreatedAtMs:     s.clock.Now().UnixMilli(),
	}

	if err := s.roomRepo.SetRoom(ctx, &room.SetRoomParams{
		RoomID:          r.ID,
		MovieID:         r.MovieID,
		Title:           r.Title,
		StreamURL:       r.StreamURL,
		Status:          string(r.Status),
		HostID:          r.HostID,
		MaxParticipants: r.MaxParticipants,
		CreatedAtMs:     r.CreatedAtMs,
	}); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to set room: %w", err)
	}

	s.mu.Lock()
	if _, ok := s.rooms[roomID]; ok {
		s.mu.Unlock()
		return CreateRoomResponse{}, domain.ErrRoomAlreadyExists
	}
	a := s.startAuthority(r)
	s.mu.Unlock()

	snapshot, err := a.Snapshot(ctx)
	if err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to get snapshot: %w", err)
	}

	s.logger.InfoContext(ctx, "room created", "room_id", roomID, "movie_id", r.MovieID, "host_id", r.HostID)
	return CreateRoomResponse{
		Snapshot: snapshot,
	}, nil
}

func (s *service) GetSnapshot(ctx context.Context, roomID string) (domain.RoomSnapshot, error) {
	a, err := s.getAuthority(ctx, roomID)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}

	return a.Snapshot(ctx)
}

// ListRooms returns snapshots of every active room.
func (s *service) ListRooms(ctx context.Context) ([]domain.RoomSnapshot, error) {
	roomIDs, err := s.roomRepo.ListRoomIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list room ids: %w", err)
	}

	snapshots := make([]domain.RoomSnapshot, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		snapshot, err := s.GetSnapshot(ctx, roomID)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping room", "room_id", roomID, "error", err)
			continue
		}

		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}

// TransitionStatus is the entry point of the external scheduler.
func (s *service) TransitionStatus(ctx context.Context, params *TransitionStatusParams) error {
	a, err := s.getAuthority(ctx, params.RoomID)
	if err != nil {
		return err
	}

	if err := a.TransitionStatus(ctx, params.Status); err != nil {
		return fmt.Errorf("failed to transition status: %w", err)
	}

	return nil
}

// Sync returns log events after the given sequence for a reconnecting client.
func (s *service) Sync(ctx context.Context, params *SyncParams) (SyncResponse, error) {
	a, err := s.getAuthority(ctx, params.RoomID)
	if err != nil {
		return SyncResponse{}, err
	}

	if !a.rosterView().has(params.UserID) {
		return SyncResponse{}, domain.ErrParticipantNotFound
	}

	events, err := s.eventLog.Since(ctx, params.RoomID, params.AfterSeq, s.config.SyncLimit)
	if err != nil {
		return SyncResponse{}, fmt.Errorf("failed to get events: %w", err)
	}

	return SyncResponse{
		Events: events,
	}, nil
}
