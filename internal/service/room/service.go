package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/repository/room"
)

type iRoomRepo interface {
	SetRoom(context.Context, *room.SetRoomParams) error
	GetRoom(context.Context, string) (room.Room, error)
	UpdatePlayback(context.Context, *room.UpdatePlaybackParams) error
	UpdateStatus(context.Context, *room.UpdateStatusParams) error
	SetParticipant(context.Context, *room.SetParticipantParams) error
	RemoveParticipant(context.Context, *room.RemoveParticipantParams) error
	GetParticipants(context.Context, string) ([]room.Participant, error)
	IncrLikes(context.Context, *room.IncrLikesParams) (int, error)
	GetLikes(context.Context, string) (map[string]int, error)
	ListRoomIDs(context.Context) ([]string, error)
	RemoveRoom(context.Context, string) error
}

type iEventLog interface {
	Append(context.Context, domain.LogEvent) (domain.LogEvent, error)
	RecentWindow(ctx context.Context, roomID string, limit int) ([]domain.LogEvent, error)
	Since(ctx context.Context, roomID string, afterSeq int64, limit int) ([]domain.LogEvent, error)
	Drop(ctx context.Context, roomID string) error
}

type iBroadcaster interface {
	Broadcast(roomID string, msg *domain.Message)
	SendToUser(roomID, userID string, msg *domain.Message) error
	HasConn(roomID, userID string) bool
	CloseUser(roomID, userID string, code int, reason string)
	CloseRoom(roomID string, code int, reason string)
}

type iAccessChecker interface {
	HasAccess(ctx context.Context, userID, roomID string) (bool, error)
}

type iCatalog interface {
	GetMovie(ctx context.Context, movieID string) (domain.Movie, error)
}

type iArchive interface {
	Publish(context.Context, domain.LogEvent) error
}

type Config struct {
	MembersLimit      int
	HeartbeatInterval time.Duration
	LeaveGracePeriod  time.Duration
	LogWindow         int
	SyncLimit         int
	MailboxSize       int
}

type Deps struct {
	RoomRepo    iRoomRepo
	EventLog    iEventLog
	Broadcaster iBroadcaster
	Access      iAccessChecker
	Catalog     iCatalog
	Archive     iArchive
	Clock       clockwork.Clock
	Logger      *slog.Logger
}

type service struct {
	roomRepo    iRoomRepo
	eventLog    iEventLog
	broadcaster iBroadcaster
	access      iAccessChecker
	catalog     iCatalog
	archive     iArchive
	clock       clockwork.Clock
	config      Config
	logger      *slog.Logger

	mu            sync.Mutex
	rooms         map[string]*authority
	finished      map[string]struct{}
	pendingLeaves map[leaveKey]*pendingLeave
}

func NewService(deps Deps, config Config) *service {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if config.SyncLimit <= 0 {
		config.SyncLimit = 500
	}
	if config.MailboxSize <= 0 {
		config.MailboxSize = 64
	}

	return &service{
		roomRepo:      deps.RoomRepo,
		eventLog:      deps.EventLog,
		broadcaster:   deps.Broadcaster,
		access:        deps.Access,
		catalog:       deps.Catalog,
		archive:       deps.Archive,
		clock:         deps.Clock,
		config:        config,
		logger:        deps.Logger,
		rooms:         make(map[string]*authority),
		finished:      make(map[string]struct{}),
		pendingLeaves: make(map[leaveKey]*pendingLeave),
	}
}

// getAuthority returns the running actor of the room, restoring it from the room repository when
// the room is persisted but not loaded.
func (s *service) getAuthority(ctx context.Context, roomID string) (*authority, error) {
	if !domain.ValidID(roomID) {
		return nil, domain.ErrRoomNotFound
	}

	s.mu.Lock()
	a, ok := s.rooms[roomID]
	_, finished := s.finished[roomID]
	s.mu.Unlock()

	if ok {
		return a, nil
	}

	if finished {
		return nil, domain.ErrInvalidState
	}

	restored, err := s.restoreRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if a, ok := s.rooms[roomID]; ok {
		s.mu.Unlock()
		return a, nil
	}
	a = s.startAuthority(restored)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "room restored", "room_id", roomID, "participants", len(restored.Participants))
	for _, p := range restored.Participants {
		if !s.broadcaster.HasConn(roomID, p.UserID) {
			s.scheduleLeave(roomID, p.UserID)
		}
	}

	return a, nil
}

func (s *service) restoreRoom(ctx context.Context, roomID string) (domain.Room, error) {
	model, err := s.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return domain.Room{}, domain.ErrRoomNotFound
		}

		return domain.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	if domain.Status(model.Status) == domain.StatusFinished {
		return domain.Room{}, domain.ErrInvalidState
	}

	participants, err := s.roomRepo.GetParticipants(ctx, roomID)
	if err != nil {
		return domain.Room{}, fmt.Errorf("failed to get participants: %w", err)
	}

	likes, err := s.roomRepo.GetLikes(ctx, roomID)
	if err != nil {
		return domain.Room{}, fmt.Errorf("failed to get likes: %w", err)
	}

	return roomFromModel(roomID, model, participants, likes), nil
}

// startAuthority must be called with s.mu held.
func (s *service) startAuthority(r domain.Room) *authority {
	a := newAuthority(r, s)
	s.rooms[r.ID] = a
	go a.run()

	return a
}

func (s *service) finishRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, roomID)
	s.finished[roomID] = struct{}{}
	for key, pl := range s.pendingLeaves {
		if key.roomID == roomID {
			pl.stop()
			delete(s.pendingLeaves, key)
		}
	}
}

// Close stops every room actor and pending leave timer.
func (s *service) Close() {
	s.mu.Lock()
	rooms := make([]*authority, 0, len(s.rooms))
	for _, a := range s.rooms {
		rooms = append(rooms, a)
	}
	s.rooms = make(map[string]*authority)
	for key, pl := range s.pendingLeaves {
		pl.stop()
		delete(s.pendingLeaves, key)
	}
	s.mu.Unlock()

	for _, a := range rooms {
		a.stop()
		<-a.stopped
	}
}

func (s *service) publish(ctx context.Context, event domain.LogEvent) {
	if err := s.archive.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to archive event", "error", err, "room_id", event.RoomID, "sequence", event.Sequence)
	}
}
