package room

import (
	"github.com/jonboulle/clockwork"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/repository/room"
)

type leaveKey struct {
	roomID string
	userID string
}

type pendingLeave struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

func (pl *pendingLeave) stop() {
	if !pl.timer.Stop() {
		select {
		case <-pl.timer.Chan():
		default:
		}
	}
	close(pl.cancel)
}

func roomFromModel(roomID string, model room.Room, participants []room.Participant, likes map[string]int) domain.Room {
	r := domain.Room{
		ID:              roomID,
		MovieID:         model.MovieID,
		Title:           model.Title,
		StreamURL:       model.StreamURL,
		Status:          domain.Status(model.Status),
		HostID:          model.HostID,
		Clock:           domain.PausedAt(model.BasePositionSec),
		MaxParticipants: model.MaxParticipants,
		Participants:    make([]domain.Participant, 0, len(participants)),
		LikeCounts:      likes,
		CreatedAtMs:     model.CreatedAtMs,
	}
	if model.IsPlaying {
		r.Clock = domain.ToStartFields(model.BasePositionSec, model.StartTimeMs)
	}
	if r.LikeCounts == nil {
		r.LikeCounts = make(map[string]int)
	}

	for _, p := range participants {
		r.Participants = append(r.Participants, domain.Participant{
			UserID:     p.UserID,
			Username:   p.Username,
			AvatarURL:  p.AvatarURL,
			JoinedAtMs: p.JoinedAtMs,
		})
	}

	return r
}

type CreateRoomParams struct {
	RoomID          string
	MovieID         string
	HostID          string
	MaxParticipants int
	Status          domain.Status
}

type CreateRoomResponse struct {
	Snapshot domain.RoomSnapshot
}

type AdmitMemberParams struct {
	RoomID string
	UserID string
}

type JoinRoomParams struct {
	RoomID    string
	UserID    string
	Username  string
	AvatarURL *string
}

type JoinRoomResponse struct {
	Snapshot domain.RoomSnapshot
}

type LeaveRoomParams struct {
	RoomID string
	UserID string
}

type DisconnectMemberParams struct {
	RoomID string
	UserID string
}

type PlayParams struct {
	RoomID      string
	SenderID    string
	PositionSec float64
}

type PauseParams struct {
	RoomID   string
	SenderID string
}

type SeekParams struct {
	RoomID      string
	SenderID    string
	PositionSec float64
}

type PostMessageParams struct {
	RoomID   string
	SenderID string
	Text     string
}

type LikeParams struct {
	RoomID   string
	SenderID string
}

type KickParams struct {
	RoomID   string
	SenderID string
	UserID   string
}

type TransitionStatusParams struct {
	RoomID string
	Status domain.Status
}

type SyncParams struct {
	RoomID   string
	UserID   string
	AfterSeq int64
}

type SyncResponse struct {
	Events []domain.LogEvent
}
