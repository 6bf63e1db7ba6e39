package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/repository/connection"
	"github.com/sharetube/watchparty/internal/repository/room"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
)

// rosterView is the roster as last published by the actor. It is read without going through the
// mailbox.
type rosterView struct {
	hostID          string
	maxParticipants int
	userIDs         map[string]struct{}
}

func (v *rosterView) has(userID string) bool {
	_, ok := v.userIDs[userID]
	return ok
}

func (v *rosterView) isFull() bool {
	return len(v.userIDs) >= v.maxParticipants
}

// authority is the single writer of one room. Every command runs on its goroutine in mailbox order.
type authority struct {
	id      string
	room    domain.Room
	svc     *service
	logger  *slog.Logger
	mailbox chan func()
	roster  atomic.Pointer[rosterView]

	finished atomic.Bool
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func newAuthority(r domain.Room, svc *service) *authority {
	a := &authority{
		id:      r.ID,
		room:    r,
		svc:     svc,
		logger:  svc.logger,
		mailbox: make(chan func(), svc.config.MailboxSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	a.publishRoster()

	return a
}

func (a *authority) run() {
	defer close(a.stopped)

	ticker := a.svc.clock.NewTicker(a.svc.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case cmd := <-a.mailbox:
			cmd()
		case <-ticker.Chan():
			a.heartbeat()
		}
	}
}

func (a *authority) stop() {
	a.stopOnce.Do(func() {
		close(a.done)
	})
}

func (a *authority) closedErr() error {
	if a.finished.Load() {
		return domain.ErrInvalidState
	}

	return domain.ErrRoomClosed
}

// do runs fn on the actor goroutine and waits for its result.
func (a *authority) do(ctx context.Context, fn func(ctx context.Context) error) error {
	errCh := make(chan error, 1)
	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", a.id))

	select {
	case <-a.done:
		return a.closedErr()
	case <-ctx.Done():
		return ctx.Err()
	case a.mailbox <- func() { errCh <- fn(ctx) }:
	}

	select {
	case err := <-errCh:
		return err
	case <-a.stopped:
		select {
		case err := <-errCh:
			return err
		default:
			return a.closedErr()
		}
	}
}

func (a *authority) nowMs() int64 {
	return a.svc.clock.Now().UnixMilli()
}

func (a *authority) publishRoster() {
	view := &rosterView{
		hostID:          a.room.HostID,
		maxParticipants: a.room.MaxParticipants,
		userIDs:         make(map[string]struct{}, len(a.room.Participants)),
	}
	for _, p := range a.room.Participants {
		view.userIDs[p.UserID] = struct{}{}
	}

	a.roster.Store(view)
}

func (a *authority) rosterView() *rosterView {
	return a.roster.Load()
}

// appendEvent stores the event in the log and hands it to the archive.
func (a *authority) appendEvent(ctx context.Context, eventType domain.EventType, content string, eventTimeSec float64, userID *string) (domain.LogEvent, error) {
	event, err := a.svc.eventLog.Append(ctx, domain.LogEvent{
		ID:           uuid.NewString(),
		RoomID:       a.id,
		Type:         eventType,
		Content:      content,
		RealTime:     a.svc.clock.Now(),
		EventTimeSec: eventTimeSec,
		UserID:       userID,
	})
	if err != nil {
		return domain.LogEvent{}, fmt.Errorf("failed to append %s event: %w", eventType, err)
	}

	a.svc.publish(ctx, event)
	return event, nil
}

// appendBestEffort appends an event whose command already committed. Failures are logged only.
func (a *authority) appendBestEffort(ctx context.Context, eventType domain.EventType, content string, eventTimeSec float64, userID *string) {
	if _, err := a.appendEvent(ctx, eventType, content, eventTimeSec, userID); err != nil {
		a.logger.ErrorContext(ctx, "failed to append event", "error", err)
	}
}

func (a *authority) broadcast(msgType string, payload any) {
	a.svc.broadcaster.Broadcast(a.id, &domain.Message{
		Type:    msgType,
		Payload: payload,
	})
}

func (a *authority) snapshot(ctx context.Context) (domain.RoomSnapshot, error) {
	window, err := a.svc.eventLog.RecentWindow(ctx, a.id, a.svc.config.LogWindow)
	if err != nil {
		return domain.RoomSnapshot{}, fmt.Errorf("failed to get recent window: %w", err)
	}

	return domain.NewSnapshot(&a.room, window, a.nowMs()), nil
}

func (a *authority) Snapshot(ctx context.Context) (domain.RoomSnapshot, error) {
	var snapshot domain.RoomSnapshot
	err := a.do(ctx, func(ctx context.Context) error {
		var err error
		snapshot, err = a.snapshot(ctx)
		return err
	})

	return snapshot, err
}

// Join upserts the participant and sends the snapshot to the joiner before any later broadcast.
func (a *authority) Join(ctx context.Context, p domain.Participant) (domain.RoomSnapshot, error) {
	var snapshot domain.RoomSnapshot
	err := a.do(ctx, func(ctx context.Context) error {
		if _, ok := a.room.Participant(p.UserID); !ok && a.room.IsFull() {
			return domain.ErrRoomFull
		}

		nowMs := a.nowMs()
		p.JoinedAtMs = nowMs
		if err := a.svc.roomRepo.SetParticipant(ctx, &room.SetParticipantParams{
			RoomID:     a.id,
			UserID:     p.UserID,
			Username:   p.Username,
			AvatarURL:  p.AvatarURL,
			JoinedAtMs: p.JoinedAtMs,
		}); err != nil {
			return fmt.Errorf("failed to set participant: %w", err)
		}

		a.room.UpsertParticipant(p)
		a.publishRoster()

		userID := p.UserID
		a.appendBestEffort(ctx, domain.EventJoin, p.Username, a.room.Clock.CurrentPosition(nowMs), &userID)

		var err error
		snapshot, err = a.snapshot(ctx)
		if err != nil {
			return err
		}

		if err := a.svc.broadcaster.SendToUser(a.id, p.UserID, &domain.Message{
			Type:    domain.MessageJoinResponse,
			Payload: snapshot,
		}); err != nil && !errors.Is(err, connection.ErrNotFound) {
			a.logger.WarnContext(ctx, "failed to send join response", "error", err, "user_id", p.UserID)
		}

		a.broadcast(domain.MessageRosterUpdated, domain.RosterPayload{
			Participants: snapshot.Participants,
			Joined:       &p,
		})

		a.logger.InfoContext(ctx, "participant joined", "user_id", p.UserID, "participants", len(a.room.Participants))
		return nil
	})

	return snapshot, err
}

// Leave removes the participant. Leaving a room one is not in is a no-op.
func (a *authority) Leave(ctx context.Context, userID string) error {
	return a.do(ctx, func(ctx context.Context) error {
		return a.leave(ctx, userID)
	})
}

func (a *authority) leave(ctx context.Context, userID string) error {
	p, ok := a.room.Participant(userID)
	if !ok {
		return nil
	}

	if err := a.svc.roomRepo.RemoveParticipant(ctx, &room.RemoveParticipantParams{
		RoomID: a.id,
		UserID: userID,
	}); err != nil && !errors.Is(err, room.ErrParticipantNotFound) {
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	a.room.RemoveParticipant(userID)
	a.publishRoster()

	a.appendBestEffort(ctx, domain.EventLeave, p.Username, a.room.Clock.CurrentPosition(a.nowMs()), &userID)

	participants := a.room.Clone().Participants
	if participants == nil {
		participants = []domain.Participant{}
	}
	a.broadcast(domain.MessageRosterUpdated, domain.RosterPayload{
		Participants: participants,
		LeftUserID:   &userID,
	})

	a.logger.InfoContext(ctx, "participant left", "user_id", userID, "participants", len(a.room.Participants))
	return nil
}

// checkHostCommand validates a playback command. The host check runs first.
func (a *authority) checkHostCommand(senderID string) error {
	if senderID != a.room.HostID {
		return domain.ErrNotHost
	}

	if a.room.Status != domain.StatusOngoing {
		return domain.ErrInvalidState
	}

	return nil
}

// commitClock persists the clock and makes it the live one.
func (a *authority) commitClock(ctx context.Context, clock domain.PlaybackClock) error {
	if err := a.svc.roomRepo.UpdatePlayback(ctx, &room.UpdatePlaybackParams{
		RoomID:          a.id,
		StartTimeMs:     clock.StartTimeMs,
		BasePositionSec: clock.BasePositionSec,
	}); err != nil {
		return fmt.Errorf("failed to update playback: %w", err)
	}

	a.room.Clock = clock
	return nil
}

func (a *authority) HostPlay(ctx context.Context, senderID string, positionSec float64) error {
	return a.do(ctx, func(ctx context.Context) error {
		if err := a.checkHostCommand(senderID); err != nil {
			return err
		}

		nowMs := a.nowMs()
		clock := domain.ToStartFields(positionSec, nowMs)
		if err := a.commitClock(ctx, clock); err != nil {
			return err
		}

		a.appendBestEffort(ctx, domain.EventPlay, "", clock.BasePositionSec, &senderID)
		a.broadcast(domain.MessagePlay, domain.PlayPayload{
			StartTimeMs: *clock.StartTimeMs,
			PositionSec: clock.BasePositionSec,
		})

		a.logger.InfoContext(ctx, "playback started", "position_sec", clock.BasePositionSec)
		return nil
	})
}

func (a *authority) HostPause(ctx context.Context, senderID string) error {
	return a.do(ctx, func(ctx context.Context) error {
		if err := a.checkHostCommand(senderID); err != nil {
			return err
		}

		clock := domain.PausedAt(a.room.Clock.CurrentPosition(a.nowMs()))
		if err := a.commitClock(ctx, clock); err != nil {
			return err
		}

		a.appendBestEffort(ctx, domain.EventPause, "", clock.BasePositionSec, &senderID)
		a.broadcast(domain.MessagePause, domain.PausePayload{
			PositionSec: clock.BasePositionSec,
		})

		a.logger.InfoContext(ctx, "playback paused", "position_sec", clock.BasePositionSec)
		return nil
	})
}

// HostSeek moves the position and keeps the play state.
func (a *authority) HostSeek(ctx context.Context, senderID string, positionSec float64) error {
	return a.do(ctx, func(ctx context.Context) error {
		if err := a.checkHostCommand(senderID); err != nil {
			return err
		}

		clock := domain.PausedAt(positionSec)
		if a.room.IsPlaying() {
			clock = domain.ToStartFields(positionSec, a.nowMs())
		}
		if err := a.commitClock(ctx, clock); err != nil {
			return err
		}

		a.appendBestEffort(ctx, domain.EventSeek, "", clock.BasePositionSec, &senderID)
		a.broadcast(domain.MessageSeek, domain.SeekPayload{
			PositionSec: clock.BasePositionSec,
			StartTimeMs: clock.StartTimeMs,
		})

		a.logger.InfoContext(ctx, "playback seeked", "position_sec", clock.BasePositionSec, "is_playing", clock.IsPlaying())
		return nil
	})
}

// PostMessage appends a chat message from any participant.
func (a *authority) PostMessage(ctx context.Context, senderID, text string) (domain.LogEvent, error) {
	var event domain.LogEvent
	err := a.do(ctx, func(ctx context.Context) error {
		if _, ok := a.room.Participant(senderID); !ok {
			return domain.ErrParticipantNotFound
		}

		var err error
		event, err = a.appendEvent(ctx, domain.EventMessage, text, a.room.Clock.CurrentPosition(a.nowMs()), &senderID)
		if err != nil {
			return err
		}

		a.broadcast(domain.MessageChat, domain.ChatPayload{Event: event})
		return nil
	})

	return event, err
}

func (a *authority) Like(ctx context.Context, senderID string) (domain.LogEvent, error) {
	var event domain.LogEvent
	err := a.do(ctx, func(ctx context.Context) error {
		if _, ok := a.room.Participant(senderID); !ok {
			return domain.ErrParticipantNotFound
		}

		count, err := a.svc.roomRepo.IncrLikes(ctx, &room.IncrLikesParams{
			RoomID: a.id,
			UserID: senderID,
		})
		if err != nil {
			return fmt.Errorf("failed to increment likes: %w", err)
		}
		a.room.LikeCounts[senderID] = count

		event, err = a.appendEvent(ctx, domain.EventLike, "", a.room.Clock.CurrentPosition(a.nowMs()), &senderID)
		if err != nil {
			return err
		}

		a.broadcast(domain.MessageLike, domain.LikePayload{
			Event:      event,
			LikeCounts: a.room.Clone().LikeCounts,
			TotalLikes: a.room.TotalLikes(),
		})
		return nil
	})

	return event, err
}

// Kick removes a participant on behalf of the host and closes their connection.
func (a *authority) Kick(ctx context.Context, senderID, userID string) error {
	return a.do(ctx, func(ctx context.Context) error {
		if senderID != a.room.HostID {
			return domain.ErrNotHost
		}

		if _, ok := a.room.Participant(userID); !ok {
			return domain.ErrParticipantNotFound
		}

		if err := a.leave(ctx, userID); err != nil {
			return err
		}

		a.svc.broadcaster.CloseUser(a.id, userID, connection.CloseKicked, "kicked by host")
		return nil
	})
}

// TransitionStatus moves the room forward in upcoming -> ongoing -> finished. Finishing stops the
// actor and closes every connection.
func (a *authority) TransitionStatus(ctx context.Context, next domain.Status) error {
	return a.do(ctx, func(ctx context.Context) error {
		if !a.room.Status.CanTransitionTo(next) {
			return domain.ErrInvalidState
		}

		if err := a.svc.roomRepo.UpdateStatus(ctx, &room.UpdateStatusParams{
			RoomID: a.id,
			Status: string(next),
		}); err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}

		a.room.Status = next
		a.broadcast(domain.MessageStatusUpdated, domain.StatusPayload{Status: next})
		a.logger.InfoContext(ctx, "status updated", "status", next)

		if next == domain.StatusFinished {
			a.finish(ctx)
		}

		return nil
	})
}

func (a *authority) finish(ctx context.Context) {
	a.finished.Store(true)
	a.svc.broadcaster.CloseRoom(a.id, connection.CloseFinished, "room finished")
	a.svc.finishRoom(a.id)

	if err := a.svc.roomRepo.RemoveRoom(ctx, a.id); err != nil {
		a.logger.ErrorContext(ctx, "failed to remove room", "error", err)
	}
	if err := a.svc.eventLog.Drop(ctx, a.id); err != nil {
		a.logger.ErrorContext(ctx, "failed to drop event log", "error", err)
	}

	a.stop()
}

// heartbeat broadcasts the authoritative position while the room is playing. It never mutates state.
func (a *authority) heartbeat() {
	if a.room.Status != domain.StatusOngoing || !a.room.IsPlaying() {
		return
	}

	nowMs := a.nowMs()
	a.broadcast(domain.MessageProgress, domain.ProgressPayload{
		Progress:          a.room.Clock.CurrentPosition(nowMs),
		ServerTimestampMs: nowMs,
	})
}
