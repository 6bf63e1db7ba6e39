package room

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
)

// AdmitMember runs the checks that happen before a connection is accepted: the ticket check and
// the capacity pre-check against the last published roster. The host always passes the ticket check.
func (s *service) AdmitMember(ctx context.Context, params *AdmitMemberParams) error {
	if !domain.ValidID(params.UserID) {
		return domain.ErrInvalidID
	}

	a, err := s.getAuthority(ctx, params.RoomID)
	if err != nil {
		return err
	}

	view := a.rosterView()
	if params.UserID != view.hostID {
		ok, err := s.access.HasAccess(ctx, params.UserID, params.RoomID)
		if err != nil {
			return fmt.Errorf("failed to check access: %w", err)
		}

		if !ok {
			return domain.ErrAccessDenied
		}
	}

	if !view.has(params.UserID) && view.isFull() {
		return domain.ErrRoomFull
	}

	return nil
}

func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	if err := s.AdmitMember(ctx, &AdmitMemberParams{
		RoomID: params.RoomID,
		UserID: params.UserID,
	}); err != nil {
		return JoinRoomResponse{}, err
	}

	a, err := s.getAuthority(ctx, params.RoomID)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	s.cancelLeave(params.RoomID, params.UserID)

	snapshot, err := a.Join(ctx, domain.Participant{
		UserID:    params.UserID,
		Username:  params.Username,
		AvatarURL: params.AvatarURL,
	})
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to join: %w", err)
	}

	return JoinRoomResponse{
		Snapshot: snapshot,
	}, nil
}

// LeaveRoom removes the participant immediately.
func (s *service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) error {
	s.cancelLeave(params.RoomID, params.UserID)

	a, err := s.getAuthority(ctx, params.RoomID)
	if err != nil {
		return err
	}

	if err := a.Leave(ctx, params.UserID); err != nil {
		return fmt.Errorf("failed to leave: %w", err)
	}

	return nil
}

func (s *service) Kick(ctx context.Context, params *KickParams) error {
	a, err := s.getAuthority(ctx, params.RoomID)
	if err != nil {
		return err
	}

	s.cancelLeave(params.RoomID, params.UserID)
	if err := a.Kick(ctx, params.SenderID, params.UserID); err != nil {
		return fmt.Errorf("failed to kick: %w", err)
	}

	return nil
}

// DisconnectMember is called when the last connection of a user closes. The participant is removed
// after the grace period unless they reconnect first.
func (s *service) DisconnectMember(ctx context.Context, params *DisconnectMemberParams) {
	s.mu.Lock()
	a, ok := s.rooms[params.RoomID]
	s.mu.Unlock()
	if !ok || !a.rosterView().has(params.UserID) {
		return
	}

	s.logger.DebugContext(ctx, "scheduling leave", "room_id", params.RoomID, "user_id", params.UserID, "grace_period", s.config.LeaveGracePeriod)
	s.scheduleLeave(params.RoomID, params.UserID)
}

func (s *service) scheduleLeave(roomID, userID string) {
	key := leaveKey{roomID: roomID, userID: userID}
	pl := &pendingLeave{
		timer:  s.clock.NewTimer(s.config.LeaveGracePeriod),
		cancel: make(chan struct{}),
	}

	s.mu.Lock()
	if old, ok := s.pendingLeaves[key]; ok {
		old.stop()
	}
	s.pendingLeaves[key] = pl
	s.mu.Unlock()

	go func() {
		select {
		case <-pl.timer.Chan():
			s.expireLeave(key, pl)
		case <-pl.cancel:
		}
	}()
}

func (s *service) expireLeave(key leaveKey, pl *pendingLeave) {
	s.mu.Lock()
	if s.pendingLeaves[key] != pl {
		s.mu.Unlock()
		return
	}
	delete(s.pendingLeaves, key)
	a, ok := s.rooms[key.roomID]
	s.mu.Unlock()

	if !ok || s.broadcaster.HasConn(key.roomID, key.userID) {
		return
	}

	ctx := ctxlogger.AppendCtx(context.Background(), slog.String("user_id", key.userID))
	if err := a.Leave(ctx, key.userID); err != nil {
		s.logger.WarnContext(ctx, "grace period leave failed", "room_id", key.roomID, "error", err)
		return
	}

	s.logger.InfoContext(ctx, "participant timed out", "room_id", key.roomID)
}

func (s *service) cancelLeave(roomID, userID string) {
	key := leaveKey{roomID: roomID, userID: userID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if pl, ok := s.pendingLeaves[key]; ok {
		pl.stop()
		delete(s.pendingLeaves, key)
	}
}
