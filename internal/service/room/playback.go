package room

import (
	"context"
	"fmt"

	"github.com/sharetube/watchparty/internal/domain"
)

func (s *service) Play(ctx context.Context, params *PlayParams) error {
	a, err := s.getAuthority(ctx, params.RoomID)
	if err != nil {
		return err
	}

	if err := a.HostPlay(ctx, params.SenderID, params.PositionSec); err != nil {
		return fmt.Errorf("failed to play: %w", err)
	}

	return nil
}

func (s *service) Pause(ctx context.Context, params *PauseParams) error {
	a, err := s.getAuthority(ctx, params.RoomID)
	if err != nil {
		return err
	}

	if err := a.HostPause(ctx, params.SenderID); err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}

	return nil
}

func (s *service) Seek(ctx context.Context, params *SeekParams) error {
	a, err := s.getAuthority(ctx, params.RoomID)
	if err != nil {
		return err
	}

	if err := a.HostSeek(ctx, params.SenderID, params.PositionSec); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	return nil
}

func (s *service) PostMessage(ctx context.Context, params *PostMessageParams) (domain.LogEvent, error) {
	a, err := s.getAuthority(ctx, params.RoomID)
	if err != nil {
		return domain.LogEvent{}, err
	}

	event, err := a.PostMessage(ctx, params.SenderID, params.Text)
	if err != nil {
		return domain.LogEvent{}, fmt.Errorf("failed to post message: %w", err)
	}

	return event, nil
}

func (s *service) Like(ctx context.Context, params *LikeParams) (domain.LogEvent, error) {
	a, err := s.getAuthority(ctx, params.RoomID)
	if err != nil {
		return domain.LogEvent{}, err
	}

	event, err := a.Like(ctx, params.SenderID)
	if err != nil {
		return domain.LogEvent{}, fmt.Errorf("failed to like: %w", err)
	}

	return event, nil
}
