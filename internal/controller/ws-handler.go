package controller

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/service/room"
)

type playInput struct {
	PositionSec *float64 `json:"position_sec" validate:"required,gte=0"`
}

func (c controller) handlePlay(ctx context.Context, _ *websocket.Conn, input playInput) error {
	if errs, ok := c.validate.Validate(input); !ok {
		return validationError(errs)
	}

	return c.roomService.Play(ctx, &room.PlayParams{
		RoomID:      c.getRoomIDFromCtx(ctx),
		SenderID:    c.getUserIDFromCtx(ctx),
		PositionSec: *input.PositionSec,
	})
}

type emptyInput struct{}

func (c controller) handlePause(ctx context.Context, _ *websocket.Conn, _ emptyInput) error {
	return c.roomService.Pause(ctx, &room.PauseParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getUserIDFromCtx(ctx),
	})
}

type seekInput struct {
	PositionSec *float64 `json:"position_sec" validate:"required,gte=0"`
}

func (c controller) handleSeek(ctx context.Context, _ *websocket.Conn, input seekInput) error {
	if errs, ok := c.validate.Validate(input); !ok {
		return validationError(errs)
	}

	return c.roomService.Seek(ctx, &room.SeekParams{
		RoomID:      c.getRoomIDFromCtx(ctx),
		SenderID:    c.getUserIDFromCtx(ctx),
		PositionSec: *input.PositionSec,
	})
}

type messageInput struct {
	Text string `json:"text" validate:"required,max=1000"`
}

func (c controller) handleMessage(ctx context.Context, _ *websocket.Conn, input messageInput) error {
	if errs, ok := c.validate.Validate(input); !ok {
		return validationError(errs)
	}

	_, err := c.roomService.PostMessage(ctx, &room.PostMessageParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getUserIDFromCtx(ctx),
		Text:     input.Text,
	})
	return err
}

func (c controller) handleLike(ctx context.Context, _ *websocket.Conn, _ emptyInput) error {
	_, err := c.roomService.Like(ctx, &room.LikeParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getUserIDFromCtx(ctx),
	})
	return err
}

type kickInput struct {
	UserID string `json:"user_id" validate:"required,max=128,id"`
}

func (c controller) handleKick(ctx context.Context, _ *websocket.Conn, input kickInput) error {
	if errs, ok := c.validate.Validate(input); !ok {
		return validationError(errs)
	}

	return c.roomService.Kick(ctx, &room.KickParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getUserIDFromCtx(ctx),
		UserID:   input.UserID,
	})
}

func (c controller) handleLeave(ctx context.Context, _ *websocket.Conn, _ emptyInput) error {
	roomID := c.getRoomIDFromCtx(ctx)
	userID := c.getUserIDFromCtx(ctx)

	if err := c.roomService.LeaveRoom(ctx, &room.LeaveRoomParams{
		RoomID: roomID,
		UserID: userID,
	}); err != nil {
		return err
	}

	c.connRepo.CloseUser(roomID, userID, websocket.CloseNormalClosure, "left")
	return nil
}

type syncInput struct {
	AfterSeq int64 `json:"after_seq" validate:"gte=0"`
}

func (c controller) handleSync(ctx context.Context, _ *websocket.Conn, input syncInput) error {
	if errs, ok := c.validate.Validate(input); !ok {
		return validationError(errs)
	}

	resp, err := c.roomService.Sync(ctx, &room.SyncParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		UserID:   c.getUserIDFromCtx(ctx),
		AfterSeq: input.AfterSeq,
	})
	if err != nil {
		return err
	}

	return c.connRepo.Send(c.getConnFromCtx(ctx), &domain.Message{
		Type:    domain.MessageSyncResponse,
		Payload: domain.SyncPayload{Events: resp.Events},
	})
}

func (c controller) handleAlive(ctx context.Context, _ *websocket.Conn, _ emptyInput) error {
	c.logger.DebugContext(ctx, "alive")
	return nil
}
