package controller

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/repository/connection/inmemory"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
	"github.com/sharetube/watchparty/pkg/rest"
	"github.com/sharetube/watchparty/pkg/validator"
)

type joinRoomQuery struct {
	RoomID    string `json:"room_id" validate:"required,max=128,id"`
	UserID    string `json:"user_id" validate:"required,max=128,id"`
	Username  string `json:"username" validate:"required,max=64"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url,max=2048"`
}

func (c controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := joinRoomQuery{
		RoomID:    chi.URLParam(r, "room-id"),
		UserID:    r.URL.Query().Get("user-id"),
		Username:  r.URL.Query().Get("username"),
		AvatarURL: r.URL.Query().Get("avatar-url"),
	}
	if errs, ok := c.validate.Validate(query); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": codeValidation, "errors": errs})
		return
	}

	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", query.RoomID))
	ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", query.UserID))

	if err := c.roomService.AdmitMember(ctx, &room.AdmitMemberParams{
		RoomID: query.RoomID,
		UserID: query.UserID,
	}); err != nil {
		c.logger.InfoContext(ctx, "admission rejected", "error", err)
		c.writeError(w, err)
		return
	}

	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.InfoContext(ctx, "failed to upgrade connection", "error", err)
		return
	}
	// the connection repository owns ws from here, its write pump closes it

	conn := c.connRepo.Add(ctx, query.RoomID, query.UserID, ws)
	joined := false
	defer func() {
		if c.connRepo.Remove(context.WithoutCancel(ctx), conn) && joined {
			c.roomService.DisconnectMember(context.WithoutCancel(ctx), &room.DisconnectMemberParams{
				RoomID: query.RoomID,
				UserID: query.UserID,
			})
		}
	}()

	var avatarURL *string
	if query.AvatarURL != "" {
		avatarURL = &query.AvatarURL
	}

	if _, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		RoomID:    query.RoomID,
		UserID:    query.UserID,
		Username:  query.Username,
		AvatarURL: avatarURL,
	}); err != nil {
		c.logger.InfoContext(ctx, "failed to join room", "error", err)
		c.sendError(ctx, conn, err)
		c.connRepo.CloseUser(query.RoomID, query.UserID, websocket.ClosePolicyViolation, "join rejected")

		select {
		case <-conn.Done():
		case <-time.After(c.closeWait):
		}
		return
	}
	joined = true

	ctx = context.WithValue(ctx, roomIDCtxKey, query.RoomID)
	ctx = context.WithValue(ctx, userIDCtxKey, query.UserID)
	ctx = context.WithValue(ctx, connCtxKey, conn)

	if err := c.wsmux.ServeConn(ctx, ws); err != nil {
		c.logger.DebugContext(ctx, "connection closed", "error", err)
	}
}

func (c controller) sendError(ctx context.Context, conn *inmemory.Conn, err error) {
	code, _ := errorCode(err)
	if sendErr := c.connRepo.Send(conn, &domain.Message{
		Type: domain.MessageError,
		Payload: domain.ErrorPayload{
			Code:    code,
			Message: errorMessage(code, err),
		},
	}); sendErr != nil {
		c.logger.InfoContext(ctx, "failed to send error", "error", sendErr)
	}
}

func (c controller) writeError(w http.ResponseWriter, err error) {
	code, status := errorCode(err)
	rest.WriteJSON(w, status, rest.Envelope{"error": code, "message": errorMessage(code, err)})
}

func validationError(errs []validator.ValidationError) error {
	return fmt.Errorf("%w: %w", errValidation, validator.Error(errs))
}
