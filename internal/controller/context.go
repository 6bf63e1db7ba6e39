package controller

import (
	"context"

	"github.com/sharetube/watchparty/internal/repository/connection/inmemory"
)

type contextKey int

const (
	roomIDCtxKey contextKey = iota
	userIDCtxKey
	connCtxKey
)

func (c controller) getRoomIDFromCtx(ctx context.Context) string {
	roomID, ok := ctx.Value(roomIDCtxKey).(string)
	if !ok {
		return ""
	}

	return roomID
}

func (c controller) getUserIDFromCtx(ctx context.Context) string {
	userID, ok := ctx.Value(userIDCtxKey).(string)
	if !ok {
		return ""
	}

	return userID
}

func (c controller) getConnFromCtx(ctx context.Context) *inmemory.Conn {
	conn, _ := ctx.Value(connCtxKey).(*inmemory.Conn)
	return conn
}
