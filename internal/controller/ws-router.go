package controller

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

// client -> server message types
const (
	inputPlay  = "PLAY"
	inputPause = "PAUSE"
	inputSeek  = "SEEK"
	inputChat  = "MESSAGE"
	inputLike  = "LIKE"
	inputKick  = "KICK"
	inputLeave = "LEAVE"
	inputSync  = "SYNC"
	inputAlive = "ALIVE"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdMw(), c.loggerWSMw())
	mux.SetErrorHandler(func(ctx context.Context, _ *websocket.Conn, err error) {
		c.logger.InfoContext(ctx, "websocket message failed", "error", err)
		c.sendError(ctx, c.getConnFromCtx(ctx), err)
	})

	wsrouter.Handle(mux, inputPlay, c.handlePlay)
	wsrouter.Handle(mux, inputPause, c.handlePause)
	wsrouter.Handle(mux, inputSeek, c.handleSeek)
	wsrouter.Handle(mux, inputChat, c.handleMessage)
	wsrouter.Handle(mux, inputLike, c.handleLike)
	wsrouter.Handle(mux, inputKick, c.handleKick)
	wsrouter.Handle(mux, inputLeave, c.handleLeave)
	wsrouter.Handle(mux, inputSync, c.handleSync)
	wsrouter.Handle(mux, inputAlive, c.handleAlive)

	return mux
}
