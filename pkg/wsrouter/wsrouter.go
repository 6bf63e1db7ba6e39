package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidPayload     = errors.New("invalid payload")
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, payload T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

// ErrorHandler is called with every error returned by a handler, a middleware or payload decoding.
// Reading continues after it returns.
type ErrorHandler func(ctx context.Context, conn *websocket.Conn, err error)

type WSRouter struct {
	routes       map[string]HandlerFunc[json.RawMessage]
	middlewares  []Middleware
	errorHandler ErrorHandler
}

func New() *WSRouter {
	return &WSRouter{
		routes:       make(map[string]HandlerFunc[json.RawMessage]),
		errorHandler: func(context.Context, *websocket.Conn, error) {},
	}
}

func (r *WSRouter) Use(mws ...Middleware) {
	r.middlewares = append(r.middlewares, mws...)
}

func (r *WSRouter) SetErrorHandler(h ErrorHandler) {
	r.errorHandler = h
}

// Handle registers a typed handler. The raw payload is decoded into T before the middleware chain runs.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	final := func(ctx context.Context, conn *websocket.Conn, payload any) error {
		return handler(ctx, conn, payload.(T))
	}

	var chained HandlerFunc[any] = final
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		chained = r.middlewares[i](chained)
	}

	r.routes[messageType] = func(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) error {
		var payload T
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
			}
		}

		return chained(ctx, conn, payload)
	}
}

// ServeConn reads messages until the connection fails and dispatches them by type.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			r.errorHandler(ctx, conn, fmt.Errorf("%w: %w", ErrInvalidPayload, err))
			continue
		}

		handler, ok := r.routes[msg.Type]
		if !ok {
			r.errorHandler(ctx, conn, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type))
			continue
		}

		if err := handler(context.WithValue(ctx, messageTypeKey, msg.Type), conn, msg.Payload); err != nil {
			r.errorHandler(ctx, conn, err)
		}
	}
}
