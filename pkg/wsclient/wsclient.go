package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("client closed")

// Message is a decoded frame. Payload is left raw for the handler to decode by Type.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc func(ctx context.Context, msg Message)

type Client struct {
	conn         *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
	closeOnce    sync.Once
}

// Dial connects to url. The http response is returned on a failed handshake so callers can
// inspect the rejection status.
func Dial(ctx context.Context, url string) (*Client, *http.Response, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, resp, fmt.Errorf("failed to dial: %w", err)
	}

	return &Client{
		conn:         conn,
		writeTimeout: 10 * time.Second,
	}, resp, nil
}

func (c *Client) Send(msgType string, payload any) error {
	data, err := json.Marshal(map[string]any{
		"type":    msgType,
		"payload": payload,
	})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Listen calls handler for every received message until the connection closes or ctx is done.
// A normal close returns nil; server close codes are returned as *websocket.CloseError.
func (c *Client) Listen(ctx context.Context, handler HandlerFunc) error {
	stop := context.AfterFunc(ctx, func() {
		c.Close()
	})
	defer stop()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		handler(ctx, msg)
	}
}

// Close sends a normal close frame and closes the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})

	return err
}
