package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/reconciler"
	"github.com/sharetube/watchparty/pkg/wsclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logRecord struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
	Type  string `json:"type"`
	Code  string `json:"code"`
	Text  string `json:"text"`
}

func newTestViewer(buf *bytes.Buffer) *viewer {
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 17, 20, 0, 0, 0, time.UTC))
	player := reconciler.NewSimulatedPlayer(clock, 1)

	return &viewer{
		logger: logger,
		rec:    reconciler.New(player, clock, reconciler.Config{}, logger),
		player: player,
	}
}

func records(t *testing.T, buf *bytes.Buffer) []logRecord {
	t.Helper()
	var res []logRecord
	dec := json.NewDecoder(buf)
	for dec.More() {
		var r logRecord
		require.NoError(t, dec.Decode(&r))
		res = append(res, r)
	}

	return res
}

func TestHandleLogsUndecodableFrames(t *testing.T) {
	var buf bytes.Buffer
	v := newTestViewer(&buf)
	ctx := context.Background()

	v.handle(ctx, wsclient.Message{Type: domain.MessageError, Payload: json.RawMessage(`"oops"`)})
	v.handle(ctx, wsclient.Message{Type: domain.MessageChat, Payload: json.RawMessage(`[1]`)})

	got := records(t, &buf)
	require.Len(t, got, 2)
	for i, msgType := range []string{domain.MessageError, domain.MessageChat} {
		assert.Equal(t, "WARN", got[i].Level)
		assert.Equal(t, "failed to decode message", got[i].Msg)
		assert.Equal(t, msgType, got[i].Type)
	}
}

func TestHandleLogsServerErrorsAndChat(t *testing.T) {
	var buf bytes.Buffer
	v := newTestViewer(&buf)
	ctx := context.Background()

	v.handle(ctx, wsclient.Message{Type: domain.MessageError, Payload: json.RawMessage(`{"code":"NOT_HOST","message":"no"}`)})
	v.handle(ctx, wsclient.Message{Type: domain.MessageChat, Payload: json.RawMessage(`{"event":{"content":"hello"}}`)})

	got := records(t, &buf)
	require.Len(t, got, 2)
	assert.Equal(t, "server error", got[0].Msg)
	assert.Equal(t, "NOT_HOST", got[0].Code)
	assert.Equal(t, "chat", got[1].Msg)
	assert.Equal(t, "hello", got[1].Text)
}

func TestHandleDrivesReconciler(t *testing.T) {
	var buf bytes.Buffer
	v := newTestViewer(&buf)

	v.handle(context.Background(), wsclient.Message{Type: domain.MessagePause, Payload: json.RawMessage(`{"position_sec":42}`)})
	assert.InDelta(t, 42, v.player.Position(), 1e-9)
}
