package room

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/repository/archive"
	"github.com/sharetube/watchparty/internal/repository/catalog"
	"github.com/sharetube/watchparty/internal/repository/connection"
	eventlog "github.com/sharetube/watchparty/internal/repository/eventlog/inmemory"
	roomInmemory "github.com/sharetube/watchparty/internal/repository/room/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	roomID string
	userID string
	msg    domain.Message
}

type closed struct {
	roomID string
	userID string
	code   int
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	sent   []sent
	closed []closed
	conns  map[leaveKey]bool
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{conns: make(map[leaveKey]bool)}
}

func (b *fakeBroadcaster) Broadcast(roomID string, msg *domain.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sent{roomID: roomID, msg: *msg})
}

func (b *fakeBroadcaster) SendToUser(roomID, userID string, msg *domain.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.conns[leaveKey{roomID, userID}] {
		return connection.ErrNotFound
	}

	b.sent = append(b.sent, sent{roomID: roomID, userID: userID, msg: *msg})
	return nil
}

func (b *fakeBroadcaster) HasConn(roomID, userID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conns[leaveKey{roomID, userID}]
}

func (b *fakeBroadcaster) CloseUser(roomID, userID string, code int, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, leaveKey{roomID, userID})
	b.closed = append(b.closed, closed{roomID: roomID, userID: userID, code: code})
}

func (b *fakeBroadcaster) CloseRoom(roomID string, code int, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = append(b.closed, closed{roomID: roomID, code: code})
}

func (b *fakeBroadcaster) connect(roomID, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[leaveKey{roomID, userID}] = true
}

func (b *fakeBroadcaster) disconnect(roomID, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, leaveKey{roomID, userID})
}

func (b *fakeBroadcaster) messages(msgType string) []sent {
	b.mu.Lock()
	defer b.mu.Unlock()

	var res []sent
	for _, s := range b.sent {
		if s.msg.Type == msgType {
			res = append(res, s)
		}
	}

	return res
}

func (b *fakeBroadcaster) closedConns() []closed {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]closed(nil), b.closed...)
}

type fakeAccess map[string]bool

func (f fakeAccess) HasAccess(_ context.Context, userID, _ string) (bool, error) {
	return f == nil || f[userID], nil
}

type testEnv struct {
	svc         *service
	clock       *clockwork.FakeClock
	broadcaster *fakeBroadcaster
	deps        Deps
	config      Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.Default()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 17, 20, 0, 0, 0, time.UTC))
	broadcaster := newFakeBroadcaster()

	deps := Deps{
		RoomRepo:    roomInmemory.NewRepo(logger),
		EventLog:    eventlog.NewRepo(1000, logger),
		Broadcaster: broadcaster,
		Access:      fakeAccess(nil),
		Catalog:     catalog.NewStatic("https://cdn.example.com"),
		Archive:     archive.Nop(),
		Clock:       clock,
		Logger:      logger,
	}
	config := Config{
		MembersLimit:      10,
		HeartbeatInterval: 5 * time.Second,
		LeaveGracePeriod:  5 * time.Second,
		LogWindow:         50,
	}

	svc := NewService(deps, config)
	t.Cleanup(svc.Close)

	return &testEnv{
		svc:         svc,
		clock:       clock,
		broadcaster: broadcaster,
		deps:        deps,
		config:      config,
	}
}

func (e *testEnv) createRoom(t *testing.T, maxParticipants int, status domain.Status) string {
	t.Helper()
	resp, err := e.svc.CreateRoom(context.Background(), &CreateRoomParams{
		MovieID:         "m1",
		HostID:          "host",
		MaxParticipants: maxParticipants,
		Status:          status,
	})
	require.NoError(t, err)

	return resp.Snapshot.RoomID
}

func (e *testEnv) join(t *testing.T, roomID, userID string) domain.RoomSnapshot {
	t.Helper()
	e.broadcaster.connect(roomID, userID)
	resp, err := e.svc.JoinRoom(context.Background(), &JoinRoomParams{
		RoomID:   roomID,
		UserID:   userID,
		Username: "name-" + userID,
	})
	require.NoError(t, err)

	return resp.Snapshot
}

func (e *testEnv) snapshot(t *testing.T, roomID string) domain.RoomSnapshot {
	t.Helper()
	snapshot, err := e.svc.GetSnapshot(context.Background(), roomID)
	require.NoError(t, err)

	return snapshot
}

func countEvents(events []domain.LogEvent, eventType domain.EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == eventType {
			n++
		}
	}

	return n
}

func TestCreateRoom(t *testing.T) {
	env := newTestEnv(t)
	roomID := env.createRoom(t, 0, "")

	snapshot := env.snapshot(t, roomID)
	assert.Equal(t, domain.StatusUpcoming, snapshot.Status)
	assert.Equal(t, "host", snapshot.HostID)
	assert.Equal(t, env.config.MembersLimit, snapshot.MaxParticipants)
	assert.Equal(t, "https://cdn.example.com/m1/index.m3u8", snapshot.StreamURL)
	assert.False(t, snapshot.IsPlaying)
	assert.Nil(t, snapshot.StartTimeMs)

	_, err := env.svc.CreateRoom(context.Background(), &CreateRoomParams{RoomID: roomID, MovieID: "m1", HostID: "host"})
	assert.ErrorIs(t, err, domain.ErrRoomAlreadyExists)

	rooms, err := env.svc.ListRooms(context.Background())
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestJoinIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	roomID := env.createRoom(t, 5, domain.StatusOngoing)

	env.join(t, roomID, "u1")
	snapshot := env.join(t, roomID, "u1")

	require.Len(t, snapshot.Participants, 1)
	assert.Equal(t, "u1", snapshot.Participants[0].UserID)
	assert.Equal(t, 2, countEvents(snapshot.RecentMessages, domain.EventJoin))

	responses := env.broadcaster.messages(domain.MessageJoinResponse)
	require.Len(t, responses, 2)
	assert.Equal(t, "u1", responses[0].userID)
	assert.Len(t, env.broadcaster.messages(domain.MessageRosterUpdated), 2)
}

func TestCapacity(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	roomID := env.createRoom(t, 2, domain.StatusOngoing)

	env.join(t, roomID, "u1")
	env.join(t, roomID, "u2")

	_, err := env.svc.JoinRoom(ctx, &JoinRoomParams{RoomID: roomID, UserID: "u3"})
	assert.ErrorIs(t, err, domain.ErrRoomFull)

	a, err := env.svc.getAuthority(ctx, roomID)
	require.NoError(t, err)
	_, err = a.Join(ctx, domain.Participant{UserID: "u3"})
	assert.ErrorIs(t, err, domain.ErrRoomFull)

	snapshot := env.join(t, roomID, "u2")
	assert.Len(t, snapshot.Participants, 2)
}

func TestAdmissionAccess(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.svc.access = fakeAccess{"u1": true}
	roomID := env.createRoom(t, 5, domain.StatusOngoing)

	err := env.svc.AdmitMember(ctx, &AdmitMemberParams{RoomID: roomID, UserID: "stranger"})
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	assert.NoError(t, env.svc.AdmitMember(ctx, &AdmitMemberParams{RoomID: roomID, UserID: "u1"}))
	assert.NoError(t, env.svc.AdmitMember(ctx, &AdmitMemberParams{RoomID: roomID, UserID: "host"}))

	err = env.svc.AdmitMember(ctx, &AdmitMemberParams{RoomID: "missing", UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestPlayPauseSeek(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	roomID := env.createRoom(t, 5, domain.StatusOngoing)
	env.join(t, roomID, "host")

	require.NoError(t, env.svc.Play(ctx, &PlayParams{RoomID: roomID, SenderID: "host", PositionSec: 10}))
	plays := env.broadcaster.messages(domain.MessagePlay)
	require.Len(t, plays, 1)
	play := plays[0].msg.Payload.(domain.PlayPayload)
	assert.Equal(t, env.clock.Now().UnixMilli(), play.StartTimeMs)
	assert.Equal(t, 10.0, play.PositionSec)

	env.clock.Advance(4 * time.Second)
	require.NoError(t, env.svc.Pause(ctx, &PauseParams{RoomID: roomID, SenderID: "host"}))
	pauses := env.broadcaster.messages(domain.MessagePause)
	require.Len(t, pauses, 1)
	assert.InDelta(t, 14.0, pauses[0].msg.Payload.(domain.PausePayload).PositionSec, 1e-9)

	snapshot := env.snapshot(t, roomID)
	assert.False(t, snapshot.IsPlaying)
	assert.Nil(t, snapshot.StartTimeMs)
	assert.InDelta(t, 14.0, snapshot.BasePositionSec, 1e-9)

	require.NoError(t, env.svc.Seek(ctx, &SeekParams{RoomID: roomID, SenderID: "host", PositionSec: 100}))
	seek := env.broadcaster.messages(domain.MessageSeek)[0].msg.Payload.(domain.SeekPayload)
	assert.Nil(t, seek.StartTimeMs)
	assert.Equal(t, 100.0, seek.PositionSec)

	require.NoError(t, env.svc.Play(ctx, &PlayParams{RoomID: roomID, SenderID: "host", PositionSec: 100}))
	require.NoError(t, env.svc.Seek(ctx, &SeekParams{RoomID: roomID, SenderID: "host", PositionSec: 50}))
	snapshot = env.snapshot(t, roomID)
	assert.True(t, snapshot.IsPlaying)
	assert.InDelta(t, 50.0, snapshot.PositionSec, 1e-9)

	types := []domain.EventType{}
	for _, e := range snapshot.RecentMessages {
		types = append(types, e.Type)
	}
	assert.Equal(t, []domain.EventType{
		domain.EventJoin, domain.EventPlay, domain.EventPause, domain.EventSeek, domain.EventPlay, domain.EventSeek,
	}, types)
	assert.InDelta(t, 14.0, snapshot.RecentMessages[2].EventTimeSec, 1e-9)
}

func TestNonHostPauseRejected(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	roomID := env.createRoom(t, 5, domain.StatusOngoing)
	env.join(t, roomID, "host")
	env.join(t, roomID, "u2")
	require.NoError(t, env.svc.Play(ctx, &PlayParams{RoomID: roomID, SenderID: "host", PositionSec: 0}))
	before := env.snapshot(t, roomID)

	err := env.svc.Pause(ctx, &PauseParams{RoomID: roomID, SenderID: "u2"})
	assert.ErrorIs(t, err, domain.ErrNotHost)
	err = env.svc.Seek(ctx, &SeekParams{RoomID: roomID, SenderID: "u2", PositionSec: 30})
	assert.ErrorIs(t, err, domain.ErrNotHost)

	after := env.snapshot(t, roomID)
	assert.Equal(t, before.IsPlaying, after.IsPlaying)
	assert.Equal(t, before.StartTimeMs, after.StartTimeMs)
	assert.Equal(t, before.BasePositionSec, after.BasePositionSec)
	assert.Zero(t, countEvents(after.RecentMessages, domain.EventPause))
	assert.Empty(t, env.broadcaster.messages(domain.MessagePause))
}

func TestHostCommandsOutsideOngoing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	roomID := env.createRoom(t, 5, domain.StatusUpcoming)

	err := env.svc.Play(ctx, &PlayParams{RoomID: roomID, SenderID: "host", PositionSec: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	err = env.svc.Play(ctx, &PlayParams{RoomID: roomID, SenderID: "u2", PositionSec: 0})
	assert.ErrorIs(t, err, domain.ErrNotHost)
}

func TestHeartbeatProgress(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	env := newTestEnv(t)
	roomID := env.createRoom(t, 5, domain.StatusOngoing)

	a, err := env.svc.getAuthority(ctx, roomID)
	require.NoError(t, err)
	require.NoError(t, a.do(ctx, func(context.Context) error {
		a.heartbeat()
		return nil
	}))
	assert.Empty(t, env.broadcaster.messages(domain.MessageProgress))

	require.NoError(t, env.svc.Play(ctx, &PlayParams{RoomID: roomID, SenderID: "host", PositionSec: 60}))
	startMs := env.clock.Now().UnixMilli()
	require.NoError(t, env.clock.BlockUntilContext(ctx, 1))
	env.clock.Advance(5 * time.Second)

	assert.Eventually(t, func() bool {
		return len(env.broadcaster.messages(domain.MessageProgress)) == 1
	}, time.Second, 10*time.Millisecond)
	payload := env.broadcaster.messages(domain.MessageProgress)[0].msg.Payload.(domain.ProgressPayload)
	assert.InDelta(t, 65.0, payload.Progress, 1e-9)
	assert.Equal(t, startMs+5000, payload.ServerTimestampMs)

	snapshot := env.snapshot(t, roomID)
	assert.Equal(t, startMs, *snapshot.StartTimeMs)
	assert.Equal(t, 60.0, snapshot.BasePositionSec)
}

func TestTransitionStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	roomID := env.createRoom(t, 5, domain.StatusUpcoming)
	env.join(t, roomID, "u1")

	require.NoError(t, env.svc.TransitionStatus(ctx, &TransitionStatusParams{RoomID: roomID, Status: domain.StatusOngoing}))
	err := env.svc.TransitionStatus(ctx, &TransitionStatusParams{RoomID: roomID, Status: domain.StatusUpcoming})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, domain.StatusOngoing, env.snapshot(t, roomID).Status)

	require.NoError(t, env.svc.TransitionStatus(ctx, &TransitionStatusParams{RoomID: roomID, Status: domain.StatusFinished}))
	statuses := env.broadcaster.messages(domain.MessageStatusUpdated)
	require.Len(t, statuses, 2)
	assert.Equal(t, domain.StatusFinished, statuses[1].msg.Payload.(domain.StatusPayload).Status)
	assert.Contains(t, env.broadcaster.closedConns(), closed{roomID: roomID, code: connection.CloseFinished})

	err = env.svc.Play(ctx, &PlayParams{RoomID: roomID, SenderID: "host", PositionSec: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = env.svc.PostMessage(ctx, &PostMessageParams{RoomID: roomID, SenderID: "u1", Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = env.svc.JoinRoom(ctx, &JoinRoomParams{RoomID: roomID, UserID: "u2"})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	rooms, err := env.svc.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestGracePeriodLeave(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	env := newTestEnv(t)
	roomID := env.createRoom(t, 5, domain.StatusOngoing)
	env.join(t, roomID, "u1")
	require.NoError(t, env.clock.BlockUntilContext(ctx, 1))

	env.broadcaster.disconnect(roomID, "u1")
	env.svc.DisconnectMember(ctx, &DisconnectMemberParams{RoomID: roomID, UserID: "u1"})
	require.NoError(t, env.clock.BlockUntilContext(ctx, 2))

	env.clock.Advance(4 * time.Second)
	assert.Len(t, env.snapshot(t, roomID).Participants, 1)

	env.clock.Advance(time.Second)
	assert.Eventually(t, func() bool {
		snapshot, err := env.svc.GetSnapshot(context.Background(), roomID)
		return err == nil && len(snapshot.Participants) == 0
	}, time.Second, 10*time.Millisecond)

	rosters := env.broadcaster.messages(domain.MessageRosterUpdated)
	last := rosters[len(rosters)-1].msg.Payload.(domain.RosterPayload)
	require.NotNil(t, last.LeftUserID)
	assert.Equal(t, "u1", *last.LeftUserID)
}

func TestReconnectCancelsLeave(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	env := newTestEnv(t)
	roomID := env.createRoom(t, 5, domain.StatusOngoing)
	env.join(t, roomID, "u1")
	require.NoError(t, env.clock.BlockUntilContext(ctx, 1))

	env.broadcaster.disconnect(roomID, "u1")
	env.svc.DisconnectMember(ctx, &DisconnectMemberParams{RoomID: roomID, UserID: "u1"})
	require.NoError(t, env.clock.BlockUntilContext(ctx, 2))

	env.join(t, roomID, "u1")
	env.clock.Advance(10 * time.Second)

	snapshot := env.snapshot(t, roomID)
	require.Len(t, snapshot.Participants, 1)
	assert.Zero(t, countEvents(snapshot.RecentMessages, domain.EventLeave))
}

func TestLeaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	roomID := env.createRoom(t, 5, domain.StatusOngoing)
	env.join(t, roomID, "u1")

	require.NoError(t, env.svc.LeaveRoom(ctx, &LeaveRoomParams{RoomID: roomID, UserID: "u1"}))
	require.NoError(t, env.svc.LeaveRoom(ctx, &LeaveRoomParams{RoomID: roomID, UserID: "u1"}))

	snapshot := env.snapshot(t, roomID)
	assert.Empty(t, snapshot.Participants)
	assert.Equal(t, 1, countEvents(snapshot.RecentMessages, domain.EventLeave))
}

func TestMessagesAndLikes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	roomID := env.createRoom(t, 5, domain.StatusUpcoming)
	env.join(t, roomID, "u1")

	event, err := env.svc.PostMessage(ctx, &PostMessageParams{RoomID: roomID, SenderID: "u1", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, domain.EventMessage, event.Type)
	assert.Equal(t, "hello", event.Content)
	assert.Equal(t, "u1", *event.UserID)
	require.Len(t, env.broadcaster.messages(domain.MessageChat), 1)

	_, err = env.svc.PostMessage(ctx, &PostMessageParams{RoomID: roomID, SenderID: "stranger", Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)

	_, err = env.svc.Like(ctx, &LikeParams{RoomID: roomID, SenderID: "u1"})
	require.NoError(t, err)
	_, err = env.svc.Like(ctx, &LikeParams{RoomID: roomID, SenderID: "u1"})
	require.NoError(t, err)

	likes := env.broadcaster.messages(domain.MessageLike)
	require.Len(t, likes, 2)
	payload := likes[1].msg.Payload.(domain.LikePayload)
	assert.Equal(t, map[string]int{"u1": 2}, payload.LikeCounts)
	assert.Equal(t, 2, payload.TotalLikes)

	snapshot := env.snapshot(t, roomID)
	assert.Equal(t, 2, snapshot.TotalLikes)
	assert.Equal(t, 2, countEvents(snapshot.RecentMessages, domain.EventLike))
}

func TestKick(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	roomID := env.createRoom(t, 5, domain.StatusOngoing)
	env.join(t, roomID, "host")
	env.join(t, roomID, "u1")

	err := env.svc.Kick(ctx, &KickParams{RoomID: roomID, SenderID: "u1", UserID: "host"})
	assert.ErrorIs(t, err, domain.ErrNotHost)

	require.NoError(t, env.svc.Kick(ctx, &KickParams{RoomID: roomID, SenderID: "host", UserID: "u1"}))
	assert.Contains(t, env.broadcaster.closedConns(), closed{roomID: roomID, userID: "u1", code: connection.CloseKicked})
	assert.Len(t, env.snapshot(t, roomID).Participants, 1)
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	roomID := env.createRoom(t, 5, domain.StatusOngoing)
	env.join(t, roomID, "u1")
	first, err := env.svc.PostMessage(ctx, &PostMessageParams{RoomID: roomID, SenderID: "u1", Text: "one"})
	require.NoError(t, err)
	_, err = env.svc.PostMessage(ctx, &PostMessageParams{RoomID: roomID, SenderID: "u1", Text: "two"})
	require.NoError(t, err)

	resp, err := env.svc.Sync(ctx, &SyncParams{RoomID: roomID, UserID: "u1", AfterSeq: first.Sequence})
	require.NoError(t, err)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "two", resp.Events[0].Content)

	_, err = env.svc.Sync(ctx, &SyncParams{RoomID: roomID, UserID: "stranger"})
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)
}

func TestRestoreFromRepository(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	env := newTestEnv(t)
	roomID := env.createRoom(t, 5, domain.StatusOngoing)
	env.join(t, roomID, "host")
	require.NoError(t, env.svc.Play(ctx, &PlayParams{RoomID: roomID, SenderID: "host", PositionSec: 30}))
	_, err := env.svc.Like(ctx, &LikeParams{RoomID: roomID, SenderID: "host"})
	require.NoError(t, err)
	env.svc.Close()

	restarted := NewService(env.deps, env.config)
	t.Cleanup(restarted.Close)
	env.clock.Advance(2 * time.Second)

	snapshot, err := restarted.GetSnapshot(ctx, roomID)
	require.NoError(t, err)
	assert.True(t, snapshot.IsPlaying)
	assert.InDelta(t, 32.0, snapshot.PositionSec, 1e-9)
	require.Len(t, snapshot.Participants, 1)
	assert.Equal(t, 1, snapshot.TotalLikes)
	assert.Len(t, snapshot.RecentMessages, 3)
}
