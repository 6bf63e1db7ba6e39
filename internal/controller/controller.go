package controller

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/repository/connection/inmemory"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/validator"
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	GetSnapshot(context.Context, string) (domain.RoomSnapshot, error)
	ListRooms(context.Context) ([]domain.RoomSnapshot, error)
	TransitionStatus(context.Context, *room.TransitionStatusParams) error
	AdmitMember(context.Context, *room.AdmitMemberParams) error
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) error
	DisconnectMember(context.Context, *room.DisconnectMemberParams)
	Kick(context.Context, *room.KickParams) error
	Play(context.Context, *room.PlayParams) error
	Pause(context.Context, *room.PauseParams) error
	Seek(context.Context, *room.SeekParams) error
	PostMessage(context.Context, *room.PostMessageParams) (domain.LogEvent, error)
	Like(context.Context, *room.LikeParams) (domain.LogEvent, error)
	Sync(context.Context, *room.SyncParams) (room.SyncResponse, error)
}

type iConnRepo interface {
	Add(ctx context.Context, roomID, userID string, ws *websocket.Conn) *inmemory.Conn
	Remove(context.Context, *inmemory.Conn) bool
	Send(*inmemory.Conn, *domain.Message) error
	CloseUser(roomID, userID string, code int, reason string)
}

type controller struct {
	roomService iRoomService
	connRepo    iConnRepo
	upgrader    websocket.Upgrader
	wsmux       *wsrouter.WSRouter
	validate    *validator.Validator
	closeWait   time.Duration
	logger      *slog.Logger
}

func NewController(roomService iRoomService, connRepo iConnRepo, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		connRepo:    connRepo,
		validate:    validator.NewValidator(),
		closeWait:   time.Second,
		logger:      logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}

func (c controller) generateTimeBasedId() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36)
}
