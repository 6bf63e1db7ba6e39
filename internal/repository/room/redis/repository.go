package redis

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc             *redis.Client
	expireDuration time.Duration
	logger         *slog.Logger
}

func NewRepo(rc *redis.Client, expireDuration time.Duration, logger *slog.Logger) *repo {
	return &repo{
		rc:             rc,
		expireDuration: expireDuration,
		logger:         logger,
	}
}

const roomsKey = "rooms"

func (r repo) getRoomKey(roomID string) string {
	return "room:" + roomID
}

func (r repo) getParticipantListKey(roomID string) string {
	return "room:" + roomID + ":participants"
}

func (r repo) getParticipantKey(roomID, userID string) string {
	return "room:" + roomID + ":participant:" + userID
}

func (r repo) getLikesKey(roomID string) string {
	return "room:" + roomID + ":likes"
}
