package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/repository/room"
)

func (r repo) SetParticipant(ctx context.Context, params *room.SetParticipantParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	participantKey := r.getParticipantKey(params.RoomID, params.UserID)
	pipe.Del(ctx, participantKey)
	r.hSetStruct(ctx, pipe, participantKey, struct {
		Username   string  `redis:"username"`
		AvatarURL  *string `redis:"avatar_url"`
		JoinedAtMs int64   `redis:"joined_at_ms"`
	}{
		Username:   params.Username,
		AvatarURL:  params.AvatarURL,
		JoinedAtMs: params.JoinedAtMs,
	})
	pipe.Expire(ctx, participantKey, r.expireDuration)

	listKey := r.getParticipantListKey(params.RoomID)
	pipe.ZAdd(ctx, listKey, redis.Z{Score: float64(params.JoinedAtMs), Member: params.UserID})
	pipe.Expire(ctx, listKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set participant: %w", err)
	}

	return nil
}

func (r repo) RemoveParticipant(ctx context.Context, params *room.RemoveParticipantParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()
	removed := pipe.ZRem(ctx, r.getParticipantListKey(params.RoomID), params.UserID)
	pipe.Del(ctx, r.getParticipantKey(params.RoomID, params.UserID))

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if removed.Val() == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantNotFound)
		return room.ErrParticipantNotFound
	}

	return nil
}

func (r repo) getParticipant(ctx context.Context, roomID, userID string) (room.Participant, error) {
	fields, err := r.rc.HGetAll(ctx, r.getParticipantKey(roomID, userID)).Result()
	if err != nil {
		return room.Participant{}, err
	}

	if len(fields) == 0 {
		return room.Participant{}, room.ErrParticipantNotFound
	}

	participant := room.Participant{
		UserID:   userID,
		Username: fields["username"],
	}
	if avatarURL, ok := fields["avatar_url"]; ok {
		participant.AvatarURL = &avatarURL
	}
	fmt.Sscan(fields["joined_at_ms"], &participant.JoinedAtMs)

	return participant, nil
}

// GetParticipants returns participants ordered by join time.
func (r repo) GetParticipants(ctx context.Context, roomID string) ([]room.Participant, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomID,
	})
	userIDs, err := r.rc.ZRange(ctx, r.getParticipantListKey(roomID), 0, -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	participants := make([]room.Participant, 0, len(userIDs))
	for _, userID := range userIDs {
		participant, err := r.getParticipant(ctx, roomID, userID)
		if err != nil {
			if errors.Is(err, room.ErrParticipantNotFound) {
				// hash expired before the list entry
				continue
			}

			r.logger.DebugContext(ctx, "returned", "error", err)
			return nil, err
		}

		participants = append(participants, participant)
	}

	return participants, nil
}
