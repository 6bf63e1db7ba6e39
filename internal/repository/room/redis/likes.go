package redis

import (
	"context"
	"strconv"

	"github.com/sharetube/watchparty/internal/repository/room"
)

func (r repo) IncrLikes(ctx context.Context, params *room.IncrLikesParams) (int, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	likesKey := r.getLikesKey(params.RoomID)
	pipe := r.rc.TxPipeline()
	count := pipe.HIncrBy(ctx, likesKey, params.UserID, 1)
	pipe.Expire(ctx, likesKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return 0, err
	}

	return int(count.Val()), nil
}

func (r repo) GetLikes(ctx context.Context, roomID string) (map[string]int, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomID,
	})
	fields, err := r.rc.HGetAll(ctx, r.getLikesKey(roomID)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	likes := make(map[string]int, len(fields))
	for userID, value := range fields {
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		likes[userID] = n
	}

	return likes, nil
}
