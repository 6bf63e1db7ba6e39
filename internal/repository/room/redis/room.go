package redis

import (
	"context"
	"fmt"

	"github.com/sharetube/watchparty/internal/repository/room"
)

func (r repo) SetRoom(ctx context.Context, params *room.SetRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	roomKey := r.getRoomKey(params.RoomID)
	pipe.Del(ctx, roomKey)
	r.hSetStruct(ctx, pipe, roomKey, room.Room{
		MovieID:         params.MovieID,
		Title:           params.Title,
		StreamURL:       params.StreamURL,
		Status:          params.Status,
		HostID:          params.HostID,
		MaxParticipants: params.MaxParticipants,
		CreatedAtMs:     params.CreatedAtMs,
	})
	pipe.Expire(ctx, roomKey, r.expireDuration)
	pipe.SAdd(ctx, roomsKey, params.RoomID)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set room: %w", err)
	}

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomID string) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomID,
	})
	roomKey := r.getRoomKey(roomID)
	res := r.rc.HGetAll(ctx, roomKey)
	if err := res.Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, err
	}

	if len(res.Val()) == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.Room{}, room.ErrRoomNotFound
	}

	var model room.Room
	if err := res.Scan(&model); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, fmt.Errorf("failed to scan room: %w", err)
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return model, nil
}

func (r repo) ensureRoom(ctx context.Context, roomID string) error {
	res, err := r.rc.Exists(ctx, r.getRoomKey(roomID)).Result()
	if err != nil {
		return err
	}

	if res == 0 {
		return room.ErrRoomNotFound
	}

	return nil
}

func (r repo) UpdatePlayback(ctx context.Context, params *room.UpdatePlaybackParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	if err := r.ensureRoom(ctx, params.RoomID); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	var startTimeMs int64
	if params.StartTimeMs != nil {
		startTimeMs = *params.StartTimeMs
	}

	roomKey := r.getRoomKey(params.RoomID)
	if err := r.rc.HSet(ctx, roomKey,
		"is_playing", params.StartTimeMs != nil,
		"start_time_ms", startTimeMs,
		"base_position_sec", params.BasePositionSec,
	).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return nil
}

func (r repo) UpdateStatus(ctx context.Context, params *room.UpdateStatusParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	if err := r.ensureRoom(ctx, params.RoomID); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if err := r.rc.HSet(ctx, r.getRoomKey(params.RoomID), "status", params.Status).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) ListRoomIDs(ctx context.Context) ([]string, error) {
	r.logger.DebugContext(ctx, "called")
	roomIDs, err := r.rc.SMembers(ctx, roomsKey).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	return roomIDs, nil
}

// RemoveRoom drops the room from the index and lets its keys expire.
func (r repo) RemoveRoom(ctx context.Context, roomID string) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomID,
	})
	pipe := r.rc.TxPipeline()
	pipe.SRem(ctx, roomsKey, roomID)
	pipe.Expire(ctx, r.getRoomKey(roomID), r.expireDuration)
	pipe.Expire(ctx, r.getParticipantListKey(roomID), r.expireDuration)
	pipe.Expire(ctx, r.getLikesKey(roomID), r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}
