package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/repository/eventlog"
)

// nextSequenceScript assigns the next sequence number of a room log and clamps the real time
// (epoch milliseconds) to be non-decreasing. Returns {sequence, real_time_ms}.
var nextSequenceScript = redis.NewScript(`
	local seq = redis.call('INCR', KEYS[1])
	local rt = ARGV[1]
	local last = redis.call('GET', KEYS[2])
	if last and tonumber(last) > tonumber(rt) then
		rt = last
	end
	redis.call('SET', KEYS[2], rt)
	return {seq, tonumber(rt)}
`)

type repo struct {
	rc             *redis.Client
	retention      int
	expireDuration time.Duration
	logger         *slog.Logger
}

func NewRepo(rc *redis.Client, retention int, expireDuration time.Duration, logger *slog.Logger) *repo {
	return &repo{
		rc:             rc,
		retention:      retention,
		expireDuration: expireDuration,
		logger:         logger,
	}
}

func (r repo) getLogKey(roomID string) string {
	return "room:" + roomID + ":log"
}

func (r repo) getSeqKey(roomID string) string {
	return "room:" + roomID + ":log:seq"
}

func (r repo) getLastTimeKey(roomID string) string {
	return "room:" + roomID + ":log:last"
}

func (r repo) Append(ctx context.Context, event domain.LogEvent) (domain.LogEvent, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": event.RoomID,
		"type":    event.Type,
	})
	if err := eventlog.Validate(&event); err != nil {
		return domain.LogEvent{}, err
	}

	res, err := nextSequenceScript.Run(ctx, r.rc,
		[]string{r.getSeqKey(event.RoomID), r.getLastTimeKey(event.RoomID)},
		event.RealTime.UnixMilli(),
	).Int64Slice()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.LogEvent{}, fmt.Errorf("failed to assign sequence: %w", err)
	}

	event.Sequence = res[0]
	event.RealTime = time.UnixMilli(res[1]).UTC()

	data, err := json.Marshal(event)
	if err != nil {
		return domain.LogEvent{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	logKey := r.getLogKey(event.RoomID)
	pipe := r.rc.TxPipeline()
	pipe.ZAdd(ctx, logKey, redis.Z{Score: float64(event.Sequence), Member: data})
	if r.retention > 0 {
		pipe.ZRemRangeByRank(ctx, logKey, 0, int64(-r.retention-1))
	}
	pipe.Expire(ctx, logKey, r.expireDuration)
	pipe.Expire(ctx, r.getSeqKey(event.RoomID), r.expireDuration)
	pipe.Expire(ctx, r.getLastTimeKey(event.RoomID), r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.LogEvent{}, fmt.Errorf("failed to append event: %w", err)
	}

	return event, nil
}

func (r repo) RecentWindow(ctx context.Context, roomID string, limit int) ([]domain.LogEvent, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomID,
		"limit":   limit,
	})
	if limit <= 0 {
		return []domain.LogEvent{}, nil
	}

	members, err := r.rc.ZRange(ctx, r.getLogKey(roomID), int64(-limit), -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to get recent window: %w", err)
	}

	return r.decode(members)
}

func (r repo) Since(ctx context.Context, roomID string, afterSeq int64, limit int) ([]domain.LogEvent, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id":   roomID,
		"after_seq": afterSeq,
		"limit":     limit,
	})
	if limit <= 0 {
		return []domain.LogEvent{}, nil
	}

	members, err := r.rc.ZRangeByScore(ctx, r.getLogKey(roomID), &redis.ZRangeBy{
		Min:   "(" + strconv.FormatInt(afterSeq, 10),
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to get events since %d: %w", afterSeq, err)
	}

	return r.decode(members)
}

func (r repo) Drop(ctx context.Context, roomID string) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomID,
	})
	if err := r.rc.Del(ctx, r.getLogKey(roomID), r.getSeqKey(roomID), r.getLastTimeKey(roomID)).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) decode(members []string) ([]domain.LogEvent, error) {
	events := make([]domain.LogEvent, 0, len(members))
	for _, member := range members {
		var event domain.LogEvent
		if err := json.Unmarshal([]byte(member), &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}

		events = append(events, event)
	}

	return events, nil
}

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}
