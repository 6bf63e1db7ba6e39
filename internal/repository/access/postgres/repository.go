package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repo struct {
	db     querier
	logger *slog.Logger
}

// NewRepo accepts a *pgxpool.Pool or any pgx connection.
func NewRepo(db querier, logger *slog.Logger) *repo {
	return &repo{
		db:     db,
		logger: logger,
	}
}

const hasAccessQuery = `SELECT EXISTS (
	SELECT 1 FROM tickets
	WHERE room_id = $1 AND user_id = $2 AND revoked_at IS NULL
)`

// HasAccess reports whether the user holds a valid ticket for the room.
func (r *repo) HasAccess(ctx context.Context, userID, roomID string) (bool, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"user_id": userID,
		"room_id": roomID,
	})

	var ok bool
	if err := r.db.QueryRow(ctx, hasAccessQuery, roomID, userID).Scan(&ok); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return false, fmt.Errorf("failed to check access: %w", err)
	}

	return ok, nil
}
