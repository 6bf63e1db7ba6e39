package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/sharetube/watchparty/internal/domain"
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repo struct {
	db            querier
	streamBaseURL string
	logger        *slog.Logger
}

func NewRepo(db querier, streamBaseURL string, logger *slog.Logger) *repo {
	return &repo{
		db:            db,
		streamBaseURL: streamBaseURL,
		logger:        logger,
	}
}

const getMovieQuery = `SELECT title, stream_path FROM movies WHERE id = $1`

func (r *repo) GetMovie(ctx context.Context, movieID string) (domain.Movie, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"movie_id": movieID,
	})

	var title, streamPath string
	if err := r.db.QueryRow(ctx, getMovieQuery, movieID).Scan(&title, &streamPath); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, domain.ErrMovieNotFound
		}

		return domain.Movie{}, fmt.Errorf("failed to get movie: %w", err)
	}

	streamURL, err := url.JoinPath(r.streamBaseURL, streamPath)
	if err != nil {
		return domain.Movie{}, fmt.Errorf("invalid stream path %q: %w", streamPath, err)
	}

	return domain.Movie{
		ID:        movieID,
		Title:     title,
		StreamURL: streamURL,
	}, nil
}
