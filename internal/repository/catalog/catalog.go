package catalog

import (
	"context"
	"net/url"

	"github.com/sharetube/watchparty/internal/domain"
)

type static struct {
	baseURL string
}

// NewStatic resolves every movie id to <baseURL>/<movieID>/index.m3u8.
func NewStatic(baseURL string) *static {
	return &static{baseURL: baseURL}
}

func (s *static) GetMovie(_ context.Context, movieID string) (domain.Movie, error) {
	if movieID == "" {
		return domain.Movie{}, domain.ErrMovieNotFound
	}

	streamURL, err := url.JoinPath(s.baseURL, movieID, "index.m3u8")
	if err != nil {
		return domain.Movie{}, err
	}

	return domain.Movie{
		ID:        movieID,
		Title:     movieID,
		StreamURL: streamURL,
	}, nil
}
