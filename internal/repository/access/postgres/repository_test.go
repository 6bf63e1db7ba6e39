package postgres

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	value bool
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}

	*(dest[0].(*bool)) = r.value
	return nil
}

type fakeDB struct {
	tickets map[[2]string]bool
	err     error
}

func (db *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	roomID, userID := args[0].(string), args[1].(string)
	return fakeRow{
		value: db.tickets[[2]string{roomID, userID}],
		err:   db.err,
	}
}

func TestHasAccess(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{
		tickets: map[[2]string]bool{{"r1", "viewer"}: true},
	}
	r := NewRepo(db, slog.Default())

	ok, err := r.HasAccess(ctx, "viewer", "r1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.HasAccess(ctx, "stranger", "r1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasAccessError(t *testing.T) {
	dbErr := errors.New("connection refused")
	r := NewRepo(&fakeDB{err: dbErr}, slog.Default())

	_, err := r.HasAccess(context.Background(), "u", "r")
	assert.ErrorIs(t, err, dbErr)
}
