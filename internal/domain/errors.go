package domain

import "errors"

var (
	ErrNotHost             = errors.New("only the host can control playback")
	ErrRoomFull            = errors.New("room is full")
	ErrInvalidState        = errors.New("command is not allowed in the current room status")
	ErrAccessDenied        = errors.New("access denied")
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomAlreadyExists   = errors.New("room already exists")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrMovieNotFound       = errors.New("movie not found")
	ErrRoomClosed          = errors.New("room is closed")
	ErrInvalidID           = errors.New("id must be 1-128 characters of letters, digits, '_' or '-'")
)
