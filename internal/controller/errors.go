package controller

import (
	"errors"
	"net/http"

	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

var errValidation = errors.New("validation failed")

// error codes sent in ERROR frames
const (
	codeNotHost             = "NOT_HOST"
	codeRoomFull            = "ROOM_FULL"
	codeInvalidState        = "INVALID_STATE"
	codeAccessDenied        = "ACCESS_DENIED"
	codeRoomNotFound        = "ROOM_NOT_FOUND"
	codeParticipantNotFound = "PARTICIPANT_NOT_FOUND"
	codeMovieNotFound       = "MOVIE_NOT_FOUND"
	codeRoomAlreadyExists   = "ROOM_ALREADY_EXISTS"
	codeValidation          = "VALIDATION_ERROR"
	codeInternal            = "INTERNAL"
)

func errorCode(err error) (string, int) {
	switch {
	case errors.Is(err, domain.ErrNotHost):
		return codeNotHost, http.StatusForbidden
	case errors.Is(err, domain.ErrRoomFull):
		return codeRoomFull, http.StatusConflict
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrRoomClosed):
		return codeInvalidState, http.StatusConflict
	case errors.Is(err, domain.ErrAccessDenied):
		return codeAccessDenied, http.StatusForbidden
	case errors.Is(err, domain.ErrRoomNotFound):
		return codeRoomNotFound, http.StatusNotFound
	case errors.Is(err, domain.ErrParticipantNotFound):
		return codeParticipantNotFound, http.StatusNotFound
	case errors.Is(err, domain.ErrMovieNotFound):
		return codeMovieNotFound, http.StatusNotFound
	case errors.Is(err, domain.ErrRoomAlreadyExists):
		return codeRoomAlreadyExists, http.StatusConflict
	case errors.Is(err, errValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, wsrouter.ErrInvalidPayload),
		errors.Is(err, wsrouter.ErrUnknownMessageType):
		return codeValidation, http.StatusBadRequest
	}

	return codeInternal, http.StatusInternalServerError
}

// errorMessage hides internal error details from clients.
func errorMessage(code string, err error) string {
	if code == codeInternal {
		return "internal error"
	}

	return err.Error()
}
