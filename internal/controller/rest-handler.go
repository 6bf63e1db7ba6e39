package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/rest"
)

type createRoomRequest struct {
	RoomID          string `json:"room_id" validate:"omitempty,max=128,id"`
	MovieID         string `json:"movie_id" validate:"required,max=128"`
	HostID          string `json:"host_id" validate:"required,max=128,id"`
	MaxParticipants int    `json:"max_participants" validate:"gte=0"`
	Status          string `json:"status" validate:"omitempty,oneof=upcoming ongoing"`
}

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRoomRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.InfoContext(ctx, "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.logger.InfoContext(ctx, "validation failed", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": codeValidation, "errors": validationErrors})
		return
	}

	resp, err := c.roomService.CreateRoom(ctx, &room.CreateRoomParams{
		RoomID:          req.RoomID,
		MovieID:         req.MovieID,
		HostID:          req.HostID,
		MaxParticipants: req.MaxParticipants,
		Status:          domain.Status(req.Status),
	})
	if err != nil {
		c.logger.InfoContext(ctx, "failed to create room", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": resp.Snapshot})
}

func (c controller) listRooms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rooms, err := c.roomService.ListRooms(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to list rooms", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": rooms})
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snapshot, err := c.roomService.GetSnapshot(ctx, chi.URLParam(r, "room-id"))
	if err != nil {
		c.logger.InfoContext(ctx, "failed to get room", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": snapshot})
}

type transitionStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ongoing finished"`
}

func (c controller) transitionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req transitionStatusRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.InfoContext(ctx, "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": codeValidation, "errors": validationErrors})
		return
	}

	if err := c.roomService.TransitionStatus(ctx, &room.TransitionStatusParams{
		RoomID: chi.URLParam(r, "room-id"),
		Status: domain.Status(req.Status),
	}); err != nil {
		c.logger.InfoContext(ctx, "failed to transition status", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": rest.Envelope{"status": req.Status}})
}
