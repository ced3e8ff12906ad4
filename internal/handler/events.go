package handler

import (
	"errors"
	"net/http"

	"github.com/Shivanand-hulikatti/tigertix/internal/model"
	"github.com/Shivanand-hulikatti/tigertix/internal/repository"
	"github.com/Shivanand-hulikatti/tigertix/internal/service"
	"github.com/rs/zerolog"
)

// EventHandler serves event browsing and administration.
type EventHandler struct {
	svc *service.EventService
	log zerolog.Logger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc *service.EventService, log zerolog.Logger) *EventHandler {
	return &EventHandler{svc: svc, log: log}
}

// ListAvailable handles GET /api/client/events and GET /api/llm/events.
func (h *EventHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListAvailable(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list available events")
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// ListEvents handles GET /api/admin/events.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list events")
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /api/client/events/{id} and GET /api/admin/events/{id}.
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.svc.GetEvent(r.Context(), id)
	if err != nil {
		h.writeEventError(w, err, "failed to get event")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// CreateEvent handles POST /api/admin/events.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), req)
	if err != nil {
		h.writeEventError(w, err, "failed to create event")
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// UpdateEvent handles PUT /api/admin/events/{id}.
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.UpdateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.UpdateEvent(r.Context(), id, req)
	if err != nil {
		h.writeEventError(w, err, "failed to update event")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// DeleteEvent handles DELETE /api/admin/events/{id}.
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.DeleteEvent(r.Context(), id); err != nil {
		h.writeEventError(w, err, "failed to delete event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventHandler) writeEventError(w http.ResponseWriter, err error, fallback string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Msg)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "Event not found")
	case errors.Is(err, repository.ErrEventHasPurchases):
		writeError(w, http.StatusConflict, "event has purchases and cannot be deleted")
	case errors.Is(err, repository.ErrCapacityBelowSold):
		writeError(w, http.StatusConflict, "capacity cannot be lower than tickets already sold")
	default:
		h.log.Error().Err(err).Msg(fallback)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
