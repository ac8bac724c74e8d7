package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
)

// RoomsHandler serves the lobby over plain HTTP.
type RoomsHandler struct {
	service  *app.BattleService
	identity *Identity
}

func NewRoomsHandler(service *app.BattleService, identity *Identity) *RoomsHandler {
	return &RoomsHandler{service: service, identity: identity}
}

// Register mounts the lobby routes on mux.
func (h *RoomsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /rooms", h.list)
	mux.HandleFunc("POST /rooms", h.create)
	mux.HandleFunc("GET /rooms/{id}", h.get)
}

func (h *RoomsHandler) list(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.service.ListRooms(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomsHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, err := h.identity.UserID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var in app.CreateRoomInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid room payload", http.StatusBadRequest)
		return
	}
	state, err := h.service.CreateRoom(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (h *RoomsHandler) get(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.Room(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("write response", "err", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "err", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrSlotNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrStudySetNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotHost),
		errors.Is(err, domain.ErrNotParticipant),
		errors.Is(err, domain.ErrNotStudySetOwner),
		errors.Is(err, domain.ErrIncorrectPassword):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyInRoom),
		errors.Is(err, domain.ErrRoomNotWaiting),
		errors.Is(err, domain.ErrRoomNotInGame),
		errors.Is(err, domain.ErrGameNotFinished),
		errors.Is(err, domain.ErrRoomFull),
		errors.Is(err, domain.ErrSlotOccupied),
		errors.Is(err, domain.ErrNoMoreQuestions),
		errors.Is(err, domain.ErrNoActiveQuestion),
		errors.Is(err, domain.ErrAlreadyAnswered),
		errors.Is(err, domain.ErrQuestionSetNotDrawn):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidTimeLimit),
		errors.Is(err, domain.ErrInvalidQuestionCount),
		errors.Is(err, domain.ErrInvalidVisibility),
		errors.Is(err, domain.ErrPasswordRequired),
		errors.Is(err, domain.ErrInvalidSlotType),
		errors.Is(err, domain.ErrInvalidSlot),
		errors.Is(err, domain.ErrCannotKickSelf),
		errors.Is(err, domain.ErrCannotModifyHost),
		errors.Is(err, domain.ErrSlotNotPlayer),
		errors.Is(err, domain.ErrInvalidOption),
		errors.Is(err, domain.ErrNotEnoughQuestions):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
