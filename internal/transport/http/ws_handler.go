package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
)

type WSHandler struct {
	service  *app.BattleService
	hub      *app.RoomHub
	identity *Identity
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.BattleService, hub *app.RoomHub, identity *Identity) *WSHandler {
	return &WSHandler{
		service:  service,
		hub:      hub,
		identity: identity,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	Password string `json:"password"`
}

type slotPayload struct {
	SlotIndex int             `json:"slotIndex"`
	SlotType  domain.SlotType `json:"slotType"`
}

type answerPayload struct {
	OptionID int64 `json:"optionId"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

var errUnsupported = errors.New("unsupported message type")
var errBadPayload = errors.New("invalid payload")

// ServeWS upgrades HTTP requests to websockets. The socket carries the
// caller's commands for one room and streams that room's events back.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		http.Error(w, "missing room", http.StatusBadRequest)
		return
	}
	userID, err := h.identity.UserID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	state, err := h.service.Room(ctx, roomID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	events, cancel := h.hub.Subscribe(roomID)
	defer cancel()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: string(event.Type), Payload: event.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage{Type: "state", Payload: state}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		result, err := h.dispatch(ctx, userID, roomID, inbound)
		if err != nil {
			send <- outboundMessage{Type: "error", Command: inbound.Type, Payload: errorPayload{Message: err.Error()}}
			continue
		}
		send <- outboundMessage{Type: "reply", Command: inbound.Type, Payload: result}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, userID, roomID string, in inboundMessage) (any, error) {
	switch in.Type {
	case "state":
		return h.service.Room(ctx, roomID)
	case "join":
		var p joinPayload
		if len(in.Payload) > 0 {
			if err := decode(in.Payload, &p); err != nil {
				return nil, err
			}
		}
		return h.service.JoinRoom(ctx, userID, roomID, p.Password)
	case "leave":
		return nil, h.service.LeaveRoom(ctx, userID, roomID)
	case "kick":
		var p slotPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return h.service.Kick(ctx, userID, roomID, p.SlotIndex)
	case "set_slot":
		var p slotPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return h.service.SetSlotType(ctx, userID, roomID, p.SlotIndex, p.SlotType)
	case "start":
		return h.service.StartGame(ctx, userID, roomID)
	case "next":
		return h.service.NextQuestion(ctx, userID, roomID)
	case "answer":
		var p answerPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return h.service.SubmitAnswer(ctx, userID, roomID, p.OptionID)
	case "bots":
		return h.service.SimulateBotAnswers(ctx, userID, roomID)
	case "question_results":
		return h.service.QuestionResults(ctx, userID, roomID)
	case "finish":
		return h.service.FinishGame(ctx, userID, roomID)
	case "results":
		return h.service.GameResults(ctx, roomID)
	default:
		return nil, errUnsupported
	}
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errBadPayload
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errBadPayload
	}
	return nil
}
