package domain

import "time"

type EventType string

const (
	EventRoomUpdated     EventType = "room.updated"
	EventRoomClosed      EventType = "room.closed"
	EventGameStarted     EventType = "game.started"
	EventQuestionStarted EventType = "question.started"
	EventAnswerRecorded  EventType = "answer.recorded"
	EventGameFinished    EventType = "game.finished"
)

// Event notifies room subscribers that something changed. Payloads never carry
// option correctness for a running question.
type Event struct {
	Type       EventType `json:"type"`
	RoomID     string    `json:"roomId"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
