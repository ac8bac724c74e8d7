package domain

import "errors"

// Validation.
var (
	ErrInvalidName          = errors.New("room name is required")
	ErrInvalidTimeLimit     = errors.New("invalid time limit")
	ErrInvalidQuestionCount = errors.New("invalid question count")
	ErrInvalidVisibility    = errors.New("invalid visibility")
	ErrPasswordRequired     = errors.New("password is required for private rooms")
	ErrInvalidSlotType      = errors.New("invalid slot type")
)

// Not found.
var (
	// ErrRoomNotFound is returned when a battle room does not exist (or was deleted).
	ErrRoomNotFound = errors.New("battle room not found")
	// ErrSlotNotFound indicates a seat lookup matched nothing.
	ErrSlotNotFound = errors.New("slot not found")
	// ErrQuestionNotFound indicates the question content could not be loaded.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrStudySetNotFound indicates the question pool does not exist.
	ErrStudySetNotFound = errors.New("study set not found")
)

// Authorization.
var (
	ErrNotHost           = errors.New("only the host can perform this action")
	ErrNotParticipant    = errors.New("user is not a participant of this battle room")
	ErrNotStudySetOwner  = errors.New("study set does not belong to user")
	ErrIncorrectPassword = errors.New("Incorrect password")
)

// State conflicts.
var (
	ErrAlreadyInRoom       = errors.New("user already in a battle room")
	ErrRoomNotWaiting      = errors.New("battle room is not waiting for players")
	ErrRoomNotInGame       = errors.New("battle room is not in game")
	ErrGameNotFinished     = errors.New("battle has not finished")
	ErrRoomFull            = errors.New("room is full")
	ErrInvalidSlot         = errors.New("invalid slot index")
	ErrCannotKickSelf      = errors.New("cannot kick yourself")
	ErrCannotModifyHost    = errors.New("cannot modify the host slot")
	ErrSlotNotPlayer       = errors.New("slot does not contain a player")
	ErrSlotOccupied        = errors.New("slot is occupied by a player")
	ErrNoMoreQuestions     = errors.New("no more questions")
	ErrNoActiveQuestion    = errors.New("no active question")
	ErrInvalidOption       = errors.New("invalid option")
	ErrQuestionSetNotDrawn = errors.New("question set has not been drawn")
)

// Concurrency conflicts.
var (
	// ErrAlreadyAnswered is the user-facing outcome of a duplicate submission.
	ErrAlreadyAnswered = errors.New("already answered this question")
	// ErrDuplicateAnswer is raised by answer stores when the (room, slot, question index) key exists.
	ErrDuplicateAnswer = errors.New("answer already recorded")
	// ErrSeatTaken is raised by slot stores when a user id is already bound to another seat.
	ErrSeatTaken = errors.New("user already holds a seat")
)

// Capacity.
var (
	ErrNotEnoughQuestions = errors.New("not enough questions available")
)
