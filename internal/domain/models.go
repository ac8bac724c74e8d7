package domain

import "time"

// SlotCount is the fixed number of seats in every battle room.
const SlotCount = 4

// HostSlotIndex is the seat that always belongs to the room host.
const HostSlotIndex = 0

// AllowedTimeLimits lists the per-question time limits (seconds) a room may use.
var AllowedTimeLimits = []int{10, 15, 20, 30}

// AllowedQuestionCounts lists the question counts a room may use.
var AllowedQuestionCounts = []int{5, 10, 15, 20}

type RoomStatus string

const (
	RoomStatusWaiting  RoomStatus = "waiting"
	RoomStatusInGame   RoomStatus = "in_game"
	RoomStatusFinished RoomStatus = "finished"
)

// Active reports whether the room still holds its participants.
func (s RoomStatus) Active() bool {
	return s == RoomStatusWaiting || s == RoomStatusInGame
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type SlotType string

const (
	SlotTypePlayer SlotType = "player"
	SlotTypeBot    SlotType = "bot"
	SlotTypeEmpty  SlotType = "empty"
	SlotTypeLocked SlotType = "locked"
)

// Room is a single battle session.
type Room struct {
	ID                       int64      `json:"-"`
	PublicID                 string     `json:"id"`
	HostID                   string     `json:"hostId"`
	Name                     string     `json:"name"`
	Visibility               Visibility `json:"visibility"`
	PasswordHash             string     `json:"-"`
	TimeLimitSeconds         int        `json:"timeLimitSeconds"`
	QuestionCount            int        `json:"questionCount"`
	StudySetID               int64      `json:"studySetId"`
	Status                   RoomStatus `json:"status"`
	CurrentQuestionIndex     *int       `json:"currentQuestionIndex"`
	CurrentQuestionStartedAt *time.Time `json:"currentQuestionStartedAt"`
	QuestionIDs              []int64    `json:"questionIds"`
	CreatedAt                time.Time  `json:"createdAt"`
}

// QuestionActive reports whether a question is currently running.
func (r Room) QuestionActive() bool {
	return r.Status == RoomStatusInGame && r.CurrentQuestionIndex != nil && r.CurrentQuestionStartedAt != nil
}

// Slot is one of the four seats of a room.
type Slot struct {
	ID      int64    `json:"-"`
	RoomID  int64    `json:"-"`
	Index   int      `json:"index"`
	Type    SlotType `json:"type"`
	UserID  *string  `json:"userId"`
	BotName *string  `json:"botName"`
}

// AsPlayer binds the slot to a participant.
func (s *Slot) AsPlayer(userID string) {
	s.Type = SlotTypePlayer
	s.UserID = &userID
	s.BotName = nil
}

// AsBot binds the slot to a generated bot name.
func (s *Slot) AsBot(name string) {
	s.Type = SlotTypeBot
	s.UserID = nil
	s.BotName = &name
}

// Clear turns the slot into an unbound empty or locked seat.
func (s *Slot) Clear(t SlotType) {
	s.Type = t
	s.UserID = nil
	s.BotName = nil
}

// HeldBy reports whether the slot is a player seat owned by userID.
func (s Slot) HeldBy(userID string) bool {
	return s.Type == SlotTypePlayer && s.UserID != nil && *s.UserID == userID
}

// DisplayName is the user id for players and the generated name for bots.
func (s Slot) DisplayName() string {
	switch {
	case s.UserID != nil:
		return *s.UserID
	case s.BotName != nil:
		return *s.BotName
	}
	return ""
}

// Answer is one recorded response by one slot to one question.
type Answer struct {
	ID               int64     `json:"id"`
	RoomID           int64     `json:"roomId"`
	SlotID           int64     `json:"slotId"`
	QuestionID       int64     `json:"questionId"`
	QuestionIndex    int       `json:"questionIndex"`
	SelectedOptionID int64     `json:"selectedOptionId"`
	IsCorrect        bool      `json:"isCorrect"`
	AnsweredAt       time.Time `json:"answeredAt"`
	Score            int       `json:"score"`
}

// Option represents a possible answer for a question.
type Option struct {
	ID          int64  `json:"id"`
	Text        string `json:"text"`
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation,omitempty"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID         int64    `json:"id"`
	StudySetID int64    `json:"studySetId"`
	Text       string   `json:"text"`
	Options    []Option `json:"options"`
}

// CorrectOption returns the option flagged as correct.
func (q Question) CorrectOption() (Option, bool) {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt, true
		}
	}
	return Option{}, false
}

// FindOption looks up an option of this question by id.
func (q Question) FindOption(id int64) (Option, bool) {
	for _, opt := range q.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// StudySet is the question pool a room draws from.
type StudySet struct {
	ID      int64  `json:"id"`
	OwnerID string `json:"ownerId"`
	Title   string `json:"title"`
}

// Standing is one ranked row of a leaderboard.
type Standing struct {
	SlotID         int64 `json:"slotId"`
	Rank           int   `json:"rank"`
	TotalScore     int   `json:"totalScore"`
	CorrectCount   int   `json:"correctCount"`
	TotalQuestions int   `json:"totalQuestions"`
}
