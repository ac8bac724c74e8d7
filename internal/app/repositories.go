package app

import (
	"context"

	"quiz-battle-service/internal/bot"
	"quiz-battle-service/internal/domain"
)

// RoomRepository stores battle rooms. Lookups return domain.ErrRoomNotFound when nothing matches.
// Delete cascades to the room's slots and answers.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	FindByID(ctx context.Context, id int64) (domain.Room, error)
	FindByPublicID(ctx context.Context, publicID string) (domain.Room, error)
	FindByStatus(ctx context.Context, status domain.RoomStatus) ([]domain.Room, error)
	FindByHost(ctx context.Context, hostID string) ([]domain.Room, error)
	Update(ctx context.Context, room domain.Room) error
	Delete(ctx context.Context, id int64) error
}

// SlotRepository stores the four seats of each room.
// FindByUser returns domain.ErrSlotNotFound when the user holds no seat; Update
// returns domain.ErrSeatTaken when the user id is already bound elsewhere.
type SlotRepository interface {
	CreateBatch(ctx context.Context, slots []domain.Slot) ([]domain.Slot, error)
	FindByRoom(ctx context.Context, roomID int64) ([]domain.Slot, error)
	FindByUser(ctx context.Context, userID string) (domain.Slot, error)
	Update(ctx context.Context, slot domain.Slot) error
	DeleteByRoom(ctx context.Context, roomID int64) error
}

// AnswerRepository stores answers. Create must return domain.ErrDuplicateAnswer
// when an answer for the same (room, slot, question index) exists.
type AnswerRepository interface {
	Create(ctx context.Context, answer *domain.Answer) error
	FindByRoom(ctx context.Context, roomID int64) ([]domain.Answer, error)
	FindByRoomAndQuestionIndex(ctx context.Context, roomID int64, questionIndex int) ([]domain.Answer, error)
	CountByRoomAndQuestionIndex(ctx context.Context, roomID int64, questionIndex int) (int, error)
}

// QuestionRepository loads question content (from cache/backing store).
type QuestionRepository interface {
	FindByID(ctx context.Context, id int64) (domain.Question, error)
	FindByIDs(ctx context.Context, ids []int64) ([]domain.Question, error)
}

// StudySetRepository exposes the question pools rooms draw from.
type StudySetRepository interface {
	FindStudySet(ctx context.Context, id int64) (domain.StudySet, error)
	CountEligibleQuestions(ctx context.Context, studySetID int64) (int, error)
	EligibleQuestionIDs(ctx context.Context, studySetID int64) ([]int64, error)
}

// PasswordHasher is the room password gate.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// NameGenerator produces display names for bot seats.
type NameGenerator interface {
	Generate() string
}

// BotSimulator decides how a bot answers a question.
type BotSimulator interface {
	Simulate(options []domain.Option, timeLimitSeconds int) bot.Choice
}

// EventPublisher delivers room events to interested parties.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
