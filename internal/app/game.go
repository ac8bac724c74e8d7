package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quiz-battle-service/internal/domain"
)

// OptionView is an option as shown while the question runs: no correctness.
type OptionView struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// QuestionView is the active question as broadcast to every seat.
type QuestionView struct {
	Index            int          `json:"index"`
	Total            int          `json:"total"`
	QuestionID       int64        `json:"questionId"`
	Text             string       `json:"text"`
	Options          []OptionView `json:"options"`
	StartedAt        time.Time    `json:"startedAt"`
	TimeLimitSeconds int          `json:"timeLimitSeconds"`
}

// FinishResult is the terminal snapshot of a room with its final leaderboard.
type FinishResult struct {
	Room      domain.Room    `json:"room"`
	Standings []SlotStanding `json:"standings"`
}

// StartGame draws the question set and moves a waiting room into the game.
func (s *BattleService) StartGame(ctx context.Context, hostID, roomPublicID string) (domain.Room, error) {
	room, err := s.loadRoom(ctx, roomPublicID)
	if err != nil {
		return domain.Room{}, err
	}
	if err := requireHost(room, hostID); err != nil {
		return domain.Room{}, err
	}
	if err := requireStatus(room, domain.RoomStatusWaiting); err != nil {
		return domain.Room{}, err
	}

	pool, err := s.studySets.EligibleQuestionIDs(ctx, room.StudySetID)
	if err != nil {
		return domain.Room{}, fmt.Errorf("eligible questions: %w", err)
	}
	if len(pool) < room.QuestionCount {
		return domain.Room{}, domain.ErrNotEnoughQuestions
	}
	drawn := s.draw(pool, room.QuestionCount)

	// Warm the question cache and make sure every drawn id resolves.
	questions, err := s.questions.FindByIDs(ctx, drawn)
	if err != nil {
		return domain.Room{}, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) != len(drawn) {
		return domain.Room{}, domain.ErrQuestionNotFound
	}

	room.Status = domain.RoomStatusInGame
	room.QuestionIDs = drawn
	room.CurrentQuestionIndex = nil
	room.CurrentQuestionStartedAt = nil
	if err := s.rooms.Update(ctx, room); err != nil {
		return domain.Room{}, fmt.Errorf("update room: %w", err)
	}

	s.logger.Info("battle started", "room", room.PublicID, "questions", len(drawn))
	s.publish(ctx, domain.EventGameStarted, room.PublicID, room)
	return room, nil
}

// draw picks n distinct ids uniformly at random without replacement.
func (s *BattleService) draw(pool []int64, n int) []int64 {
	shuffled := make([]int64, len(pool))
	copy(shuffled, pool)
	s.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}

// NextQuestion advances the shared cursor and opens the next question.
func (s *BattleService) NextQuestion(ctx context.Context, hostID, roomPublicID string) (QuestionView, error) {
	room, err := s.loadRoom(ctx, roomPublicID)
	if err != nil {
		return QuestionView{}, err
	}
	if err := requireHost(room, hostID); err != nil {
		return QuestionView{}, err
	}
	if err := requireStatus(room, domain.RoomStatusInGame); err != nil {
		return QuestionView{}, err
	}
	if len(room.QuestionIDs) == 0 {
		return QuestionView{}, domain.ErrQuestionSetNotDrawn
	}

	next := 0
	if room.CurrentQuestionIndex != nil {
		next = *room.CurrentQuestionIndex + 1
	}
	if next >= len(room.QuestionIDs) {
		return QuestionView{}, domain.ErrNoMoreQuestions
	}

	question, err := s.questions.FindByID(ctx, room.QuestionIDs[next])
	if err != nil {
		return QuestionView{}, err
	}

	startedAt := s.now()
	room.CurrentQuestionIndex = &next
	room.CurrentQuestionStartedAt = &startedAt
	if err := s.rooms.Update(ctx, room); err != nil {
		return QuestionView{}, fmt.Errorf("update room: %w", err)
	}

	view := questionView(room, question)
	s.publish(ctx, domain.EventQuestionStarted, room.PublicID, view)
	return view, nil
}

func questionView(room domain.Room, q domain.Question) QuestionView {
	options := make([]OptionView, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, OptionView{ID: opt.ID, Text: opt.Text})
	}
	view := QuestionView{
		Total:            len(room.QuestionIDs),
		QuestionID:       q.ID,
		Text:             q.Text,
		Options:          options,
		TimeLimitSeconds: room.TimeLimitSeconds,
	}
	if room.CurrentQuestionIndex != nil {
		view.Index = *room.CurrentQuestionIndex
	}
	if room.CurrentQuestionStartedAt != nil {
		view.StartedAt = *room.CurrentQuestionStartedAt
	}
	return view
}

// FinishGame ends a running battle and frees every seat. Any seated
// participant may call it so a disconnected host cannot strand the room.
func (s *BattleService) FinishGame(ctx context.Context, userID, roomPublicID string) (FinishResult, error) {
	state, err := s.loadState(ctx, roomPublicID)
	if err != nil {
		return FinishResult{}, err
	}
	room := state.Room
	if _, ok := seatOf(state.Slots, userID); !ok {
		return FinishResult{}, domain.ErrNotParticipant
	}
	if err := requireStatus(room, domain.RoomStatusInGame); err != nil {
		return FinishResult{}, err
	}

	room.CurrentQuestionIndex = nil
	room.CurrentQuestionStartedAt = nil
	room.Status = domain.RoomStatusFinished
	if err := s.rooms.Update(ctx, room); err != nil {
		return FinishResult{}, fmt.Errorf("update room: %w", err)
	}

	standings, err := s.standings(ctx, room, state.Slots)
	if err != nil {
		return FinishResult{}, err
	}

	if err := s.rooms.Delete(ctx, room.ID); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
		return FinishResult{}, fmt.Errorf("delete room: %w", err)
	}

	result := FinishResult{Room: room, Standings: standings}
	s.logger.Info("battle finished", "room", room.PublicID)
	s.publish(ctx, domain.EventGameFinished, room.PublicID, result)
	return result, nil
}
