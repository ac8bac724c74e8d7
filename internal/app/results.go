package app

import (
	"context"
	"fmt"
	"slices"

	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/scoring"
)

// SlotAnswer is one seat's answer to the active question.
type SlotAnswer struct {
	SlotIndex        int    `json:"slotIndex"`
	DisplayName      string `json:"displayName"`
	IsBot            bool   `json:"isBot"`
	SelectedOptionID int64  `json:"selectedOptionId"`
	IsCorrect        bool   `json:"isCorrect"`
	Score            int    `json:"score"`
}

// QuestionResult reveals the correct option once a question is being reviewed.
type QuestionResult struct {
	QuestionIndex   int          `json:"questionIndex"`
	QuestionID      int64        `json:"questionId"`
	CorrectOptionID int64        `json:"correctOptionId"`
	Explanation     string       `json:"explanation,omitempty"`
	AnsweredCount   int          `json:"answeredCount"`
	Answers         []SlotAnswer `json:"answers"`
}

// SlotStanding is a leaderboard row joined with the seat's identity.
type SlotStanding struct {
	domain.Standing
	SlotIndex int     `json:"slotIndex"`
	UserID    *string `json:"userId"`
	BotName   *string `json:"botName"`
}

// QuestionResults returns the correct option and every seat's answer for the
// active question.
func (s *BattleService) QuestionResults(ctx context.Context, userID, roomPublicID string) (QuestionResult, error) {
	state, err := s.loadState(ctx, roomPublicID)
	if err != nil {
		return QuestionResult{}, err
	}
	room := state.Room
	question, idx, err := s.activeQuestion(ctx, room)
	if err != nil {
		return QuestionResult{}, err
	}
	if _, ok := seatOf(state.Slots, userID); !ok {
		return QuestionResult{}, domain.ErrNotParticipant
	}

	answers, err := s.answers.FindByRoomAndQuestionIndex(ctx, room.ID, idx)
	if err != nil {
		return QuestionResult{}, fmt.Errorf("find answers: %w", err)
	}
	count, err := s.answers.CountByRoomAndQuestionIndex(ctx, room.ID, idx)
	if err != nil {
		return QuestionResult{}, fmt.Errorf("count answers: %w", err)
	}

	byID := slotsByID(state.Slots)
	result := QuestionResult{
		QuestionIndex: idx,
		QuestionID:    question.ID,
		AnsweredCount: count,
		Answers:       make([]SlotAnswer, 0, len(answers)),
	}
	if correct, ok := question.CorrectOption(); ok {
		result.CorrectOptionID = correct.ID
		result.Explanation = correct.Explanation
	}
	for _, a := range answers {
		slot, ok := byID[a.SlotID]
		if !ok {
			continue
		}
		result.Answers = append(result.Answers, SlotAnswer{
			SlotIndex:        slot.Index,
			DisplayName:      slot.DisplayName(),
			IsBot:            slot.Type == domain.SlotTypeBot,
			SelectedOptionID: a.SelectedOptionID,
			IsCorrect:        a.IsCorrect,
			Score:            a.Score,
		})
	}
	slices.SortFunc(result.Answers, func(a, b SlotAnswer) int { return a.SlotIndex - b.SlotIndex })
	return result, nil
}

// GameResults ranks the seats of a finished room.
func (s *BattleService) GameResults(ctx context.Context, roomPublicID string) ([]SlotStanding, error) {
	state, err := s.loadState(ctx, roomPublicID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(state.Room, domain.RoomStatusFinished); err != nil {
		return nil, err
	}
	return s.standings(ctx, state.Room, state.Slots)
}

// standings ranks a room's answers. Answers are ordered by seat first so
// equal totals resolve by slot index.
func (s *BattleService) standings(ctx context.Context, room domain.Room, slots []domain.Slot) ([]SlotStanding, error) {
	answers, err := s.answers.FindByRoom(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("find answers: %w", err)
	}
	byID := slotsByID(slots)
	ordered := make([]domain.Answer, 0, len(answers))
	for _, a := range answers {
		if _, ok := byID[a.SlotID]; ok {
			ordered = append(ordered, a)
		}
	}
	slices.SortStableFunc(ordered, func(a, b domain.Answer) int {
		return byID[a.SlotID].Index - byID[b.SlotID].Index
	})

	ranked := scoring.Rank(ordered)
	out := make([]SlotStanding, 0, len(ranked))
	for _, st := range ranked {
		slot := byID[st.SlotID]
		out = append(out, SlotStanding{
			Standing:  st,
			SlotIndex: slot.Index,
			UserID:    slot.UserID,
			BotName:   slot.BotName,
		})
	}
	return out, nil
}

func slotsByID(slots []domain.Slot) map[int64]domain.Slot {
	byID := make(map[int64]domain.Slot, len(slots))
	for _, slot := range slots {
		byID[slot.ID] = slot
	}
	return byID
}
