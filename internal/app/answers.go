package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"quiz-battle-service/internal/bot"
	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/scoring"
)

// SubmitResult is the private feedback for a submitter. It never reveals the
// correct option.
type SubmitResult struct {
	IsCorrect bool `json:"isCorrect"`
	Score     int  `json:"score"`
}

// BotAnswer describes one bot seat that answered in a simulation batch.
type BotAnswer struct {
	SlotIndex        int    `json:"slotIndex"`
	BotName          string `json:"botName"`
	SelectedOptionID int64  `json:"selectedOptionId"`
	IsCorrect        bool   `json:"isCorrect"`
	Score            int    `json:"score"`
	DelayMs          int64  `json:"delayMs"`
}

type answerProgress struct {
	QuestionIndex int `json:"questionIndex"`
	Answered      int `json:"answered"`
}

// activeQuestion resolves the running question of an in-game room.
func (s *BattleService) activeQuestion(ctx context.Context, room domain.Room) (domain.Question, int, error) {
	if err := requireStatus(room, domain.RoomStatusInGame); err != nil {
		return domain.Question{}, 0, err
	}
	if !room.QuestionActive() {
		return domain.Question{}, 0, domain.ErrNoActiveQuestion
	}
	idx := *room.CurrentQuestionIndex
	if idx < 0 || idx >= len(room.QuestionIDs) {
		return domain.Question{}, 0, domain.ErrNoActiveQuestion
	}
	question, err := s.questions.FindByID(ctx, room.QuestionIDs[idx])
	if err != nil {
		return domain.Question{}, 0, err
	}
	return question, idx, nil
}

// SubmitAnswer records userID's answer to the active question.
func (s *BattleService) SubmitAnswer(ctx context.Context, userID, roomPublicID string, optionID int64) (SubmitResult, error) {
	state, err := s.loadState(ctx, roomPublicID)
	if err != nil {
		return SubmitResult{}, err
	}
	room := state.Room
	if err := requireStatus(room, domain.RoomStatusInGame); err != nil {
		return SubmitResult{}, err
	}
	if !room.QuestionActive() {
		return SubmitResult{}, domain.ErrNoActiveQuestion
	}
	seat, ok := seatOf(state.Slots, userID)
	if !ok {
		return SubmitResult{}, domain.ErrNotParticipant
	}
	question, idx, err := s.activeQuestion(ctx, room)
	if err != nil {
		return SubmitResult{}, err
	}
	option, ok := question.FindOption(optionID)
	if !ok {
		return SubmitResult{}, domain.ErrInvalidOption
	}

	answeredAt := s.now()
	answer := domain.Answer{
		RoomID:           room.ID,
		SlotID:           seat.ID,
		QuestionID:       question.ID,
		QuestionIndex:    idx,
		SelectedOptionID: option.ID,
		IsCorrect:        option.Correct,
		AnsweredAt:       answeredAt,
		Score:            scoring.Score(option.Correct, *room.CurrentQuestionStartedAt, answeredAt, room.TimeLimitSeconds),
	}
	if err := s.answers.Create(ctx, &answer); err != nil {
		if errors.Is(err, domain.ErrDuplicateAnswer) {
			return SubmitResult{}, domain.ErrAlreadyAnswered
		}
		return SubmitResult{}, fmt.Errorf("create answer: %w", err)
	}

	s.publishProgress(ctx, room, idx)
	return SubmitResult{IsCorrect: answer.IsCorrect, Score: answer.Score}, nil
}

// SimulateBotAnswers lets every bot seat answer the active question. Bots that
// already answered are skipped, so the call is safe to retry.
func (s *BattleService) SimulateBotAnswers(ctx context.Context, hostID, roomPublicID string) ([]BotAnswer, error) {
	state, err := s.loadState(ctx, roomPublicID)
	if err != nil {
		return nil, err
	}
	room := state.Room
	if err := requireHost(room, hostID); err != nil {
		return nil, err
	}
	question, idx, err := s.activeQuestion(ctx, room)
	if err != nil {
		return nil, err
	}
	startedAt := *room.CurrentQuestionStartedAt

	type pending struct {
		slot   domain.Slot
		choice bot.Choice
	}
	var batch []pending
	for _, slot := range sortedSlots(state.Slots) {
		if slot.Type != domain.SlotTypeBot {
			continue
		}
		batch = append(batch, pending{slot: slot, choice: s.bots.Simulate(question.Options, room.TimeLimitSeconds)})
	}

	var (
		mu       sync.Mutex
		answered []BotAnswer
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range batch {
		p := p
		g.Go(func() error {
			answeredAt := startedAt.Add(time.Duration(p.choice.DelayMs) * time.Millisecond)
			answer := domain.Answer{
				RoomID:           room.ID,
				SlotID:           p.slot.ID,
				QuestionID:       question.ID,
				QuestionIndex:    idx,
				SelectedOptionID: p.choice.OptionID,
				IsCorrect:        p.choice.IsCorrect,
				AnsweredAt:       answeredAt,
				Score:            scoring.Score(p.choice.IsCorrect, startedAt, answeredAt, room.TimeLimitSeconds),
			}
			if err := s.answers.Create(gctx, &answer); err != nil {
				if errors.Is(err, domain.ErrDuplicateAnswer) {
					s.logger.Debug("bot already answered", "room", room.PublicID, "slot", p.slot.Index, "question", idx)
					return nil
				}
				return fmt.Errorf("create bot answer: %w", err)
			}
			mu.Lock()
			answered = append(answered, BotAnswer{
				SlotIndex:        p.slot.Index,
				BotName:          p.slot.DisplayName(),
				SelectedOptionID: answer.SelectedOptionID,
				IsCorrect:        answer.IsCorrect,
				Score:            answer.Score,
				DelayMs:          p.choice.DelayMs,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(answered, func(a, b BotAnswer) int { return a.SlotIndex - b.SlotIndex })
	if len(answered) > 0 {
		s.publishProgress(ctx, room, idx)
	}
	return answered, nil
}

func (s *BattleService) publishProgress(ctx context.Context, room domain.Room, idx int) {
	if s.events == nil {
		return
	}
	count, err := s.answers.CountByRoomAndQuestionIndex(ctx, room.ID, idx)
	if err != nil {
		s.logger.Warn("count answers", "room", room.PublicID, "err", err)
		return
	}
	s.publish(ctx, domain.EventAnswerRecorded, room.PublicID, answerProgress{QuestionIndex: idx, Answered: count})
}
