package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"quiz-battle-service/internal/domain"
)

// AnswerLedger stores battle answers in Redis so every instance sees the same
// submissions. Answers live in one hash per room:
//
//	HSETNX battle:room:{roomID}:answers {slotID}:{questionIndex} <answer json>
//
// HSETNX makes the (room, slot, question index) key unique across instances.
// Room and slot ids must come from a store shared by every instance; a room id
// handed out again must be cleared with DeleteByRoom before use.
type AnswerLedger struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewAnswerLedger(client *redis.Client, ttl time.Duration) *AnswerLedger {
	return &AnswerLedger{client: client, ttl: ttl, logger: slog.Default()}
}

func (l *AnswerLedger) Create(ctx context.Context, answer *domain.Answer) error {
	id, err := l.client.Incr(ctx, answerSeqKey).Result()
	if err != nil {
		return fmt.Errorf("next answer id: %w", err)
	}
	stored := *answer
	stored.ID = id
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	key := l.key(answer.RoomID)
	var setCmd, expireCmd *redis.BoolCmd
	// HSETNX and EXPIRE share a transaction so a stored answer never lands in
	// a hash without a ttl. Only the HSETNX outcome decides success.
	_, _ = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setCmd = pipe.HSetNX(ctx, key, answerField(answer.SlotID, answer.QuestionIndex), raw)
		if l.ttl > 0 {
			expireCmd = pipe.Expire(ctx, key, l.ttl)
		}
		return nil
	})
	if err := setCmd.Err(); err != nil {
		return fmt.Errorf("store answer: %w", err)
	}
	if expireCmd != nil && expireCmd.Err() != nil {
		l.logger.Warn("answer ledger ttl not set", "key", key, "err", expireCmd.Err())
	}
	if !setCmd.Val() {
		return domain.ErrDuplicateAnswer
	}
	answer.ID = id
	return nil
}

// FindByRoom returns the room's answers in submission order.
func (l *AnswerLedger) FindByRoom(ctx context.Context, roomID int64) ([]domain.Answer, error) {
	fields, err := l.client.HGetAll(ctx, l.key(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	out := make([]domain.Answer, 0, len(fields))
	for field, raw := range fields {
		var a domain.Answer
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("decode answer %s: %w", field, err)
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b domain.Answer) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

func (l *AnswerLedger) FindByRoomAndQuestionIndex(ctx context.Context, roomID int64, questionIndex int) ([]domain.Answer, error) {
	all, err := l.FindByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if a.QuestionIndex == questionIndex {
			out = append(out, a)
		}
	}
	return out, nil
}

func (l *AnswerLedger) CountByRoomAndQuestionIndex(ctx context.Context, roomID int64, questionIndex int) (int, error) {
	answers, err := l.FindByRoomAndQuestionIndex(ctx, roomID, questionIndex)
	return len(answers), err
}

// DeleteByRoom drops every answer of a room.
func (l *AnswerLedger) DeleteByRoom(ctx context.Context, roomID int64) error {
	return l.client.Del(ctx, l.key(roomID)).Err()
}

func (l *AnswerLedger) key(roomID int64) string {
	return "battle:room:" + strconv.FormatInt(roomID, 10) + ":answers"
}

const answerSeqKey = "battle:answers:seq"

func answerField(slotID int64, questionIndex int) string {
	return strconv.FormatInt(slotID, 10) + ":" + strconv.Itoa(questionIndex)
}
