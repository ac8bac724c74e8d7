package memory

import (
	"context"

	"quiz-battle-service/internal/domain"
)

// StaticQuestionBank is a simple question source backed by in-memory data
// (useful for tests/demos). It serves both question content and study sets.
type StaticQuestionBank struct {
	sets      map[int64]domain.StudySet
	questions map[int64]domain.Question
	order     []int64
}

func NewStaticQuestionBank(sets []domain.StudySet, questions []domain.Question) *StaticQuestionBank {
	b := &StaticQuestionBank{
		sets:      make(map[int64]domain.StudySet, len(sets)),
		questions: make(map[int64]domain.Question, len(questions)),
	}
	for _, set := range sets {
		b.sets[set.ID] = set
	}
	for _, q := range questions {
		b.questions[q.ID] = q
		b.order = append(b.order, q.ID)
	}
	return b
}

func (b *StaticQuestionBank) LoadQuestions(_ context.Context, ids []int64) ([]domain.Question, error) {
	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := b.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (b *StaticQuestionBank) FindStudySet(_ context.Context, id int64) (domain.StudySet, error) {
	set, ok := b.sets[id]
	if !ok {
		return domain.StudySet{}, domain.ErrStudySetNotFound
	}
	return set, nil
}

func (b *StaticQuestionBank) CountEligibleQuestions(ctx context.Context, studySetID int64) (int, error) {
	ids, err := b.EligibleQuestionIDs(ctx, studySetID)
	return len(ids), err
}

// EligibleQuestionIDs lists multiple-choice questions: at least two options
// and exactly one correct.
func (b *StaticQuestionBank) EligibleQuestionIDs(_ context.Context, studySetID int64) ([]int64, error) {
	var ids []int64
	for _, id := range b.order {
		q := b.questions[id]
		if q.StudySetID == studySetID && eligible(q) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func eligible(q domain.Question) bool {
	if len(q.Options) < 2 {
		return false
	}
	correct := 0
	for _, opt := range q.Options {
		if opt.Correct {
			correct++
		}
	}
	return correct == 1
}
