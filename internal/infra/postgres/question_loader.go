package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-battle-service/internal/domain"
)

// eligibleQuestionsSQL selects multiple-choice questions with at least two
// options and exactly one correct option.
const eligibleQuestionsSQL = `
SELECT q.id
FROM questions q
JOIN question_options o ON o.question_id = q.id
WHERE q.study_set_id = $1 AND q.type = 'multiple_choice'
GROUP BY q.id
HAVING COUNT(*) >= 2 AND COUNT(*) FILTER (WHERE o.is_correct) = 1
ORDER BY q.id`

// QuestionLoader reads study sets and question content from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

// LoadQuestions returns the questions with their options ordered by position.
// Unknown ids are absent from the result.
func (l *QuestionLoader) LoadQuestions(ctx context.Context, ids []int64) ([]domain.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := l.pool.Query(ctx, `
SELECT q.id, q.study_set_id, q.text, o.id, o.text, o.is_correct, o.explanation
FROM questions q
JOIN question_options o ON o.question_id = q.id
WHERE q.id = ANY($1)
ORDER BY q.id, o.position, o.id`, ids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var (
			q   domain.Question
			opt domain.Option
		)
		if err := rows.Scan(&q.ID, &q.StudySetID, &q.Text, &opt.ID, &opt.Text, &opt.Correct, &opt.Explanation); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if n := len(out); n > 0 && out[n-1].ID == q.ID {
			out[n-1].Options = append(out[n-1].Options, opt)
			continue
		}
		q.Options = []domain.Option{opt}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return out, nil
}

func (l *QuestionLoader) FindStudySet(ctx context.Context, id int64) (domain.StudySet, error) {
	var set domain.StudySet
	err := l.pool.QueryRow(ctx, `SELECT id, owner_id, title FROM study_sets WHERE id=$1`, id).
		Scan(&set.ID, &set.OwnerID, &set.Title)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StudySet{}, domain.ErrStudySetNotFound
	}
	if err != nil {
		return domain.StudySet{}, fmt.Errorf("load study set: %w", err)
	}
	return set, nil
}

func (l *QuestionLoader) CountEligibleQuestions(ctx context.Context, studySetID int64) (int, error) {
	var n int
	err := l.pool.QueryRow(ctx, `SELECT COUNT(*) FROM (`+eligibleQuestionsSQL+`) eligible`, studySetID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

func (l *QuestionLoader) EligibleQuestionIDs(ctx context.Context, studySetID int64) ([]int64, error) {
	rows, err := l.pool.Query(ctx, eligibleQuestionsSQL, studySetID)
	if err != nil {
		return nil, fmt.Errorf("eligible questions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
