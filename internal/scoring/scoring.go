// Package scoring computes time-decayed answer scores and leaderboards.
// Everything here is pure: callers pass the instants in.
package scoring

import (
	"math"
	"sort"
	"time"

	"quiz-battle-service/internal/domain"
)

const (
	// MaxPoints is awarded for a correct answer given the instant the question opened.
	MaxPoints = 1000
	// MinPoints is the floor for a correct answer at or past the time limit.
	MinPoints = 100
)

// Score returns the points for one answer. Incorrect answers score 0; correct
// answers decay linearly from MaxPoints to MinPoints over the time limit.
func Score(isCorrect bool, startedAt, answeredAt time.Time, timeLimitSeconds int) int {
	if !isCorrect {
		return 0
	}
	if timeLimitSeconds <= 0 {
		return MinPoints
	}
	limitMs := int64(math.MaxInt64)
	if int64(timeLimitSeconds) < math.MaxInt64/1000 {
		limitMs = int64(timeLimitSeconds) * 1000
	}
	elapsedMs := answeredAt.Sub(startedAt).Milliseconds()
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	if elapsedMs >= limitMs {
		return MinPoints
	}
	// elapsedMs is bounded by time.Duration, so the product fits in int64.
	span := int64(MaxPoints - MinPoints)
	decay := span * elapsedMs / limitMs
	return MaxPoints - int(decay)
}

// Rank groups answers by slot and orders the slots by total score.
// Slots keep the order of their first answer when totals tie.
func Rank(answers []domain.Answer) []domain.Standing {
	index := make(map[int64]int)
	standings := make([]domain.Standing, 0)
	for _, a := range answers {
		i, ok := index[a.SlotID]
		if !ok {
			i = len(standings)
			index[a.SlotID] = i
			standings = append(standings, domain.Standing{SlotID: a.SlotID})
		}
		st := &standings[i]
		st.TotalScore += a.Score
		st.TotalQuestions++
		if a.IsCorrect {
			st.CorrectCount++
		}
	}

	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].TotalScore > standings[j].TotalScore
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}
