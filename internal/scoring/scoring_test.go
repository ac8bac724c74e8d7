package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"quiz-battle-service/internal/domain"
)

func TestScoreIncorrectIsZero(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, elapsed := range []time.Duration{0, 2 * time.Second, time.Minute} {
		require.Zero(t, Score(false, start, start.Add(elapsed), 15))
	}
}

func TestScoreBounds(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.Equal(t, MaxPoints, Score(true, start, start, 15))
	require.Equal(t, MaxPoints, Score(true, start, start.Add(-time.Second), 15), "clock skew clamps to zero elapsed")
	require.Equal(t, MinPoints, Score(true, start, start.Add(15*time.Second), 15))
	require.Equal(t, MinPoints, Score(true, start, start.Add(90*time.Second), 15), "late answers keep the floor")
	require.Equal(t, 550, Score(true, start, start.Add(5*time.Second), 10))
}

func TestScoreMonotonic(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, limit := range domain.AllowedTimeLimits {
		prev := Score(true, start, start, limit)
		for ms := 0; ms <= (limit+2)*1000; ms += 37 {
			got := Score(true, start, start.Add(time.Duration(ms)*time.Millisecond), limit)
			require.LessOrEqual(t, got, prev, "limit=%d ms=%d", limit, ms)
			require.Greater(t, got, 0)
			prev = got
		}
	}
}

func TestScoreWithVeryLongLimits(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.Equal(t, 612, Score(true, start, start.Add(2400*time.Hour), 20_000_000))
	require.Equal(t, 223, Score(true, start, start.Add(4800*time.Hour), 20_000_000))

	prev := MaxPoints
	for _, elapsed := range []time.Duration{time.Hour, 1000 * time.Hour, 100_000 * time.Hour, 2_000_000 * time.Hour} {
		got := Score(true, start, start.Add(elapsed), math.MaxInt)
		require.LessOrEqual(t, got, prev, "elapsed=%v", elapsed)
		require.GreaterOrEqual(t, got, MinPoints)
		prev = got
	}
}

func TestRankOrdersByTotal(t *testing.T) {
	answers := []domain.Answer{
		{SlotID: 2, Score: 500, IsCorrect: true},
		{SlotID: 1, Score: 900, IsCorrect: true},
		{SlotID: 2, Score: 0, IsCorrect: false},
		{SlotID: 1, Score: 500, IsCorrect: true},
	}

	got := Rank(answers)
	require.Len(t, got, 2)
	require.Equal(t, domain.Standing{SlotID: 1, Rank: 1, TotalScore: 1400, CorrectCount: 2, TotalQuestions: 2}, got[0])
	require.Equal(t, domain.Standing{SlotID: 2, Rank: 2, TotalScore: 500, CorrectCount: 1, TotalQuestions: 2}, got[1])
}

func TestRankTiesKeepInputOrder(t *testing.T) {
	answers := []domain.Answer{
		{SlotID: 7, Score: 300},
		{SlotID: 3, Score: 300},
		{SlotID: 5, Score: 100},
	}

	got := Rank(answers)
	require.Equal(t, []int64{7, 3, 5}, []int64{got[0].SlotID, got[1].SlotID, got[2].SlotID})
	require.Equal(t, []int{1, 2, 3}, []int{got[0].Rank, got[1].Rank, got[2].Rank})
}

func TestRankEmpty(t *testing.T) {
	require.Empty(t, Rank(nil))
}
