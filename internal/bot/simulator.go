// Package bot produces synthetic answers and display names for bot seats.
package bot

import (
	"math/rand"
	"sync"
	"time"

	"quiz-battle-service/internal/domain"
)

// DefaultAccuracy is the chance a bot picks the correct option.
const DefaultAccuracy = 0.6

// Choice is one simulated answer.
type Choice struct {
	OptionID  int64 `json:"optionId"`
	IsCorrect bool  `json:"isCorrect"`
	DelayMs   int64 `json:"delayMs"`
}

// Simulator picks options with a bias toward the correct one and a
// human-looking response delay.
type Simulator struct {
	accuracy float64

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimulator(accuracy float64, rnd *rand.Rand) *Simulator {
	if accuracy < 0 || accuracy > 1 {
		accuracy = DefaultAccuracy
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{accuracy: accuracy, rnd: rnd}
}

// Simulate returns a choice among options. DelayMs lies in [0, timeLimitSeconds*1000].
// options must not be empty.
func (s *Simulator) Simulate(options []domain.Option, timeLimitSeconds int) Choice {
	s.mu.Lock()
	defer s.mu.Unlock()

	var correct []domain.Option
	var wrong []domain.Option
	for _, opt := range options {
		if opt.Correct {
			correct = append(correct, opt)
		} else {
			wrong = append(wrong, opt)
		}
	}

	var picked domain.Option
	switch {
	case len(correct) > 0 && (len(wrong) == 0 || s.rnd.Float64() < s.accuracy):
		picked = correct[s.rnd.Intn(len(correct))]
	case len(wrong) > 0:
		picked = wrong[s.rnd.Intn(len(wrong))]
	default:
		return Choice{}
	}

	return Choice{
		OptionID:  picked.ID,
		IsCorrect: picked.Correct,
		DelayMs:   s.delayLocked(timeLimitSeconds),
	}
}

// delayLocked averages two uniform draws between 20% and 90% of the limit,
// which centres responses mid-window while keeping the full range reachable.
func (s *Simulator) delayLocked(timeLimitSeconds int) int64 {
	limitMs := int64(timeLimitSeconds) * 1000
	if limitMs <= 0 {
		return 0
	}
	lo := limitMs / 5
	hi := limitMs * 9 / 10
	span := hi - lo + 1
	d := lo + (s.rnd.Int63n(span)+s.rnd.Int63n(span))/2
	if d > limitMs {
		d = limitMs
	}
	return d
}
