package memory

import (
	"context"
	"math/rand"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"quiz-battle-service/internal/domain"
)

// QuestionLoader fetches question content from a backing store (e.g., Postgres).
// Ids that do not exist are simply absent from the result.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, ids []int64) ([]domain.Question, error)
}

// QuestionCache caches questions with TTL to avoid repeated DB hits while a
// battle runs through its drawn set.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[int64]cachedQuestion
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int64]cachedQuestion),
	}
}

func (c *QuestionCache) FindByID(ctx context.Context, id int64) (domain.Question, error) {
	questions, err := c.FindByIDs(ctx, []int64{id})
	if err != nil {
		return domain.Question{}, err
	}
	if len(questions) == 0 {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return questions[0], nil
}

// FindByIDs returns the questions in the order of ids, skipping unknown ids.
func (c *QuestionCache) FindByIDs(ctx context.Context, ids []int64) ([]domain.Question, error) {
	found, missing := c.lookup(ids)
	if len(missing) > 0 {
		result, err, _ := c.sf.Do(flightKey(missing), func() (interface{}, error) {
			// Re-check cache in case another goroutine filled it.
			cached, stillMissing := c.lookup(missing)
			loaded := make([]domain.Question, 0, len(missing))
			for _, q := range cached {
				loaded = append(loaded, q)
			}
			if len(stillMissing) == 0 {
				return loaded, nil
			}
			fresh, err := c.loader.LoadQuestions(ctx, stillMissing)
			if err != nil {
				return nil, err
			}
			c.store(fresh)
			return append(loaded, fresh...), nil
		})
		if err != nil {
			return nil, err
		}
		for _, q := range result.([]domain.Question) {
			found[q.ID] = q
		}
	}

	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := found[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (c *QuestionCache) lookup(ids []int64) (map[int64]domain.Question, []int64) {
	now := c.clock()
	found := make(map[int64]domain.Question, len(ids))
	var missing []int64

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range ids {
		if entry, ok := c.cache[id]; ok && entry.expiresAt.After(now) {
			found[id] = entry.question
			continue
		}
		missing = append(missing, id)
	}
	return found, missing
}

func (c *QuestionCache) store(questions []domain.Question) {
	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range questions {
		c.cache[q.ID] = cachedQuestion{
			question:  q,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
	}
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// flightKey identifies a batch of ids independent of their order.
func flightKey(ids []int64) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
