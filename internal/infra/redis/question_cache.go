package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/infra/memory"
)

// QuestionCache caches question content in Redis and falls back to a loader on
// cache miss. Each question is stored as JSON under battle:question:{id}, so
// every instance serving a battle shares one warm copy.
type QuestionCache struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	logger *slog.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: slog.Default(),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
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
	if len(ids) == 0 {
		return nil, nil
	}
	found, missing, err := c.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	if len(missing) > 0 {
		result, err, _ := c.sf.Do(flightKey(missing), func() (interface{}, error) {
			// Re-check cache in case another goroutine filled it.
			cached, stillMissing, err := c.lookup(ctx, missing)
			if err != nil {
				return nil, err
			}
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
			c.store(ctx, fresh)
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

func (c *QuestionCache) lookup(ctx context.Context, ids []int64) (map[int64]domain.Question, []int64, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = questionKey(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("mget questions: %w", err)
	}

	found := make(map[int64]domain.Question, len(ids))
	var missing []int64
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			c.logger.Warn("discarding corrupt cached question", "id", ids[i], "err", err)
			missing = append(missing, ids[i])
			continue
		}
		found[ids[i]] = q
	}
	return found, missing, nil
}

// store is best effort; the loaded questions are served even if caching fails.
func (c *QuestionCache) store(ctx context.Context, questions []domain.Question) {
	if len(questions) == 0 {
		return
	}
	pipe := c.client.Pipeline()
	for _, q := range questions {
		raw, err := json.Marshal(q)
		if err != nil {
			continue
		}
		pipe.Set(ctx, questionKey(q.ID), raw, c.ttlWithJitter())
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("cache questions", "count", len(questions), "err", err)
	}
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func questionKey(id int64) string {
	return "battle:question:" + strconv.FormatInt(id, 10)
}

func flightKey(ids []int64) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
