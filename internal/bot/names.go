package bot

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	adjectives = []string{
		"Swift", "Clever", "Curious", "Brave", "Sleepy", "Lucky", "Quiet", "Witty",
		"Bold", "Calm", "Eager", "Jolly", "Mighty", "Nimble", "Sharp", "Sunny",
	}
	nouns = []string{
		"Otter", "Falcon", "Panda", "Fox", "Badger", "Owl", "Koala", "Lynx",
		"Heron", "Moose", "Gecko", "Wombat", "Raven", "Tiger", "Walrus", "Yak",
	}
)

// NameGenerator hands out display names such as "CleverOtter42".
type NameGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewNameGenerator(rnd *rand.Rand) *NameGenerator {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &NameGenerator{rnd: rnd}
}

func (g *NameGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("%s%s%d",
		adjectives[g.rnd.Intn(len(adjectives))],
		nouns[g.rnd.Intn(len(nouns))],
		g.rnd.Intn(90)+10,
	)
}
