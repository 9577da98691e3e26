package enrich

import (
	"math/rand/v2"
	"sync"
)

// Countries is the fixed list RandomResolver picks from.
var Countries = []string{
	"United States", "United Kingdom", "Canada", "Germany", "France",
	"Australia", "Japan", "Brazil", "India", "China",
}

// RandomResolver assigns a uniformly random country regardless of the
// address. It is safe for concurrent use.
type RandomResolver struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomResolver returns a resolver whose sequence is fixed by seed.
func NewRandomResolver(seed uint64) *RandomResolver {
	return &RandomResolver{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *RandomResolver) Resolve(string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Countries[r.rng.IntN(len(Countries))]
}
