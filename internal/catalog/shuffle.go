package catalog

import "math/rand/v2"

// Shuffle returns a permutation of products determined entirely by seed.
// The input slice is left untouched.
func Shuffle(products []Product, seed int64) []Product {
	out := make([]Product, len(products))
	copy(out, products)
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Recommend picks up to limit products other than exclude, in seeded
// shuffled order. limit <= 0 means no limit.
func Recommend(products []Product, exclude string, limit int, seed int64) []Product {
	var pool []Product
	for _, p := range products {
		if p.ID != exclude {
			pool = append(pool, p)
		}
	}
	pool = Shuffle(pool, seed)
	if limit > 0 && len(pool) > limit {
		pool = pool[:limit]
	}
	return pool
}
