// Package dataset generates demo point sets and imports numeric CSV data.
//
// Generators draw from a caller supplied *rand.Rand so a seeded session can
// reproduce its data:
//
//	rng := rand.New(rand.NewPCG(seed, seed))
//	points := dataset.Uniform(rng, 300, 2, -10, 10)
package dataset
