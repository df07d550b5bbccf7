package initializers

import "math/rand"

// RNG needs no explanation
type RNG interface {
	Gen() float64
}

type normal struct {
	src  *rand.Rand
	µ, σ float64
}

// Normal returns an RNG that gives values within a normal distribution, drawn from its own source
// seeded by seed. Two RNGs made with the same seed (and the same center and standard deviation)
// give identical sequences.
//
// The center and standard deviation default to 0 and 1, and can be set by Mean and SD,
// respectively.
func Normal(seed int64) *normal {
	return &normal{rand.New(rand.NewSource(seed)), 0, 1}
}

// SD sets the value of the standard deviation of the normal distribution.
func (n *normal) SD(sd float64) *normal {
	n.σ = sd
	return n
}

// Mean sets the center of the normal distribution.
func (n *normal) Mean(mean float64) *normal {
	n.µ = mean
	return n
}

// Gen is the implementation of RNG for Normal. It returns a random number.
func (n *normal) Gen() float64 {
	return n.src.NormFloat64()*n.σ + n.µ
}
