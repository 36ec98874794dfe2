package game

import (
	"math/rand/v2"
	"sync"
)

// CodeGenerator produces secret codes.
type CodeGenerator interface {
	Generate() Code
}

// RandomGenerator draws each position uniformly from the alphabet, with replacement.
// Safe for concurrent use; one generator is shared by every session of a service.
type RandomGenerator struct {
	alphabet Alphabet
	length   int

	mu  sync.Mutex
	rng *rand.Rand // nil => package-level source
}

// NewRandomGenerator panics on an empty alphabet or non-positive length;
// both are validated by Config before we get here.
// src may be nil to use the runtime's seeded source.
func NewRandomGenerator(alphabet Alphabet, length int, src rand.Source) *RandomGenerator {
	if len(alphabet) == 0 || length <= 0 {
		panic("game: generator needs a non-empty alphabet and positive length")
	}
	g := &RandomGenerator{alphabet: alphabet, length: length}
	if src != nil {
		g.rng = rand.New(src)
	}
	return g
}

func (g *RandomGenerator) Generate() Code {
	code := make(Code, g.length)

	if g.rng == nil {
		for i := range code {
			code[i] = g.alphabet[rand.IntN(len(g.alphabet))]
		}
		return code
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range code {
		code[i] = g.alphabet[g.rng.IntN(len(g.alphabet))]
	}
	return code
}
