// Package dice evaluates dice expressions for ability effects and initiative rolls.
package dice

import (
	"crypto/rand"
	"fmt"
	"math/big"
	randv2 "math/rand/v2"
	"sort"
	"sync"
)

// Source is the randomness provider for rolls.
//
// Implementations must be safe for concurrent use.
type Source interface {
	// Intn returns a value in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

type cryptoSource struct{}

// CryptoSource returns a Source backed by crypto/rand. It is the production source.
func CryptoSource() Source { return cryptoSource{} }

func (cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return int(v.Int64())
}

type seededSource struct {
	mu  sync.Mutex
	rng *randv2.Rand
}

// SeededSource returns a deterministic Source for simulations and replays.
//
// Postcondition: two sources built from the same seed produce the same sequence.
func SeededSource(seed uint64) Source {
	return &seededSource{rng: randv2.New(randv2.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *seededSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// Result is one evaluated expression.
//
// Postcondition: Total() == sum(Kept) + Modifier.
type Result struct {
	Expression string
	Rolled     []int // every die, in roll order
	Kept       []int // dice counted toward the total
	Modifier   int
}

// Total returns the kept dice plus the modifier.
func (r Result) Total() int {
	total := r.Modifier
	for _, d := range r.Kept {
		total += d
	}
	return total
}

func (r Result) String() string {
	return fmt.Sprintf("%s: %v %+d = %d", r.Expression, r.Kept, r.Modifier, r.Total())
}

// Roll evaluates expr against src.
//
// Precondition: expr came from Parse; src is non-nil.
// Postcondition: len(Rolled) == expr.Count; len(Kept) == expr.Keep when Keep > 0.
func Roll(expr Expression, src Source) Result {
	rolled := make([]int, expr.Count)
	for i := range rolled {
		rolled[i] = src.Intn(expr.Sides) + 1
	}
	kept := append([]int(nil), rolled...)
	if expr.Keep > 0 {
		sort.Sort(sort.Reverse(sort.IntSlice(kept)))
		kept = kept[:expr.Keep]
	}
	return Result{Expression: expr.String(), Rolled: rolled, Kept: kept, Modifier: expr.Modifier}
}
