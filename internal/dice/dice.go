// Package dice tira dados con una fuente aleatoria explicita.
//
// Cada Roller es seguro para uso concurrente, pero dos generaciones no deben
// compartir un Roller si se quiere que sus tiradas sean independientes y
// reproducibles: Source entrega un Roller nuevo por llamada.
package dice

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sort"
	"sync"
)

// Roller envuelve un *rand.Rand protegido por mutex.
type Roller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRoller(seed int64) *Roller {
	return &Roller{rng: rand.New(rand.NewSource(seed))}
}

// Roll suma n dados de sides caras. Configuraciones invalidas devuelven 0.
func (r *Roller) Roll(n, sides int) int {
	if n <= 0 || sides <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for i := 0; i < n; i++ {
		total += r.rng.Intn(sides) + 1
	}
	return total
}

// RollKeepHighest tira n dados y suma los keep mejores.
// keep <= 0 conserva un dado; keep > n conserva todos.
func (r *Roller) RollKeepHighest(n, sides, keep int) int {
	return r.rollKeep(n, sides, keep, true)
}

// RollKeepLowest tira n dados y suma los keep peores.
func (r *Roller) RollKeepLowest(n, sides, keep int) int {
	return r.rollKeep(n, sides, keep, false)
}

// AbilityScore es 4d6 descartando el dado mas bajo.
func (r *Roller) AbilityScore() int {
	return r.RollKeepHighest(4, 6, 3)
}

// Intn elige un indice uniforme en [0, n). n <= 0 devuelve 0.
func (r *Roller) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

func (r *Roller) rollKeep(n, sides, keep int, highest bool) int {
	if n <= 0 || sides <= 0 {
		return 0
	}
	results := r.rollEach(n, sides)
	if highest {
		sort.Sort(sort.Reverse(sort.IntSlice(results)))
	} else {
		sort.Ints(results)
	}
	if keep <= 0 {
		keep = 1
	}
	keep = min(keep, len(results))
	total := 0
	for _, v := range results[:keep] {
		total += v
	}
	return total
}

func (r *Roller) rollEach(n, sides int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	results := make([]int, n)
	for i := range results {
		results[i] = r.rng.Intn(sides) + 1
	}
	return results
}

// Source deriva Rollers independientes a partir de una semilla maestra.
type Source struct {
	mu     sync.Mutex
	master *rand.Rand
}

// NewSource con seed 0 toma una semilla de crypto/rand.
func NewSource(seed int64) (*Source, error) {
	if seed == 0 {
		s, err := NewSeed()
		if err != nil {
			return nil, err
		}
		seed = s
	}
	return &Source{master: rand.New(rand.NewSource(seed))}, nil
}

// Roller devuelve un Roller con su propia secuencia.
func (s *Source) Roller() *Roller {
	s.mu.Lock()
	seed := s.master.Int63()
	s.mu.Unlock()
	return NewRoller(seed)
}

// NewSeed genera una semilla usando crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
