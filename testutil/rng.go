package testutil

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/revindex/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Read fills p with pseudo-random bytes. It never fails.
func (r *RNG) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Read(p)
}

// Bytes returns n pseudo-random bytes.
func (r *RNG) Bytes(n int) []byte {
	b := make([]byte, n)
	_, _ = r.Read(b)
	return b
}

// CommitID returns a random commit id of the given length.
func (r *RNG) CommitID(n int) model.CommitID { return model.CommitID(r.Bytes(n)) }

// ChangeID returns a random change id. Ids of 16 bytes are version 4 UUIDs,
// like the change ids of a real repository.
func (r *RNG) ChangeID(n int) model.ChangeID {
	if n != 16 {
		return model.ChangeID(r.Bytes(n))
	}
	u, err := uuid.NewRandomFromReader(r)
	if err != nil {
		panic(err)
	}
	return model.ChangeID(u[:])
}

// OperationID returns a random operation id.
func (r *RNG) OperationID() model.OperationID {
	u, err := uuid.NewRandomFromReader(r)
	if err != nil {
		panic(err)
	}
	return model.OperationID(u[:])
}

// Paths returns up to n distinct paths drawn from a universe of size files.
func (r *RNG) Paths(n, files int) []string {
	seen := make(map[int]bool, n)
	out := make([]string, 0, n)
	for range n {
		i := r.Intn(files)
		if seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, pathName(i))
	}
	return out
}

func pathName(i int) string {
	const dirs = 8
	return fmt.Sprintf("dir%d/file%d", i%dirs, i)
}
