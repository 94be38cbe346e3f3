package testutil

import (
	"fmt"
	"math/rand"
)

// TestDataGenerator produces deterministic object trees for tests and benchmarks.
type TestDataGenerator struct {
	rand *rand.Rand
}

// NewTestDataGenerator creates a new test data generator with a seeded random source.
func NewTestDataGenerator(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// GenerateTree fills store with files spread over depth levels of folders
// below prefix and returns the keys in creation order.
func (g *TestDataGenerator) GenerateTree(store *FakeStore, prefix string, files, depth int) []string {
	keys := make([]string, 0, files)
	for i := 0; i < files; i++ {
		dir := prefix
		for d := 0; d < i%(depth+1); d++ {
			dir += fmt.Sprintf("level%d/", d)
		}
		key := fmt.Sprintf("%sfile-%03d.bin", dir, i)
		store.Add(key, g.Bytes(64+g.rand.Intn(512)))
		keys = append(keys, key)
	}
	return keys
}

// Bytes returns n deterministic pseudo-random bytes.
func (g *TestDataGenerator) Bytes(n int) []byte {
	data := make([]byte, n)
	_, _ = g.rand.Read(data)
	return data
}
