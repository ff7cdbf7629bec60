package testutil

import (
	"fmt"
	"math/rand"
)

// GenerateIntColumn generates n values drawn from [0, domain). Small
// domains force duplicate join keys.
func GenerateIntColumn(rng *rand.Rand, n int, domain int64) []int64 {
	col := make([]int64, n)
	for i := range col {
		col[i] = rng.Int63n(domain)
	}
	return col
}

// GenerateDoubleColumn generates n values in half-unit steps from
// [0, domain) so that ties still occur.
func GenerateDoubleColumn(rng *rand.Rand, n int, domain int) []float64 {
	col := make([]float64, n)
	for i := range col {
		col[i] = float64(rng.Intn(domain*2)) / 2
	}
	return col
}

// GenerateTextColumn generates n zero-padded keys from [0, domain).
// Lexicographic order matches numeric order.
func GenerateTextColumn(rng *rand.Rand, n int, domain int) []string {
	col := make([]string, n)
	for i := range col {
		col[i] = fmt.Sprintf("k%03d", rng.Intn(domain))
	}
	return col
}
