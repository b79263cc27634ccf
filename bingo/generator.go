package bingo

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"bingocore/models"

	"github.com/google/uuid"
)

// columnRanges fixes the numeric range of each B-I-N-G-O column.
var columnRanges = [models.GridSize]struct{ low, high int }{
	{1, 15},  // B
	{16, 30}, // I
	{31, 45}, // N
	{46, 60}, // G
	{61, 75}, // O
}

// Generate produces a fair bingo card. Each column draws five distinct
// numbers from its range without replacement, then columns are transposed
// into rows and the center cell is overwritten with the free marker.
//
// Sampling uses crypto/rand: cards function as lottery tickets with monetary
// stakes, so the source must be unpredictable even to a player who has
// observed past draws. A statistical PRNG is not acceptable here.
func Generate() (*models.Card, error) {
	card := &models.Card{ID: uuid.New()}

	for col := 0; col < models.GridSize; col++ {
		nums, err := sampleWithoutReplacement(columnRanges[col].low, columnRanges[col].high, models.GridSize)
		if err != nil {
			return nil, err
		}
		for row := 0; row < models.GridSize; row++ {
			card.Cells[row][col] = nums[row]
		}
	}

	card.Cells[models.FreeRow][models.FreeCol] = models.FreeCell
	return card, nil
}

// DrawNumber draws one not-yet-called number from 1-75 using the same secure
// source as card generation.
func DrawNumber(called []int) (int, error) {
	seen := make(map[int]bool, len(called))
	for _, n := range called {
		seen[n] = true
	}

	remaining := make([]int, 0, models.MaxDrawNumber-len(called))
	for n := 1; n <= models.MaxDrawNumber; n++ {
		if !seen[n] {
			remaining = append(remaining, n)
		}
	}
	if len(remaining) == 0 {
		return 0, fmt.Errorf("all %d numbers have been drawn", models.MaxDrawNumber)
	}

	idx, err := secureIntn(len(remaining))
	if err != nil {
		return 0, err
	}
	return remaining[idx], nil
}

// sampleWithoutReplacement draws n distinct integers from [low, high].
func sampleWithoutReplacement(low, high, n int) ([]int, error) {
	pool := make([]int, 0, high-low+1)
	for v := low; v <= high; v++ {
		pool = append(pool, v)
	}

	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		idx, err := secureIntn(len(pool))
		if err != nil {
			return nil, err
		}
		out = append(out, pool[idx])
		pool[idx] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}
	return out, nil
}

// secureIntn returns a uniform integer in [0, n) from crypto/rand. Failure
// of the entropy source is fatal for the caller.
func secureIntn(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrEntropyUnavailable, err)
	}
	return int(v.Int64()), nil
}
