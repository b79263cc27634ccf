package models

import (
	"time"

	"github.com/google/uuid"
)

// GridSize is the side length of a bingo card.
const GridSize = 5

// FreeCell marks the always-covered center cell.
const FreeCell = 0

// FreeRow and FreeCol locate the free cell (third row of the N column).
const (
	FreeRow = 2
	FreeCol = 2
)

// MaxDrawNumber is the highest callable number in 75-ball bingo.
const MaxDrawNumber = 75

// WinPattern names a winning cell arrangement.
type WinPattern string

const (
	// WinPatternHorizontal: any one row fully covered.
	WinPatternHorizontal WinPattern = "horizontal"
	// WinPatternVertical: any one column fully covered.
	WinPatternVertical WinPattern = "vertical"
	// WinPatternDiagonal: both diagonals covered, forming an X.
	WinPatternDiagonal WinPattern = "diagonal"
	// WinPatternFull: all 25 cells covered.
	WinPatternFull WinPattern = "full"
	// WinPatternCorners: the four corner cells covered.
	WinPatternCorners WinPattern = "corners"
)

// Card is a participant's 5x5 bingo card, stored row-major with B-I-N-G-O
// columns. Immutable after creation; win checks only read it.
type Card struct {
	ID        uuid.UUID               `db:"id"`
	EventID   int64                   `db:"event_id"`
	UserID    int64                   `db:"user_id"`
	Cells     [GridSize][GridSize]int `db:"cells"`
	CreatedAt time.Time               `db:"created_at"`
}

// Numbers returns the card's non-free numbers in row-major order.
func (c *Card) Numbers() []int {
	nums := make([]int, 0, GridSize*GridSize-1)
	for row := 0; row < GridSize; row++ {
		for col := 0; col < GridSize; col++ {
			if n := c.Cells[row][col]; n != FreeCell {
				nums = append(nums, n)
			}
		}
	}
	return nums
}

// DrawState is the append-only sequence of numbers called for an event. Each
// number 1-75 is drawn at most once.
type DrawState struct {
	EventID int64
	Numbers []int
}

// Complete reports whether every number has been called.
func (d *DrawState) Complete() bool {
	return len(d.Numbers) >= MaxDrawNumber
}

// Contains reports whether n has already been called.
func (d *DrawState) Contains(n int) bool {
	for _, m := range d.Numbers {
		if m == n {
			return true
		}
	}
	return false
}

// Set returns the called numbers as a lookup set.
func (d *DrawState) Set() map[int]bool {
	set := make(map[int]bool, len(d.Numbers))
	for _, n := range d.Numbers {
		set[n] = true
	}
	return set
}
