package bingo

import (
	"bingocore/models"
)

type coord struct {
	row, col int
}

// Coordinate groups per pattern, built once. Patterns are small and fixed.
var (
	rowGroups    [][]coord
	columnGroups [][]coord
	diagonalX    []coord
	corners      []coord
	fullGrid     []coord
)

func init() {
	for row := 0; row < models.GridSize; row++ {
		var group []coord
		for col := 0; col < models.GridSize; col++ {
			group = append(group, coord{row, col})
			fullGrid = append(fullGrid, coord{row, col})
		}
		rowGroups = append(rowGroups, group)
	}

	for col := 0; col < models.GridSize; col++ {
		var group []coord
		for row := 0; row < models.GridSize; row++ {
			group = append(group, coord{row, col})
		}
		columnGroups = append(columnGroups, group)
	}

	// Both diagonals together: the diagonal pattern is the X, not
	// either-diagonal.
	for i := 0; i < models.GridSize; i++ {
		diagonalX = append(diagonalX, coord{i, i})
		diagonalX = append(diagonalX, coord{i, models.GridSize - 1 - i})
	}

	last := models.GridSize - 1
	corners = []coord{{0, 0}, {0, last}, {last, 0}, {last, last}}
}

// IsWinner reports whether the card satisfies the pattern given the numbers
// called so far. The free cell always counts as covered. Evaluation is pure,
// so any win can be replayed for audit.
func IsWinner(card *models.Card, called []int, pattern models.WinPattern) bool {
	drawn := make(map[int]bool, len(called))
	for _, n := range called {
		drawn[n] = true
	}

	covered := func(c coord) bool {
		n := card.Cells[c.row][c.col]
		return n == models.FreeCell || drawn[n]
	}
	allCovered := func(group []coord) bool {
		for _, c := range group {
			if !covered(c) {
				return false
			}
		}
		return true
	}
	anyCovered := func(groups [][]coord) bool {
		for _, group := range groups {
			if allCovered(group) {
				return true
			}
		}
		return false
	}

	switch pattern {
	case models.WinPatternHorizontal:
		return anyCovered(rowGroups)
	case models.WinPatternVertical:
		return anyCovered(columnGroups)
	case models.WinPatternDiagonal:
		return allCovered(diagonalX)
	case models.WinPatternFull:
		return allCovered(fullGrid)
	case models.WinPatternCorners:
		return allCovered(corners)
	default:
		return false
	}
}
