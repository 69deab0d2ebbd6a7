package game

import (
	"fmt"
)

const DefaultBoardSize = 15

// MaxBoardSize is the largest side length accepted from outside input
const MaxBoardSize = 25

// Cell is the content of a single board position
type Cell int

const (
	Empty   Cell = 0
	PlayerX Cell = 1
	PlayerO Cell = 2
)

// Valid reports whether c is one of the three legal cell states
func (c Cell) Valid() bool {
	return c == Empty || c == PlayerX || c == PlayerO
}

// Opponent returns the other side. Empty has no opponent.
func (c Cell) Opponent() Cell {
	switch c {
	case PlayerX:
		return PlayerO
	case PlayerO:
		return PlayerX
	default:
		return Empty
	}
}

func (c Cell) String() string {
	switch c {
	case PlayerX:
		return "X"
	case PlayerO:
		return "O"
	default:
		return "."
	}
}

// Move is a (row, column) coordinate on the board
type Move struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (m Move) String() string {
	return fmt.Sprintf("(%d, %d)", m.Row, m.Col)
}

// Grid is the board surface the decision engine works on.
// At and Set panic on out-of-range coordinates or invalid values.
type Grid interface {
	Size() int
	At(row, col int) Cell
	Set(row, col int, c Cell)
	IsEmpty(row, col int) bool
	EmptyCells() []Move
	IsFull() bool
}

// Board represents the game board
type Board struct {
	size  int
	cells []Cell
}

// NewBoard creates a new empty board of the given side length
func NewBoard(size int) *Board {
	if size <= 0 {
		size = DefaultBoardSize
	}
	return &Board{
		size:  size,
		cells: make([]Cell, size*size),
	}
}

// BoardFromSlice builds a board from a square matrix of cell values
func BoardFromSlice(rows [][]int) (*Board, error) {
	size := len(rows)
	if size == 0 {
		return nil, fmt.Errorf("empty board: %w", ErrOutOfRange)
	}
	for r, row := range rows {
		if len(row) != size {
			return nil, fmt.Errorf("row %d has %d cells, want %d: %w", r, len(row), size, ErrOutOfRange)
		}
	}
	b := NewBoard(size)
	for r, row := range rows {
		for c, v := range row {
			if err := b.Place(r, c, Cell(v)); err != nil {
				return nil, err
			}
		}
	}
	return b, nil
}

// Size returns the side length of the board
func (b *Board) Size() int {
	return b.size
}

// InBounds reports whether (row, col) lies on the board
func (b *Board) InBounds(row, col int) bool {
	return row >= 0 && col >= 0 && row < b.size && col < b.size
}

// Get returns the cell at (row, col) or ErrOutOfRange
func (b *Board) Get(row, col int) (Cell, error) {
	if !b.InBounds(row, col) {
		return Empty, fmt.Errorf("invalid position (%d, %d): %w", row, col, ErrOutOfRange)
	}
	return b.cells[row*b.size+col], nil
}

// Place writes a cell value, validating both the position and the value
func (b *Board) Place(row, col int, c Cell) error {
	if !b.InBounds(row, col) {
		return fmt.Errorf("invalid position (%d, %d): %w", row, col, ErrOutOfRange)
	}
	if !c.Valid() {
		return fmt.Errorf("invalid value %d: %w", int(c), ErrInvalidCell)
	}
	b.cells[row*b.size+col] = c
	return nil
}

// At is Get for callers that already guarantee valid coordinates
func (b *Board) At(row, col int) Cell {
	c, err := b.Get(row, col)
	if err != nil {
		panic(err)
	}
	return c
}

// Set is Place for callers that already guarantee valid input
func (b *Board) Set(row, col int, c Cell) {
	if err := b.Place(row, col, c); err != nil {
		panic(err)
	}
}

// IsEmpty checks whether the cell at (row, col) is empty
func (b *Board) IsEmpty(row, col int) bool {
	return b.At(row, col) == Empty
}

// EmptyCells returns all empty positions in row-major order
func (b *Board) EmptyCells() []Move {
	moves := make([]Move, 0, len(b.cells))
	for i, c := range b.cells {
		if c == Empty {
			moves = append(moves, Move{Row: i / b.size, Col: i % b.size})
		}
	}
	return moves
}

// IsFull checks if no empty cell remains (draw condition)
func (b *Board) IsFull() bool {
	for _, c := range b.cells {
		if c == Empty {
			return false
		}
	}
	return true
}

// Clear resets every cell to empty
func (b *Board) Clear() {
	for i := range b.cells {
		b.cells[i] = Empty
	}
}

// Clone creates a deep copy of the board
func (b *Board) Clone() *Board {
	newBoard := &Board{size: b.size, cells: make([]Cell, len(b.cells))}
	copy(newBoard.cells, b.cells)
	return newBoard
}

// Equal reports whether two boards hold identical cells
func (b *Board) Equal(other *Board) bool {
	if b.size != other.size {
		return false
	}
	for i := range b.cells {
		if b.cells[i] != other.cells[i] {
			return false
		}
	}
	return true
}

// ToSlice converts the board to a 2D slice for JSON serialization
func (b *Board) ToSlice() [][]int {
	result := make([][]int, b.size)
	for i := 0; i < b.size; i++ {
		result[i] = make([]int, b.size)
		for j := 0; j < b.size; j++ {
			result[i][j] = int(b.cells[i*b.size+j])
		}
	}
	return result
}
