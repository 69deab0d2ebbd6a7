package game

const DefaultWinLength = 5

// axes are the four line directions; each is walked both ways
var axes = [4][2]int{
	{0, 1},  // horizontal
	{1, 0},  // vertical
	{1, 1},  // diagonal
	{1, -1}, // anti-diagonal
}

// Rules holds the win condition. It carries no board state.
type Rules struct {
	WinLength int
}

// NewRules creates rules for the given run length
func NewRules(winLength int) Rules {
	if winLength <= 0 {
		winLength = DefaultWinLength
	}
	return Rules{WinLength: winLength}
}

// CountRun counts consecutive side cells through (row, col) along the
// direction (dRow, dCol) and its opposite. The origin is counted once and is
// assumed to hold side already.
func (r Rules) CountRun(g Grid, row, col, dRow, dCol int, side Cell) int {
	return 1 + countDirection(g, row, col, dRow, dCol, side) + countDirection(g, row, col, -dRow, -dCol, side)
}

// countDirection counts side cells strictly after the origin in one direction
func countDirection(g Grid, row, col, dRow, dCol int, side Cell) int {
	size := g.Size()
	count := 0
	r, c := row+dRow, col+dCol
	for r >= 0 && r < size && c >= 0 && c < size && g.At(r, c) == side {
		count++
		r += dRow
		c += dCol
	}
	return count
}

// HasWinningRun checks whether the piece just placed at (row, col) completes
// a run of at least WinLength on any axis
func (r Rules) HasWinningRun(g Grid, row, col int, side Cell) bool {
	for _, d := range axes {
		if r.CountRun(g, row, col, d[0], d[1], side) >= r.WinLength {
			return true
		}
	}
	return false
}

// FindImmediateWin returns the first empty cell, in row-major order, where
// placing side wins at once. The grid is probed and restored.
func (r Rules) FindImmediateWin(g Grid, side Cell) (Move, bool) {
	for _, mv := range g.EmptyCells() {
		if r.winsAt(g, mv, side) {
			return mv, true
		}
	}
	return Move{}, false
}

// winsAt tentatively places side at mv and reports whether it wins
func (r Rules) winsAt(g Grid, mv Move, side Cell) bool {
	g.Set(mv.Row, mv.Col, side)
	defer g.Set(mv.Row, mv.Col, Empty)
	return r.HasWinningRun(g, mv.Row, mv.Col, side)
}

// IsValidMove reports whether (row, col) is on the board and empty
func (r Rules) IsValidMove(b *Board, row, col int) bool {
	c, err := b.Get(row, col)
	return err == nil && c == Empty
}
