package game

import (
	"math"
	"sort"
)

const (
	// SearchDepth is the number of plies searched below each root candidate
	SearchDepth = 2
	// MaxCandidates caps the branching factor at every node
	MaxCandidates = 15
	// NeighborRadius is the Chebyshev distance that makes an empty cell a candidate
	NeighborRadius = 2

	WinScore  = 1000
	LossScore = -1000

	MaxScore = math.MaxInt32
	MinScore = math.MinInt32
)

// SearchInfo describes how the last decision was reached. It is observational
// only and is never fed back into the search.
type SearchInfo struct {
	ChosenMove     *Move `json:"chosenMove"`
	BestScore      int   `json:"bestScore"`
	NodesSearched  int   `json:"nodesSearched"`
	Depth          int   `json:"depth"`
	CandidateCount int   `json:"candidateCount"`
}

// Engine runs the bounded minimax search
type Engine struct {
	rules Rules
}

// NewEngine creates a search engine using the given rules
func NewEngine(rules Rules) Engine {
	return Engine{rules: rules}
}

// search holds the state of one top-level search
type search struct {
	rules    Rules
	grid     Grid
	self     Cell
	opponent Cell
	nodes    int
}

// Search picks the best move for self. It returns false when there is no
// candidate to play. The grid is left unchanged.
func (e Engine) Search(g Grid, self Cell) (SearchInfo, bool) {
	s := &search{
		rules:    e.rules,
		grid:     g,
		self:     self,
		opponent: self.Opponent(),
	}

	candidates := Candidates(g)
	info := SearchInfo{
		BestScore:      MinScore,
		Depth:          SearchDepth,
		CandidateCount: len(candidates),
	}

	var best *Move
	alpha, beta := MinScore, MaxScore
	for _, mv := range candidates {
		won := false
		score := s.play(mv, self, func() int {
			if s.rules.HasWinningRun(g, mv.Row, mv.Col, self) {
				won = true
				return MaxScore
			}
			return s.minimax(SearchDepth, false, alpha, beta)
		})

		if won {
			chosen := mv
			info.ChosenMove = &chosen
			info.BestScore = MaxScore
			info.NodesSearched = s.nodes
			return info, true
		}

		if score > info.BestScore {
			chosen := mv
			best = &chosen
			info.BestScore = score
			info.ChosenMove = best
		}
		alpha = max(alpha, info.BestScore)
	}

	info.NodesSearched = s.nodes
	return info, best != nil
}

// play places side at mv, runs fn and always clears the cell again
func (s *search) play(mv Move, side Cell, fn func() int) int {
	s.grid.Set(mv.Row, mv.Col, side)
	defer s.grid.Set(mv.Row, mv.Col, Empty)
	return fn()
}

// minimax implements the minimax algorithm with alpha-beta pruning.
// Scores are from the point of view of s.self.
func (s *search) minimax(depth int, isMaximizing bool, alpha, beta int) int {
	s.nodes++

	if s.grid.IsFull() {
		return 0
	}
	if depth == 0 {
		return evaluate(s.rules, s.grid, s.self)
	}

	side, best, winValue := s.opponent, MaxScore, LossScore
	if isMaximizing {
		side, best, winValue = s.self, MinScore, WinScore
	}

	for _, mv := range Candidates(s.grid) {
		won := false
		score := s.play(mv, side, func() int {
			if s.rules.HasWinningRun(s.grid, mv.Row, mv.Col, side) {
				won = true
				return winValue
			}
			return s.minimax(depth-1, !isMaximizing, alpha, beta)
		})
		if won {
			return score
		}

		if isMaximizing {
			best = max(best, score)
			alpha = max(alpha, score)
		} else {
			best = min(best, score)
			beta = min(beta, score)
		}
		if beta <= alpha {
			break // Alpha-beta pruning
		}
	}
	return best
}

// Candidates returns the moves worth searching, in search order
func Candidates(g Grid) []Move {
	size := g.Size()
	empty := g.EmptyCells()
	center := size / 2

	if len(empty) == size*size {
		return []Move{{Row: center, Col: center}}
	}

	candidates := make([]Move, 0, len(empty))
	for _, mv := range empty {
		if hasNeighbor(g, mv.Row, mv.Col) {
			candidates = append(candidates, mv)
		}
	}

	if len(candidates) == 0 {
		if len(empty) > MaxCandidates {
			empty = empty[:MaxCandidates]
		}
		return empty
	}

	if len(candidates) > MaxCandidates {
		sortByCenterDistance(candidates, center)
		candidates = candidates[:MaxCandidates]
	}
	return candidates
}

// hasNeighbor reports whether any occupied cell lies within NeighborRadius
func hasNeighbor(g Grid, row, col int) bool {
	size := g.Size()
	for dr := -NeighborRadius; dr <= NeighborRadius; dr++ {
		for dc := -NeighborRadius; dc <= NeighborRadius; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			r, c := row+dr, col+dc
			if r >= 0 && r < size && c >= 0 && c < size && g.At(r, c) != Empty {
				return true
			}
		}
	}
	return false
}

// sortByCenterDistance orders moves by Manhattan distance to the center,
// keeping row-major order among equals
func sortByCenterDistance(moves []Move, center int) {
	sort.SliceStable(moves, func(i, j int) bool {
		return centerDistance(moves[i], center) < centerDistance(moves[j], center)
	})
}

func centerDistance(m Move, center int) int {
	return abs(m.Row-center) + abs(m.Col-center)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Evaluate scores the grid for self: run patterns of self count positive,
// the opponent's negative
func (e Engine) Evaluate(g Grid, self Cell) int {
	return evaluate(e.rules, g, self)
}

func evaluate(rules Rules, g Grid, self Cell) int {
	size := g.Size()
	score := 0
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			cell := g.At(row, col)
			if cell == Empty {
				continue
			}
			if cell == self {
				score += scorePosition(rules, g, row, col, cell)
			} else {
				score -= scorePosition(rules, g, row, col, cell)
			}
		}
	}
	return score
}

// scorePosition sums the run weights of one piece over the four axes.
// Overlapping runs are counted once per member piece.
func scorePosition(rules Rules, g Grid, row, col int, side Cell) int {
	score := 0
	for _, d := range axes {
		switch count := rules.CountRun(g, row, col, d[0], d[1], side); {
		case count >= 4:
			score += 100
		case count == 3:
			score += 10
		case count == 2:
			score += 2
		}
	}
	return score
}
