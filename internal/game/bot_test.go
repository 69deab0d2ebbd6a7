package game

import (
	"errors"
	"math/rand"
	"testing"
)

func newTestBot(difficulty Difficulty) *Bot {
	return NewBot(PlayerO, difficulty, WithRand(rand.New(rand.NewSource(42))))
}

func TestParseDifficulty(t *testing.T) {
	cases := map[string]Difficulty{
		"easy":      DifficultyEasy,
		"Medium":    DifficultyMedium,
		"strategic": DifficultyMedium,
		" HARD ":    DifficultyHard,
	}
	for in, want := range cases {
		got, err := ParseDifficulty(in)
		if err != nil || got != want {
			t.Fatalf("ParseDifficulty(%q): expected %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := ParseDifficulty("impossible"); !errors.Is(err, ErrUnknownDifficulty) {
		t.Fatalf("expected ErrUnknownDifficulty, got %v", err)
	}
}

func TestMediumEmptyBoardPlaysCenter(t *testing.T) {
	d, ok := newTestBot(DifficultyMedium).SelectMove(NewBoard(DefaultBoardSize))
	if !ok {
		t.Fatalf("expected a move")
	}
	if d.Move != (Move{Row: 7, Col: 7}) {
		t.Fatalf("expected center (7, 7), got %v", d.Move)
	}
}

func TestHardEmptyBoardPlaysCenter(t *testing.T) {
	d, ok := newTestBot(DifficultyHard).SelectMove(NewBoard(DefaultBoardSize))
	if !ok || d.Move != (Move{Row: 7, Col: 7}) {
		t.Fatalf("expected center (7, 7), got %v", d.Move)
	}
	if d.Search.CandidateCount != 1 || d.Search.Depth != SearchDepth {
		t.Fatalf("unexpected diagnostics: %+v", d.Search)
	}
}

func TestTiersTakeWinningExtension(t *testing.T) {
	for _, difficulty := range []Difficulty{DifficultyMedium, DifficultyHard} {
		b := NewBoard(DefaultBoardSize)
		placeAll(t, b, PlayerO, [2]int{0, 0}, [2]int{0, 1}, [2]int{0, 2}, [2]int{0, 3})

		d, ok := newTestBot(difficulty).SelectMove(b)
		if !ok || d.Move != (Move{Row: 0, Col: 4}) {
			t.Fatalf("%s: expected (0, 4), got %v", difficulty, d.Move)
		}
	}
}

func TestTiersBlockOpponentFour(t *testing.T) {
	for _, difficulty := range []Difficulty{DifficultyMedium, DifficultyHard} {
		b := NewBoard(DefaultBoardSize)
		placeAll(t, b, PlayerX, [2]int{5, 0}, [2]int{5, 1}, [2]int{5, 2}, [2]int{5, 3})
		placeAll(t, b, PlayerO, [2]int{9, 9})

		d, ok := newTestBot(difficulty).SelectMove(b)
		if !ok || d.Move != (Move{Row: 5, Col: 4}) {
			t.Fatalf("%s: expected block at (5, 4), got %v", difficulty, d.Move)
		}
	}
}

func TestTiersPreferWinOverBlock(t *testing.T) {
	for _, difficulty := range []Difficulty{DifficultyMedium, DifficultyHard} {
		b := NewBoard(DefaultBoardSize)
		placeAll(t, b, PlayerO, [2]int{5, 0}, [2]int{5, 1}, [2]int{5, 2}, [2]int{5, 3})
		placeAll(t, b, PlayerX, [2]int{0, 10}, [2]int{1, 10}, [2]int{2, 10}, [2]int{3, 10})

		d, ok := newTestBot(difficulty).SelectMove(b)
		if !ok || d.Move != (Move{Row: 5, Col: 4}) {
			t.Fatalf("%s: expected win at (5, 4), got %v", difficulty, d.Move)
		}
	}
}

func TestHardForcedMoveDiagnostics(t *testing.T) {
	b := NewBoard(DefaultBoardSize)
	placeAll(t, b, PlayerO, [2]int{0, 0}, [2]int{0, 1}, [2]int{0, 2}, [2]int{0, 3})
	d, _ := newTestBot(DifficultyHard).SelectMove(b)
	if d.Search.BestScore != MaxScore || d.Search.NodesSearched != 0 || d.Search.Depth != 0 || d.Search.CandidateCount != 1 {
		t.Fatalf("unexpected win diagnostics: %+v", d.Search)
	}

	b = NewBoard(DefaultBoardSize)
	placeAll(t, b, PlayerX, [2]int{5, 0}, [2]int{5, 1}, [2]int{5, 2}, [2]int{5, 3})
	d, _ = newTestBot(DifficultyHard).SelectMove(b)
	if d.Search.BestScore != 0 || d.Search.ChosenMove == nil || *d.Search.ChosenMove != d.Move {
		t.Fatalf("unexpected block diagnostics: %+v", d.Search)
	}
}

func TestMediumSmartMoveNearPieces(t *testing.T) {
	b := NewBoard(DefaultBoardSize)
	placeAll(t, b, PlayerX, [2]int{7, 7})
	d, _ := newTestBot(DifficultyMedium).SelectMove(b)
	if d.Move != (Move{Row: 6, Col: 7}) {
		t.Fatalf("expected (6, 7), got %v", d.Move)
	}

	b = NewBoard(DefaultBoardSize)
	placeAll(t, b, PlayerX, [2]int{0, 0})
	d, _ = newTestBot(DifficultyMedium).SelectMove(b)
	if d.Move != (Move{Row: 2, Col: 2}) {
		t.Fatalf("expected (2, 2), got %v", d.Move)
	}
}

func TestEasyPicksEmptyCells(t *testing.T) {
	b := NewBoard(DefaultBoardSize)
	placeAll(t, b, PlayerX, [2]int{7, 7}, [2]int{3, 3})
	placeAll(t, b, PlayerO, [2]int{7, 8})
	bot := newTestBot(DifficultyEasy)

	seen := make(map[Move]bool)
	for i := 0; i < 100; i++ {
		d, ok := bot.SelectMove(b)
		if !ok {
			t.Fatalf("expected a move")
		}
		if !b.IsEmpty(d.Move.Row, d.Move.Col) {
			t.Fatalf("easy bot picked occupied cell %v", d.Move)
		}
		seen[d.Move] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected more than one distinct move, got %d", len(seen))
	}
}

func TestEasyIsReproducibleWithSeed(t *testing.T) {
	b := NewBoard(DefaultBoardSize)
	a := NewBot(PlayerO, DifficultyEasy, WithRand(rand.New(rand.NewSource(7))))
	c := NewBot(PlayerO, DifficultyEasy, WithRand(rand.New(rand.NewSource(7))))
	for i := 0; i < 10; i++ {
		da, _ := a.SelectMove(b)
		dc, _ := c.SelectMove(b)
		if da.Move != dc.Move {
			t.Fatalf("expected identical moves for identical seeds, got %v and %v", da.Move, dc.Move)
		}
	}
}

func TestSingleEmptyCellAllTiers(t *testing.T) {
	for _, difficulty := range []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard} {
		b := fullBoard(DefaultBoardSize)
		b.Set(4, 9, Empty)

		d, ok := newTestBot(difficulty).SelectMove(b)
		if !ok || d.Move != (Move{Row: 4, Col: 9}) {
			t.Fatalf("%s: expected (4, 9), got %v (%v)", difficulty, d.Move, ok)
		}
	}
}

func TestFullBoardAllTiers(t *testing.T) {
	for _, difficulty := range []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard} {
		if _, ok := newTestBot(difficulty).SelectMove(fullBoard(DefaultBoardSize)); ok {
			t.Fatalf("%s: expected no move on a full board", difficulty)
		}
	}
}

func TestHardLeavesBoardUnchanged(t *testing.T) {
	b := NewBoard(DefaultBoardSize)
	placeAll(t, b, PlayerX, [2]int{7, 7}, [2]int{8, 8}, [2]int{9, 7}, [2]int{6, 6})
	placeAll(t, b, PlayerO, [2]int{7, 8}, [2]int{8, 7}, [2]int{5, 5})
	before := b.Clone()

	d, ok := newTestBot(DifficultyHard).SelectMove(b)
	if !ok {
		t.Fatalf("expected a move")
	}
	if !b.Equal(before) {
		t.Fatalf("expected the bot not to modify the board")
	}
	if !b.IsEmpty(d.Move.Row, d.Move.Col) {
		t.Fatalf("expected an empty cell, got %v", d.Move)
	}
	if d.Difficulty != DifficultyHard {
		t.Fatalf("expected difficulty hard, got %s", d.Difficulty)
	}
}
