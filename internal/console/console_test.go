package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gomoku/internal/game"
	"github.com/muesli/termenv"
)

func run(t *testing.T, input string, opts Options) string {
	t.Helper()
	var out bytes.Buffer
	ui := New(strings.NewReader(input), &out, opts, termenv.WithProfile(termenv.Ascii))
	if err := ui.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return out.String()
}

func TestParseMove(t *testing.T) {
	mv, err := parseMove("  7   8 ")
	if err != nil || mv != (game.Move{Row: 7, Col: 8}) {
		t.Fatalf("expected (7, 8), got %v (%v)", mv, err)
	}
	for _, bad := range []string{"", "7", "1 2 3", "a b"} {
		if _, err := parseMove(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestRenderBoardPlain(t *testing.T) {
	ui := New(strings.NewReader(""), &bytes.Buffer{}, Options{BoardSize: 5}, termenv.WithProfile(termenv.Ascii))
	b := game.NewBoard(5)
	b.Set(0, 0, game.PlayerX)
	b.Set(4, 3, game.PlayerO)

	got := ui.RenderBoard(b, &game.Move{Row: 4, Col: 3})
	lines := strings.Split(strings.Trim(got, "\n"), "\n")
	if len(lines) != 7 {
		t.Fatalf("expected header, 5 rows and footer, got %d lines:\n%s", len(lines), got)
	}
	if lines[0] != "    0  1  2  3  4 " {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[1] != " 0  X  .  .  .  .   0" {
		t.Fatalf("unexpected first row %q", lines[1])
	}
	if lines[5] != " 4  .  .  .  O  .   4" {
		t.Fatalf("unexpected last row %q", lines[5])
	}
}

func TestTwoPlayerGame(t *testing.T) {
	input := strings.Join([]string{
		"0 0", "1 0",
		"",      // empty line
		"0 1 2", // too many numbers
		"a b",   // not numbers
		"0 0",   // occupied
		"0 1", "1 1",
		"0 2", "1 2",
		"0 3", "1 3",
		"0 4",
		"maybe",
		"n",
	}, "\n")

	out := run(t, input, Options{Player: "alice", Opponent: "bob"})
	for _, want := range []string{
		"Welcome to Gomoku",
		"alice's turn (Symbol: X)",
		"bob's turn (Symbol: O)",
		"please enter a valid move",
		"please enter two numbers",
		"invalid input",
		"Invalid move! Cell (0, 0)",
		"GAME OVER!",
		"alice wins!",
		"Please enter 'y' or 'n'.",
		"Thanks for playing Gomoku!",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q:\n%s", want, out)
		}
	}
}

func TestPlayAgainClearsBoard(t *testing.T) {
	input := strings.Join([]string{
		"0 0", "1 0", "0 1", "1 1", "0 2",
		"y",
		// the same cells again must be free
		"0 0", "1 0", "0 1", "1 1", "0 2",
		"n",
	}, "\n")

	out := run(t, input, Options{Player: "alice", Opponent: "bob", BoardSize: 3, WinLength: 3})
	if n := strings.Count(out, "alice wins!"); n != 2 {
		t.Fatalf("expected alice to win twice, got %d:\n%s", n, out)
	}
	if strings.Contains(out, "Invalid move!") {
		t.Fatalf("expected the board to be cleared between games:\n%s", out)
	}
}

func TestBotGameOnSmallBoard(t *testing.T) {
	// every cell in order; occupied cells are refused and the game ends
	// well before the list runs out
	var moves []string
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			moves = append(moves, strings.Join([]string{string(rune('0' + r)), string(rune('0' + c))}, " "))
		}
	}
	input := strings.Join(moves, "\n") + "\n"

	out := run(t, input, Options{
		Player:     "alice",
		Difficulty: game.DifficultyEasy,
		BoardSize:  3,
		WinLength:  3,
		Seed:       5,
	})
	for _, want := range []string{"Computer is thinking...", "Computer placed at", "GAME OVER!"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q:\n%s", want, out)
		}
	}
}

func TestInputEndsMidGame(t *testing.T) {
	out := run(t, "7 7\n", Options{Player: "alice", Difficulty: game.DifficultyHard, ShowSearch: true, Seed: 1})
	if !strings.Contains(out, "Computer placed at") {
		t.Fatalf("expected the bot to answer:\n%s", out)
	}
	if !strings.Contains(out, "search: score") {
		t.Fatalf("expected search diagnostics:\n%s", out)
	}
	if !strings.Contains(out, "Input ended. Exiting game.") {
		t.Fatalf("expected a clean exit on end of input:\n%s", out)
	}
}

func TestDescribeSearch(t *testing.T) {
	got := describeSearch(game.SearchInfo{BestScore: game.MaxScore, NodesSearched: 0, Depth: 0, CandidateCount: 1})
	if got != "search: score win, 0 nodes, depth 0, 1 candidates" {
		t.Fatalf("unexpected summary %q", got)
	}
}
