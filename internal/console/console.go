package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/gomoku/internal/game"
	"github.com/muesli/termenv"
)

// Options configures a console session
type Options struct {
	Player string
	// Opponent is the name of a second human; empty plays against the bot
	Opponent   string
	Difficulty game.Difficulty
	BoardSize  int
	WinLength  int
	// Seed for the bot's random choices; 0 seeds from the clock
	Seed int64
	// ShowSearch prints the hard bot's search diagnostics after each move
	ShowSearch bool
}

var errQuit = errors.New("input closed")

// UI plays games on a terminal
type UI struct {
	in   *bufio.Scanner
	out  *termenv.Output
	opts Options
}

// New creates a console UI reading moves from in and drawing to out
func New(in io.Reader, out io.Writer, opts Options, outOpts ...termenv.OutputOption) *UI {
	if opts.Player == "" {
		opts.Player = "Player X"
	}
	if opts.Difficulty == "" {
		opts.Difficulty = game.DifficultyMedium
	}
	if opts.BoardSize == 0 {
		opts.BoardSize = game.DefaultBoardSize
	}
	if opts.WinLength == 0 {
		opts.WinLength = game.DefaultWinLength
	}
	return &UI{
		in:   bufio.NewScanner(in),
		out:  termenv.NewOutput(out, outOpts...),
		opts: opts,
	}
}

func (u *UI) printf(format string, args ...any) {
	fmt.Fprintf(u.out, format, args...)
}

// Run plays games until the player declines a rematch or input ends
func (u *UI) Run() error {
	u.welcome()

	seed := u.opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	g := u.newGame(rng)
	for {
		u.printf("%s", u.RenderBoard(g.Board, nil))

		err := u.play(g)
		if errors.Is(err, errQuit) {
			u.printf("\nInput ended. Exiting game.\n")
			return nil
		}
		if err != nil {
			return err
		}

		u.gameOver(g)
		if !u.askPlayAgain() {
			break
		}
		g.Restart()
	}

	u.printf("\nThanks for playing Gomoku!\n")
	return nil
}

func (u *UI) newGame(rng *rand.Rand) *game.Game {
	g := game.NewGame(u.opts.Player,
		game.WithBoardSize(u.opts.BoardSize),
		game.WithGameRules(game.NewRules(u.opts.WinLength)),
		game.WithBotOptions(game.WithRand(rng)),
	)
	if u.opts.Opponent != "" {
		g.AddPlayer2(u.opts.Opponent, false, "")
	} else {
		g.AddPlayer2(fmt.Sprintf("Computer (%s)", u.opts.Difficulty), true, u.opts.Difficulty)
	}
	return g
}

func (u *UI) welcome() {
	rule := strings.Repeat("=", 50)
	u.printf("%s\n%s\n%s\n", rule, u.out.String("Welcome to Gomoku (Five in a Row)!").Bold(), rule)
	u.printf("\nRules:\n")
	u.printf("- The board is %dx%d\n", u.opts.BoardSize, u.opts.BoardSize)
	u.printf("- Players take turns placing pieces\n")
	u.printf("- First to get %d in a row (horizontally, vertically, or diagonally) wins\n", u.opts.WinLength)
	u.printf("- Enter moves as row and column (e.g., '%d %d' for center)\n", u.opts.BoardSize/2, u.opts.BoardSize/2)
	u.printf("- Coordinates range from 0 to %d\n\n", u.opts.BoardSize-1)
}

// play runs one game to completion
func (u *UI) play(g *game.Game) error {
	for !g.IsOver() {
		var last *game.Move
		if g.IsBotTurn() {
			mv, err := u.botTurn(g)
			if err != nil {
				return err
			}
			last = &mv
		} else {
			mv, err := u.humanTurn(g)
			if err != nil {
				return err
			}
			last = &mv
		}
		u.printf("%s", u.RenderBoard(g.Board, last))
	}
	return nil
}

func (u *UI) playerOf(g *game.Game, side game.Cell) *game.Player {
	if side == game.PlayerX {
		return g.Player1
	}
	return g.Player2
}

func (u *UI) humanTurn(g *game.Game) (game.Move, error) {
	side := g.CurrentTurn
	u.printf("\n%s's turn (Symbol: %s)\n", u.playerOf(g, side).Username, u.symbol(side))

	for {
		u.printf("Enter your move (row col): ")
		if !u.in.Scan() {
			return game.Move{}, errQuit
		}

		mv, err := parseMove(u.in.Text())
		if err != nil {
			u.printf("%s\n", err)
			continue
		}
		if err := g.MakeMove(side, mv.Row, mv.Col); err != nil {
			u.printf("Invalid move! Cell (%d, %d): %s. Please try again.\n", mv.Row, mv.Col, err)
			continue
		}
		return mv, nil
	}
}

func (u *UI) botTurn(g *game.Game) (game.Move, error) {
	u.printf("\n%s's turn (Symbol: %s)\n", g.Player2.Username, u.symbol(g.Player2.Side))
	u.printf("Computer is thinking...\n")

	d, err := g.MakeBotMove()
	if err != nil {
		return game.Move{}, err
	}
	u.printf("Computer placed at (%d, %d)\n", d.Move.Row, d.Move.Col)
	if u.opts.ShowSearch && d.Difficulty == game.DifficultyHard {
		u.printf("%s\n", u.out.String(describeSearch(d.Search)).Faint())
	}
	return d.Move, nil
}

// describeSearch summarises the diagnostics of a hard bot decision
func describeSearch(info game.SearchInfo) string {
	score := strconv.Itoa(info.BestScore)
	switch info.BestScore {
	case game.MaxScore:
		score = "win"
	case game.MinScore:
		score = "loss"
	}
	return fmt.Sprintf("search: score %s, %d nodes, depth %d, %d candidates",
		score, info.NodesSearched, info.Depth, info.CandidateCount)
}

// parseMove reads "row col"
func parseMove(line string) (game.Move, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return game.Move{}, errors.New("please enter a valid move")
	}
	if len(parts) != 2 {
		return game.Move{}, errors.New("please enter two numbers separated by space, e.g. '7 7'")
	}
	row, err1 := strconv.Atoi(parts[0])
	col, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return game.Move{}, errors.New("invalid input, please enter numbers only")
	}
	return game.Move{Row: row, Col: col}, nil
}

func (u *UI) symbol(side game.Cell) string {
	s := u.out.String(side.String())
	switch side {
	case game.PlayerX:
		s = s.Foreground(u.out.Color("1"))
	case game.PlayerO:
		s = s.Foreground(u.out.Color("4"))
	default:
		return s.Faint().String()
	}
	return s.Bold().String()
}

// RenderBoard draws the board with row and column headers on every side.
// The last move is underlined.
func (u *UI) RenderBoard(b *game.Board, last *game.Move) string {
	var sb strings.Builder
	size := b.Size()

	header := func() {
		sb.WriteString("   ")
		for col := 0; col < size; col++ {
			fmt.Fprintf(&sb, "%2d ", col)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	header()
	for row := 0; row < size; row++ {
		fmt.Fprintf(&sb, "%2d ", row)
		for col := 0; col < size; col++ {
			cell := u.symbol(b.At(row, col))
			if last != nil && last.Row == row && last.Col == col {
				cell = u.out.String(b.At(row, col).String()).Underline().Bold().String()
			}
			fmt.Fprintf(&sb, " %s ", cell)
		}
		fmt.Fprintf(&sb, " %2d\n", row)
	}
	header()
	sb.WriteString("\n")
	return sb.String()
}

func (u *UI) gameOver(g *game.Game) {
	rule := strings.Repeat("=", 50)
	u.printf("\n%s\n%s\n%s\n", rule, u.out.String("GAME OVER!").Bold(), rule)

	state := g.GetState()
	if state.Result == string(game.ResultDraw) {
		u.printf("The game is a draw!\n")
	} else {
		u.printf("%s wins!\n", state.Winner)
	}
	u.printf("%s\n", rule)
}

func (u *UI) askPlayAgain() bool {
	for {
		u.printf("\nPlay again? (y/n): ")
		if !u.in.Scan() {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(u.in.Text())) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		default:
			u.printf("Please enter 'y' or 'n'.\n")
		}
	}
}
