package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// BotUsername is the display name of the computer player
const BotUsername = "BOT"

// DefaultReconnectWindow is how long a disconnected player may take to return
const DefaultReconnectWindow = 30 * time.Second

// GameStatus represents the current state of the game
type GameStatus string

const (
	StatusWaiting    GameStatus = "waiting"
	StatusPlaying    GameStatus = "playing"
	StatusFinished   GameStatus = "finished"
	StatusDisconnect GameStatus = "disconnected"
)

// GameResult represents the outcome of a game
type GameResult string

const (
	ResultWinX    GameResult = "x_win"
	ResultWinO    GameResult = "o_win"
	ResultDraw    GameResult = "draw"
	ResultForfeit GameResult = "forfeit"
)

// Player represents a player in the game
type Player struct {
	Username    string
	Side        Cell
	IsBot       bool
	IsConnected bool
}

// PlayedMove represents a single move in the game
type PlayedMove struct {
	Side      Cell      `json:"side"`
	Row       int       `json:"row"`
	Col       int       `json:"col"`
	Timestamp time.Time `json:"timestamp"`
}

// Game represents a Gomoku game instance
type Game struct {
	ID                 string
	Player1            *Player
	Player2            *Player
	Board              *Board
	Rules              Rules
	CurrentTurn        Cell
	Status             GameStatus
	Winner             *Player
	Result             GameResult
	Moves              []PlayedMove
	StartTime          time.Time
	EndTime            time.Time
	DisconnectTime     time.Time
	DisconnectedPlayer Cell
	ReconnectWindow    time.Duration
	Bot                *Bot
	Difficulty         Difficulty
	LastSearch         *SearchInfo
	botOpts            []BotOption
	mu                 sync.RWMutex
}

// GameOption configures a new Game
type GameOption func(*Game)

// WithBoardSize sets the side length of the board
func WithBoardSize(size int) GameOption {
	return func(g *Game) {
		g.Board = NewBoard(size)
	}
}

// WithGameRules sets the win length used for the game and its bot
func WithGameRules(rules Rules) GameOption {
	return func(g *Game) {
		g.Rules = rules
	}
}

// WithReconnectWindow sets how long a disconnected player may be away
func WithReconnectWindow(d time.Duration) GameOption {
	return func(g *Game) {
		g.ReconnectWindow = d
	}
}

// WithBotOptions passes extra options to the bot created by AddPlayer2
func WithBotOptions(opts ...BotOption) GameOption {
	return func(g *Game) {
		g.botOpts = append(g.botOpts, opts...)
	}
}

// NewGame creates a new game instance. Player 1 plays X and moves first.
func NewGame(player1Username string, opts ...GameOption) *Game {
	g := &Game{
		ID: uuid.New().String(),
		Player1: &Player{
			Username:    player1Username,
			Side:        PlayerX,
			IsBot:       false,
			IsConnected: true,
		},
		Board:           NewBoard(DefaultBoardSize),
		Rules:           NewRules(DefaultWinLength),
		CurrentTurn:     PlayerX,
		Status:          StatusWaiting,
		Moves:           make([]PlayedMove, 0),
		StartTime:       time.Now(),
		ReconnectWindow: DefaultReconnectWindow,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddPlayer2 adds the second player (O) to the game and starts it
func (g *Game) AddPlayer2(username string, isBot bool, difficulty Difficulty) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Player2 = &Player{
		Username:    username,
		Side:        PlayerO,
		IsBot:       isBot,
		IsConnected: true,
	}
	g.Status = StatusPlaying

	if isBot {
		opts := append([]BotOption{WithRules(g.Rules)}, g.botOpts...)
		g.Bot = NewBot(PlayerO, difficulty, opts...)
		g.Difficulty = difficulty
	}
}

// Restart clears the board and hands the first move back to X
func (g *Game) Restart() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Board.Clear()
	g.CurrentTurn = PlayerX
	g.Status = StatusPlaying
	g.Winner = nil
	g.Result = ""
	g.Moves = make([]PlayedMove, 0)
	g.LastSearch = nil
	g.StartTime = time.Now()
	g.EndTime = time.Time{}
}

// MakeMove places a piece for the specified side
func (g *Game) MakeMove(side Cell, row, col int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.makeMoveLocked(side, row, col)
}

func (g *Game) makeMoveLocked(side Cell, row, col int) error {
	if g.Status != StatusPlaying {
		return ErrGameNotInProgress
	}

	if g.CurrentTurn != side {
		return ErrNotYourTurn
	}

	if !g.Rules.IsValidMove(g.Board, row, col) {
		if !g.Board.InBounds(row, col) {
			return fmt.Errorf("invalid position (%d, %d): %w", row, col, ErrOutOfRange)
		}
		return ErrCellOccupied
	}
	g.Board.Set(row, col, side)

	// Record the move
	g.Moves = append(g.Moves, PlayedMove{
		Side:      side,
		Row:       row,
		Col:       col,
		Timestamp: time.Now(),
	})

	// Check for win
	if g.Rules.HasWinningRun(g.Board, row, col, side) {
		g.Status = StatusFinished
		g.EndTime = time.Now()
		if side == PlayerX {
			g.Winner = g.Player1
			g.Result = ResultWinX
		} else {
			g.Winner = g.Player2
			g.Result = ResultWinO
		}
		return nil
	}

	// Check for draw
	if g.Board.IsFull() {
		g.Status = StatusFinished
		g.EndTime = time.Now()
		g.Result = ResultDraw
		return nil
	}

	g.CurrentTurn = g.CurrentTurn.Opponent()
	return nil
}

// MakeBotMove lets the bot choose and play its move. The game lock is held
// for the whole decision, so the bot has the board to itself.
func (g *Game) MakeBotMove() (Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Bot == nil || g.CurrentTurn != g.Bot.Player() {
		return Decision{}, ErrNotYourTurn
	}
	if g.Status != StatusPlaying {
		return Decision{}, ErrGameNotInProgress
	}

	decision, ok := g.Bot.SelectMove(g.Board)
	if !ok {
		return Decision{}, ErrNoMove
	}
	info := decision.Search
	g.LastSearch = &info

	if err := g.makeMoveLocked(g.Bot.Player(), decision.Move.Row, decision.Move.Col); err != nil {
		return Decision{}, err
	}
	return decision, nil
}

// Suggest asks a throwaway bot for a move for the side to play, without
// changing the game
func (g *Game) Suggest(difficulty Difficulty, opts ...BotOption) (Decision, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	opts = append([]BotOption{WithRules(g.Rules)}, opts...)
	return NewBot(g.CurrentTurn, difficulty, opts...).SelectMove(g.Board)
}

// IsBotTurn reports whether the bot should move next
func (g *Game) IsBotTurn() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.Bot != nil && g.Status == StatusPlaying && g.CurrentTurn == g.Bot.Player()
}

// PlayerDisconnected marks a player as disconnected
func (g *Game) PlayerDisconnected(side Cell) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Status != StatusPlaying {
		return
	}

	g.DisconnectedPlayer = side
	g.DisconnectTime = time.Now()
	g.Status = StatusDisconnect

	if side == PlayerX {
		g.Player1.IsConnected = false
	} else {
		g.Player2.IsConnected = false
	}
}

// PlayerReconnected marks a player as reconnected
func (g *Game) PlayerReconnected(side Cell) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Status != StatusDisconnect || g.DisconnectedPlayer != side {
		return false
	}

	if time.Since(g.DisconnectTime) > g.ReconnectWindow {
		return false
	}

	g.Status = StatusPlaying
	g.DisconnectedPlayer = Empty
	g.DisconnectTime = time.Time{}

	if side == PlayerX {
		g.Player1.IsConnected = true
	} else {
		g.Player2.IsConnected = true
	}

	return true
}

// DisconnectedSide returns the side currently away, or Empty
func (g *Game) DisconnectedSide() Cell {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.DisconnectedPlayer
}

// Forfeit ends the game with a forfeit
func (g *Game) Forfeit(loser Cell) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Status == StatusFinished {
		return
	}

	g.Status = StatusFinished
	g.EndTime = time.Now()
	g.Result = ResultForfeit

	if loser == PlayerX {
		g.Winner = g.Player2
	} else {
		g.Winner = g.Player1
	}
}

// IsOver reports whether the game has finished
func (g *Game) IsOver() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.Status == StatusFinished
}

// GetState returns the current game state for serialization
func (g *Game) GetState() *GameState {
	g.mu.RLock()
	defer g.mu.RUnlock()

	state := &GameState{
		ID:          g.ID,
		Board:       g.Board.ToSlice(),
		BoardSize:   g.Board.Size(),
		WinLength:   g.Rules.WinLength,
		CurrentTurn: int(g.CurrentTurn),
		Status:      g.Status,
		MoveCount:   len(g.Moves),
		Difficulty:  g.Difficulty,
		LastSearch:  g.LastSearch,
	}

	if g.Player1 != nil {
		state.Player1 = g.Player1.Username
	}
	if g.Player2 != nil {
		state.Player2 = g.Player2.Username
		state.IsVsBot = g.Player2.IsBot
	}
	if g.Winner != nil {
		state.Winner = g.Winner.Username
	}
	if len(g.Moves) > 0 {
		last := g.Moves[len(g.Moves)-1]
		state.LastMove = &Move{Row: last.Row, Col: last.Col}
	}
	if g.Result != "" {
		state.Result = string(g.Result)
	}

	return state
}

// MovesSnapshot returns a copy of the move list
func (g *Game) MovesSnapshot() []PlayedMove {
	g.mu.RLock()
	defer g.mu.RUnlock()

	moves := make([]PlayedMove, len(g.Moves))
	copy(moves, g.Moves)
	return moves
}

// GetPlayerByUsername returns the side played by username, or Empty
func (g *Game) GetPlayerByUsername(username string) Cell {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.Player1 != nil && g.Player1.Username == username {
		return PlayerX
	}
	if g.Player2 != nil && g.Player2.Username == username {
		return PlayerO
	}
	return Empty
}

// GetDuration returns the game duration in seconds
func (g *Game) GetDuration() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.EndTime.IsZero() {
		return int(time.Since(g.StartTime).Seconds())
	}
	return int(g.EndTime.Sub(g.StartTime).Seconds())
}

// GameState represents the serializable game state
type GameState struct {
	ID          string      `json:"id"`
	Player1     string      `json:"player1"`
	Player2     string      `json:"player2"`
	IsVsBot     bool        `json:"isVsBot"`
	Difficulty  Difficulty  `json:"difficulty,omitempty"`
	Board       [][]int     `json:"board"`
	BoardSize   int         `json:"boardSize"`
	WinLength   int         `json:"winLength"`
	CurrentTurn int         `json:"currentTurn"`
	Status      GameStatus  `json:"status"`
	Winner      string      `json:"winner,omitempty"`
	Result      string      `json:"result,omitempty"`
	LastMove    *Move       `json:"lastMove,omitempty"`
	LastSearch  *SearchInfo `json:"lastSearch,omitempty"`
	MoveCount   int         `json:"moveCount"`
}

// Errors
var (
	ErrOutOfRange        = &GameError{"coordinate out of range"}
	ErrInvalidCell       = &GameError{"invalid cell value"}
	ErrCellOccupied      = &GameError{"cell is occupied"}
	ErrGameNotInProgress = &GameError{"game is not in progress"}
	ErrNotYourTurn       = &GameError{"not your turn"}
	ErrGameNotFound      = &GameError{"game not found"}
	ErrPlayerNotFound    = &GameError{"player not found"}
	ErrUnknownDifficulty = &GameError{"unknown difficulty"}
	ErrNoMove            = &GameError{"no legal move available"}
)

type GameError struct {
	msg string
}

func (e *GameError) Error() string {
	return e.msg
}
