package matchmaker

import (
	"errors"
	"sync"
	"time"

	"github.com/gomoku/internal/game"
	"go.uber.org/zap"
)

// DefaultTimeout is how long a player waits for a human before a bot steps in
const DefaultTimeout = 10 * time.Second

// ErrAlreadyPlaying is returned when a player with an unfinished game asks
// for a new one
var ErrAlreadyPlaying = errors.New("player already has a game in progress")

// ErrAlreadyQueued is returned when a waiting player joins the queue again.
// The channel from the first join still receives the game.
var ErrAlreadyQueued = errors.New("player is already waiting for an opponent")

// WaitingPlayer represents a player waiting for a match
type WaitingPlayer struct {
	Username   string
	Difficulty game.Difficulty
	JoinedAt   time.Time
	MatchChan  chan *game.Game
	timer      *time.Timer
}

// Options configures a Matchmaker
type Options struct {
	// Timeout before a waiting player is given a bot game
	Timeout time.Duration
	// Difficulty of fallback bots when the player did not ask for one
	Difficulty game.Difficulty
	// GameOptions are applied to every game created
	GameOptions []game.GameOption
}

// Matchmaker handles player matching
type Matchmaker struct {
	waitingQueue []*WaitingPlayer
	activeGames  map[string]*game.Game // gameID -> game
	playerGames  map[string]string     // username -> gameID
	opts         Options
	log          *zap.Logger
	mu           sync.Mutex
	onGameStart  func(g *game.Game)
}

// NewMatchmaker creates a new matchmaker instance
func NewMatchmaker(opts Options, log *zap.Logger) *Matchmaker {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Difficulty == "" {
		opts.Difficulty = game.DifficultyMedium
	}
	return &Matchmaker{
		waitingQueue: make([]*WaitingPlayer, 0),
		activeGames:  make(map[string]*game.Game),
		playerGames:  make(map[string]string),
		opts:         opts,
		log:          log,
	}
}

// SetOnGameStart sets the callback for when a game starts
func (m *Matchmaker) SetOnGameStart(callback func(g *game.Game)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onGameStart = callback
}

// JoinQueue adds a player to the matchmaking queue. The returned channel
// receives the game once matched. difficulty is used if the player ends up
// against a bot; empty means the configured default.
func (m *Matchmaker) JoinQueue(username string, difficulty game.Difficulty) (<-chan *game.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Return an unfinished game for reconnection
	if g := m.gameByPlayerLocked(username); g != nil && !g.IsOver() {
		ch := make(chan *game.Game, 1)
		ch <- g
		return ch, nil
	}

	for _, w := range m.waitingQueue {
		if w.Username == username {
			return nil, ErrAlreadyQueued
		}
	}

	if len(m.waitingQueue) > 0 {
		// Match with the first waiting player
		opponent := m.waitingQueue[0]
		m.waitingQueue = m.waitingQueue[1:]
		opponent.timer.Stop()

		g := game.NewGame(opponent.Username, m.opts.GameOptions...)
		g.AddPlayer2(username, false, "")
		m.registerLocked(g)

		opponent.MatchChan <- g

		ch := make(chan *game.Game, 1)
		ch <- g

		m.log.Info("players matched",
			zap.String("game_id", g.ID),
			zap.String("player1", opponent.Username),
			zap.String("player2", username))
		return ch, nil
	}

	// No opponent available, add to queue
	waiting := &WaitingPlayer{
		Username:   username,
		Difficulty: difficulty,
		JoinedAt:   time.Now(),
		MatchChan:  make(chan *game.Game, 1),
	}
	waiting.timer = time.AfterFunc(m.opts.Timeout, func() {
		m.handleMatchmakingTimeout(waiting)
	})
	m.waitingQueue = append(m.waitingQueue, waiting)

	return waiting.MatchChan, nil
}

// handleMatchmakingTimeout gives a still waiting player a bot opponent
func (m *Matchmaker) handleMatchmakingTimeout(waiting *WaitingPlayer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, w := range m.waitingQueue {
		if w != waiting {
			continue
		}
		m.waitingQueue = append(m.waitingQueue[:i], m.waitingQueue[i+1:]...)

		g := m.newBotGameLocked(waiting.Username, waiting.Difficulty)
		m.log.Info("matchmaking timed out, created bot game",
			zap.String("game_id", g.ID),
			zap.String("player", waiting.Username),
			zap.String("difficulty", string(g.Difficulty)))

		waiting.MatchChan <- g
		return
	}
	// Player was already matched or left
}

// CreateBotGame starts a game against the bot straight away
func (m *Matchmaker) CreateBotGame(username string, difficulty game.Difficulty) (*game.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g := m.gameByPlayerLocked(username); g != nil {
		if !g.IsOver() {
			return nil, ErrAlreadyPlaying
		}
		delete(m.activeGames, g.ID)
	}
	m.leaveQueueLocked(username)

	g := m.newBotGameLocked(username, difficulty)
	m.log.Info("bot game created",
		zap.String("game_id", g.ID),
		zap.String("player", username),
		zap.String("difficulty", string(g.Difficulty)))
	return g, nil
}

func (m *Matchmaker) newBotGameLocked(username string, difficulty game.Difficulty) *game.Game {
	if difficulty == "" {
		difficulty = m.opts.Difficulty
	}
	g := game.NewGame(username, m.opts.GameOptions...)
	g.AddPlayer2(game.BotUsername, true, difficulty)
	m.registerLocked(g)
	return g
}

func (m *Matchmaker) registerLocked(g *game.Game) {
	m.activeGames[g.ID] = g
	m.playerGames[g.Player1.Username] = g.ID
	if !g.Player2.IsBot {
		m.playerGames[g.Player2.Username] = g.ID
	}
	if m.onGameStart != nil {
		go m.onGameStart(g)
	}
}

func (m *Matchmaker) gameByPlayerLocked(username string) *game.Game {
	if gameID, exists := m.playerGames[username]; exists {
		return m.activeGames[gameID]
	}
	return nil
}

// GetGame returns a game by ID
func (m *Matchmaker) GetGame(gameID string) *game.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeGames[gameID]
}

// GetGameByPlayer returns a game by player username
func (m *Matchmaker) GetGameByPlayer(username string) *game.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gameByPlayerLocked(username)
}

// RemoveGame removes a completed game from active games
func (m *Matchmaker) RemoveGame(gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, exists := m.activeGames[gameID]
	if !exists {
		return
	}
	for _, p := range []*game.Player{g.Player1, g.Player2} {
		if p != nil && m.playerGames[p.Username] == gameID {
			delete(m.playerGames, p.Username)
		}
	}
	delete(m.activeGames, gameID)
}

// LeaveQueue removes a player from the waiting queue
func (m *Matchmaker) LeaveQueue(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveQueueLocked(username)
}

func (m *Matchmaker) leaveQueueLocked(username string) {
	for i, w := range m.waitingQueue {
		if w.Username == username {
			m.waitingQueue = append(m.waitingQueue[:i], m.waitingQueue[i+1:]...)
			w.timer.Stop()
			close(w.MatchChan)
			return
		}
	}
}

// GetActiveGameCount returns the number of active games
func (m *Matchmaker) GetActiveGameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activeGames)
}

// GetWaitingCount returns the number of players waiting
func (m *Matchmaker) GetWaitingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waitingQueue)
}
