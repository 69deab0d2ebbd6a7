package websocket

import (
	"encoding/json"
	"errors"

	"github.com/gomoku/internal/game"
	"github.com/gomoku/internal/matchmaker"
	"go.uber.org/zap"
)

// Message types
const (
	TypeJoin                 = "join"
	TypePlayBot              = "play_bot"
	TypeMove                 = "move"
	TypeReconnect            = "reconnect"
	TypeSuggest              = "suggest"
	TypeWaiting              = "waiting"
	TypeMatched              = "matched"
	TypeState                = "state"
	TypeBotMove              = "botMove"
	TypeSuggestion           = "suggestion"
	TypeGameOver             = "gameOver"
	TypeError                = "error"
	TypeOpponentDisconnected = "opponentDisconnected"
	TypeOpponentReconnected  = "opponentReconnected"
)

// Message represents a WebSocket message sent to clients
type Message struct {
	Type              string           `json:"type"`
	GameID            string           `json:"gameId,omitempty"`
	Opponent          string           `json:"opponent,omitempty"`
	YourTurn          bool             `json:"yourTurn,omitempty"`
	Side              int              `json:"side,omitempty"`
	State             *game.GameState  `json:"state,omitempty"`
	Move              *game.Move       `json:"move,omitempty"`
	Search            *game.SearchInfo `json:"search,omitempty"`
	Difficulty        string           `json:"difficulty,omitempty"`
	Winner            string           `json:"winner,omitempty"`
	Reason            string           `json:"reason,omitempty"`
	Message           string           `json:"message,omitempty"`
	ReconnectDeadline string           `json:"reconnectDeadline,omitempty"`
}

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	Type       string `json:"type"`
	Row        int    `json:"row"`
	Col        int    `json:"col"`
	GameID     string `json:"gameId,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// Handler processes WebSocket messages
type Handler struct {
	hub        *Hub
	matchmaker *matchmaker.Matchmaker
}

// NewHandler creates a new message handler
func NewHandler(hub *Hub, mm *matchmaker.Matchmaker) *Handler {
	return &Handler{
		hub:        hub,
		matchmaker: mm,
	}
}

// HandleMessage processes an incoming message
func (h *Handler) HandleMessage(client *Client, data []byte) {
	var msg IncomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.hub.log.Debug("error parsing message", zap.String("username", client.username), zap.Error(err))
		client.sendMessage(Message{Type: TypeError, Message: "Invalid message format"})
		return
	}

	switch msg.Type {
	case TypeJoin:
		h.handleJoin(client, msg.Difficulty)
	case TypePlayBot:
		h.handlePlayBot(client, msg.Difficulty)
	case TypeMove:
		h.handleMove(client, msg.Row, msg.Col)
	case TypeReconnect:
		h.handleReconnect(client, msg.GameID)
	case TypeSuggest:
		h.handleSuggest(client, msg.Difficulty)
	default:
		client.sendMessage(Message{Type: TypeError, Message: "Unknown message type"})
	}
}

// parseDifficulty accepts an empty value, meaning the server default
func parseDifficulty(client *Client, s string) (game.Difficulty, bool) {
	if s == "" {
		return "", true
	}
	d, err := game.ParseDifficulty(s)
	if err != nil {
		client.sendMessage(Message{Type: TypeError, Message: err.Error()})
		return "", false
	}
	return d, true
}

// handleJoin handles a player joining the matchmaking queue
func (h *Handler) handleJoin(client *Client, difficulty string) {
	d, ok := parseDifficulty(client, difficulty)
	if !ok {
		return
	}

	// Check for existing game to reconnect
	if existing := h.matchmaker.GetGameByPlayer(client.username); existing != nil && !existing.IsOver() {
		h.handleReconnectToGame(client, existing)
		return
	}

	client.sendMessage(Message{
		Type:    TypeWaiting,
		Message: "Looking for opponent...",
	})

	gameChan, err := h.matchmaker.JoinQueue(client.username, d)
	if errors.Is(err, matchmaker.ErrAlreadyQueued) {
		// Requeue so this connection, not the earlier one, receives the
		// match. Leaving closes the earlier channel and ends its waiter.
		h.matchmaker.LeaveQueue(client.username)
		gameChan, err = h.matchmaker.JoinQueue(client.username, d)
	}
	if err != nil {
		client.sendMessage(Message{Type: TypeError, Message: err.Error()})
		return
	}

	// Wait for match in goroutine
	go func() {
		g, ok := <-gameChan
		if !ok || g == nil {
			return
		}
		h.startGame(client, g)
	}()
}

// handlePlayBot starts a bot game without waiting in the queue
func (h *Handler) handlePlayBot(client *Client, difficulty string) {
	d, ok := parseDifficulty(client, difficulty)
	if !ok {
		return
	}

	g, err := h.matchmaker.CreateBotGame(client.username, d)
	if errors.Is(err, matchmaker.ErrAlreadyPlaying) {
		h.handleReconnectToGame(client, h.matchmaker.GetGameByPlayer(client.username))
		return
	}
	if err != nil {
		client.sendMessage(Message{Type: TypeError, Message: err.Error()})
		return
	}
	h.startGame(client, g)
}

// startGame attaches the client to g and tells it who it plays against
func (h *Handler) startGame(client *Client, g *game.Game) {
	h.hub.RegisterToGame(g.ID, client)
	client.sendMessage(matchedMessage(g, client.username))
}

func matchedMessage(g *game.Game, username string) Message {
	state := g.GetState()
	side := g.GetPlayerByUsername(username)

	opponent := state.Player2
	if side == game.PlayerO {
		opponent = state.Player1
	}

	return Message{
		Type:       TypeMatched,
		GameID:     g.ID,
		Opponent:   opponent,
		YourTurn:   state.Status == game.StatusPlaying && state.CurrentTurn == int(side),
		Side:       int(side),
		Difficulty: string(state.Difficulty),
		State:      state,
	}
}

// currentGame returns the client's game, reporting errors to the client
func (h *Handler) currentGame(client *Client) (*game.Game, game.Cell, bool) {
	gameID := client.GameID()
	if gameID == "" {
		client.sendMessage(Message{Type: TypeError, Message: "Not in a game"})
		return nil, game.Empty, false
	}

	g := h.matchmaker.GetGame(gameID)
	if g == nil {
		client.sendMessage(Message{Type: TypeError, Message: game.ErrGameNotFound.Error()})
		return nil, game.Empty, false
	}

	side := g.GetPlayerByUsername(client.username)
	if side == game.Empty {
		client.sendMessage(Message{Type: TypeError, Message: game.ErrPlayerNotFound.Error()})
		return nil, game.Empty, false
	}
	return g, side, true
}

// handleMove handles a player making a move
func (h *Handler) handleMove(client *Client, row, col int) {
	g, side, ok := h.currentGame(client)
	if !ok {
		return
	}

	if err := g.MakeMove(side, row, col); err != nil {
		client.sendMessage(Message{Type: TypeError, Message: err.Error()})
		return
	}
	if h.hub.observer != nil {
		h.hub.observer.MovePlayed(g, client.username, game.Move{Row: row, Col: col})
	}

	h.hub.BroadcastGameState(g)

	if g.IsOver() {
		h.hub.finishGame(g)
		return
	}

	if g.IsBotTurn() {
		go h.hub.HandleBotMove(g)
	}
}

// handleSuggest sends the client a hint for its next move
func (h *Handler) handleSuggest(client *Client, difficulty string) {
	d, ok := parseDifficulty(client, difficulty)
	if !ok {
		return
	}
	if d == "" {
		d = game.DifficultyHard
	}

	g, side, ok := h.currentGame(client)
	if !ok {
		return
	}
	if g.IsOver() || g.GetState().CurrentTurn != int(side) {
		client.sendMessage(Message{Type: TypeError, Message: game.ErrNotYourTurn.Error()})
		return
	}

	decision, found := g.Suggest(d)
	if !found {
		client.sendMessage(Message{Type: TypeError, Message: game.ErrNoMove.Error()})
		return
	}
	client.sendMessage(Message{
		Type:       TypeSuggestion,
		GameID:     g.ID,
		Move:       &decision.Move,
		Search:     &decision.Search,
		Difficulty: string(d),
	})
}

// handleReconnect handles a player trying to reconnect to a game
func (h *Handler) handleReconnect(client *Client, gameID string) {
	g := h.matchmaker.GetGame(gameID)
	if g == nil {
		// Try to find by player
		g = h.matchmaker.GetGameByPlayer(client.username)
	}

	if g == nil {
		client.sendMessage(Message{Type: TypeError, Message: game.ErrGameNotFound.Error()})
		return
	}

	h.handleReconnectToGame(client, g)
}

// handleReconnectToGame handles reconnection to a specific game
func (h *Handler) handleReconnectToGame(client *Client, g *game.Game) {
	if g == nil {
		client.sendMessage(Message{Type: TypeError, Message: game.ErrGameNotFound.Error()})
		return
	}

	side := g.GetPlayerByUsername(client.username)
	if side == game.Empty {
		client.sendMessage(Message{Type: TypeError, Message: "Not a player in this game"})
		return
	}

	state := g.GetState()
	switch {
	case state.Status == game.StatusFinished:
		client.sendMessage(Message{Type: TypeError, Message: "Game has already ended"})
		return
	case state.Status == game.StatusDisconnect:
		if !g.PlayerReconnected(side) {
			client.sendMessage(Message{Type: TypeError, Message: "Reconnection failed"})
			return
		}
		h.hub.SendToClient(opponentOf(g, side), Message{Type: TypeOpponentReconnected, GameID: g.ID})
	}

	// A still playing game only needs the new connection attached
	h.startGame(client, g)

	if g.IsBotTurn() {
		go h.hub.HandleBotMove(g)
	}
}
