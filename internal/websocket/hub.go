package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gomoku/internal/game"
	"github.com/gomoku/internal/matchmaker"
	"github.com/gomoku/internal/recorder"
	"go.uber.org/zap"
)

// HubOptions tunes the timing of live games
type HubOptions struct {
	// BotMoveDelay is waited before the bot replies so its moves feel natural
	BotMoveDelay time.Duration
	// ReconnectWindow is how long a disconnected player has to come back
	ReconnectWindow time.Duration
	// CleanupDelay keeps finished games addressable for late messages
	CleanupDelay time.Duration
	// AllowedOrigins for websocket upgrades; "*" allows all
	AllowedOrigins []string
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by username
	clients map[string]*Client

	// Clients by game ID
	gameClients map[string]map[string]*Client

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed once Run has returned
	done chan struct{}

	matchmaker *matchmaker.Matchmaker
	observer   recorder.Observer
	opts       HubOptions
	log        *zap.Logger

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(mm *matchmaker.Matchmaker, observer recorder.Observer, opts HubOptions, log *zap.Logger) *Hub {
	if opts.ReconnectWindow <= 0 {
		opts.ReconnectWindow = game.DefaultReconnectWindow
	}
	if opts.CleanupDelay <= 0 {
		opts.CleanupDelay = 5 * time.Second
	}
	return &Hub{
		clients:     make(map[string]*Client),
		gameClients: make(map[string]map[string]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		matchmaker:  mm,
		observer:    observer,
		opts:        opts,
		log:         log,
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.mu.Lock()
			current, ok := h.clients[client.username]
			if ok && current == client {
				delete(h.clients, client.username)
			}
			h.mu.Unlock()
			client.close()
			h.log.Info("client unregistered", zap.String("username", client.username))

			if !ok || current == client {
				h.handleDisconnect(client)
			}

		case <-ctx.Done():
			h.mu.Lock()
			for _, client := range h.clients {
				client.close()
			}
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			return nil
		}
	}
}

// registerClient hands a new connection to the hub. It returns false once
// the hub has stopped.
func (h *Hub) registerClient(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// unregisterClient reports a closed connection to the hub
func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.close()
	}
}

// addClient makes client the live connection for its username
func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	if old, ok := h.clients[client.username]; ok && old != client {
		// a newer connection replaces the old one
		old.close()
	}
	h.clients[client.username] = client
	h.mu.Unlock()
	h.log.Info("client registered", zap.String("username", client.username))
}

// handleDisconnect handles a player disconnect
func (h *Hub) handleDisconnect(client *Client) {
	gameID := client.GameID()
	if gameID == "" {
		// Player was not in a game, just leave queue
		h.matchmaker.LeaveQueue(client.username)
		return
	}

	g := h.matchmaker.GetGame(gameID)
	if g == nil || g.IsOver() {
		return
	}

	side := g.GetPlayerByUsername(client.username)
	if side == game.Empty {
		return
	}

	// The bot does not wait, leaving a bot game forfeits it
	if g.GetState().IsVsBot {
		g.Forfeit(side)
		h.finishGame(g)
		return
	}

	g.PlayerDisconnected(side)
	h.notifyOpponentDisconnected(g, side)

	time.AfterFunc(h.opts.ReconnectWindow, func() {
		h.handleReconnectTimeout(g, side)
	})
}

// handleReconnectTimeout forfeits the game if the player did not come back
func (h *Hub) handleReconnectTimeout(g *game.Game, side game.Cell) {
	state := g.GetState()
	if state.Status != game.StatusDisconnect || g.DisconnectedSide() != side {
		return
	}

	g.Forfeit(side)
	h.log.Info("reconnect window expired, game forfeited",
		zap.String("game_id", g.ID), zap.Stringer("side", side))
	h.finishGame(g)
}

// notifyOpponentDisconnected notifies the opponent about disconnect
func (h *Hub) notifyOpponentDisconnected(g *game.Game, side game.Cell) {
	deadline := time.Now().Add(h.opts.ReconnectWindow)

	h.SendToClient(opponentOf(g, side), Message{
		Type:              TypeOpponentDisconnected,
		GameID:            g.ID,
		ReconnectDeadline: deadline.Format(time.RFC3339),
	})
}

// opponentOf returns the username playing against side
func opponentOf(g *game.Game, side game.Cell) string {
	state := g.GetState()
	if side == game.PlayerX {
		return state.Player2
	}
	return state.Player1
}

// RegisterToGame adds a client to a game's client list
func (h *Hub) RegisterToGame(gameID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.gameClients[gameID] == nil {
		h.gameClients[gameID] = make(map[string]*Client)
	}
	h.gameClients[gameID][client.username] = client
	client.setGameID(gameID)
}

func (h *Hub) clientsOf(gameID string) map[string]*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make(map[string]*Client, len(h.gameClients[gameID]))
	for k, v := range h.gameClients[gameID] {
		clients[k] = v
	}
	return clients
}

// BroadcastGameState sends game state to all players in a game
func (h *Hub) BroadcastGameState(g *game.Game) {
	h.broadcastToGame(g.ID, Message{
		Type:  TypeState,
		State: g.GetState(),
	})
}

// broadcastToGame sends a message to all clients in a game
func (h *Hub) broadcastToGame(gameID string, msg Message) {
	clients := h.clientsOf(gameID)
	h.log.Debug("broadcast",
		zap.String("type", msg.Type),
		zap.String("game_id", gameID),
		zap.Int("clients", len(clients)))

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("error marshaling message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	for _, client := range clients {
		client.sendRaw(msg.Type, data)
	}
}

// SendToClient sends a message to a specific client
func (h *Hub) SendToClient(username string, msg Message) {
	if client := h.GetClient(username); client != nil {
		client.sendMessage(msg)
	}
}

// finishGame announces the result and hands the game to the observer
func (h *Hub) finishGame(g *game.Game) {
	state := g.GetState()
	h.broadcastToGame(g.ID, Message{
		Type:   TypeGameOver,
		Winner: state.Winner,
		Reason: state.Result,
		State:  state,
	})
	h.handleGameEnd(g)
}

// handleGameEnd processes game completion
func (h *Hub) handleGameEnd(g *game.Game) {
	if h.observer != nil {
		h.observer.GameEnded(g)
	}

	// Clean up after a delay
	time.AfterFunc(h.opts.CleanupDelay, func() {
		h.mu.Lock()
		delete(h.gameClients, g.ID)
		h.mu.Unlock()
		h.matchmaker.RemoveGame(g.ID)
	})
}

// HandleBotMove lets the bot reply and broadcasts its move with the search
// diagnostics
func (h *Hub) HandleBotMove(g *game.Game) {
	if !g.IsBotTurn() {
		return
	}

	if h.opts.BotMoveDelay > 0 {
		time.Sleep(h.opts.BotMoveDelay)
	}

	decision, err := g.MakeBotMove()
	if err != nil {
		h.log.Warn("bot move failed", zap.String("game_id", g.ID), zap.Error(err))
		return
	}
	h.log.Debug("bot moved",
		zap.String("game_id", g.ID),
		zap.Stringer("move", decision.Move),
		zap.String("difficulty", string(decision.Difficulty)),
		zap.Int("nodes", decision.Search.NodesSearched))

	if h.observer != nil {
		h.observer.BotMoved(g, decision)
	}

	search := decision.Search
	h.broadcastToGame(g.ID, Message{
		Type:       TypeBotMove,
		State:      g.GetState(),
		Move:       &decision.Move,
		Search:     &search,
		Difficulty: string(decision.Difficulty),
	})

	if g.IsOver() {
		h.finishGame(g)
	}
}

// GetClient returns a client by username
func (h *Hub) GetClient(username string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[username]
}
