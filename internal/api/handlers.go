package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gomoku/internal/game"
	"github.com/gomoku/internal/kafka"
	"github.com/gomoku/internal/matchmaker"
	"github.com/gomoku/internal/recorder"
	"github.com/gomoku/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence the API reads from
type Store interface {
	GetLeaderboard(ctx context.Context, limit int) ([]storage.LeaderboardEntry, error)
	GetPlayerStats(ctx context.Context, username string) (*storage.PlayerStats, error)
	GetAnalytics(ctx context.Context) (*storage.GameAnalytics, error)
	ClearAllGames(ctx context.Context) error
}

// Metrics exposes the realtime aggregates of the Kafka consumer
type Metrics interface {
	GetAverageGameDuration() float64
	GetMostFrequentWinner() string
	GetGamesPerHour() map[string]int
	GetMetrics() *kafka.AnalyticsMetrics
}

// Options holds API handler dependencies. Store and Metrics may be nil.
type Options struct {
	Store        Store
	Matchmaker   *matchmaker.Matchmaker
	Observer     recorder.Observer
	Metrics      Metrics
	KafkaEnabled bool
	// Difficulty used when a request does not name one
	Difficulty game.Difficulty
	// WinLength used for stateless suggestions
	WinLength int
	// MaxBoardSize caps the side length of posted boards
	MaxBoardSize int
	Log          *zap.Logger
}

// maxBodyBytes limits request bodies; a full board of the largest size fits
// well within it
const maxBodyBytes = 64 << 10

// Handlers holds API handler dependencies
type Handlers struct {
	opts Options
}

// NewHandlers creates a new API handlers instance
func NewHandlers(opts Options) *Handlers {
	if opts.Difficulty == "" {
		opts.Difficulty = game.DifficultyMedium
	}
	if opts.WinLength == 0 {
		opts.WinLength = game.DefaultWinLength
	}
	if opts.MaxBoardSize == 0 {
		opts.MaxBoardSize = game.MaxBoardSize
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Handlers{opts: opts}
}

// RegisterRoutes registers API routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/leaderboard", h.GetLeaderboard)
	r.Delete("/leaderboard", h.ClearLeaderboard)
	r.Get("/stats/{username}", h.GetPlayerStats)
	r.Get("/analytics", h.GetAnalytics)
	r.Get("/status", h.GetStatus)

	r.Post("/games", h.CreateGame)
	r.Get("/games/{id}", h.GetGame)
	r.Post("/games/{id}/moves", h.PlayMove)
	r.Post("/suggest", h.Suggest)
}

// requireStore answers 503 when the server runs without a database
func (h *Handlers) requireStore(w http.ResponseWriter) bool {
	if h.opts.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "persistence is disabled")
		return false
	}
	return true
}

// GetLeaderboard returns the top players
func (h *Handlers) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	entries, err := h.opts.Store.GetLeaderboard(r.Context(), 20)
	if err != nil {
		h.opts.Log.Error("error loading leaderboard", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get leaderboard")
		return
	}

	respondJSON(w, http.StatusOK, entries)
}

// ClearLeaderboard deletes all games and resets the leaderboard
func (h *Handlers) ClearLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	if err := h.opts.Store.ClearAllGames(r.Context()); err != nil {
		h.opts.Log.Error("error clearing leaderboard", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to clear leaderboard")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Leaderboard cleared successfully"})
}

// GetPlayerStats returns statistics for a specific player
func (h *Handlers) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(chi.URLParam(r, "username"))
	if username == "" {
		respondError(w, http.StatusBadRequest, "Username required")
		return
	}
	if !h.requireStore(w) {
		return
	}

	stats, err := h.opts.Store.GetPlayerStats(r.Context(), username)
	if err != nil {
		h.opts.Log.Error("error loading player stats", zap.String("username", username), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get player stats")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// GetAnalytics returns game analytics
func (h *Handlers) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"realtime": h.realtime(),
	}

	if h.opts.Store != nil {
		dbAnalytics, err := h.opts.Store.GetAnalytics(r.Context())
		if err != nil {
			h.opts.Log.Error("error loading analytics", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "Failed to get analytics")
			return
		}
		response["database"] = dbAnalytics
	}

	if h.opts.Metrics != nil {
		response["kafka"] = map[string]interface{}{
			"avgGameDuration":    h.opts.Metrics.GetAverageGameDuration(),
			"mostFrequentWinner": h.opts.Metrics.GetMostFrequentWinner(),
			"gamesPerHour":       h.opts.Metrics.GetGamesPerHour(),
			"metrics":            h.opts.Metrics.GetMetrics(),
		}
	}

	respondJSON(w, http.StatusOK, response)
}

func (h *Handlers) realtime() map[string]interface{} {
	return map[string]interface{}{
		"activeGames":    h.opts.Matchmaker.GetActiveGameCount(),
		"playersWaiting": h.opts.Matchmaker.GetWaitingCount(),
		"kafkaEnabled":   h.opts.KafkaEnabled,
		"persistence":    h.opts.Store != nil,
	}
}

// GetStatus returns server status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.realtime()
	status["status"] = "ok"
	respondJSON(w, http.StatusOK, status)
}

// CreateGameRequest starts a game against the bot
type CreateGameRequest struct {
	Username   string `json:"username"`
	Difficulty string `json:"difficulty"`
}

// CreateGame starts a bot game for the requesting player
func (h *Handlers) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || strings.EqualFold(req.Username, game.BotUsername) {
		respondError(w, http.StatusBadRequest, "Valid username required")
		return
	}

	difficulty, ok := h.difficulty(w, req.Difficulty)
	if !ok {
		return
	}

	g, err := h.opts.Matchmaker.CreateBotGame(req.Username, difficulty)
	if errors.Is(err, matchmaker.ErrAlreadyPlaying) {
		existing := h.opts.Matchmaker.GetGameByPlayer(req.Username)
		if existing == nil {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondJSON(w, http.StatusConflict, map[string]interface{}{
			"error": err.Error(),
			"state": existing.GetState(),
		})
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, g.GetState())
}

// lookupGame resolves the {id} URL parameter
func (h *Handlers) lookupGame(w http.ResponseWriter, r *http.Request) (*game.Game, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid game ID")
		return nil, false
	}

	g := h.opts.Matchmaker.GetGame(id)
	if g == nil {
		respondError(w, http.StatusNotFound, game.ErrGameNotFound.Error())
		return nil, false
	}
	return g, true
}

// GetGame returns the state of an active game
func (h *Handlers) GetGame(w http.ResponseWriter, r *http.Request) {
	g, ok := h.lookupGame(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, g.GetState())
}

// MoveRequest is a human move in a game
type MoveRequest struct {
	Username string `json:"username"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
}

// MoveResponse carries the new state and, in bot games, the bot's reply
type MoveResponse struct {
	State   *game.GameState `json:"state"`
	BotMove *game.Decision  `json:"botMove,omitempty"`
}

// PlayMove applies a human move and lets the bot answer
func (h *Handlers) PlayMove(w http.ResponseWriter, r *http.Request) {
	g, ok := h.lookupGame(w, r)
	if !ok {
		return
	}

	var req MoveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	side := g.GetPlayerByUsername(req.Username)
	if side == game.Empty {
		respondError(w, http.StatusForbidden, game.ErrPlayerNotFound.Error())
		return
	}

	if err := g.MakeMove(side, req.Row, req.Col); err != nil {
		respondError(w, moveErrorStatus(err), err.Error())
		return
	}
	h.observe(func(o recorder.Observer) { o.MovePlayed(g, req.Username, game.Move{Row: req.Row, Col: req.Col}) })

	var resp MoveResponse
	if !g.IsOver() && g.IsBotTurn() {
		decision, err := g.MakeBotMove()
		if err != nil {
			h.opts.Log.Error("bot move failed", zap.String("game_id", g.ID), zap.Error(err))
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.BotMove = &decision
		h.observe(func(o recorder.Observer) { o.BotMoved(g, decision) })
	}

	if g.IsOver() {
		h.observe(func(o recorder.Observer) { o.GameEnded(g) })
	}

	resp.State = g.GetState()
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) observe(fn func(recorder.Observer)) {
	if h.opts.Observer != nil {
		fn(h.opts.Observer)
	}
}

// moveErrorStatus maps a rejected move to an HTTP status
func moveErrorStatus(err error) int {
	switch {
	case errors.Is(err, game.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrCellOccupied),
		errors.Is(err, game.ErrNotYourTurn),
		errors.Is(err, game.ErrGameNotInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// SuggestRequest asks for a move on an arbitrary position
type SuggestRequest struct {
	Board      [][]int `json:"board"`
	Player     int     `json:"player"`
	Difficulty string  `json:"difficulty"`
}

// SuggestResponse is the chosen move, null when the board is full
type SuggestResponse struct {
	Move       *game.Move       `json:"move"`
	Difficulty game.Difficulty  `json:"difficulty"`
	Search     *game.SearchInfo `json:"search,omitempty"`
}

// Suggest runs the bot on a posted board without any game session
func (h *Handlers) Suggest(w http.ResponseWriter, r *http.Request) {
	var req SuggestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Board) > h.opts.MaxBoardSize {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("board size %d is above the maximum %d", len(req.Board), h.opts.MaxBoardSize))
		return
	}

	board, err := game.BoardFromSlice(req.Board)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if board.Size() < h.opts.WinLength {
		respondError(w, http.StatusBadRequest, "board is smaller than the win length")
		return
	}

	player := game.Cell(req.Player)
	if player != game.PlayerX && player != game.PlayerO {
		respondError(w, http.StatusBadRequest, "player must be 1 or 2")
		return
	}

	difficulty := game.DifficultyHard
	if req.Difficulty != "" {
		d, ok := h.difficulty(w, req.Difficulty)
		if !ok {
			return
		}
		difficulty = d
	}

	bot := game.NewBot(player, difficulty, game.WithRules(game.NewRules(h.opts.WinLength)))
	resp := SuggestResponse{Difficulty: difficulty}
	if decision, found := bot.SelectMove(board); found {
		resp.Move = &decision.Move
		resp.Search = &decision.Search
	}

	respondJSON(w, http.StatusOK, resp)
}

// difficulty parses a requested difficulty, defaulting to the configured one
func (h *Handlers) difficulty(w http.ResponseWriter, s string) (game.Difficulty, bool) {
	if s == "" {
		return h.opts.Difficulty, true
	}
	d, err := game.ParseDifficulty(s)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return d, true
}

// decodeJSON reads a request body of at most maxBodyBytes into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes a JSON error body
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
