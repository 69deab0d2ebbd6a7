package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gomoku/internal/game"
	"github.com/gomoku/internal/matchmaker"
	"github.com/gomoku/internal/storage"
	"go.uber.org/zap"
)

type fakeStore struct {
	cleared bool
	err     error
}

func (s *fakeStore) GetLeaderboard(context.Context, int) ([]storage.LeaderboardEntry, error) {
	return []storage.LeaderboardEntry{{Rank: 1, Username: "alice", Wins: 3, Games: 4, WinRate: 75}}, s.err
}

func (s *fakeStore) GetPlayerStats(_ context.Context, username string) (*storage.PlayerStats, error) {
	return &storage.PlayerStats{Username: username, Wins: 2}, s.err
}

func (s *fakeStore) GetAnalytics(context.Context) (*storage.GameAnalytics, error) {
	return &storage.GameAnalytics{TotalGames: 7}, s.err
}

func (s *fakeStore) ClearAllGames(context.Context) error {
	s.cleared = true
	return s.err
}

type countingObserver struct {
	moves, bots, ends int
}

func (o *countingObserver) GameStarted(*game.Game)                   {}
func (o *countingObserver) MovePlayed(*game.Game, string, game.Move) { o.moves++ }
func (o *countingObserver) BotMoved(*game.Game, game.Decision)       { o.bots++ }
func (o *countingObserver) GameEnded(*game.Game)                     { o.ends++ }

func newRouter(store Store, observer *countingObserver) (http.Handler, *matchmaker.Matchmaker) {
	mm := matchmaker.NewMatchmaker(matchmaker.Options{Timeout: time.Minute}, zap.NewNop())
	opts := Options{Matchmaker: mm, Difficulty: game.DifficultyMedium, Log: zap.NewNop()}
	if store != nil {
		opts.Store = store
	}
	if observer != nil {
		opts.Observer = observer
	}

	r := chi.NewRouter()
	r.Route("/api", NewHandlers(opts).RegisterRoutes)
	return r, mm
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, &buf))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestPersistenceEndpointsWithoutStore(t *testing.T) {
	r, _ := newRouter(nil, nil)
	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/api/leaderboard"},
		{http.MethodDelete, "/api/leaderboard"},
		{http.MethodGet, "/api/stats/alice"},
	} {
		if rec := do(t, r, tc.method, tc.target, nil); rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s: expected 503, got %d", tc.method, tc.target, rec.Code)
		}
	}

	rec := do(t, r, http.MethodGet, "/api/analytics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected analytics to work without a store, got %d", rec.Code)
	}
	var body map[string]any
	decode(t, rec, &body)
	if _, ok := body["database"]; ok {
		t.Fatalf("expected no database section without a store")
	}
}

func TestPersistenceEndpointsWithStore(t *testing.T) {
	store := &fakeStore{}
	r, _ := newRouter(store, nil)

	rec := do(t, r, http.MethodGet, "/api/leaderboard", nil)
	var entries []storage.LeaderboardEntry
	decode(t, rec, &entries)
	if rec.Code != http.StatusOK || len(entries) != 1 || entries[0].Username != "alice" {
		t.Fatalf("unexpected leaderboard %d %+v", rec.Code, entries)
	}

	rec = do(t, r, http.MethodGet, "/api/stats/bob", nil)
	var stats storage.PlayerStats
	decode(t, rec, &stats)
	if stats.Username != "bob" {
		t.Fatalf("expected stats for bob, got %+v", stats)
	}

	if rec := do(t, r, http.MethodDelete, "/api/leaderboard", nil); rec.Code != http.StatusOK || !store.cleared {
		t.Fatalf("expected leaderboard to be cleared, got %d", rec.Code)
	}

	store.err = errors.New("db down")
	if rec := do(t, r, http.MethodGet, "/api/analytics", nil); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on store error, got %d", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	r, mm := newRouter(nil, nil)
	if _, err := mm.CreateBotGame("alice", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := do(t, r, http.MethodGet, "/api/status", nil)
	var body map[string]any
	decode(t, rec, &body)
	if body["status"] != "ok" || body["activeGames"] != float64(1) {
		t.Fatalf("unexpected status %+v", body)
	}
}

func TestBotGameOverHTTP(t *testing.T) {
	observer := &countingObserver{}
	r, _ := newRouter(nil, observer)

	rec := do(t, r, http.MethodPost, "/api/games", CreateGameRequest{Username: "alice", Difficulty: "hard"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var state game.GameState
	decode(t, rec, &state)
	if state.Difficulty != game.DifficultyHard || !state.IsVsBot {
		t.Fatalf("unexpected state %+v", state)
	}

	if rec := do(t, r, http.MethodPost, "/api/games", CreateGameRequest{Username: "alice"}); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a second game, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodGet, "/api/games/"+state.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodPost, "/api/games/"+state.ID+"/moves", MoveRequest{Username: "alice", Row: 7, Col: 7})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp MoveResponse
	decode(t, rec, &resp)
	if resp.BotMove == nil || resp.BotMove.Search.NodesSearched == 0 {
		t.Fatalf("expected a bot reply with diagnostics, got %+v", resp.BotMove)
	}
	if resp.State.MoveCount != 2 || resp.State.CurrentTurn != int(game.PlayerX) {
		t.Fatalf("unexpected state after reply %+v", resp.State)
	}
	if observer.moves != 1 || observer.bots != 1 || observer.ends != 0 {
		t.Fatalf("unexpected observer counts %+v", observer)
	}

	rec = do(t, r, http.MethodPost, "/api/games/"+state.ID+"/moves", MoveRequest{Username: "alice", Row: 7, Col: 7})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for an occupied cell, got %d", rec.Code)
	}
	rec = do(t, r, http.MethodPost, "/api/games/"+state.ID+"/moves", MoveRequest{Username: "alice", Row: -1, Col: 7})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 off the board, got %d", rec.Code)
	}
	rec = do(t, r, http.MethodPost, "/api/games/"+state.ID+"/moves", MoveRequest{Username: "mallory", Row: 0, Col: 0})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a stranger, got %d", rec.Code)
	}
}

func TestGameLookupErrors(t *testing.T) {
	r, _ := newRouter(nil, nil)
	if rec := do(t, r, http.MethodGet, "/api/games/not-a-uuid", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/api/games/6f1c1c9e-4f7a-4c55-9a43-2f0d5d1b1a11", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/api/games", CreateGameRequest{Username: "BOT"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected the bot name to be rejected, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/api/games", CreateGameRequest{Username: "alice", Difficulty: "godlike"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected an unknown difficulty to be rejected, got %d", rec.Code)
	}
}

func emptyBoard(size int) [][]int {
	rows := make([][]int, size)
	for i := range rows {
		rows[i] = make([]int, size)
	}
	return rows
}

func TestSuggest(t *testing.T) {
	r, _ := newRouter(nil, nil)

	board := emptyBoard(15)
	for c := 0; c < 4; c++ {
		board[3][c] = int(game.PlayerX)
	}
	board[10][10] = int(game.PlayerO)

	rec := do(t, r, http.MethodPost, "/api/suggest", SuggestRequest{Board: board, Player: 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp SuggestResponse
	decode(t, rec, &resp)
	if resp.Move == nil || *resp.Move != (game.Move{Row: 3, Col: 4}) {
		t.Fatalf("expected the block at (3, 4), got %+v", resp.Move)
	}
	if resp.Difficulty != game.DifficultyHard {
		t.Fatalf("expected hard by default, got %s", resp.Difficulty)
	}
}

func TestSuggestFullBoard(t *testing.T) {
	r, _ := newRouter(nil, nil)
	board := emptyBoard(5)
	for row := range board {
		for col := range board[row] {
			board[row][col] = 1 + (row/2+col)%2
		}
	}

	rec := do(t, r, http.MethodPost, "/api/suggest", SuggestRequest{Board: board, Player: 1, Difficulty: "medium"})
	var resp SuggestResponse
	decode(t, rec, &resp)
	if rec.Code != http.StatusOK || resp.Move != nil {
		t.Fatalf("expected a null move on a full board, got %d %+v", rec.Code, resp.Move)
	}
}

func TestSuggestValidation(t *testing.T) {
	r, _ := newRouter(nil, nil)
	cases := map[string]SuggestRequest{
		"ragged board":   {Board: [][]int{{0, 0}, {0}}, Player: 1},
		"bad cell":       {Board: func() [][]int { b := emptyBoard(15); b[0][0] = 7; return b }(), Player: 1},
		"too small":      {Board: emptyBoard(4), Player: 1},
		"too large":      {Board: emptyBoard(game.MaxBoardSize + 1), Player: 1},
		"bad player":     {Board: emptyBoard(15), Player: 3},
		"bad difficulty": {Board: emptyBoard(15), Player: 1, Difficulty: "godlike"},
	}
	for name, req := range cases {
		if rec := do(t, r, http.MethodPost, "/api/suggest", req); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, rec.Code)
		}
	}
}

func TestSuggestRejectsLargeBoards(t *testing.T) {
	r, _ := newRouter(nil, nil)

	board := emptyBoard(700)
	board[350][350] = int(game.PlayerX)
	rec := do(t, r, http.MethodPost, "/api/suggest", SuggestRequest{Board: board, Player: 2, Difficulty: "hard"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a 700x700 board, got %d", rec.Code)
	}

	// a short row list with a huge body is cut off by the body limit
	huge := [][]int{make([]int, 100000)}
	rec = do(t, r, http.MethodPost, "/api/suggest", SuggestRequest{Board: huge, Player: 2})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an oversized body, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodPost, "/api/suggest", SuggestRequest{Board: emptyBoard(game.MaxBoardSize), Player: 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected the largest allowed board to be accepted, got %d: %s", rec.Code, rec.Body.String())
	}
}
