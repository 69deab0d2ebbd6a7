package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gomoku/internal/game"
	"go.uber.org/zap"
)

type fakeEmitter struct {
	mu     sync.Mutex
	events []string
	nums   []int
}

func (e *fakeEmitter) record(event string, num int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	e.nums = append(e.nums, num)
}

func (e *fakeEmitter) EmitGameStart(*game.Game) { e.record("start", 0) }
func (e *fakeEmitter) EmitMove(_ *game.Game, _ string, _, _, moveNum int) {
	e.record("move", moveNum)
}
func (e *fakeEmitter) EmitBotDecision(_ *game.Game, moveNum int, _ game.Decision) {
	e.record("decision", moveNum)
}
func (e *fakeEmitter) EmitGameEnd(*game.Game) { e.record("end", 0) }

type fakeStore struct {
	games     []string
	decisions []int
	err       error
}

func (s *fakeStore) SaveGame(_ context.Context, g *game.Game) error {
	s.games = append(s.games, g.ID)
	return s.err
}

func (s *fakeStore) SaveDecision(_ context.Context, _ string, moveNumber int, _ game.Decision) error {
	s.decisions = append(s.decisions, moveNumber)
	return s.err
}

func TestRecorderForwardsLifecycle(t *testing.T) {
	emitter := &fakeEmitter{}
	store := &fakeStore{}
	r := New(emitter, store, zap.NewNop())

	g := game.NewGame("alice")
	g.AddPlayer2(game.BotUsername, true, game.DifficultyMedium)
	r.GameStarted(g)

	if err := g.MakeMove(game.PlayerX, 7, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.MovePlayed(g, "alice", game.Move{Row: 7, Col: 7})

	d, err := g.MakeBotMove()
	if err != nil {
		t.Fatalf("bot move failed: %v", err)
	}
	r.BotMoved(g, d)

	g.Forfeit(game.PlayerX)
	r.GameEnded(g)

	want := []string{"start", "move", "move", "decision", "end"}
	if len(emitter.events) != len(want) {
		t.Fatalf("expected events %v, got %v", want, emitter.events)
	}
	for i := range want {
		if emitter.events[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, emitter.events)
		}
	}
	if emitter.nums[1] != 1 || emitter.nums[3] != 2 {
		t.Fatalf("unexpected move numbers %v", emitter.nums)
	}
	if len(store.decisions) != 1 || store.decisions[0] != 2 {
		t.Fatalf("expected decision for move 2, got %v", store.decisions)
	}
	if len(store.games) != 1 || store.games[0] != g.ID {
		t.Fatalf("expected the game to be saved, got %v", store.games)
	}
}

func TestRecorderWithoutSinks(t *testing.T) {
	r := New(nil, nil, zap.NewNop())
	g := game.NewGame("alice")
	g.AddPlayer2("bob", false, "")

	// must not panic
	r.GameStarted(g)
	r.MovePlayed(g, "alice", game.Move{})
	r.BotMoved(g, game.Decision{})
	r.GameEnded(g)
}

func TestRecorderSurvivesStoreErrors(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	r := New(&fakeEmitter{}, store, zap.NewNop())
	g := game.NewGame("alice")
	g.AddPlayer2("bob", false, "")

	r.GameEnded(g)
	if len(store.games) != 1 {
		t.Fatalf("expected a save attempt")
	}
}
