package recorder

import (
	"context"
	"time"

	"github.com/gomoku/internal/game"
	"github.com/gomoku/internal/kafka"
	"go.uber.org/zap"
)

// Observer is told about everything that happens in a live game
type Observer interface {
	GameStarted(g *game.Game)
	MovePlayed(g *game.Game, player string, mv game.Move)
	BotMoved(g *game.Game, d game.Decision)
	GameEnded(g *game.Game)
}

// Store persists finished games and bot decisions
type Store interface {
	SaveGame(ctx context.Context, g *game.Game) error
	SaveDecision(ctx context.Context, gameID string, moveNumber int, d game.Decision) error
}

// Recorder forwards game lifecycle events to Kafka and the database.
// Either sink may be absent.
type Recorder struct {
	emitter kafka.Emitter
	store   Store
	timeout time.Duration
	log     *zap.Logger
}

// New creates a Recorder. A nil store runs in memory-only mode.
func New(emitter kafka.Emitter, store Store, log *zap.Logger) *Recorder {
	return &Recorder{
		emitter: emitter,
		store:   store,
		timeout: 5 * time.Second,
		log:     log,
	}
}

// GameStarted records a new game
func (r *Recorder) GameStarted(g *game.Game) {
	if r.emitter != nil {
		r.emitter.EmitGameStart(g)
	}
}

// MovePlayed records a human move
func (r *Recorder) MovePlayed(g *game.Game, player string, mv game.Move) {
	if r.emitter != nil {
		r.emitter.EmitMove(g, player, mv.Row, mv.Col, len(g.MovesSnapshot()))
	}
}

// BotMoved records a bot move and its search diagnostics
func (r *Recorder) BotMoved(g *game.Game, d game.Decision) {
	moveNum := len(g.MovesSnapshot())
	if r.emitter != nil {
		r.emitter.EmitMove(g, game.BotUsername, d.Move.Row, d.Move.Col, moveNum)
		r.emitter.EmitBotDecision(g, moveNum, d)
	}
	if r.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.SaveDecision(ctx, g.ID, moveNum, d); err != nil {
		r.log.Error("error saving bot decision", zap.String("game_id", g.ID), zap.Error(err))
	}
}

// GameEnded records a finished game
func (r *Recorder) GameEnded(g *game.Game) {
	if r.emitter != nil {
		r.emitter.EmitGameEnd(g)
	}

	state := g.GetState()
	r.log.Info("game finished",
		zap.String("game_id", state.ID),
		zap.String("result", state.Result),
		zap.String("winner", state.Winner),
		zap.Int("moves", state.MoveCount))

	if r.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.SaveGame(ctx, g); err != nil {
		r.log.Error("error saving game", zap.String("game_id", g.ID), zap.Error(err))
	}
}
