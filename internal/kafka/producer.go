package kafka

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/gomoku/internal/config"
	"github.com/gomoku/internal/game"
	"go.uber.org/zap"
)

// EventType represents the type of game event
type EventType string

const (
	EventGameStart   EventType = "game_start"
	EventMove        EventType = "move"
	EventBotDecision EventType = "bot_decision"
	EventGameEnd     EventType = "game_end"
)

// GameEvent represents a game event for analytics
type GameEvent struct {
	Type      EventType `json:"type"`
	GameID    string    `json:"gameId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// GameStartData contains data for game start events
type GameStartData struct {
	Player1    string `json:"player1"`
	Player2    string `json:"player2"`
	IsVsBot    bool   `json:"isVsBot"`
	Difficulty string `json:"difficulty,omitempty"`
	BoardSize  int    `json:"boardSize"`
}

// MoveData contains data for move events
type MoveData struct {
	Player  string `json:"player"`
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	MoveNum int    `json:"moveNum"`
}

// BotDecisionData contains the search diagnostics of one bot move
type BotDecisionData struct {
	Difficulty     string `json:"difficulty"`
	Row            int    `json:"row"`
	Col            int    `json:"col"`
	MoveNum        int    `json:"moveNum"`
	BestScore      int    `json:"bestScore"`
	NodesSearched  int    `json:"nodesSearched"`
	Depth          int    `json:"depth"`
	CandidateCount int    `json:"candidateCount"`
}

// GameEndData contains data for game end events
type GameEndData struct {
	Player1         string `json:"player1"`
	Player2         string `json:"player2"`
	Winner          string `json:"winner"`
	Result          string `json:"result"`
	DurationSeconds int    `json:"durationSeconds"`
	TotalMoves      int    `json:"totalMoves"`
	IsVsBot         bool   `json:"isVsBot"`
	Difficulty      string `json:"difficulty,omitempty"`
}

// Emitter publishes game events. Producer is the Kafka implementation;
// a disabled Producer silently drops everything.
type Emitter interface {
	EmitGameStart(g *game.Game)
	EmitMove(g *game.Game, player string, row, col, moveNum int)
	EmitBotDecision(g *game.Game, moveNum int, d game.Decision)
	EmitGameEnd(g *game.Game)
}

// Producer handles Kafka event production
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	enabled  bool
	log      *zap.Logger
}

// NewProducer creates a new Kafka producer. When no broker is reachable the
// returned producer is disabled and analytics are skipped.
func NewProducer(cfg config.Config, log *zap.Logger) *Producer {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(cfg.KafkaBrokers, saramaConfig)
	if err != nil {
		log.Warn("Kafka producer not available, analytics disabled",
			zap.Strings("brokers", cfg.KafkaBrokers), zap.Error(err))
		return &Producer{topic: cfg.KafkaTopic, log: log}
	}

	log.Info("Kafka producer connected", zap.String("topic", cfg.KafkaTopic))
	return newProducer(producer, cfg.KafkaTopic, log)
}

func newProducer(producer sarama.SyncProducer, topic string, log *zap.Logger) *Producer {
	return &Producer{producer: producer, topic: topic, enabled: true, log: log}
}

// EmitGameStart emits a game start event
func (p *Producer) EmitGameStart(g *game.Game) {
	if !p.enabled {
		return
	}

	state := g.GetState()
	p.send(GameEvent{
		Type:      EventGameStart,
		GameID:    state.ID,
		Timestamp: time.Now(),
		Data: GameStartData{
			Player1:    state.Player1,
			Player2:    state.Player2,
			IsVsBot:    state.IsVsBot,
			Difficulty: string(state.Difficulty),
			BoardSize:  state.BoardSize,
		},
	})
}

// EmitMove emits a move event
func (p *Producer) EmitMove(g *game.Game, player string, row, col, moveNum int) {
	if !p.enabled {
		return
	}

	p.send(GameEvent{
		Type:      EventMove,
		GameID:    g.ID,
		Timestamp: time.Now(),
		Data: MoveData{
			Player:  player,
			Row:     row,
			Col:     col,
			MoveNum: moveNum,
		},
	})
}

// EmitBotDecision emits the diagnostics of a bot move
func (p *Producer) EmitBotDecision(g *game.Game, moveNum int, d game.Decision) {
	if !p.enabled {
		return
	}

	p.send(GameEvent{
		Type:      EventBotDecision,
		GameID:    g.ID,
		Timestamp: time.Now(),
		Data: BotDecisionData{
			Difficulty:     string(d.Difficulty),
			Row:            d.Move.Row,
			Col:            d.Move.Col,
			MoveNum:        moveNum,
			BestScore:      d.Search.BestScore,
			NodesSearched:  d.Search.NodesSearched,
			Depth:          d.Search.Depth,
			CandidateCount: d.Search.CandidateCount,
		},
	})
}

// EmitGameEnd emits a game end event
func (p *Producer) EmitGameEnd(g *game.Game) {
	if !p.enabled {
		return
	}

	state := g.GetState()
	p.send(GameEvent{
		Type:      EventGameEnd,
		GameID:    state.ID,
		Timestamp: time.Now(),
		Data: GameEndData{
			Player1:         state.Player1,
			Player2:         state.Player2,
			Winner:          state.Winner,
			Result:          state.Result,
			DurationSeconds: g.GetDuration(),
			TotalMoves:      state.MoveCount,
			IsVsBot:         state.IsVsBot,
			Difficulty:      string(state.Difficulty),
		},
	})
}

// send sends an event to Kafka, keyed by game so a game's events stay ordered
func (p *Producer) send(event GameEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.log.Error("error marshaling event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.GameID),
		Value: sarama.ByteEncoder(data),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		p.log.Error("error sending event to Kafka",
			zap.String("type", string(event.Type)),
			zap.String("game_id", event.GameID),
			zap.Error(err))
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// IsEnabled returns whether Kafka is enabled
func (p *Producer) IsEnabled() bool {
	return p.enabled
}
