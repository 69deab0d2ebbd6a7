package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/gomoku/internal/config"
	"github.com/gomoku/internal/game"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// AnalyticsMetrics holds aggregated analytics data
type AnalyticsMetrics struct {
	TotalGames    int64                       `json:"totalGames"`
	FinishedGames int64                       `json:"finishedGames"`
	TotalMoves    int64                       `json:"totalMoves"`
	BotGames      int64                       `json:"botGames"`
	TotalDuration int64                       `json:"totalDuration"`
	WinCounts     map[string]int              `json:"winCounts"`
	GamesPerHour  map[string]int              `json:"gamesPerHour"`
	GamesPerDay   map[string]int              `json:"gamesPerDay"`
	PlayerStats   map[string]*PlayerMetrics   `json:"playerStats"`
	Decisions     map[string]*DecisionMetrics `json:"decisions"`
	mu            sync.RWMutex
}

// PlayerMetrics holds per-player analytics
type PlayerMetrics struct {
	Wins          int   `json:"wins"`
	Losses        int   `json:"losses"`
	Draws         int   `json:"draws"`
	TotalGames    int   `json:"totalGames"`
	TotalMoves    int64 `json:"totalMoves"`
	TotalDuration int64 `json:"totalDuration"`
	AvgDuration   int64 `json:"avgDuration"`
}

// DecisionMetrics aggregates bot decisions for one difficulty
type DecisionMetrics struct {
	Count      int64   `json:"count"`
	TotalNodes int64   `json:"totalNodes"`
	MaxNodes   int     `json:"maxNodes"`
	AvgNodes   float64 `json:"avgNodes"`
}

func newMetrics() *AnalyticsMetrics {
	return &AnalyticsMetrics{
		WinCounts:    make(map[string]int),
		GamesPerHour: make(map[string]int),
		GamesPerDay:  make(map[string]int),
		PlayerStats:  make(map[string]*PlayerMetrics),
		Decisions:    make(map[string]*DecisionMetrics),
	}
}

// Consumer handles Kafka event consumption for analytics
type Consumer struct {
	consumer sarama.ConsumerGroup
	topic    string
	metrics  *AnalyticsMetrics
	log      *zap.Logger
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg config.Config, log *zap.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(cfg.KafkaBrokers, cfg.KafkaGroup, saramaConfig)
	if err != nil {
		return nil, err
	}

	c := newConsumer(cfg.KafkaTopic, log)
	c.consumer = group
	return c, nil
}

func newConsumer(topic string, log *zap.Logger) *Consumer {
	return &Consumer{topic: topic, metrics: newMetrics(), log: log}
}

// Run consumes events until ctx is cancelled
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("Kafka consumer started", zap.String("topic", c.topic))
	for {
		if err := c.consumer.Consume(ctx, []string{c.topic}, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.log.Error("consumer error", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Setup is called at the beginning of a new session
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is called at the end of a session
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a partition
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		c.processMessage(msg)
		session.MarkMessage(msg, "")
	}
	return nil
}

// processMessage handles a single event message
func (c *Consumer) processMessage(msg *sarama.ConsumerMessage) {
	var event GameEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.log.Warn("error unmarshaling event", zap.Int64("offset", msg.Offset), zap.Error(err))
		return
	}

	c.metrics.mu.Lock()
	defer c.metrics.mu.Unlock()

	var err error
	switch event.Type {
	case EventGameStart:
		err = c.handleGameStart(event)
	case EventMove:
		err = c.handleMove(event)
	case EventBotDecision:
		err = c.handleBotDecision(event)
	case EventGameEnd:
		err = c.handleGameEnd(event)
	default:
		c.log.Debug("ignoring event", zap.String("type", string(event.Type)))
	}
	if err != nil {
		c.log.Warn("error decoding event payload",
			zap.String("type", string(event.Type)),
			zap.String("game_id", event.GameID),
			zap.Error(err))
	}
}

// decodeData converts the generic JSON payload of an event into out
func decodeData(data any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(data)
}

func (c *Consumer) player(name string) *PlayerMetrics {
	stats := c.metrics.PlayerStats[name]
	if stats == nil {
		stats = &PlayerMetrics{}
		c.metrics.PlayerStats[name] = stats
	}
	return stats
}

// handleGameStart processes game start events
func (c *Consumer) handleGameStart(event GameEvent) error {
	var data GameStartData
	if err := decodeData(event.Data, &data); err != nil {
		return err
	}

	c.metrics.TotalGames++
	if data.IsVsBot {
		c.metrics.BotGames++
	}

	// Track games per hour and day
	c.metrics.GamesPerHour[event.Timestamp.Format("2006-01-02-15")]++
	c.metrics.GamesPerDay[event.Timestamp.Format("2006-01-02")]++

	if data.Player1 != "" {
		c.player(data.Player1).TotalGames++
	}
	if data.Player2 != "" && data.Player2 != game.BotUsername {
		c.player(data.Player2).TotalGames++
	}
	return nil
}

// handleMove processes move events
func (c *Consumer) handleMove(event GameEvent) error {
	var data MoveData
	if err := decodeData(event.Data, &data); err != nil {
		return err
	}

	c.metrics.TotalMoves++
	if data.Player != "" && data.Player != game.BotUsername {
		c.player(data.Player).TotalMoves++
	}
	return nil
}

// handleBotDecision processes bot decision events
func (c *Consumer) handleBotDecision(event GameEvent) error {
	var data BotDecisionData
	if err := decodeData(event.Data, &data); err != nil {
		return err
	}

	m := c.metrics.Decisions[data.Difficulty]
	if m == nil {
		m = &DecisionMetrics{}
		c.metrics.Decisions[data.Difficulty] = m
	}
	m.Count++
	m.TotalNodes += int64(data.NodesSearched)
	m.MaxNodes = max(m.MaxNodes, data.NodesSearched)
	m.AvgNodes = float64(m.TotalNodes) / float64(m.Count)
	return nil
}

// handleGameEnd processes game end events
func (c *Consumer) handleGameEnd(event GameEvent) error {
	var data GameEndData
	if err := decodeData(event.Data, &data); err != nil {
		return err
	}

	c.metrics.FinishedGames++
	c.metrics.TotalDuration += int64(data.DurationSeconds)
	if data.Winner != "" {
		c.metrics.WinCounts[data.Winner]++
	}

	for _, name := range []string{data.Player1, data.Player2} {
		if name == "" || name == game.BotUsername {
			continue
		}
		stats := c.player(name)
		switch {
		case data.Winner == "":
			stats.Draws++
		case data.Winner == name:
			stats.Wins++
		default:
			stats.Losses++
		}
		stats.TotalDuration += int64(data.DurationSeconds)
		if finished := stats.Wins + stats.Losses + stats.Draws; finished > 0 {
			stats.AvgDuration = stats.TotalDuration / int64(finished)
		}
	}
	return nil
}

// GetMetrics returns a copy of the current metrics
func (c *Consumer) GetMetrics() *AnalyticsMetrics {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	snapshot := newMetrics()
	snapshot.TotalGames = c.metrics.TotalGames
	snapshot.FinishedGames = c.metrics.FinishedGames
	snapshot.TotalMoves = c.metrics.TotalMoves
	snapshot.BotGames = c.metrics.BotGames
	snapshot.TotalDuration = c.metrics.TotalDuration

	for k, v := range c.metrics.WinCounts {
		snapshot.WinCounts[k] = v
	}
	for k, v := range c.metrics.GamesPerHour {
		snapshot.GamesPerHour[k] = v
	}
	for k, v := range c.metrics.GamesPerDay {
		snapshot.GamesPerDay[k] = v
	}
	for k, v := range c.metrics.PlayerStats {
		stats := *v
		snapshot.PlayerStats[k] = &stats
	}
	for k, v := range c.metrics.Decisions {
		m := *v
		snapshot.Decisions[k] = &m
	}

	return snapshot
}

// GetAverageGameDuration returns the average duration of finished games in seconds
func (c *Consumer) GetAverageGameDuration() float64 {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	if c.metrics.FinishedGames == 0 {
		return 0
	}
	return float64(c.metrics.TotalDuration) / float64(c.metrics.FinishedGames)
}

// GetMostFrequentWinner returns the player with most wins
func (c *Consumer) GetMostFrequentWinner() string {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	maxWins := 0
	winner := ""
	for player, wins := range c.metrics.WinCounts {
		if wins > maxWins || (wins == maxWins && player < winner) {
			maxWins = wins
			winner = player
		}
	}
	return winner
}

// GetGamesPerHour returns games played in the last 24 hours by hour
func (c *Consumer) GetGamesPerHour() map[string]int {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	now := time.Now()
	result := make(map[string]int)

	for i := 0; i < 24; i++ {
		key := now.Add(-time.Duration(i) * time.Hour).Format("2006-01-02-15")
		result[key] = c.metrics.GamesPerHour[key]
	}

	return result
}

// Close stops the consumer group
func (c *Consumer) Close() error {
	if c.consumer == nil {
		return nil
	}
	return c.consumer.Close()
}
