package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gomoku/internal/config"
	"github.com/gomoku/internal/game"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresStore handles database operations
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(ctx context.Context, cfg config.Config, log *zap.Logger) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.DatabaseMaxConns
	poolConfig.MinConns = cfg.DatabaseMinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	store := &PostgresStore{pool: pool, log: log}

	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	log.Info("connected to PostgreSQL", zap.Int32("max_conns", cfg.DatabaseMaxConns))
	return store, nil
}

// initSchema creates the necessary tables
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS games (
			id UUID PRIMARY KEY,
			player1 VARCHAR(50) NOT NULL,
			player2 VARCHAR(50) NOT NULL,
			winner VARCHAR(50),
			difficulty VARCHAR(16),
			board_size INTEGER NOT NULL DEFAULT 15,
			is_forfeit BOOLEAN DEFAULT FALSE,
			is_draw BOOLEAN DEFAULT FALSE,
			duration_seconds INTEGER,
			move_count INTEGER,
			moves JSONB,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			ended_at TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_games_player1 ON games(player1);
		CREATE INDEX IF NOT EXISTS idx_games_player2 ON games(player2);
		CREATE INDEX IF NOT EXISTS idx_games_winner ON games(winner);
		CREATE INDEX IF NOT EXISTS idx_games_created_at ON games(created_at);

		CREATE TABLE IF NOT EXISTS bot_decisions (
			id BIGSERIAL PRIMARY KEY,
			game_id UUID NOT NULL,
			move_number INTEGER NOT NULL,
			difficulty VARCHAR(16) NOT NULL,
			row_index INTEGER NOT NULL,
			col_index INTEGER NOT NULL,
			best_score INTEGER NOT NULL,
			nodes_searched INTEGER NOT NULL,
			depth INTEGER NOT NULL,
			candidate_count INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(game_id, move_number)
		);

		CREATE INDEX IF NOT EXISTS idx_bot_decisions_difficulty ON bot_decisions(difficulty);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// newCompletedGame flattens a finished game into its stored row
func newCompletedGame(g *game.Game) CompletedGame {
	state := g.GetState()

	movesJSON, err := json.Marshal(g.MovesSnapshot())
	if err != nil {
		movesJSON = []byte("[]")
	}

	row := CompletedGame{
		ID:              state.ID,
		Player1:         state.Player1,
		Player2:         state.Player2,
		Winner:          state.Winner,
		Difficulty:      string(state.Difficulty),
		BoardSize:       state.BoardSize,
		IsDraw:          state.Result == string(game.ResultDraw),
		IsForfeit:       state.Result == string(game.ResultForfeit),
		DurationSeconds: g.GetDuration(),
		MoveCount:       state.MoveCount,
		Moves:           string(movesJSON),
		CreatedAt:       g.StartTime,
		EndedAt:         g.EndTime,
	}
	if row.EndedAt.IsZero() {
		row.EndedAt = time.Now()
	}
	return row
}

// newBotDecision builds the stored row for one bot move
func newBotDecision(gameID string, moveNumber int, d game.Decision) BotDecision {
	return BotDecision{
		GameID:         gameID,
		MoveNumber:     moveNumber,
		Difficulty:     string(d.Difficulty),
		Row:            d.Move.Row,
		Col:            d.Move.Col,
		BestScore:      d.Search.BestScore,
		NodesSearched:  d.Search.NodesSearched,
		Depth:          d.Search.Depth,
		CandidateCount: d.Search.CandidateCount,
		CreatedAt:      time.Now(),
	}
}

// nullable maps the empty string to SQL NULL
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// SaveGame stores a completed game
func (s *PostgresStore) SaveGame(ctx context.Context, g *game.Game) error {
	row := newCompletedGame(g)

	query := `
		INSERT INTO games (id, player1, player2, winner, difficulty, board_size, is_forfeit, is_draw,
		                   duration_seconds, move_count, moves, created_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query,
		row.ID,
		row.Player1,
		row.Player2,
		nullable(row.Winner),
		nullable(row.Difficulty),
		row.BoardSize,
		row.IsForfeit,
		row.IsDraw,
		row.DurationSeconds,
		row.MoveCount,
		row.Moves,
		row.CreatedAt,
		row.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving game %s: %w", row.ID, err)
	}
	return nil
}

// SaveDecision stores the diagnostics of one bot move
func (s *PostgresStore) SaveDecision(ctx context.Context, gameID string, moveNumber int, d game.Decision) error {
	row := newBotDecision(gameID, moveNumber, d)

	query := `
		INSERT INTO bot_decisions (game_id, move_number, difficulty, row_index, col_index,
		                           best_score, nodes_searched, depth, candidate_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (game_id, move_number) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query,
		row.GameID,
		row.MoveNumber,
		row.Difficulty,
		row.Row,
		row.Col,
		row.BestScore,
		row.NodesSearched,
		row.Depth,
		row.CandidateCount,
		row.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving bot decision for game %s: %w", gameID, err)
	}
	return nil
}

// GetLeaderboard returns the top players by wins
func (s *PostgresStore) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		WITH player_stats AS (
			SELECT
				username,
				COUNT(*) FILTER (WHERE winner = username) as wins,
				COUNT(*) FILTER (WHERE winner IS NULL) as draws,
				COUNT(*) FILTER (WHERE winner != username AND winner IS NOT NULL) as losses,
				COUNT(*) as games
			FROM (
				SELECT player1 as username, winner FROM games
				UNION ALL
				SELECT player2 as username, winner FROM games WHERE player2 != $2
			) subq
			GROUP BY username
		)
		SELECT
			username, wins, losses, draws, games,
			CASE WHEN games > 0 THEN ROUND(wins::numeric / games * 100, 1)::float8 ELSE 0 END as win_rate
		FROM player_stats
		ORDER BY wins DESC, win_rate DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit, game.BotUsername)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]LeaderboardEntry, 0, limit)
	rank := 1
	for rows.Next() {
		var entry LeaderboardEntry
		err := rows.Scan(&entry.Username, &entry.Wins, &entry.Losses, &entry.Draws, &entry.Games, &entry.WinRate)
		if err != nil {
			return nil, err
		}
		entry.Rank = rank
		entries = append(entries, entry)
		rank++
	}

	return entries, rows.Err()
}

// GetPlayerStats returns detailed statistics for a player
func (s *PostgresStore) GetPlayerStats(ctx context.Context, username string) (*PlayerStats, error) {
	query := `
		WITH player_games AS (
			SELECT
				g.*,
				CASE
					WHEN g.player1 = $1 THEN g.player2
					ELSE g.player1
				END as opponent
			FROM games g
			WHERE g.player1 = $1 OR g.player2 = $1
		)
		SELECT
			COUNT(*) FILTER (WHERE winner = $1) as wins,
			COUNT(*) FILTER (WHERE winner IS NULL) as draws,
			COUNT(*) FILTER (WHERE winner != $1 AND winner IS NOT NULL) as losses,
			COUNT(*) as total_games,
			COUNT(*) FILTER (WHERE opponent = $2 AND winner = $1) as bot_wins,
			COUNT(*) FILTER (WHERE opponent = $2 AND winner = $2) as bot_losses,
			COALESCE(AVG(duration_seconds), 0)::float8 as avg_game_length
		FROM player_games
	`

	var stats PlayerStats
	stats.Username = username

	err := s.pool.QueryRow(ctx, query, username, game.BotUsername).Scan(
		&stats.Wins,
		&stats.Draws,
		&stats.Losses,
		&stats.TotalGames,
		&stats.BotWins,
		&stats.BotLosses,
		&stats.AvgGameLength,
	)
	if err != nil {
		return nil, err
	}

	if stats.TotalGames > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.TotalGames) * 100
	}

	stats.VsBot, err = s.difficultyRecords(ctx, username)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

func (s *PostgresStore) difficultyRecords(ctx context.Context, username string) ([]DifficultyRecord, error) {
	query := `
		SELECT
			difficulty,
			COUNT(*) FILTER (WHERE winner = $1) as wins,
			COUNT(*) FILTER (WHERE winner = $2) as losses,
			COUNT(*) FILTER (WHERE winner IS NULL) as draws
		FROM games
		WHERE player1 = $1 AND player2 = $2 AND difficulty IS NOT NULL
		GROUP BY difficulty
		ORDER BY difficulty
	`

	rows, err := s.pool.Query(ctx, query, username, game.BotUsername)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]DifficultyRecord, 0, 3)
	for rows.Next() {
		var r DifficultyRecord
		if err := rows.Scan(&r.Difficulty, &r.Wins, &r.Losses, &r.Draws); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetAnalytics returns aggregated game analytics
func (s *PostgresStore) GetAnalytics(ctx context.Context) (*GameAnalytics, error) {
	now := time.Now()
	today := now.Truncate(24 * time.Hour)
	thisHour := now.Truncate(time.Hour)

	query := `
		SELECT
			COUNT(*) as total_games,
			(SELECT COUNT(DISTINCT username) FROM (
				SELECT player1 AS username FROM games
				UNION SELECT player2 FROM games WHERE player2 != $3
			) p) as total_players,
			COALESCE(AVG(duration_seconds), 0)::float8 as avg_duration,
			COALESCE(AVG(move_count), 0)::float8 as avg_moves,
			COUNT(*) FILTER (WHERE player2 = $3) as bot_games,
			COUNT(*) FILTER (WHERE created_at >= $1) as games_today,
			COUNT(*) FILTER (WHERE created_at >= $2) as games_this_hour,
			(SELECT winner FROM games WHERE winner IS NOT NULL GROUP BY winner ORDER BY COUNT(*) DESC LIMIT 1) as most_frequent_winner,
			(SELECT COUNT(*) FROM bot_decisions) as bot_decisions,
			(SELECT COALESCE(AVG(nodes_searched), 0)::float8 FROM bot_decisions WHERE difficulty = $4) as avg_hard_nodes
		FROM games
	`

	var analytics GameAnalytics
	var mostFrequentWinner *string

	err := s.pool.QueryRow(ctx, query, today, thisHour, game.BotUsername, string(game.DifficultyHard)).Scan(
		&analytics.TotalGames,
		&analytics.TotalPlayers,
		&analytics.AvgGameDuration,
		&analytics.AvgMoveCount,
		&analytics.BotGamesPlayed,
		&analytics.GamesToday,
		&analytics.GamesThisHour,
		&mostFrequentWinner,
		&analytics.BotDecisions,
		&analytics.AvgHardBotNodes,
	)
	if err != nil {
		return nil, err
	}

	if mostFrequentWinner != nil {
		analytics.MostFrequentWinner = *mostFrequentWinner
	}

	return &analytics, nil
}

// ClearAllGames removes every stored game and bot decision
func (s *PostgresStore) ClearAllGames(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE bot_decisions, games`)
	if err != nil {
		return fmt.Errorf("error clearing games: %w", err)
	}
	s.log.Warn("all stored games cleared")
	return nil
}

// Close closes the database connection pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}
