package game

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Difficulty selects the move-selection strategy of a bot
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty maps a user supplied name to a Difficulty
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy, nil
	case "medium", "strategic":
		return DifficultyMedium, nil
	case "hard":
		return DifficultyHard, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrUnknownDifficulty)
	}
}

// Decision is a chosen move together with the diagnostics of how it was found
type Decision struct {
	Move       Move       `json:"move"`
	Difficulty Difficulty `json:"difficulty"`
	Search     SearchInfo `json:"search"`
}

// Bot represents the AI player
type Bot struct {
	player     Cell
	opponent   Cell
	difficulty Difficulty
	rules      Rules
	engine     Engine
	rng        *rand.Rand
}

// BotOption configures a Bot
type BotOption func(*Bot)

// WithRand sets the random source used by the easy tier
func WithRand(rng *rand.Rand) BotOption {
	return func(b *Bot) {
		b.rng = rng
	}
}

// WithRules overrides the default five-in-a-row rules
func WithRules(rules Rules) BotOption {
	return func(b *Bot) {
		b.rules = rules
	}
}

// NewBot creates a new bot instance playing the given side
func NewBot(player Cell, difficulty Difficulty, opts ...BotOption) *Bot {
	bot := &Bot{
		player:     player,
		opponent:   player.Opponent(),
		difficulty: difficulty,
		rules:      NewRules(DefaultWinLength),
	}
	for _, opt := range opts {
		opt(bot)
	}
	if bot.rng == nil {
		bot.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	bot.engine = NewEngine(bot.rules)
	return bot
}

// Player returns the side the bot plays
func (bot *Bot) Player() Cell {
	return bot.player
}

// Difficulty returns the strategy tier of the bot
func (bot *Bot) Difficulty() Difficulty {
	return bot.difficulty
}

// SelectMove picks the bot's next move. It returns false only when the grid
// has no empty cell. The grid is lent for the duration of the call and is
// unchanged when it returns.
func (bot *Bot) SelectMove(g Grid) (Decision, bool) {
	var (
		mv   Move
		info SearchInfo
		ok   bool
	)
	switch bot.difficulty {
	case DifficultyEasy:
		mv, ok = bot.randomMove(g)
	case DifficultyHard:
		mv, info, ok = bot.minimaxMove(g)
	default:
		mv, ok = bot.strategicMove(g)
	}
	if !ok {
		return Decision{}, false
	}
	return Decision{Move: mv, Difficulty: bot.difficulty, Search: info}, true
}

// randomMove samples an empty cell uniformly
func (bot *Bot) randomMove(g Grid) (Move, bool) {
	empty := g.EmptyCells()
	if len(empty) == 0 {
		return Move{}, false
	}
	return empty[bot.rng.Intn(len(empty))], true
}

// strategicMove wins if possible, blocks if needed, otherwise plays near the
// existing pieces
func (bot *Bot) strategicMove(g Grid) (Move, bool) {
	if mv, ok := bot.rules.FindImmediateWin(g, bot.player); ok {
		return mv, true
	}
	if mv, ok := bot.rules.FindImmediateWin(g, bot.opponent); ok {
		return mv, true
	}
	if mv, ok := smartMove(g); ok {
		return mv, true
	}
	return bot.randomMove(g)
}

// smartMove plays the center on an empty board, otherwise the neighbouring
// empty cell closest to the center
func smartMove(g Grid) (Move, bool) {
	size := g.Size()
	center := size / 2
	empty := g.EmptyCells()
	if len(empty) == size*size {
		return Move{Row: center, Col: center}, true
	}

	found := false
	var best Move
	for _, mv := range empty {
		if !hasNeighbor(g, mv.Row, mv.Col) {
			continue
		}
		if !found || centerDistance(mv, center) < centerDistance(best, center) {
			best = mv
			found = true
		}
	}
	return best, found
}

// minimaxMove checks the forced win and block first and searches otherwise
func (bot *Bot) minimaxMove(g Grid) (Move, SearchInfo, bool) {
	if mv, ok := bot.rules.FindImmediateWin(g, bot.player); ok {
		return mv, forcedInfo(mv, MaxScore), true
	}
	if mv, ok := bot.rules.FindImmediateWin(g, bot.opponent); ok {
		return mv, forcedInfo(mv, 0), true
	}

	info, ok := bot.engine.Search(g, bot.player)
	if ok {
		return *info.ChosenMove, info, true
	}

	info.ChosenMove = nil
	mv, ok := bot.strategicMove(g)
	return mv, info, ok
}

func forcedInfo(mv Move, score int) SearchInfo {
	return SearchInfo{
		ChosenMove:     &mv,
		BestScore:      score,
		NodesSearched:  0,
		Depth:          0,
		CandidateCount: 1,
	}
}
