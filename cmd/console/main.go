package main

import (
	"flag"
	"os"

	"github.com/gomoku/internal/config"
	"github.com/gomoku/internal/console"
	"github.com/gomoku/internal/game"
	"github.com/gomoku/internal/logging"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "gomoku.yaml", "path to the YAML config file")
	name := flag.String("name", "Player X", "your name")
	opponent := flag.String("opponent", "", "name of a second human player; empty plays the computer")
	difficulty := flag.String("difficulty", "", "computer difficulty: easy, medium or hard")
	size := flag.Int("size", 0, "board size")
	winLength := flag.Int("win", 0, "pieces in a row needed to win")
	seed := flag.Int64("seed", 0, "random seed for the computer, 0 uses the clock")
	showSearch := flag.Bool("search", false, "print the hard computer's search diagnostics")
	flag.Parse()

	log, err := logging.New("warn", true)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	config.LoadEnvFile(".env")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	opts := console.Options{
		Player:     *name,
		Opponent:   *opponent,
		Difficulty: cfg.Difficulty(),
		BoardSize:  cfg.BoardSize,
		WinLength:  cfg.WinLength,
		Seed:       *seed,
		ShowSearch: *showSearch,
	}
	if *difficulty != "" {
		d, err := game.ParseDifficulty(*difficulty)
		if err != nil {
			log.Fatal("invalid difficulty", zap.Error(err))
		}
		opts.Difficulty = d
	}
	if *size > 0 {
		opts.BoardSize = *size
	}
	if *winLength > 0 {
		opts.WinLength = *winLength
	}
	if opts.BoardSize > game.MaxBoardSize {
		log.Fatal("board is too large", zap.Int("size", opts.BoardSize), zap.Int("max", game.MaxBoardSize))
	}
	if opts.BoardSize < opts.WinLength {
		log.Fatal("board is smaller than the win length",
			zap.Int("size", opts.BoardSize), zap.Int("win", opts.WinLength))
	}

	if err := console.New(os.Stdin, os.Stdout, opts).Run(); err != nil {
		log.Fatal("console game failed", zap.Error(err))
	}
}
