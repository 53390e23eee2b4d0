package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/cardchess/internal/adapter/chesspresenter"
	"github.com/park285/cardchess/internal/engine"
	"github.com/park285/cardchess/internal/rules"
	"github.com/urfave/cli/v3"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func main() {
	cmd := &cli.Command{
		Name:  "enginecheck",
		Usage: "ask the configured move oracle for one move",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "fen", Value: startFEN, Usage: "position to search"},
			&cli.StringFlag{Name: "difficulty", Value: "normal", Usage: "preset name (easy, normal, hard, master)"},
			&cli.IntFlag{Name: "depth", Usage: "override the preset depth"},
			&cli.StringFlag{Name: "stockfish", Usage: "UCI engine binary; empty uses the built-in searcher", Sources: cli.EnvVars("STOCKFISH_PATH")},
			&cli.IntFlag{Name: "threads", Value: 1, Usage: "engine threads"},
			&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second},
			&cli.BoolFlag{Name: "unicode", Usage: "draw the board with chess glyphs"},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("enginecheck: %v", err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	fen := strings.TrimSpace(cmd.String("fen"))
	game, err := rules.NewGameStateFromFEN(fen)
	if err != nil {
		return err
	}
	preset, err := engine.LookupPreset(cmd.String("difficulty"))
	if err != nil {
		return err
	}
	depth := preset.Depth
	if d := cmd.Int("depth"); d > 0 {
		depth = d
	}

	var oracle engine.Chain
	source := "searcher"
	if path := strings.TrimSpace(cmd.String("stockfish")); path != "" {
		uci, err := engine.NewUCIOracle(path, cmd.Int("threads"))
		if err != nil {
			return fmt.Errorf("start engine: %w", err)
		}
		defer uci.Close()
		oracle = append(oracle, uci)
		source = path
	}
	oracle = append(oracle, engine.NewSearcher(engine.DefaultSearchDepth))

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()
	started := time.Now()
	move, err := oracle.GetNextMove(ctx, fen, depth)
	if err != nil {
		return err
	}

	f := chesspresenter.NewFormatter(cmd.Bool("unicode"))
	fmt.Println(f.Board(game.Board().Ranks()))
	fmt.Printf("side:   %s\n", game.CurrentPlayer())
	fmt.Printf("oracle: %s depth=%d\n", source, depth)
	if move == "" {
		fmt.Println("move:   (none)")
		return nil
	}
	fmt.Printf("move:   %s (%s)\n", move, time.Since(started).Round(time.Millisecond))
	return nil
}
