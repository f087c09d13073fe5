package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/calderas/rumormill/internal/api"
	"github.com/calderas/rumormill/internal/archive"
	"github.com/calderas/rumormill/internal/config"
	"github.com/calderas/rumormill/internal/game"
	"github.com/calderas/rumormill/internal/scenario"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a live game with the wall-clock ticker and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			scenarioPath, _ := cmd.Flags().GetString("scenario")
			agentCount, _ := cmd.Flags().GetInt("agents")

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if scenarioPath != "" {
				cfg.Game.ScenarioPath = scenarioPath
			}
			setupLogging(cfg.Logging.Level)

			return runGame(cfg, agentCount)
		},
	}
	cmd.Flags().Int("agents", 8, "Number of autonomous agents to seat")
	return cmd
}

func loadScenario(path string) (*scenario.Scenario, error) {
	if path == "" {
		return scenario.Default(), nil
	}
	return scenario.Load(path)
}

func runGame(cfg *config.Config, agentCount int) error {
	sc, err := loadScenario(cfg.Game.ScenarioPath)
	if err != nil {
		return err
	}

	session := game.NewSession(sc, game.Config{
		TickInterval:    cfg.Game.TickInterval,
		GameDuration:    cfg.Game.GameDuration,
		DebriefWindow:   cfg.Game.DebriefWindow,
		MarketLiquidity: cfg.Game.MarketLiquidity,
		TotalClues:      cfg.Game.TotalClues,
		InsiderFraction: cfg.Game.InsiderFraction,
		Seed:            cfg.Game.Seed,
	})
	session.SetContentGenerator(game.NewTemplateGenerator(sc, cfg.Game.Seed))

	// Archive is optional; the game runs fine without it.
	var db *archive.DB
	if cfg.Storage.DBPath != "" {
		os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0755)
		db, err = archive.Open(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer db.Close()
		session.AddResultSink(db)
		slog.Info("archive opened", "path", cfg.Storage.DBPath)
	} else {
		slog.Warn("no db path configured, results will not be archived")
	}

	roster := seatAgents(session, agentCount, cfg.Game.Seed)
	if !session.Start() {
		return fmt.Errorf("session failed to start")
	}
	session.StartNPCActivity(cfg.Game.NPCInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, p := range roster {
		go p.play(ctx)
	}

	if cfg.Server.AdminKey == "" {
		slog.Warn("RUMORMILL_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Session:  session,
		DB:       db,
		Port:     cfg.Server.Port,
		AdminKey: cfg.Server.AdminKey,
	}
	apiServer.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
		session.End()
	}()

	fmt.Printf("\n%s\n", sc.Title)
	fmt.Printf("%q — %d agents, %d NPCs, %s until the reveal.\n",
		sc.Question, agentCount, len(sc.NPCs), cfg.Game.GameDuration)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Server.Port)
	fmt.Println("Running... (Ctrl+C to stop)")

	session.RunTicker(ctx)

	if db != nil {
		if err := db.SaveReputation(session.Leaderboard()); err != nil {
			slog.Error("reputation snapshot failed", "error", err)
		}
	}
	fmt.Println("Game over.")
	return nil
}
