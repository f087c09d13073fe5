package main

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/calderas/rumormill/internal/config"
	"github.com/calderas/rumormill/internal/game"
)

// resultCapture hands the settled result back to the CLI. Satisfies
// game.ResultSink.
type resultCapture struct {
	ch chan *game.Result
}

func (rc *resultCapture) SaveResult(res *game.Result) error {
	select {
	case rc.ch <- res:
	default:
	}
	return nil
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a headless game to completion and print the settlement",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			scenarioPath, _ := cmd.Flags().GetString("scenario")
			agentCount, _ := cmd.Flags().GetInt("agents")
			seed, _ := cmd.Flags().GetInt64("seed")

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if scenarioPath != "" {
				cfg.Game.ScenarioPath = scenarioPath
			}
			if seed != 0 {
				cfg.Game.Seed = seed
			}
			setupLogging(cfg.Logging.Level)

			return simulate(cfg, agentCount)
		},
	}
	cmd.Flags().Int("agents", 8, "Number of autonomous agents to seat")
	cmd.Flags().Int64("seed", 0, "Deterministic seed (0 uses the config or clock)")
	return cmd
}

func simulate(cfg *config.Config, agentCount int) error {
	sc, err := loadScenario(cfg.Game.ScenarioPath)
	if err != nil {
		return err
	}

	session := game.NewSession(sc, game.Config{
		MarketLiquidity: cfg.Game.MarketLiquidity,
		TotalClues:      cfg.Game.TotalClues,
		InsiderFraction: cfg.Game.InsiderFraction,
		DebriefWindow:   time.Second,
		Seed:            cfg.Game.Seed,
	})

	capture := &resultCapture{ch: make(chan *game.Result, 1)}
	session.AddResultSink(capture)

	players := seatAgents(session, agentCount, cfg.Game.Seed)
	if !session.Start() {
		return fmt.Errorf("session failed to start")
	}

	fmt.Printf("%s\n%q\n\n", sc.Title, sc.Question)

	// Walk the timeline day by day, letting every agent act between days so
	// clue deliveries can influence later bets.
	rng := rand.New(rand.NewSource(cfg.Game.Seed + 7))
	for day := 2; day <= game.TotalDays; day++ {
		for _, p := range players {
			if rng.Intn(3) == 0 {
				p.act()
			}
		}
		session.AdvanceToDay(day)
	}

	var res *game.Result
	select {
	case res = <-capture.ch:
	case <-time.After(10 * time.Second):
		return fmt.Errorf("settlement result never arrived")
	}

	printSettlement(session, res)
	return nil
}

func printSettlement(session *game.Session, res *game.Result) {
	m := session.Market()
	fmt.Printf("Outcome: %s (market closed at %d%% YES)\n", res.Outcome, m.YesOdds)
	fmt.Printf("Volume traded: %s tokens across %s bets\n\n",
		humanize.Commaf(m.Volume), humanize.Comma(int64(m.BetCount)))

	if len(res.Payouts) == 0 {
		fmt.Println("Nobody backed the right side. The house keeps everything.")
	} else {
		type payout struct {
			agent  string
			amount float64
		}
		sorted := make([]payout, 0, len(res.Payouts))
		for id, amt := range res.Payouts {
			sorted = append(sorted, payout{id, amt})
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].amount > sorted[j].amount })

		fmt.Println("Payouts:")
		for _, p := range sorted {
			name := p.agent
			if a := session.AgentByID(p.agent); a != nil {
				name = a.DisplayName
			}
			fmt.Printf("  %-12s %s tokens\n", name, humanize.CommafWithDigits(p.amount, 2))
		}
	}

	if len(res.Betrayers) > 0 {
		fmt.Println("\nBetrayals detected:")
		for _, id := range res.Betrayers {
			name := id
			if a := session.AgentByID(id); a != nil {
				name = a.DisplayName
			}
			fmt.Printf("  %s bet against their own group chat\n", name)
		}
	}

	fmt.Println("\nReputation leaderboard:")
	for i, score := range session.Leaderboard() {
		if i >= 10 {
			break
		}
		name := score.AgentID
		if a := session.AgentByID(score.AgentID); a != nil {
			name = a.DisplayName
		}
		fmt.Printf("  %2d. %-12s %.1f\n", i+1, name, score.Overall)
	}
}
