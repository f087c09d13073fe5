package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/calderas/rumormill/internal/game"
	"github.com/calderas/rumormill/internal/reputation"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleResult(sessionID string, revealedAt time.Time) *game.Result {
	return &game.Result{
		SessionID:   sessionID,
		ScenarioID:  "harbor-merger",
		Outcome:     "YES",
		RevealedAt:  revealedAt,
		Payouts:     map[string]float64{"ada": 200},
		TotalPayout: 200,
		Betrayers:   []string{"mallory"},
		Bets: []*game.Bet{
			{ID: sessionID + "-b1", AgentID: "ada", Outcome: "YES", Amount: 100, Shares: 180, Timestamp: revealedAt.Add(-time.Hour)},
			{ID: sessionID + "-b2", AgentID: "mallory", Outcome: "NO", Amount: 100, Shares: 175, Timestamp: revealedAt.Add(-30 * time.Minute)},
		},
	}
}

func TestSaveResultRoundTrip(t *testing.T) {
	db := openTestDB(t)

	var _ game.ResultSink = db

	now := time.Now().UTC().Truncate(time.Second)
	if err := db.SaveResult(sampleResult("game-1", now)); err != nil {
		t.Fatalf("save: %v", err)
	}

	games, err := db.RecentGames(10)
	if err != nil {
		t.Fatalf("recent games: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("got %d games, want 1", len(games))
	}
	g := games[0]
	if g.SessionID != "game-1" || g.Outcome != "YES" || g.TotalPayout != 200 {
		t.Errorf("game row = %+v", g)
	}

	bets, err := db.BetsForGame("game-1")
	if err != nil {
		t.Fatalf("bets: %v", err)
	}
	if len(bets) != 2 {
		t.Fatalf("got %d bets, want 2", len(bets))
	}
	if bets[0].AgentID != "ada" || bets[1].AgentID != "mallory" {
		t.Errorf("bets out of ledger order: %+v", bets)
	}
}

func TestSaveResultIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()

	res := sampleResult("game-1", now)
	for i := 0; i < 2; i++ {
		if err := db.SaveResult(res); err != nil {
			t.Fatalf("save #%d: %v", i+1, err)
		}
	}

	games, err := db.RecentGames(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(games) != 1 {
		t.Errorf("replayed save produced %d game rows, want 1", len(games))
	}
	bets, err := db.BetsForGame("game-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(bets) != 2 {
		t.Errorf("replayed save produced %d bet rows, want 2", len(bets))
	}
}

func TestRecentGamesOrderAndLimit(t *testing.T) {
	db := openTestDB(t)
	base := time.Now().UTC().Truncate(time.Second)

	for i, id := range []string{"old", "mid", "new"} {
		if err := db.SaveResult(sampleResult(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	games, err := db.RecentGames(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(games) != 2 || games[0].SessionID != "new" || games[1].SessionID != "mid" {
		t.Errorf("recent games = %+v", games)
	}
}

func TestReputationSnapshot(t *testing.T) {
	db := openTestDB(t)

	rep := reputation.NewEngine()
	rep.InitializeAgent("ada", 70)
	rep.InitializeAgent("bob", 40)

	if err := db.SaveReputation(rep.Leaderboard()); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := db.LoadReputation()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded["ada"] != 70 || loaded["bob"] != 40 {
		t.Errorf("loaded = %v", loaded)
	}

	// Replacement, not accumulation.
	rep.InitializeAgent("cleo", 55)
	if err := db.SaveReputation(rep.Leaderboard()); err != nil {
		t.Fatal(err)
	}
	loaded, err = db.LoadReputation()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 3 {
		t.Errorf("snapshot holds %d agents, want 3", len(loaded))
	}
}
