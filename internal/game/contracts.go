package game

import (
	"context"
	"time"

	"github.com/calderas/rumormill/internal/scenario"
)

// GenRequest asks an external content generator for NPC text.
type GenRequest struct {
	NPCID      string
	Scenario   *scenario.Scenario
	Day        int
	YesOdds    int
	RecentFeed []*Post
	// Reason is why content is wanted: "periodic", "mention_reply", or
	// "market_reaction".
	Reason string
}

// GenResult is the generator's answer. ShouldPost=false means the NPC
// chose to stay quiet this time.
type GenResult struct {
	Content    string
	ShouldPost bool
	Confidence float64
}

// ContentGenerator produces NPC content. Implementations may call out to a
// model; the orchestrator rate-limits calls and never invokes the generator
// from inside the tick loop.
type ContentGenerator interface {
	Generate(ctx context.Context, req GenRequest) (GenResult, error)
}

// AttestRequest carries the final game result to the external attestor.
type AttestRequest struct {
	SessionID   string    `json:"session_id"`
	Outcome     string    `json:"outcome"`
	Timestamp   time.Time `json:"timestamp"`
	Winners     []string  `json:"winners"`
	TotalPayout float64   `json:"total_payout"`
}

// OutcomeAttestor produces a tamper-evident proof of the game outcome.
// Invoked exactly once at reveal; failures are logged and skipped.
type OutcomeAttestor interface {
	Attest(ctx context.Context, req AttestRequest) ([]byte, error)
}

// Result is the settled outcome of a finished game, handed to sinks (the
// archive) after reveal.
type Result struct {
	SessionID   string             `json:"session_id"`
	ScenarioID  string             `json:"scenario_id"`
	Outcome     string             `json:"outcome"`
	RevealedAt  time.Time          `json:"revealed_at"`
	Payouts     map[string]float64 `json:"payouts"`
	TotalPayout float64            `json:"total_payout"`
	Betrayers   []string           `json:"betrayers"`
	Bets        []*Bet             `json:"bets"`
	Attestation []byte             `json:"attestation,omitempty"`
}

// ResultSink receives the final result. Sink failures are logged, never
// surfaced into session state.
type ResultSink interface {
	SaveResult(res *Result) error
}
