// Package reputation accumulates weighted, time-decayed peer feedback and
// post-game results into bounded per-agent scores. Every score component
// lives in [0,100] and is clamped after each update; a single game blends
// into the prior rather than overwriting it, so no one result swings a
// score violently.
package reputation

import (
	"sort"
	"time"
)

const (
	neutralScore = 50.0

	// blendRatio is how much a game's averaged feedback moves a sub-score:
	// 30% new, 70% prior.
	blendRatio = 0.3

	// nudgeFactor is the per-settlement pull toward an extreme for skill
	// (correct predictors) and honesty/cooperation (betrayers).
	nudgeFactor = 0.2
)

// Score is an agent's reputation state. Initialized once per agent and
// mutated only by feedback submission and post-game settlement.
type Score struct {
	AgentID       string    `json:"agent_id"`
	Overall       float64   `json:"overall"`
	Honesty       float64   `json:"honesty"`
	Cooperation   float64   `json:"cooperation"`
	Skill         float64   `json:"skill"`
	GamesPlayed   int       `json:"games_played"`
	Wins          int       `json:"wins"`
	FeedbackCount int       `json:"feedback_count"`
	LastUpdated   time.Time `json:"last_updated"`
}

// clamp bounds every component to [0,100].
func (s *Score) clamp() {
	for _, f := range []*float64{&s.Overall, &s.Honesty, &s.Cooperation, &s.Skill} {
		if *f < 0 {
			*f = 0
		}
		if *f > 100 {
			*f = 100
		}
	}
}

// Engine holds all reputation state for the process lifetime.
// The owning session serializes access.
type Engine struct {
	scores   map[string]*Score
	feedback []*Feedback

	// byGameRatee indexes stored feedback for settlement lookups.
	byGameRatee map[gameRateeKey][]*Feedback

	// submissions records every accepted (rater, ratee, game, category)
	// key; repeats are rejected forever.
	submissions map[submissionKey]struct{}

	// cooldowns tracks the last accepted submission per rater-ratee
	// pair, across categories and games.
	cooldowns map[pairKey]time.Time

	// now is swappable for tests.
	now func() time.Time
}

type gameRateeKey struct {
	GameID  string
	RateeID string
}

type submissionKey struct {
	RaterID  string
	RateeID  string
	GameID   string
	Category Category
}

type pairKey struct {
	RaterID string
	RateeID string
}

// NewEngine creates an empty reputation engine.
func NewEngine() *Engine {
	return &Engine{
		scores:      make(map[string]*Score),
		byGameRatee: make(map[gameRateeKey][]*Feedback),
		submissions: make(map[submissionKey]struct{}),
		cooldowns:   make(map[pairKey]time.Time),
		now:         time.Now,
	}
}

// InitializeAgent registers an agent with an initial overall score taken
// from an external reputation hint (use NeutralHint when none exists) and
// neutral sub-scores. Idempotent: an existing score is left untouched.
func (e *Engine) InitializeAgent(agentID string, hint float64) *Score {
	if s, ok := e.scores[agentID]; ok {
		return s
	}
	if hint <= 0 || hint > 100 {
		hint = neutralScore
	}
	s := &Score{
		AgentID:     agentID,
		Overall:     hint,
		Honesty:     neutralScore,
		Cooperation: neutralScore,
		Skill:       neutralScore,
		LastUpdated: e.now(),
	}
	e.scores[agentID] = s
	return s
}

// NeutralHint is the default external reputation hint.
const NeutralHint = neutralScore

// ScoreFor returns the agent's score, or nil if never initialized.
func (e *Engine) ScoreFor(agentID string) *Score {
	return e.scores[agentID]
}

// Leaderboard returns all scores sorted descending by overall score,
// ties broken by agent ID for stable output.
func (e *Engine) Leaderboard() []*Score {
	out := make([]*Score, 0, len(e.scores))
	for _, s := range e.scores {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Overall != out[j].Overall {
			return out[i].Overall > out[j].Overall
		}
		return out[i].AgentID < out[j].AgentID
	})
	return out
}

// Stats summarizes the feedback an agent has received.
type Stats struct {
	AgentID       string           `json:"agent_id"`
	FeedbackCount int              `json:"feedback_count"`
	AverageRating float64          `json:"average_rating"` // unweighted, 0 when no feedback
	ByCategory    map[Category]int `json:"by_category"`
	Recent        []*Feedback      `json:"recent"` // newest first, at most 5
}

// AgentStats returns the feedback summary for one agent.
func (e *Engine) AgentStats(agentID string) Stats {
	st := Stats{AgentID: agentID, ByCategory: make(map[Category]int)}

	sum := 0
	for _, fb := range e.feedback {
		if fb.RateeID != agentID {
			continue
		}
		st.FeedbackCount++
		sum += fb.Rating
		st.ByCategory[fb.Category]++
		st.Recent = append(st.Recent, fb)
	}
	if st.FeedbackCount > 0 {
		st.AverageRating = float64(sum) / float64(st.FeedbackCount)
	}

	sort.Slice(st.Recent, func(i, j int) bool {
		return st.Recent[i].Timestamp.After(st.Recent[j].Timestamp)
	})
	if len(st.Recent) > 5 {
		st.Recent = st.Recent[:5]
	}
	return st
}
