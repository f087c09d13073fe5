// Package game is the simulation orchestrator: it owns the single active
// session, advances the day/phase state machine on a wall-clock tick, routes
// bets into the market maker and day transitions into the information
// engine, maintains the social graph, and settles payouts and reputation at
// reveal.
package game

import (
	"time"

	"github.com/calderas/rumormill/internal/market"
)

// AgentType distinguishes humans from AI participants.
type AgentType string

const (
	AgentHuman AgentType = "human"
	AgentAI    AgentType = "ai"
)

// Agent is a participant in the session. Following and Followers are pure
// id-to-id relation sets, edges rather than object references.
type Agent struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Type        AgentType `json:"type"`
	Reputation  float64   `json:"reputation"` // external hint at join time, 0–100
	WinCount    int       `json:"win_count"`

	Following map[string]bool `json:"-"`
	Followers map[string]bool `json:"-"`

	JoinedAt time.Time `json:"joined_at"`
}

// Reaction is a per-agent vote on a post.
type Reaction string

const (
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
)

// Post is one entry in the shared feed.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"` // empty for system posts
	Content   string    `json:"content"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	Mentions  []string  `json:"mentions,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Reactions maps agent id → reaction. Like/dislike counts are always
	// recomputed from this map, never incremented in place.
	Reactions map[string]Reaction `json:"reactions,omitempty"`
	Likes     int                 `json:"likes"`
	Dislikes  int                 `json:"dislikes"`
}

// DirectMessage is a private message between two agents, or from an NPC to
// an agent (clue delivery).
type DirectMessage struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Content   string    `json:"content"`
	ClueID    string    `json:"clue_id,omitempty"` // set when this DM delivers a clue
	Timestamp time.Time `json:"timestamp"`
}

// GroupChat is a named multi-agent conversation. Group membership drives
// betrayal detection at settlement.
type GroupChat struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatorID string    `json:"creator_id"`
	Members   []string  `json:"members"`
	Messages  []*Post   `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// HasMember reports whether the agent is in the chat.
func (g *GroupChat) HasMember(agentID string) bool {
	for _, m := range g.Members {
		if m == agentID {
			return true
		}
	}
	return false
}

// Bet is one ledger entry. Sells are recorded as bets with negative Amount;
// settlement only considers positive entries.
type Bet struct {
	ID        string         `json:"id"`
	AgentID   string         `json:"agent_id"`
	Outcome   market.Outcome `json:"outcome"`
	Amount    float64        `json:"amount"` // tokens; negative for sells
	Shares    float64        `json:"shares"` // shares bought or sold
	Timestamp time.Time      `json:"timestamp"`
}

// Phase is the session's state-machine position.
type Phase string

const (
	PhaseLobby  Phase = "LOBBY"
	PhaseEarly  Phase = "EARLY"  // days 1–10
	PhaseMid    Phase = "MID"    // days 11–20
	PhaseLate   Phase = "LATE"   // days 21–29
	PhaseReveal Phase = "REVEAL" // day 30
	PhaseEnded  Phase = "ENDED"
)

// phaseForDay maps an in-game day onto the phase ladder.
func phaseForDay(day int) Phase {
	switch {
	case day < 1:
		return PhaseLobby
	case day <= 10:
		return PhaseEarly
	case day <= 20:
		return PhaseMid
	case day <= 29:
		return PhaseLate
	default:
		return PhaseReveal
	}
}

// pairKey keys the DM store by unordered agent pair.
type pairKey struct{ a, b string }

func dmKey(x, y string) pairKey {
	if x > y {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}
