// Package info builds the clue network for a scenario and schedules its
// staged release across agents. Clues are generated once per game, carry a
// reveal day and an information value, and may depend on clues from strictly
// earlier days. Distribution plans manufacture the information asymmetry:
// insiders get several truthful clues spanning all tiers, outsiders get one
// or two clues that may well be misinformation.
package info

import (
	"fmt"
	"math/rand"
	"sort"
)

// Tier classifies clues by target reveal day range.
type Tier string

const (
	TierEarly Tier = "early" // days 1–10
	TierMid   Tier = "mid"   // days 11–20
	TierLate  Tier = "late"  // days 21–28
)

// Day bounds for clue release. Day 29 closes betting and day 30 reveals,
// so no clue targets them.
const (
	FirstClueDay = 1
	LastClueDay  = 28
)

// tierDayRange returns the inclusive reveal-day range for a tier.
func tierDayRange(t Tier) (lo, hi int) {
	switch t {
	case TierEarly:
		return 1, 10
	case TierMid:
		return 11, 20
	default:
		return 21, 28
	}
}

// TierForDay returns the tier a reveal day falls in.
func TierForDay(day int) Tier {
	switch {
	case day <= 10:
		return TierEarly
	case day <= 20:
		return TierMid
	default:
		return TierLate
	}
}

// Clue is a single piece of information. Immutable once generated.
type Clue struct {
	ID            string   `json:"id"`
	Content       string   `json:"content"`
	NPCID         string   `json:"npc_id"`
	Truthful      bool     `json:"truthful"`
	RevealDay     int      `json:"reveal_day"`
	Tier          Tier     `json:"tier"`
	Prerequisites []string `json:"prerequisites,omitempty"`

	// Value is the signed information value: positive for truthful clues,
	// negative for false ones. Magnitude grows by tier.
	Value float64 `json:"value"`
}

// Network is the full generated clue set plus the prerequisite adjacency.
type Network struct {
	Clues      map[string]*Clue    // clue ID → clue
	Dependents map[string][]string // prerequisite ID → dependent clue IDs
	Ordered    []*Clue             // all clues, ascending by reveal day
}

// ContentStrategy produces the textual content of a generated clue. It is
// pluggable so content generation can be swapped without touching the
// scheduler.
type ContentStrategy interface {
	ClueText(tier Tier, truthful bool, npcID string, seq int) string
}

// plainStrategy is the fallback used when no strategy is supplied.
type plainStrategy struct{}

func (plainStrategy) ClueText(tier Tier, truthful bool, npcID string, seq int) string {
	kind := "rumor"
	if truthful {
		kind = "tip"
	}
	return fmt.Sprintf("%s-tier %s #%d from %s", tier, kind, seq, npcID)
}

// GenConfig holds clue network generation parameters.
type GenConfig struct {
	TotalClues   int     // default 20
	TruthfulProb float64 // probability a clue is truthful, default 0.7
	PrereqProb   float64 // chance a mid/late clue declares prerequisites, default 0.4
	Seed         int64
	Strategy     ContentStrategy
}

// DefaultGenConfig returns the standard generation parameters.
func DefaultGenConfig(seed int64) GenConfig {
	return GenConfig{
		TotalClues:   20,
		TruthfulProb: 0.7,
		PrereqProb:   0.4,
		Seed:         seed,
	}
}

// tierValue returns the value magnitude for a tier: late clues are the
// highest-stakes information.
func tierValue(t Tier, rng *rand.Rand) float64 {
	switch t {
	case TierEarly:
		return 5 + rng.Float64()*5 // 5–10
	case TierMid:
		return 10 + rng.Float64()*10 // 10–20
	default:
		return 20 + rng.Float64()*15 // 20–35
	}
}

// GenerateNetwork builds the clue DAG for one game. npcIDs attributes each
// clue to a source character; clues split roughly 40/35/25 across the
// early/mid/late tiers. Every prerequisite edge points at a clue with a
// strictly earlier reveal day, so the result is acyclic by construction.
func GenerateNetwork(cfg GenConfig, npcIDs []string) *Network {
	if cfg.TotalClues <= 0 {
		cfg.TotalClues = 20
	}
	if cfg.TruthfulProb <= 0 || cfg.TruthfulProb > 1 {
		cfg.TruthfulProb = 0.7
	}
	if cfg.PrereqProb < 0 || cfg.PrereqProb > 1 {
		cfg.PrereqProb = 0.4
	}
	strategy := cfg.Strategy
	if strategy == nil {
		strategy = plainStrategy{}
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	earlyCount := cfg.TotalClues * 40 / 100
	midCount := cfg.TotalClues * 35 / 100
	if earlyCount < 1 {
		earlyCount = 1
	}
	if midCount < 1 {
		midCount = 1
	}
	lateCount := cfg.TotalClues - earlyCount - midCount
	if lateCount < 1 {
		lateCount = 1
	}

	net := &Network{
		Clues:      make(map[string]*Clue, cfg.TotalClues),
		Dependents: make(map[string][]string),
	}

	seq := 0
	addTier := func(tier Tier, count int) {
		lo, hi := tierDayRange(tier)
		for i := 0; i < count; i++ {
			seq++
			truthful := rng.Float64() < cfg.TruthfulProb
			day := lo + rng.Intn(hi-lo+1)
			npc := ""
			if len(npcIDs) > 0 {
				npc = npcIDs[rng.Intn(len(npcIDs))]
			}
			value := tierValue(tier, rng)
			if !truthful {
				value = -value
			}
			c := &Clue{
				ID:        fmt.Sprintf("clue-%03d", seq),
				Content:   strategy.ClueText(tier, truthful, npc, seq),
				NPCID:     npc,
				Truthful:  truthful,
				RevealDay: day,
				Tier:      tier,
				Value:     value,
			}
			net.Clues[c.ID] = c
			net.Ordered = append(net.Ordered, c)
		}
	}

	addTier(TierEarly, earlyCount)
	addTier(TierMid, midCount)
	addTier(TierLate, lateCount)

	// Wire prerequisites: mid/late clues may depend on clues from strictly
	// earlier reveal days.
	for _, c := range net.Ordered {
		if c.Tier == TierEarly || rng.Float64() >= cfg.PrereqProb {
			continue
		}
		var candidates []*Clue
		for _, p := range net.Ordered {
			if p.RevealDay < c.RevealDay {
				candidates = append(candidates, p)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		want := 1 + rng.Intn(2) // 1–2 prerequisites
		rng.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
		for _, p := range candidates {
			if len(c.Prerequisites) >= want {
				break
			}
			c.Prerequisites = append(c.Prerequisites, p.ID)
			net.Dependents[p.ID] = append(net.Dependents[p.ID], c.ID)
		}
	}

	sort.Slice(net.Ordered, func(i, j int) bool {
		a, b := net.Ordered[i], net.Ordered[j]
		if a.RevealDay != b.RevealDay {
			return a.RevealDay < b.RevealDay
		}
		return a.ID < b.ID
	})
	return net
}
