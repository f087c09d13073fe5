package info

import "sort"

// PlanFor returns the agent's full distribution plan, or nil if the agent
// was never scheduled.
func (e *Engine) PlanFor(agentID string) *Plan {
	return e.plans[agentID]
}

// AgentIDs returns every scheduled agent, sorted for stable iteration.
func (e *Engine) AgentIDs() []string {
	ids := make([]string, 0, len(e.plans))
	for id := range e.plans {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// History returns the clues the agent was entitled to receive on or before
// the given day, honoring the same prerequisite gating as CluesForDay.
func (e *Engine) History(agentID string, throughDay int) []*Clue {
	if throughDay > LastClueDay {
		throughDay = LastClueDay
	}
	var received []*Clue
	for day := FirstClueDay; day <= throughDay; day++ {
		received = append(received, e.CluesForDay(agentID, day)...)
	}
	return received
}

// RemainingByTier counts the agent's not-yet-released clues per tier after
// the given day. Counts only; no content, days, or truth flags leak.
func (e *Engine) RemainingByTier(agentID string, afterDay int) map[Tier]int {
	counts := map[Tier]int{TierEarly: 0, TierMid: 0, TierLate: 0}
	plan, ok := e.plans[agentID]
	if !ok {
		return counts
	}
	for _, c := range plan.Clues {
		if c.RevealDay > afterDay {
			counts[c.Tier]++
		}
	}
	return counts
}

// ValuePercentile returns the percentile rank (0–100) of the agent's
// expected information value across all scheduled agents. Unknown agents
// rank at 0.
func (e *Engine) ValuePercentile(agentID string) float64 {
	plan, ok := e.plans[agentID]
	if !ok || len(e.plans) == 0 {
		return 0
	}
	below := 0
	for _, other := range e.plans {
		if other.ExpectedValue <= plan.ExpectedValue {
			below++
		}
	}
	return float64(below) / float64(len(e.plans)) * 100
}
