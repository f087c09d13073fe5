package info

import (
	"math"
	"math/rand"
	"sort"
)

// DefaultInsiderFraction is the share of the roster selected as insiders.
const DefaultInsiderFraction = 0.30

// Plan is one agent's slice of the clue network: what that agent is
// entitled to receive and when.
type Plan struct {
	AgentID       string  `json:"agent_id"`
	Insider       bool    `json:"insider"`
	ExpectedValue float64 `json:"expected_value"`
	Clues         []*Clue `json:"clues"` // ascending by reveal day
}

// Engine owns a generated network and the per-agent distribution plans for
// one game. Read-mostly after PlanDistribution; the owning session
// serializes any access.
type Engine struct {
	Network *Network
	plans   map[string]*Plan
	rng     *rand.Rand
}

// NewEngine wraps a generated network. The seed drives distribution
// sampling only; network generation has its own seed.
func NewEngine(net *Network, seed int64) *Engine {
	return &Engine{
		Network: net,
		plans:   make(map[string]*Plan),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// PlanDistribution splits the roster into insiders and outsiders and builds
// a plan per agent. Insiders receive 3–5 truthful clues sampled to cover
// all three tiers when available; outsiders receive 1–2 clues with no
// truthfulness bias, so they may receive misinformation.
func (e *Engine) PlanDistribution(roster []string, insiderFraction float64) {
	if insiderFraction <= 0 || insiderFraction >= 1 {
		insiderFraction = DefaultInsiderFraction
	}

	shuffled := append([]string(nil), roster...)
	e.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	insiderCount := int(math.Round(float64(len(shuffled)) * insiderFraction))
	if insiderCount < 1 && len(shuffled) > 0 {
		insiderCount = 1
	}

	var truthful []*Clue
	for _, c := range e.Network.Ordered {
		if c.Truthful {
			truthful = append(truthful, c)
		}
	}

	for i, agentID := range shuffled {
		insider := i < insiderCount
		var picked []*Clue
		if insider {
			picked = e.sampleInsider(truthful)
		} else {
			picked = e.sampleOutsider()
		}
		picked = e.withPrerequisites(picked)
		sort.Slice(picked, func(a, b int) bool {
			if picked[a].RevealDay != picked[b].RevealDay {
				return picked[a].RevealDay < picked[b].RevealDay
			}
			return picked[a].ID < picked[b].ID
		})

		plan := &Plan{AgentID: agentID, Insider: insider, Clues: picked}
		for _, c := range picked {
			plan.ExpectedValue += c.Value
		}
		e.plans[agentID] = plan
	}
}

// sampleInsider picks 3–5 truthful clues, seeding one per tier first so the
// set spans the timeline whenever the network allows it.
func (e *Engine) sampleInsider(truthful []*Clue) []*Clue {
	want := 3 + e.rng.Intn(3)
	seen := make(map[string]bool)
	var picked []*Clue

	for _, tier := range []Tier{TierEarly, TierMid, TierLate} {
		var pool []*Clue
		for _, c := range truthful {
			if c.Tier == tier && !seen[c.ID] {
				pool = append(pool, c)
			}
		}
		if len(pool) == 0 {
			continue
		}
		c := pool[e.rng.Intn(len(pool))]
		picked = append(picked, c)
		seen[c.ID] = true
	}

	for len(picked) < want {
		var pool []*Clue
		for _, c := range truthful {
			if !seen[c.ID] {
				pool = append(pool, c)
			}
		}
		if len(pool) == 0 {
			break
		}
		c := pool[e.rng.Intn(len(pool))]
		picked = append(picked, c)
		seen[c.ID] = true
	}
	return picked
}

// sampleOutsider picks 1–2 clues from the whole network, truthful or not.
func (e *Engine) sampleOutsider() []*Clue {
	want := 1 + e.rng.Intn(2)
	all := e.Network.Ordered
	if len(all) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var picked []*Clue
	for len(picked) < want && len(picked) < len(all) {
		c := all[e.rng.Intn(len(all))]
		if seen[c.ID] {
			continue
		}
		picked = append(picked, c)
		seen[c.ID] = true
	}
	return picked
}

// withPrerequisites closes a clue set over its prerequisite edges so a plan
// never schedules a clue whose dependencies the agent will never hold.
func (e *Engine) withPrerequisites(picked []*Clue) []*Clue {
	seen := make(map[string]bool, len(picked))
	for _, c := range picked {
		seen[c.ID] = true
	}
	queue := append([]*Clue(nil), picked...)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, pid := range c.Prerequisites {
			if seen[pid] {
				continue
			}
			p, ok := e.Network.Clues[pid]
			if !ok {
				continue
			}
			seen[pid] = true
			picked = append(picked, p)
			queue = append(queue, p)
		}
	}
	return picked
}

// CluesForDay returns the clues due to the given agent on exactly the given
// day whose prerequisites were all released to that agent on a strictly
// earlier day. Days outside [1,28] and unknown agents return nil, never an
// error.
func (e *Engine) CluesForDay(agentID string, day int) []*Clue {
	if day < FirstClueDay || day > LastClueDay {
		return nil
	}
	plan, ok := e.plans[agentID]
	if !ok {
		return nil
	}

	inPlan := make(map[string]*Clue, len(plan.Clues))
	for _, c := range plan.Clues {
		inPlan[c.ID] = c
	}

	var due []*Clue
	for _, c := range plan.Clues {
		if c.RevealDay != day {
			continue
		}
		if e.released(c, inPlan, day, make(map[string]bool)) {
			due = append(due, c)
		}
	}
	return due
}

// released reports whether every prerequisite of c is in the plan with a
// strictly earlier reveal day, transitively. The generator enforces the
// day ordering, so the walk terminates.
func (e *Engine) released(c *Clue, inPlan map[string]*Clue, day int, visiting map[string]bool) bool {
	if visiting[c.ID] {
		return false
	}
	visiting[c.ID] = true
	for _, pid := range c.Prerequisites {
		p, ok := inPlan[pid]
		if !ok || p.RevealDay >= c.RevealDay {
			return false
		}
		if !e.released(p, inPlan, p.RevealDay, visiting) {
			return false
		}
	}
	return true
}
