package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/calderas/rumormill/internal/market"
)

// marketReactionThreshold is the odds move, in percentage points, that
// triggers an NPC market reaction.
const marketReactionThreshold = 10

// PlaceBet spends the given token amount on an outcome. Rejected when
// there is no active game, betting is closed, the market maker is absent,
// the agent is unknown, or the amount is non-positive. The token amount is
// converted to shares through the market maker's budget inversion.
func (s *Session) PlaceBet(agentID string, outcome market.Outcome, amount float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseLobby || s.ended || !s.bettingOpen || s.maker == nil {
		return false
	}
	if amount <= 0 || !outcome.Valid() {
		return false
	}
	if _, ok := s.agents[agentID]; !ok {
		return false
	}

	shares := s.maker.SharesForBudget(outcome, amount)
	if shares <= 0 {
		return false
	}
	trade := s.maker.Buy(outcome, shares)

	s.bets = append(s.bets, &Bet{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Outcome:   outcome,
		Amount:    amount,
		Shares:    trade.Shares,
		Timestamp: time.Now(),
	})
	s.addHoldingLocked(agentID, outcome, trade.Shares)
	s.publishMarketLocked()

	s.log.Info("bet placed",
		"agent", agentID,
		"outcome", outcome,
		"amount", amount,
		"shares", trade.Shares,
		"price", trade.NewPrice,
	)
	return true
}

// SellShares sells previously bought shares back to the market maker. The
// agent must hold at least the requested share count. The sale lands in
// the ledger as a negative-amount bet.
func (s *Session) SellShares(agentID string, outcome market.Outcome, shares float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseLobby || s.ended || !s.bettingOpen || s.maker == nil {
		return false
	}
	if shares <= 0 || !outcome.Valid() {
		return false
	}
	if s.holdingLocked(agentID, outcome) < shares {
		return false
	}

	trade := s.maker.Sell(outcome, shares)
	if trade.Shares <= 0 {
		return false
	}

	s.bets = append(s.bets, &Bet{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Outcome:   outcome,
		Amount:    -trade.Tokens,
		Shares:    -trade.Shares,
		Timestamp: time.Now(),
	})
	s.addHoldingLocked(agentID, outcome, -trade.Shares)
	s.publishMarketLocked()

	s.log.Info("shares sold",
		"agent", agentID,
		"outcome", outcome,
		"shares", trade.Shares,
		"proceeds", trade.Tokens,
	)
	return true
}

// Holdings returns the agent's current net shares per outcome.
func (s *Session) Holdings(agentID string) map[market.Outcome]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[market.Outcome]float64, 2)
	for o, v := range s.ledger[agentID] {
		out[o] = v
	}
	return out
}

// Bets returns a copy of the append-only bet ledger.
func (s *Session) Bets() []*Bet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Bet(nil), s.bets...)
}

func (s *Session) holdingLocked(agentID string, outcome market.Outcome) float64 {
	return s.ledger[agentID][outcome]
}

func (s *Session) addHoldingLocked(agentID string, outcome market.Outcome, delta float64) {
	h := s.ledger[agentID]
	if h == nil {
		h = make(map[market.Outcome]float64, 2)
		s.ledger[agentID] = h
	}
	h[outcome] += delta
	if h[outcome] < 0 {
		h[outcome] = 0
	}
}

// publishMarketLocked recomputes percentage odds from the live price,
// broadcasts the market update, and fires the NPC market-reaction hook if
// the YES odds moved at least marketReactionThreshold points since the
// last trade. Caller holds the lock.
func (s *Session) publishMarketLocked() {
	yes, no := s.maker.OddsPercent()
	s.bus.Publish(Event{Type: EventMarketUpdate, Payload: map[string]any{
		"yes_odds": yes,
		"no_odds":  no,
		"volume":   s.maker.Volume(),
	}})

	delta := yes - s.prevYesOdds
	if delta >= marketReactionThreshold || delta <= -marketReactionThreshold {
		s.prevYesOdds = yes
		if s.npc != nil {
			s.npc.queueMarketReaction(yes, delta)
		}
	}
}
