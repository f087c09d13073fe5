package game

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/calderas/rumormill/internal/market"
	"github.com/calderas/rumormill/internal/reputation"
)

// attestTimeout bounds the external attestor call.
const attestTimeout = 30 * time.Second

// revealLocked runs the terminal transition exactly once: posts the secret
// outcome publicly, computes winners and payouts, settles reputation, hands
// the result to the attestor and sinks, and schedules teardown after the
// debrief window. Caller holds the lock.
func (s *Session) revealLocked() {
	if s.revealed {
		return
	}
	s.revealed = true
	s.bettingOpen = false
	s.phase = PhaseReveal

	s.systemPostLocked(fmt.Sprintf("The outcome is revealed: %s. %s", s.outcome, s.Scenario.Question))
	s.log.Info("outcome revealed", "outcome", s.outcome)

	payouts, stakes := s.computePayoutsLocked()
	betrayers := s.detectBetrayersLocked()

	var winners []string
	total := 0.0
	for id, p := range payouts {
		winners = append(winners, id)
		total += p
		if a := s.agents[id]; a != nil {
			a.WinCount++
		}
	}
	sort.Strings(winners)

	var correct []string
	for id := range stakes {
		correct = append(correct, id)
	}
	sort.Strings(correct)

	s.rep.SettleGame(reputation.GameResult{
		GameID:            s.ID,
		Participants:      append([]string(nil), s.roster...),
		Winners:           winners,
		CorrectPredictors: correct,
		Betrayers:         betrayers,
	})

	result := &Result{
		SessionID:   s.ID,
		ScenarioID:  s.Scenario.ID,
		Outcome:     string(s.outcome),
		RevealedAt:  time.Now(),
		Payouts:     payouts,
		TotalPayout: total,
		Betrayers:   betrayers,
		Bets:        append([]*Bet(nil), s.bets...),
	}

	// External collaborators run outside the lock: attestation and archive
	// writes are best-effort and must never block or corrupt session state.
	attestor, sinks := s.attestor, s.sinks
	go func() {
		if attestor != nil {
			ctx, cancel := context.WithTimeout(context.Background(), attestTimeout)
			blob, err := attestor.Attest(ctx, AttestRequest{
				SessionID:   result.SessionID,
				Outcome:     result.Outcome,
				Timestamp:   result.RevealedAt,
				Winners:     winners,
				TotalPayout: total,
			})
			cancel()
			if err != nil {
				s.log.Error("attestation failed", "error", err)
			} else {
				result.Attestation = blob
			}
		}
		for _, sink := range sinks {
			if err := sink.SaveResult(result); err != nil {
				s.log.Error("result sink failed", "error", err)
			}
		}
	}()

	s.bus.Publish(Event{Type: EventGameEnded, Payload: map[string]any{
		"outcome":      string(s.outcome),
		"winners":      winners,
		"total_payout": total,
	}})

	// Teardown after the debrief window.
	time.AfterFunc(s.cfg.DebriefWindow, s.End)
}

// computePayoutsLocked redistributes the losing side's stake pro-rata by
// stake size to correct-outcome bettors on top of their own stake back.
// Only positive-amount ledger entries count; sells are excluded. Returns
// the payout map and the winning-stake map.
func (s *Session) computePayoutsLocked() (payouts, stakes map[string]float64) {
	stakes = make(map[string]float64)
	losingTotal := 0.0
	winningTotal := 0.0

	for _, bet := range s.bets {
		if bet.Amount <= 0 {
			continue
		}
		if bet.Outcome == s.outcome {
			stakes[bet.AgentID] += bet.Amount
			winningTotal += bet.Amount
		} else {
			losingTotal += bet.Amount
		}
	}

	payouts = make(map[string]float64, len(stakes))
	if winningTotal <= 0 {
		return payouts, stakes
	}
	for id, stake := range stakes {
		payouts[id] = stake + losingTotal*(stake/winningTotal)
	}
	return payouts, stakes
}

// detectBetrayersLocked flags group-chat members whose declared position
// (their largest positive bet) lands on the minority side of their group.
// An agent is never counted twice across chats. Reputation-only; market
// settlement ignores this.
func (s *Session) detectBetrayersLocked() []string {
	// Largest positive bet per agent.
	declared := make(map[string]market.Outcome)
	largest := make(map[string]float64)
	for _, bet := range s.bets {
		if bet.Amount <= 0 {
			continue
		}
		if bet.Amount > largest[bet.AgentID] {
			largest[bet.AgentID] = bet.Amount
			declared[bet.AgentID] = bet.Outcome
		}
	}

	flagged := make(map[string]bool)
	for _, chat := range s.chats {
		var yesSide, noSide []string
		for _, member := range chat.Members {
			pos, ok := declared[member]
			if !ok {
				continue
			}
			if pos == market.OutcomeYes {
				yesSide = append(yesSide, member)
			} else {
				noSide = append(noSide, member)
			}
		}
		if len(yesSide) == 0 || len(noSide) == 0 {
			continue // group is unanimous, nobody betrayed
		}
		minority := yesSide
		if len(noSide) < len(yesSide) {
			minority = noSide
		} else if len(yesSide) == len(noSide) {
			continue // even split has no minority
		}
		for _, id := range minority {
			flagged[id] = true
		}
	}

	out := make([]string, 0, len(flagged))
	for id := range flagged {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Outcome returns the secret outcome and whether it has been revealed.
// Before reveal the outcome is withheld.
func (s *Session) Outcome() (market.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.revealed {
		return "", false
	}
	return s.outcome, true
}
