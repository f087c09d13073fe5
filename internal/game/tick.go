package game

import (
	"context"
	"fmt"
	"time"

	"github.com/calderas/rumormill/internal/scenario"
)

// RunTicker drives the day/phase state machine until the context is
// canceled or the session ends. Elapsed wall-clock time maps linearly onto
// the 30-day timeline; a single tick can advance several days if the
// process stalled, and each skipped day still runs its full transition in
// order.
func (s *Session) RunTicker(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.log.Info("ticker started", "interval", s.cfg.TickInterval, "game_duration", s.cfg.GameDuration)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("ticker stopped", "reason", ctx.Err())
			return
		case <-ticker.C:
			if s.Ended() {
				return
			}
			s.Tick()
		}
	}
}

// Tick recomputes the in-game day from elapsed time and advances the state
// machine if the day increased. Safe to call manually (the headless
// simulate command does).
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseLobby || s.phase == PhaseEnded || s.revealed {
		return
	}

	day := s.dayForElapsedLocked(time.Since(s.startedAt))
	for d := s.day + 1; d <= day; d++ {
		s.advanceDayLocked(d)
		if s.revealed {
			break
		}
	}
}

// dayForElapsedLocked maps elapsed wall-clock time onto days 1–30.
func (s *Session) dayForElapsedLocked(elapsed time.Duration) int {
	dayLength := s.cfg.GameDuration / TotalDays
	if dayLength <= 0 {
		return TotalDays
	}
	day := int(elapsed/dayLength) + 1
	if day > TotalDays {
		day = TotalDays
	}
	return day
}

// advanceDayLocked runs one day transition, in order: the system day
// announcement, the day's scripted scenario events, and per-agent clue
// delivery. Entering day 29 closes betting exactly once; entering day 30
// reveals exactly once. Caller holds the lock.
func (s *Session) advanceDayLocked(day int) {
	s.day = day
	s.phase = phaseForDay(day)

	s.bus.Publish(Event{Type: EventDayChanged, Payload: map[string]any{
		"day":   day,
		"phase": string(s.phase),
	}})
	s.systemPostLocked(fmt.Sprintf("Day %d of %d begins.", day, TotalDays))
	s.log.Info("day advanced", "day", day, "phase", s.phase)

	s.fireScriptedEventsLocked(day)
	s.deliverCluesLocked(day)

	if day >= BettingCloseDay && s.bettingOpen {
		s.bettingOpen = false
		s.systemPostLocked("Betting is now closed. The outcome will be revealed tomorrow.")
		s.bus.Publish(Event{Type: EventBettingClosed, Payload: map[string]any{"day": day}})
		s.log.Info("betting closed", "day", day)
	}

	if day >= RevealDay && !s.revealed {
		s.revealLocked()
	}
}

// fireScriptedEventsLocked posts the day's scripted scenario events:
// public events to the feed, private events as DMs to named targets.
func (s *Session) fireScriptedEventsLocked(day int) {
	for _, ev := range s.Scenario.EventsForDay(day) {
		switch ev.Type {
		case scenario.EventPublic:
			s.appendPostLocked(ev.From, ev.Content, "")
		case scenario.EventPrivate:
			for _, target := range ev.Targets {
				if _, ok := s.agents[target]; !ok {
					continue
				}
				s.sendDMLocked(ev.From, target, ev.Content, "")
			}
		}
	}
}

// deliverCluesLocked pulls the day's due clues per agent from the
// information engine and pushes them as DMs tagged with the originating
// NPC, logging each delivery.
func (s *Session) deliverCluesLocked(day int) {
	if s.clues == nil {
		return
	}
	for _, agentID := range s.roster {
		for _, clue := range s.clues.CluesForDay(agentID, day) {
			s.sendDMLocked(clue.NPCID, agentID, clue.Content, clue.ID)
			s.deliveredClues[agentID] = append(s.deliveredClues[agentID], clue.ID)
			s.deliverLocked(&Message{
				Type:    MsgClueDelivered,
				To:      agentID,
				From:    clue.NPCID,
				Content: clue.Content,
				Meta:    map[string]any{"clue_id": clue.ID, "day": day},
			})
		}
	}
}

// AdvanceToDay force-advances the state machine to the given day, running
// every intermediate day transition in order. Used by the headless
// simulate mode; the live ticker path reaches the same code through Tick.
func (s *Session) AdvanceToDay(day int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseLobby || s.phase == PhaseEnded {
		return
	}
	if day > TotalDays {
		day = TotalDays
	}
	for d := s.day + 1; d <= day; d++ {
		s.advanceDayLocked(d)
		if s.revealed {
			break
		}
	}
}

// DeliveredClues returns the ids of clues delivered to an agent so far.
func (s *Session) DeliveredClues(agentID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deliveredClues[agentID]...)
}
