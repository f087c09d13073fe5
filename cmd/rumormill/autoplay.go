package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/calderas/rumormill/internal/game"
	"github.com/calderas/rumormill/internal/market"
)

// player is a seat-filling autonomous agent for live runs. It trades on a
// crude signal (clue volume plus a personal bias), chats, and follows
// whoever posts. Real agent integrations would replace this loop.
type player struct {
	s    *game.Session
	id   string
	rng  *rand.Rand
	lean market.Outcome
}

var playerNames = []string{
	"Marlow", "Ines", "Tavish", "Petra", "Oz",
	"Cordelia", "Baxter", "Yuki", "Soren", "Amara",
	"Felix", "Noor", "Dmitri", "Wren", "Caspian",
}

func seatAgents(s *game.Session, n int, seed int64) []*player {
	rng := rand.New(rand.NewSource(seed + 99))
	players := make([]*player, 0, n)
	for i := 0; i < n; i++ {
		name := playerNames[i%len(playerNames)]
		if i >= len(playerNames) {
			name = fmt.Sprintf("%s-%d", name, i/len(playerNames)+1)
		}
		id := fmt.Sprintf("agent-%02d", i+1)
		if !s.JoinLobby(id, name, game.AgentAI, 40+rng.Float64()*20) {
			continue
		}
		lean := market.OutcomeYes
		if rng.Intn(2) == 0 {
			lean = market.OutcomeNo
		}
		players = append(players, &player{
			s:    s,
			id:   id,
			rng:  rand.New(rand.NewSource(seed + int64(i)*31)),
			lean: lean,
		})
	}
	return players
}

func (p *player) play(ctx context.Context) {
	// Staggered cadence so the feed doesn't pulse in lockstep.
	interval := 20*time.Second + time.Duration(p.rng.Intn(20000))*time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.s.Ended() {
				return
			}
			p.act()
		}
	}
}

func (p *player) act() {
	switch p.rng.Intn(10) {
	case 0, 1, 2:
		p.bet()
	case 3, 4:
		p.post()
	case 5:
		p.follow()
	case 6, 7:
		p.react()
	default:
		// Sit this one out.
	}
}

func (p *player) bet() {
	// Lean shifts with clue volume: the more an agent has been told, the
	// harder it presses its position.
	clues := len(p.s.DeliveredClues(p.id))
	amount := 10 + float64(p.rng.Intn(10*(clues+1)))
	p.s.PlaceBet(p.id, p.lean, amount)
}

func (p *player) post() {
	m := p.s.Market()
	lines := []string{
		fmt.Sprintf("Market sits at %d%% YES. My gut says otherwise.", m.YesOdds),
		"Anyone else getting interesting mail, or is it just me?",
		fmt.Sprintf("Day %d and still nobody has hard proof. Typical.", p.s.Day()),
		"Careful whose tips you trade on.",
	}
	p.s.PostToFeed(p.id, lines[p.rng.Intn(len(lines))], "")
}

func (p *player) follow() {
	roster := p.s.Roster()
	if len(roster) < 2 {
		return
	}
	target := roster[p.rng.Intn(len(roster))]
	if target != p.id {
		p.s.FollowAgent(p.id, target)
	}
}

func (p *player) react() {
	feed := p.s.Feed(5)
	if len(feed) == 0 {
		return
	}
	post := feed[p.rng.Intn(len(feed))]
	if post.AuthorID == p.id {
		return
	}
	reaction := game.ReactionLike
	if p.rng.Intn(4) == 0 {
		reaction = game.ReactionDislike
	}
	p.s.ReactToPost(post.ID, p.id, reaction)
}
