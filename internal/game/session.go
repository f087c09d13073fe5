package game

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calderas/rumormill/internal/entropy"
	"github.com/calderas/rumormill/internal/info"
	"github.com/calderas/rumormill/internal/market"
	"github.com/calderas/rumormill/internal/reputation"
	"github.com/calderas/rumormill/internal/scenario"
)

// TotalDays is the in-game timeline length. Betting closes entering day 29,
// the outcome reveals entering day 30.
const (
	TotalDays       = 30
	BettingCloseDay = 29
	RevealDay       = 30
)

// Config holds session tuning. Zero values fall back to defaults.
type Config struct {
	TickInterval    time.Duration // wall-clock tick, default 10s
	GameDuration    time.Duration // wall-clock length of the 30-day timeline, default 30m
	DebriefWindow   time.Duration // time between reveal and teardown, default 5m
	MarketLiquidity float64       // LMSR b, default 100
	TotalClues      int           // default 20
	InsiderFraction float64       // default 0.30
	Seed            int64         // drives clue generation and distribution
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 10 * time.Second
	}
	if c.GameDuration <= 0 {
		c.GameDuration = 30 * time.Minute
	}
	if c.DebriefWindow <= 0 {
		c.DebriefWindow = 5 * time.Minute
	}
	if c.MarketLiquidity <= 0 {
		c.MarketLiquidity = 100
	}
	if c.TotalClues <= 0 {
		c.TotalClues = 20
	}
	if c.InsiderFraction <= 0 || c.InsiderFraction >= 1 {
		c.InsiderFraction = info.DefaultInsiderFraction
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// Session is the single active game. Every public operation takes the
// session mutex: none of the invariants (price sum, odds sum, ledger
// consistency, clue ordering) survive unsynchronized concurrent writers.
type Session struct {
	mu sync.Mutex

	ID       string
	Scenario *scenario.Scenario
	cfg      Config

	agents map[string]*Agent
	roster []string // join order

	phase     Phase
	day       int
	startedAt time.Time

	maker  *market.Maker
	bets   []*Bet
	ledger map[string]map[market.Outcome]float64 // agent → outcome → net shares held

	feed      []*Post
	postIndex map[string]*Post
	dms       map[pairKey][]*DirectMessage
	chats     map[string]*GroupChat
	inboxes   map[string][]*Message

	clues          *info.Engine
	deliveredClues map[string][]string // agent → clue ids, the delivered-clue log

	rep *reputation.Engine
	bus *Bus

	bettingOpen bool
	outcome     market.Outcome // the secret; never exposed before reveal
	revealed    bool
	ended       bool

	prevYesOdds int // for the >=10-point market reaction hook

	gen      ContentGenerator
	attestor OutcomeAttestor
	sinks    []ResultSink
	npc      *npcActivity

	log *slog.Logger
}

// NewSession creates a session in the lobby phase. The scenario's secret
// outcome is fixed now (drawn via crypto entropy when the scenario says
// random) and stays hidden until reveal.
func NewSession(sc *scenario.Scenario, cfg Config) *Session {
	cfg = cfg.withDefaults()
	if sc == nil {
		sc = scenario.Default()
	}

	outcome := market.OutcomeNo
	switch sc.Outcome {
	case "YES":
		outcome = market.OutcomeYes
	case "NO":
		outcome = market.OutcomeNo
	default:
		if entropy.Coin() {
			outcome = market.OutcomeYes
		}
	}

	s := &Session{
		ID:             uuid.NewString(),
		Scenario:       sc,
		cfg:            cfg,
		agents:         make(map[string]*Agent),
		phase:          PhaseLobby,
		maker:          market.New(cfg.MarketLiquidity),
		ledger:         make(map[string]map[market.Outcome]float64),
		postIndex:      make(map[string]*Post),
		dms:            make(map[pairKey][]*DirectMessage),
		chats:          make(map[string]*GroupChat),
		inboxes:        make(map[string][]*Message),
		deliveredClues: make(map[string][]string),
		rep:            reputation.NewEngine(),
		bus:            NewBus(),
		outcome:        outcome,
		bettingOpen:    true,
		prevYesOdds:    50,
	}
	s.log = slog.Default().With("session", s.ID[:8])
	return s
}

// SetContentGenerator installs the external NPC content generator. The
// NPC loop reads it under the same lock, so installation is safe at any
// point, though normally it happens before Start.
func (s *Session) SetContentGenerator(gen ContentGenerator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen = gen
}

// SetAttestor installs the external outcome attestor.
func (s *Session) SetAttestor(a OutcomeAttestor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attestor = a
}

// AddResultSink registers a sink for the final result.
func (s *Session) AddResultSink(sink ResultSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Bus exposes the broadcast event bus for observers.
func (s *Session) Bus() *Bus { return s.bus }

// Leaderboard returns a snapshot of all reputation scores, sorted
// descending by overall score. Scores are copies; the live ones are only
// touched under the session lock.
func (s *Session) Leaderboard() []*reputation.Score {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.rep.Leaderboard()
	out := make([]*reputation.Score, len(live))
	for i, sc := range live {
		c := *sc
		out[i] = &c
	}
	return out
}

// AgentScore returns a copy of one agent's reputation score, or nil if the
// agent was never initialized.
func (s *Session) AgentScore(id string) *reputation.Score {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.rep.ScoreFor(id)
	if sc == nil {
		return nil
	}
	c := *sc
	return &c
}

// AgentStats returns the feedback summary for one agent.
func (s *Session) AgentStats(id string) reputation.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rep.AgentStats(id)
}

// SubmitFeedback records a peer rating for this game. Both parties must be
// on the roster; rating range, category, self-rating, duplicates, and the
// rater cooldown are enforced by the reputation engine. Returns false on
// any rejection.
func (s *Session) SubmitFeedback(raterID, rateeID string, category reputation.Category, rating int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[raterID]; !ok {
		return false
	}
	if _, ok := s.agents[rateeID]; !ok {
		return false
	}
	return s.rep.SubmitFeedback(raterID, rateeID, category, rating, s.ID)
}

// JoinLobby adds an agent to the roster. Fails once the game has started,
// on duplicate ids, and on empty ids.
func (s *Session) JoinLobby(id, displayName string, typ AgentType, reputationHint float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseLobby || id == "" {
		return false
	}
	if _, exists := s.agents[id]; exists {
		return false
	}
	if displayName == "" {
		displayName = id
	}
	if typ != AgentHuman && typ != AgentAI {
		typ = AgentAI
	}
	a := &Agent{
		ID:          id,
		DisplayName: displayName,
		Type:        typ,
		Reputation:  reputationHint,
		Following:   make(map[string]bool),
		Followers:   make(map[string]bool),
		JoinedAt:    time.Now(),
	}
	s.agents[id] = a
	s.roster = append(s.roster, id)
	s.rep.InitializeAgent(id, reputationHint)
	s.log.Info("agent joined lobby", "agent", id, "type", typ)
	return true
}

// Start leaves the lobby: generates the clue network, plans distribution
// across the current roster, and begins day 1. Returns false if already
// started or the lobby is empty.
func (s *Session) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseLobby || len(s.roster) == 0 {
		return false
	}

	genCfg := info.DefaultGenConfig(s.cfg.Seed)
	genCfg.TotalClues = s.cfg.TotalClues
	genCfg.Strategy = scenario.NewTemplateWriter(s.Scenario, s.cfg.Seed)
	net := info.GenerateNetwork(genCfg, s.Scenario.NPCIDs())

	s.clues = info.NewEngine(net, s.cfg.Seed+1)
	s.clues.PlanDistribution(append([]string(nil), s.roster...), s.cfg.InsiderFraction)

	s.startedAt = time.Now()
	s.bus.Publish(Event{Type: EventGameStarted, Payload: map[string]any{
		"session_id": s.ID,
		"scenario":   s.Scenario.ID,
		"question":   s.Scenario.Question,
		"agents":     len(s.roster),
	}})
	s.log.Info("game started",
		"scenario", s.Scenario.ID,
		"agents", len(s.roster),
		"clues", len(net.Ordered),
		"duration", s.cfg.GameDuration,
	)

	s.advanceDayLocked(1)
	return true
}

// Day returns the current in-game day (0 in the lobby).
func (s *Session) Day() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.day
}

// Phase returns the current state-machine phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// AgentByID returns the agent, or nil.
func (s *Session) AgentByID(id string) *Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agents[id]
}

// Roster returns agent ids in join order.
func (s *Session) Roster() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.roster...)
}

// Feed returns the most recent n feed posts, newest last. n <= 0 returns
// the whole feed.
func (s *Session) Feed(n int) []*Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n >= len(s.feed) {
		return append([]*Post(nil), s.feed...)
	}
	return append([]*Post(nil), s.feed[len(s.feed)-n:]...)
}

// Inbox returns the targeted messages delivered to an agent, oldest first.
func (s *Session) Inbox(agentID string) []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Message(nil), s.inboxes[agentID]...)
}

// DirectMessages returns the conversation between two agents.
func (s *Session) DirectMessages(a, b string) []*DirectMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*DirectMessage(nil), s.dms[dmKey(a, b)]...)
}

// MarketSnapshot is a read-only market view.
type MarketSnapshot struct {
	YesOdds     int     `json:"yes_odds"`
	NoOdds      int     `json:"no_odds"`
	YesPrice    float64 `json:"yes_price"`
	NoPrice     float64 `json:"no_price"`
	Volume      float64 `json:"volume"`
	BetCount    int     `json:"bet_count"`
	BettingOpen bool    `json:"betting_open"`
}

// Market returns the current market view.
func (s *Session) Market() MarketSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marketSnapshotLocked()
}

func (s *Session) marketSnapshotLocked() MarketSnapshot {
	yes, no := s.maker.OddsPercent()
	return MarketSnapshot{
		YesOdds:     yes,
		NoOdds:      no,
		YesPrice:    s.maker.YesPrice(),
		NoPrice:     s.maker.NoPrice(),
		Volume:      s.maker.Volume(),
		BetCount:    len(s.bets),
		BettingOpen: s.bettingOpen,
	}
}

// Ended reports whether the session has been torn down.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// End tears the session down. Idempotent; fires game_ended on the first
// call and stops background activity.
func (s *Session) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.phase = PhaseEnded
	npc := s.npc
	revealed := s.revealed
	s.mu.Unlock()

	if npc != nil {
		npc.stop()
	}
	if !revealed {
		// Aborted before reveal; the reveal path already broadcast the
		// terminal event otherwise.
		s.bus.Publish(Event{Type: EventGameEnded, Payload: map[string]any{"session_id": s.ID}})
	}
	s.log.Info("session ended")
}

// systemPost appends a post authored by the system and broadcasts it.
// Caller holds the lock.
func (s *Session) systemPostLocked(content string) *Post {
	return s.appendPostLocked("", content, "")
}

// appendPostLocked creates a post, parses mentions, notifies mentioned
// agents, and broadcasts new_post. Caller holds the lock.
func (s *Session) appendPostLocked(authorID, content, replyTo string) *Post {
	p := &Post{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Content:   content,
		ReplyTo:   replyTo,
		Mentions:  s.parseMentionsLocked(content),
		Timestamp: time.Now(),
		Reactions: make(map[string]Reaction),
	}
	s.feed = append(s.feed, p)
	s.postIndex[p.ID] = p

	for _, mentioned := range p.Mentions {
		if mentioned == authorID {
			continue
		}
		s.deliverLocked(&Message{
			Type:    MsgMention,
			To:      mentioned,
			From:    authorID,
			Content: content,
			Meta:    map[string]any{"post_id": p.ID},
		})
	}

	s.bus.Publish(Event{Type: EventNewPost, Payload: map[string]any{
		"post_id": p.ID,
		"author":  authorID,
		"content": content,
	}})

	if s.npc != nil {
		s.npc.maybeQueueMentionReply(p)
	}
	return p
}

// deliverLocked appends a targeted message to the recipient's inbox.
// Caller holds the lock.
func (s *Session) deliverLocked(msg *Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.inboxes[msg.To] = append(s.inboxes[msg.To], msg)
}
