package game

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/calderas/rumormill/internal/scenario"
)

// npcTaskQueueSize bounds the background task queue. When it is full new
// NPC chatter is dropped; it is optional color, never worth blocking the
// tick loop for.
const npcTaskQueueSize = 32

// npcMinPostGap is the caller-side rate limit per NPC.
const npcMinPostGap = 45 * time.Second

// genTimeout bounds a single content generator call.
const genTimeout = 20 * time.Second

// npcActivity drives best-effort NPC behavior: periodic posting, market
// reactions, and mention replies. It runs on its own timer, independent of
// the day ticker; all session mutations happen under the session lock.
type npcActivity struct {
	s      *Session
	noise  opensimplex.Noise
	rng    *rand.Rand
	tasks  chan func()
	done   chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	lastPost map[string]time.Time
}

// StartNPCActivity begins the background NPC loop. interval is how often
// the rhythm is sampled; content comes from the configured
// ContentGenerator. No-op if called twice.
func (s *Session) StartNPCActivity(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.npc != nil || s.ended {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	n := &npcActivity{
		s:        s,
		noise:    opensimplex.New(s.cfg.Seed),
		rng:      rand.New(rand.NewSource(s.cfg.Seed + 7)),
		tasks:    make(chan func(), npcTaskQueueSize),
		done:     make(chan struct{}),
		lastPost: make(map[string]time.Time),
	}
	s.npc = n

	go n.drain()
	go n.run(interval)
}

// drain executes queued tasks one at a time. A single worker keeps
// generator calls serialized, which is the rate limit the generator
// contract expects from its caller.
func (n *npcActivity) drain() {
	for {
		select {
		case <-n.done:
			return
		case task := <-n.tasks:
			task()
		}
	}
}

// run samples the activity rhythm on a timer and queues periodic posts.
func (n *npcActivity) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	start := time.Now()

	for {
		select {
		case <-n.done:
			return
		case <-ticker.C:
			if n.s.Ended() {
				return
			}
			n.maybePost(time.Since(start))
		}
	}
}

// maybePost samples smooth noise per NPC and queues a periodic post for
// NPCs whose activity curve is high right now. The noise makes NPC
// chattiness ebb and flow over the game instead of firing uniformly.
func (n *npcActivity) maybePost(elapsed time.Duration) {
	t := elapsed.Minutes()
	for i, npc := range n.s.Scenario.NPCs {
		level := n.noise.Eval2(t/7, float64(i)*13.7)
		if level < 0.35 {
			continue
		}
		if !n.allow(npc.ID) {
			continue
		}
		n.queueGenerate(npc.ID, "", "periodic")
	}
}

// allow enforces the per-NPC minimum gap between posts.
func (n *npcActivity) allow(npcID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if time.Since(n.lastPost[npcID]) < npcMinPostGap {
		return false
	}
	n.lastPost[npcID] = time.Now()
	return true
}

// queueMarketReaction picks an NPC to comment on a large odds move.
// Called from under the session lock; the channel send never blocks.
func (n *npcActivity) queueMarketReaction(yesOdds, delta int) {
	npcs := n.s.Scenario.NPCs
	if len(npcs) == 0 {
		return
	}
	npc := npcs[n.rng.Intn(len(npcs))]
	n.queueGenerate(npc.ID, "", "market_reaction")
}

// maybeQueueMentionReply queues a reply when a feed post names an NPC.
// Called from under the session lock.
func (n *npcActivity) maybeQueueMentionReply(post *Post) {
	if post.AuthorID == "" {
		return
	}
	lower := strings.ToLower(post.Content)
	for _, npc := range n.s.Scenario.NPCs {
		if !strings.Contains(lower, "@"+strings.ToLower(npc.ID)) &&
			!strings.Contains(lower, "@"+strings.ToLower(npc.Name)) {
			continue
		}
		if !n.allow(npc.ID) {
			continue
		}
		n.queueGenerate(npc.ID, post.ID, "mention_reply")
	}
}

// queueGenerate enqueues one fire-and-forget generation task. Errors are
// logged and swallowed; a full queue drops the task.
func (n *npcActivity) queueGenerate(npcID, replyTo, reason string) {
	task := func() {
		n.s.mu.Lock()
		gen := n.s.gen
		if gen == nil {
			n.s.mu.Unlock()
			return
		}
		req := GenRequest{
			NPCID:      npcID,
			Scenario:   n.s.Scenario,
			Day:        n.s.day,
			RecentFeed: lastPosts(n.s.feed, 10),
			Reason:     reason,
		}
		req.YesOdds, _ = n.s.maker.OddsPercent()
		n.s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), genTimeout)
		res, err := gen.Generate(ctx, req)
		cancel()
		if err != nil {
			n.s.log.Warn("content generation failed", "npc", npcID, "reason", reason, "error", err)
			return
		}
		if !res.ShouldPost || res.Content == "" {
			return
		}

		n.s.mu.Lock()
		if !n.s.ended {
			n.s.appendPostLocked(npcID, res.Content, replyTo)
		}
		n.s.mu.Unlock()
	}

	select {
	case n.tasks <- task:
	default:
		n.s.log.Debug("npc task queue full, dropping", "npc", npcID, "reason", reason)
	}
}

func (n *npcActivity) stop() {
	n.stopOnce.Do(func() { close(n.done) })
}

func lastPosts(feed []*Post, n int) []*Post {
	if len(feed) <= n {
		return append([]*Post(nil), feed...)
	}
	return append([]*Post(nil), feed[len(feed)-n:]...)
}

// TemplateGenerator is the built-in ContentGenerator: template text keyed
// off the live odds and the NPC cast. It never errs and posts with modest
// confidence, which makes it a usable stand-in when no external generator
// is wired.
type TemplateGenerator struct {
	writer *scenario.TemplateWriter
	rng    *rand.Rand
}

// NewTemplateGenerator builds the fallback generator.
func NewTemplateGenerator(sc *scenario.Scenario, seed int64) *TemplateGenerator {
	return &TemplateGenerator{
		writer: scenario.NewTemplateWriter(sc, seed),
		rng:    rand.New(rand.NewSource(seed + 3)),
	}
}

// Generate implements ContentGenerator.
func (g *TemplateGenerator) Generate(_ context.Context, req GenRequest) (GenResult, error) {
	switch req.Reason {
	case "market_reaction":
		return GenResult{
			Content:    g.writer.MarketReaction(req.NPCID, req.YesOdds, req.YesOdds-50),
			ShouldPost: true,
			Confidence: 0.6,
		}, nil
	case "mention_reply":
		return GenResult{
			Content:    g.writer.NPCPost(req.NPCID, req.YesOdds),
			ShouldPost: g.rng.Float64() < 0.8,
			Confidence: 0.5,
		}, nil
	default:
		return GenResult{
			Content:    g.writer.NPCPost(req.NPCID, req.YesOdds),
			ShouldPost: g.rng.Float64() < 0.6,
			Confidence: 0.4,
		}, nil
	}
}
