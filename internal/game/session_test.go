package game

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/calderas/rumormill/internal/market"
	"github.com/calderas/rumormill/internal/reputation"
	"github.com/calderas/rumormill/internal/scenario"
)

// testSession returns a started session with the secret outcome pinned to
// YES and n agents named agent-1..agent-n.
func testSession(t *testing.T, n int, outcome string) *Session {
	t.Helper()
	sc := scenario.Default()
	sc.Outcome = outcome

	s := NewSession(sc, Config{
		GameDuration:  time.Hour,
		DebriefWindow: time.Minute,
		Seed:          42,
	})
	for i := 1; i <= n; i++ {
		id := agentID(i)
		if !s.JoinLobby(id, "Agent "+id, AgentAI, 50) {
			t.Fatalf("join failed for %s", id)
		}
	}
	if !s.Start() {
		t.Fatal("start failed")
	}
	return s
}

func agentID(i int) string {
	return "agent-" + string(rune('0'+i))
}

func TestLobbyRules(t *testing.T) {
	s := NewSession(scenario.Default(), Config{Seed: 1})

	if !s.JoinLobby("ada", "Ada", AgentHuman, 60) {
		t.Fatal("first join rejected")
	}
	if s.JoinLobby("ada", "Ada Again", AgentHuman, 60) {
		t.Error("duplicate join accepted")
	}
	if s.JoinLobby("", "Nameless", AgentHuman, 50) {
		t.Error("empty id accepted")
	}
	if s.Phase() != PhaseLobby {
		t.Errorf("phase = %s before start", s.Phase())
	}

	if !s.Start() {
		t.Fatal("start failed")
	}
	if s.JoinLobby("late", "Latecomer", AgentHuman, 50) {
		t.Error("join accepted after start")
	}
	if s.Start() {
		t.Error("second start accepted")
	}
	if s.Phase() != PhaseEarly || s.Day() != 1 {
		t.Errorf("after start: phase=%s day=%d, want EARLY day 1", s.Phase(), s.Day())
	}
}

func TestPhaseLadder(t *testing.T) {
	s := testSession(t, 3, "YES")

	steps := []struct {
		day   int
		phase Phase
	}{
		{5, PhaseEarly},
		{10, PhaseEarly},
		{11, PhaseMid},
		{20, PhaseMid},
		{21, PhaseLate},
		{29, PhaseLate},
		{30, PhaseReveal},
	}
	for _, st := range steps {
		s.AdvanceToDay(st.day)
		if got := s.Phase(); got != st.phase {
			t.Errorf("day %d: phase = %s, want %s", st.day, got, st.phase)
		}
	}
}

func TestBettingClosesOnceAtDay29(t *testing.T) {
	s := testSession(t, 3, "YES")

	if !s.PlaceBet("agent-1", market.OutcomeYes, 50) {
		t.Fatal("bet rejected while betting open")
	}

	s.AdvanceToDay(29)
	if s.Market().BettingOpen {
		t.Error("betting still open at day 29")
	}
	if s.PlaceBet("agent-1", market.OutcomeYes, 50) {
		t.Error("bet accepted after close")
	}
	if s.SellShares("agent-1", market.OutcomeYes, 1) {
		t.Error("sell accepted after close")
	}

	// The close announcement must appear exactly once.
	closes := 0
	for _, p := range s.Feed(0) {
		if p.AuthorID == "" && p.Content == "Betting is now closed. The outcome will be revealed tomorrow." {
			closes++
		}
	}
	if closes != 1 {
		t.Errorf("betting-close announcement posted %d times, want 1", closes)
	}
}

func TestPlaceBetValidation(t *testing.T) {
	s := testSession(t, 2, "YES")

	if s.PlaceBet("agent-1", market.OutcomeYes, 0) {
		t.Error("zero amount accepted")
	}
	if s.PlaceBet("agent-1", market.OutcomeYes, -10) {
		t.Error("negative amount accepted")
	}
	if s.PlaceBet("ghost", market.OutcomeYes, 10) {
		t.Error("unknown agent accepted")
	}
	if s.PlaceBet("agent-1", market.Outcome("MAYBE"), 10) {
		t.Error("invalid outcome accepted")
	}
}

func TestSellRequiresHoldings(t *testing.T) {
	s := testSession(t, 2, "YES")

	if s.SellShares("agent-1", market.OutcomeYes, 5) {
		t.Error("sell accepted with no holdings")
	}

	s.PlaceBet("agent-1", market.OutcomeYes, 100)
	held := s.Holdings("agent-1")[market.OutcomeYes]
	if held <= 0 {
		t.Fatal("bet produced no holdings")
	}
	if s.SellShares("agent-1", market.OutcomeYes, held+1) {
		t.Error("oversell accepted")
	}
	if !s.SellShares("agent-1", market.OutcomeYes, held/2) {
		t.Error("valid sell rejected")
	}

	// The sale lands in the ledger as a negative-amount entry.
	bets := s.Bets()
	last := bets[len(bets)-1]
	if last.Amount >= 0 || last.Shares >= 0 {
		t.Errorf("sell ledger entry amount=%v shares=%v, want negative", last.Amount, last.Shares)
	}
}

func TestOppositeBettorsSettlement(t *testing.T) {
	s := testSession(t, 2, "YES")

	if !s.PlaceBet("agent-1", market.OutcomeYes, 100) {
		t.Fatal("yes bet failed")
	}
	if !s.PlaceBet("agent-2", market.OutcomeNo, 100) {
		t.Fatal("no bet failed")
	}

	s.AdvanceToDay(30)

	outcome, revealed := s.Outcome()
	if !revealed || outcome != market.OutcomeYes {
		t.Fatalf("outcome = %v revealed=%v", outcome, revealed)
	}

	s.mu.Lock()
	payouts, _ := s.computePayoutsLocked()
	s.mu.Unlock()

	if payouts["agent-1"] <= 100 {
		t.Errorf("YES bettor payout = %v, want > 100", payouts["agent-1"])
	}
	if _, ok := payouts["agent-2"]; ok {
		t.Errorf("NO bettor received a payout: %v", payouts["agent-2"])
	}

	// Zero-sum: the single winner takes both stakes.
	if math.Abs(payouts["agent-1"]-200) > 1e-9 {
		t.Errorf("winner payout = %v, want 200", payouts["agent-1"])
	}
}

func TestSettlementZeroSumProRata(t *testing.T) {
	s := testSession(t, 4, "YES")

	s.PlaceBet("agent-1", market.OutcomeYes, 300)
	s.PlaceBet("agent-2", market.OutcomeYes, 100)
	s.PlaceBet("agent-3", market.OutcomeNo, 200)
	s.PlaceBet("agent-4", market.OutcomeNo, 50)

	s.mu.Lock()
	payouts, stakes := s.computePayoutsLocked()
	s.mu.Unlock()

	total := 0.0
	for id, p := range payouts {
		total += p
		if stakes[id] <= 0 {
			t.Errorf("payout recipient %s has no winning stake", id)
		}
	}
	if math.Abs(total-650) > 1e-9 {
		t.Errorf("total payouts = %v, want 650 (all stakes)", total)
	}

	// Pro-rata: agent-1 staked 3x agent-2, so wins 3x the spoils.
	spoils1 := payouts["agent-1"] - 300
	spoils2 := payouts["agent-2"] - 100
	if math.Abs(spoils1-3*spoils2) > 1e-9 {
		t.Errorf("spoils not pro-rata: %v vs %v", spoils1, spoils2)
	}
}

func TestRevealIsIdempotent(t *testing.T) {
	s := testSession(t, 2, "NO")
	s.AdvanceToDay(30)
	s.AdvanceToDay(30)
	s.Tick() // further ticks after reveal must be inert

	reveals := 0
	for _, p := range s.Feed(0) {
		if p.AuthorID == "" && len(p.Content) > 0 && p.Content[0] == 'T' &&
			containsOutcome(p.Content) {
			reveals++
		}
	}
	if reveals != 1 {
		t.Errorf("outcome posted %d times, want 1", reveals)
	}
}

func containsOutcome(content string) bool {
	return len(content) >= 24 && content[:24] == "The outcome is revealed:"
}

func TestTeardownAfterDebrief(t *testing.T) {
	sc := scenario.Default()
	sc.Outcome = "YES"
	s := NewSession(sc, Config{
		GameDuration:  time.Hour,
		DebriefWindow: 20 * time.Millisecond,
		Seed:          42,
	})
	s.JoinLobby("ada", "Ada", AgentHuman, 50)
	s.JoinLobby("bob", "Bob", AgentHuman, 50)
	if !s.Start() {
		t.Fatal("start failed")
	}
	s.AdvanceToDay(30)

	deadline := time.Now().Add(2 * time.Second)
	for !s.Ended() {
		if time.Now().After(deadline) {
			t.Fatal("session did not tear down after the debrief window")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if s.Phase() != PhaseEnded {
		t.Errorf("phase = %s after teardown", s.Phase())
	}
}

func TestFollowRules(t *testing.T) {
	s := testSession(t, 3, "YES")

	if s.FollowAgent("agent-1", "agent-1") {
		t.Error("self-follow accepted")
	}
	if !s.FollowAgent("agent-1", "agent-2") {
		t.Error("follow rejected")
	}
	if s.FollowAgent("agent-1", "agent-2") {
		t.Error("duplicate follow accepted")
	}

	a1 := s.AgentByID("agent-1")
	a2 := s.AgentByID("agent-2")
	if !a1.Following["agent-2"] || !a2.Followers["agent-1"] {
		t.Error("relation sets not symmetric after follow")
	}

	// The target got a notification.
	found := false
	for _, m := range s.Inbox("agent-2") {
		if m.Type == MsgFollow && m.From == "agent-1" {
			found = true
		}
	}
	if !found {
		t.Error("follow notification not delivered")
	}

	if !s.UnfollowAgent("agent-1", "agent-2") {
		t.Error("unfollow rejected")
	}
	if s.UnfollowAgent("agent-1", "agent-2") {
		t.Error("second unfollow accepted")
	}
	if a1.Following["agent-2"] || a2.Followers["agent-1"] {
		t.Error("relation sets not cleared after unfollow")
	}
}

func TestMentions(t *testing.T) {
	s := testSession(t, 3, "YES")

	if !s.PostToFeed("agent-1", "watch the docks @agent-2, and you too @Agent agent-3!", "") {
		t.Fatal("post failed")
	}
	// "@agent-2," matches agent-2 after punctuation trim. "@Agent" matches
	// nobody (display names here are "Agent agent-N", multiword).
	feed := s.Feed(1)
	post := feed[0]
	if len(post.Mentions) != 1 || post.Mentions[0] != "agent-2" {
		t.Errorf("mentions = %v, want [agent-2]", post.Mentions)
	}

	got := false
	for _, m := range s.Inbox("agent-2") {
		if m.Type == MsgMention {
			got = true
		}
	}
	if !got {
		t.Error("mention notification not delivered")
	}
	for _, m := range s.Inbox("agent-1") {
		if m.Type == MsgMention {
			t.Error("author notified of own mention")
		}
	}

	// Self-mentions and duplicates collapse.
	s.PostToFeed("agent-2", "@agent-2 @agent-3 @agent-3 meet me", "")
	post = s.Feed(1)[0]
	if len(post.Mentions) != 2 {
		t.Errorf("mentions = %v, want [agent-2 agent-3] deduplicated", post.Mentions)
	}
}

func TestReactionToggle(t *testing.T) {
	s := testSession(t, 2, "YES")
	s.PostToFeed("agent-1", "big if true", "")
	postID := s.Feed(1)[0].ID

	if !s.ReactToPost(postID, "agent-2", ReactionLike) {
		t.Fatal("reaction rejected")
	}
	if p := s.Feed(1)[0]; p.Likes != 1 || p.Dislikes != 0 {
		t.Errorf("counts = %d/%d after like", p.Likes, p.Dislikes)
	}

	// Different reaction replaces.
	s.ReactToPost(postID, "agent-2", ReactionDislike)
	if p := s.Feed(1)[0]; p.Likes != 0 || p.Dislikes != 1 {
		t.Errorf("counts = %d/%d after replace", p.Likes, p.Dislikes)
	}

	// Same reaction clears.
	s.ReactToPost(postID, "agent-2", ReactionDislike)
	if p := s.Feed(1)[0]; p.Likes != 0 || p.Dislikes != 0 {
		t.Errorf("counts = %d/%d after toggle off", p.Likes, p.Dislikes)
	}

	if s.ReactToPost("missing", "agent-2", ReactionLike) {
		t.Error("reaction to unknown post accepted")
	}
	if s.ReactToPost(postID, "ghost", ReactionLike) {
		t.Error("reaction from unknown agent accepted")
	}
}

func TestDirectMessagesAndGroups(t *testing.T) {
	s := testSession(t, 3, "YES")

	if s.SendDirectMessage("agent-1", "agent-1", "hi me") {
		t.Error("self-DM accepted")
	}
	if !s.SendDirectMessage("agent-1", "agent-2", "psst") {
		t.Error("DM rejected")
	}
	if got := s.DirectMessages("agent-2", "agent-1"); len(got) != 1 {
		t.Errorf("conversation length = %d, want 1 (unordered pair key)", len(got))
	}

	chatID := s.CreateGroupChat("agent-1", "the syndicate", []string{"agent-2"})
	if chatID == "" {
		t.Fatal("group chat creation failed")
	}
	if !s.InviteToGroupChat(chatID, "agent-1", "agent-3") {
		t.Error("invite rejected")
	}
	if s.InviteToGroupChat(chatID, "agent-1", "agent-3") {
		t.Error("duplicate invite accepted")
	}
	if !s.SendGroupMessage(chatID, "agent-3", "in position") {
		t.Error("group message rejected")
	}
	if s.SendGroupMessage(chatID, "ghost", "hello") {
		t.Error("non-member message accepted")
	}
	if !s.LeaveGroupChat(chatID, "agent-2") {
		t.Error("leave rejected")
	}
	if s.GroupChatByID(chatID).HasMember("agent-2") {
		t.Error("member still present after leaving")
	}
}

func TestBetrayalDetection(t *testing.T) {
	s := testSession(t, 4, "YES")

	chat := s.CreateGroupChat("agent-1", "yes gang", []string{"agent-2", "agent-3"})
	if chat == "" {
		t.Fatal("chat creation failed")
	}

	s.PlaceBet("agent-1", market.OutcomeYes, 100)
	s.PlaceBet("agent-2", market.OutcomeYes, 80)
	s.PlaceBet("agent-3", market.OutcomeNo, 90) // the traitor
	s.PlaceBet("agent-4", market.OutcomeNo, 50) // not in any chat

	s.mu.Lock()
	betrayers := s.detectBetrayersLocked()
	s.mu.Unlock()

	if len(betrayers) != 1 || betrayers[0] != "agent-3" {
		t.Errorf("betrayers = %v, want [agent-3]", betrayers)
	}
}

func TestBetrayalEvenSplitHasNoMinority(t *testing.T) {
	s := testSession(t, 4, "YES")
	s.CreateGroupChat("agent-1", "split gang", []string{"agent-2", "agent-3", "agent-4"})

	s.PlaceBet("agent-1", market.OutcomeYes, 100)
	s.PlaceBet("agent-2", market.OutcomeYes, 100)
	s.PlaceBet("agent-3", market.OutcomeNo, 100)
	s.PlaceBet("agent-4", market.OutcomeNo, 100)

	s.mu.Lock()
	betrayers := s.detectBetrayersLocked()
	s.mu.Unlock()

	if len(betrayers) != 0 {
		t.Errorf("betrayers = %v on an even split, want none", betrayers)
	}
}

func TestBetrayalDeduplicatesAcrossChats(t *testing.T) {
	s := testSession(t, 4, "YES")
	s.CreateGroupChat("agent-1", "gang one", []string{"agent-2", "agent-3"})
	s.CreateGroupChat("agent-1", "gang two", []string{"agent-2", "agent-3"})

	s.PlaceBet("agent-1", market.OutcomeYes, 100)
	s.PlaceBet("agent-2", market.OutcomeYes, 80)
	s.PlaceBet("agent-3", market.OutcomeNo, 90)

	s.mu.Lock()
	betrayers := s.detectBetrayersLocked()
	s.mu.Unlock()

	if len(betrayers) != 1 {
		t.Errorf("betrayers = %v, want agent-3 once despite two chats", betrayers)
	}
}

func TestCluesDeliveredAsDMs(t *testing.T) {
	s := testSession(t, 5, "YES")
	s.AdvanceToDay(28)

	delivered := 0
	for i := 1; i <= 5; i++ {
		id := agentID(i)
		clueIDs := s.DeliveredClues(id)
		delivered += len(clueIDs)

		// Every delivered clue must have arrived as an inbox message too.
		clueMsgs := 0
		for _, m := range s.Inbox(id) {
			if m.Type == MsgClueDelivered {
				clueMsgs++
			}
		}
		if clueMsgs != len(clueIDs) {
			t.Errorf("%s: %d clue messages vs %d delivered clues", id, clueMsgs, len(clueIDs))
		}
	}
	if delivered == 0 {
		t.Error("no clues delivered across the whole game")
	}
}

func TestBroadcastEvents(t *testing.T) {
	sc := scenario.Default()
	sc.Outcome = "YES"
	s := NewSession(sc, Config{Seed: 9, DebriefWindow: time.Minute})
	ch, cancel := s.Bus().Subscribe()
	defer cancel()

	s.JoinLobby("ada", "Ada", AgentHuman, 50)
	s.Start()

	seen := make(map[EventType]bool)
	drain := func() {
		for {
			select {
			case ev := <-ch:
				seen[ev.Type] = true
			default:
				return
			}
		}
	}
	// Drain between stages so the subscriber buffer never overflows.
	for _, day := range []int{10, 20, 30} {
		s.AdvanceToDay(day)
		drain()
	}

	for _, want := range []EventType{
		EventGameStarted, EventDayChanged, EventNewPost,
		EventBettingClosed, EventGameEnded,
	} {
		if !seen[want] {
			t.Errorf("broadcast %s never observed", want)
		}
	}
}

func TestReputationSettledAtReveal(t *testing.T) {
	s := testSession(t, 2, "YES")
	s.PlaceBet("agent-1", market.OutcomeYes, 100)
	s.PlaceBet("agent-2", market.OutcomeNo, 100)
	s.AdvanceToDay(30)

	lb := s.Leaderboard()
	if len(lb) != 2 {
		t.Fatalf("leaderboard size = %d", len(lb))
	}
	if lb[0].AgentID != "agent-1" {
		t.Errorf("leaderboard leader = %s, want the winning bettor", lb[0].AgentID)
	}
	if s.AgentByID("agent-1").WinCount != 1 {
		t.Error("winner's win count not incremented")
	}
}

func TestSubmitFeedback(t *testing.T) {
	s := testSession(t, 3, "YES")

	if !s.SubmitFeedback("agent-1", "agent-2", reputation.CategoryHonesty, 4) {
		t.Fatal("valid feedback rejected")
	}
	if s.SubmitFeedback("agent-1", "agent-1", reputation.CategoryHonesty, 4) {
		t.Error("self-rating accepted")
	}
	if s.SubmitFeedback("agent-1", "nobody", reputation.CategorySkill, 4) {
		t.Error("rating for an agent outside the roster accepted")
	}
	if s.SubmitFeedback("nobody", "agent-2", reputation.CategorySkill, 4) {
		t.Error("rating by an agent outside the roster accepted")
	}
	if s.SubmitFeedback("agent-1", "agent-2", reputation.CategoryHonesty, 2) {
		t.Error("duplicate rating accepted")
	}
	// Same rater-ratee pair inside the cooldown window, fresh category.
	if s.SubmitFeedback("agent-1", "agent-2", reputation.CategorySkill, 5) {
		t.Error("rapid-fire second rating accepted")
	}
	if !s.SubmitFeedback("agent-3", "agent-2", reputation.CategorySkill, 5) {
		t.Error("independent rater blocked")
	}

	st := s.AgentStats("agent-2")
	if st.FeedbackCount != 2 {
		t.Errorf("feedback count = %d, want 2", st.FeedbackCount)
	}
}

func TestReputationReadsDuringReveal(t *testing.T) {
	s := testSession(t, 9, "YES")
	for i := 1; i <= 9; i++ {
		s.PlaceBet(agentID(i), market.OutcomeYes, 50)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			s.Leaderboard()
			s.AgentScore("agent-1")
			s.AgentStats("agent-1")
		}
	}()

	s.AdvanceToDay(30)
	close(done)
	wg.Wait()

	if lb := s.Leaderboard(); len(lb) != 9 {
		t.Fatalf("leaderboard size = %d after reveal", len(lb))
	}
}
