package scenario

import (
	"fmt"
	"math/rand"

	"github.com/calderas/rumormill/internal/info"
)

// TemplateWriter produces clue text from tier/truth templates. It satisfies
// info.ContentStrategy, keeping content generation swappable without
// touching the scheduler.
type TemplateWriter struct {
	Scenario *Scenario
	rng      *rand.Rand
}

// NewTemplateWriter builds a writer seeded for reproducible text.
func NewTemplateWriter(s *Scenario, seed int64) *TemplateWriter {
	return &TemplateWriter{Scenario: s, rng: rand.New(rand.NewSource(seed))}
}

// Template arguments: %[1]s is the NPC name, %[2]q is the market question.
var truthfulTemplates = map[info.Tier][]string{
	info.TierEarly: {
		"I keep my ear to the ground. %[1]s is worth listening to on the %[2]q question.",
		"Quietly now: the early signs around %[2]q point somewhere. %[1]s saw the paperwork.",
	},
	info.TierMid: {
		"%[1]s confirmed it over drinks: the middle act of %[2]q is not what the feed thinks.",
		"Cross-checked twice. What %[1]s told me about %[2]q holds up.",
	},
	info.TierLate: {
		"This settles it. %[1]s has seen the final documents on %[2]q.",
		"Last word before the reveal: %[1]s is certain about %[2]q, and so am I.",
	},
}

var falseTemplates = map[info.Tier][]string{
	info.TierEarly: {
		"Everyone says %[1]s knows how %[2]q lands. Everyone says a lot of things.",
		"A little bird (fine, it was %[1]s) has thoughts on %[2]q. Take them or leave them.",
	},
	info.TierMid: {
		"%[1]s swears the tide turned on %[2]q. Between us, the swearing is doing the work.",
		"Heard through three walls: %[1]s says %[2]q is decided. Walls distort.",
	},
	info.TierLate: {
		"Forget what the market says. %[1]s insists %[2]q ends the other way.",
		"Final tip from %[1]s on %[2]q. Price it in before the crowd does.",
	},
}

// ClueText renders a clue's content from the tier/truth template tables.
func (w *TemplateWriter) ClueText(tier info.Tier, truthful bool, npcID string, seq int) string {
	tbl := falseTemplates
	if truthful {
		tbl = truthfulTemplates
	}
	options := tbl[tier]
	if len(options) == 0 {
		return fmt.Sprintf("tip #%d from %s", seq, npcID)
	}

	name := npcID
	if npc := w.Scenario.NPCByID(npcID); npc != nil {
		name = npc.Name
	}
	tpl := options[w.rng.Intn(len(options))]
	return fmt.Sprintf(tpl, name, w.Scenario.Question)
}

// npcPostTemplates feed the fallback NPC content generator.
var npcPostTemplates = []string{
	"The docks are restless today. Odds at %d%% YES feel %s to me.",
	"Another day, another rumor. Market says %d%% YES — %s, if you ask me.",
	"Watched the board all morning. %d%% YES. That is %s given what I hear.",
}

// NPCPost renders a periodic NPC feed post from the current odds.
func (w *TemplateWriter) NPCPost(npcID string, yesOdds int) string {
	mood := "about right"
	if yesOdds >= 65 {
		mood = "rich"
	} else if yesOdds <= 35 {
		mood = "cheap"
	}
	tpl := npcPostTemplates[w.rng.Intn(len(npcPostTemplates))]
	return fmt.Sprintf(tpl, yesOdds, mood)
}

// MarketReaction renders an NPC comment on a large odds move.
func (w *TemplateWriter) MarketReaction(npcID string, yesOdds, delta int) string {
	direction := "surged"
	if delta < 0 {
		direction = "slid"
	}
	return fmt.Sprintf("The market just %s to %d%% YES. Somebody knows something.", direction, yesOdds)
}
