package reputation

// GameResult names the agents whose reputation a finished game touches.
// Winners took payouts, correct predictors bet on the true outcome,
// betrayers turned on their group's declared position.
type GameResult struct {
	GameID            string
	Participants      []string
	Winners           []string
	CorrectPredictors []string
	Betrayers         []string
}

// Settlement adjustment sizes.
const (
	participationBonus = 1.0
	winnerBonus        = 5.0
	predictorBonus     = 3.0
	betrayerPenalty    = 10.0
)

// SettleGame applies post-game adjustments and folds stored feedback for
// the game into each participant's sub-scores. All scores are clamped to
// [0,100] afterwards. Agents never seen before are initialized neutrally,
// so settling is safe for late joiners.
func (e *Engine) SettleGame(result GameResult) {
	winners := toSet(result.Winners)
	correct := toSet(result.CorrectPredictors)
	betrayers := toSet(result.Betrayers)
	now := e.now()

	for _, id := range result.Participants {
		s := e.InitializeAgent(id, NeutralHint)
		s.GamesPlayed++
		s.Overall += participationBonus

		if winners[id] {
			s.Wins++
			s.Overall += winnerBonus
		}
		if correct[id] {
			s.Overall += predictorBonus
			s.Skill += (100 - s.Skill) * nudgeFactor
		}
		if betrayers[id] {
			s.Overall -= betrayerPenalty
			s.Honesty -= s.Honesty * nudgeFactor
			s.Cooperation -= s.Cooperation * nudgeFactor
		}

		e.applyGameFeedback(s, result.GameID)

		s.clamp()
		s.LastUpdated = now
	}
}

// applyGameFeedback averages this game's stored feedback for the agent per
// category (rater-weighted, recency-decayed), blends the averages into the
// sub-scores at blendRatio, and moves the overall score by the average
// deviation from the neutral rating of 3.
func (e *Engine) applyGameFeedback(s *Score, gameID string) {
	items := e.byGameRatee[gameRateeKey{GameID: gameID, RateeID: s.AgentID}]
	if len(items) == 0 {
		return
	}
	now := e.now()

	type accum struct{ sum, weight float64 }
	byCategory := make(map[Category]*accum)
	deviation := 0.0

	for _, fb := range items {
		w := decayWeight(fb, now)
		acc := byCategory[fb.Category]
		if acc == nil {
			acc = &accum{}
			byCategory[fb.Category] = acc
		}
		acc.sum += float64(fb.Rating) * w
		acc.weight += w
		deviation += float64(fb.Rating) - 3
	}

	blend := func(prior *float64, acc *accum, inverted bool) {
		if acc == nil || acc.weight == 0 {
			return
		}
		avg := acc.sum / acc.weight // 1–5
		scaled := (avg - 1) / 4 * 100
		if inverted {
			scaled = 100 - scaled
		}
		*prior = blendRatio*scaled + (1-blendRatio)*(*prior)
	}

	// deception pulls honesty down, hostility pulls cooperation down.
	blend(&s.Honesty, byCategory[CategoryHonesty], false)
	blend(&s.Honesty, byCategory[CategoryDeception], true)
	blend(&s.Cooperation, byCategory[CategoryCooperation], false)
	blend(&s.Cooperation, byCategory[CategoryHostility], true)
	blend(&s.Skill, byCategory[CategorySkill], false)

	s.Overall += deviation / float64(len(items))
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
