package reputation

import "time"

// Category classifies a piece of peer feedback. deception and hostility are
// the negative counterparts of honesty and cooperation.
type Category string

const (
	CategoryHonesty     Category = "honesty"
	CategoryDeception   Category = "deception"
	CategoryCooperation Category = "cooperation"
	CategoryHostility   Category = "hostility"
	CategorySkill       Category = "skill"
)

// Valid reports whether c is in the closed category set.
func (c Category) Valid() bool {
	switch c {
	case CategoryHonesty, CategoryDeception, CategoryCooperation, CategoryHostility, CategorySkill:
		return true
	}
	return false
}

// submitCooldown blocks rapid-fire submissions from the same rater about
// the same ratee inside this window, across categories and games.
const submitCooldown = 30 * time.Second

// decayHorizon is the age past which stored feedback is discounted.
const decayHorizon = 30 * 24 * time.Hour

// staleDiscount is the fixed factor applied to feedback older than the
// decay horizon during settlement.
const staleDiscount = 0.5

// Feedback is one peer rating. Append-only once accepted.
type Feedback struct {
	RaterID   string    `json:"rater_id"`
	RateeID   string    `json:"ratee_id"`
	Category  Category  `json:"category"`
	Rating    int       `json:"rating"` // 1–5
	GameID    string    `json:"game_id"`
	Timestamp time.Time `json:"timestamp"`

	// Weight is computed at submission from the rater's overall score:
	// 0.5 + overall/100, so high-reputation raters count for more.
	Weight float64 `json:"weight"`
}

// SubmitFeedback validates and stores a rating. Returns false, never an
// error, on any validation failure: rating outside [1,5], unknown
// category, self-rating, duplicate (rater, ratee, game, category), or a
// rater-ratee pair still inside the cooldown window.
func (e *Engine) SubmitFeedback(raterID, rateeID string, category Category, rating int, gameID string) bool {
	if rating < 1 || rating > 5 {
		return false
	}
	if !category.Valid() {
		return false
	}
	if raterID == rateeID {
		return false
	}

	key := submissionKey{RaterID: raterID, RateeID: rateeID, GameID: gameID, Category: category}
	if _, ok := e.submissions[key]; ok {
		return false
	}
	pair := pairKey{RaterID: raterID, RateeID: rateeID}
	now := e.now()
	if last, ok := e.cooldowns[pair]; ok && now.Sub(last) < submitCooldown {
		return false
	}

	rater := e.InitializeAgent(raterID, NeutralHint)
	ratee := e.InitializeAgent(rateeID, NeutralHint)

	fb := &Feedback{
		RaterID:   raterID,
		RateeID:   rateeID,
		Category:  category,
		Rating:    rating,
		GameID:    gameID,
		Timestamp: now,
		Weight:    0.5 + rater.Overall/100,
	}
	e.feedback = append(e.feedback, fb)
	e.byGameRatee[gameRateeKey{GameID: gameID, RateeID: rateeID}] = append(
		e.byGameRatee[gameRateeKey{GameID: gameID, RateeID: rateeID}], fb)
	e.submissions[key] = struct{}{}
	e.cooldowns[pair] = now

	ratee.FeedbackCount++
	ratee.LastUpdated = now
	return true
}

// decayWeight combines the rater weight with recency decay: feedback older
// than the horizon counts at a fixed fraction of its weight.
func decayWeight(fb *Feedback, now time.Time) float64 {
	w := fb.Weight
	if now.Sub(fb.Timestamp) > decayHorizon {
		w *= staleDiscount
	}
	return w
}
