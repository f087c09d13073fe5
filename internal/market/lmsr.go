// Package market implements a logarithmic scoring-rule (LMSR) automated
// market maker for a single two-outcome YES/NO market.
//
// State is (b, yesShares, noShares) where b is a liquidity parameter fixed
// at creation. Cost function: C(y,n) = b·ln(e^(y/b) + e^(n/b)). The price of
// an outcome is the partial derivative of C, so yesPrice + noPrice = 1.
package market

import (
	"math"
)

// Outcome identifies one side of the binary market.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Valid reports whether o is one of the two recognized outcomes.
func (o Outcome) Valid() bool {
	return o == OutcomeYes || o == OutcomeNo
}

// budgetTolerance is the bisection stopping tolerance for SharesForBudget,
// expressed in tokens.
const budgetTolerance = 0.001

// Maker is an LMSR market maker. The zero value is not usable; construct
// with New. Maker performs no locking; the owning session serializes access.
type Maker struct {
	b         float64 // liquidity parameter, fixed at creation
	yesShares float64
	noShares  float64
	volume    float64 // cumulative tokens traded (buys + sells)
}

// New creates a market maker with liquidity parameter b. Larger b flattens
// the price response to a trade of a given size. Non-positive b falls back
// to the default of 100.
func New(b float64) *Maker {
	if b <= 0 {
		b = 100
	}
	return &Maker{b: b}
}

// Liquidity returns the fixed liquidity parameter.
func (m *Maker) Liquidity() float64 { return m.b }

// Shares returns the outstanding YES and NO share counts.
func (m *Maker) Shares() (yes, no float64) { return m.yesShares, m.noShares }

// Volume returns cumulative traded token volume.
func (m *Maker) Volume() float64 { return m.volume }

// cost evaluates C(y,n) = b·ln(e^(y/b) + e^(n/b)).
//
// Computed in shifted form around max(y,n) so large share counts cannot
// overflow the exponentials.
func (m *Maker) cost(y, n float64) float64 {
	max := y
	if n > max {
		max = n
	}
	return max + m.b*math.Log(math.Exp((y-max)/m.b)+math.Exp((n-max)/m.b))
}

// Price returns the instantaneous price of the given outcome, in (0,1).
func (m *Maker) Price(outcome Outcome) float64 {
	yes := m.YesPrice()
	if outcome == OutcomeYes {
		return yes
	}
	return 1 - yes
}

// YesPrice returns e^(y/b) / (e^(y/b) + e^(n/b)), shifted for stability.
func (m *Maker) YesPrice() float64 {
	max := m.yesShares
	if m.noShares > max {
		max = m.noShares
	}
	ey := math.Exp((m.yesShares - max) / m.b)
	en := math.Exp((m.noShares - max) / m.b)
	return ey / (ey + en)
}

// NoPrice returns 1 − YesPrice.
func (m *Maker) NoPrice() float64 { return 1 - m.YesPrice() }

// BuyCost returns the token cost of buying shares of outcome without
// executing the trade. Non-positive share counts cost zero.
func (m *Maker) BuyCost(outcome Outcome, shares float64) float64 {
	if shares <= 0 || !outcome.Valid() {
		return 0
	}
	y, n := m.yesShares, m.noShares
	if outcome == OutcomeYes {
		y += shares
	} else {
		n += shares
	}
	return m.cost(y, n) - m.cost(m.yesShares, m.noShares)
}

// Trade is the result of an executed buy or sell.
type Trade struct {
	Shares   float64 // shares actually traded (sells may be clamped)
	Tokens   float64 // cost for buys, proceeds for sells
	NewPrice float64 // post-trade price of the traded outcome
}

// Buy executes a purchase of shares of outcome, increments the share
// counter, and returns the cost and the new price. Non-positive requests
// are no-ops.
func (m *Maker) Buy(outcome Outcome, shares float64) Trade {
	if shares <= 0 || !outcome.Valid() {
		return Trade{NewPrice: m.Price(outcome)}
	}
	cost := m.BuyCost(outcome, shares)
	if outcome == OutcomeYes {
		m.yesShares += shares
	} else {
		m.noShares += shares
	}
	m.volume += cost
	return Trade{Shares: shares, Tokens: cost, NewPrice: m.Price(outcome)}
}

// SellProceeds returns the tokens received for selling shares of outcome
// without executing. The sale is clamped so share counts never go negative.
func (m *Maker) SellProceeds(outcome Outcome, shares float64) (proceeds, sold float64) {
	if shares <= 0 || !outcome.Valid() {
		return 0, 0
	}
	held := m.noShares
	if outcome == OutcomeYes {
		held = m.yesShares
	}
	sold = shares
	if sold > held {
		sold = held
	}
	if sold <= 0 {
		return 0, 0
	}
	y, n := m.yesShares, m.noShares
	if outcome == OutcomeYes {
		y -= sold
	} else {
		n -= sold
	}
	proceeds = m.cost(m.yesShares, m.noShares) - m.cost(y, n)
	return proceeds, sold
}

// Sell executes a sale of shares of outcome and returns the proceeds and
// new price. The sale is clamped at the outstanding share count;
// non-positive requests are no-ops.
func (m *Maker) Sell(outcome Outcome, shares float64) Trade {
	proceeds, sold := m.SellProceeds(outcome, shares)
	if sold <= 0 {
		return Trade{NewPrice: m.Price(outcome)}
	}
	if outcome == OutcomeYes {
		m.yesShares -= sold
	} else {
		m.noShares -= sold
	}
	m.volume += proceeds
	return Trade{Shares: sold, Tokens: proceeds, NewPrice: m.Price(outcome)}
}

// SharesForBudget returns how many shares of outcome the given token budget
// buys. The cost function is transcendental, so there is no closed form;
// this inverts BuyCost by bisection to within budgetTolerance tokens.
// Non-positive budgets return zero.
func (m *Maker) SharesForBudget(outcome Outcome, tokens float64) float64 {
	if tokens <= 0 || !outcome.Valid() {
		return 0
	}

	// Cost per share is bounded below by the current price and above by 1,
	// so tokens/price is a safe upper bound on the share count.
	price := m.Price(outcome)
	if price <= 0 {
		price = 1e-9
	}
	lo, hi := 0.0, tokens/price+1

	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2
		cost := m.BuyCost(outcome, mid)
		if math.Abs(cost-tokens) <= budgetTolerance {
			return mid
		}
		if cost < tokens {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// Impact describes the hypothetical effect of a trade.
type Impact struct {
	CurrentPrice float64
	NewPrice     float64
	Impact       float64 // |NewPrice − CurrentPrice|
	SlippagePct  float64 // impact relative to current price, in percent
}

// PriceImpact simulates buying shares of outcome without mutating state.
func (m *Maker) PriceImpact(outcome Outcome, shares float64) Impact {
	current := m.Price(outcome)
	if shares <= 0 || !outcome.Valid() {
		return Impact{CurrentPrice: current, NewPrice: current}
	}

	sim := *m
	if outcome == OutcomeYes {
		sim.yesShares += shares
	} else {
		sim.noShares += shares
	}
	next := sim.Price(outcome)

	imp := math.Abs(next - current)
	slip := 0.0
	if current > 0 {
		slip = imp / current * 100
	}
	return Impact{CurrentPrice: current, NewPrice: next, Impact: imp, SlippagePct: slip}
}

// OddsPercent returns the YES and NO prices as integer percentages that
// always sum to 100. YES rounds to nearest; NO takes the remainder.
func (m *Maker) OddsPercent() (yes, no int) {
	yes = int(math.Round(m.YesPrice() * 100))
	if yes < 0 {
		yes = 0
	}
	if yes > 100 {
		yes = 100
	}
	return yes, 100 - yes
}
