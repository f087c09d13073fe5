package market

import (
	"math"
	"testing"
)

func TestPricesSumToOne(t *testing.T) {
	m := New(100)

	checks := []struct {
		buyYes, buyNo float64
	}{
		{0, 0},
		{10, 0},
		{0, 25},
		{130, 7},
		{500, 480},
	}

	for _, c := range checks {
		m.Buy(OutcomeYes, c.buyYes)
		m.Buy(OutcomeNo, c.buyNo)
		sum := m.YesPrice() + m.NoPrice()
		if math.Abs(sum-1) > 1e-5 {
			y, n := m.Shares()
			t.Errorf("prices sum to %v at y=%v n=%v, want 1", sum, y, n)
		}
	}
}

func TestCostStrictlyIncreasing(t *testing.T) {
	m := New(100)
	m.Buy(OutcomeYes, 40)
	m.Buy(OutcomeNo, 15)

	prev := m.cost(m.yesShares, m.noShares)
	for delta := 1.0; delta <= 64; delta *= 2 {
		next := m.cost(m.yesShares+delta, m.noShares)
		if next <= prev {
			t.Errorf("cost(y+%v) = %v not greater than cost(y) = %v", delta, next, prev)
		}
		nextNo := m.cost(m.yesShares, m.noShares+delta)
		if nextNo <= prev {
			t.Errorf("cost(n+%v) = %v not greater than cost(n) = %v", delta, nextNo, prev)
		}
	}
}

func TestNoFreeArbitrage(t *testing.T) {
	m := New(100)
	m.Buy(OutcomeNo, 30)

	for _, shares := range []float64{1, 5, 17, 120} {
		cost := m.Buy(OutcomeYes, shares).Tokens
		proceeds := m.Sell(OutcomeYes, shares).Tokens
		if proceeds > cost+1e-9 {
			t.Errorf("buy %v shares cost %v but selling back paid %v", shares, cost, proceeds)
		}
	}
}

func TestBuyMovesPrice(t *testing.T) {
	// Scenario from the property list: b=100, buy 10 YES.
	m := New(100)
	if p := m.YesPrice(); math.Abs(p-0.5) > 1e-9 {
		t.Fatalf("fresh market YES price = %v, want 0.5", p)
	}

	trade := m.Buy(OutcomeYes, 10)
	if trade.Tokens <= 0 {
		t.Errorf("buy cost = %v, want > 0", trade.Tokens)
	}
	if m.YesPrice() <= 0.5 {
		t.Errorf("YES price after buy = %v, want > 0.5", m.YesPrice())
	}
	if sum := m.YesPrice() + m.NoPrice(); math.Abs(sum-1) > 1e-5 {
		t.Errorf("price sum = %v, want 1", sum)
	}
}

func TestLiquidityFlattensPrice(t *testing.T) {
	small := New(50)
	large := New(500)

	small.Buy(OutcomeYes, 20)
	large.Buy(OutcomeYes, 20)

	moveSmall := small.YesPrice() - 0.5
	moveLarge := large.YesPrice() - 0.5
	if moveLarge >= moveSmall {
		t.Errorf("b=500 moved price %v, b=50 moved %v; larger b should move less", moveLarge, moveSmall)
	}
}

func TestSharesForBudgetInvertsCost(t *testing.T) {
	m := New(100)
	m.Buy(OutcomeNo, 60)

	for _, tokens := range []float64{1, 10, 100, 2500} {
		shares := m.SharesForBudget(OutcomeYes, tokens)
		cost := m.BuyCost(OutcomeYes, shares)
		if math.Abs(cost-tokens) > budgetTolerance {
			t.Errorf("budget %v bought %v shares costing %v", tokens, shares, cost)
		}
	}
}

func TestNonPositiveRequestsAreNoOps(t *testing.T) {
	m := New(100)
	m.Buy(OutcomeYes, 10)
	y0, n0 := m.Shares()

	if got := m.Buy(OutcomeYes, 0).Tokens; got != 0 {
		t.Errorf("buying 0 shares cost %v, want 0", got)
	}
	if got := m.Buy(OutcomeNo, -4).Tokens; got != 0 {
		t.Errorf("buying -4 shares cost %v, want 0", got)
	}
	if got := m.Sell(OutcomeYes, -1).Tokens; got != 0 {
		t.Errorf("selling -1 shares paid %v, want 0", got)
	}
	if got := m.SharesForBudget(OutcomeYes, 0); got != 0 {
		t.Errorf("zero budget bought %v shares, want 0", got)
	}

	if y, n := m.Shares(); y != y0 || n != n0 {
		t.Errorf("no-op requests mutated shares: (%v,%v) -> (%v,%v)", y0, n0, y, n)
	}
}

func TestSellClampsAtOutstanding(t *testing.T) {
	m := New(100)
	m.Buy(OutcomeYes, 5)

	trade := m.Sell(OutcomeYes, 50)
	if trade.Shares != 5 {
		t.Errorf("sold %v shares, want clamp at 5", trade.Shares)
	}
	if y, _ := m.Shares(); y != 0 {
		t.Errorf("yes shares after clamped sell = %v, want 0", y)
	}

	// Selling with nothing outstanding is a no-op.
	trade = m.Sell(OutcomeYes, 1)
	if trade.Shares != 0 || trade.Tokens != 0 {
		t.Errorf("sell on empty book returned %+v, want zeros", trade)
	}
}

func TestPriceImpactDoesNotMutate(t *testing.T) {
	m := New(100)
	m.Buy(OutcomeYes, 12)
	y0, n0 := m.Shares()
	p0 := m.YesPrice()

	imp := m.PriceImpact(OutcomeYes, 40)
	if imp.NewPrice <= imp.CurrentPrice {
		t.Errorf("impact new price %v not above current %v", imp.NewPrice, imp.CurrentPrice)
	}
	if imp.SlippagePct <= 0 {
		t.Errorf("slippage = %v, want > 0", imp.SlippagePct)
	}

	if y, n := m.Shares(); y != y0 || n != n0 || m.YesPrice() != p0 {
		t.Error("PriceImpact mutated market state")
	}
}

func TestOddsPercentSumTo100(t *testing.T) {
	m := New(100)
	buys := []struct {
		o Outcome
		n float64
	}{
		{OutcomeYes, 33}, {OutcomeNo, 11}, {OutcomeYes, 250}, {OutcomeNo, 94},
	}
	for _, b := range buys {
		m.Buy(b.o, b.n)
		yes, no := m.OddsPercent()
		if yes+no != 100 {
			t.Errorf("odds %d + %d != 100", yes, no)
		}
	}
}
