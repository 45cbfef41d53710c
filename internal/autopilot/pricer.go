package autopilot

// ApproximatePricer values orders in USD for risk checks using a static
// symbol table. It is deliberately NOT the live price gateway: risk-gate
// valuations stay deterministic and keep working when the gateway is down.
// Unknown symbols fall back to a $0.01 placeholder, so long-tail tokens are
// valued near zero rather than rejected.
type ApproximatePricer struct {
	prices map[string]float64
}

// NewApproximatePricer returns a pricer seeded with the majors the autopilot
// trades. Coverage is intentionally limited.
func NewApproximatePricer() *ApproximatePricer {
	return &ApproximatePricer{
		prices: map[string]float64{
			"SOL":  150,
			"USDC": 1,
			"USDT": 1,
			"JUP":  0.8,
			"BONK": 0.00002,
			"WIF":  2.5,
			"JTO":  2.8,
			"PYTH": 0.35,
			"RAY":  4.5,
		},
	}
}

// PriceUSD returns the approximate USD price for symbol.
func (p *ApproximatePricer) PriceUSD(symbol string) float64 {
	if price, ok := p.prices[symbol]; ok {
		return price
	}
	return 0.01
}

// ValueUSD returns the approximate USD value of amount units of symbol.
func (p *ApproximatePricer) ValueUSD(symbol string, amount float64) float64 {
	return amount * p.PriceUSD(symbol)
}
