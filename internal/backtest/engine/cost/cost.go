// Package cost models per-trade transaction costs for the backtest engine.
//
// A Model combines four kinds of cost:
//   - fixed fee: a flat cash amount per trade; when non-zero it overrides the
//     rate-based computation for that side entirely
//   - rate: a fee proportional to the traded value
//   - minimum fee: a floor applied to rate-based fees
//   - slippage: a second-order term modeling market impact, quadratic in
//     trade value for fixed-fee mode and linear for rate mode
package cost

import "math"

// Model holds the cost coefficients for one simulation run. It is immutable
// after construction.
type Model struct {
	BuyFix   float64 `yaml:"buy_fix" json:"buy_fix" validate:"gte=0"`
	SellFix  float64 `yaml:"sell_fix" json:"sell_fix" validate:"gte=0"`
	BuyRate  float64 `yaml:"buy_rate" json:"buy_rate" validate:"gte=0"`
	SellRate float64 `yaml:"sell_rate" json:"sell_rate" validate:"gte=0"`
	BuyMin   float64 `yaml:"buy_min" json:"buy_min" validate:"gte=0"`
	SellMin  float64 `yaml:"sell_min" json:"sell_min" validate:"gte=0"`
	Slippage float64 `yaml:"slippage" json:"slippage" validate:"gte=0"`
}

// NewModel creates a cost model from the seven coefficients.
func NewModel(buyFix, sellFix, buyRate, sellRate, buyMin, sellMin, slippage float64) Model {
	return Model{
		BuyFix:   buyFix,
		SellFix:  sellFix,
		BuyRate:  buyRate,
		SellRate: sellRate,
		BuyMin:   buyMin,
		SellMin:  sellMin,
		Slippage: slippage,
	}
}

// Default returns the cost structure of a typical retail brokerage account:
// 0.3% buy rate with a 5 unit minimum, 0.1% sell rate, no fixed fees.
func Default() Model {
	return NewModel(0, 0, 0.003, 0.001, 5.0, 0, 0)
}

// Zero returns a model that charges nothing. Useful for frictionless
// simulations and tests.
func Zero() Model {
	return Model{
		BuyFix:   0,
		SellFix:  0,
		BuyRate:  0,
		SellRate: 0,
		BuyMin:   0,
		SellMin:  0,
		Slippage: 0,
	}
}

// Calculate computes per-instrument fee amounts or fee rates for the given
// positive monetary trade values.
//
// In fixed-fee mode the result is a fee amount per instrument: the flat fee
// plus a slippage term quadratic in trade value. In rate mode the result is a
// fee rate per instrument: the configured rate, raised whenever it would
// produce a fee below the configured minimum. Buy slippage adds to the rate;
// sell slippage subtracts from it, so market impact is always adverse to the
// trader. A zero trade value forces the minimum-fee rate to zero instead of
// leaving it at ±Inf.
func (m Model) Calculate(tradeValues []float64, isBuying, fixedFees bool) []float64 {
	out := make([]float64, len(tradeValues))

	for i, v := range tradeValues {
		out[i] = m.calculateOne(v, isBuying, fixedFees)
	}

	return out
}

func (m Model) calculateOne(v float64, isBuying, fixedFees bool) float64 {
	if fixedFees {
		if isBuying {
			return m.BuyFix + m.Slippage*v*v
		}

		return m.SellFix + m.Slippage*v*v
	}

	if isBuying {
		if m.BuyMin == 0 {
			return m.BuyRate + m.Slippage*v
		}

		minRate := m.BuyMin / (v - m.BuyMin)
		if v == 0 || math.IsInf(minRate, 0) {
			minRate = 0
		}

		return math.Max(m.BuyRate, minRate) + m.Slippage*v
	}

	if m.SellMin == 0 {
		return m.SellRate - m.Slippage*v
	}

	minRate := m.SellMin / v
	if v == 0 || math.IsInf(minRate, 0) {
		minRate = 0
	}

	return math.Max(m.SellRate, minRate) - m.Slippage*v
}

// SellingResult computes the outcome of selling assets.
//
// toSell holds planned sell quantities, negative by convention; prices holds
// the per-instrument execution prices. When moq is non-zero each executed
// quantity is truncated to a whole multiple of moq. It returns the executed
// (negative) quantities, the cash gained net of fees and the total fee.
func (m Model) SellingResult(prices, toSell []float64, moq float64) (sold []float64, cashGained, fee float64) {
	sold = make([]float64, len(toSell))

	for i, q := range toSell {
		if moq == 0 {
			sold[i] = q
		} else {
			sold[i] = math.Trunc(q/moq) * moq
		}
	}

	if m.SellFix == 0 {
		// Rate mode: proceeds are the sold value scaled down by the fee rate.
		for i, q := range sold {
			value := -q * prices[i]
			rate := m.calculateOne(value, false, false)
			cashGained += value * (1 - rate)
			fee += value * rate
		}

		return sold, cashGained, fee
	}

	// Fixed-fee mode: the flat fee is deducted from the proceeds of each
	// instrument actually sold.
	for i, q := range sold {
		if q == 0 {
			continue
		}

		value := -q * prices[i]
		f := m.calculateOne(value, false, true)
		cashGained += value - f
		fee += f
	}

	return sold, cashGained, fee
}

// PurchaseResult computes the outcome of buying assets with the given
// per-instrument cash allocations.
//
// A zero price suppresses the purchase of that instrument. When moq is
// non-zero the purchased quantity is truncated to a whole multiple of moq,
// so the executed quantity is usually below the intended one. It returns the
// purchased quantities, the total cash spent including fees and the total fee.
func (m Model) PurchaseResult(prices, cashToSpend []float64, moq float64) (purchased []float64, cashSpent, fee float64) {
	purchased = make([]float64, len(prices))

	if m.BuyFix == 0 {
		// Rate mode. The fee rate is estimated from the intended spend, and
		// the realized fee is floored at the configured minimum. An allocation
		// that cannot cover the minimum fee buys nothing, like a zero price.
		for i, cash := range cashToSpend {
			price := prices[i]
			if price == 0 || cash <= math.Max(0, m.BuyMin) {
				continue
			}

			rate := m.calculateOne(cash, true, false)
			if moq == 0 {
				purchased[i] = cash / (price * (1 + rate))
			} else {
				purchased[i] = math.Trunc(cash/(price*moq*(1+rate))) * moq
			}

			if purchased[i] == 0 {
				continue
			}

			f := math.Max(purchased[i]*price*rate, m.BuyMin)
			cashSpent += purchased[i]*price + f
			fee += f
		}

		return purchased, cashSpent, fee
	}

	// Fixed-fee mode: the flat fee is taken off the allocation before the
	// quantity is computed; rate and minimum fee are ignored.
	for i, cash := range cashToSpend {
		price := prices[i]
		if price == 0 || cash <= 0 {
			continue
		}

		f := m.calculateOne(cash, true, true)
		var qty float64
		if moq == 0 {
			qty = (cash - f) / price
		} else {
			qty = math.Trunc((cash-f)/(price*moq)) * moq
		}

		if qty <= 0 {
			continue
		}

		purchased[i] = qty
		cashSpent += qty*price + f
		fee += f
	}

	return purchased, cashSpent, fee
}
