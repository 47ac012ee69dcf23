package engine

import (
	"github.com/frankfanslc/qteasy/internal/backtest/engine/cost"
)

// stepResult holds the portfolio state produced by one trading period.
type stepResult struct {
	Cash     float64
	Holdings []float64
	Fee      float64
	Value    float64
}

// loopStep executes the trades of a single period. Sells are settled first so
// their proceeds can fund same-period buys. A negative signal sells that
// proportion of the current holding; a positive signal allocates that
// proportion of the pre-trade portfolio value to a purchase. When the sum of
// intended buy allocations exceeds the cash on hand after selling, all
// allocations are scaled down proportionally so the period can never spend
// cash it does not have.
func loopStep(preCash float64, preHoldings, signal, prices []float64, model cost.Model, moq float64) stepResult {
	preValue := preCash
	for i, holding := range preHoldings {
		preValue += holding * prices[i]
	}

	toSell := make([]float64, len(signal))
	for i, sig := range signal {
		if sig < 0 {
			toSell[i] = sig * preHoldings[i]
		}
	}

	sold, cashGained, sellFee := model.SellingResult(prices, toSell, moq)

	cash := preCash + cashGained

	purchaseValues := make([]float64, len(signal))

	var intended float64
	for i, sig := range signal {
		if sig > 0 {
			purchaseValues[i] = preValue * sig
			intended += purchaseValues[i]
		}
	}

	if intended > cash && intended > 0 {
		scale := cash / intended
		for i := range purchaseValues {
			purchaseValues[i] *= scale
		}
	}

	purchased, cashSpent, buyFee := model.PurchaseResult(prices, purchaseValues, moq)

	cash -= cashSpent

	holdings := make([]float64, len(preHoldings))
	value := cash
	for i := range holdings {
		holdings[i] = preHoldings[i] + sold[i] + purchased[i]
		value += holdings[i] * prices[i]
	}

	return stepResult{
		Cash:     cash,
		Holdings: holdings,
		Fee:      sellFee + buyFee,
		Value:    value,
	}
}
