package strategy

import (
	"github.com/frankfanslc/qteasy/internal/frame"
	"github.com/frankfanslc/qteasy/internal/space"
	"github.com/frankfanslc/qteasy/pkg/errors"
)

func init() {
	register("rsi", func() Strategy { return NewRSI(14, 30, 70) })
}

// RSI is a mean-reversion strategy on Wilder's relative strength index: it
// buys when the index drops into the oversold band and liquidates when the
// index rises into the overbought band.
type RSI struct {
	window     int
	oversold   float64
	overbought float64
}

// NewRSI builds the strategy with an explicit window and band levels.
func NewRSI(window int, oversold, overbought float64) *RSI {
	return &RSI{window: window, oversold: oversold, overbought: overbought}
}

func (r *RSI) Name() string {
	return "rsi"
}

func (r *RSI) OptSpace() *space.Space {
	s, _ := space.New(
		space.Discrete(2, 50),
		space.Continuous(10, 45),
		space.Continuous(55, 90),
	)

	return s
}

func (r *RSI) SetOptParams(params []float64) error {
	if err := checkParamCount(r.Name(), params, 3); err != nil {
		return err
	}

	window := int(params[0])
	oversold, overbought := params[1], params[2]

	if window < 2 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "rsi window must be at least 2, got %d", window)
	}
	if oversold >= overbought {
		return errors.Newf(errors.ErrCodeInvalidParameter,
			"rsi bands must satisfy oversold < overbought, got %v and %v", oversold, overbought)
	}

	r.window = window
	r.oversold = oversold
	r.overbought = overbought

	return nil
}

func (r *RSI) Clone() Strategy {
	clone := *r

	return &clone
}

func (r *RSI) Signals(prices *frame.Frame) (*frame.Frame, error) {
	if prices.Len() <= r.window+1 {
		return nil, errors.Newf(errors.ErrCodePriceHistoryTooShort,
			"rsi needs more than %d periods, got %d", r.window+1, prices.Len())
	}

	symbols := prices.Columns()
	buyShare := 1 / float64(len(symbols))

	signals := frame.New(symbols)

	for j, symbol := range symbols {
		series, err := prices.Column(symbol)
		if err != nil {
			return nil, err
		}

		index := rsi(series, r.window)

		for i := r.window + 1; i < len(series); i++ {
			enteredOversold := index[i-1] >= r.oversold && index[i] < r.oversold
			enteredOverbought := index[i-1] <= r.overbought && index[i] > r.overbought

			if !enteredOversold && !enteredOverbought {
				continue
			}

			date := prices.Date(i)
			if err := signals.SetZeroRow(date); err != nil {
				return nil, err
			}

			idx, _ := signals.IndexOf(date)
			row := signals.Row(idx)
			if enteredOversold {
				row[j] = buyShare
			} else {
				row[j] = -1
			}
		}
	}

	if signals.Empty() {
		return nil, errors.Newf(errors.ErrCodeNoUsableSignal,
			"rsi(%d) produced no band crossings over %d periods", r.window, prices.Len())
	}

	return signals, nil
}

// rsi computes Wilder's relative strength index with smoothed averages.
// Positions before a full window hold the neutral value 50.
func rsi(series []float64, window int) []float64 {
	out := make([]float64, len(series))
	for i := range out {
		out[i] = 50
	}

	if len(series) <= window {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= window; i++ {
		change := series[i] - series[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(window)
	avgLoss /= float64(window)

	out[window] = rsiValue(avgGain, avgLoss)

	for i := window + 1; i < len(series); i++ {
		change := series[i] - series[i-1]

		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}

		avgGain = (avgGain*float64(window-1) + gain) / float64(window)
		avgLoss = (avgLoss*float64(window-1) + loss) / float64(window)

		out[i] = rsiValue(avgGain, avgLoss)
	}

	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}

		return 100
	}

	return 100 - 100/(1+avgGain/avgLoss)
}
