package strategy

import (
	"github.com/frankfanslc/qteasy/internal/frame"
	"github.com/frankfanslc/qteasy/internal/space"
	"github.com/frankfanslc/qteasy/pkg/errors"
)

func init() {
	register("ma-cross", func() Strategy { return NewMACross(5, 20) })
}

// MACross trades a moving-average crossover per instrument: it buys when the
// fast average crosses above the slow one and sells the whole position when
// it crosses back below. Buy signals allocate an equal share of portfolio
// value per instrument.
type MACross struct {
	fast int
	slow int
}

// NewMACross builds the strategy with explicit window lengths.
func NewMACross(fast, slow int) *MACross {
	return &MACross{fast: fast, slow: slow}
}

func (m *MACross) Name() string {
	return "ma-cross"
}

// Windows returns the current fast and slow window lengths.
func (m *MACross) Windows() (int, int) {
	return m.fast, m.slow
}

func (m *MACross) OptSpace() *space.Space {
	// Both axes are validated again in SetOptParams since fast < slow
	// cannot be expressed as independent bounds.
	s, _ := space.New(space.Discrete(2, 50), space.Discrete(10, 250))

	return s
}

func (m *MACross) SetOptParams(params []float64) error {
	if err := checkParamCount(m.Name(), params, 2); err != nil {
		return err
	}

	fast, slow := int(params[0]), int(params[1])
	if fast < 1 || slow < 2 || fast >= slow {
		return errors.Newf(errors.ErrCodeInvalidParameter,
			"ma-cross windows must satisfy 1 <= fast < slow, got fast=%d slow=%d", fast, slow)
	}

	m.fast = fast
	m.slow = slow

	return nil
}

func (m *MACross) Clone() Strategy {
	clone := *m

	return &clone
}

func (m *MACross) Signals(prices *frame.Frame) (*frame.Frame, error) {
	if prices.Len() <= m.slow {
		return nil, errors.Newf(errors.ErrCodePriceHistoryTooShort,
			"ma-cross needs more than %d periods, got %d", m.slow, prices.Len())
	}

	symbols := prices.Columns()
	buyShare := 1 / float64(len(symbols))

	signals := frame.New(symbols)

	for j, symbol := range symbols {
		series, err := prices.Column(symbol)
		if err != nil {
			return nil, err
		}

		fastMA := sma(series, m.fast)
		slowMA := sma(series, m.slow)

		for i := m.slow; i < len(series); i++ {
			crossedUp := fastMA[i-1] <= slowMA[i-1] && fastMA[i] > slowMA[i]
			crossedDown := fastMA[i-1] >= slowMA[i-1] && fastMA[i] < slowMA[i]

			if !crossedUp && !crossedDown {
				continue
			}

			date := prices.Date(i)
			if err := signals.SetZeroRow(date); err != nil {
				return nil, err
			}

			idx, _ := signals.IndexOf(date)
			row := signals.Row(idx)
			if crossedUp {
				row[j] = buyShare
			} else {
				row[j] = -1
			}
		}
	}

	if signals.Empty() {
		return nil, errors.Newf(errors.ErrCodeNoUsableSignal,
			"ma-cross(%d, %d) produced no crossovers over %d periods", m.fast, m.slow, prices.Len())
	}

	return signals, nil
}

// sma computes a simple moving average; positions before a full window hold
// the partial-window mean.
func sma(series []float64, window int) []float64 {
	out := make([]float64, len(series))

	var sum float64
	for i, v := range series {
		sum += v
		n := window
		if i+1 < window {
			n = i + 1
		} else if i >= window {
			sum -= series[i-window]
		}

		out[i] = sum / float64(n)
	}

	return out
}
