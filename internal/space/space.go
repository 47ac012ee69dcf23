// Package space models the search domain of a parameter optimization: a
// rectangular space of mixed discrete, continuous and enumerated axes, with
// deterministic lattice extraction, uniform random sampling and bounded
// neighborhood construction.
package space

import (
	"math"
	"math/rand"

	"github.com/frankfanslc/qteasy/pkg/errors"
)

// AxisKind tags how one dimension of a Space is sampled.
type AxisKind int

const (
	// AxisDiscrete is an integer-valued range [Low, High], both inclusive.
	AxisDiscrete AxisKind = iota
	// AxisContinuous is a real-valued range [Low, High).
	AxisContinuous
	// AxisEnum is an explicit finite set of legal values.
	AxisEnum
)

func (k AxisKind) String() string {
	switch k {
	case AxisDiscrete:
		return "discrete"
	case AxisContinuous:
		return "continuous"
	case AxisEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Axis is one dimension of a Space.
type Axis struct {
	Kind   AxisKind
	Low    float64
	High   float64
	Values []float64
}

// Discrete builds an integer axis over [low, high].
func Discrete(low, high int) Axis {
	return Axis{Kind: AxisDiscrete, Low: float64(low), High: float64(high)}
}

// Continuous builds a real axis over [low, high).
func Continuous(low, high float64) Axis {
	return Axis{Kind: AxisContinuous, Low: low, High: high}
}

// Enum builds an axis over an explicit value set.
func Enum(values ...float64) Axis {
	return Axis{Kind: AxisEnum, Values: append([]float64(nil), values...)}
}

// extent returns the length this axis contributes to the space volume.
// Discrete axes round outward to the enclosing integer extent.
func (a Axis) extent() float64 {
	switch a.Kind {
	case AxisEnum:
		return float64(len(a.Values))
	case AxisDiscrete:
		return math.Ceil(a.High) - math.Floor(a.Low)
	default:
		return a.High - a.Low
	}
}

// clamp restricts v to the axis bounds.
func (a Axis) clamp(v float64) float64 {
	return math.Max(a.Low, math.Min(a.High, v))
}

// ExtractMode selects how Extract lays out candidate vectors.
type ExtractMode string

const (
	// ExtractGrid lays candidates on an evenly spaced lattice.
	ExtractGrid ExtractMode = "grid"
	// ExtractRandom samples each axis independently and uniformly.
	ExtractRandom ExtractMode = "random"
)

// Space is an immutable rectangular parameter space.
type Space struct {
	axes []Axis
}

// New validates the axes and builds a Space.
func New(axes ...Axis) (*Space, error) {
	if len(axes) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidSpace, "space needs at least one axis")
	}

	for i, a := range axes {
		switch a.Kind {
		case AxisEnum:
			if len(a.Values) == 0 {
				return nil, errors.Newf(errors.ErrCodeInvalidSpace, "enum axis %d has no values", i)
			}
		case AxisDiscrete, AxisContinuous:
			if a.High <= a.Low {
				return nil, errors.Newf(errors.ErrCodeInvalidSpace,
					"axis %d has empty range [%v, %v]", i, a.Low, a.High)
			}
		default:
			return nil, errors.Newf(errors.ErrCodeInvalidSpace, "axis %d has unknown kind %d", i, a.Kind)
		}
	}

	return &Space{axes: append([]Axis(nil), axes...)}, nil
}

// Dim returns the number of axes.
func (s *Space) Dim() int {
	return len(s.axes)
}

// Axes returns the axes in order.
func (s *Space) Axes() []Axis {
	return s.axes
}

// Volume returns the product of all axis extents.
func (s *Space) Volume() float64 {
	volume := 1.0
	for _, a := range s.axes {
		volume *= a.extent()
	}

	return volume
}

// Extract produces candidate parameter vectors. In grid mode the count is a
// lattice resolution: every non-enumerated axis is divided into roughly
// count^(1/d) evenly spaced points, enumerated axes are walked exhaustively,
// and the cartesian product of all axis candidates is returned. In random
// mode exactly count vectors are drawn, each axis sampled independently and
// uniformly. rng may be nil when mode is grid.
func (s *Space) Extract(count int, mode ExtractMode, rng *rand.Rand) ([][]float64, error) {
	if count <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "extraction count must be positive, got %d", count)
	}

	switch mode {
	case ExtractGrid:
		return s.extractGrid(count), nil
	case ExtractRandom:
		if rng == nil {
			return nil, errors.New(errors.ErrCodeMissingParameter, "random extraction needs a random source")
		}

		return s.extractRandom(count, rng), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unknown extraction mode %q", mode)
	}
}

func (s *Space) extractGrid(count int) [][]float64 {
	free := 0
	for _, a := range s.axes {
		if a.Kind != AxisEnum {
			free++
		}
	}

	perAxis := make([][]float64, len(s.axes))
	for i, a := range s.axes {
		if a.Kind == AxisEnum {
			perAxis[i] = a.Values

			continue
		}

		step := a.extent() / math.Pow(float64(count), 1/float64(free))
		perAxis[i] = a.gridPoints(step)
	}

	return cartesian(perAxis)
}

// gridPoints walks the axis from Low by step. Discrete axes cover the closed
// integer range and advance at least one unit per step so no value repeats;
// continuous axes stay half-open at High.
func (a Axis) gridPoints(step float64) []float64 {
	if a.Kind == AxisDiscrete {
		step = math.Max(1, math.Round(step))
		low := math.Ceil(a.Low)
		high := math.Floor(a.High)
		if high < low {
			return []float64{math.Round(a.Low)}
		}

		var points []float64
		for v := low; v <= high; v += step {
			points = append(points, v)
		}

		return points
	}

	if step <= 0 {
		return []float64{a.Low}
	}

	var points []float64
	for v := a.Low; v < a.High; v += step {
		points = append(points, v)
	}

	if len(points) == 0 {
		points = []float64{a.Low}
	}

	return points
}

func (s *Space) extractRandom(count int, rng *rand.Rand) [][]float64 {
	out := make([][]float64, count)

	for k := range out {
		vector := make([]float64, len(s.axes))
		for i, a := range s.axes {
			switch a.Kind {
			case AxisEnum:
				vector[i] = a.Values[rng.Intn(len(a.Values))]
			case AxisDiscrete:
				low := int(math.Floor(a.Low))
				high := int(math.Ceil(a.High))
				vector[i] = float64(low + rng.Intn(high-low+1))
			default:
				vector[i] = a.Low + rng.Float64()*(a.High-a.Low)
			}
		}

		out[k] = vector
	}

	return out
}

// FromPoint returns the neighborhood sub-space centered at point with the
// given half-width per axis, re-clamped to this space's bounds. Enumerated
// axes keep their full value set.
func (s *Space) FromPoint(point, halfWidths []float64) (*Space, error) {
	if len(point) != len(s.axes) || len(halfWidths) != len(s.axes) {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter,
			"point and half-widths must have %d entries, got %d and %d",
			len(s.axes), len(point), len(halfWidths))
	}

	axes := make([]Axis, len(s.axes))
	for i, a := range s.axes {
		if a.Kind == AxisEnum {
			axes[i] = a

			continue
		}

		low := a.clamp(point[i] - halfWidths[i])
		high := a.clamp(point[i] + halfWidths[i])
		if high <= low {
			// A degenerate clip still needs a sampleable interval.
			high = math.Min(a.High, low+math.SmallestNonzeroFloat64)
			if a.Kind == AxisDiscrete {
				high = math.Min(a.High, low+1)
			}
		}

		axes[i] = Axis{Kind: a.Kind, Low: low, High: high}
	}

	return New(axes...)
}

func cartesian(perAxis [][]float64) [][]float64 {
	total := 1
	for _, values := range perAxis {
		total *= len(values)
	}

	out := make([][]float64, 0, total)
	vector := make([]float64, len(perAxis))

	var walk func(i int)
	walk = func(i int) {
		if i == len(perAxis) {
			out = append(out, append([]float64(nil), vector...))

			return
		}

		for _, v := range perAxis[i] {
			vector[i] = v
			walk(i + 1)
		}
	}
	walk(0)

	return out
}
