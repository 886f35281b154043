package errorest

import "fmt"

// ErrorMethod selects the proxy used to estimate the approximation error.
type ErrorMethod int

const (
	// GaussProcess uses the Gaussian-process predictive standard deviation.
	GaussProcess ErrorMethod = iota
	// MinDistance uses the distance to the nearest neighbour.
	MinDistance
	// AvgDistance uses the mean neighbour distance.
	AvgDistance
	// AvgInvDistance uses the harmonic mean of the neighbour distances.
	AvgInvDistance
	// SumDistance uses the norm of the summed neighbour offsets.
	SumDistance
	// LinQuadDiff uses the oracle difference between the linear and the
	// quadratic interpolation.
	LinQuadDiff

	methodMax
)

var methodNames = [...]string{
	GaussProcess:   "gauss_process",
	MinDistance:    "min_distance",
	AvgDistance:    "avg_distance",
	AvgInvDistance: "avg_inv_distance",
	SumDistance:    "sum_distance",
	LinQuadDiff:    "lin_quad_diff",
}

func (m ErrorMethod) Valid() bool {
	return m >= 0 && m < methodMax
}

func (m ErrorMethod) String() string {
	if !m.Valid() {
		return fmt.Sprintf("ErrorMethod(%d)", int(m))
	}
	return methodNames[m]
}

// ParseMethod maps a method name as printed by String back to its value.
func ParseMethod(name string) (ErrorMethod, error) {
	for m, n := range methodNames {
		if n == name {
			return ErrorMethod(m), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMethod, name)
}

// Methods lists every method in declaration order.
func Methods() []ErrorMethod {
	ms := make([]ErrorMethod, 0, methodMax)
	for m := ErrorMethod(0); m < methodMax; m++ {
		ms = append(ms, m)
	}
	return ms
}
