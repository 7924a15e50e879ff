package nn

import (
	"fmt"
	"math"

	"github.com/lo-ferris/candle/internal/tensor"
)

// Init is a tensor initialization policy: the recipe used to materialize a
// variable the first time it is requested from a VarStore.
type Init struct {
	kind initKind
	a, b float64 // policy parameters, meaning depends on kind
}

type initKind int

const (
	initConst initKind = iota
	initUniform
	initRandn
	initKaimingUniform
)

// Zeros initializes every element to 0.
var Zeros = Const(0)

// Ones initializes every element to 1.
var Ones = Const(1)

// Const initializes every element to v.
func Const(v float64) Init {
	return Init{kind: initConst, a: v}
}

// Uniform draws elements uniformly from [lo, up).
func Uniform(lo, up float64) Init {
	return Init{kind: initUniform, a: lo, b: up}
}

// Randn draws elements from a normal distribution with the given mean and
// standard deviation.
func Randn(mean, std float64) Init {
	return Init{kind: initRandn, a: mean, b: std}
}

// KaimingUniform draws from the Kaiming bound U(-sqrt(6/fan_in),
// sqrt(6/fan_in)), the usual default for linear layer weights.
func KaimingUniform(fanIn int) Init {
	return Init{kind: initKaimingUniform, a: float64(fanIn)}
}

// Tensor materializes a fresh tensor for the policy at the given shape,
// dtype and device placement.
func (i Init) Tensor(shape tensor.Shape, dtype tensor.DataType, device tensor.Device) (*tensor.Tensor, error) {
	switch i.kind {
	case initConst:
		switch i.a {
		case 0:
			return tensor.Zeros(shape, dtype, device)
		case 1:
			return tensor.Ones(shape, dtype, device)
		default:
			// No dedicated fill op: a constant is a degenerate uniform.
			return tensor.RandUniform(shape, dtype, i.a, i.a, device)
		}
	case initUniform:
		return tensor.RandUniform(shape, dtype, i.a, i.b, device)
	case initRandn:
		return tensor.RandNormal(shape, dtype, i.a, i.b, device)
	case initKaimingUniform:
		bound := math.Sqrt(6.0 / i.a)
		return tensor.RandUniform(shape, dtype, -bound, bound, device)
	default:
		return nil, fmt.Errorf("unknown init policy %d", i.kind)
	}
}
