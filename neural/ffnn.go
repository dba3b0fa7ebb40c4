package neural

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"gonum.org/v1/gonum/mat"
)

// FFNN is a two-layer feedforward network with tanh activations. Outputs are
// actions in [-1, 1].
type FFNN struct {
	W1 *mat.Dense    // hidden x inputs
	B1 *mat.VecDense // hidden
	W2 *mat.Dense    // outputs x hidden
	B2 *mat.VecDense // outputs
}

// NewFFNN creates a network with Xavier-initialized weights and zero biases.
func NewFFNN(rng *rand.Rand, inputs, hidden, outputs int) *FFNN {
	nn := &FFNN{
		W1: mat.NewDense(hidden, inputs, nil),
		B1: mat.NewVecDense(hidden, nil),
		W2: mat.NewDense(outputs, hidden, nil),
		B2: mat.NewVecDense(outputs, nil),
	}
	scale1 := math.Sqrt(2.0 / float64(inputs))
	scale2 := math.Sqrt(2.0 / float64(hidden))
	nn.W1.Apply(func(_, _ int, _ float64) float64 { return rng.NormFloat64() * scale1 }, nn.W1)
	nn.W2.Apply(func(_, _ int, _ float64) float64 { return rng.NormFloat64() * scale2 }, nn.W2)
	return nn
}

// Sizes returns the input, hidden and output widths.
func (nn *FFNN) Sizes() (inputs, hidden, outputs int) {
	hidden, inputs = nn.W1.Dims()
	outputs, _ = nn.W2.Dims()
	return inputs, hidden, outputs
}

// Forward computes the network output into outputs.
func (nn *FFNN) Forward(inputs, outputs []float64) error {
	in, hidden, out := nn.Sizes()
	if len(inputs) != in || len(outputs) != out {
		return fmt.Errorf("%w: network is %dx%d, got %dx%d", ErrShape, in, out, len(inputs), len(outputs))
	}

	h := mat.NewVecDense(hidden, nil)
	h.MulVec(nn.W1, mat.NewVecDense(in, inputs))
	h.AddVec(h, nn.B1)
	for i := 0; i < hidden; i++ {
		h.SetVec(i, tanh(h.AtVec(i)))
	}

	o := mat.NewVecDense(out, outputs)
	o.MulVec(nn.W2, h)
	o.AddVec(o, nn.B2)
	for i := range outputs {
		outputs[i] = tanh(outputs[i])
	}
	return nil
}

// Act implements Policy.
func (nn *FFNN) Act(obs, actions []float64) error {
	return nn.Forward(obs, actions)
}

// Mutate perturbs weights and biases with Gaussian noise.
func (nn *FFNN) Mutate(rng *rand.Rand, strength float64) {
	perturb := func(_, _ int, v float64) float64 { return v + rng.NormFloat64()*strength }
	nn.W1.Apply(perturb, nn.W1)
	nn.W2.Apply(perturb, nn.W2)
	for _, b := range []*mat.VecDense{nn.B1, nn.B2} {
		for i := 0; i < b.Len(); i++ {
			b.SetVec(i, b.AtVec(i)+rng.NormFloat64()*strength)
		}
	}
}

// Clone creates a deep copy of the network.
func (nn *FFNN) Clone() *FFNN {
	return &FFNN{
		W1: mat.DenseCopyOf(nn.W1),
		B1: mat.VecDenseCopyOf(nn.B1),
		W2: mat.DenseCopyOf(nn.W2),
		B2: mat.VecDenseCopyOf(nn.B2),
	}
}

// tanh uses a rational approximation, exact enough for motor commands.
func tanh(x float64) float64 {
	if x > 4 {
		return 1
	}
	if x < -4 {
		return -1
	}
	x2 := x * x
	return x * (27 + x2) / (27 + 9*x2)
}

// Weights holds flattened row-major network weights for serialization.
type Weights struct {
	Inputs  int       `json:"inputs"`
	Hidden  int       `json:"hidden"`
	Outputs int       `json:"outputs"`
	W1      []float64 `json:"w1"` // [Hidden * Inputs]
	B1      []float64 `json:"b1"` // [Hidden]
	W2      []float64 `json:"w2"` // [Outputs * Hidden]
	B2      []float64 `json:"b2"` // [Outputs]
}

// MarshalWeights flattens the network weights.
func (nn *FFNN) MarshalWeights() Weights {
	in, hidden, out := nn.Sizes()
	c := nn.Clone()
	return Weights{
		Inputs:  in,
		Hidden:  hidden,
		Outputs: out,
		W1:      c.W1.RawMatrix().Data,
		B1:      c.B1.RawVector().Data,
		W2:      c.W2.RawMatrix().Data,
		B2:      c.B2.RawVector().Data,
	}
}

// NewFFNNFromWeights restores a network from flattened weights.
func NewFFNNFromWeights(w Weights) (*FFNN, error) {
	if w.Inputs < 1 || w.Hidden < 1 || w.Outputs < 1 ||
		len(w.W1) != w.Hidden*w.Inputs || len(w.B1) != w.Hidden ||
		len(w.W2) != w.Outputs*w.Hidden || len(w.B2) != w.Outputs {
		return nil, fmt.Errorf("%w: inconsistent weight arrays for %dx%dx%d", ErrShape, w.Inputs, w.Hidden, w.Outputs)
	}
	clone := func(s []float64) []float64 { return append([]float64(nil), s...) }
	return &FFNN{
		W1: mat.NewDense(w.Hidden, w.Inputs, clone(w.W1)),
		B1: mat.NewVecDense(w.Hidden, clone(w.B1)),
		W2: mat.NewDense(w.Outputs, w.Hidden, clone(w.W2)),
		B2: mat.NewVecDense(w.Outputs, clone(w.B2)),
	}, nil
}

// SaveFFNN writes the network weights as JSON.
func SaveFFNN(path string, nn *FFNN) error {
	data, err := json.Marshal(nn.MarshalWeights())
	if err != nil {
		return fmt.Errorf("marshaling weights: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing weights: %w", err)
	}
	return nil
}

// LoadFFNN reads network weights written by SaveFFNN.
func LoadFFNN(path string) (*FFNN, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading weights: %w", err)
	}
	var w Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parsing weights: %w", err)
	}
	return NewFFNNFromWeights(w)
}
