package neural

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// CPPNConfig shapes the terrain CPPN.
type CPPNConfig struct {
	LatentDim   int
	Hidden      []int
	XScale      float64 // column coordinate range fed to the network
	OutputScale float64 // multiplier applied to the two outputs
	WeightStd   float64
}

// DefaultCPPNConfig returns the network used for latent terrains.
func DefaultCPPNConfig(latentDim int) CPPNConfig {
	return CPPNConfig{
		LatentDim:   latentDim,
		Hidden:      []int{64, 64, 64},
		XScale:      3,
		OutputScale: 30,
		WeightStd:   1,
	}
}

// CPPN is a fixed random compositional pattern-producing network. Each
// terrain column x is fed as [x, latent...]; the two outputs are the ground
// and ceiling heights. Weights depend only on the seed, so a latent vector
// always maps to the same terrain.
type CPPN struct {
	cfg     CPPNConfig
	weights []*mat.Dense // layer k: out x in
	biases  []*mat.VecDense
}

// NewCPPN draws the network weights from a normal distribution.
func NewCPPN(seed uint64, cfg CPPNConfig) *CPPN {
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	sizes := append([]int{1 + cfg.LatentDim}, cfg.Hidden...)
	sizes = append(sizes, 2)

	c := &CPPN{cfg: cfg}
	for k := 0; k+1 < len(sizes); k++ {
		in, out := sizes[k], sizes[k+1]
		w := mat.NewDense(out, in, nil)
		w.Apply(func(_, _ int, _ float64) float64 { return rng.NormFloat64() * cfg.WeightStd }, w)
		b := mat.NewVecDense(out, nil)
		for i := 0; i < out; i++ {
			b.SetVec(i, rng.NormFloat64()*cfg.WeightStd)
		}
		c.weights = append(c.weights, w)
		c.biases = append(c.biases, b)
	}
	return c
}

// LatentDim returns the expected latent vector size.
func (c *CPPN) LatentDim() int { return c.cfg.LatentDim }

// Height evaluates every column in one batch and returns length
// (ground, ceiling) pairs.
func (c *CPPN) Height(latent []float64, length int) ([][2]float64, error) {
	if len(latent) != c.cfg.LatentDim {
		return nil, fmt.Errorf("%w: cppn takes a %d-dimensional latent vector, got %d", ErrShape, c.cfg.LatentDim, len(latent))
	}
	if length < 1 {
		return nil, nil
	}

	// Rows are columns of the track.
	x := mat.NewDense(length, 1+len(latent), nil)
	for i := 0; i < length; i++ {
		x.Set(i, 0, float64(i)/float64(length)*c.cfg.XScale)
		for j, v := range latent {
			x.Set(i, j+1, v)
		}
	}

	act := mat.Matrix(x)
	for k, w := range c.weights {
		rows, _ := act.Dims()
		out, _ := w.Dims()
		next := mat.NewDense(rows, out, nil)
		next.Mul(act, w.T())
		b := c.biases[k]
		last := k == len(c.weights)-1
		next.Apply(func(_, j int, v float64) float64 {
			v += b.AtVec(j)
			if last {
				return v
			}
			return math.Tanh(v)
		}, next)
		act = next
	}

	pairs := make([][2]float64, length)
	for i := range pairs {
		pairs[i] = [2]float64{act.At(i, 0) * c.cfg.OutputScale, act.At(i, 1) * c.cfg.OutputScale}
	}
	return pairs, nil
}
