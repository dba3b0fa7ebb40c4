package neural

import (
	"math"

	"github.com/ojrac/opensimplex-go"
)

// NoiseTerrain produces latent terrains from simplex noise. latent[0] and
// latent[1] pick the sampling rows of the ground and ceiling; latent[2], when
// present, scales roughness. Missing dimensions read as zero.
type NoiseTerrain struct {
	noise     opensimplex.Noise
	Amplitude float64
	Frequency float64
}

// NewNoiseTerrain creates a simplex terrain source for seed.
func NewNoiseTerrain(seed int64) *NoiseTerrain {
	return &NoiseTerrain{
		noise:     opensimplex.New(seed),
		Amplitude: 30,
		Frequency: 0.05,
	}
}

// Height returns length (ground, ceiling) pairs.
func (n *NoiseTerrain) Height(latent []float64, length int) ([][2]float64, error) {
	at := func(i int) float64 {
		if i < len(latent) {
			return latent[i]
		}
		return 0
	}
	amp := n.Amplitude * (1 + 0.5*math.Tanh(at(2)))
	groundRow, ceilingRow := at(0), 100+at(1)

	pairs := make([][2]float64, length)
	for i := range pairs {
		x := float64(i) * n.Frequency
		ground := n.octaves(x, groundRow)
		ceiling := n.octaves(x, ceilingRow)
		pairs[i] = [2]float64{amp * ground, amp * ceiling}
	}
	return pairs, nil
}

// octaves sums three octaves of 2D noise, normalized to about [-1, 1].
func (n *NoiseTerrain) octaves(x, y float64) float64 {
	var sum, norm float64
	freq, weight := 1.0, 1.0
	for o := 0; o < 3; o++ {
		sum += weight * n.noise.Eval2(x*freq, y*freq)
		norm += weight
		freq *= 2
		weight *= 0.5
	}
	return sum / norm
}
