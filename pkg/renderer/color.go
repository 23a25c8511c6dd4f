package renderer

import (
	"image/color"
	"math"

	"github.com/df07/go-sphere-pathtracer/pkg/core"
)

// intensity bounds a gamma-corrected channel so that 256·x stays below 256
var intensity = core.NewInterval(0.000, 0.999)

// EncodeSampledColor converts the sum of n radiance samples to an 8-bit pixel.
// Each channel is averaged, gamma-corrected with gamma 2, clamped to [0, 0.999]
// and scaled by 256. A non-positive sample count encodes as black.
func EncodeSampledColor(accum core.Color, samples int) color.RGBA {
	if samples <= 0 {
		return color.RGBA{A: 255}
	}

	scale := 1.0 / float64(samples)
	return color.RGBA{
		R: encodeChannel(accum.X * scale),
		G: encodeChannel(accum.Y * scale),
		B: encodeChannel(accum.Z * scale),
		A: 255,
	}
}

// encodeChannel gamma-corrects one averaged channel. Negative and NaN
// averages encode as 0.
func encodeChannel(linear float64) uint8 {
	return uint8(256 * intensity.Clamp(nanToZero(math.Sqrt(linear))))
}

var unit = core.NewInterval(0, 1)

// EncodeColor converts a single radiance sample directly to an 8-bit pixel
// as floor(255.999·c), without gamma correction. Channels outside [0, 1] are
// clamped first.
func EncodeColor(c core.Color) color.RGBA {
	return color.RGBA{
		R: uint8(255.999 * unit.Clamp(nanToZero(c.X))),
		G: uint8(255.999 * unit.Clamp(nanToZero(c.Y))),
		B: uint8(255.999 * unit.Clamp(nanToZero(c.Z))),
		A: 255,
	}
}

func nanToZero(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return x
}
