package transform

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// R3 is the frame rotation about the third (polar) axis by theta radians.
// Applied to an inertial vector with theta = sidereal angle it yields the
// Earth-fixed vector.
func R3(theta float64) *mat.Dense {
	s, c := math.Sincos(theta)
	return mat.NewDense(3, 3, []float64{
		c, s, 0,
		-s, c, 0,
		0, 0, 1,
	})
}

// rotate multiplies m by v.
func rotate(m mat.Matrix, v Vector) Vector {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return Vector{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}
