package editor

import (
	"golang.org/x/image/math/f64"
	"gonum.org/v1/gonum/mat"
)

// Matrix2D represents a 2D affine transformation matrix.
// Layout: [a, b, c, d, e, f] representing:
// | a  c  e |
// | b  d  f |
// | 0  0  1 |
type Matrix2D [6]float64

// Identity2D returns the identity matrix.
func Identity2D() Matrix2D {
	return Matrix2D{1, 0, 0, 1, 0, 0}
}

// Translate2D returns a translation matrix.
func Translate2D(tx, ty float64) Matrix2D {
	return Matrix2D{1, 0, 0, 1, tx, ty}
}

// Scale2D returns a scale matrix.
func Scale2D(sx, sy float64) Matrix2D {
	return Matrix2D{sx, 0, 0, sy, 0, 0}
}

// ScaleAbout returns a scale matrix that keeps (px, py) fixed.
func ScaleAbout(sx, sy, px, py float64) Matrix2D {
	return Translate2D(px, py).Multiply(Scale2D(sx, sy)).Multiply(Translate2D(-px, -py))
}

// Multiply multiplies this matrix by another: result = m * other
// This applies 'other' first, then 'm'.
func (m Matrix2D) Multiply(other Matrix2D) Matrix2D {
	return Matrix2D{
		m[0]*other[0] + m[2]*other[1],        // a
		m[1]*other[0] + m[3]*other[1],        // b
		m[0]*other[2] + m[2]*other[3],        // c
		m[1]*other[2] + m[3]*other[3],        // d
		m[0]*other[4] + m[2]*other[5] + m[4], // e
		m[1]*other[4] + m[3]*other[5] + m[5], // f
	}
}

// Then returns the matrix that applies m first and next second.
func (m Matrix2D) Then(next Matrix2D) Matrix2D {
	return next.Multiply(m)
}

// TransformPoint applies the matrix to a point.
func (m Matrix2D) TransformPoint(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// Aff3 converts to the row-major source-to-destination form used by
// golang.org/x/image/draw.
func (m Matrix2D) Aff3() f64.Aff3 {
	return f64.Aff3{
		m[0], m[2], m[4],
		m[1], m[3], m[5],
	}
}

// Mat4 is a 4x4 matrix in column-major order, the layout GPU uniforms expect.
type Mat4 [16]float64

// Identity4 returns the 4x4 identity.
func Identity4() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// At returns the element at row r, column c.
func (m Mat4) At(r, c int) float64 {
	return m[c*4+r]
}

// Multiply returns m * other.
func (m Mat4) Multiply(other Mat4) Mat4 {
	var out mat.Dense
	out.Mul(m.dense(), other.dense())

	var res Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			res[c*4+r] = out.At(r, c)
		}
	}
	return res
}

// TransformPoint applies m to (x, y, 0, 1) and returns the x and y components.
func (m Mat4) TransformPoint(x, y float64) (float64, float64) {
	return m.At(0, 0)*x + m.At(0, 1)*y + m.At(0, 3),
		m.At(1, 0)*x + m.At(1, 1)*y + m.At(1, 3)
}

// Float32 returns the matrix as float32 values for uniform upload.
func (m Mat4) Float32() [16]float32 {
	var out [16]float32
	for i, v := range m {
		out[i] = float32(v)
	}
	return out
}

func (m Mat4) dense() *mat.Dense {
	d := mat.NewDense(4, 4, nil)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			d.Set(r, c, m.At(r, c))
		}
	}
	return d
}
