package rangeimage

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/olala7846/car-data-visualization/internal/waymo"
)

// rigidTolerance bounds |det(R) - 1| for a transform to count as rigid.
const rigidTolerance = 0.01

// rigid is a rotation followed by a translation, unpacked from a row-major 4x4
// transform for the per-point hot path.
type rigid struct {
	r [3][3]float64
	t [3]float64
}

func rigidFrom(t waymo.Transform) rigid {
	var g rigid
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			g.r[i][j] = t.At(i, j)
		}
		g.t[i] = t.At(i, 3)
	}
	return g
}

func (g rigid) apply(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: g.r[0][0]*p.X + g.r[0][1]*p.Y + g.r[0][2]*p.Z + g.t[0],
		Y: g.r[1][0]*p.X + g.r[1][1]*p.Y + g.r[1][2]*p.Z + g.t[1],
		Z: g.r[2][0]*p.X + g.r[2][1]*p.Y + g.r[2][2]*p.Z + g.t[2],
	}
}

// then returns the transform that applies g and then h.
func (g rigid) then(h rigid) rigid {
	var out rigid
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.r[i][j] = h.r[i][0]*g.r[0][j] + h.r[i][1]*g.r[1][j] + h.r[i][2]*g.r[2][j]
		}
		out.t[i] = h.r[i][0]*g.t[0] + h.r[i][1]*g.t[1] + h.r[i][2]*g.t[2] + h.t[i]
	}
	return out
}

func dense(t waymo.Transform) *mat.Dense {
	data := make([]float64, 16)
	copy(data, t[:])
	return mat.NewDense(4, 4, data)
}

func fromDense(m mat.Matrix) waymo.Transform {
	var t waymo.Transform
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			t[i*4+j] = m.At(i, j)
		}
	}
	return t
}

// Invert returns the inverse of t.
func Invert(t waymo.Transform) (waymo.Transform, error) {
	var inv mat.Dense
	if err := inv.Inverse(dense(t)); err != nil {
		return waymo.Transform{}, fmt.Errorf("invert transform: %w", err)
	}
	return fromDense(&inv), nil
}

// IsRigid reports whether t has a proper rotation block (det ≈ 1) and a last
// row of [0 0 0 1].
func IsRigid(t waymo.Transform) bool {
	rot := dense(t).Slice(0, 3, 0, 3)
	if math.Abs(mat.Det(rot)-1) > rigidTolerance {
		return false
	}
	return t[12] == 0 && t[13] == 0 && t[14] == 0 && math.Abs(t[15]-1) <= 0.001
}

// PoseTransform builds the vehicle-to-world transform encoded by one pixel of a
// range-image pose: rotation Rz(yaw)·Ry(pitch)·Rx(roll) then translation.
func PoseTransform(roll, pitch, yaw, x, y, z float64) waymo.Transform {
	g := poseRigid(roll, pitch, yaw, x, y, z)
	return waymo.Transform{
		g.r[0][0], g.r[0][1], g.r[0][2], g.t[0],
		g.r[1][0], g.r[1][1], g.r[1][2], g.t[1],
		g.r[2][0], g.r[2][1], g.r[2][2], g.t[2],
		0, 0, 0, 1,
	}
}

func poseRigid(roll, pitch, yaw, x, y, z float64) rigid {
	sr, cr := math.Sincos(roll)
	sp, cp := math.Sincos(pitch)
	sy, cy := math.Sincos(yaw)
	return rigid{
		r: [3][3]float64{
			{cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr},
			{sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr},
			{-sp, cp * sr, cp * cr},
		},
		t: [3]float64{x, y, z},
	}
}
