// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers and synthetic sensor frames to
// reduce code duplication across test files.
package testutil

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zlib"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/olala7846/car-data-visualization/internal/waymo"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Default synthetic range-image geometry.
const (
	RangeHeight = 4
	RangeWidth  = 8
)

// NewRangeMatrix allocates a zeroed [h, w, 4] range image.
func NewRangeMatrix(h, w int) waymo.Matrix {
	return waymo.NewMatrix(int32(h), int32(w), 4)
}

// FilledRangeMatrix builds an [h, w, 4] range image whose range channel is
// rangeAt(row, col). Intensity and elongation are set to distinct values so
// tests can tell cells apart.
func FilledRangeMatrix(h, w int, rangeAt func(row, col int) float32) waymo.Matrix {
	m := NewRangeMatrix(h, w)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			m.Set(row, col, 0, rangeAt(row, col))
			m.Set(row, col, 1, float32(row*w+col))
			m.Set(row, col, 2, 0.5)
		}
	}
	return m
}

// CompressedRangeImage zlib-encodes m into a range image payload.
func CompressedRangeImage(t testing.TB, m waymo.Matrix) waymo.RangeImage {
	t.Helper()
	b, err := waymo.EncodeMatrix(m)
	AssertNoError(t, err)
	return waymo.RangeImage{RangeCompressed: b}
}

// ShapeOnlyMatrix returns a compressed MatrixFloat that declares dims but
// carries no data, as a malformed recording might.
func ShapeOnlyMatrix(t testing.TB, dims ...int32) []byte {
	t.Helper()
	var packed []byte
	for _, d := range dims {
		packed = protowire.AppendVarint(packed, uint64(d))
	}
	var shape []byte
	shape = protowire.AppendTag(shape, 1, protowire.BytesType)
	shape = protowire.AppendBytes(shape, packed)
	var msg []byte
	msg = protowire.AppendTag(msg, 2, protowire.BytesType)
	msg = protowire.AppendBytes(msg, shape)

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(msg)
	AssertNoError(t, err)
	AssertNoError(t, zw.Close())
	return buf.Bytes()
}

// PoseImage builds an [h, w, 6] pixel pose image with the same pose in every
// cell.
func PoseImage(t testing.TB, h, w int, roll, pitch, yaw, x, y, z float32) []byte {
	t.Helper()
	m := waymo.NewMatrix(int32(h), int32(w), 6)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			for ch, v := range []float32{roll, pitch, yaw, x, y, z} {
				m.Set(row, col, ch, v)
			}
		}
	}
	b, err := waymo.EncodeMatrix(m)
	AssertNoError(t, err)
	return b
}

// UniformCalibration returns a calibration without a beam table, spreading
// inclinations over [-0.3, 0.1] rad, mounted at the vehicle origin.
func UniformCalibration(name waymo.LaserName) waymo.LaserCalibration {
	return waymo.LaserCalibration{
		Name:               name,
		BeamInclinationMin: -0.3,
		BeamInclinationMax: 0.1,
		Extrinsic:          waymo.IdentityTransform(),
	}
}

// TranslatedTransform returns the identity rotation with translation (x, y, z).
func TranslatedTransform(x, y, z float64) waymo.Transform {
	t := waymo.IdentityTransform()
	t[3], t[7], t[11] = x, y, z
	return t
}

// SyntheticLaser builds a laser whose returns are filled by the given
// functions. A nil function leaves that return empty.
func SyntheticLaser(t testing.TB, name waymo.LaserName, first, second func(row, col int) float32) waymo.Laser {
	t.Helper()
	l := waymo.Laser{Name: name}
	if first != nil {
		l.Return1 = CompressedRangeImage(t, FilledRangeMatrix(RangeHeight, RangeWidth, first))
	}
	if second != nil {
		l.Return2 = CompressedRangeImage(t, FilledRangeMatrix(RangeHeight, RangeWidth, second))
	}
	return l
}

// ConstantRange returns a range function reporting r for every cell.
func ConstantRange(r float32) func(row, col int) float32 {
	return func(int, int) float32 { return r }
}

// SyntheticFrameParams returns the fields of a complete frame: all five lasers
// with both returns, two cameras, their calibrations and two labels. Laser
// ranges encode the laser name so clouds are distinguishable.
func SyntheticFrameParams(t testing.TB, id string) waymo.FrameParams {
	t.Helper()
	p := waymo.FrameParams{
		ID:              id,
		ContextName:     id,
		TimestampMicros: 1_550_083_467_346_370,
	}
	for _, name := range waymo.LaserNames() {
		r := float32(name) * 10
		p.Lasers = append(p.Lasers, SyntheticLaser(t, name, ConstantRange(r), ConstantRange(r+1)))
		p.Calibration.Lasers = append(p.Calibration.Lasers, UniformCalibration(name))
	}
	for i, name := range []waymo.CameraName{waymo.CameraFront, waymo.CameraSideLeft} {
		p.Cameras = append(p.Cameras, waymo.CameraImage{
			Name:  name,
			Image: []byte{0xff, 0xd8, 0xff, byte(i), 0x00, 0x0a, 0x0d},
		})
		p.Calibration.Cameras = append(p.Calibration.Cameras, waymo.CameraCalibration{
			Name:      name,
			Intrinsic: []float64{2055.5, 2055.5, 939.6, 641.1, 0.03, -0.32, 0.0, 0.0, 0.0},
			Extrinsic: TranslatedTransform(1.5, float64(i), 2.1),
			Width:     1920,
			Height:    1280,
		})
	}
	p.Labels = []waymo.Label{
		{
			Box:  waymo.Box{CenterX: 12.5, CenterY: -3.25, CenterZ: 1.0, Length: 4.5, Width: 1.9, Height: 1.6, Heading: 0.12},
			Type: waymo.LabelTypeVehicle,
			ID:   "veh-1",
		},
		{
			Box:  waymo.Box{CenterX: -7.0, CenterY: 4.0, CenterZ: 0.9, Length: 0.8, Width: 0.7, Height: 1.8, Heading: -1.5},
			Type: waymo.LabelTypePedestrian,
			ID:   "ped-1",
		},
	}
	return p
}

// SyntheticFrame builds the frame described by SyntheticFrameParams.
func SyntheticFrame(t testing.TB, id string) *waymo.Frame {
	t.Helper()
	f, err := waymo.NewFrame(SyntheticFrameParams(t, id))
	AssertNoError(t, err)
	return f
}
