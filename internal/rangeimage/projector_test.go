package rangeimage

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/olala7846/car-data-visualization/internal/testutil"
	"github.com/olala7846/car-data-visualization/internal/waymo"
)

const eps = 1e-5

func frameWith(t *testing.T, id string, pose *waymo.Transform, lasers ...waymo.Laser) *waymo.Frame {
	t.Helper()
	f, err := waymo.NewFrame(waymo.FrameParams{ID: id, Pose: pose, Lasers: lasers})
	require.NoError(t, err)
	return f
}

func calibrated(l waymo.Laser, c waymo.LaserCalibration) waymo.Laser {
	l.Calibration = &c
	return l
}

func singleCell(row, col int, r float32) func(int, int) float32 {
	return func(rr, cc int) float32 {
		if rr == row && cc == col {
			return r
		}
		return 0
	}
}

func projectOne(t *testing.T, p *Projector, f *waymo.Frame, name waymo.LaserName, ret waymo.ReturnIndex) *PointCloud {
	t.Helper()
	l, ok := f.Laser(name)
	require.True(t, ok)
	pc, err := p.Project(f, l, ret)
	require.NoError(t, err)
	return pc
}

func TestProject_SingleCellDistanceEqualsRange(t *testing.T) {
	laser := calibrated(
		testutil.SyntheticLaser(t, waymo.LaserFront, singleCell(1, 3, 12.5), nil),
		testutil.UniformCalibration(waymo.LaserFront),
	)
	f := frameWith(t, "f", nil, laser)

	pc := projectOne(t, NewProjector(Options{}), f, waymo.LaserFront, waymo.ReturnPrimary)
	require.Equal(t, 1, pc.Len())

	p := pc.Points[0]
	assert.InDelta(t, 12.5, r3.Norm(p), eps)

	// Row 1 of a 4-row uniform table over [-0.3, 0.1] is the second highest
	// beam; column 3 of 8 sits at +pi/8.
	wantIncl := -0.05
	wantAz := math.Pi / 8
	assert.InDelta(t, math.Sin(wantIncl)*12.5, p.Z, eps)
	assert.InDelta(t, wantAz, math.Atan2(p.Y, p.X), eps)

	assert.Equal(t, waymo.LaserFront, pc.Laser)
	assert.Equal(t, waymo.ReturnPrimary, pc.Return)
	assert.Equal(t, "f", pc.FrameID)
	require.Len(t, pc.Intensity, 1)
	assert.Equal(t, float32(1*testutil.RangeWidth+3), pc.Intensity[0])
	assert.Len(t, pc.Elongation, 1)
}

func TestProject_ExtrinsicTranslation(t *testing.T) {
	calib := testutil.UniformCalibration(waymo.LaserRear)
	calib.Extrinsic = testutil.TranslatedTransform(1, 2, 3)
	laser := calibrated(testutil.SyntheticLaser(t, waymo.LaserRear, singleCell(0, 0, 4), nil), calib)
	f := frameWith(t, "f", nil, laser)

	pc := projectOne(t, NewProjector(Options{}), f, waymo.LaserRear, waymo.ReturnPrimary)
	require.Equal(t, 1, pc.Len())
	local := r3.Sub(pc.Points[0], r3.Vec{X: 1, Y: 2, Z: 3})
	assert.InDelta(t, 4, r3.Norm(local), eps)
}

func TestProject_DropsNonPositiveRanges(t *testing.T) {
	tests := []struct {
		name  string
		value float32
	}{
		{"zero", 0},
		{"negative", -1},
		{"nan", float32(math.NaN())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			laser := calibrated(
				testutil.SyntheticLaser(t, waymo.LaserSideLeft, testutil.ConstantRange(tt.value), nil),
				testutil.UniformCalibration(waymo.LaserSideLeft),
			)
			f := frameWith(t, "f", nil, laser)

			pc := projectOne(t, NewProjector(Options{}), f, waymo.LaserSideLeft, waymo.ReturnPrimary)
			assert.Equal(t, 0, pc.Len())
			assert.Empty(t, pc.Intensity)
		})
	}
}

func TestProject_CountMatchesPositiveCells(t *testing.T) {
	laser := calibrated(
		testutil.SyntheticLaser(t, waymo.LaserTop, func(row, col int) float32 {
			if (row+col)%3 == 0 {
				return 0
			}
			return float32(row + col + 1)
		}, nil),
		testutil.UniformCalibration(waymo.LaserTop),
	)
	f := frameWith(t, "f", nil, laser)

	want := 0
	for row := 0; row < testutil.RangeHeight; row++ {
		for col := 0; col < testutil.RangeWidth; col++ {
			if (row+col)%3 != 0 {
				want++
			}
		}
	}
	pc := projectOne(t, NewProjector(Options{PixelPose: true}), f, waymo.LaserTop, waymo.ReturnPrimary)
	assert.Equal(t, want, pc.Len())
}

func TestProject_ReturnsAreIndependent(t *testing.T) {
	laser := calibrated(
		testutil.SyntheticLaser(t, waymo.LaserFront, testutil.ConstantRange(5), singleCell(2, 6, 9)),
		testutil.UniformCalibration(waymo.LaserFront),
	)
	f := frameWith(t, "f", nil, laser)
	p := NewProjector(Options{})

	first := projectOne(t, p, f, waymo.LaserFront, waymo.ReturnPrimary)
	second := projectOne(t, p, f, waymo.LaserFront, waymo.ReturnSecond)

	require.Equal(t, testutil.RangeHeight*testutil.RangeWidth, first.Len())
	for _, pt := range first.Points {
		assert.InDelta(t, 5, r3.Norm(pt), eps)
	}
	require.Equal(t, 1, second.Len())
	assert.InDelta(t, 9, r3.Norm(second.Points[0]), eps)
	assert.Equal(t, waymo.ReturnSecond, second.Return)
}

func TestProject_MissingReturnIsEmpty(t *testing.T) {
	laser := calibrated(
		testutil.SyntheticLaser(t, waymo.LaserFront, testutil.ConstantRange(5), nil),
		testutil.UniformCalibration(waymo.LaserFront),
	)
	f := frameWith(t, "f", nil, laser)

	pc := projectOne(t, NewProjector(Options{}), f, waymo.LaserFront, waymo.ReturnSecond)
	assert.Equal(t, 0, pc.Len())
}

func TestProject_MissingCalibration(t *testing.T) {
	laser := testutil.SyntheticLaser(t, waymo.LaserSideRight, testutil.ConstantRange(5), nil)
	f := frameWith(t, "frame-7", nil, laser)
	l, _ := f.Laser(waymo.LaserSideRight)

	_, err := NewProjector(Options{}).Project(f, l, waymo.ReturnPrimary)

	var cme *CalibrationMissingError
	require.True(t, errors.As(err, &cme))
	assert.Equal(t, "frame-7", cme.FrameID)
	assert.Equal(t, waymo.LaserSideRight, cme.Laser)
	assert.Contains(t, err.Error(), "SIDE_RIGHT")
}

func TestProject_BeamTableDoesNotFit(t *testing.T) {
	calib := testutil.UniformCalibration(waymo.LaserFront)
	calib.BeamInclinations = []float64{0.1, 0.0, -0.1}
	laser := calibrated(testutil.SyntheticLaser(t, waymo.LaserFront, testutil.ConstantRange(5), nil), calib)
	f := frameWith(t, "f", nil, laser)
	l, _ := f.Laser(waymo.LaserFront)

	_, err := NewProjector(Options{}).Project(f, l, waymo.ReturnPrimary)
	var cme *CalibrationMissingError
	require.ErrorAs(t, err, &cme)
	assert.Contains(t, cme.Reason, "cover 3 rows")
}

func TestProject_CorruptPayload(t *testing.T) {
	laser := waymo.Laser{
		Name:    waymo.LaserFront,
		Return1: waymo.RangeImage{RangeCompressed: []byte{0x78, 0x9c, 0x01}},
	}
	laser = calibrated(laser, testutil.UniformCalibration(waymo.LaserFront))
	f := frameWith(t, "bad", nil, laser)
	l, _ := f.Laser(waymo.LaserFront)

	_, err := NewProjector(Options{}).Project(f, l, waymo.ReturnPrimary)
	var de *waymo.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "bad", de.FrameID)
	assert.Equal(t, "lasers[FRONT].return1", de.Field)
}

func TestProject_MalformedShapeIsDecodeError(t *testing.T) {
	tests := []struct {
		name string
		ri   waymo.RangeImage
	}{
		{"overflowing dims", waymo.RangeImage{RangeCompressed: testutil.ShapeOnlyMatrix(t, 1<<21, 1<<21, 1<<22)}},
		{"uncompressed without data", waymo.RangeImage{Range: &waymo.Matrix{Dims: []int32{4, 8, 4}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			laser := calibrated(waymo.Laser{Name: waymo.LaserFront, Return1: tt.ri}, testutil.UniformCalibration(waymo.LaserFront))
			f := frameWith(t, "shape", nil, laser)
			l, _ := f.Laser(waymo.LaserFront)

			var err error
			require.NotPanics(t, func() {
				_, err = NewProjector(Options{}).Project(f, l, waymo.ReturnPrimary)
			})
			var de *waymo.DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, "shape", de.FrameID)
			assert.Equal(t, "lasers[FRONT].return1", de.Field)
		})
	}
}

func TestProject_NonRigidExtrinsic(t *testing.T) {
	calib := testutil.UniformCalibration(waymo.LaserFront)
	calib.Extrinsic[0] = 2
	laser := calibrated(testutil.SyntheticLaser(t, waymo.LaserFront, testutil.ConstantRange(5), nil), calib)
	f := frameWith(t, "f", nil, laser)
	l, _ := f.Laser(waymo.LaserFront)

	_, err := NewProjector(Options{}).Project(f, l, waymo.ReturnPrimary)
	var cme *CalibrationMissingError
	require.ErrorAs(t, err, &cme)
	assert.Contains(t, cme.Reason, "not a rigid transform")
}

func TestProject_InvalidReturn(t *testing.T) {
	laser := calibrated(
		testutil.SyntheticLaser(t, waymo.LaserFront, testutil.ConstantRange(5), nil),
		testutil.UniformCalibration(waymo.LaserFront),
	)
	f := frameWith(t, "f", nil, laser)
	l, _ := f.Laser(waymo.LaserFront)

	_, err := NewProjector(Options{}).Project(f, l, waymo.ReturnIndex(3))
	assert.Error(t, err)
}

func topWithPose(t *testing.T, x float32) waymo.Laser {
	l := testutil.SyntheticLaser(t, waymo.LaserTop, singleCell(0, 0, 10), nil)
	l.Return1.PoseCompressed = testutil.PoseImage(t, testutil.RangeHeight, testutil.RangeWidth, 0, 0, 0, x, 0, 0)
	return calibrated(l, testutil.UniformCalibration(waymo.LaserTop))
}

func TestProject_PixelPose(t *testing.T) {
	framePose := testutil.TranslatedTransform(100, 0, 0)

	t.Run("pixel pose equal to frame pose is a no-op", func(t *testing.T) {
		f := frameWith(t, "f", &framePose, topWithPose(t, 100))
		with := projectOne(t, NewProjector(Options{PixelPose: true}), f, waymo.LaserTop, waymo.ReturnPrimary)
		without := projectOne(t, NewProjector(Options{}), f, waymo.LaserTop, waymo.ReturnPrimary)
		require.Equal(t, 1, with.Len())
		assert.InDelta(t, without.Points[0].X, with.Points[0].X, eps)
		assert.InDelta(t, without.Points[0].Y, with.Points[0].Y, eps)
		assert.InDelta(t, without.Points[0].Z, with.Points[0].Z, eps)
	})

	t.Run("vehicle moved between pixel and frame", func(t *testing.T) {
		f := frameWith(t, "f", &framePose, topWithPose(t, 101))
		with := projectOne(t, NewProjector(Options{PixelPose: true}), f, waymo.LaserTop, waymo.ReturnPrimary)
		without := projectOne(t, NewProjector(Options{}), f, waymo.LaserTop, waymo.ReturnPrimary)
		assert.InDelta(t, without.Points[0].X+1, with.Points[0].X, eps)
		assert.InDelta(t, without.Points[0].Y, with.Points[0].Y, eps)
	})

	t.Run("ignored without frame pose", func(t *testing.T) {
		f := frameWith(t, "f", nil, topWithPose(t, 250))
		pc := projectOne(t, NewProjector(Options{PixelPose: true}), f, waymo.LaserTop, waymo.ReturnPrimary)
		assert.InDelta(t, 10, r3.Norm(pc.Points[0]), eps)
	})
}

func TestInclinations(t *testing.T) {
	calib := waymo.LaserCalibration{BeamInclinations: []float64{-0.2, -0.1, 0.0, 0.1}}
	got, err := Inclinations(calib, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.0, -0.1, -0.2}, got)
	assert.Equal(t, -0.2, calib.BeamInclinations[0], "table must not be reversed in place")

	uniform, err := Inclinations(testutil.UniformCalibration(waymo.LaserTop), 4)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.05, -0.05, -0.15, -0.25}, uniform, 1e-12)

	_, err = Inclinations(waymo.LaserCalibration{}, 4)
	assert.Error(t, err)
	_, err = Inclinations(calib, 0)
	assert.Error(t, err)
}

func TestAzimuths(t *testing.T) {
	az := Azimuths(waymo.IdentityTransform(), 4)
	assert.InDeltaSlice(t, []float64{0.75 * math.Pi, 0.25 * math.Pi, -0.25 * math.Pi, -0.75 * math.Pi}, az, 1e-12)

	yawed := PoseTransform(0, 0, math.Pi/2, 0, 0, 0)
	shifted := Azimuths(yawed, 4)
	for i := range az {
		assert.InDelta(t, az[i]-math.Pi/2, shifted[i], 1e-12)
	}
}

func TestSphericalToCartesian(t *testing.T) {
	for _, tc := range []struct{ incl, az, r float64 }{
		{0, 0, 1},
		{0.3, -2.0, 7.5},
		{-0.4, 3.1, 80},
	} {
		p := SphericalToCartesian(tc.incl, tc.az, tc.r)
		assert.InDelta(t, tc.r, r3.Norm(p), 1e-9)
	}
	p := SphericalToCartesian(0, math.Pi/2, 2)
	assert.InDelta(t, 0, p.X, 1e-12)
	assert.InDelta(t, 2, p.Y, 1e-12)
}
