// Package rangeimage reconstructs 3D point clouds from LiDAR range images.
package rangeimage

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/olala7846/car-data-visualization/internal/waymo"
)

// Range image channels.
const (
	channelRange      = 0
	channelIntensity  = 1
	channelElongation = 2
)

// Pose image channels.
const poseChannels = 6

// CalibrationMissingError reports a laser whose calibration is absent or does
// not fit its range image.
type CalibrationMissingError struct {
	FrameID string
	Laser   waymo.LaserName
	Reason  string
}

func (e *CalibrationMissingError) Error() string {
	msg := fmt.Sprintf("frame %q laser %s: calibration missing", e.FrameID, e.Laser)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// PointCloud is the unordered set of points one laser return produced, in the
// vehicle frame. Intensity and Elongation are parallel to Points.
type PointCloud struct {
	FrameID    string
	Laser      waymo.LaserName
	Return     waymo.ReturnIndex
	Points     []r3.Vec
	Intensity  []float32
	Elongation []float32
}

// Len returns the number of points.
func (pc *PointCloud) Len() int {
	if pc == nil {
		return 0
	}
	return len(pc.Points)
}

// Options controls projection.
type Options struct {
	// PixelPose compensates the top laser's rolling shutter with its per-pixel
	// pose image when the frame carries a vehicle pose.
	PixelPose bool
}

// Projector converts range images to point clouds. It holds no per-frame
// state and may be shared.
type Projector struct {
	opts Options
}

// NewProjector creates a Projector.
func NewProjector(opts Options) *Projector {
	return &Projector{opts: opts}
}

// Project reconstructs the points of one return of one laser of frame. Cells
// without a positive range are dropped. A return without a payload yields an
// empty cloud.
func (p *Projector) Project(frame *waymo.Frame, laser waymo.Laser, ret waymo.ReturnIndex) (*PointCloud, error) {
	if !ret.Valid() {
		return nil, fmt.Errorf("frame %q laser %s: invalid return index %d", frame.ID(), laser.Name, int(ret))
	}
	cloud := &PointCloud{FrameID: frame.ID(), Laser: laser.Name, Return: ret}

	if laser.Calibration == nil {
		return nil, &CalibrationMissingError{FrameID: frame.ID(), Laser: laser.Name}
	}
	calib := *laser.Calibration
	if !IsRigid(calib.Extrinsic) {
		return nil, &CalibrationMissingError{FrameID: frame.ID(), Laser: laser.Name, Reason: "extrinsic is not a rigid transform"}
	}

	ri, _ := laser.Return(ret)
	field := fmt.Sprintf("lasers[%s].%s", laser.Name, ret)
	rangeImage, ok, err := ri.RangeMatrix()
	if err != nil {
		return nil, &waymo.DecodeError{FrameID: frame.ID(), Field: field, Err: err}
	}
	if !ok {
		return cloud, nil
	}
	if len(rangeImage.Dims) != 3 {
		return nil, &waymo.DecodeError{FrameID: frame.ID(), Field: field,
			Err: fmt.Errorf("range image shape %v, want [H W C]", rangeImage.Dims)}
	}
	if err := rangeImage.Validate(); err != nil {
		return nil, &waymo.DecodeError{FrameID: frame.ID(), Field: field, Err: err}
	}

	height, width, channels := rangeImage.Height(), rangeImage.Width(), rangeImage.Channels()
	inclinations, err := Inclinations(calib, height)
	if err != nil {
		return nil, &CalibrationMissingError{FrameID: frame.ID(), Laser: laser.Name, Reason: err.Error()}
	}
	azimuths := Azimuths(calib.Extrinsic, width)
	extrinsic := rigidFrom(calib.Extrinsic)

	pixelPose, vehicleFromWorld, usePose, err := p.poseCompensation(frame, laser)
	if err != nil {
		return nil, err
	}
	if usePose && (pixelPose.Height() != height || pixelPose.Width() != width) {
		return nil, &waymo.DecodeError{FrameID: frame.ID(), Field: fmt.Sprintf("lasers[%s].return1.pose", laser.Name),
			Err: fmt.Errorf("pose image %v does not match range image %v", pixelPose.Dims, rangeImage.Dims)}
	}

	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			r := float64(rangeImage.At(row, col, channelRange))
			// NaN fails this test as well.
			if !(r > 0) {
				continue
			}
			pt := extrinsic.apply(SphericalToCartesian(inclinations[row], azimuths[col], r))
			if usePose {
				pt = pixelRigid(pixelPose, row, col).then(vehicleFromWorld).apply(pt)
			}
			cloud.Points = append(cloud.Points, pt)
			if channels > channelIntensity {
				cloud.Intensity = append(cloud.Intensity, rangeImage.At(row, col, channelIntensity))
			}
			if channels > channelElongation {
				cloud.Elongation = append(cloud.Elongation, rangeImage.At(row, col, channelElongation))
			}
		}
	}
	return cloud, nil
}

// poseCompensation returns the top laser's pixel pose image and the inverse of
// the frame pose when both are available and enabled.
func (p *Projector) poseCompensation(frame *waymo.Frame, laser waymo.Laser) (waymo.Matrix, rigid, bool, error) {
	if !p.opts.PixelPose || laser.Name != waymo.LaserTop {
		return waymo.Matrix{}, rigid{}, false, nil
	}
	framePose, ok := frame.Pose()
	if !ok {
		return waymo.Matrix{}, rigid{}, false, nil
	}
	// The pose image always travels with the primary return.
	poseImage, ok, err := laser.Return1.PoseMatrix()
	if err != nil {
		return waymo.Matrix{}, rigid{}, false, &waymo.DecodeError{FrameID: frame.ID(),
			Field: fmt.Sprintf("lasers[%s].return1.pose", laser.Name), Err: err}
	}
	if !ok {
		return waymo.Matrix{}, rigid{}, false, nil
	}
	if len(poseImage.Dims) != 3 || poseImage.Channels() != poseChannels {
		return waymo.Matrix{}, rigid{}, false, &waymo.DecodeError{FrameID: frame.ID(),
			Field: fmt.Sprintf("lasers[%s].return1.pose", laser.Name),
			Err:   fmt.Errorf("pose image shape %v, want [H W %d]", poseImage.Dims, poseChannels)}
	}
	if err := poseImage.Validate(); err != nil {
		return waymo.Matrix{}, rigid{}, false, &waymo.DecodeError{FrameID: frame.ID(),
			Field: fmt.Sprintf("lasers[%s].return1.pose", laser.Name), Err: err}
	}
	inv, err := Invert(framePose)
	if err != nil {
		return waymo.Matrix{}, rigid{}, false, &waymo.DecodeError{FrameID: frame.ID(), Field: "pose", Err: err}
	}
	return poseImage, rigidFrom(inv), true, nil
}

func pixelRigid(pose waymo.Matrix, row, col int) rigid {
	return poseRigid(
		float64(pose.At(row, col, 0)),
		float64(pose.At(row, col, 1)),
		float64(pose.At(row, col, 2)),
		float64(pose.At(row, col, 3)),
		float64(pose.At(row, col, 4)),
		float64(pose.At(row, col, 5)),
	)
}

// SphericalToCartesian converts a beam (inclination, azimuth, range) to a point
// in the laser frame. |result| == r.
func SphericalToCartesian(inclination, azimuth, r float64) r3.Vec {
	sinIncl, cosIncl := math.Sincos(inclination)
	sinAz, cosAz := math.Sincos(azimuth)
	return r3.Vec{
		X: cosAz * cosIncl * r,
		Y: sinAz * cosIncl * r,
		Z: sinIncl * r,
	}
}

// Inclinations returns the beam inclination of every range-image row. Row 0 is
// the highest beam. Without a calibration table the inclinations are spread
// uniformly over [min, max].
func Inclinations(calib waymo.LaserCalibration, height int) ([]float64, error) {
	if height <= 0 {
		return nil, fmt.Errorf("range image height %d", height)
	}
	var incl []float64
	if len(calib.BeamInclinations) > 0 {
		if len(calib.BeamInclinations) != height {
			return nil, fmt.Errorf("beam inclinations cover %d rows, range image has %d", len(calib.BeamInclinations), height)
		}
		incl = slices.Clone(calib.BeamInclinations)
	} else {
		if calib.BeamInclinationMax <= calib.BeamInclinationMin {
			return nil, fmt.Errorf("no beam inclinations and empty range [%g, %g]", calib.BeamInclinationMin, calib.BeamInclinationMax)
		}
		span := calib.BeamInclinationMax - calib.BeamInclinationMin
		incl = make([]float64, height)
		for i := range incl {
			incl[i] = calib.BeamInclinationMin + span*(float64(i)+0.5)/float64(height)
		}
	}
	slices.Reverse(incl)
	return incl, nil
}

// Azimuths returns the azimuth of every range-image column. Column 0 points
// backwards and the sweep runs counter-clockwise, corrected for the laser's yaw
// on the vehicle.
func Azimuths(extrinsic waymo.Transform, width int) []float64 {
	correction := math.Atan2(extrinsic.At(1, 0), extrinsic.At(0, 0))
	az := make([]float64, width)
	for col := range az {
		ratio := (float64(width-col) - 0.5) / float64(width)
		az[col] = (ratio*2-1)*math.Pi - correction
	}
	return az
}
