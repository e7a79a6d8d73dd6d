// Package synthetic generates plausible sensor frames for demos, recordings
// and end-to-end tests. The vehicle drives a straight line through a
// cylindrical scene with a flat ground; labelled objects circle around it.
package synthetic

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"maps"
	"math"
	"math/rand"

	"github.com/olala7846/car-data-visualization/internal/waymo"
)

// LaserSpec describes the range-image geometry and mounting of one laser.
type LaserSpec struct {
	Height, Width  int
	InclinationMin float64
	InclinationMax float64
	MaxRange       float64
	// Mounting in the vehicle frame.
	X, Y, Z, Yaw float64
}

// DefaultLasers is a five-laser rig loosely shaped like a production vehicle:
// a long-range roof unit plus four short-range units around the body.
var DefaultLasers = map[waymo.LaserName]LaserSpec{
	waymo.LaserTop:       {Height: 64, Width: 512, InclinationMin: -0.31, InclinationMax: 0.04, MaxRange: 75, X: 1.43, Z: 2.18},
	waymo.LaserFront:     {Height: 32, Width: 128, InclinationMin: -0.9, InclinationMax: 0.3, MaxRange: 20, X: 4.07, Z: 0.69},
	waymo.LaserSideLeft:  {Height: 32, Width: 128, InclinationMin: -0.9, InclinationMax: 0.3, MaxRange: 20, X: 3.24, Y: 1.02, Z: 0.98, Yaw: math.Pi / 2},
	waymo.LaserSideRight: {Height: 32, Width: 128, InclinationMin: -0.9, InclinationMax: 0.3, MaxRange: 20, X: 3.24, Y: -1.02, Z: 0.98, Yaw: -math.Pi / 2},
	waymo.LaserRear:      {Height: 32, Width: 128, InclinationMin: -0.9, InclinationMax: 0.3, MaxRange: 20, X: -1.15, Z: 0.46, Yaw: math.Pi},
}

// Generator produces a deterministic sequence of frames for one segment.
type Generator struct {
	contextName string
	seq         int
	startMicros int64

	// Configuration
	Lasers           map[waymo.LaserName]LaserSpec
	Cameras          []waymo.CameraName
	FrameRate        float64 // frames per second
	SpeedMPS         float64 // vehicle speed along +x
	AreaRadius       float64 // metres, radius of the surrounding wall
	LabelCount       int
	LabelRadius      float64 // metres, radius of the label circular paths
	LabelSpeedMPS    float64
	DropRate         float64 // fraction of cells with no return
	SecondReturnRate float64 // fraction of cells with a second echo
	PixelPose        bool    // attach a per-pixel pose image to TOP

	rng *rand.Rand
}

// NewGenerator creates a generator for the named segment. Output depends only
// on the seed and the configuration.
func NewGenerator(contextName string, seed int64) *Generator {
	return &Generator{
		contextName:      contextName,
		startMicros:      1_550_083_467_346_370,
		Lasers:           maps.Clone(DefaultLasers),
		Cameras:          waymo.CameraNames(),
		FrameRate:        10.0,
		SpeedMPS:         8.0,
		AreaRadius:       30.0,
		LabelCount:       6,
		LabelRadius:      15.0,
		LabelSpeedMPS:    4.0,
		DropRate:         0.02,
		SecondReturnRate: 0.05,
		PixelPose:        true,
		rng:              rand.New(rand.NewSource(seed)),
	}
}

// Next generates the next frame of the sequence.
func (g *Generator) Next() (*waymo.Frame, error) {
	seq := g.seq
	g.seq++
	elapsed := float64(seq) / g.FrameRate

	pose := yawTransform(0, g.SpeedMPS*elapsed, 0, 0)
	p := waymo.FrameParams{
		ID:              g.contextName,
		ContextName:     g.contextName,
		TimestampMicros: g.startMicros + int64(elapsed*1e6),
		Pose:            &pose,
		Labels:          g.labels(elapsed),
	}

	for _, name := range waymo.LaserNames() {
		spec, ok := g.Lasers[name]
		if !ok {
			continue
		}
		laser, calib, err := g.laser(name, spec, pose)
		if err != nil {
			return nil, fmt.Errorf("frame %d laser %s: %w", seq, name, err)
		}
		p.Lasers = append(p.Lasers, laser)
		p.Calibration.Lasers = append(p.Calibration.Lasers, calib)
	}

	for i, name := range g.Cameras {
		img, err := cameraImage(name, seq)
		if err != nil {
			return nil, fmt.Errorf("frame %d camera %s: %w", seq, name, err)
		}
		p.Cameras = append(p.Cameras, waymo.CameraImage{Name: name, Image: img})
		p.Calibration.Cameras = append(p.Calibration.Cameras, cameraCalibration(name, i))
	}

	return waymo.NewFrame(p)
}

func (g *Generator) laser(name waymo.LaserName, spec LaserSpec, pose waymo.Transform) (waymo.Laser, waymo.LaserCalibration, error) {
	calib := waymo.LaserCalibration{
		Name:               name,
		BeamInclinationMin: spec.InclinationMin,
		BeamInclinationMax: spec.InclinationMax,
		Extrinsic:          yawTransform(spec.Yaw, spec.X, spec.Y, spec.Z),
	}

	first := waymo.NewMatrix(int32(spec.Height), int32(spec.Width), 4)
	second := waymo.NewMatrix(int32(spec.Height), int32(spec.Width), 4)
	for row := 0; row < spec.Height; row++ {
		// Row 0 is the highest beam.
		incl := spec.InclinationMax - (spec.InclinationMax-spec.InclinationMin)*(float64(row)+0.5)/float64(spec.Height)
		for col := 0; col < spec.Width; col++ {
			az := ((float64(spec.Width-col)-0.5)/float64(spec.Width)*2 - 1) * math.Pi
			r := g.sceneRange(spec, incl, az)
			if r <= 0 || g.rng.Float64() < g.DropRate {
				first.Set(row, col, 0, -1)
				continue
			}
			first.Set(row, col, 0, float32(r))
			first.Set(row, col, 1, float32(math.Max(0.05, 1-r/spec.MaxRange)))
			first.Set(row, col, 2, float32(g.rng.Float64()*0.2))
			if g.rng.Float64() < g.SecondReturnRate {
				second.Set(row, col, 0, float32(r+0.5+g.rng.Float64()*2))
				second.Set(row, col, 1, 0.05)
			}
		}
	}

	var laser waymo.Laser
	laser.Name = name
	var err error
	if laser.Return1.RangeCompressed, err = waymo.EncodeMatrix(first); err != nil {
		return laser, calib, err
	}
	if laser.Return2.RangeCompressed, err = waymo.EncodeMatrix(second); err != nil {
		return laser, calib, err
	}
	if g.PixelPose && name == waymo.LaserTop {
		poseImage, err := uniformPoseImage(spec.Height, spec.Width, pose)
		if err != nil {
			return laser, calib, err
		}
		laser.Return1.PoseCompressed = poseImage
	}
	return laser, calib, nil
}

// sceneRange is the distance along a beam to the first surface: the ground
// below the laser or the wall around it. Zero means no return.
func (g *Generator) sceneRange(spec LaserSpec, incl, az float64) float64 {
	wall := g.AreaRadius * (1 + 0.1*math.Sin(3*az)) / math.Cos(incl)
	r := wall
	if incl < 0 {
		if ground := spec.Z / math.Sin(-incl); ground < r {
			r = ground
		}
	}
	r += g.rng.NormFloat64() * 0.02
	if r > spec.MaxRange {
		return 0
	}
	return r
}

func (g *Generator) labels(elapsed float64) []waymo.Label {
	labels := make([]waymo.Label, g.LabelCount)
	for i := range labels {
		baseAngle := float64(i) * 2 * math.Pi / float64(g.LabelCount)
		angle := baseAngle + elapsed*g.LabelSpeedMPS/g.LabelRadius

		typ := waymo.LabelTypeVehicle
		box := waymo.Box{Length: 4.5, Width: 1.9, Height: 1.6, CenterZ: 0.8}
		switch i % 3 {
		case 1:
			typ = waymo.LabelTypePedestrian
			box = waymo.Box{Length: 0.8, Width: 0.7, Height: 1.8, CenterZ: 0.9}
		case 2:
			typ = waymo.LabelTypeCyclist
			box = waymo.Box{Length: 1.8, Width: 0.6, Height: 1.7, CenterZ: 0.85}
		}
		box.CenterX = g.LabelRadius * math.Cos(angle)
		box.CenterY = g.LabelRadius * math.Sin(angle)
		// Heading tangent to the circle.
		box.Heading = math.Atan2(math.Cos(angle), -math.Sin(angle))

		labels[i] = waymo.Label{Box: box, Type: typ, ID: fmt.Sprintf("synthetic-%03d", i+1)}
	}
	return labels
}

func yawTransform(yaw, x, y, z float64) waymo.Transform {
	c, s := math.Cos(yaw), math.Sin(yaw)
	return waymo.Transform{
		c, -s, 0, x,
		s, c, 0, y,
		0, 0, 1, z,
		0, 0, 0, 1,
	}
}

func uniformPoseImage(h, w int, pose waymo.Transform) ([]byte, error) {
	yaw := math.Atan2(pose.At(1, 0), pose.At(0, 0))
	values := []float32{0, 0, float32(yaw), float32(pose.At(0, 3)), float32(pose.At(1, 3)), float32(pose.At(2, 3))}
	m := waymo.NewMatrix(int32(h), int32(w), 6)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			for ch, v := range values {
				m.Set(row, col, ch, v)
			}
		}
	}
	return waymo.EncodeMatrix(m)
}

func cameraCalibration(name waymo.CameraName, i int) waymo.CameraCalibration {
	yaw := []float64{0, math.Pi / 4, -math.Pi / 4, math.Pi / 2, -math.Pi / 2}[i%5]
	height := int32(1280)
	if name == waymo.CameraSideLeft || name == waymo.CameraSideRight {
		height = 886
	}
	return waymo.CameraCalibration{
		Name:      name,
		Intrinsic: []float64{2055.5, 2055.5, 939.6, float64(height) / 2, 0.03, -0.32, 0, 0, 0},
		Extrinsic: yawTransform(yaw, 1.5, 0, 2.1),
		Width:     1920,
		Height:    height,
	}
}

// cameraImage renders a small gradient whose hue depends on the camera and
// frame so successive images differ.
func cameraImage(name waymo.CameraName, seq int) ([]byte, error) {
	const w, h = 64, 48
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	shift := uint8(int(name)*40 + seq*5)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x*4) + shift, G: uint8(y * 5), B: 255 - shift, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
