// Package waymo models one decoded sensor frame of a Waymo Open Dataset
// recording and converts it to and from its serialized form.
package waymo

import (
	"cmp"
	"fmt"
	"slices"
)

// Transform is a 4x4 rigid transform stored row-major.
type Transform [16]float64

// IdentityTransform returns the identity transform.
func IdentityTransform() Transform {
	return Transform{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// At returns the element at row r, column c.
func (t Transform) At(r, c int) float64 {
	return t[r*4+c]
}

// RangeImage holds the encoded payloads of one laser return.
// Range is the deprecated uncompressed encoding; RangeCompressed wins when both
// are present.
type RangeImage struct {
	RangeCompressed []byte
	PoseCompressed  []byte
	Range           *Matrix
}

// Empty reports whether the return carries no range payload.
func (r RangeImage) Empty() bool {
	return len(r.RangeCompressed) == 0 && r.Range == nil
}

// RangeMatrix decodes the [H, W, 4] range image (range, intensity, elongation,
// no-label-zone). ok is false when the return has no payload.
func (r RangeImage) RangeMatrix() (m Matrix, ok bool, err error) {
	switch {
	case len(r.RangeCompressed) > 0:
		m, err = DecodeMatrix(r.RangeCompressed)
		return m, err == nil, err
	case r.Range != nil:
		return *r.Range, true, nil
	default:
		return Matrix{}, false, nil
	}
}

func (r RangeImage) clone() RangeImage {
	out := RangeImage{
		RangeCompressed: slices.Clone(r.RangeCompressed),
		PoseCompressed:  slices.Clone(r.PoseCompressed),
	}
	if r.Range != nil {
		m := Matrix{Dims: slices.Clone(r.Range.Dims), Data: slices.Clone(r.Range.Data)}
		out.Range = &m
	}
	return out
}

// PoseMatrix decodes the [H, W, 6] per-pixel vehicle pose (roll, pitch, yaw,
// x, y, z). ok is false when the return has no pose payload.
func (r RangeImage) PoseMatrix() (m Matrix, ok bool, err error) {
	if len(r.PoseCompressed) == 0 {
		return Matrix{}, false, nil
	}
	m, err = DecodeMatrix(r.PoseCompressed)
	return m, err == nil, err
}

// LaserCalibration is the laser-to-vehicle calibration of one laser.
// BeamInclinations may be empty, in which case the inclinations are spread
// uniformly between BeamInclinationMin and BeamInclinationMax.
type LaserCalibration struct {
	Name               LaserName
	BeamInclinations   []float64
	BeamInclinationMin float64
	BeamInclinationMax float64
	Extrinsic          Transform
}

// CameraCalibration is the intrinsic and extrinsic calibration of one camera.
type CameraCalibration struct {
	Name      CameraName
	Intrinsic []float64
	Extrinsic Transform
	Width     int32
	Height    int32
}

// CalibrationSet holds the calibrations carried by a frame's context, in
// recording order.
type CalibrationSet struct {
	Cameras []CameraCalibration
	Lasers  []LaserCalibration
}

// Laser is one LiDAR unit's data in a frame. Calibration is joined from the
// frame's calibration set by name and is nil when the set has none.
type Laser struct {
	Name        LaserName
	Return1     RangeImage
	Return2     RangeImage
	Calibration *LaserCalibration
}

func (l Laser) clone() Laser {
	out := Laser{Name: l.Name, Return1: l.Return1.clone(), Return2: l.Return2.clone()}
	if l.Calibration != nil {
		c := *l.Calibration
		c.BeamInclinations = slices.Clone(c.BeamInclinations)
		out.Calibration = &c
	}
	return out
}

// Return selects the range image for a return index.
func (l Laser) Return(r ReturnIndex) (RangeImage, error) {
	switch r {
	case ReturnPrimary:
		return l.Return1, nil
	case ReturnSecond:
		return l.Return2, nil
	default:
		return RangeImage{}, fmt.Errorf("invalid return index %d", int(r))
	}
}

// CameraImage is one camera's encoded image.
type CameraImage struct {
	Name  CameraName
	Image []byte
}

func (c CameraImage) clone() CameraImage {
	return CameraImage{Name: c.Name, Image: slices.Clone(c.Image)}
}

func cloneAll[T any](items []T, clone func(T) T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	for i, it := range items {
		out[i] = clone(it)
	}
	return out
}

// Box is an oriented 3D bounding box in the vehicle frame.
type Box struct {
	CenterX, CenterY, CenterZ float64
	Length, Width, Height     float64
	Heading                   float64
}

// Label is an annotated object.
type Label struct {
	Box  Box
	Type LabelType
	ID   string
}

// FrameParams carries the fields NewFrame assembles into a Frame.
type FrameParams struct {
	ID              string
	ContextName     string
	TimestampMicros int64
	Pose            *Transform
	Lasers          []Laser
	Cameras         []CameraImage
	Calibration     CalibrationSet
	Labels          []Label
}

// Frame is one decoded sensor sampling instant. Its laser list is sorted by
// LaserName. A Frame is never modified after construction; accessors hand out
// deep copies.
type Frame struct {
	id              string
	contextName     string
	timestampMicros int64
	pose            *Transform
	lasers          []Laser
	cameras         []CameraImage
	calibration     CalibrationSet
	labels          []Label
}

// NewFrame builds a canonical Frame: lasers are sorted ascending by name and
// each laser is joined with its calibration by name. Duplicate laser, camera
// or calibration names are rejected.
func NewFrame(p FrameParams) (*Frame, error) {
	f := &Frame{
		id:              p.ID,
		contextName:     p.ContextName,
		timestampMicros: p.TimestampMicros,
		lasers:          cloneAll(p.Lasers, Laser.clone),
		cameras:         cloneAll(p.Cameras, CameraImage.clone),
		calibration:     p.Calibration.clone(),
		labels:          slices.Clone(p.Labels),
	}
	if p.Pose != nil {
		pose := *p.Pose
		f.pose = &pose
	}

	if err := checkUnique("laser", f.lasers, func(l Laser) string { return l.Name.String() }); err != nil {
		return nil, err
	}
	if err := checkUnique("camera", f.cameras, func(c CameraImage) string { return c.Name.String() }); err != nil {
		return nil, err
	}
	if err := checkUnique("camera calibration", f.calibration.Cameras, func(c CameraCalibration) string { return c.Name.String() }); err != nil {
		return nil, err
	}
	if err := checkUnique("laser calibration", f.calibration.Lasers, func(c LaserCalibration) string { return c.Name.String() }); err != nil {
		return nil, err
	}

	calibrations := make(map[LaserName]LaserCalibration, len(f.calibration.Lasers))
	for _, c := range f.calibration.Lasers {
		calibrations[c.Name] = c
	}
	for i := range f.lasers {
		l := &f.lasers[i]
		if c, ok := calibrations[l.Name]; ok {
			c.BeamInclinations = slices.Clone(c.BeamInclinations)
			l.Calibration = &c
			continue
		}
		if l.Calibration != nil {
			// Calibration supplied on the laser itself; keep the set complete.
			c := *l.Calibration
			c.Name = l.Name
			c.BeamInclinations = slices.Clone(c.BeamInclinations)
			l.Calibration = &c
			f.calibration.Lasers = append(f.calibration.Lasers, c)
		}
	}

	slices.SortStableFunc(f.lasers, func(a, b Laser) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return f, nil
}

func checkUnique[T any](kind string, items []T, key func(T) string) error {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		k := key(it)
		if seen[k] {
			return fmt.Errorf("duplicate %s %s", kind, k)
		}
		seen[k] = true
	}
	return nil
}

func (c CalibrationSet) clone() CalibrationSet {
	out := CalibrationSet{
		Cameras: slices.Clone(c.Cameras),
		Lasers:  slices.Clone(c.Lasers),
	}
	for i := range out.Cameras {
		out.Cameras[i].Intrinsic = slices.Clone(out.Cameras[i].Intrinsic)
	}
	for i := range out.Lasers {
		out.Lasers[i].BeamInclinations = slices.Clone(out.Lasers[i].BeamInclinations)
	}
	return out
}

// ID is the frame identifier used to name exported artifacts.
func (f *Frame) ID() string { return f.id }

// ContextName is the recording segment name carried by the frame.
func (f *Frame) ContextName() string { return f.contextName }

// TimestampMicros is the frame timestamp in microseconds.
func (f *Frame) TimestampMicros() int64 { return f.timestampMicros }

// Pose returns the vehicle pose for this frame, if the recording carries one.
func (f *Frame) Pose() (Transform, bool) {
	if f.pose == nil {
		return Transform{}, false
	}
	return *f.pose, true
}

// Lasers returns the lasers in ascending name order.
func (f *Frame) Lasers() []Laser { return cloneAll(f.lasers, Laser.clone) }

// Laser looks up a laser by name.
func (f *Frame) Laser(name LaserName) (Laser, bool) {
	for _, l := range f.lasers {
		if l.Name == name {
			return l.clone(), true
		}
	}
	return Laser{}, false
}

// Cameras returns the camera images in recording order.
func (f *Frame) Cameras() []CameraImage { return cloneAll(f.cameras, CameraImage.clone) }

// Camera looks up a camera image by name.
func (f *Frame) Camera(name CameraName) (CameraImage, bool) {
	for _, c := range f.cameras {
		if c.Name == name {
			return c.clone(), true
		}
	}
	return CameraImage{}, false
}

// Calibration returns a copy of the frame's calibration set.
func (f *Frame) Calibration() CalibrationSet { return f.calibration.clone() }

// Labels returns the 3D labels in recording order.
func (f *Frame) Labels() []Label { return slices.Clone(f.labels) }

// Params returns the fields of f in the form NewFrame accepts.
func (f *Frame) Params() FrameParams {
	p := FrameParams{
		ID:              f.id,
		ContextName:     f.contextName,
		TimestampMicros: f.timestampMicros,
		Lasers:          f.Lasers(),
		Cameras:         f.Cameras(),
		Calibration:     f.Calibration(),
		Labels:          f.Labels(),
	}
	if pose, ok := f.Pose(); ok {
		p.Pose = &pose
	}
	return p
}
