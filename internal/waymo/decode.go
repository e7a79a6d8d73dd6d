package waymo

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the recording's Frame message and its children. Only the
// fields the pipeline consumes are listed; everything else is skipped.
const (
	frameContext         protowire.Number = 1
	frameTimestampMicros protowire.Number = 2
	framePose            protowire.Number = 3
	frameImages          protowire.Number = 4
	frameLasers          protowire.Number = 5
	frameLaserLabels     protowire.Number = 6

	contextName               protowire.Number = 1
	contextCameraCalibrations protowire.Number = 2
	contextLaserCalibrations  protowire.Number = 3

	cameraCalibName      protowire.Number = 1
	cameraCalibIntrinsic protowire.Number = 2
	cameraCalibExtrinsic protowire.Number = 3
	cameraCalibWidth     protowire.Number = 4
	cameraCalibHeight    protowire.Number = 5

	laserCalibName             protowire.Number = 1
	laserCalibBeamInclinations protowire.Number = 2
	laserCalibInclinationMin   protowire.Number = 3
	laserCalibInclinationMax   protowire.Number = 4
	laserCalibExtrinsic        protowire.Number = 5

	transformValues protowire.Number = 1

	cameraImageName  protowire.Number = 1
	cameraImageImage protowire.Number = 2

	laserName      protowire.Number = 1
	laserRIReturn1 protowire.Number = 2
	laserRIReturn2 protowire.Number = 3

	rangeImageRange           protowire.Number = 1
	rangeImageRangeCompressed protowire.Number = 2
	rangeImagePoseCompressed  protowire.Number = 4

	labelBox  protowire.Number = 1
	labelType protowire.Number = 3
	labelID   protowire.Number = 4

	boxCenterX protowire.Number = 1
	boxCenterY protowire.Number = 2
	boxCenterZ protowire.Number = 3
	boxWidth   protowire.Number = 4
	boxLength  protowire.Number = 5
	boxHeight  protowire.Number = 6
	boxHeading protowire.Number = 7
)

// DecodeError reports a blob that is not a valid frame encoding.
type DecodeError struct {
	FrameID string // empty when the failure precedes the context name
	Field   string // path of the field being decoded, e.g. "lasers[2].ri_return1"
	Err     error
}

func (e *DecodeError) Error() string {
	if e.FrameID == "" {
		return fmt.Sprintf("decode frame: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("decode frame %q: %s: %v", e.FrameID, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeOption customises Decode.
type DecodeOption func(*decodeOptions)

type decodeOptions struct {
	frameID         string
	fallbackFrameID string
}

// WithFrameID makes the decoded frame use id instead of its context name.
func WithFrameID(id string) DecodeOption {
	return func(o *decodeOptions) { o.frameID = id }
}

// WithFallbackFrameID supplies the id used when the blob has no context name.
func WithFallbackFrameID(id string) DecodeOption {
	return func(o *decodeOptions) { o.fallbackFrameID = id }
}

// Decode parses one serialized frame blob into a canonical Frame.
func Decode(blob []byte, opts ...DecodeOption) (*Frame, error) {
	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	var (
		p        FrameParams
		images   int
		lasers   int
		labels   int
		fieldErr = func(path string, err error) error {
			return &DecodeError{Field: path, Err: err}
		}
	)

	err := walkFields(blob, func(f field) error {
		switch f.Num {
		case frameContext:
			b, err := f.message()
			if err != nil {
				return fieldErr("context", err)
			}
			if err := decodeContext(b, &p); err != nil {
				return err
			}
		case frameTimestampMicros:
			v, err := f.int()
			if err != nil {
				return fieldErr("timestamp_micros", err)
			}
			p.TimestampMicros = v
		case framePose:
			b, err := f.message()
			if err != nil {
				return fieldErr("pose", err)
			}
			t, err := decodeTransform(b)
			if err != nil {
				return fieldErr("pose", err)
			}
			p.Pose = &t
		case frameImages:
			path := fmt.Sprintf("images[%d]", images)
			images++
			b, err := f.message()
			if err != nil {
				return fieldErr(path, err)
			}
			img, err := decodeCameraImage(b)
			if err != nil {
				return fieldErr(path, err)
			}
			p.Cameras = append(p.Cameras, img)
		case frameLasers:
			path := fmt.Sprintf("lasers[%d]", lasers)
			lasers++
			b, err := f.message()
			if err != nil {
				return fieldErr(path, err)
			}
			l, err := decodeLaser(b, path)
			if err != nil {
				return err
			}
			p.Lasers = append(p.Lasers, l)
		case frameLaserLabels:
			path := fmt.Sprintf("laser_labels[%d]", labels)
			labels++
			b, err := f.message()
			if err != nil {
				return fieldErr(path, err)
			}
			lbl, err := decodeLabel(b)
			if err != nil {
				return fieldErr(path, err)
			}
			p.Labels = append(p.Labels, lbl)
		}
		return nil
	})

	p.ID = p.ContextName
	if p.ID == "" {
		p.ID = o.fallbackFrameID
	}
	if o.frameID != "" {
		p.ID = o.frameID
	}

	if err != nil {
		de, ok := err.(*DecodeError)
		if !ok {
			de = &DecodeError{Field: "frame", Err: err}
		}
		de.FrameID = p.ID
		return nil, de
	}

	frame, err := NewFrame(p)
	if err != nil {
		return nil, &DecodeError{FrameID: p.ID, Field: "frame", Err: err}
	}
	return frame, nil
}

func decodeContext(b []byte, p *FrameParams) error {
	var cams, lasers int
	return walkFields(b, func(f field) error {
		switch f.Num {
		case contextName:
			s, err := f.str()
			if err != nil {
				return &DecodeError{Field: "context.name", Err: err}
			}
			p.ContextName = s
		case contextCameraCalibrations:
			path := fmt.Sprintf("context.camera_calibrations[%d]", cams)
			cams++
			msg, err := f.message()
			if err != nil {
				return &DecodeError{Field: path, Err: err}
			}
			c, err := decodeCameraCalibration(msg)
			if err != nil {
				return &DecodeError{Field: path, Err: err}
			}
			p.Calibration.Cameras = append(p.Calibration.Cameras, c)
		case contextLaserCalibrations:
			path := fmt.Sprintf("context.laser_calibrations[%d]", lasers)
			lasers++
			msg, err := f.message()
			if err != nil {
				return &DecodeError{Field: path, Err: err}
			}
			c, err := decodeLaserCalibration(msg)
			if err != nil {
				return &DecodeError{Field: path, Err: err}
			}
			p.Calibration.Lasers = append(p.Calibration.Lasers, c)
		}
		return nil
	})
}

func decodeTransform(b []byte) (Transform, error) {
	var vals []float64
	err := walkFields(b, func(f field) error {
		if f.Num != transformValues {
			return nil
		}
		var err error
		vals, err = f.appendDoubles(vals)
		return err
	})
	if err != nil {
		return Transform{}, err
	}
	if len(vals) != 16 {
		return Transform{}, fmt.Errorf("transform has %d values, want 16", len(vals))
	}
	var t Transform
	copy(t[:], vals)
	return t, nil
}

func decodeCameraCalibration(b []byte) (CameraCalibration, error) {
	var c CameraCalibration
	err := walkFields(b, func(f field) error {
		var err error
		switch f.Num {
		case cameraCalibName:
			var v int64
			v, err = f.int()
			c.Name = CameraName(v)
		case cameraCalibIntrinsic:
			c.Intrinsic, err = f.appendDoubles(c.Intrinsic)
		case cameraCalibExtrinsic:
			var msg []byte
			if msg, err = f.message(); err == nil {
				c.Extrinsic, err = decodeTransform(msg)
			}
		case cameraCalibWidth:
			var v int64
			v, err = f.int()
			c.Width = int32(v)
		case cameraCalibHeight:
			var v int64
			v, err = f.int()
			c.Height = int32(v)
		}
		return err
	})
	if err == nil && !c.Name.Valid() {
		err = fmt.Errorf("unknown camera %s", c.Name)
	}
	return c, err
}

func decodeLaserCalibration(b []byte) (LaserCalibration, error) {
	var c LaserCalibration
	err := walkFields(b, func(f field) error {
		var err error
		switch f.Num {
		case laserCalibName:
			var v int64
			v, err = f.int()
			c.Name = LaserName(v)
		case laserCalibBeamInclinations:
			c.BeamInclinations, err = f.appendDoubles(c.BeamInclinations)
		case laserCalibInclinationMin:
			c.BeamInclinationMin, err = f.double()
		case laserCalibInclinationMax:
			c.BeamInclinationMax, err = f.double()
		case laserCalibExtrinsic:
			var msg []byte
			if msg, err = f.message(); err == nil {
				c.Extrinsic, err = decodeTransform(msg)
			}
		}
		return err
	})
	if err == nil && !c.Name.Valid() {
		err = fmt.Errorf("unknown laser %s", c.Name)
	}
	return c, err
}

func decodeCameraImage(b []byte) (CameraImage, error) {
	var img CameraImage
	err := walkFields(b, func(f field) error {
		var err error
		switch f.Num {
		case cameraImageName:
			var v int64
			v, err = f.int()
			img.Name = CameraName(v)
		case cameraImageImage:
			img.Image, err = f.message()
		}
		return err
	})
	if err == nil && !img.Name.Valid() {
		err = fmt.Errorf("unknown camera %s", img.Name)
	}
	return img, err
}

func decodeLaser(b []byte, path string) (Laser, error) {
	var l Laser
	err := walkFields(b, func(f field) error {
		switch f.Num {
		case laserName:
			v, err := f.int()
			if err != nil {
				return &DecodeError{Field: path + ".name", Err: err}
			}
			l.Name = LaserName(v)
		case laserRIReturn1, laserRIReturn2:
			sub := path + ".ri_return1"
			if f.Num == laserRIReturn2 {
				sub = path + ".ri_return2"
			}
			msg, err := f.message()
			if err != nil {
				return &DecodeError{Field: sub, Err: err}
			}
			ri, err := decodeRangeImage(msg)
			if err != nil {
				return &DecodeError{Field: sub, Err: err}
			}
			if f.Num == laserRIReturn1 {
				l.Return1 = ri
			} else {
				l.Return2 = ri
			}
		}
		return nil
	})
	if err == nil && !l.Name.Valid() {
		err = &DecodeError{Field: path + ".name", Err: fmt.Errorf("unknown laser %s", l.Name)}
	}
	return l, err
}

func decodeRangeImage(b []byte) (RangeImage, error) {
	var ri RangeImage
	err := walkFields(b, func(f field) error {
		var err error
		switch f.Num {
		case rangeImageRangeCompressed:
			ri.RangeCompressed, err = f.message()
		case rangeImagePoseCompressed:
			ri.PoseCompressed, err = f.message()
		case rangeImageRange:
			var msg []byte
			if msg, err = f.message(); err == nil {
				var m Matrix
				if m, err = parseMatrix(msg); err == nil {
					ri.Range = &m
				}
			}
		}
		return err
	})
	return ri, err
}

func decodeLabel(b []byte) (Label, error) {
	var lbl Label
	err := walkFields(b, func(f field) error {
		var err error
		switch f.Num {
		case labelBox:
			var msg []byte
			if msg, err = f.message(); err == nil {
				lbl.Box, err = decodeBox(msg)
			}
		case labelType:
			var v int64
			v, err = f.int()
			lbl.Type = LabelType(v)
		case labelID:
			lbl.ID, err = f.str()
		}
		return err
	})
	return lbl, err
}

func decodeBox(b []byte) (Box, error) {
	var box Box
	err := walkFields(b, func(f field) error {
		var err error
		switch f.Num {
		case boxCenterX:
			box.CenterX, err = f.double()
		case boxCenterY:
			box.CenterY, err = f.double()
		case boxCenterZ:
			box.CenterZ, err = f.double()
		case boxWidth:
			box.Width, err = f.double()
		case boxLength:
			box.Length, err = f.double()
		case boxHeight:
			box.Height, err = f.double()
		case boxHeading:
			box.Heading, err = f.double()
		}
		return err
	})
	return box, err
}
