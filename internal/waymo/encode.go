package waymo

// Encode serializes f in the recording's Frame wire format. Decode(Encode(f))
// reproduces f, except that the id is re-derived from the context name.
func Encode(f *Frame) []byte {
	var b []byte

	var ctx []byte
	if f.contextName != "" {
		ctx = appendString(ctx, contextName, f.contextName)
	}
	for _, c := range f.calibration.Cameras {
		ctx = appendMessage(ctx, contextCameraCalibrations, encodeCameraCalibration(c))
	}
	for _, c := range f.calibration.Lasers {
		ctx = appendMessage(ctx, contextLaserCalibrations, encodeLaserCalibration(c))
	}
	b = appendMessage(b, frameContext, ctx)

	if f.timestampMicros != 0 {
		b = appendVarint(b, frameTimestampMicros, f.timestampMicros)
	}
	if f.pose != nil {
		b = appendMessage(b, framePose, encodeTransform(*f.pose))
	}
	for _, img := range f.cameras {
		var m []byte
		m = appendVarint(m, cameraImageName, int64(img.Name))
		m = appendMessage(m, cameraImageImage, img.Image)
		b = appendMessage(b, frameImages, m)
	}
	for _, l := range f.lasers {
		b = appendMessage(b, frameLasers, encodeLaser(l))
	}
	for _, lbl := range f.labels {
		b = appendMessage(b, frameLaserLabels, encodeLabel(lbl))
	}
	return b
}

func encodeTransform(t Transform) []byte {
	return appendPackedDoubles(nil, transformValues, t[:])
}

func encodeCameraCalibration(c CameraCalibration) []byte {
	var b []byte
	b = appendVarint(b, cameraCalibName, int64(c.Name))
	b = appendPackedDoubles(b, cameraCalibIntrinsic, c.Intrinsic)
	b = appendMessage(b, cameraCalibExtrinsic, encodeTransform(c.Extrinsic))
	if c.Width != 0 {
		b = appendVarint(b, cameraCalibWidth, int64(c.Width))
	}
	if c.Height != 0 {
		b = appendVarint(b, cameraCalibHeight, int64(c.Height))
	}
	return b
}

func encodeLaserCalibration(c LaserCalibration) []byte {
	var b []byte
	b = appendVarint(b, laserCalibName, int64(c.Name))
	b = appendPackedDoubles(b, laserCalibBeamInclinations, c.BeamInclinations)
	b = appendDouble(b, laserCalibInclinationMin, c.BeamInclinationMin)
	b = appendDouble(b, laserCalibInclinationMax, c.BeamInclinationMax)
	return appendMessage(b, laserCalibExtrinsic, encodeTransform(c.Extrinsic))
}

func encodeLaser(l Laser) []byte {
	var b []byte
	b = appendVarint(b, laserName, int64(l.Name))
	if !l.Return1.Empty() || len(l.Return1.PoseCompressed) > 0 {
		b = appendMessage(b, laserRIReturn1, encodeRangeImage(l.Return1))
	}
	if !l.Return2.Empty() || len(l.Return2.PoseCompressed) > 0 {
		b = appendMessage(b, laserRIReturn2, encodeRangeImage(l.Return2))
	}
	return b
}

func encodeRangeImage(r RangeImage) []byte {
	var b []byte
	if r.Range != nil {
		b = appendMessage(b, rangeImageRange, r.Range.marshal())
	}
	if len(r.RangeCompressed) > 0 {
		b = appendMessage(b, rangeImageRangeCompressed, r.RangeCompressed)
	}
	if len(r.PoseCompressed) > 0 {
		b = appendMessage(b, rangeImagePoseCompressed, r.PoseCompressed)
	}
	return b
}

func encodeLabel(l Label) []byte {
	var box []byte
	box = appendDouble(box, boxCenterX, l.Box.CenterX)
	box = appendDouble(box, boxCenterY, l.Box.CenterY)
	box = appendDouble(box, boxCenterZ, l.Box.CenterZ)
	box = appendDouble(box, boxWidth, l.Box.Width)
	box = appendDouble(box, boxLength, l.Box.Length)
	box = appendDouble(box, boxHeight, l.Box.Height)
	box = appendDouble(box, boxHeading, l.Box.Heading)

	var b []byte
	b = appendMessage(b, labelBox, box)
	b = appendVarint(b, labelType, int64(l.Type))
	if l.ID != "" {
		b = appendString(b, labelID, l.ID)
	}
	return b
}
