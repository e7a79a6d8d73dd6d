package waymo

import "fmt"

// LaserName identifies one of the vehicle's LiDAR units. Values match the
// recording's enumeration and define the canonical laser order.
type LaserName int32

const (
	LaserUnknown   LaserName = 0
	LaserTop       LaserName = 1
	LaserFront     LaserName = 2
	LaserSideLeft  LaserName = 3
	LaserSideRight LaserName = 4
	LaserRear      LaserName = 5
)

var laserNames = map[LaserName]string{
	LaserUnknown:   "UNKNOWN",
	LaserTop:       "TOP",
	LaserFront:     "FRONT",
	LaserSideLeft:  "SIDE_LEFT",
	LaserSideRight: "SIDE_RIGHT",
	LaserRear:      "REAR",
}

// LaserNames lists the named lasers in ascending order.
func LaserNames() []LaserName {
	return []LaserName{LaserTop, LaserFront, LaserSideLeft, LaserSideRight, LaserRear}
}

func (n LaserName) String() string {
	if s, ok := laserNames[n]; ok {
		return s
	}
	return fmt.Sprintf("LaserName(%d)", int32(n))
}

// Valid reports whether n is one of the named lasers.
func (n LaserName) Valid() bool {
	return n >= LaserTop && n <= LaserRear
}

// CameraName identifies one of the vehicle's cameras.
type CameraName int32

const (
	CameraUnknown    CameraName = 0
	CameraFront      CameraName = 1
	CameraFrontLeft  CameraName = 2
	CameraFrontRight CameraName = 3
	CameraSideLeft   CameraName = 4
	CameraSideRight  CameraName = 5
)

var cameraNames = map[CameraName]string{
	CameraUnknown:    "UNKNOWN",
	CameraFront:      "FRONT",
	CameraFrontLeft:  "FRONT_LEFT",
	CameraFrontRight: "FRONT_RIGHT",
	CameraSideLeft:   "SIDE_LEFT",
	CameraSideRight:  "SIDE_RIGHT",
}

// CameraNames lists the named cameras in ascending order.
func CameraNames() []CameraName {
	return []CameraName{CameraFront, CameraFrontLeft, CameraFrontRight, CameraSideLeft, CameraSideRight}
}

func (n CameraName) String() string {
	if s, ok := cameraNames[n]; ok {
		return s
	}
	return fmt.Sprintf("CameraName(%d)", int32(n))
}

// Valid reports whether n is one of the named cameras.
func (n CameraName) Valid() bool {
	return n >= CameraFront && n <= CameraSideRight
}

// LabelType is the object class of a 3D label box.
type LabelType int32

const (
	LabelTypeUnknown    LabelType = 0
	LabelTypeVehicle    LabelType = 1
	LabelTypePedestrian LabelType = 2
	LabelTypeSign       LabelType = 3
	LabelTypeCyclist    LabelType = 4
)

var labelTypeNames = map[LabelType]string{
	LabelTypeUnknown:    "TYPE_UNKNOWN",
	LabelTypeVehicle:    "TYPE_VEHICLE",
	LabelTypePedestrian: "TYPE_PEDESTRIAN",
	LabelTypeSign:       "TYPE_SIGN",
	LabelTypeCyclist:    "TYPE_CYCLIST",
}

func (t LabelType) String() string {
	if s, ok := labelTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("LabelType(%d)", int32(t))
}

// ReturnIndex selects the first or second echo of a laser pulse.
type ReturnIndex int

const (
	ReturnPrimary ReturnIndex = 0
	ReturnSecond  ReturnIndex = 1
)

// Returns lists both return indices.
func Returns() []ReturnIndex {
	return []ReturnIndex{ReturnPrimary, ReturnSecond}
}

func (r ReturnIndex) String() string {
	switch r {
	case ReturnPrimary:
		return "return1"
	case ReturnSecond:
		return "return2"
	default:
		return fmt.Sprintf("ReturnIndex(%d)", int(r))
	}
}

// Valid reports whether r is 0 or 1.
func (r ReturnIndex) Valid() bool {
	return r == ReturnPrimary || r == ReturnSecond
}
