// Package association pairs every sensor of a frame with its data and its
// projected point clouds. Pairing is keyed by sensor identity; nothing here
// depends on the order in which sensors appear in a frame.
package association

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/olala7846/car-data-visualization/internal/rangeimage"
	"github.com/olala7846/car-data-visualization/internal/waymo"
)

// LaserEntry is one laser with the clouds projected from its returns. Err is
// set when projection of any return failed; clouds for returns that did
// project are still present.
type LaserEntry struct {
	Laser  waymo.Laser
	Clouds map[waymo.ReturnIndex]*rangeimage.PointCloud
	Err    error
}

// Cloud returns the cloud projected for ret, if any.
func (e *LaserEntry) Cloud(ret waymo.ReturnIndex) (*rangeimage.PointCloud, bool) {
	pc, ok := e.Clouds[ret]
	return pc, ok
}

// CameraEntry is one camera image with its calibration, when the frame has
// one for that camera.
type CameraEntry struct {
	Image       waymo.CameraImage
	Calibration *waymo.CameraCalibration
}

// SensorSet is the keyed association for one frame.
type SensorSet struct {
	FrameID string
	lasers  map[waymo.LaserName]*LaserEntry
	cameras map[waymo.CameraName]*CameraEntry
}

// Projector is the subset of rangeimage.Projector the association needs.
type Projector interface {
	Project(frame *waymo.Frame, laser waymo.Laser, ret waymo.ReturnIndex) (*rangeimage.PointCloud, error)
}

// Associate projects every return of every laser in frame and keys the
// results, along with the camera images, by sensor name.
func Associate(frame *waymo.Frame, proj Projector) *SensorSet {
	set := &SensorSet{
		FrameID: frame.ID(),
		lasers:  make(map[waymo.LaserName]*LaserEntry),
		cameras: make(map[waymo.CameraName]*CameraEntry),
	}

	for _, l := range frame.Lasers() {
		entry := &LaserEntry{Laser: l, Clouds: make(map[waymo.ReturnIndex]*rangeimage.PointCloud)}
		for _, ret := range waymo.Returns() {
			pc, err := proj.Project(frame, l, ret)
			if err != nil {
				if entry.Err == nil {
					entry.Err = err
				}
				continue
			}
			entry.Clouds[ret] = pc
		}
		set.lasers[l.Name] = entry
	}

	calibrations := make(map[waymo.CameraName]waymo.CameraCalibration)
	for _, c := range frame.Calibration().Cameras {
		calibrations[c.Name] = c
	}
	for _, img := range frame.Cameras() {
		entry := &CameraEntry{Image: img}
		if c, ok := calibrations[img.Name]; ok {
			entry.Calibration = &c
		}
		set.cameras[img.Name] = entry
	}
	return set
}

// LaserNames returns the associated laser names in ascending order.
func (s *SensorSet) LaserNames() []waymo.LaserName {
	return slices.SortedFunc(maps.Keys(s.lasers), cmp.Compare[waymo.LaserName])
}

// CameraNames returns the associated camera names in ascending order.
func (s *SensorSet) CameraNames() []waymo.CameraName {
	return slices.SortedFunc(maps.Keys(s.cameras), cmp.Compare[waymo.CameraName])
}

// Laser looks up a laser entry by name.
func (s *SensorSet) Laser(name waymo.LaserName) (*LaserEntry, bool) {
	e, ok := s.lasers[name]
	return e, ok
}

// Camera looks up a camera entry by name.
func (s *SensorSet) Camera(name waymo.CameraName) (*CameraEntry, bool) {
	e, ok := s.cameras[name]
	return e, ok
}

// Errors returns the projection failures, one per failing laser, in laser
// order.
func (s *SensorSet) Errors() []error {
	var errs []error
	for _, name := range s.LaserNames() {
		if err := s.lasers[name].Err; err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// PointCount sums the points of every cloud for ret.
func (s *SensorSet) PointCount(ret waymo.ReturnIndex) int {
	n := 0
	for _, e := range s.lasers {
		if pc, ok := e.Clouds[ret]; ok {
			n += pc.Len()
		}
	}
	return n
}

func (s *SensorSet) String() string {
	return fmt.Sprintf("SensorSet{frame=%q lasers=%d cameras=%d}", s.FrameID, len(s.lasers), len(s.cameras))
}
