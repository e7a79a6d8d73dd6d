// Package export writes the artifacts derived from a frame: point clouds,
// camera images, calibration/label metadata, and optional preview and report
// files. All output goes through an fsutil.FileSystem.
package export

import (
	"fmt"
	"image/color"
	"path/filepath"
	"slices"
	"strings"

	"github.com/olala7846/car-data-visualization/internal/fsutil"
	"github.com/olala7846/car-data-visualization/internal/rangeimage"
	"github.com/olala7846/car-data-visualization/internal/security"
	"github.com/olala7846/car-data-visualization/internal/waymo"
)

const (
	dirPerm  = 0755
	filePerm = 0644
)

// WriteError reports an artifact that could not be written. It is not
// retried.
type WriteError struct {
	FrameID string
	Sensor  string // laser or camera name; "metadata", "preview" or "report" otherwise
	Path    string
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("export frame %q sensor %s: write %s: %v", e.FrameID, e.Sensor, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Options configures an Exporter.
type Options struct {
	OutputDir string
	// Color is applied to every point of every exported cloud.
	Color color.RGBA
	// PerFramePointClouds prefixes point-cloud files with the frame id so
	// successive frames do not overwrite each other.
	PerFramePointClouds bool
	// Returns lists the return indices whose clouds are written.
	Returns []waymo.ReturnIndex
	// PreviewMaxPoints caps the points drawn in a preview; 0 draws all.
	PreviewMaxPoints int
}

// Exporter writes frame artifacts under one output directory.
type Exporter struct {
	fs   fsutil.FileSystem
	opts Options
}

// New creates an Exporter writing through fs.
func New(fs fsutil.FileSystem, opts Options) *Exporter {
	if len(opts.Returns) == 0 {
		opts.Returns = []waymo.ReturnIndex{waymo.ReturnPrimary}
	}
	opts.Returns = slices.Clone(opts.Returns)
	return &Exporter{fs: fs, opts: opts}
}

// ExportsReturn reports whether clouds for ret are configured for export.
func (e *Exporter) ExportsReturn(ret waymo.ReturnIndex) bool {
	return slices.Contains(e.opts.Returns, ret)
}

// Returns lists the configured return indices.
func (e *Exporter) Returns() []waymo.ReturnIndex {
	return slices.Clone(e.opts.Returns)
}

// SanitizeFrameID maps a frame id to a single safe path component.
func SanitizeFrameID(id string) string {
	s := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, id)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

// PointCloudName is the file name of a laser's cloud for one return.
func PointCloudName(frameID string, laser waymo.LaserName, ret waymo.ReturnIndex, perFrame bool) string {
	name := "laser_" + laser.String()
	if ret == waymo.ReturnSecond {
		name += "_return2"
	}
	name += ".pcd"
	if perFrame {
		name = SanitizeFrameID(frameID) + "." + name
	}
	return name
}

// ImageName is the file name of a camera image.
func ImageName(frameID string, camera waymo.CameraName) string {
	return fmt.Sprintf("%s.%s.png", SanitizeFrameID(frameID), camera)
}

// MetadataName is the file name of a frame's metadata document.
func MetadataName(frameID string) string {
	return SanitizeFrameID(frameID) + ".data.json"
}

// PreviewName is the file name of a frame's top-down preview.
func PreviewName(frameID string) string {
	return SanitizeFrameID(frameID) + ".preview.png"
}

// ReportName is the file name of a frame's point-count report.
func ReportName(frameID string) string {
	return SanitizeFrameID(frameID) + ".report.html"
}

func (e *Exporter) write(frameID, sensor, name string, data []byte) (string, error) {
	path := filepath.Join(e.opts.OutputDir, name)
	if err := security.ValidatePathWithinDirectory(path, e.opts.OutputDir); err != nil {
		return path, &WriteError{FrameID: frameID, Sensor: sensor, Path: path, Err: err}
	}
	if err := e.fs.MkdirAll(e.opts.OutputDir, dirPerm); err != nil {
		return path, &WriteError{FrameID: frameID, Sensor: sensor, Path: path, Err: err}
	}
	if err := e.fs.WriteFile(path, data, filePerm); err != nil {
		return path, &WriteError{FrameID: frameID, Sensor: sensor, Path: path, Err: err}
	}
	return path, nil
}

// WritePointCloud writes cloud as a binary PCD file in the configured colour
// and returns the path written.
func (e *Exporter) WritePointCloud(frameID string, cloud *rangeimage.PointCloud) (string, error) {
	data, err := encodePCD(cloud, e.opts.Color)
	if err != nil {
		return "", fmt.Errorf("export frame %q laser %s: encode point cloud: %w", frameID, cloud.Laser, err)
	}
	name := PointCloudName(frameID, cloud.Laser, cloud.Return, e.opts.PerFramePointClouds)
	return e.write(frameID, cloud.Laser.String(), name, data)
}

// WriteImage writes a camera's encoded image bytes verbatim.
func (e *Exporter) WriteImage(frameID string, camera waymo.CameraName, image []byte) (string, error) {
	return e.write(frameID, camera.String(), ImageName(frameID, camera), image)
}
