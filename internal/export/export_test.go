package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/seqsense/pcgol/pc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/olala7846/car-data-visualization/internal/association"
	"github.com/olala7846/car-data-visualization/internal/fsutil"
	"github.com/olala7846/car-data-visualization/internal/rangeimage"
	"github.com/olala7846/car-data-visualization/internal/testutil"
	"github.com/olala7846/car-data-visualization/internal/waymo"
)

const outDir = "/out"

func newTestExporter(opts Options) (*Exporter, *fsutil.MemoryFileSystem) {
	mem := fsutil.NewMemoryFileSystem()
	opts.OutputDir = outDir
	return New(mem, opts), mem
}

func TestFileNames(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"primary cloud", PointCloudName("f", waymo.LaserTop, waymo.ReturnPrimary, false), "laser_TOP.pcd"},
		{"second cloud", PointCloudName("f", waymo.LaserSideLeft, waymo.ReturnSecond, false), "laser_SIDE_LEFT_return2.pcd"},
		{"per frame cloud", PointCloudName("seg-1", waymo.LaserRear, waymo.ReturnPrimary, true), "seg-1.laser_REAR.pcd"},
		{"image", ImageName("seg-1", waymo.CameraFrontRight), "seg-1.FRONT_RIGHT.png"},
		{"metadata", MetadataName("seg-1"), "seg-1.data.json"},
		{"preview", PreviewName("7"), "7.preview.png"},
		{"report", ReportName("7"), "7.report.html"},
		{"sanitized", ImageName("../a/b", waymo.CameraFront), ".._a_b.FRONT.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestSanitizeFrameID(t *testing.T) {
	assert.Equal(t, "_", SanitizeFrameID(""))
	assert.Equal(t, "_", SanitizeFrameID(".."))
	assert.Equal(t, "a_b_c", SanitizeFrameID(`a/b\c`))
	assert.Equal(t, "segment-123_456", SanitizeFrameID("segment-123_456"))
}

func TestWritePointCloud_PCDRoundTrip(t *testing.T) {
	ex, mem := newTestExporter(Options{Color: color.RGBA{R: 0x12, G: 0x34, B: 0x56, A: 0xff}})
	cloud := &rangeimage.PointCloud{
		FrameID: "f",
		Laser:   waymo.LaserFront,
		Return:  waymo.ReturnPrimary,
		Points: []r3.Vec{
			{X: 1, Y: 2, Z: 3},
			{X: -4.5, Y: 0.25, Z: 10},
		},
	}

	path, err := ex.WritePointCloud("f", cloud)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "laser_FRONT.pcd"), path)

	data, err := mem.ReadFile(path)
	require.NoError(t, err)
	pp, err := pc.Unmarshal(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y", "z", "rgb"}, pp.Fields)
	require.Equal(t, 2, pp.Points)

	it, err := pp.Vec3Iterator()
	require.NoError(t, err)
	itRGB, err := pp.Uint32Iterator("rgb")
	require.NoError(t, err)
	for i, want := range cloud.Points {
		require.True(t, it.IsValid())
		v := it.Vec3()
		assert.InDelta(t, want.X, float64(v[0]), 1e-6, "point %d", i)
		assert.InDelta(t, want.Y, float64(v[1]), 1e-6, "point %d", i)
		assert.InDelta(t, want.Z, float64(v[2]), 1e-6, "point %d", i)
		assert.Equal(t, uint32(0x123456), itRGB.Uint32())
		it.Incr()
		itRGB.Incr()
	}
}

func TestWritePointCloud_Empty(t *testing.T) {
	ex, mem := newTestExporter(Options{})
	cloud := &rangeimage.PointCloud{FrameID: "f", Laser: waymo.LaserRear, Return: waymo.ReturnSecond}

	path, err := ex.WritePointCloud("f", cloud)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "laser_REAR_return2.pcd"), path)

	data, err := mem.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "POINTS 0")
}

func TestWriteImage_Verbatim(t *testing.T) {
	ex, mem := newTestExporter(Options{})
	// bytes that text-mode transcoding would alter
	img := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00, 0xff}

	path, err := ex.WriteImage("seg", waymo.CameraSideLeft, img)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "seg.SIDE_LEFT.png"), path)

	got, err := mem.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, img, got)
}

func TestWriteMetadata_RoundTrip(t *testing.T) {
	frame := testutil.SyntheticFrame(t, "seg-9")
	ex, mem := newTestExporter(Options{})

	path, err := ex.WriteMetadata(frame)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "seg-9.data.json"), path)

	data, err := mem.ReadFile(path)
	require.NoError(t, err)

	var got Metadata
	require.NoError(t, json.Unmarshal(data, &got))

	cams := frame.Calibration().Cameras
	labels := frame.Labels()
	require.Len(t, got.Frustums, len(cams))
	require.Len(t, got.Labels, len(labels))

	for i, c := range cams {
		want := Frustum{Name: c.Name.String(), Intrinsic: c.Intrinsic, Extrinsic: c.Extrinsic[:]}
		if diff := cmp.Diff(want, got.Frustums[i]); diff != "" {
			t.Errorf("frustum %d mismatch (-want +got):\n%s", i, diff)
		}
	}
	for i, l := range labels {
		want := LabelBox{
			CenterX: l.Box.CenterX, CenterY: l.Box.CenterY, CenterZ: l.Box.CenterZ,
			Length: l.Box.Length, Width: l.Box.Width, Height: l.Box.Height,
			Heading: l.Box.Heading, Type: l.Type.String(),
		}
		if diff := cmp.Diff(want, got.Labels[i]); diff != "" {
			t.Errorf("label %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestWriteMetadata_Schema(t *testing.T) {
	frame := testutil.SyntheticFrame(t, "seg")
	ex, mem := newTestExporter(Options{})
	path, err := ex.WriteMetadata(frame)
	require.NoError(t, err)

	data, err := mem.ReadFile(path)
	require.NoError(t, err)

	var raw map[string][]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Len(t, raw, 2)
	require.Contains(t, raw, "frustrums")
	require.Contains(t, raw, "labels")

	for _, key := range []string{"name", "intrinsic", "extrinsic"} {
		assert.Contains(t, raw["frustrums"][0], key)
	}
	for _, key := range []string{"centerX", "centerY", "centerZ", "length", "width", "height", "heading", "type"} {
		assert.Contains(t, raw["labels"][0], key)
	}
	assert.Equal(t, "TYPE_VEHICLE", raw["labels"][0]["type"])
	assert.Len(t, raw["frustrums"][0]["extrinsic"], 16)
}

func TestWriteMetadata_EmptyFrame(t *testing.T) {
	frame, err := waymo.NewFrame(waymo.FrameParams{ID: "empty"})
	require.NoError(t, err)
	ex, mem := newTestExporter(Options{})

	path, err := ex.WriteMetadata(frame)
	require.NoError(t, err)
	data, err := mem.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"frustrums": [], "labels": []}`, string(data))
}

type failingFS struct {
	*fsutil.MemoryFileSystem
}

func (failingFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	return &fs.PathError{Op: "write", Path: name, Err: fs.ErrPermission}
}

func TestWriteError(t *testing.T) {
	ex := New(failingFS{fsutil.NewMemoryFileSystem()}, Options{OutputDir: outDir})

	_, err := ex.WriteImage("frame-2", waymo.CameraFront, []byte{1})
	var we *WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, "frame-2", we.FrameID)
	assert.Equal(t, "FRONT", we.Sensor)
	assert.True(t, errors.Is(err, fs.ErrPermission))
	assert.Contains(t, err.Error(), `"frame-2"`)
}

func TestExportsReturn(t *testing.T) {
	ex := New(fsutil.NewMemoryFileSystem(), Options{})
	assert.True(t, ex.ExportsReturn(waymo.ReturnPrimary))
	assert.False(t, ex.ExportsReturn(waymo.ReturnSecond))

	both := New(fsutil.NewMemoryFileSystem(), Options{Returns: waymo.Returns()})
	assert.True(t, both.ExportsReturn(waymo.ReturnSecond))
	assert.Equal(t, waymo.Returns(), both.Returns())
}

func TestWritePreviewAndReport(t *testing.T) {
	frame := testutil.SyntheticFrame(t, "seg")
	set := association.Associate(frame, rangeimage.NewProjector(rangeimage.Options{}))
	ex, mem := newTestExporter(Options{PreviewMaxPoints: 50})

	path, err := ex.WritePreview("seg", set)
	require.NoError(t, err)
	png, err := mem.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	path, err = ex.WriteReport("seg", set)
	require.NoError(t, err)
	html, err := mem.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(html), "Points per laser"))
	assert.Contains(t, string(html), "SIDE_RIGHT")
}

func TestLaserColor(t *testing.T) {
	seen := map[color.RGBA]waymo.LaserName{}
	for _, name := range waymo.LaserNames() {
		c := laserColor(name)
		prev, dup := seen[c]
		assert.False(t, dup, "%s shares a colour with %s", name, prev)
		seen[c] = name
	}
	assert.Equal(t, uint8(0x7f), laserColor(waymo.LaserUnknown).R)
}
