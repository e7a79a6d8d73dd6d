package export

import (
	"bytes"
	"image/color"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"

	"github.com/olala7846/car-data-visualization/internal/rangeimage"
)

// newColoredCloud allocates an x y z rgb cloud with room for n points.
func newColoredCloud(n int) *pc.PointCloud {
	pp := &pc.PointCloud{
		PointCloudHeader: pc.PointCloudHeader{
			Version:   0.7,
			Fields:    []string{"x", "y", "z", "rgb"},
			Size:      []int{4, 4, 4, 4},
			Type:      []string{"F", "F", "F", "U"},
			Count:     []int{1, 1, 1, 1},
			Viewpoint: []float32{0, 0, 0, 1, 0, 0, 0},
			Width:     n,
			Height:    1,
		},
		Points: n,
	}
	pp.Data = make([]byte, n*pp.Stride())
	return pp
}

func packRGB(c color.RGBA) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

func encodePCD(cloud *rangeimage.PointCloud, c color.RGBA) ([]byte, error) {
	pp := newColoredCloud(cloud.Len())
	if cloud.Len() > 0 {
		it, err := pp.Vec3Iterator()
		if err != nil {
			return nil, err
		}
		itRGB, err := pp.Uint32Iterator("rgb")
		if err != nil {
			return nil, err
		}
		rgb := packRGB(c)
		for _, p := range cloud.Points {
			it.SetVec3(mat.Vec3{float32(p.X), float32(p.Y), float32(p.Z)})
			itRGB.SetUint32(rgb)
			it.Incr()
			itRGB.Incr()
		}
	}

	var buf bytes.Buffer
	if err := pc.Marshal(pp, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
