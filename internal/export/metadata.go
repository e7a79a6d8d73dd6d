package export

import (
	"encoding/json"
	"fmt"

	"github.com/olala7846/car-data-visualization/internal/waymo"
)

// Frustum is one camera's calibration in the metadata document.
type Frustum struct {
	Name      string    `json:"name"`
	Intrinsic []float64 `json:"intrinsic"`
	Extrinsic []float64 `json:"extrinsic"`
}

// LabelBox is one 3D label in the metadata document.
type LabelBox struct {
	CenterX float64 `json:"centerX"`
	CenterY float64 `json:"centerY"`
	CenterZ float64 `json:"centerZ"`
	Length  float64 `json:"length"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Heading float64 `json:"heading"`
	Type    string  `json:"type"`
}

// Metadata is the per-frame document consumed by the viewer. The
// "frustrums" spelling is part of the file format.
type Metadata struct {
	Frustums []Frustum  `json:"frustrums"`
	Labels   []LabelBox `json:"labels"`
}

// BuildMetadata collects a frame's camera calibrations and labels. Values are
// copied verbatim.
func BuildMetadata(frame *waymo.Frame) Metadata {
	md := Metadata{
		Frustums: []Frustum{},
		Labels:   []LabelBox{},
	}
	for _, c := range frame.Calibration().Cameras {
		intrinsic := c.Intrinsic
		if intrinsic == nil {
			intrinsic = []float64{}
		}
		md.Frustums = append(md.Frustums, Frustum{
			Name:      c.Name.String(),
			Intrinsic: intrinsic,
			Extrinsic: append([]float64(nil), c.Extrinsic[:]...),
		})
	}
	for _, l := range frame.Labels() {
		md.Labels = append(md.Labels, LabelBox{
			CenterX: l.Box.CenterX,
			CenterY: l.Box.CenterY,
			CenterZ: l.Box.CenterZ,
			Length:  l.Box.Length,
			Width:   l.Box.Width,
			Height:  l.Box.Height,
			Heading: l.Box.Heading,
			Type:    l.Type.String(),
		})
	}
	return md
}

// WriteMetadata writes <frame_id>.data.json for frame.
func (e *Exporter) WriteMetadata(frame *waymo.Frame) (string, error) {
	data, err := json.MarshalIndent(BuildMetadata(frame), "", "  ")
	if err != nil {
		return "", fmt.Errorf("export frame %q: encode metadata: %w", frame.ID(), err)
	}
	return e.write(frame.ID(), "metadata", MetadataName(frame.ID()), data)
}
