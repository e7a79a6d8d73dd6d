package waymo

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"google.golang.org/protobuf/encoding/protowire"
)

// MatrixFloat / MatrixShape field numbers.
const (
	matrixData  protowire.Number = 1
	matrixShape protowire.Number = 2
	shapeDims   protowire.Number = 1
)

// maxMatrixValues bounds the element count of one matrix. It is the number of
// float32 values that fit in the largest record a recording may hold.
const maxMatrixValues = 1 << 28

// maxMatrixBytes bounds an inflated MatrixFloat: packed data plus framing.
const maxMatrixBytes = 4*maxMatrixValues + 1<<10

var errMatrixTooLarge = errors.New("matrix exceeds size limit")

// Matrix is a dense float32 tensor stored row-major.
type Matrix struct {
	Dims []int32
	Data []float32
}

// NewMatrix allocates a zeroed matrix with the given dims.
func NewMatrix(dims ...int32) Matrix {
	n := 1
	for _, d := range dims {
		n *= int(d)
	}
	return Matrix{Dims: append([]int32(nil), dims...), Data: make([]float32, n)}
}

// Validate checks that Data holds exactly the number of values Dims describes.
func (m Matrix) Validate() error {
	if len(m.Dims) == 0 {
		return fmt.Errorf("matrix has no shape")
	}
	n := 1
	for _, d := range m.Dims {
		if d <= 0 {
			return fmt.Errorf("matrix dim %d is not positive", d)
		}
		if n > maxMatrixValues/int(d) {
			return fmt.Errorf("matrix shape %v: %w", m.Dims, errMatrixTooLarge)
		}
		n *= int(d)
	}
	if n != len(m.Data) {
		return fmt.Errorf("matrix shape %v needs %d values, has %d", m.Dims, n, len(m.Data))
	}
	return nil
}

// Height, Width and Channels read a [H, W, C] matrix's shape.
func (m Matrix) Height() int { return m.dim(0) }

func (m Matrix) Width() int { return m.dim(1) }

func (m Matrix) Channels() int { return m.dim(2) }

func (m Matrix) dim(i int) int {
	if i >= len(m.Dims) {
		return 1
	}
	return int(m.Dims[i])
}

// At returns element (row, col, ch) of a [H, W, C] matrix.
func (m Matrix) At(row, col, ch int) float32 {
	return m.Data[(row*m.Width()+col)*m.Channels()+ch]
}

// Set writes element (row, col, ch) of a [H, W, C] matrix.
func (m Matrix) Set(row, col, ch int, v float32) {
	m.Data[(row*m.Width()+col)*m.Channels()+ch] = v
}

func parseMatrix(b []byte) (Matrix, error) {
	var m Matrix
	err := walkFields(b, func(f field) error {
		var err error
		switch f.Num {
		case matrixData:
			m.Data, err = f.appendFloats(m.Data)
		case matrixShape:
			var shape []byte
			if shape, err = f.message(); err != nil {
				return err
			}
			err = walkFields(shape, func(sf field) error {
				if sf.Num != shapeDims {
					return nil
				}
				var err error
				m.Dims, err = sf.appendInts(m.Dims)
				return err
			})
		}
		return err
	})
	if err != nil {
		return Matrix{}, err
	}
	if err := m.Validate(); err != nil {
		return Matrix{}, err
	}
	return m, nil
}

func (m Matrix) marshal() []byte {
	b := appendPackedFloats(nil, matrixData, m.Data)
	return appendMessage(b, matrixShape, appendPackedInts(nil, shapeDims, m.Dims))
}

// DecodeMatrix inflates a zlib-compressed serialized MatrixFloat.
func DecodeMatrix(compressed []byte) (Matrix, error) {
	raw, err := inflate(compressed, maxMatrixBytes)
	if err != nil {
		return Matrix{}, fmt.Errorf("inflate matrix: %w", err)
	}
	m, err := parseMatrix(raw)
	if err != nil {
		return Matrix{}, fmt.Errorf("parse matrix: %w", err)
	}
	return m, nil
}

func inflate(compressed []byte, limit int64) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	raw, err := io.ReadAll(io.LimitReader(zr, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > limit {
		return nil, errMatrixTooLarge
	}
	return raw, nil
}

// EncodeMatrix serializes m as a MatrixFloat and zlib-compresses it.
func EncodeMatrix(m Matrix) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(m.marshal()); err != nil {
		return nil, fmt.Errorf("deflate matrix: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("deflate matrix: %w", err)
	}
	return buf.Bytes(), nil
}
