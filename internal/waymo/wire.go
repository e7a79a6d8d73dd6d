package waymo

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// field is one decoded protobuf field. Scalar holds varint and fixed values;
// Bytes holds length-delimited payloads.
type field struct {
	Num    protowire.Number
	Type   protowire.Type
	Scalar uint64
	Bytes  []byte
}

// walkFields calls fn for every top-level field in b. Groups and unknown wire
// types are skipped.
func walkFields(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			f.Scalar, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.Scalar, n = protowire.ConsumeFixed64(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.Scalar = uint64(v)
		case protowire.BytesType:
			f.Bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (f field) wrongType(want protowire.Type) error {
	return fmt.Errorf("field %d: wire type %d, want %d", f.Num, f.Type, want)
}

func (f field) message() ([]byte, error) {
	if f.Type != protowire.BytesType {
		return nil, f.wrongType(protowire.BytesType)
	}
	return f.Bytes, nil
}

func (f field) str() (string, error) {
	b, err := f.message()
	return string(b), err
}

func (f field) int() (int64, error) {
	if f.Type != protowire.VarintType {
		return 0, f.wrongType(protowire.VarintType)
	}
	return int64(f.Scalar), nil
}

func (f field) double() (float64, error) {
	if f.Type != protowire.Fixed64Type {
		return 0, f.wrongType(protowire.Fixed64Type)
	}
	return math.Float64frombits(f.Scalar), nil
}

// appendDoubles accepts both packed and unpacked encodings of a repeated double.
func (f field) appendDoubles(dst []float64) ([]float64, error) {
	switch f.Type {
	case protowire.Fixed64Type:
		return append(dst, math.Float64frombits(f.Scalar)), nil
	case protowire.BytesType:
		b := f.Bytes
		if len(b)%8 != 0 {
			return dst, fmt.Errorf("field %d: packed doubles length %d not a multiple of 8", f.Num, len(b))
		}
		for len(b) > 0 {
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return dst, protowire.ParseError(n)
			}
			dst = append(dst, math.Float64frombits(v))
			b = b[n:]
		}
		return dst, nil
	default:
		return dst, f.wrongType(protowire.BytesType)
	}
}

// appendFloats accepts both packed and unpacked encodings of a repeated float.
func (f field) appendFloats(dst []float32) ([]float32, error) {
	switch f.Type {
	case protowire.Fixed32Type:
		return append(dst, math.Float32frombits(uint32(f.Scalar))), nil
	case protowire.BytesType:
		b := f.Bytes
		if len(b)%4 != 0 {
			return dst, fmt.Errorf("field %d: packed floats length %d not a multiple of 4", f.Num, len(b))
		}
		if dst == nil {
			dst = make([]float32, 0, len(b)/4)
		}
		for len(b) > 0 {
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return dst, protowire.ParseError(n)
			}
			dst = append(dst, math.Float32frombits(v))
			b = b[n:]
		}
		return dst, nil
	default:
		return dst, f.wrongType(protowire.BytesType)
	}
}

// appendInts accepts both packed and unpacked encodings of a repeated int32.
func (f field) appendInts(dst []int32) ([]int32, error) {
	switch f.Type {
	case protowire.VarintType:
		return append(dst, int32(f.Scalar)), nil
	case protowire.BytesType:
		b := f.Bytes
		for len(b) > 0 {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return dst, protowire.ParseError(n)
			}
			dst = append(dst, int32(v))
			b = b[n:]
		}
		return dst, nil
	default:
		return dst, f.wrongType(protowire.VarintType)
	}
}

// Encoding helpers. Repeated scalars are always written packed.

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendPackedDoubles(b []byte, num protowire.Number, vs []float64) []byte {
	if len(vs) == 0 {
		return b
	}
	payload := make([]byte, 0, 8*len(vs))
	for _, v := range vs {
		payload = protowire.AppendFixed64(payload, math.Float64bits(v))
	}
	return appendMessage(b, num, payload)
}

func appendPackedFloats(b []byte, num protowire.Number, vs []float32) []byte {
	if len(vs) == 0 {
		return b
	}
	payload := make([]byte, 0, 4*len(vs))
	for _, v := range vs {
		payload = protowire.AppendFixed32(payload, math.Float32bits(v))
	}
	return appendMessage(b, num, payload)
}

func appendPackedInts(b []byte, num protowire.Number, vs []int32) []byte {
	if len(vs) == 0 {
		return b
	}
	var payload []byte
	for _, v := range vs {
		payload = protowire.AppendVarint(payload, uint64(int64(v)))
	}
	return appendMessage(b, num, payload)
}
