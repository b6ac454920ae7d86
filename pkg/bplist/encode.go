package bplist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"unicode/utf16"
)

// Encode serializes v into Apple's binary property list format (bplist00).
func Encode(v Value) ([]byte, error) {
	e := &encoder{}
	root := e.flatten(v)

	refSize := byteWidth(uint64(len(e.objects) - 1))
	if refSize == 0 {
		refSize = 1
	}

	var out bytes.Buffer
	out.WriteString("bplist00")

	offsets := make([]uint64, len(e.objects))
	for i, obj := range e.objects {
		offsets[i] = uint64(out.Len())
		byts, err := e.encodeObject(obj, refSize)
		if err != nil {
			return nil, err
		}
		out.Write(byts)
	}

	offsetTableOffset := uint64(out.Len())
	offsetIntSize := byteWidth(offsets[len(offsets)-1])
	if offsetIntSize == 0 {
		offsetIntSize = 1
	}
	for _, off := range offsets {
		out.Write(uintBytes(off, offsetIntSize))
	}

	// trailer: 6 unused bytes, offsetIntSize, objectRefSize, numObjects(8),
	// topObject(8), offsetTableOffset(8).
	var trailer [32]byte
	trailer[6] = offsetIntSize
	trailer[7] = refSize
	binary.BigEndian.PutUint64(trailer[8:16], uint64(len(e.objects)))
	binary.BigEndian.PutUint64(trailer[16:24], uint64(root))
	binary.BigEndian.PutUint64(trailer[24:32], offsetTableOffset)
	out.Write(trailer[:])

	return out.Bytes(), nil
}

type encoder struct {
	objects []Value
}

// flatten walks v in post-order (children before parents) and returns the
// root's object-table index.
func (e *encoder) flatten(v Value) int {
	switch v.Kind {
	case KindArray:
		children := make([]int, len(v.Array))
		for i, c := range v.Array {
			children[i] = e.flatten(c)
		}
		idx := len(e.objects)
		e.objects = append(e.objects, Value{Kind: KindArray, Array: indexedArray(children)})
		return idx

	case KindDict:
		keys := make([]string, 0, len(v.Dict))
		for k := range v.Dict {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		keyIdx := make([]int, len(keys))
		valIdx := make([]int, len(keys))
		for i, k := range keys {
			keyIdx[i] = e.flatten(NewString(k))
			valIdx[i] = e.flatten(v.Dict[k])
		}
		idx := len(e.objects)
		e.objects = append(e.objects, Value{Kind: KindDict, Array: append(indexedArray(keyIdx), indexedArray(valIdx)...)})
		return idx

	default:
		idx := len(e.objects)
		e.objects = append(e.objects, v)
		return idx
	}
}

// indexedArray re-packs a slice of object indices as a KindInt array so it
// can ride inside Value.Array without a dedicated type.
func indexedArray(idx []int) []Value {
	out := make([]Value, len(idx))
	for i, v := range idx {
		out[i] = NewInt(int64(v))
	}
	return out
}

func byteWidth(max uint64) byte {
	switch {
	case max < 1<<8:
		return 1
	case max < 1<<16:
		return 2
	case max < 1<<32:
		return 4
	default:
		return 8
	}
}

func uintBytes(v uint64, width byte) []byte {
	b := make([]byte, width)
	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.BigEndian.PutUint16(b, uint16(v))
	case 4:
		binary.BigEndian.PutUint32(b, uint32(v))
	case 8:
		binary.BigEndian.PutUint64(b, v)
	}
	return b
}

func encodeCount(marker byte, n int) []byte {
	if n < 15 {
		return []byte{marker | byte(n)}
	}
	countObj := encodeIntInline(int64(n))
	return append([]byte{marker | 0x0F}, countObj...)
}

func encodeIntInline(n int64) []byte {
	b := make([]byte, 9)
	b[0] = 0x13
	binary.BigEndian.PutUint64(b[1:], uint64(n))
	return b
}

func (e *encoder) encodeObject(v Value, refSize byte) ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte{0x00}, nil

	case KindBool:
		if v.Bool {
			return []byte{0x09}, nil
		}
		return []byte{0x08}, nil

	case KindInt:
		return encodeIntInline(v.Int), nil

	case KindReal:
		b := make([]byte, 9)
		b[0] = 0x23
		binary.BigEndian.PutUint64(b[1:], math.Float64bits(v.Real))
		return b, nil

	case KindBytes:
		out := encodeCount(0x40, len(v.Bytes))
		return append(out, v.Bytes...), nil

	case KindString:
		if isASCII(v.String) {
			out := encodeCount(0x50, len(v.String))
			return append(out, []byte(v.String)...), nil
		}
		units := utf16.Encode([]rune(v.String))
		out := encodeCount(0x60, len(units))
		for _, u := range units {
			out = append(out, byte(u>>8), byte(u))
		}
		return out, nil

	case KindArray:
		out := encodeCount(0xA0, len(v.Array))
		for _, ref := range v.Array {
			out = append(out, uintBytes(uint64(ref.Int), refSize)...)
		}
		return out, nil

	case KindDict:
		n := len(v.Array) / 2
		out := encodeCount(0xD0, n)
		for _, ref := range v.Array {
			out = append(out, uintBytes(uint64(ref.Int), refSize)...)
		}
		return out, nil
	}

	return nil, fmt.Errorf("bplist: unknown kind %d", v.Kind)
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}
