package bplist

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"
)

// Decode parses a bplist00-format byte slice into a Value tree.
func Decode(data []byte) (Value, error) {
	if len(data) < 8+32 || string(data[:8]) != "bplist00" {
		return Value{}, fmt.Errorf("bplist: bad header")
	}

	trailer := data[len(data)-32:]
	offsetIntSize := trailer[6]
	objectRefSize := trailer[7]
	numObjects := binary.BigEndian.Uint64(trailer[8:16])
	topObject := binary.BigEndian.Uint64(trailer[16:24])
	offsetTableOffset := binary.BigEndian.Uint64(trailer[24:32])

	if numObjects == 0 || offsetIntSize == 0 || objectRefSize == 0 {
		return Value{}, fmt.Errorf("bplist: malformed trailer")
	}

	offsets := make([]uint64, numObjects)
	for i := uint64(0); i < numObjects; i++ {
		start := offsetTableOffset + i*uint64(offsetIntSize)
		if start+uint64(offsetIntSize) > uint64(len(data)) {
			return Value{}, fmt.Errorf("bplist: offset table out of range")
		}
		offsets[i] = readUint(data[start:start+uint64(offsetIntSize)], offsetIntSize)
	}

	d := &decoder{data: data, offsets: offsets, refSize: objectRefSize}
	if topObject >= numObjects {
		return Value{}, fmt.Errorf("bplist: top object out of range")
	}
	return d.decodeAt(int(topObject))
}

type decoder struct {
	data    []byte
	offsets []uint64
	refSize byte
}

func readUint(b []byte, width byte) uint64 {
	var v uint64
	for _, by := range b[:width] {
		v = (v << 8) | uint64(by)
	}
	return v
}

func (d *decoder) readRef(b []byte) int {
	return int(readUint(b, d.refSize))
}

func (d *decoder) decodeAt(idx int) (Value, error) {
	if idx < 0 || idx >= len(d.offsets) {
		return Value{}, fmt.Errorf("bplist: object index %d out of range", idx)
	}
	pos := int(d.offsets[idx])
	if pos >= len(d.data) {
		return Value{}, fmt.Errorf("bplist: object offset out of range")
	}

	marker := d.data[pos]
	hi := marker & 0xF0
	lo := marker & 0x0F

	switch {
	case marker == 0x00:
		return Null, nil
	case marker == 0x08:
		return NewBool(false), nil
	case marker == 0x09:
		return NewBool(true), nil

	case hi == 0x10: // int
		width := 1 << lo
		b := d.data[pos+1 : pos+1+width]
		var v int64
		switch width {
		case 1:
			v = int64(int8(b[0]))
		case 2:
			v = int64(int16(binary.BigEndian.Uint16(b)))
		case 4:
			v = int64(int32(binary.BigEndian.Uint32(b)))
		default:
			v = int64(binary.BigEndian.Uint64(b))
		}
		return NewInt(v), nil

	case hi == 0x20: // real
		width := 1 << lo
		b := d.data[pos+1 : pos+1+width]
		if width == 4 {
			return NewReal(float64(math.Float32frombits(binary.BigEndian.Uint32(b)))), nil
		}
		return NewReal(math.Float64frombits(binary.BigEndian.Uint64(b))), nil

	case hi == 0x40: // data
		n, next, err := d.readCount(pos, lo)
		if err != nil {
			return Value{}, err
		}
		return NewBytes(d.data[next : next+n]), nil

	case hi == 0x50: // ascii string
		n, next, err := d.readCount(pos, lo)
		if err != nil {
			return Value{}, err
		}
		return NewString(string(d.data[next : next+n])), nil

	case hi == 0x60: // utf16 string
		n, next, err := d.readCount(pos, lo)
		if err != nil {
			return Value{}, err
		}
		units := make([]uint16, n)
		for i := 0; i < n; i++ {
			units[i] = binary.BigEndian.Uint16(d.data[next+i*2 : next+i*2+2])
		}
		return NewString(string(utf16.Decode(units))), nil

	case hi == 0xA0: // array
		n, next, err := d.readCount(pos, lo)
		if err != nil {
			return Value{}, err
		}
		out := make([]Value, n)
		for i := 0; i < n; i++ {
			ref := d.readRef(d.data[next+i*int(d.refSize):])
			v, err := d.decodeAt(ref)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return NewArray(out...), nil

	case hi == 0xD0: // dict
		n, next, err := d.readCount(pos, lo)
		if err != nil {
			return Value{}, err
		}
		keyRefs := make([]int, n)
		for i := 0; i < n; i++ {
			keyRefs[i] = d.readRef(d.data[next+i*int(d.refSize):])
		}
		valBase := next + n*int(d.refSize)
		valRefs := make([]int, n)
		for i := 0; i < n; i++ {
			valRefs[i] = d.readRef(d.data[valBase+i*int(d.refSize):])
		}

		m := make(map[string]Value, n)
		for i := 0; i < n; i++ {
			k, err := d.decodeAt(keyRefs[i])
			if err != nil {
				return Value{}, err
			}
			if k.Kind != KindString {
				return Value{}, fmt.Errorf("bplist: non-string dict key")
			}
			v, err := d.decodeAt(valRefs[i])
			if err != nil {
				return Value{}, err
			}
			m[k.String] = v
		}
		return NewDict(m), nil
	}

	return Value{}, fmt.Errorf("bplist: unsupported marker 0x%02x", marker)
}

// readCount parses the inline count following a collection/string/data
// marker, returning the count and the offset of the data that follows it.
func (d *decoder) readCount(pos int, lo byte) (int, int, error) {
	if lo != 0x0F {
		return int(lo), pos + 1, nil
	}
	// marker|0xF followed by an int object encoding the real count.
	countMarker := d.data[pos+1]
	if countMarker&0xF0 != 0x10 {
		return 0, 0, fmt.Errorf("bplist: expected int marker for count")
	}
	width := 1 << (countMarker & 0x0F)
	b := d.data[pos+2 : pos+2+width]
	return int(readUint(b, byte(width))), pos + 2 + width, nil
}
