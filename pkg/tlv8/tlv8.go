// Package tlv8 implements the length-prefixed TLV8 encoding used to carry
// pair-setup and pair-verify messages, generally wrapped inside a bplist "data"
// value.
package tlv8

import "fmt"

// Item is one type-length-value entry.
type Item struct {
	Type  byte
	Value []byte
}

// Encode serializes items, splitting any value longer than 255 bytes into
// consecutive same-type fragments as required by the TLV8 convention.
func Encode(items []Item) []byte {
	var out []byte
	for _, it := range items {
		v := it.Value
		if len(v) == 0 {
			out = append(out, it.Type, 0)
			continue
		}
		for len(v) > 0 {
			n := len(v)
			if n > 255 {
				n = 255
			}
			out = append(out, it.Type, byte(n))
			out = append(out, v[:n]...)
			v = v[n:]
		}
	}
	return out
}

// Decode parses a TLV8 byte stream, reassembling fragmented values whose
// preceding chunk was exactly 255 bytes and shares the same type.
func Decode(data []byte) ([]Item, error) {
	var out []Item

	for len(data) > 0 {
		if len(data) < 2 {
			return nil, fmt.Errorf("tlv8: truncated entry")
		}
		typ := data[0]
		length := int(data[1])
		data = data[2:]
		if len(data) < length {
			return nil, fmt.Errorf("tlv8: value shorter than declared length")
		}
		value := data[:length]
		data = data[length:]

		if n := len(out); n > 0 && out[n-1].Type == typ && len(out[n-1].Value)%255 == 0 && len(out[n-1].Value) > 0 {
			out[n-1].Value = append(out[n-1].Value, value...)
			continue
		}

		out = append(out, Item{Type: typ, Value: append([]byte(nil), value...)})
	}

	return out, nil
}

// Get returns the first value matching typ.
func Get(items []Item, typ byte) ([]byte, bool) {
	for _, it := range items {
		if it.Type == typ {
			return it.Value, true
		}
	}
	return nil, false
}
