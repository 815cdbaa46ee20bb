// Package jpegscan walks JPEG markers directly so DQT (quantization
// table) bytes are available even though the standard image/jpeg
// decoder discards them after use.
package jpegscan

import (
	"bufio"
	"bytes"
	"fmt"
)

const (
	markerSOI = 0xD8
	markerEOI = 0xD9
	markerDQT = 0xDB
	markerSOS = 0xDA
)

// QTable is one 8x8 quantization table in natural (non-zig-zag) row
// order, already de-zig-zagged from the wire encoding.
type QTable struct {
	Precision int // 0 = 1 byte/element, 1 = 2 bytes/element
	Values    [64]int
}

// zigZagOrder is the standard JPEG DQT coefficient scan order.
var zigZagOrder = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// Read extracts every DQT segment from a JPEG byte buffer, in file
// order. Returns an empty (not nil) slice for non-JPEG input or a file
// with no DQT markers, never an error for those cases — only a
// genuinely truncated/corrupt marker stream is an error.
func Read(raw []byte) ([]QTable, error) {
	if len(raw) < 4 || raw[0] != 0xFF || raw[1] != markerSOI {
		return []QTable{}, nil
	}

	r := bufio.NewReader(bytes.NewReader(raw[2:]))
	tables := []QTable{}

	for {
		b, err := r.ReadByte()
		if err != nil {
			break
		}
		if b != 0xFF {
			continue
		}
		marker, err := r.ReadByte()
		if err != nil {
			break
		}
		switch marker {
		case 0x00, 0xFF:
			continue
		case markerSOS, markerEOI:
			return tables, nil
		}

		lenHi, err := r.ReadByte()
		if err != nil {
			return tables, fmt.Errorf("jpegscan: truncated segment length after marker 0x%02X", marker)
		}
		lenLo, err := r.ReadByte()
		if err != nil {
			return tables, fmt.Errorf("jpegscan: truncated segment length after marker 0x%02X", marker)
		}
		segLen := int(lenHi)<<8 | int(lenLo)
		if segLen < 2 {
			return tables, fmt.Errorf("jpegscan: invalid segment length %d at marker 0x%02X", segLen, marker)
		}
		body := make([]byte, segLen-2)
		if _, err := readFull(r, body); err != nil {
			return tables, fmt.Errorf("jpegscan: truncated segment body at marker 0x%02X: %w", marker, err)
		}

		if marker == markerDQT {
			tables = append(tables, parseDQT(body)...)
		}
	}

	return tables, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// parseDQT decodes one DQT segment body, which may contain multiple
// tables packed back to back: each starts with a byte whose high
// nibble is precision (0 or 1) and low nibble is the table selector,
// followed by 64 one- or two-byte coefficients in zig-zag order.
func parseDQT(body []byte) []QTable {
	var tables []QTable
	i := 0
	for i < len(body) {
		precTable := body[i]
		precision := int(precTable >> 4)
		i++

		elemSize := 1
		if precision == 1 {
			elemSize = 2
		}
		need := 64 * elemSize
		if i+need > len(body) {
			break
		}

		var zz [64]int
		for k := 0; k < 64; k++ {
			if elemSize == 1 {
				zz[k] = int(body[i])
				i++
			} else {
				zz[k] = int(body[i])<<8 | int(body[i+1])
				i += 2
			}
		}

		var t QTable
		t.Precision = precision
		for k, pos := range zigZagOrder {
			t.Values[pos] = zz[k]
		}
		tables = append(tables, t)
	}
	return tables
}
