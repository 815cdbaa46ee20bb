// Package exifreader parses EXIF, GPS, and XMP metadata out of a JPEG
// byte buffer into the flat ExifMap the detectors consume. It never
// fails on malformed metadata — missing or unparsable fields simply
// don't appear in the map, per spec's "absence, not failure" rule.
//
// Grounded on the corpus's APP1/EXIF/GPS/XMP walking style: manual
// IFD-entry traversal with a byte-order-aware value extractor, plus
// literal-byte-pattern XMP block extraction.
package exifreader

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/sevrusik/turthsnapbot/internal/exifreader/makernote"
)

// Map is the flat tag-name -> string-value mapping. Case-sensitive,
// unique keys; an ExtendedReader's values override these on conflict.
type Map map[string]string

const (
	app1Marker   = 0xE1
	exifHeader   = "Exif\x00\x00"
	tagMake      = 0x010F
	tagModel     = 0x0110
	tagSoftware  = 0x0131
	tagDateTime  = 0x0132
	tagExifIFD   = 0x8769
	tagGPSIFD    = 0x8825
	tagDTOrig    = 0x9003
	tagFNumber   = 0x829D
	tagISO       = 0x8827
	tagLensModel = 0xA434
	tagMakerNote = 0x927C
	tagSerial    = 0xA431
	tagLensSerial = 0xA435
	tagCopyright = 0x8298
	tagGPSLat    = 0x0002
	tagGPSLatRef = 0x0001
	tagGPSLon    = 0x0004
	tagGPSLonRef = 0x0003
	tagGPSAlt    = 0x0006
)

var tagNames = map[int]string{
	tagMake:       "Make",
	tagModel:      "Model",
	tagSoftware:   "Software",
	tagDateTime:   "DateTime",
	tagDTOrig:     "DateTimeOriginal",
	tagFNumber:    "FNumber",
	tagISO:        "ISOSpeedRatings",
	tagLensModel:  "LensModel",
	tagSerial:     "SerialNumber",
	tagLensSerial: "LensSerialNumber",
	tagCopyright:  "Copyright",
}

// Read parses the EXIF IFD0/ExifIFD/GPSIFD from a JPEG buffer. Absence
// of an APP1/EXIF segment yields an empty, non-nil Map.
func Read(raw []byte) Map {
	out := Map{}

	seg := findAPP1Exif(raw)
	if seg == nil {
		return out
	}

	order, ifd0Offset, ok := tiffHeader(seg)
	if !ok {
		return out
	}

	entries, next := readIFD(seg, order, ifd0Offset)
	applyEntries(out, seg, order, entries, tagNames)

	if exifOff, ok := entries[tagExifIFD]; ok {
		if off, ok := asUint32Offset(seg, order, exifOff); ok {
			subEntries, _ := readIFD(seg, order, int(off))
			applyEntries(out, seg, order, subEntries, tagNames)
			if mn, ok := subEntries[tagMakerNote]; ok {
				applyMakerNote(out, seg, order, mn)
			}
		}
	}

	if gpsOff, ok := entries[tagGPSIFD]; ok {
		if off, ok := asUint32Offset(seg, order, gpsOff); ok {
			gpsEntries, _ := readIFD(seg, order, int(off))
			applyGPS(out, seg, order, gpsEntries)
		}
	}

	_ = next
	return out
}

// ReadXMP extracts the literal <x:xmpmeta>...</x:xmpmeta> block, the
// same byte-pattern search the corpus's XMP readers use instead of a
// full XML parse — XMP payloads embedded in JPEG are self-delimiting
// and callers (MV Layer 6, watermark detectors) only ever need
// substring/regex checks over the block.
func ReadXMP(raw []byte) []byte {
	s := bytes.Index(raw, []byte("<x:xmpmeta"))
	if s < 0 {
		return nil
	}
	endTag := []byte("</x:xmpmeta>")
	e := bytes.Index(raw[s:], endTag)
	if e < 0 {
		return nil
	}
	return raw[s : s+e+len(endTag)]
}

type ifdEntry struct {
	tag    int
	typ    uint16
	count  uint32
	valRaw [4]byte
}

func tiffHeader(seg []byte) (binary.ByteOrder, int, bool) {
	if len(seg) < 8 {
		return nil, 0, false
	}
	var order binary.ByteOrder
	switch {
	case bytes.Equal(seg[0:2], []byte("II")):
		order = binary.LittleEndian
	case bytes.Equal(seg[0:2], []byte("MM")):
		order = binary.BigEndian
	default:
		return nil, 0, false
	}
	ifd0 := order.Uint32(seg[4:8])
	return order, int(ifd0), true
}

func readIFD(seg []byte, order binary.ByteOrder, offset int) (map[int]ifdEntry, int) {
	entries := map[int]ifdEntry{}
	if offset < 0 || offset+2 > len(seg) {
		return entries, 0
	}
	count := int(order.Uint16(seg[offset : offset+2]))
	pos := offset + 2
	for i := 0; i < count; i++ {
		if pos+12 > len(seg) {
			break
		}
		tag := int(order.Uint16(seg[pos : pos+2]))
		typ := order.Uint16(seg[pos+2 : pos+4])
		cnt := order.Uint32(seg[pos+4 : pos+8])
		var val [4]byte
		copy(val[:], seg[pos+8:pos+12])
		entries[tag] = ifdEntry{tag: tag, typ: typ, count: cnt, valRaw: val}
		pos += 12
	}
	next := 0
	if pos+4 <= len(seg) {
		next = int(order.Uint32(seg[pos : pos+4]))
	}
	return entries, next
}

func applyEntries(out Map, seg []byte, order binary.ByteOrder, entries map[int]ifdEntry, names map[int]string) {
	for tag, name := range names {
		e, ok := entries[tag]
		if !ok {
			continue
		}
		if s, ok := stringValue(seg, order, e); ok {
			out[name] = s
		}
	}
}

func applyGPS(out Map, seg []byte, order binary.ByteOrder, entries map[int]ifdEntry) {
	lat, latOK := gpsRational3(seg, order, entries, tagGPSLat)
	lon, lonOK := gpsRational3(seg, order, entries, tagGPSLon)
	if latOK && lonOK {
		latRef := "N"
		lonRef := "E"
		if e, ok := entries[tagGPSLatRef]; ok {
			latRef = string(bytes.Trim(e.valRaw[:1], "\x00"))
		}
		if e, ok := entries[tagGPSLonRef]; ok {
			lonRef = string(bytes.Trim(e.valRaw[:1], "\x00"))
		}
		if latRef == "S" {
			lat = -lat
		}
		if lonRef == "W" {
			lon = -lon
		}
		out["GPSLatitude"] = strconv.FormatFloat(lat, 'f', 6, 64)
		out["GPSLongitude"] = strconv.FormatFloat(lon, 'f', 6, 64)
	}
}

// gpsRational3 decodes a DMS triple (degrees, minutes, seconds) stored
// as three RATIONAL values into decimal degrees. An invalid triple
// (e.g. a zero denominator) yields "no GPS" per spec, signaled by ok=false.
func gpsRational3(seg []byte, order binary.ByteOrder, entries map[int]ifdEntry, tag int) (float64, bool) {
	e, ok := entries[tag]
	if !ok || e.count != 3 {
		return 0, false
	}
	offset := int(order.Uint32(e.valRaw[:]))
	if offset+24 > len(seg) || offset < 0 {
		return 0, false
	}
	deg, ok1 := rational(seg, order, offset)
	min, ok2 := rational(seg, order, offset+8)
	sec, ok3 := rational(seg, order, offset+16)
	if !ok1 || !ok2 || !ok3 {
		return 0, false
	}
	return deg + min/60 + sec/3600, true
}

func rational(seg []byte, order binary.ByteOrder, offset int) (float64, bool) {
	if offset+8 > len(seg) {
		return 0, false
	}
	num := order.Uint32(seg[offset : offset+4])
	den := order.Uint32(seg[offset+4 : offset+8])
	if den == 0 {
		return 0, false
	}
	return float64(num) / float64(den), true
}

func asUint32Offset(seg []byte, order binary.ByteOrder, e ifdEntry) (uint32, bool) {
	return order.Uint32(e.valRaw[:]), true
}

// applyMakerNote surfaces what it can out of the MakerNote entry. Pixel
// phones store the Google HDR+ blob as the literal base64 text of a
// gzip/XOR-obfuscated protobuf payload; everyone else's MakerNote is an
// opaque vendor-specific binary blob this walker doesn't parse. Falling
// back to a byte count keeps the field present either way.
func applyMakerNote(out Map, seg []byte, order binary.ByteOrder, mn ifdEntry) {
	out["MakerNote"] = fmt.Sprintf("%d bytes", mn.count)

	raw, ok := rawBytes(seg, order, mn)
	if !ok {
		return
	}
	data, err := makernote.Decode(string(raw))
	if err != nil {
		return
	}
	out["MakerNote"] = fmt.Sprintf("google hdr+ makernote (%d fields)", len(data.Fields))
	for field, v := range data.Fields {
		out[fmt.Sprintf("GCamera:Field%d", field)] = strconv.FormatInt(v, 10)
	}
}

// rawBytes resolves an IFD entry's underlying bytes, whether stored
// inline (count<=4) or at an offset into seg.
func rawBytes(seg []byte, order binary.ByteOrder, e ifdEntry) ([]byte, bool) {
	n := int(e.count)
	if n <= 4 {
		return e.valRaw[:n], true
	}
	offset := int(order.Uint32(e.valRaw[:]))
	if offset < 0 || offset+n > len(seg) {
		return nil, false
	}
	return seg[offset : offset+n], true
}

// stringValue renders an IFD entry's value as a string for the flat
// ExifMap, handling the ASCII/SHORT/LONG/RATIONAL types the detectors
// actually read.
func stringValue(seg []byte, order binary.ByteOrder, e ifdEntry) (string, bool) {
	switch e.typ {
	case 2: // ASCII
		n := int(e.count)
		if n <= 4 {
			return string(bytes.TrimRight(e.valRaw[:n], "\x00")), true
		}
		offset := int(order.Uint32(e.valRaw[:]))
		if offset < 0 || offset+n > len(seg) {
			return "", false
		}
		return string(bytes.TrimRight(seg[offset:offset+n], "\x00")), true
	case 3: // SHORT
		return strconv.Itoa(int(order.Uint16(e.valRaw[:2]))), true
	case 4: // LONG
		return strconv.Itoa(int(order.Uint32(e.valRaw[:]))), true
	case 5: // RATIONAL
		offset := int(order.Uint32(e.valRaw[:]))
		v, ok := rational(seg, order, offset)
		if !ok {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', 3, 64), true
	default:
		return "", false
	}
}

func findAPP1Exif(raw []byte) []byte {
	if len(raw) < 4 || raw[0] != 0xFF || raw[1] != 0xD8 {
		return nil
	}
	i := 2
	for i+4 <= len(raw) {
		if raw[i] != 0xFF {
			i++
			continue
		}
		marker := raw[i+1]
		if marker == 0xDA || marker == 0xD9 {
			break
		}
		if i+4 > len(raw) {
			break
		}
		segLen := int(raw[i+2])<<8 | int(raw[i+3])
		if segLen < 2 {
			break
		}
		bodyStart := i + 4
		bodyEnd := i + 2 + segLen
		if bodyEnd > len(raw) {
			break
		}
		if marker == app1Marker && bodyEnd-bodyStart >= len(exifHeader) &&
			string(raw[bodyStart:bodyStart+len(exifHeader)]) == exifHeader {
			return raw[bodyStart+len(exifHeader) : bodyEnd]
		}
		i = bodyEnd
	}
	return nil
}

// Merge overlays ext onto base, per spec's "extended values override
// built-in on conflict" rule, returning a new map.
func Merge(base, ext Map) Map {
	out := Map{}
	for k, v := range base {
		out[k] = v
	}
	for k, v := range ext {
		out[k] = v
	}
	return out
}

// ExtendedReader is the optional richer collaborator that can surface
// MakerNote/Composite/XMP-prefixed fields a built-in parser can't.
// Implementations must honor ctx cancellation promptly (spec §5).
type ExtendedReader interface {
	ReadAll(ctx context.Context, raw []byte) (Map, error)
}

// NoopExtendedReader is used whenever no richer collaborator is
// configured; it always returns an empty map without error, matching
// "DetectorUnavailable, not fatal".
type NoopExtendedReader struct{}

func (NoopExtendedReader) ReadAll(ctx context.Context, raw []byte) (Map, error) {
	return Map{}, nil
}
