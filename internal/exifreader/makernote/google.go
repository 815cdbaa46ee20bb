// Package makernote decodes the Google HDR+ MakerNote blob some Pixel
// phones embed: base64-encoded, XOR-obfuscated, gzip-compressed
// protobuf. Adapted from the corpus's exif-reader MakerNote handling,
// using protowire directly since the wire schema is undocumented and
// we only need a handful of scalar fields out of it, not a full
// generated message.
package makernote

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// GoogleHDRPlusData holds the top-level varint fields by field number.
// Unknown holds the payload of the first length-delimited field only;
// later length-delimited fields and fixed32/fixed64/group fields are
// discarded.
type GoogleHDRPlusData struct {
	Fields  map[uint32]int64
	Unknown []byte
}

// obfuscationKey is the fixed single-byte XOR key the HDR+ MakerNote
// blob is obscured with before gzip.
const obfuscationKey = 0x55

// Decode parses a base64 MakerNote payload as extracted from an EXIF
// MakerNote tag or XMP GCamera extension block. It never panics on
// malformed input — a decode failure yields a non-nil error (with a nil
// result, or a partial one when the protobuf walk fails midway) and the
// caller treats the MakerNote as absent.
func Decode(b64 string) (*GoogleHDRPlusData, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("makernote: base64 decode: %w", err)
	}

	deobfuscated := make([]byte, len(raw))
	for i, b := range raw {
		deobfuscated[i] = b ^ obfuscationKey
	}

	gz, err := gzip.NewReader(bytes.NewReader(deobfuscated))
	if err != nil {
		return nil, fmt.Errorf("makernote: gzip: %w", err)
	}
	defer gz.Close()

	payload, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("makernote: gzip read: %w", err)
	}

	return parseProtobuf(payload)
}

// parseProtobuf walks the top-level fields with protowire directly,
// discarding unknown wire types rather than failing — the schema is
// reverse-engineered and partial by design.
func parseProtobuf(b []byte) (*GoogleHDRPlusData, error) {
	out := &GoogleHDRPlusData{Fields: map[uint32]int64{}}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return out, fmt.Errorf("makernote: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return out, fmt.Errorf("makernote: %w", protowire.ParseError(n))
			}
			out.Fields[uint32(num)] = int64(v)
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return out, fmt.Errorf("makernote: %w", protowire.ParseError(n))
			}
			if out.Unknown == nil {
				out.Unknown = v
			}
			b = b[n:]
		case protowire.Fixed32Type:
			_, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return out, fmt.Errorf("makernote: %w", protowire.ParseError(n))
			}
			b = b[n:]
		case protowire.Fixed64Type:
			_, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return out, fmt.Errorf("makernote: %w", protowire.ParseError(n))
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return out, fmt.Errorf("makernote: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	return out, nil
}
