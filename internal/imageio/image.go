// Package imageio decodes a submitted byte buffer into the pixel
// matrix the forensic detectors share, and produces the capped
// downsampled and grayscale views each detector needs.
//
// Adapted from the processing pipeline used for camera-feed images
// elsewhere in this codebase's lineage: decode once, derive views
// lazily, never mutate the original buffer.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	goimage "image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"sync"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Format tags the decoded container.
type Format string

const (
	FormatJPEG  Format = "JPEG"
	FormatPNG   Format = "PNG"
	FormatMPO   Format = "MPO"
	FormatHEIC  Format = "HEIC"
	FormatWEBP  Format = "WEBP"
	FormatOther Format = "OTHER"
)

// ErrInvalidFormat is the fatal C1 error: the buffer could not be
// decoded by any registered format.
var ErrInvalidFormat = errors.New("imageio: unrecognized or undecodable image format")

// Downsample caps per spec §4.1/§3.
const (
	CapFrequencyFace = 2048
	CapIntrinsic     = 1536
	CapPeriodic      = 512
)

// Image is the decoded, read-only input shared by every detector.
// Downsampled and grayscale views are computed at most once per
// request and cached on the value — never across requests.
type Image struct {
	Raw             []byte
	Format          Format
	Width, Height   int
	rgb             goimage.Image

	mu        sync.Mutex
	grayCache *goimage.Gray
	capCache  map[int]*goimage.RGBA
}

// Load decodes bytes into an Image. MPO containers are decoded as their
// first JPEG frame (stdlib jpeg.Decode already stops at the first
// frame's EOI). HEIC is out of scope for this detector set's internal
// decode path: magic-byte detection tags it as HEIC, but decode is
// attempted as JPEG-adjacent containers only when the tag itself turns
// out to be a mislabeled JPEG/TIFF wrapper.
func Load(raw []byte) (*Image, error) {
	format := detectFormat(raw)

	img, _, err := goimage.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	b := img.Bounds()
	return &Image{
		Raw:      raw,
		Format:   format,
		Width:    b.Dx(),
		Height:   b.Dy(),
		rgb:      img,
		capCache: make(map[int]*goimage.RGBA),
	}, nil
}

func detectFormat(raw []byte) Format {
	switch {
	case len(raw) >= 3 && raw[0] == 0xFF && raw[1] == 0xD8 && raw[2] == 0xFF:
		if isMPO(raw) {
			return FormatMPO
		}
		return FormatJPEG
	case len(raw) >= 8 && bytes.Equal(raw[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return FormatPNG
	case len(raw) >= 12 && bytes.Equal(raw[0:4], []byte("RIFF")) && bytes.Equal(raw[8:12], []byte("WEBP")):
		return FormatWEBP
	case len(raw) >= 12 && bytes.Equal(raw[4:8], []byte("ftyp")) &&
		(bytes.Contains(raw[8:12], []byte("heic")) || bytes.Contains(raw[8:12], []byte("heix")) || bytes.Contains(raw[8:12], []byte("mif1"))):
		return FormatHEIC
	default:
		return FormatOther
	}
}

// isMPO looks for a second SOI marker (0xFFD8) after the first image's
// EOI (0xFFD9) — multi-picture JPEGs used by dual-camera phones.
func isMPO(raw []byte) bool {
	eoi := bytes.Index(raw, []byte{0xFF, 0xD9})
	if eoi < 0 || eoi+4 > len(raw) {
		return false
	}
	rest := raw[eoi+2:]
	return bytes.Contains(rest, []byte{0xFF, 0xD8, 0xFF})
}

// RGBA returns the full-resolution decoded image.
func (im *Image) RGBA() goimage.Image { return im.rgb }

// Capped returns a CatmullRom-resampled view whose longest edge is at
// most maxDim, memoized per cap value for the lifetime of the request.
// Images already at or under the cap are returned unresampled.
func (im *Image) Capped(maxDim int) *goimage.RGBA {
	im.mu.Lock()
	defer im.mu.Unlock()

	if cached, ok := im.capCache[maxDim]; ok {
		return cached
	}

	longest := im.Width
	if im.Height > longest {
		longest = im.Height
	}

	var out *goimage.RGBA
	if longest <= maxDim {
		out = toRGBA(im.rgb)
	} else {
		scale := float64(maxDim) / float64(longest)
		newW := int(float64(im.Width) * scale)
		newH := int(float64(im.Height) * scale)
		if newW < 1 {
			newW = 1
		}
		if newH < 1 {
			newH = 1
		}
		dst := goimage.NewRGBA(goimage.Rect(0, 0, newW, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), im.rgb, im.rgb.Bounds(), draw.Over, nil)
		out = dst
	}

	im.capCache[maxDim] = out
	return out
}

// Gray returns a grayscale (color.GrayModel luma) view of the full-resolution
// image, computed once and cached.
func (im *Image) Gray() *goimage.Gray {
	im.mu.Lock()
	defer im.mu.Unlock()

	if im.grayCache != nil {
		return im.grayCache
	}

	b := im.rgb.Bounds()
	gray := goimage.NewGray(b)
	draw.Draw(gray, b, im.rgb, b.Min, draw.Src)
	im.grayCache = gray
	return gray
}

func toRGBA(img goimage.Image) *goimage.RGBA {
	if rgba, ok := img.(*goimage.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := goimage.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	return out
}

// ToYCbCrGray converts an RGBA pixel to its luma component without a
// full color-space round trip, used by the noise/gradient checks that
// only need intensity.
func ToYCbCrGray(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	return 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
}

// ReEncodeJPEG encodes img as a JPEG at the given quality. No package
// in this module calls it.
func ReEncodeJPEG(img goimage.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("re-encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
