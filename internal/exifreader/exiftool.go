package exifreader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"
)

// ExifToolReader shells out to the exiftool binary when present on
// PATH, surfacing MakerNote/Composite fields the built-in IFD walker
// in exif.go doesn't decode (Apple runtime tokens, lens serials,
// Composite:RunTimeSincePowerUp). Degrades to a no-op when the binary
// is absent — this is DetectorUnavailable, never fatal.
//
// Adapted from the subprocess-wrapper pattern used elsewhere in this
// codebase's lineage for shelling out to exiftool, including its nice
// priority handling.
type ExifToolReader struct {
	path      string
	timeout   time.Duration
	useNice   bool
	niceLevel int
}

// NewExifToolReader locates exiftool on PATH. A non-nil error means the
// caller should fall back to NoopExtendedReader.
func NewExifToolReader() (*ExifToolReader, error) {
	path, err := exec.LookPath("exiftool")
	if err != nil {
		return nil, fmt.Errorf("exiftool not found in PATH: %w", err)
	}
	return &ExifToolReader{
		path:      path,
		timeout:   10 * time.Second,
		useNice:   runtime.GOOS == "linux",
		niceLevel: 19,
	}, nil
}

func (r *ExifToolReader) SetTimeout(d time.Duration) { r.timeout = d }

func (r *ExifToolReader) command(ctx context.Context, args ...string) *exec.Cmd {
	if r.useNice {
		niceArgs := append([]string{"-n", fmt.Sprintf("%d", r.niceLevel), r.path}, args...)
		return exec.CommandContext(ctx, "nice", niceArgs...)
	}
	return exec.CommandContext(ctx, r.path, args...)
}

// ReadAll writes raw to a temp file and runs `exiftool -j -G -n` on it,
// flattening the result into "Namespace:Tag" -> string-value pairs.
func (r *ExifToolReader) ReadAll(ctx context.Context, raw []byte) (Map, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tmp, err := os.CreateTemp("", "verify-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("creating temp file for exiftool: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(raw); err != nil {
		return nil, fmt.Errorf("writing temp file for exiftool: %w", err)
	}
	tmp.Close()

	cmd := r.command(ctx, "-j", "-G", "-n", tmp.Name())
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("running exiftool: %w", err)
	}

	var records []map[string]any
	if err := json.Unmarshal(out, &records); err != nil {
		return nil, fmt.Errorf("parsing exiftool output: %w", err)
	}
	if len(records) == 0 {
		return Map{}, nil
	}

	out2 := Map{}
	for k, v := range records[0] {
		out2[k] = fmt.Sprintf("%v", v)
	}
	return out2, nil
}
