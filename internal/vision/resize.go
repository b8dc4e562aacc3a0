// Package vision holds the image side of frame classification: shrinking
// sampled frames before they are sent to a model, and a local ONNX
// classifier that answers relevance questions without a remote service.
package vision

import (
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"

	"github.com/nfnt/resize"

	"github.com/keagan/factreel/pkg/util"
)

// Downscale writes a copy of the image at path scaled by factor and returns
// the new path with a cleanup func. A factor of 1 or more, or <= 0, returns
// the original path and a no-op cleanup.
func Downscale(path string, factor float64) (string, func(), error) {
	noop := func() {}
	if factor <= 0 || factor >= 1 {
		return path, noop, nil
	}

	img, err := decodeFile(path)
	if err != nil {
		return "", noop, err
	}

	b := img.Bounds()
	w := uint(max(1, int(float64(b.Dx())*factor)))
	h := uint(max(1, int(float64(b.Dy())*factor)))
	small := resize.Resize(w, h, img, resize.Lanczos3)

	out, err := util.TempFile("", "factreel-frame-", ".jpg")
	if err != nil {
		return "", noop, fmt.Errorf("failed to create temp frame: %w", err)
	}
	cleanup := func() { util.CleanupFiles(out.Name()) }

	if err := jpeg.Encode(out, small, &jpeg.Options{Quality: 90}); err != nil {
		out.Close()
		cleanup()
		return "", noop, fmt.Errorf("failed to encode frame: %w", err)
	}
	if err := out.Close(); err != nil {
		cleanup()
		return "", noop, err
	}
	return out.Name(), cleanup, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}
