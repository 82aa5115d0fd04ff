package imaging

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Resize scales a raw buffer to the target size. With alignTo8 set, the
// target is rounded down to a multiple of 8 (latent-space requirement),
// never below 8. A no-op resize returns the input unchanged.
func Resize(raw *Raw, targetWidth, targetHeight int, alignTo8 bool) (*Raw, error) {
	if err := raw.validate(); err != nil {
		return nil, err
	}
	if targetWidth <= 0 || targetHeight <= 0 {
		return nil, fmt.Errorf("invalid target dimensions %dx%d", targetWidth, targetHeight)
	}
	if alignTo8 {
		targetWidth -= targetWidth % 8
		targetHeight -= targetHeight % 8
		if targetWidth <= 0 {
			targetWidth = 8
		}
		if targetHeight <= 0 {
			targetHeight = 8
		}
	}
	if raw.Width == targetWidth && raw.Height == targetHeight {
		return raw, nil
	}

	src, err := toImage(raw)
	if err != nil {
		return nil, err
	}
	dst := image.NewNRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return fromImage(dst, raw.Channels)
}
