// Package imaging converts between the base64 transport encoding used on
// the wire and the raw interleaved pixel buffers the inference engine
// consumes. The engine side is always 8-bit, tightly packed, channels
// interleaved row-major.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
)

// Raw is an engine-side image buffer: len(Pix) == Width*Height*Channels.
type Raw struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

const jpegQuality = 90

// Decode turns a base64 blob (optionally carrying a data-URI prefix) into a
// raw buffer. desiredChannels forces the output layout (1 = grayscale,
// 3 = RGB, 4 = RGBA); 0 keeps 3 channels, the engine's native layout.
func Decode(blob string, desiredChannels int) (*Raw, error) {
	if blob == "" {
		return nil, fmt.Errorf("empty image data")
	}
	if strings.HasPrefix(blob, "data:") {
		if idx := strings.IndexByte(blob, ','); idx >= 0 {
			blob = blob[idx+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if desiredChannels == 0 {
		desiredChannels = 3
	}
	return fromImage(img, desiredChannels)
}

// Encode serializes a raw buffer to base64 in the requested format
// ("png" or "jpeg"). Unknown formats fall back to png.
func Encode(raw *Raw, format string) (string, error) {
	img, err := toImage(raw)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// OpaqueMask builds a fully-opaque (all-255) single-channel mask. Used when
// an edit-style request omits its mask.
func OpaqueMask(width, height int) *Raw {
	pix := make([]byte, width*height)
	for i := range pix {
		pix[i] = 0xff
	}
	return &Raw{Width: width, Height: height, Channels: 1, Pix: pix}
}

func (r *Raw) validate() error {
	if r == nil || r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("invalid image dimensions")
	}
	switch r.Channels {
	case 1, 3, 4:
	default:
		return fmt.Errorf("unsupported channel count %d", r.Channels)
	}
	if len(r.Pix) != r.Width*r.Height*r.Channels {
		return fmt.Errorf("pixel buffer size %d does not match %dx%dx%d",
			len(r.Pix), r.Width, r.Height, r.Channels)
	}
	return nil
}

func toImage(r *Raw) (image.Image, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, r.Width, r.Height)
	switch r.Channels {
	case 1:
		img := image.NewGray(rect)
		copy(img.Pix, r.Pix)
		return img, nil
	case 4:
		img := image.NewNRGBA(rect)
		copy(img.Pix, r.Pix)
		return img, nil
	default: // 3
		img := image.NewNRGBA(rect)
		for i, j := 0, 0; i < len(r.Pix); i, j = i+3, j+4 {
			img.Pix[j] = r.Pix[i]
			img.Pix[j+1] = r.Pix[i+1]
			img.Pix[j+2] = r.Pix[i+2]
			img.Pix[j+3] = 0xff
		}
		return img, nil
	}
}

func fromImage(img image.Image, channels int) (*Raw, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := &Raw{Width: w, Height: h, Channels: channels}
	switch channels {
	case 1:
		out.Pix = make([]byte, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Pix[y*w+x] = color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
			}
		}
	case 3:
		out.Pix = make([]byte, w*h*3)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				i := (y*w + x) * 3
				out.Pix[i] = c.R
				out.Pix[i+1] = c.G
				out.Pix[i+2] = c.B
			}
		}
	case 4:
		out.Pix = make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				i := (y*w + x) * 4
				out.Pix[i] = c.R
				out.Pix[i+1] = c.G
				out.Pix[i+2] = c.B
				out.Pix[i+3] = c.A
			}
		}
	default:
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	return out, nil
}
