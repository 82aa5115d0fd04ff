package imaging

import (
	"strings"
	"testing"
)

// gradient builds a deterministic RGB test image.
func gradient(w, h int) *Raw {
	r := &Raw{Width: w, Height: h, Channels: 3, Pix: make([]byte, w*h*3)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			r.Pix[i] = byte(x * 255 / w)
			r.Pix[i+1] = byte(y * 255 / h)
			r.Pix[i+2] = 128
		}
	}
	return r
}

func TestEncodeDecodePNG(t *testing.T) {
	src := gradient(16, 8)
	blob, err := Encode(src, "png")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(blob, 3)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Width != 16 || got.Height != 8 || got.Channels != 3 {
		t.Fatalf("shape %dx%dx%d", got.Width, got.Height, got.Channels)
	}
	// PNG is lossless: buffers must match exactly
	for i := range src.Pix {
		if src.Pix[i] != got.Pix[i] {
			t.Fatalf("pixel %d: %d != %d", i, src.Pix[i], got.Pix[i])
		}
	}
}

func TestDecodeStripsDataURIPrefix(t *testing.T) {
	blob, err := Encode(gradient(8, 8), "png")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode("data:image/png;base64,"+blob, 3)
	if err != nil {
		t.Fatalf("decode with data URI: %v", err)
	}
	if got.Width != 8 {
		t.Fatalf("width=%d", got.Width)
	}
}

func TestDecodeForcedChannels(t *testing.T) {
	blob, err := Encode(gradient(8, 8), "png")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	gray, err := Decode(blob, 1)
	if err != nil {
		t.Fatalf("decode gray: %v", err)
	}
	if gray.Channels != 1 || len(gray.Pix) != 64 {
		t.Fatalf("gray shape: %d channels, %d bytes", gray.Channels, len(gray.Pix))
	}
	rgba, err := Decode(blob, 4)
	if err != nil {
		t.Fatalf("decode rgba: %v", err)
	}
	if rgba.Channels != 4 || len(rgba.Pix) != 8*8*4 {
		t.Fatalf("rgba shape: %d channels, %d bytes", rgba.Channels, len(rgba.Pix))
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode("", 3); err == nil {
		t.Fatalf("empty blob accepted")
	}
	if _, err := Decode("!!!not-base64!!!", 3); err == nil {
		t.Fatalf("invalid base64 accepted")
	}
	if _, err := Decode("aGVsbG8gd29ybGQ=", 3); err == nil {
		t.Fatalf("non-image payload accepted")
	}
}

func TestEncodeJPEGRoundTrips(t *testing.T) {
	blob, err := Encode(gradient(16, 16), "jpeg")
	if err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	got, err := Decode(blob, 3)
	if err != nil {
		t.Fatalf("decode jpeg: %v", err)
	}
	if got.Width != 16 || got.Height != 16 {
		t.Fatalf("shape %dx%d", got.Width, got.Height)
	}
}

func TestEncodeRejectsMismatchedBuffer(t *testing.T) {
	bad := &Raw{Width: 4, Height: 4, Channels: 3, Pix: make([]byte, 5)}
	if _, err := Encode(bad, "png"); err == nil || !strings.Contains(err.Error(), "buffer size") {
		t.Fatalf("expected buffer size error, got %v", err)
	}
}

func TestOpaqueMask(t *testing.T) {
	m := OpaqueMask(4, 3)
	if m.Channels != 1 || len(m.Pix) != 12 {
		t.Fatalf("mask shape: %d channels, %d bytes", m.Channels, len(m.Pix))
	}
	for i, b := range m.Pix {
		if b != 0xff {
			t.Fatalf("mask byte %d = %d, want 255", i, b)
		}
	}
}

func TestResizeAlignsToEight(t *testing.T) {
	got, err := Resize(gradient(100, 60), 100, 60, true)
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	if got.Width != 96 || got.Height != 56 {
		t.Fatalf("aligned size %dx%d, want 96x56", got.Width, got.Height)
	}
}

func TestResizeNoOpReturnsInput(t *testing.T) {
	src := gradient(32, 32)
	got, err := Resize(src, 32, 32, true)
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	if got != src {
		t.Fatalf("no-op resize should return the same buffer")
	}
}

func TestResizeTinyTargetClampsToEight(t *testing.T) {
	got, err := Resize(gradient(32, 32), 5, 3, true)
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	if got.Width != 8 || got.Height != 8 {
		t.Fatalf("clamped size %dx%d, want 8x8", got.Width, got.Height)
	}
}

func TestResizeRejectsInvalidTarget(t *testing.T) {
	if _, err := Resize(gradient(8, 8), 0, 10, false); err == nil {
		t.Fatalf("zero width accepted")
	}
}
