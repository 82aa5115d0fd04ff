//go:build !sd

package engine

// This file provides a no-CGO stub for the native runtime. It is compiled
// when the 'sd' build tag is NOT set, keeping default builds and CI
// CGO-free. The cgo-backed variant lives in the 'sd' tagged build, which
// links the native library. The stub refuses to load rather than mock
// generation, so a misconfigured deployment fails loudly.

type nativeEngine struct {
	threads int
}

// NewNative returns the diffusion engine for this build variant.
func NewNative(threads int) Engine {
	return nativeEngine{threads: threads}
}

func (nativeEngine) NewContext(params ContextParams) (Context, error) {
	return nil, ErrUnavailable
}

type nativeUpscaler struct{}

// NewNativeUpscaler returns the upscaler engine for this build variant.
func NewNativeUpscaler() UpscalerEngine {
	return nativeUpscaler{}
}

func (nativeUpscaler) NewUpscaler(modelPath string) (Upscaler, error) {
	return nil, ErrUnavailable
}
