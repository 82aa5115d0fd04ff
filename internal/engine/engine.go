// Package engine is the binding boundary to the native diffusion runtime.
// The manager owns exactly one Context at a time; everything above this
// package deals in raw imaging buffers and never sees engine internals.
package engine

import (
	"errors"

	"diffusiond/internal/imaging"
)

// ErrUnavailable is returned by the default build, which ships without the
// native runtime linked in.
var ErrUnavailable = errors.New("diffusion runtime not built (missing 'sd' build tag)")

// ErrInterrupted is returned by Generate when a step hook requested a stop.
var ErrInterrupted = errors.New("generation interrupted")

// ContextParams carries everything that determines what gets loaded, plus
// the placement flags applied at load time.
type ContextParams struct {
	ModelPath      string
	VAEPath        string
	ClipLPath      string
	ClipGPath      string
	T5XXLPath      string
	ControlNetPath string
	LoRADir        string
	EmbeddingsDir  string

	Threads         int
	OffloadToCPU    bool
	VAEOnCPU        bool
	ClipOnCPU       bool
	ControlNetOnCPU bool
	FlashAttention  bool
}

// GenerateParams is the per-call input to a loaded context.
type GenerateParams struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Steps          int
	CfgScale       float64
	Seed           int64
	BatchCount     int
	SamplerName    string
	ClipSkip       int

	// Edit-style inputs; nil for txt2img.
	InitImage *imaging.Raw
	MaskImage *imaging.Raw
	Strength  float64
}

// Hooks are the per-call callbacks the runtime fires at step granularity.
// They are passed into Generate and live only for that call; there is no
// process-wide callback registration.
type Hooks struct {
	// OnStep fires once per sampling step. Returning false requests a
	// cooperative stop; the runtime abandons the run at the next checkpoint.
	OnStep func(step, totalSteps int) bool
	// OnPreview delivers an intermediate decode; may be nil.
	OnPreview func(step int, frame *imaging.Raw)
}

// Engine constructs contexts. One implementation exists per build variant.
type Engine interface {
	// NewContext loads the weights named in params. The returned Context is
	// the single resident inference context until Close.
	NewContext(params ContextParams) (Context, error)
}

// Context is one loaded model. Generate blocks the calling goroutine for
// the full run; the manager serializes callers.
type Context interface {
	// Generate produces params.BatchCount images. A run stopped via OnStep
	// returns ErrInterrupted and no images.
	Generate(params GenerateParams, hooks Hooks) ([]*imaging.Raw, error)
	// Close releases the loaded weights. The context is unusable afterwards.
	Close() error
}

// UpscalerEngine constructs upscaler contexts (RealESRGAN-style weights).
type UpscalerEngine interface {
	NewUpscaler(modelPath string) (Upscaler, error)
}

// Upscaler is one loaded upscaler model.
type Upscaler interface {
	Upscale(img *imaging.Raw, factor int) (*imaging.Raw, error)
	Close() error
}
