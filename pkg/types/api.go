package types

// GenerateRequest is the request payload for txt2img and img2img.
// Field names follow the sdapi wire format so existing clients work unchanged.
type GenerateRequest struct {
	// Prompt text. Required.
	// example: a beautiful landscape with mountains and a lake
	Prompt string `json:"prompt"`
	// Negative prompt text.
	NegativePrompt string `json:"negative_prompt,omitempty"`
	// Output width in pixels.
	// example: 512
	Width int `json:"width,omitempty"`
	// Output height in pixels.
	// example: 512
	Height int `json:"height,omitempty"`
	// Number of sampling steps.
	// example: 20
	Steps int `json:"steps,omitempty"`
	// Classifier-free guidance scale.
	// example: 7.0
	CfgScale float64 `json:"cfg_scale,omitempty"`
	// Random seed; -1 or omitted lets the server choose.
	// example: 42
	Seed int64 `json:"seed,omitempty"`
	// Number of images to produce.
	// example: 1
	BatchSize int `json:"batch_size,omitempty"`
	// Sampler name (e.g. "euler_a").
	SamplerName string `json:"sampler_name,omitempty"`
	// CLIP skip; -1 keeps the model default.
	ClipSkip int `json:"clip_skip,omitempty"`
	// Caller-supplied task id for progress polling. A uuid is assigned when empty.
	ForceTaskID string `json:"force_task_id,omitempty"`

	// img2img only: base64 init images (first entry is used) and optional mask.
	InitImages []string `json:"init_images,omitempty"`
	Mask       string   `json:"mask,omitempty"`
	// img2img denoising strength.
	// example: 0.75
	DenoisingStrength float64 `json:"denoising_strength,omitempty"`
}

// GenerateResponse carries the finished images plus serialized generation info.
type GenerateResponse struct {
	// Base64-encoded images, one per batch item. A failed codec item is an
	// empty string; the batch as a whole still returns.
	Images []string `json:"images"`
	// Serialized generation parameters/info JSON.
	Info string `json:"info"`
}

// ProgressRequest selects the task to poll.
type ProgressRequest struct {
	// Task id previously passed as force_task_id (or returned default).
	IDTask string `json:"id_task"`
	// Preview revision already held by the poller; used to detect staleness.
	IDLivePreview int64 `json:"id_live_preview,omitempty"`
}

// ProgressResponse is the polling snapshot for one task.
type ProgressResponse struct {
	Completed bool `json:"completed"`
	// 0.0–1.0, monotonically non-decreasing while running.
	Progress float64 `json:"progress"`
	// Base64 preview image, replaced wholesale on each update.
	LivePreview string `json:"live_preview"`
	// Incremented every time a new preview is set.
	IDLivePreview int64 `json:"id_live_preview"`
}

// UpscaleRequest is the payload for extra-batch-images.
type UpscaleRequest struct {
	ImageList []UpscaleImage `json:"imageList"`
	// Upscaler model name resolved against the upscaler directory.
	Upscaler1 string `json:"upscaler_1,omitempty"`
	// Integer upscale factor.
	// example: 2
	UpscalingResize int `json:"upscaling_resize,omitempty"`
}

// UpscaleImage is a single input image for batch upscaling.
type UpscaleImage struct {
	Data string `json:"data"`
	Name string `json:"name,omitempty"`
}

// UpscaleResponse mirrors GenerateResponse for the filter endpoints.
type UpscaleResponse struct {
	Images []string `json:"images"`
}

// CheckpointInfo is one entry of GET /v1/sdapi/v1/sd-models.
type CheckpointInfo struct {
	// example: sd-v1-5.safetensors
	Title string `json:"title"`
	// example: sd-v1-5
	ModelName string `json:"model_name"`
	Filename  string `json:"filename"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
