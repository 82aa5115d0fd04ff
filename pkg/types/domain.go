package types

// Category classifies model files discovered on disk.
type Category string

const (
	CategoryCheckpoint   Category = "checkpoint"
	CategoryVAE          Category = "vae"
	CategoryLoRA         Category = "lora"
	CategoryControlNet   Category = "controlnet"
	CategoryTextEncoder  Category = "text_encoder"
	CategoryEmbedding    Category = "embeddings"
	CategoryUpscaler     Category = "upscaler"
	CategoryHypernetwork Category = "hypernetwork"
)

// Model represents a discoverable model file on disk.
type Model struct {
	// Lookup name used by clients. Checkpoints keep their directory-relative
	// path with extension; lora/controlnet/embeddings use the bare stem.
	Name string `json:"name"`
	// Absolute path to the file.
	Path string `json:"path"`
	// File size in bytes at scan time.
	SizeBytes int64 `json:"size_bytes"`
	// Category the file was scanned under.
	Category Category `json:"category"`
}
