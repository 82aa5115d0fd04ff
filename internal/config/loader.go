package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr        string `json:"addr" yaml:"addr" toml:"addr"`
	OptionsFile string `json:"options_file" yaml:"options_file" toml:"options_file"`

	// Model directories, one per category. Empty directories are skipped.
	CheckpointDir   string `json:"ckpt_dir" yaml:"ckpt_dir" toml:"ckpt_dir"`
	VAEDir          string `json:"vae_dir" yaml:"vae_dir" toml:"vae_dir"`
	LoRADir         string `json:"lora_dir" yaml:"lora_dir" toml:"lora_dir"`
	ControlNetDir   string `json:"controlnet_dir" yaml:"controlnet_dir" toml:"controlnet_dir"`
	TextEncoderDir  string `json:"text_encoder_dir" yaml:"text_encoder_dir" toml:"text_encoder_dir"`
	EmbeddingsDir   string `json:"embeddings_dir" yaml:"embeddings_dir" toml:"embeddings_dir"`
	UpscalerDir     string `json:"upscaler_dir" yaml:"upscaler_dir" toml:"upscaler_dir"`
	HypernetworkDir string `json:"hypernetwork_dir" yaml:"hypernetwork_dir" toml:"hypernetwork_dir"`

	// Placement flags, fixed at process start; applied at (re)load time only.
	Threads       int  `json:"threads" yaml:"threads" toml:"threads"`
	OffloadToCPU  bool `json:"offload_to_cpu" yaml:"offload_to_cpu" toml:"offload_to_cpu"`
	VAEOnCPU      bool `json:"vae_on_cpu" yaml:"vae_on_cpu" toml:"vae_on_cpu"`
	ClipOnCPU     bool `json:"clip_on_cpu" yaml:"clip_on_cpu" toml:"clip_on_cpu"`
	ControlNetCPU bool `json:"control_net_cpu" yaml:"control_net_cpu" toml:"control_net_cpu"`
	DiffusionFA   bool `json:"diffusion_fa" yaml:"diffusion_fa" toml:"diffusion_fa"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
