package catalog

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Role classifies an auxiliary module by the tensors it carries, not by its
// filename. Detection failure yields RoleUnknown and the caller excludes the
// module from the load.
type Role string

const (
	RoleVAE     Role = "vae"
	RoleClipL   Role = "clip_l"
	RoleClipG   Role = "clip_g"
	RoleT5XXL   Role = "t5xxl"
	RoleLLM     Role = "llm"
	RoleUnknown Role = "unknown"
)

// safetensors headers larger than this are treated as corrupt.
const maxSafetensorsHeader = 100_000_000

// DetectFormat sniffs the container format from the file's first 8 bytes.
// Returns "gguf", "safetensors" or "unknown".
func DetectFormat(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return "unknown"
	}
	defer f.Close()

	var header [8]byte
	if _, err := f.Read(header[:]); err != nil {
		return "unknown"
	}
	if string(header[:4]) == "GGUF" {
		return "gguf"
	}
	// safetensors starts with a little-endian uint64 header length
	size := binary.LittleEndian.Uint64(header[:])
	if size > 8 && size < maxSafetensorsHeader {
		return "safetensors"
	}
	return "unknown"
}

// TensorNames extracts the tensor names from a weight file in either
// supported container format.
func TensorNames(path string) ([]string, error) {
	switch DetectFormat(path) {
	case "safetensors":
		return safetensorsTensorNames(path)
	case "gguf":
		return ggufTensorNames(path)
	default:
		return nil, fmt.Errorf("unsupported model format: %s", path)
	}
}

// InspectRole opens the file, reads its tensor names and classifies the
// module. Any read failure maps to RoleUnknown.
func InspectRole(path string) Role {
	names, err := TensorNames(path)
	if err != nil || len(names) == 0 {
		return RoleUnknown
	}
	return roleFromTensorNames(names)
}

func safetensorsTensorNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sizeBuf [8]byte
	if _, err := f.Read(sizeBuf[:]); err != nil {
		return nil, fmt.Errorf("read header size: %w", err)
	}
	size := binary.LittleEndian.Uint64(sizeBuf[:])
	if size == 0 || size > maxSafetensorsHeader {
		return nil, fmt.Errorf("implausible safetensors header size %d", size)
	}
	header := make([]byte, size)
	if _, err := f.Read(header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(header, &entries); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	names := make([]string, 0, len(entries))
	for k := range entries {
		if k == "__metadata__" {
			continue
		}
		names = append(names, k)
	}
	return names, nil
}

// roleFromTensorNames applies tensor-name heuristics:
// T5 carries SelfAttention+DenseReluDense blocks; CLIP text models carry
// text_model/text_projection/position_ids, split L vs G by layer depth; a
// deep attention stack around layer 35 marks an LLM text encoder; anything
// else is assumed to be a VAE.
func roleFromTensorNames(names []string) Role {
	for _, n := range names {
		if strings.Contains(n, "blk.35.attn_k.weight") ||
			strings.Contains(n, "model.layers.35.post_attention_layernorm.weight") {
			return RoleLLM
		}
	}

	var hasTextModel, hasTextProjection, hasPositionIDs bool
	var hasSelfAttention, hasDenseReluDense bool
	maxLayer := -1

	for _, n := range names {
		lower := strings.ToLower(n)
		if strings.Contains(lower, "text_model") || strings.Contains(lower, "transformer.") {
			hasTextModel = true
		}
		if strings.Contains(lower, "text_projection") {
			hasTextProjection = true
		}
		if strings.Contains(lower, "position_ids") {
			hasPositionIDs = true
		}
		if strings.Contains(lower, "selfattention") {
			hasSelfAttention = true
		}
		if strings.Contains(lower, "denserelu") {
			hasDenseReluDense = true
		}
		if strings.Contains(lower, "layer") || strings.Contains(lower, "block") {
			if l := maxNumberIn(lower); l > maxLayer {
				maxLayer = l
			}
		}
	}

	if hasSelfAttention && hasDenseReluDense {
		return RoleT5XXL
	}
	if hasTextModel || hasTextProjection || hasPositionIDs {
		// CLIP-L has 12 transformer layers (max index 11), CLIP-G has 32.
		if maxLayer >= 20 {
			return RoleClipG
		}
		return RoleClipL
	}
	return RoleVAE
}

// maxNumberIn returns the largest decimal run embedded in s, or -1.
func maxNumberIn(s string) int {
	max := -1
	for i := 0; i < len(s); {
		if s[i] < '0' || s[i] > '9' {
			i++
			continue
		}
		n := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			n = n*10 + int(s[i]-'0')
			i++
		}
		if n > max {
			max = n
		}
	}
	return max
}
