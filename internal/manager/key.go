package manager

import (
	"fmt"

	"diffusiond/internal/catalog"
	"diffusiond/internal/engine"
	"diffusiond/internal/options"
	"diffusiond/pkg/types"
)

// LoadKey is the tuple of every path that affects what is resident. Key
// equality is the sole reload-avoidance criterion: any field difference
// forces a full release-and-reload, partial reloads are not supported.
type LoadKey struct {
	Checkpoint    string
	VAE           string
	ClipL         string
	ClipG         string
	T5XXL         string
	ControlNet    string
	LoRADir       string
	EmbeddingsDir string
}

// IsZero reports whether nothing is loaded.
func (k LoadKey) IsZero() bool { return k == LoadKey{} }

// resolveKey turns the current options snapshot into a load key plus the
// engine parameters for a fresh load. Name-resolution failures for the
// primary checkpoint (and an explicitly selected ControlNet) are loud
// configuration errors; auxiliary modules whose role cannot be detected are
// excluded with a warning so the generation proceeds without them.
func (m *Manager) resolveKey(snap options.Snapshot) (LoadKey, engine.ContextParams, error) {
	var key LoadKey

	if snap.Checkpoint == "" {
		return key, engine.ContextParams{}, ErrConfig("no checkpoint selected (set sd_model_checkpoint)")
	}
	ckpt, ok := m.catalog.Resolve(snap.Checkpoint, types.CategoryCheckpoint)
	if !ok {
		return key, engine.ContextParams{}, ErrConfig(fmt.Sprintf("checkpoint not found: %s", snap.Checkpoint))
	}
	key.Checkpoint = ckpt.Path

	for _, path := range snap.AdditionalModules {
		role := catalog.InspectRole(path)
		switch role {
		case catalog.RoleVAE:
			assignSlot(&key.VAE, path, role, m)
		case catalog.RoleClipL:
			assignSlot(&key.ClipL, path, role, m)
		case catalog.RoleClipG:
			assignSlot(&key.ClipG, path, role, m)
		case catalog.RoleT5XXL, catalog.RoleLLM:
			// LLM-style text encoders occupy the t5 slot
			assignSlot(&key.T5XXL, path, role, m)
		default:
			m.log.Warn().Str("path", path).Msg("could not classify auxiliary module, excluding from load")
		}
	}

	if snap.ControlNet != "" {
		cn, ok := m.catalog.Resolve(snap.ControlNet, types.CategoryControlNet)
		if !ok {
			return LoadKey{}, engine.ContextParams{}, ErrConfig(fmt.Sprintf("controlnet model not found: %s", snap.ControlNet))
		}
		key.ControlNet = cn.Path
	}

	key.LoRADir = m.catalog.Dir(types.CategoryLoRA)
	key.EmbeddingsDir = m.catalog.Dir(types.CategoryEmbedding)

	params := engine.ContextParams{
		ModelPath:       key.Checkpoint,
		VAEPath:         key.VAE,
		ClipLPath:       key.ClipL,
		ClipGPath:       key.ClipG,
		T5XXLPath:       key.T5XXL,
		ControlNetPath:  key.ControlNet,
		LoRADir:         key.LoRADir,
		EmbeddingsDir:   key.EmbeddingsDir,
		Threads:         m.placement.Threads,
		OffloadToCPU:    m.placement.OffloadToCPU,
		VAEOnCPU:        m.placement.VAEOnCPU,
		ClipOnCPU:       m.placement.ClipOnCPU,
		ControlNetOnCPU: m.placement.ControlNetOnCPU,
		FlashAttention:  m.placement.FlashAttention,
	}
	return key, params, nil
}

// assignSlot fills a role slot once; later modules claiming the same role
// are excluded with a warning.
func assignSlot(slot *string, path string, role catalog.Role, m *Manager) {
	if *slot != "" {
		m.log.Warn().Str("path", path).Str("role", string(role)).Msg("role slot already taken, excluding module")
		return
	}
	*slot = path
}
