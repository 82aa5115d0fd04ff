// Package options holds the user-visible generation options (A1111-style
// key/value payload) with JSON persistence. The generation path never parses
// the raw map: Snapshot returns a typed view so each request is a plain
// struct read, not a serialize-reparse round trip.
package options

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Option keys read by the generation path. Unrecognized keys are persisted
// and echoed back untouched.
const (
	keyCheckpoint        = "sd_model_checkpoint"
	keyAdditionalModules = "additional_modules"
	keyControlNet        = "controlnet_model"
	keyLivePreviews      = "live_previews_enable"
	keyClipStopAtLayers  = "CLIP_stop_at_last_layers"
	keySDXLClipLSkip     = "sdxl_clip_l_skip"
	keySamplesFormat     = "samples_format"
)

// Snapshot is the typed, immutable view consumed per request.
type Snapshot struct {
	// Checkpoint is the desired primary model name ("" = none selected).
	Checkpoint string
	// AdditionalModules are auxiliary weight paths (VAE, text encoders, ...)
	// whose roles are detected by content, not position.
	AdditionalModules []string
	// ControlNet is the optional secondary model name ("" = none).
	ControlNet string
	// LivePreviewsEnabled gates preview forwarding during generation.
	LivePreviewsEnabled bool
	// ClipSkip as configured (CLIP_stop_at_last_layers).
	ClipSkip int
	// SamplesFormat selects the result encoding ("png" or "jpeg").
	SamplesFormat string
}

// Store is the mutex-guarded options map backed by a JSON file.
type Store struct {
	mu   sync.Mutex
	path string
	data map[string]any
	log  zerolog.Logger
}

// Load opens the options file, falling back to defaults when it is missing
// or empty. A corrupt file is an error; silently dropping user options is
// worse than failing startup.
func Load(path string, log zerolog.Logger) (*Store, error) {
	s := &Store{path: path, data: defaults(), log: log}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if len(b) == 0 {
		return s, nil
	}
	var loaded map[string]any
	if err := json.Unmarshal(b, &loaded); err != nil {
		return nil, fmt.Errorf("parse options file %s: %w", path, err)
	}
	for k, v := range loaded {
		s.data[k] = v
	}
	return s, nil
}

func defaults() map[string]any {
	return map[string]any{
		keyCheckpoint:       "",
		keyLivePreviews:     true,
		keyClipStopAtLayers: float64(1),
		keySDXLClipLSkip:    false,
		keySamplesFormat:    "png",
	}
}

// Snapshot returns the typed view of the current options.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Checkpoint:          stringAt(s.data, keyCheckpoint),
		ControlNet:          stringAt(s.data, keyControlNet),
		AdditionalModules:   stringsAt(s.data, keyAdditionalModules),
		LivePreviewsEnabled: boolAt(s.data, keyLivePreviews),
		ClipSkip:            intAt(s.data, keyClipStopAtLayers),
		SamplesFormat:       stringAt(s.data, keySamplesFormat),
	}
	if snap.SamplesFormat == "" {
		snap.SamplesFormat = "png"
	}
	return snap
}

// All returns a copy of the raw option map for GET /options.
func (s *Store) All() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Set merges updates into the store and persists the result. The merge is
// applied even if the save fails so the running process stays consistent
// with what the client was told; the save error is still returned.
func (s *Store) Set(updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range updates {
		s.data[k] = v
	}
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		s.log.Error().Str("path", s.path).Err(err).Msg("failed to save options")
		return err
	}
	return nil
}

func stringAt(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func boolAt(m map[string]any, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

func intAt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func stringsAt(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		// already-typed slice happens when Set was called in-process
		if typed, ok := m[key].([]string); ok {
			return append([]string(nil), typed...)
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if sv, ok := e.(string); ok {
			out = append(out, sv)
		}
	}
	return out
}
