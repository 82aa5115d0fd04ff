// Package catalog indexes model files on disk by category. It is a read
// cache rebuilt wholesale by directory scans: reads take an RLock, rebuilds
// take the write lock. Nothing here opens model weights except the role
// detection in detect.go.
package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"diffusiond/pkg/types"
)

// validExtensions are the file suffixes considered model weights.
var validExtensions = []string{".sft", ".safetensors", ".pth", ".pt", ".ckpt", ".gguf"}

// Catalog maps category -> scanned models with name lookup.
type Catalog struct {
	mu     sync.RWMutex
	dirs   map[types.Category]string
	models map[types.Category][]types.Model
	log    zerolog.Logger
}

// New builds a catalog over the given category directories. Empty directory
// values are skipped at scan time. Call Refresh before first use.
func New(dirs map[types.Category]string, log zerolog.Logger) *Catalog {
	d := make(map[types.Category]string, len(dirs))
	for k, v := range dirs {
		d[k] = v
	}
	return &Catalog{
		dirs:   d,
		models: make(map[types.Category][]types.Model),
		log:    log,
	}
}

// Dir returns the configured directory for a category ("" when unset).
func (c *Catalog) Dir(cat types.Category) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirs[cat]
}

// Refresh rescans every configured directory.
func (c *Catalog) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for cat, dir := range c.dirs {
		if dir == "" {
			continue
		}
		c.scanLocked(cat, dir)
	}
}

// RefreshCheckpoints rescans only the checkpoint directory.
func (c *Catalog) RefreshCheckpoints() {
	c.refreshOne(types.CategoryCheckpoint)
}

// RefreshVAEAndTextEncoders rescans the vae and text-encoder directories.
func (c *Catalog) RefreshVAEAndTextEncoders() {
	c.refreshOne(types.CategoryVAE)
	c.refreshOne(types.CategoryTextEncoder)
}

func (c *Catalog) refreshOne(cat types.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dir := c.dirs[cat]
	if dir == "" {
		c.log.Warn().Str("category", string(cat)).Msg("no directory set for category")
		return
	}
	c.scanLocked(cat, dir)
}

// scanLocked rebuilds one category. Caller holds the write lock.
func (c *Catalog) scanLocked(cat types.Category, dir string) {
	abs, err := absDir(dir)
	if err != nil {
		c.log.Warn().Str("dir", dir).Err(err).Msg("skipping model directory")
		return
	}
	fi, err := os.Stat(abs)
	if err != nil {
		c.log.Warn().Str("dir", abs).Msg("directory does not exist")
		return
	}
	if !fi.IsDir() {
		c.log.Warn().Str("dir", abs).Msg("path is not a directory")
		return
	}

	var found []types.Model
	walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable subtree: keep what we have
			return nil
		}
		if d.IsDir() || !isValidModelFile(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		found = append(found, types.Model{
			Name:      lookupName(cat, abs, path),
			Path:      path,
			SizeBytes: info.Size(),
			Category:  cat,
		})
		return nil
	})
	if walkErr != nil {
		c.log.Error().Str("dir", abs).Err(walkErr).Msg("scan failed")
		return
	}
	c.models[cat] = found
	c.log.Info().Str("category", string(cat)).Int("count", len(found)).Msg("scanned model directory")
}

// Resolve looks up a model by its lookup name within a category.
func (c *Catalog) Resolve(name string, cat types.Category) (types.Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.models[cat] {
		if m.Name == name {
			return m, true
		}
	}
	return types.Model{}, false
}

// Has reports whether a name exists within a category.
func (c *Catalog) Has(name string, cat types.Category) bool {
	_, ok := c.Resolve(name, cat)
	return ok
}

// ModelsByCategory returns a copy of the scanned entries for one category.
func (c *Catalog) ModelsByCategory(cat types.Category) []types.Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]types.Model(nil), c.models[cat]...)
}

// NamesByCategory returns the lookup names for one category.
func (c *Catalog) NamesByCategory(cat types.Category) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.models[cat]))
	for _, m := range c.models[cat] {
		names = append(names, m.Name)
	}
	return names
}

// Grouped returns every category's names keyed by category string.
func (c *Catalog) Grouped() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]string, len(c.models))
	for cat, list := range c.models {
		names := make([]string, 0, len(list))
		for _, m := range list {
			names = append(names, m.Name)
		}
		out[string(cat)] = names
	}
	return out
}

// lookupName derives the client-facing name for a scanned file.
// Checkpoints keep their directory-relative path with extension; lora,
// controlnet and embeddings use the bare stem; everything else the filename.
func lookupName(cat types.Category, root, path string) string {
	switch cat {
	case types.CategoryCheckpoint:
		if rel, err := filepath.Rel(root, path); err == nil {
			return rel
		}
		return filepath.Base(path)
	case types.CategoryLoRA, types.CategoryControlNet, types.CategoryEmbedding:
		base := filepath.Base(path)
		return strings.TrimSuffix(base, filepath.Ext(base))
	default:
		return filepath.Base(path)
	}
}

func isValidModelFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range validExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// absDir expands a leading '~' and makes the path absolute.
func absDir(dir string) (string, error) {
	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("home dir: %w", err)
		}
		if dir == "~" {
			dir = home
		} else {
			dir = filepath.Join(home, strings.TrimPrefix(dir, "~/"))
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	return abs, nil
}
