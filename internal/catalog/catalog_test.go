package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"diffusiond/pkg/types"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newTestCatalog(dirs map[types.Category]string) *Catalog {
	return New(dirs, zerolog.Nop())
}

func TestScanCheckpointNamesKeepRelativePath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sd-v1-5.safetensors"), []byte("x"))
	writeFile(t, filepath.Join(dir, "sdxl", "base.ckpt"), []byte("x"))
	writeFile(t, filepath.Join(dir, "notes.txt"), []byte("x"))

	c := newTestCatalog(map[types.Category]string{types.CategoryCheckpoint: dir})
	c.Refresh()

	if _, ok := c.Resolve("sd-v1-5.safetensors", types.CategoryCheckpoint); !ok {
		t.Fatalf("top-level checkpoint not resolved")
	}
	nested := filepath.Join("sdxl", "base.ckpt")
	m, ok := c.Resolve(nested, types.CategoryCheckpoint)
	if !ok {
		t.Fatalf("nested checkpoint not resolved by relative path")
	}
	if m.SizeBytes != 1 {
		t.Fatalf("size=%d want 1", m.SizeBytes)
	}
	if c.Has("notes.txt", types.CategoryCheckpoint) {
		t.Fatalf("non-model file indexed")
	}
}

func TestScanLoraNamesUseStem(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "detail-tweaker.safetensors"), []byte("x"))

	c := newTestCatalog(map[types.Category]string{types.CategoryLoRA: dir})
	c.Refresh()

	if !c.Has("detail-tweaker", types.CategoryLoRA) {
		t.Fatalf("lora not resolved by stem: %v", c.NamesByCategory(types.CategoryLoRA))
	}
	if c.Has("detail-tweaker.safetensors", types.CategoryLoRA) {
		t.Fatalf("lora should not be resolvable with extension")
	}
}

func TestRefreshRebuildsWholesale(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.safetensors")
	writeFile(t, p, []byte("x"))

	c := newTestCatalog(map[types.Category]string{types.CategoryVAE: dir})
	c.Refresh()
	if !c.Has("a.safetensors", types.CategoryVAE) {
		t.Fatalf("initial scan missed file")
	}

	if err := os.Remove(p); err != nil {
		t.Fatalf("remove: %v", err)
	}
	writeFile(t, filepath.Join(dir, "b.safetensors"), []byte("x"))
	c.RefreshVAEAndTextEncoders()

	if c.Has("a.safetensors", types.CategoryVAE) {
		t.Fatalf("stale entry survived rescan")
	}
	if !c.Has("b.safetensors", types.CategoryVAE) {
		t.Fatalf("new entry missing after rescan")
	}
}

func TestMissingDirectoryIsNotFatal(t *testing.T) {
	c := newTestCatalog(map[types.Category]string{
		types.CategoryCheckpoint: filepath.Join(t.TempDir(), "does-not-exist"),
	})
	c.Refresh()
	if got := len(c.NamesByCategory(types.CategoryCheckpoint)); got != 0 {
		t.Fatalf("expected empty catalog, got %d entries", got)
	}
}

func TestGrouped(t *testing.T) {
	ckpt := t.TempDir()
	vae := t.TempDir()
	writeFile(t, filepath.Join(ckpt, "m.safetensors"), []byte("x"))
	writeFile(t, filepath.Join(vae, "v.pt"), []byte("x"))

	c := newTestCatalog(map[types.Category]string{
		types.CategoryCheckpoint: ckpt,
		types.CategoryVAE:        vae,
	})
	c.Refresh()

	g := c.Grouped()
	if len(g["checkpoint"]) != 1 || len(g["vae"]) != 1 {
		t.Fatalf("unexpected grouping: %v", g)
	}
}
