package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"diffusiond/internal/catalog"
	"diffusiond/internal/engine"
	"diffusiond/internal/filters"
	"diffusiond/internal/imaging"
	"diffusiond/internal/manager"
	"diffusiond/internal/options"
	"diffusiond/internal/tasks"
	"diffusiond/pkg/types"
)

type mockGenerator struct {
	images      []*imaging.Raw
	err         error
	lastParams  engine.GenerateParams
	lastTaskID  string
	interrupted bool
}

func (m *mockGenerator) Generate(params engine.GenerateParams, taskID string) ([]*imaging.Raw, error) {
	m.lastParams = params
	m.lastTaskID = taskID
	if m.err != nil {
		return nil, m.err
	}
	return m.images, nil
}

func (m *mockGenerator) Interrupt()                   { m.interrupted = true }
func (m *mockGenerator) Status() manager.StatusReport { return manager.StatusReport{Loaded: true} }

type mockUpscaler struct {
	out        []string
	err        error
	lastModel  string
	lastFactor int
}

func (m *mockUpscaler) UpscaleBatch(items []filters.Item, modelName string, factor int, format string) ([]string, error) {
	m.lastModel = modelName
	m.lastFactor = factor
	if m.err != nil {
		return nil, m.err
	}
	if m.out != nil {
		return m.out, nil
	}
	out := make([]string, len(items))
	for i := range out {
		out[i] = "upscaled"
	}
	return out, nil
}

type testEnv struct {
	mux     http.Handler
	gen     *mockGenerator
	up      *mockUpscaler
	tracker *tasks.Tracker
	cat     *catalog.Catalog
	opts    *options.Store
	ckptDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ckptDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(ckptDir, "sd-v1-5.safetensors"), []byte("w"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cat := catalog.New(map[types.Category]string{types.CategoryCheckpoint: ckptDir}, zerolog.Nop())
	cat.Refresh()
	opts, err := options.Load(filepath.Join(t.TempDir(), "options.json"), zerolog.Nop())
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	gen := &mockGenerator{images: []*imaging.Raw{testRaw(8, 8)}}
	up := &mockUpscaler{}
	tracker := tasks.NewTracker()
	mux := NewMux(Deps{Manager: gen, Filters: up, Catalog: cat, Options: opts, Tasks: tracker})
	return &testEnv{mux: mux, gen: gen, up: up, tracker: tracker, cat: cat, opts: opts, ckptDir: ckptDir}
}

func testRaw(w, h int) *imaging.Raw {
	return &imaging.Raw{Width: w, Height: h, Channels: 3, Pix: make([]byte, w*h*3)}
}

func postJSON(t *testing.T, mux http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	mux.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/internal/ping", nil))
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestOptionsRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	w := postJSON(t, env.mux, "/v1/sdapi/v1/options", `{"sd_model_checkpoint":"sd-v1-5.safetensors","custom_key":42}`)
	if w.Code != http.StatusOK {
		t.Fatalf("set status=%d body=%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	env.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/sdapi/v1/options", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get status=%d", w.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if got["sd_model_checkpoint"] != "sd-v1-5.safetensors" {
		t.Fatalf("checkpoint not applied: %v", got["sd_model_checkpoint"])
	}
	if got["custom_key"] != 42.0 {
		t.Fatalf("unknown key dropped: %v", got["custom_key"])
	}
}

func TestTxt2Img(t *testing.T) {
	env := newTestEnv(t)
	env.gen.images = []*imaging.Raw{testRaw(8, 8), testRaw(8, 8)}
	w := postJSON(t, env.mux, "/v1/sdapi/v1/txt2img", `{"prompt":"a lake","steps":4,"force_task_id":"task-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp types.GenerateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(resp.Images) != 2 || resp.Images[0] == "" {
		t.Fatalf("images=%d", len(resp.Images))
	}
	if !strings.Contains(resp.Info, `"prompt":"a lake"`) {
		t.Fatalf("info=%s", resp.Info)
	}
	if env.gen.lastTaskID != "task-1" {
		t.Fatalf("force_task_id not honored: %q", env.gen.lastTaskID)
	}
	snap := env.tracker.Snapshot("task-1")
	if !snap.Completed || len(snap.ResultImages) != 2 {
		t.Fatalf("task not completed with results: %+v", snap.Completed)
	}
}

func TestTxt2ImgAssignsTaskID(t *testing.T) {
	env := newTestEnv(t)
	w := postJSON(t, env.mux, "/v1/sdapi/v1/txt2img", `{"prompt":"x"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if env.gen.lastTaskID == "" {
		t.Fatalf("no task id assigned")
	}
	if !env.tracker.Exists(env.gen.lastTaskID) {
		t.Fatalf("assigned task not tracked")
	}
}

func TestTxt2ImgDefaults(t *testing.T) {
	env := newTestEnv(t)
	w := postJSON(t, env.mux, "/v1/sdapi/v1/txt2img", `{"prompt":"x"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	p := env.gen.lastParams
	if p.Width != 512 || p.Height != 512 {
		t.Fatalf("dims %dx%d want 512x512", p.Width, p.Height)
	}
	if p.CfgScale != 7.0 {
		t.Fatalf("cfg=%v", p.CfgScale)
	}
	if p.Seed != -1 {
		t.Fatalf("seed=%d want -1 for omitted seed", p.Seed)
	}
}

func TestTxt2ImgValidation(t *testing.T) {
	env := newTestEnv(t)
	if w := postJSON(t, env.mux, "/v1/sdapi/v1/txt2img", `{"prompt":"  "}`); w.Code != http.StatusBadRequest {
		t.Fatalf("blank prompt: status=%d", w.Code)
	}
	if w := postJSON(t, env.mux, "/v1/sdapi/v1/txt2img", "not-json"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status=%d", w.Code)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/sdapi/v1/txt2img", bytes.NewBufferString(`{"prompt":"x"}`))
	env.mux.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("missing content type: status=%d", w.Code)
	}
}

func TestTxt2ImgErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"config maps 404", manager.ErrConfig("checkpoint not found: x"), http.StatusNotFound},
		{"dependency maps 503", manager.ErrDependencyUnavailable("runtime not built"), http.StatusServiceUnavailable},
		{"generation maps 500", manager.ErrGeneration(errSampler{}), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.gen.err = tc.err
			w := postJSON(t, env.mux, "/v1/sdapi/v1/txt2img", `{"prompt":"x","force_task_id":"t"}`)
			if w.Code != tc.code {
				t.Fatalf("status=%d want %d body=%s", w.Code, tc.code, w.Body.String())
			}
			// task must still reach a terminal state
			if !env.tracker.Snapshot("t").Completed {
				t.Fatalf("task left in-progress after error")
			}
		})
	}
}

type errSampler struct{}

func (errSampler) Error() string { return "sampler exploded" }

func TestTxt2ImgInterruptedReturnsEmptyBatch(t *testing.T) {
	env := newTestEnv(t)
	env.gen.err = manager.ErrInterrupted(engine.ErrInterrupted)
	w := postJSON(t, env.mux, "/v1/sdapi/v1/txt2img", `{"prompt":"x","force_task_id":"t"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("interrupted run must answer 200, got %d", w.Code)
	}
	var resp types.GenerateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(resp.Images) != 0 {
		t.Fatalf("expected empty batch")
	}
	if !strings.Contains(resp.Info, `"interrupted":true`) {
		t.Fatalf("info=%s", resp.Info)
	}
}

func TestImg2Img(t *testing.T) {
	env := newTestEnv(t)
	init, err := imaging.Encode(testRaw(100, 60), "png")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	body, _ := json.Marshal(types.GenerateRequest{Prompt: "x", InitImages: []string{init}})
	w := postJSON(t, env.mux, "/v1/sdapi/v1/img2img", string(body))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	p := env.gen.lastParams
	if p.InitImage == nil {
		t.Fatalf("init image not decoded")
	}
	// target falls back to init size, aligned down to a multiple of 8
	if p.Width != 96 || p.Height != 56 {
		t.Fatalf("dims %dx%d want 96x56", p.Width, p.Height)
	}
	if p.MaskImage != nil {
		t.Fatalf("mask must stay nil at the HTTP layer")
	}
	if p.Strength != 0.75 {
		t.Fatalf("strength=%v", p.Strength)
	}
}

func TestImg2ImgRequiresInitImages(t *testing.T) {
	env := newTestEnv(t)
	if w := postJSON(t, env.mux, "/v1/sdapi/v1/img2img", `{"prompt":"x"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if w := postJSON(t, env.mux, "/v1/sdapi/v1/img2img", `{"prompt":"x","init_images":["garbage!"]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("undecodable init: status=%d", w.Code)
	}
}

func TestProgress(t *testing.T) {
	env := newTestEnv(t)
	env.tracker.Create("t1")
	env.tracker.UpdateProgress("t1", 0.5, "preview-blob")

	w := postJSON(t, env.mux, "/v1/internal/progress", `{"id_task":"t1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var resp types.ProgressResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Progress != 0.5 || resp.LivePreview != "preview-blob" || resp.IDLivePreview != 1 {
		t.Fatalf("resp=%+v", resp)
	}

	// a poller already holding the current revision gets no preview bytes
	w = postJSON(t, env.mux, "/v1/internal/progress", `{"id_task":"t1","id_live_preview":1}`)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.LivePreview != "" {
		t.Fatalf("stale check failed: preview resent")
	}
}

func TestProgressUnknownTask(t *testing.T) {
	env := newTestEnv(t)
	if w := postJSON(t, env.mux, "/v1/internal/progress", `{"id_task":"nope"}`); w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	if w := postJSON(t, env.mux, "/v1/internal/progress", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("empty id: status=%d", w.Code)
	}
}

func TestInterrupt(t *testing.T) {
	env := newTestEnv(t)
	if w := postJSON(t, env.mux, "/v1/sdapi/v1/interrupt", `{}`); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if !env.gen.interrupted {
		t.Fatalf("interrupt not forwarded")
	}
}

func TestExtraBatchImages(t *testing.T) {
	env := newTestEnv(t)
	w := postJSON(t, env.mux, "/v1/sdapi/v1/extra-batch-images",
		`{"imageList":[{"data":"abc","name":"a.png"}],"upscaler_1":"esrgan","upscaling_resize":4}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp types.UpscaleResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(resp.Images) != 1 || resp.Images[0] != "upscaled" {
		t.Fatalf("resp=%+v", resp)
	}
	if env.up.lastModel != "esrgan" || env.up.lastFactor != 4 {
		t.Fatalf("model=%q factor=%d", env.up.lastModel, env.up.lastFactor)
	}
}

func TestExtraBatchImagesErrors(t *testing.T) {
	env := newTestEnv(t)
	if w := postJSON(t, env.mux, "/v1/sdapi/v1/extra-batch-images", `{"imageList":[]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("empty list: status=%d", w.Code)
	}
	env.up.err = filters.ErrNotFound("nope")
	w := postJSON(t, env.mux, "/v1/sdapi/v1/extra-batch-images", `{"imageList":[{"data":"abc"}]}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown upscaler: status=%d", w.Code)
	}
}

func TestSDModels(t *testing.T) {
	env := newTestEnv(t)
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/sdapi/v1/sd-models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var list []types.CheckpointInfo
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(list) != 1 || list[0].Title != "sd-v1-5.safetensors" || list[0].ModelName != "sd-v1-5" {
		t.Fatalf("list=%+v", list)
	}
}

func TestRefreshCheckpoints(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(filepath.Join(env.ckptDir, "new-model.ckpt"), []byte("w"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if w := postJSON(t, env.mux, "/v1/sdapi/v1/refresh-checkpoints", `{}`); w.Code != http.StatusOK {
		t.Fatalf("refresh status=%d", w.Code)
	}
	if !env.cat.Has("new-model.ckpt", types.CategoryCheckpoint) {
		t.Fatalf("new checkpoint not picked up")
	}
}

func TestControlNetDetectNotImplemented(t *testing.T) {
	env := newTestEnv(t)
	if w := postJSON(t, env.mux, "/v1/sdapi/v1/controlnet/detect", `{}`); w.Code != http.StatusNotImplemented {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/status"} {
		w := httptest.NewRecorder()
		env.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, w.Code)
		}
	}
}
