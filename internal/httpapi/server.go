package httpapi

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"diffusiond/internal/catalog"
	"diffusiond/internal/engine"
	"diffusiond/internal/filters"
	"diffusiond/internal/imaging"
	"diffusiond/internal/manager"
	"diffusiond/internal/options"
	"diffusiond/internal/tasks"
	"diffusiond/pkg/types"
)

// Generator is the slice of the manager the HTTP layer uses. Tests
// substitute fakes.
type Generator interface {
	Generate(params engine.GenerateParams, taskID string) ([]*imaging.Raw, error)
	Interrupt()
	Status() manager.StatusReport
}

// Upscaler is the slice of the filters service the HTTP layer uses.
type Upscaler interface {
	UpscaleBatch(items []filters.Item, modelName string, factor int, format string) ([]string, error)
}

// Deps bundles the collaborators behind the HTTP surface.
type Deps struct {
	Manager Generator
	Filters Upscaler
	Catalog *catalog.Catalog
	Options *options.Store
	Tasks   *tasks.Tracker
}

type server struct {
	deps Deps
}

// NewMux builds the router. Route paths follow the sdapi wire format so
// existing clients work unchanged.
func NewMux(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/internal/ping", s.handlePing)
		r.Post("/internal/progress", s.handleProgress)

		r.Route("/sdapi/v1", func(r chi.Router) {
			r.Get("/options", s.handleGetOptions)
			r.Post("/options", s.handleSetOptions)
			r.Post("/txt2img", s.handleTxt2Img)
			r.Post("/img2img", s.handleImg2Img)
			r.Post("/interrupt", s.handleInterrupt)
			r.Post("/extra-batch-images", s.handleExtraBatchImages)
			r.Post("/refresh-checkpoints", s.handleRefreshCheckpoints)
			r.Post("/refresh-vae-and-text-encoders", s.handleRefreshVAE)
			r.Get("/sd-models", s.handleSDModels)
			r.Post("/controlnet/detect", s.handleControlNetDetect)
		})
	})

	r.Get("/status", s.handleStatus)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.handleReadyz)

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// decodeJSON enforces content type and body size before unmarshalling.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// handlePing godoc
// @Summary Liveness ping
// @Success 200 {string} string "OK"
// @Router /v1/internal/ping [get]
func (s *server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.deps.Manager.Status())
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	// ready once the catalog and options made it through startup; a busy
	// generation slot does not make the process unready
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

// handleGetOptions godoc
// @Summary Current options map
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /v1/sdapi/v1/options [get]
func (s *server) handleGetOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.deps.Options.All())
}

// handleSetOptions godoc
// @Summary Merge and persist options
// @Accept json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} types.ErrorResponse
// @Router /v1/sdapi/v1/options [post]
func (s *server) handleSetOptions(w http.ResponseWriter, r *http.Request) {
	var updates map[string]any
	if !decodeJSON(w, r, &updates) {
		return
	}
	if err := s.deps.Options.Set(updates); err != nil {
		// updates are applied in memory even when persistence fails
		writeJSONError(w, http.StatusInternalServerError, "options applied but not persisted: "+err.Error())
		return
	}
	writeJSON(w, map[string]any{})
}

func (s *server) handleInterrupt(w http.ResponseWriter, r *http.Request) {
	s.deps.Manager.Interrupt()
	writeJSON(w, map[string]any{})
}

func (s *server) handleRefreshCheckpoints(w http.ResponseWriter, r *http.Request) {
	s.deps.Catalog.RefreshCheckpoints()
	writeJSON(w, map[string]any{})
}

func (s *server) handleRefreshVAE(w http.ResponseWriter, r *http.Request) {
	s.deps.Catalog.RefreshVAEAndTextEncoders()
	writeJSON(w, map[string]any{})
}

// handleSDModels godoc
// @Summary List installed checkpoints
// @Produce json
// @Success 200 {array} types.CheckpointInfo
// @Router /v1/sdapi/v1/sd-models [get]
func (s *server) handleSDModels(w http.ResponseWriter, r *http.Request) {
	models := s.deps.Catalog.ModelsByCategory(types.CategoryCheckpoint)
	out := make([]types.CheckpointInfo, 0, len(models))
	for _, m := range models {
		out = append(out, types.CheckpointInfo{
			Title:     m.Name,
			ModelName: strings.TrimSuffix(m.Name, filepath.Ext(m.Name)),
			Filename:  m.Path,
		})
	}
	writeJSON(w, out)
}

func (s *server) handleControlNetDetect(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusNotImplemented, "controlnet detection is not implemented")
}
