// Package filters hosts the post-processing endpoints' image pipelines.
// Currently that is batch upscaling with a RealESRGAN-style model.
package filters

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"diffusiond/internal/catalog"
	"diffusiond/internal/engine"
	"diffusiond/internal/imaging"
	"diffusiond/pkg/types"
)

var upscalesMetric = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "diffusiond_filters_upscales_total",
	Help: "Upscaled images by outcome.",
}, []string{"outcome"})

func init() {
	prometheus.MustRegister(upscalesMetric)
}

// notFoundError covers an upscaler name that resolves to nothing.
type notFoundError struct{ name string }

func (e notFoundError) Error() string { return "upscaler model not found: " + e.name }

// ErrNotFound constructs a notFoundError.
func ErrNotFound(name string) error { return notFoundError{name: name} }

// IsNotFound reports whether err names an unresolvable upscaler model.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// Item is one input image for a batch upscale.
type Item struct {
	Data string
	Name string
}

// Service caches a single loaded upscaler, reused while requests keep naming
// the same model. The policy mirrors the diffusion context: path change
// releases the old upscaler before loading the new one.
type Service struct {
	mu sync.Mutex

	engine  engine.UpscalerEngine
	catalog *catalog.Catalog
	log     zerolog.Logger

	up         engine.Upscaler
	loadedPath string
}

func New(eng engine.UpscalerEngine, cat *catalog.Catalog, log zerolog.Logger) *Service {
	return &Service{engine: eng, catalog: cat, log: log}
}

// UpscaleBatch runs every item through the named upscaler at the given
// factor. Item failures are partial: the failed slot comes back as an empty
// string and the rest of the batch proceeds. Model resolution and load
// failures abort the whole batch.
func (s *Service) UpscaleBatch(items []Item, modelName string, factor int, format string) ([]string, error) {
	if modelName == "" {
		return nil, notFoundError{name: "(empty)"}
	}
	if factor <= 0 {
		factor = 2
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(modelName); err != nil {
		return nil, err
	}

	out := make([]string, len(items))
	for i, item := range items {
		blob, err := s.upscaleOne(item, factor, format)
		if err != nil {
			upscalesMetric.WithLabelValues("error").Inc()
			s.log.Warn().Str("name", item.Name).Err(err).Msg("upscale item failed")
			continue
		}
		upscalesMetric.WithLabelValues("ok").Inc()
		out[i] = blob
	}
	return out, nil
}

func (s *Service) upscaleOne(item Item, factor int, format string) (string, error) {
	raw, err := imaging.Decode(item.Data, 3)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	up, err := s.up.Upscale(raw, factor)
	if err != nil {
		return "", fmt.Errorf("upscale: %w", err)
	}
	blob, err := imaging.Encode(up, format)
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	return blob, nil
}

// ensureLocked makes the named upscaler resident. Caller holds mu.
func (s *Service) ensureLocked(modelName string) error {
	model, ok := s.catalog.Resolve(modelName, types.CategoryUpscaler)
	if !ok {
		return notFoundError{name: modelName}
	}
	if s.up != nil && s.loadedPath == model.Path {
		return nil
	}
	if s.up != nil {
		s.log.Info().Str("path", s.loadedPath).Msg("releasing upscaler for reload")
		_ = s.up.Close()
		s.up = nil
		s.loadedPath = ""
	}
	up, err := s.engine.NewUpscaler(model.Path)
	if err != nil {
		if errors.Is(err, engine.ErrUnavailable) {
			return err
		}
		return fmt.Errorf("load upscaler %s: %w", model.Path, err)
	}
	s.up = up
	s.loadedPath = model.Path
	s.log.Info().Str("path", model.Path).Msg("upscaler loaded")
	return nil
}

// Close releases the resident upscaler, if any.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.up == nil {
		return nil
	}
	err := s.up.Close()
	s.up = nil
	s.loadedPath = ""
	return err
}
