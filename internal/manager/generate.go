package manager

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"diffusiond/internal/engine"
	"diffusiond/internal/imaging"
	"diffusiond/internal/tasks"
)

// Generate runs one generation under the exclusive lock, ensuring the
// context matches the current options first. Progress and previews are
// forwarded into the task tracker through a per-call sink; ownership of the
// returned buffers transfers to the caller for encoding.
//
// The calling goroutine blocks for the full load+generate duration; callers
// are per-request handler goroutines, never a latency-sensitive loop.
func (m *Manager) Generate(params engine.GenerateParams, taskID string) ([]*imaging.Raw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLocked(); err != nil {
		return nil, err
	}

	// fresh run: the flag belongs to this generation only
	m.interrupted.Store(false)

	if params.BatchCount <= 0 {
		params.BatchCount = 1
	}
	if params.Steps <= 0 {
		params.Steps = 20
	}
	if params.Seed < 0 {
		params.Seed = time.Now().Unix()
	}
	if params.InitImage != nil && params.MaskImage == nil {
		// edit request without a mask edits everything
		params.MaskImage = imaging.OpaqueMask(params.Width, params.Height)
	}

	snap := m.opts.Snapshot()
	sink := &runSink{
		tasks:       m.tasks,
		taskID:      taskID,
		interrupted: &m.interrupted,
		previews:    snap.LivePreviewsEnabled,
		format:      snap.SamplesFormat,
		log:         m.log,
	}

	m.log.Info().
		Str("task", taskID).
		Int("width", params.Width).Int("height", params.Height).
		Int("steps", params.Steps).Int("batch", params.BatchCount).
		Int64("seed", params.Seed).
		Msg("generation start")

	m.generating.Store(true)
	start := time.Now()
	images, err := m.ctx.Generate(params, engine.Hooks{
		OnStep:    sink.step,
		OnPreview: sink.preview,
	})
	m.generating.Store(false)
	generationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		// the context survives a failed run; only the generation is lost
		if errors.Is(err, engine.ErrInterrupted) {
			generationsMetric.WithLabelValues("interrupted").Inc()
			m.log.Info().Str("task", taskID).Dur("dur", time.Since(start)).Msg("generation interrupted")
			return nil, ErrInterrupted(err)
		}
		generationsMetric.WithLabelValues("error").Inc()
		m.log.Error().Str("task", taskID).Err(err).Msg("generation failed")
		return nil, ErrGeneration(err)
	}

	generationsMetric.WithLabelValues("ok").Inc()
	m.log.Info().Str("task", taskID).Int("images", len(images)).Dur("dur", time.Since(start)).Msg("generation done")
	return images, nil
}

// runSink forwards engine callbacks into the task tracker for the duration
// of a single run. It is created per call and captured by the hooks, so a
// stale task id can never receive updates meant for a different run. The
// hooks fire while the generation lock is held and only ever take the
// tracker's map lock for an O(1) update; they must never call back into the
// Manager.
type runSink struct {
	tasks       *tasks.Tracker
	taskID      string
	interrupted *atomic.Bool
	previews    bool
	format      string
	log         zerolog.Logger
}

// step reports progress and answers whether the run may continue.
func (s *runSink) step(step, totalSteps int) bool {
	if totalSteps > 0 {
		s.tasks.UpdateProgress(s.taskID, float64(step)/float64(totalSteps), "")
	}
	if s.interrupted.Load() || s.tasks.Snapshot(s.taskID).Interrupted {
		return false
	}
	return true
}

// preview encodes an intermediate frame and replaces the task's live
// preview. Encode failures drop the frame; the run is unaffected.
func (s *runSink) preview(step int, frame *imaging.Raw) {
	if !s.previews || frame == nil {
		return
	}
	blob, err := imaging.Encode(frame, s.format)
	if err != nil {
		s.log.Debug().Str("task", s.taskID).Err(err).Msg("preview encode failed")
		return
	}
	snap := s.tasks.Snapshot(s.taskID)
	s.tasks.UpdateProgress(s.taskID, snap.Progress, blob)
}
