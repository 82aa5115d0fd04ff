package manager

import (
	"errors"
	"time"

	"diffusiond/internal/engine"
)

// EnsureLoaded resolves the current options to a load key and makes the
// matching context resident. Key equality is a cache hit and returns
// immediately; this is the critical performance path, reloading
// multi-gigabyte weights on every request is the failure mode this method
// exists to prevent.
func (m *Manager) EnsureLoaded() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked()
}

// ensureLocked is the reload-on-demand policy. Caller holds mu.
//
// Failure ordering matters here:
//   - resolution/config errors happen before the resident context is
//     touched, so a bad selection never disturbs a working setup;
//   - engine load failures happen after the old context was released (no
//     two contexts may coexist), leaving the manager unloaded with the key
//     cleared. A retry with the previous selection reloads and succeeds.
func (m *Manager) ensureLocked() error {
	snap := m.opts.Snapshot()
	key, params, err := m.resolveKey(snap)
	if err != nil {
		return err
	}

	if m.ctx != nil && key == m.loadedKey {
		return nil
	}

	if m.ctx != nil {
		m.log.Info().Str("checkpoint", m.loadedKey.Checkpoint).Msg("releasing context for reload")
		_ = m.releaseLocked()
	}

	m.log.Info().Str("checkpoint", key.Checkpoint).Msg("loading context")
	start := time.Now()
	ctx, err := m.engine.NewContext(params)
	if err != nil {
		if errors.Is(err, engine.ErrUnavailable) {
			return ErrDependencyUnavailable(err.Error())
		}
		return loadError{err: err}
	}
	m.ctx = ctx
	m.loadedKey = key
	m.loadsTotal.Add(1)
	loadsMetric.Inc()
	loadDuration.Observe(time.Since(start).Seconds())
	m.log.Info().Str("checkpoint", key.Checkpoint).Dur("dur", time.Since(start)).Msg("context loaded")
	return nil
}
