package manager

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"diffusiond/internal/catalog"
	"diffusiond/internal/engine"
	"diffusiond/internal/options"
	"diffusiond/internal/tasks"
)

// Placement carries the device flags fixed at process start. They are
// applied at (re)load time only and never participate in the load key.
type Placement struct {
	Threads         int
	OffloadToCPU    bool
	VAEOnCPU        bool
	ClipOnCPU       bool
	ControlNetOnCPU bool
	FlashAttention  bool
}

// Manager owns the single resident inference context. The generation mutex
// is the hard serialization point of the whole process: it covers load plus
// generate, so at most one run executes and no two contexts ever coexist.
type Manager struct {
	mu sync.Mutex // generation lock; long-held over load+generate

	engine  engine.Engine
	catalog *catalog.Catalog
	opts    *options.Store
	tasks   *tasks.Tracker
	log     zerolog.Logger

	placement Placement

	// guarded by mu
	ctx       engine.Context
	loadedKey LoadKey

	interrupted atomic.Bool
	generating  atomic.Bool

	loadsTotal    atomic.Uint64
	releasesTotal atomic.Uint64
}

// Config bundles the Manager's collaborators.
type Config struct {
	Engine    engine.Engine
	Catalog   *catalog.Catalog
	Options   *options.Store
	Tasks     *tasks.Tracker
	Placement Placement
	Logger    zerolog.Logger
}

func New(cfg Config) *Manager {
	return &Manager{
		engine:    cfg.Engine,
		catalog:   cfg.Catalog,
		opts:      cfg.Options,
		tasks:     cfg.Tasks,
		placement: cfg.Placement,
		log:       cfg.Logger,
	}
}

// Loaded reports whether a context is resident.
func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx != nil
}

// LoadedKey returns the key of the resident context (zero when unloaded).
func (m *Manager) LoadedKey() LoadKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadedKey
}

// Generating reports whether a run is currently executing.
func (m *Manager) Generating() bool { return m.generating.Load() }

// LoadsTotal returns the number of context loads performed.
func (m *Manager) LoadsTotal() uint64 { return m.loadsTotal.Load() }

// ReleasesTotal returns the number of context releases performed.
func (m *Manager) ReleasesTotal() uint64 { return m.releasesTotal.Load() }

// Interrupt signals the in-flight run to stop at its next step checkpoint.
// Fire-and-forget: callers poll task state to learn when the run ended.
func (m *Manager) Interrupt() {
	m.interrupted.Store(true)
	interruptsMetric.Inc()
	m.log.Info().Msg("interrupt signaled")
}

// Close releases the resident context, if any. Called at shutdown.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releaseLocked()
}

// releaseLocked frees the resident context and clears the key. Caller holds mu.
func (m *Manager) releaseLocked() error {
	if m.ctx == nil {
		return nil
	}
	err := m.ctx.Close()
	m.ctx = nil
	m.loadedKey = LoadKey{}
	m.releasesTotal.Add(1)
	releasesMetric.Inc()
	if err != nil {
		m.log.Error().Err(err).Msg("context release failed")
		return err
	}
	m.log.Info().Msg("context released")
	return nil
}

// StatusReport is a read-only projection for the status endpoint.
type StatusReport struct {
	Loaded        bool   `json:"loaded"`
	Checkpoint    string `json:"checkpoint,omitempty"`
	Generating    bool   `json:"generating"`
	LoadsTotal    uint64 `json:"loads_total"`
	ReleasesTotal uint64 `json:"releases_total"`
}

// Status never blocks on the generation lock: a poll during a long run must
// come back immediately, so it reads only atomics plus a TryLock peek.
func (m *Manager) Status() StatusReport {
	r := StatusReport{
		Generating:    m.generating.Load(),
		LoadsTotal:    m.loadsTotal.Load(),
		ReleasesTotal: m.releasesTotal.Load(),
	}
	if m.mu.TryLock() {
		r.Loaded = m.ctx != nil
		r.Checkpoint = m.loadedKey.Checkpoint
		m.mu.Unlock()
	} else {
		// lock held means a load or run is in flight; loaded state is stale
		// by at most one request
		r.Loaded = true
	}
	return r
}
