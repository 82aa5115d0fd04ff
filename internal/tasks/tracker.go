// Package tasks tracks the lifecycle of asynchronous generation jobs.
// HTTP handlers create and poll tasks; the generation path pushes progress
// and previews through the same tracker. One coarse mutex covers the whole
// map: task count is tiny (one generation dominates) and every operation is
// O(1) with no I/O under the lock.
package tasks

import "sync"

// Task is the mutable record for one generation job.
type Task struct {
	ID string
	// Completed is the terminal flag; once set, Progress is fixed at 1.0 and
	// ResultImages/Info are immutable.
	Completed bool
	// Progress in [0,1], non-decreasing while running.
	Progress float64
	// LivePreview is an encoded image blob, replaced wholesale on each update.
	LivePreview string
	// PreviewRevision increments every time a non-empty preview is set.
	PreviewRevision int64
	// ResultImages are the encoded final images, empty until completion.
	ResultImages []string
	// Info is serialized generation metadata.
	Info string
	// Interrupted is a signal consumed by the generation path; setting it
	// does not stop anything by itself.
	Interrupted bool
}

// Tracker is a thread-safe map from task id to Task.
type Tracker struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func NewTracker() *Tracker {
	return &Tracker{tasks: make(map[string]*Task)}
}

// Create inserts a fresh task, overwriting any prior task with the same id.
// Subsequent polls for id see the zeroed state immediately.
func (t *Tracker) Create(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks[id] = &Task{ID: id}
}

// UpdateProgress sets progress and, when preview is non-empty, replaces the
// live preview and bumps its revision. Unknown ids are ignored: the
// generation path may race slightly ahead of task bookkeeping and must not
// fail on this. Updates after completion are ignored as well; completion is
// terminal.
func (t *Tracker) UpdateProgress(id string, progress float64, preview string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[id]
	if !ok || task.Completed {
		return
	}
	task.Progress = progress
	if preview != "" {
		task.LivePreview = preview
		task.PreviewRevision++
	}
}

// Complete marks the task finished with its final images and info.
// Unknown ids are ignored.
func (t *Tracker) Complete(id string, images []string, info string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[id]
	if !ok {
		return
	}
	task.Completed = true
	task.Progress = 1.0
	task.ResultImages = append([]string(nil), images...)
	task.Info = info
}

// MarkInterrupted flags the task; the generation loop observes the flag at
// its next step checkpoint. Unknown ids are ignored.
func (t *Tracker) MarkInterrupted(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if task, ok := t.tasks[id]; ok {
		task.Interrupted = true
	}
}

// Snapshot returns a copy of the task, or a zeroed record carrying the id
// when unknown. Polling an unknown id is a well-defined race, not an error.
func (t *Tracker) Snapshot(id string) Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[id]
	if !ok {
		return Task{ID: id}
	}
	out := *task
	out.ResultImages = append([]string(nil), task.ResultImages...)
	return out
}

// Exists reports whether the id is currently tracked.
func (t *Tracker) Exists(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.tasks[id]
	return ok
}

// Remove deletes the record. Manual cleanup only; nothing expires on its own.
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tasks, id)
}
