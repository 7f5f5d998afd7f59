package session

import (
	"context"
	"sort"
	"sync"
)

// TaskFunc is a long-running background task. It must return when ctx
// is cancelled.
type TaskFunc func(ctx context.Context)

type taskEntry struct {
	run     TaskFunc
	cancel  context.CancelFunc
	running bool
}

// TaskSet tracks background tasks by key so they can be stopped,
// snoozed and resumed. A snoozed task keeps its descriptor and is
// restarted from its original parameters on resume.
type TaskSet struct {
	base context.Context

	mu    sync.Mutex
	tasks map[string]*taskEntry
	wg    sync.WaitGroup
}

func NewTaskSet(base context.Context) *TaskSet {
	return &TaskSet{
		base:  base,
		tasks: make(map[string]*taskEntry),
	}
}

// Start registers run under key and launches it. An existing task with
// the same key is cancelled and replaced.
func (ts *TaskSet) Start(key string, run TaskFunc) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if prev, ok := ts.tasks[key]; ok && prev.cancel != nil {
		prev.cancel()
	}

	entry := &taskEntry{run: run}
	ts.tasks[key] = entry
	ts.startLocked(key, entry)
}

func (ts *TaskSet) startLocked(key string, entry *taskEntry) {
	ctx, cancel := context.WithCancel(ts.base)
	entry.cancel = cancel
	entry.running = true

	ts.wg.Add(1)
	go func() {
		defer ts.wg.Done()
		entry.run(ctx)
		cancel()

		// A task that returned on its own is done and must not be
		// resurrected by a later resume. Snoozed entries (running
		// already cleared) and replaced entries keep their descriptor.
		ts.mu.Lock()
		defer ts.mu.Unlock()
		if cur, ok := ts.tasks[key]; ok && cur == entry && entry.running {
			delete(ts.tasks, key)
		}
	}()
}

// Stop cancels and forgets the task under key. It reports whether a
// task was registered.
func (ts *TaskSet) Stop(key string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.tasks[key]
	if !ok {
		return false
	}
	if entry.cancel != nil {
		entry.cancel()
	}
	delete(ts.tasks, key)
	return true
}

// Has reports whether a task is registered under key.
func (ts *TaskSet) Has(key string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	_, ok := ts.tasks[key]
	return ok
}

// Keys returns the registered task keys in sorted order.
func (ts *TaskSet) Keys() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	keys := make([]string, 0, len(ts.tasks))
	for k := range ts.tasks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SnoozeAll cancels every running task but keeps its descriptor.
func (ts *TaskSet) SnoozeAll() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for _, entry := range ts.tasks {
		if entry.running && entry.cancel != nil {
			entry.cancel()
			entry.cancel = nil
			entry.running = false
		}
	}
}

// ResumeAll restarts every snoozed task from its descriptor.
func (ts *TaskSet) ResumeAll() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for key, entry := range ts.tasks {
		if !entry.running {
			ts.startLocked(key, entry)
		}
	}
}

// Shutdown cancels everything and waits for the tasks to return.
func (ts *TaskSet) Shutdown() {
	ts.mu.Lock()
	for key, entry := range ts.tasks {
		if entry.cancel != nil {
			entry.cancel()
		}
		delete(ts.tasks, key)
	}
	ts.mu.Unlock()

	ts.wg.Wait()
}
