package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/mattjoyce/slate/internal/log"
)

// Event types published on job transitions.
const (
	EventQueued  = "job.queued"
	EventRunning = "job.running"
	EventDone    = "job.done"
	EventFailed  = "job.failed"
)

// Publisher receives job transitions. *events.Hub satisfies it.
type Publisher interface {
	Publish(eventType string, data any)
}

// Run is handed to a job's work function.
type Run struct {
	ID    string
	store *Store
}

// Attach records a file on the running job.
func (r *Run) Attach(ctx context.Context, name, path string) error {
	return r.store.Attach(ctx, r.ID, name, path)
}

// Work is the body of a background job. A returned error or a panic marks
// the job failed.
type Work func(ctx context.Context, run *Run) error

// Handle observes one submitted job.
type Handle struct {
	id   string
	done chan struct{}

	mu     sync.Mutex
	status Status
	err    error
}

func newHandle(id string) *Handle {
	return &Handle{id: id, done: make(chan struct{}), status: StatusQueued}
}

// ID returns the job id.
func (h *Handle) ID() string { return h.id }

// Status returns the current status.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Done is closed once the job reaches a terminal status.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the failure of a finished job, or nil.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Wait blocks until the job finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) set(status Status, err error) {
	h.mu.Lock()
	h.status = status
	h.err = err
	h.mu.Unlock()
	if status.Terminal() {
		close(h.done)
	}
}

type task struct {
	handle      *Handle
	description string
	user        string
	work        Work
}

// Options configures a Tracker.
type Options struct {
	Workers   int
	QueueSize int
}

// Tracker runs work on a bounded pool of workers and keeps the job record of
// each submission current. Submit never blocks.
type Tracker struct {
	store  *Store
	pub    Publisher
	logger *slog.Logger

	queue   chan *task
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	handles map[string]*Handle
}

// NewTracker starts opts.Workers workers.
func NewTracker(store *Store, pub Publisher, opts Options) *Tracker {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		store:   store,
		pub:     pub,
		logger:  log.WithComponent("jobs"),
		queue:   make(chan *task, opts.QueueSize),
		baseCtx: ctx,
		cancel:  cancel,
		handles: make(map[string]*Handle),
	}
	for i := 0; i < opts.Workers; i++ {
		t.wg.Add(1)
		go t.worker()
	}
	return t
}

// Store returns the underlying job store.
func (t *Tracker) Store() *Store { return t.store }

// Submit records a queued job and hands it to the pool. When the queue is
// full or the tracker is shut down, the job is recorded as failed and the
// matching error is returned together with the handle.
func (t *Tracker) Submit(ctx context.Context, description, user string, work Work) (*Handle, error) {
	id, err := t.store.Create(ctx, description, user)
	if err != nil {
		return nil, err
	}
	h := newHandle(id)
	t.publish(EventQueued, id, description, nil)

	tk := &task{handle: h, description: description, user: user, work: work}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.fail(h, description, ErrShutdown)
		return h, ErrShutdown
	}
	select {
	case t.queue <- tk:
		t.handles[id] = h
		t.mu.Unlock()
		return h, nil
	default:
		t.mu.Unlock()
		t.fail(h, description, ErrQueueFull)
		return h, ErrQueueFull
	}
}

// Handle returns the handle of a job submitted to this tracker.
func (t *Tracker) Handle(id string) (*Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[id]
	return h, ok
}

// Shutdown stops accepting work and waits for queued and running jobs. If
// ctx ends first, running jobs see their context cancelled.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.queue)
	}
	t.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		t.cancel()
		return nil
	case <-ctx.Done():
		t.cancel()
		<-drained
		return ctx.Err()
	}
}

func (t *Tracker) worker() {
	defer t.wg.Done()
	for tk := range t.queue {
		t.run(tk)
	}
}

func (t *Tracker) run(tk *task) {
	id := tk.handle.id
	logger := log.WithJob(id)

	if err := t.store.MarkRunning(t.baseCtx, id); err != nil {
		logger.Error("failed to mark job running", "error", err)
	}
	tk.handle.set(StatusRunning, nil)
	t.publish(EventRunning, id, tk.description, nil)
	logger.Info("job started", "description", tk.description, "user", tk.user)

	err := t.call(tk, &Run{ID: id, store: t.store})

	status := StatusDone
	lastError := ""
	if err != nil {
		status = StatusFailed
		lastError = err.Error()
		logger.Error("job failed", "error", err)
	} else {
		logger.Info("job completed successfully")
	}

	// Use a fresh context so the record is finalised even after cancellation.
	if ferr := t.store.Finish(context.Background(), id, status, lastError); ferr != nil {
		logger.Error("failed to finish job", "error", ferr)
	}

	t.mu.Lock()
	delete(t.handles, id)
	t.mu.Unlock()

	tk.handle.set(status, err)
	if status == StatusDone {
		t.publish(EventDone, id, tk.description, nil)
	} else {
		t.publish(EventFailed, id, tk.description, err)
	}
}

func (t *Tracker) call(tk *task, run *Run) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
			log.WithJob(run.ID).Error("job panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	return tk.work(t.baseCtx, run)
}

func (t *Tracker) fail(h *Handle, description string, cause error) {
	if err := t.store.Finish(context.Background(), h.id, StatusFailed, cause.Error()); err != nil {
		t.logger.Error("failed to record rejected job", "job_id", h.id, "error", err)
	}
	h.set(StatusFailed, cause)
	t.publish(EventFailed, h.id, description, cause)
}

func (t *Tracker) publish(eventType, id, description string, err error) {
	if t.pub == nil {
		return
	}
	data := map[string]any{"job_id": id, "description": description}
	if err != nil {
		data["error"] = err.Error()
	}
	t.pub.Publish(eventType, data)
}
