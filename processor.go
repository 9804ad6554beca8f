package corun

import (
	"context"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/rs/zerolog"
)

// TaskProcessor schedules cooperative tasks over a fixed pool of
// worker goroutines. Scheduling is run-to-block: once a worker picks a
// task it drives the task's continuation until the task suspends,
// yields or completes; there is no mid-execution preemption. Suspended
// tasks occupy no worker, so the processor runs many more tasks than
// it has workers.
type TaskProcessor struct {
	cfg ProcessorConfig
	log zerolog.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	ready    deque.Deque[*TaskContext]
	live     map[*TaskContext]struct{}
	stopping bool

	workers  sync.WaitGroup
	joinOnce sync.Once
	joined   chan struct{}
	blockers *SizeGuard
}

// NewTaskProcessor starts a processor with cfg.Workers workers. The
// logger is used for lifecycle events; pass zerolog.Nop() to silence
// it.
func NewTaskProcessor(cfg ProcessorConfig, log zerolog.Logger) (*TaskProcessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	p := &TaskProcessor{
		cfg:      cfg,
		log:      log.With().Str("task_processor", cfg.Name).Logger(),
		live:     make(map[*TaskContext]struct{}),
		joined:   make(chan struct{}),
		blockers: NewSizeGuard(cfg.BlockingLimit),
	}
	p.cond = sync.NewCond(&p.mu)

	p.workers.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker(i)
	}

	p.log.Info().
		Int("workers", cfg.Workers).
		Int("blocking_limit", cfg.BlockingLimit).
		Msg("task processor started")
	return p, nil
}

// Post schedules fn as a new task and returns its handle. It never
// blocks the caller and is safe from any goroutine, including other
// tasks. ctx values are visible to the task body; the body's context
// additionally carries the TaskContext itself.
//
// After Shutdown has begun Post returns ErrProcessorStopped and the
// task does not run.
func (p *TaskProcessor) Post(ctx context.Context, fn func(context.Context) error) (*TaskContext, error) {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return nil, ErrProcessorStopped
	}
	t := newTask(p, ctx, fn)
	t.state.Store(int32(StateQueued))
	p.live[t] = struct{}{}
	p.ready.PushBack(t)
	p.warnQueueLocked()
	p.mu.Unlock()

	p.cond.Signal()
	t.log("POST")
	return t, nil
}

// requeue puts a woken task back on the ready queue. Unlike Post it
// keeps working during shutdown so cancelled tasks can drain.
func (p *TaskProcessor) requeue(t *TaskContext) {
	p.mu.Lock()
	p.ready.PushBack(t)
	p.warnQueueLocked()
	p.mu.Unlock()
	p.cond.Signal()
}

// warnQueueLocked logs once each time the ready queue crosses the
// configured watermark. Caller holds p.mu.
func (p *TaskProcessor) warnQueueLocked() {
	if warn := p.cfg.QueueWarnSize; warn > 0 && p.ready.Len() == warn+1 {
		p.log.Warn().Int("ready", p.ready.Len()).Msg("ready queue above watermark")
	}
}

func (p *TaskProcessor) taskDone(t *TaskContext) {
	p.mu.Lock()
	delete(p.live, t)
	drained := p.stopping && len(p.live) == 0
	p.mu.Unlock()
	if drained {
		p.cond.Broadcast()
	}
}

func (p *TaskProcessor) worker(id int) {
	defer p.workers.Done()

	for {
		p.mu.Lock()
		for p.ready.Len() == 0 && !(p.stopping && len(p.live) == 0) {
			p.cond.Wait()
		}
		if p.ready.Len() == 0 {
			p.mu.Unlock()
			p.log.Debug().Int("worker", id).Msg("worker exiting")
			return
		}
		t := p.ready.PopFront()
		p.mu.Unlock()

		p.run(t)
	}
}

// run drives one task until its next suspension point. runMu keeps a
// concurrent requeue from resuming the task on another worker before
// the suspend handoff here finished.
func (p *TaskProcessor) run(t *TaskContext) {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	t.state.Store(int32(StateRunning))
	finished, perr := t.resumeOnce(wakeReason(t.wakeSrc.Load()))
	if perr != nil {
		p.log.Error().Err(perr).Msg("task panicked")
		t.err = perr
	}
	if finished {
		t.complete()
	}
}

// Shutdown rejects further Posts, requests cancellation of every live
// task, drains the ready queue and joins the workers. Safe to call
// more than once; later calls wait for the first to finish.
func (p *TaskProcessor) Shutdown() {
	p.mu.Lock()
	first := !p.stopping
	p.stopping = true
	tasks := make([]*TaskContext, 0, len(p.live))
	for t := range p.live {
		tasks = append(tasks, t)
	}
	p.mu.Unlock()

	if first {
		p.log.Info().Int("live_tasks", len(tasks)).Msg("task processor shutting down")
		for _, t := range tasks {
			t.RequestCancel()
		}
	}
	p.cond.Broadcast()

	// One joiner for the processor's lifetime: a timed-out Shutdown
	// leaves it running and a retry reuses it instead of spawning
	// another.
	p.joinOnce.Do(func() {
		go func() {
			p.workers.Wait()
			close(p.joined)
		}()
	})
	if limit := p.cfg.ShutdownTimeout.Duration; limit > 0 {
		select {
		case <-p.joined:
		case <-time.After(limit):
			p.log.Error().Dur("timeout", limit).Msg("shutdown timed out with tasks still live")
			return
		}
	} else {
		<-p.joined
	}
	if first {
		p.log.Info().Msg("task processor stopped")
	}
}

// RunBlocking runs fn on a plain goroutine off the cooperative workers
// and suspends the calling task until it returns, bounded by the
// task's inherited deadline. Use it for synchronous syscalls and
// CPU-heavy work that must not stall the worker pool.
//
// Concurrent outstanding blocking calls are bounded by the processor's
// BlockingLimit; at capacity RunBlocking returns ErrLimitReached
// without running fn. On ErrDeadlineExpired or ErrTaskCancelled fn
// keeps running to completion in the background, but its result is
// discarded.
func (p *TaskProcessor) RunBlocking(ctx context.Context, fn func() error) error {
	MustCurrent(ctx)

	release, err := p.blockers.Acquire()
	if err != nil {
		return err
	}

	var (
		wg  WaitGroup
		res error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer release()
		res = fn()
	}()

	if err := wg.Wait(ctx); err != nil {
		return err
	}
	return res
}
