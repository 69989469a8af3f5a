package store

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one unit of persistence work. Run receives the backing store and a
// context bounded by the writer's job timeout.
type Job struct {
	Name string
	Run  func(ctx context.Context, s Store) error
}

// Submitter accepts jobs without blocking the caller.
type Submitter interface {
	Submit(j Job) bool
}

type WriterConfig struct {
	QueueSize  int
	JobTimeout time.Duration
	Logger     *log.Logger
}

type WriterStats struct {
	QueueDepth    int
	QueueCapacity int
	DoneTotal     uint64
	FailTotal     uint64
	DropTotal     uint64
}

// Writer runs jobs in submission order on a single worker goroutine. A full
// queue drops the job instead of stalling the game loop.
type Writer struct {
	store   Store
	timeout time.Duration
	logger  *log.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan Job
	wg     sync.WaitGroup
	once   sync.Once

	done atomic.Uint64
	fail atomic.Uint64
	drop atomic.Uint64
}

func NewWriter(s Store, cfg WriterConfig) *Writer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4096
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Second
	}
	w := &Writer{
		store:   s,
		timeout: cfg.JobTimeout,
		logger:  cfg.Logger,
		ch:      make(chan Job, cfg.QueueSize),
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop()
	}()
	return w
}

func (w *Writer) Submit(j Job) bool {
	if w == nil || j.Run == nil {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.drop.Add(1)
		return false
	}
	select {
	case w.ch <- j:
		return true
	default:
		w.drop.Add(1)
		w.logf("[store] drop job=%s queue full", j.Name)
		return false
	}
}

func (w *Writer) loop() {
	for j := range w.ch {
		runJob(w.store, w.timeout, j, &w.done, &w.fail, w.logf)
	}
}

func runJob(s Store, timeout time.Duration, j Job, done, fail *atomic.Uint64, logf func(string, ...any)) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := j.Run(ctx, s); err != nil {
		fail.Add(1)
		logf("[store] job=%s err=%v", j.Name, err)
		return
	}
	done.Add(1)
}

// Close drains queued jobs and stops the worker. It does not close the store.
func (w *Writer) Close() error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.ch)
		w.mu.Unlock()
		w.wg.Wait()
	})
	return nil
}

func (w *Writer) Stats() WriterStats {
	if w == nil {
		return WriterStats{}
	}
	return WriterStats{
		QueueDepth:    len(w.ch),
		QueueCapacity: cap(w.ch),
		DoneTotal:     w.done.Load(),
		FailTotal:     w.fail.Load(),
		DropTotal:     w.drop.Load(),
	}
}

func (w *Writer) logf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Printf(format, args...)
	}
}

// Inline runs each job synchronously on the caller's goroutine.
type Inline struct {
	Store   Store
	Timeout time.Duration
	Logger  *log.Logger

	done atomic.Uint64
	fail atomic.Uint64
}

func (in *Inline) Submit(j Job) bool {
	if j.Run == nil {
		return false
	}
	timeout := in.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	runJob(in.Store, timeout, j, &in.done, &in.fail, func(format string, args ...any) {
		if in.Logger != nil {
			in.Logger.Printf(format, args...)
		}
	})
	return true
}

func (in *Inline) Stats() WriterStats {
	return WriterStats{DoneTotal: in.done.Load(), FailTotal: in.fail.Load()}
}
