package jit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/langvm/internal/bytecode"
)

// Scheduler owns the bounded pool of background compile workers and the
// published/in-progress bookkeeping the interpreter consults at every call
// boundary. Submitting a function that is already published or already
// being compiled is a no-op; a full job queue drops the request rather
// than blocking the caller, since Submit is called from the interpreter's
// hot CALL path and must never stall execution waiting for a worker slot.
type Scheduler struct {
	compiler *Compiler
	logger   *zap.Logger
	call     callback

	jobs   chan int
	group  *errgroup.Group
	cancel context.CancelFunc

	mu         sync.Mutex
	inProgress map[int]bool
	published  map[int]Executor
}

// NewScheduler starts workers background compile goroutines against
// module, bounded by errgroup.Group.SetLimit. logger receives one structured
// event per compile attempt (grounded on wippyai-wasm-runtime's use of zap
// as its application logger). call is the cooperative re-entry point handed
// to every published executor, native or delegating, for calls it cannot
// run itself.
func NewScheduler(module *bytecode.BytecodeModule, workers int, logger *zap.Logger, call callback) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	// One extra slot for the dispatch goroutine, which holds its slot for the
	// Scheduler's whole lifetime.
	group.SetLimit(workers + 1)

	s := &Scheduler{
		compiler:   NewCompiler(module, call),
		logger:     logger,
		call:       call,
		jobs:       make(chan int, 2*workers),
		group:      group,
		cancel:     cancel,
		inProgress: make(map[int]bool),
		published:  make(map[int]Executor),
	}

	group.Go(func() error {
		s.dispatch(ctx)
		return nil
	})
	return s
}

// dispatch pulls job indices and hands each to a SetLimit-bounded worker
// goroutine. While every worker slot is busy, Go() blocks this loop until one
// frees up; Submits arriving meanwhile wait in the jobs channel, and Submit
// drops them once that channel is full.
func (s *Scheduler) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case idx, ok := <-s.jobs:
			if !ok {
				return
			}
			s.group.Go(func() error {
				s.compileOne(idx)
				return nil
			})
		}
	}
}

func (s *Scheduler) compileOne(functionIndex int) {
	defer func() {
		s.mu.Lock()
		delete(s.inProgress, functionIndex)
		s.mu.Unlock()
	}()

	if exec, ok := s.compiler.Compile(functionIndex); ok {
		s.mu.Lock()
		s.published[functionIndex] = exec
		s.mu.Unlock()
		s.logger.Info("jit: compiled function", zap.Int("function_index", functionIndex))
		return
	}

	// Not eligible for native specialization (float/array/I-O opcodes, or a
	// non-int/void signature): publish a delegating executor instead of
	// dropping the request, so the call boundary still has something
	// published and this function is never resubmitted.
	s.mu.Lock()
	s.published[functionIndex] = &delegatingExecutor{functionIndex: functionIndex, call: s.call}
	s.mu.Unlock()
	s.logger.Debug("jit: function not eligible for specialization, delegating", zap.Int("function_index", functionIndex))
}

// Submit requests background compilation of functionIndex. It is safe to
// call repeatedly; only the first call (per function, before it is either
// published or found ineligible) has any effect.
func (s *Scheduler) Submit(functionIndex int) {
	s.mu.Lock()
	if s.inProgress[functionIndex] || s.published[functionIndex] != nil {
		s.mu.Unlock()
		return
	}
	s.inProgress[functionIndex] = true
	s.mu.Unlock()

	select {
	case s.jobs <- functionIndex:
	default:
		s.mu.Lock()
		delete(s.inProgress, functionIndex)
		s.mu.Unlock()
		s.logger.Debug("jit: compile queue full, dropping request", zap.Int("function_index", functionIndex))
	}
}

// Lookup returns the published executor for functionIndex (native or
// delegating), if any.
func (s *Scheduler) Lookup(functionIndex int) (Executor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.published[functionIndex]
	return e, ok
}

// Shutdown stops accepting new work and waits up to one second for
// in-flight compiles to finish before returning.
func (s *Scheduler) Shutdown() {
	close(s.jobs)
	s.cancel()

	done := make(chan struct{})
	go func() {
		_ = s.group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.logger.Warn("jit: shutdown timed out waiting for in-flight compiles")
	}
}
