package jit

import (
	"go.uber.org/zap"

	"github.com/cwbudde/langvm/internal/bytecode"
	"github.com/cwbudde/langvm/internal/vm"
)

// Runtime implements vm.Interceptor, wiring the Profiler and Scheduler into
// the interpreter's call boundary: every CALL reports itself to the
// Profiler; once a function crosses the Profiler's threshold the Scheduler
// compiles it in the background, and from that point on every call to it
// that reaches the Interceptor is still counted by RecordCall, and
// TryExecute runs its published executor — native or delegating — instead
// of the interpreter loop.
type Runtime struct {
	profiler  *Profiler
	scheduler *Scheduler
}

// NewRuntime creates a Runtime for a module with numFunctions functions,
// compiling eligible functions once they reach threshold calls, using up to
// workers background compile goroutines. owner is the VM this Runtime will
// be installed on as its Interceptor; published executors re-enter it
// directly (bypassing the Interceptor check) at the cooperative call
// boundary for any callee they do not run natively themselves.
func NewRuntime(owner *vm.VM, module *bytecode.BytecodeModule, threshold int64, workers int, logger *zap.Logger) *Runtime {
	call := func(functionIndex int, args []bytecode.Value) (bytecode.Value, vm.Result) {
		fn := module.Functions[functionIndex]
		return owner.Execute(fn, args)
	}
	return &Runtime{
		profiler:  NewProfiler(len(module.Functions), threshold),
		scheduler: NewScheduler(module, workers, logger, call),
	}
}

// RecordCall implements vm.Interceptor.
func (r *Runtime) RecordCall(functionIndex int) {
	if r.profiler.RecordCall(functionIndex) {
		r.scheduler.Submit(functionIndex)
	}
}

// TryExecute implements vm.Interceptor: if functionIndex has a published
// executor, runs it directly instead of entering the generic Value-boxed
// interpreter loop.
func (r *Runtime) TryExecute(functionIndex int, args []bytecode.Value) (bytecode.Value, vm.Result, bool) {
	exec, ok := r.scheduler.Lookup(functionIndex)
	if !ok {
		return bytecode.Value{}, 0, false
	}
	v, res := exec.Execute(args)
	return v, res, true
}

// Shutdown drains the background compiler.
func (r *Runtime) Shutdown() {
	r.scheduler.Shutdown()
}
