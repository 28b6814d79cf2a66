package jit

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cwbudde/langvm/internal/bytecode"
)

func TestScheduler_SubmitPublishesEligibleFunction(t *testing.T) {
	module := &bytecode.BytecodeModule{
		IntConstants: []int64{0, 1},
		Functions:    []*bytecode.CompiledFunction{countFn(0)},
	}
	sched := NewScheduler(module, 2, zap.NewNop(), noCall)
	defer sched.Shutdown()

	sched.Submit(0)
	if !waitForPublish(sched, 0, time.Second) {
		t.Fatalf("function 0 never published")
	}
	exec, ok := sched.Lookup(0)
	if !ok || exec == nil {
		t.Fatalf("Lookup(0) = (%v, %v), want a published executor", exec, ok)
	}
	if _, ok := exec.(*CompiledExecutor); !ok {
		t.Fatalf("Lookup(0) published a %T, want *CompiledExecutor", exec)
	}
}

// TestScheduler_SubmitDelegatesIneligibleFunction verifies that a function
// the compiler cannot specialize still gets published, as a delegating
// executor, rather than being dropped and left to be resubmitted forever.
func TestScheduler_SubmitDelegatesIneligibleFunction(t *testing.T) {
	fn := &bytecode.CompiledFunction{
		Name:         "floaty",
		ReturnType:   bytecode.TypeTag{Kind: bytecode.KindFloat},
		Instructions: asm(u(bytecode.RETURN, 0)),
	}
	module := &bytecode.BytecodeModule{Functions: []*bytecode.CompiledFunction{fn}}
	sched := NewScheduler(module, 1, zap.NewNop(), noCall)
	defer sched.Shutdown()

	sched.Submit(0)
	if !waitForPublish(sched, 0, time.Second) {
		t.Fatalf("function 0 never published")
	}
	exec, ok := sched.Lookup(0)
	if !ok {
		t.Fatalf("Lookup(0) = (_, false), want a published delegating executor")
	}
	if _, ok := exec.(*delegatingExecutor); !ok {
		t.Fatalf("Lookup(0) published a %T, want *delegatingExecutor", exec)
	}
}

func TestScheduler_SubmitIsIdempotent(t *testing.T) {
	module := &bytecode.BytecodeModule{
		IntConstants: []int64{0, 1},
		Functions:    []*bytecode.CompiledFunction{countFn(0)},
	}
	sched := NewScheduler(module, 1, zap.NewNop(), noCall)
	defer sched.Shutdown()

	for i := 0; i < 5; i++ {
		sched.Submit(0)
	}
	if !waitForPublish(sched, 0, time.Second) {
		t.Fatalf("function 0 never published")
	}
}

func waitForPublish(sched *Scheduler, idx int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, ok := sched.Lookup(idx); ok {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	_, ok := sched.Lookup(idx)
	return ok
}
