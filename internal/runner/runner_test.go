package runner

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cwbudde/langvm/internal/vm"
	"github.com/cwbudde/langvm/internal/vmerrors"
)

func TestRun_Factorial(t *testing.T) {
	const source = `
func factorial(n: int): int {
	if (n <= 1) {
		return 1;
	}
	return n * factorial(n - 1);
}

func main(): void {
	print(factorial(10));
}
`
	var out strings.Builder
	err := Run(source, "factorial.lang", Options{Out: func(format string, args ...any) {
		out.WriteString(fmt.Sprintf(format, args...))
	}})
	if err != nil {
		t.Fatalf("Run returned error: %v", err.Format(false))
	}
	if out.String() != "3628800" {
		t.Fatalf("output = %q, want %q", out.String(), "3628800")
	}
}

func TestRun_LoopSum(t *testing.T) {
	const source = `
func main(): void {
	let sum: int = 0;
	for (let i: int = 1; i <= 5; i = i + 1) {
		sum = sum + i;
	}
	print(sum);
}
`
	var out strings.Builder
	err := Run(source, "loopsum.lang", Options{Out: func(format string, args ...any) {
		out.WriteString(fmt.Sprintf(format, args...))
	}})
	if err != nil {
		t.Fatalf("Run returned error: %v", err.Format(false))
	}
	if out.String() != "15" {
		t.Fatalf("output = %q, want %q", out.String(), "15")
	}
}

func TestRun_ArrayRoundTrip(t *testing.T) {
	const source = `
func main(): void {
	let values: int[] = int[3];
	values[0] = 10;
	values[1] = 20;
	values[2] = 30;
	print(values[0] + values[1] + values[2]);
}
`
	var out strings.Builder
	err := Run(source, "array.lang", Options{Out: func(format string, args ...any) {
		out.WriteString(fmt.Sprintf(format, args...))
	}})
	if err != nil {
		t.Fatalf("Run returned error: %v", err.Format(false))
	}
	if out.String() != "60" {
		t.Fatalf("output = %q, want %q", out.String(), "60")
	}
}

func TestRun_DivisionByZeroReturnsVMError(t *testing.T) {
	const source = `
func main(): void {
	let x: int = 1 / 0;
	print(x);
}
`
	var out strings.Builder
	err := Run(source, "divzero.lang", Options{Out: func(format string, args ...any) {
		out.WriteString(fmt.Sprintf(format, args...))
	}})
	if err == nil {
		t.Fatalf("Run = nil error, want a VM error")
	}
	if err.Stage != vmerrors.VMStage {
		t.Fatalf("Stage = %v, want VMStage", err.Stage)
	}
	if err.Result != vm.DIVISION_BY_ZERO {
		t.Fatalf("Result = %v, want DIVISION_BY_ZERO", err.Result)
	}
	if out.String() != "" {
		t.Fatalf("output = %q, want empty (fault before the print)", out.String())
	}
}

func TestRun_SemanticErrorPropagates(t *testing.T) {
	const source = `
func notMain(): void {
	print(1);
}
`
	err := Run(source, "nomain.lang", Options{Out: func(string, ...any) {}})
	if err == nil {
		t.Fatalf("Run = nil error, want a semantic error")
	}
	if err.Stage != vmerrors.SemanticStage {
		t.Fatalf("Stage = %v, want SemanticStage", err.Stage)
	}
	if !strings.Contains(err.Msg, "missing function 'main'") {
		t.Fatalf("Msg = %q, want it to mention the missing entry point", err.Msg)
	}
}

func TestRun_JITProducesSameOutputAsInterpreterOnly(t *testing.T) {
	const source = `
func count(n: int): int {
	if (n <= 0) {
		return 0;
	}
	return 1 + count(n - 1);
}

func main(): void {
	let i: int = 0;
	for (i = 0; i < 20; i = i + 1) {
		print(count(5));
	}
}
`
	var interpreted strings.Builder
	if err := Run(source, "jit.lang", Options{Out: func(format string, args ...any) {
		interpreted.WriteString(fmt.Sprintf(format, args...))
	}}); err != nil {
		t.Fatalf("interpreter-only Run returned error: %v", err.Format(false))
	}

	var jitted strings.Builder
	err := Run(source, "jit.lang", Options{
		Out: func(format string, args ...any) {
			jitted.WriteString(fmt.Sprintf(format, args...))
		},
		JITEnabled:   true,
		JITThreshold: 2,
		JITWorkers:   2,
	})
	if err != nil {
		t.Fatalf("JIT-enabled Run returned error: %v", err.Format(false))
	}

	if jitted.String() != interpreted.String() {
		t.Fatalf("JIT-enabled output %q != interpreter-only output %q", jitted.String(), interpreted.String())
	}
	want := strings.Repeat("5", 20)
	if interpreted.String() != want {
		t.Fatalf("output = %q, want %q", interpreted.String(), want)
	}
}
