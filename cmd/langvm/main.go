// Command langvm lexes, parses, checks, compiles, and runs programs written
// in the small statically-typed language this module implements.
package main

import (
	"os"

	"github.com/cwbudde/langvm/cmd/langvm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
