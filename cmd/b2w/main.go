// Command b2w compiles Brainfuck programs to WASI command modules.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
