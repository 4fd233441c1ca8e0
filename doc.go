// Package brainwasm compiles Brainfuck programs to WebAssembly.
//
// The output is a WASI preview1 command module: it imports fd_write and
// fd_read from wasi_snapshot_preview1 and exports _start and its memory,
// so any WASI runtime can execute it directly.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	brainwasm/
//	├── bf/          Source scanning, run-length folding, bracket checks
//	├── compiler/    Folded instructions to a WASI command module
//	├── wasm/        Core module description, validation, encoding, decoding
//	├── engine/      Execution on wazero with WASI preview1
//	├── errors/      Structured error types with phase and kind
//	└── cmd/b2w/     Command-line compiler, runner, inspector and playground
//
// # Quick Start
//
// Compile source to a module binary:
//
//	data, err := compiler.Compile(",[.,]", compiler.Options{Name: "cat"})
//
// Run it in-process:
//
//	eng, err := engine.New(ctx, nil)
//	defer eng.Close(ctx)
//	err = eng.Run(ctx, data, engine.IO{Stdin: os.Stdin, Stdout: os.Stdout})
//
// # Errors
//
// Every package reports failures as *errors.Error values:
//
//	var bwErr *errors.Error
//	if stderrors.As(err, &bwErr) {
//	    fmt.Println(bwErr.Phase, bwErr.Kind)
//	}
//
// Unbalanced brackets match bf.ErrBracketMismatch under errors.Is.
package brainwasm
