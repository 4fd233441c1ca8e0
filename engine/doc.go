// Package engine runs compiled WASI command modules on wazero.
//
// An Engine owns one wazero runtime. WASI preview1 is instantiated into it
// once, on first use, and every Run instantiates the given module
// anonymously with its own stdin, stdout and stderr:
//
//	eng, err := engine.New(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	defer eng.Close(ctx)
//
//	err = eng.Run(ctx, wasmBytes, engine.IO{
//	    Stdin:  strings.NewReader("A"),
//	    Stdout: &out,
//	})
//
// The module is instantiated without start functions and Run then calls its
// _start export, so a failure to link is never reported as a trap. The
// runtime is configured
// to close modules when their context is done, so a deadline stops a
// program that never terminates.
//
// # Errors
//
// Run returns *errors.Error values with phase "runtime":
//
//	instantiation  the module failed to compile or link, or has no _start
//	trap           execution aborted, e.g. an I/O call returned nonzero
//	cancelled      the context was cancelled or its deadline passed
package engine
