package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	bwerrors "github.com/wippyai/brainwasm/errors"
)

// StartFunction is the export Run calls.
const StartFunction = "_start"

// Engine executes WASI command modules.
type Engine struct {
	runtime      wazero.Runtime
	wasiInitMu   sync.Mutex
	wasiInitDone atomic.Bool
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// A module whose initial memory exceeds the limit fails to instantiate.
	MemoryLimitPages uint32
}

// IO holds the standard streams of one run. Nil readers read EOF and nil
// writers discard.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// New creates an engine with its own wazero runtime. cfg may be nil.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)

	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return &Engine{runtime: runtime}, nil
}

// Close releases the runtime and every module instantiated in it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// InitWASI instantiates WASI preview1 into the engine's runtime.
// Safe for concurrent calls; only the first one instantiates.
func (e *Engine) InitWASI(ctx context.Context) error {
	if e.wasiInitDone.Load() {
		return nil
	}

	e.wasiInitMu.Lock()
	defer e.wasiInitMu.Unlock()

	if e.wasiInitDone.Load() {
		return nil
	}

	if e.runtime.Module(wasi_snapshot_preview1.ModuleName) == nil {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
			return fmt.Errorf("instantiate WASI: %w", err)
		}
	}

	e.wasiInitDone.Store(true)
	return nil
}

// Run compiles wasmBytes and executes its _start function with the given
// streams. It returns when the program finishes, traps, or ctx is done.
func (e *Engine) Run(ctx context.Context, wasmBytes []byte, stdio IO) error {
	if err := e.InitWASI(ctx); err != nil {
		return bwerrors.Instantiation(err)
	}

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return bwerrors.Instantiation(err)
	}
	defer compiled.Close(ctx)

	// anonymous so repeated runs of the same module do not collide;
	// _start is called below so setup failures stay distinct from traps
	modCfg := wazero.NewModuleConfig().WithName("").WithStartFunctions()
	if stdio.Stdin != nil {
		modCfg = modCfg.WithStdin(stdio.Stdin)
	}
	if stdio.Stdout != nil {
		modCfg = modCfg.WithStdout(stdio.Stdout)
	}
	if stdio.Stderr != nil {
		modCfg = modCfg.WithStderr(stdio.Stderr)
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		if ctx.Err() != nil {
			return bwerrors.Cancelled(err)
		}
		return bwerrors.Instantiation(err)
	}
	defer mod.Close(ctx)

	entry := mod.ExportedFunction(StartFunction)
	if entry == nil {
		return bwerrors.Instantiation(fmt.Errorf("module does not export %s", StartFunction))
	}

	Logger().Debug("run start", zap.Int("bytes", len(wasmBytes)))
	start := time.Now()

	_, err = entry.Call(ctx)
	err = classify(ctx, err)
	Logger().Debug("run finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	return err
}

// classify maps a wazero execution error to a runtime error kind.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		switch exitErr.ExitCode() {
		case 0:
			return nil
		case sys.ExitCodeContextCanceled, sys.ExitCodeDeadlineExceeded:
			return bwerrors.Cancelled(err)
		}
	}
	if ctx.Err() != nil {
		return bwerrors.Cancelled(err)
	}
	return bwerrors.Trap(err)
}
