package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wippyai/brainwasm/compiler"
	"github.com/wippyai/brainwasm/engine"
)

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6D}

func newRunCmd() *cobra.Command {
	var (
		stdinText string
		timeout   time.Duration
		pages     uint32
		memLimit  uint32
	)

	cmd := &cobra.Command{
		Use:   "run <program.bf|module.wasm>",
		Short: "Compile and execute a program",
		Long: `Compile a Brainfuck program and execute it on the embedded runtime.
A file that already holds a WebAssembly module is executed as is.

Stdin is read from the terminal unless --stdin is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := loadModule(args[0], compiler.Options{Name: filepath.Base(args[0]), Pages: pages})
			if err != nil {
				return err
			}

			var stdin io.Reader = cmd.InOrStdin()
			if cmd.Flags().Changed("stdin") {
				stdin = strings.NewReader(stdinText)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			return execute(ctx, data, &engine.Config{MemoryLimitPages: memLimit}, engine.IO{
				Stdin:  stdin,
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
			})
		},
	}

	cmd.Flags().StringVar(&stdinText, "stdin", "", "text to feed the program instead of standard input")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "stop the program after this long (0 = no limit)")
	cmd.Flags().Uint32Var(&pages, "pages", compiler.DefaultPages, "initial memory size in 64KiB pages")
	cmd.Flags().Uint32Var(&memLimit, "memory-limit", 0, "maximum memory in 64KiB pages (0 = runtime default)")

	return cmd
}

// loadModule returns the module in path, compiling it first unless it
// already starts with the wasm magic number.
func loadModule(path string, opts compiler.Options) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if bytes.HasPrefix(data, wasmMagic) {
		return data, nil
	}

	module, err := compiler.Compile(string(data), opts)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	return module, nil
}

// execute runs one module on a fresh engine.
func execute(ctx context.Context, data []byte, cfg *engine.Config, stdio engine.IO) error {
	eng, err := engine.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer eng.Close(context.Background())

	if err := eng.Run(ctx, data, stdio); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}
