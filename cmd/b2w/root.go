package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/brainwasm/compiler"
	"github.com/wippyai/brainwasm/engine"
	"github.com/wippyai/brainwasm/wasm"
)

// Signature custom section, stamped into every module unless --no-custom
// is given.
const (
	signatureName = "b2w"
	signatureText = "this wasm file was created using `b2w`, a program for converting brainf**k to wasm."
)

type buildFlags struct {
	name     string
	pages    uint32
	noCustom bool
	noNames  bool
}

func (f *buildFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "module name for the name section (default: input file name)")
	cmd.Flags().Uint32Var(&f.pages, "pages", compiler.DefaultPages, "initial memory size in 64KiB pages")
	cmd.Flags().BoolVar(&f.noCustom, "no-custom", false, "omit the b2w signature section")
	cmd.Flags().BoolVar(&f.noNames, "no-names", false, "omit the debug name section")
}

// options derives compiler options for the given input path.
func (f *buildFlags) options(cmd *cobra.Command, input string) compiler.Options {
	name := f.name
	if !cmd.Flags().Changed("name") {
		name = filepath.Base(input)
	}

	opts := compiler.Options{
		Name:      name,
		Pages:     f.pages,
		OmitNames: f.noNames,
	}
	if !f.noCustom {
		opts.Custom = &wasm.CustomSection{Name: signatureName, Data: []byte(signatureText)}
	}
	return opts
}

func newRootCmd() *cobra.Command {
	var (
		verbose bool
		flags   buildFlags
	)

	root := &cobra.Command{
		Use:   "b2w <input.bf> <output.wasm>",
		Short: "Compile Brainfuck to a WASI command module",
		Long: `b2w compiles a Brainfuck program into a WebAssembly module that imports
fd_write and fd_read from wasi_snapshot_preview1 and exports _start and
memory. The result runs under any WASI preview1 runtime, for example:

  b2w hello.bf hello.wasm
  wasmtime hello.wasm`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if !verbose {
				return nil
			}
			l, err := zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			compiler.SetLogger(l)
			engine.SetLogger(l)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return build(args[0], args[1], flags.options(cmd, args[0]))
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.register(root)

	root.AddCommand(newRunCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newPlayCmd())

	return root
}

func build(input, output string, opts compiler.Options) error {
	source, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	data, err := compiler.Compile(string(source), opts)
	if err != nil {
		return fmt.Errorf("compile %s: %w", input, err)
	}

	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	compiler.Logger().Info("wrote module",
		zap.String("input", input),
		zap.String("output", output),
		zap.Int("bytes", len(data)))
	return nil
}
