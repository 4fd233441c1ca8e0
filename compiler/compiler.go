// Package compiler turns folded Brainfuck instructions into a WASI
// command module.
//
// The emitted module imports fd_write and fd_read from
// wasi_snapshot_preview1, exports its memory and a _start function, and
// keeps the tape pointer in a single i32 local. Memory layout:
//
//	[0, 4)   iovec buffer address, rewritten before every call
//	[4, 8)   iovec length, always 1
//	[8, 12)  nwritten / nread result slot
//	[12, …)  tape; cell address is 12 + pointer
//
// Loops are emitted as an if wrapping a loop so the body is skipped when
// the cell is zero on entry, and the loop repeats while it is nonzero.
package compiler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/brainwasm/bf"
	"github.com/wippyai/brainwasm/errors"
	"github.com/wippyai/brainwasm/wasm"
)

// DefaultPages is the initial memory size used when Options.Pages is zero.
const DefaultPages = 8

// WASIModule is the import namespace for the I/O functions.
const WASIModule = "wasi_snapshot_preview1"

// Memory layout.
const (
	IOVecAddr  = 0
	IOVecLen   = 4
	ResultAddr = 8
	TapeOffset = 12
)

// Function indices in the emitted module. Imports come first.
const (
	FuncFdWrite uint32 = iota
	FuncFdRead
	FuncStart
)

const (
	pointerLocal uint32 = 0

	fdStdin  = 0
	fdStdout = 1
)

// Options controls module emission.
type Options struct {
	// Custom is appended after the name section when non-nil.
	Custom *wasm.CustomSection

	// Name is the module name recorded in the name section.
	// Empty means no module name.
	Name string

	// Pages is the initial memory size in 64KiB pages. 0 means DefaultPages.
	// No maximum is declared.
	Pages uint32

	// OmitNames drops the debug name section.
	OmitNames bool
}

func (o Options) pages() uint32 {
	if o.Pages == 0 {
		return DefaultPages
	}
	return o.Pages
}

// Compile parses source and emits the module binary.
func Compile(source string, opts Options) ([]byte, error) {
	instrs, err := bf.Parse(source)
	if err != nil {
		return nil, err
	}

	s := bf.Count(instrs)
	Logger().Debug("folded source",
		zap.Int("source_bytes", len(source)),
		zap.Int("instructions", len(instrs)),
		zap.Int("moves", s.Moves),
		zap.Int("adds", s.Adds),
		zap.Int("loops", s.Loops),
		zap.Int("max_depth", s.MaxDepth))

	return Emit(instrs, opts)
}

// Emit encodes the module for instrs. instrs must have balanced loop
// markers, as Parse guarantees; an unbalanced sequence is rejected by the
// encoder. An instruction with an unknown Op fails with an emit error.
func Emit(instrs []bf.Instruction, opts Options) ([]byte, error) {
	for i, in := range instrs {
		if in.Op < bf.MoveRight || in.Op > bf.LoopEnd {
			return nil, errors.InvalidInput(errors.PhaseEmit,
				fmt.Sprintf("instruction %d: unknown %s", i, in.Op))
		}
	}

	m := Build(instrs, opts)
	data, err := m.Encode()
	if err != nil {
		return nil, err
	}

	Logger().Debug("emitted module",
		zap.String("name", opts.Name),
		zap.Uint32("pages", opts.pages()),
		zap.Int("body_instructions", len(m.Code[0].Body)),
		zap.Int("bytes", len(data)))

	return data, nil
}

// Build returns the unencoded module description for instrs.
func Build(instrs []bf.Instruction, opts Options) *wasm.Module {
	m := &wasm.Module{}
	startType := m.AddType(wasm.FuncType{})
	ioType := m.AddType(wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32, wasm.ValI32, wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	})

	m.Imports = []wasm.Import{
		{Module: WASIModule, Name: "fd_write", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: ioType}},
		{Module: WASIModule, Name: "fd_read", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: ioType}},
	}
	m.Funcs = []uint32{startType}
	m.Memories = []wasm.MemoryType{{Limits: wasm.Limits{Min: uint64(opts.pages())}}}
	m.Exports = []wasm.Export{
		{Name: "_start", Kind: wasm.KindFunc, Idx: FuncStart},
		{Name: "memory", Kind: wasm.KindMemory, Idx: 0},
	}
	m.Code = []wasm.FuncBody{{
		Locals: []wasm.LocalEntry{{Count: 1, ValType: wasm.ValI32}},
		Body:   body(instrs),
	}}

	if !opts.OmitNames {
		m.CustomSections = append(m.CustomSections, names(opts.Name).Custom())
	}
	if opts.Custom != nil {
		m.CustomSections = append(m.CustomSections, *opts.Custom)
	}
	return m
}

func names(moduleName string) *wasm.NameSection {
	return &wasm.NameSection{
		ModuleName: moduleName,
		FunctionNames: []wasm.NameAssoc{
			{Idx: FuncFdWrite, Name: "fd_write"},
			{Idx: FuncFdRead, Name: "fd_read"},
			{Idx: FuncStart, Name: "_start"},
		},
		LocalNames: []wasm.LocalNames{{
			FuncIdx: FuncStart,
			Names:   []wasm.NameAssoc{{Idx: pointerLocal, Name: "pointer"}},
		}},
	}
}

func body(instrs []bf.Instruction) []wasm.Instruction {
	code := make([]wasm.Instruction, 0, 3+len(instrs)*8)

	// iovec length is constant
	code = append(code,
		wasm.I32Const(IOVecAddr),
		wasm.I32Const(1),
		wasm.I32Store(IOVecLen, 2),
	)

	for _, in := range instrs {
		code = appendInstruction(code, in)
	}
	return code
}

func appendInstruction(code []wasm.Instruction, in bf.Instruction) []wasm.Instruction {
	switch in.Op {
	case bf.MoveRight:
		return append(code,
			wasm.LocalGet(pointerLocal),
			wasm.I32Const(in.Delta),
			wasm.I32Add(),
			wasm.LocalSet(pointerLocal),
		)

	case bf.AddToCell:
		return append(code,
			wasm.LocalGet(pointerLocal),
			wasm.LocalGet(pointerLocal),
			wasm.I32Load8S(TapeOffset),
			wasm.I32Const(in.Delta),
			wasm.I32Add(),
			wasm.I32Store8(TapeOffset),
		)

	case bf.Output:
		return appendIO(code, fdStdout, FuncFdWrite)

	case bf.Input:
		return appendIO(code, fdStdin, FuncFdRead)

	case bf.LoopStart:
		return append(code,
			wasm.LocalGet(pointerLocal),
			wasm.I32Load8S(TapeOffset),
			wasm.If(),
			wasm.Loop(),
		)

	case bf.LoopEnd:
		return append(code,
			wasm.LocalGet(pointerLocal),
			wasm.I32Load8S(TapeOffset),
			wasm.BrIf(0),
			wasm.End(),
			wasm.End(),
		)
	}
	return code
}

// appendIO points the iovec at the current cell and traps unless the
// call returns status 0.
func appendIO(code []wasm.Instruction, fd int32, fn uint32) []wasm.Instruction {
	return append(code,
		wasm.I32Const(IOVecAddr),
		wasm.LocalGet(pointerLocal),
		wasm.I32Const(TapeOffset),
		wasm.I32Add(),
		wasm.I32Store(0, 2),
		wasm.I32Const(fd),
		wasm.I32Const(IOVecAddr),
		wasm.I32Const(1),
		wasm.I32Const(ResultAddr),
		wasm.Call(fn),
		wasm.If(),
		wasm.Unreachable(),
		wasm.End(),
	)
}
