package compiler_test

import (
	"bytes"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/brainwasm/bf"
	"github.com/wippyai/brainwasm/compiler"
	bwerrors "github.com/wippyai/brainwasm/errors"
	"github.com/wippyai/brainwasm/wasm"
)

const prologueLen = 3

func TestBuildStructure(t *testing.T) {
	m := compiler.Build(nil, compiler.Options{Name: "empty"})

	if len(m.Types) != 2 {
		t.Fatalf("expected 2 types, got %d", len(m.Types))
	}
	if len(m.Types[0].Params) != 0 || len(m.Types[0].Results) != 0 {
		t.Errorf("type 0 = %+v, want () -> ()", m.Types[0])
	}
	if len(m.Types[1].Params) != 4 || len(m.Types[1].Results) != 1 {
		t.Errorf("type 1 = %+v, want (i32 i32 i32 i32) -> i32", m.Types[1])
	}
	for _, p := range m.Types[1].Params {
		if p != wasm.ValI32 {
			t.Errorf("type 1 param %s, want i32", p)
		}
	}

	wantImports := []string{"fd_write", "fd_read"}
	if len(m.Imports) != len(wantImports) {
		t.Fatalf("expected %d imports, got %d", len(wantImports), len(m.Imports))
	}
	for i, imp := range m.Imports {
		if imp.Module != "wasi_snapshot_preview1" || imp.Name != wantImports[i] {
			t.Errorf("import %d = %s.%s", i, imp.Module, imp.Name)
		}
		if imp.Desc.Kind != wasm.KindFunc || imp.Desc.TypeIdx != 1 {
			t.Errorf("import %d desc = %+v", i, imp.Desc)
		}
	}

	if len(m.Funcs) != 1 || m.Funcs[0] != 0 {
		t.Errorf("funcs = %v, want [0]", m.Funcs)
	}
	if len(m.Memories) != 1 || m.Memories[0].Limits.Min != compiler.DefaultPages || m.Memories[0].Limits.Max != nil {
		t.Errorf("memories = %+v", m.Memories)
	}

	if len(m.Exports) != 2 ||
		m.Exports[0] != (wasm.Export{Name: "_start", Kind: wasm.KindFunc, Idx: compiler.FuncStart}) ||
		m.Exports[1] != (wasm.Export{Name: "memory", Kind: wasm.KindMemory, Idx: 0}) {
		t.Errorf("exports = %+v", m.Exports)
	}

	if len(m.Code) != 1 {
		t.Fatalf("expected 1 body, got %d", len(m.Code))
	}
	if m.Code[0].NumLocals() != 1 || m.Code[0].Locals[0].ValType != wasm.ValI32 {
		t.Errorf("locals = %+v, want one i32", m.Code[0].Locals)
	}

	wantPrologue := []string{"i32.const 0", "i32.const 1", "i32.store offset=4"}
	assertInstructions(t, m.Code[0].Body, wantPrologue)
}

func TestBuildTemplates(t *testing.T) {
	output := []string{
		"i32.const 0", "local.get 0", "i32.const 12", "i32.add", "i32.store",
		"i32.const 1", "i32.const 0", "i32.const 1", "i32.const 8",
		"call 0", "if", "unreachable", "end",
	}
	input := append([]string{}, output...)
	input[5] = "i32.const 0"
	input[9] = "call 1"

	tests := []struct {
		name  string
		instr bf.Instruction
		want  []string
	}{
		{
			name:  "move right",
			instr: bf.Move(3),
			want:  []string{"local.get 0", "i32.const 3", "i32.add", "local.set 0"},
		},
		{
			name:  "move left",
			instr: bf.Move(-2),
			want:  []string{"local.get 0", "i32.const -2", "i32.add", "local.set 0"},
		},
		{
			name:  "add",
			instr: bf.Add(-1),
			want: []string{
				"local.get 0", "local.get 0", "i32.load8_s offset=12",
				"i32.const -1", "i32.add", "i32.store8 offset=12",
			},
		},
		{name: "output", instr: bf.Instruction{Op: bf.Output}, want: output},
		{name: "input", instr: bf.Instruction{Op: bf.Input}, want: input},
		{
			name:  "loop start",
			instr: bf.Instruction{Op: bf.LoopStart},
			want:  []string{"local.get 0", "i32.load8_s offset=12", "if", "loop"},
		},
		{
			name:  "loop end",
			instr: bf.Instruction{Op: bf.LoopEnd},
			want:  []string{"local.get 0", "i32.load8_s offset=12", "br_if 0", "end", "end"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := compiler.Build([]bf.Instruction{tt.instr}, compiler.Options{})
			assertInstructions(t, m.Code[0].Body[prologueLen:], tt.want)
		})
	}
}

func TestEmitNameSection(t *testing.T) {
	data, err := compiler.Compile("+.", compiler.Options{Name: "hello"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	m, err := wasm.ParseModuleValidate(data)
	if err != nil {
		t.Fatalf("ParseModuleValidate: %v", err)
	}
	if len(m.CustomSections) != 1 || m.CustomSections[0].Name != "name" {
		t.Fatalf("custom sections = %+v", m.CustomSections)
	}

	ns, err := wasm.ParseNameSection(m.CustomSections[0].Data)
	if err != nil {
		t.Fatalf("ParseNameSection: %v", err)
	}
	if ns.ModuleName != "hello" {
		t.Errorf("module name = %q", ns.ModuleName)
	}
	for idx, want := range map[uint32]string{0: "fd_write", 1: "fd_read", 2: "_start"} {
		if got, ok := ns.FunctionName(idx); !ok || got != want {
			t.Errorf("function %d name = %q, want %q", idx, got, want)
		}
	}
	if got, ok := ns.LocalName(compiler.FuncStart, 0); !ok || got != "pointer" {
		t.Errorf("local name = %q, want pointer", got)
	}
}

func TestEmitUnnamedModule(t *testing.T) {
	data, err := compiler.Compile("", compiler.Options{})
	if err != nil {
		t.Fatal(err)
	}
	m, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatal(err)
	}
	ns, err := wasm.ParseNameSection(m.CustomSections[0].Data)
	if err != nil {
		t.Fatal(err)
	}
	if ns.ModuleName != "" {
		t.Errorf("expected no module name, got %q", ns.ModuleName)
	}
	if len(ns.FunctionNames) != 3 {
		t.Errorf("expected 3 function names, got %d", len(ns.FunctionNames))
	}
}

func TestEmitCustomSectionOrder(t *testing.T) {
	custom := &wasm.CustomSection{Name: "b2w", Data: []byte("note")}

	data, err := compiler.Compile("", compiler.Options{Name: "x", Custom: custom})
	if err != nil {
		t.Fatal(err)
	}
	m, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.CustomSections) != 2 ||
		m.CustomSections[0].Name != "name" ||
		m.CustomSections[1].Name != "b2w" ||
		string(m.CustomSections[1].Data) != "note" {
		t.Errorf("custom sections = %+v", m.CustomSections)
	}

	data, err = compiler.Compile("", compiler.Options{Custom: custom, OmitNames: true})
	if err != nil {
		t.Fatal(err)
	}
	m, err = wasm.ParseModule(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.CustomSections) != 1 || m.CustomSections[0].Name != "b2w" {
		t.Errorf("custom sections = %+v", m.CustomSections)
	}
}

func TestEmitPages(t *testing.T) {
	m := compiler.Build(nil, compiler.Options{Pages: 2})
	if m.Memories[0].Limits.Min != 2 {
		t.Errorf("min pages = %d, want 2", m.Memories[0].Limits.Min)
	}

	_, err := compiler.Emit(nil, compiler.Options{Pages: 65537})
	if err == nil {
		t.Fatal("expected error for oversized memory")
	}
	target := &bwerrors.Error{Phase: bwerrors.PhaseValidate, Kind: bwerrors.KindLimit}
	if !errors.Is(err, target) {
		t.Errorf("expected limit error, got %v", err)
	}
}

func TestEmitRejectsUnbalancedSequence(t *testing.T) {
	data, err := compiler.Emit([]bf.Instruction{{Op: bf.LoopStart}}, compiler.Options{})
	if err == nil {
		t.Fatal("expected error for unclosed loop")
	}
	if data != nil {
		t.Error("Emit returned bytes alongside an error")
	}
	target := &bwerrors.Error{Phase: bwerrors.PhaseValidate, Kind: bwerrors.KindUnbalancedBlock}
	if !errors.Is(err, target) {
		t.Errorf("expected unbalanced_block, got %v", err)
	}
}

func TestEmitRejectsUnknownOp(t *testing.T) {
	instrs := []bf.Instruction{bf.Add(1), {Op: bf.Op(42)}}
	data, err := compiler.Emit(instrs, compiler.Options{})
	target := &bwerrors.Error{Phase: bwerrors.PhaseEmit, Kind: bwerrors.KindInvalidInput}
	if !errors.Is(err, target) {
		t.Fatalf("expected emit invalid_input, got %v", err)
	}
	if data != nil {
		t.Error("Emit returned bytes alongside an error")
	}

	if _, err := compiler.Emit([]bf.Instruction{{}}, compiler.Options{}); !errors.Is(err, target) {
		t.Errorf("zero instruction: expected emit invalid_input, got %v", err)
	}
}

func TestCompileBracketMismatch(t *testing.T) {
	data, err := compiler.Compile("[[]", compiler.Options{})
	if !errors.Is(err, bf.ErrBracketMismatch) {
		t.Fatalf("expected ErrBracketMismatch, got %v", err)
	}
	if data != nil {
		t.Error("Compile returned bytes alongside an error")
	}
}

func TestCompileDeterministic(t *testing.T) {
	src := "++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++."
	opts := compiler.Options{Name: "hello", Custom: &wasm.CustomSection{Name: "b2w", Data: []byte("x")}}

	a, err := compiler.Compile(src, opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := compiler.Compile(src, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("compiling the same source twice produced different bytes")
	}
	if _, err := wasm.ParseModuleValidate(a); err != nil {
		t.Errorf("emitted module does not validate: %v", err)
	}
}

func TestCompileLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	compiler.SetLogger(zap.New(core))
	defer compiler.SetLogger(nil)

	if _, err := compiler.Compile("+[-].", compiler.Options{Name: "logged"}); err != nil {
		t.Fatal(err)
	}

	if n := logs.FilterMessage("folded source").Len(); n != 1 {
		t.Errorf("expected 1 fold log entry, got %d", n)
	}
	emitted := logs.FilterMessage("emitted module").All()
	if len(emitted) != 1 {
		t.Fatalf("expected 1 emit log entry, got %d", len(emitted))
	}
	if got := emitted[0].ContextMap()["name"]; got != "logged" {
		t.Errorf("logged name = %v", got)
	}
}

func assertInstructions(t *testing.T, got []wasm.Instruction, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d instructions, want %d: %v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].String() != w {
			t.Errorf("instr %d = %q, want %q", i, got[i].String(), w)
		}
	}
}
