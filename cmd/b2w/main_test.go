package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/wippyai/brainwasm/wasm"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execRoot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	return out.String(), err
}

func readModule(t *testing.T, path string) *wasm.Module {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	m, err := wasm.ParseModuleValidate(data)
	if err != nil {
		t.Fatalf("ParseModuleValidate: %v", err)
	}
	return m
}

func TestBuildCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "echo.bf", ",[.,]")
	out := filepath.Join(dir, "echo.wasm")

	if _, err := execRoot(t, "", in, out); err != nil {
		t.Fatalf("build: %v", err)
	}

	m := readModule(t, out)
	if m.Memories[0].Limits.Min != 8 {
		t.Errorf("pages = %d, want 8", m.Memories[0].Limits.Min)
	}
	if len(m.CustomSections) != 2 {
		t.Fatalf("expected name and signature sections, got %d", len(m.CustomSections))
	}

	ns, err := wasm.ParseNameSection(m.CustomSections[0].Data)
	if err != nil {
		t.Fatal(err)
	}
	if ns.ModuleName != "echo.bf" {
		t.Errorf("module name = %q, want echo.bf", ns.ModuleName)
	}

	sig := m.CustomSections[1]
	if sig.Name != "b2w" || !strings.Contains(string(sig.Data), "created using `b2w`") {
		t.Errorf("signature section = %s %q", sig.Name, sig.Data)
	}
}

func TestBuildCommandFlags(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "p.bf", "+.")
	out := filepath.Join(dir, "p.wasm")

	if _, err := execRoot(t, "", in, out, "--pages", "2", "--no-custom", "--no-names"); err != nil {
		t.Fatalf("build: %v", err)
	}
	m := readModule(t, out)
	if m.Memories[0].Limits.Min != 2 {
		t.Errorf("pages = %d, want 2", m.Memories[0].Limits.Min)
	}
	if len(m.CustomSections) != 0 {
		t.Errorf("expected no custom sections, got %+v", m.CustomSections)
	}

	if _, err := execRoot(t, "", in, out, "--name", "custom"); err != nil {
		t.Fatalf("build: %v", err)
	}
	m = readModule(t, out)
	ns, err := wasm.ParseNameSection(m.CustomSections[0].Data)
	if err != nil {
		t.Fatal(err)
	}
	if ns.ModuleName != "custom" {
		t.Errorf("module name = %q, want custom", ns.ModuleName)
	}
}

func TestBuildCommandErrors(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "bad.bf", "[[]")
	out := filepath.Join(dir, "bad.wasm")

	_, err := execRoot(t, "", in, out)
	if err == nil || !strings.Contains(err.Error(), "bracket_mismatch") {
		t.Fatalf("expected bracket mismatch, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("output written despite compile error")
	}

	if _, err := execRoot(t, "", filepath.Join(dir, "missing.bf"), out); err == nil {
		t.Error("expected error for missing input")
	}
	if _, err := execRoot(t, "", in); err == nil {
		t.Error("expected error for missing output argument")
	}
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "echo.bf", ",.,.")

	out, err := execRoot(t, "", "run", src, "--stdin", "hi")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "hi" {
		t.Errorf("output = %q, want hi", out)
	}

	out, err = execRoot(t, "ok", "run", src)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "ok" {
		t.Errorf("output = %q, want ok", out)
	}

	// a compiled module runs unchanged
	mod := filepath.Join(dir, "echo.wasm")
	if _, err := execRoot(t, "", src, mod); err != nil {
		t.Fatal(err)
	}
	out, err = execRoot(t, "", "run", mod, "--stdin", "yo")
	if err != nil {
		t.Fatalf("run wasm: %v", err)
	}
	if out != "yo" {
		t.Errorf("output = %q, want yo", out)
	}
}

func TestRunCommandTimeout(t *testing.T) {
	src := writeFile(t, t.TempDir(), "spin.bf", "+[]")

	_, err := execRoot(t, "", "run", src, "--timeout", "100ms")
	if err == nil || !strings.Contains(err.Error(), "cancelled") {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestInspectCommand(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "hello.bf", "+[-].")
	mod := filepath.Join(dir, "hello.wasm")
	if _, err := execRoot(t, "", src, mod); err != nil {
		t.Fatal(err)
	}

	out, err := execRoot(t, "", "inspect", mod)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{
		"module hello.bf",
		"(i32 i32 i32 i32) -> (i32)",
		"wasi_snapshot_preview1.fd_write",
		"wasi_snapshot_preview1.fd_read",
		"func 2 _start",
		"local 0 pointer",
		"min 8 pages",
		"memory memory 0",
		"b2w (",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q:\n%s", want, out)
		}
	}

	if _, err := execRoot(t, "", "inspect", src); err == nil {
		t.Error("expected error inspecting a non-wasm file")
	}
}

func TestPlayRequiresTerminal(t *testing.T) {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		t.Skip("stdout is a terminal")
	}
	_, err := execRoot(t, "", "play")
	if err == nil || !strings.Contains(err.Error(), "terminal") {
		t.Errorf("expected terminal error, got %v", err)
	}
}

func TestPlayModelRun(t *testing.T) {
	m := newPlayModel("+++[.-]")
	m.stdin.SetValue("")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	if !m.running {
		t.Fatal("ctrl+r did not start a run")
	}
	if cmd == nil {
		t.Fatal("ctrl+r returned no command")
	}

	msg, ok := cmd().(runResultMsg)
	if !ok {
		t.Fatal("run command did not produce a result")
	}
	if msg.err != nil {
		t.Fatalf("run: %v", msg.err)
	}
	if msg.output != "\x03\x02\x01" {
		t.Errorf("output = %q", msg.output)
	}

	m.Update(msg)
	if m.running || !m.ran {
		t.Error("result did not update state")
	}
	if !strings.Contains(m.View(), "output") {
		t.Error("view does not show output")
	}
	if m.summary() == "" || !strings.Contains(m.summary(), "1 loops") {
		t.Errorf("summary = %q", m.summary())
	}
}

func TestPlayModelErrors(t *testing.T) {
	res := runSource("[", "")
	if res.err == nil || !strings.Contains(res.err.Error(), "bracket_mismatch") {
		t.Errorf("expected bracket mismatch, got %v", res.err)
	}

	res = runSource("+[]", "")
	if res.err == nil || !strings.Contains(res.err.Error(), "cancelled") {
		t.Errorf("expected timeout, got %v", res.err)
	}
}

func TestPlayModelFocus(t *testing.T) {
	m := newPlayModel("")
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != focusStdin {
		t.Error("tab did not move focus to stdin")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != focusSource {
		t.Error("tab did not move focus back to source")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc}); cmd == nil {
		t.Error("esc did not quit")
	}
}

func TestPrintable(t *testing.T) {
	if got := printable("a\x01b\n"); got != "a·b\n" {
		t.Errorf("printable = %q", got)
	}
}
