package wasm_test

import (
	"bytes"
	"testing"

	"github.com/wippyai/brainwasm/wasm"
)

func TestNameSectionRoundTrip(t *testing.T) {
	ns := &wasm.NameSection{
		ModuleName: "hello",
		FunctionNames: []wasm.NameAssoc{
			{Idx: 2, Name: "_start"},
			{Idx: 0, Name: "fd_write"},
			{Idx: 1, Name: "fd_read"},
		},
		LocalNames: []wasm.LocalNames{
			{FuncIdx: 2, Names: []wasm.NameAssoc{{Idx: 0, Name: "pointer"}}},
		},
	}

	cs := ns.Custom()
	if cs.Name != "name" {
		t.Fatalf("section name = %q", cs.Name)
	}

	parsed, err := wasm.ParseNameSection(cs.Data)
	if err != nil {
		t.Fatalf("ParseNameSection: %v", err)
	}
	if parsed.ModuleName != "hello" {
		t.Errorf("ModuleName = %q", parsed.ModuleName)
	}
	if len(parsed.FunctionNames) != 3 {
		t.Fatalf("got %d function names", len(parsed.FunctionNames))
	}
	for i, want := range []string{"fd_write", "fd_read", "_start"} {
		if parsed.FunctionNames[i].Idx != uint32(i) || parsed.FunctionNames[i].Name != want {
			t.Errorf("function name %d = %+v, want %q", i, parsed.FunctionNames[i], want)
		}
	}
	if name, ok := parsed.LocalName(2, 0); !ok || name != "pointer" {
		t.Errorf("LocalName(2, 0) = %q, %v", name, ok)
	}
	if _, ok := parsed.LocalName(2, 1); ok {
		t.Error("unexpected name for local 1")
	}
	if name, ok := parsed.FunctionName(1); !ok || name != "fd_read" {
		t.Errorf("FunctionName(1) = %q, %v", name, ok)
	}
}

func TestNameSectionBytes(t *testing.T) {
	ns := &wasm.NameSection{
		FunctionNames: []wasm.NameAssoc{{Idx: 0, Name: "f"}},
		LocalNames:    []wasm.LocalNames{{FuncIdx: 0, Names: []wasm.NameAssoc{{Idx: 0, Name: "p"}}}},
	}
	want := []byte{
		wasm.NameSubsectionFunction, 0x04, 0x01, 0x00, 0x01, 'f',
		wasm.NameSubsectionLocal, 0x06, 0x01, 0x00, 0x01, 0x00, 0x01, 'p',
	}
	if got := ns.Custom().Data; !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestNameSectionEmpty(t *testing.T) {
	ns := &wasm.NameSection{}
	if data := ns.Custom().Data; len(data) != 0 {
		t.Errorf("expected empty payload, got % x", data)
	}
}

func TestParseNameSectionSkipsUnknown(t *testing.T) {
	data := []byte{
		0x07, 0x02, 0xAA, 0xBB, // unknown subsection
		wasm.NameSubsectionModule, 0x02, 0x01, 'm',
	}
	ns, err := wasm.ParseNameSection(data)
	if err != nil {
		t.Fatalf("ParseNameSection: %v", err)
	}
	if ns.ModuleName != "m" {
		t.Errorf("ModuleName = %q", ns.ModuleName)
	}
}

func TestParseNameSectionTruncated(t *testing.T) {
	if _, err := wasm.ParseNameSection([]byte{wasm.NameSubsectionFunction, 0x05, 0x01}); err == nil {
		t.Error("expected error for truncated subsection")
	}
}

func TestParseNameSectionHugeCount(t *testing.T) {
	data := []byte{wasm.NameSubsectionFunction, 0x05, 0xFF, 0xFF, 0xFF, 0xFF, 0x0F}
	if _, err := wasm.ParseNameSection(data); err == nil {
		t.Error("expected error for function name count beyond payload")
	}
}
