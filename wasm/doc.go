// Package wasm assembles WebAssembly core modules.
//
// It models the subset of the binary format a standalone program needs:
// function types, function and memory imports, a linear memory, exports,
// function bodies built from structured control instructions, and
// custom sections (including the debug "name" section).
//
// # Building
//
// Describe a module and encode it:
//
//	m := &wasm.Module{
//	    Types:    []wasm.FuncType{{}},
//	    Funcs:    []uint32{0},
//	    Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
//	    Exports:  []wasm.Export{{Name: "_start", Kind: wasm.KindFunc, Idx: 0}},
//	    Code:     []wasm.FuncBody{{Body: []wasm.Instruction{wasm.Nop()}}},
//	}
//	data, err := m.Encode()
//
// Encode validates first and never produces bytes for a structurally
// invalid module: unbalanced block/loop/if/end markers, out-of-range type,
// function, local, label or export indices, and bad memory limits are all
// reported as *errors.Error values with phase "validate".
//
// Function bodies hold instructions without the trailing end, which the
// encoder appends.
//
// # Parsing
//
// ParseModule decodes modules produced by Encode (and any other module
// restricted to the same sections and instruction vocabulary):
//
//	m, err := wasm.ParseModule(data)
//	names, err := wasm.ParseNameSection(m.CustomSections[0].Data)
//
// # LEB128 Encoding
//
// The package provides LEB128 utilities used throughout:
//
//	n, err := wasm.ReadLEB128u(r)  // Unsigned
//	v, err := wasm.ReadLEB128s(r)  // Signed
package wasm
