package wasm

// Module represents a WebAssembly core module.
//
// Only the sections needed to describe a standalone program are modelled:
// types, imports, functions, memories, exports, code and custom sections.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32 // Type indices for declared functions
	Memories []MemoryType
	Exports  []Export
	Code     []FuncBody

	// CustomSections are written after all known sections, in order.
	CustomSections []CustomSection
}

// FuncType represents a WebAssembly function signature with parameter and result types.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// ValType represents a WebAssembly value type.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	default:
		return "unknown"
	}
}

// Import represents an imported function or memory.
type Import struct {
	Desc   ImportDesc
	Module string
	Name   string
}

// ImportDesc describes an imported item.
// Kind uses KindFunc or KindMemory.
type ImportDesc struct {
	Memory  *MemoryType
	TypeIdx uint32
	Kind    byte
}

// MemoryType describes a linear memory.
type MemoryType struct {
	Limits Limits
}

// Limits bound a memory in pages. A nil Max declares no upper limit.
type Limits struct {
	Max *uint64
	Min uint64
}

// Export makes a function or memory visible to the host under Name.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// FuncBody holds the locals and instructions of one defined function.
// Body must not include the closing end; the encoder appends it.
type FuncBody struct {
	Locals []LocalEntry
	Body   []Instruction
}

// LocalEntry declares Count consecutive locals of the same type.
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// CustomSection is an opaque named blob.
type CustomSection struct {
	Name string
	Data []byte
}

// NumImportedFuncs returns the count of imported functions
func (m *Module) NumImportedFuncs() int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == KindFunc {
			n++
		}
	}
	return n
}

// NumImportedMemories returns the count of imported memories
func (m *Module) NumImportedMemories() int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == KindMemory {
			n++
		}
	}
	return n
}

// NumFuncs returns the size of the function index space.
func (m *Module) NumFuncs() int {
	return m.NumImportedFuncs() + len(m.Funcs)
}

// GetFuncType returns the type of a function by its index in the
// function index space, or nil when the index or its type is unknown.
func (m *Module) GetFuncType(funcIdx uint32) *FuncType {
	var typeIdx uint32
	found := false
	var n uint32
	for _, imp := range m.Imports {
		if imp.Desc.Kind != KindFunc {
			continue
		}
		if n == funcIdx {
			typeIdx = imp.Desc.TypeIdx
			found = true
			break
		}
		n++
	}
	if !found {
		// funcIdx >= n here: every imported function was visited
		local := funcIdx - n
		if int(local) >= len(m.Funcs) {
			return nil
		}
		typeIdx = m.Funcs[local]
	}
	if int(typeIdx) >= len(m.Types) {
		return nil
	}
	return &m.Types[typeIdx]
}

// AddType adds a function type and returns its index, reusing existing if equal
func (m *Module) AddType(ft FuncType) uint32 {
	for i, existing := range m.Types {
		if typesEqual(existing, ft) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

// NumLocals returns how many locals a body declares, excluding parameters.
func (b *FuncBody) NumLocals() uint64 {
	var n uint64
	for _, l := range b.Locals {
		n += uint64(l.Count)
	}
	return n
}

func typesEqual(a, b FuncType) bool {
	if len(a.Params) != len(b.Params) || len(a.Results) != len(b.Results) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	for i := range a.Results {
		if a.Results[i] != b.Results[i] {
			return false
		}
	}
	return true
}
