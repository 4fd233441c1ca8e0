package wasm

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported WebAssembly binary format version.
	Version uint32 = 0x01
)

// Section IDs define the binary identifiers for each module section.
// Sections must appear in increasing order by ID (except custom sections).
const (
	SectionCustom   byte = 0  // Custom section (can appear anywhere)
	SectionType     byte = 1  // Type section (function signatures)
	SectionImport   byte = 2  // Import section
	SectionFunction byte = 3  // Function section (type indices)
	SectionMemory   byte = 5  // Memory section
	SectionExport   byte = 7  // Export section
	SectionCode     byte = 10 // Code section (function bodies)
)

// Import/Export descriptor kinds identify the type of imported or exported item.
const (
	KindFunc   byte = 0
	KindTable  byte = 1
	KindMemory byte = 2
	KindGlobal byte = 3
)

// Value type encodings as defined in the WebAssembly binary format.
const (
	ValI32 ValType = 0x7F
	ValI64 ValType = 0x7E
	ValF32 ValType = 0x7D
	ValF64 ValType = 0x7C
)

// BlockTypeVoid is the empty block type (0x40 as s33).
const BlockTypeVoid int32 = -64

// Control flow opcodes
const (
	OpUnreachable byte = 0x00
	OpNop         byte = 0x01
	OpBlock       byte = 0x02
	OpLoop        byte = 0x03
	OpIf          byte = 0x04
	OpElse        byte = 0x05
	OpEnd         byte = 0x0B
	OpBr          byte = 0x0C
	OpBrIf        byte = 0x0D
	OpReturn      byte = 0x0F
	OpCall        byte = 0x10
)

// Parametric opcodes
const (
	OpDrop byte = 0x1A
)

// Variable access opcodes
const (
	OpLocalGet byte = 0x20
	OpLocalSet byte = 0x21
	OpLocalTee byte = 0x22
)

// Memory opcodes
const (
	OpI32Load   byte = 0x28
	OpI32Load8S byte = 0x2C
	OpI32Load8U byte = 0x2D
	OpI32Store  byte = 0x36
	OpI32Store8 byte = 0x3A
)

// Numeric opcodes
const (
	OpI32Const byte = 0x41
	OpI32Eqz   byte = 0x45
	OpI32Add   byte = 0x6A
	OpI32Sub   byte = 0x6B
)

// Limits flags
const (
	LimitsNoMax  byte = 0x00
	LimitsHasMax byte = 0x01
)

// MemoryMaxPages is the largest page count a 32-bit memory may declare.
const MemoryMaxPages uint64 = 65536

// PageSize is the size of one linear memory page in bytes.
const PageSize = 65536

// FuncTypeByte introduces a function type in the type section.
const FuncTypeByte byte = 0x60

// Name section subsection IDs.
const (
	NameSubsectionModule   byte = 0
	NameSubsectionFunction byte = 1
	NameSubsectionLocal    byte = 2
)

// NameSectionName is the custom section name carrying debug names.
const NameSectionName = "name"
