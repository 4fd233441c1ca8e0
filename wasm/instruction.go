package wasm

import (
	"bytes"
	"fmt"

	"github.com/wippyai/brainwasm/errors"
)

// Instruction represents a single WebAssembly instruction
type Instruction struct {
	Imm    interface{}
	Opcode byte
}

// BlockImm holds the block type for block, loop and if instructions.
type BlockImm struct {
	Type int32 // Block type: -64=void, -1=i32, >=0=type index
}

// BranchImm holds the label index for br and br_if instructions.
type BranchImm struct {
	LabelIdx uint32
}

// CallImm holds the function index for call instruction.
type CallImm struct {
	FuncIdx uint32
}

// LocalImm holds the local index for local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// MemoryImm holds memory access parameters for load and store instructions.
// Align is the log2 of the alignment hint.
type MemoryImm struct {
	Offset uint32
	Align  uint32
}

// I32Imm holds the constant value for i32.const instruction.
type I32Imm struct {
	Value int32
}

// Instruction constructors

func Unreachable() Instruction { return Instruction{Opcode: OpUnreachable} }
func Nop() Instruction         { return Instruction{Opcode: OpNop} }
func Drop() Instruction        { return Instruction{Opcode: OpDrop} }
func Return() Instruction      { return Instruction{Opcode: OpReturn} }
func Else() Instruction        { return Instruction{Opcode: OpElse} }
func End() Instruction         { return Instruction{Opcode: OpEnd} }
func I32Add() Instruction      { return Instruction{Opcode: OpI32Add} }
func I32Sub() Instruction      { return Instruction{Opcode: OpI32Sub} }
func I32Eqz() Instruction      { return Instruction{Opcode: OpI32Eqz} }

// Block opens a block with the void block type.
func Block() Instruction {
	return Instruction{Opcode: OpBlock, Imm: BlockImm{Type: BlockTypeVoid}}
}

// Loop opens a loop with the void block type.
func Loop() Instruction {
	return Instruction{Opcode: OpLoop, Imm: BlockImm{Type: BlockTypeVoid}}
}

// If opens a conditional with the void block type.
func If() Instruction {
	return Instruction{Opcode: OpIf, Imm: BlockImm{Type: BlockTypeVoid}}
}

func Br(label uint32) Instruction {
	return Instruction{Opcode: OpBr, Imm: BranchImm{LabelIdx: label}}
}

func BrIf(label uint32) Instruction {
	return Instruction{Opcode: OpBrIf, Imm: BranchImm{LabelIdx: label}}
}

func Call(funcIdx uint32) Instruction {
	return Instruction{Opcode: OpCall, Imm: CallImm{FuncIdx: funcIdx}}
}

func LocalGet(idx uint32) Instruction {
	return Instruction{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: idx}}
}

func LocalSet(idx uint32) Instruction {
	return Instruction{Opcode: OpLocalSet, Imm: LocalImm{LocalIdx: idx}}
}

func LocalTee(idx uint32) Instruction {
	return Instruction{Opcode: OpLocalTee, Imm: LocalImm{LocalIdx: idx}}
}

func I32Const(v int32) Instruction {
	return Instruction{Opcode: OpI32Const, Imm: I32Imm{Value: v}}
}

func I32Load(offset, align uint32) Instruction {
	return Instruction{Opcode: OpI32Load, Imm: MemoryImm{Offset: offset, Align: align}}
}

func I32Load8S(offset uint32) Instruction {
	return Instruction{Opcode: OpI32Load8S, Imm: MemoryImm{Offset: offset}}
}

func I32Load8U(offset uint32) Instruction {
	return Instruction{Opcode: OpI32Load8U, Imm: MemoryImm{Offset: offset}}
}

func I32Store(offset, align uint32) Instruction {
	return Instruction{Opcode: OpI32Store, Imm: MemoryImm{Offset: offset, Align: align}}
}

func I32Store8(offset uint32) Instruction {
	return Instruction{Opcode: OpI32Store8, Imm: MemoryImm{Offset: offset}}
}

var mnemonics = map[byte]string{
	OpUnreachable: "unreachable",
	OpNop:         "nop",
	OpBlock:       "block",
	OpLoop:        "loop",
	OpIf:          "if",
	OpElse:        "else",
	OpEnd:         "end",
	OpBr:          "br",
	OpBrIf:        "br_if",
	OpReturn:      "return",
	OpCall:        "call",
	OpDrop:        "drop",
	OpLocalGet:    "local.get",
	OpLocalSet:    "local.set",
	OpLocalTee:    "local.tee",
	OpI32Load:     "i32.load",
	OpI32Load8S:   "i32.load8_s",
	OpI32Load8U:   "i32.load8_u",
	OpI32Store:    "i32.store",
	OpI32Store8:   "i32.store8",
	OpI32Const:    "i32.const",
	OpI32Eqz:      "i32.eqz",
	OpI32Add:      "i32.add",
	OpI32Sub:      "i32.sub",
}

// Mnemonic returns the text-format name of an opcode.
func Mnemonic(op byte) string {
	if name, ok := mnemonics[op]; ok {
		return name
	}
	return fmt.Sprintf("op(0x%02x)", op)
}

// String renders the instruction in text-format style, e.g. "i32.store8 offset=12".
func (i Instruction) String() string {
	name := Mnemonic(i.Opcode)
	switch imm := i.Imm.(type) {
	case I32Imm:
		return fmt.Sprintf("%s %d", name, imm.Value)
	case LocalImm:
		return fmt.Sprintf("%s %d", name, imm.LocalIdx)
	case CallImm:
		return fmt.Sprintf("%s %d", name, imm.FuncIdx)
	case BranchImm:
		return fmt.Sprintf("%s %d", name, imm.LabelIdx)
	case MemoryImm:
		s := name
		if imm.Offset != 0 {
			s += fmt.Sprintf(" offset=%d", imm.Offset)
		}
		if imm.Align != naturalAlign(i.Opcode) {
			s += fmt.Sprintf(" align=%d", uint32(1)<<imm.Align)
		}
		return s
	}
	return name
}

// GetCallTarget returns the call target if this is a call instruction
func (i Instruction) GetCallTarget() (uint32, bool) {
	if i.Opcode == OpCall {
		if imm, ok := i.Imm.(CallImm); ok {
			return imm.FuncIdx, true
		}
	}
	return 0, false
}

// IsBlockStart reports whether the instruction opens a structured block.
func (i Instruction) IsBlockStart() bool {
	return i.Opcode == OpBlock || i.Opcode == OpLoop || i.Opcode == OpIf
}

// naturalAlign returns the log2 natural alignment of a memory opcode.
func naturalAlign(op byte) uint32 {
	switch op {
	case OpI32Load, OpI32Store:
		return 2
	default:
		return 0
	}
}

func isMemoryOp(op byte) bool {
	switch op {
	case OpI32Load, OpI32Load8S, OpI32Load8U, OpI32Store, OpI32Store8:
		return true
	}
	return false
}

// EncodeInstructionTo writes one instruction to buf. It fails for opcodes
// outside the supported vocabulary and for immediates of the wrong type.
func EncodeInstructionTo(buf *bytes.Buffer, instr *Instruction) error {
	if _, ok := mnemonics[instr.Opcode]; !ok {
		return errors.Unsupported(errors.PhaseEncode, fmt.Sprintf("opcode 0x%02x", instr.Opcode))
	}
	buf.WriteByte(instr.Opcode)

	switch instr.Opcode {
	case OpBlock, OpLoop, OpIf:
		imm, ok := instr.Imm.(BlockImm)
		if !ok {
			return badImmediate(instr)
		}
		WriteLEB128s(buf, imm.Type)

	case OpBr, OpBrIf:
		imm, ok := instr.Imm.(BranchImm)
		if !ok {
			return badImmediate(instr)
		}
		WriteLEB128u(buf, imm.LabelIdx)

	case OpCall:
		imm, ok := instr.Imm.(CallImm)
		if !ok {
			return badImmediate(instr)
		}
		WriteLEB128u(buf, imm.FuncIdx)

	case OpLocalGet, OpLocalSet, OpLocalTee:
		imm, ok := instr.Imm.(LocalImm)
		if !ok {
			return badImmediate(instr)
		}
		WriteLEB128u(buf, imm.LocalIdx)

	case OpI32Load, OpI32Load8S, OpI32Load8U, OpI32Store, OpI32Store8:
		imm, ok := instr.Imm.(MemoryImm)
		if !ok {
			return badImmediate(instr)
		}
		WriteLEB128u(buf, imm.Align)
		WriteLEB128u(buf, imm.Offset)

	case OpI32Const:
		imm, ok := instr.Imm.(I32Imm)
		if !ok {
			return badImmediate(instr)
		}
		WriteLEB128s(buf, imm.Value)
	}
	return nil
}

// EncodeInstructionsTo writes multiple instructions to the provided buffer.
func EncodeInstructionsTo(buf *bytes.Buffer, instrs []Instruction) error {
	for i := range instrs {
		if err := EncodeInstructionTo(buf, &instrs[i]); err != nil {
			return err
		}
	}
	return nil
}

// EncodeInstructions encodes instructions to bytes
func EncodeInstructions(instrs []Instruction) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(instrs) * 3) // estimate 3 bytes per instruction
	if err := EncodeInstructionsTo(&buf, instrs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeInstructions decodes a sequence of instructions from raw bytes
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := bytes.NewReader(code)
	instrs := make([]Instruction, 0, len(code)/2)

	for r.Len() > 0 {
		offset := len(code) - r.Len()
		op, err := r.ReadByte()
		if err != nil {
			break
		}

		if _, ok := mnemonics[op]; !ok {
			return nil, errors.New(errors.PhaseDecode, errors.KindUnsupported).
				Detail("opcode 0x%02x at offset %d", op, offset).
				Build()
		}

		instr := Instruction{Opcode: op}

		switch op {
		case OpBlock, OpLoop, OpIf:
			bt, err := ReadLEB128s(r)
			if err != nil {
				return nil, errors.Decode("block type", err)
			}
			instr.Imm = BlockImm{Type: bt}

		case OpBr, OpBrIf:
			idx, err := ReadLEB128u(r)
			if err != nil {
				return nil, errors.Decode("label index", err)
			}
			instr.Imm = BranchImm{LabelIdx: idx}

		case OpCall:
			idx, err := ReadLEB128u(r)
			if err != nil {
				return nil, errors.Decode("function index", err)
			}
			instr.Imm = CallImm{FuncIdx: idx}

		case OpLocalGet, OpLocalSet, OpLocalTee:
			idx, err := ReadLEB128u(r)
			if err != nil {
				return nil, errors.Decode("local index", err)
			}
			instr.Imm = LocalImm{LocalIdx: idx}

		case OpI32Const:
			v, err := ReadLEB128s(r)
			if err != nil {
				return nil, errors.Decode("i32 constant", err)
			}
			instr.Imm = I32Imm{Value: v}

		default:
			if isMemoryOp(op) {
				align, err := ReadLEB128u(r)
				if err != nil {
					return nil, errors.Decode("memarg align", err)
				}
				off, err := ReadLEB128u(r)
				if err != nil {
					return nil, errors.Decode("memarg offset", err)
				}
				instr.Imm = MemoryImm{Offset: off, Align: align}
			}
		}

		instrs = append(instrs, instr)
	}

	return instrs, nil
}

func badImmediate(instr *Instruction) error {
	return errors.New(errors.PhaseEncode, errors.KindInvalidData).
		Detail("%s: unexpected immediate %T", Mnemonic(instr.Opcode), instr.Imm).
		Build()
}
