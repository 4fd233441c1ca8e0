package wasm

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/wippyai/brainwasm/errors"
)

// Validate checks the module for structural validity.
//
// It covers index bounds, limits and the nesting of structured control
// instructions. It does not type-check operand stacks.
func (m *Module) Validate() error {
	if err := m.validateTypeIndices(); err != nil {
		return err
	}
	if err := m.validateImports(); err != nil {
		return err
	}
	if err := m.validateMemories(); err != nil {
		return err
	}
	if err := m.validateExports(); err != nil {
		return err
	}
	if err := m.validateCodeCount(); err != nil {
		return err
	}
	for i := range m.Code {
		if err := m.validateBody(i); err != nil {
			return err
		}
	}
	if err := m.validateCustomSections(); err != nil {
		return err
	}
	return nil
}

// ParseModuleValidate parses a WebAssembly binary and validates it.
// This is a convenience function combining ParseModule and Validate.
func ParseModuleValidate(data []byte) (*Module, error) {
	m, err := ParseModule(data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Module) validateTypeIndices() error {
	numTypes := len(m.Types)

	for i, typeIdx := range m.Funcs {
		if int(typeIdx) >= numTypes {
			return errors.OutOfBounds(errors.PhaseValidate, []string{"funcs", strconv.Itoa(i), "type"}, int(typeIdx), numTypes)
		}
	}

	for i, imp := range m.Imports {
		if imp.Desc.Kind == KindFunc && int(imp.Desc.TypeIdx) >= numTypes {
			return errors.OutOfBounds(errors.PhaseValidate, []string{"imports", strconv.Itoa(i), "type"}, int(imp.Desc.TypeIdx), numTypes)
		}
	}

	return nil
}

func (m *Module) validateImports() error {
	for i, imp := range m.Imports {
		path := []string{"imports", strconv.Itoa(i)}
		if !utf8.ValidString(imp.Module) || !utf8.ValidString(imp.Name) {
			return errors.InvalidData(errors.PhaseValidate, path, "import name is not valid UTF-8")
		}
		switch imp.Desc.Kind {
		case KindFunc:
		case KindMemory:
			if imp.Desc.Memory == nil {
				return errors.InvalidData(errors.PhaseValidate, path, "memory import without memory type")
			}
		default:
			return errors.Unsupported(errors.PhaseValidate, fmt.Sprintf("import %s.%s: kind %d", imp.Module, imp.Name, imp.Desc.Kind))
		}
	}
	return nil
}

func (m *Module) validateMemories() error {
	total := m.NumImportedMemories() + len(m.Memories)
	if total > 1 {
		return errors.New(errors.PhaseValidate, errors.KindLimit).
			Path("memories").
			Detail("%d memories declared, at most one allowed", total).
			Build()
	}

	for i, imp := range m.Imports {
		if imp.Desc.Kind == KindMemory {
			if err := validateLimits(imp.Desc.Memory.Limits, []string{"imports", strconv.Itoa(i)}); err != nil {
				return err
			}
		}
	}
	for i := range m.Memories {
		if err := validateLimits(m.Memories[i].Limits, []string{"memories", strconv.Itoa(i)}); err != nil {
			return err
		}
	}
	return nil
}

func validateLimits(l Limits, path []string) error {
	if l.Min > MemoryMaxPages {
		return errors.New(errors.PhaseValidate, errors.KindLimit).
			Path(path...).
			Value(l.Min).
			Detail("min pages %d exceeds maximum %d", l.Min, MemoryMaxPages).
			Build()
	}
	if l.Max != nil {
		if *l.Max > MemoryMaxPages {
			return errors.New(errors.PhaseValidate, errors.KindLimit).
				Path(path...).
				Value(*l.Max).
				Detail("max pages %d exceeds maximum %d", *l.Max, MemoryMaxPages).
				Build()
		}
		if l.Min > *l.Max {
			return errors.New(errors.PhaseValidate, errors.KindLimit).
				Path(path...).
				Detail("min pages %d exceeds max %d", l.Min, *l.Max).
				Build()
		}
	}
	return nil
}

func (m *Module) validateExports() error {
	numFuncs := m.NumFuncs()
	numMems := m.NumImportedMemories() + len(m.Memories)
	seen := make(map[string]bool, len(m.Exports))

	for _, exp := range m.Exports {
		path := []string{"exports", exp.Name}
		if exp.Name == "" {
			return errors.InvalidData(errors.PhaseValidate, []string{"exports"}, "empty export name")
		}
		if !utf8.ValidString(exp.Name) {
			return errors.InvalidData(errors.PhaseValidate, path, "export name is not valid UTF-8")
		}
		if seen[exp.Name] {
			return errors.New(errors.PhaseValidate, errors.KindDuplicate).
				Path(path...).
				Detail("duplicate export name %q", exp.Name).
				Build()
		}
		seen[exp.Name] = true

		switch exp.Kind {
		case KindFunc:
			if int(exp.Idx) >= numFuncs {
				return errors.OutOfBounds(errors.PhaseValidate, path, int(exp.Idx), numFuncs)
			}
		case KindMemory:
			if int(exp.Idx) >= numMems {
				return errors.OutOfBounds(errors.PhaseValidate, path, int(exp.Idx), numMems)
			}
		default:
			return errors.Unsupported(errors.PhaseValidate, fmt.Sprintf("export %q: kind %d", exp.Name, exp.Kind))
		}
	}
	return nil
}

func (m *Module) validateCodeCount() error {
	if len(m.Code) != len(m.Funcs) {
		return errors.New(errors.PhaseValidate, errors.KindInvalidData).
			Path("code").
			Detail("%d function bodies for %d declared functions", len(m.Code), len(m.Funcs)).
			Build()
	}
	return nil
}

// validateBody checks index immediates and block nesting of one function body.
// The function body itself is the outermost label, so a branch at nesting
// depth d may target labels 0..d.
func (m *Module) validateBody(i int) error {
	body := &m.Code[i]
	ft := m.GetFuncType(uint32(m.NumImportedFuncs() + i))
	if ft == nil {
		return errors.InvalidData(errors.PhaseValidate, []string{"code", strconv.Itoa(i)}, "function has no type")
	}
	numLocals := uint64(len(ft.Params)) + body.NumLocals()
	numFuncs := m.NumFuncs()
	hasMemory := m.NumImportedMemories()+len(m.Memories) > 0

	// stack of open block opcodes
	var open []byte

	for j, instr := range body.Body {
		path := []string{"code", strconv.Itoa(i), "instr", strconv.Itoa(j)}

		if instr.IsBlockStart() {
			open = append(open, instr.Opcode)
			continue
		}

		switch instr.Opcode {
		case OpElse:
			if len(open) == 0 || open[len(open)-1] != OpIf {
				return errors.New(errors.PhaseValidate, errors.KindUnbalancedBlock).
					Path(path...).
					Detail("else outside of if").
					Build()
			}
			// else may appear once per if; mark it consumed
			open[len(open)-1] = OpElse

		case OpEnd:
			if len(open) == 0 {
				return errors.New(errors.PhaseValidate, errors.KindUnbalancedBlock).
					Path(path...).
					Detail("end without open block").
					Build()
			}
			open = open[:len(open)-1]

		case OpBr, OpBrIf:
			imm, ok := instr.Imm.(BranchImm)
			if !ok {
				return badImmediateAt(path, instr)
			}
			if int(imm.LabelIdx) > len(open) {
				return errors.OutOfBounds(errors.PhaseValidate, path, int(imm.LabelIdx), len(open)+1)
			}

		case OpCall:
			target, ok := instr.GetCallTarget()
			if !ok {
				return badImmediateAt(path, instr)
			}
			if int(target) >= numFuncs {
				return errors.OutOfBounds(errors.PhaseValidate, path, int(target), numFuncs)
			}

		case OpLocalGet, OpLocalSet, OpLocalTee:
			imm, ok := instr.Imm.(LocalImm)
			if !ok {
				return badImmediateAt(path, instr)
			}
			if uint64(imm.LocalIdx) >= numLocals {
				return errors.OutOfBounds(errors.PhaseValidate, path, int(imm.LocalIdx), int(numLocals))
			}

		default:
			if isMemoryOp(instr.Opcode) {
				imm, ok := instr.Imm.(MemoryImm)
				if !ok {
					return badImmediateAt(path, instr)
				}
				if !hasMemory {
					return errors.InvalidData(errors.PhaseValidate, path, Mnemonic(instr.Opcode)+" without a memory")
				}
				if imm.Align > naturalAlign(instr.Opcode) {
					return errors.New(errors.PhaseValidate, errors.KindInvalidData).
						Path(path...).
						Detail("alignment 2^%d exceeds natural alignment of %s", imm.Align, Mnemonic(instr.Opcode)).
						Build()
				}
			}
		}
	}

	if len(open) != 0 {
		return errors.New(errors.PhaseValidate, errors.KindUnbalancedBlock).
			Path("code", strconv.Itoa(i)).
			Detail("%d block(s) left open", len(open)).
			Build()
	}
	return nil
}

func (m *Module) validateCustomSections() error {
	for i, cs := range m.CustomSections {
		if !utf8.ValidString(cs.Name) {
			return errors.InvalidData(errors.PhaseValidate, []string{"custom", strconv.Itoa(i)}, "section name is not valid UTF-8")
		}
	}
	return nil
}

func badImmediateAt(path []string, instr Instruction) error {
	return errors.New(errors.PhaseValidate, errors.KindInvalidData).
		Path(path...).
		Detail("%s: unexpected immediate %T", Mnemonic(instr.Opcode), instr.Imm).
		Build()
}
