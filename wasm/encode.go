package wasm

import (
	"fmt"

	"github.com/wippyai/brainwasm/errors"
	"github.com/wippyai/brainwasm/wasm/internal/binary"
)

// Encode validates the module and encodes it to WebAssembly binary format.
// Sections are written in canonical order; custom sections follow the code
// section in the order they appear in CustomSections.
func (m *Module) Encode() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	w := binary.NewWriter()

	// Magic number and version
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	// Type section
	if len(m.Types) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.Byte(FuncTypeByte)
			writeValTypes(sec, ft.Params)
			writeValTypes(sec, ft.Results)
		}
		writeSection(w, SectionType, sec)
	}

	// Import section
	if len(m.Imports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			sec.WriteName(imp.Module)
			sec.WriteName(imp.Name)
			sec.Byte(imp.Desc.Kind)
			switch imp.Desc.Kind {
			case KindFunc:
				sec.WriteU32(imp.Desc.TypeIdx)
			case KindMemory:
				writeLimits(sec, imp.Desc.Memory.Limits)
			}
		}
		writeSection(w, SectionImport, sec)
	}

	// Function section
	if len(m.Funcs) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Funcs)))
		for _, typeIdx := range m.Funcs {
			sec.WriteU32(typeIdx)
		}
		writeSection(w, SectionFunction, sec)
	}

	// Memory section
	if len(m.Memories) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Memories)))
		for _, mem := range m.Memories {
			writeLimits(sec, mem.Limits)
		}
		writeSection(w, SectionMemory, sec)
	}

	// Export section
	if len(m.Exports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			sec.WriteName(exp.Name)
			sec.Byte(exp.Kind)
			sec.WriteU32(exp.Idx)
		}
		writeSection(w, SectionExport, sec)
	}

	// Code section
	if len(m.Code) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Code)))
		for i, body := range m.Code {
			bodyBuf := binary.NewWriter()
			bodyBuf.WriteU32(uint32(len(body.Locals)))
			for _, local := range body.Locals {
				bodyBuf.WriteU32(local.Count)
				bodyBuf.Byte(byte(local.ValType))
			}
			if err := EncodeInstructionsTo(bodyBuf.Buffer(), body.Body); err != nil {
				return nil, errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, fmt.Sprintf("function body %d", i))
			}
			bodyBuf.Byte(OpEnd)
			sec.WriteSized(bodyBuf)
		}
		writeSection(w, SectionCode, sec)
	}

	// Custom sections (at end)
	for _, cs := range m.CustomSections {
		sec := binary.NewWriter()
		sec.WriteName(cs.Name)
		sec.WriteBytes(cs.Data)
		writeSection(w, SectionCustom, sec)
	}

	return w.Bytes(), nil
}

func writeSection(w *binary.Writer, id byte, sec *binary.Writer) {
	w.Byte(id)
	w.WriteSized(sec)
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

func writeLimits(w *binary.Writer, l Limits) {
	if l.Max != nil {
		w.Byte(LimitsHasMax)
		w.WriteU32(uint32(l.Min))
		w.WriteU32(uint32(*l.Max))
		return
	}
	w.Byte(LimitsNoMax)
	w.WriteU32(uint32(l.Min))
}
