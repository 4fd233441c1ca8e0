package wasm

import (
	"sort"

	"github.com/wippyai/brainwasm/errors"
	"github.com/wippyai/brainwasm/wasm/internal/binary"
)

// NameAssoc binds a name to an index.
type NameAssoc struct {
	Name string
	Idx  uint32
}

// LocalNames holds the local names of one function.
type LocalNames struct {
	Names   []NameAssoc
	FuncIdx uint32
}

// NameSection is the debug "name" custom section: an optional module name,
// function names and per-function local names.
type NameSection struct {
	ModuleName    string // empty means no module name subsection
	FunctionNames []NameAssoc
	LocalNames    []LocalNames
}

// Custom encodes the name section as a custom section.
// Name maps are written sorted by index, as the format requires.
func (n *NameSection) Custom() CustomSection {
	w := binary.NewWriter()

	if n.ModuleName != "" {
		sub := binary.NewWriter()
		sub.WriteName(n.ModuleName)
		w.Byte(NameSubsectionModule)
		w.WriteSized(sub)
	}

	if len(n.FunctionNames) > 0 {
		sub := binary.NewWriter()
		writeNameMap(sub, n.FunctionNames)
		w.Byte(NameSubsectionFunction)
		w.WriteSized(sub)
	}

	if len(n.LocalNames) > 0 {
		locals := make([]LocalNames, len(n.LocalNames))
		copy(locals, n.LocalNames)
		sort.SliceStable(locals, func(i, j int) bool { return locals[i].FuncIdx < locals[j].FuncIdx })

		sub := binary.NewWriter()
		sub.WriteU32(uint32(len(locals)))
		for _, l := range locals {
			sub.WriteU32(l.FuncIdx)
			writeNameMap(sub, l.Names)
		}
		w.Byte(NameSubsectionLocal)
		w.WriteSized(sub)
	}

	return CustomSection{Name: NameSectionName, Data: w.Bytes()}
}

func writeNameMap(w *binary.Writer, names []NameAssoc) {
	sorted := make([]NameAssoc, len(names))
	copy(sorted, names)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Idx < sorted[j].Idx })

	w.WriteU32(uint32(len(sorted)))
	for _, na := range sorted {
		w.WriteU32(na.Idx)
		w.WriteName(na.Name)
	}
}

// ParseNameSection decodes the payload of a "name" custom section.
// Unknown subsections are skipped.
func ParseNameSection(data []byte) (*NameSection, error) {
	r := binary.NewReader(data)
	n := &NameSection{}

	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, errors.Decode("name subsection id", err)
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, errors.Decode("name subsection size", err)
		}
		payload, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, errors.Decode("name subsection", err)
		}
		sr := binary.NewReader(payload)

		switch id {
		case NameSubsectionModule:
			n.ModuleName, err = sr.ReadName()
			if err != nil {
				return nil, errors.Decode("module name", err)
			}
		case NameSubsectionFunction:
			n.FunctionNames, err = readNameMap(sr)
			if err != nil {
				return nil, errors.Decode("function names", err)
			}
		case NameSubsectionLocal:
			count, err := readCount(sr)
			if err != nil {
				return nil, errors.Decode("local names", err)
			}
			for i := uint32(0); i < count; i++ {
				funcIdx, err := sr.ReadU32()
				if err != nil {
					return nil, errors.Decode("local names", err)
				}
				names, err := readNameMap(sr)
				if err != nil {
					return nil, errors.Decode("local names", err)
				}
				n.LocalNames = append(n.LocalNames, LocalNames{FuncIdx: funcIdx, Names: names})
			}
		}
	}
	return n, nil
}

func readNameMap(r *binary.Reader) ([]NameAssoc, error) {
	count, err := readCount(r)
	if err != nil {
		return nil, err
	}
	names := make([]NameAssoc, 0, count)
	for i := uint32(0); i < count; i++ {
		idx, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		name, err := r.ReadName()
		if err != nil {
			return nil, err
		}
		names = append(names, NameAssoc{Idx: idx, Name: name})
	}
	return names, nil
}

// FunctionName returns the debug name recorded for funcIdx.
func (n *NameSection) FunctionName(funcIdx uint32) (string, bool) {
	for _, na := range n.FunctionNames {
		if na.Idx == funcIdx {
			return na.Name, true
		}
	}
	return "", false
}

// LocalName returns the debug name recorded for a local of funcIdx.
func (n *NameSection) LocalName(funcIdx, localIdx uint32) (string, bool) {
	for _, ln := range n.LocalNames {
		if ln.FuncIdx != funcIdx {
			continue
		}
		for _, na := range ln.Names {
			if na.Idx == localIdx {
				return na.Name, true
			}
		}
	}
	return "", false
}
