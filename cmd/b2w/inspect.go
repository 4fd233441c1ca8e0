package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/brainwasm/wasm"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <module.wasm>",
		Short: "Describe the sections of a compiled module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			m, err := wasm.ParseModule(data)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			return describe(cmd.OutOrStdout(), args[0], len(data), m)
		},
	}
}

func describe(w io.Writer, filename string, size int, m *wasm.Module) error {
	var names *wasm.NameSection
	for _, cs := range m.CustomSections {
		if cs.Name != wasm.NameSectionName {
			continue
		}
		ns, err := wasm.ParseNameSection(cs.Data)
		if err != nil {
			return fmt.Errorf("name section: %w", err)
		}
		names = ns
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("b2w inspect"))
	fmt.Fprintf(&b, " %s (%d bytes)\n", filename, size)
	if names != nil && names.ModuleName != "" {
		fmt.Fprintf(&b, "module %s\n", nameStyle.Render(names.ModuleName))
	}

	b.WriteString("\n" + headingStyle.Render("types") + "\n")
	for i, ft := range m.Types {
		fmt.Fprintf(&b, "  %d: %s\n", i, signature(ft))
	}

	b.WriteString("\n" + headingStyle.Render("imports") + "\n")
	funcIdx := uint32(0)
	for _, imp := range m.Imports {
		switch imp.Desc.Kind {
		case wasm.KindFunc:
			fmt.Fprintf(&b, "  func %d %s.%s type %d\n", funcIdx, imp.Module, nameStyle.Render(imp.Name), imp.Desc.TypeIdx)
			funcIdx++
		case wasm.KindMemory:
			fmt.Fprintf(&b, "  memory %s.%s %s\n", imp.Module, nameStyle.Render(imp.Name), limits(imp.Desc.Memory.Limits))
		}
	}

	b.WriteString("\n" + headingStyle.Render("functions") + "\n")
	for i, typeIdx := range m.Funcs {
		idx := funcIdx + uint32(i)
		label := fmt.Sprintf("func %d", idx)
		if names != nil {
			if n, ok := names.FunctionName(idx); ok {
				label += " " + nameStyle.Render(n)
			}
		}
		instrs := 0
		var locals uint64
		if i < len(m.Code) {
			instrs = len(m.Code[i].Body)
			locals = m.Code[i].NumLocals()
		}
		fmt.Fprintf(&b, "  %s type %d, %d locals, %d instructions\n", label, typeIdx, locals, instrs)
		if names != nil {
			for l := uint32(0); uint64(l) < locals; l++ {
				if n, ok := names.LocalName(idx, l); ok {
					fmt.Fprintf(&b, "    local %d %s\n", l, dimStyle.Render(n))
				}
			}
		}
	}

	b.WriteString("\n" + headingStyle.Render("memory") + "\n")
	for i, mem := range m.Memories {
		fmt.Fprintf(&b, "  %d: %s\n", i, limits(mem.Limits))
	}

	b.WriteString("\n" + headingStyle.Render("exports") + "\n")
	for _, exp := range m.Exports {
		fmt.Fprintf(&b, "  %s %s %d\n", nameStyle.Render(exp.Name), kindName(exp.Kind), exp.Idx)
	}

	if len(m.CustomSections) > 0 {
		b.WriteString("\n" + headingStyle.Render("custom sections") + "\n")
		for _, cs := range m.CustomSections {
			fmt.Fprintf(&b, "  %s (%d bytes)", nameStyle.Render(cs.Name), len(cs.Data))
			if cs.Name != wasm.NameSectionName && isText(cs.Data) {
				fmt.Fprintf(&b, " %s", dimStyle.Render(fmt.Sprintf("%q", cs.Data)))
			}
			b.WriteByte('\n')
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func signature(ft wasm.FuncType) string {
	join := func(vs []wasm.ValType) string {
		parts := make([]string, len(vs))
		for i, v := range vs {
			parts[i] = v.String()
		}
		return strings.Join(parts, " ")
	}
	return "(" + join(ft.Params) + ") -> (" + join(ft.Results) + ")"
}

func limits(l wasm.Limits) string {
	if l.Max == nil {
		return fmt.Sprintf("min %d pages", l.Min)
	}
	return fmt.Sprintf("min %d max %d pages", l.Min, *l.Max)
}

func kindName(k byte) string {
	switch k {
	case wasm.KindFunc:
		return "func"
	case wasm.KindTable:
		return "table"
	case wasm.KindMemory:
		return "memory"
	case wasm.KindGlobal:
		return "global"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

func isText(data []byte) bool {
	for _, c := range data {
		if c < 0x20 || c > 0x7E {
			return false
		}
	}
	return len(data) > 0
}
