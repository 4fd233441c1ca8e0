package bf

import (
	"github.com/wippyai/brainwasm/errors"
)

// ErrBracketMismatch matches any error reporting unbalanced '[' and ']'
// under errors.Is.
var ErrBracketMismatch = &errors.Error{
	Phase:  errors.PhaseParse,
	Kind:   errors.KindBracketMismatch,
	Detail: "brackets are not balanced",
}

// Parse folds source into an instruction sequence.
//
// Characters other than the eight commands are ignored. Only the final
// bracket balance is checked: a ']' before its '[' is accepted as long as
// the counts match at the end. On mismatch no instructions are returned.
func Parse(source string) ([]Instruction, error) {
	var out []Instruction
	depth := 0

	// commands are ASCII, so bytes of multi-byte characters never match
	for i := 0; i < len(source); i++ {
		switch source[i] {
		case '>':
			out = fold(out, MoveRight, 1)
		case '<':
			out = fold(out, MoveRight, -1)
		case '+':
			out = fold(out, AddToCell, 1)
		case '-':
			out = fold(out, AddToCell, -1)
		case '.':
			out = append(out, Instruction{Op: Output})
		case ',':
			out = append(out, Instruction{Op: Input})
		case '[':
			depth++
			out = append(out, Instruction{Op: LoopStart})
		case ']':
			depth--
			out = append(out, Instruction{Op: LoopEnd})
		}
	}

	if depth != 0 {
		b := errors.New(errors.PhaseParse, errors.KindBracketMismatch).Value(depth)
		if depth > 0 {
			b.Detail("%d unclosed '['", depth)
		} else {
			b.Detail("%d unmatched ']'", -depth)
		}
		return nil, b.Build()
	}
	return out, nil
}

// fold merges delta into a trailing instruction of the same kind, or
// appends a new one. A trailing instruction folded to zero is removed.
func fold(out []Instruction, op Op, delta int32) []Instruction {
	n := len(out)
	if n == 0 || out[n-1].Op != op {
		return append(out, Instruction{Op: op, Delta: delta})
	}

	last := &out[n-1]
	last.Delta = combine(op, last.Delta, delta)
	if last.Delta == 0 {
		return out[:n-1]
	}
	return out
}

// combine adds two deltas with the wrapping width of op.
func combine(op Op, a, b int32) int32 {
	if op == AddToCell {
		return int32(int8(a) + int8(b))
	}
	return a + b
}
