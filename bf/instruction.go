// Package bf folds Brainfuck source into a compact instruction sequence.
//
// Runs of '+'/'-' become a single AddToCell with a wrapping 8-bit delta and
// runs of '>'/'<' become a single MoveRight with a wrapping 32-bit delta.
// Runs that cancel out are dropped, so the sequence never holds a zero
// delta or two adjacent instructions of the same folding kind.
package bf

import (
	"strconv"
	"strings"
)

// Op identifies the kind of a folded instruction.
type Op uint8

const (
	MoveRight Op = iota + 1
	AddToCell
	Output
	Input
	LoopStart
	LoopEnd
)

func (o Op) String() string {
	switch o {
	case MoveRight:
		return "move"
	case AddToCell:
		return "add"
	case Output:
		return "output"
	case Input:
		return "input"
	case LoopStart:
		return "loop_start"
	case LoopEnd:
		return "loop_end"
	default:
		return "op(" + strconv.Itoa(int(o)) + ")"
	}
}

// Instruction is one folded operation.
//
// Delta is meaningful for MoveRight (pointer displacement, negative moves
// left) and AddToCell (value in [-128, 127] added modulo 256). Other kinds
// carry a zero Delta.
type Instruction struct {
	Op    Op
	Delta int32
}

// Move returns a MoveRight instruction.
func Move(delta int32) Instruction { return Instruction{Op: MoveRight, Delta: delta} }

// Add returns an AddToCell instruction.
func Add(delta int8) Instruction { return Instruction{Op: AddToCell, Delta: int32(delta)} }

// String renders the instruction in folded form: "+3", ">-2", ".", ",", "[", "]".
func (i Instruction) String() string {
	switch i.Op {
	case MoveRight:
		return ">" + strconv.FormatInt(int64(i.Delta), 10)
	case AddToCell:
		return "+" + strconv.FormatInt(int64(i.Delta), 10)
	case Output:
		return "."
	case Input:
		return ","
	case LoopStart:
		return "["
	case LoopEnd:
		return "]"
	default:
		return i.Op.String()
	}
}

// Format renders a canonical Brainfuck source for instrs.
// Parsing the result yields instrs again.
func Format(instrs []Instruction) string {
	var b strings.Builder
	for _, in := range instrs {
		switch in.Op {
		case MoveRight:
			writeRun(&b, int64(in.Delta), '>', '<')
		case AddToCell:
			writeRun(&b, int64(in.Delta), '+', '-')
		case Output:
			b.WriteByte('.')
		case Input:
			b.WriteByte(',')
		case LoopStart:
			b.WriteByte('[')
		case LoopEnd:
			b.WriteByte(']')
		}
	}
	return b.String()
}

func writeRun(b *strings.Builder, n int64, up, down byte) {
	c := up
	if n < 0 {
		c, n = down, -n
	}
	for ; n > 0; n-- {
		b.WriteByte(c)
	}
}

// Stats summarises a folded sequence.
type Stats struct {
	Moves    int
	Adds     int
	Outputs  int
	Inputs   int
	Loops    int
	MaxDepth int
}

// Total returns the number of instructions counted.
func (s Stats) Total() int {
	return s.Moves + s.Adds + s.Outputs + s.Inputs + 2*s.Loops
}

// Count computes Stats for instrs.
func Count(instrs []Instruction) Stats {
	var s Stats
	depth := 0
	for _, in := range instrs {
		switch in.Op {
		case MoveRight:
			s.Moves++
		case AddToCell:
			s.Adds++
		case Output:
			s.Outputs++
		case Input:
			s.Inputs++
		case LoopStart:
			s.Loops++
			depth++
			if depth > s.MaxDepth {
				s.MaxDepth = depth
			}
		case LoopEnd:
			depth--
		}
	}
	return s
}
