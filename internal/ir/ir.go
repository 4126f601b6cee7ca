// Package ir defines the block-structured intermediate representation that
// the hitung evaluator lowers expressions into and the backends execute.
package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Op identifies an instruction.
type Op int

const (
	OpConst Op = iota
	OpLoad
	OpStore
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFCmp
	OpPhi

	// Terminators
	OpBr
	OpCondBr
	OpRet
)

var opNames = map[Op]string{
	OpConst:  "const",
	OpLoad:   "load",
	OpStore:  "store",
	OpFAdd:   "fadd",
	OpFSub:   "fsub",
	OpFMul:   "fmul",
	OpFDiv:   "fdiv",
	OpFCmp:   "fcmp",
	OpPhi:    "phi",
	OpBr:     "br",
	OpCondBr: "condbr",
	OpRet:    "ret",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// IsTerminator reports whether o ends a block.
func (o Op) IsTerminator() bool {
	return o == OpBr || o == OpCondBr || o == OpRet
}

// Predicate is an ordered floating-point comparison. Any comparison with
// NaN is false.
type Predicate int

const (
	OLT Predicate = iota
	OGT
	OEQ
)

func (p Predicate) String() string {
	switch p {
	case OLT:
		return "olt"
	case OGT:
		return "ogt"
	case OEQ:
		return "oeq"
	default:
		return fmt.Sprintf("Predicate(%d)", int(p))
	}
}

// Compare applies the predicate and returns 1 for true and 0 for false.
func (p Predicate) Compare(x, y float64) float64 {
	var ok bool
	switch p {
	case OLT:
		ok = x < y
	case OGT:
		ok = x > y
	case OEQ:
		ok = x == y
	}
	if ok {
		return 1
	}
	return 0
}

// Value numbers the result of an instruction within a function.
type Value int

// NoValue marks instructions that do not produce a result.
const NoValue Value = -1

func (v Value) String() string { return "%" + strconv.Itoa(int(v)) }

// Global is a storage location holding a float64. Its identity is its
// address, so a Global may be shared by many functions over time.
type Global struct {
	Name  string
	Value float64
}

// Incoming is one phi operand: the value flowing in from Block.
type Incoming struct {
	Value Value
	Block *Block
}

// Instr is a single instruction.
type Instr struct {
	Op   Op
	Dst  Value
	Args []Value

	Imm    float64   // const
	Pred   Predicate // fcmp
	Global int       // load, store: index into Function.Globals

	// br: [dest]; condbr: [then, else, merge]
	Targets  []*Block
	Incoming []Incoming // phi
}

// Block is a basic block. Its last instruction is its terminator.
type Block struct {
	Name   string
	Index  int
	Instrs []*Instr
}

// Terminator returns the block's last instruction if it is a terminator.
func (b *Block) Terminator() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.Op.IsTerminator() {
		return nil
	}
	return last
}

// Phis returns the phi instructions leading the block.
func (b *Block) Phis() []*Instr {
	n := 0
	for n < len(b.Instrs) && b.Instrs[n].Op == OpPhi {
		n++
	}
	return b.Instrs[:n]
}

// Successors returns the blocks control can transfer to from b.
func (b *Block) Successors() []*Block {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	switch term.Op {
	case OpBr:
		return term.Targets[:1]
	case OpCondBr:
		return term.Targets[:2]
	default:
		return nil
	}
}

// Function is a zero-argument function returning a float64.
type Function struct {
	Name      string
	Blocks    []*Block
	Globals   []*Global
	NumValues int
}

// NewFunction creates an empty function.
func NewFunction(name string) *Function {
	return &Function{Name: name}
}

// Entry returns the first block, or nil.
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// GlobalIndex returns the index of g in the function's globals table,
// adding it on first reference.
func (f *Function) GlobalIndex(g *Global) int {
	for i, have := range f.Globals {
		if have == g {
			return i
		}
	}
	f.Globals = append(f.Globals, g)
	return len(f.Globals) - 1
}

// Truthy interprets v as a branch selector: v is truncated toward zero and
// any non-zero result selects the true edge. NaN selects the false edge.
func Truthy(v float64) bool {
	t := math.Trunc(v)
	return !math.IsNaN(t) && t != 0
}

// String renders the function as a readable listing.
func (f *Function) String() string {
	var sb strings.Builder
	for _, g := range f.Globals {
		fmt.Fprintf(&sb, "@%s = global double\n", g.Name)
	}
	fmt.Fprintf(&sb, "define double @%s() {\n", f.Name)
	for i, b := range f.Blocks {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s:\n", b.Name)
		for _, in := range b.Instrs {
			sb.WriteString("  ")
			sb.WriteString(f.formatInstr(in))
			sb.WriteString("\n")
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (f *Function) formatInstr(in *Instr) string {
	var s string
	switch in.Op {
	case OpConst:
		s = "const " + strconv.FormatFloat(in.Imm, 'g', -1, 64)
	case OpLoad:
		s = "load " + f.globalName(in.Global)
	case OpStore:
		s = fmt.Sprintf("store %s, %s", f.globalName(in.Global), in.Args[0])
	case OpFAdd, OpFSub, OpFMul, OpFDiv:
		s = fmt.Sprintf("%s %s, %s", in.Op, in.Args[0], in.Args[1])
	case OpFCmp:
		s = fmt.Sprintf("fcmp %s %s, %s", in.Pred, in.Args[0], in.Args[1])
	case OpPhi:
		parts := make([]string, len(in.Incoming))
		for i, inc := range in.Incoming {
			parts[i] = fmt.Sprintf("[%s, %s]", inc.Value, inc.Block.Name)
		}
		s = "phi " + strings.Join(parts, ", ")
	case OpBr:
		s = "br " + in.Targets[0].Name
	case OpCondBr:
		s = fmt.Sprintf("condbr %s, %s, %s ; merge %s",
			in.Args[0], in.Targets[0].Name, in.Targets[1].Name, in.Targets[2].Name)
	case OpRet:
		s = "ret " + in.Args[0].String()
	default:
		s = in.Op.String()
	}
	if in.Dst != NoValue {
		return in.Dst.String() + " = " + s
	}
	return s
}

func (f *Function) globalName(i int) string {
	if i < 0 || i >= len(f.Globals) {
		return fmt.Sprintf("@<%d>", i)
	}
	return "@" + f.Globals[i].Name
}
