package ir

import "strconv"

// Builder appends instructions to a function at an insertion block.
type Builder struct {
	fn    *Function
	cur   *Block
	names map[string]int
}

// NewBuilder creates a builder for fn with no insertion block.
func NewBuilder(fn *Function) *Builder {
	return &Builder{fn: fn, names: make(map[string]int)}
}

// Function returns the function being built.
func (b *Builder) Function() *Function { return b.fn }

// AppendBlock adds a new empty block to the function. Repeated names get a
// numeric suffix.
func (b *Builder) AppendBlock(name string) *Block {
	n := b.names[name]
	b.names[name] = n + 1
	if n > 0 {
		name += strconv.Itoa(n)
	}
	blk := &Block{Name: name, Index: len(b.fn.Blocks)}
	b.fn.Blocks = append(b.fn.Blocks, blk)
	return blk
}

// SetInsertPoint makes blk the block new instructions are appended to.
func (b *Builder) SetInsertPoint(blk *Block) { b.cur = blk }

// InsertBlock returns the current insertion block.
func (b *Builder) InsertBlock() *Block { return b.cur }

// Const emits a constant.
func (b *Builder) Const(v float64) Value {
	return b.emit(&Instr{Op: OpConst, Imm: v}, true)
}

// Load emits a read of g.
func (b *Builder) Load(g *Global) Value {
	return b.emit(&Instr{Op: OpLoad, Global: b.fn.GlobalIndex(g)}, true)
}

// Store emits a write of v into g.
func (b *Builder) Store(g *Global, v Value) {
	b.emit(&Instr{Op: OpStore, Global: b.fn.GlobalIndex(g), Args: []Value{v}}, false)
}

func (b *Builder) FAdd(x, y Value) Value { return b.binary(OpFAdd, x, y) }
func (b *Builder) FSub(x, y Value) Value { return b.binary(OpFSub, x, y) }
func (b *Builder) FMul(x, y Value) Value { return b.binary(OpFMul, x, y) }
func (b *Builder) FDiv(x, y Value) Value { return b.binary(OpFDiv, x, y) }

// FCmp emits a comparison yielding 1.0 when p holds and 0.0 otherwise.
func (b *Builder) FCmp(p Predicate, x, y Value) Value {
	return b.emit(&Instr{Op: OpFCmp, Pred: p, Args: []Value{x, y}}, true)
}

// Phi emits a merge of the incoming values. It must precede every other
// instruction of its block.
func (b *Builder) Phi(incoming ...Incoming) Value {
	return b.emit(&Instr{Op: OpPhi, Incoming: incoming}, true)
}

// Br ends the current block with a jump to dest.
func (b *Builder) Br(dest *Block) {
	b.emit(&Instr{Op: OpBr, Targets: []*Block{dest}}, false)
}

// CondBr ends the current block with a two-way branch on Truthy(cond).
// merge names the block where both regions rejoin.
func (b *Builder) CondBr(cond Value, then, els, merge *Block) {
	b.emit(&Instr{Op: OpCondBr, Args: []Value{cond}, Targets: []*Block{then, els, merge}}, false)
}

// Ret ends the current block returning v.
func (b *Builder) Ret(v Value) {
	b.emit(&Instr{Op: OpRet, Args: []Value{v}}, false)
}

func (b *Builder) binary(op Op, x, y Value) Value {
	return b.emit(&Instr{Op: op, Args: []Value{x, y}}, true)
}

func (b *Builder) emit(in *Instr, hasResult bool) Value {
	if b.cur == nil {
		panic("ir: builder has no insertion block")
	}
	in.Dst = NoValue
	if hasResult {
		in.Dst = Value(b.fn.NumValues)
		b.fn.NumValues++
	}
	b.cur.Instrs = append(b.cur.Instrs, in)
	return in.Dst
}
