package ir

import "fmt"

// VerifyError describes a malformed function.
type VerifyError struct {
	Function string
	Block    string
	Message  string
}

func (e *VerifyError) Error() string {
	if e.Block != "" {
		return fmt.Sprintf("ir: @%s %s: %s", e.Function, e.Block, e.Message)
	}
	return fmt.Sprintf("ir: @%s: %s", e.Function, e.Message)
}

// Verify checks the structural rules backends rely on: each block ends in
// exactly one terminator, phis lead their block and name only
// predecessors, operands and globals are in range, every value is defined
// once and control flow has no cycles.
func Verify(f *Function) error {
	fail := func(b *Block, format string, args ...any) error {
		e := &VerifyError{Function: f.Name, Message: fmt.Sprintf(format, args...)}
		if b != nil {
			e.Block = b.Name
		}
		return e
	}

	if len(f.Blocks) == 0 {
		return fail(nil, "function has no blocks")
	}

	owned := make(map[*Block]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		owned[b] = true
	}

	preds := make(map[*Block]map[*Block]bool)
	defined := make([]bool, f.NumValues)

	for _, b := range f.Blocks {
		if len(b.Instrs) == 0 {
			return fail(b, "empty block")
		}
		inPhis := true
		for i, in := range b.Instrs {
			last := i == len(b.Instrs)-1
			if in.Op.IsTerminator() != last {
				if last {
					return fail(b, "block does not end with a terminator")
				}
				return fail(b, "%s before end of block", in.Op)
			}
			if in.Op == OpPhi {
				if !inPhis {
					return fail(b, "phi after non-phi instruction")
				}
			} else {
				inPhis = false
			}

			if in.Dst != NoValue {
				if int(in.Dst) < 0 || int(in.Dst) >= f.NumValues {
					return fail(b, "result %s out of range", in.Dst)
				}
				if defined[in.Dst] {
					return fail(b, "value %s defined twice", in.Dst)
				}
				defined[in.Dst] = true
			}
			for _, a := range in.Args {
				if int(a) < 0 || int(a) >= f.NumValues {
					return fail(b, "operand %s out of range", a)
				}
			}
			if err := checkShape(f, b, in, owned, fail); err != nil {
				return err
			}
		}

		for _, succ := range b.Successors() {
			if preds[succ] == nil {
				preds[succ] = make(map[*Block]bool)
			}
			preds[succ][b] = true
		}
	}

	for _, b := range f.Blocks {
		for _, phi := range b.Phis() {
			for _, inc := range phi.Incoming {
				if !preds[b][inc.Block] {
					return fail(b, "phi names %s which is not a predecessor", inc.Block.Name)
				}
			}
		}
	}

	return checkAcyclic(f, fail)
}

func checkShape(f *Function, b *Block, in *Instr, owned map[*Block]bool, fail func(*Block, string, ...any) error) error {
	wantArgs := map[Op]int{
		OpConst: 0, OpLoad: 0, OpStore: 1,
		OpFAdd: 2, OpFSub: 2, OpFMul: 2, OpFDiv: 2, OpFCmp: 2,
		OpPhi: 0, OpBr: 0, OpCondBr: 1, OpRet: 1,
	}
	n, ok := wantArgs[in.Op]
	if !ok {
		return fail(b, "unknown instruction %s", in.Op)
	}
	if len(in.Args) != n {
		return fail(b, "%s takes %d operands, has %d", in.Op, n, len(in.Args))
	}

	switch in.Op {
	case OpLoad, OpStore:
		if in.Global < 0 || in.Global >= len(f.Globals) {
			return fail(b, "%s of unknown global %d", in.Op, in.Global)
		}
	case OpBr, OpCondBr:
		want := 1
		if in.Op == OpCondBr {
			want = 3
		}
		if len(in.Targets) != want {
			return fail(b, "%s needs %d targets, has %d", in.Op, want, len(in.Targets))
		}
		for _, t := range in.Targets {
			if t == nil || !owned[t] {
				return fail(b, "%s to a block outside the function", in.Op)
			}
		}
	case OpPhi:
		if len(in.Incoming) == 0 {
			return fail(b, "phi without incoming values")
		}
		for _, inc := range in.Incoming {
			if inc.Block == nil || !owned[inc.Block] {
				return fail(b, "phi names a block outside the function")
			}
			if int(inc.Value) < 0 || int(inc.Value) >= f.NumValues {
				return fail(b, "phi operand %s out of range", inc.Value)
			}
		}
	}
	return nil
}

func checkAcyclic(f *Function, fail func(*Block, string, ...any) error) error {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[*Block]int, len(f.Blocks))

	var visit func(b *Block) error
	visit = func(b *Block) error {
		state[b] = active
		for _, succ := range b.Successors() {
			switch state[succ] {
			case active:
				return fail(b, "branch to %s forms a loop", succ.Name)
			case unvisited:
				if err := visit(succ); err != nil {
					return err
				}
			}
		}
		state[b] = done
		return nil
	}

	return visit(f.Entry())
}
