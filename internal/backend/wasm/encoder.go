package wasm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/szaher/hitung/internal/ir"
)

// Names shared between the encoded module and the host module.
const (
	hostModule  = "env"
	loadImport  = "load"
	storeImport = "store"
	entryExport = "calc"
)

const (
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionExport   = 7
	sectionCode     = 10
)

const (
	valI32 = 0x7F
	valF64 = 0x7C

	typeFunc   = 0x60
	blockEmpty = 0x40
	kindFunc   = 0x00
)

const (
	opIf             = 0x04
	opElse           = 0x05
	opEnd            = 0x0B
	opReturn         = 0x0F
	opCall           = 0x10
	opLocalGet       = 0x20
	opLocalSet       = 0x21
	opI32Const       = 0x41
	opF64Const       = 0x44
	opF64Eq          = 0x61
	opF64Lt          = 0x63
	opF64Gt          = 0x64
	opF64Ge          = 0x66
	opF64Abs         = 0x99
	opF64Add         = 0xA0
	opF64Sub         = 0xA1
	opF64Mul         = 0xA2
	opF64Div         = 0xA3
	opF64ConvertI32U = 0xB8
)

// Function indices: imports come first, the compiled function follows.
const (
	funcLoad  = 0
	funcStore = 1
	funcCalc  = 2
)

var header = []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

// Encode translates a verified function into a WebAssembly module exporting
// it as "calc". Globals are reached through the imported env.load and
// env.store functions using their index in fn.Globals.
func Encode(fn *ir.Function) ([]byte, error) {
	body, err := encodeBody(fn)
	if err != nil {
		return nil, err
	}

	out := append([]byte(nil), header...)

	// () -> f64, (i32) -> f64, (i32, f64) -> ()
	types := appendULEB(nil, 3)
	types = append(types, typeFunc, 0x00, 0x01, valF64)
	types = append(types, typeFunc, 0x01, valI32, 0x01, valF64)
	types = append(types, typeFunc, 0x02, valI32, valF64, 0x00)
	out = appendSection(out, sectionType, types)

	imports := appendULEB(nil, 2)
	imports = appendImport(imports, hostModule, loadImport, 1)
	imports = appendImport(imports, hostModule, storeImport, 2)
	out = appendSection(out, sectionImport, imports)

	funcs := appendULEB(nil, 1)
	funcs = appendULEB(funcs, 0)
	out = appendSection(out, sectionFunction, funcs)

	exports := appendULEB(nil, 1)
	exports = appendName(exports, entryExport)
	exports = append(exports, kindFunc)
	exports = appendULEB(exports, funcCalc)
	out = appendSection(out, sectionExport, exports)

	code := appendULEB(nil, 1)
	code = appendULEB(code, uint32(len(body)))
	code = append(code, body...)
	out = appendSection(out, sectionCode, code)

	return out, nil
}

func encodeBody(fn *ir.Function) ([]byte, error) {
	var body []byte
	if fn.NumValues > 0 {
		body = appendULEB(body, 1)
		body = appendULEB(body, uint32(fn.NumValues))
		body = append(body, valF64)
	} else {
		body = appendULEB(body, 0)
	}

	e := &emitter{fn: fn, buf: body}
	if err := e.block(fn.Entry(), nil); err != nil {
		return nil, err
	}
	e.buf = append(e.buf, opEnd)
	return e.buf, nil
}

// emitter lays out an acyclic CFG as structured control flow. Every IR
// value lives in the local of the same index, and phis are resolved by
// copying into their local on each incoming edge.
type emitter struct {
	fn  *ir.Function
	buf []byte
}

// block emits b and everything reachable from it up to, but not including,
// stop.
func (e *emitter) block(b, stop *ir.Block) error {
	for _, in := range b.Instrs {
		if in.Op == ir.OpPhi {
			continue
		}
		if in.Op.IsTerminator() {
			return e.terminator(b, in, stop)
		}
		if err := e.instr(in); err != nil {
			return fmt.Errorf("block %s: %w", b.Name, err)
		}
	}
	return fmt.Errorf("block %s has no terminator", b.Name)
}

func (e *emitter) terminator(b *ir.Block, in *ir.Instr, stop *ir.Block) error {
	switch in.Op {
	case ir.OpRet:
		e.get(in.Args[0])
		e.buf = append(e.buf, opReturn)
		return nil

	case ir.OpBr:
		return e.edge(b, in.Targets[0], stop)

	case ir.OpCondBr:
		then, els, merge := in.Targets[0], in.Targets[1], in.Targets[2]
		// Truthy(v) holds exactly when |v| >= 1, and NaN fails the test.
		e.get(in.Args[0])
		e.buf = append(e.buf, opF64Abs)
		e.f64(1)
		e.buf = append(e.buf, opF64Ge, opIf, blockEmpty)
		if err := e.edge(b, then, merge); err != nil {
			return err
		}
		e.buf = append(e.buf, opElse)
		if err := e.edge(b, els, merge); err != nil {
			return err
		}
		e.buf = append(e.buf, opEnd)
		if merge == stop {
			return nil
		}
		return e.block(merge, stop)
	}
	return fmt.Errorf("unsupported terminator %s", in.Op)
}

// edge transfers control from b to t: phi copies first, then t's body
// unless t is where the enclosing region ends.
func (e *emitter) edge(b, t, stop *ir.Block) error {
	phis := t.Phis()
	dsts := make([]ir.Value, 0, len(phis))
	for _, phi := range phis {
		found := false
		for _, inc := range phi.Incoming {
			if inc.Block == b {
				e.get(inc.Value)
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("phi %s in %s has no value for %s", phi.Dst, t.Name, b.Name)
		}
		dsts = append(dsts, phi.Dst)
	}
	for i := len(dsts) - 1; i >= 0; i-- {
		e.set(dsts[i])
	}

	if t == stop {
		return nil
	}
	return e.block(t, stop)
}

func (e *emitter) instr(in *ir.Instr) error {
	switch in.Op {
	case ir.OpConst:
		e.f64(in.Imm)
	case ir.OpLoad:
		e.i32(int32(in.Global))
		e.call(funcLoad)
	case ir.OpStore:
		e.i32(int32(in.Global))
		e.get(in.Args[0])
		e.call(funcStore)
		return nil
	case ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv:
		e.get(in.Args[0])
		e.get(in.Args[1])
		e.buf = append(e.buf, arith[in.Op])
	case ir.OpFCmp:
		op, ok := compare[in.Pred]
		if !ok {
			return fmt.Errorf("unsupported predicate %s", in.Pred)
		}
		e.get(in.Args[0])
		e.get(in.Args[1])
		e.buf = append(e.buf, op, opF64ConvertI32U)
	default:
		return fmt.Errorf("unsupported instruction %s", in.Op)
	}
	e.set(in.Dst)
	return nil
}

var arith = map[ir.Op]byte{
	ir.OpFAdd: opF64Add,
	ir.OpFSub: opF64Sub,
	ir.OpFMul: opF64Mul,
	ir.OpFDiv: opF64Div,
}

var compare = map[ir.Predicate]byte{
	ir.OLT: opF64Lt,
	ir.OGT: opF64Gt,
	ir.OEQ: opF64Eq,
}

func (e *emitter) get(v ir.Value) {
	e.buf = append(e.buf, opLocalGet)
	e.buf = appendULEB(e.buf, uint32(v))
}

func (e *emitter) set(v ir.Value) {
	e.buf = append(e.buf, opLocalSet)
	e.buf = appendULEB(e.buf, uint32(v))
}

func (e *emitter) call(idx uint32) {
	e.buf = append(e.buf, opCall)
	e.buf = appendULEB(e.buf, idx)
}

func (e *emitter) i32(v int32) {
	e.buf = append(e.buf, opI32Const)
	e.buf = appendSLEB(e.buf, int64(v))
}

func (e *emitter) f64(v float64) {
	e.buf = append(e.buf, opF64Const)
	e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v))
}

func appendSection(out []byte, id byte, payload []byte) []byte {
	out = append(out, id)
	out = appendULEB(out, uint32(len(payload)))
	return append(out, payload...)
}

func appendImport(out []byte, module, name string, typeIdx uint32) []byte {
	out = appendName(out, module)
	out = appendName(out, name)
	out = append(out, kindFunc)
	return appendULEB(out, typeIdx)
}

func appendName(out []byte, s string) []byte {
	out = appendULEB(out, uint32(len(s)))
	return append(out, s...)
}

func appendULEB(out []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if v == 0 {
			return append(out, c)
		}
		out = append(out, c|0x80)
	}
}

func appendSLEB(out []byte, v int64) []byte {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(out, c)
		}
		out = append(out, c|0x80)
	}
}
