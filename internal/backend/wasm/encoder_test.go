package wasm

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/szaher/hitung/internal/backend/backendtest"
	"github.com/szaher/hitung/internal/ir"
)

func TestAppendULEB(t *testing.T) {
	tests := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{624485, []byte{0xE5, 0x8E, 0x26}},
	}
	for _, tc := range tests {
		if diff := cmp.Diff(tc.want, appendULEB(nil, tc.v)); diff != "" {
			t.Errorf("appendULEB(%d) mismatch (-want +got):\n%s", tc.v, diff)
		}
	}
}

func TestAppendSLEB(t *testing.T) {
	tests := []struct {
		v    int64
		want []byte
	}{
		{0, []byte{0x00}},
		{2, []byte{0x02}},
		{63, []byte{0x3F}},
		{64, []byte{0xC0, 0x00}},
		{-1, []byte{0x7F}},
		{-64, []byte{0x40}},
		{-65, []byte{0xBF, 0x7F}},
		{-123456, []byte{0xC0, 0xBB, 0x78}},
	}
	for _, tc := range tests {
		if diff := cmp.Diff(tc.want, appendSLEB(nil, tc.v)); diff != "" {
			t.Errorf("appendSLEB(%d) mismatch (-want +got):\n%s", tc.v, diff)
		}
	}
}

func TestEncode_Header(t *testing.T) {
	bin, err := Encode(backendtest.Build(func(b *ir.Builder) { b.Ret(b.Const(1)) }))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.HasPrefix(bin, header) {
		t.Errorf("module starts with % x, want % x", bin[:8], header)
	}
	if !bytes.Contains(bin, []byte(entryExport)) {
		t.Errorf("module does not name export %q", entryExport)
	}
}

func TestEncode_ConstantBody(t *testing.T) {
	fn := backendtest.Build(func(b *ir.Builder) { b.Ret(b.Const(2)) })
	body, err := encodeBody(fn)
	if err != nil {
		t.Fatalf("encodeBody: %v", err)
	}
	want := []byte{
		0x01, 0x01, valF64, // one f64 local
		opF64Const, 0, 0, 0, 0, 0, 0, 0, 0x40, // 2.0
		opLocalSet, 0x00,
		opLocalGet, 0x00,
		opReturn,
		opEnd,
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestEncode_GlobalAccessUsesImports(t *testing.T) {
	g := &ir.Global{Name: "a"}
	fn := backendtest.Build(func(b *ir.Builder) {
		b.Store(g, b.Const(0))
		b.Ret(b.Load(g))
	})
	body, err := encodeBody(fn)
	if err != nil {
		t.Fatalf("encodeBody: %v", err)
	}
	store := []byte{opI32Const, 0x00, opLocalGet, 0x00, opCall, funcStore}
	load := []byte{opI32Const, 0x00, opCall, funcLoad, opLocalSet, 0x01}
	if !bytes.Contains(body, store) {
		t.Errorf("body % x lacks store sequence % x", body, store)
	}
	if !bytes.Contains(body, load) {
		t.Errorf("body % x lacks load sequence % x", body, load)
	}
}

func TestEncode_UnresolvedPhi(t *testing.T) {
	fn := backendtest.Build(func(b *ir.Builder) {
		v := b.Const(1)
		next := b.AppendBlock("next")
		other := b.AppendBlock("other")
		b.Br(next)
		b.SetInsertPoint(next)
		b.Ret(b.Phi(ir.Incoming{Value: v, Block: other}))
	})
	if _, err := Encode(fn); err == nil {
		t.Fatal("expected error for phi without value for its predecessor")
	}
}
