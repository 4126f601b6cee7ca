package integration_tests

import (
	"reflect"
	"strings"
	"testing"

	"github.com/szaher/hitung/internal/eval"
	"github.com/szaher/hitung/internal/parser"
)

// TestDeterminismPipeline verifies that lexing, parsing and lowering the
// same line twice yield identical results.
func TestDeterminismPipeline(t *testing.T) {
	for _, line := range strings.Split(readTestFile(t, "testdata/sessions/arithmetic.hit"), "\n") {
		if line == "" {
			continue
		}

		if !reflect.DeepEqual(parser.Lex(line), parser.Lex(line)) {
			t.Errorf("%q: tokens differ across runs", line)
		}

		e1, err1 := parser.Parse(line)
		e2, err2 := parser.Parse(line)
		if err1 != nil || err2 != nil {
			t.Fatalf("%q: parse errors %v, %v", line, err1, err2)
		}
		if !reflect.DeepEqual(e1, e2) {
			t.Errorf("%q: trees differ across runs", line)
		}

		f1, err1 := eval.Lower(e1, eval.NewEnvironment())
		f2, err2 := eval.Lower(e2, eval.NewEnvironment())
		if err1 != nil || err2 != nil {
			t.Fatalf("%q: lower errors %v, %v", line, err1, err2)
		}
		if f1.String() != f2.String() {
			t.Errorf("%q: IR differs across runs\n%s\n%s", line, f1, f2)
		}
	}
}
