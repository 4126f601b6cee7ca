package repl

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/szaher/hitung/internal/backend/interp"
	"github.com/szaher/hitung/internal/eval"
	"github.com/szaher/hitung/internal/testutil"
)

func run(t *testing.T, input string, exitOnError bool) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	r := New(eval.New(interp.New()), Options{
		In:          strings.NewReader(input),
		Out:         &out,
		Err:         &errOut,
		Prompt:      "> ",
		ExitOnError: exitOnError,
		NoColor:     true,
	})
	err = r.Run(context.Background())
	return out.String(), errOut.String(), err
}

func TestRun_Results(t *testing.T) {
	out, errOut, err := run(t, "1 + 2\n\na = 2.5\na * 2\n", false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "> => 3\n> > => 2.5\n> => 5\n> \n"
	if out != want {
		t.Errorf("stdout = %q, want %q", out, want)
	}
	if errOut != "" {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRun_ErrorsContinue(t *testing.T) {
	out, errOut, err := run(t, "missing\n(1\n4 / 2\n", false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(errOut, "error: lower: variable not declared: missing") {
		t.Errorf("stderr = %q", errOut)
	}
	if !strings.Contains(errOut, "unmatched opening paren") {
		t.Errorf("stderr = %q", errOut)
	}
	if !strings.Contains(out, "=> 2\n") {
		t.Errorf("evaluation after errors missing: %q", out)
	}
}

func TestRun_ExitOnError(t *testing.T) {
	out, _, err := run(t, "1\nmissing\n2\n", true)
	testutil.AssertErrorContains(t, err, "variable not declared")
	if strings.Contains(out, "=> 2") {
		t.Errorf("loop continued after failure: %q", out)
	}
}

func TestRun_MetaCommands(t *testing.T) {
	out, errOut, err := run(t, ":vars\nb = 2\na = 1\n:vars\n:what\n:quit\n3\n", false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "(no variables)") {
		t.Errorf("empty :vars output missing: %q", out)
	}
	if !strings.Contains(out, "a = 1\nb = 2\n") {
		t.Errorf(":vars output not sorted: %q", out)
	}
	if !strings.Contains(errOut, "unknown command :what") {
		t.Errorf("stderr = %q", errOut)
	}
	if strings.Contains(out, "=> 3") {
		t.Errorf("input after :quit was evaluated: %q", out)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	r := New(eval.New(interp.New()), Options{In: strings.NewReader("1\n"), Out: &out, NoColor: true})
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("output after cancel: %q", out.String())
	}
}

func TestFormatValue(t *testing.T) {
	tests := map[float64]string{
		5:       "5",
		-3:      "-3",
		0.5:     "0.5",
		1e21:    "1e+21",
		1.0 / 3: "0.3333333333333333",
	}
	for v, want := range tests {
		if got := FormatValue(v); got != want {
			t.Errorf("FormatValue(%v) = %q, want %q", v, got, want)
		}
	}
}
