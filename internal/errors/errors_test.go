package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"go.uber.org/multierr"
)

func TestBackendErrorIs(t *testing.T) {
	err := Unencodable("operand %d must be a register", 1)
	if !stderrors.Is(err, ErrUnencodableOperand) {
		t.Error("should match its sentinel")
	}
	if stderrors.Is(err, ErrDisplacementOverflow) {
		t.Error("should not match another code")
	}

	wrapped := fmt.Errorf("method Foo: %w", err)
	if !stderrors.Is(wrapped, ErrUnencodableOperand) {
		t.Error("should match through wrapping")
	}
}

func TestBackendErrorAt(t *testing.T) {
	base := Unsupported("needs 64-bit registers")
	pos := Pos{File: "Foo.cs", Line: 12, Column: 3}
	err := base.At("conv_i8_i4sx", pos)

	if base.Op != "" || base.Pos.IsValid() {
		t.Error("At must not modify the receiver")
	}
	want := "Foo.cs:12:3: UnsupportedOnTarget in conv_i8_i4sx: needs 64-bit registers"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}

	// 已有的信息不被覆盖
	again := err.At("other", Pos{File: "Bar.cs", Line: 1})
	if again.Op != "conv_i8_i4sx" || again.Pos != pos {
		t.Errorf("At overwrote existing context: %+v", again)
	}
}

func TestErrorInfo(t *testing.T) {
	tests := []struct {
		code string
		kind string
	}{
		{B0001, "UnencodableOperand"},
		{B0002, "DisplacementOverflow"},
		{B0100, "UnsupportedOnTarget"},
		{B0101, "UnmappedOperation"},
		{B0200, "BranchRangeExceeded"},
	}
	for _, tt := range tests {
		if got := KindOf(tt.code); got != tt.kind {
			t.Errorf("%s: expected %s, got %s", tt.code, tt.kind, got)
		}
		if _, ok := GetErrorInfo(tt.code); !ok {
			t.Errorf("%s should be a backend error code", tt.code)
		}
	}
	if _, ok := GetErrorInfo("E0001"); ok || KindOf("E0001") != "Unknown" {
		t.Error("E0001 is not a backend code")
	}
}

func TestFormatter(t *testing.T) {
	f := &Formatter{Colors: false, ShowHints: true}
	out := f.Format(BranchRange(130, 127).At("throweq", Pos{File: "A.cs", Line: 4, Column: 1}))

	for _, want := range []string{"error[B0200]", "BranchRangeExceeded in throweq", "A.cs:4:1", "130 bytes"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("colors disabled but output contains escape codes")
	}
}

func TestReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter()
	r.SetFormatter(&Formatter{})
	r.SetOutput(&buf)

	r.Report("A::f", nil)
	if r.HasErrors() {
		t.Fatal("nil error should not be recorded")
	}

	r.Report("A::f", Unmapped("mul_ovf"))
	r.Report("A::g", fmt.Errorf("lowering: %w", Unencodable("bad operand")))
	r.Report("A::h", stderrors.New("object writer closed"))

	if r.ErrorCount() != 3 {
		t.Errorf("expected 3 errors, got %d", r.ErrorCount())
	}
	if r.CountByCode(B0101) != 1 || r.CountByCode(B0001) != 1 {
		t.Error("unexpected per-code counts")
	}
	if len(multierr.Errors(r.Err())) != 3 {
		t.Errorf("Err should combine all failures, got %v", r.Err())
	}
	if !strings.Contains(buf.String(), "A::f") {
		t.Errorf("report output missing method name:\n%s", buf.String())
	}

	r.Clear()
	if r.HasErrors() || r.Err() != nil {
		t.Error("Clear should drop all errors")
	}
}

func TestFormatterColors(t *testing.T) {
	err := Unmapped("mul_ovf")
	colored := (&Formatter{Colors: true}).Format(err)
	if !strings.Contains(colored, string(ColorBoldRed)+"error"+colorReset) {
		t.Errorf("expected a red error label, got %q", colored)
	}

	defer SetColorsEnabled(colorsEnabled)
	SetColorsEnabled(false)
	if plain := NewFormatter().Format(err); strings.Contains(plain, "\033[") {
		t.Errorf("colors disabled but output contains escape codes: %q", plain)
	}
}

// TestIsColorTerminal 缓冲区和普通文件都不是终端
func TestIsColorTerminal(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("COLORTERM", "")
	if IsColorTerminal(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if IsColorTerminal(f) {
		t.Error("a regular file is not a terminal")
	}

	t.Setenv("COLORTERM", "truecolor")
	t.Setenv("NO_COLOR", "1")
	if IsColorTerminal(f) {
		t.Error("NO_COLOR must win over COLORTERM")
	}
}
