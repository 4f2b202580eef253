package lower

import (
	"bytes"
	stderrors "errors"
	"testing"

	"github.com/jncronin/tysos-sub004/internal/errors"
	"github.com/jncronin/tysos-sub004/internal/output"
	"github.com/jncronin/tysos-sub004/internal/x64"
)

func nops(n int) []output.Unit {
	return []output.Unit{output.NewCode(bytes.Repeat([]byte{0x90}, n), "nop")}
}

func TestFixupRange(t *testing.T) {
	tests := []struct {
		length int
		ok     bool
	}{
		{0, true},
		{1, true},
		{MaxShortBranch, true},
		{MaxShortBranch + 1, false},
		{300, false},
	}
	for _, tt := range tests {
		f := Measure(nops(tt.length))
		if f.Len() != tt.length || f.Phase() != PhaseMeasuring {
			t.Fatalf("Measure(%d): len %d phase %s", tt.length, f.Len(), f.Phase())
		}
		units, err := f.Resolve(x64.CondNE)
		if f.Phase() != PhaseResolved {
			t.Errorf("%d: expected resolved phase", tt.length)
		}
		if !tt.ok {
			if !stderrors.Is(err, errors.ErrBranchRangeExceeded) {
				t.Errorf("%d: expected BranchRangeExceeded, got %v", tt.length, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%d: Resolve failed: %v", tt.length, err)
		}
		jump := units[0].(*output.Code)
		if !bytes.Equal(jump.Bytes, []byte{0x75, byte(tt.length)}) {
			t.Errorf("%d: expected jne %d, got %x", tt.length, tt.length, jump.Bytes)
		}
		if output.Len(units) != tt.length+2 {
			t.Errorf("%d: block not appended, total %d", tt.length, output.Len(units))
		}
	}
}

func TestFixupResolveOnce(t *testing.T) {
	f := Measure(nops(4))
	first, err := f.Resolve(x64.CondE)
	if err != nil {
		t.Fatal(err)
	}
	// 已解析后条件不再改变
	second, _ := f.Resolve(x64.CondNE)
	if !bytes.Equal(output.Bytes(first), output.Bytes(second)) {
		t.Errorf("expected %x, got %x", output.Bytes(first), output.Bytes(second))
	}
	if output.Bytes(first)[0] != 0x74 {
		t.Errorf("expected je, got %x", output.Bytes(first)[0])
	}
}

// TestFixupCountsRelocations 重定位字段计入依赖块长度
func TestFixupCountsRelocations(t *testing.T) {
	block := []output.Unit{
		output.NewCode([]byte{0xE8}, "call x"),
		output.NewReloc("x", output.RelocPC32, -4),
	}
	units, err := Measure(block).Resolve(x64.CondAE)
	if err != nil {
		t.Fatal(err)
	}
	if got := output.Bytes(units)[:2]; !bytes.Equal(got, []byte{0x73, 0x05}) {
		t.Errorf("expected 7305, got %x", got)
	}
}
