package x64

import (
	"encoding/hex"
	stderrors "errors"
	"testing"

	"golang.org/x/arch/x86/x86asm"

	"github.com/jncronin/tysos-sub004/internal/errors"
	"github.com/jncronin/tysos-sub004/internal/hwloc"
)

var (
	rax = hwloc.Gpr(hwloc.RAX)
	rcx = hwloc.Gpr(hwloc.RCX)
	rsi = hwloc.Gpr(hwloc.RSI)
	rdi = hwloc.Gpr(hwloc.RDI)
	r8  = hwloc.Gpr(hwloc.R8)
	r11 = hwloc.Gpr(hwloc.R11)
)

// ============================================================================
// 编码测试
// ============================================================================

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		op   *Opcode
		size Size
		pfx  Prefixes
		args []hwloc.Location
		want string
	}{
		{"mov rax, rcx", MustLookup("mov r/m, r"), SizeQword, NoPrefixes,
			[]hwloc.Location{rax, rcx}, "4889c8"},
		{"mov r8, rax", MustLookup("mov r/m, r"), SizeQword, NoPrefixes,
			[]hwloc.Location{r8, rax}, "4989c0"},
		{"mov ax, cx", MustLookup("mov r/m, r"), SizeWord, NoPrefixes,
			[]hwloc.Location{rax, rcx}, "6689c8"},
		{"mov al, sil", MustLookup("mov r/m8, r8"), SizeByte, NoPrefixes,
			[]hwloc.Location{rax, rsi}, "4088f0"},
		{"mov eax, [rbx+8]", MustLookup("mov r, r/m"), SizeDword, NoPrefixes,
			[]hwloc.Location{rax, hwloc.Mem(hwloc.RBX, 8)}, "8b4308"},
		{"mov rax, [rsp]", MustLookup("mov r, r/m"), SizeQword, NoPrefixes,
			[]hwloc.Location{rax, hwloc.Mem(hwloc.RSP, 0)}, "488b0424"},
		{"mov rax, [rbp]", MustLookup("mov r, r/m"), SizeQword, NoPrefixes,
			[]hwloc.Location{rax, hwloc.Mem(hwloc.RBP, 0)}, "488b4500"},
		{"mov rax, [r13]", MustLookup("mov r, r/m"), SizeQword, NoPrefixes,
			[]hwloc.Location{rax, hwloc.Mem(hwloc.R13, 0)}, "498b4500"},
		{"mov rax, [r12]", MustLookup("mov r, r/m"), SizeQword, NoPrefixes,
			[]hwloc.Location{rax, hwloc.Mem(hwloc.R12, 0)}, "498b0424"},
		{"mov rax, [rbx+rcx*4+0x10]", MustLookup("mov r, r/m"), SizeQword, NoPrefixes,
			[]hwloc.Location{rax, hwloc.MemIndex(hwloc.RBX, hwloc.RCX, 4, 0x10)}, "488b448b10"},
		{"mov rax, [rax+r9*8]", MustLookup("mov r, r/m"), SizeQword, NoPrefixes,
			[]hwloc.Location{rax, hwloc.MemIndex(hwloc.RAX, hwloc.R9, 8, 0)}, "4a8b04c8"},
		{"mov rax, [rbx+0x1000]", MustLookup("mov r, r/m"), SizeQword, NoPrefixes,
			[]hwloc.Location{rax, hwloc.Mem(hwloc.RBX, 0x1000)}, "488b8300100000"},
		{"mov rax, [rcx*8+0x20]", MustLookup("mov r, r/m"), SizeQword, NoPrefixes,
			[]hwloc.Location{rax, hwloc.Memory{Base: hwloc.NoReg, Index: hwloc.RCX, Scale: 8, Disp: 0x20}}, "488b04cd20000000"},
		{"mov edi, 0x7b", MustLookup("mov r32, imm32"), SizeDword, NoPrefixes,
			[]hwloc.Location{rdi, hwloc.Imm(0x7B)}, "bf7b000000"},
		{"movabs rax", MustLookup("mov r64, imm64"), SizeQword, NoPrefixes,
			[]hwloc.Location{rax, hwloc.Imm(0x1122334455667788)}, "48b88877665544332211"},
		{"mov rax, -1", MustLookup("mov r/m, imm32"), SizeQword, NoPrefixes,
			[]hwloc.Location{rax, hwloc.Imm(-1)}, "48c7c0ffffffff"},
		{"add rsp, 8", MustLookup("add r/m, imm8"), SizeQword, NoPrefixes,
			[]hwloc.Location{hwloc.Gpr(hwloc.RSP), hwloc.Imm(8)}, "4883c408"},
		{"cmp ecx, 0x1000", MustLookup("cmp r/m, imm32"), SizeDword, NoPrefixes,
			[]hwloc.Location{rcx, hwloc.Imm(0x1000)}, "81f900100000"},
		{"xor r11d, r11d", MustLookup("xor r/m, r"), SizeDword, NoPrefixes,
			[]hwloc.Location{r11, r11}, "4531db"},
		{"lock cmpxchg [rdi], rsi", MustLookup("cmpxchg r/m, r"), SizeQword, NoPrefixes.WithLock(),
			[]hwloc.Location{hwloc.Mem(hwloc.RDI, 0), rsi, rax}, "f0480fb137"},
		{"movzx eax, cl", MustLookup("movzx r, r/m8"), SizeDword, NoPrefixes,
			[]hwloc.Location{rax, rcx}, "0fb6c1"},
		{"movzx eax, sil", MustLookup("movzx r, r/m8"), SizeDword, NoPrefixes,
			[]hwloc.Location{rax, rsi}, "400fb6c6"},
		{"movsxd rax, ecx", MustLookup("movsxd r, r/m32"), SizeQword, NoPrefixes,
			[]hwloc.Location{rax, rcx}, "4863c1"},
		{"sete al", MustLookup("setcc r/m8").WithCond(CondE), SizeByte, NoPrefixes,
			[]hwloc.Location{rax}, "0f94c0"},
		{"jne +12", MustLookup("jcc rel8").WithCond(CondNE), SizeNone, NoPrefixes,
			[]hwloc.Location{hwloc.Imm(12)}, "750c"},
		{"call rel32 (reloc)", MustLookup("call rel32"), SizeNone, NoPrefixes,
			nil, "e8"},
		{"xchg rdi, rsi", MustLookup("xchg r/m, r"), SizeQword, NoPrefixes,
			[]hwloc.Location{rdi, rsi}, "4887f7"},
		{"lea rax, [rbx+rcx]", MustLookup("lea r, m"), SizeQword, NoPrefixes,
			[]hwloc.Location{rax, hwloc.MemIndex(hwloc.RBX, hwloc.RCX, 1, 0)}, "488d040b"},
		// 传统前缀按 lock、rep、repne、0x66、0x67 的顺序输出
		{"legacy prefix order", MustLookup("mov r, r/m"), SizeWord, Prefixes{AddrSize: true, RepNE: true, Rep: true},
			[]hwloc.Location{rax, hwloc.Mem(hwloc.RBX, 8)}, "f3f266678b4308"},
		{"explicit REX.W", MustLookup("mov r/m, r"), SizeDword, Prefixes{RexW: true},
			[]hwloc.Location{rax, rcx}, "4889c8"},
		{"forced empty REX", MustLookup("mov r/m, r"), SizeDword, Prefixes{ForceRex: true},
			[]hwloc.Location{rax, rcx}, "4089c8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.op, tt.size, tt.pfx, tt.args...)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if hex.EncodeToString(got) != tt.want {
				t.Errorf("expected %s, got %x", tt.want, got)
			}
		})
	}
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name string
		op   *Opcode
		size Size
		args []hwloc.Location
		want error
	}{
		{"imm in reg slot", MustLookup("mov r/m, r"), SizeQword,
			[]hwloc.Location{rax, hwloc.Imm(1)}, errors.ErrUnencodableOperand},
		{"lea from register", MustLookup("lea r, m"), SizeQword,
			[]hwloc.Location{rax, rcx}, errors.ErrUnencodableOperand},
		{"rsp as index", MustLookup("mov r, r/m"), SizeQword,
			[]hwloc.Location{rax, hwloc.MemIndex(hwloc.RBX, hwloc.RSP, 1, 0)}, errors.ErrUnencodableOperand},
		{"bad scale", MustLookup("mov r, r/m"), SizeQword,
			[]hwloc.Location{rax, hwloc.MemIndex(hwloc.RBX, hwloc.RCX, 3, 0)}, errors.ErrUnencodableOperand},
		{"imm8 out of range", MustLookup("add r/m, imm8"), SizeQword,
			[]hwloc.Location{rax, hwloc.Imm(300)}, errors.ErrDisplacementOverflow},
		{"imm8 beyond byte", MustLookup("mov r8, imm8"), SizeByte,
			[]hwloc.Location{rax, hwloc.Imm(0x1FF)}, errors.ErrDisplacementOverflow},
		{"imm32 beyond dword", MustLookup("mov r32, imm32"), SizeDword,
			[]hwloc.Location{rax, hwloc.Imm(1 << 32)}, errors.ErrDisplacementOverflow},
		{"accumulator not rax", MustLookup("cmpxchg r/m, r"), SizeQword,
			[]hwloc.Location{hwloc.Mem(hwloc.RDI, 0), rsi, rcx}, errors.ErrUnencodableOperand},
		{"too many operands", MustLookup("ret"), SizeNone,
			[]hwloc.Location{rax}, errors.ErrUnencodableOperand},
		{"missing operand", MustLookup("mov r/m, r"), SizeQword,
			[]hwloc.Location{rax}, errors.ErrUnencodableOperand},
		{"disp beyond 32 bits", MustLookup("mov r, r/m"), SizeQword,
			[]hwloc.Location{rax, hwloc.Mem(hwloc.RBX, 1<<40)}, errors.ErrDisplacementOverflow},
		{"rel8 beyond range", MustLookup("jmp rel8"), SizeNone,
			[]hwloc.Location{hwloc.Imm(200)}, errors.ErrDisplacementOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.op, tt.size, NoPrefixes, tt.args...)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !stderrors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestEncodeDeterministic 相同输入总是得到相同字节
func TestEncodeDeterministic(t *testing.T) {
	op := MustLookup("cmpxchg r/m, r")
	args := []hwloc.Location{hwloc.MemIndex(hwloc.R12, hwloc.R13, 2, -8), r11, rax}
	first, err := Encode(op, SizeQword, NoPrefixes.WithLock(), args...)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _ := Encode(op, SizeQword, NoPrefixes.WithLock(), args...)
		if hex.EncodeToString(again) != hex.EncodeToString(first) {
			t.Fatalf("run %d: expected %x, got %x", i, first, again)
		}
	}
}

// ============================================================================
// 反汇编往返
// ============================================================================

// TestMoveRoundTrip 寄存器间 mov 反汇编后得到相同的助记符、操作数和顺序
func TestMoveRoundTrip(t *testing.T) {
	op := MustLookup("mov r/m, r")
	for dst := hwloc.RAX; dst <= hwloc.R15; dst++ {
		for src := hwloc.RAX; src <= hwloc.R15; src++ {
			code, err := Encode(op, SizeQword, NoPrefixes, hwloc.Gpr(dst), hwloc.Gpr(src))
			if err != nil {
				t.Fatalf("mov %s, %s: %v", dst, src, err)
			}
			inst, err := x86asm.Decode(code, 64)
			if err != nil {
				t.Fatalf("mov %s, %s: decode %x: %v", dst, src, code, err)
			}
			if inst.Len != len(code) {
				t.Errorf("mov %s, %s: decoded %d of %d bytes", dst, src, inst.Len, len(code))
			}
			if inst.Op != x86asm.MOV {
				t.Errorf("mov %s, %s: expected MOV, got %v", dst, src, inst.Op)
			}
			wantDst := x86asm.RAX + x86asm.Reg(dst)
			wantSrc := x86asm.RAX + x86asm.Reg(src)
			if inst.Args[0] != wantDst || inst.Args[1] != wantSrc {
				t.Errorf("expected mov %v, %v, got %v", wantDst, wantSrc, inst)
			}
		}
	}
}

// TestExtendRoundTrip 扩展指令的操作码和宽度
func TestExtendRoundTrip(t *testing.T) {
	tests := []struct {
		form string
		size Size
		op   x86asm.Op
		dst  x86asm.Reg
		src  x86asm.Reg
	}{
		{"movzx r, r/m8", SizeDword, x86asm.MOVZX, x86asm.EDX, x86asm.CL},
		{"movzx r, r/m16", SizeQword, x86asm.MOVZX, x86asm.RDX, x86asm.CX},
		{"movsx r, r/m8", SizeWord, x86asm.MOVSX, x86asm.DX, x86asm.CL},
		{"movsxd r, r/m32", SizeQword, x86asm.MOVSXD, x86asm.RDX, x86asm.ECX},
	}
	for _, tt := range tests {
		t.Run(tt.form, func(t *testing.T) {
			code, err := Encode(MustLookup(tt.form), tt.size, NoPrefixes, hwloc.Gpr(hwloc.RDX), rcx)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			inst, err := x86asm.Decode(code, 64)
			if err != nil {
				t.Fatalf("decode %x: %v", code, err)
			}
			if inst.Op != tt.op || inst.Args[0] != tt.dst || inst.Args[1] != tt.src {
				t.Errorf("expected %v %v, %v, got %v", tt.op, tt.dst, tt.src, inst)
			}
		})
	}
}

// ============================================================================
// 文本
// ============================================================================

func TestFormat(t *testing.T) {
	tests := []struct {
		op   *Opcode
		size Size
		pfx  Prefixes
		args []hwloc.Location
		want string
	}{
		{MustLookup("mov r/m, r"), SizeQword, NoPrefixes, []hwloc.Location{rax, rcx}, "mov rax, rcx"},
		{MustLookup("mov r, r/m"), SizeDword, NoPrefixes, []hwloc.Location{rax, hwloc.Mem(hwloc.RBP, -8)}, "mov eax, dword [rbp-0x8]"},
		{MustLookup("cmpxchg r/m, r"), SizeQword, NoPrefixes.WithLock(), []hwloc.Location{hwloc.Mem(hwloc.RDI, 0), rsi, rax}, "lock cmpxchg qword [rdi], rsi"},
		{MustLookup("movzx r, r/m8"), SizeDword, NoPrefixes, []hwloc.Location{rcx, rax}, "movzx ecx, al"},
		{MustLookup("setcc r/m8").WithCond(CondE), SizeByte, NoPrefixes, []hwloc.Location{rax}, "sete al"},
		{MustLookup("jcc rel8").WithCond(CondNE), SizeNone, NoPrefixes, []hwloc.Location{hwloc.Imm(12)}, "jne 0xc"},
	}
	for _, tt := range tests {
		if got := Format(tt.op, tt.size, tt.pfx, tt.args...); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}
