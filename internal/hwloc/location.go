// location.go - 硬件位置模型
//
// 寄存器分配器为每个 TAC 变量指定一个硬件位置，后端只读取这些位置：
// - Register: 通用寄存器 rax..r15
// - Memory:   base + index*scale + disp
// - Const:    编译期常量
//
// 所有位置都是可比较的值类型，== 即结构相等。

// Package hwloc 定义后端消费的硬件位置
package hwloc

import (
	"fmt"
	"strings"
)

// ============================================================================
// 寄存器
// ============================================================================

// Reg x86-64 通用寄存器编号（与指令编码一致）
type Reg uint8

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	// NoReg 表示缺省的 base/index
	NoReg Reg = 0xFF
)

var (
	regNames64 = [16]string{
		"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
	}
	regNames32 = [16]string{
		"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi",
		"r8d", "r9d", "r10d", "r11d", "r12d", "r13d", "r14d", "r15d",
	}
	regNames16 = [16]string{
		"ax", "cx", "dx", "bx", "sp", "bp", "si", "di",
		"r8w", "r9w", "r10w", "r11w", "r12w", "r13w", "r14w", "r15w",
	}
	regNames8 = [16]string{
		"al", "cl", "dl", "bl", "spl", "bpl", "sil", "dil",
		"r8b", "r9b", "r10b", "r11b", "r12b", "r13b", "r14b", "r15b",
	}
)

// String 返回 64 位寄存器名
func (r Reg) String() string {
	return r.Name(8)
}

// Name 返回指定宽度（字节）下的寄存器名
func (r Reg) Name(size int) string {
	if !r.Valid() {
		return "???"
	}
	switch size {
	case 1:
		return regNames8[r]
	case 2:
		return regNames16[r]
	case 4:
		return regNames32[r]
	default:
		return regNames64[r]
	}
}

// Valid 检查寄存器编号是否有效
func (r Reg) Valid() bool {
	return r <= R15
}

// IsExtended 检查是否是扩展寄存器（需要 REX 位）
func (r Reg) IsExtended() bool {
	return r >= R8 && r <= R15
}

// LowBits 寄存器编码的低 3 位
func (r Reg) LowBits() byte {
	return byte(r) & 0x7
}

// NeedsRexFor8Bit spl/bpl/sil/dil 只有在带 REX 前缀时才能寻址
func (r Reg) NeedsRexFor8Bit() bool {
	return r >= RSP && r <= RDI
}

// ============================================================================
// 位置
// ============================================================================

// Kind 位置种类
type Kind int

const (
	KindNone Kind = iota
	KindRegister
	KindMemory
	KindConst
)

func (k Kind) String() string {
	switch k {
	case KindRegister:
		return "register"
	case KindMemory:
		return "memory"
	case KindConst:
		return "const"
	default:
		return "none"
	}
}

// Location 硬件位置
type Location interface {
	Kind() Kind
	String() string
	// Uses 报告该位置是否读取寄存器 r（寄存器本身，或作为 base/index）
	Uses(r Reg) bool
	isLocation()
}

// Register 通用寄存器位置
type Register struct {
	ID Reg
}

// Memory 内存间接位置: [Base + Index*Scale + Disp]
//
// 零值的 Index 是 RAX 而不是 NoReg，用 Mem/MemIndex 构造。没有索引时 Scale 固定为 1。
type Memory struct {
	Base  Reg
	Index Reg
	Scale uint8
	Disp  int64
}

// Const 常量
type Const struct {
	Value int64
}

func (Register) isLocation() {}
func (Memory) isLocation()   {}
func (Const) isLocation()    {}

func (Register) Kind() Kind { return KindRegister }
func (Memory) Kind() Kind   { return KindMemory }
func (Const) Kind() Kind    { return KindConst }

func (r Register) String() string { return r.ID.String() }

func (r Register) Uses(reg Reg) bool { return r.ID == reg }

func (m Memory) Uses(reg Reg) bool {
	return (m.Base != NoReg && m.Base == reg) || (m.Index != NoReg && m.Index == reg)
}

func (c Const) Uses(Reg) bool { return false }

func (m Memory) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	sep := ""
	if m.Base != NoReg {
		sb.WriteString(m.Base.String())
		sep = "+"
	}
	if m.Index != NoReg {
		sb.WriteString(sep)
		sb.WriteString(m.Index.String())
		if m.Scale > 1 {
			fmt.Fprintf(&sb, "*%d", m.Scale)
		}
		sep = "+"
	}
	switch {
	case m.Disp < 0:
		fmt.Fprintf(&sb, "-0x%x", uint64(-m.Disp))
	case m.Disp > 0 || sep == "":
		fmt.Fprintf(&sb, "%s0x%x", sep, m.Disp)
	}
	sb.WriteByte(']')
	return sb.String()
}

func (c Const) String() string {
	if c.Value < 0 {
		return fmt.Sprintf("-0x%x", uint64(-c.Value))
	}
	return fmt.Sprintf("0x%x", c.Value)
}

// Replace 返回把 base/index 中的 old 换成 new 后的内存位置
func (m Memory) Replace(old, new Reg) Memory {
	if m.Base == old {
		m.Base = new
	}
	if m.Index == old {
		m.Index = new
	}
	return m
}

// ============================================================================
// 构造与判断
// ============================================================================

// Gpr 构造寄存器位置
func Gpr(id Reg) Register {
	return Register{ID: id}
}

// Mem 构造 [base+disp]
func Mem(base Reg, disp int64) Memory {
	return Memory{Base: base, Index: NoReg, Scale: 1, Disp: disp}
}

// MemIndex 构造 [base+index*scale+disp]；index 为 NoReg 时忽略 scale
func MemIndex(base, index Reg, scale uint8, disp int64) Memory {
	if index == NoReg {
		scale = 1
	}
	return Memory{Base: base, Index: index, Scale: scale, Disp: disp}
}

// Imm 构造常量位置
func Imm(v int64) Const {
	return Const{Value: v}
}

// Equal 结构相等（nil 安全），没有索引的内存位置不比较 Scale
func Equal(a, b Location) bool {
	return normalize(a) == normalize(b)
}

func normalize(loc Location) Location {
	if m, ok := loc.(Memory); ok && m.Index == NoReg {
		m.Scale = 1
		return m
	}
	return loc
}

// IsReg 检查 loc 是否是寄存器 id
func IsReg(loc Location, id Reg) bool {
	r, ok := loc.(Register)
	return ok && r.ID == id
}

// RegOf 返回寄存器位置的编号
func RegOf(loc Location) (Reg, bool) {
	r, ok := loc.(Register)
	if !ok {
		return NoReg, false
	}
	return r.ID, true
}

// Regs 返回位置读取的全部寄存器
func Regs(loc Location) []Reg {
	switch l := loc.(type) {
	case Register:
		return []Reg{l.ID}
	case Memory:
		var out []Reg
		if l.Base != NoReg {
			out = append(out, l.Base)
		}
		if l.Index != NoReg {
			out = append(out, l.Index)
		}
		return out
	}
	return nil
}
