// catalog.go - 操作码目录
//
// 每个条目描述一种指令形式：助记符、原始操作码字节、各操作数的编码槽位。
// 目录在包初始化时静态构造，运行期只读。
//
// 形式名沿用手册写法，例如 "mov r/m, r"、"add r/m, imm8"、"movzx r, r/m8"。
// 不带宽度后缀的形式用于 word/dword/qword，带 8 的形式用于字节操作。

package x64

import (
	"fmt"
	"sort"
)

// Slot 操作数编码槽位
type Slot int

const (
	SlotNone  Slot = iota
	SlotReg        // ModR/M.reg
	SlotRM         // ModR/M.r/m（寄存器或内存）
	SlotOpReg      // 操作码低 3 位中的寄存器 (B8+r)
	SlotImm8
	SlotImm16
	SlotImm32
	SlotImm64
	SlotRel8  // 相对位移，可由重定位填充
	SlotRel32 // 相对位移，可由重定位填充
	SlotAcc   // 隐含的累加器 rax，不编码
)

func (s Slot) String() string {
	switch s {
	case SlotReg:
		return "reg"
	case SlotRM:
		return "r/m"
	case SlotOpReg:
		return "+r"
	case SlotImm8:
		return "imm8"
	case SlotImm16:
		return "imm16"
	case SlotImm32:
		return "imm32"
	case SlotImm64:
		return "imm64"
	case SlotRel8:
		return "rel8"
	case SlotRel32:
		return "rel32"
	case SlotAcc:
		return "acc"
	default:
		return "none"
	}
}

// Opcode 指令描述符
type Opcode struct {
	Form     string  // 目录键
	Mnemonic string  // 助记符
	Bytes    []byte  // 原始操作码字节
	Digit    int8    // ModR/M.reg 中的 /digit 扩展，-1 表示无
	Slots    [4]Slot // 操作数槽位
	RMSize   Size    // r/m 操作数宽度与指令宽度不同时填写（movzx/movsx/setcc）
	MemOnly  bool    // r/m 只接受内存（lea）
}

// rmSize 返回 r/m 操作数的宽度
func (o *Opcode) rmSize(size Size) Size {
	if o.RMSize != SizeNone {
		return o.RMSize
	}
	return size
}

// WithCond 对 Jcc/SETcc 形式返回填入条件码后的副本
func (o *Opcode) WithCond(c Cond) *Opcode {
	cp := *o
	cp.Bytes = append([]byte(nil), o.Bytes...)
	cp.Bytes[len(cp.Bytes)-1] |= byte(c & 0xF)
	switch o.Mnemonic {
	case "jcc":
		cp.Mnemonic = "j" + c.String()
	case "setcc":
		cp.Mnemonic = "set" + c.String()
	}
	return &cp
}

// ============================================================================
// 目录
// ============================================================================

var (
	catalog     = map[string]*Opcode{}
	byteVariant = map[string]string{}
	wordVariant = map[string]string{}
)

func def(form, mnemonic string, digit int8, bytes []byte, slots ...Slot) *Opcode {
	if _, dup := catalog[form]; dup {
		panic(fmt.Sprintf("x64: duplicate opcode form %q", form))
	}
	o := &Opcode{Form: form, Mnemonic: mnemonic, Bytes: bytes, Digit: digit}
	copy(o.Slots[:], slots)
	catalog[form] = o
	return o
}

// aluOps 两操作数算术/逻辑指令：基础操作码和 0x80/0x81/0x83 组的 /digit
var aluOps = []struct {
	name  string
	base  byte
	digit int8
}{
	{"add", 0x00, 0},
	{"or", 0x08, 1},
	{"and", 0x20, 4},
	{"sub", 0x28, 5},
	{"xor", 0x30, 6},
	{"cmp", 0x38, 7},
}

func init() {
	// 数据移动
	def("mov r/m8, r8", "mov", -1, []byte{0x88}, SlotRM, SlotReg)
	def("mov r/m, r", "mov", -1, []byte{0x89}, SlotRM, SlotReg)
	def("mov r8, r/m8", "mov", -1, []byte{0x8A}, SlotReg, SlotRM)
	def("mov r, r/m", "mov", -1, []byte{0x8B}, SlotReg, SlotRM)
	def("mov r8, imm8", "mov", -1, []byte{0xB0}, SlotOpReg, SlotImm8)
	def("mov r16, imm16", "mov", -1, []byte{0xB8}, SlotOpReg, SlotImm16)
	def("mov r32, imm32", "mov", -1, []byte{0xB8}, SlotOpReg, SlotImm32)
	def("mov r64, imm64", "movabs", -1, []byte{0xB8}, SlotOpReg, SlotImm64)
	def("mov r/m8, imm8", "mov", 0, []byte{0xC6}, SlotRM, SlotImm8)
	def("mov r/m16, imm16", "mov", 0, []byte{0xC7}, SlotRM, SlotImm16)
	def("mov r/m, imm32", "mov", 0, []byte{0xC7}, SlotRM, SlotImm32)
	def("lea r, m", "lea", -1, []byte{0x8D}, SlotReg, SlotRM).MemOnly = true
	def("xchg r/m, r", "xchg", -1, []byte{0x87}, SlotRM, SlotReg)

	// 扩展
	def("movzx r, r/m8", "movzx", -1, []byte{0x0F, 0xB6}, SlotReg, SlotRM).RMSize = SizeByte
	def("movzx r, r/m16", "movzx", -1, []byte{0x0F, 0xB7}, SlotReg, SlotRM).RMSize = SizeWord
	def("movsx r, r/m8", "movsx", -1, []byte{0x0F, 0xBE}, SlotReg, SlotRM).RMSize = SizeByte
	def("movsx r, r/m16", "movsx", -1, []byte{0x0F, 0xBF}, SlotReg, SlotRM).RMSize = SizeWord
	def("movsxd r, r/m32", "movsxd", -1, []byte{0x63}, SlotReg, SlotRM).RMSize = SizeDword

	byteVariant["mov r/m, r"] = "mov r/m8, r8"
	byteVariant["mov r, r/m"] = "mov r8, r/m8"
	byteVariant["mov r/m, imm32"] = "mov r/m8, imm8"
	byteVariant["mov r32, imm32"] = "mov r8, imm8"
	wordVariant["mov r/m, imm32"] = "mov r/m16, imm16"
	wordVariant["mov r32, imm32"] = "mov r16, imm16"

	// 算术/逻辑
	for _, op := range aluOps {
		byteVariant[op.name+" r/m, r"] = op.name + " r/m8, r8"
		byteVariant[op.name+" r, r/m"] = op.name + " r8, r/m8"
		byteVariant[op.name+" r/m, imm8"] = op.name + " r/m8, imm8"
		byteVariant[op.name+" r/m, imm32"] = op.name + " r/m8, imm8"
		wordVariant[op.name+" r/m, imm32"] = op.name + " r/m16, imm16"

		def(op.name+" r/m8, r8", op.name, -1, []byte{op.base}, SlotRM, SlotReg)
		def(op.name+" r/m, r", op.name, -1, []byte{op.base + 1}, SlotRM, SlotReg)
		def(op.name+" r8, r/m8", op.name, -1, []byte{op.base + 2}, SlotReg, SlotRM)
		def(op.name+" r, r/m", op.name, -1, []byte{op.base + 3}, SlotReg, SlotRM)
		def(op.name+" r/m8, imm8", op.name, op.digit, []byte{0x80}, SlotRM, SlotImm8)
		def(op.name+" r/m, imm8", op.name, op.digit, []byte{0x83}, SlotRM, SlotImm8)
		def(op.name+" r/m16, imm16", op.name, op.digit, []byte{0x81}, SlotRM, SlotImm16)
		def(op.name+" r/m, imm32", op.name, op.digit, []byte{0x81}, SlotRM, SlotImm32)
	}
	def("test r/m8, r8", "test", -1, []byte{0x84}, SlotRM, SlotReg)
	def("test r/m, r", "test", -1, []byte{0x85}, SlotRM, SlotReg)
	def("test r/m8, imm8", "test", 0, []byte{0xF6}, SlotRM, SlotImm8)
	def("test r/m16, imm16", "test", 0, []byte{0xF7}, SlotRM, SlotImm16)
	def("test r/m, imm32", "test", 0, []byte{0xF7}, SlotRM, SlotImm32)
	byteVariant["test r/m, r"] = "test r/m8, r8"
	byteVariant["test r/m, imm32"] = "test r/m8, imm8"
	wordVariant["test r/m, imm32"] = "test r/m16, imm16"

	// 原子操作
	def("cmpxchg r/m8, r8", "cmpxchg", -1, []byte{0x0F, 0xB0}, SlotRM, SlotReg, SlotAcc)
	def("cmpxchg r/m, r", "cmpxchg", -1, []byte{0x0F, 0xB1}, SlotRM, SlotReg, SlotAcc)
	byteVariant["cmpxchg r/m, r"] = "cmpxchg r/m8, r8"

	// 条件设置
	def("setcc r/m8", "setcc", 0, []byte{0x0F, 0x90}, SlotRM).RMSize = SizeByte

	// 控制流
	def("jcc rel8", "jcc", -1, []byte{0x70}, SlotRel8)
	def("jcc rel32", "jcc", -1, []byte{0x0F, 0x80}, SlotRel32)
	def("jmp rel8", "jmp", -1, []byte{0xEB}, SlotRel8)
	def("jmp rel32", "jmp", -1, []byte{0xE9}, SlotRel32)
	def("call rel32", "call", -1, []byte{0xE8}, SlotRel32)
	def("ret", "ret", -1, []byte{0xC3})
}

// Lookup 按形式名查找操作码
func Lookup(form string) (*Opcode, bool) {
	o, ok := catalog[form]
	return o, ok
}

// MustLookup 按形式名查找操作码，目录中不存在时 panic
//
// 形式名都是编译期字面量，查不到属于程序错误。
func MustLookup(form string) *Opcode {
	o, ok := catalog[form]
	if !ok {
		panic(fmt.Sprintf("x64: unknown opcode form %q", form))
	}
	return o
}

// Sized 返回适合宽度 size 的形式：字节和字操作优先使用各自的变体
//
// 例如 Sized("add r/m, r", SizeByte) 返回 "add r/m8, r8"。
func Sized(form string, size Size) *Opcode {
	switch size {
	case SizeByte:
		if v, ok := byteVariant[form]; ok {
			return MustLookup(v)
		}
	case SizeWord:
		if v, ok := wordVariant[form]; ok {
			return MustLookup(v)
		}
	}
	return MustLookup(form)
}

// Forms 返回目录中所有形式名（已排序）
func Forms() []string {
	out := make([]string, 0, len(catalog))
	for k := range catalog {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
