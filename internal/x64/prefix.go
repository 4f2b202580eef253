package x64

// ============================================================================
// 操作数宽度
// ============================================================================

// Size 操作数宽度（字节）
type Size int

const (
	SizeNone  Size = 0
	SizeByte  Size = 1
	SizeWord  Size = 2
	SizeDword Size = 4
	SizeQword Size = 8
)

// Valid 检查是否是通用寄存器可用的宽度
func (s Size) Valid() bool {
	return s == SizeByte || s == SizeWord || s == SizeDword || s == SizeQword
}

func (s Size) String() string {
	switch s {
	case SizeByte:
		return "byte"
	case SizeWord:
		return "word"
	case SizeDword:
		return "dword"
	case SizeQword:
		return "qword"
	default:
		return ""
	}
}

// ============================================================================
// 前缀
// ============================================================================

// Prefixes 单条指令的前缀集合
//
// 值类型，每条指令在一个表达式里构造完成：
//
//	x64.Prefixes{}.WithLock()
//
// REX.R/X/B 由编码器根据操作数推导，这里只记录语义上要求的位。
type Prefixes struct {
	Lock     bool // 0xF0
	Rep      bool // 0xF3
	RepNE    bool // 0xF2
	OpSize   bool // 0x66，宽度为 word 时编码器自动加上
	AddrSize bool // 0x67
	RexW     bool // 宽度为 qword 时编码器自动加上
	ForceRex bool // 即使没有任何 REX 位也输出 0x40
}

// NoPrefixes 空前缀
var NoPrefixes = Prefixes{}

// WithLock 原子指令的总线锁前缀
func (p Prefixes) WithLock() Prefixes { p.Lock = true; return p }

// legacy 按固定顺序返回传统前缀字节
func (p Prefixes) legacy(size Size) []byte {
	var out []byte
	if p.Lock {
		out = append(out, 0xF0)
	}
	if p.Rep {
		out = append(out, 0xF3)
	}
	if p.RepNE {
		out = append(out, 0xF2)
	}
	if p.OpSize || size == SizeWord {
		out = append(out, 0x66)
	}
	if p.AddrSize {
		out = append(out, 0x67)
	}
	return out
}

// mnemonicPrefix 反汇编文本中的前缀
func (p Prefixes) mnemonicPrefix() string {
	switch {
	case p.Lock:
		return "lock "
	case p.Rep:
		return "rep "
	case p.RepNE:
		return "repne "
	}
	return ""
}

// rex 构造 REX 前缀
// w: 64 位操作数
// r: 扩展 ModR/M.reg
// x: 扩展 SIB.index
// b: 扩展 ModR/M.r/m 或 SIB.base
func rex(w, r, x, b bool) byte {
	var v byte = 0x40
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

// modrm 构造 ModR/M 字节
func modrm(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 0x7) << 3) | (rm & 0x7)
}

// sib 构造 SIB 字节
func sib(scale, index, base byte) byte {
	return (scale << 6) | ((index & 0x7) << 3) | (base & 0x7)
}
