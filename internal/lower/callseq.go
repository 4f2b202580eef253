package lower

import (
	"github.com/jncronin/tysos-sub004/internal/errors"
	"github.com/jncronin/tysos-sub004/internal/hwloc"
	"github.com/jncronin/tysos-sub004/internal/output"
	"github.com/jncronin/tysos-sub004/internal/tac"
	"github.com/jncronin/tysos-sub004/internal/x64"
)

// CallConv 运行时抛出入口的调用约定
//
// 两个入口的参数相同：Arg0 是抛出的值（动态入口为异常对象，静态入口为
// 32 位异常编号），Arg1 是当前方法的 method-info 指针，没有时为 0。
type CallConv struct {
	Throw       string // 动态异常值入口
	StaticThrow string // 编译期已知异常编号入口
	Arg0        hwloc.Reg
	Arg1        hwloc.Reg
	Reloc       output.RelocKind
}

// DefaultCallConv 默认约定：throw/sthrow，参数在 rdi/rsi，PC32 重定位
func DefaultCallConv() CallConv {
	return CallConv{
		Throw:       "throw",
		StaticThrow: "sthrow",
		Arg0:        hwloc.RDI,
		Arg1:        hwloc.RSI,
		Reloc:       output.RelocPC32,
	}
}

// Symbol 按抛出值是否为常量选择入口
func (c CallConv) Symbol(value tac.Var) string {
	if value.IsConst() {
		return c.StaticThrow
	}
	return c.Throw
}

// BuildThrowCall 构造调用运行时抛出例程的代码块
//
// 两个参数的装入是并行移动：某个参数的源恰好是另一个参数的目标寄存器时，
// 调整顺序；两个源互相交叉时用 xchg 或临时寄存器。
func (l *Lowerer) BuildThrowCall(value tac.Var) ([]output.Unit, error) {
	cc := l.conv
	symbol := cc.Symbol(value)

	arg0 := hwloc.Gpr(cc.Arg0)
	arg1 := hwloc.Gpr(cc.Arg1)

	src0, err := operand(value, "thrown value")
	if err != nil {
		return nil, err
	}
	if k, ok := src0.(hwloc.Const); ok && !fitsDword(k.Value) {
		return nil, errors.Unencodable("static exception code %d does not fit 32 bits", k.Value)
	}
	src1, hasInfo := l.state.MethodInfo()

	b := &builder{l: l}
	b.pinned = append(b.pinned, cc.Arg0, cc.Arg1)
	b.pinned = append(b.pinned, hwloc.Regs(src0)...)
	if hasInfo {
		b.pinned = append(b.pinned, hwloc.Regs(src1)...)
	}

	load0 := func() {
		if k, ok := src0.(hwloc.Const); ok {
			b.emit("mov r32, imm32", x64.SizeDword, x64.NoPrefixes, arg0, hwloc.Imm(int64(uint32(k.Value))))
			return
		}
		b.move(x64.SizeQword, arg0, src0)
	}

	switch {
	case !hasInfo:
		load0()
		b.emit("xor r/m, r", x64.SizeDword, x64.NoPrefixes, arg1, arg1)

	case src1.Uses(cc.Arg0) && src0.Uses(cc.Arg1):
		// 两个源交叉
		if hwloc.IsReg(src0, cc.Arg1) && hwloc.IsReg(src1, cc.Arg0) {
			b.emit("xchg r/m, r", x64.SizeQword, x64.NoPrefixes, arg0, arg1)
			break
		}
		t := hwloc.Gpr(b.temp())
		b.move(x64.SizeQword, t, src1)
		load0()
		b.move(x64.SizeQword, arg1, t)

	case src1.Uses(cc.Arg0):
		b.move(x64.SizeQword, arg1, src1)
		load0()

	default:
		load0()
		b.move(x64.SizeQword, arg1, src1)
	}

	b.call(symbol, cc.Reloc)
	return b.finish()
}

func fitsDword(v int64) bool {
	return x64.FitsInt32(v) || (v >= 0 && v <= 0xFFFFFFFF)
}
