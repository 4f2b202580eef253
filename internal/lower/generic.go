package lower

import (
	"github.com/jncronin/tysos-sub004/internal/errors"
	"github.com/jncronin/tysos-sub004/internal/hwloc"
	"github.com/jncronin/tysos-sub004/internal/output"
	"github.com/jncronin/tysos-sub004/internal/tac"
	"github.com/jncronin/tysos-sub004/internal/x64"
)

// VisitBinary 通用三地址指令
//
// Result = Src1 op Src2 转换为两地址形式：结果与某个源相同时直接运算，
// 否则先把 Src1 移入结果再运算；结果同时被 Src2 读取时借用临时寄存器。
// cmp/test 只设置标志位，不写结果。
func (l *Lowerer) VisitBinary(bin tac.Binary, o tac.Operation) ([]output.Unit, error) {
	size, err := sizeOf(o.Width())
	if err != nil {
		return nil, err
	}
	src1, err := operand(o.Src1, "first source")
	if err != nil {
		return nil, err
	}

	b := l.newBuilder(o)

	if bin.Kind == tac.BinMov {
		dst, err := writable(o.Result, "result")
		if err != nil {
			return nil, err
		}
		b.move(size, dst, src1)
		return b.finish()
	}

	src2, err := operand(o.Src2, "second source")
	if err != nil {
		return nil, err
	}

	if !bin.Kind.WritesResult() {
		if src1.Kind() == hwloc.KindConst {
			if bin.Kind.Commutative() && src2.Kind() != hwloc.KindConst {
				src1, src2 = src2, src1
			} else {
				t := hwloc.Gpr(b.temp())
				b.move(size, t, src1)
				src1 = t
			}
		}
		b.alu(bin.Kind, size, src1, src2)
		return b.finish()
	}

	dst, err := writable(o.Result, "result")
	if err != nil {
		return nil, err
	}

	switch {
	case dst == src1:
		b.alu(bin.Kind, size, dst, src2)
	case bin.Kind.Commutative() && dst == src2:
		b.alu(bin.Kind, size, dst, src1)
	default:
		r, isReg := dst.(hwloc.Register)
		if isReg && !src2.Uses(r.ID) {
			b.move(size, dst, src1)
			b.alu(bin.Kind, size, dst, src2)
			break
		}
		t := hwloc.Gpr(b.temp())
		b.move(size, t, src1)
		b.alu(bin.Kind, size, t, src2)
		b.move(size, dst, t)
	}
	return b.finish()
}

// alu 发射 dst = dst op src 并选择编码形式
//
// 常量能符号扩展到 8 位时用 imm8 形式，否则用 imm32；qword 下超出 32 位的
// 常量先装入临时寄存器。两个内存操作数时 src 先装入临时寄存器。
func (b *builder) alu(kind tac.BinaryKind, size x64.Size, dst, src hwloc.Location) {
	if b.err != nil {
		return
	}
	name := kind.String()
	if dst.Kind() == hwloc.KindConst {
		b.fail(errors.Unencodable("%s: destination must be a register or memory, got %s", name, dst))
		return
	}

	switch s := src.(type) {
	case hwloc.Const:
		switch {
		case size == x64.SizeQword && !x64.FitsInt32(s.Value):
			t := hwloc.Gpr(b.temp(hwloc.Regs(dst)...))
			b.moveImm(size, t, s.Value)
			b.emit(name+" r/m, r", size, x64.NoPrefixes, dst, t)
		case size == x64.SizeByte || kind == tac.BinTest:
			b.emit(name+" r/m, imm32", size, x64.NoPrefixes, dst, s)
		case x64.FitsInt8(s.Value):
			b.emit(name+" r/m, imm8", size, x64.NoPrefixes, dst, s)
		default:
			b.emit(name+" r/m, imm32", size, x64.NoPrefixes, dst, s)
		}

	case hwloc.Register:
		b.emit(name+" r/m, r", size, x64.NoPrefixes, dst, s)

	case hwloc.Memory:
		switch {
		case kind == tac.BinTest && dst.Kind() == hwloc.KindRegister:
			// test 没有 r, r/m 形式，两个操作数可以交换
			b.emit("test r/m, r", size, x64.NoPrefixes, s, dst)
		case dst.Kind() == hwloc.KindRegister:
			b.emit(name+" r, r/m", size, x64.NoPrefixes, dst, s)
		default:
			t := hwloc.Gpr(b.temp())
			b.move(size, t, s)
			b.emit(name+" r/m, r", size, x64.NoPrefixes, dst, t)
		}

	default:
		b.fail(errors.Unencodable("%s: unsupported source %v", name, src))
	}
}

// VisitCall 直接调用符号，返回值从 rax 移入结果
func (l *Lowerer) VisitCall(c tac.Call, o tac.Operation) ([]output.Unit, error) {
	if c.Symbol == "" {
		return nil, errors.Unencodable("call without a target symbol")
	}
	b := l.newBuilder(o)
	b.call(c.Symbol, output.RelocPLT32)
	if !o.Result.IsNone() {
		dst, err := writable(o.Result, "result")
		if err != nil {
			return nil, err
		}
		b.move(x64.SizeQword, dst, rax)
	}
	return b.finish()
}
