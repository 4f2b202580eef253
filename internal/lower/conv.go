package lower

import (
	"github.com/jncronin/tysos-sub004/internal/errors"
	"github.com/jncronin/tysos-sub004/internal/hwloc"
	"github.com/jncronin/tysos-sub004/internal/output"
	"github.com/jncronin/tysos-sub004/internal/tac"
	"github.com/jncronin/tysos-sub004/internal/x64"
)

// extendForms 扩展指令形式，按 [有符号][源宽度] 索引
var extendForms = map[bool]map[int]string{
	true: {
		1: "movsx r, r/m8",
		2: "movsx r, r/m16",
		4: "movsxd r, r/m32",
	},
	false: {
		1: "movzx r, r/m8",
		2: "movzx r, r/m16",
	},
}

// VisitConv 整数宽度转换
//
// 扩展按源宽度和符号选择 movsx/movsxd/movzx，REX.W 由目标宽度决定。
// 同宽度或截断时是一条目标宽度的 mov。常量源在编译期折叠。
func (l *Lowerer) VisitConv(c tac.Conv, o tac.Operation) ([]output.Unit, error) {
	dstSize, err := sizeOf(c.Dst)
	if err != nil {
		return nil, err
	}
	if _, err := sizeOf(c.Src); err != nil {
		return nil, err
	}
	if c.Dst == 8 && c.Src == 4 && !c.Signed {
		return l.VisitZeroExtend32(tac.ZeroExtend32{}, o)
	}

	// 旧架构变体没有 64 位寄存器：截断方向不需要任何指令，扩展方向无法表示
	if l.state.Variant == VariantI586 && c.Signed && isDwordQwordPair(c) {
		if c.Dst <= c.Src {
			return []output.Unit{}, nil
		}
		return nil, errors.Unsupported("%s requires 64-bit registers, target variant is %s", c.Tag(), l.state.Variant)
	}

	dst, err := writable(o.Result, "result")
	if err != nil {
		return nil, err
	}
	src, err := operand(o.Src1, "source")
	if err != nil {
		return nil, err
	}

	b := l.newBuilder(o)

	if k, ok := src.(hwloc.Const); ok {
		v := extend(k.Value, min(c.Dst, c.Src), c.Signed)
		b.move(dstSize, dst, hwloc.Imm(v))
		return b.finish()
	}

	if c.Dst <= c.Src {
		// 截断只取低位，小端内存的低位就在同一地址。
		// 只有 32 位写会清零高半部分，其余宽度原地不变
		if c.Dst != 4 && hwloc.Equal(dst, src) {
			return b.finish()
		}
		if s, ok := src.(hwloc.Register); ok && hwloc.Equal(dst, src) {
			b.emit("mov r/m, r", dstSize, x64.NoPrefixes, s, s)
			return b.finish()
		}
		b.move(dstSize, dst, src)
		return b.finish()
	}

	form := extendForms[c.Signed][c.Src]
	b.intoReg(dstSize, dst, func(r hwloc.Register) {
		b.emit(form, dstSize, x64.NoPrefixes, r, src)
	})
	return b.finish()
}

// VisitZeroExtend32 无符号 32→64 扩展
//
// 写 32 位寄存器时处理器会清零高 32 位，所以这里是一条 mov r32, r/m32，
// 不使用显式扩展指令。结果与源是同一寄存器时也要发射，正是这次写入清零了高位。
func (l *Lowerer) VisitZeroExtend32(_ tac.ZeroExtend32, o tac.Operation) ([]output.Unit, error) {
	dst, err := writable(o.Result, "result")
	if err != nil {
		return nil, err
	}
	src, err := operand(o.Src1, "source")
	if err != nil {
		return nil, err
	}

	b := l.newBuilder(o)
	b.intoReg(x64.SizeQword, dst, func(r hwloc.Register) {
		if k, ok := src.(hwloc.Const); ok {
			b.emit("mov r32, imm32", x64.SizeDword, x64.NoPrefixes, r, hwloc.Imm(int64(uint32(k.Value))))
			return
		}
		b.emit("mov r, r/m", x64.SizeDword, x64.NoPrefixes, r, src)
	})
	return b.finish()
}

// intoReg 在寄存器中计算结果；结果在内存时借用临时寄存器，再以 size 宽度写回
func (b *builder) intoReg(size x64.Size, dst hwloc.Location, fn func(r hwloc.Register)) {
	if r, ok := dst.(hwloc.Register); ok {
		fn(r)
		return
	}
	t := hwloc.Gpr(b.temp())
	if b.err != nil {
		return
	}
	fn(t)
	b.move(size, dst, t)
}

func isDwordQwordPair(c tac.Conv) bool {
	return (c.Dst == 4 && c.Src == 8) || (c.Dst == 8 && c.Src == 4)
}

// extend 取 v 的低 n 字节，按符号或零扩展到 64 位
func extend(v int64, n int, signed bool) int64 {
	switch n {
	case 1:
		if signed {
			return int64(int8(v))
		}
		return int64(uint8(v))
	case 2:
		if signed {
			return int64(int16(v))
		}
		return int64(uint16(v))
	case 4:
		if signed {
			return int64(int32(v))
		}
		return int64(uint32(v))
	}
	return v
}
