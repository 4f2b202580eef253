package lower

import (
	"math"

	"go.uber.org/zap"

	"github.com/jncronin/tysos-sub004/internal/errors"
	"github.com/jncronin/tysos-sub004/internal/hwloc"
	"github.com/jncronin/tysos-sub004/internal/output"
	"github.com/jncronin/tysos-sub004/internal/tac"
	"github.com/jncronin/tysos-sub004/internal/x64"
)

// builder 收集一个操作的输出单元
//
// 第一次失败后的所有发射都被忽略，最后由 finish 返回该错误。
// pinned 是本操作的操作数读取的寄存器，临时寄存器不会从中挑选。
type builder struct {
	l      *Lowerer
	pinned []hwloc.Reg
	units  []output.Unit
	err    error
}

func (l *Lowerer) newBuilder(o tac.Operation) *builder {
	b := &builder{l: l}
	for _, v := range []tac.Var{o.Result, o.Src1, o.Src2} {
		b.pinned = append(b.pinned, hwloc.Regs(v.Loc())...)
	}
	return b
}

func (b *builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *builder) finish() ([]output.Unit, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.units == nil {
		return []output.Unit{}, nil
	}
	return b.units, nil
}

// emit 编码一条指令；form 按 size 选取字节/字变体
func (b *builder) emit(form string, size x64.Size, pfx x64.Prefixes, args ...hwloc.Location) {
	b.emitOp(x64.Sized(form, size), size, pfx, args...)
}

func (b *builder) emitOp(op *x64.Opcode, size x64.Size, pfx x64.Prefixes, args ...hwloc.Location) {
	if b.err != nil {
		return
	}
	code, err := x64.Encode(op, size, pfx, args...)
	if err != nil {
		b.fail(err)
		return
	}
	b.units = append(b.units, output.NewCode(code, x64.Format(op, size, pfx, args...)))
}

// call 发射 call rel32 及目标符号的重定位
func (b *builder) call(symbol string, kind output.RelocKind) {
	if b.err != nil {
		return
	}
	op := x64.MustLookup("call rel32")
	code, err := x64.Encode(op, x64.SizeNone, x64.NoPrefixes)
	if err != nil {
		b.fail(err)
		return
	}
	b.units = append(b.units,
		output.NewCode(code, "call "+symbol),
		output.NewReloc(symbol, kind, kind.DefaultAddend()))
}

func (b *builder) append(units ...output.Unit) {
	if b.err != nil {
		return
	}
	b.units = append(b.units, units...)
}

// temp 挑选一个临时寄存器并固定它，避免同一操作内重复挑选
func (b *builder) temp(exclude ...hwloc.Reg) hwloc.Reg {
	if b.err != nil {
		return hwloc.NoReg
	}
	r, ok := b.l.state.scratch(append(exclude, b.pinned...)...)
	if !ok {
		b.fail(errors.Unencodable("no scratch register available"))
		return hwloc.NoReg
	}
	b.pinned = append(b.pinned, r)
	return r
}

// relocate 把 from 的内容搬到临时寄存器，用于避开指令固定使用的寄存器
func (b *builder) relocate(from hwloc.Reg, exclude ...hwloc.Reg) hwloc.Reg {
	to := b.temp(exclude...)
	if b.err != nil {
		return hwloc.NoReg
	}
	b.emit("mov r/m, r", x64.SizeQword, x64.NoPrefixes, hwloc.Gpr(to), hwloc.Gpr(from))
	b.l.stats.relocationMove()
	b.l.log.Debug("relocation move",
		zap.Stringer("from", from),
		zap.Stringer("to", to))
	return to
}

// ============================================================================
// 移动
// ============================================================================

// move dst = src，宽度 size；dst == src 时不发射
func (b *builder) move(size x64.Size, dst, src hwloc.Location) {
	if b.err != nil || dst == src {
		return
	}
	switch d := dst.(type) {
	case hwloc.Register:
		switch s := src.(type) {
		case hwloc.Register:
			b.emit("mov r/m, r", size, x64.NoPrefixes, d, s)
		case hwloc.Memory:
			b.emit("mov r, r/m", size, x64.NoPrefixes, d, s)
		case hwloc.Const:
			b.moveImm(size, d, s.Value)
		default:
			b.fail(errors.Unencodable("mov: unsupported source %v", src))
		}
	case hwloc.Memory:
		switch s := src.(type) {
		case hwloc.Register:
			b.emit("mov r/m, r", size, x64.NoPrefixes, d, s)
		case hwloc.Memory:
			t := hwloc.Gpr(b.temp())
			b.emit("mov r, r/m", size, x64.NoPrefixes, t, s)
			b.emit("mov r/m, r", size, x64.NoPrefixes, d, t)
		case hwloc.Const:
			if size == x64.SizeQword && !x64.FitsInt32(s.Value) {
				t := hwloc.Gpr(b.temp())
				b.moveImm(size, t, s.Value)
				b.emit("mov r/m, r", size, x64.NoPrefixes, d, t)
				return
			}
			b.emit("mov r/m, imm32", size, x64.NoPrefixes, d, s)
		default:
			b.fail(errors.Unencodable("mov: unsupported source %v", src))
		}
	default:
		b.fail(errors.Unencodable("mov: destination must be a register or memory, got %v", dst))
	}
}

// moveImm 把常量装入寄存器，选择最短的编码
//
// qword 时：能符号扩展的用 C7 /0 imm32；能零扩展的用 32 位 mov；否则 movabs。
func (b *builder) moveImm(size x64.Size, dst hwloc.Register, v int64) {
	if size != x64.SizeQword {
		b.emit("mov r32, imm32", size, x64.NoPrefixes, dst, hwloc.Imm(v))
		return
	}
	switch {
	case x64.FitsInt32(v):
		b.emit("mov r/m, imm32", x64.SizeQword, x64.NoPrefixes, dst, hwloc.Imm(v))
	case v >= 0 && v <= math.MaxUint32:
		b.emit("mov r32, imm32", x64.SizeDword, x64.NoPrefixes, dst, hwloc.Imm(v))
	default:
		b.emit("mov r64, imm64", x64.SizeQword, x64.NoPrefixes, dst, hwloc.Imm(v))
	}
}

// ============================================================================
// 操作数
// ============================================================================

// operand 返回已解析操作数的位置
func operand(v tac.Var, what string) (hwloc.Location, error) {
	if !v.IsResolved() {
		return nil, errors.Unencodable("%s operand %s has no hardware location", what, v)
	}
	return v.Loc(), nil
}

// writable 返回可写操作数（寄存器或内存）的位置
func writable(v tac.Var, what string) (hwloc.Location, error) {
	loc, err := operand(v, what)
	if err != nil {
		return nil, err
	}
	if loc.Kind() == hwloc.KindConst {
		return nil, errors.Unencodable("%s operand must be a register or memory, got constant %s", what, loc)
	}
	return loc, nil
}

// lockWord 锁字位置：寄存器表示锁字的地址，内存位置即锁字本身
func lockWord(v tac.Var) (hwloc.Memory, error) {
	loc, err := operand(v, "lock")
	if err != nil {
		return hwloc.Memory{}, err
	}
	switch l := loc.(type) {
	case hwloc.Register:
		return hwloc.Mem(l.ID, 0), nil
	case hwloc.Memory:
		return l, nil
	}
	return hwloc.Memory{}, errors.Unencodable("lock operand must be an address, got constant %s", loc)
}

// sizeOf 把字节宽度转换为操作数宽度
func sizeOf(n int) (x64.Size, error) {
	s := x64.Size(n)
	if !s.Valid() {
		return x64.SizeNone, errors.Unencodable("invalid operand width %d", n)
	}
	return s, nil
}
