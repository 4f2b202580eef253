package lower

import (
	"github.com/jncronin/tysos-sub004/internal/errors"
	"github.com/jncronin/tysos-sub004/internal/hwloc"
	"github.com/jncronin/tysos-sub004/internal/output"
	"github.com/jncronin/tysos-sub004/internal/tac"
	"github.com/jncronin/tysos-sub004/internal/x64"
)

// ReleaseScratch 释放锁时用作 cmpxchg 新值（0）的寄存器
const ReleaseScratch = hwloc.R11

var (
	rax = hwloc.Gpr(hwloc.RAX)
	al  = rax
)

// VisitLockAcquire 原子获取锁：锁字为 0 时写入持有者值
//
//	xor eax, eax
//	lock cmpxchg [lock], holder
//	setz al
//	movzx result, al
//
// cmpxchg 固定用 rax 作比较值并会覆盖它。锁地址、持有者值或结果地址在 rax 中时，
// 先把它搬到临时寄存器，再开始上面的序列。
func (l *Lowerer) VisitLockAcquire(_ tac.LockAcquire, o tac.Operation) ([]output.Unit, error) {
	size, err := sizeOf(o.Width())
	if err != nil {
		return nil, err
	}
	lock, err := lockWord(o.Src1)
	if err != nil {
		return nil, err
	}
	holder, err := operand(o.Src2, "holder")
	if err != nil {
		return nil, err
	}
	var result hwloc.Location
	if !o.Result.IsNone() {
		if result, err = writable(o.Result, "result"); err != nil {
			return nil, err
		}
	}

	b := l.newBuilder(o)
	b.pinned = append(b.pinned, hwloc.RAX)
	avoid := operandRegs(lock, holder, result)

	resMem, resIsMem := result.(hwloc.Memory)
	if lock.Uses(hwloc.RAX) || hwloc.IsReg(holder, hwloc.RAX) || (resIsMem && resMem.Uses(hwloc.RAX)) {
		moved := b.relocate(hwloc.RAX, avoid...)
		lock = lock.Replace(hwloc.RAX, moved)
		if hwloc.IsReg(holder, hwloc.RAX) {
			holder = hwloc.Gpr(moved)
		}
		if resIsMem {
			result = resMem.Replace(hwloc.RAX, moved)
		}
	}

	holderReg, ok := holder.(hwloc.Register)
	if !ok {
		holderReg = hwloc.Gpr(b.temp(avoid...))
		b.move(size, holderReg, holder)
	}

	b.emit("xor r/m, r", x64.SizeDword, x64.NoPrefixes, rax, rax)
	b.emit("cmpxchg r/m, r", size, x64.NoPrefixes.WithLock(), lock, holderReg, rax)
	b.setResult(result)
	return b.finish()
}

// VisitLockRelease 原子释放锁：锁字等于期望的持有者值时写入 0
//
//	mov rax, expected        ; Src2 缺省时由调用者预先装入
//	xor r11d, r11d
//	lock cmpxchg [lock], r11
//
// 锁地址用到 r11（或需要装入期望值时用到 rax）时，先把地址搬到另一个寄存器。
// 结果地址用到 r11 或 rax 时同样处理。
func (l *Lowerer) VisitLockRelease(_ tac.LockRelease, o tac.Operation) ([]output.Unit, error) {
	size, err := sizeOf(o.Width())
	if err != nil {
		return nil, err
	}
	lock, err := lockWord(o.Src1)
	if err != nil {
		return nil, err
	}
	var expected hwloc.Location
	if !o.Src2.IsNone() {
		if expected, err = operand(o.Src2, "expected"); err != nil {
			return nil, err
		}
	}
	var result hwloc.Location
	if !o.Result.IsNone() {
		if result, err = writable(o.Result, "result"); err != nil {
			return nil, err
		}
	}

	b := l.newBuilder(o)
	b.pinned = append(b.pinned, hwloc.RAX, ReleaseScratch)
	avoid := operandRegs(lock, expected, result)

	moved := make(map[hwloc.Reg]hwloc.Reg)
	away := func(r hwloc.Reg) hwloc.Reg {
		if to, ok := moved[r]; ok {
			return to
		}
		to := b.relocate(r, avoid...)
		moved[r] = to
		return to
	}

	needLoad := expected != nil && !hwloc.IsReg(expected, hwloc.RAX)
	clobbered := []hwloc.Reg{ReleaseScratch}
	if needLoad {
		clobbered = append(clobbered, hwloc.RAX)
	}
	for _, r := range clobbered {
		if lock.Uses(r) {
			lock = lock.Replace(r, away(r))
		}
	}
	// setz 总是写 al
	if m, ok := result.(hwloc.Memory); ok {
		for _, r := range []hwloc.Reg{ReleaseScratch, hwloc.RAX} {
			if m.Uses(r) {
				m = m.Replace(r, away(r))
			}
		}
		result = m
	}

	if needLoad {
		b.move(size, rax, expected)
	}
	scratch := hwloc.Gpr(ReleaseScratch)
	b.emit("xor r/m, r", x64.SizeDword, x64.NoPrefixes, scratch, scratch)
	b.emit("cmpxchg r/m, r", size, x64.NoPrefixes.WithLock(), lock, scratch, rax)
	b.setResult(result)
	return b.finish()
}

// setResult 把 ZF 转换为 0/1 写入结果；result 为 nil 时不发射
//
// 内存结果经由临时寄存器写入，rax 只作 setz 的目标。
func (b *builder) setResult(result hwloc.Location) {
	if result == nil {
		return
	}
	b.emitOp(x64.MustLookup("setcc r/m8").WithCond(x64.CondE), x64.SizeByte, x64.NoPrefixes, al)
	switch r := result.(type) {
	case hwloc.Register:
		b.emit("movzx r, r/m8", x64.SizeDword, x64.NoPrefixes, r, al)
	case hwloc.Memory:
		t := hwloc.Gpr(b.temp(hwloc.Regs(r)...))
		b.emit("movzx r, r/m8", x64.SizeDword, x64.NoPrefixes, t, al)
		b.emit("mov r/m, r", x64.SizeDword, x64.NoPrefixes, r, t)
	default:
		b.fail(errors.Unencodable("result must be a register or memory, got %s", result))
	}
}

// operandRegs 收集操作数用到的全部寄存器，挑选临时寄存器时避开它们
func operandRegs(locs ...hwloc.Location) []hwloc.Reg {
	var out []hwloc.Reg
	for _, loc := range locs {
		if loc != nil {
			out = append(out, hwloc.Regs(loc)...)
		}
	}
	return out
}
