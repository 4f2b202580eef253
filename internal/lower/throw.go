package lower

import (
	"github.com/jncronin/tysos-sub004/internal/errors"
	"github.com/jncronin/tysos-sub004/internal/output"
	"github.com/jncronin/tysos-sub004/internal/tac"
	"github.com/jncronin/tysos-sub004/internal/x64"
)

// 运行时静态抛出入口识别的异常编号
const (
	ExcInvalidCast     = 1
	ExcNullReference   = 2
	ExcOverflow        = 3
	ExcIndexOutOfRange = 4
	ExcDivideByZero    = 5
)

// throwConds 条件抛出在哪个条件下调用抛出例程
var throwConds = map[tac.ThrowCond]x64.Cond{
	tac.ThrowEq:    x64.CondE,
	tac.ThrowNe:    x64.CondNE,
	tac.ThrowOvf:   x64.CondO,
	tac.ThrowOvfUn: x64.CondB,
	tac.ThrowGeUn:  x64.CondAE,
	tac.ThrowGUn:   x64.CondA,
}

// VisitThrow 条件抛出
//
// 先构造抛出调用块并测量长度，再用互补条件的短跳转越过它：
// throweq 在不相等时跳过调用块。Src1 是抛出的值，常量走静态入口；
// throw_ovf 和 throw_ovf_un 缺省时抛出 OverflowException。
func (l *Lowerer) VisitThrow(t tac.Throw, o tac.Operation) ([]output.Unit, error) {
	cond, ok := throwConds[t.Cond]
	if !ok {
		return nil, errors.Unmapped(t.Tag())
	}

	value := o.Src1
	if value.IsNone() {
		switch t.Cond {
		case tac.ThrowOvf, tac.ThrowOvfUn:
			value = tac.ConstVar(ExcOverflow)
		default:
			return nil, errors.Unencodable("%s requires a thrown value", t.Tag())
		}
	}

	call, err := l.BuildThrowCall(value)
	if err != nil {
		return nil, err
	}
	return Measure(call).Resolve(cond.Negate())
}
