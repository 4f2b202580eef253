package tac

import (
	"fmt"
	"strings"

	"github.com/jncronin/tysos-sub004/internal/errors"
	"github.com/jncronin/tysos-sub004/internal/output"
)

// Pos 源码位置
type Pos = errors.Pos

// Operation 一条 TAC 操作
type Operation struct {
	Op     Op
	Result Var
	Src1   Var
	Src2   Var
	Size   int // 操作数宽度（字节），0 表示 8
	Pos    Pos
}

// Width 返回操作数宽度，缺省为 8
func (o Operation) Width() int {
	if o.Size == 0 {
		return 8
	}
	return o.Size
}

func (o Operation) String() string {
	var sb strings.Builder
	if o.Op == nil {
		sb.WriteString("<nil>")
	} else {
		sb.WriteString(o.Op.Tag())
	}
	sep := " "
	for _, v := range []Var{o.Result, o.Src1, o.Src2} {
		sb.WriteString(sep)
		sb.WriteString(v.String())
		sep = ", "
	}
	return sb.String()
}

// ============================================================================
// 操作种类
// ============================================================================

// Op 操作种类（封闭集合）
//
// 每个种类通过 Accept 分派到 Visitor 上对应的方法。新增种类时 Visitor
// 接口随之增加方法，所有降级实现在编译期就会报缺失。
type Op interface {
	// Tag 文本标签，例如 conv_i4_i2sx、throweq
	Tag() string
	Accept(v Visitor, o Operation) ([]output.Unit, error)
	isOp()
}

// Visitor 按操作种类分派的降级规则集
type Visitor interface {
	VisitConv(op Conv, o Operation) ([]output.Unit, error)
	VisitZeroExtend32(op ZeroExtend32, o Operation) ([]output.Unit, error)
	VisitLockAcquire(op LockAcquire, o Operation) ([]output.Unit, error)
	VisitLockRelease(op LockRelease, o Operation) ([]output.Unit, error)
	VisitThrow(op Throw, o Operation) ([]output.Unit, error)
	VisitCall(op Call, o Operation) ([]output.Unit, error)
	VisitBinary(op Binary, o Operation) ([]output.Unit, error)
}

// Conv 整数宽度转换：Src 字节扩展或截断到 Dst 字节
//
// Signed 为 true 时做符号扩展，否则做零扩展。无符号 4→8 不走这里，见 ZeroExtend32。
type Conv struct {
	Dst    int
	Src    int
	Signed bool
}

// ZeroExtend32 无符号 32 位到 64 位扩展（conv_i8_u4zx）
//
// x86-64 上写 32 位寄存器会清零高 32 位，因此只需要一条 32 位 mov。
type ZeroExtend32 struct{}

// LockAcquire 原子获取锁：Src1 锁字地址，Src2 持有者值，Result 是否成功
type LockAcquire struct{}

// LockRelease 原子释放锁：Src1 锁字地址，Src2 期望的持有者值，Result 可选
type LockRelease struct{}

// ThrowCond 条件抛出的条件
type ThrowCond int

const (
	ThrowEq    ThrowCond = iota // throweq
	ThrowNe                     // throwne
	ThrowOvf                    // throw_ovf
	ThrowOvfUn                  // throw_ovf_un
	ThrowGeUn                   // throwge_un
	ThrowGUn                    // throwg_un
)

var throwTags = [...]string{
	ThrowEq:    "throweq",
	ThrowNe:    "throwne",
	ThrowOvf:   "throw_ovf",
	ThrowOvfUn: "throw_ovf_un",
	ThrowGeUn:  "throwge_un",
	ThrowGUn:   "throwg_un",
}

func (c ThrowCond) String() string {
	if c < 0 || int(c) >= len(throwTags) {
		return fmt.Sprintf("throw?%d", int(c))
	}
	return throwTags[c]
}

// Throw 条件成立时调用运行时抛出例程：Src1 抛出的值（可缺省）
type Throw struct {
	Cond ThrowCond
}

// Call 直接调用符号，返回值在 rax，Result 可选
type Call struct {
	Symbol string
}

// BinaryKind 通用两操作数指令
type BinaryKind int

const (
	BinMov BinaryKind = iota
	BinAdd
	BinSub
	BinAnd
	BinOr
	BinXor
	BinCmp
	BinTest
)

var binaryNames = [...]string{
	BinMov:  "mov",
	BinAdd:  "add",
	BinSub:  "sub",
	BinAnd:  "and",
	BinOr:   "or",
	BinXor:  "xor",
	BinCmp:  "cmp",
	BinTest: "test",
}

func (k BinaryKind) String() string {
	if k < 0 || int(k) >= len(binaryNames) {
		return fmt.Sprintf("bin?%d", int(k))
	}
	return binaryNames[k]
}

// Commutative 交换两个源操作数结果不变
func (k BinaryKind) Commutative() bool {
	switch k {
	case BinAdd, BinAnd, BinOr, BinXor, BinTest:
		return true
	}
	return false
}

// WritesResult cmp/test 只设置标志位
func (k BinaryKind) WritesResult() bool {
	return k != BinCmp && k != BinTest
}

// Binary 三地址算术/逻辑/移动：Result = Src1 op Src2（mov 为 Result = Src1）
type Binary struct {
	Kind BinaryKind
}

func (Conv) isOp()         {}
func (ZeroExtend32) isOp() {}
func (LockAcquire) isOp()  {}
func (LockRelease) isOp()  {}
func (Throw) isOp()        {}
func (Call) isOp()         {}
func (Binary) isOp()       {}

func (c Conv) Tag() string {
	src, ext := "u", "zx"
	if c.Signed {
		src, ext = "i", "sx"
	}
	return fmt.Sprintf("conv_i%d_%s%d%s", c.Dst, src, c.Src, ext)
}

func (ZeroExtend32) Tag() string { return "conv_i8_u4zx" }
func (LockAcquire) Tag() string  { return "lock_acquire" }
func (LockRelease) Tag() string  { return "lock_release" }
func (t Throw) Tag() string      { return t.Cond.String() }
func (Call) Tag() string         { return "call" }
func (b Binary) Tag() string     { return b.Kind.String() }

func (c Conv) Accept(v Visitor, o Operation) ([]output.Unit, error) {
	return v.VisitConv(c, o)
}

func (z ZeroExtend32) Accept(v Visitor, o Operation) ([]output.Unit, error) {
	return v.VisitZeroExtend32(z, o)
}

func (l LockAcquire) Accept(v Visitor, o Operation) ([]output.Unit, error) {
	return v.VisitLockAcquire(l, o)
}

func (l LockRelease) Accept(v Visitor, o Operation) ([]output.Unit, error) {
	return v.VisitLockRelease(l, o)
}

func (t Throw) Accept(v Visitor, o Operation) ([]output.Unit, error) {
	return v.VisitThrow(t, o)
}

func (c Call) Accept(v Visitor, o Operation) ([]output.Unit, error) {
	return v.VisitCall(c, o)
}

func (b Binary) Accept(v Visitor, o Operation) ([]output.Unit, error) {
	return v.VisitBinary(b, o)
}
