// Package tac 定义后端消费的三地址码操作
//
// TAC 操作由上游的加载器和寄存器分配器产生，后端只读。每个操作有一个标签、
// 至多两个源操作数和一个结果操作数；操作数是 Var，在寄存器分配之后通常已经
// 绑定到一个硬件位置。
package tac

import (
	"fmt"

	"github.com/jncronin/tysos-sub004/internal/hwloc"
)

// VarKind 操作数种类
type VarKind int

const (
	VarNone       VarKind = iota // 操作数缺省
	VarConst                     // 编译期常量
	VarLoc                       // 已绑定硬件位置
	VarUnresolved                // 尚未分配位置
)

// Var TAC 操作数
type Var struct {
	kind  VarKind
	value int64
	loc   hwloc.Location
	name  string
}

// None 缺省操作数
var None = Var{}

// ConstVar 构造常量操作数
func ConstVar(v int64) Var {
	return Var{kind: VarConst, value: v}
}

// At 构造绑定到 loc 的操作数；常量位置按常量处理
func At(loc hwloc.Location) Var {
	if loc == nil {
		return None
	}
	if c, ok := loc.(hwloc.Const); ok {
		return ConstVar(c.Value)
	}
	return Var{kind: VarLoc, loc: loc}
}

// Reg 构造绑定到寄存器的操作数
func Reg(id hwloc.Reg) Var {
	return At(hwloc.Gpr(id))
}

// Unresolved 构造尚未分配位置的命名操作数
func Unresolved(name string) Var {
	return Var{kind: VarUnresolved, name: name}
}

func (v Var) Kind() VarKind { return v.kind }

func (v Var) IsNone() bool  { return v.kind == VarNone }
func (v Var) IsConst() bool { return v.kind == VarConst }

// IsResolved 常量和已绑定位置的操作数都视为已解析
func (v Var) IsResolved() bool {
	return v.kind == VarConst || v.kind == VarLoc
}

// Value 常量值，非常量返回 0
func (v Var) Value() int64 {
	return v.value
}

// Loc 返回操作数的硬件位置；常量返回 hwloc.Const，缺省和未解析返回 nil
func (v Var) Loc() hwloc.Location {
	switch v.kind {
	case VarConst:
		return hwloc.Imm(v.value)
	case VarLoc:
		return v.loc
	}
	return nil
}

func (v Var) String() string {
	switch v.kind {
	case VarConst:
		return fmt.Sprintf("$%d", v.value)
	case VarLoc:
		return v.loc.String()
	case VarUnresolved:
		return "%" + v.name
	}
	return "_"
}
