package lower

import (
	"fmt"
	"strings"

	"github.com/jncronin/tysos-sub004/internal/hwloc"
)

// Variant 目标架构变体
type Variant int

const (
	VariantX86_64 Variant = iota
	VariantI586           // 旧架构变体：不支持 32→64 符号扩展
)

func (v Variant) String() string {
	switch v {
	case VariantX86_64:
		return "x86_64"
	case VariantI586:
		return "i586"
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// ParseVariant 解析配置中的变体名
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(s) {
	case "", "x86_64", "x86-64", "amd64":
		return VariantX86_64, nil
	case "i586":
		return VariantI586, nil
	}
	return 0, fmt.Errorf("unknown target variant %q", s)
}

// State 单个编译单元的汇编器状态
//
// 记录寄存器分配器给出的已占用位置和异常投递需要的 method-info 位置。
// 一个 State 同一时间只属于一个编译线程，不加锁。
type State struct {
	Variant Variant

	used       []hwloc.Location
	methodInfo hwloc.Location
}

// NewState 创建汇编器状态
func NewState(variant Variant) *State {
	return &State{Variant: variant}
}

// Use 标记位置为已占用
func (s *State) Use(locs ...hwloc.Location) {
	for _, l := range locs {
		if l == nil || s.IsUsed(l) {
			continue
		}
		s.used = append(s.used, l)
	}
}

// IsUsed 位置是否已登记
func (s *State) IsUsed(loc hwloc.Location) bool {
	for _, u := range s.used {
		if u == loc {
			return true
		}
	}
	return false
}

// RegUsed 寄存器是否被任一已占用位置读取（作为自身或 base/index）
func (s *State) RegUsed(r hwloc.Reg) bool {
	for _, u := range s.used {
		if u.Uses(r) {
			return true
		}
	}
	if s.methodInfo != nil && s.methodInfo.Uses(r) {
		return true
	}
	return false
}

// Used 返回已占用位置
func (s *State) Used() []hwloc.Location {
	return append([]hwloc.Location(nil), s.used...)
}

// SetMethodInfo 设置 method-info 指针所在位置，nil 表示当前没有
func (s *State) SetMethodInfo(loc hwloc.Location) {
	s.methodInfo = loc
}

// MethodInfo 返回 method-info 位置
func (s *State) MethodInfo() (hwloc.Location, bool) {
	return s.methodInfo, s.methodInfo != nil
}

// scratchPool 临时寄存器的挑选顺序：先用调用者保存且不参与传参的寄存器
var scratchPool = []hwloc.Reg{
	hwloc.R11, hwloc.R10, hwloc.R9, hwloc.R8,
	hwloc.RDX, hwloc.RCX, hwloc.RSI, hwloc.RDI,
}

// scratch 挑选一个未被占用、且不在 exclude 中的临时寄存器
func (s *State) scratch(exclude ...hwloc.Reg) (hwloc.Reg, bool) {
next:
	for _, r := range scratchPool {
		for _, e := range exclude {
			if r == e {
				continue next
			}
		}
		if s.RegUsed(r) {
			continue
		}
		return r, true
	}
	return hwloc.NoReg, false
}
