package lower

import (
	"github.com/jncronin/tysos-sub004/internal/errors"
	"github.com/jncronin/tysos-sub004/internal/hwloc"
	"github.com/jncronin/tysos-sub004/internal/output"
	"github.com/jncronin/tysos-sub004/internal/x64"
)

// MaxShortBranch 短跳转（rel8）能越过的最大字节数
const MaxShortBranch = 127

// Phase 分支修正的阶段
type Phase int

const (
	PhaseMeasuring Phase = iota // 依赖块已构造，尚未发射跳转
	PhaseResolved               // 跳转和依赖块已合并，不再变化
)

func (p Phase) String() string {
	if p == PhaseResolved {
		return "resolved"
	}
	return "measuring"
}

// Fixup 条件跳过一个依赖块的分支修正
//
// 先完整构造依赖块并测量长度，再以该长度作为位移发射短跳转。
// 只使用 rel8 形式：依赖块超过 MaxShortBranch 时返回 BranchRangeExceeded，
// 不会退回到 rel32。
type Fixup struct {
	block  []output.Unit
	length int
	phase  Phase

	resolved []output.Unit
	err      error
}

// Measure 测量依赖块，进入 Measuring 阶段
func Measure(block []output.Unit) *Fixup {
	return &Fixup{
		block:  block,
		length: output.Len(block),
		phase:  PhaseMeasuring,
	}
}

// Len 依赖块的字节长度（含重定位字段）
func (f *Fixup) Len() int {
	return f.length
}

// Phase 当前阶段
func (f *Fixup) Phase() Phase {
	return f.phase
}

// Resolve 发射 "j<skip> rel8" 并接上依赖块
//
// skip 是跳过依赖块的条件，即执行依赖块的条件取反。
// 重复调用返回第一次的结果。
func (f *Fixup) Resolve(skip x64.Cond) ([]output.Unit, error) {
	if f.phase == PhaseResolved {
		return f.resolved, f.err
	}
	f.phase = PhaseResolved
	f.resolved, f.err = f.resolve(skip)
	return f.resolved, f.err
}

func (f *Fixup) resolve(skip x64.Cond) ([]output.Unit, error) {
	if f.length > MaxShortBranch {
		return nil, errors.BranchRange(f.length, MaxShortBranch)
	}
	op := x64.MustLookup("jcc rel8").WithCond(skip)
	disp := hwloc.Imm(int64(f.length))
	code, err := x64.Encode(op, x64.SizeNone, x64.NoPrefixes, disp)
	if err != nil {
		return nil, err
	}
	jump := output.NewCode(code, x64.Format(op, x64.SizeNone, x64.NoPrefixes, disp))
	units := make([]output.Unit, 0, len(f.block)+1)
	units = append(units, jump)
	return append(units, f.block...), nil
}
