package lower

import (
	"go.uber.org/atomic"

	"github.com/jncronin/tysos-sub004/internal/output"
)

// Stats 降级统计
//
// 并发编译多个方法时可以共享同一个 Stats，计数器都是原子的。
type Stats struct {
	Ops             atomic.Int64 // 成功降级的操作数
	Units           atomic.Int64 // 产生的输出单元数
	Bytes           atomic.Int64 // 产生的字节数（含重定位字段）
	Relocs          atomic.Int64 // 重定位数
	RelocationMoves atomic.Int64 // 为避开固定寄存器插入的搬移指令数
	Failures        atomic.Int64 // 降级失败数
}

// StatsSnapshot 某一时刻的统计值
type StatsSnapshot struct {
	Ops             int64 `json:"ops"`
	Units           int64 `json:"units"`
	Bytes           int64 `json:"bytes"`
	Relocs          int64 `json:"relocs"`
	RelocationMoves int64 `json:"relocation_moves"`
	Failures        int64 `json:"failures"`
}

// NewStats 创建统计
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) record(units []output.Unit) {
	if s == nil {
		return
	}
	s.Ops.Inc()
	s.Units.Add(int64(len(units)))
	s.Bytes.Add(int64(output.Len(units)))
	relocs, _ := output.Relocs(units)
	s.Relocs.Add(int64(len(relocs)))
}

func (s *Stats) fail() {
	if s == nil {
		return
	}
	s.Failures.Inc()
}

func (s *Stats) relocationMove() {
	if s == nil {
		return
	}
	s.RelocationMoves.Inc()
}

// Snapshot 读取当前统计值
func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	return StatsSnapshot{
		Ops:             s.Ops.Load(),
		Units:           s.Units.Load(),
		Bytes:           s.Bytes.Load(),
		Relocs:          s.Relocs.Load(),
		RelocationMoves: s.RelocationMoves.Load(),
		Failures:        s.Failures.Load(),
	}
}
