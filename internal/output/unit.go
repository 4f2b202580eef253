// Package output 定义降级规则产出的输出单元
//
// 降级规则返回一个有序的 Unit 序列，顺序即发射顺序。目标文件写出器把 Code
// 的字节依次拼接进节内容，对 Reloc 则在节内容中预留 Width 个零字节，并在
// 重定位表中登记一条记录。
package output

import (
	"encoding/hex"
	"fmt"
)

// Unit 输出单元
type Unit interface {
	// Len 该单元在节内容中占用的字节数
	Len() int
	String() string
	isUnit()
}

// Code 一段完整的机器码及其反汇编文本
type Code struct {
	Bytes []byte
	Text  string
}

// Reloc 链接时解析的符号引用
//
// Width 必须等于 Kind.Width()；Addend 按 ELF RELA 语义给出。
type Reloc struct {
	Symbol string
	Kind   RelocKind
	Width  int
	Addend int64
}

func (*Code) isUnit()  {}
func (*Reloc) isUnit() {}

func (c *Code) Len() int  { return len(c.Bytes) }
func (r *Reloc) Len() int { return r.Width }

func (c *Code) String() string {
	return fmt.Sprintf("%-24s %s", hex.EncodeToString(c.Bytes), c.Text)
}

func (r *Reloc) String() string {
	return fmt.Sprintf("%-24s reloc %s %s%+d", "", r.Kind, r.Symbol, r.Addend)
}

// NewCode 创建代码单元
func NewCode(bytes []byte, text string) *Code {
	return &Code{Bytes: bytes, Text: text}
}

// NewReloc 创建重定位单元，宽度取自重定位类型
func NewReloc(symbol string, kind RelocKind, addend int64) *Reloc {
	return &Reloc{Symbol: symbol, Kind: kind, Width: kind.Width(), Addend: addend}
}

// ============================================================================
// 序列工具
// ============================================================================

// Len 计算单元序列在节内容中的总长度
func Len(units []Unit) int {
	n := 0
	for _, u := range units {
		n += u.Len()
	}
	return n
}

// Bytes 拼接单元序列的字节，重定位位置填零
func Bytes(units []Unit) []byte {
	out := make([]byte, 0, Len(units))
	for _, u := range units {
		switch u := u.(type) {
		case *Code:
			out = append(out, u.Bytes...)
		case *Reloc:
			out = append(out, make([]byte, u.Width)...)
		}
	}
	return out
}

// Relocs 返回序列中的重定位及其在序列内的偏移
func Relocs(units []Unit) ([]*Reloc, []int) {
	var (
		relocs  []*Reloc
		offsets []int
		off     int
	)
	for _, u := range units {
		if r, ok := u.(*Reloc); ok {
			relocs = append(relocs, r)
			offsets = append(offsets, off)
		}
		off += u.Len()
	}
	return relocs, offsets
}

// Concat 按顺序连接多个单元序列
func Concat(seqs ...[]Unit) []Unit {
	n := 0
	for _, s := range seqs {
		n += len(s)
	}
	out := make([]Unit, 0, n)
	for _, s := range seqs {
		out = append(out, s...)
	}
	return out
}
