package output

import (
	"debug/elf"
)

// RelocKind 重定位类型，取值与 ELF x86-64 重定位类型一致
type RelocKind elf.R_X86_64

const (
	RelocAbs64    = RelocKind(elf.R_X86_64_64)
	RelocPC32     = RelocKind(elf.R_X86_64_PC32)
	RelocPLT32    = RelocKind(elf.R_X86_64_PLT32)
	RelocGOTPCRel = RelocKind(elf.R_X86_64_GOTPCREL)
	RelocAbs32    = RelocKind(elf.R_X86_64_32)
	RelocAbs32S   = RelocKind(elf.R_X86_64_32S)
	RelocAbs16    = RelocKind(elf.R_X86_64_16)
	RelocPC16     = RelocKind(elf.R_X86_64_PC16)
	RelocAbs8     = RelocKind(elf.R_X86_64_8)
	RelocPC8      = RelocKind(elf.R_X86_64_PC8)
	RelocPC64     = RelocKind(elf.R_X86_64_PC64)
)

// relocInfo 每种重定位的字段宽度和是否 PC 相对
var relocInfo = map[RelocKind]struct {
	width int
	pcrel bool
}{
	RelocAbs64:    {8, false},
	RelocPC32:     {4, true},
	RelocPLT32:    {4, true},
	RelocGOTPCRel: {4, true},
	RelocAbs32:    {4, false},
	RelocAbs32S:   {4, false},
	RelocAbs16:    {2, false},
	RelocPC16:     {2, true},
	RelocAbs8:     {1, false},
	RelocPC8:      {1, true},
	RelocPC64:     {8, true},
}

// Valid 是否是目录中的重定位类型
func (k RelocKind) Valid() bool {
	_, ok := relocInfo[k]
	return ok
}

// Width 重定位字段的字节宽度
func (k RelocKind) Width() int {
	return relocInfo[k].width
}

// PCRelative 是否相对于字段所在位置
func (k RelocKind) PCRelative() bool {
	return relocInfo[k].pcrel
}

// ELF 返回对应的 ELF 重定位类型
func (k RelocKind) ELF() elf.R_X86_64 {
	return elf.R_X86_64(k)
}

func (k RelocKind) String() string {
	return elf.R_X86_64(k).String()
}

// DefaultAddend 字段位于指令末尾时的 addend
//
// PC 相对位移以下一条指令的地址为基准，而链接器以字段地址 P 计算 S+A-P，
// 因此 addend 为 -Width。绝对重定位的 addend 为 0。
func (k RelocKind) DefaultAddend() int64 {
	if k.PCRelative() {
		return -int64(k.Width())
	}
	return 0
}
