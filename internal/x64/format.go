package x64

import (
	"fmt"
	"strings"

	"github.com/jncronin/tysos-sub004/internal/hwloc"
)

// Format 生成一条指令的反汇编文本（Intel 语法）
//
// 隐含的累加器槽位不出现在文本中；省略的 rel 操作数显示为符号名由调用者补上。
func Format(op *Opcode, size Size, pfx Prefixes, args ...hwloc.Location) string {
	var sb strings.Builder
	sb.WriteString(pfx.mnemonicPrefix())
	sb.WriteString(op.Mnemonic)

	sep := " "
	for i, arg := range args {
		if i >= len(op.Slots) || arg == nil {
			break
		}
		slot := op.Slots[i]
		if slot == SlotAcc {
			continue
		}
		sb.WriteString(sep)
		sep = ", "
		sb.WriteString(Operand(arg, operandSize(op, slot, size)))
	}
	return sb.String()
}

func operandSize(op *Opcode, slot Slot, size Size) Size {
	if slot == SlotRM {
		return op.rmSize(size)
	}
	return size
}

// Operand 按宽度格式化单个操作数
func Operand(loc hwloc.Location, size Size) string {
	switch l := loc.(type) {
	case hwloc.Register:
		return l.ID.Name(int(size))
	case hwloc.Memory:
		if size == SizeNone {
			return l.String()
		}
		return fmt.Sprintf("%s %s", size, l)
	case hwloc.Const:
		return l.String()
	}
	return "?"
}
