package output

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"
	"golang.org/x/arch/x86/x86asm"
)

// span 解码得到的一条指令在序列中的范围
type span struct {
	start, end int
}

// Verify 反汇编单元序列，检查编码不变式：
//   - 每个 Code 单元都从指令边界开始，整个序列恰好解码为完整指令
//   - 每个 Reloc 完全落在一条指令内部，且宽度与类型一致
//
// 所有问题合并为一个 error 返回。
func Verify(units []Unit) error {
	var err error

	stream := Bytes(units)
	unitStarts := make([]int, 0, len(units))
	off := 0
	for _, u := range units {
		unitStarts = append(unitStarts, off)
		off += u.Len()
	}

	var spans []span
	for pos := 0; pos < len(stream); {
		inst, derr := x86asm.Decode(stream[pos:], 64)
		if derr != nil {
			err = multierr.Append(err, fmt.Errorf("offset %d: %w", pos, derr))
			// 从下一个单元起点继续
			i := sort.SearchInts(unitStarts, pos+1)
			if i >= len(unitStarts) {
				break
			}
			pos = unitStarts[i]
			continue
		}
		spans = append(spans, span{pos, pos + inst.Len})
		pos += inst.Len
	}

	for i, u := range units {
		at := unitStarts[i]
		switch u := u.(type) {
		case *Code:
			if len(u.Bytes) == 0 {
				err = multierr.Append(err, fmt.Errorf("offset %d: empty code block %q", at, u.Text))
				continue
			}
			if !isBoundary(spans, at) {
				err = multierr.Append(err, fmt.Errorf("offset %d: code block %q does not start on an instruction boundary", at, u.Text))
			}
		case *Reloc:
			if !u.Kind.Valid() {
				err = multierr.Append(err, fmt.Errorf("offset %d: unknown relocation kind %d", at, u.Kind))
				continue
			}
			if u.Width != u.Kind.Width() {
				err = multierr.Append(err, fmt.Errorf("offset %d: %s relocation is %d bytes, want %d", at, u.Kind, u.Width, u.Kind.Width()))
			}
			s, ok := containing(spans, at)
			if !ok || s.start == at || at+u.Width > s.end {
				err = multierr.Append(err, fmt.Errorf("offset %d: relocation against %s is not inside a single instruction", at, u.Symbol))
			}
		}
	}
	return err
}

func isBoundary(spans []span, off int) bool {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].start >= off })
	return i < len(spans) && spans[i].start == off
}

func containing(spans []span, off int) (span, bool) {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].end > off })
	if i < len(spans) && spans[i].start <= off {
		return spans[i], true
	}
	return span{}, false
}
