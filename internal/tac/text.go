package tac

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jncronin/tysos-sub004/internal/hwloc"
)

// ParseVar 解析 Var.String 的写法：_、$42、%t1 或硬件位置
func ParseVar(s string) (Var, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "_":
		return None, nil
	case strings.HasPrefix(s, "$"):
		v, err := strconv.ParseInt(s[1:], 0, 64)
		if err != nil {
			return None, fmt.Errorf("invalid constant %q", s)
		}
		return ConstVar(v), nil
	case strings.HasPrefix(s, "%"):
		if len(s) == 1 {
			return None, fmt.Errorf("empty temporary name")
		}
		return Unresolved(s[1:]), nil
	}
	loc, err := hwloc.ParseLocation(s)
	if err != nil {
		return None, err
	}
	return At(loc), nil
}

// ParseOperation 解析一行文本形式的操作
//
//	add rax, rax, $1
//	add.4 rax, rax, $1      宽度写在标签后
//	call memcpy rbx
//
// 操作数依次为 Result、Src1、Src2，缺省的写 _ 或省略。
func ParseOperation(line string) (Operation, error) {
	var o Operation
	head, rest, _ := strings.Cut(strings.TrimSpace(line), " ")

	tag, size, hasSize := strings.Cut(head, ".")
	if hasSize {
		n, err := strconv.Atoi(size)
		if err != nil || (n != 1 && n != 2 && n != 4 && n != 8) {
			return o, fmt.Errorf("invalid operand width %q", size)
		}
		o.Size = n
	}

	op, err := ParseTag(tag)
	if err != nil {
		return o, err
	}
	if _, ok := op.(Call); ok {
		var symbol string
		symbol, rest, _ = strings.Cut(strings.TrimSpace(rest), " ")
		if symbol == "" {
			return o, fmt.Errorf("call without a target symbol")
		}
		op = Call{Symbol: symbol}
	}
	o.Op = op

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return o, nil
	}
	fields := strings.Split(rest, ",")
	if len(fields) > 3 {
		return o, fmt.Errorf("%s: too many operands", tag)
	}
	slots := []*Var{&o.Result, &o.Src1, &o.Src2}
	for i, f := range fields {
		v, err := ParseVar(f)
		if err != nil {
			return o, fmt.Errorf("%s operand %d: %w", tag, i+1, err)
		}
		*slots[i] = v
	}
	return o, nil
}
