package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/jncronin/tysos-sub004/internal/errors"
	"github.com/jncronin/tysos-sub004/internal/hwloc"
	"github.com/jncronin/tysos-sub004/internal/tac"
)

// method 输入文件中的一个方法
type method struct {
	name       string
	methodInfo hwloc.Location
	used       []hwloc.Location
	ops        []tac.Operation
}

// parseSource 解析文本形式的 TAC 文件
//
//	; 注释
//	.method Foo::Bar
//	.methodinfo rdx
//	.used r10, [rbp-0x8]
//	conv_i4_u1zx rax, rcx
//
// 第一个 .method 之前的操作属于名为 "main" 的方法。
func parseSource(src, file string) ([]*method, error) {
	var (
		methods []*method
		cur     *method
	)
	current := func() *method {
		if cur == nil {
			cur = &method{name: "main"}
			methods = append(methods, cur)
		}
		return cur
	}

	sc := bufio.NewScanner(strings.NewReader(src))
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexAny(text, ";#"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pos := errors.Pos{File: file, Line: line, Column: 1}

		if !strings.HasPrefix(text, ".") {
			o, err := tac.ParseOperation(text)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", pos, err)
			}
			o.Pos = pos
			m := current()
			m.ops = append(m.ops, o)
			continue
		}

		directive, arg, _ := strings.Cut(text, " ")
		arg = strings.TrimSpace(arg)
		switch directive {
		case ".method":
			if arg == "" {
				return nil, fmt.Errorf("%s: .method needs a name", pos)
			}
			cur = &method{name: arg}
			methods = append(methods, cur)
		case ".methodinfo":
			loc, err := hwloc.ParseLocation(arg)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", pos, err)
			}
			current().methodInfo = loc
		case ".used":
			m := current()
			for _, s := range strings.Split(arg, ",") {
				loc, err := hwloc.ParseLocation(s)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", pos, err)
				}
				m.used = append(m.used, loc)
			}
		default:
			return nil, fmt.Errorf("%s: unknown directive %s", pos, directive)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return methods, nil
}
