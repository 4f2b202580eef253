package hwloc

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseReg 按 64 位寄存器名查找寄存器
func ParseReg(name string) (Reg, bool) {
	name = strings.ToLower(name)
	for i, n := range regNames64 {
		if n == name {
			return Reg(i), true
		}
	}
	return NoReg, false
}

// ParseLocation 解析 String 输出的位置写法
//
//	rax                 寄存器
//	[rbx+rcx*4+0x10]    内存
//	42, -0x8            常量
func ParseLocation(s string) (Location, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty location")
	}
	if r, ok := ParseReg(s); ok {
		return Gpr(r), nil
	}
	if strings.HasPrefix(s, "[") {
		if !strings.HasSuffix(s, "]") {
			return nil, fmt.Errorf("unterminated memory operand %q", s)
		}
		return parseMemory(s[1 : len(s)-1])
	}
	v, err := parseInt(s)
	if err != nil {
		return nil, fmt.Errorf("invalid location %q", s)
	}
	return Imm(v), nil
}

func parseMemory(s string) (Memory, error) {
	m := Memory{Base: NoReg, Index: NoReg, Scale: 1}
	for _, term := range splitTerms(s) {
		neg := term[0] == '-'
		body := strings.TrimSpace(term[1:])

		if reg, scale, ok := strings.Cut(body, "*"); ok {
			r, found := ParseReg(strings.TrimSpace(reg))
			if !found || neg || m.Index != NoReg {
				return Memory{}, fmt.Errorf("invalid index term %q in [%s]", body, s)
			}
			n, err := strconv.ParseUint(strings.TrimSpace(scale), 10, 8)
			if err != nil || (n != 1 && n != 2 && n != 4 && n != 8) {
				return Memory{}, fmt.Errorf("invalid scale %q in [%s]", scale, s)
			}
			m.Index, m.Scale = r, uint8(n)
			continue
		}

		if r, found := ParseReg(body); found {
			switch {
			case neg:
				return Memory{}, fmt.Errorf("register %s cannot be subtracted in [%s]", body, s)
			case m.Base == NoReg:
				m.Base = r
			case m.Index == NoReg:
				m.Index, m.Scale = r, 1
			default:
				return Memory{}, fmt.Errorf("too many registers in [%s]", s)
			}
			continue
		}

		if neg {
			body = "-" + body
		}
		v, err := parseInt(body)
		if err != nil {
			return Memory{}, fmt.Errorf("invalid displacement %q in [%s]", body, s)
		}
		m.Disp += v
	}
	if m.Index == RSP {
		return Memory{}, fmt.Errorf("rsp cannot be an index register")
	}
	return m, nil
}

// splitTerms 按 +/- 切分，每项保留前导符号
func splitTerms(s string) []string {
	var terms []string
	start := 0
	for i := 1; i <= len(s); i++ {
		if i == len(s) || s[i] == '+' || s[i] == '-' {
			t := strings.TrimSpace(s[start:i])
			if t != "" && t[0] != '+' && t[0] != '-' {
				t = "+" + t
			}
			if len(t) > 1 {
				terms = append(terms, t)
			}
			start = i
		}
	}
	return terms
}

// parseInt 解析带可选负号的整数，超出 int64 时报错而不回绕
func parseInt(s string) (int64, error) {
	if strings.HasPrefix(s, "+") {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return strconv.ParseInt(s, 0, 64)
}
