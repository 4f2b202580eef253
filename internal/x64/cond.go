package x64

// Cond 条件码（Jcc/SETcc 操作码的低 4 位）
type Cond byte

const (
	CondO  Cond = 0x0 // 溢出
	CondNO Cond = 0x1 // 无溢出
	CondB  Cond = 0x2 // 低于 / 进位
	CondAE Cond = 0x3 // 高于等于 / 无进位
	CondE  Cond = 0x4 // 等于 / 零
	CondNE Cond = 0x5 // 不等于 / 非零
	CondBE Cond = 0x6 // 低于等于
	CondA  Cond = 0x7 // 高于
	CondS  Cond = 0x8 // 负
	CondNS Cond = 0x9 // 非负
	CondP  Cond = 0xA // 奇偶
	CondNP Cond = 0xB // 非奇偶
	CondL  Cond = 0xC // 小于（有符号）
	CondGE Cond = 0xD // 大于等于（有符号）
	CondLE Cond = 0xE // 小于等于（有符号）
	CondG  Cond = 0xF // 大于（有符号）
)

var condNames = [16]string{
	"o", "no", "b", "ae", "e", "ne", "be", "a",
	"s", "ns", "p", "np", "l", "ge", "le", "g",
}

func (c Cond) String() string {
	return condNames[c&0xF]
}

// Negate 返回互补条件（最低位取反）
func (c Cond) Negate() Cond {
	return (c & 0xF) ^ 1
}
