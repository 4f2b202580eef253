package tac

import (
	"github.com/jncronin/tysos-sub004/internal/errors"
)

// fixedTags 不带参数的标签
var fixedTags = map[string]Op{
	"conv_i8_u4zx": ZeroExtend32{},
	"lock_acquire": LockAcquire{},
	"lock_release": LockRelease{},
	"call":         Call{},
}

func init() {
	for i := range throwTags {
		fixedTags[throwTags[i]] = Throw{Cond: ThrowCond(i)}
	}
	for i := range binaryNames {
		fixedTags[binaryNames[i]] = Binary{Kind: BinaryKind(i)}
	}
}

// ParseTag 把文本标签映射为操作种类
//
// 转换标签的格式为 conv_i<dst>_<i|u><src><sx|zx>，宽度取 1、2、4、8，
// 有符号源必须配 sx，无符号源必须配 zx。Call 的目标符号不在标签中，
// 由调用者填入。没有对应种类的标签返回 UnmappedOperation。
func ParseTag(tag string) (Op, error) {
	if op, ok := fixedTags[tag]; ok {
		return op, nil
	}
	if c, ok := parseConv(tag); ok {
		return c, nil
	}
	return nil, errors.Unmapped(tag)
}

// MustParseTag 同 ParseTag，失败时 panic；用于编译期已知的标签
func MustParseTag(tag string) Op {
	op, err := ParseTag(tag)
	if err != nil {
		panic(err)
	}
	return op
}

func parseConv(tag string) (Conv, bool) {
	// conv_i4_i2sx
	const prefix = "conv_i"
	if len(tag) != len("conv_i4_i2sx") || tag[:len(prefix)] != prefix {
		return Conv{}, false
	}
	rest := tag[len(prefix):] // "4_i2sx"
	dst, ok := width(rest[0])
	if !ok || rest[1] != '_' {
		return Conv{}, false
	}
	src, ok := width(rest[3])
	if !ok {
		return Conv{}, false
	}
	var signed bool
	switch rest[2:3] + rest[4:] {
	case "isx":
		signed = true
	case "uzx":
		signed = false
	default:
		return Conv{}, false
	}
	if dst == 8 && src == 4 && !signed {
		// 由 fixedTags 中的 ZeroExtend32 处理
		return Conv{}, false
	}
	return Conv{Dst: dst, Src: src, Signed: signed}, true
}

func width(c byte) (int, bool) {
	switch c {
	case '1', '2', '4', '8':
		return int(c - '0'), true
	}
	return 0, false
}
