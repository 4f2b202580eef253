// Package errors 提供后端的错误处理系统
package errors

// ============================================================================
// 错误级别
// ============================================================================

// Level 错误级别
type Level int

const (
	LevelError   Level = iota // 错误
	LevelWarning              // 警告
	LevelNote                 // 提示
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelNote:
		return "note"
	default:
		return "unknown"
	}
}

// ============================================================================
// 后端错误码 (B 开头)
// ============================================================================

const (
	// B0001-B0099: 编码错误
	B0001 = "B0001" // 操作数类别与操作码槽位不匹配
	B0002 = "B0002" // 位移/立即数超出可编码宽度

	// B0100-B0199: 目标/降级错误
	B0100 = "B0100" // 当前目标变体不支持该操作
	B0101 = "B0101" // TAC 操作没有降级规则

	// B0200-B0299: 分支修正错误
	B0200 = "B0200" // 依赖块长度超出短跳转范围
)

// ============================================================================
// 错误码信息
// ============================================================================

// ErrorInfo 错误码信息
type ErrorInfo struct {
	Code     string // 错误码
	Kind     string // 错误种类
	Level    Level  // 错误级别
	Category string // 错误分类
	Hint     string // 修复建议（可选）
}

// backendErrors 后端错误码信息表
var backendErrors = map[string]ErrorInfo{
	B0001: {B0001, "UnencodableOperand", LevelError, "encoding",
		"operand placement comes from the register allocator; constrain the operand to a register class the instruction accepts"},
	B0002: {B0002, "DisplacementOverflow", LevelError, "encoding",
		"materialize the address in a register before the access"},

	B0100: {B0100, "UnsupportedOnTarget", LevelError, "target",
		"select the x86_64 target variant or lower the operation to a runtime helper"},
	B0101: {B0101, "UnmappedOperation", LevelError, "target", ""},

	B0200: {B0200, "BranchRangeExceeded", LevelError, "fixup",
		"the dependent block does not fit a rel8 jump; shrink the call block"},
}

// GetErrorInfo 获取错误码信息
func GetErrorInfo(code string) (ErrorInfo, bool) {
	info, ok := backendErrors[code]
	return info, ok
}

// KindOf 返回错误码对应的错误种类名
func KindOf(code string) string {
	if info, ok := backendErrors[code]; ok {
		return info.Kind
	}
	return "Unknown"
}
