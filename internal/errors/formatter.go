package errors

import (
	"fmt"
	"strings"
)

// ============================================================================
// 源码位置
// ============================================================================

// Pos 触发错误的源码位置
type Pos struct {
	File   string
	Line   int
	Column int
}

// IsValid 是否携带了位置
func (p Pos) IsValid() bool {
	return p.File != "" || p.Line > 0
}

func (p Pos) String() string {
	if !p.IsValid() {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// ============================================================================
// 后端错误
// ============================================================================

// BackendError 后端错误
//
// 降级规则失败时立即返回，不在本层重试；调用者负责中止当前方法的编译。
type BackendError struct {
	Code    string // 错误码 (B0001)
	Message string // 主消息
	Op      string // 触发错误的 TAC 操作标签
	Pos     Pos    // 触发错误的源码位置
}

// Error 实现 error 接口
func (e *BackendError) Error() string {
	var sb strings.Builder
	if e.Pos.IsValid() {
		sb.WriteString(e.Pos.String())
		sb.WriteString(": ")
	}
	sb.WriteString(KindOf(e.Code))
	if e.Op != "" {
		sb.WriteString(" in ")
		sb.WriteString(e.Op)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	return sb.String()
}

// Is 按错误码匹配，配合标准库 errors.Is 使用
func (e *BackendError) Is(target error) bool {
	t, ok := target.(*BackendError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// Kind 错误种类名
func (e *BackendError) Kind() string {
	return KindOf(e.Code)
}

// At 返回补充了 TAC 操作和位置的副本；已有的信息不会被覆盖
func (e *BackendError) At(op string, pos Pos) *BackendError {
	c := *e
	if c.Op == "" {
		c.Op = op
	}
	if !c.Pos.IsValid() {
		c.Pos = pos
	}
	return &c
}

// 哨兵错误，用于 errors.Is 判断
var (
	ErrUnencodableOperand   = &BackendError{Code: B0001}
	ErrDisplacementOverflow = &BackendError{Code: B0002}
	ErrUnsupportedOnTarget  = &BackendError{Code: B0100}
	ErrUnmappedOperation    = &BackendError{Code: B0101}
	ErrBranchRangeExceeded  = &BackendError{Code: B0200}
)

// New 创建后端错误
func New(code string, format string, args ...interface{}) *BackendError {
	return &BackendError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Unencodable 创建 UnencodableOperand 错误
func Unencodable(format string, args ...interface{}) *BackendError {
	return New(B0001, format, args...)
}

// DisplacementOverflow 创建 DisplacementOverflow 错误
func DisplacementOverflow(format string, args ...interface{}) *BackendError {
	return New(B0002, format, args...)
}

// Unsupported 创建 UnsupportedOnTarget 错误
func Unsupported(format string, args ...interface{}) *BackendError {
	return New(B0100, format, args...)
}

// Unmapped 创建 UnmappedOperation 错误
func Unmapped(tag string) *BackendError {
	return &BackendError{Code: B0101, Message: fmt.Sprintf("no lowering rule for %q", tag), Op: tag}
}

// BranchRange 创建 BranchRangeExceeded 错误
func BranchRange(length, limit int) *BackendError {
	return New(B0200, "dependent block is %d bytes, limit %d", length, limit)
}

// ============================================================================
// 格式化器
// ============================================================================

// Formatter 错误格式化器
type Formatter struct {
	Colors    bool // 是否使用颜色
	ShowHints bool // 是否显示修复建议
}

// NewFormatter 创建默认格式化器
func NewFormatter() *Formatter {
	return &Formatter{
		Colors:    colorsEnabled,
		ShowHints: true,
	}
}

// Format 格式化后端错误
func (f *Formatter) Format(err *BackendError) string {
	var sb strings.Builder

	level := LevelError
	if info, ok := GetErrorInfo(err.Code); ok {
		level = info.Level
	}

	// 错误头: error[B0001]: UnencodableOperand in lock_acquire
	levelStr := f.colorize(level.String(), f.levelColor(level))
	codeStr := f.colorize(fmt.Sprintf("[%s]", err.Code), f.levelColor(level))
	head := err.Kind()
	if err.Op != "" {
		head += " in " + err.Op
	}
	sb.WriteString(fmt.Sprintf("%s%s: %s\n", levelStr, codeStr, head))

	// 位置: --> file.cs:5:12
	if err.Pos.IsValid() {
		arrow := f.colorize("-->", ColorCyan)
		sb.WriteString(fmt.Sprintf(" %s %s\n", arrow, f.colorize(err.Pos.String(), ColorCyan)))
	}

	if err.Message != "" {
		sb.WriteString(fmt.Sprintf(" %s %s\n", f.colorize(" = note:", ColorCyan), err.Message))
	}

	if f.ShowHints {
		if info, ok := GetErrorInfo(err.Code); ok && info.Hint != "" {
			sb.WriteString(fmt.Sprintf(" %s %s\n", f.colorize(" = help:", ColorCyan), info.Hint))
		}
	}

	return sb.String()
}

func (f *Formatter) colorize(s string, c Color) string {
	if !f.Colors {
		return s
	}
	return Colorize(s, c)
}

func (f *Formatter) levelColor(l Level) Color {
	switch l {
	case LevelError:
		return ColorBoldRed
	case LevelWarning:
		return ColorBoldYellow
	default:
		return ColorBoldCyan
	}
}
