package errors

import (
	"io"
	"os"
)

// Color ANSI 转义序列
type Color string

const (
	ColorCyan       Color = "\033[36m"
	ColorBoldRed    Color = "\033[1;31m"
	ColorBoldYellow Color = "\033[1;33m"
	ColorBoldCyan   Color = "\033[1;36m"

	colorReset = "\033[0m"
)

// colorsEnabled NewFormatter 的默认值
var colorsEnabled = IsColorTerminal(os.Stderr)

// SetColorsEnabled 设置之后创建的 Formatter 是否着色
func SetColorsEnabled(enabled bool) {
	colorsEnabled = enabled
}

// IsColorTerminal 判断诊断输出目标是否应当着色
//
// NO_COLOR 优先于一切；其次 TERM=dumb 关闭颜色。
// 只有字符设备（终端）或设置了 COLORTERM 时着色，管道和普通文件不着色。
func IsColorTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		return true
	}
	return os.Getenv("COLORTERM") != ""
}

// Colorize 用颜色 c 包裹 s
func Colorize(s string, c Color) string {
	return string(c) + s + colorReset
}
