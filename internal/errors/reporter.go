package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"
)

// ============================================================================
// 错误报告器
// ============================================================================

// Reporter 错误报告器
//
// 驱动程序可以并行编译多个方法；每个方法的失败都汇总到 Reporter。
// Reporter 本身不是并发安全的，由驱动负责串行化 Report 调用。
type Reporter struct {
	formatter *Formatter
	out       io.Writer
	errors    []*BackendError
	others    []error
}

// NewReporter 创建错误报告器
func NewReporter() *Reporter {
	return &Reporter{
		formatter: NewFormatter(),
		out:       os.Stderr,
	}
}

// SetFormatter 设置格式化器
func (r *Reporter) SetFormatter(f *Formatter) {
	r.formatter = f
}

// SetOutput 设置输出目标（nil 表示不输出）
func (r *Reporter) SetOutput(w io.Writer) {
	r.out = w
}

// Report 报告一个方法的编译失败
func (r *Reporter) Report(method string, err error) {
	if err == nil {
		return
	}

	var be *BackendError
	if !stderrors.As(err, &be) {
		r.others = append(r.others, fmt.Errorf("%s: %w", method, err))
		if r.out != nil {
			fmt.Fprintf(r.out, "%s: %v\n", method, err)
		}
		return
	}

	r.errors = append(r.errors, be)
	if r.out != nil {
		fmt.Fprintf(r.out, "%s: %s", method, r.formatter.Format(be))
	}
}

// HasErrors 是否有错误
func (r *Reporter) HasErrors() bool {
	return len(r.errors) > 0 || len(r.others) > 0
}

// ErrorCount 错误数量
func (r *Reporter) ErrorCount() int {
	return len(r.errors) + len(r.others)
}

// Errors 返回所有后端错误
func (r *Reporter) Errors() []*BackendError {
	return r.errors
}

// CountByCode 统计某个错误码出现的次数
func (r *Reporter) CountByCode(code string) int {
	n := 0
	for _, e := range r.errors {
		if e.Code == code {
			n++
		}
	}
	return n
}

// Err 把所有错误合并为一个 error
func (r *Reporter) Err() error {
	var err error
	for _, e := range r.errors {
		err = multierr.Append(err, e)
	}
	for _, e := range r.others {
		err = multierr.Append(err, e)
	}
	return err
}

// Clear 清除所有错误
func (r *Reporter) Clear() {
	r.errors = nil
	r.others = nil
}
