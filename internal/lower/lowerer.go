// Package lower 把 TAC 操作降级为 x86-64 输出单元
//
// 每种操作对应 Lowerer 上的一个 Visit 方法。降级规则是同步的纯计算：
// 相同的操作和状态总是产生相同的字节；失败立即返回，不在本层重试。
package lower

import (
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jncronin/tysos-sub004/internal/config"
	"github.com/jncronin/tysos-sub004/internal/errors"
	"github.com/jncronin/tysos-sub004/internal/output"
	"github.com/jncronin/tysos-sub004/internal/tac"
)

// Lowerer 降级规则集
type Lowerer struct {
	state  *State
	log    *zap.Logger
	stats  *Stats
	conv   CallConv
	verify bool
}

var _ tac.Visitor = (*Lowerer)(nil)

// Option 降级器选项
type Option func(*Lowerer)

// WithLogger 设置日志器
func WithLogger(log *zap.Logger) Option {
	return func(l *Lowerer) {
		if log != nil {
			l.log = log
		}
	}
}

// WithStats 设置统计，可在多个 Lowerer 之间共享
func WithStats(s *Stats) Option {
	return func(l *Lowerer) { l.stats = s }
}

// WithThrowSymbols 覆盖运行时抛出入口的符号名
func WithThrowSymbols(dynamic, static string) Option {
	return func(l *Lowerer) {
		if dynamic != "" {
			l.conv.Throw = dynamic
		}
		if static != "" {
			l.conv.StaticThrow = static
		}
	}
}

// WithVerify 降级后反汇编校验每个操作的输出
func WithVerify(on bool) Option {
	return func(l *Lowerer) { l.verify = on }
}

// New 创建降级器
func New(state *State, opts ...Option) *Lowerer {
	if state == nil {
		state = NewState(VariantX86_64)
	}
	l := &Lowerer{
		state: state,
		log:   zap.NewNop(),
		conv:  DefaultCallConv(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewFromConfig 按配置创建降级器；state 的变体取自配置
func NewFromConfig(cfg *config.Config, state *State, log *zap.Logger, opts ...Option) (*Lowerer, error) {
	variant, err := ParseVariant(cfg.Target.Variant)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = NewState(variant)
	}
	state.Variant = variant
	base := []Option{
		WithLogger(log),
		WithThrowSymbols(cfg.Runtime.ThrowSymbol, cfg.Runtime.StaticThrowSymbol),
		WithVerify(cfg.Debug.Verify),
	}
	return New(state, append(base, opts...)...), nil
}

// State 返回汇编器状态
func (l *Lowerer) State() *State {
	return l.state
}

// CallConv 返回运行时入口约定
func (l *Lowerer) CallConv() CallConv {
	return l.conv
}

// Lower 降级一条 TAC 操作
//
// 返回的错误是 *errors.BackendError，已补充操作标签和源码位置。
func (l *Lowerer) Lower(o tac.Operation) ([]output.Unit, error) {
	if o.Op == nil {
		l.stats.fail()
		return nil, errors.Unmapped("<nil>").At("", o.Pos)
	}
	tag := o.Op.Tag()

	units, err := o.Op.Accept(l, o)
	if err != nil {
		l.stats.fail()
		var be *errors.BackendError
		if stderrors.As(err, &be) {
			return nil, be.At(tag, o.Pos)
		}
		return nil, err
	}

	if l.verify {
		if verr := output.Verify(units); verr != nil {
			l.stats.fail()
			return nil, fmt.Errorf("%s: %s: output failed verification: %w", o.Pos, tag, verr)
		}
	}

	l.stats.record(units)
	l.log.Debug("lowered",
		zap.String("op", tag),
		zap.Stringer("operation", o),
		zap.Int("units", len(units)),
		zap.Int("bytes", output.Len(units)))
	return units, nil
}

// LowerAll 依次降级一组操作并连接输出，遇到第一个错误即停止
func (l *Lowerer) LowerAll(ops []tac.Operation) ([]output.Unit, error) {
	var out []output.Unit
	for _, o := range ops {
		units, err := l.Lower(o)
		if err != nil {
			return nil, err
		}
		out = append(out, units...)
	}
	return out, nil
}
