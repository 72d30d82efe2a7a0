package optimizer

import (
	"go.uber.org/zap"
)

// Options 优化器配置
type Options struct {
	// BetaReduction 内联直接调用的 lambda
	BetaReduction bool
	// BlockPipeline 块的四阶段化简
	BlockPipeline bool
	// TryFolding try/catch 化简与编译期异常匹配
	TryFolding bool
	// ConstantFolding 通过求值工厂折叠常量
	ConstantFolding bool

	Logger *zap.Logger
}

// DefaultOptions 返回默认配置：所有规则族开启，不输出日志
func DefaultOptions() Options {
	return Options{
		BetaReduction:   true,
		BlockPipeline:   true,
		TryFolding:      true,
		ConstantFolding: true,
		Logger:          zap.NewNop(),
	}
}

// Option 配置函数
type Option func(*Options)

// WithBetaReduction 开关 lambda 内联
func WithBetaReduction(on bool) Option {
	return func(o *Options) { o.BetaReduction = on }
}

// WithBlockPipeline 开关块化简
func WithBlockPipeline(on bool) Option {
	return func(o *Options) { o.BlockPipeline = on }
}

// WithTryFolding 开关 try 化简
func WithTryFolding(on bool) Option {
	return func(o *Options) { o.TryFolding = on }
}

// WithConstantFolding 开关常量折叠
func WithConstantFolding(on bool) Option {
	return func(o *Options) { o.ConstantFolding = on }
}

// WithLogger 设置日志；nil 表示不输出
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l == nil {
			l = zap.NewNop()
		}
		o.Logger = l
	}
}
