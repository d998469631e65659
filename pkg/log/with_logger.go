package log

import "go.uber.org/atomic"

var (
	_ WithLogger   = &Binder{}
	_ LoggerBinder = &Binder{}
)

// WithLogger 由持有本地 Logger 的组件实现。
type WithLogger interface {
	Logger() *MLogger
}

// LoggerBinder 由允许替换 Logger 的组件实现。
type LoggerBinder interface {
	SetLogger(logger *MLogger)
}

// Binder 嵌入到组件中，保存组件自己的 Logger 与模块名。
type Binder struct {
	logger atomic.Pointer[MLogger]
	module atomic.String
}

// SetLogger 显式绑定 Logger，优先于模块名。
func (b *Binder) SetLogger(logger *MLogger) {
	b.logger.Store(logger)
}

// BindModule 记录模块名；未显式绑定 Logger 时，
// Logger() 从全局 Logger 派生并带上 module 字段。
func (b *Binder) BindModule(module string) {
	b.module.Store(module)
}

// Logger 返回绑定的 Logger。
func (b *Binder) Logger() *MLogger {
	if l := b.logger.Load(); l != nil {
		return l
	}
	if module := b.module.Load(); module != "" {
		return With(FieldModule(module))
	}
	return With()
}
