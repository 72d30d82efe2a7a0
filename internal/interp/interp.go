// Package interp 直接解释执行表达式树
//
// 解释器是优化器的参照语义：同一棵树优化前后在解释器下必须得到相同的值、
// 相同种类的异常和相同顺序的副作用。运算符与成员调用全部委托给 eval.Factory，
// 因此解释器与常量折叠共享同一套运算语义。
//
// 按引用实参按值传递，调用结束后不写回。
package interp

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	terrors "github.com/tangzhangming/treeopt/internal/errors"
	"github.com/tangzhangming/treeopt/internal/eval"
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// ============================================================================
// 解释器核心结构
// ============================================================================

// DefaultMaxSteps 默认的求值步数上限
const DefaultMaxSteps = 1 << 20

var (
	// ErrStepLimit 求值步数超过上限（通常是死循环）
	ErrStepLimit = errors.New("interp: step limit exceeded")
	// ErrUnbound 读写了未在任何作用域声明的变量
	ErrUnbound = errors.New("interp: unbound variable")
)

// Interpreter 树解释器
//
// 一个 Interpreter 记录一次或多次运行的副作用日志，不能被多个 goroutine 同时使用。
type Interpreter struct {
	factory eval.Factory
	log     *zap.Logger

	// silent 返回 true 的成员调用不记入副作用日志
	silent   func(m *types.Member) bool
	maxSteps int64

	effects []Effect
	caught  []*types.Exception // 正在处理的异常，供 rethrow 使用
	steps   int64
	stats   Stats
}

// Effect 一次可观察的副作用
type Effect struct {
	Kind   string `json:"kind"` // call / get / set / new / dynamic
	Member string `json:"member"`
	Args   []any  `json:"args,omitempty"`
}

func (e Effect) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = fmt.Sprint(a)
	}
	return e.Kind + " " + e.Member + "(" + strings.Join(parts, ", ") + ")"
}

// Stats 解释器统计信息
type Stats struct {
	NodesEvaluated int64 `json:"nodes_evaluated"`
	MemberCalls    int64 `json:"member_calls"`
	Invocations    int64 `json:"invocations"`
	Throws         int64 `json:"throws"`
}

// Option 解释器选项
type Option func(*Interpreter)

// WithLogger 设置日志；副作用以 Debug 级别记录
func WithLogger(l *zap.Logger) Option {
	return func(in *Interpreter) {
		if l != nil {
			in.log = l
		}
	}
}

// WithSilent 指定不记入副作用日志的成员（通常是已知纯的成员）
func WithSilent(silent func(m *types.Member) bool) Option {
	return func(in *Interpreter) { in.silent = silent }
}

// WithMaxSteps 设置求值步数上限；0 表示不限制
func WithMaxSteps(n int64) Option {
	return func(in *Interpreter) { in.maxSteps = n }
}

// New 创建解释器；factory 为 nil 时使用默认求值工厂
func New(factory eval.Factory, opts ...Option) *Interpreter {
	if factory == nil {
		factory = eval.NewFactory()
	}
	in := &Interpreter{
		factory:  factory,
		log:      zap.NewNop(),
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(in)
	}
	in.log = in.log.Named("interp")
	return in
}

// Reset 清空副作用日志与统计
func (in *Interpreter) Reset() {
	in.effects = nil
	in.caught = nil
	in.stats = Stats{}
}

// Effects 返回副作用日志
func (in *Interpreter) Effects() []Effect {
	return in.effects
}

// Stats 获取统计信息
func (in *Interpreter) Stats() Stats {
	return in.stats
}

// ============================================================================
// 运行
// ============================================================================

// Run 在 globals 提供的自由变量上求值 n
//
// 返回值的含义：
//   - (v, nil)：正常结束
//   - (nil, *types.Exception)：目标程序抛出了未处理的异常
//   - (nil, 其他 error)：宿主误用、不支持的运算或步数超限
//
// 对自由变量的写入在返回前写回 globals。
func (in *Interpreter) Run(n tree.Node, globals map[*tree.Parameter]any) (any, error) {
	if n == nil {
		return nil, terrors.New(terrors.T0001, "tree")
	}
	root := newFrame(nil, nil)
	for p, v := range globals {
		root.declare(p, v)
	}
	in.steps = 0
	v, err := in.eval(n, root)
	in.log.Debug("run finished",
		zap.Int64("steps", in.steps),
		zap.Int("effects", len(in.effects)),
		zap.Error(err),
	)
	for p, c := range root.cells {
		if globals != nil {
			globals[p] = c.value
		}
	}
	if err != nil {
		var j *jump
		if errors.As(err, &j) {
			return nil, fmt.Errorf("interp: jump to %s escaped the tree", j.target.Name)
		}
		return nil, err
	}
	return v, nil
}

// effect 记录一次成员副作用
func (in *Interpreter) effect(kind string, m *types.Member, args []any) {
	in.stats.MemberCalls++
	if in.silent != nil && in.silent(m) {
		return
	}
	name := m.Name
	if m.DeclaringType != nil {
		name = m.DeclaringType.String() + "." + strings.TrimPrefix(m.Name, ".")
	}
	e := Effect{Kind: kind, Member: name}
	if len(args) > 0 {
		e.Args = append([]any(nil), args...)
	}
	in.effects = append(in.effects, e)
	if ce := in.log.Check(zapcore.DebugLevel, "effect"); ce != nil {
		ce.Write(zap.Stringer("effect", e))
	}
}

// ============================================================================
// 变量环境
// ============================================================================

type cell struct {
	value any
}

// frame 词法作用域；块、lambda 调用与 catch 各自创建一层
type frame struct {
	cells  map[*tree.Parameter]*cell
	parent *frame
}

func newFrame(parent *frame, vars []*tree.Parameter) *frame {
	f := &frame{cells: make(map[*tree.Parameter]*cell, len(vars)), parent: parent}
	for _, v := range vars {
		f.declare(v, types.Zero(v.Type()))
	}
	return f
}

func (f *frame) declare(p *tree.Parameter, v any) {
	f.cells[p] = &cell{value: v}
}

func (f *frame) lookup(p *tree.Parameter) (*cell, error) {
	for s := f; s != nil; s = s.parent {
		if c, ok := s.cells[p]; ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w %s", ErrUnbound, p.Name)
}

// Closure lambda 的运行时值
type Closure struct {
	Lambda *tree.Lambda
	env    *frame
}

// Variables RuntimeVariables 的运行时值
type Variables struct {
	cells []*cell
}

// Len 变量个数
func (v *Variables) Len() int { return len(v.cells) }

// Get 读取第 i 个变量
func (v *Variables) Get(i int) any { return v.cells[i].value }

// Set 写入第 i 个变量
func (v *Variables) Set(i int, x any) { v.cells[i].value = x }

// jump goto 的控制转移，沿调用链向上传播直到遇到目标标签
type jump struct {
	target *tree.LabelTarget
	value  any
}

func (j *jump) Error() string {
	return "jump to " + j.target.Name
}

func jumpTo(err error, target *tree.LabelTarget) (*jump, bool) {
	var j *jump
	if target != nil && errors.As(err, &j) && j.target == target {
		return j, true
	}
	return nil, false
}
