// Package optimizer 对表达式树做保持语义的化简
//
// 遍历是后序的：先重写子节点，再对节点本身应用规则；规则产生新节点时
// 再访问一次新节点，直到不再变化。一元运算在下降之前还会先尝试一组
// 自顶向下的规则（德摩根、双重取反、比较取反）。
//
// 所有规则只依赖 Oracle 回答的语义事实，Oracle 回答"不知道"时规则不生效。
//
// 条件测试为常量时 Conditional 收缩为被选中的分支，这是对单个节点的局部折叠：
// 不做控制流分析，块、循环与标签之后不可达的代码都原样保留。
package optimizer

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	terrors "github.com/tangzhangming/treeopt/internal/errors"
	"github.com/tangzhangming/treeopt/internal/eval"
	"github.com/tangzhangming/treeopt/internal/semantics"
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/walk"
)

// Optimizer 表达式树优化器
//
// 除统计计数外不持有可变状态，可以被多个 goroutine 同时使用。
type Optimizer struct {
	oracle  semantics.Oracle
	factory eval.Factory
	opts    Options
	log     *zap.Logger
	stats   Stats
}

// New 创建优化器；oracle 为 nil 时使用默认 Oracle，factory 为 nil 时使用默认求值工厂
func New(oracle semantics.Oracle, factory eval.Factory, opts ...Option) *Optimizer {
	if oracle == nil {
		oracle = semantics.Default()
	}
	if factory == nil {
		factory = eval.NewFactory()
	}
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &Optimizer{
		oracle:  oracle,
		factory: factory,
		opts:    o,
		log:     o.Logger.Named("optimizer"),
	}
}

// Oracle 返回优化器使用的 Oracle
func (o *Optimizer) Oracle() semantics.Oracle { return o.oracle }

// Options 返回生效的配置
func (o *Optimizer) Options() Options { return o.opts }

// Stats 返回统计快照
func (o *Optimizer) Stats() StatsSnapshot { return o.stats.Snapshot() }

// Optimize 优化整棵树
//
// 返回的树与输入类型相同、语义等价；输入为 nil 或重写违反结构约束时返回错误。
func (o *Optimizer) Optimize(n tree.Node) (tree.Node, error) {
	if n == nil {
		return nil, terrors.New(terrors.T0001, "tree")
	}
	return walk.Rewrite(n, o.visit, o.visitLval)
}

// visit 取值位置的访问策略
func (o *Optimizer) visit(w *walk.Walker, n tree.Node) tree.Node {
	// 引用的 lambda 是数据，保持原样
	if _, ok := n.(*tree.Quote); ok {
		return n
	}
	// 初始化器的构造调用只能重写成另一个 New，整体收缩由外层节点决定
	if w.IsInitNew() {
		return w.Children(n)
	}
	if u, ok := n.(*tree.Unary); ok && !u.Op.IsAssignment() {
		if pre := o.preUnary(u); pre != n {
			return w.Visit(pre)
		}
	}
	out := w.Children(n)
	if r := o.reduce(out); r != out {
		return w.Visit(r)
	}
	return out
}

// visitLval 赋值目标只重建子节点，不做化简
func (o *Optimizer) visitLval(w *walk.Walker, n tree.Node) tree.Node {
	return w.Children(n)
}

// reduce 对子节点已优化的节点应用一轮规则；没有规则生效时返回 n
func (o *Optimizer) reduce(n tree.Node) tree.Node {
	switch x := n.(type) {
	case *tree.Unary:
		return o.reduceUnary(x)
	case *tree.Binary:
		return o.reduceBinary(x)
	case *tree.TypeBinary:
		return o.reduceTypeBinary(x)
	case *tree.Block:
		if o.opts.BlockPipeline {
			return o.reduceBlock(x)
		}
	case *tree.Try:
		if o.opts.TryFolding {
			return o.reduceTry(x)
		}
	case *tree.Conditional:
		return o.reduceConditional(x)
	case *tree.Call:
		return o.reduceCall(x)
	case *tree.MemberAccess:
		return o.reduceMemberAccess(x)
	case *tree.Index:
		return o.reduceIndex(x)
	case *tree.New:
		return o.reduceNew(x)
	case *tree.Invocation:
		return o.reduceInvocation(x)
	case *tree.Switch, *tree.Throw, *tree.Goto, *tree.NewArray,
		*tree.ListInit, *tree.MemberInit, *tree.Dynamic:
		return o.throwsFirst(n)
	}
	return n
}

// rewrote 记录一次规则应用
func (o *Optimizer) rewrote(f Family, rule string, from, to tree.Node) tree.Node {
	o.stats.rewrites[f].Inc()
	if ce := o.log.Check(zapcore.DebugLevel, "rewrite"); ce != nil {
		ce.Write(
			zap.String("rule", rule),
			zap.Stringer("family", f),
			zap.Stringer("kind", from.Kind()),
			zap.String("from", tree.Format(from)),
			zap.String("to", tree.Format(to)),
		)
	}
	return to
}
