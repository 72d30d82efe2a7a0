// Package walk 提供表达式树唯一的重写遍历
//
// 遍历本身不可扩展：所有定制通过注入的 Visit/VisitLval 策略完成，
// 形态约束（转换 lambda、引用的 lambda、初始化器的构造调用、运行时变量列表、赋值目标）
// 在 Walker 中统一检查，策略无法绕过。
package walk

import (
	"errors"
	"fmt"

	terrors "github.com/tangzhangming/treeopt/internal/errors"
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// Func 遍历策略：接收当前节点，返回替换后的节点（不变则返回原节点）
type Func func(w *Walker, n tree.Node) tree.Node

// Default 默认策略：只重建子节点
func Default(w *Walker, n tree.Node) tree.Node {
	return w.Children(n)
}

// ShapeError 重写产生了违反结构约束的节点
type ShapeError struct {
	Kind   tree.NodeKind
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("invalid rewrite of %s: %s", e.Kind, e.Reason)
}

// Unwrap 归入宿主误用通道（T0300）
func (e *ShapeError) Unwrap() error { return terrors.ErrInvalidShape }

func shapeError(k tree.NodeKind, format string, args ...interface{}) *ShapeError {
	return &ShapeError{Kind: k, Reason: fmt.Sprintf(format, args...)}
}

// Walker 带上下文的遍历器
//
// 上下文有三项：当前处于多少层 Quote 之内，当前节点是否为赋值目标，
// 以及当前节点是否为初始化器开头的构造调用。
type Walker struct {
	visit     Func
	visitLval Func
	quote     int
	lval      bool
	initNew   bool
}

// New 创建遍历器；策略为 nil 时使用 Default
func New(visit, visitLval Func) *Walker {
	if visit == nil {
		visit = Default
	}
	if visitLval == nil {
		visitLval = Default
	}
	return &Walker{visit: visit, visitLval: visitLval}
}

// InQuote 当前是否处于引用的子树中
func (w *Walker) InQuote() bool { return w.quote > 0 }

// IsLval 当前节点是否作为赋值目标被访问
func (w *Walker) IsLval() bool { return w.lval }

// IsInitNew 当前节点是否为 ListInit/MemberInit 的构造调用；该位置的结果必须仍是 New
func (w *Walker) IsInitNew() bool { return w.initNew }

// Rewrite 用给定策略重写整棵树，形态错误与误用（*errors.Error 及其组合）以 error 返回
func Rewrite(n tree.Node, visit, visitLval Func) (out tree.Node, err error) {
	if n == nil {
		return nil, terrors.New(terrors.T0001, "tree")
	}
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			var te *terrors.Error
			if !ok || !errors.As(e, &te) {
				panic(r)
			}
			out, err = nil, e
		}
	}()
	return New(visit, visitLval).Visit(n), nil
}

// Visit 在取值位置访问节点
func (w *Walker) Visit(n tree.Node) tree.Node {
	if n == nil {
		return nil
	}
	saved, savedInit := w.lval, w.initNew
	w.lval, w.initNew = false, false
	out := w.visit(w, n)
	w.lval, w.initNew = saved, savedInit
	if out == nil {
		panic(shapeError(n.Kind(), "visit returned nil"))
	}
	return out
}

// VisitLval 在赋值目标位置访问节点；结果必须仍是变量、成员访问或索引
func (w *Walker) VisitLval(n tree.Node) tree.Node {
	if n == nil {
		return nil
	}
	saved, savedInit := w.lval, w.initNew
	w.lval, w.initNew = true, false
	out := w.visitLval(w, n)
	w.lval, w.initNew = saved, savedInit
	if !IsLvalShape(out) {
		panic(shapeError(n.Kind(), "assignment target rewritten to %T", out))
	}
	return out
}

// IsLvalShape 节点形态能否出现在赋值目标位置
func IsLvalShape(n tree.Node) bool {
	switch x := n.(type) {
	case *tree.Parameter:
		return x != nil
	case *tree.MemberAccess, *tree.Index:
		return true
	}
	return false
}

// ============================================================================
// 子节点重建
// ============================================================================

// Children 按求值顺序访问 n 的子节点并重建 n；子节点都未变化时返回 n 本身
func (w *Walker) Children(n tree.Node) tree.Node {
	switch x := n.(type) {
	case *tree.Constant, *tree.Default, *tree.Parameter:
		return n

	case *tree.RuntimeVariables:
		vars := make([]*tree.Parameter, len(x.Variables))
		for i, v := range x.Variables {
			p, ok := w.VisitLval(v).(*tree.Parameter)
			if !ok {
				panic(shapeError(n.Kind(), "runtime variable %d is no longer a variable", i))
			}
			vars[i] = p
		}
		return x.Update(vars)

	case *tree.Unary:
		if x.Op.IsAssignment() {
			return x.Update(w.VisitLval(x.Operand))
		}
		return x.Update(w.Visit(x.Operand))

	case *tree.Binary:
		var left tree.Node
		if x.Op.IsAssignment() {
			left = w.VisitLval(x.Left)
		} else {
			left = w.Visit(x.Left)
		}
		conv := x.Conversion
		if conv != nil {
			l, ok := w.Visit(conv).(*tree.Lambda)
			if !ok || len(l.Parameters) != 1 {
				panic(shapeError(n.Kind(), "conversion must stay a one-parameter lambda"))
			}
			conv = l
		}
		return x.Update(left, conv, w.Visit(x.Right))

	case *tree.TypeBinary:
		return x.Update(w.Visit(x.Operand))

	case *tree.Block:
		return x.Update(x.Variables, w.List(x.Expressions))

	case *tree.Conditional:
		return x.Update(w.Visit(x.Test), w.Visit(x.IfTrue), w.Visit(x.IfFalse))

	case *tree.Try:
		body := w.Visit(x.Body)
		handlers := x.Handlers
		for i, h := range x.Handlers {
			nh := h.Update(h.Variable, w.Visit(h.Filter), w.Visit(h.Body))
			if nh != h {
				if sameSlice(handlers, x.Handlers) {
					handlers = append([]*tree.CatchBlock(nil), x.Handlers...)
				}
				handlers[i] = nh
			}
		}
		return x.Update(body, handlers, w.Visit(x.Finally), w.Visit(x.Fault))

	case *tree.Throw:
		return x.Update(w.Visit(x.Value))

	case *tree.Label:
		return x.Update(w.Visit(x.Default))

	case *tree.Goto:
		return x.Update(w.Visit(x.Value))

	case *tree.Loop:
		return x.Update(w.Visit(x.Body))

	case *tree.Switch:
		value := w.Visit(x.SwitchValue)
		cases := x.Cases
		for i, c := range x.Cases {
			nc := c.Update(w.List(c.TestValues), w.Visit(c.Body))
			if nc != c {
				if sameSlice(cases, x.Cases) {
					cases = append([]*tree.SwitchCase(nil), x.Cases...)
				}
				cases[i] = nc
			}
		}
		return x.Update(value, cases, w.Visit(x.Default))

	case *tree.Lambda:
		return x.Update(w.Visit(x.Body), x.Parameters)

	case *tree.Invocation:
		var params []types.ParamInfo
		if l, ok := x.Expression.(*tree.Lambda); ok {
			params = make([]types.ParamInfo, len(l.Parameters))
			for i, p := range l.Parameters {
				params[i] = types.ParamInfo{Name: p.Name, Type: p.Type(), ByRef: p.ByRef}
			}
		}
		expr := w.Visit(x.Expression)
		return x.Update(expr, w.Args(x.Arguments, params))

	case *tree.Quote:
		w.quote++
		out, ok := w.Visit(x.Operand).(*tree.Lambda)
		w.quote--
		if !ok {
			panic(shapeError(n.Kind(), "quoted operand must stay a lambda"))
		}
		return x.Update(out)

	case *tree.Call:
		obj := w.object(x.Object)
		return x.Update(obj, w.Args(x.Arguments, x.Method.Params))

	case *tree.MemberAccess:
		return x.Update(w.object(x.Object))

	case *tree.Index:
		obj := w.object(x.Object)
		return x.Update(obj, w.List(x.Arguments))

	case *tree.New:
		if x.Constructor == nil {
			return x
		}
		return x.Update(w.Args(x.Arguments, x.Constructor.Params))

	case *tree.NewArray:
		return x.Update(w.List(x.Expressions))

	case *tree.ListInit:
		return x.Update(w.newExpr(n, x.NewExpr), w.inits(x.Initializers))

	case *tree.MemberInit:
		return x.Update(w.newExpr(n, x.NewExpr), w.bindings(x.Bindings))

	case *tree.Dynamic:
		return x.Update(w.Args(x.Arguments, x.Binder.Params))
	}
	panic(shapeError(n.Kind(), "unknown node %T", n))
}

// object 访问成员的接收者；值类型成员被写入时接收者本身也被写入
func (w *Walker) object(obj tree.Node) tree.Node {
	if w.lval && obj != nil && obj.Type().IsValueType() && IsLvalShape(obj) {
		return w.VisitLval(obj)
	}
	return w.Visit(obj)
}

// newExpr 访问初始化器的构造调用；策略可据 IsInitNew 只重建其实参
func (w *Walker) newExpr(owner tree.Node, n *tree.New) *tree.New {
	saved, savedInit := w.lval, w.initNew
	w.lval, w.initNew = false, true
	out, ok := w.visit(w, n).(*tree.New)
	w.lval, w.initNew = saved, savedInit
	if !ok || out == nil {
		panic(shapeError(owner.Kind(), "initializer must keep its constructor call"))
	}
	return out
}

// List 依次访问节点列表；都未变化时返回原切片
func (w *Walker) List(ns []tree.Node) []tree.Node {
	return w.Args(ns, nil)
}

// Args 依次访问实参，按引用参数对应的实参走赋值目标路径
func (w *Walker) Args(ns []tree.Node, params []types.ParamInfo) []tree.Node {
	var out []tree.Node
	for i, n := range ns {
		var v tree.Node
		if i < len(params) && params[i].ByRef {
			v = w.VisitLval(n)
		} else {
			v = w.Visit(n)
		}
		if v != n && out == nil {
			out = make([]tree.Node, len(ns))
			copy(out, ns[:i])
		}
		if out != nil {
			out[i] = v
		}
	}
	if out == nil {
		return ns
	}
	return out
}

func (w *Walker) inits(inits []*tree.ElementInit) []*tree.ElementInit {
	out := inits
	for i, e := range inits {
		ne := e.Update(w.Args(e.Arguments, e.AddMethod.Params))
		if ne != e {
			if sameSlice(out, inits) {
				out = append([]*tree.ElementInit(nil), inits...)
			}
			out[i] = ne
		}
	}
	return out
}

func (w *Walker) bindings(bs []*tree.MemberBinding) []*tree.MemberBinding {
	out := bs
	for i, b := range bs {
		var nb *tree.MemberBinding
		switch b.BindingKind {
		case tree.BindAssignment:
			nb = b.Update(w.Visit(b.Expression), b.Bindings, b.Initializers)
		case tree.BindMember:
			nb = b.Update(b.Expression, w.bindings(b.Bindings), b.Initializers)
		case tree.BindList:
			nb = b.Update(b.Expression, b.Bindings, w.inits(b.Initializers))
		}
		if nb != b {
			if sameSlice(out, bs) {
				out = append([]*tree.MemberBinding(nil), bs...)
			}
			out[i] = nb
		}
	}
	return out
}

// sameSlice 两个切片是否共享同一底层数组起点
func sameSlice[T any](a, b []T) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	return &a[0] == &b[0]
}
