package optimizer

import (
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
	"github.com/tangzhangming/treeopt/internal/walk"
)

// ============================================================================
// 类型保持
// ============================================================================

// changeType 把 n 包装成类型为 t 的等价节点
//
// 规则替换节点时必须保持原节点的静态类型：throw 直接换类型，
// 总是抛出的节点放进以 t 为类型的块，其余加显式转换。
func (o *Optimizer) changeType(n tree.Node, t *types.Type) tree.Node {
	if types.Identical(n.Type(), t) {
		return n
	}
	if th, ok := n.(*tree.Throw); ok {
		return th.WithType(t)
	}
	if t.Kind() == types.Void {
		return tree.MakeTypedBlock(t, nil, n)
	}
	if o.oracle.AlwaysThrows(n) {
		if types.IsAssignableTo(n.Type(), t) {
			return tree.MakeTypedBlock(t, nil, n)
		}
		return tree.MakeTypedBlock(t, nil, n, tree.DefaultOf(t))
	}
	return tree.MakeConvert(n, t)
}

// ============================================================================
// 总是抛出的操作数
// ============================================================================

// throwsFirst 若先于节点其余部分求值的某个操作数总是抛出，整个节点收缩为该操作数
//
// 从左到右检查无条件求值的操作数；遇到第一个不纯的操作数就停止，
// 因为丢弃它会丢失副作用。
func (o *Optimizer) throwsFirst(n tree.Node) tree.Node {
	for _, op := range o.ordered(n) {
		if o.oracle.AlwaysThrows(op) {
			return o.rewrote(FamilyThrow, "throws-first", n, o.changeType(op, n.Type()))
		}
		if !o.oracle.IsPure(op) {
			break
		}
	}
	return n
}

// ordered 同 operands，初始化器另按求值顺序展开
//
// 初始化器的实参与 Add 调用、成员写入交替执行：只有构造调用与前面的
// Add/写入都是纯的且不抛出时，后面初始化器的实参才算"先于其余部分求值"。
func (o *Optimizer) ordered(n tree.Node) []tree.Node {
	switch x := n.(type) {
	case *tree.ListInit:
		out := operands(x.NewExpr)
		if len(out) < len(x.NewExpr.Arguments) || !o.quietMember(x.NewExpr.Constructor) {
			return out
		}
		return o.elementOperands(out, x.Initializers)
	case *tree.MemberInit:
		out := operands(x.NewExpr)
		if len(out) < len(x.NewExpr.Arguments) || !o.quietMember(x.NewExpr.Constructor) {
			return out
		}
		for _, b := range x.Bindings {
			if b.BindingKind != tree.BindAssignment {
				break
			}
			out = append(out, b.Expression)
			if !o.quietMember(b.Member) {
				break
			}
		}
		return out
	}
	return operands(n)
}

func (o *Optimizer) elementOperands(out []tree.Node, inits []*tree.ElementInit) []tree.Node {
	for _, e := range inits {
		a := args(e.Arguments, e.AddMethod.Params)
		out = append(out, a...)
		if len(a) < len(e.Arguments) || !o.quietMember(e.AddMethod) {
			break
		}
	}
	return out
}

// quietMember 调用成员既没有副作用也不会抛出；nil 表示没有构造函数的值类型
func (o *Optimizer) quietMember(m *types.Member) bool {
	return m == nil || (o.oracle.IsPureMember(m) && o.oracle.NeverThrowsMember(m))
}

// operands 节点在执行自身之前无条件、按顺序求值的操作数
func operands(n tree.Node) []tree.Node {
	switch x := n.(type) {
	case *tree.Unary:
		if x.Op.IsAssignment() {
			return nil
		}
		return []tree.Node{x.Operand}
	case *tree.Binary:
		switch {
		case x.Op.IsAssignment():
			if _, ok := x.Left.(*tree.Parameter); !ok {
				return nil
			}
			if x.Op == tree.Assign {
				return []tree.Node{x.Right}
			}
			return []tree.Node{x.Left, x.Right}
		case x.Op.IsShortCircuit():
			return []tree.Node{x.Left}
		}
		return []tree.Node{x.Left, x.Right}
	case *tree.TypeBinary:
		return []tree.Node{x.Operand}
	case *tree.Conditional:
		return []tree.Node{x.Test}
	case *tree.Switch:
		return []tree.Node{x.SwitchValue}
	case *tree.Throw:
		if x.Value != nil {
			return []tree.Node{x.Value}
		}
	case *tree.Goto:
		if x.Value != nil {
			return []tree.Node{x.Value}
		}
	case *tree.Call:
		return withObject(x.Object, args(x.Arguments, x.Method.Params))
	case *tree.MemberAccess:
		if x.Object != nil {
			return []tree.Node{x.Object}
		}
	case *tree.Index:
		return withObject(x.Object, x.Arguments)
	case *tree.Invocation:
		var params []types.ParamInfo
		if l, ok := x.Expression.(*tree.Lambda); ok {
			for _, p := range l.Parameters {
				params = append(params, types.ParamInfo{Type: p.Type(), ByRef: p.ByRef})
			}
		}
		return withObject(x.Expression, args(x.Arguments, params))
	case *tree.New:
		if x.Constructor != nil {
			return args(x.Arguments, x.Constructor.Params)
		}
	case *tree.NewArray:
		return x.Expressions
	case *tree.Dynamic:
		return args(x.Arguments, x.Binder.Params)
	}
	return nil
}

// args 实参列表；按引用传递的非变量实参不是一次读取，从那里截断
func args(ns []tree.Node, params []types.ParamInfo) []tree.Node {
	for i, n := range ns {
		if i < len(params) && params[i].ByRef {
			if _, ok := n.(*tree.Parameter); !ok {
				return ns[:i]
			}
		}
	}
	return ns
}

func withObject(obj tree.Node, rest []tree.Node) []tree.Node {
	if obj == nil {
		return rest
	}
	out := make([]tree.Node, 0, len(rest)+1)
	out = append(out, obj)
	return append(out, rest...)
}

// hasLabel 子树中是否有标签（可能是跳转目标，不能随死代码一起删除）
func hasLabel(nodes ...tree.Node) bool {
	found := false
	w := walk.New(func(w *walk.Walker, n tree.Node) tree.Node {
		if _, ok := n.(*tree.Label); ok {
			found = true
		}
		if found {
			return n
		}
		return w.Children(n)
	}, nil)
	for _, n := range nodes {
		w.Visit(n)
	}
	return found
}
