package optimizer

import (
	"errors"

	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// ============================================================================
// 成员调用与访问
// ============================================================================

func (o *Optimizer) reduceCall(c *tree.Call) tree.Node {
	if r := o.throwsFirst(c); r != c {
		return r
	}
	if r := o.nullReceiver(c, c.Object, c.Method, c.Arguments); r != nil {
		return r
	}
	if c.Object == nil && len(c.Arguments) == 1 && o.oracle.IsIdentityFunction(c.Method) {
		return o.rewrote(FamilyMember, "identity-call", c, o.changeType(c.Arguments[0], c.Type()))
	}
	if r := o.foldMember(c, c.Method, c.Object, c.Arguments); r != nil {
		return r
	}
	return c
}

func (o *Optimizer) reduceMemberAccess(m *tree.MemberAccess) tree.Node {
	if r := o.throwsFirst(m); r != m {
		return r
	}
	if r := o.nullReceiver(m, m.Object, m.Member, nil); r != nil {
		return r
	}
	if r := o.foldMember(m, m.Member, m.Object, nil); r != nil {
		return r
	}
	return m
}

func (o *Optimizer) reduceIndex(x *tree.Index) tree.Node {
	if r := o.throwsFirst(x); r != x {
		return r
	}
	if x.Indexer == nil {
		if len(x.Arguments) != 1 {
			return x
		}
		if r := o.arrayElement(x.Object, x.Arguments[0], x.Type()); r != nil {
			return o.rewrote(FamilyMember, "array-element", x, r)
		}
		return x
	}
	if r := o.nullReceiver(x, x.Object, x.Indexer, x.Arguments); r != nil {
		return r
	}
	return x
}

// reduceNew 没有构造函数的值类型创建等价于默认值；纯构造函数配常量实参时折叠
//
// 只折叠不可变类型的实例：可变对象的常量会被多次求值共享。
func (o *Optimizer) reduceNew(n *tree.New) tree.Node {
	if r := o.throwsFirst(n); r != n {
		return r
	}
	if n.Constructor == nil {
		return o.rewrote(FamilyMember, "new-default", n, tree.DefaultOf(n.Type()))
	}
	if !o.oracle.IsImmutable(n.Type()) {
		return n
	}
	if r := o.foldMember(n, n.Constructor, nil, n.Arguments); r != nil {
		return r
	}
	return n
}

func (o *Optimizer) reduceInvocation(inv *tree.Invocation) tree.Node {
	if r := o.throwsFirst(inv); r != inv {
		return r
	}
	if _, ok := inv.Expression.(*tree.Lambda); ok && o.opts.BetaReduction {
		return o.beta(inv)
	}
	return inv
}

// nullReceiver 实例成员的接收者恒为 null 时，访问必然抛出 NullReferenceException
//
// 接收者与实参都必须是纯的：否则它们的副作用在异常之前发生，不能丢弃。
// Nullable 上的成员（HasValue 等）可以在 null 上调用。
func (o *Optimizer) nullReceiver(n, obj tree.Node, m *types.Member, args []tree.Node) tree.Node {
	if obj == nil || m.Static {
		return nil
	}
	if m.DeclaringType != nil && m.DeclaringType.IsNullable() {
		return nil
	}
	if !o.oracle.IsPure(obj) || !o.oracle.IsAlwaysNull(obj) || !o.allPure(args) {
		return nil
	}
	return o.rewrote(FamilyMember, "null-receiver", n, throwOf(types.NullReference(), n.Type()))
}

// foldMember 纯成员在常量接收者与常量实参上求值
//
// 结果类型必须不可变；求值抛出目标程序异常时改写为 throw，
// 其余失败（无法折叠、缺少实现）保持原节点。不能折叠时返回 nil。
func (o *Optimizer) foldMember(n tree.Node, m *types.Member, obj tree.Node, args []tree.Node) tree.Node {
	if !o.opts.ConstantFolding || !o.oracle.IsPureMember(m) || !o.oracle.IsImmutable(n.Type()) {
		return nil
	}
	vals := make([]any, 0, len(args)+1)
	if obj != nil {
		v, ok := o.pureConstant(obj)
		if !ok {
			return nil
		}
		vals = append(vals, v)
	}
	for _, a := range args {
		v, ok := o.pureConstant(a)
		if !ok {
			return nil
		}
		vals = append(vals, v)
	}
	fn, err := o.factory.Member(m)
	if err != nil {
		return nil
	}
	res, err := fn(vals...)
	if err != nil {
		var exc *types.Exception
		if !errors.As(err, &exc) {
			return nil
		}
		return o.rewrote(FamilyFold, "fold-member-throw", n, throwOf(exc, n.Type()))
	}
	c, err := tree.NewConstant(res, n.Type())
	if err != nil {
		return nil
	}
	return o.rewrote(FamilyFold, "fold-member", n, c)
}

// pureConstant 纯且有常量值的节点的值
func (o *Optimizer) pureConstant(n tree.Node) (any, bool) {
	if !o.oracle.IsPure(n) || !o.oracle.HasConstantValue(n) {
		return nil, false
	}
	return o.oracle.ConstantValue(n)
}
