package tree

import (
	"github.com/tangzhangming/treeopt/internal/types"
)

// EqualNodes 结构相等：变量和跳转目标按身份比较，常量按值比较
func EqualNodes(a, b Node) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	if a.Kind() != b.Kind() || !types.Identical(a.Type(), b.Type()) {
		return false
	}
	switch x := a.(type) {
	case *Constant:
		return types.ValueEqual(x.Value, b.(*Constant).Value)
	case *Default:
		return true
	case *Parameter:
		return x == b.(*Parameter)
	case *RuntimeVariables:
		return same(x.Variables, b.(*RuntimeVariables).Variables)
	case *Unary:
		y := b.(*Unary)
		return x.Op == y.Op && x.Method == y.Method && EqualNodes(x.Operand, y.Operand)
	case *Binary:
		y := b.(*Binary)
		return x.Op == y.Op && x.Method == y.Method && x.LiftToNull == y.LiftToNull &&
			EqualNodes(x.Left, y.Left) && EqualNodes(x.Right, y.Right) && equalLambda(x.Conversion, y.Conversion)
	case *TypeBinary:
		y := b.(*TypeBinary)
		return x.Op == y.Op && types.Identical(x.TypeOperand, y.TypeOperand) && EqualNodes(x.Operand, y.Operand)
	case *Block:
		y := b.(*Block)
		return same(x.Variables, y.Variables) && equalList(x.Expressions, y.Expressions)
	case *Conditional:
		y := b.(*Conditional)
		return EqualNodes(x.Test, y.Test) && EqualNodes(x.IfTrue, y.IfTrue) && EqualNodes(x.IfFalse, y.IfFalse)
	case *Try:
		y := b.(*Try)
		if len(x.Handlers) != len(y.Handlers) {
			return false
		}
		for i, h := range x.Handlers {
			g := y.Handlers[i]
			if !types.Identical(h.Test, g.Test) || h.Variable != g.Variable ||
				!EqualNodes(h.Filter, g.Filter) || !EqualNodes(h.Body, g.Body) {
				return false
			}
		}
		return EqualNodes(x.Body, y.Body) && EqualNodes(x.Finally, y.Finally) && EqualNodes(x.Fault, y.Fault)
	case *Throw:
		return EqualNodes(x.Value, b.(*Throw).Value)
	case *Lambda:
		return equalLambda(x, b.(*Lambda))
	case *Invocation:
		y := b.(*Invocation)
		return EqualNodes(x.Expression, y.Expression) && equalList(x.Arguments, y.Arguments)
	case *Quote:
		return equalLambda(x.Operand, b.(*Quote).Operand)
	case *Call:
		y := b.(*Call)
		return x.Method == y.Method && EqualNodes(x.Object, y.Object) && equalList(x.Arguments, y.Arguments)
	case *MemberAccess:
		y := b.(*MemberAccess)
		return x.Member == y.Member && EqualNodes(x.Object, y.Object)
	case *Index:
		y := b.(*Index)
		return x.Indexer == y.Indexer && EqualNodes(x.Object, y.Object) && equalList(x.Arguments, y.Arguments)
	case *New:
		y := b.(*New)
		return x.Constructor == y.Constructor && equalList(x.Arguments, y.Arguments)
	case *NewArray:
		y := b.(*NewArray)
		return x.Bounds == y.Bounds && equalList(x.Expressions, y.Expressions)
	case *ListInit:
		y := b.(*ListInit)
		return EqualNodes(x.NewExpr, y.NewExpr) && equalInits(x.Initializers, y.Initializers)
	case *MemberInit:
		y := b.(*MemberInit)
		return EqualNodes(x.NewExpr, y.NewExpr) && equalBindings(x.Bindings, y.Bindings)
	case *Dynamic:
		y := b.(*Dynamic)
		return x.Binder == y.Binder && equalList(x.Arguments, y.Arguments)
	case *Label:
		y := b.(*Label)
		return x.Target == y.Target && EqualNodes(x.Default, y.Default)
	case *Goto:
		y := b.(*Goto)
		return x.GotoKind == y.GotoKind && x.Target == y.Target && EqualNodes(x.Value, y.Value)
	case *Loop:
		y := b.(*Loop)
		return x.Break == y.Break && x.Continue == y.Continue && EqualNodes(x.Body, y.Body)
	case *Switch:
		y := b.(*Switch)
		if x.Comparison != y.Comparison || len(x.Cases) != len(y.Cases) {
			return false
		}
		for i, c := range x.Cases {
			if !equalList(c.TestValues, y.Cases[i].TestValues) || !EqualNodes(c.Body, y.Cases[i].Body) {
				return false
			}
		}
		return EqualNodes(x.SwitchValue, y.SwitchValue) && EqualNodes(x.Default, y.Default)
	}
	return false
}

func equalLambda(a, b *Lambda) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return same(a.Parameters, b.Parameters) && types.Identical(a.Type(), b.Type()) && EqualNodes(a.Body, b.Body)
}

func equalList(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !EqualNodes(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalInits(a, b []*ElementInit) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].AddMethod != b[i].AddMethod || !equalList(a[i].Arguments, b[i].Arguments) {
			return false
		}
	}
	return true
}

func equalBindings(a, b []*MemberBinding) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.BindingKind != y.BindingKind || x.Member != y.Member ||
			!EqualNodes(x.Expression, y.Expression) ||
			!equalBindings(x.Bindings, y.Bindings) ||
			!equalInits(x.Initializers, y.Initializers) {
			return false
		}
	}
	return true
}

// Size 节点数，作为重写终止性的度量
func Size(n Node) int {
	if isNil(n) {
		return 0
	}
	s := 1
	switch x := n.(type) {
	case *Unary:
		s += Size(x.Operand)
	case *Binary:
		s += Size(x.Left) + Size(x.Right)
		if x.Conversion != nil {
			s += Size(x.Conversion)
		}
	case *TypeBinary:
		s += Size(x.Operand)
	case *Block:
		s += sizeList(x.Expressions)
	case *Conditional:
		s += Size(x.Test) + Size(x.IfTrue) + Size(x.IfFalse)
	case *Try:
		s += Size(x.Body) + Size(x.Finally) + Size(x.Fault)
		for _, h := range x.Handlers {
			s += 1 + Size(h.Filter) + Size(h.Body)
		}
	case *Throw:
		s += Size(x.Value)
	case *Lambda:
		s += Size(x.Body)
	case *Invocation:
		s += Size(x.Expression) + sizeList(x.Arguments)
	case *Quote:
		s += Size(x.Operand)
	case *Call:
		s += Size(x.Object) + sizeList(x.Arguments)
	case *MemberAccess:
		s += Size(x.Object)
	case *Index:
		s += Size(x.Object) + sizeList(x.Arguments)
	case *New:
		s += sizeList(x.Arguments)
	case *NewArray:
		s += sizeList(x.Expressions)
	case *ListInit:
		s += Size(x.NewExpr)
		for _, e := range x.Initializers {
			s += sizeList(e.Arguments)
		}
	case *MemberInit:
		s += Size(x.NewExpr) + sizeBindings(x.Bindings)
	case *Dynamic:
		s += sizeList(x.Arguments)
	case *Label:
		s += Size(x.Default)
	case *Goto:
		s += Size(x.Value)
	case *Loop:
		s += Size(x.Body)
	case *Switch:
		s += Size(x.SwitchValue) + Size(x.Default)
		for _, c := range x.Cases {
			s += sizeList(c.TestValues) + Size(c.Body)
		}
	}
	return s
}

func sizeList(nodes []Node) int {
	s := 0
	for _, n := range nodes {
		s += Size(n)
	}
	return s
}

func sizeBindings(bs []*MemberBinding) int {
	s := 0
	for _, b := range bs {
		s++
		s += Size(b.Expression) + sizeBindings(b.Bindings)
		for _, e := range b.Initializers {
			s += sizeList(e.Arguments)
		}
	}
	return s
}
