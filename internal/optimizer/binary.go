package optimizer

import (
	"errors"
	"reflect"

	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// ============================================================================
// 二元
// ============================================================================

func (o *Optimizer) reduceBinary(b *tree.Binary) tree.Node {
	if r := o.throwsFirst(b); r != b {
		return r
	}
	if b.Op.IsAssignment() {
		return b
	}
	switch b.Op {
	case tree.Coalesce:
		return o.coalesce(b)
	case tree.AndAlso, tree.OrElse:
		return o.shortCircuit(b)
	case tree.ArrayIndex:
		if r := o.arrayElement(b.Left, b.Right, b.Type()); r != nil {
			return o.rewrote(FamilyBinary, "array-index", b, r)
		}
		return b
	}
	if b.Method != nil {
		return b
	}
	if r := o.foldBinary(b); r != b {
		return r
	}
	if r := o.algebra(b); r != b {
		return r
	}
	return o.rangeTautology(b)
}

// ============================================================================
// Coalesce
// ============================================================================

func (o *Optimizer) coalesce(b *tree.Binary) tree.Node {
	switch {
	case o.oracle.IsNeverNull(b.Left):
		if conv := b.Conversion; conv != nil {
			arg := o.changeType(b.Left, conv.Parameters[0].Type())
			var out tree.Node = tree.MakeInvoke(conv, arg)
			if o.opts.BetaReduction {
				out = o.beta(out.(*tree.Invocation))
			}
			return o.rewrote(FamilyBinary, "coalesce-non-null", b, o.changeType(out, b.Type()))
		}
		return o.rewrote(FamilyBinary, "coalesce-non-null", b, o.changeType(b.Left, b.Type()))
	case o.oracle.IsAlwaysNull(b.Left) && o.oracle.IsPure(b.Left):
		return o.rewrote(FamilyBinary, "coalesce-null", b, o.changeType(b.Right, b.Type()))
	}
	return b
}

// ============================================================================
// AndAlso / OrElse
// ============================================================================

// shortCircuit 四种形态：内建、提升到 bool?、重载运算符、提升的重载运算符
func (o *Optimizer) shortCircuit(b *tree.Binary) tree.Node {
	isAnd := b.Op == tree.AndAlso
	l, r := b.Left, b.Right

	if b.Method != nil {
		return o.overloadedShortCircuit(b, isAnd)
	}

	// decisive 左操作数单独决定结果的值（AndAlso 的 false，OrElse 的 true）
	decisive, neutral := o.oracle.IsFalse, o.oracle.IsTrue
	if !isAnd {
		decisive, neutral = neutral, decisive
	}

	switch {
	case decisive(l):
		return o.rewrote(FamilyBinary, "short-circuit-left", b, l)
	case neutral(l):
		return o.rewrote(FamilyBinary, "short-circuit-neutral", b, r)
	case neutral(r) && o.oracle.IsPure(r):
		// x && true 与 x || false 在三值逻辑下同样成立
		return o.rewrote(FamilyBinary, "short-circuit-identity", b, l)
	}

	if !b.IsLifted() {
		if decisive(r) && o.oracle.IsPure(l) && o.oracle.IsPure(r) {
			return o.rewrote(FamilyBinary, "short-circuit-absorb", b, r)
		}
		return b
	}

	// 提升：左操作数为 null 时右操作数仍被求值，结果按三值逻辑合并
	if o.oracle.IsAlwaysNull(l) && o.oracle.IsPure(l) && o.oracle.IsPure(r) {
		if decisive(r) {
			return o.rewrote(FamilyBinary, "lifted-null-decisive", b, r)
		}
		if neutral(r) || o.oracle.IsAlwaysNull(r) {
			return o.rewrote(FamilyBinary, "lifted-null", b, l)
		}
	}
	return b
}

// overloadedShortCircuit x && y 即 T.op_False(x) ? x : T.op_BitwiseAnd(x, y)，OrElse 对称
func (o *Optimizer) overloadedShortCircuit(b *tree.Binary, isAnd bool) tree.Node {
	l := b.Left
	if !o.oracle.IsPure(l) {
		return b
	}
	if b.IsLifted() {
		if o.oracle.IsAlwaysNull(l) {
			return o.rewrote(FamilyBinary, "overloaded-lifted-null", b, o.changeType(l, b.Type()))
		}
		return b
	}
	name, plain := "op_False", tree.And
	if !isAnd {
		name, plain = "op_True", tree.Or
	}
	decl := b.Method.DeclaringType
	if decl == nil {
		return b
	}
	test := decl.Method(name)
	if test == nil || !o.oracle.IsPureMember(test) || !o.oracle.HasConstantValue(l) {
		return b
	}
	v, _ := o.oracle.ConstantValue(l)
	fn, err := o.factory.Member(test)
	if err != nil {
		return b
	}
	res, err := fn(v)
	decided, ok := res.(bool)
	if err != nil || !ok {
		return b
	}
	if decided {
		return o.rewrote(FamilyBinary, "overloaded-short-circuit", b, o.changeType(l, b.Type()))
	}
	nb, err := tree.NewBinary(plain, l, b.Right, tree.WithMethod(b.Method))
	if err != nil || !types.Identical(nb.Type(), b.Type()) {
		return b
	}
	return o.rewrote(FamilyBinary, "overloaded-short-circuit", b, nb)
}

// ============================================================================
// 数组元素
// ============================================================================

// arrayElement 能静态确定的 arr[idx]；不能确定时返回 nil
//
// 常量数组的元素只有在数组类型被声明为不可变时才折叠，因为同一个数组对象可能被写入。
func (o *Optimizer) arrayElement(arr, idx tree.Node, t *types.Type) tree.Node {
	if !o.oracle.IsPure(arr) || !o.oracle.IsPure(idx) {
		return nil
	}
	if o.oracle.IsAlwaysNull(arr) {
		return throwOf(types.NullReference(), t)
	}
	v, ok := o.oracle.ConstantValue(arr)
	if !ok || v == nil {
		return nil
	}
	i, ok := o.constInt(idx)
	if !ok {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil
	}
	if i < 0 || i >= int64(rv.Len()) {
		return throwOf(types.IndexOutOfRange(), t)
	}
	if !o.oracle.IsImmutable(arr.Type()) || !o.oracle.IsImmutable(t) {
		return nil
	}
	c, err := tree.NewConstant(rv.Index(int(i)).Interface(), t)
	if err != nil {
		return nil
	}
	return c
}

// ============================================================================
// 常量折叠
// ============================================================================

func (o *Optimizer) foldBinary(b *tree.Binary) tree.Node {
	if !o.opts.ConstantFolding {
		return b
	}
	if !o.oracle.HasConstantValue(b.Left) || !o.oracle.HasConstantValue(b.Right) ||
		!o.oracle.IsPure(b.Left) || !o.oracle.IsPure(b.Right) {
		return b
	}
	lv, _ := o.oracle.ConstantValue(b.Left)
	rv, _ := o.oracle.ConstantValue(b.Right)
	fn, err := o.factory.Binary(b.Op, b.Left.Type(), b.Right.Type(), b.Type(), b.LiftToNull)
	if err != nil {
		return b
	}
	res, err := fn(lv, rv)
	if err != nil {
		var exc *types.Exception
		if errors.As(err, &exc) {
			return o.rewrote(FamilyFold, "fold-throw", b, throwOf(exc, b.Type()))
		}
		return b
	}
	c, err := tree.NewConstant(res, b.Type())
	if err != nil {
		return b
	}
	return o.rewrote(FamilyFold, "fold-"+b.Op.String(), b, c)
}

// ============================================================================
// 整数代数
// ============================================================================
//
// 只对整数（位运算还包括 bool）生效，浮点的 NaN 与 -0 使这些恒等式不成立。
// 被删除的操作数若影响结果（x*0 中的 x），必须纯且非 null：
// 否则会丢掉副作用，或把提升运算中的 null 结果变成 0。
//
// ============================================================================

func (o *Optimizer) algebra(b *tree.Binary) tree.Node {
	lt := types.NonNullable(b.Left.Type()).Underlying()
	if b.Op.IsBitwise() {
		if !types.IsIntegerOrBool(lt) {
			return b
		}
	} else if !types.IsInteger(lt) {
		return b
	}

	l, r := b.Left, b.Right
	t := b.Type()
	keep := func(rule string, n tree.Node) tree.Node {
		if !types.Identical(n.Type(), t) {
			return b
		}
		return o.rewrote(FamilyBinary, rule, b, n)
	}
	// disposable 可以不求值也不影响 null 传播
	disposable := func(n tree.Node) bool {
		return o.oracle.IsPure(n) && o.oracle.IsNeverNull(n)
	}
	same := func() bool {
		return o.oracle.IsPure(l) && tree.EqualNodes(l, r)
	}
	q := o.oracle

	switch b.Op {
	case tree.Add, tree.AddChecked:
		switch {
		case q.IsZero(r):
			return keep("add-zero", l)
		case q.IsZero(l):
			return keep("add-zero", r)
		}
	case tree.Subtract, tree.SubtractChecked:
		if q.IsZero(r) {
			return keep("subtract-zero", l)
		}
	case tree.Multiply, tree.MultiplyChecked:
		switch {
		case q.IsOne(r):
			return keep("multiply-one", l)
		case q.IsOne(l):
			return keep("multiply-one", r)
		case q.IsZero(r) && disposable(l):
			return keep("multiply-zero", r)
		case q.IsZero(l) && disposable(r):
			return keep("multiply-zero", l)
		}
	case tree.Divide:
		if q.IsOne(r) {
			return keep("divide-one", l)
		}
	case tree.Modulo:
		if q.IsOne(r) && disposable(l) {
			if z := o.constantOf(types.Zero(types.NonNullable(t)), t); z != nil {
				return keep("modulo-one", z)
			}
		}
	case tree.And:
		switch {
		case q.AllBitsOne(r):
			return keep("and-ones", l)
		case q.AllBitsOne(l):
			return keep("and-ones", r)
		case q.AllBitsZero(r) && disposable(l):
			return keep("and-zero", r)
		case q.AllBitsZero(l) && disposable(r):
			return keep("and-zero", l)
		case same():
			return keep("and-self", l)
		}
	case tree.Or:
		switch {
		case q.AllBitsZero(r):
			return keep("or-zero", l)
		case q.AllBitsZero(l):
			return keep("or-zero", r)
		case q.AllBitsOne(r) && disposable(l):
			return keep("or-ones", r)
		case q.AllBitsOne(l) && disposable(r):
			return keep("or-ones", l)
		case same():
			return keep("or-self", l)
		}
	case tree.ExclusiveOr:
		switch {
		case q.AllBitsZero(r):
			return keep("xor-zero", l)
		case q.AllBitsZero(l):
			return keep("xor-zero", r)
		case disposable(l) && same():
			if z := o.constantOf(types.Zero(types.NonNullable(t)), t); z != nil {
				return keep("xor-self", z)
			}
		case disposable(l) && disposable(r) && complementary(l, r):
			if ones := o.allOnes(t); ones != nil {
				return keep("xor-complement", ones)
			}
		}
	case tree.LeftShift, tree.RightShift:
		if n, ok := o.constInt(r); ok && n&shiftMask(lt) == 0 {
			return keep("shift-zero", l)
		}
	}
	return b
}

// complementary 一个操作数是另一个的按位取反
func complementary(l, r tree.Node) bool {
	isNot := func(a, b tree.Node) bool {
		u, ok := a.(*tree.Unary)
		return ok && u.Method == nil && (u.Op == tree.Not || u.Op == tree.OnesComplement) && tree.EqualNodes(u.Operand, b)
	}
	return isNot(l, r) || isNot(r, l)
}

func shiftMask(t *types.Type) int64 {
	if types.BitSize(t) == 64 {
		return 63
	}
	return 31
}

// allOnes 通过求值工厂得到类型 t 的全 1 值（对 bool 即 true）
func (o *Optimizer) allOnes(t *types.Type) tree.Node {
	base := types.NonNullable(t)
	fn, err := o.factory.Unary(tree.Not, base, base)
	if err != nil {
		return nil
	}
	v, err := fn(types.Zero(base))
	if err != nil {
		return nil
	}
	return o.constantOf(v, t)
}

func (o *Optimizer) constantOf(v any, t *types.Type) tree.Node {
	c, err := tree.NewConstant(v, t)
	if err != nil {
		return nil
	}
	return c
}

// ============================================================================
// 范围恒等式
// ============================================================================

// rangeTautology x >= Min、x <= Max 恒真，x < Min、x > Max 恒假
//
// 返回 bool 的提升比较中 null 参与时结果为 false，所以恒假的结论不需要 x 非 null；
// 恒真的结论与返回 bool? 的比较都要求 x 非 null。
func (o *Optimizer) rangeTautology(b *tree.Binary) tree.Node {
	if !b.Op.IsRelational() || !types.IsInteger(types.NonNullable(b.Left.Type()).Underlying()) {
		return b
	}
	x, c, op := b.Left, b.Right, b.Op
	if o.oracle.HasConstantValue(x) && !o.oracle.HasConstantValue(c) {
		x, c, op = c, x, op.Swapped()
	}
	if !o.oracle.IsPure(x) || !o.oracle.IsPure(c) {
		return b
	}
	var result, known bool
	switch {
	case op == tree.GreaterThanOrEqual && o.oracle.IsMinValue(c),
		op == tree.LessThanOrEqual && o.oracle.IsMaxValue(c):
		result, known = true, true
	case op == tree.LessThan && o.oracle.IsMinValue(c),
		op == tree.GreaterThan && o.oracle.IsMaxValue(c):
		result, known = false, true
	}
	if !known {
		return b
	}
	if b.IsLifted() && (b.LiftToNull || result) && !o.oracle.IsNeverNull(x) {
		return b
	}
	out := o.constantOf(result, b.Type())
	if out == nil {
		return b
	}
	return o.rewrote(FamilyBinary, "range-tautology", b, out)
}
