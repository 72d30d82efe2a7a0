package optimizer

import (
	"errors"
	"math"
	"reflect"

	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// ============================================================================
// 一元：下降前
// ============================================================================

// preUnary 在访问子节点之前应用的局部规则
func (o *Optimizer) preUnary(u *tree.Unary) tree.Node {
	if u.Method != nil {
		return u
	}
	switch u.Op {
	case tree.UnaryPlus, tree.IsTrue:
		return o.rewrote(FamilyUnary, u.Op.String(), u, u.Operand)
	case tree.IsFalse:
		return o.rewrote(FamilyUnary, "is-false", u, tree.MakeUnary(tree.Not, u.Operand, nil))
	case tree.OnesComplement:
		return o.rewrote(FamilyUnary, "complement-to-not", u, tree.MakeUnary(tree.Not, u.Operand, nil))
	case tree.Not:
		return o.preNot(u)
	}
	return u
}

func (o *Optimizer) preNot(u *tree.Unary) tree.Node {
	switch x := u.Operand.(type) {
	case *tree.Unary:
		if x.Op == tree.Not && x.Method == nil && types.Identical(x.Operand.Type(), u.Type()) {
			return o.rewrote(FamilyUnary, "double-not", u, x.Operand)
		}
	case *tree.Binary:
		if x.Method != nil {
			return u
		}
		if flippable(x) {
			return o.rewrote(FamilyUnary, "not-comparison", u, negate(x))
		}
		if dual, ok := deMorgan[x.Op]; ok {
			if x.IsLifted() && x.Op.IsShortCircuit() {
				return u
			}
			if o.notDelta(x.Left)+o.notDelta(x.Right) > 0 {
				return u
			}
			l := tree.MakeUnary(tree.Not, x.Left, nil)
			r := tree.MakeUnary(tree.Not, x.Right, nil)
			return o.rewrote(FamilyUnary, "de-morgan", u, tree.MakeBinary(dual, l, r))
		}
	}
	return u
}

var deMorgan = map[tree.BinaryOp]tree.BinaryOp{
	tree.And:     tree.Or,
	tree.Or:      tree.And,
	tree.AndAlso: tree.OrElse,
	tree.OrElse:  tree.AndAlso,
}

// notDelta 在 n 外面加一个 Not 后，化简完成时 Not 节点数的变化
func (o *Optimizer) notDelta(n tree.Node) int {
	switch x := n.(type) {
	case *tree.Unary:
		if x.Op == tree.Not && x.Method == nil {
			return -1
		}
	case *tree.Binary:
		if x.Method == nil && flippable(x) {
			return 0
		}
	}
	if o.opts.ConstantFolding && o.oracle.HasConstantValue(n) {
		return 0
	}
	return 1
}

// flippable !(a op b) 能否改写为 a op' b
//
// 相等比较总能取反；大小比较只对整数操作数成立（浮点有 NaN），
// 且提升比较必须返回 bool?（返回 bool 时 null 比较恒为 false，取反后不再对称）。
func flippable(b *tree.Binary) bool {
	if b.Method != nil || !b.Op.IsComparison() {
		return false
	}
	if b.Op == tree.Equal || b.Op == tree.NotEqual {
		return true
	}
	if !types.IsInteger(types.NonNullable(b.Left.Type()).Underlying()) {
		return false
	}
	return !b.IsLifted() || b.LiftToNull
}

func negate(b *tree.Binary) *tree.Binary {
	var opts []tree.BinaryOption
	if b.LiftToNull {
		opts = append(opts, tree.WithLiftToNull())
	}
	return tree.MakeBinary(b.Op.Negated(), b.Left, b.Right, opts...)
}

// ============================================================================
// 一元：下降后
// ============================================================================

func (o *Optimizer) reduceUnary(u *tree.Unary) tree.Node {
	if u.Op.IsAssignment() {
		return u
	}
	if r := o.throwsFirst(u); r != u {
		return r
	}
	if u.Method != nil {
		return u
	}
	switch u.Op {
	case tree.Negate, tree.Not:
		if in, ok := u.Operand.(*tree.Unary); ok && in.Op == u.Op && in.Method == nil &&
			types.Identical(in.Operand.Type(), u.Type()) {
			return o.rewrote(FamilyUnary, "double-"+u.Op.String(), u, in.Operand)
		}
	case tree.Convert, tree.ConvertChecked:
		if types.Identical(u.Operand.Type(), u.Type()) {
			return o.rewrote(FamilyUnary, "identity-convert", u, u.Operand)
		}
	case tree.TypeAs:
		if o.oracle.IsPure(u.Operand) && o.oracle.IsAlwaysNull(u.Operand) {
			return o.rewrote(FamilyUnary, "as-null", u, tree.ConstOf(nil, u.Type()))
		}
	case tree.ArrayLength:
		if r := o.arrayLength(u); r != nil {
			return o.rewrote(FamilyUnary, "array-length", u, r)
		}
		return u
	}
	return o.foldUnary(u)
}

// foldUnary 操作数为纯常量时求值
func (o *Optimizer) foldUnary(u *tree.Unary) tree.Node {
	if !o.opts.ConstantFolding || !o.oracle.HasConstantValue(u.Operand) || !o.oracle.IsPure(u.Operand) {
		return u
	}
	v, _ := o.oracle.ConstantValue(u.Operand)
	fn, err := o.factory.Unary(u.Op, u.Operand.Type(), u.Type())
	if err != nil {
		return u
	}
	res, err := fn(v)
	if err != nil {
		var exc *types.Exception
		if !errors.As(err, &exc) {
			return u
		}
		// 引用与可空转换只在不抛出时折叠
		if u.Op.IsConversion() && !numericConversion(u.Operand.Type(), u.Type()) {
			return u
		}
		return o.rewrote(FamilyFold, "fold-throw", u, throwOf(exc, u.Type()))
	}
	c, err := tree.NewConstant(res, u.Type())
	if err != nil {
		return u
	}
	return o.rewrote(FamilyFold, "fold-"+u.Op.String(), u, c)
}

func numericConversion(from, to *types.Type) bool {
	if from.IsNullable() || to.IsNullable() {
		return false
	}
	return types.IsNumeric(from.Underlying()) && types.IsNumeric(to.Underlying())
}

// throwOf 抛出 exc、静态类型为 t 的节点
func throwOf(exc *types.Exception, t *types.Type) *tree.Throw {
	return tree.MakeThrow(tree.Const(exc), t)
}

// arrayLength 能静态确定的数组长度；不能确定时返回 nil
func (o *Optimizer) arrayLength(u *tree.Unary) tree.Node {
	arr := u.Operand
	if na, ok := arr.(*tree.NewArray); ok {
		if !na.Bounds && o.allPure(na.Expressions) {
			return tree.Const(int32(len(na.Expressions)))
		}
		if n, ok := o.constInt(na.Expressions[0]); na.Bounds && ok && n >= 0 && n <= math.MaxInt32 {
			return tree.Const(int32(n))
		}
		return nil
	}
	if !o.oracle.IsPure(arr) {
		return nil
	}
	if o.oracle.IsAlwaysNull(arr) {
		return throwOf(types.NullReference(), u.Type())
	}
	if v, ok := o.oracle.ConstantValue(arr); ok && v != nil {
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice && rv.Len() <= math.MaxInt32 {
			return tree.Const(int32(rv.Len()))
		}
	}
	return nil
}

// constInt 纯整数常量的值
func (o *Optimizer) constInt(n tree.Node) (int64, bool) {
	if !o.oracle.IsPure(n) {
		return 0, false
	}
	v, ok := o.oracle.ConstantValue(n)
	if !ok || v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return 0, false
		}
		return int64(rv.Uint()), true
	}
	return 0, false
}

func (o *Optimizer) allPure(ns []tree.Node) bool {
	for _, n := range ns {
		if !o.oracle.IsPure(n) {
			return false
		}
	}
	return true
}

// ============================================================================
// 类型测试
// ============================================================================

func (o *Optimizer) reduceTypeBinary(x *tree.TypeBinary) tree.Node {
	if r := o.throwsFirst(x); r != x {
		return r
	}
	if !o.oracle.IsPure(x.Operand) {
		return x
	}
	if o.oracle.IsAlwaysNull(x.Operand) {
		return o.rewrote(FamilyUnary, "type-test-null", x, tree.Const(false))
	}
	v, ok := o.oracle.ConstantValue(x.Operand)
	if !ok || v == nil {
		return x
	}
	dyn := types.DynamicType(v)
	if dyn == nil {
		return x
	}
	var hit bool
	if x.Op == tree.TypeEqual {
		hit = types.Identical(dyn, x.TypeOperand)
	} else {
		hit = types.IsAssignableTo(dyn, x.TypeOperand) || types.Identical(dyn, types.NonNullable(x.TypeOperand))
	}
	return o.rewrote(FamilyUnary, "type-test-constant", x, tree.Const(hit))
}
