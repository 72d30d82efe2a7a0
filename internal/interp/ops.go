package interp

import (
	"errors"
	"fmt"
	"reflect"

	terrors "github.com/tangzhangming/treeopt/internal/errors"
	"github.com/tangzhangming/treeopt/internal/eval"
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// ============================================================================
// 一元运算
// ============================================================================

func (in *Interpreter) unary(x *tree.Unary, f *frame) (any, error) {
	if x.Op.IsAssignment() {
		return in.step(x, f)
	}
	v, err := in.eval(x.Operand, f)
	if err != nil {
		return nil, err
	}
	if x.Method != nil {
		if v == nil && liftedParam(x.Operand.Type(), x.Method.Params[0].Type) {
			return nil, nil
		}
		return in.invoke("call", x.Method, nil, []any{v})
	}

	switch x.Op {
	case tree.TypeAs:
		if v == nil {
			return nil, nil
		}
		dyn := types.DynamicType(v)
		if dyn == nil {
			dyn = types.NonNullable(x.Operand.Type())
		}
		if instanceOf(dyn, x.Type()) {
			return v, nil
		}
		return nil, nil
	case tree.ArrayLength:
		if v == nil {
			return nil, types.NullReference()
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice {
			return nil, fmt.Errorf("interp: array length of %T", v)
		}
		return int32(rv.Len()), nil
	case tree.Convert, tree.ConvertChecked, tree.Unbox:
		op := x.Op
		if op == tree.Unbox {
			op = tree.Convert
		}
		fn, err := in.factory.Unary(op, x.Operand.Type(), x.Type())
		if err != nil {
			return nil, err
		}
		return fn(v)
	}
	fn, err := in.factory.Unary(x.Op, arithType(x.Operand.Type()), arithType(x.Type()))
	if err != nil {
		return nil, unsupported(x.Op.String(), err)
	}
	return fn(v)
}

// step 自增/自减赋值
func (in *Interpreter) step(x *tree.Unary, f *frame) (any, error) {
	lv, err := in.lvalue(x.Operand, f)
	if err != nil {
		return nil, err
	}
	old, err := lv.get()
	if err != nil {
		return nil, err
	}
	op := tree.Increment
	if x.Op == tree.PreDecrementAssign || x.Op == tree.PostDecrementAssign {
		op = tree.Decrement
	}
	var next any
	switch {
	case x.Method != nil:
		next, err = in.invoke("call", x.Method, nil, []any{old})
	default:
		var fn eval.Func
		t := arithType(x.Operand.Type())
		if fn, err = in.factory.Unary(op, t, t); err != nil {
			return nil, unsupported(x.Op.String(), err)
		}
		next, err = fn(old)
	}
	if err != nil {
		return nil, err
	}
	if err := lv.set(next); err != nil {
		return nil, err
	}
	if x.Op == tree.PreIncrementAssign || x.Op == tree.PreDecrementAssign {
		return next, nil
	}
	return old, nil
}

// ============================================================================
// 二元运算
// ============================================================================

func (in *Interpreter) binary(x *tree.Binary, f *frame) (any, error) {
	switch {
	case x.Op == tree.Assign:
		lv, err := in.lvalue(x.Left, f)
		if err != nil {
			return nil, err
		}
		v, err := in.eval(x.Right, f)
		if err != nil {
			return nil, err
		}
		return v, lv.set(v)

	case x.Op.IsCompoundAssignment():
		return in.compound(x, f)

	case x.Op == tree.AndAlso || x.Op == tree.OrElse:
		return in.shortCircuit(x, f)

	case x.Op == tree.Coalesce:
		l, err := in.eval(x.Left, f)
		if err != nil {
			return nil, err
		}
		if l == nil {
			return in.eval(x.Right, f)
		}
		if x.Conversion != nil {
			return in.apply(&Closure{Lambda: x.Conversion, env: f}, []any{l})
		}
		return l, nil
	}

	l, err := in.eval(x.Left, f)
	if err != nil {
		return nil, err
	}
	r, err := in.eval(x.Right, f)
	if err != nil {
		return nil, err
	}
	if x.Op == tree.ArrayIndex {
		return arrayGet(l, []any{r})
	}
	return in.operate(x, x.Op, l, r)
}

// operate 对已求值的操作数执行运算
func (in *Interpreter) operate(x *tree.Binary, op tree.BinaryOp, l, r any) (any, error) {
	if m := x.Method; m != nil {
		if (l == nil && liftedParam(x.Left.Type(), m.Params[0].Type)) ||
			(r == nil && liftedParam(x.Right.Type(), m.Params[1].Type)) {
			return liftedNull(op, l, r, x.LiftToNull), nil
		}
		return in.invoke("call", m, nil, []any{l, r})
	}
	fn, err := in.factory.Binary(op, arithType(x.Left.Type()), arithType(x.Right.Type()), arithType(x.Type()), x.LiftToNull)
	if errors.Is(err, eval.ErrNotFoldable) && (op == tree.Equal || op == tree.NotEqual) {
		// 引用与用户值类型按身份/值比较
		return types.ValueEqual(l, r) == (op == tree.Equal), nil
	}
	if err != nil {
		return nil, unsupported(op.String(), err)
	}
	return fn(l, r)
}

func (in *Interpreter) compound(x *tree.Binary, f *frame) (any, error) {
	lv, err := in.lvalue(x.Left, f)
	if err != nil {
		return nil, err
	}
	old, err := lv.get()
	if err != nil {
		return nil, err
	}
	r, err := in.eval(x.Right, f)
	if err != nil {
		return nil, err
	}
	v, err := in.operate(x, x.Op.Underlying(), old, r)
	if err != nil {
		return nil, err
	}
	if x.Conversion != nil {
		if v, err = in.apply(&Closure{Lambda: x.Conversion, env: f}, []any{v}); err != nil {
			return nil, err
		}
	}
	return v, lv.set(v)
}

// shortCircuit && 与 ||；bool? 操作数按三值逻辑
func (in *Interpreter) shortCircuit(x *tree.Binary, f *frame) (any, error) {
	and := x.Op == tree.AndAlso
	l, err := in.eval(x.Left, f)
	if err != nil {
		return nil, err
	}
	if m := x.Method; m != nil {
		name := "op_True"
		if and {
			name = "op_False"
		}
		test := m.DeclaringType.Method(name)
		if test == nil {
			return nil, terrors.New(terrors.T0201, "%s needs %s", m, name)
		}
		done, err := in.invoke("call", test, nil, []any{l})
		if err != nil {
			return nil, err
		}
		if done == true {
			return l, nil
		}
		r, err := in.eval(x.Right, f)
		if err != nil {
			return nil, err
		}
		return in.invoke("call", m, nil, []any{l, r})
	}
	if (and && l == false) || (!and && l == true) {
		return l, nil
	}
	r, err := in.eval(x.Right, f)
	if err != nil {
		return nil, err
	}
	return in.operate(x, x.Op, l, r)
}

// liftedNull 提升的重载运算符遇到 null 操作数
func liftedNull(op tree.BinaryOp, l, r any, liftToNull bool) any {
	if !op.IsComparison() || liftToNull {
		return nil
	}
	switch op {
	case tree.Equal:
		return l == nil && r == nil
	case tree.NotEqual:
		return !(l == nil && r == nil)
	}
	return false
}

// liftedParam 实参类型是参数类型的可空形式
func liftedParam(arg, param *types.Type) bool {
	return arg.IsNullable() && !param.IsNullable()
}

// arithType 枚举按底层整数类型运算
func arithType(t *types.Type) *types.Type {
	if t.IsNullable() && types.IsEnum(t.Elem()) {
		return types.NullableOf(t.Elem().Underlying())
	}
	return t.Underlying()
}

func unsupported(op string, err error) error {
	if errors.Is(err, eval.ErrNotFoldable) {
		return fmt.Errorf("interp: %s: %w", op, err)
	}
	return err
}

// ============================================================================
// 赋值目标
// ============================================================================

// place 已求值好接收者与索引的赋值目标
type place struct {
	get func() (any, error)
	set func(v any) error
}

func (in *Interpreter) lvalue(n tree.Node, f *frame) (*place, error) {
	switch x := n.(type) {
	case *tree.Parameter:
		c, err := f.lookup(x)
		if err != nil {
			return nil, err
		}
		return &place{
			get: func() (any, error) { return c.value, nil },
			set: func(v any) error { c.value = v; return nil },
		}, nil

	case *tree.MemberAccess:
		obj, err := in.eval(x.Object, f)
		if err != nil {
			return nil, err
		}
		return &place{
			get: func() (any, error) { return in.get(x.Member, obj, nil) },
			set: func(v any) error { return in.set(x.Member, obj, v, nil) },
		}, nil

	case *tree.Index:
		obj, args, err := in.operands(x.Object, x.Arguments, f)
		if err != nil {
			return nil, err
		}
		if x.Indexer == nil {
			return &place{
				get: func() (any, error) { return arrayGet(obj, args) },
				set: func(v any) error { return arraySet(obj, args, v) },
			}, nil
		}
		return &place{
			get: func() (any, error) { return in.get(x.Indexer, obj, args) },
			set: func(v any) error { return in.set(x.Indexer, obj, v, args) },
		}, nil
	}
	return nil, terrors.New(terrors.T0301, "%s", tree.Format(n))
}

// ============================================================================
// 数组
// ============================================================================

func arrayGet(arr any, idx []any) (any, error) {
	for _, i := range idx {
		rv, n, err := element(arr, i)
		if err != nil {
			return nil, err
		}
		arr = rv.Index(n).Interface()
	}
	return arr, nil
}

func arraySet(arr any, idx []any, v any) error {
	if len(idx) == 0 {
		return fmt.Errorf("interp: array store without index")
	}
	outer, err := arrayGet(arr, idx[:len(idx)-1])
	if err != nil {
		return err
	}
	rv, n, err := element(outer, idx[len(idx)-1])
	if err != nil {
		return err
	}
	if v == nil {
		rv.Index(n).Set(reflect.Zero(rv.Type().Elem()))
		return nil
	}
	ev := reflect.ValueOf(v)
	if !ev.Type().AssignableTo(rv.Type().Elem()) {
		return types.NewException(types.ArgumentExceptionType, "cannot store %T in %s", v, rv.Type())
	}
	rv.Index(n).Set(ev)
	return nil
}

// element 检查数组与下标
func element(arr, i any) (reflect.Value, int, error) {
	if arr == nil {
		return reflect.Value{}, 0, types.NullReference()
	}
	rv := reflect.ValueOf(arr)
	if rv.Kind() != reflect.Slice {
		return reflect.Value{}, 0, fmt.Errorf("interp: indexing a %T", arr)
	}
	iv := reflect.ValueOf(i)
	var n int64
	switch {
	case iv.CanInt():
		n = iv.Int()
	case iv.CanUint():
		n = int64(iv.Uint())
	default:
		return reflect.Value{}, 0, fmt.Errorf("interp: array index %T", i)
	}
	if n < 0 || n >= int64(rv.Len()) {
		return reflect.Value{}, 0, types.IndexOutOfRange()
	}
	return rv, int(n), nil
}
