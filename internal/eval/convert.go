package eval

import (
	"math"

	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// ============================================================================
// 一元运算
// ============================================================================

func unaryOp(op tree.UnaryOp, k types.Kind, v any) (any, error) {
	switch op {
	case tree.UnaryPlus:
		return v, nil
	case tree.Not, tree.OnesComplement:
		if k == types.Bool {
			return !v.(bool), nil
		}
		if integer(k) {
			return fromUint64(k, ^asUint64(v)), nil
		}
	case tree.IsTrue:
		if k == types.Bool {
			return v.(bool), nil
		}
	case tree.IsFalse:
		if k == types.Bool {
			return !v.(bool), nil
		}
	case tree.Negate, tree.NegateChecked:
		switch {
		case float(k):
			return fromFloat64(k, -asFloat64(v)), nil
		case signed(k):
			x := asInt64(v)
			if op == tree.NegateChecked {
				return checkedSigned(k, -x)
			}
			return fromInt64(k, -x), nil
		case integer(k):
			x := asUint64(v)
			if op == tree.NegateChecked && x != 0 {
				return nil, types.Overflow()
			}
			return fromUint64(k, -x), nil
		}
	case tree.Increment, tree.Decrement:
		d := int64(1)
		if op == tree.Decrement {
			d = -1
		}
		switch {
		case float(k):
			return fromFloat64(k, asFloat64(v)+float64(d)), nil
		case integer(k):
			return fromInt64(k, asInt64(v)+d), nil
		}
	}
	return nil, ErrNotFoldable
}

// ============================================================================
// 转换
// ============================================================================

// convert 在基本类型之间转换值（v 非 null，from/to 已去掉 Nullable 与枚举）
func convert(v any, from, to types.Kind, checked bool) (any, error) {
	if from == to {
		return v, nil
	}
	switch {
	case (integer(from) || float(from)) && integer(to):
		return toInteger(v, from, to, checked)
	case (integer(from) || float(from)) && float(to):
		return fromFloat64(to, asFloat64(v)), nil
	}
	return nil, ErrNotFoldable
}

func toInteger(v any, from, to types.Kind, checked bool) (any, error) {
	if float(from) {
		f := math.Trunc(asFloat64(v))
		inRange := !math.IsNaN(f)
		if signed(to) {
			inRange = inRange && f >= float64(minInt(to)) && f < -float64(minInt(to))
		} else {
			inRange = inRange && f >= 0 && f < float64(maxUint(to))+1
		}
		if !inRange {
			if checked {
				return nil, types.Overflow()
			}
			// 未检查的越界浮点转整数结果未定义，不折叠
			return nil, ErrNotFoldable
		}
		if signed(to) {
			return fromInt64(to, int64(f)), nil
		}
		return fromUint64(to, uint64(f)), nil
	}
	if !checked {
		return fromInt64(to, asInt64(v)), nil
	}
	if signedValue(v) {
		x := asInt64(v)
		if signed(to) {
			return checkedSigned(to, x)
		}
		if x < 0 || uint64(x) > maxUint(to) {
			return nil, types.Overflow()
		}
		return fromInt64(to, x), nil
	}
	x := asUint64(v)
	if signed(to) {
		if x > uint64(maxInt(to)) {
			return nil, types.Overflow()
		}
		return fromUint64(to, x), nil
	}
	if x > maxUint(to) {
		return nil, types.Overflow()
	}
	return fromUint64(to, x), nil
}

// convertValue 完整的 Convert/ConvertChecked 语义，含 Nullable、枚举、装箱与拆箱
func convertValue(v any, from, to *types.Type, checked bool) (any, error) {
	// Nullable<T> → 非可空：null 是"无值"错误，而不是空引用
	if from.IsNullable() && !to.CanBeNull() {
		if v == nil {
			return nil, types.NoValue()
		}
		return convertValue(v, from.Elem(), to, checked)
	}
	if v == nil {
		if to.CanBeNull() {
			return nil, nil
		}
		// 引用 → 值类型拆箱
		return nil, types.NullReference()
	}
	if to.IsNullable() {
		if from.IsNullable() {
			from = from.Elem()
		}
		return convertValue(v, from, to.Elem(), checked)
	}
	if from.IsNullable() {
		from = from.Elem()
	}
	if !from.IsValueType() && to.IsValueType() {
		return unbox(v, to)
	}
	if !to.IsValueType() {
		return box(v, from, to)
	}
	fk, tk := from.Underlying().Kind(), to.Underlying().Kind()
	if !fk.IsPrimitive() || !tk.IsPrimitive() {
		if types.Identical(from, to) {
			return v, nil
		}
		return nil, ErrNotFoldable
	}
	return convert(v, fk, tk, checked)
}

// unbox 拆箱要求运行时类型与目标（或其底层整数类型）完全一致
func unbox(v any, to *types.Type) (any, error) {
	dyn := types.DynamicType(v)
	if dyn == nil {
		return nil, ErrNotFoldable
	}
	want := to.Underlying()
	if types.Identical(dyn, to) || types.Identical(dyn, want) {
		return v, nil
	}
	return nil, types.InvalidCast(dyn, to)
}

// box 值到引用或引用之间的转换
func box(v any, from, to *types.Type) (any, error) {
	if to.Kind() == types.Object {
		return v, nil
	}
	dyn := types.DynamicType(v)
	if dyn == nil {
		if types.IsAssignableTo(from, to) {
			return v, nil
		}
		return nil, ErrNotFoldable
	}
	if types.IsAssignableTo(dyn, to) {
		return v, nil
	}
	return nil, types.InvalidCast(dyn, to)
}
