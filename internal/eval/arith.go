package eval

import (
	"math"
	"math/bits"

	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// ============================================================================
// 数值表示
// ============================================================================
//
// 整数统一提升到 int64/uint64 运算，再按目标宽度截断（未检查）或做范围检查（检查）。
// char 按 uint16 处理。
//
// ============================================================================

func signed(k types.Kind) bool {
	switch k {
	case types.Int8, types.Int16, types.Int32, types.Int64:
		return true
	}
	return false
}

func integer(k types.Kind) bool {
	switch k {
	case types.Char, types.Int8, types.Uint8, types.Int16, types.Uint16,
		types.Int32, types.Uint32, types.Int64, types.Uint64:
		return true
	}
	return false
}

func float(k types.Kind) bool {
	return k == types.Float32 || k == types.Float64
}

func width(k types.Kind) uint {
	switch k {
	case types.Int8, types.Uint8:
		return 8
	case types.Int16, types.Uint16, types.Char:
		return 16
	case types.Int32, types.Uint32, types.Float32:
		return 32
	}
	return 64
}

func asInt64(v any) int64 {
	switch x := v.(type) {
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	}
	return 0
}

func asUint64(v any) uint64 {
	switch x := v.(type) {
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint64:
		return x
	case int8:
		return uint64(x)
	case int16:
		return uint64(x)
	case int32:
		return uint64(x)
	case int64:
		return uint64(x)
	}
	return 0
}

func asFloat64(v any) float64 {
	switch x := v.(type) {
	case float32:
		return float64(x)
	case float64:
		return x
	}
	if signedValue(v) {
		return float64(asInt64(v))
	}
	return float64(asUint64(v))
}

func signedValue(v any) bool {
	switch v.(type) {
	case int8, int16, int32, int64:
		return true
	}
	return false
}

// fromInt64 按宽度截断
func fromInt64(k types.Kind, x int64) any {
	switch k {
	case types.Int8:
		return int8(x)
	case types.Uint8:
		return uint8(x)
	case types.Int16:
		return int16(x)
	case types.Uint16, types.Char:
		return uint16(x)
	case types.Int32:
		return int32(x)
	case types.Uint32:
		return uint32(x)
	case types.Int64:
		return x
	case types.Uint64:
		return uint64(x)
	}
	return nil
}

func fromUint64(k types.Kind, x uint64) any {
	return fromInt64(k, int64(x))
}

func fromFloat64(k types.Kind, x float64) any {
	if k == types.Float32 {
		return float32(x)
	}
	return x
}

func minInt(k types.Kind) int64 {
	return -1 << (width(k) - 1)
}

func maxInt(k types.Kind) int64 {
	return 1<<(width(k)-1) - 1
}

func maxUint(k types.Kind) uint64 {
	if width(k) == 64 {
		return math.MaxUint64
	}
	return 1<<width(k) - 1
}

// ============================================================================
// 二元算术
// ============================================================================

func arith(op tree.BinaryOp, k types.Kind, a, b any) (any, error) {
	switch {
	case float(k):
		return floatArith(op, k, a, b)
	case signed(k):
		return signedArith(op, k, asInt64(a), asInt64(b))
	case integer(k):
		return unsignedArith(op, k, asUint64(a), asUint64(b))
	}
	return nil, ErrNotFoldable
}

func floatArith(op tree.BinaryOp, k types.Kind, a, b any) (any, error) {
	if k == types.Float32 {
		x, y := a.(float32), b.(float32)
		switch op {
		case tree.Add, tree.AddChecked:
			return x + y, nil
		case tree.Subtract, tree.SubtractChecked:
			return x - y, nil
		case tree.Multiply, tree.MultiplyChecked:
			return x * y, nil
		case tree.Divide:
			return x / y, nil
		case tree.Modulo:
			return float32(math.Mod(float64(x), float64(y))), nil
		}
		return nil, ErrNotFoldable
	}
	x, y := a.(float64), b.(float64)
	switch op {
	case tree.Add, tree.AddChecked:
		return x + y, nil
	case tree.Subtract, tree.SubtractChecked:
		return x - y, nil
	case tree.Multiply, tree.MultiplyChecked:
		return x * y, nil
	case tree.Divide:
		return x / y, nil
	case tree.Modulo:
		return math.Mod(x, y), nil
	case tree.Power:
		return math.Pow(x, y), nil
	}
	return nil, ErrNotFoldable
}

func signedArith(op tree.BinaryOp, k types.Kind, x, y int64) (any, error) {
	w := width(k)
	switch op {
	case tree.Add, tree.Subtract, tree.Multiply:
		var r int64
		switch op {
		case tree.Add:
			r = x + y
		case tree.Subtract:
			r = x - y
		default:
			r = x * y
		}
		return fromInt64(k, r), nil
	case tree.AddChecked:
		r := x + y
		if w == 64 && ((x > 0 && y > 0 && r < 0) || (x < 0 && y < 0 && r >= 0)) {
			return nil, types.Overflow()
		}
		return checkedSigned(k, r)
	case tree.SubtractChecked:
		r := x - y
		if w == 64 && ((x >= 0 && y < 0 && r < 0) || (x < 0 && y > 0 && r >= 0)) {
			return nil, types.Overflow()
		}
		return checkedSigned(k, r)
	case tree.MultiplyChecked:
		if w == 64 {
			if x != 0 && y != 0 {
				r := x * y
				if r/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
					return nil, types.Overflow()
				}
				return r, nil
			}
			return int64(0), nil
		}
		return checkedSigned(k, x*y)
	case tree.Divide, tree.Modulo:
		if y == 0 {
			return nil, types.DivideByZero()
		}
		// 只有原生宽度（int/long）的 MinValue / -1 会溢出；更窄的类型按 int 运算再截断
		if y == -1 && w >= 32 && x == minInt(k) {
			return nil, types.Overflow()
		}
		if op == tree.Divide {
			return fromInt64(k, x/y), nil
		}
		return fromInt64(k, x%y), nil
	}
	return nil, ErrNotFoldable
}

func checkedSigned(k types.Kind, r int64) (any, error) {
	if r < minInt(k) || r > maxInt(k) {
		return nil, types.Overflow()
	}
	return fromInt64(k, r), nil
}

func unsignedArith(op tree.BinaryOp, k types.Kind, x, y uint64) (any, error) {
	switch op {
	case tree.Add:
		return fromUint64(k, x+y), nil
	case tree.Subtract:
		return fromUint64(k, x-y), nil
	case tree.Multiply:
		return fromUint64(k, x*y), nil
	case tree.AddChecked:
		r, carry := bits.Add64(x, y, 0)
		if carry != 0 || r > maxUint(k) {
			return nil, types.Overflow()
		}
		return fromUint64(k, r), nil
	case tree.SubtractChecked:
		if x < y {
			return nil, types.Overflow()
		}
		return fromUint64(k, x-y), nil
	case tree.MultiplyChecked:
		hi, lo := bits.Mul64(x, y)
		if hi != 0 || lo > maxUint(k) {
			return nil, types.Overflow()
		}
		return fromUint64(k, lo), nil
	case tree.Divide, tree.Modulo:
		if y == 0 {
			return nil, types.DivideByZero()
		}
		if op == tree.Divide {
			return fromUint64(k, x/y), nil
		}
		return fromUint64(k, x%y), nil
	}
	return nil, ErrNotFoldable
}

// ============================================================================
// 位运算与移位
// ============================================================================

func bitwise(op tree.BinaryOp, k types.Kind, a, b any) (any, error) {
	if k == types.Bool {
		x, y := a.(bool), b.(bool)
		switch op {
		case tree.And:
			return x && y, nil
		case tree.Or:
			return x || y, nil
		case tree.ExclusiveOr:
			return x != y, nil
		}
		return nil, ErrNotFoldable
	}
	x, y := asUint64(a), asUint64(b)
	switch op {
	case tree.And:
		return fromUint64(k, x&y), nil
	case tree.Or:
		return fromUint64(k, x|y), nil
	case tree.ExclusiveOr:
		return fromUint64(k, x^y), nil
	}
	return nil, ErrNotFoldable
}

// shift 移位次数按宽度取模：32 位及以下 &31，64 位 &63
func shift(op tree.BinaryOp, k types.Kind, a, b any) (any, error) {
	mask := uint64(31)
	if width(k) == 64 {
		mask = 63
	}
	n := uint(asUint64(b) & mask)
	if signed(k) {
		x := asInt64(a)
		if op == tree.LeftShift {
			return fromInt64(k, x<<n), nil
		}
		return fromInt64(k, x>>n), nil
	}
	x := asUint64(a)
	if op == tree.LeftShift {
		return fromUint64(k, x<<n), nil
	}
	return fromUint64(k, x>>n), nil
}

// ============================================================================
// 比较
// ============================================================================

func compare(op tree.BinaryOp, k types.Kind, a, b any) (any, error) {
	if op == tree.Equal || op == tree.NotEqual {
		eq, ok := equal(k, a, b)
		if !ok {
			return nil, ErrNotFoldable
		}
		return eq == (op == tree.Equal), nil
	}
	var c int
	switch {
	case float(k):
		x, y := asFloat64(a), asFloat64(b)
		if math.IsNaN(x) || math.IsNaN(y) {
			return false, nil
		}
		c = cmpOrdered(x, y)
	case signed(k):
		c = cmpOrdered(asInt64(a), asInt64(b))
	case integer(k):
		c = cmpOrdered(asUint64(a), asUint64(b))
	default:
		return nil, ErrNotFoldable
	}
	switch op {
	case tree.LessThan:
		return c < 0, nil
	case tree.LessThanOrEqual:
		return c <= 0, nil
	case tree.GreaterThan:
		return c > 0, nil
	case tree.GreaterThanOrEqual:
		return c >= 0, nil
	}
	return nil, ErrNotFoldable
}

func cmpOrdered[T int64 | uint64 | float64](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// equal 值相等；引用类型只在两边都为 null 或都是字符串时可判定
func equal(k types.Kind, a, b any) (bool, bool) {
	if a == nil || b == nil {
		return a == nil && b == nil, true
	}
	switch {
	case float(k):
		return asFloat64(a) == asFloat64(b), true
	case k == types.Bool:
		return a.(bool) == b.(bool), true
	case integer(k):
		return asUint64(a) == asUint64(b), true
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return sa == sb, true
	}
	return false, false
}
