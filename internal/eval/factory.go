// Package eval 把运算符与成员编译成可直接调用的求值函数，供常量折叠使用
//
// 求值函数返回的错误分三类：
//   - *types.Exception：目标程序异常，优化器把它包装成 Throw 节点
//   - ErrNotFoldable：结果未定义或无法静态确定，保持节点不变
//   - *errors.Error：宿主误用（nil 成员、静态索引属性、缺少实现）
package eval

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	terrors "github.com/tangzhangming/treeopt/internal/errors"
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// ErrNotFoldable 表示该次求值不能用于折叠
var ErrNotFoldable = errors.New("eval: not foldable")

// Func 求值函数；实例成员的第一个实参是接收者
type Func func(args ...any) (any, error)

// Factory 求值函数工厂
type Factory interface {
	// Unary 一元运算；operand/result 为静态类型
	Unary(op tree.UnaryOp, operand, result *types.Type) (Func, error)
	// Binary 二元运算；liftToNull 对应可空比较返回 bool?
	Binary(op tree.BinaryOp, left, right, result *types.Type, liftToNull bool) (Func, error)
	// Member 方法/字段/属性/构造函数
	Member(m *types.Member) (Func, error)
}

// ============================================================================
// 缓存
// ============================================================================

// opKey 基本运算符缓存键
//
// 键空间是 运算符 × 基本类型代码 × 可空标志，有限且很小，
// 因此缓存无需淘汰。枚举参与的转换和成员求值不进缓存。
type opKey struct {
	unary      bool
	op         uint8
	a, b, r    types.Kind
	na, nb, nr bool
	liftToNull bool
}

// Stats 缓存统计
type Stats struct {
	Hits     int64
	Misses   int64
	Uncached int64
}

// DefaultFactory 默认工厂，持有自己的基本运算符缓存
type DefaultFactory struct {
	cache    sync.Map // opKey → Func
	hits     atomic.Int64
	misses   atomic.Int64
	uncached atomic.Int64
}

var _ Factory = (*DefaultFactory)(nil)

// NewFactory 创建默认工厂
func NewFactory() *DefaultFactory {
	return &DefaultFactory{}
}

// Stats 返回缓存命中统计
func (f *DefaultFactory) Stats() Stats {
	return Stats{Hits: f.hits.Load(), Misses: f.misses.Load(), Uncached: f.uncached.Load()}
}

// CacheSize 缓存条目数
func (f *DefaultFactory) CacheSize() int {
	n := 0
	f.cache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (f *DefaultFactory) cached(k opKey, build func() Func) Func {
	if fn, ok := f.cache.Load(k); ok {
		f.hits.Inc()
		return fn.(Func)
	}
	f.misses.Inc()
	fn, _ := f.cache.LoadOrStore(k, build())
	return fn.(Func)
}

// primitive 去掉 Nullable 后是否为基本类型（非枚举）
func primitive(t *types.Type) (types.Kind, bool) {
	u := types.NonNullable(t)
	if u.Kind() == types.Enum {
		return u.Kind(), false
	}
	return u.Kind(), u.Kind().IsPrimitive()
}

// ============================================================================
// 一元
// ============================================================================

// Unary 实现 Factory
func (f *DefaultFactory) Unary(op tree.UnaryOp, operand, result *types.Type) (Func, error) {
	if operand == nil || result == nil {
		return nil, terrors.New(terrors.T0001, "operand or result type")
	}
	ak, aok := primitive(operand)
	rk, rok := primitive(result)

	if op == tree.Convert || op == tree.ConvertChecked {
		build := func() Func { return convertFunc(operand, result, op == tree.ConvertChecked) }
		if !aok || !rok {
			f.uncached.Inc()
			return build(), nil
		}
		k := opKey{unary: true, op: uint8(op), a: ak, r: rk, na: operand.IsNullable(), nr: result.IsNullable()}
		return f.cached(k, build), nil
	}

	if !aok {
		return nil, ErrNotFoldable
	}
	k := opKey{unary: true, op: uint8(op), a: ak, r: rk, na: operand.IsNullable(), nr: result.IsNullable()}
	return f.cached(k, func() Func {
		return func(args ...any) (any, error) {
			if args[0] == nil {
				// 提升运算：null 直接短路
				return nil, nil
			}
			return unaryOp(op, ak, args[0])
		}
	}), nil
}

func convertFunc(from, to *types.Type, checked bool) Func {
	return func(args ...any) (any, error) {
		return convertValue(args[0], from, to, checked)
	}
}

// ============================================================================
// 二元
// ============================================================================

// Binary 实现 Factory
func (f *DefaultFactory) Binary(op tree.BinaryOp, left, right, result *types.Type, liftToNull bool) (Func, error) {
	if left == nil || right == nil || result == nil {
		return nil, terrors.New(terrors.T0001, "operand or result type")
	}
	if op.IsAssignment() || op == tree.Coalesce || op == tree.ArrayIndex {
		return nil, ErrNotFoldable
	}
	lk, lok := primitive(left)
	rk, rok := primitive(right)
	resk, _ := primitive(result)
	if !lok || !rok {
		return nil, ErrNotFoldable
	}
	k := opKey{
		op: uint8(op), a: lk, b: rk, r: resk,
		na: left.IsNullable(), nb: right.IsNullable(), nr: result.IsNullable(),
		liftToNull: liftToNull,
	}
	lifted := left.IsNullable() || right.IsNullable()
	return f.cached(k, func() Func {
		return binaryFunc(op, lk, lifted, liftToNull)
	}), nil
}

func binaryFunc(op tree.BinaryOp, k types.Kind, lifted, liftToNull bool) Func {
	return func(args ...any) (any, error) {
		a, b := args[0], args[1]
		if lifted && (a == nil || b == nil) {
			return liftedNull(op, k, a, b, liftToNull)
		}
		return binaryOp(op, k, a, b)
	}
}

// liftedNull 至少一个操作数为 null 时的提升语义
func liftedNull(op tree.BinaryOp, k types.Kind, a, b any, liftToNull bool) (any, error) {
	switch {
	case k == types.Bool && (op == tree.And || op == tree.AndAlso):
		// 三值逻辑：false 优先于 null
		if a == false || b == false {
			return false, nil
		}
		return nil, nil
	case k == types.Bool && (op == tree.Or || op == tree.OrElse):
		if a == true || b == true {
			return true, nil
		}
		return nil, nil
	case op.IsComparison():
		if liftToNull {
			return nil, nil
		}
		if op == tree.Equal {
			return a == nil && b == nil, nil
		}
		if op == tree.NotEqual {
			return !(a == nil && b == nil), nil
		}
		return false, nil
	}
	return nil, nil
}

func binaryOp(op tree.BinaryOp, k types.Kind, a, b any) (any, error) {
	switch {
	case op.IsArithmetic():
		return arith(op, k, a, b)
	case op.IsBitwise():
		return bitwise(op, k, a, b)
	case op.IsShift():
		return shift(op, k, a, b)
	case op.IsComparison():
		return compare(op, k, a, b)
	case op == tree.AndAlso:
		return a.(bool) && b.(bool), nil
	case op == tree.OrElse:
		return a.(bool) || b.(bool), nil
	}
	return nil, ErrNotFoldable
}

// ============================================================================
// 成员
// ============================================================================

// Member 实现 Factory；成员求值函数不缓存
func (f *DefaultFactory) Member(m *types.Member) (Func, error) {
	if m == nil {
		return nil, terrors.New(terrors.T0001, "member")
	}
	if m.Kind == types.PropertyMember && m.Static && len(m.Params) > 0 {
		return nil, terrors.New(terrors.T0200, "static indexed property %s", m)
	}
	if m.Impl == nil {
		return nil, terrors.New(terrors.T0201, "%s", m)
	}
	f.uncached.Inc()
	impl := m.Impl
	instance := !m.Static && m.Kind != types.ConstructorMember
	nullableReceiver := m.DeclaringType != nil && m.DeclaringType.IsNullable()
	arity := len(m.Params)
	if instance {
		arity++
	}
	return func(args ...any) (any, error) {
		if len(args) != arity {
			return nil, terrors.New(terrors.T0002, "%s expects %d arguments, got %d", m, arity, len(args))
		}
		var obj any
		if instance {
			obj, args = args[0], args[1:]
			if obj == nil && !nullableReceiver {
				return nil, types.NullReference()
			}
		}
		v, err := impl(obj, args)
		if err != nil {
			var exc *types.Exception
			if errors.As(err, &exc) {
				return nil, exc
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrNotFoldable, m, err)
		}
		return v, nil
	}, nil
}
