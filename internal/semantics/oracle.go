// Package semantics 回答优化规则需要的语义事实
//
// 所有谓词都是"为真则可靠，为假则无信息"：返回 false 只会阻止某个优化，
// 永远不会影响正确性。宿主可以实现更强的 Oracle 来解锁更多折叠。
package semantics

import (
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// Oracle 语义事实查询接口
type Oracle interface {
	// NeverThrowsMember 调用/读取成员永不抛出
	NeverThrowsMember(m *types.Member) bool
	// NeverThrows 求值节点永不抛出
	NeverThrows(n tree.Node) bool
	// AlwaysThrows 求值节点总是抛出
	AlwaysThrows(n tree.Node) bool

	HasConstantValue(n tree.Node) bool
	ConstantValue(n tree.Node) (any, bool)

	IsAlwaysNull(n tree.Node) bool
	IsNeverNull(n tree.Node) bool

	// IsPure 无可观察副作用且永不抛出
	IsPure(n tree.Node) bool
	IsPureMember(m *types.Member) bool
	// IsIdentityFunction 单参数成员原样返回实参
	IsIdentityFunction(m *types.Member) bool

	IsFalse(n tree.Node) bool
	IsTrue(n tree.Node) bool
	IsZero(n tree.Node) bool
	IsOne(n tree.Node) bool
	AllBitsZero(n tree.Node) bool
	AllBitsOne(n tree.Node) bool
	IsMinValue(n tree.Node) bool
	IsMaxValue(n tree.Node) bool

	// IsImmutable 该类型的值一旦创建就不可修改
	IsImmutable(t *types.Type) bool
}

// ============================================================================
// 默认实现
// ============================================================================

// DefaultOracle 保守的默认实现
//
// 只有 Constant/Default/Lambda/Parameter 被视为纯且不抛出，
// 任何成员都不被信任为纯（IsPureMember 恒为 false）；
// 唯一被信任不抛出的成员是预定义异常类的无参构造。
type DefaultOracle struct{}

var _ Oracle = DefaultOracle{}

// Default 返回默认 Oracle
func Default() Oracle { return DefaultOracle{} }

func trivial(n tree.Node) bool {
	switch n.(type) {
	case *tree.Constant, *tree.Default, *tree.Lambda, *tree.Parameter:
		return true
	}
	return false
}

func (DefaultOracle) NeverThrowsMember(m *types.Member) bool {
	return m != nil && m.Kind == types.ConstructorMember && len(m.Params) == 0 &&
		types.IsPredefinedException(m.DeclaringType)
}

func (DefaultOracle) IsPureMember(*types.Member) bool       { return false }
func (DefaultOracle) IsIdentityFunction(*types.Member) bool { return false }

func (DefaultOracle) NeverThrows(n tree.Node) bool { return trivial(n) }
func (DefaultOracle) IsPure(n tree.Node) bool      { return trivial(n) }

func (DefaultOracle) AlwaysThrows(n tree.Node) bool {
	_, ok := n.(*tree.Throw)
	return ok
}

func (DefaultOracle) HasConstantValue(n tree.Node) bool {
	_, ok := constantOf(n)
	return ok
}

func (DefaultOracle) ConstantValue(n tree.Node) (any, bool) {
	return constantOf(n)
}

// constantOf Constant 的值，或 Default 的零值（void 与用户值类型除外）
func constantOf(n tree.Node) (any, bool) {
	switch x := n.(type) {
	case *tree.Constant:
		return x.Value, true
	case *tree.Default:
		switch x.Type().Kind() {
		case types.Void, types.Struct:
			return nil, false
		}
		return types.Zero(x.Type()), true
	}
	return nil, false
}

func (DefaultOracle) IsAlwaysNull(n tree.Node) bool {
	switch x := n.(type) {
	case *tree.Constant:
		return x.Value == nil
	case *tree.Default:
		return x.Type().CanBeNull()
	}
	return false
}

func (DefaultOracle) IsNeverNull(n tree.Node) bool {
	if t := n.Type(); t.IsValueType() && !t.IsNullable() {
		return true
	}
	switch x := n.(type) {
	case *tree.Constant:
		return x.Value != nil
	case *tree.Lambda, *tree.Quote, *tree.New, *tree.NewArray, *tree.ListInit, *tree.MemberInit:
		return true
	}
	return false
}

func (o DefaultOracle) IsFalse(n tree.Node) bool {
	v, ok := constantOf(n)
	b, isBool := v.(bool)
	return ok && isBool && !b
}

func (o DefaultOracle) IsTrue(n tree.Node) bool {
	v, ok := constantOf(n)
	b, isBool := v.(bool)
	return ok && isBool && b
}

func (DefaultOracle) IsZero(n tree.Node) bool     { return matchValue(n, zeros) }
func (DefaultOracle) IsOne(n tree.Node) bool      { return matchValue(n, ones) }
func (DefaultOracle) AllBitsZero(n tree.Node) bool { return matchValue(n, allBitsZero) }
func (DefaultOracle) AllBitsOne(n tree.Node) bool  { return matchValue(n, allBitsOne) }
func (DefaultOracle) IsMinValue(n tree.Node) bool  { return matchValue(n, minValues) }
func (DefaultOracle) IsMaxValue(n tree.Node) bool  { return matchValue(n, maxValues) }

func (DefaultOracle) IsImmutable(t *types.Type) bool {
	return immutable(t)
}

func immutable(t *types.Type) bool {
	switch t.Kind() {
	case types.Void, types.Enum:
		return true
	case types.Nullable:
		return immutable(t.Elem())
	}
	return t.Kind().IsPrimitive()
}
