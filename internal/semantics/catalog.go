package semantics

import (
	"github.com/tangzhangming/treeopt/internal/purity"
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// CatalogOracle 第二层信任：在基础 Oracle 之上信任纯成员目录
//
// 目录中的成员被视为纯且不抛出；操作数都纯、接收者非 null 的
// Call/MemberAccess/New 节点因此也是纯的。其余查询委托给基础 Oracle。
type CatalogOracle struct {
	Oracle
	catalog *purity.Catalog
}

var _ Oracle = (*CatalogOracle)(nil)

// WithCatalog 用目录包装基础 Oracle；base 为 nil 时使用 DefaultOracle
func WithCatalog(base Oracle, c *purity.Catalog) *CatalogOracle {
	if base == nil {
		base = DefaultOracle{}
	}
	return &CatalogOracle{Oracle: base, catalog: c}
}

// Catalog 返回目录
func (o *CatalogOracle) Catalog() *purity.Catalog { return o.catalog }

func (o *CatalogOracle) IsPureMember(m *types.Member) bool {
	return o.catalog.IsPure(m) || o.Oracle.IsPureMember(m)
}

func (o *CatalogOracle) NeverThrowsMember(m *types.Member) bool {
	return o.catalog.IsPure(m) || o.Oracle.NeverThrowsMember(m)
}

func (o *CatalogOracle) IsIdentityFunction(m *types.Member) bool {
	return o.catalog.IsIdentity(m) || o.Oracle.IsIdentityFunction(m)
}

func (o *CatalogOracle) IsPure(n tree.Node) bool {
	if o.Oracle.IsPure(n) {
		return true
	}
	switch x := n.(type) {
	case *tree.Call:
		return o.receiverOK(x.Object) && o.IsPureMember(x.Method) && o.allPure(x.Arguments)
	case *tree.MemberAccess:
		return o.receiverOK(x.Object) && o.IsPureMember(x.Member)
	case *tree.New:
		if x.Constructor == nil {
			return true
		}
		return o.IsPureMember(x.Constructor) && o.allPure(x.Arguments)
	}
	return false
}

func (o *CatalogOracle) NeverThrows(n tree.Node) bool {
	return o.Oracle.NeverThrows(n) || o.IsPure(n)
}

// receiverOK 静态成员，或纯且不会因 null 接收者而抛出的实例
func (o *CatalogOracle) receiverOK(obj tree.Node) bool {
	if obj == nil {
		return true
	}
	if !o.IsPure(obj) {
		return false
	}
	return obj.Type().IsNullable() || o.IsNeverNull(obj)
}

func (o *CatalogOracle) allPure(nodes []tree.Node) bool {
	for _, n := range nodes {
		if !o.IsPure(n) {
			return false
		}
	}
	return true
}
